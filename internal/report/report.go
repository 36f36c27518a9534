// Package report builds structured risk reports over historical venue
// data: VaR, max drawdown, spot/perp correlation, and the beta-implied
// perpetual hedge ratio in one record.
package report

import (
	"context"
	"fmt"
	"time"

	"hedge-systemv1/internal/model"
	"hedge-systemv1/internal/risk"
)

// History supplies historical close series. *venue.Resolver satisfies
// it; an empty series means every venue failed.
type History interface {
	HistoricalPrices(ctx context.Context, asset string, days int) []float64
}

// Build assembles a risk report for an asset over the last `days` days.
// Spot and perp exposures are the signed USD exposure values the caller
// currently holds. The perpetual series doubles as the spot proxy, the
// same convention the primary venue uses.
func Build(ctx context.Context, h History, asset string, spot, perp float64, days int, confidence float64) (model.RiskReport, error) {
	series := h.HistoricalPrices(ctx, asset, days)
	if len(series) < 2 {
		return model.RiskReport{}, fmt.Errorf("%w: %d historical points for %s", risk.ErrInsufficientData, len(series), asset)
	}

	rc := risk.Context{Spot: spot, Perp: perp}

	valueAtRisk, err := rc.ValueAtRisk(series, confidence)
	if err != nil {
		return model.RiskReport{}, err
	}

	// Perp-position P&L path implied by the price series.
	pnl := make([]float64, len(series))
	for i, px := range series {
		pnl[i] = (px - series[0]) * perp
	}
	maxDD, err := risk.MaxDrawdown(pnl)
	if err != nil {
		return model.RiskReport{}, err
	}

	// With the perp series proxying for spot, the correlation is 1 and
	// the hedge ratio equals the spot exposure until the resolver can
	// supply a distinct spot index series.
	_, corr, err := risk.CorrelationMatrix(map[string][]float64{
		"spot": series,
		"perp": series,
	})
	if err != nil {
		return model.RiskReport{}, err
	}

	ratio, err := rc.PerpHedgeRatio(series, series)
	if err != nil {
		return model.RiskReport{}, err
	}

	return model.RiskReport{
		Asset:          asset,
		Days:           days,
		Confidence:     confidence,
		ValueAtRisk:    valueAtRisk,
		MaxDrawdown:    maxDD,
		SpotPerpCorr:   corr[0][1],
		PerpHedgeRatio: ratio,
		SamplePoints:   len(series),
		Timestamp:      time.Now(),
	}, nil
}
