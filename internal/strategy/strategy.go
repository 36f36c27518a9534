// Package strategy composes pricing sensitivities, the hedge sizer, and
// the price-resolution layer into hedge recipes: delta-neutral,
// protective put, covered call, and collar.
//
// Every recipe returns a structured HedgeResult recommendation — a
// computed size and estimated cost — never a live order. The engine
// stores nothing; the caller decides whether a result becomes ledger
// legs.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"hedge-systemv1/internal/greeks"
	"hedge-systemv1/internal/metrics"
	"hedge-systemv1/internal/model"
	"hedge-systemv1/internal/risk"
	"hedge-systemv1/internal/venue"
)

// ErrParam is returned for malformed strategy arguments, before any
// venue query is made.
var ErrParam = errors.New("strategy: invalid parameter")

// MarketData is the slice of the price-resolution layer the engine
// needs. *venue.Resolver satisfies it.
type MarketData interface {
	SpotPrice(ctx context.Context, asset string) (float64, error)
	PerpetualPrice(ctx context.Context, asset string) (float64, error)
	InstrumentPrice(ctx context.Context, instrumentID string) (float64, error)
	FindOptionInstrument(ctx context.Context, asset string, strike float64, days int, kind model.OptionKind) (venue.Instrument, error)
}

// Engine computes hedge recommendations against live market data.
type Engine struct {
	market MarketData
	rate   float64          // risk-free rate fed into the pricing model
	m      *metrics.Metrics // nil-safe
}

// NewEngine creates a strategy engine. The risk-free rate is zero,
// the usual convention for crypto options quoted in coin terms.
func NewEngine(market MarketData, m *metrics.Metrics) *Engine {
	return &Engine{market: market, rate: 0, m: m}
}

func (e *Engine) observe(strategy string, start time.Time, err error) {
	if e.m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	e.m.HedgesComputed.WithLabelValues(strategy, outcome).Inc()
	e.m.HedgeComputeDur.Observe(time.Since(start).Seconds())
}

func checkOptionParams(asset string, spotQty, strike float64, days int, vol float64) error {
	switch {
	case asset == "":
		return fmt.Errorf("%w: empty asset", ErrParam)
	case spotQty <= 0:
		return fmt.Errorf("%w: spot quantity %g must be positive", ErrParam, spotQty)
	case strike <= 0:
		return fmt.Errorf("%w: strike %g must be positive", ErrParam, strike)
	case days <= 0:
		return fmt.Errorf("%w: days %d must be positive", ErrParam, days)
	case vol <= 0:
		return fmt.Errorf("%w: volatility %g must be positive", ErrParam, vol)
	}
	return nil
}

// DeltaNeutral recommends the perpetual trade that flattens net delta:
// size = -hedge amount, cost = |size × perpetual price|.
func (e *Engine) DeltaNeutral(ctx context.Context, asset string, spotQty, perpQty, thresholdPct float64) (res model.HedgeResult, err error) {
	start := time.Now()
	defer func() { e.observe("delta_neutral", start, err) }()

	if asset == "" {
		return res, fmt.Errorf("%w: empty asset", ErrParam)
	}

	perpPrice, err := e.market.PerpetualPrice(ctx, asset)
	if err != nil {
		return res, err
	}

	rc := risk.Context{Spot: spotQty, Perp: perpQty, ThresholdPct: thresholdPct}
	size := -rc.HedgeAmount()
	return model.HedgeResult{
		Strategy:  "delta_neutral",
		Asset:     asset,
		Size:      size,
		Cost:      math.Abs(size * perpPrice),
		Timestamp: time.Now(),
	}, nil
}

// ProtectivePut recommends buying puts to cover a spot holding. The put
// count over-hedges: ceil(spotQty / |put delta|).
func (e *Engine) ProtectivePut(ctx context.Context, asset string, spotQty, strike float64, days int, vol float64) (res model.HedgeResult, err error) {
	start := time.Now()
	defer func() { e.observe("protective_put", start, err) }()

	if err = checkOptionParams(asset, spotQty, strike, days, vol); err != nil {
		return res, err
	}

	spot, err := e.market.SpotPrice(ctx, asset)
	if err != nil {
		return res, err
	}
	inst, err := e.market.FindOptionInstrument(ctx, asset, strike, days, model.OptionPut)
	if err != nil {
		return res, err
	}

	calc := greeks.Calc{S: spot, K: strike, T: float64(days) / 365, R: e.rate, Sigma: vol}
	sizer := greeks.PutSizer{Calc: calc, SpotQty: spotQty}
	qty, err := sizer.HedgeQty()
	if err != nil {
		return res, err
	}
	price, err := e.market.InstrumentPrice(ctx, inst.ID)
	if err != nil {
		return res, err
	}

	snap, err := calc.All(model.OptionPut)
	if err != nil {
		return res, err
	}
	return model.HedgeResult{
		Strategy:     "protective_put",
		Asset:        asset,
		InstrumentID: inst.ID,
		Size:         float64(qty),
		Cost:         float64(qty) * price,
		Greeks:       &snap,
		Timestamp:    time.Now(),
	}, nil
}

// CoveredCall recommends selling one call per whole unit of spot held.
// Size is negative (short) and cost is negative (premium received).
func (e *Engine) CoveredCall(ctx context.Context, asset string, spotQty, strike float64, days int, vol float64) (res model.HedgeResult, err error) {
	start := time.Now()
	defer func() { e.observe("covered_call", start, err) }()

	if err = checkOptionParams(asset, spotQty, strike, days, vol); err != nil {
		return res, err
	}

	if _, err = e.market.SpotPrice(ctx, asset); err != nil {
		return res, err
	}
	inst, err := e.market.FindOptionInstrument(ctx, asset, strike, days, model.OptionCall)
	if err != nil {
		return res, err
	}
	price, err := e.market.InstrumentPrice(ctx, inst.ID)
	if err != nil {
		return res, err
	}

	qty := math.Ceil(spotQty)
	return model.HedgeResult{
		Strategy:     "covered_call",
		Asset:        asset,
		InstrumentID: inst.ID,
		Size:         -qty,
		Cost:         -qty * price,
		Timestamp:    time.Now(),
	}, nil
}

// Collar composes a protective put and a covered call on the same
// underlying with independent strikes. The record nests both child
// results; cost is their sum.
func (e *Engine) Collar(ctx context.Context, asset string, spotQty, putStrike, callStrike float64, days int, vol float64) (res model.HedgeResult, err error) {
	start := time.Now()
	defer func() { e.observe("collar", start, err) }()

	put, err := e.ProtectivePut(ctx, asset, spotQty, putStrike, days, vol)
	if err != nil {
		return res, err
	}
	call, err := e.CoveredCall(ctx, asset, spotQty, callStrike, days, vol)
	if err != nil {
		return res, err
	}

	return model.HedgeResult{
		Strategy:  "collar",
		Asset:     asset,
		Size:      put.Size,
		Cost:      put.Cost + call.Cost,
		Put:       &put,
		Call:      &call,
		Timestamp: time.Now(),
	}, nil
}
