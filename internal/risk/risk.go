// Package risk evaluates directional exposure, hedge triggers, and
// portfolio risk metrics (VaR, drawdown, correlation, beta) over price
// and P&L series.
//
// A Context is an ephemeral value object built fresh per computation from
// current exposure values; it carries no history and is never persisted.
package risk

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrInsufficientData is returned when a series has too few points for
// the requested metric.
var ErrInsufficientData = errors.New("risk: not enough data points")

// ErrSeriesMismatch is returned when two series that must align have
// different lengths.
var ErrSeriesMismatch = errors.New("risk: series lengths do not match")

// ErrZeroVariance is returned when a benchmark series has no variance,
// making beta undefined.
var ErrZeroVariance = errors.New("risk: benchmark series has zero variance")

// sigmaEpsilon is the volatility floor below which VaR falls back to the
// empirical percentile of returns.
const sigmaEpsilon = 1e-8

// Context holds the current exposure values for threshold-based hedge
// decisions. Spot and Perp are signed USD exposure values.
type Context struct {
	Spot         float64
	Perp         float64
	ThresholdPct float64
}

// NetDelta returns the net directional exposure: spot + perp.
func (c Context) NetDelta() float64 {
	return c.Spot + c.Perp
}

// ThresholdLimit returns the allowed delta exposure:
// |spot| * threshold% / 100.
func (c Context) ThresholdLimit() float64 {
	return math.Abs(c.Spot) * c.ThresholdPct / 100
}

// NeedsHedge reports whether |net delta| exceeds the threshold limit.
func (c Context) NeedsHedge() bool {
	return math.Abs(c.NetDelta()) > c.ThresholdLimit()
}

// HedgeAmount returns the exposure that must be offset to flatten delta.
func (c Context) HedgeAmount() float64 {
	return c.NetDelta()
}

// LogReturns converts a price series into log returns. Requires at least
// two points.
func LogReturns(prices []float64) ([]float64, error) {
	if len(prices) < 2 {
		return nil, fmt.Errorf("%w: got %d prices, need >= 2", ErrInsufficientData, len(prices))
	}
	rets := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		rets[i-1] = math.Log(prices[i] / prices[i-1])
	}
	return rets, nil
}

// ValueAtRisk computes parametric VaR of the spot exposure at the given
// confidence level from a historical price series, assuming normal log
// returns. When return volatility is numerically negligible it falls
// back to the empirical (1-confidence) percentile of returns.
//
// The result is a loss magnitude: the parametric path clamps at zero.
func (c Context) ValueAtRisk(prices []float64, confidence float64) (float64, error) {
	rets, err := LogReturns(prices)
	if err != nil {
		return 0, err
	}

	mu := stat.Mean(rets, nil)
	sigma := math.Sqrt(stat.Variance(rets, nil)) // Bessel-corrected
	alpha := 1 - confidence

	if sigma < sigmaEpsilon {
		sorted := append([]float64(nil), rets...)
		sort.Float64s(sorted)
		emp := -stat.Quantile(alpha, stat.LinInterp, sorted, nil)
		return emp * math.Abs(c.Spot), nil
	}

	z := distuv.UnitNormal.Quantile(alpha)
	varPct := -(mu + sigma*z)
	return math.Max(varPct*math.Abs(c.Spot), 0), nil
}

// MaxDrawdown returns the largest peak-to-subsequent-trough retracement
// of a cumulative P&L series, measured against the running high. The
// result is an absolute amount, not a percentage.
func MaxDrawdown(pnl []float64) (float64, error) {
	if len(pnl) == 0 {
		return 0, fmt.Errorf("%w: empty pnl series", ErrInsufficientData)
	}
	peak := pnl[0]
	maxDD := 0.0
	for _, v := range pnl {
		if v > peak {
			peak = v
		}
		if dd := peak - v; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD, nil
}

// CorrelationMatrix computes the log-return correlation across named
// price series. Series with fewer than two points are dropped; at least
// two usable series of equal return length are required. Symbols are
// returned sorted so the matrix ordering is deterministic.
func CorrelationMatrix(series map[string][]float64) ([]string, [][]float64, error) {
	symbols := make([]string, 0, len(series))
	for sym, prices := range series {
		if len(prices) > 1 {
			symbols = append(symbols, sym)
		}
	}
	if len(symbols) < 2 {
		return nil, nil, fmt.Errorf("%w: need at least two series with price history", ErrInsufficientData)
	}
	sort.Strings(symbols)

	rets := make([][]float64, len(symbols))
	for i, sym := range symbols {
		r, err := LogReturns(series[sym])
		if err != nil {
			return nil, nil, err
		}
		if i > 0 && len(r) != len(rets[0]) {
			return nil, nil, fmt.Errorf("%w: %q has %d returns, %q has %d",
				ErrSeriesMismatch, sym, len(r), symbols[0], len(rets[0]))
		}
		rets[i] = r
	}

	matrix := make([][]float64, len(symbols))
	for i := range symbols {
		matrix[i] = make([]float64, len(symbols))
		matrix[i][i] = 1
		for j := 0; j < i; j++ {
			corr := stat.Correlation(rets[i], rets[j], nil)
			matrix[i][j] = corr
			matrix[j][i] = corr
		}
	}
	return symbols, matrix, nil
}

// Beta returns cov(asset returns, benchmark returns) / var(benchmark
// returns), both sample-corrected, over log returns of the two series.
func Beta(benchmark, asset []float64) (float64, error) {
	rb, err := LogReturns(benchmark)
	if err != nil {
		return 0, err
	}
	ra, err := LogReturns(asset)
	if err != nil {
		return 0, err
	}
	if len(ra) != len(rb) {
		return 0, fmt.Errorf("%w: asset %d returns, benchmark %d", ErrSeriesMismatch, len(ra), len(rb))
	}
	varB := stat.Variance(rb, nil)
	if varB == 0 {
		return 0, ErrZeroVariance
	}
	return stat.Covariance(ra, rb, nil) / varB, nil
}

// PerpHedgeRatio returns the perpetual-contract hedge size implied by
// the historical beta of perp returns against spot returns:
// spot exposure × beta. Distinct from the threshold-based HedgeAmount.
func (c Context) PerpHedgeRatio(spotSeries, perpSeries []float64) (float64, error) {
	beta, err := Beta(spotSeries, perpSeries)
	if err != nil {
		return 0, err
	}
	return c.Spot * beta, nil
}
