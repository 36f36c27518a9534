package risk

import (
	"errors"
	"math"
	"testing"
)

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) < eps
}

func TestContext_Threshold(t *testing.T) {
	tests := []struct {
		name       string
		spot, perp float64
		pct        float64
		wantNet    float64
		wantLimit  float64
		wantHedge  bool
	}{
		{"over threshold", 100, -80, 10, 20, 10, true},
		{"within threshold", 100, -91, 10, 9, 10, false},
		{"exactly at limit", 100, -90, 10, 10, 10, false},
		{"flat", 100, -100, 10, 0, 10, false},
		{"short spot", -100, 80, 10, -20, 10, true},
		{"zero threshold pct", 50, -49, 0, 1, 0, true},
	}

	for _, tt := range tests {
		c := Context{Spot: tt.spot, Perp: tt.perp, ThresholdPct: tt.pct}
		if got := c.NetDelta(); !almostEqual(got, tt.wantNet, 1e-12) {
			t.Errorf("%s: NetDelta = %g, want %g", tt.name, got, tt.wantNet)
		}
		if got := c.ThresholdLimit(); !almostEqual(got, tt.wantLimit, 1e-12) {
			t.Errorf("%s: ThresholdLimit = %g, want %g", tt.name, got, tt.wantLimit)
		}
		if got := c.NeedsHedge(); got != tt.wantHedge {
			t.Errorf("%s: NeedsHedge = %v, want %v", tt.name, got, tt.wantHedge)
		}
		if got := c.HedgeAmount(); !almostEqual(got, tt.wantNet, 1e-12) {
			t.Errorf("%s: HedgeAmount = %g, want net delta %g", tt.name, got, tt.wantNet)
		}
	}
}

func TestLogReturns(t *testing.T) {
	rets, err := LogReturns([]float64{100, 110, 99})
	if err != nil {
		t.Fatal(err)
	}
	if len(rets) != 2 {
		t.Fatalf("got %d returns, want 2", len(rets))
	}
	if !almostEqual(rets[0], math.Log(1.1), 1e-12) {
		t.Errorf("rets[0] = %g, want ln(1.1)", rets[0])
	}
	if !almostEqual(rets[1], math.Log(0.9), 1e-12) {
		t.Errorf("rets[1] = %g, want ln(0.9)", rets[1])
	}

	if _, err := LogReturns([]float64{100}); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("single point error = %v, want ErrInsufficientData", err)
	}
}

func TestValueAtRisk_Parametric(t *testing.T) {
	// Alternating moves give real volatility; VaR must be a positive
	// loss magnitude scaled by spot exposure.
	prices := []float64{100, 102, 99, 103, 98, 104, 97, 105}
	c := Context{Spot: 10000}

	v, err := c.ValueAtRisk(prices, 0.95)
	if err != nil {
		t.Fatal(err)
	}
	if v <= 0 {
		t.Fatalf("VaR = %g, want > 0", v)
	}

	// Doubling exposure doubles the loss estimate.
	c2 := Context{Spot: 20000}
	v2, err := c2.ValueAtRisk(prices, 0.95)
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(v2, 2*v, 1e-9) {
		t.Errorf("VaR at 2x exposure = %g, want %g", v2, 2*v)
	}

	// Short exposure has the same loss magnitude.
	c3 := Context{Spot: -10000}
	v3, err := c3.ValueAtRisk(prices, 0.95)
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(v3, v, 1e-9) {
		t.Errorf("VaR short = %g, want %g", v3, v)
	}
}

func TestValueAtRisk_ClampsAtZero(t *testing.T) {
	// A strong steady uptrend with mild noise: mean return dominates,
	// so the parametric quantile goes positive and clamps to 0.
	prices := []float64{100, 110, 121, 133, 146, 161, 177}
	c := Context{Spot: 5000}
	v, err := c.ValueAtRisk(prices, 0.95)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0 {
		t.Errorf("VaR = %g, want 0 for dominant positive drift", v)
	}
}

func TestValueAtRisk_ZeroVolFallback(t *testing.T) {
	// Constant growth rate: return stddev is ~0, so the empirical
	// percentile path applies. All returns equal ln(1.01), so the
	// percentile is -ln(1.01) and VaR goes negative (a gain).
	prices := make([]float64, 20)
	prices[0] = 100
	for i := 1; i < len(prices); i++ {
		prices[i] = prices[i-1] * 1.01
	}
	c := Context{Spot: 1000}
	v, err := c.ValueAtRisk(prices, 0.95)
	if err != nil {
		t.Fatal(err)
	}
	want := -math.Log(1.01) * 1000
	if !almostEqual(v, want, 1e-6) {
		t.Errorf("fallback VaR = %g, want %g", v, want)
	}

	// Flat prices: fallback returns exactly zero.
	flat := []float64{50, 50, 50, 50, 50}
	v, err = c.ValueAtRisk(flat, 0.99)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0 {
		t.Errorf("flat-series VaR = %g, want 0", v)
	}
}

func TestValueAtRisk_InsufficientData(t *testing.T) {
	c := Context{Spot: 100}
	if _, err := c.ValueAtRisk([]float64{42}, 0.95); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("error = %v, want ErrInsufficientData", err)
	}
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name string
		pnl  []float64
		want float64
	}{
		{"mixed path", []float64{0, 10, 5, 15, 7, 20, 12}, 8},
		{"monotonic up", []float64{1, 2, 3, 4}, 0},
		{"monotonic down", []float64{10, 6, 3, -5}, 15},
		{"single point", []float64{7}, 0},
		{"trough at end", []float64{0, 100, 40}, 60},
	}
	for _, tt := range tests {
		got, err := MaxDrawdown(tt.pnl)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if !almostEqual(got, tt.want, 1e-12) {
			t.Errorf("%s: MaxDrawdown = %g, want %g", tt.name, got, tt.want)
		}
	}

	if _, err := MaxDrawdown(nil); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("empty series error = %v, want ErrInsufficientData", err)
	}
}

func TestCorrelationMatrix(t *testing.T) {
	// down is the pointwise reciprocal of up, so its log returns are
	// exactly the negation of up's.
	up := []float64{100, 110, 99, 121, 104}
	down := make([]float64, len(up))
	for i, px := range up {
		down[i] = 10000 / px
	}

	symbols, matrix, err := CorrelationMatrix(map[string][]float64{
		"BTC": up,
		"ETH": down,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(symbols) != 2 || symbols[0] != "BTC" || symbols[1] != "ETH" {
		t.Fatalf("symbols = %v, want [BTC ETH]", symbols)
	}
	for i := range matrix {
		if matrix[i][i] != 1 {
			t.Errorf("diag[%d] = %g, want exactly 1", i, matrix[i][i])
		}
	}
	if matrix[0][1] != matrix[1][0] {
		t.Errorf("matrix not symmetric: %g vs %g", matrix[0][1], matrix[1][0])
	}
	// Perfectly inverse log returns.
	if !almostEqual(matrix[0][1], -1, 1e-9) {
		t.Errorf("corr(BTC,ETH) = %g, want -1", matrix[0][1])
	}
}

func TestCorrelationMatrix_DropsShortSeries(t *testing.T) {
	_, _, err := CorrelationMatrix(map[string][]float64{
		"BTC":   {100, 101, 102},
		"EMPTY": {50}, // dropped, leaving only one usable series
	})
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("error = %v, want ErrInsufficientData", err)
	}
}

func TestCorrelationMatrix_LengthMismatch(t *testing.T) {
	_, _, err := CorrelationMatrix(map[string][]float64{
		"A": {1, 2, 3, 4},
		"B": {1, 2},
	})
	if !errors.Is(err, ErrSeriesMismatch) {
		t.Errorf("error = %v, want ErrSeriesMismatch", err)
	}
}

func TestBeta(t *testing.T) {
	bench := []float64{100, 105, 99, 108, 102}

	// An asset whose log returns are exactly 2x the benchmark's has beta 2.
	asset := make([]float64, len(bench))
	asset[0] = 100
	for i := 1; i < len(bench); i++ {
		r := math.Log(bench[i] / bench[i-1])
		asset[i] = asset[i-1] * math.Exp(2*r)
	}

	beta, err := Beta(bench, asset)
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(beta, 2, 1e-9) {
		t.Errorf("beta = %g, want 2", beta)
	}

	// Self-beta is 1.
	self, err := Beta(bench, bench)
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(self, 1, 1e-12) {
		t.Errorf("self beta = %g, want 1", self)
	}
}

func TestBeta_ZeroVariance(t *testing.T) {
	flat := []float64{100, 100, 100, 100}
	moving := []float64{100, 101, 99, 102}
	if _, err := Beta(flat, moving); !errors.Is(err, ErrZeroVariance) {
		t.Errorf("error = %v, want ErrZeroVariance", err)
	}
}

func TestPerpHedgeRatio(t *testing.T) {
	spot := []float64{50000, 51000, 49500, 52000, 50500}
	c := Context{Spot: 3}

	// Perp tracking spot exactly: hedge ratio equals spot exposure.
	ratio, err := c.PerpHedgeRatio(spot, spot)
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(ratio, 3, 1e-9) {
		t.Errorf("PerpHedgeRatio = %g, want 3", ratio)
	}

	if _, err := c.PerpHedgeRatio([]float64{1}, spot); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("error = %v, want ErrInsufficientData", err)
	}
}
