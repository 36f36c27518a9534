// Package model defines the shared domain types of the hedge advisor:
// position legs, hedge-result records, and Greeks snapshots.
//
// All prices and exposures are float64 USD values; position sizes are
// float64 quantities of the underlying (crypto sizes are fractional).
package model

import (
	"math"
	"time"
)

// LegType identifies the kind of a position leg.
type LegType string

const (
	LegSpot      LegType = "spot"
	LegPerpetual LegType = "perp"
	LegOption    LegType = "option"
)

// OptionKind identifies put vs call.
type OptionKind string

const (
	OptionPut  OptionKind = "put"
	OptionCall OptionKind = "call"
)

// Side is the direction of a leg: +1 long, -1 short.
type Side int

const (
	Long  Side = 1
	Short Side = -1
)

// SideOf maps a signed size to its Side. Zero counts as long,
// matching the original sign convention (size >= 0 → +1).
func SideOf(size float64) Side {
	if size >= 0 {
		return Long
	}
	return Short
}

// Leg is one immutable position entry in the ledger.
// Size is always a non-negative magnitude; direction lives in Side.
// Option fields (Strike, TimeToExpiry, Volatility, OptionKind) are only
// set for LegOption and are fixed at creation time — TimeToExpiry is the
// year fraction recorded when the leg was added and is not decayed later.
type Leg struct {
	Type         LegType    `json:"type"`
	Side         Side       `json:"side"`
	Size         float64    `json:"size"`
	InstrumentID string     `json:"instrument_id"`
	Strike       float64    `json:"strike,omitempty"`
	TimeToExpiry float64    `json:"time_to_expiry,omitempty"` // year fraction
	Volatility   float64    `json:"volatility,omitempty"`
	OptionKind   OptionKind `json:"option_kind,omitempty"`
	EntryPrice   float64    `json:"entry_price"`
	CreatedAt    time.Time  `json:"created_at"`
}

// SignedSize returns side × size.
func (l *Leg) SignedSize() float64 {
	return float64(l.Side) * l.Size
}

// Greeks is a snapshot of option sensitivities.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"` // per calendar day
	Vega  float64 `json:"vega"`  // per 1 vol point
}

// Add accumulates g2 into g.
func (g *Greeks) Add(g2 Greeks) {
	g.Delta += g2.Delta
	g.Gamma += g2.Gamma
	g.Theta += g2.Theta
	g.Vega += g2.Vega
}

// Scale returns g scaled by k.
func (g Greeks) Scale(k float64) Greeks {
	return Greeks{Delta: g.Delta * k, Gamma: g.Gamma * k, Theta: g.Theta * k, Vega: g.Vega * k}
}

// HedgeResult is the structured recommendation a strategy produces.
// It is never stored by the strategy engine itself; the caller decides
// whether to turn it into ledger legs.
//
// Size is signed: magnitude is the hedge quantity, sign is direction
// (negative = sell/short). Cost is signed: positive = expenditure,
// negative = premium received.
type HedgeResult struct {
	Strategy     string    `json:"strategy"`
	Asset        string    `json:"asset"`
	InstrumentID string    `json:"instrument_id,omitempty"`
	Size         float64   `json:"size"`
	Cost         float64   `json:"cost"`
	Greeks       *Greeks   `json:"greeks,omitempty"`
	Timestamp    time.Time `json:"timestamp"`

	// Collar child legs. Nil for single-leg strategies.
	Put  *HedgeResult `json:"put,omitempty"`
	Call *HedgeResult `json:"call,omitempty"`
}

// LegPnL is one row of a P&L attribution report.
type LegPnL struct {
	InstrumentID string  `json:"instrument_id"`
	Size         float64 `json:"size"` // signed
	Entry        float64 `json:"entry"`
	Current      float64 `json:"current"`
	PnL          float64 `json:"pnl"`
}

// PnLReport is the full mark-to-market breakdown of a ledger.
type PnLReport struct {
	TotalPnL  float64   `json:"total_pnl"`
	Legs      []LegPnL  `json:"legs"`
	Timestamp time.Time `json:"timestamp"`
}

// RiskReport aggregates the risk metrics computed over a historical
// price series for one asset.
type RiskReport struct {
	Asset          string    `json:"asset"`
	Days           int       `json:"days"`
	Confidence     float64   `json:"confidence"`
	ValueAtRisk    float64   `json:"value_at_risk"`
	MaxDrawdown    float64   `json:"max_drawdown"`
	SpotPerpCorr   float64   `json:"spot_perp_corr"`
	PerpHedgeRatio float64   `json:"perp_hedge_ratio"`
	SamplePoints   int       `json:"sample_points"`
	Timestamp      time.Time `json:"timestamp"`
}

// MonitorUpdate is one periodic risk evaluation emitted by the monitor.
type MonitorUpdate struct {
	Asset          string    `json:"asset"`
	SpotQty        float64   `json:"spot_qty"`
	PerpQty        float64   `json:"perp_qty"`
	SpotPrice      float64   `json:"spot_price"`
	PerpPrice      float64   `json:"perp_price"`
	NetDelta       float64   `json:"net_delta"`       // USD value
	ThresholdLimit float64   `json:"threshold_limit"` // USD value
	NeedsHedge     bool      `json:"needs_hedge"`
	RollingVaR     float64   `json:"rolling_var,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// AlmostEqual reports whether two floats differ by less than eps.
// Used for strike matching and test comparisons.
func AlmostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) < eps
}
