// Package portfolio maintains the append-only position ledger and its
// on-demand analytics: aggregate Greeks and mark-to-market P&L.
//
// The ledger exclusively owns its leg collection. Legs are immutable once
// appended; closing a position is an offsetting leg, never an edit.
// Aggregates re-query live prices on every call — there is no caching —
// so results reflect the instant of the call.
package portfolio

import (
	"context"
	"strings"
	"sync"
	"time"

	"hedge-systemv1/internal/greeks"
	"hedge-systemv1/internal/model"
	"hedge-systemv1/internal/venue"
)

// Marks supplies the live prices the analytics need. *venue.Resolver
// satisfies it.
type Marks interface {
	SpotPrice(ctx context.Context, asset string) (float64, error)
	PerpetualPrice(ctx context.Context, asset string) (float64, error)
	InstrumentPrice(ctx context.Context, instrumentID string) (float64, error)
	FindOptionInstrument(ctx context.Context, asset string, strike float64, days int, kind model.OptionKind) (venue.Instrument, error)
}

// Ledger tracks all position legs for one portfolio.
type Ledger struct {
	mu     sync.RWMutex
	legs   []model.Leg
	market Marks
}

// New creates an empty ledger over the given market data source.
func New(market Marks) *Ledger {
	return &Ledger{market: market}
}

func (l *Ledger) append(leg model.Leg) {
	l.mu.Lock()
	l.legs = append(l.legs, leg)
	l.mu.Unlock()
}

// Legs returns a snapshot of all legs. Aggregates iterate over such a
// snapshot, so legs appended mid-computation are simply not included.
func (l *Ledger) Legs() []model.Leg {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Leg, len(l.legs))
	copy(out, l.legs)
	return out
}

// AddSpot appends a spot leg. A negative size means short; the stored
// size is always the magnitude.
func (l *Ledger) AddSpot(asset string, size, entryPrice float64) {
	l.append(model.Leg{
		Type:         model.LegSpot,
		Side:         model.SideOf(size),
		Size:         abs(size),
		InstrumentID: asset + "-SPOT",
		EntryPrice:   entryPrice,
		CreatedAt:    time.Now(),
	})
}

// AddPerp appends a perpetual leg.
func (l *Ledger) AddPerp(asset string, size, entryPrice float64) {
	l.append(model.Leg{
		Type:         model.LegPerpetual,
		Side:         model.SideOf(size),
		Size:         abs(size),
		InstrumentID: asset + "-PERPETUAL",
		EntryPrice:   entryPrice,
		CreatedAt:    time.Now(),
	})
}

// AddOption resolves the matching listed contract and appends an option
// leg. The time to expiry is recorded as days/365 at creation and reused
// unchanged by later Greeks computations. A catalog failure propagates
// and nothing is appended.
func (l *Ledger) AddOption(ctx context.Context, asset string, kind model.OptionKind, strike float64, days int, vol, size, entryPrice float64) error {
	inst, err := l.market.FindOptionInstrument(ctx, asset, strike, days, kind)
	if err != nil {
		return err
	}
	l.append(model.Leg{
		Type:         model.LegOption,
		Side:         model.SideOf(size),
		Size:         abs(size),
		InstrumentID: inst.ID,
		Strike:       strike,
		TimeToExpiry: float64(days) / 365,
		Volatility:   vol,
		OptionKind:   kind,
		EntryPrice:   entryPrice,
		CreatedAt:    time.Now(),
	})
	return nil
}

// assetOf extracts the asset symbol from an instrument ID such as
// "BTC-SPOT", "BTC-PERPETUAL", or "BTC-27MAR26-90000-P".
func assetOf(instrumentID string) string {
	asset, _, _ := strings.Cut(instrumentID, "-")
	return asset
}

// Greeks aggregates portfolio sensitivities. Spot and perpetual legs
// contribute unit delta (side × size); option legs are repriced with a
// freshly fetched underlying but their stored strike, volatility, and
// time to expiry.
func (l *Ledger) Greeks(ctx context.Context) (model.Greeks, error) {
	var totals model.Greeks
	for _, leg := range l.Legs() {
		switch leg.Type {
		case model.LegSpot, model.LegPerpetual:
			totals.Delta += leg.SignedSize()
		case model.LegOption:
			spot, err := l.market.SpotPrice(ctx, assetOf(leg.InstrumentID))
			if err != nil {
				return model.Greeks{}, err
			}
			calc := greeks.Calc{S: spot, K: leg.Strike, T: leg.TimeToExpiry, R: 0, Sigma: leg.Volatility}
			g, err := calc.All(leg.OptionKind)
			if err != nil {
				return model.Greeks{}, err
			}
			totals.Add(g.Scale(leg.SignedSize()))
		}
	}
	return totals, nil
}

// PnL returns the per-leg unrealized P&L against live marks plus the
// total.
func (l *Ledger) PnL(ctx context.Context) (model.PnLReport, error) {
	report := model.PnLReport{Timestamp: time.Now()}
	for _, leg := range l.Legs() {
		var current float64
		var err error
		switch leg.Type {
		case model.LegSpot:
			current, err = l.market.SpotPrice(ctx, assetOf(leg.InstrumentID))
		case model.LegPerpetual:
			current, err = l.market.PerpetualPrice(ctx, assetOf(leg.InstrumentID))
		case model.LegOption:
			current, err = l.market.InstrumentPrice(ctx, leg.InstrumentID)
		}
		if err != nil {
			return model.PnLReport{}, err
		}

		pnl := leg.SignedSize() * (current - leg.EntryPrice)
		report.Legs = append(report.Legs, model.LegPnL{
			InstrumentID: leg.InstrumentID,
			Size:         leg.SignedSize(),
			Entry:        leg.EntryPrice,
			Current:      current,
			PnL:          pnl,
		})
		report.TotalPnL += pnl
	}
	return report, nil
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
