// Package venue implements the multi-venue price resolution layer:
// per-venue REST clients (Deribit, OKX, Bybit), a shared retrying
// transport, per-venue circuit breakers, and the priority-ordered
// Resolver that composes them.
package venue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hedge-systemv1/internal/model"
)

// Error is a recoverable venue failure: a price or instrument query that
// failed after transport-level retries. It is reported upward, never
// fatal to the process.
type Error struct {
	Venue string
	Op    string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("venue %s: %s: %v", e.Venue, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrNoPrice is returned by the Resolver when every venue failed to
// produce a positive price.
var ErrNoPrice = errors.New("venue: no price available from any venue")

// ErrNoInstrument is returned when the option catalog has no contract
// matching the requested strike and kind.
var ErrNoInstrument = errors.New("venue: no matching option instrument")

// ErrNoCatalog is returned when no configured venue exposes an option
// instrument catalog.
var ErrNoCatalog = errors.New("venue: no venue exposes an option catalog")

// PriceKind selects the market a price query targets.
type PriceKind string

const (
	Spot      PriceKind = "spot"
	Perpetual PriceKind = "perpetual"
)

// Instrument describes one listed option contract.
type Instrument struct {
	ID         string           `json:"instrument_id"`
	OptionKind model.OptionKind `json:"option_kind"`
	Strike     float64          `json:"strike"`
	Expiry     time.Time        `json:"expiry"`
}

// Venue is the capability set every exchange client exposes. All calls
// block with a bounded timeout and bounded transport-level retry; they
// return a *Error on failure.
type Venue interface {
	Name() string
	SpotPrice(ctx context.Context, asset string) (float64, error)
	PerpetualPrice(ctx context.Context, asset string) (float64, error)
	// InstrumentPrice returns the last traded price of a specific
	// instrument by its venue-native ID.
	InstrumentPrice(ctx context.Context, instrumentID string) (float64, error)
	// HistoricalPrices returns hourly close prices covering the last
	// `days` days, oldest first.
	HistoricalPrices(ctx context.Context, asset string, days int) ([]float64, error)
}

// OptionCatalog is the optional capability of venues that list option
// contracts. Only Deribit implements it in this build.
type OptionCatalog interface {
	// FindOptionInstrument returns the contract of the given kind whose
	// strike matches within a small tolerance and whose expiry is
	// nearest to now + days.
	FindOptionInstrument(ctx context.Context, asset string, strike float64, days int, kind model.OptionKind) (Instrument, error)
}
