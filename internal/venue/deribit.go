package venue

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"hedge-systemv1/internal/metrics"
	"hedge-systemv1/internal/model"
)

const (
	deribitDefaultBaseURL = "https://www.deribit.com/api/v2/"

	// strikeTolerance bounds the strike match in the option catalog.
	strikeTolerance = 1e-6
)

// Deribit is a public-data REST client for Deribit. It is the primary
// venue and the only one exposing an option instrument catalog.
// Deribit has no native spot market, so the perpetual last price doubles
// as the spot proxy.
type Deribit struct {
	baseURL string
	t       *transport
}

// DeribitConfig configures the Deribit client. Zero values fall back to
// production defaults.
type DeribitConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewDeribit creates a Deribit client. m may be nil.
func NewDeribit(cfg DeribitConfig, m *metrics.Metrics) *Deribit {
	base := cfg.BaseURL
	if base == "" {
		base = deribitDefaultBaseURL
	}
	return &Deribit{baseURL: base, t: newTransport(cfg.Timeout, m)}
}

func (d *Deribit) Name() string { return "deribit" }

// deribitEnvelope is the JSON-RPC style wrapper of every REST response.
type deribitEnvelope[T any] struct {
	Result T `json:"result"`
}

func deribitGet[T any](ctx context.Context, d *Deribit, endpoint string, params url.Values) (T, error) {
	var env deribitEnvelope[T]
	if err := d.t.getJSON(ctx, d.baseURL+endpoint, params, &env); err != nil {
		var zero T
		return zero, &Error{Venue: d.Name(), Op: endpoint, Err: err}
	}
	return env.Result, nil
}

type deribitTicker struct {
	LastPrice float64 `json:"last_price"`
}

func (d *Deribit) ticker(ctx context.Context, instrument string) (float64, error) {
	params := url.Values{"instrument_name": {instrument}}
	tk, err := deribitGet[deribitTicker](ctx, d, "public/ticker", params)
	if err != nil {
		return 0, err
	}
	return tk.LastPrice, nil
}

// SpotPrice returns the perpetual last price as the spot proxy.
func (d *Deribit) SpotPrice(ctx context.Context, asset string) (float64, error) {
	return d.ticker(ctx, asset+"-PERPETUAL")
}

// PerpetualPrice returns the perpetual contract last price.
func (d *Deribit) PerpetualPrice(ctx context.Context, asset string) (float64, error) {
	return d.ticker(ctx, asset+"-PERPETUAL")
}

// InstrumentPrice returns the last traded price of any Deribit
// instrument, including options.
func (d *Deribit) InstrumentPrice(ctx context.Context, instrumentID string) (float64, error) {
	return d.ticker(ctx, instrumentID)
}

type deribitChart struct {
	Close []float64 `json:"close"`
}

// HistoricalPrices returns hourly perpetual closes for the last `days`
// days, oldest first.
func (d *Deribit) HistoricalPrices(ctx context.Context, asset string, days int) ([]float64, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -days)
	params := url.Values{
		"instrument_name": {asset + "-PERPETUAL"},
		"start_timestamp": {strconv.FormatInt(start.UnixMilli(), 10)},
		"end_timestamp":   {strconv.FormatInt(end.UnixMilli(), 10)},
		"resolution":      {"60"},
	}
	var env deribitEnvelope[deribitChart]
	if err := d.t.getJSON(ctx, d.baseURL+"public/get_tradingview_chart_data", params, &env); err != nil {
		return nil, &Error{Venue: d.Name(), Op: "get_tradingview_chart_data", Err: err}
	}
	return env.Result.Close, nil
}

type deribitInstrument struct {
	InstrumentName      string  `json:"instrument_name"`
	OptionType          string  `json:"option_type"`
	Strike              float64 `json:"strike"`
	ExpirationTimestamp int64   `json:"expiration_timestamp"` // ms
}

// Instruments returns the active option contracts for an asset.
func (d *Deribit) Instruments(ctx context.Context, asset string) ([]deribitInstrument, error) {
	params := url.Values{
		"currency": {asset},
		"kind":     {"option"},
		"expired":  {"false"},
	}
	return deribitGet[[]deribitInstrument](ctx, d, "public/get_instruments", params)
}

// FindOptionInstrument locates the contract of the given kind whose
// strike matches within tolerance and whose expiry is nearest to
// now + days. Absence of a same-strike candidate is an ErrNoInstrument.
func (d *Deribit) FindOptionInstrument(ctx context.Context, asset string, strike float64, days int, kind model.OptionKind) (Instrument, error) {
	instruments, err := d.Instruments(ctx, asset)
	if err != nil {
		return Instrument{}, err
	}

	targetMs := time.Now().AddDate(0, 0, days).UnixMilli()
	var best *deribitInstrument
	var bestDiff int64
	for i := range instruments {
		inst := &instruments[i]
		if inst.OptionType != string(kind) || !model.AlmostEqual(inst.Strike, strike, strikeTolerance) {
			continue
		}
		diff := inst.ExpirationTimestamp - targetMs
		if diff < 0 {
			diff = -diff
		}
		if best == nil || diff < bestDiff {
			best, bestDiff = inst, diff
		}
	}
	if best == nil {
		return Instrument{}, &Error{
			Venue: d.Name(),
			Op:    "find_option_instrument",
			Err:   fmt.Errorf("%w: no %s at strike %g for %s", ErrNoInstrument, kind, strike, asset),
		}
	}
	return Instrument{
		ID:         best.InstrumentName,
		OptionKind: kind,
		Strike:     best.Strike,
		Expiry:     time.UnixMilli(best.ExpirationTimestamp),
	}, nil
}
