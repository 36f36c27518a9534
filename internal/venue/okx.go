package venue

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"hedge-systemv1/internal/metrics"
)

const okxDefaultBaseURL = "https://www.okx.com"

// okx candle fetches are capped at the API page limit.
const okxCandleLimit = 300

// OKX is a public-data REST client for the OKX v5 market API.
type OKX struct {
	baseURL string
	t       *transport
}

// OKXConfig configures the OKX client.
type OKXConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewOKX creates an OKX client. m may be nil.
func NewOKX(cfg OKXConfig, m *metrics.Metrics) *OKX {
	base := cfg.BaseURL
	if base == "" {
		base = okxDefaultBaseURL
	}
	return &OKX{baseURL: base, t: newTransport(cfg.Timeout, m)}
}

func (o *OKX) Name() string { return "okx" }

// okxSymbol normalizes an asset to OKX instrument IDs: BTC-USDT for
// spot, BTC-USDT-SWAP for the USDT-margined perpetual.
func okxSymbol(asset string, kind PriceKind) string {
	if kind == Perpetual {
		return asset + "-USDT-SWAP"
	}
	return asset + "-USDT"
}

type okxResponse[T any] struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data T      `json:"data"`
}

func okxGet[T any](ctx context.Context, o *OKX, path string, params url.Values) (T, error) {
	var resp okxResponse[T]
	var zero T
	if err := o.t.getJSON(ctx, o.baseURL+path, params, &resp); err != nil {
		return zero, &Error{Venue: o.Name(), Op: path, Err: err}
	}
	if resp.Code != "0" {
		return zero, &Error{Venue: o.Name(), Op: path, Err: fmt.Errorf("code %s: %s", resp.Code, resp.Msg)}
	}
	return resp.Data, nil
}

type okxTicker struct {
	Last string `json:"last"`
}

func (o *OKX) price(ctx context.Context, asset string, kind PriceKind) (float64, error) {
	params := url.Values{"instId": {okxSymbol(asset, kind)}}
	data, err := okxGet[[]okxTicker](ctx, o, "/api/v5/market/ticker", params)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, &Error{Venue: o.Name(), Op: "ticker", Err: fmt.Errorf("empty ticker data for %s", asset)}
	}
	last, err := strconv.ParseFloat(data[0].Last, 64)
	if err != nil {
		return 0, &Error{Venue: o.Name(), Op: "ticker", Err: err}
	}
	return last, nil
}

func (o *OKX) SpotPrice(ctx context.Context, asset string) (float64, error) {
	return o.price(ctx, asset, Spot)
}

func (o *OKX) PerpetualPrice(ctx context.Context, asset string) (float64, error) {
	return o.price(ctx, asset, Perpetual)
}

// InstrumentPrice falls back to the spot price of the asset prefix,
// since OKX has no catalog for the Deribit-style option IDs used here.
func (o *OKX) InstrumentPrice(ctx context.Context, instrumentID string) (float64, error) {
	asset, _, _ := strings.Cut(instrumentID, "-")
	return o.SpotPrice(ctx, asset)
}

// HistoricalPrices returns hourly perpetual closes, oldest first. OKX
// serves candles newest-first with a page cap, so long ranges are
// truncated to the most recent okxCandleLimit hours.
func (o *OKX) HistoricalPrices(ctx context.Context, asset string, days int) ([]float64, error) {
	limit := 24 * days
	if limit > okxCandleLimit {
		limit = okxCandleLimit
	}
	params := url.Values{
		"instId": {okxSymbol(asset, Perpetual)},
		"bar":    {"1H"},
		"limit":  {strconv.Itoa(limit)},
	}
	data, err := okxGet[[][]string](ctx, o, "/api/v5/market/candles", params)
	if err != nil {
		return nil, err
	}
	closes := make([]float64, 0, len(data))
	for i := len(data) - 1; i >= 0; i-- { // newest-first → chronological
		row := data[i]
		if len(row) < 5 {
			continue
		}
		c, err := strconv.ParseFloat(row[4], 64)
		if err != nil {
			continue
		}
		closes = append(closes, c)
	}
	return closes, nil
}
