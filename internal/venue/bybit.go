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

const bybitDefaultBaseURL = "https://api.bybit.com"

const bybitKlineLimit = 1000

// Bybit is a public-data REST client for the Bybit v5 market API.
type Bybit struct {
	baseURL string
	t       *transport
}

// BybitConfig configures the Bybit client.
type BybitConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewBybit creates a Bybit client. m may be nil.
func NewBybit(cfg BybitConfig, m *metrics.Metrics) *Bybit {
	base := cfg.BaseURL
	if base == "" {
		base = bybitDefaultBaseURL
	}
	return &Bybit{baseURL: base, t: newTransport(cfg.Timeout, m)}
}

func (b *Bybit) Name() string { return "bybit" }

// bybitCategory maps a price kind to the v5 market category: USDT spot
// pairs vs linear (USDT-margined) perpetuals.
func bybitCategory(kind PriceKind) string {
	if kind == Perpetual {
		return "linear"
	}
	return "spot"
}

type bybitResponse[T any] struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  T      `json:"result"`
}

func bybitGet[T any](ctx context.Context, b *Bybit, path string, params url.Values) (T, error) {
	var resp bybitResponse[T]
	var zero T
	if err := b.t.getJSON(ctx, b.baseURL+path, params, &resp); err != nil {
		return zero, &Error{Venue: b.Name(), Op: path, Err: err}
	}
	if resp.RetCode != 0 {
		return zero, &Error{Venue: b.Name(), Op: path, Err: fmt.Errorf("retCode %d: %s", resp.RetCode, resp.RetMsg)}
	}
	return resp.Result, nil
}

type bybitTickerResult struct {
	List []struct {
		LastPrice string `json:"lastPrice"`
	} `json:"list"`
}

func (b *Bybit) price(ctx context.Context, asset string, kind PriceKind) (float64, error) {
	params := url.Values{
		"category": {bybitCategory(kind)},
		"symbol":   {asset + "USDT"},
	}
	result, err := bybitGet[bybitTickerResult](ctx, b, "/v5/market/tickers", params)
	if err != nil {
		return 0, err
	}
	if len(result.List) == 0 {
		return 0, &Error{Venue: b.Name(), Op: "tickers", Err: fmt.Errorf("empty ticker list for %s", asset)}
	}
	last, err := strconv.ParseFloat(result.List[0].LastPrice, 64)
	if err != nil {
		return 0, &Error{Venue: b.Name(), Op: "tickers", Err: err}
	}
	return last, nil
}

func (b *Bybit) SpotPrice(ctx context.Context, asset string) (float64, error) {
	return b.price(ctx, asset, Spot)
}

func (b *Bybit) PerpetualPrice(ctx context.Context, asset string) (float64, error) {
	return b.price(ctx, asset, Perpetual)
}

// InstrumentPrice falls back to the spot price of the asset prefix.
func (b *Bybit) InstrumentPrice(ctx context.Context, instrumentID string) (float64, error) {
	asset, _, _ := strings.Cut(instrumentID, "-")
	return b.SpotPrice(ctx, asset)
}

type bybitKlineResult struct {
	List [][]string `json:"list"`
}

// HistoricalPrices returns hourly perpetual closes, oldest first.
func (b *Bybit) HistoricalPrices(ctx context.Context, asset string, days int) ([]float64, error) {
	limit := 24 * days
	if limit > bybitKlineLimit {
		limit = bybitKlineLimit
	}
	params := url.Values{
		"category": {"linear"},
		"symbol":   {asset + "USDT"},
		"interval": {"60"},
		"limit":    {strconv.Itoa(limit)},
	}
	result, err := bybitGet[bybitKlineResult](ctx, b, "/v5/market/kline", params)
	if err != nil {
		return nil, err
	}
	closes := make([]float64, 0, len(result.List))
	for i := len(result.List) - 1; i >= 0; i-- { // newest-first → chronological
		row := result.List[i]
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
