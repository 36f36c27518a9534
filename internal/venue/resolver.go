package venue

import (
	"context"
	"errors"
	"log"
	"time"

	"hedge-systemv1/internal/metrics"
	"hedge-systemv1/internal/model"
)

const (
	breakerMaxFailures = 5
	breakerResetAfter  = 30 * time.Second
)

// Resolver queries venues in a fixed priority order with per-venue
// failure isolation. ResolvePrice is priority-based fallback — the first
// healthy venue wins — not a cross-venue best-price comparison; AllPrices
// exists for spread reporting across every venue.
type Resolver struct {
	venues   []Venue
	catalog  OptionCatalog
	breakers map[string]*Breaker
	m        *metrics.Metrics // nil-safe
}

// NewResolver builds a resolver over venues in priority order. The first
// venue implementing OptionCatalog becomes the catalog venue. m may be
// nil.
func NewResolver(m *metrics.Metrics, venues ...Venue) *Resolver {
	r := &Resolver{
		venues:   venues,
		breakers: make(map[string]*Breaker, len(venues)),
		m:        m,
	}
	for _, v := range venues {
		name := v.Name()
		br := NewBreaker(breakerMaxFailures, breakerResetAfter)
		if m != nil {
			br.OnStateChange = func(from, to BreakerState) {
				m.BreakerState.WithLabelValues(name).Set(float64(to))
				if to == BreakerOpen {
					m.BreakerTrips.WithLabelValues(name).Inc()
				}
			}
		}
		r.breakers[name] = br
		if r.catalog == nil {
			if cat, ok := v.(OptionCatalog); ok {
				r.catalog = cat
			}
		}
	}
	return r
}

// Venues returns the configured venue names in priority order.
func (r *Resolver) Venues() []string {
	names := make([]string, len(r.venues))
	for i, v := range r.venues {
		names[i] = v.Name()
	}
	return names
}

// call routes one venue query through that venue's breaker and records
// metrics for it.
func (r *Resolver) call(v Venue, fn func() (float64, error)) (float64, error) {
	var price float64
	start := time.Now()
	err := r.breakers[v.Name()].Execute(func() error {
		var err error
		price, err = fn()
		return err
	})
	if r.m != nil && !errors.Is(err, ErrBreakerOpen) {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		r.m.VenueRequests.WithLabelValues(v.Name(), outcome).Inc()
		r.m.VenueRequestDur.WithLabelValues(v.Name()).Observe(time.Since(start).Seconds())
	}
	return price, err
}

func (r *Resolver) priceFrom(ctx context.Context, v Venue, asset string, kind PriceKind) (float64, error) {
	return r.call(v, func() (float64, error) {
		if kind == Perpetual {
			return v.PerpetualPrice(ctx, asset)
		}
		return v.SpotPrice(ctx, asset)
	})
}

// ResolvePrice returns the first positive price in venue priority order,
// along with the venue that served it.
func (r *Resolver) ResolvePrice(ctx context.Context, asset string, kind PriceKind) (float64, string, error) {
	var errs []error
	for _, v := range r.venues {
		price, err := r.priceFrom(ctx, v, asset, kind)
		if err != nil {
			log.Printf("[resolver] %s %s price for %s: %v", v.Name(), kind, asset, err)
			errs = append(errs, err)
			continue
		}
		if price > 0 {
			return price, v.Name(), nil
		}
	}
	return 0, "", errors.Join(append([]error{ErrNoPrice}, errs...)...)
}

// SpotPrice resolves the spot price by priority fallback.
func (r *Resolver) SpotPrice(ctx context.Context, asset string) (float64, error) {
	price, _, err := r.ResolvePrice(ctx, asset, Spot)
	return price, err
}

// PerpetualPrice resolves the perpetual price by priority fallback.
func (r *Resolver) PerpetualPrice(ctx context.Context, asset string) (float64, error) {
	price, _, err := r.ResolvePrice(ctx, asset, Perpetual)
	return price, err
}

// InstrumentPrice resolves a specific instrument's last price by
// priority fallback. The catalog venue answers option IDs natively;
// the others fall back to the asset's spot price.
func (r *Resolver) InstrumentPrice(ctx context.Context, instrumentID string) (float64, error) {
	var errs []error
	for _, v := range r.venues {
		price, err := r.call(v, func() (float64, error) {
			return v.InstrumentPrice(ctx, instrumentID)
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if price > 0 {
			return price, nil
		}
	}
	return 0, errors.Join(append([]error{ErrNoPrice}, errs...)...)
}

// AllPrices queries every venue independently and returns the successful
// positive quotes keyed by venue name. One venue failing never aborts
// the others.
func (r *Resolver) AllPrices(ctx context.Context, asset string, kind PriceKind) map[string]float64 {
	prices := make(map[string]float64, len(r.venues))
	for _, v := range r.venues {
		price, err := r.priceFrom(ctx, v, asset, kind)
		if err != nil {
			log.Printf("[resolver] %s %s price for %s: %v", v.Name(), kind, asset, err)
			continue
		}
		if price > 0 {
			prices[v.Name()] = price
		}
	}
	return prices
}

// HistoricalPrices fetches a close-price series, falling back through
// the venue priority order. When every venue fails it returns an empty
// series; callers must treat an empty or short series as insufficient
// data, not as zero-valued prices.
func (r *Resolver) HistoricalPrices(ctx context.Context, asset string, days int) []float64 {
	for _, v := range r.venues {
		var series []float64
		_, err := r.call(v, func() (float64, error) {
			var err error
			series, err = v.HistoricalPrices(ctx, asset, days)
			return 0, err
		})
		if err != nil {
			log.Printf("[resolver] %s history for %s: %v", v.Name(), asset, err)
			continue
		}
		if len(series) > 0 {
			return series
		}
	}
	return nil
}

// FindOptionInstrument delegates to the catalog venue.
func (r *Resolver) FindOptionInstrument(ctx context.Context, asset string, strike float64, days int, kind model.OptionKind) (Instrument, error) {
	if r.catalog == nil {
		return Instrument{}, ErrNoCatalog
	}
	return r.catalog.FindOptionInstrument(ctx, asset, strike, days, kind)
}

// Quote is one venue's price.
type Quote struct {
	Venue string  `json:"venue"`
	Price float64 `json:"price"`
}

// Spread summarizes the dispersion of quotes across venues.
type Spread struct {
	Max float64 `json:"max_price"`
	Min float64 `json:"min_price"`
	Abs float64 `json:"spread_abs"`
	Pct float64 `json:"spread_pct"`
}

// Summary is a cross-venue market snapshot for one asset.
type Summary struct {
	Asset      string             `json:"asset"`
	SpotPrices map[string]float64 `json:"spot_prices"`
	PerpPrices map[string]float64 `json:"perpetual_prices"`
	BestSpot   *Quote             `json:"best_spot,omitempty"`
	BestPerp   *Quote             `json:"best_perpetual,omitempty"`
	SpotSpread *Spread            `json:"spot_spread,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
}

func cheapest(prices map[string]float64) *Quote {
	var best *Quote
	for venue, price := range prices {
		if best == nil || price < best.Price {
			best = &Quote{Venue: venue, Price: price}
		}
	}
	return best
}

// MarketSummary reports spot and perpetual prices across all venues,
// the cheapest quote of each, and the spot spread when more than one
// venue answered.
func (r *Resolver) MarketSummary(ctx context.Context, asset string) Summary {
	s := Summary{
		Asset:      asset,
		SpotPrices: r.AllPrices(ctx, asset, Spot),
		PerpPrices: r.AllPrices(ctx, asset, Perpetual),
		Timestamp:  time.Now(),
	}
	s.BestSpot = cheapest(s.SpotPrices)
	s.BestPerp = cheapest(s.PerpPrices)

	if len(s.SpotPrices) > 1 {
		sp := &Spread{}
		first := true
		for _, p := range s.SpotPrices {
			if first {
				sp.Min, sp.Max = p, p
				first = false
				continue
			}
			if p < sp.Min {
				sp.Min = p
			}
			if p > sp.Max {
				sp.Max = p
			}
		}
		sp.Abs = sp.Max - sp.Min
		sp.Pct = sp.Abs / sp.Min * 100
		s.SpotSpread = sp
	}
	return s
}
