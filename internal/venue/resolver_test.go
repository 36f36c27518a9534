package venue

import (
	"context"
	"errors"
	"testing"
	"time"

	"hedge-systemv1/internal/model"
)

// fakeVenue is a scriptable in-memory venue.
type fakeVenue struct {
	name    string
	spot    float64
	perp    float64
	history []float64
	err     error
	calls   int
}

func (f *fakeVenue) Name() string { return f.name }

func (f *fakeVenue) SpotPrice(ctx context.Context, asset string) (float64, error) {
	f.calls++
	return f.spot, f.err
}

func (f *fakeVenue) PerpetualPrice(ctx context.Context, asset string) (float64, error) {
	f.calls++
	return f.perp, f.err
}

func (f *fakeVenue) InstrumentPrice(ctx context.Context, instrumentID string) (float64, error) {
	f.calls++
	return f.spot, f.err
}

func (f *fakeVenue) HistoricalPrices(ctx context.Context, asset string, days int) ([]float64, error) {
	f.calls++
	return f.history, f.err
}

// fakeCatalogVenue additionally lists one option contract.
type fakeCatalogVenue struct {
	fakeVenue
	inst Instrument
}

func (f *fakeCatalogVenue) FindOptionInstrument(ctx context.Context, asset string, strike float64, days int, kind model.OptionKind) (Instrument, error) {
	if f.err != nil {
		return Instrument{}, f.err
	}
	return f.inst, nil
}

func TestResolver_PriorityFallback(t *testing.T) {
	primary := &fakeVenue{name: "primary", err: errors.New("down")}
	secondary := &fakeVenue{name: "secondary", spot: 64100}
	tertiary := &fakeVenue{name: "tertiary", spot: 64200}
	r := NewResolver(nil, primary, secondary, tertiary)

	price, venue, err := r.ResolvePrice(context.Background(), "BTC", Spot)
	if err != nil {
		t.Fatal(err)
	}
	if price != 64100 || venue != "secondary" {
		t.Errorf("ResolvePrice = (%g, %s), want (64100, secondary)", price, venue)
	}
	// Priority fallback stops at the first healthy venue.
	if tertiary.calls != 0 {
		t.Errorf("tertiary saw %d calls, want 0", tertiary.calls)
	}
}

func TestResolver_SkipsNonPositivePrices(t *testing.T) {
	primary := &fakeVenue{name: "primary", spot: 0} // no error, but unusable
	secondary := &fakeVenue{name: "secondary", spot: 3200}
	r := NewResolver(nil, primary, secondary)

	price, err := r.SpotPrice(context.Background(), "ETH")
	if err != nil {
		t.Fatal(err)
	}
	if price != 3200 {
		t.Errorf("price = %g, want 3200", price)
	}
}

func TestResolver_AllVenuesDown(t *testing.T) {
	a := &fakeVenue{name: "a", err: errors.New("timeout")}
	b := &fakeVenue{name: "b", err: errors.New("http 503")}
	r := NewResolver(nil, a, b)

	_, _, err := r.ResolvePrice(context.Background(), "BTC", Perpetual)
	if !errors.Is(err, ErrNoPrice) {
		t.Errorf("error = %v, want ErrNoPrice", err)
	}
}

func TestResolver_AllPricesIsolatesFailures(t *testing.T) {
	a := &fakeVenue{name: "a", perp: 64000}
	b := &fakeVenue{name: "b", err: errors.New("down")}
	c := &fakeVenue{name: "c", perp: 64150}
	r := NewResolver(nil, a, b, c)

	prices := r.AllPrices(context.Background(), "BTC", Perpetual)
	if len(prices) != 2 {
		t.Fatalf("got %d quotes, want 2: %v", len(prices), prices)
	}
	if prices["a"] != 64000 || prices["c"] != 64150 {
		t.Errorf("prices = %v", prices)
	}
}

func TestResolver_HistoricalPricesFallback(t *testing.T) {
	a := &fakeVenue{name: "a", err: errors.New("down")}
	b := &fakeVenue{name: "b", history: []float64{100, 101, 99}}
	r := NewResolver(nil, a, b)

	series := r.HistoricalPrices(context.Background(), "BTC", 7)
	if len(series) != 3 || series[0] != 100 {
		t.Errorf("series = %v, want [100 101 99]", series)
	}

	// Total failure yields an empty series, not an abort.
	rDown := NewResolver(nil, &fakeVenue{name: "x", err: errors.New("down")})
	if got := rDown.HistoricalPrices(context.Background(), "BTC", 7); len(got) != 0 {
		t.Errorf("series = %v, want empty", got)
	}
}

func TestResolver_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	flaky := &fakeVenue{name: "flaky", err: errors.New("down")}
	healthy := &fakeVenue{name: "healthy", spot: 100}
	r := NewResolver(nil, flaky, healthy)
	ctx := context.Background()

	for i := 0; i < breakerMaxFailures; i++ {
		if _, err := r.SpotPrice(ctx, "BTC"); err != nil {
			t.Fatalf("healthy fallback should mask the failure: %v", err)
		}
	}
	if got := r.breakers["flaky"].State(); got != BreakerOpen {
		t.Fatalf("flaky breaker = %v, want open", got)
	}

	// Once open, the flaky venue is skipped without being called.
	before := flaky.calls
	if _, err := r.SpotPrice(ctx, "BTC"); err != nil {
		t.Fatal(err)
	}
	if flaky.calls != before {
		t.Errorf("flaky saw %d extra calls while open", flaky.calls-before)
	}
}

func TestResolver_OptionCatalogDiscovery(t *testing.T) {
	want := Instrument{ID: "BTC-26JUN26-60000-P", OptionKind: model.OptionPut, Strike: 60000,
		Expiry: time.Now().AddDate(0, 0, 30)}
	plain := &fakeVenue{name: "plain", spot: 100}
	catalog := &fakeCatalogVenue{fakeVenue: fakeVenue{name: "catalog", spot: 100}, inst: want}
	r := NewResolver(nil, plain, catalog)

	got, err := r.FindOptionInstrument(context.Background(), "BTC", 60000, 30, model.OptionPut)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != want.ID {
		t.Errorf("instrument = %s, want %s", got.ID, want.ID)
	}

	// No catalog venue configured.
	rNone := NewResolver(nil, plain)
	if _, err := rNone.FindOptionInstrument(context.Background(), "BTC", 60000, 30, model.OptionPut); !errors.Is(err, ErrNoCatalog) {
		t.Errorf("error = %v, want ErrNoCatalog", err)
	}
}

func TestResolver_MarketSummary(t *testing.T) {
	a := &fakeVenue{name: "a", spot: 64000, perp: 64010}
	b := &fakeVenue{name: "b", spot: 64200, perp: 64190}
	r := NewResolver(nil, a, b)

	s := r.MarketSummary(context.Background(), "BTC")
	if s.Asset != "BTC" {
		t.Errorf("asset = %s", s.Asset)
	}
	if s.BestSpot == nil || s.BestSpot.Venue != "a" || s.BestSpot.Price != 64000 {
		t.Errorf("BestSpot = %+v, want venue a at 64000", s.BestSpot)
	}
	if s.SpotSpread == nil {
		t.Fatal("expected spot spread with two venues")
	}
	if s.SpotSpread.Abs != 200 {
		t.Errorf("spread abs = %g, want 200", s.SpotSpread.Abs)
	}

	// Single venue: no spread.
	s1 := NewResolver(nil, a).MarketSummary(context.Background(), "BTC")
	if s1.SpotSpread != nil {
		t.Errorf("unexpected spread with one venue: %+v", s1.SpotSpread)
	}
}
