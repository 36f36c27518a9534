package strategy

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"hedge-systemv1/internal/greeks"
	"hedge-systemv1/internal/model"
	"hedge-systemv1/internal/venue"
)

// fakeMarket scripts the price-resolution layer.
type fakeMarket struct {
	spot       float64
	perp       float64
	instPrices map[string]float64
	catalog    map[model.OptionKind]venue.Instrument
	err        error
}

func (f *fakeMarket) SpotPrice(ctx context.Context, asset string) (float64, error) {
	return f.spot, f.err
}

func (f *fakeMarket) PerpetualPrice(ctx context.Context, asset string) (float64, error) {
	return f.perp, f.err
}

func (f *fakeMarket) InstrumentPrice(ctx context.Context, instrumentID string) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.instPrices[instrumentID], nil
}

func (f *fakeMarket) FindOptionInstrument(ctx context.Context, asset string, strike float64, days int, kind model.OptionKind) (venue.Instrument, error) {
	if f.err != nil {
		return venue.Instrument{}, f.err
	}
	inst, ok := f.catalog[kind]
	if !ok {
		return venue.Instrument{}, venue.ErrNoInstrument
	}
	return inst, nil
}

func testMarket() *fakeMarket {
	return &fakeMarket{
		spot: 50000,
		perp: 50100,
		instPrices: map[string]float64{
			"BTC-PUT-48000":  1200,
			"BTC-CALL-55000": 900,
		},
		catalog: map[model.OptionKind]venue.Instrument{
			model.OptionPut: {ID: "BTC-PUT-48000", OptionKind: model.OptionPut, Strike: 48000,
				Expiry: time.Now().AddDate(0, 0, 30)},
			model.OptionCall: {ID: "BTC-CALL-55000", OptionKind: model.OptionCall, Strike: 55000,
				Expiry: time.Now().AddDate(0, 0, 30)},
		},
	}
}

func TestDeltaNeutral(t *testing.T) {
	e := NewEngine(testMarket(), nil)

	// Net exposure +20 units: short 20 perps to flatten.
	res, err := e.DeltaNeutral(context.Background(), "BTC", 100, -80, 10)
	if err != nil {
		t.Fatal(err)
	}
	if res.Strategy != "delta_neutral" {
		t.Errorf("strategy = %s", res.Strategy)
	}
	if res.Size != -20 {
		t.Errorf("size = %g, want -20", res.Size)
	}
	if want := math.Abs(-20 * 50100.0); res.Cost != want {
		t.Errorf("cost = %g, want %g", res.Cost, want)
	}

	// Already flat: zero-size recommendation, zero cost.
	res, err = e.DeltaNeutral(context.Background(), "BTC", 100, -100, 10)
	if err != nil {
		t.Fatal(err)
	}
	if res.Size != 0 || res.Cost != 0 {
		t.Errorf("flat book: size=%g cost=%g, want 0/0", res.Size, res.Cost)
	}
}

func TestDeltaNeutral_EmptyAsset(t *testing.T) {
	e := NewEngine(testMarket(), nil)
	if _, err := e.DeltaNeutral(context.Background(), "", 100, -80, 10); !errors.Is(err, ErrParam) {
		t.Errorf("error = %v, want ErrParam", err)
	}
}

func TestProtectivePut(t *testing.T) {
	e := NewEngine(testMarket(), nil)

	res, err := e.ProtectivePut(context.Background(), "BTC", 2, 48000, 30, 0.6)
	if err != nil {
		t.Fatal(err)
	}
	if res.Strategy != "protective_put" || res.InstrumentID != "BTC-PUT-48000" {
		t.Errorf("result = %+v", res)
	}

	// Size must match the sizer exactly and cost = contracts × premium.
	calc := greeks.Calc{S: 50000, K: 48000, T: 30.0 / 365, R: 0, Sigma: 0.6}
	wantQty, err := greeks.PutSizer{Calc: calc, SpotQty: 2}.HedgeQty()
	if err != nil {
		t.Fatal(err)
	}
	if res.Size != float64(wantQty) {
		t.Errorf("size = %g, want %d", res.Size, wantQty)
	}
	if want := float64(wantQty) * 1200; res.Cost != want {
		t.Errorf("cost = %g, want %g", res.Cost, want)
	}
	if res.Greeks == nil {
		t.Fatal("expected greeks snapshot")
	}
	if res.Greeks.Delta >= 0 || res.Greeks.Delta <= -1 {
		t.Errorf("put delta = %g, want in (-1,0)", res.Greeks.Delta)
	}
	if res.Greeks.Gamma <= 0 || res.Greeks.Vega <= 0 {
		t.Errorf("gamma=%g vega=%g, want both > 0", res.Greeks.Gamma, res.Greeks.Vega)
	}
}

func TestProtectivePut_ParamValidation(t *testing.T) {
	e := NewEngine(testMarket(), nil)
	ctx := context.Background()

	cases := []struct {
		name string
		call func() (model.HedgeResult, error)
	}{
		{"zero qty", func() (model.HedgeResult, error) { return e.ProtectivePut(ctx, "BTC", 0, 48000, 30, 0.6) }},
		{"negative strike", func() (model.HedgeResult, error) { return e.ProtectivePut(ctx, "BTC", 1, -5, 30, 0.6) }},
		{"zero days", func() (model.HedgeResult, error) { return e.ProtectivePut(ctx, "BTC", 1, 48000, 0, 0.6) }},
		{"zero vol", func() (model.HedgeResult, error) { return e.ProtectivePut(ctx, "BTC", 1, 48000, 30, 0) }},
	}
	for _, tc := range cases {
		if _, err := tc.call(); !errors.Is(err, ErrParam) {
			t.Errorf("%s: error = %v, want ErrParam", tc.name, err)
		}
	}
}

func TestCoveredCall(t *testing.T) {
	e := NewEngine(testMarket(), nil)

	// 1.3 spot units round up to 2 short calls.
	res, err := e.CoveredCall(context.Background(), "BTC", 1.3, 55000, 30, 0.6)
	if err != nil {
		t.Fatal(err)
	}
	if res.Size != -2 {
		t.Errorf("size = %g, want -2", res.Size)
	}
	// Premium received: cost is negative.
	if want := -2 * 900.0; res.Cost != want {
		t.Errorf("cost = %g, want %g", res.Cost, want)
	}
	if res.InstrumentID != "BTC-CALL-55000" {
		t.Errorf("instrument = %s", res.InstrumentID)
	}
}

func TestCollar(t *testing.T) {
	e := NewEngine(testMarket(), nil)

	res, err := e.Collar(context.Background(), "BTC", 2, 48000, 55000, 30, 0.6)
	if err != nil {
		t.Fatal(err)
	}
	if res.Strategy != "collar" {
		t.Errorf("strategy = %s", res.Strategy)
	}
	if res.Put == nil || res.Call == nil {
		t.Fatal("expected nested put and call records")
	}
	if res.Put.Strategy != "protective_put" || res.Call.Strategy != "covered_call" {
		t.Errorf("nested strategies: %s / %s", res.Put.Strategy, res.Call.Strategy)
	}
	if res.Size != res.Put.Size {
		t.Errorf("collar size = %g, want put size %g", res.Size, res.Put.Size)
	}
	if want := res.Put.Cost + res.Call.Cost; res.Cost != want {
		t.Errorf("cost = %g, want put+call %g", res.Cost, want)
	}
	// The call premium offsets part of the put cost.
	if res.Cost >= res.Put.Cost {
		t.Errorf("collar cost %g not reduced below put cost %g", res.Cost, res.Put.Cost)
	}
}

func TestEngine_MarketFailurePropagates(t *testing.T) {
	down := &fakeMarket{err: errors.New("all venues down")}
	e := NewEngine(down, nil)
	ctx := context.Background()

	if _, err := e.DeltaNeutral(ctx, "BTC", 100, -80, 10); err == nil {
		t.Error("DeltaNeutral: expected error")
	}
	if _, err := e.ProtectivePut(ctx, "BTC", 1, 48000, 30, 0.6); err == nil {
		t.Error("ProtectivePut: expected error")
	}
	if _, err := e.Collar(ctx, "BTC", 1, 48000, 55000, 30, 0.6); err == nil {
		t.Error("Collar: expected error")
	}
}
