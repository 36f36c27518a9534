// Package monitor periodically re-evaluates a configured position
// against live prices. It is pure scheduling glue over the synchronous
// core: each cycle resolves prices, builds a fresh risk context, and
// emits a structured update; it never places orders.
package monitor

import (
	"context"
	"log"
	"time"

	"hedge-systemv1/internal/metrics"
	"hedge-systemv1/internal/model"
	"hedge-systemv1/internal/ringbuf"
	"hedge-systemv1/internal/risk"
)

// minVaRSamples is the window fill required before rolling VaR is
// reported.
const minVaRSamples = 10

// Prices resolves live spot/perp prices. *venue.Resolver satisfies it.
type Prices interface {
	SpotPrice(ctx context.Context, asset string) (float64, error)
	PerpetualPrice(ctx context.Context, asset string) (float64, error)
}

// Quotes is an optional streamed fast path for recent prices
// (*venue.Stream satisfies it).
type Quotes interface {
	Last(asset string, maxAge time.Duration) (float64, bool)
}

// Publisher receives monitor updates for the presentation layer.
type Publisher interface {
	PublishMonitorUpdate(ctx context.Context, upd model.MonitorUpdate) error
}

// Config describes the monitored position.
type Config struct {
	Asset        string
	SpotQty      float64
	PerpQty      float64
	ThresholdPct float64
	Interval     time.Duration
	WindowSize   int     // rolling price samples kept for VaR
	Confidence   float64 // VaR confidence level
}

// Monitor drives the periodic evaluation loop.
type Monitor struct {
	cfg    Config
	market Prices
	stream Quotes           // nil disables the fast path
	pub    Publisher        // nil disables publishing
	m      *metrics.Metrics // nil-safe

	// OnSignal is invoked whenever a cycle crosses the hedge threshold.
	OnSignal func(ctx context.Context, upd model.MonitorUpdate)

	window *ringbuf.Window
}

// New creates a monitor. stream, pub, and m may be nil.
func New(cfg Config, market Prices, stream Quotes, pub Publisher, m *metrics.Metrics) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.WindowSize < minVaRSamples {
		cfg.WindowSize = 360
	}
	if cfg.Confidence == 0 {
		cfg.Confidence = 0.95
	}
	return &Monitor{
		cfg:    cfg,
		market: market,
		stream: stream,
		pub:    pub,
		m:      m,
		window: ringbuf.NewWindow(cfg.WindowSize),
	}
}

// Run evaluates the position every interval until ctx is cancelled.
func (mo *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(mo.cfg.Interval)
	defer ticker.Stop()
	log.Printf("[monitor] watching %s every %s (threshold %.1f%%)",
		mo.cfg.Asset, mo.cfg.Interval, mo.cfg.ThresholdPct)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			upd, err := mo.Evaluate(ctx)
			if err != nil {
				log.Printf("[monitor] %s evaluation: %v", mo.cfg.Asset, err)
				continue
			}
			if mo.pub != nil {
				if err := mo.pub.PublishMonitorUpdate(ctx, upd); err != nil {
					log.Printf("[monitor] publish update: %v", err)
				}
			}
		}
	}
}

// spotPrice prefers a fresh streamed quote over a REST round trip.
func (mo *Monitor) spotPrice(ctx context.Context) (float64, error) {
	if mo.stream != nil {
		if px, ok := mo.stream.Last(mo.cfg.Asset, mo.cfg.Interval); ok {
			return px, nil
		}
	}
	return mo.market.SpotPrice(ctx, mo.cfg.Asset)
}

// Evaluate performs one synchronous cycle: resolve prices, rebuild the
// risk context from current exposure values, and compute rolling VaR
// over the price window.
func (mo *Monitor) Evaluate(ctx context.Context) (model.MonitorUpdate, error) {
	if mo.m != nil {
		mo.m.MonitorCycles.Inc()
	}

	spotPrice, err := mo.spotPrice(ctx)
	if err != nil {
		return model.MonitorUpdate{}, err
	}
	perpPrice, err := mo.market.PerpetualPrice(ctx, mo.cfg.Asset)
	if err != nil {
		return model.MonitorUpdate{}, err
	}

	mo.window.Push(spotPrice)

	rc := risk.Context{
		Spot:         mo.cfg.SpotQty * spotPrice,
		Perp:         mo.cfg.PerpQty * perpPrice,
		ThresholdPct: mo.cfg.ThresholdPct,
	}

	upd := model.MonitorUpdate{
		Asset:          mo.cfg.Asset,
		SpotQty:        mo.cfg.SpotQty,
		PerpQty:        mo.cfg.PerpQty,
		SpotPrice:      spotPrice,
		PerpPrice:      perpPrice,
		NetDelta:       rc.NetDelta(),
		ThresholdLimit: rc.ThresholdLimit(),
		NeedsHedge:     rc.NeedsHedge(),
		Timestamp:      time.Now(),
	}

	if mo.window.Len() >= minVaRSamples {
		if v, err := rc.ValueAtRisk(mo.window.Values(), mo.cfg.Confidence); err == nil {
			upd.RollingVaR = v
		}
	}

	if upd.NeedsHedge {
		if mo.m != nil {
			mo.m.HedgeSignals.Inc()
		}
		log.Printf("[monitor] %s net delta $%.2f exceeds limit $%.2f",
			mo.cfg.Asset, upd.NetDelta, upd.ThresholdLimit)
		if mo.OnSignal != nil {
			mo.OnSignal(ctx, upd)
		}
	}
	return upd, nil
}
