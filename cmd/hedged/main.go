// cmd/hedged — Delta-hedge advisor daemon.
// Resolves prices across Deribit/OKX/Bybit, monitors configured
// positions against a net-delta threshold, and publishes hedge
// recommendations. It advises only; it never places orders.
//
// Config (env vars, .env supported):
//
//	ASSETS             — comma-separated assets to monitor (default: "BTC")
//	SPOT_QTY           — monitored spot quantity per asset (default: 1.0)
//	PERP_QTY           — monitored perp quantity per asset (default: 0)
//	THRESHOLD_PERCENT  — hedge trigger as % of spot exposure (default: 10)
//	MONITOR_INTERVAL   — evaluation cadence (default: 1m)
//	REDIS_ADDR         — publish target; empty disables publishing
//	JOURNAL_PATH       — sqlite hedge journal; empty keeps it in-memory
//	METRICS_ADDR       — /metrics and /healthz listen address (default: ":9090")
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hedge-systemv1/config"
	"hedge-systemv1/internal/journal"
	"hedge-systemv1/internal/logger"
	"hedge-systemv1/internal/metrics"
	"hedge-systemv1/internal/model"
	"hedge-systemv1/internal/monitor"
	redisstore "hedge-systemv1/internal/store/redis"
	"hedge-systemv1/internal/strategy"
	"hedge-systemv1/internal/venue"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[hedged] starting...")

	cfg := config.Load()
	lg := logger.Init("hedged", logger.ParseLevel(cfg.LogLevel))

	assets := cfg.ParseAssets()
	if len(assets) == 0 {
		log.Fatalf("[hedged] no assets configured via ASSETS")
	}
	log.Printf("[hedged] monitoring %v (spot=%g perp=%g threshold=%.1f%%)",
		assets, cfg.SpotQty, cfg.PerpQty, cfg.ThresholdPct)

	// ---- Metrics & health ----
	prom := metrics.New()
	health := metrics.NewHealthStatus()
	go func() {
		if err := metrics.Serve(cfg.MetricsAddr, health); err != nil {
			log.Printf("[hedged] metrics server: %v", err)
		}
	}()

	// ---- Graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Venue clients & resolver (priority order) ----
	deribit := venue.NewDeribit(venue.DeribitConfig{
		BaseURL: cfg.DeribitBaseURL, Timeout: cfg.HTTPTimeout,
	}, prom)
	okx := venue.NewOKX(venue.OKXConfig{
		BaseURL: cfg.OKXBaseURL, Timeout: cfg.HTTPTimeout,
	}, prom)
	bybit := venue.NewBybit(venue.BybitConfig{
		BaseURL: cfg.BybitBaseURL, Timeout: cfg.HTTPTimeout,
	}, prom)
	resolver := venue.NewResolver(prom, deribit, okx, bybit)
	health.SetVenues(resolver.Venues())

	// ---- Deribit WS fast path for perp quotes ----
	stream := venue.NewStream(cfg.DeribitWSURL, assets, prom, health)
	go stream.Run(ctx)

	// ---- Hedge journal ----
	jnl, err := journal.New(cfg.JournalPath, prom)
	if err != nil {
		log.Fatalf("[hedged] journal init failed: %v", err)
	}
	defer jnl.Close()
	health.SetJournalOK(true)

	// ---- Redis publisher (optional) ----
	var pub *redisstore.Publisher
	if cfg.RedisAddr != "" {
		pub, err = redisstore.New(redisstore.PublisherConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}, prom)
		if err != nil {
			log.Printf("[hedged] WARNING: redis init failed: %v (continuing without redis)", err)
		}
	}
	if pub != nil {
		health.SetRedisEnabled(true)
		health.StartLivenessChecker(ctx, pub.Client(), 10*time.Second)
		defer pub.Close()
	} else {
		health.StartLivenessChecker(ctx, nil, 10*time.Second)
	}

	// ---- Strategy engine ----
	engine := strategy.NewEngine(resolver, prom)

	// ---- Per-asset monitors ----
	for _, asset := range assets {
		asset := asset
		alog := logger.ForAsset(lg, asset)

		var monPub monitor.Publisher
		if pub != nil {
			monPub = pub
		}
		mon := monitor.New(monitor.Config{
			Asset:        asset,
			SpotQty:      cfg.SpotQty,
			PerpQty:      cfg.PerpQty,
			ThresholdPct: cfg.ThresholdPct,
			Interval:     cfg.MonitorInterval,
			WindowSize:   cfg.WindowSize,
			Confidence:   cfg.Confidence,
		}, resolver, stream, monPub, prom)

		// Threshold crossings produce a delta-neutral recommendation.
		mon.OnSignal = func(ctx context.Context, upd model.MonitorUpdate) {
			ctx = logger.WithCycleID(ctx, logger.NewCycleID(asset, upd.Timestamp))
			res, err := engine.DeltaNeutral(ctx, asset, cfg.SpotQty, cfg.PerpQty, cfg.ThresholdPct)
			if err != nil {
				alog.Error("hedge computation failed", append(logger.CycleAttrs(ctx), "err", err)...)
				return
			}
			jnl.Record(asset, res)
			alog.Info("hedge recommended",
				append(logger.CycleAttrs(ctx),
					"size", res.Size, "cost", res.Cost, "strategy", res.Strategy)...)
			if pub != nil {
				if err := pub.PublishHedge(ctx, asset, res); err != nil {
					alog.Error("hedge publish failed", "err", err)
				}
			}
		}

		go mon.Run(ctx)
	}

	log.Printf("[hedged] ready: %d monitors, venues=%v, interval=%s",
		len(assets), resolver.Venues(), cfg.MonitorInterval)

	// ---- Wait for shutdown signal ----
	<-sigCh
	log.Println("[hedged] shutdown signal received, cleaning up...")
	cancel()

	// Give monitors a moment to finish in-flight cycles.
	time.Sleep(500 * time.Millisecond)
	log.Println("[hedged] shutdown complete.")
}
