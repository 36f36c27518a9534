// cmd/riskreport computes a one-shot risk report or hedge
// recommendation from live venue data and prints it as JSON.
//
// Usage:
//
//	go run ./cmd/riskreport --asset=BTC --spot=1.5 --perp=-0.5 --days=30
//	go run ./cmd/riskreport --asset=BTC --strategy=protective_put --spot=2 --strike=60000 --vol=0.65
//	go run ./cmd/riskreport --asset=BTC --last
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"hedge-systemv1/config"
	"hedge-systemv1/internal/metrics"
	"hedge-systemv1/internal/model"
	"hedge-systemv1/internal/report"
	redisstore "hedge-systemv1/internal/store/redis"
	"hedge-systemv1/internal/strategy"
	"hedge-systemv1/internal/venue"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	asset := flag.String("asset", "BTC", "Asset symbol")
	spotQty := flag.Float64("spot", 1.0, "Spot quantity held")
	perpQty := flag.Float64("perp", 0, "Perpetual quantity held (signed)")
	threshold := flag.Float64("threshold", 10, "Hedge trigger as % of spot exposure")
	days := flag.Int("days", 30, "Historical lookback in days")
	confidence := flag.Float64("confidence", 0.95, "VaR confidence level")
	strategyName := flag.String("strategy", "", "Hedge strategy: delta_neutral, protective_put, covered_call, collar (empty = risk report)")
	strike := flag.Float64("strike", 0, "Option strike (put strike for collar)")
	callStrike := flag.Float64("call-strike", 0, "Call strike for collar")
	expiryDays := flag.Int("expiry-days", 30, "Option days to expiry")
	vol := flag.Float64("vol", 0.6, "Implied volatility, annualized")
	last := flag.Bool("last", false, "Print the last hedge published to Redis by hedged and exit")
	flag.Parse()

	cfg := config.Load()
	prom := metrics.New()

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

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var out any
	var err error
	switch {
	case *last:
		out, err = lastHedge(ctx, cfg, *asset)
	case *strategyName == "":
		out, err = buildReport(ctx, resolver, *asset, *spotQty, *perpQty, *days, *confidence)
	default:
		out, err = runStrategy(ctx, resolver, prom, *strategyName,
			*asset, *spotQty, *perpQty, *threshold, *strike, *callStrike, *expiryDays, *vol)
	}
	if err != nil {
		log.Fatalf("[riskreport] %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("[riskreport] encode: %v", err)
	}
}

func buildReport(ctx context.Context, r *venue.Resolver, asset string, spotQty, perpQty float64, days int, confidence float64) (model.RiskReport, error) {
	spotPx, err := r.SpotPrice(ctx, asset)
	if err != nil {
		return model.RiskReport{}, err
	}
	return report.Build(ctx, r, asset, spotQty*spotPx, perpQty*spotPx, days, confidence)
}

// lastHedge reads back the most recent hedge that hedged published.
func lastHedge(ctx context.Context, cfg *config.Config, asset string) (model.HedgeResult, error) {
	if cfg.RedisAddr == "" {
		return model.HedgeResult{}, fmt.Errorf("--last requires REDIS_ADDR")
	}
	pub, err := redisstore.New(redisstore.PublisherConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}, nil)
	if err != nil {
		return model.HedgeResult{}, err
	}
	defer pub.Close()

	res, ok, err := pub.LatestHedge(ctx, asset)
	if err != nil {
		return model.HedgeResult{}, err
	}
	if !ok {
		return model.HedgeResult{}, fmt.Errorf("no hedge published for %s", asset)
	}
	return res, nil
}

func runStrategy(ctx context.Context, r *venue.Resolver, prom *metrics.Metrics, name, asset string, spotQty, perpQty, threshold, strike, callStrike float64, expiryDays int, vol float64) (model.HedgeResult, error) {
	engine := strategy.NewEngine(r, prom)
	switch name {
	case "delta_neutral":
		return engine.DeltaNeutral(ctx, asset, spotQty, perpQty, threshold)
	case "protective_put":
		return engine.ProtectivePut(ctx, asset, spotQty, strike, expiryDays, vol)
	case "covered_call":
		return engine.CoveredCall(ctx, asset, spotQty, strike, expiryDays, vol)
	case "collar":
		return engine.Collar(ctx, asset, spotQty, strike, callStrike, expiryDays, vol)
	default:
		return model.HedgeResult{}, flagError(name)
	}
}

type flagError string

func (e flagError) Error() string {
	return "unknown strategy " + string(e) + " (want delta_neutral, protective_put, covered_call, or collar)"
}
