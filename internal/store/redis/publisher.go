// Package redis publishes hedge recommendations, risk reports, and
// monitor updates to Redis for dashboards and downstream consumers.
// Each write fans out to a capped stream (history), a latest key with
// TTL, and a PubSub channel (real-time subscribers).
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"hedge-systemv1/internal/metrics"
	"hedge-systemv1/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	// Stream trimming: roughly a day of minute-interval updates.
	streamMaxLen     = 1500
	defaultLatestTTL = 30 * time.Minute
)

// PublisherConfig configures the Redis publisher.
type PublisherConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Publisher writes hedge advisor output to Redis.
type Publisher struct {
	client *goredis.Client
	m      *metrics.Metrics
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// New creates a Publisher and pings the server. m may be nil.
func New(cfg PublisherConfig, m *metrics.Metrics) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Publisher{client: client, m: m}, nil
}

// PublishHedge writes a hedge recommendation for an asset.
// Keys: hedge:{asset} stream, hedge:latest:{asset}, pub:hedge:{asset}.
func (p *Publisher) PublishHedge(ctx context.Context, asset string, res model.HedgeResult) error {
	return p.fanOut(ctx, "hedge", asset, res)
}

// PublishRiskReport writes a portfolio risk report for an asset.
func (p *Publisher) PublishRiskReport(ctx context.Context, asset string, rep model.RiskReport) error {
	return p.fanOut(ctx, "risk", asset, rep)
}

// PublishMonitorUpdate writes one monitor cycle result.
func (p *Publisher) PublishMonitorUpdate(ctx context.Context, upd model.MonitorUpdate) error {
	return p.fanOut(ctx, "monitor", upd.Asset, upd)
}

// fanOut pipelines XADD + SET + PUBLISH for one payload.
func (p *Publisher) fanOut(ctx context.Context, kind, asset string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	jsonData := string(data)

	streamKey := kind + ":" + asset
	latestKey := kind + ":latest:" + asset
	pubsubCh := "pub:" + kind + ":" + asset

	pipe := p.client.Pipeline()
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: streamKey,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": jsonData},
	})
	pipe.Set(ctx, latestKey, jsonData, defaultLatestTTL)
	pipe.Publish(ctx, pubsubCh, jsonData)

	if _, err := pipe.Exec(ctx); err != nil {
		if p.m != nil {
			p.m.PublishErrors.Inc()
		}
		log.Printf("[redis] %s pipeline error for %s: %v", kind, asset, err)
		return fmt.Errorf("redis %s publish: %w", kind, err)
	}
	return nil
}

// LatestHedge reads the most recent published hedge for an asset.
// Returns false when no hedge has been published or it has expired.
func (p *Publisher) LatestHedge(ctx context.Context, asset string) (model.HedgeResult, bool, error) {
	raw, err := p.client.Get(ctx, "hedge:latest:"+asset).Result()
	if err != nil {
		if err == goredis.Nil {
			return model.HedgeResult{}, false, nil
		}
		return model.HedgeResult{}, false, fmt.Errorf("redis GET: %w", err)
	}
	var res model.HedgeResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return model.HedgeResult{}, false, fmt.Errorf("decode hedge: %w", err)
	}
	return res, true, nil
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
