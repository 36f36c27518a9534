package metrics

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the hedge advisor.
type Metrics struct {
	// Venue transport
	VenueRequests   *prometheus.CounterVec   // labels: venue, outcome=ok|error
	VenueRequestDur *prometheus.HistogramVec // labels: venue
	VenueRetries    prometheus.Counter

	// Per-venue circuit breaker
	BreakerState *prometheus.GaugeVec   // labels: venue; 0=closed, 1=open, 2=half-open
	BreakerTrips *prometheus.CounterVec // labels: venue

	// Venue WebSocket price stream
	StreamTicks  prometheus.Counter
	WSReconnects prometheus.Counter

	// Strategy engine
	HedgesComputed  *prometheus.CounterVec // labels: strategy, outcome=ok|error
	HedgeComputeDur prometheus.Histogram

	// Monitor loop
	MonitorCycles prometheus.Counter
	HedgeSignals  prometheus.Counter // cycles where the threshold was breached

	// Publisher / journal
	PublishErrors prometheus.Counter
	JournalWrites prometheus.Counter
}

// New registers and returns all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		VenueRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hedged_venue_requests_total",
			Help: "Venue API requests by venue and outcome",
		}, []string{"venue", "outcome"}),
		VenueRequestDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hedged_venue_request_duration_seconds",
			Help:    "Venue API request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"venue"}),
		VenueRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hedged_venue_retries_total",
			Help: "Transport-level retries after 429/5xx or network errors",
		}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hedged_venue_breaker_state",
			Help: "Per-venue circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"venue"}),
		BreakerTrips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hedged_venue_breaker_trips_total",
			Help: "Times a venue circuit breaker tripped open",
		}, []string{"venue"}),
		StreamTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hedged_stream_ticks_total",
			Help: "Ticker updates received on the venue WebSocket stream",
		}),
		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hedged_ws_reconnects_total",
			Help: "WebSocket stream reconnection attempts",
		}),
		HedgesComputed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hedged_hedges_computed_total",
			Help: "Hedge recommendations computed by strategy and outcome",
		}, []string{"strategy", "outcome"}),
		HedgeComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hedged_hedge_compute_duration_seconds",
			Help:    "Strategy computation latency including venue queries",
			Buckets: prometheus.DefBuckets,
		}),
		MonitorCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hedged_monitor_cycles_total",
			Help: "Periodic risk monitor evaluations",
		}),
		HedgeSignals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hedged_hedge_signals_total",
			Help: "Monitor cycles where net delta breached the threshold",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hedged_publish_errors_total",
			Help: "Failed Redis publishes of hedge results or reports",
		}),
		JournalWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hedged_journal_writes_total",
			Help: "Hedge recommendations persisted to the journal",
		}),
	}

	prometheus.MustRegister(
		m.VenueRequests,
		m.VenueRequestDur,
		m.VenueRetries,
		m.BreakerState,
		m.BreakerTrips,
		m.StreamTicks,
		m.WSReconnects,
		m.HedgesComputed,
		m.HedgeComputeDur,
		m.MonitorCycles,
		m.HedgeSignals,
		m.PublishErrors,
		m.JournalWrites,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	StreamConnected bool      `json:"stream_connected"`
	LastQuoteTime   time.Time `json:"last_quote_time"`
	RedisEnabled    bool      `json:"redis_enabled"`
	RedisConnected  bool      `json:"redis_connected"`
	JournalOK       bool      `json:"journal_ok"`
	Venues          []string  `json:"venues"`

	RedisLatencyMs float64   `json:"redis_latency_ms"`
	LastCheckAt    time.Time `json:"last_check_at"`
	StartedAt      time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

func (h *HealthStatus) SetStreamConnected(v bool) {
	h.mu.Lock()
	h.StreamConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastQuoteTime(t time.Time) {
	h.mu.Lock()
	h.LastQuoteTime = t
	h.mu.Unlock()
}

// SetRedisEnabled marks whether a Redis publisher is configured.
// When false, Redis connectivity does not count against health.
func (h *HealthStatus) SetRedisEnabled(v bool) {
	h.mu.Lock()
	h.RedisEnabled = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetJournalOK(v bool) {
	h.mu.Lock()
	h.JournalOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetVenues(names []string) {
	h.mu.Lock()
	h.Venues = names
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, interval time.Duration) {
	check := func() {
		if rdb == nil {
			return
		}
		probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		h.CheckRedis(probeCtx, rdb)
		cancel()
	}
	go func() {
		check()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				check()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.JournalOK || (h.RedisEnabled && !h.RedisConnected) {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	quoteAge := ""
	if !h.LastQuoteTime.IsZero() {
		quoteAge = time.Since(h.LastQuoteTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string   `json:"status"`
		Uptime          string   `json:"uptime"`
		StreamConnected bool     `json:"stream_connected"`
		LastQuoteTime   string   `json:"last_quote_time"`
		QuoteAge        string   `json:"quote_age"`
		RedisEnabled    bool     `json:"redis_enabled"`
		RedisConnected  bool     `json:"redis_connected"`
		RedisLatencyMs  float64  `json:"redis_latency_ms"`
		JournalOK       bool     `json:"journal_ok"`
		Venues          []string `json:"venues"`
		LastCheckAt     string   `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		StreamConnected: h.StreamConnected,
		LastQuoteTime:   h.LastQuoteTime.Format(time.RFC3339),
		QuoteAge:        quoteAge,
		RedisEnabled:    h.RedisEnabled,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		JournalOK:       h.JournalOK,
		Venues:          h.Venues,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Serve runs an HTTP server exposing /metrics and /healthz.
// Blocks until the server exits.
func Serve(addr string, health *HealthStatus) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if health != nil {
		mux.Handle("/healthz", health)
	}
	log.Printf("[metrics] serving /metrics and /healthz on %s", addr)
	return http.ListenAndServe(addr, mux)
}
