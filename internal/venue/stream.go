package venue

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"hedge-systemv1/internal/metrics"
)

const (
	deribitDefaultWSURL = "wss://www.deribit.com/ws/api/v2"
	streamReadTimeout   = 30 * time.Second
	reconnectDelay      = 3 * time.Second
)

// Stream subscribes to Deribit perpetual ticker channels over WebSocket
// and keeps the latest price per asset. It is an optional fast path for
// the monitor; the REST resolver remains the source of truth when a
// quote is missing or stale.
type Stream struct {
	url    string
	assets []string
	m      *metrics.Metrics // nil-safe
	health *metrics.HealthStatus

	mu   sync.RWMutex
	last map[string]float64
	seen map[string]time.Time
}

// NewStream creates a ticker stream for the given assets. url may be
// empty for the production endpoint; m and health may be nil.
func NewStream(url string, assets []string, m *metrics.Metrics, health *metrics.HealthStatus) *Stream {
	if url == "" {
		url = deribitDefaultWSURL
	}
	return &Stream{
		url:    url,
		assets: assets,
		m:      m,
		health: health,
		last:   make(map[string]float64, len(assets)),
		seen:   make(map[string]time.Time, len(assets)),
	}
}

// Last returns the most recent streamed perpetual price for an asset
// and whether it is younger than maxAge.
func (s *Stream) Last(asset string, maxAge time.Duration) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	price, ok := s.last[asset]
	if !ok || price <= 0 {
		return 0, false
	}
	if time.Since(s.seen[asset]) > maxAge {
		return 0, false
	}
	return price, true
}

// Run connects, subscribes, and consumes ticker updates until ctx is
// cancelled, reconnecting on any error.
func (s *Stream) Run(ctx context.Context) {
	for {
		if err := s.connectOnce(ctx); err != nil {
			log.Printf("[stream] connection ended: %v", err)
		}
		if s.health != nil {
			s.health.SetStreamConnected(false)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
			if s.m != nil {
				s.m.WSReconnects.Inc()
			}
		}
	}
}

type wsRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      int            `json:"id"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params"`
}

type wsNotification struct {
	Method string `json:"method"`
	Params struct {
		Channel string `json:"channel"`
		Data    struct {
			InstrumentName string  `json:"instrument_name"`
			LastPrice      float64 `json:"last_price"`
		} `json:"data"`
	} `json:"params"`
}

func (s *Stream) connectOnce(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	channels := make([]string, len(s.assets))
	for i, a := range s.assets {
		channels[i] = "ticker." + a + "-PERPETUAL.100ms"
	}
	sub := wsRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "public/subscribe",
		Params:  map[string]any{"channels": channels},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}
	log.Printf("[stream] subscribed to %d ticker channels", len(channels))
	if s.health != nil {
		s.health.SetStreamConnected(true)
	}

	// Close the connection when ctx is cancelled so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		var note wsNotification
		if err := json.Unmarshal(raw, &note); err != nil || note.Method != "subscription" {
			continue
		}
		inst := note.Params.Data.InstrumentName
		price := note.Params.Data.LastPrice
		if inst == "" || price <= 0 {
			continue
		}
		// "BTC-PERPETUAL" → "BTC"
		asset := inst
		for i := 0; i < len(inst); i++ {
			if inst[i] == '-' {
				asset = inst[:i]
				break
			}
		}

		s.mu.Lock()
		s.last[asset] = price
		s.seen[asset] = time.Now()
		s.mu.Unlock()

		if s.m != nil {
			s.m.StreamTicks.Inc()
		}
		if s.health != nil {
			s.health.SetLastQuoteTime(time.Now())
		}
	}
}
