package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"hedge-systemv1/internal/metrics"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 3
	defaultBackoff    = 300 * time.Millisecond
)

// transport is the shared HTTP layer beneath every venue client. It
// retries transient failures (429, 5xx, network errors) with exponential
// backoff; every other status is surfaced immediately.
type transport struct {
	client     *http.Client
	maxRetries int
	backoff    time.Duration
	metrics    *metrics.Metrics // nil-safe
}

func newTransport(timeout time.Duration, m *metrics.Metrics) *transport {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &transport{
		client:     &http.Client{Timeout: timeout},
		maxRetries: defaultMaxRetries,
		backoff:    defaultBackoff,
		metrics:    m,
	}
}

func retriableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// getJSON performs a GET with query params and decodes the JSON body
// into out. Transient failures are retried up to maxRetries times with
// doubling backoff (0.3s, 0.6s, 1.2s ...).
func (t *transport) getJSON(ctx context.Context, rawURL string, params url.Values, out any) error {
	u := rawURL
	if len(params) > 0 {
		u = rawURL + "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if attempt > 0 {
			if t.metrics != nil {
				t.metrics.VenueRetries.Inc()
			}
			delay := t.backoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := t.client.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		if retriableStatus(resp.StatusCode) {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
			log.Printf("[venue] GET %s: %v (attempt %d/%d)", rawURL, lastErr, attempt+1, t.maxRetries+1)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, body)
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("retries exhausted: %w", lastErr)
}
