package venue

import (
	"errors"
	"sync"
	"time"
)

// BreakerState represents the circuit breaker state for one venue.
type BreakerState int

const (
	BreakerClosed   BreakerState = 0 // requests pass through
	BreakerOpen     BreakerState = 1 // venue skipped immediately
	BreakerHalfOpen BreakerState = 2 // one probe request allowed
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen is returned when a venue's breaker is open and its
// reset timeout has not elapsed. The Resolver treats it like any other
// venue error and moves on to the next venue in priority order.
var ErrBreakerOpen = errors.New("venue: circuit breaker open")

// Breaker isolates a flapping venue from the fallback chain. After
// maxFailures consecutive failures it opens and rejects calls for
// resetTimeout, then allows one half-open probe; a successful probe
// closes it again.
type Breaker struct {
	mu          sync.Mutex
	state       BreakerState
	failures    int
	maxFailures int
	resetAfter  time.Duration
	lastFailure time.Time

	// OnStateChange is called on transitions (used for metrics).
	OnStateChange func(from, to BreakerState)
}

// NewBreaker creates a breaker that opens after maxFailures consecutive
// failures and probes again after resetAfter.
func NewBreaker(maxFailures int, resetAfter time.Duration) *Breaker {
	return &Breaker{
		maxFailures: maxFailures,
		resetAfter:  resetAfter,
		state:       BreakerClosed,
	}
}

// Execute runs fn through the breaker.
func (b *Breaker) Execute(fn func() error) error {
	b.mu.Lock()
	if b.state == BreakerOpen {
		if time.Since(b.lastFailure) > b.resetAfter {
			b.transition(BreakerHalfOpen)
		} else {
			b.mu.Unlock()
			return ErrBreakerOpen
		}
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failures++
		b.lastFailure = time.Now()
		if b.state == BreakerHalfOpen || b.failures >= b.maxFailures {
			b.transition(BreakerOpen)
		}
		return err
	}
	if b.state == BreakerHalfOpen {
		b.transition(BreakerClosed)
	}
	b.failures = 0
	return nil
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) transition(to BreakerState) {
	from := b.state
	b.state = to
	if to == BreakerClosed {
		b.failures = 0
	}
	if b.OnStateChange != nil {
		b.OnStateChange(from, to)
	}
}
