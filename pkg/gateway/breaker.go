package gateway

import (
	"sync"
	"time"
)

// Breaker states.
const (
	BreakerClosed   = "closed"
	BreakerOpen     = "open"
	BreakerHalfOpen = "half-open"
)

// BreakerState is a point-in-time snapshot of one provider's circuit
// breaker, exposed through the gateway's status surface.
type BreakerState struct {
	// State is closed, open, or half-open
	State string `json:"state"`

	// FailureCount is the current consecutive failure count
	FailureCount int `json:"failure_count"`

	// LastFailure is when the most recent failure occurred
	LastFailure time.Time `json:"last_failure,omitempty"`

	// NextAttempt is when an open breaker will next allow a probe
	NextAttempt time.Time `json:"next_attempt,omitempty"`
}

// circuitBreaker isolates a failing provider.
//
// Transitions:
//   - closed -> open when consecutive failures reach the threshold;
//     nextAttempt is set to now + timeout
//   - open -> half-open lazily on the first check once nextAttempt passes
//   - half-open -> closed on the first success
//   - half-open -> open on a further failure re-crossing the threshold
type circuitBreaker struct {
	mu sync.Mutex

	threshold int
	timeout   time.Duration

	state       string
	failures    int
	lastFailure time.Time
	nextAttempt time.Time
}

func newCircuitBreaker(threshold int, timeout time.Duration) *circuitBreaker {
	return &circuitBreaker{
		threshold: threshold,
		timeout:   timeout,
		state:     BreakerClosed,
	}
}

// allow reports whether a call may proceed. An open breaker whose wait has
// elapsed moves to half-open and admits the probe; otherwise the rejection
// carries the time of the next permitted attempt.
func (b *circuitBreaker) allow(now time.Time) (bool, time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen {
		if now.Before(b.nextAttempt) {
			return false, b.nextAttempt
		}
		b.state = BreakerHalfOpen
	}
	return true, time.Time{}
}

// recordSuccess closes the breaker and resets the failure count.
func (b *circuitBreaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.state = BreakerClosed
}

// recordFailure increments the failure count and opens the breaker once the
// threshold is reached. A failure while half-open re-opens immediately.
func (b *circuitBreaker) recordFailure(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = now

	if b.state == BreakerHalfOpen || b.failures >= b.threshold {
		b.state = BreakerOpen
		b.nextAttempt = now.Add(b.timeout)
	}
}

// reconfigure updates threshold and timeout without disturbing state.
func (b *circuitBreaker) reconfigure(threshold int, timeout time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.threshold = threshold
	b.timeout = timeout
}

// snapshot returns the current breaker state.
func (b *circuitBreaker) snapshot() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerState{
		State:        b.state,
		FailureCount: b.failures,
		LastFailure:  b.lastFailure,
		NextAttempt:  b.nextAttempt,
	}
}
