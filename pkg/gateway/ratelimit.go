package gateway

import (
	"sync"
	"time"
)

// RateLimitState is a snapshot of one provider's sliding-window limiter.
type RateLimitState struct {
	// Provider is the limited provider name
	Provider string `json:"provider"`

	// InWindow is the number of admissions inside the current window
	InWindow int `json:"in_window"`

	// Limit is the configured admission limit per window
	Limit int `json:"limit"`

	// Window is the sliding window duration
	Window time.Duration `json:"window"`
}

// slidingLimiter admits at most limit requests per trailing window.
//
// Admission timestamps are recorded inside the same critical section as the
// check, so concurrent callers cannot overshoot the limit: the prune, the
// count, and the record are one logical step.
type slidingLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	stamps []time.Time
}

func newSlidingLimiter(limit int, window time.Duration) *slidingLimiter {
	return &slidingLimiter{
		limit:  limit,
		window: window,
	}
}

// allow admits the request if fewer than limit timestamps fall within the
// trailing window, recording the admission immediately.
func (l *slidingLimiter) allow(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.limit <= 0 {
		return true
	}

	l.pruneLocked(now)

	if len(l.stamps) >= l.limit {
		return false
	}

	l.stamps = append(l.stamps, now)
	return true
}

// pruneLocked drops timestamps outside the window. Caller holds the lock.
func (l *slidingLimiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-l.window)
	keep := l.stamps[:0]
	for _, ts := range l.stamps {
		if ts.After(cutoff) {
			keep = append(keep, ts)
		}
	}
	l.stamps = keep
}

// reconfigure updates the limit and window; recorded admissions persist.
func (l *slidingLimiter) reconfigure(limit int, window time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limit = limit
	l.window = window
}

// snapshot returns the limiter state after pruning expired admissions.
func (l *slidingLimiter) snapshot(provider string, now time.Time) RateLimitState {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked(now)
	return RateLimitState{
		Provider: provider,
		InWindow: len(l.stamps),
		Limit:    l.limit,
		Window:   l.window,
	}
}
