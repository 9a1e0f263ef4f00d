package gateway

import (
	"sync"
	"time"
)

// Health statuses.
const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)

// Health is a point-in-time snapshot of one provider's health, derived
// from recent attempt outcomes.
type Health struct {
	// Status is healthy, degraded, or unhealthy
	Status string `json:"status"`

	// ConsecutiveFailures counts failed attempts since the last success
	ConsecutiveFailures int `json:"consecutive_failures"`

	// AvgLatency is the rolling average attempt latency
	AvgLatency time.Duration `json:"avg_latency"`

	// ErrorRate is the smoothed fraction of recent attempts that failed
	ErrorRate float64 `json:"error_rate"`

	// SuccessCount and ErrorCount are lifetime attempt totals
	SuccessCount int64 `json:"success_count"`
	ErrorCount   int64 `json:"error_count"`

	// LastUpdated is when the health last changed
	LastUpdated time.Time `json:"last_updated"`
}

// errorRateSmoothing weights the previous smoothed rate when folding in a
// new outcome (1.0 = failure, 0.0 = success).
const errorRateSmoothing = 0.8

// providerState bundles the per-provider mutable state owned by the
// gateway: health, breaker, and rate limiter. Each entry has its own
// locking; the map of entries itself is append-only.
type providerState struct {
	name    string
	breaker *circuitBreaker
	limiter *slidingLimiter

	healthMu sync.Mutex
	health   Health
}

func newProviderState(name string, opts Options) *providerState {
	return &providerState{
		name:    name,
		breaker: newCircuitBreaker(opts.BreakerThreshold, opts.BreakerTimeout),
		limiter: newSlidingLimiter(opts.RateLimit, opts.RateLimitWindow),
		health:  Health{Status: HealthHealthy},
	}
}

// recordSuccess folds a successful attempt into the health state and
// closes any half-open breaker.
func (s *providerState) recordSuccess(latency time.Duration, unhealthyThreshold int) {
	s.breaker.recordSuccess()

	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	s.health.ConsecutiveFailures = 0
	s.health.SuccessCount++
	s.health.ErrorRate = s.health.ErrorRate * errorRateSmoothing
	if s.health.AvgLatency == 0 {
		s.health.AvgLatency = latency
	} else {
		s.health.AvgLatency = (s.health.AvgLatency + latency) / 2
	}
	s.health.Status = deriveStatus(&s.health, unhealthyThreshold)
	s.health.LastUpdated = time.Now()
}

// recordFailure folds a failed attempt into the health state and advances
// the breaker.
func (s *providerState) recordFailure(now time.Time, unhealthyThreshold int) {
	s.breaker.recordFailure(now)

	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	s.health.ConsecutiveFailures++
	s.health.ErrorCount++
	s.health.ErrorRate = s.health.ErrorRate*errorRateSmoothing + (1 - errorRateSmoothing)
	s.health.Status = deriveStatus(&s.health, unhealthyThreshold)
	s.health.LastUpdated = now
}

// decayErrorRate eases the smoothed error rate toward zero during idle
// periods so a provider is not pinned degraded forever. Called by the
// periodic health tick.
func (s *providerState) decayErrorRate(unhealthyThreshold int) {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	s.health.ErrorRate *= errorRateSmoothing
	s.health.Status = deriveStatus(&s.health, unhealthyThreshold)
}

// snapshotHealth returns the current health.
func (s *providerState) snapshotHealth() Health {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()
	return s.health
}

// deriveStatus maps failure counts and error rate to a health status:
// consecutive failures at or past the threshold mean unhealthy, a smoothed
// error rate above 0.5 means degraded, anything else is healthy.
func deriveStatus(h *Health, unhealthyThreshold int) string {
	if unhealthyThreshold > 0 && h.ConsecutiveFailures >= unhealthyThreshold {
		return HealthUnhealthy
	}
	if h.ErrorRate > 0.5 {
		return HealthDegraded
	}
	return HealthHealthy
}
