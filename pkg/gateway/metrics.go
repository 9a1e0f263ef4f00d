package gateway

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is a snapshot of the gateway's process-wide counters. Counters
// reset only on an explicit ResetMetrics call.
type Metrics struct {
	// TotalRequests is the total number of completed attempts (a cache hit
	// counts as a successful request)
	TotalRequests int64 `json:"total_requests"`

	// TotalErrors is the total number of failed attempts
	TotalErrors int64 `json:"total_errors"`

	// RequestsByProvider maps provider name to attempt count
	RequestsByProvider map[string]int64 `json:"requests_by_provider"`

	// ErrorsByProvider maps provider name to failed attempt count
	ErrorsByProvider map[string]int64 `json:"errors_by_provider"`

	// AvgLatency is the rolling average attempt latency
	AvgLatency time.Duration `json:"avg_latency"`

	// TotalCost is the accumulated USD cost of completed requests
	TotalCost float64 `json:"total_cost"`

	// CacheHits and CacheMisses count cache lookups
	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`

	// CacheHitRate is hits / (hits + misses), 0 when no lookups occurred
	CacheHitRate float64 `json:"cache_hit_rate"`

	// FallbackUsage counts attempts retried against a different provider
	FallbackUsage int64 `json:"fallback_usage"`
}

// metricsRecorder maintains the snapshot counters and mirrors them into
// Prometheus collectors when a registry is supplied.
type metricsRecorder struct {
	mu sync.Mutex

	totalRequests int64
	totalErrors   int64
	byProvider    map[string]int64
	errByProvider map[string]int64
	avgLatency    time.Duration
	totalCost     float64
	cacheHits     int64
	cacheMisses   int64
	fallbacks     int64

	// prometheus mirrors (nil when metrics registration is disabled)
	promRequests *prometheus.CounterVec
	promLatency  *prometheus.HistogramVec
	promCost     prometheus.Counter
	promFallback prometheus.Counter
	promCacheHit prometheus.Counter
}

// newMetricsRecorder creates a recorder, registering Prometheus collectors
// on reg when non-nil.
func newMetricsRecorder(reg *prometheus.Registry) *metricsRecorder {
	m := &metricsRecorder{
		byProvider:    make(map[string]int64),
		errByProvider: make(map[string]int64),
	}

	if reg == nil {
		return m
	}

	m.promRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ganymede",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Completion attempts by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)
	m.promLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ganymede",
			Subsystem: "gateway",
			Name:      "attempt_latency_seconds",
			Help:      "Completion attempt latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)
	m.promCost = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ganymede",
		Subsystem: "gateway",
		Name:      "cost_usd_total",
		Help:      "Accumulated completion cost in USD",
	})
	m.promFallback = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ganymede",
		Subsystem: "gateway",
		Name:      "fallback_total",
		Help:      "Requests retried against a different provider",
	})
	m.promCacheHit = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ganymede",
		Subsystem: "gateway",
		Name:      "cache_hits_total",
		Help:      "Completion cache hits",
	})

	reg.MustRegister(m.promRequests, m.promLatency, m.promCost, m.promFallback, m.promCacheHit)
	return m
}

// recordSuccess records a successful attempt.
func (m *metricsRecorder) recordSuccess(provider string, latency time.Duration) {
	m.mu.Lock()
	m.totalRequests++
	m.byProvider[provider]++
	if m.avgLatency == 0 {
		m.avgLatency = latency
	} else {
		m.avgLatency = (m.avgLatency + latency) / 2
	}
	m.mu.Unlock()

	if m.promRequests != nil {
		m.promRequests.WithLabelValues(provider, "success").Inc()
		m.promLatency.WithLabelValues(provider).Observe(latency.Seconds())
	}
}

// recordError records a failed attempt.
func (m *metricsRecorder) recordError(provider string) {
	m.mu.Lock()
	m.totalRequests++
	m.totalErrors++
	m.byProvider[provider]++
	m.errByProvider[provider]++
	m.mu.Unlock()

	if m.promRequests != nil {
		m.promRequests.WithLabelValues(provider, "error").Inc()
	}
}

// recordCost accumulates the realized USD cost of a request and returns
// the running total.
func (m *metricsRecorder) recordCost(cost float64) float64 {
	m.mu.Lock()
	m.totalCost += cost
	total := m.totalCost
	m.mu.Unlock()

	if m.promCost != nil {
		m.promCost.Add(cost)
	}
	return total
}

// recordCacheHit records a cache hit. A hit counts as a successful
// request; no provider is attributed because none was selected.
func (m *metricsRecorder) recordCacheHit() {
	m.mu.Lock()
	m.totalRequests++
	m.cacheHits++
	m.mu.Unlock()

	if m.promCacheHit != nil {
		m.promCacheHit.Inc()
		m.promRequests.WithLabelValues("cache", "success").Inc()
	}
}

// recordCacheMiss records a cache miss.
func (m *metricsRecorder) recordCacheMiss() {
	m.mu.Lock()
	m.cacheMisses++
	m.mu.Unlock()
}

// recordFallback records a fallback attempt.
func (m *metricsRecorder) recordFallback() {
	m.mu.Lock()
	m.fallbacks++
	m.mu.Unlock()

	if m.promFallback != nil {
		m.promFallback.Inc()
	}
}

// snapshot returns a copy of the current counters.
func (m *metricsRecorder) snapshot() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	byProvider := make(map[string]int64, len(m.byProvider))
	for k, v := range m.byProvider {
		byProvider[k] = v
	}
	errByProvider := make(map[string]int64, len(m.errByProvider))
	for k, v := range m.errByProvider {
		errByProvider[k] = v
	}

	snap := Metrics{
		TotalRequests:      m.totalRequests,
		TotalErrors:        m.totalErrors,
		RequestsByProvider: byProvider,
		ErrorsByProvider:   errByProvider,
		AvgLatency:         m.avgLatency,
		TotalCost:          m.totalCost,
		CacheHits:          m.cacheHits,
		CacheMisses:        m.cacheMisses,
		FallbackUsage:      m.fallbacks,
	}
	if lookups := m.cacheHits + m.cacheMisses; lookups > 0 {
		snap.CacheHitRate = float64(m.cacheHits) / float64(lookups)
	}
	return snap
}

// reset zeroes the snapshot counters. The Prometheus mirrors stay
// monotonic and are not reset.
func (m *metricsRecorder) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalRequests = 0
	m.totalErrors = 0
	m.byProvider = make(map[string]int64)
	m.errByProvider = make(map[string]int64)
	m.avgLatency = 0
	m.totalCost = 0
	m.cacheHits = 0
	m.cacheMisses = 0
	m.fallbacks = 0
}
