// Package gateway layers resilience around provider adapters: circuit
// breaking, local rate limiting, response caching, cross-provider
// fallback, cost guarding, and health tracking. Every completion request
// enters through Gateway.Complete; the adapters themselves stay free of
// cross-cutting policy.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/ganymede/pkg/providers"
	"mercator-hq/ganymede/pkg/registry"
)

// estimatedCharsPerToken is the crude pre-dispatch token estimate used by
// the cost guard. Real usage from the vendor replaces it after the fact.
const estimatedCharsPerToken = 4

// defaultCompletionEstimate is the completion-token estimate used by the
// cost guard when the request does not set max_tokens.
const defaultCompletionEstimate = 1000

// Gateway mediates all completion traffic between callers and provider
// adapters.
type Gateway struct {
	log *slog.Logger
	reg *registry.Registry

	optsMu sync.RWMutex
	opts   Options

	statesMu sync.Mutex
	states   map[string]*providerState

	cache   *responseCache
	metrics *metricsRecorder

	lb *loadBalancedStrategy

	alertMu       sync.Mutex
	budgetAlerted bool

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// New creates a gateway over the given registry. promReg may be nil to
// skip Prometheus registration (tests do this to avoid duplicate
// collector registration).
func New(reg *registry.Registry, opts Options, logger *slog.Logger, promReg *prometheus.Registry) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}

	g := &Gateway{
		log:     logger.With("component", "gateway"),
		reg:     reg,
		opts:    opts,
		states:  make(map[string]*providerState),
		cache:   newResponseCache(opts.CacheTTL, opts.CacheSize),
		metrics: newMetricsRecorder(promReg),
		lb:      &loadBalancedStrategy{},
		stop:    make(chan struct{}),
	}

	if opts.HealthCheckEnabled && opts.HealthCheckInterval > 0 {
		g.wg.Add(1)
		go g.healthLoop(opts.HealthCheckInterval)
	}
	return g
}

// healthLoop periodically decays smoothed error rates so idle providers
// recover their health status without traffic.
func (g *Gateway) healthLoop(interval time.Duration) {
	defer g.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-g.stop:
			return
		case <-ticker.C:
			threshold := g.options().UnhealthyThreshold
			g.statesMu.Lock()
			states := make([]*providerState, 0, len(g.states))
			for _, s := range g.states {
				states = append(states, s)
			}
			g.statesMu.Unlock()
			for _, s := range states {
				s.decayErrorRate(threshold)
			}
		}
	}
}

// options returns a copy of the current options.
func (g *Gateway) options() Options {
	g.optsMu.RLock()
	defer g.optsMu.RUnlock()
	return g.opts
}

// Options returns the gateway's current configuration.
func (g *Gateway) Options() Options {
	return g.options()
}

// state returns the mutable per-provider state, creating it on first use.
func (g *Gateway) state(name string) *providerState {
	g.statesMu.Lock()
	defer g.statesMu.Unlock()

	s, ok := g.states[name]
	if !ok {
		s = newProviderState(name, g.options())
		g.states[name] = s
	}
	return s
}

// Complete validates, guards, routes, and dispatches a completion request,
// returning a live stream of chunks. On provider failure it retries
// against alternate providers when fallback is enabled.
func (g *Gateway) Complete(ctx context.Context, req *providers.CompletionRequest) (providers.Stream, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	opts := g.options()

	key := ""
	if opts.CacheEnabled {
		key = cacheKey(req)
		if chunks := g.cache.get(key, time.Now()); chunks != nil {
			g.metrics.recordCacheHit()
			g.log.Debug("cache hit", "model", req.Model)
			return providers.NewBufferedStream(chunks), nil
		}
		g.metrics.recordCacheMiss()
	}

	info, err := g.reg.ModelInfo(req.Model)
	if err != nil {
		return nil, err
	}

	if opts.CostTrackingEnabled && opts.MaxCostPerRequest > 0 {
		estimated := estimateCost(req, info)
		if estimated > opts.MaxCostPerRequest {
			return nil, &providers.CostExceededError{
				Model:     req.Model,
				Estimated: estimated,
				Limit:     opts.MaxCostPerRequest,
			}
		}
	}

	natural, err := g.reg.ProviderNameForModel(req.Model)
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]bool)
	attempts := 0
	name := g.selectProvider(opts, req.Model, natural, info, excluded)

	for {
		stream, attemptErr := g.attempt(ctx, name, req, info, key, opts)
		if attemptErr == nil {
			return stream, nil
		}

		if !opts.EnableFallback || attempts >= opts.MaxFallbackAttempts || !providers.IsRetryable(attemptErr) {
			return nil, attemptErr
		}

		excluded[name] = true
		next := g.selectProvider(opts, req.Model, natural, info, excluded)
		if next == "" {
			// No alternate provider qualifies; the failed one is never
			// retried.
			return nil, attemptErr
		}

		attempts++
		g.metrics.recordFallback()
		g.log.Warn("falling back to alternate provider",
			"model", req.Model, "failed_provider", name, "next_provider", next, "attempt", attempts, "error", attemptErr)

		if opts.FallbackDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(opts.FallbackDelay):
			}
		}
		name = next
	}
}

// attempt runs one guarded dispatch against a single provider.
func (g *Gateway) attempt(ctx context.Context, name string, req *providers.CompletionRequest, info *providers.ModelInfo, cacheKey string, opts Options) (providers.Stream, error) {
	adapter, ok := g.reg.Provider(name)
	if !ok {
		return nil, &providers.ModelNotSupportedError{Provider: name, Model: req.Model}
	}

	state := g.state(name)
	now := time.Now()

	if opts.BreakerEnabled {
		allowed, retryAt := state.breaker.allow(now)
		if !allowed {
			return nil, &providers.CircuitOpenError{Provider: name, RetryAt: retryAt}
		}
	}

	if opts.RateLimit > 0 && !state.limiter.allow(now) {
		return nil, &providers.RateLimitExceededError{
			Provider: name,
			Limit:    opts.RateLimit,
			Window:   opts.RateLimitWindow,
		}
	}

	stream, err := adapter.Complete(ctx, req)
	if err != nil {
		state.recordFailure(time.Now(), opts.UnhealthyThreshold)
		g.metrics.recordError(name)
		return nil, err
	}

	return &monitoredStream{
		inner:    stream,
		gateway:  g,
		provider: name,
		state:    state,
		info:     info,
		cacheKey: cacheKey,
		started:  now,
	}, nil
}

// selectProvider builds the candidate list and delegates to the configured
// strategy, honoring exclusions from earlier failed attempts. It returns
// an empty name when every qualifying provider has been excluded.
func (g *Gateway) selectProvider(opts Options, model, natural string, info *providers.ModelInfo, excluded map[string]bool) string {
	candidates := make([]candidate, 0, 4)
	for _, name := range g.reg.ProviderNames() {
		if excluded[name] {
			continue
		}
		adapter, ok := g.reg.Provider(name)
		if !ok {
			continue
		}
		if !adapter.SupportsModel(model) && name != g.reg.Universal() {
			continue
		}

		state := g.state(name)
		health := state.snapshotHealth()
		breaker := state.breaker.snapshot()
		closed := breaker.State != BreakerOpen || !time.Now().Before(breaker.NextAttempt)

		c := candidate{
			name:    name,
			healthy: health.Status != HealthUnhealthy,
			closed:  closed,
		}
		if info != nil {
			c.inputPrice = info.InputPricePerM
		}
		candidates = append(candidates, c)
	}

	if excluded[natural] {
		// The resolved provider already failed. Settle on a remaining
		// healthy candidate, then the universal provider, and report no
		// selection rather than repeating the failed one.
		natural = ""
		for _, c := range candidates {
			if c.healthy && c.closed {
				natural = c.name
				break
			}
		}
		if natural == "" {
			if u := g.reg.Universal(); u != "" && !excluded[u] {
				natural = u
			}
		}
		if natural == "" {
			return ""
		}
	}

	switch opts.Strategy {
	case StrategyExplicit:
		return explicitStrategy{}.pick(natural, candidates)
	case StrategyCostOptimized:
		return costOptimizedStrategy{}.pick(natural, candidates)
	case StrategyLoadBalanced:
		return g.lb.pick(natural, candidates)
	default:
		return automaticStrategy{}.pick(natural, candidates)
	}
}

// validateRequest rejects malformed requests before any guard or network
// activity.
func validateRequest(req *providers.CompletionRequest) error {
	if req == nil {
		return &providers.ValidationError{Field: "request", Message: "request is required"}
	}
	if req.Model == "" {
		return &providers.ValidationError{Field: "model", Message: "model is required"}
	}
	if len(req.Messages) == 0 {
		return &providers.ValidationError{Field: "messages", Message: "at least one message is required"}
	}
	for i, msg := range req.Messages {
		if msg.Role == "" {
			return &providers.ValidationError{Field: "messages", Message: fmt.Sprintf("message %d has no role", i)}
		}
	}
	if req.Temperature < 0 || req.Temperature > 2 {
		return &providers.ValidationError{Field: "temperature", Message: "must be between 0 and 2"}
	}
	if req.TopP < 0 || req.TopP > 1 {
		return &providers.ValidationError{Field: "top_p", Message: "must be between 0 and 1"}
	}
	if req.MaxTokens < 0 {
		return &providers.ValidationError{Field: "max_tokens", Message: "must not be negative"}
	}
	return nil
}

// estimateCost computes the pre-dispatch cost estimate: prompt characters
// divided by four for input tokens, max_tokens (or a default) for output.
func estimateCost(req *providers.CompletionRequest, info *providers.ModelInfo) float64 {
	chars := 0
	for _, msg := range req.Messages {
		chars += len(msg.Content)
	}
	promptTokens := chars / estimatedCharsPerToken

	completionTokens := req.MaxTokens
	if completionTokens <= 0 {
		completionTokens = defaultCompletionEstimate
	}

	cost := float64(promptTokens) / 1e6 * info.InputPricePerM
	cost += float64(completionTokens) / 1e6 * info.OutputPricePerM
	return cost
}

// recordCompletion folds a finished stream into metrics, health, and the
// budget alert.
func (g *Gateway) recordCompletion(provider string, state *providerState, info *providers.ModelInfo, usage *providers.Usage, latency time.Duration) {
	opts := g.options()

	state.recordSuccess(latency, opts.UnhealthyThreshold)
	g.metrics.recordSuccess(provider, latency)

	if !opts.CostTrackingEnabled || info == nil {
		return
	}

	cost := info.CalculateCost(usage)
	if cost <= 0 {
		return
	}
	total := g.metrics.recordCost(cost)

	if opts.BudgetAlert > 0 && total >= opts.BudgetAlert {
		g.alertMu.Lock()
		alerted := g.budgetAlerted
		g.budgetAlerted = true
		g.alertMu.Unlock()
		if !alerted {
			g.log.Warn("accumulated cost crossed budget alert threshold",
				"total_cost", total, "budget_alert", opts.BudgetAlert)
		}
	}
}

// Health returns a health snapshot for every provider the gateway has
// dispatched to, plus registered providers that have not yet seen traffic.
func (g *Gateway) Health() map[string]Health {
	out := make(map[string]Health)
	for _, name := range g.reg.ProviderNames() {
		out[name] = g.state(name).snapshotHealth()
	}
	return out
}

// BreakerStates returns a breaker snapshot per provider.
func (g *Gateway) BreakerStates() map[string]BreakerState {
	out := make(map[string]BreakerState)
	for _, name := range g.reg.ProviderNames() {
		out[name] = g.state(name).breaker.snapshot()
	}
	return out
}

// RateLimits returns a rate-limiter snapshot per provider.
func (g *Gateway) RateLimits() []RateLimitState {
	now := time.Now()
	names := g.reg.ProviderNames()
	out := make([]RateLimitState, 0, len(names))
	for _, name := range names {
		out = append(out, g.state(name).limiter.snapshot(name, now))
	}
	return out
}

// Metrics returns a snapshot of the gateway counters.
func (g *Gateway) Metrics() Metrics {
	return g.metrics.snapshot()
}

// UpdateConfig applies a partial options update at runtime. Breakers and
// limiters are reconfigured in place; their recorded state persists.
func (g *Gateway) UpdateConfig(patch *OptionsPatch) Options {
	g.optsMu.Lock()
	patch.apply(&g.opts)
	opts := g.opts
	g.optsMu.Unlock()

	if patch.CacheTTL != nil {
		g.cache.setTTL(opts.CacheTTL)
	}

	g.statesMu.Lock()
	for _, s := range g.states {
		s.breaker.reconfigure(opts.BreakerThreshold, opts.BreakerTimeout)
		s.limiter.reconfigure(opts.RateLimit, opts.RateLimitWindow)
	}
	g.statesMu.Unlock()

	g.log.Info("gateway configuration updated", "strategy", opts.Strategy)
	return opts
}

// ClearCache drops all cached responses.
func (g *Gateway) ClearCache() {
	g.cache.clear()
}

// ResetMetrics zeroes the snapshot counters and re-arms the budget alert.
func (g *Gateway) ResetMetrics() {
	g.metrics.reset()
	g.alertMu.Lock()
	g.budgetAlerted = false
	g.alertMu.Unlock()
}

// Shutdown stops the health loop. Safe to call more than once.
func (g *Gateway) Shutdown() {
	g.stopOnce.Do(func() { close(g.stop) })
	g.wg.Wait()
}

// monitoredStream decorates a provider stream with outcome recording and
// cache population. Success is recorded when the stream drains to EOF;
// a mid-stream error is recorded as a provider failure.
type monitoredStream struct {
	inner    providers.Stream
	gateway  *Gateway
	provider string
	state    *providerState
	info     *providers.ModelInfo
	cacheKey string
	started  time.Time

	chunks []*providers.StreamChunk
	usage  *providers.Usage
	done   bool
}

// Recv forwards chunks from the inner stream, capturing usage and
// buffering chunks for the cache.
func (m *monitoredStream) Recv(ctx context.Context) (*providers.StreamChunk, error) {
	chunk, err := m.inner.Recv(ctx)
	if err == io.EOF {
		m.finishSuccess()
		return nil, io.EOF
	}
	if err != nil {
		// The caller walking away is not a provider fault: record
		// neither success nor failure, same as Close on an abandoned
		// stream. Provider-side timeouts arrive as *providers.Error and
		// still count as failures.
		if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			m.done = true
			return nil, err
		}
		m.finishFailure()
		return nil, err
	}

	m.chunks = append(m.chunks, chunk)
	if chunk.Usage != nil {
		m.usage = chunk.Usage
	}
	return chunk, nil
}

func (m *monitoredStream) finishSuccess() {
	if m.done {
		return
	}
	m.done = true

	latency := time.Since(m.started)
	m.gateway.recordCompletion(m.provider, m.state, m.info, m.usage, latency)

	if m.cacheKey != "" && len(m.chunks) > 0 {
		m.gateway.cache.put(m.cacheKey, m.chunks, time.Now())
	}
}

func (m *monitoredStream) finishFailure() {
	if m.done {
		return
	}
	m.done = true

	m.state.recordFailure(time.Now(), m.gateway.options().UnhealthyThreshold)
	m.gateway.metrics.recordError(m.provider)
}

// Close closes the inner stream. An abandoned stream records neither
// success nor failure.
func (m *monitoredStream) Close() error {
	return m.inner.Close()
}
