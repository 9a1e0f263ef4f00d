package gateway

import "time"

// Strategy names accepted by Options.Strategy.
const (
	StrategyExplicit      = "explicit"
	StrategyAutomatic     = "automatic"
	StrategyCostOptimized = "cost-optimized"
	StrategyLoadBalanced  = "load-balanced"
)

// Options configures the resilience gateway. Zero values are replaced by
// the defaults from DefaultOptions.
type Options struct {
	// Strategy selects the provider selection strategy
	// (explicit, automatic, cost-optimized, load-balanced).
	// Default: automatic
	Strategy string `yaml:"strategy"`

	// EnableFallback controls whether failed attempts retry against a
	// different provider.
	// Default: true
	EnableFallback bool `yaml:"enable_fallback"`

	// MaxFallbackAttempts bounds how many fallback providers are tried
	// after the initial attempt.
	// Default: 2
	MaxFallbackAttempts int `yaml:"max_fallback_attempts"`

	// FallbackDelay is the wait before each fallback attempt.
	// Default: 500ms
	FallbackDelay time.Duration `yaml:"fallback_delay"`

	// RateLimit is the maximum number of requests admitted per provider
	// within RateLimitWindow. Zero disables local rate limiting.
	// Default: 60
	RateLimit int `yaml:"rate_limit"`

	// RateLimitWindow is the sliding window duration for rate limiting.
	// Default: 1m
	RateLimitWindow time.Duration `yaml:"rate_limit_window"`

	// CacheEnabled controls response caching.
	// Default: true
	CacheEnabled bool `yaml:"cache_enabled"`

	// CacheTTL is how long cached responses stay valid.
	// Default: 5m
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// CacheSize bounds the number of cached responses.
	// Default: 256
	CacheSize int `yaml:"cache_size"`

	// BreakerEnabled controls per-provider circuit breaking.
	// Default: true
	BreakerEnabled bool `yaml:"breaker_enabled"`

	// BreakerThreshold is the consecutive-failure count that opens a
	// provider's breaker.
	// Default: 5
	BreakerThreshold int `yaml:"breaker_threshold"`

	// BreakerTimeout is how long an open breaker waits before allowing a
	// half-open probe.
	// Default: 30s
	BreakerTimeout time.Duration `yaml:"breaker_timeout"`

	// CostTrackingEnabled controls cost estimation and accumulation.
	// Default: true
	CostTrackingEnabled bool `yaml:"cost_tracking_enabled"`

	// MaxCostPerRequest rejects requests whose estimated cost exceeds this
	// USD amount before any network call. Zero disables the guard.
	// Default: 1.00
	MaxCostPerRequest float64 `yaml:"max_cost_per_request"`

	// BudgetAlert logs a warning once accumulated cost crosses this USD
	// amount. Zero disables the alert.
	// Default: 100.00
	BudgetAlert float64 `yaml:"budget_alert"`

	// HealthCheckEnabled controls the periodic health recomputation tick.
	// Default: true
	HealthCheckEnabled bool `yaml:"health_check_enabled"`

	// HealthCheckInterval is the period of the health tick.
	// Default: 30s
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`

	// UnhealthyThreshold is the consecutive-failure count at which a
	// provider's health becomes unhealthy.
	// Default: 3
	UnhealthyThreshold int `yaml:"unhealthy_threshold"`
}

// DefaultOptions returns the gateway defaults.
func DefaultOptions() Options {
	return Options{
		Strategy:            StrategyAutomatic,
		EnableFallback:      true,
		MaxFallbackAttempts: 2,
		FallbackDelay:       500 * time.Millisecond,
		RateLimit:           60,
		RateLimitWindow:     time.Minute,
		CacheEnabled:        true,
		CacheTTL:            5 * time.Minute,
		CacheSize:           256,
		BreakerEnabled:      true,
		BreakerThreshold:    5,
		BreakerTimeout:      30 * time.Second,
		CostTrackingEnabled: true,
		MaxCostPerRequest:   1.0,
		BudgetAlert:         100.0,
		HealthCheckEnabled:  true,
		HealthCheckInterval: 30 * time.Second,
		UnhealthyThreshold:  3,
	}
}

// OptionsPatch is a partial options update; nil fields keep their current
// values. Used by UpdateConfig.
type OptionsPatch struct {
	Strategy            *string        `json:"strategy,omitempty"`
	EnableFallback      *bool          `json:"enable_fallback,omitempty"`
	MaxFallbackAttempts *int           `json:"max_fallback_attempts,omitempty"`
	FallbackDelay       *time.Duration `json:"fallback_delay,omitempty"`
	RateLimit           *int           `json:"rate_limit,omitempty"`
	RateLimitWindow     *time.Duration `json:"rate_limit_window,omitempty"`
	CacheEnabled        *bool          `json:"cache_enabled,omitempty"`
	CacheTTL            *time.Duration `json:"cache_ttl,omitempty"`
	BreakerThreshold    *int           `json:"breaker_threshold,omitempty"`
	BreakerTimeout      *time.Duration `json:"breaker_timeout,omitempty"`
	MaxCostPerRequest   *float64       `json:"max_cost_per_request,omitempty"`
	BudgetAlert         *float64       `json:"budget_alert,omitempty"`
}

// apply folds the patch into opts.
func (p *OptionsPatch) apply(opts *Options) {
	if p.Strategy != nil {
		opts.Strategy = *p.Strategy
	}
	if p.EnableFallback != nil {
		opts.EnableFallback = *p.EnableFallback
	}
	if p.MaxFallbackAttempts != nil {
		opts.MaxFallbackAttempts = *p.MaxFallbackAttempts
	}
	if p.FallbackDelay != nil {
		opts.FallbackDelay = *p.FallbackDelay
	}
	if p.RateLimit != nil {
		opts.RateLimit = *p.RateLimit
	}
	if p.RateLimitWindow != nil {
		opts.RateLimitWindow = *p.RateLimitWindow
	}
	if p.CacheEnabled != nil {
		opts.CacheEnabled = *p.CacheEnabled
	}
	if p.CacheTTL != nil {
		opts.CacheTTL = *p.CacheTTL
	}
	if p.BreakerThreshold != nil {
		opts.BreakerThreshold = *p.BreakerThreshold
	}
	if p.BreakerTimeout != nil {
		opts.BreakerTimeout = *p.BreakerTimeout
	}
	if p.MaxCostPerRequest != nil {
		opts.MaxCostPerRequest = *p.MaxCostPerRequest
	}
	if p.BudgetAlert != nil {
		opts.BudgetAlert = *p.BudgetAlert
	}
}
