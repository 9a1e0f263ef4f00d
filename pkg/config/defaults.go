package config

import (
	"time"

	"mercator-hq/ganymede/pkg/gateway"
)

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 0 * time.Second // streaming responses: no deadline
	DefaultShutdownTimeout = 30 * time.Second

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// Provider defaults
	DefaultProviderTimeout    = 120 * time.Second
	DefaultProviderMaxRetries = 3

	// Task defaults
	DefaultTaskPruneAfter    = 24 * time.Hour
	DefaultTaskPruneSchedule = "0 3 * * *"

	// Catalog defaults
	DefaultCatalogRefreshSchedule = "@hourly"
)

// ApplyDefaults fills zero-valued configuration fields with defaults.
// Explicitly configured values are never overwritten.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}

	for i := range cfg.Providers {
		if cfg.Providers[i].Timeout == 0 {
			cfg.Providers[i].Timeout = DefaultProviderTimeout
		}
		if cfg.Providers[i].MaxRetries == 0 {
			cfg.Providers[i].MaxRetries = DefaultProviderMaxRetries
		}
	}

	applyGatewayDefaults(cfg)

	if cfg.Tasks.PruneAfter == 0 {
		cfg.Tasks.PruneAfter = DefaultTaskPruneAfter
	}
	if cfg.Tasks.PruneSchedule == "" {
		cfg.Tasks.PruneSchedule = DefaultTaskPruneSchedule
	}

	if cfg.Catalog.RefreshSchedule == "" {
		cfg.Catalog.RefreshSchedule = DefaultCatalogRefreshSchedule
	}
}

// applyGatewayDefaults fills zero-valued gateway options. The gateway's
// boolean toggles default to enabled, which YAML zero values cannot
// express, so an entirely empty gateway section gets the full defaults.
func applyGatewayDefaults(cfg *Config) {
	defaults := gateway.DefaultOptions()

	empty := cfg.Gateway.Strategy == "" &&
		cfg.Gateway.RateLimit == 0 &&
		cfg.Gateway.BreakerThreshold == 0 &&
		cfg.Gateway.CacheTTL == 0
	if empty {
		cfg.Gateway = defaults
		return
	}

	if cfg.Gateway.Strategy == "" {
		cfg.Gateway.Strategy = defaults.Strategy
	}
	if cfg.Gateway.MaxFallbackAttempts == 0 {
		cfg.Gateway.MaxFallbackAttempts = defaults.MaxFallbackAttempts
	}
	if cfg.Gateway.FallbackDelay == 0 {
		cfg.Gateway.FallbackDelay = defaults.FallbackDelay
	}
	if cfg.Gateway.RateLimit == 0 {
		cfg.Gateway.RateLimit = defaults.RateLimit
	}
	if cfg.Gateway.RateLimitWindow == 0 {
		cfg.Gateway.RateLimitWindow = defaults.RateLimitWindow
	}
	if cfg.Gateway.CacheTTL == 0 {
		cfg.Gateway.CacheTTL = defaults.CacheTTL
	}
	if cfg.Gateway.CacheSize == 0 {
		cfg.Gateway.CacheSize = defaults.CacheSize
	}
	if cfg.Gateway.BreakerThreshold == 0 {
		cfg.Gateway.BreakerThreshold = defaults.BreakerThreshold
	}
	if cfg.Gateway.BreakerTimeout == 0 {
		cfg.Gateway.BreakerTimeout = defaults.BreakerTimeout
	}
	if cfg.Gateway.MaxCostPerRequest == 0 {
		cfg.Gateway.MaxCostPerRequest = defaults.MaxCostPerRequest
	}
	if cfg.Gateway.BudgetAlert == 0 {
		cfg.Gateway.BudgetAlert = defaults.BudgetAlert
	}
	if cfg.Gateway.HealthCheckInterval == 0 {
		cfg.Gateway.HealthCheckInterval = defaults.HealthCheckInterval
	}
	if cfg.Gateway.UnhealthyThreshold == 0 {
		cfg.Gateway.UnhealthyThreshold = defaults.UnhealthyThreshold
	}
}
