package config

import (
	"fmt"
	"net/url"
	"strings"
)

// knownProviders are the adapter names the factory can construct.
var knownProviders = map[string]bool{
	"openai":     true,
	"anthropic":  true,
	"google":     true,
	"xai":        true,
	"openrouter": true,
}

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate checks the entire configuration and returns a ValidationError
// collecting every rule violation, or nil when the configuration is valid.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateProviders(cfg.Providers)...)
	errs = append(errs, validateGateway(cfg)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(s *ServerConfig) []FieldError {
	var errs []FieldError
	if s.ListenAddress == "" {
		errs = append(errs, FieldError{"server.listen_address", "must not be empty"})
	}
	if s.ReadTimeout < 0 {
		errs = append(errs, FieldError{"server.read_timeout", "must not be negative"})
	}
	if s.WriteTimeout < 0 {
		errs = append(errs, FieldError{"server.write_timeout", "must not be negative"})
	}
	if s.ShutdownTimeout <= 0 {
		errs = append(errs, FieldError{"server.shutdown_timeout", "must be positive"})
	}
	return errs
}

func validateLogging(l *LoggingConfig) []FieldError {
	var errs []FieldError
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{"logging.level", fmt.Sprintf("unknown level %q", l.Level)})
	}
	switch strings.ToLower(l.Format) {
	case "json", "text":
	default:
		errs = append(errs, FieldError{"logging.format", fmt.Sprintf("unknown format %q", l.Format)})
	}
	return errs
}

func validateProviders(providers []ProviderConfig) []FieldError {
	var errs []FieldError
	seen := make(map[string]bool)

	for i, p := range providers {
		prefix := fmt.Sprintf("providers[%d]", i)

		if !knownProviders[p.Name] {
			errs = append(errs, FieldError{prefix + ".name", fmt.Sprintf("unknown provider %q", p.Name)})
			continue
		}
		if seen[p.Name] {
			errs = append(errs, FieldError{prefix + ".name", fmt.Sprintf("provider %q configured more than once", p.Name)})
		}
		seen[p.Name] = true

		if p.BaseURL != "" {
			if u, err := url.Parse(p.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
				errs = append(errs, FieldError{prefix + ".base_url", fmt.Sprintf("invalid URL %q", p.BaseURL)})
			}
		}
		if p.Timeout < 0 {
			errs = append(errs, FieldError{prefix + ".timeout", "must not be negative"})
		}
		if p.MaxRetries < 0 {
			errs = append(errs, FieldError{prefix + ".max_retries", "must not be negative"})
		}
	}
	return errs
}

func validateGateway(cfg *Config) []FieldError {
	var errs []FieldError
	g := &cfg.Gateway

	switch g.Strategy {
	case "explicit", "automatic", "cost-optimized", "load-balanced":
	default:
		errs = append(errs, FieldError{"gateway.strategy", fmt.Sprintf("unknown strategy %q", g.Strategy)})
	}
	if g.MaxFallbackAttempts < 0 {
		errs = append(errs, FieldError{"gateway.max_fallback_attempts", "must not be negative"})
	}
	if g.RateLimit < 0 {
		errs = append(errs, FieldError{"gateway.rate_limit", "must not be negative"})
	}
	if g.RateLimit > 0 && g.RateLimitWindow <= 0 {
		errs = append(errs, FieldError{"gateway.rate_limit_window", "must be positive when rate limiting is enabled"})
	}
	if g.BreakerEnabled && g.BreakerThreshold <= 0 {
		errs = append(errs, FieldError{"gateway.breaker_threshold", "must be positive when the breaker is enabled"})
	}
	if g.BreakerEnabled && g.BreakerTimeout <= 0 {
		errs = append(errs, FieldError{"gateway.breaker_timeout", "must be positive when the breaker is enabled"})
	}
	if g.CacheEnabled && g.CacheTTL <= 0 {
		errs = append(errs, FieldError{"gateway.cache_ttl", "must be positive when caching is enabled"})
	}
	if g.MaxCostPerRequest < 0 {
		errs = append(errs, FieldError{"gateway.max_cost_per_request", "must not be negative"})
	}
	return errs
}
