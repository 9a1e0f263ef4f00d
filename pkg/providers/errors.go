package providers

import (
	"errors"
	"fmt"
	"time"
)

// Error represents a normalized provider failure. Adapters convert every
// HTTP, network, timeout, and parse failure into this type before it leaves
// the adapter, so callers can classify errors without knowing vendor
// specifics.
type Error struct {
	// Provider is the name of the provider that produced the error
	Provider string

	// StatusCode is the HTTP status code (0 if not applicable)
	StatusCode int

	// Message is the error message
	Message string

	// Retryable indicates whether the failure is transient.
	// 5xx responses, 429 responses, and timeouts are retryable; other 4xx
	// validation errors are not.
	Retryable bool

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %q error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %q error: %s", e.Provider, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewHTTPError builds an Error from an HTTP status code, classifying
// retryability from the status.
func NewHTTPError(provider string, status int, body string) *Error {
	return &Error{
		Provider:   provider,
		StatusCode: status,
		Message:    body,
		Retryable:  status >= 500 || status == 429,
	}
}

// ValidationError represents a request validation failure. No provider is
// contacted when validation fails; the error is surfaced immediately.
type ValidationError struct {
	// Field is the name of the invalid field
	Field string

	// Message describes what is invalid about the field
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %q: %s", e.Field, e.Message)
}

// RateLimitExceededError is raised by the gateway when a provider's local
// sliding-window rate limit is exhausted. The adapter is never called.
// The error is retryable at the fallback layer (a different provider may
// accept the request) but not at the adapter-retry layer.
type RateLimitExceededError struct {
	// Provider is the rate-limited provider
	Provider string

	// Limit is the configured request limit per window
	Limit int

	// Window is the sliding window duration
	Window time.Duration
}

// Error implements the error interface.
func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("provider %q rate limit exceeded (%d requests per %s)", e.Provider, e.Limit, e.Window)
}

// CircuitOpenError is raised by the gateway when a provider's circuit
// breaker is open. The adapter is never called. Like rate limiting, it is
// retryable at the fallback layer only.
type CircuitOpenError struct {
	// Provider is the provider whose breaker is open
	Provider string

	// RetryAt is when the breaker will next allow an attempt
	RetryAt time.Time
}

// Error implements the error interface.
func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("provider %q circuit breaker is open (retry at %s)", e.Provider, e.RetryAt.Format(time.RFC3339))
}

// CostExceededError is raised pre-dispatch when the estimated request cost
// exceeds the configured per-request maximum. Non-retryable.
type CostExceededError struct {
	// Model is the requested model
	Model string

	// Estimated is the estimated request cost in USD
	Estimated float64

	// Limit is the configured per-request cost limit in USD
	Limit float64
}

// Error implements the error interface.
func (e *CostExceededError) Error() string {
	return fmt.Sprintf("estimated cost $%.4f for model %q exceeds per-request limit $%.4f", e.Estimated, e.Model, e.Limit)
}

// ModelNotSupportedError indicates an adapter was asked to serve a model it
// does not recognize.
type ModelNotSupportedError struct {
	// Provider is the name of the provider
	Provider string

	// Model is the requested model identifier
	Model string
}

// Error implements the error interface.
func (e *ModelNotSupportedError) Error() string {
	return fmt.Sprintf("provider %q does not support model %q", e.Provider, e.Model)
}

// IsRetryable reports whether err is a transient provider failure that may
// succeed against a different provider. Rate-limit and circuit-open errors
// are retryable at the fallback layer even though adapters never retry them.
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	var rl *RateLimitExceededError
	if errors.As(err, &rl) {
		return true
	}
	var co *CircuitOpenError
	if errors.As(err, &co) {
		return true
	}
	return false
}
