package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultTimeout is the per-request timeout applied when none is configured.
const DefaultTimeout = 120 * time.Second

// HTTPClient is the base implementation shared by HTTP-based provider
// adapters. It provides connection pooling, retry with linearly increasing
// backoff, timeout handling, and error normalization.
//
// Concrete adapters (OpenAI, Anthropic, etc.) embed this struct and build
// their wire-protocol translation on top of DoRequest/DoJSONRequest.
type HTTPClient struct {
	config ProviderConfig
	client *http.Client
}

// NewHTTPClient creates a new base HTTP client with connection pooling.
func NewHTTPClient(config ProviderConfig) *HTTPClient {
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.RetryBackoff == 0 {
		config.RetryBackoff = time.Second
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 100
	}
	if config.MaxIdleConnsPerHost == 0 {
		config.MaxIdleConnsPerHost = 10
	}
	if config.IdleConnTimeout == 0 {
		config.IdleConnTimeout = 90 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &HTTPClient{
		config: config,
		client: &http.Client{Transport: transport},
	}
}

// Config returns the client's provider configuration.
func (c *HTTPClient) Config() ProviderConfig {
	return c.config
}

// DoRequest performs an HTTP request with retry logic and timeout handling.
// Transient errors (5xx, 429, network failures) are retried with linearly
// increasing backoff: attempt n waits n * RetryBackoff before retrying.
//
// On success the caller owns the response body and must close it. On
// failure the returned error is always from the package's error taxonomy.
func (c *HTTPClient) DoRequest(ctx context.Context, method, url string, body []byte, headers map[string]string) (*http.Response, error) {
	// Per-call timeout, distinct from any task-level cancellation carried
	// by the parent context.
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * c.config.RetryBackoff
			slog.Debug("retrying request",
				"provider", c.config.Name,
				"attempt", attempt,
				"max_retries", c.config.MaxRetries,
				"backoff", backoff,
			)

			select {
			case <-ctx.Done():
				cancel()
				return nil, &Error{
					Provider:  c.config.Name,
					Message:   fmt.Sprintf("request timed out after %s", c.config.Timeout),
					Retryable: true,
					Cause:     ctx.Err(),
				}
			case <-time.After(backoff):
			}
		}

		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		for key, value := range headers {
			req.Header.Set(key, value)
		}
		if req.Header.Get("Content-Type") == "" && body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				cancel()
				return nil, &Error{
					Provider:  c.config.Name,
					Message:   fmt.Sprintf("request timed out after %s", c.config.Timeout),
					Retryable: true,
					Cause:     ctx.Err(),
				}
			}

			// Network error, retry.
			lastErr = &Error{
				Provider:  c.config.Name,
				Message:   "request failed",
				Retryable: true,
				Cause:     err,
			}
			slog.Warn("request failed, will retry",
				"provider", c.config.Name,
				"attempt", attempt+1,
				"error", err,
			)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			// Tie the timeout's cancel to body closure so streaming reads
			// stay alive for the full per-call window.
			resp.Body = &cancelOnCloseBody{ReadCloser: resp.Body, cancel: cancel}
			return resp, nil
		}

		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		httpErr := NewHTTPError(c.config.Name, resp.StatusCode, string(errorBody))
		if !httpErr.Retryable {
			cancel()
			return nil, httpErr
		}

		lastErr = httpErr
		slog.Warn("request returned error status, will retry",
			"provider", c.config.Name,
			"status", resp.StatusCode,
			"attempt", attempt+1,
		)
	}

	cancel()
	return nil, lastErr
}

// DoJSONRequest performs a JSON request and decodes the response.
func (c *HTTPClient) DoJSONRequest(ctx context.Context, method, url string, reqBody, respBody interface{}, headers map[string]string) error {
	var bodyBytes []byte
	var err error
	if reqBody != nil {
		bodyBytes, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	resp, err := c.DoRequest(ctx, method, url, bodyBytes, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	responseBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{
			Provider:  c.config.Name,
			Message:   "failed to read response",
			Retryable: true,
			Cause:     err,
		}
	}

	if respBody != nil && len(responseBytes) > 0 {
		if err := json.Unmarshal(responseBytes, respBody); err != nil {
			return &Error{
				Provider: c.config.Name,
				Message:  fmt.Sprintf("failed to decode response: %v", err),
				Cause:    err,
			}
		}
	}

	return nil
}

// Close closes idle connections held by the client pool.
func (c *HTTPClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// cancelOnCloseBody releases the per-call timeout context when the
// response body is closed.
type cancelOnCloseBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnCloseBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
