// Package google implements the provider adapter for Google's Gemini
// generateContent API. Assistant turns map to the "model" role, system text
// moves into the systemInstruction slot, and sampling parameters nest under
// generationConfig.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"mercator-hq/ganymede/pkg/providers"
)

// Client is the Google Gemini provider adapter.
type Client struct {
	*providers.HTTPClient
}

// NewClient creates a new Google provider instance.
func NewClient(config providers.ProviderConfig) (*Client, error) {
	if config.Name == "" {
		config.Name = "google"
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if config.APIKey == "" {
		return nil, &providers.ValidationError{
			Field:   "api_key",
			Message: "API key is required for Google",
		}
	}

	c := &Client{HTTPClient: providers.NewHTTPClient(config)}

	slog.Info("Google provider initialized",
		"provider", config.Name,
		"base_url", config.BaseURL,
	)

	return c, nil
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return c.Config().Name
}

// SupportsModel reports whether the model is a Gemini family model.
func (c *Client) SupportsModel(model string) bool {
	return strings.HasPrefix(strings.ToLower(model), "gemini")
}

// Complete issues a streaming generateContent request.
func (c *Client) Complete(ctx context.Context, req *providers.CompletionRequest) (providers.Stream, error) {
	if !c.SupportsModel(req.Model) {
		return nil, &providers.ModelNotSupportedError{Provider: c.Name(), Model: req.Model}
	}

	wireReq := transformRequest(req)
	body, err := json.Marshal(wireReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", c.Config().BaseURL, req.Model)
	headers := map[string]string{
		"x-goog-api-key": c.Config().APIKey,
	}

	resp, err := c.DoRequest(ctx, "POST", url, body, headers)
	if err != nil {
		return nil, err
	}

	return newGenerateStream(c.Name(), req.Model, resp.Body), nil
}
