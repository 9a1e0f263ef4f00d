// Package anthropic implements the provider adapter for Anthropic's
// Messages API. The wire protocol differs substantially from the
// chat-completions shape: authentication uses the x-api-key header, system
// text moves into a dedicated request slot, message sequences must strictly
// alternate user/assistant, and streaming uses typed SSE events.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"mercator-hq/ganymede/pkg/providers"
)

// APIVersion is the anthropic-version header value.
const APIVersion = "2023-06-01"

// Client is the Anthropic provider adapter.
type Client struct {
	*providers.HTTPClient
}

// NewClient creates a new Anthropic provider instance.
func NewClient(config providers.ProviderConfig) (*Client, error) {
	if config.Name == "" {
		config.Name = "anthropic"
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.anthropic.com/v1"
	}
	if config.APIKey == "" {
		return nil, &providers.ValidationError{
			Field:   "api_key",
			Message: "API key is required for Anthropic",
		}
	}

	c := &Client{HTTPClient: providers.NewHTTPClient(config)}

	slog.Info("Anthropic provider initialized",
		"provider", config.Name,
		"base_url", config.BaseURL,
	)

	return c, nil
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return c.Config().Name
}

// SupportsModel reports whether the model is a Claude family model.
func (c *Client) SupportsModel(model string) bool {
	return strings.HasPrefix(strings.ToLower(model), "claude")
}

// Complete issues a streaming Messages API request.
func (c *Client) Complete(ctx context.Context, req *providers.CompletionRequest) (providers.Stream, error) {
	if !c.SupportsModel(req.Model) {
		return nil, &providers.ModelNotSupportedError{Provider: c.Name(), Model: req.Model}
	}

	wireReq := transformRequest(req)
	body, err := json.Marshal(wireReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/messages", c.Config().BaseURL)
	headers := map[string]string{
		"x-api-key":         c.Config().APIKey,
		"anthropic-version": APIVersion,
	}

	resp, err := c.DoRequest(ctx, "POST", url, body, headers)
	if err != nil {
		return nil, err
	}

	return newMessageStream(c.Name(), resp.Body), nil
}
