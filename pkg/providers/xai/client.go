// Package xai implements the provider adapter for XAI's Grok models.
// The API is chat-completions compatible, so the adapter reuses the openai
// package's wire codec and differs only in endpoint and reasoning mapping.
package xai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"mercator-hq/ganymede/pkg/providers"
	"mercator-hq/ganymede/pkg/providers/openai"
)

// Client is the XAI provider adapter.
type Client struct {
	*providers.HTTPClient
}

// NewClient creates a new XAI provider instance.
func NewClient(config providers.ProviderConfig) (*Client, error) {
	if config.Name == "" {
		config.Name = "xai"
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.x.ai/v1"
	}
	if config.APIKey == "" {
		return nil, &providers.ValidationError{
			Field:   "api_key",
			Message: "API key is required for XAI",
		}
	}

	c := &Client{HTTPClient: providers.NewHTTPClient(config)}

	slog.Info("XAI provider initialized",
		"provider", config.Name,
		"base_url", config.BaseURL,
	)

	return c, nil
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return c.Config().Name
}

// SupportsModel reports whether the model is a Grok family model.
func (c *Client) SupportsModel(model string) bool {
	return strings.Contains(strings.ToLower(model), "grok")
}

// Complete issues a streaming chat-completions request against XAI.
func (c *Client) Complete(ctx context.Context, req *providers.CompletionRequest) (providers.Stream, error) {
	if !c.SupportsModel(req.Model) {
		return nil, &providers.ModelNotSupportedError{Provider: c.Name(), Model: req.Model}
	}

	wireReq := openai.BuildRequest(req)
	if req.Reasoning != nil {
		// Grok only honours the summary mode; effort is implicit.
		wireReq.Reasoning = &openai.ReasoningOptions{Summary: req.Reasoning.Summary}
	}

	url := fmt.Sprintf("%s/chat/completions", c.Config().BaseURL)
	headers := map[string]string{
		"Authorization": "Bearer " + c.Config().APIKey,
	}

	return openai.OpenStream(ctx, c.HTTPClient, url, wireReq, headers)
}
