package openai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"mercator-hq/ganymede/pkg/providers"
)

// modelPrefixes are the model families served natively by OpenAI.
var modelPrefixes = []string{"gpt-", "o1", "o3", "o4", "chatgpt-"}

// Client is the OpenAI provider adapter.
type Client struct {
	*providers.HTTPClient
}

// NewClient creates a new OpenAI provider instance.
func NewClient(config providers.ProviderConfig) (*Client, error) {
	if config.Name == "" {
		config.Name = "openai"
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	if config.APIKey == "" {
		return nil, &providers.ValidationError{
			Field:   "api_key",
			Message: "API key is required for OpenAI",
		}
	}

	c := &Client{HTTPClient: providers.NewHTTPClient(config)}

	slog.Info("OpenAI provider initialized",
		"provider", config.Name,
		"base_url", config.BaseURL,
	)

	return c, nil
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return c.Config().Name
}

// SupportsModel reports whether the model belongs to an OpenAI family.
func (c *Client) SupportsModel(model string) bool {
	lower := strings.ToLower(model)
	for _, prefix := range modelPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// Complete issues a streaming chat-completions request.
func (c *Client) Complete(ctx context.Context, req *providers.CompletionRequest) (providers.Stream, error) {
	if !c.SupportsModel(req.Model) {
		return nil, &providers.ModelNotSupportedError{Provider: c.Name(), Model: req.Model}
	}

	wireReq := BuildRequest(req)
	if req.Reasoning != nil {
		// OpenAI takes a bare effort string rather than an object.
		wireReq.ReasoningEffort = req.Reasoning.Effort
	}

	url := fmt.Sprintf("%s/chat/completions", c.Config().BaseURL)
	headers := map[string]string{
		"Authorization": "Bearer " + c.Config().APIKey,
	}

	return OpenStream(ctx, c.HTTPClient, url, wireReq, headers)
}
