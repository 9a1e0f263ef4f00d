// Package openrouter implements the universal provider adapter.
//
// OpenRouter aggregates many vendors behind one chat-completions compatible
// endpoint and accepts arbitrary vendor-prefixed model identifiers
// ("openai/gpt-4o", "anthropic/claude-3-opus", ...). The registry routes to
// this adapter whenever no vendor-native provider claims a model, which is
// what makes model resolution total.
package openrouter

import (
	"context"
	"fmt"
	"log/slog"

	"mercator-hq/ganymede/pkg/providers"
	"mercator-hq/ganymede/pkg/providers/openai"
)

// Attribution headers requested by OpenRouter for traffic accounting.
const (
	refererHeader = "https://github.com/mercator-hq/ganymede"
	titleHeader   = "Ganymede Completion Gateway"
)

// Client is the OpenRouter provider adapter.
type Client struct {
	*providers.HTTPClient
}

// NewClient creates a new OpenRouter provider instance.
func NewClient(config providers.ProviderConfig) (*Client, error) {
	if config.Name == "" {
		config.Name = "openrouter"
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://openrouter.ai/api/v1"
	}
	if config.APIKey == "" {
		return nil, &providers.ValidationError{
			Field:   "api_key",
			Message: "API key is required for OpenRouter",
		}
	}

	c := &Client{HTTPClient: providers.NewHTTPClient(config)}

	slog.Info("OpenRouter provider initialized",
		"provider", config.Name,
		"base_url", config.BaseURL,
	)

	return c, nil
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return c.Config().Name
}

// SupportsModel accepts any non-empty model identifier; unknown ids are
// passed through to the aggregator unchanged.
func (c *Client) SupportsModel(model string) bool {
	return model != ""
}

// Complete issues a streaming chat-completions request through OpenRouter.
func (c *Client) Complete(ctx context.Context, req *providers.CompletionRequest) (providers.Stream, error) {
	if req.Model == "" {
		return nil, &providers.ValidationError{Field: "model", Message: "model is required"}
	}

	wireReq := openai.BuildRequest(req)
	if req.Reasoning != nil {
		wireReq.Reasoning = &openai.ReasoningOptions{
			Effort:  req.Reasoning.Effort,
			Summary: req.Reasoning.Summary,
		}
	}

	url := fmt.Sprintf("%s/chat/completions", c.Config().BaseURL)

	return openai.OpenStream(ctx, c.HTTPClient, url, wireReq, c.headers())
}

// GenerationStats fetches post-completion usage statistics for a
// generation. OpenRouter computes native cost and reasoning-token counts
// asynchronously, so this may legitimately return nothing right after a
// stream finishes.
func (c *Client) GenerationStats(ctx context.Context, generationID string) (*providers.Usage, error) {
	url := fmt.Sprintf("%s/generation?id=%s", c.Config().BaseURL, generationID)

	var stats generationStatsResponse
	if err := c.DoJSONRequest(ctx, "GET", url, nil, &stats, c.headers()); err != nil {
		return nil, err
	}
	if stats.Data == nil {
		return nil, nil
	}

	usage := &providers.Usage{
		PromptTokens:     stats.Data.TokensPrompt,
		CompletionTokens: stats.Data.TokensCompletion,
		TotalTokens:      stats.Data.TokensPrompt + stats.Data.TokensCompletion,
		NativeCost:       stats.Data.TotalCost,
	}
	if d := stats.Data.NativeTokensDetails; d != nil {
		usage.ReasoningTokens = d.ReasoningTokens
		if usage.ReasoningTokens == 0 && d.CompletionTokensDetails != nil {
			usage.ReasoningTokens = d.CompletionTokensDetails.ReasoningTokens
		}
	}
	return usage, nil
}

// ListModels fetches the aggregator's model catalog. The registry uses it
// to refresh model metadata, falling back to static defaults on failure.
func (c *Client) ListModels(ctx context.Context) ([]providers.ModelInfo, error) {
	url := fmt.Sprintf("%s/models", c.Config().BaseURL)

	var catalog modelCatalogResponse
	if err := c.DoJSONRequest(ctx, "GET", url, nil, &catalog, c.headers()); err != nil {
		return nil, err
	}

	infos := make([]providers.ModelInfo, 0, len(catalog.Data))
	for _, m := range catalog.Data {
		infos = append(infos, providers.ModelInfo{
			ID:                 m.ID,
			DisplayName:        m.Name,
			Provider:           c.Name(),
			ContextLength:      m.ContextLength,
			InputPricePerM:     m.Pricing.Prompt * 1e6,
			OutputPricePerM:    m.Pricing.Completion * 1e6,
			ReasoningPricePerM: m.Pricing.Completion * 1e6,
			SupportsReasoning:  m.SupportedParameters.has("reasoning"),
			SupportsStreaming:  true,
		})
	}
	return infos, nil
}

func (c *Client) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + c.Config().APIKey,
		"HTTP-Referer":  refererHeader,
		"X-Title":       titleHeader,
	}
}

// generationStatsResponse is the wire shape of GET /generation.
type generationStatsResponse struct {
	Data *generationStats `json:"data"`
}

type generationStats struct {
	ID                  string               `json:"id"`
	TokensPrompt        int                  `json:"tokens_prompt"`
	TokensCompletion    int                  `json:"tokens_completion"`
	TotalCost           float64              `json:"total_cost"`
	NativeTokensDetails *nativeTokensDetails `json:"native_tokens_details"`
}

type nativeTokensDetails struct {
	ReasoningTokens         int `json:"reasoning_tokens"`
	CompletionTokensDetails *struct {
		ReasoningTokens int `json:"reasoning_tokens"`
	} `json:"completion_tokens_details"`
}

// modelCatalogResponse is the wire shape of GET /models.
type modelCatalogResponse struct {
	Data []catalogModel `json:"data"`
}

type catalogModel struct {
	ID                  string           `json:"id"`
	Name                string           `json:"name"`
	ContextLength       int              `json:"context_length"`
	Pricing             catalogPricing   `json:"pricing"`
	SupportedParameters supportedParams  `json:"supported_parameters"`
}

// catalogPricing is quoted in USD per token on the wire.
type catalogPricing struct {
	Prompt     float64 `json:"prompt,string"`
	Completion float64 `json:"completion,string"`
}

type supportedParams []string

func (s supportedParams) has(name string) bool {
	for _, p := range s {
		if p == name {
			return true
		}
	}
	return false
}
