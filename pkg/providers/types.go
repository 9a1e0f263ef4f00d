package providers

import "time"

// Message represents a single message in a conversation.
// It is provider-agnostic and will be transformed to provider-specific formats.
type Message struct {
	// Role identifies the message sender (system, user, assistant)
	Role string `json:"role"`

	// Content is the message text content
	Content string `json:"content"`
}

// ReasoningDirective controls how much internal reasoning a model performs
// and how that reasoning is surfaced to the caller.
type ReasoningDirective struct {
	// Effort is the requested reasoning effort (low, medium, high)
	Effort string `json:"effort,omitempty"`

	// Summary controls reasoning summary visibility (auto, concise, detailed)
	Summary string `json:"summary,omitempty"`
}

// CompletionRequest represents a provider-agnostic completion request.
// It is transformed to provider-specific formats by each adapter and is
// immutable once issued.
type CompletionRequest struct {
	// Model is the model identifier (e.g., "gpt-4o", "claude-3-5-sonnet-20241022")
	Model string `json:"model"`

	// Messages is the conversation history
	Messages []Message `json:"messages"`

	// Temperature controls randomness (0.0 to 2.0, typically 0.0 to 1.0)
	Temperature float64 `json:"temperature,omitempty"`

	// TopP controls nucleus sampling (0.0 to 1.0)
	TopP float64 `json:"top_p,omitempty"`

	// MaxTokens is the maximum number of tokens to generate
	MaxTokens int `json:"max_tokens,omitempty"`

	// PresencePenalty reduces repetition (-2.0 to 2.0)
	PresencePenalty float64 `json:"presence_penalty,omitempty"`

	// FrequencyPenalty reduces repetition based on frequency (-2.0 to 2.0)
	FrequencyPenalty float64 `json:"frequency_penalty,omitempty"`

	// Stop sequences that will halt generation
	Stop []string `json:"stop,omitempty"`

	// Reasoning optionally requests extended reasoning from capable models
	Reasoning *ReasoningDirective `json:"reasoning,omitempty"`
}

// Usage tracks token consumption for a request.
// It appears both as a stream artifact (final chunk) and as the basis for
// cost calculation.
type Usage struct {
	// PromptTokens is the number of tokens in the prompt
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens is the number of tokens in the completion
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is the total number of tokens used (prompt + completion)
	TotalTokens int `json:"total_tokens"`

	// ReasoningTokens is the number of internal reasoning tokens consumed
	ReasoningTokens int `json:"reasoning_tokens,omitempty"`

	// NativeCost is the cost reported by the vendor, in USD.
	// When present it takes precedence over any computed estimate.
	NativeCost float64 `json:"native_cost,omitempty"`
}

// Delta is the incremental payload of one streaming choice.
type Delta struct {
	// Content is an incremental fragment of the output text
	Content string `json:"content,omitempty"`

	// Reasoning is an incremental fragment of the model's reasoning summary
	Reasoning string `json:"reasoning,omitempty"`
}

// Choice is one alternative completion within a stream chunk.
type Choice struct {
	// Index identifies the choice within the response
	Index int `json:"index"`

	// Delta is the incremental content in this chunk
	Delta Delta `json:"delta"`

	// FinishReason is set in the final chunk to indicate why generation stopped
	// (stop, length, content_filter)
	FinishReason string `json:"finish_reason,omitempty"`
}

// StreamChunk represents a single chunk in a streaming response.
// Chunks for one request are strictly ordered; the last chunk carries the
// final usage snapshot when the vendor reports one.
type StreamChunk struct {
	// ID is the response identifier (same across all chunks)
	ID string `json:"id"`

	// Model is the model generating the response
	Model string `json:"model"`

	// Choices carries the incremental deltas
	Choices []Choice `json:"choices"`

	// Usage is included in the final chunk (if supported by provider)
	Usage *Usage `json:"usage,omitempty"`

	// Created is the Unix timestamp when the chunk was created
	Created int64 `json:"created,omitempty"`
}

// ContentDelta returns the content fragment of the chunk's first choice.
func (c *StreamChunk) ContentDelta() string {
	if len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].Delta.Content
}

// ReasoningDelta returns the reasoning fragment of the chunk's first choice.
func (c *StreamChunk) ReasoningDelta() string {
	if len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].Delta.Reasoning
}

// ModelInfo describes a model's capabilities and pricing.
// Prices are expressed in USD per million tokens. This is read-only
// reference data; the registry refreshes it periodically from vendor
// catalogs and falls back to static defaults when unavailable.
type ModelInfo struct {
	// ID is the model identifier
	ID string `json:"id"`

	// DisplayName is a human-readable model name
	DisplayName string `json:"display_name"`

	// Provider is the name of the provider that serves this model
	Provider string `json:"provider"`

	// ContextLength is the maximum context window in tokens
	ContextLength int `json:"context_length"`

	// InputPricePerM is the input price in USD per million tokens
	InputPricePerM float64 `json:"input_price_per_m"`

	// OutputPricePerM is the output price in USD per million tokens
	OutputPricePerM float64 `json:"output_price_per_m"`

	// ReasoningPricePerM is the reasoning-token price in USD per million tokens
	ReasoningPricePerM float64 `json:"reasoning_price_per_m"`

	// SupportsReasoning indicates whether the model emits reasoning tokens
	SupportsReasoning bool `json:"supports_reasoning"`

	// SupportsStreaming indicates whether the model supports streaming output
	SupportsStreaming bool `json:"supports_streaming"`
}

// CalculateCost computes the USD cost of the given usage at this model's
// list prices. If the vendor reported a native cost in the usage, that
// value takes precedence over the computed estimate.
func (m *ModelInfo) CalculateCost(usage *Usage) float64 {
	if usage == nil {
		return 0
	}
	if usage.NativeCost > 0 {
		return usage.NativeCost
	}
	cost := float64(usage.PromptTokens) / 1e6 * m.InputPricePerM
	cost += float64(usage.CompletionTokens) / 1e6 * m.OutputPricePerM
	cost += float64(usage.ReasoningTokens) / 1e6 * m.ReasoningPricePerM
	return cost
}

// ProviderConfig contains configuration for a single provider instance.
type ProviderConfig struct {
	// Name is the provider identifier (e.g., "openai", "anthropic")
	Name string

	// BaseURL is the API endpoint base URL
	BaseURL string

	// APIKey is the authentication key
	APIKey string

	// Timeout is the per-request timeout duration
	Timeout time.Duration

	// MaxRetries is the maximum number of adapter-internal retry attempts
	MaxRetries int

	// RetryBackoff is the base delay between retries; the actual delay
	// increases linearly with the attempt number
	RetryBackoff time.Duration

	// MaxIdleConns is the maximum number of idle connections in the pool
	MaxIdleConns int

	// MaxIdleConnsPerHost is the maximum idle connections per host
	MaxIdleConnsPerHost int

	// IdleConnTimeout is how long an idle connection remains in the pool
	IdleConnTimeout time.Duration
}

// Message role constants
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Finish reason constants
const (
	FinishReasonStop          = "stop"
	FinishReasonLength        = "length"
	FinishReasonContentFilter = "content_filter"
)
