package openai

import "mercator-hq/ganymede/pkg/providers"

// Request is a chat-completions request body.
type Request struct {
	Model            string            `json:"model"`
	Messages         []Message         `json:"messages"`
	Temperature      float64           `json:"temperature,omitempty"`
	TopP             float64           `json:"top_p,omitempty"`
	MaxTokens        int               `json:"max_tokens,omitempty"`
	PresencePenalty  float64           `json:"presence_penalty,omitempty"`
	FrequencyPenalty float64           `json:"frequency_penalty,omitempty"`
	Stop             []string          `json:"stop,omitempty"`
	Stream           bool              `json:"stream"`
	StreamOptions    *StreamOptions    `json:"stream_options,omitempty"`
	ReasoningEffort  string            `json:"reasoning_effort,omitempty"`
	Reasoning        *ReasoningOptions `json:"reasoning,omitempty"`
}

// Message is a chat-completions message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamOptions controls streaming behaviour.
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// ReasoningOptions is the OpenRouter-style reasoning request extension.
// OpenAI itself takes a bare reasoning_effort string instead.
type ReasoningOptions struct {
	Effort  string `json:"effort,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// Chunk is one streamed chat-completions chunk.
type Chunk struct {
	ID      string        `json:"id"`
	Model   string        `json:"model"`
	Created int64         `json:"created"`
	Choices []ChunkChoice `json:"choices"`
	Usage   *UsageBlock   `json:"usage,omitempty"`
}

// ChunkChoice is one choice within a streamed chunk.
type ChunkChoice struct {
	Index        int        `json:"index"`
	Delta        ChunkDelta `json:"delta"`
	FinishReason string     `json:"finish_reason,omitempty"`
}

// ChunkDelta carries the incremental fragments of a choice. Reasoning
// fragments appear under different keys depending on the vendor.
type ChunkDelta struct {
	Content          string `json:"content,omitempty"`
	Reasoning        string `json:"reasoning,omitempty"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
}

// UsageBlock is the usage snapshot carried by the final chunk.
type UsageBlock struct {
	PromptTokens            int                     `json:"prompt_tokens"`
	CompletionTokens        int                     `json:"completion_tokens"`
	TotalTokens             int                     `json:"total_tokens"`
	Cost                    float64                 `json:"cost,omitempty"`
	CompletionTokensDetails *CompletionTokenDetails `json:"completion_tokens_details,omitempty"`
}

// CompletionTokenDetails breaks down completion tokens by kind.
type CompletionTokenDetails struct {
	ReasoningTokens int `json:"reasoning_tokens"`
}

// BuildRequest converts a neutral completion request to chat-completions
// wire format. Streaming is always enabled with usage reporting; the
// reasoning directive is left for each adapter to map into its vendor's
// slot.
func BuildRequest(req *providers.CompletionRequest) *Request {
	out := &Request{
		Model:            req.Model,
		Messages:         make([]Message, 0, len(req.Messages)),
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		MaxTokens:        req.MaxTokens,
		PresencePenalty:  req.PresencePenalty,
		FrequencyPenalty: req.FrequencyPenalty,
		Stop:             req.Stop,
		Stream:           true,
		StreamOptions:    &StreamOptions{IncludeUsage: true},
	}
	for _, msg := range req.Messages {
		out.Messages = append(out.Messages, Message{Role: msg.Role, Content: msg.Content})
	}
	return out
}

// ToUsage converts a wire usage block to the neutral representation.
func (u *UsageBlock) ToUsage() *providers.Usage {
	if u == nil {
		return nil
	}
	usage := &providers.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
		NativeCost:       u.Cost,
	}
	if u.CompletionTokensDetails != nil {
		usage.ReasoningTokens = u.CompletionTokensDetails.ReasoningTokens
	}
	return usage
}
