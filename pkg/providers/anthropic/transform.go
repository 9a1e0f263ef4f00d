package anthropic

import (
	"strings"

	"mercator-hq/ganymede/pkg/providers"
)

// Anthropic Messages API request/response types.

// Request represents an Anthropic messages request.
type Request struct {
	Model         string        `json:"model"`
	Messages      []WireMessage `json:"messages"`
	System        string        `json:"system,omitempty"`
	MaxTokens     int           `json:"max_tokens"`
	Temperature   float64       `json:"temperature,omitempty"`
	TopP          float64       `json:"top_p,omitempty"`
	Stream        bool          `json:"stream,omitempty"`
	StopSequences []string      `json:"stop_sequences,omitempty"`
	Thinking      *Thinking     `json:"thinking,omitempty"`
}

// WireMessage represents a message in Anthropic format.
type WireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Thinking requests extended thinking from capable models.
type Thinking struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens,omitempty"`
}

// WireUsage represents token usage in Anthropic format.
type WireUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// StreamEvent represents an event in Anthropic's SSE stream.
// The payload fields are sparsely populated depending on the event type
// (message_start, content_block_delta, message_delta, message_stop, ...).
type StreamEvent struct {
	Type    string        `json:"type"`
	Index   int           `json:"index,omitempty"`
	Message *MessageStart `json:"message,omitempty"`
	Delta   *EventDelta   `json:"delta,omitempty"`
	Usage   *WireUsage    `json:"usage,omitempty"`
}

// MessageStart is the payload of a message_start event.
type MessageStart struct {
	ID    string     `json:"id"`
	Model string     `json:"model"`
	Usage *WireUsage `json:"usage,omitempty"`
}

// EventDelta carries both content_block_delta and message_delta payloads;
// the Type field distinguishes text deltas from thinking deltas.
type EventDelta struct {
	Type       string `json:"type,omitempty"`
	Text       string `json:"text,omitempty"`
	Thinking   string `json:"thinking,omitempty"`
	StopReason string `json:"stop_reason,omitempty"`
}

// Reasoning-effort to thinking-budget mapping. Anthropic expresses effort
// as a token budget rather than an enum.
var thinkingBudgets = map[string]int{
	"low":    1024,
	"medium": 4096,
	"high":   16384,
}

// transformRequest converts a neutral request to Anthropic's message shape:
// system turns move into the dedicated system slot, consecutive same-role
// turns merge, and the sequence is forced to start with a user turn.
func transformRequest(req *providers.CompletionRequest) *Request {
	out := &Request{
		Model:         req.Model,
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		Stream:        true,
		StopSequences: req.Stop,
	}

	// max_tokens is mandatory for the Messages API.
	if out.MaxTokens == 0 {
		out.MaxTokens = 4096
	}

	var systemParts []string
	var converted []WireMessage
	for _, msg := range req.Messages {
		if msg.Role == providers.RoleSystem {
			systemParts = append(systemParts, msg.Content)
			continue
		}
		converted = append(converted, WireMessage{Role: msg.Role, Content: msg.Content})
	}
	out.System = strings.Join(systemParts, "\n\n")
	out.Messages = normalizeSequence(converted)

	if req.Reasoning != nil && req.Reasoning.Effort != "" {
		budget := thinkingBudgets[req.Reasoning.Effort]
		if budget == 0 {
			budget = thinkingBudgets["medium"]
		}
		out.Thinking = &Thinking{Type: "enabled", BudgetTokens: budget}
	}

	return out
}

// normalizeSequence merges consecutive same-role turns and ensures the
// sequence starts with a user turn, as the Messages API requires strict
// user/assistant alternation.
func normalizeSequence(messages []WireMessage) []WireMessage {
	if len(messages) == 0 {
		return messages
	}

	merged := make([]WireMessage, 0, len(messages))
	for _, msg := range messages {
		if len(merged) > 0 && merged[len(merged)-1].Role == msg.Role {
			merged[len(merged)-1].Content += "\n\n" + msg.Content
			continue
		}
		merged = append(merged, msg)
	}

	if merged[0].Role != providers.RoleUser {
		merged = append([]WireMessage{{
			Role:    providers.RoleUser,
			Content: "Please respond to the following:",
		}}, merged...)
	}

	return merged
}
