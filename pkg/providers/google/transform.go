package google

import (
	"strings"

	"mercator-hq/ganymede/pkg/providers"
)

// Gemini generateContent wire types.

// Request represents a generateContent request.
type Request struct {
	Contents          []Content         `json:"contents"`
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
}

// Content is one conversational turn.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is one fragment of a turn. Thought parts carry reasoning summaries.
type Part struct {
	Text    string `json:"text"`
	Thought bool   `json:"thought,omitempty"`
}

// GenerationConfig nests the sampling parameters.
type GenerationConfig struct {
	Temperature     float64  `json:"temperature,omitempty"`
	TopP            float64  `json:"topP,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

// StreamResponse is one SSE frame of a streaming generateContent call.
type StreamResponse struct {
	ResponseID    string         `json:"responseId,omitempty"`
	ModelVersion  string         `json:"modelVersion,omitempty"`
	Candidates    []Candidate    `json:"candidates"`
	UsageMetadata *UsageMetadata `json:"usageMetadata,omitempty"`
}

// Candidate is one alternative completion.
type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
	Index        int     `json:"index"`
}

// UsageMetadata is Gemini's token accounting block.
type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
	ThoughtsTokenCount   int `json:"thoughtsTokenCount,omitempty"`
}

// transformRequest converts a neutral request into Gemini's shape: system
// turns collect into systemInstruction, the assistant role becomes "model",
// and sampling parameters nest under generationConfig.
func transformRequest(req *providers.CompletionRequest) *Request {
	out := &Request{}

	var systemParts []string
	for _, msg := range req.Messages {
		if msg.Role == providers.RoleSystem {
			systemParts = append(systemParts, msg.Content)
			continue
		}

		role := msg.Role
		if role == providers.RoleAssistant {
			role = "model"
		}
		out.Contents = append(out.Contents, Content{
			Role:  role,
			Parts: []Part{{Text: msg.Content}},
		})
	}

	if len(systemParts) > 0 {
		out.SystemInstruction = &Content{
			Parts: []Part{{Text: strings.Join(systemParts, "\n\n")}},
		}
	}

	if req.Temperature != 0 || req.TopP != 0 || req.MaxTokens != 0 || len(req.Stop) > 0 {
		out.GenerationConfig = &GenerationConfig{
			Temperature:     req.Temperature,
			TopP:            req.TopP,
			MaxOutputTokens: req.MaxTokens,
			StopSequences:   req.Stop,
		}
	}

	return out
}

// mapFinishReason converts Gemini finish reasons to neutral ones.
func mapFinishReason(reason string) string {
	switch reason {
	case "STOP":
		return providers.FinishReasonStop
	case "MAX_TOKENS":
		return providers.FinishReasonLength
	case "SAFETY", "BLOCKLIST", "PROHIBITED_CONTENT":
		return providers.FinishReasonContentFilter
	case "":
		return ""
	default:
		return strings.ToLower(reason)
	}
}
