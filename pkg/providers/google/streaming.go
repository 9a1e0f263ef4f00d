package google

import (
	"context"
	"encoding/json"
	"io"

	"mercator-hq/ganymede/pkg/providers"
)

// generateStream adapts a Gemini SSE body into a providers.Stream.
type generateStream struct {
	provider string
	model    string
	body     io.ReadCloser
	scanner  *providers.SSEScanner
	usage    *providers.Usage
	id       string
	done     bool
}

func newGenerateStream(provider, model string, body io.ReadCloser) *generateStream {
	return &generateStream{
		provider: provider,
		model:    model,
		body:     body,
		scanner:  providers.NewSSEScanner(body),
	}
}

// Recv returns the next chunk. Gemini has no done sentinel; the final
// frame carries usageMetadata and the stream simply ends.
func (s *generateStream) Recv(ctx context.Context) (*providers.StreamChunk, error) {
	if s.done {
		return nil, io.EOF
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		event, err := s.scanner.Next()
		if err != nil {
			if err == io.EOF {
				s.done = true
				return nil, io.EOF
			}
			return nil, &providers.Error{
				Provider:  s.provider,
				Message:   "failed to read stream",
				Retryable: true,
				Cause:     err,
			}
		}

		if event.Data == "" {
			continue
		}

		var wire StreamResponse
		if err := json.Unmarshal([]byte(event.Data), &wire); err != nil {
			continue
		}

		chunk := s.transform(&wire)
		if chunk != nil {
			return chunk, nil
		}
	}
}

func (s *generateStream) transform(wire *StreamResponse) *providers.StreamChunk {
	if wire.ResponseID != "" {
		s.id = wire.ResponseID
	}

	chunk := &providers.StreamChunk{
		ID:    s.id,
		Model: s.model,
	}

	for _, cand := range wire.Candidates {
		delta := providers.Delta{}
		for _, part := range cand.Content.Parts {
			if part.Thought {
				delta.Reasoning += part.Text
			} else {
				delta.Content += part.Text
			}
		}
		chunk.Choices = append(chunk.Choices, providers.Choice{
			Index:        cand.Index,
			Delta:        delta,
			FinishReason: mapFinishReason(cand.FinishReason),
		})
	}

	if wire.UsageMetadata != nil {
		chunk.Usage = &providers.Usage{
			PromptTokens:     wire.UsageMetadata.PromptTokenCount,
			CompletionTokens: wire.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      wire.UsageMetadata.TotalTokenCount,
			ReasoningTokens:  wire.UsageMetadata.ThoughtsTokenCount,
		}
	}

	if len(chunk.Choices) == 0 && chunk.Usage == nil {
		return nil
	}
	return chunk
}

// Close closes the underlying response body.
func (s *generateStream) Close() error {
	return s.body.Close()
}
