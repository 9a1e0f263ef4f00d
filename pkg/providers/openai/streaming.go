package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"mercator-hq/ganymede/pkg/providers"
)

// doneSentinel terminates a chat-completions SSE stream.
const doneSentinel = "[DONE]"

// ChatStream adapts a chat-completions SSE body into a providers.Stream.
type ChatStream struct {
	provider string
	body     io.ReadCloser
	scanner  *providers.SSEScanner
	done     bool
}

// NewChatStream wraps an SSE response body. The provider name is used for
// error attribution only.
func NewChatStream(provider string, body io.ReadCloser) *ChatStream {
	return &ChatStream{
		provider: provider,
		body:     body,
		scanner:  providers.NewSSEScanner(body),
	}
}

// Recv returns the next chunk, or io.EOF after the [DONE] sentinel.
func (s *ChatStream) Recv(ctx context.Context) (*providers.StreamChunk, error) {
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
		if event.Data == doneSentinel {
			s.done = true
			return nil, io.EOF
		}

		var wire Chunk
		if err := json.Unmarshal([]byte(event.Data), &wire); err != nil {
			// Malformed frames are dropped rather than killing the stream;
			// vendors occasionally interleave non-JSON keepalives.
			continue
		}

		chunk := transformChunk(&wire)
		if chunk == nil {
			continue
		}
		return chunk, nil
	}
}

// Close closes the underlying response body.
func (s *ChatStream) Close() error {
	return s.body.Close()
}

// transformChunk converts a wire chunk to the neutral representation.
// Returns nil for frames carrying neither deltas nor usage.
func transformChunk(wire *Chunk) *providers.StreamChunk {
	chunk := &providers.StreamChunk{
		ID:      wire.ID,
		Model:   wire.Model,
		Created: wire.Created,
		Usage:   wire.Usage.ToUsage(),
	}

	for _, choice := range wire.Choices {
		reasoning := choice.Delta.Reasoning
		if reasoning == "" {
			reasoning = choice.Delta.ReasoningContent
		}
		chunk.Choices = append(chunk.Choices, providers.Choice{
			Index: choice.Index,
			Delta: providers.Delta{
				Content:   choice.Delta.Content,
				Reasoning: reasoning,
			},
			FinishReason: choice.FinishReason,
		})
	}

	if len(chunk.Choices) == 0 && chunk.Usage == nil {
		return nil
	}
	return chunk
}

// OpenStream issues a streaming POST and wraps the response body.
// Shared by every adapter speaking the chat-completions protocol.
func OpenStream(ctx context.Context, client *providers.HTTPClient, url string, wireReq *Request, headers map[string]string) (*ChatStream, error) {
	body, err := json.Marshal(wireReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := client.DoRequest(ctx, "POST", url, body, headers)
	if err != nil {
		return nil, err
	}

	return NewChatStream(client.Config().Name, resp.Body), nil
}
