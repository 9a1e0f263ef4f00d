package anthropic

import (
	"context"
	"encoding/json"
	"io"

	"mercator-hq/ganymede/pkg/providers"
)

// streamState accumulates cross-event state while reading one stream.
// Anthropic splits usage across message_start (input tokens) and
// message_delta (output tokens), and only the final synthesized chunk
// carries the merged snapshot.
type streamState struct {
	id           string
	model        string
	inputTokens  int
	outputTokens int
	stopReason   string
}

// messageStream adapts an Anthropic SSE body into a providers.Stream.
type messageStream struct {
	provider string
	body     io.ReadCloser
	scanner  *providers.SSEScanner
	state    streamState
	done     bool
}

func newMessageStream(provider string, body io.ReadCloser) *messageStream {
	return &messageStream{
		provider: provider,
		body:     body,
		scanner:  providers.NewSSEScanner(body),
	}
}

// Recv returns the next chunk, or io.EOF after message_stop.
func (s *messageStream) Recv(ctx context.Context) (*providers.StreamChunk, error) {
	if s.done {
		return nil, io.EOF
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sse, err := s.scanner.Next()
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

		if sse.Data == "" {
			continue
		}

		var event StreamEvent
		if err := json.Unmarshal([]byte(sse.Data), &event); err != nil {
			continue
		}
		if event.Type == "" {
			event.Type = sse.Type
		}

		chunk := s.apply(&event)
		if chunk != nil {
			return chunk, nil
		}
		if s.done {
			return nil, io.EOF
		}
	}
}

// apply folds one event into the stream state, returning a chunk when the
// event carries caller-visible data.
func (s *messageStream) apply(event *StreamEvent) *providers.StreamChunk {
	switch event.Type {
	case "message_start":
		if event.Message != nil {
			s.state.id = event.Message.ID
			s.state.model = event.Message.Model
			if event.Message.Usage != nil {
				s.state.inputTokens = event.Message.Usage.InputTokens
			}
		}
		return nil

	case "content_block_delta":
		if event.Delta == nil {
			return nil
		}
		delta := providers.Delta{}
		switch event.Delta.Type {
		case "thinking_delta":
			delta.Reasoning = event.Delta.Thinking
		default:
			delta.Content = event.Delta.Text
		}
		if delta.Content == "" && delta.Reasoning == "" {
			return nil
		}
		return &providers.StreamChunk{
			ID:      s.state.id,
			Model:   s.state.model,
			Choices: []providers.Choice{{Delta: delta}},
		}

	case "message_delta":
		if event.Delta != nil {
			s.state.stopReason = event.Delta.StopReason
		}
		if event.Usage != nil {
			s.state.outputTokens = event.Usage.OutputTokens
		}
		return nil

	case "message_stop":
		s.done = true
		return &providers.StreamChunk{
			ID:    s.state.id,
			Model: s.state.model,
			Choices: []providers.Choice{{
				FinishReason: mapStopReason(s.state.stopReason),
			}},
			Usage: &providers.Usage{
				PromptTokens:     s.state.inputTokens,
				CompletionTokens: s.state.outputTokens,
				TotalTokens:      s.state.inputTokens + s.state.outputTokens,
			},
		}

	default:
		// ping, content_block_start, content_block_stop
		return nil
	}
}

// Close closes the underlying response body.
func (s *messageStream) Close() error {
	return s.body.Close()
}

// mapStopReason converts Anthropic stop reasons to neutral finish reasons.
func mapStopReason(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return providers.FinishReasonStop
	case "max_tokens":
		return providers.FinishReasonLength
	case "":
		return providers.FinishReasonStop
	default:
		return reason
	}
}
