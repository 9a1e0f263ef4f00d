package providers

import (
	"context"
	"io"
)

// Provider is the core interface that all LLM provider adapters implement.
// It provides a unified abstraction over vendor wire protocols (OpenAI,
// Anthropic, Google, XAI, OpenRouter).
//
// All methods accept a context.Context for cancellation and timeout control.
// Implementations must respect context cancellation and return promptly when
// the context is cancelled.
type Provider interface {
	// Name returns the provider identifier (e.g., "openai", "anthropic").
	Name() string

	// SupportsModel reports whether this adapter can serve the given model.
	// The universal provider accepts arbitrary pass-through identifiers and
	// always returns true for non-empty ids.
	SupportsModel(model string) bool

	// Complete issues a streaming completion request. The returned Stream
	// yields a finite, ordered, non-restartable sequence of chunks; the last
	// chunk carries final usage when the vendor reports one.
	//
	// Transient failures (5xx, 429, timeouts) are retried internally up to
	// the configured maximum with linearly increasing backoff before an
	// error is surfaced. All failures are normalized into the package's
	// error taxonomy before they leave the adapter.
	Complete(ctx context.Context, req *CompletionRequest) (Stream, error)

	// Close releases the adapter's resources (idle connections).
	Close() error
}

// GenerationStatser is implemented by providers that can report usage
// statistics for a completed generation after the fact. The task manager
// uses it to upgrade usage figures (native cost, reasoning tokens) once a
// stream has finished.
type GenerationStatser interface {
	// GenerationStats fetches usage statistics for a generation id.
	// A nil Usage with nil error means the vendor had no record yet.
	GenerationStats(ctx context.Context, generationID string) (*Usage, error)
}

// Stream is a pull-based iterator over a completion's chunk sequence.
//
// Recv returns io.EOF when the stream ends normally. Callers must Close the
// stream when done, whether or not it was fully consumed.
type Stream interface {
	// Recv returns the next chunk, or io.EOF at the end of the stream.
	Recv(ctx context.Context) (*StreamChunk, error)

	// Close releases the underlying connection.
	Close() error
}

// bufferedStream replays an in-memory chunk sequence. It backs cache hits
// and tests.
type bufferedStream struct {
	chunks []*StreamChunk
	pos    int
}

// NewBufferedStream returns a Stream that replays the given chunks in order.
func NewBufferedStream(chunks []*StreamChunk) Stream {
	return &bufferedStream{chunks: chunks}
}

// Recv returns the next buffered chunk.
func (b *bufferedStream) Recv(ctx context.Context) (*StreamChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.pos >= len(b.chunks) {
		return nil, io.EOF
	}
	chunk := b.chunks[b.pos]
	b.pos++
	return chunk, nil
}

// Close is a no-op for buffered streams.
func (b *bufferedStream) Close() error { return nil }
