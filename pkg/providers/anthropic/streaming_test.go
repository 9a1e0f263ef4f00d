package anthropic

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"mercator-hq/ganymede/pkg/providers"
)

func TestCompleteStreamsMessageEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("x-api-key = %q, want test-key", got)
		}
		if got := r.Header.Get("anthropic-version"); got != APIVersion {
			t.Errorf("anthropic-version = %q, want %q", got, APIVersion)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: message_start\n")
		fmt.Fprint(w, `data: {"type":"message_start","message":{"id":"msg_1","model":"claude-3-5-sonnet-20241022","usage":{"input_tokens":12}}}`+"\n\n")
		fmt.Fprint(w, "event: content_block_delta\n")
		fmt.Fprint(w, `data: {"type":"content_block_delta","delta":{"type":"thinking_delta","thinking":"considering..."}}`+"\n\n")
		fmt.Fprint(w, "event: content_block_delta\n")
		fmt.Fprint(w, `data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"Hello"}}`+"\n\n")
		fmt.Fprint(w, "event: message_delta\n")
		fmt.Fprint(w, `data: {"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":7}}`+"\n\n")
		fmt.Fprint(w, "event: message_stop\n")
		fmt.Fprint(w, `data: {"type":"message_stop"}`+"\n\n")
	}))
	defer srv.Close()

	client, err := NewClient(providers.ProviderConfig{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	defer client.Close()

	stream, err := client.Complete(context.Background(), &providers.CompletionRequest{
		Model:    "claude-3-5-sonnet-20241022",
		Messages: []providers.Message{{Role: providers.RoleUser, Content: "Say hello"}},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	defer stream.Close()

	content, reasoning := "", ""
	var final *providers.StreamChunk
	for {
		chunk, err := stream.Recv(context.Background())
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Recv failed: %v", err)
		}
		content += chunk.ContentDelta()
		reasoning += chunk.ReasoningDelta()
		final = chunk
	}

	if content != "Hello" {
		t.Errorf("content = %q, want %q", content, "Hello")
	}
	if reasoning != "considering..." {
		t.Errorf("reasoning = %q, want the thinking delta", reasoning)
	}

	if final == nil || final.Usage == nil {
		t.Fatal("final chunk carried no usage")
	}
	if final.Usage.PromptTokens != 12 || final.Usage.CompletionTokens != 7 || final.Usage.TotalTokens != 19 {
		t.Errorf("usage = %+v, want 12/7/19", final.Usage)
	}
	if got := final.Choices[0].FinishReason; got != providers.FinishReasonStop {
		t.Errorf("finish reason = %q, want %q", got, providers.FinishReasonStop)
	}
	if final.ID != "msg_1" {
		t.Errorf("chunk id = %q, want msg_1", final.ID)
	}
}

func TestSupportsModelClaudeOnly(t *testing.T) {
	client, err := NewClient(providers.ProviderConfig{APIKey: "k"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	defer client.Close()

	if !client.SupportsModel("claude-3-opus-20240229") {
		t.Error("claude models should be supported")
	}
	if client.SupportsModel("gpt-4o") {
		t.Error("non-claude models should not be supported")
	}
}
