package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"mercator-hq/ganymede/pkg/providers"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(providers.ProviderConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, srv
}

func TestSupportsModel(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})

	cases := map[string]bool{
		"gpt-4o":        true,
		"o3":            true,
		"o1-mini":       true,
		"chatgpt-4o":    true,
		"claude-3-opus": false,
		"gemini-1.5":    false,
	}
	for model, want := range cases {
		if got := client.SupportsModel(model); got != want {
			t.Errorf("SupportsModel(%q) = %v, want %v", model, got, want)
		}
	}
}

func TestCompleteStreamsChunks(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q, want bearer test key", got)
		}

		var wire Request
		if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if !wire.Stream {
			t.Error("request did not enable streaming")
		}
		if wire.StreamOptions == nil || !wire.StreamOptions.IncludeUsage {
			t.Error("request did not ask for usage in the final chunk")
		}
		if wire.ReasoningEffort != "high" {
			t.Errorf("reasoning_effort = %q, want %q", wire.ReasoningEffort, "high")
		}

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"id":"c1","model":"o3","choices":[{"index":0,"delta":{"content":"Hel"}}]}`+"\n\n")
		fmt.Fprint(w, `data: {"id":"c1","model":"o3","choices":[{"index":0,"delta":{"content":"lo"},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":2,"total_tokens":12,"completion_tokens_details":{"reasoning_tokens":5}}}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	stream, err := client.Complete(context.Background(), &providers.CompletionRequest{
		Model:     "o3",
		Messages:  []providers.Message{{Role: "user", Content: "Say hello"}},
		Reasoning: &providers.ReasoningDirective{Effort: "high"},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	defer stream.Close()

	content := ""
	var usage *providers.Usage
	for {
		chunk, err := stream.Recv(context.Background())
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Recv failed: %v", err)
		}
		content += chunk.ContentDelta()
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
	}

	if content != "Hello" {
		t.Errorf("content = %q, want %q", content, "Hello")
	}
	if usage == nil {
		t.Fatal("final chunk carried no usage")
	}
	if usage.PromptTokens != 10 || usage.CompletionTokens != 2 || usage.ReasoningTokens != 5 {
		t.Errorf("usage = %+v, want 10/2 with 5 reasoning tokens", usage)
	}
}

func TestCompleteSkipsMalformedFrames(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {not json}\n\n")
		fmt.Fprint(w, `data: {"id":"c1","model":"gpt-4o","choices":[{"index":0,"delta":{"content":"ok"}}]}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	stream, err := client.Complete(context.Background(), &providers.CompletionRequest{
		Model:    "gpt-4o",
		Messages: []providers.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	defer stream.Close()

	chunk, err := stream.Recv(context.Background())
	if err != nil {
		t.Fatalf("Recv failed: %v", err)
	}
	if got := chunk.ContentDelta(); got != "ok" {
		t.Errorf("content = %q, want the malformed frame skipped", got)
	}
}

func TestCompleteRejectsForeignModel(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := client.Complete(context.Background(), &providers.CompletionRequest{
		Model:    "claude-3-opus-20240229",
		Messages: []providers.Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected ModelNotSupportedError")
	}
}

func TestCompleteSurfacesHTTPError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid key"}}`, http.StatusUnauthorized)
	})

	_, err := client.Complete(context.Background(), &providers.CompletionRequest{
		Model:    "gpt-4o",
		Messages: []providers.Message{{Role: "user", Content: "hi"}},
	})

	var pe *providers.Error
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want providers.Error", err)
	}
	if pe.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", pe.StatusCode)
	}
	if pe.Retryable {
		t.Error("401 should not be retryable")
	}
}
