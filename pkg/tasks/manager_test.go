package tasks

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"mercator-hq/ganymede/pkg/gateway"
	"mercator-hq/ganymede/pkg/providers"
	"mercator-hq/ganymede/pkg/registry"
)

// scriptedProvider lets each test decide how completions behave.
type scriptedProvider struct {
	name     string
	complete func(ctx context.Context) (providers.Stream, error)
}

func (p *scriptedProvider) Name() string                { return p.name }
func (p *scriptedProvider) SupportsModel(m string) bool { return true }
func (p *scriptedProvider) Close() error                { return nil }

func (p *scriptedProvider) Complete(ctx context.Context, req *providers.CompletionRequest) (providers.Stream, error) {
	return p.complete(ctx)
}

// blockingStream emits one chunk, then blocks until released or the
// context is cancelled.
type blockingStream struct {
	mu      sync.Mutex
	sent    bool
	release chan struct{}
}

func newBlockingStream() *blockingStream {
	return &blockingStream{release: make(chan struct{})}
}

func (s *blockingStream) Recv(ctx context.Context) (*providers.StreamChunk, error) {
	s.mu.Lock()
	sent := s.sent
	s.sent = true
	s.mu.Unlock()

	if !sent {
		return &providers.StreamChunk{
			ID:      "gen-1",
			Choices: []providers.Choice{{Delta: providers.Delta{Content: "partial"}}},
		}, nil
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.release:
		return nil, io.EOF
	}
}

func (s *blockingStream) Close() error { return nil }

func newTestManager(t *testing.T, p providers.Provider) (*Manager, *registry.Registry) {
	t.Helper()

	reg := registry.New()
	reg.Register(p)

	opts := gateway.DefaultOptions()
	opts.HealthCheckEnabled = false
	opts.CacheEnabled = false
	gw := gateway.New(reg, opts, nil, nil)
	t.Cleanup(gw.Shutdown)

	m := NewManager(gw, reg, nil, nil)
	t.Cleanup(func() { m.Close() })
	return m, reg
}

func waitForStatus(t *testing.T, m *Manager, id, status string) *Task {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		task, err := m.RetrieveResponse(id)
		if err != nil {
			t.Fatalf("RetrieveResponse failed: %v", err)
		}
		if task.Status == status {
			return task
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("task %s never reached status %q", id, status)
	return nil
}

func TestTaskLifecycle(t *testing.T) {
	p := &scriptedProvider{name: "openai", complete: func(ctx context.Context) (providers.Stream, error) {
		return providers.NewBufferedStream([]*providers.StreamChunk{
			{ID: "gen-1", Choices: []providers.Choice{{Delta: providers.Delta{Content: "Hel"}}}},
			{ID: "gen-1", Choices: []providers.Choice{{Delta: providers.Delta{Content: "lo!"}}}},
			{ID: "gen-1", Choices: []providers.Choice{{FinishReason: providers.FinishReasonStop}},
				Usage: &providers.Usage{PromptTokens: 10, CompletionTokens: 2, TotalTokens: 12}},
		}), nil
	}}
	m, _ := newTestManager(t, p)

	created, err := m.CreateResponse(&providers.CompletionRequest{
		Model:    "gpt-4o",
		Messages: []providers.Message{{Role: "user", Content: "Say hello"}},
	}, true)
	if err != nil {
		t.Fatalf("CreateResponse failed: %v", err)
	}
	if created.Status != StatusQueued {
		t.Errorf("initial status = %q, want %q", created.Status, StatusQueued)
	}

	task := waitForStatus(t, m, created.ID, StatusCompleted)

	if task.Content != "Hello!" {
		t.Errorf("content = %q, want %q", task.Content, "Hello!")
	}
	if task.Usage == nil || task.Usage.TotalTokens != 12 {
		t.Errorf("usage = %+v, want total 12", task.Usage)
	}
	if task.Cost <= 0 {
		t.Errorf("cost = %f, want a positive computed cost", task.Cost)
	}
	if task.StartedAt == nil || task.CompletedAt == nil {
		t.Error("lifecycle timestamps not set")
	}

	// Events are strictly sequential and end with a complete event
	// carrying the full output.
	for i, ev := range task.Events {
		if ev.Sequence != i+1 {
			t.Errorf("event %d has sequence %d, want %d", i, ev.Sequence, i+1)
		}
	}
	last := task.Events[len(task.Events)-1]
	if last.Type != EventComplete || last.Data != "Hello!" {
		t.Errorf("last event = %+v, want complete with full output", last)
	}
}

func TestDefaultReasoningDirective(t *testing.T) {
	p := &scriptedProvider{name: "openai", complete: func(ctx context.Context) (providers.Stream, error) {
		return providers.NewBufferedStream(nil), nil
	}}
	m, _ := newTestManager(t, p)

	// o3 supports reasoning per the catalog; an absent directive gets the
	// high/auto default.
	created, err := m.CreateResponse(&providers.CompletionRequest{
		Model:    "o3",
		Messages: []providers.Message{{Role: "user", Content: "think"}},
	}, true)
	if err != nil {
		t.Fatalf("CreateResponse failed: %v", err)
	}
	if created.Request.Reasoning == nil {
		t.Fatal("reasoning directive not defaulted for a reasoning model")
	}
	if created.Request.Reasoning.Effort != "high" || created.Request.Reasoning.Summary != "auto" {
		t.Errorf("defaulted directive = %+v, want high/auto", created.Request.Reasoning)
	}

	// Non-reasoning models are left alone.
	plain, err := m.CreateResponse(&providers.CompletionRequest{
		Model:    "gpt-4o",
		Messages: []providers.Message{{Role: "user", Content: "hi"}},
	}, true)
	if err != nil {
		t.Fatalf("CreateResponse failed: %v", err)
	}
	if plain.Request.Reasoning != nil {
		t.Errorf("gpt-4o got a reasoning directive: %+v", plain.Request.Reasoning)
	}
}

func TestCreateResponseLeavesCallerRequestUntouched(t *testing.T) {
	p := &scriptedProvider{name: "openai", complete: func(ctx context.Context) (providers.Stream, error) {
		return providers.NewBufferedStream(nil), nil
	}}
	m, _ := newTestManager(t, p)

	req := &providers.CompletionRequest{
		Model:    "o3",
		Messages: []providers.Message{{Role: "user", Content: "think"}},
	}
	created, err := m.CreateResponse(req, true)
	if err != nil {
		t.Fatalf("CreateResponse failed: %v", err)
	}

	if created.Request.Reasoning == nil {
		t.Error("task request missing the defaulted reasoning directive")
	}
	if req.Reasoning != nil {
		t.Errorf("caller's request mutated: reasoning = %+v", req.Reasoning)
	}
}

func TestCancelRunningTask(t *testing.T) {
	stream := newBlockingStream()
	p := &scriptedProvider{name: "openai", complete: func(ctx context.Context) (providers.Stream, error) {
		return stream, nil
	}}
	m, _ := newTestManager(t, p)

	created, err := m.CreateResponse(&providers.CompletionRequest{
		Model:    "gpt-4o",
		Messages: []providers.Message{{Role: "user", Content: "long running"}},
	}, true)
	if err != nil {
		t.Fatalf("CreateResponse failed: %v", err)
	}

	waitForStatus(t, m, created.ID, StatusInProgress)

	cancelled, err := m.CancelResponse(created.ID)
	if err != nil {
		t.Fatalf("CancelResponse failed: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("status after cancel = %q, want %q", cancelled.Status, StatusCancelled)
	}

	found := false
	for _, ev := range cancelled.Events {
		if ev.Type == EventCancelled {
			found = true
		}
	}
	if !found {
		t.Error("no cancelled event recorded")
	}

	// Cancelling again is a no-op.
	again, err := m.CancelResponse(created.ID)
	if err != nil {
		t.Fatalf("second CancelResponse failed: %v", err)
	}
	if again.Status != StatusCancelled {
		t.Errorf("status after double cancel = %q, want %q", again.Status, StatusCancelled)
	}
}

func TestCancelQueuedTask(t *testing.T) {
	stream := newBlockingStream()
	p := &scriptedProvider{name: "openai", complete: func(ctx context.Context) (providers.Stream, error) {
		return stream, nil
	}}
	m, _ := newTestManager(t, p)

	first, err := m.CreateResponse(&providers.CompletionRequest{
		Model:    "gpt-4o",
		Messages: []providers.Message{{Role: "user", Content: "occupy the worker"}},
	}, true)
	if err != nil {
		t.Fatalf("CreateResponse failed: %v", err)
	}
	waitForStatus(t, m, first.ID, StatusInProgress)

	second, err := m.CreateResponse(&providers.CompletionRequest{
		Model:    "gpt-4o",
		Messages: []providers.Message{{Role: "user", Content: "waiting"}},
	}, true)
	if err != nil {
		t.Fatalf("CreateResponse failed: %v", err)
	}

	cancelled, err := m.CancelResponse(second.ID)
	if err != nil {
		t.Fatalf("CancelResponse failed: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("queued task status after cancel = %q, want %q", cancelled.Status, StatusCancelled)
	}

	// Let the first task finish; the cancelled one must never run.
	close(stream.release)
	waitForStatus(t, m, first.ID, StatusCompleted)

	got, err := m.RetrieveResponse(second.ID)
	if err != nil {
		t.Fatalf("RetrieveResponse failed: %v", err)
	}
	if got.Status != StatusCancelled || got.Content != "" {
		t.Errorf("cancelled queued task = %q with content %q, want cancelled and empty", got.Status, got.Content)
	}
}

func TestForegroundTaskBypassesQueue(t *testing.T) {
	occupied := newBlockingStream()
	calls := 0
	var mu sync.Mutex
	p := &scriptedProvider{name: "openai", complete: func(ctx context.Context) (providers.Stream, error) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			return occupied, nil
		}
		return providers.NewBufferedStream([]*providers.StreamChunk{
			{ID: "gen-2", Choices: []providers.Choice{{Delta: providers.Delta{Content: "quick"}}}},
		}), nil
	}}
	m, _ := newTestManager(t, p)

	// Tie up the single worker with a background task.
	blocker, err := m.CreateResponse(&providers.CompletionRequest{
		Model:    "gpt-4o",
		Messages: []providers.Message{{Role: "user", Content: "slow"}},
	}, true)
	if err != nil {
		t.Fatalf("CreateResponse failed: %v", err)
	}
	waitForStatus(t, m, blocker.ID, StatusInProgress)

	// A foreground task completes anyway.
	fg, err := m.CreateResponse(&providers.CompletionRequest{
		Model:    "gpt-4o",
		Messages: []providers.Message{{Role: "user", Content: "fast"}},
	}, false)
	if err != nil {
		t.Fatalf("CreateResponse failed: %v", err)
	}
	done := waitForStatus(t, m, fg.ID, StatusCompleted)
	if done.Content != "quick" {
		t.Errorf("foreground content = %q, want %q", done.Content, "quick")
	}

	close(occupied.release)
	waitForStatus(t, m, blocker.ID, StatusCompleted)
}

func TestTaskFailureRecordsError(t *testing.T) {
	p := &scriptedProvider{name: "openai", complete: func(ctx context.Context) (providers.Stream, error) {
		return nil, &providers.Error{Provider: "openai", StatusCode: 400, Message: "bad request"}
	}}
	m, _ := newTestManager(t, p)

	created, err := m.CreateResponse(&providers.CompletionRequest{
		Model:    "gpt-4o",
		Messages: []providers.Message{{Role: "user", Content: "doomed"}},
	}, true)
	if err != nil {
		t.Fatalf("CreateResponse failed: %v", err)
	}

	task := waitForStatus(t, m, created.ID, StatusFailed)
	if task.Error == "" {
		t.Error("failed task has no error message")
	}
	last := task.Events[len(task.Events)-1]
	if last.Type != EventError {
		t.Errorf("last event type = %q, want %q", last.Type, EventError)
	}
}

func TestEventsAfterResumesFromCursor(t *testing.T) {
	task := &Task{}
	task.appendEvent(EventOutputDelta, "a")
	task.appendEvent(EventOutputDelta, "b")
	task.appendEvent(EventComplete, "ab")

	resumed := task.EventsAfter(2)
	if len(resumed) != 1 || resumed[0].Sequence != 3 {
		t.Errorf("EventsAfter(2) = %+v, want only sequence 3", resumed)
	}
	if got := task.EventsAfter(0); len(got) != 3 {
		t.Errorf("EventsAfter(0) returned %d events, want all 3", len(got))
	}
	if got := task.EventsAfter(99); len(got) != 0 {
		t.Errorf("EventsAfter past the end returned %d events, want 0", len(got))
	}
}

func TestPruneTerminal(t *testing.T) {
	p := &scriptedProvider{name: "openai", complete: func(ctx context.Context) (providers.Stream, error) {
		return providers.NewBufferedStream(nil), nil
	}}
	m, _ := newTestManager(t, p)

	created, err := m.CreateResponse(&providers.CompletionRequest{
		Model:    "gpt-4o",
		Messages: []providers.Message{{Role: "user", Content: "short"}},
	}, true)
	if err != nil {
		t.Fatalf("CreateResponse failed: %v", err)
	}
	waitForStatus(t, m, created.ID, StatusCompleted)

	if n := m.PruneTerminal(time.Hour); n != 0 {
		t.Errorf("pruned %d fresh tasks, want 0", n)
	}
	if n := m.PruneTerminal(0); n != 1 {
		t.Errorf("pruned %d tasks with zero retention, want 1", n)
	}
	if _, err := m.RetrieveResponse(created.ID); err == nil {
		t.Error("pruned task still retrievable")
	}
}
