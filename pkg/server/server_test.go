package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mercator-hq/ganymede/pkg/config"
	"mercator-hq/ganymede/pkg/gateway"
	"mercator-hq/ganymede/pkg/providers"
	"mercator-hq/ganymede/pkg/registry"
	"mercator-hq/ganymede/pkg/tasks"
)

type fakeProvider struct {
	name   string
	chunks []*providers.StreamChunk
}

func (p *fakeProvider) Name() string                { return p.name }
func (p *fakeProvider) SupportsModel(m string) bool { return true }
func (p *fakeProvider) Close() error                { return nil }

func (p *fakeProvider) Complete(ctx context.Context, req *providers.CompletionRequest) (providers.Stream, error) {
	return providers.NewBufferedStream(p.chunks), nil
}

func newTestServer(t *testing.T) (*httptest.Server, *tasks.Manager) {
	t.Helper()

	reg := registry.New()
	reg.Register(&fakeProvider{name: "openai", chunks: []*providers.StreamChunk{
		{ID: "gen-1", Choices: []providers.Choice{{Delta: providers.Delta{Content: "hi"}}}},
		{ID: "gen-1", Choices: []providers.Choice{{FinishReason: providers.FinishReasonStop}},
			Usage: &providers.Usage{PromptTokens: 3, CompletionTokens: 1, TotalTokens: 4}},
	}})

	opts := gateway.DefaultOptions()
	opts.HealthCheckEnabled = false
	opts.CacheEnabled = false
	gw := gateway.New(reg, opts, nil, nil)
	t.Cleanup(gw.Shutdown)

	manager := tasks.NewManager(gw, reg, nil, nil)
	t.Cleanup(func() { manager.Close() })

	srv := New(config.ServerConfig{}, gw, reg, manager, nil, nil)
	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)
	return ts, manager
}

func createTask(t *testing.T, ts *httptest.Server) tasks.Task {
	t.Helper()

	body := `{"model":"gpt-4o","messages":[{"role":"user","content":"hello"}]}`
	resp, err := http.Post(ts.URL+"/v1/responses", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /v1/responses failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var task tasks.Task
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		t.Fatalf("decoding create response: %v", err)
	}
	return task
}

func waitTerminal(t *testing.T, ts *httptest.Server, id string) tasks.Task {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(ts.URL + "/v1/responses/" + id)
		if err != nil {
			t.Fatalf("GET task failed: %v", err)
		}
		var task tasks.Task
		err = json.NewDecoder(resp.Body).Decode(&task)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("decoding task: %v", err)
		}
		if task.Terminal() {
			return task
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("task %s never reached a terminal status", id)
	return tasks.Task{}
}

func TestCreateAndRetrieveResponse(t *testing.T) {
	ts, _ := newTestServer(t)

	created := createTask(t, ts)
	if created.ID == "" || created.Status != tasks.StatusQueued {
		t.Errorf("created task = %+v, want queued with an id", created)
	}

	done := waitTerminal(t, ts, created.ID)
	if done.Status != tasks.StatusCompleted || done.Content != "hi" {
		t.Errorf("finished task status=%q content=%q, want completed %q", done.Status, done.Content, "hi")
	}
}

func TestCreateResponseValidation(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/v1/responses", "application/json", strings.NewReader(`{"model":"gpt-4o"}`))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}

	var body struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if body.Error.Type != "validation_error" {
		t.Errorf("error type = %q, want validation_error", body.Error.Type)
	}
}

func TestRetrieveUnknownTask(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/responses/nope")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestCancelResponse(t *testing.T) {
	ts, _ := newTestServer(t)

	created := createTask(t, ts)
	resp, err := http.Post(ts.URL+"/v1/responses/"+created.ID+"/cancel", "application/json", nil)
	if err != nil {
		t.Fatalf("POST cancel failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("cancel status = %d, want 200", resp.StatusCode)
	}

	var task tasks.Task
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		t.Fatalf("decoding cancel response: %v", err)
	}
	// The worker may have already finished the tiny buffered stream; either
	// way the result is terminal.
	if !task.Terminal() {
		t.Errorf("status after cancel = %q, want a terminal status", task.Status)
	}
}

func TestListModels(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/models")
	if err != nil {
		t.Fatalf("GET /v1/models failed: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Data []string `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding models: %v", err)
	}
	if len(body.Data) == 0 {
		t.Fatal("no models listed")
	}
	found := false
	for _, id := range body.Data {
		if id == "gpt-4o" {
			found = true
		}
	}
	if !found {
		t.Errorf("gpt-4o missing from %v", body.Data)
	}
}

func TestSearchModels(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/models?search=o3")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Data []string `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding models: %v", err)
	}
	for _, id := range body.Data {
		if !strings.Contains(id, "o3") {
			t.Errorf("search result %q does not match query", id)
		}
	}
}

func TestModelInfo(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/models/gpt-4o")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var info providers.ModelInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decoding model info: %v", err)
	}
	if info.ID != "gpt-4o" {
		t.Errorf("model id = %q, want gpt-4o", info.ID)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/status/health")
	if err != nil {
		t.Fatalf("GET /status/health failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Status    string                    `json:"status"`
		Providers map[string]gateway.Health `json:"providers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding health: %v", err)
	}
	if body.Status != gateway.HealthHealthy {
		t.Errorf("overall status = %q, want healthy", body.Status)
	}
	if _, ok := body.Providers["openai"]; !ok {
		t.Errorf("openai missing from health map: %v", body.Providers)
	}
}

func TestUpdateConfigRejectsUnknownStrategy(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/status/config", "application/json", strings.NewReader(`{"strategy":"psychic"}`))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestStreamResponse(t *testing.T) {
	ts, _ := newTestServer(t)

	created := createTask(t, ts)
	waitTerminal(t, ts, created.ID)

	resp, err := http.Get(ts.URL + "/v1/responses/" + created.ID + "/stream")
	if err != nil {
		t.Fatalf("GET stream failed: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q, want text/event-stream", ct)
	}

	var events []tasks.Event
	sawDone := false
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Bytes()
		if !bytes.HasPrefix(line, []byte("data: ")) {
			continue
		}
		payload := bytes.TrimPrefix(line, []byte("data: "))
		if string(payload) == "[DONE]" {
			sawDone = true
			break
		}
		var ev tasks.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			t.Fatalf("bad event payload %q: %v", payload, err)
		}
		events = append(events, ev)
	}
	if !sawDone {
		t.Fatal("stream did not end with [DONE]")
	}
	if len(events) == 0 {
		t.Fatal("stream carried no events")
	}
	for i, ev := range events {
		if ev.Sequence != i+1 {
			t.Errorf("event %d has sequence %d, want %d", i, ev.Sequence, i+1)
		}
	}
	if last := events[len(events)-1]; last.Type != tasks.EventComplete {
		t.Errorf("last event type = %q, want %q", last.Type, tasks.EventComplete)
	}
}

func TestStreamResumeWithCursor(t *testing.T) {
	ts, _ := newTestServer(t)

	created := createTask(t, ts)
	done := waitTerminal(t, ts, created.ID)
	if len(done.Events) < 2 {
		t.Fatalf("need at least 2 events, got %d", len(done.Events))
	}

	resp, err := http.Get(ts.URL + "/v1/responses/" + created.ID + "/stream?starting_after=1")
	if err != nil {
		t.Fatalf("GET stream failed: %v", err)
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			return
		}
		var ev tasks.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			t.Fatalf("bad event payload %q: %v", payload, err)
		}
		if ev.Sequence <= 1 {
			t.Errorf("resumed stream replayed sequence %d", ev.Sequence)
		}
	}
	t.Fatal("stream ended without [DONE]")
}

func TestStreamBadCursor(t *testing.T) {
	ts, _ := newTestServer(t)
	created := createTask(t, ts)

	resp, err := http.Get(ts.URL + "/v1/responses/" + created.ID + "/stream?starting_after=banana")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestStreamUnknownTask(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/responses/nope/stream")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q, want application/json for an unknown task", ct)
	}
}
