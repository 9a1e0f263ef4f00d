package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"mercator-hq/ganymede/pkg/gateway"
	"mercator-hq/ganymede/pkg/providers"
	"mercator-hq/ganymede/pkg/registry"
)

// ErrTaskNotFound is returned for unknown task ids.
var ErrTaskNotFound = errors.New("task not found")

// pollInterval is how often the worker checks for queued tasks when idle,
// and how often stream consumers should poll for new events.
const pollInterval = 100 * time.Millisecond

// statsTimeout bounds the post-completion usage statistics fetch.
const statsTimeout = 10 * time.Second

// taskHandle pairs a task with its cancellation hook. The handle mutex
// guards both.
type taskHandle struct {
	mu     sync.Mutex
	task   *Task
	cancel context.CancelFunc
}

// Manager runs completion tasks in the background, one at a time in
// creation order, recording every output fragment to the task's event log.
type Manager struct {
	log   *slog.Logger
	gw    *gateway.Gateway
	reg   *registry.Registry
	store Store

	mu      sync.Mutex
	handles map[string]*taskHandle
	queue   []string

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewManager creates a task manager backed by the given store and starts
// its worker. A nil store gets an in-memory store. Tasks left non-terminal
// by a previous process are marked failed on load.
func NewManager(gw *gateway.Gateway, reg *registry.Registry, store Store, logger *slog.Logger) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		log:     logger.With("component", "tasks"),
		gw:      gw,
		reg:     reg,
		store:   store,
		handles: make(map[string]*taskHandle),
		stop:    make(chan struct{}),
	}
	m.restore()

	m.wg.Add(1)
	go m.worker()
	return m
}

// restore loads persisted tasks into memory. Non-terminal tasks cannot be
// resumed (the stream is gone), so they are failed explicitly rather than
// left to look stuck.
func (m *Manager) restore() {
	persisted, err := m.store.ListTasks()
	if err != nil {
		m.log.Warn("failed to load persisted tasks", "error", err)
		return
	}

	for _, task := range persisted {
		if !task.Terminal() {
			task.Status = StatusFailed
			task.Error = "interrupted by restart"
			task.appendEvent(EventError, task.Error)
			now := time.Now()
			task.CompletedAt = &now
			if err := m.store.SaveTask(task); err != nil {
				m.log.Warn("failed to persist restored task", "task_id", task.ID, "error", err)
			}
		}
		m.handles[task.ID] = &taskHandle{task: task}
	}

	if len(persisted) > 0 {
		m.log.Info("restored persisted tasks", "count", len(persisted))
	}
}

// CreateResponse creates a completion task and returns its initial
// snapshot. Background tasks wait in the FIFO queue for the worker;
// foreground tasks start immediately on their own goroutine. Both follow
// the same lifecycle and event log. Reasoning-capable models get a default
// reasoning directive when the request does not carry one.
func (m *Manager) CreateResponse(req *providers.CompletionRequest, background bool) (*Task, error) {
	if req == nil || req.Model == "" {
		return nil, &providers.ValidationError{Field: "model", Message: "model is required"}
	}
	if len(req.Messages) == 0 {
		return nil, &providers.ValidationError{Field: "messages", Message: "at least one message is required"}
	}

	// The task owns its own copy of the request; the caller's value is
	// never mutated.
	owned := *req
	req = &owned

	if req.Reasoning == nil {
		if info, err := m.reg.ModelInfo(req.Model); err == nil && info.SupportsReasoning {
			req.Reasoning = &providers.ReasoningDirective{Effort: "high", Summary: "auto"}
		}
	}

	task := &Task{
		ID:        uuid.NewString(),
		Model:     req.Model,
		Status:    StatusQueued,
		Request:   req,
		CreatedAt: time.Now(),
	}
	handle := &taskHandle{task: task}

	m.mu.Lock()
	m.handles[task.ID] = handle
	if background {
		m.queue = append(m.queue, task.ID)
	}
	m.mu.Unlock()

	if err := m.store.SaveTask(task); err != nil {
		m.log.Warn("failed to persist new task", "task_id", task.ID, "error", err)
	}

	// Snapshot before execution starts so callers always observe the
	// queued status on creation.
	snapshot := task.clone()

	if !background {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.run(handle)
		}()
	}

	m.log.Info("task created", "task_id", task.ID, "model", task.Model, "background", background)
	return snapshot, nil
}

// RetrieveResponse returns the current snapshot of a task.
func (m *Manager) RetrieveResponse(id string) (*Task, error) {
	handle, ok := m.handle(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	handle.mu.Lock()
	defer handle.mu.Unlock()
	return handle.task.clone(), nil
}

// CancelResponse cancels a queued or running task. Cancelling a terminal
// task is a no-op that returns the task unchanged.
func (m *Manager) CancelResponse(id string) (*Task, error) {
	handle, ok := m.handle(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	handle.mu.Lock()
	task := handle.task
	if task.Terminal() {
		snapshot := task.clone()
		handle.mu.Unlock()
		return snapshot, nil
	}

	task.Status = StatusCancelled
	now := time.Now()
	task.CompletedAt = &now
	task.appendEvent(EventCancelled, "cancelled by caller")
	if handle.cancel != nil {
		handle.cancel()
	}
	snapshot := task.clone()
	handle.mu.Unlock()

	if err := m.store.SaveTask(snapshot); err != nil {
		m.log.Warn("failed to persist cancellation", "task_id", id, "error", err)
	}

	m.log.Info("task cancelled", "task_id", id)
	return snapshot, nil
}

// ListTasks returns snapshots of all known tasks ordered by creation time.
func (m *Manager) ListTasks() []*Task {
	m.mu.Lock()
	handles := make([]*taskHandle, 0, len(m.handles))
	for _, h := range m.handles {
		handles = append(handles, h)
	}
	m.mu.Unlock()

	out := make([]*Task, 0, len(handles))
	for _, h := range handles {
		h.mu.Lock()
		out = append(out, h.task.clone())
		h.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// PruneTerminal removes terminal tasks whose completion time is older than
// maxAge, returning the number removed. Wired to a periodic schedule by
// the server process.
func (m *Manager) PruneTerminal(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	var doomed []string
	for id, h := range m.handles {
		h.mu.Lock()
		if h.task.Terminal() && h.task.CompletedAt != nil && h.task.CompletedAt.Before(cutoff) {
			doomed = append(doomed, id)
		}
		h.mu.Unlock()
	}
	for _, id := range doomed {
		delete(m.handles, id)
	}
	m.mu.Unlock()

	for _, id := range doomed {
		if err := m.store.DeleteTask(id); err != nil {
			m.log.Warn("failed to delete pruned task", "task_id", id, "error", err)
		}
	}

	if len(doomed) > 0 {
		m.log.Info("pruned terminal tasks", "count", len(doomed))
	}
	return len(doomed)
}

// PollInterval returns how often stream consumers should poll for events.
func (m *Manager) PollInterval() time.Duration {
	return pollInterval
}

// Close stops the worker and closes the store. Running tasks are cancelled
// before waiting so a blocked stream cannot stall shutdown.
func (m *Manager) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })

	m.mu.Lock()
	for _, h := range m.handles {
		h.mu.Lock()
		if h.cancel != nil {
			h.cancel()
		}
		h.mu.Unlock()
	}
	m.mu.Unlock()

	m.wg.Wait()
	return m.store.Close()
}

func (m *Manager) handle(id string) (*taskHandle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handles[id]
	return h, ok
}

// worker drains the queue one task at a time in FIFO order, sleeping
// briefly when idle.
func (m *Manager) worker() {
	defer m.wg.Done()

	for {
		select {
		case <-m.stop:
			return
		default:
		}

		m.mu.Lock()
		var handle *taskHandle
		if len(m.queue) > 0 {
			id := m.queue[0]
			m.queue = m.queue[1:]
			handle = m.handles[id]
		}
		m.mu.Unlock()

		if handle == nil {
			select {
			case <-m.stop:
				return
			case <-time.After(pollInterval):
			}
			continue
		}

		m.run(handle)
	}
}

// run executes one task to a terminal status.
func (m *Manager) run(handle *taskHandle) {
	handle.mu.Lock()
	task := handle.task
	if task.Status != StatusQueued {
		// Cancelled while waiting in the queue.
		handle.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	handle.cancel = cancel
	task.Status = StatusInProgress
	now := time.Now()
	task.StartedAt = &now
	req := task.Request
	handle.mu.Unlock()
	defer cancel()

	m.persist(handle)
	m.log.Info("task started", "task_id", task.ID, "model", task.Model)

	stream, err := m.gw.Complete(ctx, req)
	if err != nil {
		m.finishFailed(handle, err)
		return
	}
	defer stream.Close()

	var lastChunkID string
	var usage *providers.Usage

	for {
		chunk, err := stream.Recv(ctx)
		if err == io.EOF {
			m.finishCompleted(handle, lastChunkID, usage)
			return
		}
		if err != nil {
			m.finishFailed(handle, err)
			return
		}

		if chunk.ID != "" {
			lastChunkID = chunk.ID
		}
		if chunk.Usage != nil {
			usage = chunk.Usage
		}

		handle.mu.Lock()
		if handle.task.Status == StatusCancelled {
			handle.mu.Unlock()
			m.persist(handle)
			return
		}
		if delta := chunk.ContentDelta(); delta != "" {
			handle.task.Content += delta
			handle.task.appendEvent(EventOutputDelta, delta)
		}
		if delta := chunk.ReasoningDelta(); delta != "" {
			handle.task.Reasoning += delta
			handle.task.appendEvent(EventReasoningDelta, delta)
		}
		handle.mu.Unlock()
	}
}

// finishCompleted records a successful completion, upgrading usage from
// post-completion generation statistics when the serving provider offers
// them.
func (m *Manager) finishCompleted(handle *taskHandle, chunkID string, usage *providers.Usage) {
	task := handle.task

	providerName := ""
	if p, err := m.reg.ProviderForModel(task.Model); err == nil {
		providerName = p.Name()
		if statser, ok := p.(providers.GenerationStatser); ok && chunkID != "" {
			if upgraded := m.fetchStats(statser, chunkID); upgraded != nil {
				usage = upgraded
			}
		}
	}

	cost := 0.0
	if usage != nil {
		if info, err := m.reg.ModelInfo(task.Model); err == nil {
			cost = info.CalculateCost(usage)
		}
	}

	handle.mu.Lock()
	if task.Status == StatusCancelled {
		handle.mu.Unlock()
		m.persist(handle)
		return
	}
	task.Status = StatusCompleted
	now := time.Now()
	task.CompletedAt = &now
	task.Usage = usage
	task.Cost = cost
	task.Provider = providerName
	task.GenerationID = chunkID
	task.appendEvent(EventComplete, task.Content)
	handle.mu.Unlock()

	m.persist(handle)
	m.log.Info("task completed", "task_id", task.ID, "cost", cost)
}

// fetchStats queries the provider's generation statistics endpoint with a
// bounded timeout. Failures are logged and ignored; the streamed usage
// stands.
func (m *Manager) fetchStats(statser providers.GenerationStatser, generationID string) *providers.Usage {
	ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
	defer cancel()

	stats, err := statser.GenerationStats(ctx, generationID)
	if err != nil {
		m.log.Debug("generation stats unavailable", "generation_id", generationID, "error", err)
		return nil
	}
	return stats
}

// finishFailed records a failure, unless the task was cancelled (in which
// case the cancellation stands and the stream error is expected).
func (m *Manager) finishFailed(handle *taskHandle, cause error) {
	task := handle.task

	handle.mu.Lock()
	if task.Status == StatusCancelled {
		handle.mu.Unlock()
		m.persist(handle)
		return
	}
	task.Status = StatusFailed
	now := time.Now()
	task.CompletedAt = &now
	task.Error = cause.Error()
	task.appendEvent(EventError, task.Error)
	handle.mu.Unlock()

	m.persist(handle)
	m.log.Warn("task failed", "task_id", task.ID, "error", cause)
}

// persist saves the task's current snapshot, logging rather than failing
// on store errors.
func (m *Manager) persist(handle *taskHandle) {
	handle.mu.Lock()
	snapshot := handle.task.clone()
	handle.mu.Unlock()

	if err := m.store.SaveTask(snapshot); err != nil {
		m.log.Warn("failed to persist task", "task_id", snapshot.ID, "error", err)
	}
}
