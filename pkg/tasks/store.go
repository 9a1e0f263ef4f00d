package tasks

import (
	"sort"
	"sync"
)

// Store persists task snapshots. Implementations must tolerate repeated
// saves of the same id (last write wins).
type Store interface {
	// SaveTask persists the current state of a task.
	SaveTask(task *Task) error

	// LoadTask returns the task with the given id, or false when absent.
	LoadTask(id string) (*Task, bool, error)

	// ListTasks returns all tasks ordered by creation time, oldest first.
	ListTasks() ([]*Task, error)

	// DeleteTask removes a task. Deleting an absent id is not an error.
	DeleteTask(id string) error

	// Close releases store resources.
	Close() error
}

// MemoryStore keeps task snapshots in process memory. It is the default
// store and the one tests use.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]*Task)}
}

// SaveTask stores a deep copy of the task.
func (s *MemoryStore) SaveTask(task *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task.clone()
	return nil
}

// LoadTask returns a deep copy of the stored task.
func (s *MemoryStore) LoadTask(id string) (*Task, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, false, nil
	}
	return task.clone(), true, nil
}

// ListTasks returns deep copies ordered by creation time.
func (s *MemoryStore) ListTasks() ([]*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		out = append(out, task.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// DeleteTask removes the task with the given id.
func (s *MemoryStore) DeleteTask(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
