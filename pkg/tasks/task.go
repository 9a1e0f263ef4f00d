// Package tasks runs completions as background jobs with a durable,
// replayable event log. Callers create a task, poll or stream its events,
// and may cancel it at any point before it reaches a terminal status.
package tasks

import (
	"time"

	"mercator-hq/ganymede/pkg/providers"
)

// Task statuses. A task moves queued -> in_progress -> one terminal
// status; terminal statuses never change.
const (
	StatusQueued     = "queued"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// Event types recorded in a task's event log.
const (
	EventOutputDelta    = "output_delta"
	EventReasoningDelta = "reasoning_delta"
	EventComplete       = "complete"
	EventError          = "error"
	EventCancelled      = "cancelled"
)

// Event is one entry in a task's ordered event log. Sequence numbers start
// at 1 and increase by exactly one per event, which lets a disconnected
// stream consumer resume from the last sequence it saw.
type Event struct {
	// Sequence is the 1-based position of this event in the log
	Sequence int `json:"sequence"`

	// Type is one of the Event* constants
	Type string `json:"type"`

	// Data is the event payload: a text fragment for deltas, the full
	// output for complete, an error message for error
	Data string `json:"data"`

	// Timestamp is when the event was recorded
	Timestamp time.Time `json:"timestamp"`
}

// Task is a background completion job.
type Task struct {
	// ID is the task identifier, assigned at creation
	ID string `json:"id"`

	// Model is the requested model
	Model string `json:"model"`

	// Status is one of the Status* constants
	Status string `json:"status"`

	// Request is the completion request the task will run
	Request *providers.CompletionRequest `json:"request"`

	// Content is the accumulated output text
	Content string `json:"content"`

	// Reasoning is the accumulated reasoning summary text
	Reasoning string `json:"reasoning,omitempty"`

	// Usage is the final token usage, set when the task completes
	Usage *providers.Usage `json:"usage,omitempty"`

	// Cost is the computed USD cost, set when the task completes
	Cost float64 `json:"cost,omitempty"`

	// Provider is the provider that served the completion
	Provider string `json:"provider,omitempty"`

	// GenerationID is the vendor's generation identifier, used for
	// post-completion stats lookups
	GenerationID string `json:"generation_id,omitempty"`

	// Error is the failure reason for failed tasks
	Error string `json:"error,omitempty"`

	// Events is the ordered event log
	Events []Event `json:"events"`

	// CreatedAt, StartedAt, and CompletedAt bracket the task lifecycle
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Terminal reports whether the task has reached a final status.
func (t *Task) Terminal() bool {
	switch t.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// EventsAfter returns the events with sequence numbers strictly greater
// than after, in order.
func (t *Task) EventsAfter(after int) []Event {
	if after <= 0 {
		out := make([]Event, len(t.Events))
		copy(out, t.Events)
		return out
	}
	out := make([]Event, 0, len(t.Events))
	for _, ev := range t.Events {
		if ev.Sequence > after {
			out = append(out, ev)
		}
	}
	return out
}

// clone returns a deep copy safe to hand to callers.
func (t *Task) clone() *Task {
	cp := *t
	cp.Events = make([]Event, len(t.Events))
	copy(cp.Events, t.Events)
	if t.Usage != nil {
		usage := *t.Usage
		cp.Usage = &usage
	}
	if t.StartedAt != nil {
		started := *t.StartedAt
		cp.StartedAt = &started
	}
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		cp.CompletedAt = &completed
	}
	return &cp
}

// appendEvent records an event with the next sequence number.
func (t *Task) appendEvent(eventType, data string) {
	t.Events = append(t.Events, Event{
		Sequence:  len(t.Events) + 1,
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	})
}
