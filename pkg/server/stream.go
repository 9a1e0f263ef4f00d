package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"mercator-hq/ganymede/pkg/providers"
)

// doneSentinel terminates an event stream.
const doneSentinel = "[DONE]"

// handleStreamResponse serves a task's event log as Server-Sent Events.
// Events already recorded are replayed immediately; the stream then
// follows the task until it reaches a terminal status, ending with a
// [DONE] sentinel. The starting_after query parameter resumes after a
// previously seen sequence number.
func (s *Server) handleStreamResponse(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	cursor := 0
	if raw := r.URL.Query().Get("starting_after"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, &providers.ValidationError{Field: "starting_after", Message: "must be a non-negative integer"})
			return
		}
		cursor = n
	}

	// Resolve the task before committing to an event stream so unknown
	// ids still get a JSON 404.
	if _, err := s.manager.RetrieveResponse(id); err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	ticker := s.manager.PollInterval()

	for {
		task, err := s.manager.RetrieveResponse(id)
		if err != nil {
			// Pruned mid-stream.
			fmt.Fprintf(w, "data: %s\n\n", doneSentinel)
			flusher.Flush()
			return
		}

		pending := task.EventsAfter(cursor)
		for _, ev := range pending {
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			cursor = ev.Sequence
		}
		if len(pending) > 0 {
			flusher.Flush()
		}

		if task.Terminal() {
			fmt.Fprintf(w, "data: %s\n\n", doneSentinel)
			flusher.Flush()
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(ticker):
		}
	}
}
