package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"mercator-hq/ganymede/pkg/gateway"
	"mercator-hq/ganymede/pkg/providers"
	"mercator-hq/ganymede/pkg/tasks"
)

// writeJSON writes v as a JSON response body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// errorBody is the JSON error envelope.
type errorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// writeError maps domain errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	errType := "internal_error"

	var ve *providers.ValidationError
	var rle *providers.RateLimitExceededError
	var coe *providers.CircuitOpenError
	var cee *providers.CostExceededError
	var pe *providers.Error

	switch {
	case errors.As(err, &ve):
		status, errType = http.StatusBadRequest, "validation_error"
	case errors.Is(err, tasks.ErrTaskNotFound):
		status, errType = http.StatusNotFound, "not_found"
	case errors.As(err, &rle):
		status, errType = http.StatusTooManyRequests, "rate_limit_exceeded"
	case errors.As(err, &coe):
		status, errType = http.StatusServiceUnavailable, "circuit_open"
	case errors.As(err, &cee):
		status, errType = http.StatusPaymentRequired, "cost_exceeded"
	case errors.As(err, &pe):
		if pe.StatusCode >= 400 {
			status = pe.StatusCode
		} else {
			status = http.StatusBadGateway
		}
		errType = "provider_error"
	}

	var body errorBody
	body.Error.Type = errType
	body.Error.Message = err.Error()
	writeJSON(w, status, body)
}

// createResponseRequest is the create-task request body: a completion
// request plus the execution mode. background defaults to false, which
// runs the task immediately instead of through the worker queue.
type createResponseRequest struct {
	providers.CompletionRequest
	Background bool `json:"background"`
}

// handleCreateResponse accepts a completion request and creates a task
// for it.
func (s *Server) handleCreateResponse(w http.ResponseWriter, r *http.Request) {
	var req createResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &providers.ValidationError{Field: "body", Message: "invalid JSON: " + err.Error()})
		return
	}

	task, err := s.manager.CreateResponse(&req.CompletionRequest, req.Background)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// handleListResponses returns all known tasks.
func (s *Server) handleListResponses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"data": s.manager.ListTasks()})
}

// handleRetrieveResponse returns a task snapshot.
func (s *Server) handleRetrieveResponse(w http.ResponseWriter, r *http.Request) {
	task, err := s.manager.RetrieveResponse(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleCancelResponse cancels a task.
func (s *Server) handleCancelResponse(w http.ResponseWriter, r *http.Request) {
	task, err := s.manager.CancelResponse(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleListModels returns catalog model ids, optionally filtered by a
// search query or restricted to reasoning-capable models.
func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	var ids []string
	switch {
	case r.URL.Query().Get("search") != "":
		ids = s.reg.SearchModels(r.URL.Query().Get("search"))
	case r.URL.Query().Get("reasoning") == "true":
		ids = s.reg.ReasoningModels()
	default:
		ids = s.reg.AvailableModels()
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": ids})
}

// handleModelInfo returns metadata for one model. Unknown ids still
// resolve while a universal provider is registered.
func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.reg.ModelInfo(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleHealth reports per-provider health and an overall status: the
// worst status among providers.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.gw.Health()

	overall := gateway.HealthHealthy
	for _, h := range health {
		if h.Status == gateway.HealthUnhealthy {
			overall = gateway.HealthUnhealthy
			break
		}
		if h.Status == gateway.HealthDegraded {
			overall = gateway.HealthDegraded
		}
	}

	status := http.StatusOK
	if overall == gateway.HealthUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status":    overall,
		"providers": health,
	})
}

// handleBreakers reports per-provider breaker state.
func (s *Server) handleBreakers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.gw.BreakerStates())
}

// handleMetrics reports the gateway counter snapshot.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.gw.Metrics())
}

// handleResetMetrics zeroes the gateway counters.
func (s *Server) handleResetMetrics(w http.ResponseWriter, r *http.Request) {
	s.gw.ResetMetrics()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// handleUpdateConfig applies a partial gateway options update.
func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var patch gateway.OptionsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, &providers.ValidationError{Field: "body", Message: "invalid JSON: " + err.Error()})
		return
	}

	if patch.Strategy != nil {
		switch strings.ToLower(*patch.Strategy) {
		case gateway.StrategyExplicit, gateway.StrategyAutomatic, gateway.StrategyCostOptimized, gateway.StrategyLoadBalanced:
		default:
			writeError(w, &providers.ValidationError{Field: "strategy", Message: "unknown strategy"})
			return
		}
	}

	opts := s.gw.UpdateConfig(&patch)
	writeJSON(w, http.StatusOK, opts)
}

// handleClearCache drops all cached responses.
func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	s.gw.ClearCache()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
