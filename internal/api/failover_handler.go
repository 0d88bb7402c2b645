package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/model"
)

// triggerRequest is the body of a manual failover or rollback trigger.
// The target defaults to the environment opposite the active one.
type triggerRequest struct {
	Target model.Environment `json:"target"`
}

// TriggerFailover handles POST /api/failover. The request blocks until the
// run finished and returns the full result.
func (h *Handler) TriggerFailover(w http.ResponseWriter, r *http.Request) {
	target, ok := h.resolveTarget(w, r)
	if !ok {
		return
	}

	result, err := h.coordinator.TriggerFailover(r.Context(), target, model.ReasonManualTrigger)
	h.respondRunOutcome(w, result, err, "failover")
}

// TriggerRollback handles POST /api/rollback
func (h *Handler) TriggerRollback(w http.ResponseWriter, r *http.Request) {
	target, ok := h.resolveTarget(w, r)
	if !ok {
		return
	}

	result, err := h.coordinator.TriggerRollback(r.Context(), target, model.ReasonManualTrigger)
	h.respondRunOutcome(w, result, err, "rollback")
}

func (h *Handler) resolveTarget(w http.ResponseWriter, r *http.Request) (model.Environment, bool) {
	var req triggerRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid request body")
			return "", false
		}
	}

	if req.Target == "" {
		if env, ok := h.coordinator.State().ActiveEnvironment(); ok {
			req.Target = env.Other()
		}
	}
	if !req.Target.Valid() {
		h.respondError(w, http.StatusBadRequest, "target must be primary or secondary")
		return "", false
	}
	return req.Target, true
}

func (h *Handler) respondRunOutcome(w http.ResponseWriter, result *model.FailoverResult, err error, action string) {
	if err != nil {
		switch {
		case errors.Is(err, model.ErrAlreadyInProgress):
			h.respondError(w, http.StatusConflict, err.Error())
		case errors.Is(err, model.ErrInvalidState):
			h.respondError(w, http.StatusConflict, err.Error())
		default:
			h.logger.Error("manual trigger failed",
				slog.String("action", action),
				slog.String("error", err.Error()),
			)
			h.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
	}
	h.respondJSON(w, status, result)
}
