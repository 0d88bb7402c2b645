package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/model"
)

// statusResponse summarizes the orchestrator for operators.
type statusResponse struct {
	State      model.DrState      `json:"state"`
	ActiveEnv  model.Environment  `json:"active_environment,omitempty"`
	CurrentRun *model.FailoverRun `json:"current_run,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
}

// GetStatus handles GET /api/status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	state := h.coordinator.State()
	resp := statusResponse{
		State:     state,
		Timestamp: time.Now().UTC(),
	}
	if env, ok := state.ActiveEnvironment(); ok {
		resp.ActiveEnv = env
	}
	if run := h.coordinator.CurrentRun(); run != nil && !run.Status.Terminal() {
		resp.CurrentRun = run
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// GetHealth handles GET /api/health, serving the cached snapshot when
// fresh and probing the sources otherwise
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	if cached, ok := h.aggregator.Cached(); ok {
		h.respondJSON(w, http.StatusOK, cached)
		return
	}

	overall, err := h.aggregator.Assess(r.Context())
	if err != nil {
		h.logger.Error("failed to assess health",
			slog.String("error", err.Error()),
		)
		h.respondError(w, http.StatusInternalServerError, "failed to assess health")
		return
	}

	h.respondJSON(w, http.StatusOK, overall)
}

// runsResponse carries the current run plus the archived history.
type runsResponse struct {
	Current *model.FailoverRun   `json:"current,omitempty"`
	History []*model.FailoverRun `json:"history"`
}

// GetRuns handles GET /api/runs
func (h *Handler) GetRuns(w http.ResponseWriter, r *http.Request) {
	resp := runsResponse{History: h.coordinator.History()}
	if run := h.coordinator.CurrentRun(); run != nil && !run.Status.Terminal() {
		resp.Current = run
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// GetCheckpoints handles GET /api/checkpoints
func (h *Handler) GetCheckpoints(w http.ResponseWriter, r *http.Request) {
	checkpoints, err := h.store.Checkpoints(r.Context())
	if err != nil {
		h.logger.Error("failed to list checkpoints",
			slog.String("error", err.Error()),
		)
		h.respondError(w, http.StatusInternalServerError, "failed to list checkpoints")
		return
	}

	h.respondJSON(w, http.StatusOK, checkpoints)
}
