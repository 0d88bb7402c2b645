package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/cache"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/config"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/coordinator"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/health"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/model"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/repository"
)

type stubExecutor struct {
	started chan struct{}
	block   chan struct{}
}

func (s *stubExecutor) Execute(ctx context.Context, step string, direction model.Direction) error {
	if s.started != nil {
		select {
		case s.started <- struct{}{}:
		default:
		}
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

type stubSource struct{}

func (stubSource) Name() string      { return "primary_database" }
func (stubSource) Role() health.Role { return health.RolePrimaryDatabase }
func (stubSource) Probe(ctx context.Context) (*model.HealthReport, error) {
	return &model.HealthReport{Score: 1, Available: true, RegionStatus: model.RegionHealthy}, nil
}

func newTestHandler(t *testing.T, exec coordinator.StepExecutor) (*Handler, *coordinator.Coordinator, *repository.MemoryStore) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repository.NewMemoryStore()

	failoverCfg := config.FailoverConfig{
		RunTimeout:       time.Minute,
		BackoffBase:      time.Millisecond,
		MaxRetryAttempts: 1,
	}
	coord := coordinator.New(failoverCfg, config.OrchestratorConfig{}, exec, store, nil, log)

	healthCfg := config.HealthConfig{SourceTimeout: time.Second, CacheTTL: time.Minute}
	aggregator := health.NewAggregator(healthCfg, []health.Source{stubSource{}}, cache.New(time.Minute), log)

	h := NewHandler(coord, aggregator, store, nil, "", log)
	return h, coord, store
}

func TestHealthz(t *testing.T) {
	h, _, _ := newTestHandler(t, &stubExecutor{})
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetStatus(t *testing.T) {
	h, _, _ := newTestHandler(t, &stubExecutor{})
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		State     string `json:"state"`
		ActiveEnv string `json:"active_environment"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "active_primary", resp.State)
	assert.Equal(t, "primary", resp.ActiveEnv)
}

func TestGetHealth(t *testing.T) {
	h, _, _ := newTestHandler(t, &stubExecutor{})
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var overall model.OverallHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &overall))
	assert.Equal(t, model.HealthStatusHealthy, overall.Status)
}

func TestTriggerFailoverSucceeds(t *testing.T) {
	h, coord, store := newTestHandler(t, &stubExecutor{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/failover", strings.NewReader(`{"target":"secondary"}`))
	h.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result model.FailoverResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, 8, result.StepsCompleted)
	assert.Equal(t, model.DrStateActiveSecondary, coord.State())

	checkpoints, err := store.Checkpoints(context.Background())
	require.NoError(t, err)
	assert.Len(t, checkpoints, 2)
}

func TestTriggerFailoverDefaultsToStandby(t *testing.T) {
	h, coord, _ := newTestHandler(t, &stubExecutor{})

	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/failover", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.DrStateActiveSecondary, coord.State())
}

func TestTriggerFailoverToActiveEnvironmentConflicts(t *testing.T) {
	h, _, _ := newTestHandler(t, &stubExecutor{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/failover", strings.NewReader(`{"target":"primary"}`))
	h.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTriggerFailoverInvalidTarget(t *testing.T) {
	h, _, _ := newTestHandler(t, &stubExecutor{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/failover", strings.NewReader(`{"target":"moon"}`))
	h.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConcurrentFailoverConflicts(t *testing.T) {
	exec := &stubExecutor{started: make(chan struct{}, 1), block: make(chan struct{})}
	h, _, _ := newTestHandler(t, exec)
	router := h.Router()

	done := make(chan int, 1)
	go func() {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/failover", strings.NewReader(`{"target":"secondary"}`))
		router.ServeHTTP(rec, req)
		done <- rec.Code
	}()

	// Wait for the first run to take the lock, then fire a second trigger.
	<-exec.started

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/failover", strings.NewReader(`{"target":"secondary"}`))
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(exec.block)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestTriggerRollback(t *testing.T) {
	h, coord, _ := newTestHandler(t, &stubExecutor{})
	coord.RestoreState(model.DrStateActiveSecondary)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/rollback", strings.NewReader(`{"target":"primary"}`))
	h.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.DrStateActivePrimary, coord.State())
}

func TestGetRunsAfterFailover(t *testing.T) {
	h, _, _ := newTestHandler(t, &stubExecutor{})

	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/failover", strings.NewReader(`{"target":"secondary"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Current *model.FailoverRun   `json:"current"`
		History []*model.FailoverRun `json:"history"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.Current)
	require.Len(t, resp.History, 1)
	assert.Equal(t, model.RunStatusCompleted, resp.History[0].Status)
}
