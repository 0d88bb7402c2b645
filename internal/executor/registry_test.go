package executor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/config"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistryRoutesToHandler(t *testing.T) {
	r := NewRegistry(discardLogger())

	var gotDirection model.Direction
	r.Register("demo_step", func(ctx context.Context, direction model.Direction) error {
		gotDirection = direction
		return nil
	})

	err := r.Execute(context.Background(), "demo_step", model.DirectionPrimaryToSecondary)
	require.NoError(t, err)
	assert.Equal(t, model.DirectionPrimaryToSecondary, gotDirection)
}

func TestRegistryUnknownStepWithoutFallback(t *testing.T) {
	r := NewRegistry(discardLogger())

	err := r.Execute(context.Background(), "missing", model.DirectionPrimaryToSecondary)
	assert.ErrorIs(t, err, model.ErrUnknownStep)
}

func TestRegistryFallbackReceivesStepName(t *testing.T) {
	r := NewRegistry(discardLogger())

	var gotStep string
	r.SetFallback(func(ctx context.Context, step string, direction model.Direction) error {
		gotStep = step
		return nil
	})

	require.NoError(t, r.Execute(context.Background(), "switch_database_primary", model.DirectionPrimaryToSecondary))
	assert.Equal(t, "switch_database_primary", gotStep)
}

func TestRegistryHandlerErrorPropagates(t *testing.T) {
	r := NewRegistry(discardLogger())
	boom := errors.New("boom")
	r.Register("demo_step", func(ctx context.Context, direction model.Direction) error {
		return boom
	})

	assert.ErrorIs(t, r.Execute(context.Background(), "demo_step", model.DirectionSecondaryToPrimary), boom)
}

func TestWebhookExecutorPostsStep(t *testing.T) {
	var got stepRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	exec := NewWebhookExecutor(config.WebhookConfig{URL: server.URL, Timeout: time.Second})
	err := exec.Execute(context.Background(), model.StepUpdateDNSRouting, model.DirectionPrimaryToSecondary)
	require.NoError(t, err)

	assert.Equal(t, model.StepUpdateDNSRouting, got.Step)
	assert.Equal(t, "primary_to_secondary", got.Direction)
	assert.Equal(t, "primary", got.Source)
	assert.Equal(t, "secondary", got.Target)
}

func TestWebhookExecutorNon2xxFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "automation job failed", http.StatusBadGateway)
	}))
	defer server.Close()

	exec := NewWebhookExecutor(config.WebhookConfig{URL: server.URL, Timeout: time.Second})
	err := exec.Execute(context.Background(), model.StepSyncFinalData, model.DirectionPrimaryToSecondary)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestWebhookExecutorUnconfigured(t *testing.T) {
	exec := NewWebhookExecutor(config.WebhookConfig{})
	err := exec.Execute(context.Background(), model.StepSyncFinalData, model.DirectionPrimaryToSecondary)
	assert.Error(t, err)
}
