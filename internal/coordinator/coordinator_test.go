package coordinator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/config"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/model"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/repository"
)

// fakeExecutor scripts step outcomes. failures maps a step name to how
// many attempts should fail before succeeding; -1 means always fail.
type fakeExecutor struct {
	mu       sync.Mutex
	attempts map[string]int
	failures map[string]int
	calls    []string
	started  chan string
	release  chan struct{}
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{
		attempts: make(map[string]int),
		failures: make(map[string]int),
	}
}

func (f *fakeExecutor) Execute(ctx context.Context, step string, direction model.Direction) error {
	f.mu.Lock()
	f.attempts[step]++
	attempt := f.attempts[step]
	f.calls = append(f.calls, step)
	started := f.started
	release := f.release
	f.mu.Unlock()

	if started != nil {
		started <- step
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if limit, ok := f.failures[step]; ok {
		if limit < 0 || attempt <= limit {
			return fmt.Errorf("step %s scripted failure", step)
		}
	}
	return nil
}

func (f *fakeExecutor) callCount(step string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[step]
}

func testConfig() config.FailoverConfig {
	return config.FailoverConfig{
		RunTimeout:       time.Minute,
		BackoffBase:      time.Millisecond,
		MaxRetryAttempts: 3,
	}
}

func newTestCoordinator(t *testing.T, cfg config.FailoverConfig, exec StepExecutor) (*Coordinator, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := New(cfg, config.OrchestratorConfig{HistoryLimit: 5}, exec, store, nil, log)
	c.sleep = func(time.Duration) {}
	return c, store
}

func TestFailoverCompletesAllSteps(t *testing.T) {
	exec := newFakeExecutor()
	c, store := newTestCoordinator(t, testConfig(), exec)

	result, err := c.TriggerFailover(context.Background(), model.EnvironmentSecondary, model.ReasonManualTrigger)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, model.RunStatusCompleted, result.Status)
	assert.Equal(t, 8, result.StepsCompleted)
	assert.Equal(t, model.DirectionPrimaryToSecondary, result.Direction)
	assert.Equal(t, model.DrStateActiveSecondary, c.State())

	persisted, err := store.LoadState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.DrStateActiveSecondary, persisted.State)
	assert.Equal(t, model.EnvironmentSecondary, persisted.PriorActive)

	checkpoints, err := store.Checkpoints(context.Background())
	require.NoError(t, err)
	require.Len(t, checkpoints, 2)
	assert.Equal(t, "pre_failover", checkpoints[0].Metadata["phase"])
	assert.Equal(t, "post_failover", checkpoints[1].Metadata["phase"])

	require.Len(t, c.History(), 1)
	avg, ok := c.AverageRunDuration()
	assert.True(t, ok)
	assert.GreaterOrEqual(t, avg, time.Duration(0))
}

func TestStepsRunInCanonicalOrder(t *testing.T) {
	exec := newFakeExecutor()
	c, _ := newTestCoordinator(t, testConfig(), exec)

	_, err := c.TriggerFailover(context.Background(), model.EnvironmentSecondary, model.ReasonRegionOutage)
	require.NoError(t, err)

	want := []string{
		model.StepValidateTargetReadiness,
		model.StepProvisionTargetResources,
		model.StepSyncFinalData,
		model.StepSwitchDatabasePrimary,
		model.StepStartTargetServices,
		model.StepUpdateDNSRouting,
		model.StepValidateTargetTraffic,
		model.StepStopSourceServices,
	}
	assert.Equal(t, want, exec.calls)
}

func TestCriticalStepFailureRevertsState(t *testing.T) {
	exec := newFakeExecutor()
	exec.failures[model.StepSwitchDatabasePrimary] = -1
	c, store := newTestCoordinator(t, testConfig(), exec)

	result, err := c.TriggerFailover(context.Background(), model.EnvironmentSecondary, model.ReasonDatabaseUnavailable)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, model.RunStatusFailed, result.Status)
	assert.Equal(t, model.StepSwitchDatabasePrimary, result.FailedStep)
	assert.Equal(t, 3, result.StepsCompleted)
	assert.Equal(t, model.DrStateActivePrimary, c.State())

	// The retries were exhausted before aborting.
	assert.Equal(t, 3, exec.callCount(model.StepSwitchDatabasePrimary))
	// Nothing after the failed step ran.
	assert.Equal(t, 0, exec.callCount(model.StepStartTargetServices))

	persisted, err := store.LoadState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.DrStateActivePrimary, persisted.State)
}

func TestNonCriticalStepFailureContinues(t *testing.T) {
	cfg := testConfig()
	cfg.NonCriticalSteps = []string{model.StepValidateTargetTraffic}
	exec := newFakeExecutor()
	exec.failures[model.StepValidateTargetTraffic] = -1
	c, _ := newTestCoordinator(t, cfg, exec)

	result, err := c.TriggerFailover(context.Background(), model.EnvironmentSecondary, model.ReasonServiceDegradation)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 7, result.StepsCompleted)
	assert.Equal(t, model.DrStateActiveSecondary, c.State())

	run := c.CurrentRun()
	require.NotNil(t, run)
	require.Len(t, run.StepsFailed, 1)
	assert.Equal(t, model.StepValidateTargetTraffic, run.StepsFailed[0].Step)
}

func TestCriticalStepsCannotBeRelaxed(t *testing.T) {
	cfg := testConfig()
	cfg.NonCriticalSteps = []string{model.StepSwitchDatabasePrimary}
	exec := newFakeExecutor()
	exec.failures[model.StepSwitchDatabasePrimary] = -1
	c, _ := newTestCoordinator(t, cfg, exec)

	result, err := c.TriggerFailover(context.Background(), model.EnvironmentSecondary, model.ReasonManualTrigger)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, model.DrStateActivePrimary, c.State())
}

func TestRetriesUseExponentialBackoff(t *testing.T) {
	cfg := testConfig()
	cfg.BackoffBase = 100 * time.Millisecond
	exec := newFakeExecutor()
	exec.failures[model.StepSyncFinalData] = 2
	c, _ := newTestCoordinator(t, cfg, exec)

	var delays []time.Duration
	c.sleep = func(d time.Duration) { delays = append(delays, d) }

	result, err := c.TriggerFailover(context.Background(), model.EnvironmentSecondary, model.ReasonManualTrigger)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 3, exec.callCount(model.StepSyncFinalData))
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, delays)
}

func TestSingleFlight(t *testing.T) {
	exec := newFakeExecutor()
	exec.started = make(chan string, 16)
	exec.release = make(chan struct{})
	c, _ := newTestCoordinator(t, testConfig(), exec)

	type outcome struct {
		result *model.FailoverResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := c.TriggerFailover(context.Background(), model.EnvironmentSecondary, model.ReasonManualTrigger)
		done <- outcome{result, err}
	}()

	// Wait until the first step is executing.
	<-exec.started

	_, err := c.TriggerFailover(context.Background(), model.EnvironmentSecondary, model.ReasonManualTrigger)
	assert.ErrorIs(t, err, model.ErrAlreadyInProgress)

	close(exec.release)
	first := <-done
	require.NoError(t, first.err)
	assert.True(t, first.result.Success)
}

func TestFailoverToActiveEnvironmentRejected(t *testing.T) {
	c, _ := newTestCoordinator(t, testConfig(), newFakeExecutor())

	_, err := c.TriggerFailover(context.Background(), model.EnvironmentPrimary, model.ReasonManualTrigger)
	assert.ErrorIs(t, err, model.ErrInvalidState)
}

func TestRollbackRunsReverseDirection(t *testing.T) {
	exec := newFakeExecutor()
	c, _ := newTestCoordinator(t, testConfig(), exec)
	c.RestoreState(model.DrStateActiveSecondary)

	result, err := c.TriggerRollback(context.Background(), model.EnvironmentPrimary, model.ReasonPrimaryRecovered)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, model.DirectionSecondaryToPrimary, result.Direction)
	assert.Equal(t, model.DrStateActivePrimary, c.State())

	run := c.CurrentRun()
	require.NotNil(t, run)
	assert.True(t, run.Rollback)
}

func TestRunTimeoutRevertsState(t *testing.T) {
	cfg := testConfig()
	cfg.RunTimeout = 20 * time.Millisecond
	exec := newFakeExecutor()
	exec.release = make(chan struct{}) // never closed, steps block until ctx expires
	c, _ := newTestCoordinator(t, cfg, exec)

	result, err := c.TriggerFailover(context.Background(), model.EnvironmentSecondary, model.ReasonManualTrigger)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, model.RunStatusTimeout, result.Status)
	assert.Equal(t, model.ErrRunTimeout.Error(), result.Error)
	assert.Equal(t, model.DrStateActivePrimary, c.State())
}
