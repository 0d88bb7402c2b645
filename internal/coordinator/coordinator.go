// Package coordinator executes failover and rollback runs. It owns the
// authoritative DR state and guarantees that at most one run is in flight.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/config"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/model"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/observability"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/repository"
)

// StepExecutor runs a single named step for a direction.
type StepExecutor interface {
	Execute(ctx context.Context, step string, direction model.Direction) error
}

// Coordinator drives the ordered step sequence of a failover or rollback.
type Coordinator struct {
	steps      []model.FailoverStep
	runTimeout time.Duration
	backoff    time.Duration

	executor StepExecutor
	store    repository.Store
	metrics  observability.Sink
	logger   *slog.Logger

	// runMu is the single-flight lock. TryLock failure means a run is
	// already in progress.
	runMu sync.Mutex

	stateMu sync.RWMutex
	state   model.DrState

	// current always holds an immutable snapshot; the live run is only
	// touched by the goroutine holding runMu.
	current atomic.Pointer[model.FailoverRun]

	histMu       sync.Mutex
	history      []*model.FailoverRun
	historyLimit int

	// sleep is swapped out in tests to avoid real backoff delays.
	sleep func(time.Duration)
}

// New creates a coordinator starting in the active-primary state.
func New(cfg config.FailoverConfig, orch config.OrchestratorConfig, exec StepExecutor, store repository.Store, metrics observability.Sink, logger *slog.Logger) *Coordinator {
	if metrics == nil {
		metrics = observability.Nop{}
	}
	backoff := cfg.BackoffBase
	if backoff <= 0 {
		backoff = time.Second
	}
	runTimeout := cfg.RunTimeout
	if runTimeout <= 0 {
		runTimeout = 30 * time.Minute
	}
	historyLimit := orch.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = 50
	}
	return &Coordinator{
		steps:        buildSteps(cfg),
		runTimeout:   runTimeout,
		backoff:      backoff,
		executor:     exec,
		store:        store,
		metrics:      metrics,
		logger:       logger,
		state:        model.DrStateActivePrimary,
		historyLimit: historyLimit,
		sleep:        time.Sleep,
	}
}

// State returns the current DR state.
func (c *Coordinator) State() model.DrState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// RestoreState installs a recovered state at startup, before the
// orchestration loop runs.
func (c *Coordinator) RestoreState(state model.DrState) {
	prior := model.EnvironmentPrimary
	if env, ok := state.ActiveEnvironment(); ok {
		prior = env
	}
	c.setState(context.Background(), state, prior)
}

// setState swaps the live state and persists it. prior names the last
// settled environment, which restart recovery falls back to when it finds
// a transitional state.
func (c *Coordinator) setState(ctx context.Context, state model.DrState, prior model.Environment) {
	c.stateMu.Lock()
	c.state = state
	c.stateMu.Unlock()
	c.metrics.SetDrState(state)

	if err := c.store.SaveState(ctx, model.PersistedState{
		State:       state,
		PriorActive: prior,
		UpdatedAt:   time.Now().UTC(),
	}); err != nil {
		c.logger.Warn("failed to persist dr state",
			slog.String("state", string(state)),
			slog.String("error", err.Error()),
		)
	}
}

// CurrentRun returns a snapshot of the most recent run, or nil before the
// first run.
func (c *Coordinator) CurrentRun() *model.FailoverRun {
	return c.current.Load()
}

// History returns snapshots of archived runs, most recent last.
func (c *Coordinator) History() []*model.FailoverRun {
	c.histMu.Lock()
	defer c.histMu.Unlock()
	out := make([]*model.FailoverRun, len(c.history))
	copy(out, c.history)
	return out
}

// AverageRunDuration returns the mean duration of successfully completed
// runs, feeding RTO estimation.
func (c *Coordinator) AverageRunDuration() (time.Duration, bool) {
	c.histMu.Lock()
	defer c.histMu.Unlock()
	var total time.Duration
	count := 0
	for _, run := range c.history {
		if run.Status == model.RunStatusCompleted {
			total += run.Duration()
			count++
		}
	}
	if count == 0 {
		return 0, false
	}
	return total / time.Duration(count), true
}

// TriggerFailover starts a failover making target the active environment.
// It returns model.ErrAlreadyInProgress when a run is in flight and
// model.ErrInvalidState when target is already active.
func (c *Coordinator) TriggerFailover(ctx context.Context, target model.Environment, reason model.DecisionReason) (*model.FailoverResult, error) {
	return c.run(ctx, target, reason, false)
}

// TriggerRollback starts the reverse transition back to target, normally
// the recovered primary.
func (c *Coordinator) TriggerRollback(ctx context.Context, target model.Environment, reason model.DecisionReason) (*model.FailoverResult, error) {
	return c.run(ctx, target, reason, true)
}

func (c *Coordinator) run(ctx context.Context, target model.Environment, reason model.DecisionReason, rollback bool) (*model.FailoverResult, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: invalid target environment %q", model.ErrInvalidState, target)
	}
	if !c.runMu.TryLock() {
		return nil, model.ErrAlreadyInProgress
	}
	defer c.runMu.Unlock()

	prevState := c.State()
	active, settled := prevState.ActiveEnvironment()
	if !settled {
		return nil, fmt.Errorf("%w: state is %s", model.ErrInvalidState, prevState)
	}
	if active == target {
		return nil, fmt.Errorf("%w: %s is already active", model.ErrInvalidState, target)
	}

	direction := model.DirectionTo(target)
	run := &model.FailoverRun{
		ID:        fmt.Sprintf("%s_%d", direction, time.Now().Unix()),
		Direction: direction,
		Rollback:  rollback,
		StartTime: time.Now().UTC(),
		Status:    model.RunStatusInProgress,
	}
	c.current.Store(run.Snapshot())

	transitional := model.DrStateFailoverInProgress
	if rollback {
		transitional = model.DrStateRollbackInProgress
	}
	c.setState(ctx, transitional, active)
	c.checkpoint(ctx, transitional, map[string]string{
		"phase":     "pre_failover",
		"run_id":    run.ID,
		"direction": string(direction),
		"reason":    string(reason),
	})

	c.logger.Info("failover run started",
		slog.String("run_id", run.ID),
		slog.String("direction", string(direction)),
		slog.Bool("rollback", rollback),
		slog.String("reason", string(reason)),
	)

	runCtx, cancel := context.WithTimeout(ctx, c.runTimeout)
	defer cancel()

	finalState := model.ActiveState(target)
	run.Status = model.RunStatusCompleted

	for i, step := range c.steps {
		run.CurrentStep = step.Name
		c.current.Store(run.Snapshot())

		c.logger.Info("executing failover step",
			slog.String("run_id", run.ID),
			slog.Int("step_index", i+1),
			slog.Int("step_count", len(c.steps)),
			slog.String("step", step.Name),
		)

		result := c.executeStep(runCtx, step, direction)
		c.metrics.RecordStep(step.Name, result.Success, result.Attempts)

		record := model.StepRecord{
			Step:      step.Name,
			Timestamp: time.Now().UTC(),
			Duration:  result.Duration,
			Attempts:  result.Attempts,
			Error:     result.Error,
		}

		if result.Success {
			run.StepsCompleted = append(run.StepsCompleted, record)
			continue
		}

		run.StepsFailed = append(run.StepsFailed, record)
		if !step.Critical {
			c.logger.Warn("non-critical step failed, continuing",
				slog.String("run_id", run.ID),
				slog.String("step", step.Name),
				slog.String("error", result.Error),
			)
			continue
		}

		run.FailedStep = step.Name
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			run.Status = model.RunStatusTimeout
			run.Error = model.ErrRunTimeout.Error()
		} else {
			run.Status = model.RunStatusFailed
			run.Error = fmt.Sprintf("critical step failed: %s: %s", step.Name, result.Error)
		}
		finalState = prevState
		c.logger.Error("critical step failed, aborting run",
			slog.String("run_id", run.ID),
			slog.String("step", step.Name),
			slog.String("status", string(run.Status)),
			slog.String("error", result.Error),
		)
		break
	}

	run.CurrentStep = ""
	run.EndTime = time.Now().UTC()
	finalActive, _ := finalState.ActiveEnvironment()
	c.setState(ctx, finalState, finalActive)
	c.checkpoint(ctx, finalState, map[string]string{
		"phase":           "post_failover",
		"run_id":          run.ID,
		"status":          string(run.Status),
		"steps_completed": strconv.Itoa(len(run.StepsCompleted)),
	})

	snapshot := run.Snapshot()
	c.current.Store(snapshot)
	c.archive(snapshot)
	c.metrics.RecordRun(direction, run.Status, run.Duration())

	c.logger.Info("failover run finished",
		slog.String("run_id", run.ID),
		slog.String("status", string(run.Status)),
		slog.Duration("duration", run.Duration()),
		slog.String("state", string(finalState)),
	)

	return &model.FailoverResult{
		RunID:          run.ID,
		Direction:      direction,
		Status:         run.Status,
		Success:        run.Status == model.RunStatusCompleted,
		StepsCompleted: len(run.StepsCompleted),
		FailedStep:     run.FailedStep,
		Error:          run.Error,
		Duration:       run.Duration(),
	}, nil
}

// executeStep runs one step with per-attempt timeouts and exponential
// backoff between attempts. Failures come back as values, never as errors.
func (c *Coordinator) executeStep(ctx context.Context, step model.FailoverStep, direction model.Direction) model.StepResult {
	start := time.Now()
	retries := step.RetryCount
	if retries <= 0 {
		retries = 1
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt < retries; attempt++ {
		attempts = attempt + 1
		attemptCtx, cancel := context.WithTimeout(ctx, step.Timeout)
		err := c.executor.Execute(attemptCtx, step.Name, direction)
		cancel()

		if err == nil {
			return model.StepResult{
				Step:     step.Name,
				Success:  true,
				Attempts: attempts,
				Duration: time.Since(start),
			}
		}
		lastErr = err

		// The run deadline is gone, retrying cannot help.
		if ctx.Err() != nil {
			break
		}
		if attempt < retries-1 {
			delay := c.backoff * (1 << attempt)
			c.logger.Warn("step attempt failed, retrying",
				slog.String("step", step.Name),
				slog.Int("attempt", attempts),
				slog.Duration("backoff", delay),
				slog.String("error", err.Error()),
			)
			c.sleep(delay)
		}
	}

	return model.StepResult{
		Step:     step.Name,
		Success:  false,
		Attempts: attempts,
		Duration: time.Since(start),
		Error:    lastErr.Error(),
	}
}

func (c *Coordinator) checkpoint(ctx context.Context, state model.DrState, metadata map[string]string) {
	cp := model.Checkpoint{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		State:     state,
		Metadata:  metadata,
	}
	if err := c.store.AppendCheckpoint(ctx, cp); err != nil {
		c.logger.Warn("failed to write checkpoint",
			slog.String("checkpoint_id", cp.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (c *Coordinator) archive(run *model.FailoverRun) {
	c.histMu.Lock()
	defer c.histMu.Unlock()
	c.history = append(c.history, run)
	if len(c.history) > c.historyLimit {
		c.history = c.history[len(c.history)-c.historyLimit:]
	}
}
