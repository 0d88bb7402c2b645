// Package orchestrator runs the periodic assess-decide-act loop that ties
// health aggregation, decision making and failover coordination together.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/alert"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/config"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/coordinator"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/decision"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/health"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/model"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/observability"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/repository"
)

// Orchestrator owns the control loop.
type Orchestrator struct {
	cfg         config.OrchestratorConfig
	aggregator  *health.Aggregator
	decider     *decision.Maker
	coordinator *coordinator.Coordinator
	store       repository.Store
	alerts      alert.Sink
	metrics     observability.Sink
	logger      *slog.Logger

	// lastStatus deduplicates unhealthy alerts across ticks.
	lastStatus model.HealthStatus
}

// New wires the control loop from its collaborators.
func New(cfg config.OrchestratorConfig, aggregator *health.Aggregator, decider *decision.Maker, coord *coordinator.Coordinator, store repository.Store, alerts alert.Sink, metrics observability.Sink, logger *slog.Logger) *Orchestrator {
	if alerts == nil {
		alerts = alert.Nop{}
	}
	if metrics == nil {
		metrics = observability.Nop{}
	}
	return &Orchestrator{
		cfg:         cfg,
		aggregator:  aggregator,
		decider:     decider,
		coordinator: coord,
		store:       store,
		alerts:      alerts,
		metrics:     metrics,
		logger:      logger,
	}
}

// Recover loads the persisted DR state and installs it on the coordinator.
// A missing key means a fresh deployment on the primary. A transitional
// state means the process died mid-run; the run did not survive the
// restart, so the state falls back to the last settled environment.
func (o *Orchestrator) Recover(ctx context.Context) error {
	persisted, err := o.store.LoadState(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrStateNotFound) {
			o.logger.Info("no persisted state found, starting active on primary")
			o.coordinator.RestoreState(model.DrStateActivePrimary)
			return nil
		}
		return fmt.Errorf("failed to load persisted state: %w", err)
	}

	state := persisted.State
	if state.InProgress() {
		prior := persisted.PriorActive
		if !prior.Valid() {
			prior = model.EnvironmentPrimary
		}
		recovered := model.ActiveState(prior)
		o.logger.Warn("found interrupted run at startup, reverting to last settled state",
			slog.String("persisted", string(state)),
			slog.String("recovered", string(recovered)),
		)
		o.alerts.Notify(ctx, alert.Event{
			Severity: alert.SeverityWarning,
			Title:    "Interrupted failover detected at startup",
			Message:  fmt.Sprintf("persisted state %s reverted to %s", state, recovered),
		})
		state = recovered
	}

	o.coordinator.RestoreState(state)
	o.logger.Info("dr state recovered", slog.String("state", string(state)))
	return nil
}

// Run executes the control loop until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	interval := o.cfg.HealthCheckInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	errorBackoff := o.cfg.ErrorBackoff
	if errorBackoff <= 0 {
		errorBackoff = 30 * time.Second
	}

	o.logger.Info("orchestration loop started",
		slog.Duration("interval", interval),
		slog.Bool("auto_failover", o.cfg.AutoFailover),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := o.safeTick(ctx); err != nil {
			o.metrics.RecordTickError()
			o.logger.Error("orchestration tick failed",
				slog.String("error", err.Error()),
				slog.Duration("backoff", errorBackoff),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(errorBackoff):
			}
			continue
		}

		select {
		case <-ctx.Done():
			o.logger.Info("orchestration loop stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// safeTick converts a panicking tick into an error so a bad probe or
// executor cannot kill the loop.
func (o *Orchestrator) safeTick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("orchestration tick panicked: %v", r)
		}
	}()
	return o.Tick(ctx)
}

// Tick performs one assess-decide-act cycle.
func (o *Orchestrator) Tick(ctx context.Context) error {
	if err := o.store.WriteHeartbeat(ctx); err != nil {
		o.logger.Warn("heartbeat write failed", slog.String("error", err.Error()))
	}

	overall, err := o.aggregator.Assess(ctx)
	if err != nil {
		return fmt.Errorf("health assessment failed: %w", err)
	}

	o.metrics.SetHealthScore("overall", overall.OverallScore)
	o.metrics.SetHealthScore("primary", overall.Primary.Score)
	o.metrics.SetHealthScore("secondary", overall.Secondary.Score)

	if overall.Status == model.HealthStatusUnhealthy && o.lastStatus != model.HealthStatusUnhealthy {
		o.alerts.Notify(ctx, alert.Event{
			Severity: alert.SeverityCritical,
			Title:    "Overall health is unhealthy",
			Message:  fmt.Sprintf("composite score %.2f with %d sources reporting", overall.OverallScore, overall.SourcesReporting),
		})
	}
	o.lastStatus = overall.Status

	state := o.coordinator.State()
	verdict := o.decider.Evaluate(state, overall)
	if verdict.Actionable() {
		o.act(ctx, verdict)
	}

	o.maintain(ctx)
	return nil
}

func (o *Orchestrator) act(ctx context.Context, verdict model.FailoverDecision) {
	o.metrics.RecordDecision(verdict.Reason, verdict.ShouldRollback)

	action := "failover"
	if verdict.ShouldRollback {
		action = "rollback"
	}
	o.logger.Warn("actionable decision",
		slog.String("action", action),
		slog.String("target", string(verdict.TargetEnvironment)),
		slog.String("reason", string(verdict.Reason)),
		slog.Float64("confidence", verdict.Confidence),
		slog.Duration("estimated_rto", verdict.EstimatedRTO),
	)

	if verdict.ShouldFailover && !o.cfg.AutoFailover {
		o.alerts.Notify(ctx, alert.Event{
			Severity: alert.SeverityCritical,
			Title:    "Failover required but automatic failover is disabled",
			Message:  fmt.Sprintf("reason %s, target %s", verdict.Reason, verdict.TargetEnvironment),
			Details: map[string]string{
				"confidence": fmt.Sprintf("%.2f", verdict.Confidence),
			},
		})
		return
	}

	var result *model.FailoverResult
	var err error
	if verdict.ShouldRollback {
		result, err = o.coordinator.TriggerRollback(ctx, verdict.TargetEnvironment, verdict.Reason)
	} else {
		result, err = o.coordinator.TriggerFailover(ctx, verdict.TargetEnvironment, verdict.Reason)
	}
	if err != nil {
		if !errors.Is(err, model.ErrAlreadyInProgress) {
			o.logger.Error("failed to trigger transition",
				slog.String("action", action),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	severity := alert.SeverityInfo
	if !result.Success {
		severity = alert.SeverityCritical
	}
	o.alerts.Notify(ctx, alert.Event{
		Severity: severity,
		Title:    fmt.Sprintf("DR %s %s", action, result.Status),
		Message:  fmt.Sprintf("run %s finished with status %s in %s", result.RunID, result.Status, result.Duration.Round(time.Second)),
		Details: map[string]string{
			"direction":       string(result.Direction),
			"reason":          string(verdict.Reason),
			"steps_completed": fmt.Sprintf("%d", result.StepsCompleted),
			"failed_step":     result.FailedStep,
		},
	})
}

// maintain prunes the checkpoint ring down to the configured retention.
func (o *Orchestrator) maintain(ctx context.Context) {
	keep := o.cfg.CheckpointRetention
	if keep <= 0 {
		keep = 10
	}
	maxAge := o.cfg.CheckpointMaxAge
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	pruned, err := o.store.PruneCheckpoints(ctx, keep, maxAge)
	if err != nil {
		o.logger.Warn("checkpoint pruning failed", slog.String("error", err.Error()))
		return
	}
	if pruned > 0 {
		o.logger.Debug("pruned checkpoints", slog.Int("count", pruned))
	}
}
