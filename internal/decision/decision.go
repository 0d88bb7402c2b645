// Package decision turns a health snapshot and the current DR state into a
// failover or rollback verdict. Evaluation is a pure function of its inputs
// so the same snapshot always yields the same decision.
package decision

import (
	"log/slog"
	"time"

	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/config"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/model"
)

// degradedThreshold is the score below which the active environment is
// considered too unhealthy to keep serving traffic.
const degradedThreshold = 0.5

// HistoryStats supplies run statistics for RTO estimation.
type HistoryStats interface {
	// AverageRunDuration returns the mean duration of completed runs,
	// and false when no run has completed yet.
	AverageRunDuration() (time.Duration, bool)
}

// Maker evaluates health snapshots against the configured thresholds.
type Maker struct {
	latencyCriticalMs      float64
	replicationLagCritical time.Duration
	rollbackThreshold      float64
	rollbackEnabled        bool
	rtoTarget              time.Duration
	history                HistoryStats
	logger                 *slog.Logger
}

// NewMaker builds a decision maker from the orchestrator and health config.
func NewMaker(orch config.OrchestratorConfig, healthCfg config.HealthConfig, history HistoryStats, logger *slog.Logger) *Maker {
	return &Maker{
		latencyCriticalMs:      healthCfg.LatencyCriticalMs,
		replicationLagCritical: healthCfg.ReplicationLagCritical,
		rollbackThreshold:      healthCfg.RollbackScoreThreshold,
		rollbackEnabled:        orch.RollbackEnabled,
		rtoTarget:              orch.RTOTarget,
		history:                history,
		logger:                 logger,
	}
}

// Evaluate inspects the snapshot and returns what, if anything, should
// happen next. It never returns an actionable decision while a transition
// is already running or the orchestrator is in the error state.
func (m *Maker) Evaluate(state model.DrState, h *model.OverallHealth) model.FailoverDecision {
	noop := model.FailoverDecision{}

	if h == nil || state.InProgress() || state == model.DrStateError {
		return noop
	}
	active, ok := state.ActiveEnvironment()
	if !ok {
		return noop
	}
	// An unknown snapshot means the sources could not be reached, not that
	// the active environment is down. Never act on it.
	if h.Status == model.HealthStatusUnknown {
		return noop
	}

	standby := active.Other()
	activeHealth := h.Env(active)
	standbyHealth := h.Env(standby)

	if reason, confidence, triggered := m.failoverCondition(activeHealth, h); triggered {
		if standbyHealth.Score < degradedThreshold {
			m.logger.Warn("failover condition met but standby is unhealthy, holding",
				slog.String("reason", string(reason)),
				slog.String("standby", string(standby)),
				slog.Float64("standby_score", standbyHealth.Score),
			)
			return noop
		}
		return model.FailoverDecision{
			ShouldFailover:    true,
			TargetEnvironment: standby,
			Reason:            reason,
			Confidence:        confidence,
			EstimatedRTO:      m.estimateRTO(),
		}
	}

	// Once running on the secondary, propose returning home when the
	// primary has been solidly healthy again. Score alone is not enough;
	// the database, the cluster and the region itself all have to be back.
	if m.rollbackEnabled && state == model.DrStateActiveSecondary &&
		h.Primary.Score >= m.rollbackThreshold &&
		h.Primary.Database.Available &&
		h.Primary.Cluster.Available &&
		h.Primary.RegionStatus == model.RegionHealthy {
		return model.FailoverDecision{
			ShouldRollback:    true,
			TargetEnvironment: model.EnvironmentPrimary,
			Reason:            model.ReasonPrimaryRecovered,
			Confidence:        0.9,
			EstimatedRTO:      m.estimateRTO(),
		}
	}

	return noop
}

// failoverCondition checks the critical conditions in fixed precedence
// order and returns the first one that fires.
func (m *Maker) failoverCondition(active model.EnvironmentHealth, h *model.OverallHealth) (model.DecisionReason, float64, bool) {
	if active.RegionStatus == model.RegionOutage {
		return model.ReasonRegionOutage, 0.99, true
	}
	if !active.Database.Available {
		return model.ReasonDatabaseUnavailable, 0.95, true
	}
	if active.Score < degradedThreshold {
		return model.ReasonServiceDegradation, 0.9, true
	}
	if m.replicationLagCritical > 0 &&
		h.Replication.ReplicationLagSeconds > m.replicationLagCritical.Seconds() {
		return model.ReasonReplicationLag, 0.85, true
	}
	if m.latencyCriticalMs > 0 && h.Network.Available && h.Network.LatencyMs > m.latencyCriticalMs {
		return model.ReasonNetworkConnectivity, 0.8, true
	}
	return "", 0, false
}

// estimateRTO predicts the transition duration from history, falling back
// to the configured target before any run has completed.
func (m *Maker) estimateRTO() time.Duration {
	if m.history != nil {
		if avg, ok := m.history.AverageRunDuration(); ok {
			return avg
		}
	}
	return m.rtoTarget
}
