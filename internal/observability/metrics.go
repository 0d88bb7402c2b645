// Package observability exposes the orchestrator's Prometheus instruments.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/model"
)

// Sink is the narrow recording interface the orchestration components
// depend on, so tests can run without a Prometheus registry.
type Sink interface {
	SetHealthScore(scope string, score float64)
	SetDrState(state model.DrState)
	RecordDecision(reason model.DecisionReason, rollback bool)
	RecordRun(direction model.Direction, status model.RunStatus, duration time.Duration)
	RecordStep(step string, success bool, attempts int)
	RecordTickError()
}

// drStates enumerates every state label so the gauge always carries a full
// one-hot encoding.
var drStates = []model.DrState{
	model.DrStateActivePrimary,
	model.DrStateActiveSecondary,
	model.DrStateFailoverInProgress,
	model.DrStateRollbackInProgress,
	model.DrStateError,
}

// Metrics implements Sink on top of Prometheus instruments.
type Metrics struct {
	healthScore    *prometheus.GaugeVec
	drState        *prometheus.GaugeVec
	decisionsTotal *prometheus.CounterVec
	runsTotal      *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	stepsTotal     *prometheus.CounterVec
	stepAttempts   *prometheus.CounterVec
	tickErrors     prometheus.Counter
}

// NewMetrics registers the orchestrator's instruments on the given
// registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		healthScore: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dr_health_score",
			Help: "Latest composite health score per scope (overall, primary, secondary).",
		}, []string{"scope"}),
		drState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dr_state",
			Help: "Current DR state as a one-hot gauge.",
		}, []string{"state"}),
		decisionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dr_decisions_total",
			Help: "Actionable failover decisions by reason and action.",
		}, []string{"reason", "action"}),
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dr_failover_runs_total",
			Help: "Completed failover runs by direction and final status.",
		}, []string{"direction", "status"}),
		runDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dr_failover_run_duration_seconds",
			Help:    "Duration of failover runs.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"direction"}),
		stepsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dr_failover_steps_total",
			Help: "Executed failover steps by name and outcome.",
		}, []string{"step", "outcome"}),
		stepAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dr_failover_step_attempts_total",
			Help: "Individual step attempts including retries.",
		}, []string{"step"}),
		tickErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "dr_orchestration_tick_errors_total",
			Help: "Orchestration loop ticks that ended in an error.",
		}),
	}
}

func (m *Metrics) SetHealthScore(scope string, score float64) {
	m.healthScore.WithLabelValues(scope).Set(score)
}

func (m *Metrics) SetDrState(state model.DrState) {
	for _, s := range drStates {
		v := 0.0
		if s == state {
			v = 1.0
		}
		m.drState.WithLabelValues(string(s)).Set(v)
	}
}

func (m *Metrics) RecordDecision(reason model.DecisionReason, rollback bool) {
	action := "failover"
	if rollback {
		action = "rollback"
	}
	m.decisionsTotal.WithLabelValues(string(reason), action).Inc()
}

func (m *Metrics) RecordRun(direction model.Direction, status model.RunStatus, duration time.Duration) {
	m.runsTotal.WithLabelValues(string(direction), string(status)).Inc()
	m.runDuration.WithLabelValues(string(direction)).Observe(duration.Seconds())
}

func (m *Metrics) RecordStep(step string, success bool, attempts int) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.stepsTotal.WithLabelValues(step, outcome).Inc()
	m.stepAttempts.WithLabelValues(step).Add(float64(attempts))
}

func (m *Metrics) RecordTickError() {
	m.tickErrors.Inc()
}

// Nop is a Sink that records nothing.
type Nop struct{}

func (Nop) SetHealthScore(string, float64)                            {}
func (Nop) SetDrState(model.DrState)                                  {}
func (Nop) RecordDecision(model.DecisionReason, bool)                 {}
func (Nop) RecordRun(model.Direction, model.RunStatus, time.Duration) {}
func (Nop) RecordStep(string, bool, int)                              {}
func (Nop) RecordTickError()                                          {}
