package model

import "time"

// RunStatus represents the lifecycle status of a failover run.
type RunStatus string

const (
	RunStatusInProgress RunStatus = "in_progress"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
	RunStatusTimeout    RunStatus = "timeout"
)

// Terminal reports whether the run has reached a final status.
func (s RunStatus) Terminal() bool {
	return s != RunStatusInProgress
}

// FailoverStep is the static definition of a single step in the failover
// sequence. Step lists are built once at startup and never mutated.
type FailoverStep struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Timeout     time.Duration `json:"timeout"`
	RetryCount  int           `json:"retry_count"`
	Critical    bool          `json:"critical"`
}

// Canonical step names of the failover sequence. The same sequence runs in
// both directions; "target" and "source" resolve against the direction.
const (
	StepValidateTargetReadiness  = "validate_target_readiness"
	StepProvisionTargetResources = "provision_target_resources"
	StepSyncFinalData            = "sync_final_data"
	StepSwitchDatabasePrimary    = "switch_database_primary"
	StepStartTargetServices      = "start_target_services"
	StepUpdateDNSRouting         = "update_dns_routing"
	StepValidateTargetTraffic    = "validate_target_traffic"
	StepStopSourceServices       = "stop_source_services"
)

// StepRecord captures the outcome of one executed step within a run.
type StepRecord struct {
	Step      string        `json:"step"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
	Attempts  int           `json:"attempts"`
	Error     string        `json:"error,omitempty"`
}

// StepResult is the value returned from executing a single step with
// retries. Failures are values here, not propagated errors.
type StepResult struct {
	Step     string
	Success  bool
	Attempts int
	Duration time.Duration
	Error    string
}

// FailoverRun records one in-flight or completed failover. At most one run
// exists at a time; cross-component readers receive immutable snapshots.
type FailoverRun struct {
	ID             string       `json:"id"`
	Direction      Direction    `json:"direction"`
	Rollback       bool         `json:"rollback"`
	StartTime      time.Time    `json:"start_time"`
	EndTime        time.Time    `json:"end_time,omitzero"`
	StepsCompleted []StepRecord `json:"steps_completed"`
	StepsFailed    []StepRecord `json:"steps_failed"`
	CurrentStep    string       `json:"current_step,omitempty"`
	Status         RunStatus    `json:"status"`
	FailedStep     string       `json:"failed_step,omitempty"`
	Error          string       `json:"error,omitempty"`
}

// Duration returns the run's elapsed time, using the end time when set.
func (r *FailoverRun) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return time.Since(r.StartTime)
	}
	return r.EndTime.Sub(r.StartTime)
}

// Snapshot returns a deep copy safe for concurrent readers.
func (r *FailoverRun) Snapshot() *FailoverRun {
	cp := *r
	cp.StepsCompleted = append([]StepRecord(nil), r.StepsCompleted...)
	cp.StepsFailed = append([]StepRecord(nil), r.StepsFailed...)
	return &cp
}

// FailoverResult summarizes a finished run for the caller.
type FailoverResult struct {
	RunID          string        `json:"run_id"`
	Direction      Direction     `json:"direction"`
	Status         RunStatus     `json:"status"`
	Success        bool          `json:"success"`
	StepsCompleted int           `json:"steps_completed"`
	FailedStep     string        `json:"failed_step,omitempty"`
	Error          string        `json:"error,omitempty"`
	Duration       time.Duration `json:"duration"`
}

// DecisionReason explains why a failover or rollback was signalled.
type DecisionReason string

const (
	ReasonNone                DecisionReason = ""
	ReasonServiceDegradation  DecisionReason = "service_degradation"
	ReasonDatabaseUnavailable DecisionReason = "database_unavailable"
	ReasonRegionOutage        DecisionReason = "region_outage"
	ReasonNetworkConnectivity DecisionReason = "network_connectivity_loss"
	ReasonReplicationLag      DecisionReason = "replication_lag_critical"
	ReasonPrimaryRecovered    DecisionReason = "primary_environment_recovered"
	ReasonManualTrigger       DecisionReason = "manual_trigger"
)

// FailoverDecision is the transient outcome of one evaluation tick.
// It is produced fresh on every tick and never persisted.
type FailoverDecision struct {
	ShouldFailover    bool           `json:"should_failover"`
	ShouldRollback    bool           `json:"should_rollback"`
	TargetEnvironment Environment    `json:"target_environment,omitempty"`
	Reason            DecisionReason `json:"reason,omitempty"`
	Confidence        float64        `json:"confidence"`
	EstimatedRTO      time.Duration  `json:"estimated_rto"`
}

// Actionable reports whether the decision requires the coordinator.
func (d FailoverDecision) Actionable() bool {
	return d.ShouldFailover || d.ShouldRollback
}
