package model

import "time"

// DrState is the orchestrator's authoritative state. Exactly one live value
// exists process-wide, mutated only under the coordinator's run lock.
type DrState string

const (
	DrStateActivePrimary      DrState = "active_primary"
	DrStateActiveSecondary    DrState = "active_secondary"
	DrStateFailoverInProgress DrState = "failover_in_progress"
	DrStateRollbackInProgress DrState = "rollback_in_progress"
	DrStateError              DrState = "error"
)

// ActiveEnvironment returns which environment holds primary status, if the
// state denotes a settled (non-transitional) condition.
func (s DrState) ActiveEnvironment() (Environment, bool) {
	switch s {
	case DrStateActivePrimary:
		return EnvironmentPrimary, true
	case DrStateActiveSecondary:
		return EnvironmentSecondary, true
	default:
		return "", false
	}
}

// InProgress reports whether a failover or rollback run is underway.
func (s DrState) InProgress() bool {
	return s == DrStateFailoverInProgress || s == DrStateRollbackInProgress
}

// ActiveState returns the settled state in which env is active.
func ActiveState(env Environment) DrState {
	if env == EnvironmentPrimary {
		return DrStateActivePrimary
	}
	return DrStateActiveSecondary
}

// PersistedState is the durable form of DrState. PriorActive lets a restart
// that finds an in-progress state fall back to the last settled environment.
type PersistedState struct {
	State       DrState     `json:"state"`
	PriorActive Environment `json:"prior_active"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Checkpoint is a lightweight recovery snapshot kept in a bounded ring for
// audit and restart recovery.
type Checkpoint struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	State     DrState           `json:"state"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}
