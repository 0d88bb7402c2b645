package model

import "time"

// RegionStatus represents the reported status of a cloud region.
type RegionStatus string

const (
	RegionHealthy  RegionStatus = "healthy"
	RegionDegraded RegionStatus = "degraded"
	RegionOutage   RegionStatus = "outage"
	RegionUnknown  RegionStatus = "unknown"
)

// Valid reports whether s is one of the known region statuses.
func (s RegionStatus) Valid() bool {
	switch s {
	case RegionHealthy, RegionDegraded, RegionOutage, RegionUnknown:
		return true
	}
	return false
}

// HealthStatus classifies a composite health score.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusUnknown   HealthStatus = "unknown"
)

// ReplicationHealth describes the CDC replication pipeline between the
// active and standby environments.
type ReplicationHealth struct {
	CDCActive             bool    `json:"cdc_active"`
	ReplicationLagSeconds float64 `json:"replication_lag_seconds"`
	ConsistencyScore      float64 `json:"consistency_score"`
}

// HealthReport is an immutable snapshot produced by a single health source.
// A new report supersedes the old one; reports are never mutated in place.
type HealthReport struct {
	Source       string             `json:"source"`
	Score        float64            `json:"score"` // [0,1]
	Available    bool               `json:"available"`
	RegionStatus RegionStatus       `json:"region_status"`
	LatencyMs    float64            `json:"latency_ms"`
	Replication  *ReplicationHealth `json:"replication,omitempty"` // set only by the replication source
	Timestamp    time.Time          `json:"timestamp"`
}

// EnvironmentHealth summarizes one environment's health sources.
type EnvironmentHealth struct {
	Database     HealthReport `json:"database"`
	Cluster      HealthReport `json:"cluster"`
	Score        float64      `json:"score"`
	RegionStatus RegionStatus `json:"region_status"`
}

// OverallHealth is the composite snapshot consumed by the decision maker.
// It is recomputed wholesale on every assessment and never partially updated.
type OverallHealth struct {
	Timestamp        time.Time         `json:"timestamp"`
	Primary          EnvironmentHealth `json:"primary"`
	Secondary        EnvironmentHealth `json:"secondary"`
	Replication      ReplicationHealth `json:"replication"`
	Network          HealthReport      `json:"network"`
	OverallScore     float64           `json:"overall_score"`
	Status           HealthStatus      `json:"status"`
	SourcesReporting int               `json:"sources_reporting"`
}

// Env returns the health summary for the given environment.
func (h *OverallHealth) Env(e Environment) EnvironmentHealth {
	if e == EnvironmentPrimary {
		return h.Primary
	}
	return h.Secondary
}

// ClassifyScore maps a composite score onto a health status.
func ClassifyScore(score float64) HealthStatus {
	switch {
	case score >= 0.8:
		return HealthStatusHealthy
	case score >= 0.5:
		return HealthStatusDegraded
	default:
		return HealthStatusUnhealthy
	}
}
