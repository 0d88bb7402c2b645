package health

import (
	"context"
	"log/slog"
	"time"

	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/model"
)

// Role identifies which slot of the overall picture a source feeds.
type Role string

const (
	RolePrimaryDatabase   Role = "primary_database"
	RolePrimaryCluster    Role = "primary_cluster"
	RoleSecondaryDatabase Role = "secondary_database"
	RoleSecondaryCluster  Role = "secondary_cluster"
	RoleReplication       Role = "replication"
	RoleNetwork           Role = "network"
)

// Critical roles carry the heavier aggregation weight.
func (r Role) Critical() bool {
	switch r {
	case RolePrimaryDatabase, RoleSecondaryDatabase, RoleReplication:
		return true
	}
	return false
}

// Source probes one aspect of the deployment and reports its health.
type Source interface {
	// Name identifies the source in reports and logs.
	Name() string

	// Role describes which aggregation slot the source feeds.
	Role() Role

	// Probe performs one health check. It should respect ctx cancellation.
	Probe(ctx context.Context) (*model.HealthReport, error)
}

// SafeProbe runs a probe and converts any failure into a zero-score
// unknown report, so that one broken source never takes down a cycle.
// The boolean reports whether the source actually responded.
func SafeProbe(ctx context.Context, src Source, logger *slog.Logger) (*model.HealthReport, bool) {
	report, err := src.Probe(ctx)
	if err != nil || report == nil {
		if err != nil {
			logger.Warn("health probe failed",
				slog.String("source", src.Name()),
				slog.String("error", err.Error()),
			)
		}
		return &model.HealthReport{
			Source:       src.Name(),
			Score:        0,
			Available:    false,
			RegionStatus: model.RegionUnknown,
			Timestamp:    time.Now().UTC(),
		}, false
	}
	if report.Source == "" {
		report.Source = src.Name()
	}
	if report.Timestamp.IsZero() {
		report.Timestamp = time.Now().UTC()
	}
	return report, true
}
