package health

import (
	"context"
	"time"

	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/model"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/repository"
)

// ClusterSource probes a Nomad cluster and scores it by node readiness.
type ClusterSource struct {
	name    string
	role    Role
	cluster repository.ClusterRepository
}

// NewClusterSource creates a source for the given cluster repository.
func NewClusterSource(name string, role Role, cluster repository.ClusterRepository) *ClusterSource {
	return &ClusterSource{name: name, role: role, cluster: cluster}
}

func (s *ClusterSource) Name() string { return s.name }
func (s *ClusterSource) Role() Role   { return s.role }

func (s *ClusterSource) Probe(ctx context.Context) (*model.HealthReport, error) {
	report := &model.HealthReport{
		Source:    s.name,
		Timestamp: time.Now().UTC(),
	}

	hasLeader, err := s.cluster.CheckLeader(ctx)
	if err != nil {
		return nil, err
	}

	stats, err := s.cluster.NodeStats(ctx)
	if err != nil {
		return nil, err
	}

	if stats.Total > 0 {
		report.Score = float64(stats.Ready) / float64(stats.Total)
	}
	report.Available = hasLeader && stats.Ready > 0

	switch {
	case !hasLeader || stats.Ready == 0:
		report.RegionStatus = model.RegionOutage
	case stats.Ready < stats.Total:
		report.RegionStatus = model.RegionDegraded
	default:
		report.RegionStatus = model.RegionHealthy
	}

	return report, nil
}
