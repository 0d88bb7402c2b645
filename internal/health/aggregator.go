package health

import (
	"context"
	"log/slog"
	"time"

	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/cache"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/concurrent"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/config"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/model"
)

const (
	criticalWeight    = 0.3
	nonCriticalWeight = 0.1
)

// Aggregator fans out to all registered health sources, composes a weighted
// overall snapshot, and caches the result for on-demand readers.
type Aggregator struct {
	sources []Source
	cache   *cache.HealthCache
	timeout time.Duration
	logger  *slog.Logger
}

// NewAggregator creates an aggregator over the given sources.
func NewAggregator(cfg config.HealthConfig, sources []Source, healthCache *cache.HealthCache, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		sources: sources,
		cache:   healthCache,
		timeout: cfg.SourceTimeout,
		logger:  logger,
	}
}

type probeOutcome struct {
	role     Role
	report   *model.HealthReport
	reported bool
}

// Assess probes every source concurrently and composes the overall health
// snapshot. A failing source degrades the score but never aborts the cycle.
func (a *Aggregator) Assess(ctx context.Context) (*model.OverallHealth, error) {
	if len(a.sources) == 0 {
		return nil, model.ErrNoHealthSources
	}

	results := concurrent.ParallelMapTimeout(ctx, a.sources, a.timeout, func(ctx context.Context, src Source) (probeOutcome, error) {
		report, reported := SafeProbe(ctx, src, a.logger)
		return probeOutcome{role: src.Role(), report: report, reported: reported}, nil
	})

	byRole := make(map[Role]*model.HealthReport, len(results))
	reporting := 0
	for _, res := range results {
		out := res.Value
		byRole[out.role] = out.report
		if out.reported {
			reporting++
		}
		if a.cache != nil {
			a.cache.SetReport(out.report.Source, out.report)
		}
	}

	overall := a.compose(byRole, reporting)
	if a.cache != nil {
		a.cache.SetOverall(overall)
	}

	a.logger.Debug("health assessment completed",
		slog.Float64("overall_score", overall.OverallScore),
		slog.String("status", string(overall.Status)),
		slog.Int("sources_reporting", reporting),
	)
	return overall, nil
}

// Cached returns the most recent snapshot without re-probing.
func (a *Aggregator) Cached() (*model.OverallHealth, bool) {
	if a.cache == nil {
		return nil, false
	}
	return a.cache.Overall()
}

func (a *Aggregator) compose(byRole map[Role]*model.HealthReport, reporting int) *model.OverallHealth {
	overall := &model.OverallHealth{
		Timestamp:        time.Now().UTC(),
		Primary:          composeEnvironment(byRole[RolePrimaryDatabase], byRole[RolePrimaryCluster]),
		Secondary:        composeEnvironment(byRole[RoleSecondaryDatabase], byRole[RoleSecondaryCluster]),
		SourcesReporting: reporting,
	}

	if r := byRole[RoleReplication]; r != nil && r.Replication != nil {
		overall.Replication = *r.Replication
	}
	if n := byRole[RoleNetwork]; n != nil {
		overall.Network = *n
	}

	// Critical sources carry triple the weight of supporting ones, and the
	// sum is normalized over the weights actually present so a missing
	// source does not silently drag the score toward zero.
	var weightedSum, totalWeight float64
	for role, report := range byRole {
		weight := nonCriticalWeight
		if role.Critical() {
			weight = criticalWeight
		}
		weightedSum += report.Score * weight
		totalWeight += weight
	}
	if totalWeight > 0 {
		overall.OverallScore = weightedSum / totalWeight
	}

	if reporting == 0 {
		overall.Status = model.HealthStatusUnknown
	} else {
		overall.Status = model.ClassifyScore(overall.OverallScore)
	}
	return overall
}

func composeEnvironment(database, cluster *model.HealthReport) model.EnvironmentHealth {
	env := model.EnvironmentHealth{RegionStatus: model.RegionUnknown}

	var weightedSum, totalWeight float64
	if database != nil {
		env.Database = *database
		weightedSum += database.Score * criticalWeight
		totalWeight += criticalWeight
	}
	if cluster != nil {
		env.Cluster = *cluster
		weightedSum += cluster.Score * nonCriticalWeight
		totalWeight += nonCriticalWeight
	}
	if totalWeight > 0 {
		env.Score = weightedSum / totalWeight
	}

	env.RegionStatus = worstRegion(database, cluster)
	return env
}

var regionSeverity = map[model.RegionStatus]int{
	model.RegionHealthy:  0,
	model.RegionUnknown:  1,
	model.RegionDegraded: 2,
	model.RegionOutage:   3,
}

func worstRegion(reports ...*model.HealthReport) model.RegionStatus {
	var worst model.RegionStatus
	severity := -1
	for _, r := range reports {
		if r == nil {
			continue
		}
		if s := regionSeverity[r.RegionStatus]; s > severity {
			severity = s
			worst = r.RegionStatus
		}
	}
	if worst == "" {
		return model.RegionUnknown
	}
	return worst
}
