package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/model"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/repository"
)

// RegisterClusterSteps binds the compute steps to the Nomad clusters.
// Starting an environment means undraining its nodes and forcing a
// scheduling pass; stopping means draining them.
func RegisterClusterSteps(registry *Registry, clusters map[model.Environment]repository.ClusterRepository, logger *slog.Logger) {
	clusterFor := func(env model.Environment) (repository.ClusterRepository, error) {
		c, ok := clusters[env]
		if !ok {
			return nil, fmt.Errorf("no cluster configured for environment %s", env)
		}
		return c, nil
	}

	registry.Register(model.StepValidateTargetReadiness, func(ctx context.Context, direction model.Direction) error {
		cluster, err := clusterFor(direction.Target())
		if err != nil {
			return err
		}
		hasLeader, err := cluster.CheckLeader(ctx)
		if err != nil {
			return fmt.Errorf("target leader check failed: %w", err)
		}
		if !hasLeader {
			return fmt.Errorf("target cluster %s has no leader", direction.Target())
		}
		stats, err := cluster.NodeStats(ctx)
		if err != nil {
			return fmt.Errorf("target node listing failed: %w", err)
		}
		if stats.Total == 0 {
			return fmt.Errorf("target cluster %s has no nodes", direction.Target())
		}
		logger.Info("target cluster ready",
			slog.String("target", string(direction.Target())),
			slog.Int("nodes_total", stats.Total),
			slog.Int("nodes_ready", stats.Ready),
		)
		return nil
	})

	registry.Register(model.StepStartTargetServices, func(ctx context.Context, direction model.Direction) error {
		cluster, err := clusterFor(direction.Target())
		if err != nil {
			return err
		}
		if _, err := cluster.SetDrain(ctx, false); err != nil {
			return fmt.Errorf("failed to undrain target nodes: %w", err)
		}
		if err := cluster.TriggerJobEvaluations(ctx); err != nil {
			return fmt.Errorf("failed to trigger job evaluations: %w", err)
		}
		return nil
	})

	registry.Register(model.StepStopSourceServices, func(ctx context.Context, direction model.Direction) error {
		cluster, err := clusterFor(direction.Source())
		if err != nil {
			return err
		}
		if _, err := cluster.SetDrain(ctx, true); err != nil {
			return fmt.Errorf("failed to drain source nodes: %w", err)
		}
		return nil
	})
}
