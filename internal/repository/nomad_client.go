package repository

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	nomad "github.com/hashicorp/nomad/api"

	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/config"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/model"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/util"
)

// NodeStats summarizes the scheduling capacity of one environment's cluster.
type NodeStats struct {
	Total    int
	Ready    int
	Draining int
}

// ClusterRepository abstracts the compute layer of a single environment.
// The coordinator's cluster steps and the cluster health source depend on
// this interface, never on the Nomad client directly.
type ClusterRepository interface {
	// Environment returns which environment this cluster serves.
	Environment() model.Environment

	// NodeStats returns node counts for readiness scoring.
	NodeStats(ctx context.Context) (NodeStats, error)

	// CheckLeader reports whether the cluster has an elected leader.
	CheckLeader(ctx context.Context) (bool, error)

	// SetDrain drains or undrains every node, returning how many were updated.
	SetDrain(ctx context.Context, drain bool) (int, error)

	// TriggerJobEvaluations forces a scheduling pass for all live jobs so
	// undrained nodes pick up workloads promptly.
	TriggerJobEvaluations(ctx context.Context) error
}

// nomadCluster implements ClusterRepository against one Nomad cluster.
type nomadCluster struct {
	env    model.Environment
	region string
	client *nomad.Client
	logger *slog.Logger
}

// NewNomadCluster creates a ClusterRepository for the given environment.
func NewNomadCluster(env model.Environment, cfg config.ClusterConfig, logger *slog.Logger) (ClusterRepository, error) {
	nomadConfig := nomad.DefaultConfig()
	nomadConfig.Address = cfg.Address
	if cfg.Region != "" {
		nomadConfig.Region = cfg.Region
	}

	if cfg.TLS != nil {
		tlsConfig, err := util.LoadTLSConfig(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS config: %w", err)
		}
		nomadConfig.HttpClient = &http.Client{
			Transport: &http.Transport{TLSClientConfig: tlsConfig},
			Timeout:   30 * time.Second,
		}
	}

	client, err := nomad.NewClient(nomadConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Nomad client for %s: %w", env, err)
	}

	logger.Info("nomad client initialized",
		slog.String("environment", string(env)),
		slog.String("address", cfg.Address),
		slog.String("region", cfg.Region),
	)

	return &nomadCluster{
		env:    env,
		region: cfg.Region,
		client: client,
		logger: logger,
	}, nil
}

func (c *nomadCluster) Environment() model.Environment { return c.env }

func (c *nomadCluster) NodeStats(ctx context.Context) (NodeStats, error) {
	nodes, _, err := c.client.Nodes().List((&nomad.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return NodeStats{}, fmt.Errorf("failed to list nodes: %w", err)
	}

	stats := NodeStats{Total: len(nodes)}
	for _, n := range nodes {
		switch {
		case n.Drain:
			stats.Draining++
		case n.SchedulingEligibility == "eligible" && n.Status == "ready":
			stats.Ready++
		default:
			// Ineligible nodes count as draining for capacity purposes.
			stats.Draining++
		}
	}

	c.logger.Debug("listed cluster nodes",
		slog.String("environment", string(c.env)),
		slog.Int("total", stats.Total),
		slog.Int("ready", stats.Ready),
	)
	return stats, nil
}

func (c *nomadCluster) CheckLeader(ctx context.Context) (bool, error) {
	leader, err := c.client.Status().Leader()
	if err != nil {
		return false, fmt.Errorf("failed to get leader: %w", err)
	}
	return leader != "", nil
}

func (c *nomadCluster) SetDrain(ctx context.Context, drain bool) (int, error) {
	nodes, _, err := c.client.Nodes().List((&nomad.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("failed to list nodes: %w", err)
	}

	var drainSpec *nomad.DrainSpec
	if drain {
		drainSpec = &nomad.DrainSpec{
			Deadline: -1, // Infinite deadline
		}
	}
	// When enabling drain the node becomes ineligible, and vice versa.
	markEligible := !drain

	updated := 0
	var firstErr error
	for _, n := range nodes {
		if n.Drain == drain {
			continue
		}
		if _, err := c.client.Nodes().UpdateDrain(n.ID, drainSpec, markEligible, (&nomad.WriteOptions{}).WithContext(ctx)); err != nil {
			c.logger.Warn("failed to update node drain",
				slog.String("environment", string(c.env)),
				slog.String("node_id", n.ID),
				slog.String("error", err.Error()),
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		updated++
	}

	c.logger.Info("updated cluster drain state",
		slog.String("environment", string(c.env)),
		slog.Bool("drain", drain),
		slog.Int("updated", updated),
		slog.Int("total", len(nodes)),
	)

	// Fail only when nothing could be updated; partial progress is usable.
	if updated == 0 && firstErr != nil {
		return 0, fmt.Errorf("failed to update any node drain: %w", firstErr)
	}
	return updated, nil
}

func (c *nomadCluster) TriggerJobEvaluations(ctx context.Context) error {
	jobs, _, err := c.client.Jobs().List((&nomad.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}

	success, failed := 0, 0
	for _, job := range jobs {
		if job.Status == "dead" {
			continue
		}
		if _, _, err := c.client.Jobs().ForceEvaluate(job.ID, (&nomad.WriteOptions{}).WithContext(ctx)); err != nil {
			failed++
			c.logger.Warn("failed to trigger evaluation for job",
				slog.String("environment", string(c.env)),
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		success++
	}

	c.logger.Info("job evaluations triggered",
		slog.String("environment", string(c.env)),
		slog.Int("success", success),
		slog.Int("failed", failed),
	)

	if failed > 0 && success == 0 {
		return fmt.Errorf("all job evaluations failed (%d jobs)", failed)
	}
	return nil
}
