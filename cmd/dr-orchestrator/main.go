package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/alert"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/api"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/cache"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/config"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/coordinator"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/decision"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/executor"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/health"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/logger"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/model"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/observability"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/orchestrator"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/repository"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/pkg/httpserver"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Logging.Level)

	log.Info("configuration loaded",
		"primary", cfg.Environments.Primary.Name,
		"secondary", cfg.Environments.Secondary.Name,
		"auto_failover", cfg.Orchestrator.AutoFailover,
	)

	// Create health cache
	healthCache := cache.New(cfg.Health.CacheTTL)

	// Create the state store
	var store repository.Store
	if cfg.Etcd.Enabled {
		store, err = repository.NewEtcdStore(cfg.Etcd, log)
		if err != nil {
			log.Error("failed to create etcd store",
				"error", err.Error(),
			)
			os.Exit(1)
		}
		log.Info("etcd store initialized",
			"endpoints", cfg.Etcd.Endpoints,
		)
	} else {
		store = repository.NewMemoryStore()
		log.Warn("etcd disabled, dr state will not survive restarts")
	}
	defer store.Close()

	// Create Nomad cluster repositories
	clusters := make(map[model.Environment]repository.ClusterRepository)
	envConfigs := map[model.Environment]config.EnvironmentConfig{
		model.EnvironmentPrimary:   cfg.Environments.Primary,
		model.EnvironmentSecondary: cfg.Environments.Secondary,
	}
	for env, envCfg := range envConfigs {
		if envCfg.Cluster.Address == "" {
			continue
		}
		cluster, err := repository.NewNomadCluster(env, envCfg.Cluster, log)
		if err != nil {
			log.Error("failed to create nomad client",
				"environment", string(env),
				"error", err.Error(),
			)
			os.Exit(1)
		}
		clusters[env] = cluster
	}

	// Assemble health sources
	var sources []health.Source
	roleFor := map[model.Environment][2]health.Role{
		model.EnvironmentPrimary:   {health.RolePrimaryDatabase, health.RolePrimaryCluster},
		model.EnvironmentSecondary: {health.RoleSecondaryDatabase, health.RoleSecondaryCluster},
	}
	for env, envCfg := range envConfigs {
		roles := roleFor[env]
		if envCfg.Database.URL != "" {
			sources = append(sources, health.NewHTTPSource(string(env)+"_database", roles[0], envCfg.Database))
		}
		if cluster, ok := clusters[env]; ok {
			sources = append(sources, health.NewClusterSource(string(env)+"_cluster", roles[1], cluster))
		}
	}
	if cfg.Replication.URL != "" {
		sources = append(sources, health.NewHTTPSource("replication", health.RoleReplication, cfg.Replication))
	}
	if cfg.Network.URL != "" {
		sources = append(sources, health.NewHTTPSource("network", health.RoleNetwork, cfg.Network))
	}

	log.Info("health sources configured",
		"count", len(sources),
	)

	// Metrics
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	// Health aggregator
	aggregator := health.NewAggregator(cfg.Health, sources, healthCache, log)

	// Step executors: Nomad handles compute, the automation webhook the rest
	registry := executor.NewRegistry(log)
	executor.RegisterClusterSteps(registry, clusters, log)
	webhook := executor.NewWebhookExecutor(cfg.Automation)
	registry.SetFallback(webhook.Execute)

	// Failover coordinator
	coord := coordinator.New(cfg.Failover, cfg.Orchestrator, registry, store, metrics, log)

	// Decision maker, with run history feeding the RTO estimate
	decider := decision.NewMaker(cfg.Orchestrator, cfg.Health, coord, log)

	// Alerting
	alerts := alert.NewWebhook(cfg.Alerts, log)

	// Orchestration loop
	orch := orchestrator.New(cfg.Orchestrator, aggregator, decider, coord, store, alerts, metrics, log)

	// Recover persisted dr state before the loop starts
	if err := orch.Recover(context.Background()); err != nil {
		log.Error("failed to recover dr state",
			"error", err.Error(),
		)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the orchestration loop
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := orch.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("orchestration loop stopped",
				"error", err.Error(),
			)
		}
	}()

	// Create HTTP handler and server
	handler := api.NewHandler(coord, aggregator, store, promhttp.Handler(), cfg.Server.BasePath, log)
	srv := httpserver.New(
		cfg.Server.Addr,
		handler.Router(),
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		log,
	)

	// Setup signal handling for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Run()
	}()

	log.Info("dr orchestrator started")

	select {
	case err := <-serverErrors:
		if err != nil {
			log.Error("server error",
				"error", err.Error(),
			)
		}
	case sig := <-quit:
		log.Info("received shutdown signal",
			"signal", sig.String(),
		)
	}

	// Graceful shutdown: let an in-flight run finish, stop the loop so no
	// new run starts, then drain the HTTP server.
	log.Info("shutting down orchestration loop")
	waitForRun(coord, cfg.Orchestrator.DrainTimeout, log)
	cancel()
	<-loopDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed",
			"error", err.Error(),
		)
	}

	log.Info("shutdown complete")
}

// waitForRun blocks until no failover run is in flight or the drain
// timeout expires. Cancelling mid-run would revert state unnecessarily
// when the run only needs a little more time.
func waitForRun(coord *coordinator.Coordinator, timeout time.Duration, log *slog.Logger) {
	deadline := time.Now().Add(timeout)
	for {
		run := coord.CurrentRun()
		if run == nil || run.Status.Terminal() {
			return
		}
		if time.Now().After(deadline) {
			log.Warn("drain timeout reached with run still in flight",
				"run_id", run.ID,
			)
			return
		}
		time.Sleep(500 * time.Millisecond)
	}
}
