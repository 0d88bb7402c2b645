package config

import (
	"fmt"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Logging      LoggingConfig      `koanf:"logging"`
	Orchestrator OrchestratorConfig `koanf:"orchestrator"`
	Health       HealthConfig       `koanf:"health"`
	Failover     FailoverConfig     `koanf:"failover"`
	Environments EnvironmentsConfig `koanf:"environments"`
	Replication  ProbeEndpoint      `koanf:"replication"`
	Network      ProbeEndpoint      `koanf:"network"`
	Etcd         EtcdConfig         `koanf:"etcd"`
	Automation   WebhookConfig      `koanf:"automation"`
	Alerts       WebhookConfig      `koanf:"alerts"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Addr         string        `koanf:"addr"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	BasePath     string        `koanf:"base_path"` // Optional base path for reverse proxy
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level string `koanf:"level"` // debug | info | warn | error
}

// OrchestratorConfig drives the main orchestration loop.
type OrchestratorConfig struct {
	HealthCheckInterval time.Duration `koanf:"health_check_interval"`
	ErrorBackoff        time.Duration `koanf:"error_backoff"`
	RTOTarget           time.Duration `koanf:"rto_target"`
	RPOTarget           time.Duration `koanf:"rpo_target"`
	AutoFailover        bool          `koanf:"auto_failover"`
	RollbackEnabled     bool          `koanf:"rollback_enabled"`
	CheckpointRetention int           `koanf:"checkpoint_retention"`
	CheckpointMaxAge    time.Duration `koanf:"checkpoint_max_age"`
	HistoryLimit        int           `koanf:"history_limit"`
	DrainTimeout        time.Duration `koanf:"drain_timeout"` // shutdown wait for an in-flight run
}

// HealthConfig holds assessment thresholds for the health aggregator.
type HealthConfig struct {
	SourceTimeout          time.Duration `koanf:"source_timeout"`
	CacheTTL               time.Duration `koanf:"cache_ttl"`
	LatencyCriticalMs      float64       `koanf:"latency_critical_ms"`
	ReplicationLagCritical time.Duration `koanf:"replication_lag_critical"`
	RollbackScoreThreshold float64       `koanf:"rollback_score_threshold"`
}

// FailoverConfig holds the coordinator's run-level settings.
type FailoverConfig struct {
	RunTimeout       time.Duration `koanf:"run_timeout"`
	BackoffBase      time.Duration `koanf:"backoff_base"`
	MaxRetryAttempts int           `koanf:"max_retry_attempts"`
	// NonCriticalSteps relaxes the named steps from the canonical sequence.
	// Only the service start, traffic validation and source shutdown steps
	// may be relaxed; the rest stay critical regardless.
	NonCriticalSteps []string `koanf:"non_critical_steps"`
}

// EnvironmentsConfig pairs the two managed environments.
type EnvironmentsConfig struct {
	Primary   EnvironmentConfig `koanf:"primary"`
	Secondary EnvironmentConfig `koanf:"secondary"`
}

// EnvironmentConfig describes one environment's probe and cluster endpoints.
type EnvironmentConfig struct {
	Name     string        `koanf:"name"` // display name, e.g. "azure-eastus2"
	Cluster  ClusterConfig `koanf:"cluster"`
	Database ProbeEndpoint `koanf:"database"`
}

// ClusterConfig represents a Nomad cluster serving one environment's compute layer.
type ClusterConfig struct {
	Address string     `koanf:"address"`
	Region  string     `koanf:"region"`
	TLS     *TLSConfig `koanf:"tls"`
}

// ProbeEndpoint is an HTTP health endpoint polled by a health source.
type ProbeEndpoint struct {
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
}

// EtcdConfig represents the etcd connection used for persisted state.
type EtcdConfig struct {
	Enabled     bool          `koanf:"enabled"`
	Endpoints   []string      `koanf:"endpoints"`
	DialTimeout time.Duration `koanf:"dial_timeout"`
	Username    string        `koanf:"username"`
	Password    string        `koanf:"password"`
	Namespace   string        `koanf:"namespace"`
	TLS         *TLSConfig    `koanf:"tls"`
}

// WebhookConfig is a generic outbound webhook endpoint.
type WebhookConfig struct {
	URL     string            `koanf:"url"`
	Timeout time.Duration     `koanf:"timeout"`
	Headers map[string]string `koanf:"headers"`
}

// TLSConfig represents client TLS material.
type TLSConfig struct {
	CA   string `koanf:"ca"`
	Cert string `koanf:"cert"`
	Key  string `koanf:"key"`
}

// Load loads configuration from the specified file
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// Load YAML config
	if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.ApplyDefaults()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// ApplyDefaults fills unset fields with production defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Orchestrator.HealthCheckInterval <= 0 {
		c.Orchestrator.HealthCheckInterval = 10 * time.Second
	}
	if c.Orchestrator.ErrorBackoff <= 0 {
		c.Orchestrator.ErrorBackoff = 30 * time.Second
	}
	if c.Orchestrator.RTOTarget <= 0 {
		c.Orchestrator.RTOTarget = 5 * time.Minute
	}
	if c.Orchestrator.RPOTarget <= 0 {
		c.Orchestrator.RPOTarget = 30 * time.Second
	}
	if c.Orchestrator.CheckpointRetention <= 0 {
		c.Orchestrator.CheckpointRetention = 10
	}
	if c.Orchestrator.CheckpointMaxAge <= 0 {
		c.Orchestrator.CheckpointMaxAge = 24 * time.Hour
	}
	if c.Orchestrator.HistoryLimit <= 0 {
		c.Orchestrator.HistoryLimit = 50
	}
	if c.Orchestrator.DrainTimeout <= 0 {
		c.Orchestrator.DrainTimeout = 5 * time.Minute
	}
	if c.Health.SourceTimeout <= 0 {
		c.Health.SourceTimeout = 5 * time.Second
	}
	if c.Health.CacheTTL <= 0 {
		c.Health.CacheTTL = 5 * time.Second
	}
	if c.Health.LatencyCriticalMs <= 0 {
		c.Health.LatencyCriticalMs = 500
	}
	if c.Health.ReplicationLagCritical <= 0 {
		// Lag is measured against the recovery point objective unless
		// a separate threshold is set.
		c.Health.ReplicationLagCritical = c.Orchestrator.RPOTarget
	}
	if c.Health.RollbackScoreThreshold <= 0 {
		c.Health.RollbackScoreThreshold = 0.95
	}
	if c.Failover.RunTimeout <= 0 {
		c.Failover.RunTimeout = 30 * time.Minute
	}
	if c.Failover.BackoffBase <= 0 {
		c.Failover.BackoffBase = time.Second
	}
	if c.Failover.MaxRetryAttempts <= 0 {
		c.Failover.MaxRetryAttempts = 3
	}
	if c.Etcd.DialTimeout <= 0 {
		c.Etcd.DialTimeout = 5 * time.Second
	}
	if c.Etcd.Namespace == "" {
		c.Etcd.Namespace = "dr-orchestrator"
	}
	if c.Automation.Timeout <= 0 {
		c.Automation.Timeout = 60 * time.Second
	}
	if c.Alerts.Timeout <= 0 {
		c.Alerts.Timeout = 10 * time.Second
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}

	if err := c.Environments.Primary.validate("environments.primary"); err != nil {
		return err
	}
	if err := c.Environments.Secondary.validate("environments.secondary"); err != nil {
		return err
	}

	if c.Etcd.Enabled && len(c.Etcd.Endpoints) == 0 {
		return fmt.Errorf("etcd.endpoints is required when etcd is enabled")
	}

	if c.Health.RollbackScoreThreshold > 1 {
		return fmt.Errorf("health.rollback_score_threshold must be in (0,1]")
	}

	return nil
}

func (e *EnvironmentConfig) validate(prefix string) error {
	if e.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if e.Cluster.Address == "" && e.Database.URL == "" {
		return fmt.Errorf("%s requires a cluster address or a database health url", prefix)
	}
	return nil
}
