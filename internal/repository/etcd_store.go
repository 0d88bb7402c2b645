package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/config"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/model"
	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/util"
)

const (
	keyState            = "state"
	keyHeartbeat        = "heartbeat"
	keyCheckpointPrefix = "checkpoints/"
)

// heartbeatRecord is the durable liveness marker written each tick.
type heartbeatRecord struct {
	LastSeen time.Time `json:"last_seen"`
}

// etcdStore implements Store on top of an etcd cluster. All keys live under
// the configured namespace prefix.
type etcdStore struct {
	client    *clientv3.Client
	namespace string
	logger    *slog.Logger
}

// NewEtcdStore creates a Store backed by etcd.
func NewEtcdStore(cfg config.EtcdConfig, logger *slog.Logger) (Store, error) {
	etcdCfg := clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
		Username:    cfg.Username,
		Password:    cfg.Password,
	}

	if cfg.TLS != nil {
		tlsConfig, err := util.LoadTLSConfig(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS config: %w", err)
		}
		etcdCfg.TLS = tlsConfig
	}

	client, err := clientv3.New(etcdCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if _, err = client.Status(ctx, cfg.Endpoints[0]); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	logger.Info("connected to etcd cluster", "endpoints", cfg.Endpoints)

	return &etcdStore{
		client:    client,
		namespace: cfg.Namespace,
		logger:    logger,
	}, nil
}

func (e *etcdStore) key(parts ...string) string {
	return path.Join(append([]string{e.namespace}, parts...)...)
}

func (e *etcdStore) SaveState(ctx context.Context, st model.PersistedState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if _, err = e.client.Put(ctx, e.key(keyState), string(data)); err != nil {
		return fmt.Errorf("failed to write state to etcd: %w", err)
	}

	e.logger.Debug("wrote state to etcd",
		"state", string(st.State),
		"prior_active", string(st.PriorActive),
	)
	return nil
}

func (e *etcdStore) LoadState(ctx context.Context) (model.PersistedState, error) {
	resp, err := e.client.Get(ctx, e.key(keyState))
	if err != nil {
		return model.PersistedState{}, fmt.Errorf("failed to read state from etcd: %w", err)
	}

	if len(resp.Kvs) == 0 {
		return model.PersistedState{}, ErrStateNotFound
	}

	var st model.PersistedState
	if err := json.Unmarshal(resp.Kvs[0].Value, &st); err != nil {
		return model.PersistedState{}, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return st, nil
}

func (e *etcdStore) AppendCheckpoint(ctx context.Context, cp model.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	// Timestamp-prefixed keys keep the ring ordered under a range read.
	key := e.key(keyCheckpointPrefix + cp.Timestamp.UTC().Format(time.RFC3339Nano) + "-" + cp.ID)
	if _, err = e.client.Put(ctx, key, string(data)); err != nil {
		return fmt.Errorf("failed to write checkpoint to etcd: %w", err)
	}

	e.logger.Debug("wrote checkpoint to etcd", "id", cp.ID, "state", string(cp.State))
	return nil
}

func (e *etcdStore) Checkpoints(ctx context.Context) ([]model.Checkpoint, error) {
	resp, err := e.client.Get(ctx, e.key(keyCheckpointPrefix), clientv3.WithPrefix(), clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	checkpoints := make([]model.Checkpoint, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var cp model.Checkpoint
		if err := json.Unmarshal(kv.Value, &cp); err != nil {
			e.logger.Warn("skipping malformed checkpoint", "key", string(kv.Key), "error", err.Error())
			continue
		}
		checkpoints = append(checkpoints, cp)
	}
	sort.Slice(checkpoints, func(i, j int) bool { return checkpoints[i].Timestamp.Before(checkpoints[j].Timestamp) })
	return checkpoints, nil
}

func (e *etcdStore) PruneCheckpoints(ctx context.Context, keep int, maxAge time.Duration) (int, error) {
	resp, err := e.client.Get(ctx, e.key(keyCheckpointPrefix), clientv3.WithPrefix(), clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
	if err != nil {
		return 0, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	var doomed []string
	total := len(resp.Kvs)
	for i, kv := range resp.Kvs {
		beyondRing := keep > 0 && total-i > keep
		var cp model.Checkpoint
		tooOld := false
		if err := json.Unmarshal(kv.Value, &cp); err == nil && maxAge > 0 {
			tooOld = cp.Timestamp.Before(cutoff)
		}
		if beyondRing || tooOld {
			doomed = append(doomed, string(kv.Key))
		}
	}

	for _, key := range doomed {
		if _, err := e.client.Delete(ctx, key); err != nil {
			return 0, fmt.Errorf("failed to delete checkpoint %s: %w", key, err)
		}
	}

	if len(doomed) > 0 {
		e.logger.Debug("pruned checkpoints", "removed", len(doomed))
	}
	return len(doomed), nil
}

func (e *etcdStore) WriteHeartbeat(ctx context.Context) error {
	data, err := json.Marshal(heartbeatRecord{LastSeen: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal heartbeat: %w", err)
	}

	if _, err = e.client.Put(ctx, e.key(keyHeartbeat), string(data)); err != nil {
		return fmt.Errorf("failed to write heartbeat to etcd: %w", err)
	}
	return nil
}

func (e *etcdStore) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}
