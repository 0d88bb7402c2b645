package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/model"
)

// ErrStateNotFound is returned when no persisted state exists yet.
var ErrStateNotFound = errors.New("no persisted state found")

// Store persists the orchestrator's state and its checkpoint ring so a
// restart resumes from the last known state instead of assuming the
// primary is active.
type Store interface {
	// SaveState persists the authoritative DR state.
	SaveState(ctx context.Context, st model.PersistedState) error

	// LoadState returns the persisted state, or ErrStateNotFound.
	LoadState(ctx context.Context) (model.PersistedState, error)

	// AppendCheckpoint adds a checkpoint to the ring.
	AppendCheckpoint(ctx context.Context, cp model.Checkpoint) error

	// Checkpoints lists retained checkpoints, oldest first.
	Checkpoints(ctx context.Context) ([]model.Checkpoint, error)

	// PruneCheckpoints drops checkpoints beyond keep or older than maxAge,
	// returning how many were removed.
	PruneCheckpoints(ctx context.Context, keep int, maxAge time.Duration) (int, error)

	// WriteHeartbeat records orchestrator liveness.
	WriteHeartbeat(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}

// MemoryStore is an in-process Store for etcd-less deployments and tests.
type MemoryStore struct {
	mu          sync.Mutex
	state       *model.PersistedState
	checkpoints []model.Checkpoint
	heartbeat   time.Time
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) SaveState(_ context.Context, st model.PersistedState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := st
	m.state = &cp
	return nil
}

func (m *MemoryStore) LoadState(_ context.Context) (model.PersistedState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return model.PersistedState{}, ErrStateNotFound
	}
	return *m.state, nil
}

func (m *MemoryStore) AppendCheckpoint(_ context.Context, cp model.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints = append(m.checkpoints, cp)
	return nil
}

func (m *MemoryStore) Checkpoints(_ context.Context) ([]model.Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]model.Checkpoint(nil), m.checkpoints...)
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *MemoryStore) PruneCheckpoints(_ context.Context, keep int, maxAge time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sort.Slice(m.checkpoints, func(i, j int) bool {
		return m.checkpoints[i].Timestamp.Before(m.checkpoints[j].Timestamp)
	})

	cutoff := time.Now().Add(-maxAge)
	kept := m.checkpoints[:0]
	for _, cp := range m.checkpoints {
		if maxAge > 0 && cp.Timestamp.Before(cutoff) {
			continue
		}
		kept = append(kept, cp)
	}
	removed := len(m.checkpoints) - len(kept)
	m.checkpoints = kept

	if keep > 0 && len(m.checkpoints) > keep {
		removed += len(m.checkpoints) - keep
		m.checkpoints = append([]model.Checkpoint(nil), m.checkpoints[len(m.checkpoints)-keep:]...)
	}
	return removed, nil
}

func (m *MemoryStore) WriteHeartbeat(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heartbeat = time.Now()
	return nil
}

// LastHeartbeat returns the most recent heartbeat time.
func (m *MemoryStore) LastHeartbeat() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.heartbeat
}

func (m *MemoryStore) Close() error { return nil }
