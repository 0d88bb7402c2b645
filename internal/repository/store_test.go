package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/model"
)

func TestMemoryStoreStateRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.LoadState(ctx)
	assert.ErrorIs(t, err, ErrStateNotFound)

	saved := model.PersistedState{
		State:       model.DrStateActiveSecondary,
		PriorActive: model.EnvironmentSecondary,
		UpdatedAt:   time.Now().UTC(),
	}
	require.NoError(t, store.SaveState(ctx, saved))

	loaded, err := store.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved.State, loaded.State)
	assert.Equal(t, saved.PriorActive, loaded.PriorActive)
}

func TestMemoryStoreCheckpointsOrdered(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 2; i >= 0; i-- {
		require.NoError(t, store.AppendCheckpoint(ctx, model.Checkpoint{
			ID:        string(rune('a' + i)),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			State:     model.DrStateActivePrimary,
		}))
	}

	checkpoints, err := store.Checkpoints(ctx)
	require.NoError(t, err)
	require.Len(t, checkpoints, 3)
	assert.Equal(t, "a", checkpoints[0].ID)
	assert.Equal(t, "c", checkpoints[2].ID)
}

func TestPruneCheckpointsByCount(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 15; i++ {
		require.NoError(t, store.AppendCheckpoint(ctx, model.Checkpoint{
			ID:        string(rune('a' + i)),
			Timestamp: base.Add(time.Duration(i) * time.Second),
			State:     model.DrStateActivePrimary,
		}))
	}

	pruned, err := store.PruneCheckpoints(ctx, 10, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 5, pruned)

	checkpoints, err := store.Checkpoints(ctx)
	require.NoError(t, err)
	require.Len(t, checkpoints, 10)
	// The oldest five were dropped.
	assert.Equal(t, string(rune('a'+5)), checkpoints[0].ID)
}

func TestPruneCheckpointsByAge(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.AppendCheckpoint(ctx, model.Checkpoint{
		ID: "stale", Timestamp: now.Add(-48 * time.Hour), State: model.DrStateActivePrimary,
	}))
	require.NoError(t, store.AppendCheckpoint(ctx, model.Checkpoint{
		ID: "fresh", Timestamp: now, State: model.DrStateActivePrimary,
	}))

	pruned, err := store.PruneCheckpoints(ctx, 10, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	checkpoints, err := store.Checkpoints(ctx)
	require.NoError(t, err)
	require.Len(t, checkpoints, 1)
	assert.Equal(t, "fresh", checkpoints[0].ID)
}

func TestHeartbeat(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	assert.True(t, store.LastHeartbeat().IsZero())
	require.NoError(t, store.WriteHeartbeat(ctx))
	assert.False(t, store.LastHeartbeat().IsZero())
}
