package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSetGetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore(time.Minute)
	id := uuid.New()

	_, found, err := store.Get(ctx, id, FieldStatus)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Set(ctx, id, FieldStatus, "processing"))

	v, found, err := store.Get(ctx, id, FieldStatus)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "processing", v)

	require.NoError(t, store.Delete(ctx, id, FieldStatus))
	_, found, _ = store.Get(ctx, id, FieldStatus)
	assert.False(t, found)
}

func TestMemoryStoreLockIsSetIfAbsent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore(time.Minute)
	id := uuid.New()

	ok, err := store.AcquireLock(ctx, id, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// A second holder must be refused while the first is alive.
	ok, err = store.AcquireLock(ctx, id, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	locked, err := store.IsLocked(ctx, id)
	require.NoError(t, err)
	assert.True(t, locked)

	require.NoError(t, store.ReleaseLock(ctx, id))

	ok, err = store.AcquireLock(ctx, id, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestResetSessionClearsEveryFieldAndTheLock(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore(time.Minute)
	id := uuid.New()

	for _, f := range Fields() {
		require.NoError(t, store.Set(ctx, id, f, "x"))
	}
	_, err := store.AcquireLock(ctx, id, time.Minute)
	require.NoError(t, err)

	require.NoError(t, store.ResetSession(ctx, id))

	for _, f := range Fields() {
		_, found, _ := store.Get(ctx, id, f)
		assert.False(t, found, "field %s should be gone", f)
	}
	locked, _ := store.IsLocked(ctx, id)
	assert.False(t, locked)
}

func TestEntrySnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore(time.Minute)
	id := uuid.New()
	entry := NewEntry(store, id)

	started := time.Now().Add(-30 * time.Second).Truncate(time.Millisecond)
	beat := time.Now().Truncate(time.Millisecond)

	require.NoError(t, entry.SetStatus(ctx, "processing"))
	require.NoError(t, entry.SetStage(ctx, "generating"))
	require.NoError(t, entry.SetProgress(ctx, 42.5))
	require.NoError(t, entry.SetChunksReceived(ctx, 7))
	require.NoError(t, entry.SetStartedAt(ctx, started))
	require.NoError(t, entry.SetHeartbeat(ctx, beat))
	require.NoError(t, entry.SetError(ctx, WorkerError{Code: "generation_failed", Message: "boom"}))

	snap, err := entry.Snapshot(ctx)
	require.NoError(t, err)

	assert.Equal(t, "processing", snap.Status)
	assert.Equal(t, "generating", snap.Stage)
	assert.Equal(t, 42.5, snap.ProgressPercent)
	assert.Equal(t, 7, snap.ChunksReceived)
	require.NotNil(t, snap.StartedAt)
	assert.True(t, snap.StartedAt.Equal(started))
	require.NotNil(t, snap.HeartbeatAt)
	assert.True(t, snap.HeartbeatAt.Equal(beat))
	require.NotNil(t, snap.Error)
	assert.Equal(t, "generation_failed", snap.Error.Code)
	assert.Nil(t, snap.CompletedSeenAt)
}

func TestEntrySnapshotOfEmptySession(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore(time.Minute)
	entry := NewEntry(store, uuid.New())

	snap, err := entry.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", snap.Status)
	assert.Nil(t, snap.HeartbeatAt)
	assert.Nil(t, snap.Error)
	assert.Zero(t, snap.ProgressPercent)
}

func TestClearCompletedSeenAt(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore(time.Minute)
	entry := NewEntry(store, uuid.New())

	require.NoError(t, entry.SetCompletedSeenAt(ctx, time.Now()))
	snap, err := entry.Snapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap.CompletedSeenAt)

	require.NoError(t, entry.ClearCompletedSeenAt(ctx))
	snap, err = entry.Snapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap.CompletedSeenAt)
}
