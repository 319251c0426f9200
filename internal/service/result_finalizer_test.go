package service

import (
	"context"
	"testing"
	"time"

	"ai-studykit-be/internal/cache"
	"ai-studykit-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecordSource struct {
	has bool
	err error
}

func (f *fakeRecordSource) HasRecords(ctx context.Context, sessionId uuid.UUID) (bool, error) {
	return f.has, f.err
}

func newTestFinalizer(store cache.StateStore, records *fakeRecordSource, now *time.Time) *ResultFinalizer {
	f := NewResultFinalizer(store, records, 2*time.Second, logger.NewNopLogger())
	f.now = func() time.Time { return *now }
	return f
}

func TestFirstObservationStartsSettleTimer(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStateStore(time.Minute)
	id := uuid.New()
	now := time.Now()

	f := newTestFinalizer(store, &fakeRecordSource{has: true}, &now)

	visible, err := f.IsVisible(ctx, id)
	require.NoError(t, err)
	assert.False(t, visible, "first observation must not be visible")

	snap, err := cache.NewEntry(store, id).Snapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap.CompletedSeenAt, "timer key should be recorded")
}

func TestVisibilityWaitsForSettleDelay(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStateStore(time.Minute)
	id := uuid.New()
	now := time.Now()

	f := newTestFinalizer(store, &fakeRecordSource{has: true}, &now)

	_, err := f.IsVisible(ctx, id)
	require.NoError(t, err)

	// One second later: still inside the settle window.
	now = now.Add(1 * time.Second)
	visible, err := f.IsVisible(ctx, id)
	require.NoError(t, err)
	assert.False(t, visible)

	// Past the window: visible, and the timer key is cleared.
	now = now.Add(2 * time.Second)
	visible, err = f.IsVisible(ctx, id)
	require.NoError(t, err)
	assert.True(t, visible)

	snap, err := cache.NewEntry(store, id).Snapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap.CompletedSeenAt)
}

func TestVisibilityRequiresDependentRecords(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStateStore(time.Minute)
	id := uuid.New()
	now := time.Now()

	records := &fakeRecordSource{has: false}
	f := newTestFinalizer(store, records, &now)

	_, err := f.IsVisible(ctx, id)
	require.NoError(t, err)

	now = now.Add(5 * time.Second)
	visible, err := f.IsVisible(ctx, id)
	require.NoError(t, err)
	assert.False(t, visible, "settle delay alone is not enough without rows")

	// Rows appear late; the next poll flips visibility.
	records.has = true
	visible, err = f.IsVisible(ctx, id)
	require.NoError(t, err)
	assert.True(t, visible)
}

func TestSettleTimerSurvivesAcrossPolls(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStateStore(time.Minute)
	id := uuid.New()
	now := time.Now()

	f := newTestFinalizer(store, &fakeRecordSource{has: true}, &now)

	_, err := f.IsVisible(ctx, id)
	require.NoError(t, err)
	first, err := cache.NewEntry(store, id).Snapshot(ctx)
	require.NoError(t, err)

	// Polling again must not restart the timer.
	now = now.Add(1 * time.Second)
	_, err = f.IsVisible(ctx, id)
	require.NoError(t, err)
	second, err := cache.NewEntry(store, id).Snapshot(ctx)
	require.NoError(t, err)

	assert.True(t, first.CompletedSeenAt.Equal(*second.CompletedSeenAt))
}
