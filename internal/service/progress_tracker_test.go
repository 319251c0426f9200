package service

import (
	"testing"
	"time"

	"ai-studykit-be/internal/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(now time.Time) *ProgressTracker {
	tracker := NewProgressTracker(5 * time.Minute)
	tracker.now = func() time.Time { return now }
	return tracker
}

func TestUploadPercent(t *testing.T) {
	tracker := newTestTracker(time.Now())

	tests := []struct {
		name     string
		received int
		total    int
		want     float64
	}{
		{"empty", 0, 4, 0},
		{"half", 2, 4, 50},
		{"all", 4, 4, 100},
		{"zero total is not a division", 3, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tracker.UploadPercent(tt.received, tt.total))
		})
	}
}

func TestHealthClassification(t *testing.T) {
	now := time.Now()
	tracker := newTestTracker(now)

	fresh := now.Add(-10 * time.Second)
	aging := now.Add(-2 * time.Minute)
	dead := now.Add(-6 * time.Minute)

	tests := []struct {
		name string
		beat *time.Time
		want WorkerHealth
	}{
		{"recent heartbeat", &fresh, HealthHealthy},
		{"aging heartbeat", &aging, HealthDegraded},
		{"past threshold", &dead, HealthStalled},
		{"no heartbeat at all", nil, HealthStalled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tracker.Health(tt.beat))
		})
	}
}

func TestEtaExtrapolation(t *testing.T) {
	now := time.Now()
	tracker := newTestTracker(now)

	t.Run("no start time", func(t *testing.T) {
		assert.Nil(t, tracker.Eta(nil, 50))
	})

	t.Run("zero percent is undefined", func(t *testing.T) {
		started := now.Add(-time.Minute)
		assert.Nil(t, tracker.Eta(&started, 0))
	})

	t.Run("quarter done after one minute", func(t *testing.T) {
		started := now.Add(-time.Minute)
		eta := tracker.Eta(&started, 25)
		require.NotNil(t, eta)
		assert.Equal(t, 3*time.Minute, *eta)
	})

	t.Run("finished", func(t *testing.T) {
		started := now.Add(-time.Minute)
		eta := tracker.Eta(&started, 100)
		require.NotNil(t, eta)
		assert.Equal(t, time.Duration(0), *eta)
	})
}

func TestIsStalled(t *testing.T) {
	now := time.Now()
	tracker := newTestTracker(now)

	silent := now.Add(-10 * time.Minute)
	alive := now.Add(-10 * time.Second)

	tests := []struct {
		name string
		snap *cache.Snapshot
		want bool
	}{
		{"silent processing session", &cache.Snapshot{Status: "processing", HeartbeatAt: &silent}, true},
		{"live processing session", &cache.Snapshot{Status: "processing", HeartbeatAt: &alive}, false},
		{"queued sessions never stall", &cache.Snapshot{Status: "queued", HeartbeatAt: &silent}, false},
		{"failed sessions never stall", &cache.Snapshot{Status: "failed", HeartbeatAt: &silent}, false},
		{"dispatch time stands in for the first beat", &cache.Snapshot{Status: "processing", StartedAt: &silent}, true},
		{"no timestamps at all", &cache.Snapshot{Status: "processing"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tracker.IsStalled(tt.snap))
		})
	}
}

func TestFromSnapshotFallsBackToStartedAt(t *testing.T) {
	now := time.Now()
	tracker := newTestTracker(now)

	started := now.Add(-5 * time.Second)
	progress := tracker.FromSnapshot(&cache.Snapshot{
		Status:          "processing",
		Stage:           "generating",
		ProgressPercent: 30,
		StartedAt:       &started,
	})

	assert.Equal(t, 30.0, progress.Percent)
	assert.Equal(t, "generating", progress.Stage)
	// A freshly dispatched task without a heartbeat is healthy, not stalled.
	assert.Equal(t, HealthHealthy, progress.Health)
	require.NotNil(t, progress.Eta)
}
