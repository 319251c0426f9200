package service

import (
	"time"

	"ai-studykit-be/internal/cache"
)

type WorkerHealth string

const (
	HealthHealthy  WorkerHealth = "healthy"
	HealthDegraded WorkerHealth = "degraded"
	HealthStalled  WorkerHealth = "stalled"
)

const healthyWindow = 60 * time.Second

// Progress is a derived view over the cache snapshot. Nothing here is
// persisted; it is recomputed on every read.
type Progress struct {
	Percent float64
	Stage   string
	Eta     *time.Duration
	Health  WorkerHealth
}

// ProgressTracker is a pure computation over cache/store state so it can be
// unit-tested without a live broker or worker.
type ProgressTracker struct {
	stalledThreshold time.Duration
	now              func() time.Time
}

func NewProgressTracker(stalledThreshold time.Duration) *ProgressTracker {
	return &ProgressTracker{
		stalledThreshold: stalledThreshold,
		now:              time.Now,
	}
}

// UploadPercent is chunk arrival progress, not byte progress.
func (t *ProgressTracker) UploadPercent(received, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(received) / float64(total) * 100
}

// Health classifies worker liveness by heartbeat age. A missing heartbeat
// counts as stalled; callers only ask while the worker should be alive.
func (t *ProgressTracker) Health(heartbeatAt *time.Time) WorkerHealth {
	if heartbeatAt == nil {
		return HealthStalled
	}
	age := t.now().Sub(*heartbeatAt)
	switch {
	case age < healthyWindow:
		return HealthHealthy
	case age < t.stalledThreshold:
		return HealthDegraded
	default:
		return HealthStalled
	}
}

// Eta extrapolates linearly from elapsed time and percent complete. Workers
// may re-estimate, so percent is not guaranteed monotonic; the estimate is
// advisory. Undefined while percent is zero.
func (t *ProgressTracker) Eta(startedAt *time.Time, percent float64) *time.Duration {
	if startedAt == nil || percent <= 0 {
		return nil
	}
	if percent >= 100 {
		zero := time.Duration(0)
		return &zero
	}
	elapsed := t.now().Sub(*startedAt)
	if elapsed <= 0 {
		return nil
	}
	eta := time.Duration(float64(elapsed) * (100 - percent) / percent)
	return &eta
}

// FromSnapshot assembles the processing-phase progress view.
func (t *ProgressTracker) FromSnapshot(snap *cache.Snapshot) Progress {
	hb := snap.HeartbeatAt
	if hb == nil {
		// Before the first heartbeat, dispatch time stands in so a freshly
		// queued session is not misread as stalled.
		hb = snap.StartedAt
	}
	return Progress{
		Percent: snap.ProgressPercent,
		Stage:   snap.Stage,
		Eta:     t.Eta(snap.StartedAt, snap.ProgressPercent),
		Health:  t.Health(hb),
	}
}

// IsStalled reports the derived stalled classification: still nominally
// processing in the cache but silent past the threshold.
func (t *ProgressTracker) IsStalled(snap *cache.Snapshot) bool {
	if snap.Status != "processing" {
		return false
	}
	hb := snap.HeartbeatAt
	if hb == nil {
		hb = snap.StartedAt
	}
	if hb == nil {
		return false
	}
	return t.now().Sub(*hb) >= t.stalledThreshold
}
