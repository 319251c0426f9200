package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Field is a typed cache key segment. ResetSession iterates Fields(), so a
// new volatile field only needs to be added to the list once to be covered
// by retry and delete flows.
type Field string

const (
	FieldStatus         Field = "status"
	FieldProgress       Field = "progress"
	FieldStage          Field = "stage"
	FieldHeartbeat      Field = "heartbeat"
	FieldStartedAt      Field = "started_at"
	FieldCompletedSeen  Field = "completed_seen_at"
	FieldError          Field = "error"
	FieldTaskHandle     Field = "task_handle"
	FieldChunksReceived Field = "chunks_received"
)

func Fields() []Field {
	return []Field{
		FieldStatus,
		FieldProgress,
		FieldStage,
		FieldHeartbeat,
		FieldStartedAt,
		FieldCompletedSeen,
		FieldError,
		FieldTaskHandle,
		FieldChunksReceived,
	}
}

// StateStore is the narrow contract for the volatile session state shared
// between the API process and the workers. Every field is independently
// settable; no read-modify-write cycles.
type StateStore interface {
	Set(ctx context.Context, sessionId uuid.UUID, field Field, value string) error
	Get(ctx context.Context, sessionId uuid.UUID, field Field) (string, bool, error)
	Delete(ctx context.Context, sessionId uuid.UUID, fields ...Field) error

	// ResetSession removes every known field and the session lock.
	ResetSession(ctx context.Context, sessionId uuid.UUID) error

	// AcquireLock is set-if-not-exists with a TTL; it returns false when
	// another holder is alive.
	AcquireLock(ctx context.Context, sessionId uuid.UUID, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, sessionId uuid.UUID) error
	IsLocked(ctx context.Context, sessionId uuid.UUID) (bool, error)
}

// WorkerError is the structured error payload a worker leaves in the cache.
type WorkerError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Snapshot is one consistent-enough read of the volatile fields.
type Snapshot struct {
	Status          string
	ProgressPercent float64
	Stage           string
	HeartbeatAt     *time.Time
	StartedAt       *time.Time
	CompletedSeenAt *time.Time
	Error           *WorkerError
	TaskHandle      string
	ChunksReceived  int
}

// Entry binds a StateStore to one session so callers work with typed values
// instead of raw strings.
type Entry struct {
	store     StateStore
	sessionId uuid.UUID
}

func NewEntry(store StateStore, sessionId uuid.UUID) Entry {
	return Entry{store: store, sessionId: sessionId}
}

func (e Entry) SetStatus(ctx context.Context, status string) error {
	return e.store.Set(ctx, e.sessionId, FieldStatus, status)
}

func (e Entry) SetStage(ctx context.Context, stage string) error {
	return e.store.Set(ctx, e.sessionId, FieldStage, stage)
}

func (e Entry) SetProgress(ctx context.Context, percent float64) error {
	return e.store.Set(ctx, e.sessionId, FieldProgress, strconv.FormatFloat(percent, 'f', 2, 64))
}

func (e Entry) SetChunksReceived(ctx context.Context, count int) error {
	return e.store.Set(ctx, e.sessionId, FieldChunksReceived, strconv.Itoa(count))
}

func (e Entry) SetHeartbeat(ctx context.Context, at time.Time) error {
	return e.store.Set(ctx, e.sessionId, FieldHeartbeat, at.Format(time.RFC3339Nano))
}

func (e Entry) SetStartedAt(ctx context.Context, at time.Time) error {
	return e.store.Set(ctx, e.sessionId, FieldStartedAt, at.Format(time.RFC3339Nano))
}

func (e Entry) SetCompletedSeenAt(ctx context.Context, at time.Time) error {
	return e.store.Set(ctx, e.sessionId, FieldCompletedSeen, at.Format(time.RFC3339Nano))
}

func (e Entry) ClearCompletedSeenAt(ctx context.Context) error {
	return e.store.Delete(ctx, e.sessionId, FieldCompletedSeen)
}

func (e Entry) SetTaskHandle(ctx context.Context, handle string) error {
	return e.store.Set(ctx, e.sessionId, FieldTaskHandle, handle)
}

func (e Entry) SetError(ctx context.Context, werr WorkerError) error {
	raw, err := json.Marshal(werr)
	if err != nil {
		return err
	}
	return e.store.Set(ctx, e.sessionId, FieldError, string(raw))
}

func (e Entry) Reset(ctx context.Context) error {
	return e.store.ResetSession(ctx, e.sessionId)
}

// Snapshot reads every field once. Unparseable values are skipped instead of
// failing the whole read, because a worker on a newer version may write
// fields this process does not understand yet.
func (e Entry) Snapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}

	if v, ok, err := e.store.Get(ctx, e.sessionId, FieldStatus); err != nil {
		return nil, err
	} else if ok {
		snap.Status = v
	}
	if v, ok, _ := e.store.Get(ctx, e.sessionId, FieldStage); ok {
		snap.Stage = v
	}
	if v, ok, _ := e.store.Get(ctx, e.sessionId, FieldProgress); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			snap.ProgressPercent = f
		}
	}
	if v, ok, _ := e.store.Get(ctx, e.sessionId, FieldChunksReceived); ok {
		if n, err := strconv.Atoi(v); err == nil {
			snap.ChunksReceived = n
		}
	}
	snap.HeartbeatAt = e.readTime(ctx, FieldHeartbeat)
	snap.StartedAt = e.readTime(ctx, FieldStartedAt)
	snap.CompletedSeenAt = e.readTime(ctx, FieldCompletedSeen)
	if v, ok, _ := e.store.Get(ctx, e.sessionId, FieldTaskHandle); ok {
		snap.TaskHandle = v
	}
	if v, ok, _ := e.store.Get(ctx, e.sessionId, FieldError); ok {
		var werr WorkerError
		if err := json.Unmarshal([]byte(v), &werr); err == nil {
			snap.Error = &werr
		}
	}

	return snap, nil
}

func (e Entry) readTime(ctx context.Context, field Field) *time.Time {
	v, ok, _ := e.store.Get(ctx, e.sessionId, field)
	if !ok {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return nil
	}
	return &t
}
