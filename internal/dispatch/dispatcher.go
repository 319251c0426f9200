package dispatch

import (
	"context"

	"github.com/google/uuid"
)

// TaskPayload is the broker contract consumed by workers.
type TaskPayload struct {
	TaskId     uuid.UUID  `json:"task_id"`
	SessionId  uuid.UUID  `json:"session_id"`
	ContentRef string     `json:"content_ref"`
	OwnerId    *uuid.UUID `json:"owner_id,omitempty"`
	Language   string     `json:"language"`
}

// Handle correlates a submitted task with its broker message.
type Handle struct {
	TaskId  uuid.UUID
	Subject string
}

// Dispatcher hands a unit of work to the worker pool. Submission is
// effect-once from the caller's view; redelivery is absorbed by the
// session-keyed lock on the worker side.
type Dispatcher interface {
	Submit(ctx context.Context, taskType string, payload TaskPayload) (Handle, error)
}

// TaskHandler processes one delivered task. A non-nil error requests
// redelivery.
type TaskHandler func(ctx context.Context, payload TaskPayload) error
