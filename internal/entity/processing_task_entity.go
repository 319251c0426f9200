package entity

import (
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskRunning TaskStatus = "running"
	TaskError   TaskStatus = "error"
	TaskDone    TaskStatus = "done"
)

// ProcessingTask records one dispatch attempt for a session. A session may
// accumulate several tasks across retries, but at most one may be running.
type ProcessingTask struct {
	Id        uuid.UUID
	SessionId uuid.UUID
	TaskType  string
	Status    TaskStatus
	Metadata  map[string]interface{}
	CreatedAt time.Time
	UpdatedAt *time.Time
}
