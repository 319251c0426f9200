package events

import (
	"time"

	"github.com/google/uuid"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "SESSION_COMPLETED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

const (
	TypeSessionCompleted = "SESSION_COMPLETED"
	TypeSessionFailed    = "SESSION_FAILED"
	TypeSessionEvicted   = "SESSION_EVICTED"
)

func NewSessionCompleted(sessionId uuid.UUID, ownerId *uuid.UUID) BaseEvent {
	return BaseEvent{
		Type: TypeSessionCompleted,
		Data: map[string]interface{}{
			"session_id": sessionId,
			"owner_id":   ownerId,
		},
		OccurredAt: time.Now(),
	}
}

func NewSessionFailed(sessionId uuid.UUID, ownerId *uuid.UUID, reason string) BaseEvent {
	return BaseEvent{
		Type: TypeSessionFailed,
		Data: map[string]interface{}{
			"session_id": sessionId,
			"owner_id":   ownerId,
			"reason":     reason,
		},
		OccurredAt: time.Now(),
	}
}

func NewSessionEvicted(sessionId uuid.UUID, ownerId *uuid.UUID) BaseEvent {
	return BaseEvent{
		Type: TypeSessionEvicted,
		Data: map[string]interface{}{
			"session_id": sessionId,
			"owner_id":   ownerId,
		},
		OccurredAt: time.Now(),
	}
}
