package entity

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionUploading  SessionStatus = "uploading"
	SessionQueued     SessionStatus = "queued"
	SessionProcessing SessionStatus = "processing"
	SessionCompleted  SessionStatus = "completed"
	SessionFailed     SessionStatus = "failed"
)

// UploadSession is the durable record of one document-processing request.
// Volatile progress lives in the cache layer, never here.
type UploadSession struct {
	Id              uuid.UUID
	OwnerId         *uuid.UUID // nil for anonymous sessions
	Status          SessionStatus
	SourceFilenames []string
	TotalChunks     int
	TotalSize       int64
	ContentRef      string // set once at finalize, survives retries
	RetryCount      int
	CreatedAt       time.Time
	UpdatedAt       *time.Time
	LastUsedAt      *time.Time // nil sorts as oldest for eviction
}

// CanTransition reports whether moving to next respects the state machine.
// stalled is derived on read and never stored, so it has no edge here.
func (s *UploadSession) CanTransition(next SessionStatus) bool {
	switch s.Status {
	case SessionUploading:
		return next == SessionQueued || next == SessionFailed
	case SessionQueued:
		return next == SessionProcessing || next == SessionFailed
	case SessionProcessing:
		return next == SessionCompleted || next == SessionFailed
	case SessionFailed:
		return next == SessionQueued
	default:
		return false
	}
}
