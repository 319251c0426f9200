package dto

import (
	"time"

	"github.com/google/uuid"
)

// SubmitChunkRequest carries the metadata fields of one chunk submission.
// The chunk bytes travel in the request body, not here.
type SubmitChunkRequest struct {
	SessionId   *uuid.UUID `json:"session_id"` // absent on the first chunk, generated server-side
	ChunkIndex  int        `json:"chunk_index" validate:"min=0"`
	TotalChunks int        `json:"total_chunks" validate:"required,min=1"`
	TotalSize   int64      `json:"total_size" validate:"required,min=1"`
	Filename    string     `json:"filename" validate:"required,max=255"`
}

type SubmitChunkResponse struct {
	SessionId     uuid.UUID `json:"session_id"`
	AcceptedIndex int       `json:"accepted_index"`
}

type FinalizeResponse struct {
	SessionId uuid.UUID `json:"session_id"`
	TaskId    uuid.UUID `json:"task_id"`
}

type RetryResponse struct {
	SessionId uuid.UUID `json:"session_id"`
	TaskId    uuid.UUID `json:"task_id"`
}

// Public status names. Raw internal states never leak through this layer.
const (
	PublicStatusUploading  = "uploading"
	PublicStatusProcessing = "processing"
	PublicStatusStalled    = "stalled"
	PublicStatusFailed     = "failed"
	PublicStatusCompleted  = "completed"
)

type ProgressInfo struct {
	Percent      float64  `json:"percent"`
	Stage        string   `json:"stage,omitempty"`
	Message      string   `json:"message,omitempty"`
	EtaSeconds   *float64 `json:"eta_seconds,omitempty"`
	WorkerHealth string   `json:"worker_health,omitempty"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusResponse is the discriminated union returned by the status endpoint.
type StatusResponse struct {
	SessionId  uuid.UUID     `json:"session_id"`
	Status     string        `json:"status"`
	Progress   *ProgressInfo `json:"progress,omitempty"`
	Error      *ErrorInfo    `json:"error,omitempty"`
	ResultsRef string        `json:"results_ref,omitempty"`
}

type SessionSummary struct {
	SessionId  uuid.UUID  `json:"session_id"`
	Status     string     `json:"status"`
	Filenames  []string   `json:"filenames"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

type TopicResponse struct {
	Id      uuid.UUID `json:"id"`
	Title   string    `json:"title"`
	Summary string    `json:"summary"`
}

type FlashcardResponse struct {
	Id      uuid.UUID  `json:"id"`
	TopicId *uuid.UUID `json:"topic_id,omitempty"`
	Front   string     `json:"front"`
	Back    string     `json:"back"`
}

type ResultsResponse struct {
	SessionId  uuid.UUID           `json:"session_id"`
	Topics     []TopicResponse     `json:"topics"`
	Flashcards []FlashcardResponse `json:"flashcards"`
}

// CleanupMessage travels on the in-process cleanup bus.
type CleanupMessage struct {
	SessionId uuid.UUID `json:"session_id"`
}
