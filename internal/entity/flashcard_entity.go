package entity

import (
	"time"

	"github.com/google/uuid"
)

// Flashcard is a generated question/answer pair tied to a session's topics.
type Flashcard struct {
	Id        uuid.UUID
	SessionId uuid.UUID
	TopicId   *uuid.UUID
	Front     string
	Back      string
	CreatedAt time.Time
}
