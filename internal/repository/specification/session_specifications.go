package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BySessionId filters dependent records (tasks, topics, flashcards) by session.
type BySessionId struct {
	SessionId uuid.UUID
}

func (s BySessionId) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("session_id = ?", s.SessionId)
}

// ByOwner filters sessions by owner; a nil owner matches anonymous sessions.
type ByOwner struct {
	OwnerId *uuid.UUID
}

func (s ByOwner) Apply(db *gorm.DB) *gorm.DB {
	if s.OwnerId == nil {
		return db.Where("owner_id IS NULL")
	}
	return db.Where("owner_id = ?", *s.OwnerId)
}

// ByStatus filters by the stored status column.
type ByStatus struct {
	Status string
}

func (s ByStatus) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", s.Status)
}

// OldestFirst orders sessions for eviction: a NULL last_used_at counts as
// older than any real timestamp.
type OldestFirst struct{}

func (s OldestFirst) Apply(db *gorm.DB) *gorm.DB {
	return db.Order("(last_used_at IS NULL) DESC, last_used_at ASC")
}
