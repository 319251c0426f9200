package model

import (
	"time"

	"github.com/google/uuid"
)

type Flashcard struct {
	Id        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId uuid.UUID  `gorm:"type:uuid;not null;index"`
	TopicId   *uuid.UUID `gorm:"type:uuid;index"`
	Front     string     `gorm:"type:text;not null"`
	Back      string     `gorm:"type:text;not null"`
	CreatedAt time.Time  `gorm:"autoCreateTime"`
}

func (Flashcard) TableName() string {
	return "flashcards"
}
