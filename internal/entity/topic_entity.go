package entity

import (
	"time"

	"github.com/google/uuid"
)

// Topic is a generated study topic derived from an uploaded document.
type Topic struct {
	Id        uuid.UUID
	SessionId uuid.UUID
	Title     string
	Summary   string
	Position  int
	CreatedAt time.Time
}
