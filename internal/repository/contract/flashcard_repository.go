package contract

import (
	"context"

	"ai-studykit-be/internal/entity"
	"ai-studykit-be/internal/repository/specification"

	"github.com/google/uuid"
)

type FlashcardRepository interface {
	CreateBulk(ctx context.Context, cards []*entity.Flashcard) error
	DeleteBySessionId(ctx context.Context, sessionId uuid.UUID) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Flashcard, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
