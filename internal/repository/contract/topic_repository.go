package contract

import (
	"context"

	"ai-studykit-be/internal/entity"
	"ai-studykit-be/internal/repository/specification"

	"github.com/google/uuid"
)

type TopicRepository interface {
	CreateBulk(ctx context.Context, topics []*entity.Topic) error
	DeleteBySessionId(ctx context.Context, sessionId uuid.UUID) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Topic, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
