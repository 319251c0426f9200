package contract

import (
	"context"

	"ai-studykit-be/internal/entity"
	"ai-studykit-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ProcessingTaskRepository interface {
	Create(ctx context.Context, task *entity.ProcessingTask) error
	Update(ctx context.Context, task *entity.ProcessingTask) error
	DeleteBySessionId(ctx context.Context, sessionId uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ProcessingTask, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ProcessingTask, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
