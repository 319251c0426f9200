package contract

import (
	"context"

	"ai-studykit-be/internal/entity"
	"ai-studykit-be/internal/repository/specification"

	"github.com/google/uuid"
)

type UploadSessionRepository interface {
	Create(ctx context.Context, session *entity.UploadSession) error
	Update(ctx context.Context, session *entity.UploadSession) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.UploadSession, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.UploadSession, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
