package unitofwork

import (
	"context"

	"ai-studykit-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	UploadSessionRepository() contract.UploadSessionRepository
	ProcessingTaskRepository() contract.ProcessingTaskRepository
	TopicRepository() contract.TopicRepository
	FlashcardRepository() contract.FlashcardRepository
}
