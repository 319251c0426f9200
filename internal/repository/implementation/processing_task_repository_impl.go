package implementation

import (
	"context"
	"errors"

	"ai-studykit-be/internal/entity"
	"ai-studykit-be/internal/mapper"
	"ai-studykit-be/internal/model"
	"ai-studykit-be/internal/repository/contract"
	"ai-studykit-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProcessingTaskRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ProcessingTaskMapper
}

func NewProcessingTaskRepository(db *gorm.DB) contract.ProcessingTaskRepository {
	return &ProcessingTaskRepositoryImpl{
		db:     db,
		mapper: mapper.NewProcessingTaskMapper(),
	}
}

func (r *ProcessingTaskRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ProcessingTaskRepositoryImpl) Create(ctx context.Context, task *entity.ProcessingTask) error {
	m := r.mapper.ToModel(task)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*task = *r.mapper.ToEntity(m)
	return nil
}

func (r *ProcessingTaskRepositoryImpl) Update(ctx context.Context, task *entity.ProcessingTask) error {
	m := r.mapper.ToModel(task)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*task = *r.mapper.ToEntity(m)
	return nil
}

func (r *ProcessingTaskRepositoryImpl) DeleteBySessionId(ctx context.Context, sessionId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("session_id = ?", sessionId).Delete(&model.ProcessingTask{}).Error
}

func (r *ProcessingTaskRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ProcessingTask, error) {
	var m model.ProcessingTask
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *ProcessingTaskRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ProcessingTask, error) {
	var models []*model.ProcessingTask
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *ProcessingTaskRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.ProcessingTask{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
