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

type UploadSessionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.UploadSessionMapper
}

func NewUploadSessionRepository(db *gorm.DB) contract.UploadSessionRepository {
	return &UploadSessionRepositoryImpl{
		db:     db,
		mapper: mapper.NewUploadSessionMapper(),
	}
}

func (r *UploadSessionRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *UploadSessionRepositoryImpl) Create(ctx context.Context, session *entity.UploadSession) error {
	m := r.mapper.ToModel(session)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*session = *r.mapper.ToEntity(m)
	return nil
}

func (r *UploadSessionRepositoryImpl) Update(ctx context.Context, session *entity.UploadSession) error {
	m := r.mapper.ToModel(session)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*session = *r.mapper.ToEntity(m)
	return nil
}

func (r *UploadSessionRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.UploadSession{}, id).Error
}

func (r *UploadSessionRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.UploadSession, error) {
	var m model.UploadSession
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *UploadSessionRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.UploadSession, error) {
	var models []*model.UploadSession
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *UploadSessionRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.UploadSession{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
