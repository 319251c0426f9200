package mapper

import (
	"encoding/json"
	"time"

	"ai-studykit-be/internal/entity"
	"ai-studykit-be/internal/model"

	"gorm.io/datatypes"
)

type UploadSessionMapper struct{}

func NewUploadSessionMapper() *UploadSessionMapper {
	return &UploadSessionMapper{}
}

func (m *UploadSessionMapper) ToEntity(s *model.UploadSession) *entity.UploadSession {
	if s == nil {
		return nil
	}

	var updatedAt *time.Time
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		updatedAt = &t
	}

	var filenames []string
	if len(s.SourceFilenames) > 0 {
		// Malformed JSON leaves the list empty rather than failing a read.
		_ = json.Unmarshal(s.SourceFilenames, &filenames)
	}

	return &entity.UploadSession{
		Id:              s.Id,
		OwnerId:         s.OwnerId,
		Status:          entity.SessionStatus(s.Status),
		SourceFilenames: filenames,
		TotalChunks:     s.TotalChunks,
		TotalSize:       s.TotalSize,
		ContentRef:      s.ContentRef,
		RetryCount:      s.RetryCount,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       updatedAt,
		LastUsedAt:      s.LastUsedAt,
	}
}

func (m *UploadSessionMapper) ToModel(s *entity.UploadSession) *model.UploadSession {
	if s == nil {
		return nil
	}

	var updatedAt time.Time
	if s.UpdatedAt != nil {
		updatedAt = *s.UpdatedAt
	}

	var filenames datatypes.JSON
	if s.SourceFilenames != nil {
		raw, err := json.Marshal(s.SourceFilenames)
		if err == nil {
			filenames = raw
		}
	}

	return &model.UploadSession{
		Id:              s.Id,
		OwnerId:         s.OwnerId,
		Status:          string(s.Status),
		SourceFilenames: filenames,
		TotalChunks:     s.TotalChunks,
		TotalSize:       s.TotalSize,
		ContentRef:      s.ContentRef,
		RetryCount:      s.RetryCount,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       updatedAt,
		LastUsedAt:      s.LastUsedAt,
	}
}

func (m *UploadSessionMapper) ToEntities(sessions []*model.UploadSession) []*entity.UploadSession {
	entities := make([]*entity.UploadSession, len(sessions))
	for i, s := range sessions {
		entities[i] = m.ToEntity(s)
	}
	return entities
}
