package mapper

import (
	"encoding/json"
	"time"

	"ai-studykit-be/internal/entity"
	"ai-studykit-be/internal/model"

	"gorm.io/datatypes"
)

type ProcessingTaskMapper struct{}

func NewProcessingTaskMapper() *ProcessingTaskMapper {
	return &ProcessingTaskMapper{}
}

func (m *ProcessingTaskMapper) ToEntity(t *model.ProcessingTask) *entity.ProcessingTask {
	if t == nil {
		return nil
	}

	var updatedAt *time.Time
	if !t.UpdatedAt.IsZero() {
		u := t.UpdatedAt
		updatedAt = &u
	}

	var metadata map[string]interface{}
	if len(t.Metadata) > 0 {
		_ = json.Unmarshal(t.Metadata, &metadata)
	}

	return &entity.ProcessingTask{
		Id:        t.Id,
		SessionId: t.SessionId,
		TaskType:  t.TaskType,
		Status:    entity.TaskStatus(t.Status),
		Metadata:  metadata,
		CreatedAt: t.CreatedAt,
		UpdatedAt: updatedAt,
	}
}

func (m *ProcessingTaskMapper) ToModel(t *entity.ProcessingTask) *model.ProcessingTask {
	if t == nil {
		return nil
	}

	var updatedAt time.Time
	if t.UpdatedAt != nil {
		updatedAt = *t.UpdatedAt
	}

	var metadata datatypes.JSON
	if t.Metadata != nil {
		raw, err := json.Marshal(t.Metadata)
		if err == nil {
			metadata = raw
		}
	}

	return &model.ProcessingTask{
		Id:        t.Id,
		SessionId: t.SessionId,
		TaskType:  t.TaskType,
		Status:    string(t.Status),
		Metadata:  metadata,
		CreatedAt: t.CreatedAt,
		UpdatedAt: updatedAt,
	}
}

func (m *ProcessingTaskMapper) ToEntities(tasks []*model.ProcessingTask) []*entity.ProcessingTask {
	entities := make([]*entity.ProcessingTask, len(tasks))
	for i, t := range tasks {
		entities[i] = m.ToEntity(t)
	}
	return entities
}
