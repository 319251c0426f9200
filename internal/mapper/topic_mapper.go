package mapper

import (
	"ai-studykit-be/internal/entity"
	"ai-studykit-be/internal/model"
)

type TopicMapper struct{}

func NewTopicMapper() *TopicMapper {
	return &TopicMapper{}
}

func (m *TopicMapper) ToEntity(t *model.Topic) *entity.Topic {
	if t == nil {
		return nil
	}
	return &entity.Topic{
		Id:        t.Id,
		SessionId: t.SessionId,
		Title:     t.Title,
		Summary:   t.Summary,
		Position:  t.Position,
		CreatedAt: t.CreatedAt,
	}
}

func (m *TopicMapper) ToModel(t *entity.Topic) *model.Topic {
	if t == nil {
		return nil
	}
	return &model.Topic{
		Id:        t.Id,
		SessionId: t.SessionId,
		Title:     t.Title,
		Summary:   t.Summary,
		Position:  t.Position,
		CreatedAt: t.CreatedAt,
	}
}

func (m *TopicMapper) ToEntities(topics []*model.Topic) []*entity.Topic {
	entities := make([]*entity.Topic, len(topics))
	for i, t := range topics {
		entities[i] = m.ToEntity(t)
	}
	return entities
}

func (m *TopicMapper) ToModels(topics []*entity.Topic) []*model.Topic {
	models := make([]*model.Topic, len(topics))
	for i, t := range topics {
		models[i] = m.ToModel(t)
	}
	return models
}
