package service

import (
	"context"
	"encoding/json"
	"fmt"

	"ai-studykit-be/internal/cache"
	"ai-studykit-be/internal/dto"
	"ai-studykit-be/internal/entity"
	"ai-studykit-be/internal/pkg/logger"
	"ai-studykit-be/internal/repository/specification"
	"ai-studykit-be/internal/repository/unitofwork"
	"ai-studykit-be/pkg/events"
	pktNats "ai-studykit-be/pkg/nats"

	"github.com/google/uuid"
)

type IEvictionManager interface {
	// EnforceLimit deletes the oldest sessions of one owner bucket until at
	// most maxSessions remain. Returns how many sessions were evicted.
	EnforceLimit(ctx context.Context, ownerId *uuid.UUID, maxSessions int) (int, error)

	// DeleteCascade removes one session and everything hanging off it.
	DeleteCascade(ctx context.Context, session *entity.UploadSession) error
}

type evictionManager struct {
	uowFactory       unitofwork.RepositoryFactory
	store            cache.StateStore
	publisherService IPublisherService
	eventPublisher   *pktNats.Publisher
	log              logger.ILogger
}

func NewEvictionManager(
	uowFactory unitofwork.RepositoryFactory,
	store cache.StateStore,
	publisherService IPublisherService,
	eventPublisher *pktNats.Publisher,
	log logger.ILogger,
) IEvictionManager {
	return &evictionManager{
		uowFactory:       uowFactory,
		store:            store,
		publisherService: publisherService,
		eventPublisher:   eventPublisher,
		log:              log,
	}
}

func (m *evictionManager) EnforceLimit(ctx context.Context, ownerId *uuid.UUID, maxSessions int) (int, error) {
	uow := m.uowFactory.NewUnitOfWork(ctx)

	sessions, err := uow.UploadSessionRepository().FindAll(ctx,
		specification.ByOwner{OwnerId: ownerId},
		specification.OldestFirst{},
	)
	if err != nil {
		return 0, fmt.Errorf("list sessions for eviction: %w", err)
	}

	overflow := len(sessions) - maxSessions
	if overflow <= 0 {
		return 0, nil
	}

	evicted := 0
	for _, session := range sessions[:overflow] {
		if err := m.DeleteCascade(ctx, session); err != nil {
			// One stuck session must not block the owner's uploads.
			m.log.Error("eviction", "cascade delete failed, continuing", map[string]interface{}{
				"session_id": session.Id,
				"error":      err.Error(),
			})
			continue
		}
		evicted++

		if m.eventPublisher != nil {
			evt := events.NewSessionEvicted(session.Id, session.OwnerId)
			if err := m.eventPublisher.Publish(ctx, evt); err != nil {
				m.log.Warn("eviction", "failed to publish eviction event", map[string]interface{}{
					"session_id": session.Id,
					"error":      err.Error(),
				})
			}
		}
	}

	m.log.Info("eviction", "owner over session limit, evicted oldest", map[string]interface{}{
		"evicted": evicted,
		"limit":   maxSessions,
	})
	return evicted, nil
}

func (m *evictionManager) DeleteCascade(ctx context.Context, session *entity.UploadSession) error {
	uow := m.uowFactory.NewUnitOfWork(ctx)

	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("begin cascade delete: %w", err)
	}
	defer uow.Rollback()

	if err := uow.FlashcardRepository().DeleteBySessionId(ctx, session.Id); err != nil {
		return fmt.Errorf("delete flashcards: %w", err)
	}
	if err := uow.TopicRepository().DeleteBySessionId(ctx, session.Id); err != nil {
		return fmt.Errorf("delete topics: %w", err)
	}
	if err := uow.ProcessingTaskRepository().DeleteBySessionId(ctx, session.Id); err != nil {
		return fmt.Errorf("delete tasks: %w", err)
	}
	if err := uow.UploadSessionRepository().Delete(ctx, session.Id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("commit cascade delete: %w", err)
	}

	// Best effort past this point. The durable rows are gone; leaked cache
	// keys expire by TTL and leaked files fall to the janitor sweep.
	if err := m.store.ResetSession(ctx, session.Id); err != nil {
		m.log.Warn("eviction", "failed to reset cache state", map[string]interface{}{
			"session_id": session.Id,
			"error":      err.Error(),
		})
	}

	payload, _ := json.Marshal(dto.CleanupMessage{SessionId: session.Id})
	if err := m.publisherService.Publish(ctx, payload); err != nil {
		m.log.Warn("eviction", "failed to publish file cleanup message", map[string]interface{}{
			"session_id": session.Id,
			"error":      err.Error(),
		})
	}

	return nil
}
