package service

import (
	"context"
	"time"

	"ai-studykit-be/internal/cache"
	"ai-studykit-be/internal/dispatch"
	"ai-studykit-be/internal/entity"
	"ai-studykit-be/internal/pkg/logger"
	"ai-studykit-be/internal/repository/specification"
	"ai-studykit-be/internal/repository/unitofwork"
	"ai-studykit-be/pkg/events"
	"ai-studykit-be/pkg/extract"
	"ai-studykit-be/pkg/generation"
	pktNats "ai-studykit-be/pkg/nats"

	"github.com/google/uuid"
)

const (
	errCodeContentUnreadable = "content_unreadable"
	errCodeGenerationFailed  = "generation_failed"
)

// IWorkerService executes one dispatched study-kit job. The worker writes
// its liveness and outcome to the cache and its results to the derived
// tables; the durable session row belongs to the API side alone.
type IWorkerService interface {
	HandleTask(ctx context.Context, payload dispatch.TaskPayload) error
}

type workerService struct {
	uowFactory        unitofwork.RepositoryFactory
	store             cache.StateStore
	extractor         extract.Extractor
	generator         generation.Generator
	eventPublisher    *pktNats.Publisher
	heartbeatInterval time.Duration
	lockTTL           time.Duration
	log               logger.ILogger
}

func NewWorkerService(
	uowFactory unitofwork.RepositoryFactory,
	store cache.StateStore,
	extractor extract.Extractor,
	generator generation.Generator,
	eventPublisher *pktNats.Publisher,
	heartbeatInterval time.Duration,
	lockTTL time.Duration,
	log logger.ILogger,
) IWorkerService {
	return &workerService{
		uowFactory:        uowFactory,
		store:             store,
		extractor:         extractor,
		generator:         generator,
		eventPublisher:    eventPublisher,
		heartbeatInterval: heartbeatInterval,
		lockTTL:           lockTTL,
		log:               log,
	}
}

// HandleTask returns nil to acknowledge and a non-nil error to request
// redelivery. Terminal failures (bad content, generation errors) are
// acknowledged after marking the session failed; only transient persistence
// problems ask the broker to try again.
func (w *workerService) HandleTask(ctx context.Context, payload dispatch.TaskPayload) error {
	acquired, err := w.store.AcquireLock(ctx, payload.SessionId, w.lockTTL)
	if err != nil {
		return err
	}
	if !acquired {
		// Redelivery raced a live worker; the lock makes this a no-op.
		w.log.Info("worker", "session already locked, dropping duplicate delivery", map[string]interface{}{
			"session_id": payload.SessionId,
			"task_id":    payload.TaskId,
		})
		return nil
	}
	defer func() {
		if err := w.store.ReleaseLock(context.Background(), payload.SessionId); err != nil {
			w.log.Warn("worker", "failed to release session lock", map[string]interface{}{
				"session_id": payload.SessionId,
				"error":      err.Error(),
			})
		}
	}()

	entry := cache.NewEntry(w.store, payload.SessionId)
	w.markTaskStatus(ctx, payload.TaskId, entity.TaskRunning, nil)
	w.stage(ctx, entry, "extracting", 5)

	stopHeartbeat := w.startHeartbeat(payload.SessionId)
	defer stopHeartbeat()

	text, err := w.extractor.Extract(ctx, payload.ContentRef)
	if err != nil {
		return w.fail(ctx, entry, payload, errCodeContentUnreadable, "could not read the uploaded document", err)
	}

	w.stage(ctx, entry, "generating", 30)
	kit, err := w.generator.GenerateStudyKit(ctx, text, payload.Language)
	if err != nil {
		return w.fail(ctx, entry, payload, errCodeGenerationFailed, "study kit generation failed", err)
	}

	w.stage(ctx, entry, "saving", 80)
	if err := w.persistStudyKit(ctx, payload, kit); err != nil {
		// DB trouble is transient from the worker's view; let the broker
		// redeliver once the lock is released.
		w.log.Error("worker", "failed to persist study kit, requesting redelivery", map[string]interface{}{
			"session_id": payload.SessionId,
			"task_id":    payload.TaskId,
			"error":      err.Error(),
		})
		return err
	}

	// Terminal cache status only after the derived rows are committed, so a
	// reader that sees completed knows the data exists.
	w.stage(ctx, entry, "done", 100)
	if err := entry.SetStatus(ctx, "completed"); err != nil {
		w.log.Error("worker", "failed to announce completion", map[string]interface{}{
			"session_id": payload.SessionId,
			"error":      err.Error(),
		})
	}

	if w.eventPublisher != nil {
		evt := events.NewSessionCompleted(payload.SessionId, payload.OwnerId)
		if err := w.eventPublisher.Publish(ctx, evt); err != nil {
			w.log.Warn("worker", "failed to publish completion event", map[string]interface{}{
				"session_id": payload.SessionId,
				"error":      err.Error(),
			})
		}
	}

	w.log.Info("worker", "study kit generated", map[string]interface{}{
		"session_id": payload.SessionId,
		"topics":     len(kit.Topics),
		"flashcards": len(kit.Flashcards),
	})
	return nil
}

// persistStudyKit writes topics and flashcards in one transaction, replacing
// any rows from an earlier partial attempt so redelivery stays idempotent.
func (w *workerService) persistStudyKit(ctx context.Context, payload dispatch.TaskPayload, kit *generation.StudyKit) error {
	uow := w.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.FlashcardRepository().DeleteBySessionId(ctx, payload.SessionId); err != nil {
		return err
	}
	if err := uow.TopicRepository().DeleteBySessionId(ctx, payload.SessionId); err != nil {
		return err
	}

	now := time.Now()
	topics := make([]*entity.Topic, 0, len(kit.Topics))
	for i, draft := range kit.Topics {
		topics = append(topics, &entity.Topic{
			Id:        uuid.New(),
			SessionId: payload.SessionId,
			Title:     draft.Title,
			Summary:   draft.Summary,
			Position:  i,
			CreatedAt: now,
		})
	}
	if err := uow.TopicRepository().CreateBulk(ctx, topics); err != nil {
		return err
	}

	flashcards := make([]*entity.Flashcard, 0, len(kit.Flashcards))
	for _, draft := range kit.Flashcards {
		var topicId *uuid.UUID
		if draft.TopicIndex >= 0 && draft.TopicIndex < len(topics) {
			topicId = &topics[draft.TopicIndex].Id
		}
		flashcards = append(flashcards, &entity.Flashcard{
			Id:        uuid.New(),
			SessionId: payload.SessionId,
			TopicId:   topicId,
			Front:     draft.Front,
			Back:      draft.Back,
			CreatedAt: now,
		})
	}
	if len(flashcards) > 0 {
		if err := uow.FlashcardRepository().CreateBulk(ctx, flashcards); err != nil {
			return err
		}
	}

	task, err := uow.ProcessingTaskRepository().FindOne(ctx, specification.ByID{ID: payload.TaskId})
	if err != nil {
		return err
	}
	if task != nil {
		task.Status = entity.TaskDone
		if err := uow.ProcessingTaskRepository().Update(ctx, task); err != nil {
			return err
		}
	}

	return uow.Commit()
}

// fail marks the session failed in the cache and acknowledges the message.
// The user decides whether to retry; the broker must not.
func (w *workerService) fail(ctx context.Context, entry cache.Entry, payload dispatch.TaskPayload, code, message string, cause error) error {
	w.log.Error("worker", message, map[string]interface{}{
		"session_id": payload.SessionId,
		"task_id":    payload.TaskId,
		"code":       code,
		"error":      cause.Error(),
	})

	if err := entry.SetError(ctx, cache.WorkerError{Code: code, Message: message}); err != nil {
		w.log.Warn("worker", "failed to cache worker error", map[string]interface{}{
			"session_id": payload.SessionId,
			"error":      err.Error(),
		})
	}
	if err := entry.SetStatus(ctx, "failed"); err != nil {
		w.log.Warn("worker", "failed to cache failed status", map[string]interface{}{
			"session_id": payload.SessionId,
			"error":      err.Error(),
		})
	}

	w.markTaskStatus(ctx, payload.TaskId, entity.TaskError, map[string]interface{}{
		"code":  code,
		"cause": cause.Error(),
	})

	if w.eventPublisher != nil {
		evt := events.NewSessionFailed(payload.SessionId, payload.OwnerId, code)
		if err := w.eventPublisher.Publish(ctx, evt); err != nil {
			w.log.Warn("worker", "failed to publish failure event", map[string]interface{}{
				"session_id": payload.SessionId,
				"error":      err.Error(),
			})
		}
	}
	return nil
}

func (w *workerService) markTaskStatus(ctx context.Context, taskId uuid.UUID, status entity.TaskStatus, metadata map[string]interface{}) {
	uow := w.uowFactory.NewUnitOfWork(ctx)
	task, err := uow.ProcessingTaskRepository().FindOne(ctx, specification.ByID{ID: taskId})
	if err != nil || task == nil {
		w.log.Warn("worker", "could not load task record", map[string]interface{}{
			"task_id": taskId,
		})
		return
	}
	task.Status = status
	if metadata != nil {
		task.Metadata = metadata
	}
	if err := uow.ProcessingTaskRepository().Update(ctx, task); err != nil {
		w.log.Warn("worker", "could not update task record", map[string]interface{}{
			"task_id": taskId,
			"error":   err.Error(),
		})
	}
}

func (w *workerService) stage(ctx context.Context, entry cache.Entry, stage string, percent float64) {
	if err := entry.SetStatus(ctx, "processing"); err != nil {
		return
	}
	_ = entry.SetStage(ctx, stage)
	_ = entry.SetProgress(ctx, percent)
	_ = entry.SetHeartbeat(ctx, time.Now())
}

// startHeartbeat refreshes the liveness key until the returned stop function
// is called. It uses a background context so a cancelled task context cannot
// silence the final beats.
func (w *workerService) startHeartbeat(sessionId uuid.UUID) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(w.heartbeatInterval)
		defer ticker.Stop()
		entry := cache.NewEntry(w.store, sessionId)
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := entry.SetHeartbeat(context.Background(), time.Now()); err != nil {
					w.log.Warn("worker", "heartbeat write failed", map[string]interface{}{
						"session_id": sessionId,
						"error":      err.Error(),
					})
				}
			}
		}
	}()
	return func() { close(done) }
}
