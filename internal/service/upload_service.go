package service

import (
	"context"
	"fmt"
	"time"

	"ai-studykit-be/internal/apperr"
	"ai-studykit-be/internal/cache"
	"ai-studykit-be/internal/chunkstore"
	"ai-studykit-be/internal/config"
	"ai-studykit-be/internal/dispatch"
	"ai-studykit-be/internal/dto"
	"ai-studykit-be/internal/entity"
	"ai-studykit-be/internal/pkg/logger"
	"ai-studykit-be/internal/repository/specification"
	"ai-studykit-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

// TaskTypeStudyKit is the broker task type for document-to-studykit jobs.
const TaskTypeStudyKit = "studykit"

const (
	errCodeBrokerUnreachable = "broker_unreachable"
	errCodeStorage           = "storage_error"
)

// maxSourceFilenames bounds the filename list on a session.
const maxSourceFilenames = 5

type IUploadService interface {
	SubmitChunk(ctx context.Context, ownerId *uuid.UUID, request *dto.SubmitChunkRequest, data []byte) (*dto.SubmitChunkResponse, error)
	Finalize(ctx context.Context, ownerId *uuid.UUID, sessionId uuid.UUID) (*dto.FinalizeResponse, error)
	QueryStatus(ctx context.Context, ownerId *uuid.UUID, sessionId uuid.UUID) (*dto.StatusResponse, error)
	Retry(ctx context.Context, ownerId *uuid.UUID, sessionId uuid.UUID) (*dto.RetryResponse, error)
	Delete(ctx context.Context, ownerId *uuid.UUID, sessionId uuid.UUID) error
	List(ctx context.Context, ownerId *uuid.UUID) ([]*dto.SessionSummary, error)
	Results(ctx context.Context, ownerId *uuid.UUID, sessionId uuid.UUID) (*dto.ResultsResponse, error)
}

type uploadService struct {
	uowFactory unitofwork.RepositoryFactory
	chunks     *chunkstore.Store
	store      cache.StateStore
	dispatcher dispatch.Dispatcher
	tracker    *ProgressTracker
	finalizer  *ResultFinalizer
	eviction   IEvictionManager
	uploadCfg  config.UploadConfig
	language   string
	log        logger.ILogger
}

func NewUploadService(
	uowFactory unitofwork.RepositoryFactory,
	chunks *chunkstore.Store,
	store cache.StateStore,
	dispatcher dispatch.Dispatcher,
	tracker *ProgressTracker,
	finalizer *ResultFinalizer,
	eviction IEvictionManager,
	uploadCfg config.UploadConfig,
	language string,
	log logger.ILogger,
) IUploadService {
	return &uploadService{
		uowFactory: uowFactory,
		chunks:     chunks,
		store:      store,
		dispatcher: dispatcher,
		tracker:    tracker,
		finalizer:  finalizer,
		eviction:   eviction,
		uploadCfg:  uploadCfg,
		language:   language,
		log:        log,
	}
}

func (c *uploadService) SubmitChunk(ctx context.Context, ownerId *uuid.UUID, request *dto.SubmitChunkRequest, data []byte) (*dto.SubmitChunkResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	var session *entity.UploadSession
	if request.SessionId == nil {
		id := uuid.New()
		if err := c.chunks.Begin(id, request.TotalChunks, request.TotalSize); err != nil {
			return nil, err
		}

		now := time.Now()
		session = &entity.UploadSession{
			Id:              id,
			OwnerId:         ownerId,
			Status:          entity.SessionUploading,
			SourceFilenames: []string{request.Filename},
			TotalChunks:     request.TotalChunks,
			TotalSize:       request.TotalSize,
			CreatedAt:       now,
			LastUsedAt:      &now,
		}
		if err := uow.UploadSessionRepository().Create(ctx, session); err != nil {
			return nil, err
		}

		// The new session carries a fresh last_used_at, so the oldest-first
		// ordering never picks it as the victim.
		if _, err := c.eviction.EnforceLimit(ctx, ownerId, c.uploadCfg.MaxSessions); err != nil {
			c.log.Error("upload", "eviction failed, accepting chunk anyway", map[string]interface{}{
				"session_id": id,
				"error":      err.Error(),
			})
		}
	} else {
		var err error
		session, err = c.loadOwned(ctx, ownerId, *request.SessionId)
		if err != nil {
			return nil, err
		}
		if session.Status != entity.SessionUploading {
			return nil, apperr.New(apperr.KindConflict, fmt.Sprintf("session %s is %s, not accepting chunks", session.Id, session.Status))
		}
		if request.TotalChunks != session.TotalChunks {
			return nil, apperr.InvalidInput("total_chunks %d does not match the declared %d", request.TotalChunks, session.TotalChunks)
		}

		if !containsString(session.SourceFilenames, request.Filename) {
			if len(session.SourceFilenames) >= maxSourceFilenames {
				return nil, apperr.InvalidInput("a session may reference at most %d filenames", maxSourceFilenames)
			}
			session.SourceFilenames = append(session.SourceFilenames, request.Filename)
		}
		c.touch(session)
		if err := uow.UploadSessionRepository().Update(ctx, session); err != nil {
			return nil, err
		}
	}

	if err := c.chunks.PutChunk(session.Id, request.ChunkIndex, session.TotalChunks, data); err != nil {
		return nil, err
	}

	received, err := c.chunks.Received(session.Id)
	if err != nil {
		return nil, err
	}
	entry := cache.NewEntry(c.store, session.Id)
	if err := entry.SetChunksReceived(ctx, received); err != nil {
		c.log.Warn("upload", "failed to cache chunk count", map[string]interface{}{
			"session_id": session.Id,
			"error":      err.Error(),
		})
	}

	return &dto.SubmitChunkResponse{
		SessionId:     session.Id,
		AcceptedIndex: request.ChunkIndex,
	}, nil
}

func (c *uploadService) Finalize(ctx context.Context, ownerId *uuid.UUID, sessionId uuid.UUID) (*dto.FinalizeResponse, error) {
	session, err := c.loadOwned(ctx, ownerId, sessionId)
	if err != nil {
		return nil, err
	}
	if session.Status != entity.SessionUploading {
		return nil, apperr.New(apperr.KindConflict, fmt.Sprintf("session %s already finalized (%s)", sessionId, session.Status))
	}

	received, err := c.chunks.Received(sessionId)
	if err != nil {
		return nil, err
	}
	if received != session.TotalChunks {
		return nil, apperr.New(apperr.KindIncompleteUpload, fmt.Sprintf("received %d of %d chunks", received, session.TotalChunks))
	}

	blobPath, err := c.chunks.Assemble(sessionId, session.TotalChunks, session.TotalSize)
	if err != nil {
		// Incomplete uploads stay open; storage trouble is unrecoverable for
		// the staged bytes and must surface as a failed session.
		if apperr.KindOf(err) == apperr.KindStorage {
			c.failSession(ctx, session, errCodeStorage, "could not assemble the uploaded chunks")
		}
		return nil, err
	}

	uow := c.uowFactory.NewUnitOfWork(ctx)
	session.ContentRef = blobPath
	session.Status = entity.SessionQueued
	c.touch(session)
	if err := uow.UploadSessionRepository().Update(ctx, session); err != nil {
		// Assemble already reclaimed the staging directory, so the chunks are
		// gone. Failing the session with content_ref in hand keeps retry able
		// to re-dispatch without a re-upload.
		c.failSession(ctx, session, errCodeStorage, "could not persist the finalized session")
		return nil, apperr.Wrap(apperr.KindStorage, "persist finalized session", err)
	}

	taskId, err := c.dispatchTask(ctx, uow, session)
	if err != nil {
		return nil, err
	}

	return &dto.FinalizeResponse{SessionId: sessionId, TaskId: taskId}, nil
}

// dispatchTask records a pending task, hands it to the broker and primes the
// cache. On broker failure the session lands in failed so retry stays open.
func (c *uploadService) dispatchTask(ctx context.Context, uow unitofwork.UnitOfWork, session *entity.UploadSession) (uuid.UUID, error) {
	task := &entity.ProcessingTask{
		Id:        uuid.New(),
		SessionId: session.Id,
		TaskType:  TaskTypeStudyKit,
		Status:    entity.TaskPending,
		Metadata: map[string]interface{}{
			"content_ref": session.ContentRef,
		},
		CreatedAt: time.Now(),
	}
	if err := uow.ProcessingTaskRepository().Create(ctx, task); err != nil {
		return uuid.Nil, err
	}

	entry := cache.NewEntry(c.store, session.Id)
	now := time.Now()
	if err := entry.SetStatus(ctx, "queued"); err != nil {
		return uuid.Nil, err
	}
	if err := entry.SetStartedAt(ctx, now); err != nil {
		c.log.Warn("upload", "failed to cache dispatch time", map[string]interface{}{
			"session_id": session.Id,
			"error":      err.Error(),
		})
	}

	handle, err := c.dispatcher.Submit(ctx, TaskTypeStudyKit, dispatch.TaskPayload{
		TaskId:     task.Id,
		SessionId:  session.Id,
		ContentRef: session.ContentRef,
		OwnerId:    session.OwnerId,
		Language:   c.language,
	})
	if err != nil {
		c.failSession(ctx, session, errCodeBrokerUnreachable, "task broker is unreachable")
		return uuid.Nil, err
	}

	if err := entry.SetTaskHandle(ctx, handle.Subject); err != nil {
		c.log.Warn("upload", "failed to cache task handle", map[string]interface{}{"session_id": session.Id, "error": err.Error()})
	}
	return task.Id, nil
}

func (c *uploadService) QueryStatus(ctx context.Context, ownerId *uuid.UUID, sessionId uuid.UUID) (*dto.StatusResponse, error) {
	session, err := c.loadOwned(ctx, ownerId, sessionId)
	if err != nil {
		return nil, err
	}

	// Durable completed is final; cache keys may already have expired.
	if session.Status == entity.SessionCompleted {
		return c.completedResponse(sessionId), nil
	}

	entry := cache.NewEntry(c.store, sessionId)
	snap, err := entry.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	switch session.Status {
	case entity.SessionUploading:
		percent := c.tracker.UploadPercent(snap.ChunksReceived, session.TotalChunks)
		return &dto.StatusResponse{
			SessionId: sessionId,
			Status:    dto.PublicStatusUploading,
			Progress: &dto.ProgressInfo{
				Percent: percent,
				Stage:   "uploading",
				Message: fmt.Sprintf("%d of %d chunks received", snap.ChunksReceived, session.TotalChunks),
			},
		}, nil

	case entity.SessionFailed:
		// A retry flips the cache back to queued before the durable row; show
		// the in-flight view rather than the stale failure.
		if snap.Status == "queued" || snap.Status == "processing" {
			return c.processingResponse(sessionId, snap), nil
		}
		return c.failedResponse(sessionId, snap), nil

	default: // queued, processing
		return c.resolveActive(ctx, session, snap)
	}
}

// resolveActive folds the cache view into the durable queued/processing row.
func (c *uploadService) resolveActive(ctx context.Context, session *entity.UploadSession, snap *cache.Snapshot) (*dto.StatusResponse, error) {
	switch snap.Status {
	case "completed":
		visible, err := c.finalizer.IsVisible(ctx, session.Id)
		if err != nil {
			return nil, err
		}
		if !visible {
			resp := c.processingResponse(session.Id, snap)
			resp.Progress.Stage = "finalizing"
			return resp, nil
		}
		c.reconcile(ctx, session, entity.SessionCompleted)
		return c.completedResponse(session.Id), nil

	case "failed":
		c.reconcile(ctx, session, entity.SessionFailed)
		return c.failedResponse(session.Id, snap), nil

	default:
		if snap.Status == "processing" && session.Status == entity.SessionQueued {
			c.reconcile(ctx, session, entity.SessionProcessing)
		}
		if c.tracker.IsStalled(snap) {
			resp := c.processingResponse(session.Id, snap)
			resp.Status = dto.PublicStatusStalled
			resp.Progress.WorkerHealth = string(HealthStalled)
			return resp, nil
		}
		return c.processingResponse(session.Id, snap), nil
	}
}

// reconcile folds a cache-observed status into the durable row, guarded by
// the state machine so late or duplicated writes can never move a session
// backwards.
func (c *uploadService) reconcile(ctx context.Context, session *entity.UploadSession, next entity.SessionStatus) {
	if !session.CanTransition(next) {
		// A completed observation on a still-queued row means the processing
		// hop was never polled; fold the intermediate step in rather than
		// leaving the row behind forever.
		if session.Status == entity.SessionQueued && next == entity.SessionCompleted {
			session.Status = entity.SessionProcessing
		} else {
			c.log.Warn("upload", "skipping durable reconcile, transition not allowed", map[string]interface{}{
				"session_id": session.Id,
				"from":       session.Status,
				"to":         next,
			})
			return
		}
	}
	uow := c.uowFactory.NewUnitOfWork(ctx)
	session.Status = next
	if err := uow.UploadSessionRepository().Update(ctx, session); err != nil {
		c.log.Error("upload", "failed to reconcile durable status", map[string]interface{}{
			"session_id": session.Id,
			"to":         next,
			"error":      err.Error(),
		})
	}
}

func (c *uploadService) Retry(ctx context.Context, ownerId *uuid.UUID, sessionId uuid.UUID) (*dto.RetryResponse, error) {
	session, err := c.loadOwned(ctx, ownerId, sessionId)
	if err != nil {
		return nil, err
	}

	entry := cache.NewEntry(c.store, sessionId)
	snap, err := entry.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	failed := session.Status == entity.SessionFailed || snap.Status == "failed"
	stalled := (session.Status == entity.SessionQueued || session.Status == entity.SessionProcessing) && c.tracker.IsStalled(snap)
	if !failed && !stalled {
		return nil, apperr.New(apperr.KindConflict, fmt.Sprintf("session %s is not failed or stalled", sessionId))
	}
	if session.RetryCount >= c.uploadCfg.MaxRetries {
		return nil, apperr.New(apperr.KindConflict, fmt.Sprintf("session %s exhausted its %d retries", sessionId, c.uploadCfg.MaxRetries))
	}
	locked, err := c.store.IsLocked(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if locked {
		return nil, apperr.New(apperr.KindConflict, "a worker still holds this session, try again shortly")
	}

	// Wipe every volatile field so no stale error, progress or settle timer
	// survives into the new attempt.
	if err := entry.Reset(ctx); err != nil {
		return nil, err
	}

	uow := c.uowFactory.NewUnitOfWork(ctx)
	// Retry is the one sanctioned backwards move, including out of a stalled
	// processing state, so it bypasses CanTransition.
	session.Status = entity.SessionQueued
	session.RetryCount++
	c.touch(session)
	if err := uow.UploadSessionRepository().Update(ctx, session); err != nil {
		return nil, err
	}

	taskId, err := c.dispatchTask(ctx, uow, session)
	if err != nil {
		return nil, err
	}

	c.log.Info("upload", "session requeued for retry", map[string]interface{}{
		"session_id": sessionId,
		"attempt":    session.RetryCount,
	})
	return &dto.RetryResponse{SessionId: sessionId, TaskId: taskId}, nil
}

func (c *uploadService) Delete(ctx context.Context, ownerId *uuid.UUID, sessionId uuid.UUID) error {
	session, err := c.loadOwned(ctx, ownerId, sessionId)
	if err != nil {
		return err
	}
	return c.eviction.DeleteCascade(ctx, session)
}

func (c *uploadService) List(ctx context.Context, ownerId *uuid.UUID) ([]*dto.SessionSummary, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)
	sessions, err := uow.UploadSessionRepository().FindAll(ctx,
		specification.ByOwner{OwnerId: ownerId},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	summaries := make([]*dto.SessionSummary, 0, len(sessions))
	for _, session := range sessions {
		summaries = append(summaries, &dto.SessionSummary{
			SessionId:  session.Id,
			Status:     publicStatus(session.Status),
			Filenames:  session.SourceFilenames,
			CreatedAt:  session.CreatedAt,
			LastUsedAt: session.LastUsedAt,
		})
	}
	return summaries, nil
}

func (c *uploadService) Results(ctx context.Context, ownerId *uuid.UUID, sessionId uuid.UUID) (*dto.ResultsResponse, error) {
	session, err := c.loadOwned(ctx, ownerId, sessionId)
	if err != nil {
		return nil, err
	}

	if session.Status != entity.SessionCompleted {
		// The status endpoint may not have been polled since the worker
		// finished; give the finalizer a chance before refusing.
		entry := cache.NewEntry(c.store, sessionId)
		snap, serr := entry.Snapshot(ctx)
		if serr != nil {
			return nil, serr
		}
		if snap.Status != "completed" {
			return nil, apperr.New(apperr.KindConflict, fmt.Sprintf("session %s has no results yet (%s)", sessionId, session.Status))
		}
		visible, verr := c.finalizer.IsVisible(ctx, sessionId)
		if verr != nil {
			return nil, verr
		}
		if !visible {
			return nil, apperr.New(apperr.KindConflict, fmt.Sprintf("session %s is still finalizing", sessionId))
		}
		c.reconcile(ctx, session, entity.SessionCompleted)
	}

	uow := c.uowFactory.NewUnitOfWork(ctx)
	topics, err := uow.TopicRepository().FindAll(ctx,
		specification.BySessionId{SessionId: sessionId},
		specification.OrderBy{Field: "position"},
	)
	if err != nil {
		return nil, err
	}
	flashcards, err := uow.FlashcardRepository().FindAll(ctx,
		specification.BySessionId{SessionId: sessionId},
		specification.OrderBy{Field: "created_at"},
	)
	if err != nil {
		return nil, err
	}

	c.touch(session)
	if err := uow.UploadSessionRepository().Update(ctx, session); err != nil {
		c.log.Warn("upload", "failed to touch session on results read", map[string]interface{}{
			"session_id": sessionId,
			"error":      err.Error(),
		})
	}

	resp := &dto.ResultsResponse{
		SessionId:  sessionId,
		Topics:     make([]dto.TopicResponse, 0, len(topics)),
		Flashcards: make([]dto.FlashcardResponse, 0, len(flashcards)),
	}
	for _, topic := range topics {
		resp.Topics = append(resp.Topics, dto.TopicResponse{
			Id:      topic.Id,
			Title:   topic.Title,
			Summary: topic.Summary,
		})
	}
	for _, card := range flashcards {
		resp.Flashcards = append(resp.Flashcards, dto.FlashcardResponse{
			Id:      card.Id,
			TopicId: card.TopicId,
			Front:   card.Front,
			Back:    card.Back,
		})
	}
	return resp, nil
}

// failSession records a structured error in the cache and moves the durable
// row to failed, best effort on both writes. The session stays eligible for
// retry either way because the cache failed status alone qualifies.
func (c *uploadService) failSession(ctx context.Context, session *entity.UploadSession, code, message string) {
	entry := cache.NewEntry(c.store, session.Id)
	if err := entry.SetError(ctx, cache.WorkerError{Code: code, Message: message}); err != nil {
		c.log.Warn("upload", "failed to cache session error", map[string]interface{}{
			"session_id": session.Id,
			"error":      err.Error(),
		})
	}
	_ = entry.SetStatus(ctx, "failed")

	session.Status = entity.SessionFailed
	uow := c.uowFactory.NewUnitOfWork(ctx)
	if err := uow.UploadSessionRepository().Update(ctx, session); err != nil {
		c.log.Error("upload", "failed to persist session failure", map[string]interface{}{
			"session_id": session.Id,
			"code":       code,
			"error":      err.Error(),
		})
	}
}

func (c *uploadService) loadOwned(ctx context.Context, ownerId *uuid.UUID, sessionId uuid.UUID) (*entity.UploadSession, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)
	session, err := uow.UploadSessionRepository().FindOne(ctx, specification.ByID{ID: sessionId})
	if err != nil {
		return nil, err
	}
	// Ownership mismatches read as absence so session ids cannot be probed.
	if session == nil || !ownerEqual(session.OwnerId, ownerId) {
		return nil, apperr.NotFound("session %s not found", sessionId)
	}
	return session, nil
}

func (c *uploadService) touch(session *entity.UploadSession) {
	now := time.Now()
	session.LastUsedAt = &now
}

func (c *uploadService) completedResponse(sessionId uuid.UUID) *dto.StatusResponse {
	return &dto.StatusResponse{
		SessionId:  sessionId,
		Status:     dto.PublicStatusCompleted,
		ResultsRef: fmt.Sprintf("/api/upload/v1/%s/results", sessionId),
	}
}

func (c *uploadService) failedResponse(sessionId uuid.UUID, snap *cache.Snapshot) *dto.StatusResponse {
	errInfo := &dto.ErrorInfo{Code: "processing_failed", Message: "processing failed"}
	if snap.Error != nil {
		errInfo = &dto.ErrorInfo{Code: snap.Error.Code, Message: snap.Error.Message}
	}
	return &dto.StatusResponse{
		SessionId: sessionId,
		Status:    dto.PublicStatusFailed,
		Error:     errInfo,
	}
}

func (c *uploadService) processingResponse(sessionId uuid.UUID, snap *cache.Snapshot) *dto.StatusResponse {
	progress := c.tracker.FromSnapshot(snap)
	info := &dto.ProgressInfo{
		Percent:      progress.Percent,
		Stage:        progress.Stage,
		WorkerHealth: string(progress.Health),
	}
	if info.Stage == "" {
		info.Stage = "queued"
	}
	if progress.Eta != nil {
		secs := progress.Eta.Seconds()
		info.EtaSeconds = &secs
	}
	return &dto.StatusResponse{
		SessionId: sessionId,
		Status:    dto.PublicStatusProcessing,
		Progress:  info,
	}
}

func publicStatus(status entity.SessionStatus) string {
	switch status {
	case entity.SessionUploading:
		return dto.PublicStatusUploading
	case entity.SessionCompleted:
		return dto.PublicStatusCompleted
	case entity.SessionFailed:
		return dto.PublicStatusFailed
	default:
		return dto.PublicStatusProcessing
	}
}

func ownerEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
