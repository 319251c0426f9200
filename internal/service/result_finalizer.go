package service

import (
	"context"
	"time"

	"ai-studykit-be/internal/cache"
	"ai-studykit-be/internal/pkg/logger"
	"ai-studykit-be/internal/repository/specification"
	"ai-studykit-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

// DependentRecordSource answers whether durable derived rows exist yet for a
// session. Narrow on purpose: the finalizer must stay unit-testable without
// a database.
type DependentRecordSource interface {
	HasRecords(ctx context.Context, sessionId uuid.UUID) (bool, error)
}

// ResultFinalizer converts the worker's eventually-consistent write path into
// a read-side barrier. The worker announces completion in the cache before
// all derived rows are necessarily queryable; visibility waits for at least
// one dependent record plus a settle delay measured from the first time this
// process observed the completion.
type ResultFinalizer struct {
	store       cache.StateStore
	records     DependentRecordSource
	settleDelay time.Duration
	now         func() time.Time
	log         logger.ILogger
}

func NewResultFinalizer(store cache.StateStore, records DependentRecordSource, settleDelay time.Duration, log logger.ILogger) *ResultFinalizer {
	return &ResultFinalizer{
		store:       store,
		records:     records,
		settleDelay: settleDelay,
		now:         time.Now,
		log:         log,
	}
}

func (f *ResultFinalizer) IsVisible(ctx context.Context, sessionId uuid.UUID) (bool, error) {
	entry := cache.NewEntry(f.store, sessionId)
	snap, err := entry.Snapshot(ctx)
	if err != nil {
		return false, err
	}

	now := f.now()

	if snap.CompletedSeenAt == nil {
		// First observation starts the settle timer.
		if err := entry.SetCompletedSeenAt(ctx, now); err != nil {
			return false, err
		}
		return false, nil
	}

	if now.Sub(*snap.CompletedSeenAt) < f.settleDelay {
		return false, nil
	}

	has, err := f.records.HasRecords(ctx, sessionId)
	if err != nil {
		return false, err
	}
	if !has {
		// The settle delay compensates for ordering violations, but an empty
		// result set is never served.
		f.log.Warn("finalizer", "completion observed but no dependent records yet", map[string]interface{}{
			"session_id": sessionId,
		})
		return false, nil
	}

	if err := entry.ClearCompletedSeenAt(ctx); err != nil {
		f.log.Warn("finalizer", "failed to clear settle timer key", map[string]interface{}{
			"session_id": sessionId,
			"error":      err.Error(),
		})
	}
	return true, nil
}

// GormDependentRecordSource checks the topics table; the worker always
// writes topics before flashcards.
type GormDependentRecordSource struct {
	uowFactory unitofwork.RepositoryFactory
}

func NewGormDependentRecordSource(uowFactory unitofwork.RepositoryFactory) *GormDependentRecordSource {
	return &GormDependentRecordSource{uowFactory: uowFactory}
}

func (s *GormDependentRecordSource) HasRecords(ctx context.Context, sessionId uuid.UUID) (bool, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	count, err := uow.TopicRepository().Count(ctx, specification.BySessionId{SessionId: sessionId})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
