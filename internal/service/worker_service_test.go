package service

import (
	"context"
	"testing"
	"time"

	"ai-studykit-be/internal/cache"
	"ai-studykit-be/internal/dispatch"
	"ai-studykit-be/internal/entity"
	"ai-studykit-be/internal/pkg/logger"
	"ai-studykit-be/pkg/generation"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Extract(ctx context.Context, contentRef string) (string, error) {
	return f.text, f.err
}

type fakeGenerator struct {
	kit   *generation.StudyKit
	err   error
	calls int
}

func (f *fakeGenerator) GenerateStudyKit(ctx context.Context, text, language string) (*generation.StudyKit, error) {
	f.calls++
	return f.kit, f.err
}

func sampleKit() *generation.StudyKit {
	return &generation.StudyKit{
		Topics: []generation.TopicDraft{
			{Title: "Photosynthesis", Summary: "Light to sugar"},
			{Title: "Respiration", Summary: "Sugar to energy"},
		},
		Flashcards: []generation.CardDraft{
			{Front: "Q1", Back: "A1", TopicIndex: 0},
			{Front: "Q2", Back: "A2", TopicIndex: 1},
			{Front: "Q3", Back: "A3", TopicIndex: -1},
		},
	}
}

type workerFixture struct {
	service   IWorkerService
	uow       *fakeUow
	store     cache.StateStore
	generator *fakeGenerator
	extractor *fakeExtractor
	payload   dispatch.TaskPayload
}

func newWorkerFixture(t *testing.T) *workerFixture {
	t.Helper()
	uow := newFakeUow()
	store := cache.NewMemoryStateStore(time.Minute)
	extractor := &fakeExtractor{text: "some document text"}
	generator := &fakeGenerator{kit: sampleKit()}

	sessionId := uuid.New()
	uow.sessions[sessionId] = &entity.UploadSession{
		Id:          sessionId,
		Status:      entity.SessionQueued,
		TotalChunks: 1,
		TotalSize:   10,
		CreatedAt:   time.Now(),
	}
	taskId := uuid.New()
	uow.tasks[taskId] = &entity.ProcessingTask{
		Id:        taskId,
		SessionId: sessionId,
		TaskType:  TaskTypeStudyKit,
		Status:    entity.TaskPending,
		CreatedAt: time.Now(),
	}

	svc := NewWorkerService(uow, store, extractor, generator, nil, time.Minute, time.Minute, logger.NewNopLogger())
	return &workerFixture{
		service:   svc,
		uow:       uow,
		store:     store,
		generator: generator,
		extractor: extractor,
		payload: dispatch.TaskPayload{
			TaskId:     taskId,
			SessionId:  sessionId,
			ContentRef: "/tmp/blob",
			Language:   "en",
		},
	}
}

func TestHandleTaskPersistsStudyKit(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.HandleTask(ctx, f.payload))

	require.Len(t, f.uow.topics, 2)
	byPosition := make(map[int]*entity.Topic)
	for _, topic := range f.uow.topics {
		byPosition[topic.Position] = topic
	}
	assert.Equal(t, "Photosynthesis", byPosition[0].Title)
	assert.Equal(t, "Respiration", byPosition[1].Title)

	require.Len(t, f.uow.flashcards, 3)
	for _, card := range f.uow.flashcards {
		switch card.Front {
		case "Q1":
			require.NotNil(t, card.TopicId)
			assert.Equal(t, byPosition[0].Id, *card.TopicId)
		case "Q2":
			require.NotNil(t, card.TopicId)
			assert.Equal(t, byPosition[1].Id, *card.TopicId)
		case "Q3":
			assert.Nil(t, card.TopicId, "unattached cards carry no topic")
		}
	}

	assert.Equal(t, entity.TaskDone, f.uow.tasks[f.payload.TaskId].Status)

	snap, err := cache.NewEntry(f.store, f.payload.SessionId).Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "completed", snap.Status)
	assert.Equal(t, 100.0, snap.ProgressPercent)

	// The durable session row is untouched; the API side owns it.
	assert.Equal(t, entity.SessionQueued, f.uow.sessions[f.payload.SessionId].Status)

	locked, err := f.store.IsLocked(ctx, f.payload.SessionId)
	require.NoError(t, err)
	assert.False(t, locked, "lock must be released after the run")
}

func TestHandleTaskDropsDuplicateDelivery(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()

	acquired, err := f.store.AcquireLock(ctx, f.payload.SessionId, time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	require.NoError(t, f.service.HandleTask(ctx, f.payload))
	assert.Zero(t, f.generator.calls, "a duplicate delivery must not run the pipeline")
	assert.Empty(t, f.uow.topics)

	// The original holder's lock survives.
	locked, err := f.store.IsLocked(ctx, f.payload.SessionId)
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestHandleTaskUnreadableContentIsTerminal(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()
	f.extractor.err = fakeError("corrupt blob")

	// Terminal failures acknowledge; the user decides about retries.
	require.NoError(t, f.service.HandleTask(ctx, f.payload))

	snap, err := cache.NewEntry(f.store, f.payload.SessionId).Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "failed", snap.Status)
	require.NotNil(t, snap.Error)
	assert.Equal(t, "content_unreadable", snap.Error.Code)

	assert.Equal(t, entity.TaskError, f.uow.tasks[f.payload.TaskId].Status)
	assert.Zero(t, f.generator.calls)
}

func TestHandleTaskGenerationFailureIsTerminal(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()
	f.generator.kit = nil
	f.generator.err = fakeError("model timeout")

	require.NoError(t, f.service.HandleTask(ctx, f.payload))

	snap, err := cache.NewEntry(f.store, f.payload.SessionId).Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "failed", snap.Status)
	require.NotNil(t, snap.Error)
	assert.Equal(t, "generation_failed", snap.Error.Code)
	assert.Empty(t, f.uow.topics)
}

func TestHandleTaskPersistFailureRequestsRedelivery(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()
	f.uow.failCommit = true

	err := f.service.HandleTask(ctx, f.payload)
	require.Error(t, err, "persistence trouble must bounce back to the broker")

	snap, serr := cache.NewEntry(f.store, f.payload.SessionId).Snapshot(ctx)
	require.NoError(t, serr)
	assert.NotEqual(t, "completed", snap.Status, "completion must never be announced before the commit")

	locked, lerr := f.store.IsLocked(ctx, f.payload.SessionId)
	require.NoError(t, lerr)
	assert.False(t, locked, "the lock must not outlive the attempt")
}

func TestHandleTaskRedeliveryReplacesPartialRows(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()

	// Leftovers from a crashed earlier attempt.
	staleTopic := uuid.New()
	f.uow.topics[staleTopic] = &entity.Topic{Id: staleTopic, SessionId: f.payload.SessionId, Title: "stale"}
	staleCard := uuid.New()
	f.uow.flashcards[staleCard] = &entity.Flashcard{Id: staleCard, SessionId: f.payload.SessionId, Front: "stale"}

	require.NoError(t, f.service.HandleTask(ctx, f.payload))

	_, topicRemains := f.uow.topics[staleTopic]
	assert.False(t, topicRemains)
	_, cardRemains := f.uow.flashcards[staleCard]
	assert.False(t, cardRemains)
	assert.Len(t, f.uow.topics, 2)
	assert.Len(t, f.uow.flashcards, 3)
}
