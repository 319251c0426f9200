package service

import (
	"context"
	"sort"
	"sync"

	"ai-studykit-be/internal/dispatch"
	"ai-studykit-be/internal/entity"
	"ai-studykit-be/internal/repository/contract"
	"ai-studykit-be/internal/repository/specification"
	"ai-studykit-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

// fakeUow backs the repository contracts with maps so the services can be
// exercised without a database. Specifications are interpreted by type.
type fakeUow struct {
	mu         sync.Mutex
	sessions   map[uuid.UUID]*entity.UploadSession
	tasks      map[uuid.UUID]*entity.ProcessingTask
	topics     map[uuid.UUID]*entity.Topic
	flashcards map[uuid.UUID]*entity.Flashcard

	failCommit bool
	// failUpdates makes the next N session updates fail, then clears itself.
	failUpdates int
}

func newFakeUow() *fakeUow {
	return &fakeUow{
		sessions:   make(map[uuid.UUID]*entity.UploadSession),
		tasks:      make(map[uuid.UUID]*entity.ProcessingTask),
		topics:     make(map[uuid.UUID]*entity.Topic),
		flashcards: make(map[uuid.UUID]*entity.Flashcard),
	}
}

func (f *fakeUow) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork { return f }

func (f *fakeUow) Begin(ctx context.Context) error { return nil }
func (f *fakeUow) Commit() error {
	if f.failCommit {
		return errCommitFailed
	}
	return nil
}
func (f *fakeUow) Rollback() error { return nil }

func (f *fakeUow) UploadSessionRepository() contract.UploadSessionRepository {
	return &fakeSessionRepo{f}
}
func (f *fakeUow) ProcessingTaskRepository() contract.ProcessingTaskRepository {
	return &fakeTaskRepo{f}
}
func (f *fakeUow) TopicRepository() contract.TopicRepository         { return &fakeTopicRepo{f} }
func (f *fakeUow) FlashcardRepository() contract.FlashcardRepository { return &fakeFlashcardRepo{f} }

type fakeError string

func (e fakeError) Error() string { return string(e) }

const (
	errCommitFailed = fakeError("commit failed")
	errUpdateFailed = fakeError("update failed")
)

// --- sessions ---

type fakeSessionRepo struct{ uow *fakeUow }

func (r *fakeSessionRepo) Create(ctx context.Context, session *entity.UploadSession) error {
	r.uow.mu.Lock()
	defer r.uow.mu.Unlock()
	clone := *session
	r.uow.sessions[session.Id] = &clone
	return nil
}

func (r *fakeSessionRepo) Update(ctx context.Context, session *entity.UploadSession) error {
	r.uow.mu.Lock()
	if r.uow.failUpdates > 0 {
		r.uow.failUpdates--
		r.uow.mu.Unlock()
		return errUpdateFailed
	}
	r.uow.mu.Unlock()
	return r.Create(ctx, session)
}

func (r *fakeSessionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.uow.mu.Lock()
	defer r.uow.mu.Unlock()
	delete(r.uow.sessions, id)
	return nil
}

func (r *fakeSessionRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.UploadSession, error) {
	matches, err := r.FindAll(ctx, specs...)
	if err != nil || len(matches) == 0 {
		return nil, err
	}
	return matches[0], nil
}

func (r *fakeSessionRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.UploadSession, error) {
	r.uow.mu.Lock()
	defer r.uow.mu.Unlock()

	var out []*entity.UploadSession
	for _, s := range r.uow.sessions {
		if sessionMatches(s, specs) {
			clone := *s
			out = append(out, &clone)
		}
	}

	for _, spec := range specs {
		if _, ok := spec.(specification.OldestFirst); ok {
			sort.Slice(out, func(i, j int) bool {
				a, b := out[i].LastUsedAt, out[j].LastUsedAt
				if a == nil {
					return b != nil
				}
				if b == nil {
					return false
				}
				return a.Before(*b)
			})
		}
		if ob, ok := spec.(specification.OrderBy); ok && ob.Field == "created_at" {
			sort.Slice(out, func(i, j int) bool {
				if ob.Desc {
					return out[i].CreatedAt.After(out[j].CreatedAt)
				}
				return out[i].CreatedAt.Before(out[j].CreatedAt)
			})
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, err := r.FindAll(ctx, specs...)
	return int64(len(all)), err
}

func sessionMatches(s *entity.UploadSession, specs []specification.Specification) bool {
	for _, spec := range specs {
		switch sp := spec.(type) {
		case specification.ByID:
			if s.Id != sp.ID {
				return false
			}
		case specification.ByOwner:
			if sp.OwnerId == nil {
				if s.OwnerId != nil {
					return false
				}
			} else if s.OwnerId == nil || *s.OwnerId != *sp.OwnerId {
				return false
			}
		case specification.ByStatus:
			if string(s.Status) != sp.Status {
				return false
			}
		}
	}
	return true
}

// --- tasks ---

type fakeTaskRepo struct{ uow *fakeUow }

func (r *fakeTaskRepo) Create(ctx context.Context, task *entity.ProcessingTask) error {
	r.uow.mu.Lock()
	defer r.uow.mu.Unlock()
	clone := *task
	r.uow.tasks[task.Id] = &clone
	return nil
}

func (r *fakeTaskRepo) Update(ctx context.Context, task *entity.ProcessingTask) error {
	return r.Create(ctx, task)
}

func (r *fakeTaskRepo) DeleteBySessionId(ctx context.Context, sessionId uuid.UUID) error {
	r.uow.mu.Lock()
	defer r.uow.mu.Unlock()
	for id, task := range r.uow.tasks {
		if task.SessionId == sessionId {
			delete(r.uow.tasks, id)
		}
	}
	return nil
}

func (r *fakeTaskRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ProcessingTask, error) {
	all, err := r.FindAll(ctx, specs...)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return all[0], nil
}

func (r *fakeTaskRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ProcessingTask, error) {
	r.uow.mu.Lock()
	defer r.uow.mu.Unlock()
	var out []*entity.ProcessingTask
	for _, task := range r.uow.tasks {
		if taskMatches(task, specs) {
			clone := *task
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeTaskRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, err := r.FindAll(ctx, specs...)
	return int64(len(all)), err
}

func taskMatches(task *entity.ProcessingTask, specs []specification.Specification) bool {
	for _, spec := range specs {
		switch sp := spec.(type) {
		case specification.ByID:
			if task.Id != sp.ID {
				return false
			}
		case specification.BySessionId:
			if task.SessionId != sp.SessionId {
				return false
			}
		}
	}
	return true
}

// --- topics ---

type fakeTopicRepo struct{ uow *fakeUow }

func (r *fakeTopicRepo) CreateBulk(ctx context.Context, topics []*entity.Topic) error {
	r.uow.mu.Lock()
	defer r.uow.mu.Unlock()
	for _, topic := range topics {
		clone := *topic
		r.uow.topics[topic.Id] = &clone
	}
	return nil
}

func (r *fakeTopicRepo) DeleteBySessionId(ctx context.Context, sessionId uuid.UUID) error {
	r.uow.mu.Lock()
	defer r.uow.mu.Unlock()
	for id, topic := range r.uow.topics {
		if topic.SessionId == sessionId {
			delete(r.uow.topics, id)
		}
	}
	return nil
}

func (r *fakeTopicRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Topic, error) {
	r.uow.mu.Lock()
	defer r.uow.mu.Unlock()
	var out []*entity.Topic
	for _, topic := range r.uow.topics {
		if topicMatches(topic, specs) {
			clone := *topic
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r *fakeTopicRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, err := r.FindAll(ctx, specs...)
	return int64(len(all)), err
}

func topicMatches(topic *entity.Topic, specs []specification.Specification) bool {
	for _, spec := range specs {
		if sp, ok := spec.(specification.BySessionId); ok && topic.SessionId != sp.SessionId {
			return false
		}
	}
	return true
}

// --- flashcards ---

type fakeFlashcardRepo struct{ uow *fakeUow }

func (r *fakeFlashcardRepo) CreateBulk(ctx context.Context, cards []*entity.Flashcard) error {
	r.uow.mu.Lock()
	defer r.uow.mu.Unlock()
	for _, card := range cards {
		clone := *card
		r.uow.flashcards[card.Id] = &clone
	}
	return nil
}

func (r *fakeFlashcardRepo) DeleteBySessionId(ctx context.Context, sessionId uuid.UUID) error {
	r.uow.mu.Lock()
	defer r.uow.mu.Unlock()
	for id, card := range r.uow.flashcards {
		if card.SessionId == sessionId {
			delete(r.uow.flashcards, id)
		}
	}
	return nil
}

func (r *fakeFlashcardRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Flashcard, error) {
	r.uow.mu.Lock()
	defer r.uow.mu.Unlock()
	var out []*entity.Flashcard
	for _, card := range r.uow.flashcards {
		if flashcardMatches(card, specs) {
			clone := *card
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeFlashcardRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, err := r.FindAll(ctx, specs...)
	return int64(len(all)), err
}

func flashcardMatches(card *entity.Flashcard, specs []specification.Specification) bool {
	for _, spec := range specs {
		if sp, ok := spec.(specification.BySessionId); ok && card.SessionId != sp.SessionId {
			return false
		}
	}
	return true
}

// --- dispatcher ---

type fakeDispatcher struct {
	mu        sync.Mutex
	submitted []dispatch.TaskPayload
	err       error
}

func (d *fakeDispatcher) Submit(ctx context.Context, taskType string, payload dispatch.TaskPayload) (dispatch.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return dispatch.Handle{}, d.err
	}
	d.submitted = append(d.submitted, payload)
	return dispatch.Handle{TaskId: payload.TaskId, Subject: "tasks." + taskType + "." + payload.SessionId.String()}, nil
}

func (d *fakeDispatcher) submittedCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.submitted)
}

// --- publisher ---

type fakePublisher struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (p *fakePublisher) Publish(ctx context.Context, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	return nil
}
