package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// MemoryStateStore mirrors the redis store for dev mode and unit tests.
// go-cache gives the same TTL and add-if-absent semantics without a server.
type MemoryStateStore struct {
	cache *gocache.Cache
	ttl   time.Duration
}

func NewMemoryStateStore(ttl time.Duration) *MemoryStateStore {
	return &MemoryStateStore{
		cache: gocache.New(ttl, 10*time.Minute),
		ttl:   ttl,
	}
}

func (s *MemoryStateStore) key(sessionId uuid.UUID, field Field) string {
	return fmt.Sprintf("upload:session:%s:%s", sessionId, field)
}

func (s *MemoryStateStore) lockKey(sessionId uuid.UUID) string {
	return fmt.Sprintf("upload:session:%s:lock", sessionId)
}

func (s *MemoryStateStore) Set(ctx context.Context, sessionId uuid.UUID, field Field, value string) error {
	s.cache.Set(s.key(sessionId, field), value, s.ttl)
	return nil
}

func (s *MemoryStateStore) Get(ctx context.Context, sessionId uuid.UUID, field Field) (string, bool, error) {
	if v, found := s.cache.Get(s.key(sessionId, field)); found {
		return v.(string), true, nil
	}
	return "", false, nil
}

func (s *MemoryStateStore) Delete(ctx context.Context, sessionId uuid.UUID, fields ...Field) error {
	for _, f := range fields {
		s.cache.Delete(s.key(sessionId, f))
	}
	return nil
}

func (s *MemoryStateStore) ResetSession(ctx context.Context, sessionId uuid.UUID) error {
	for _, f := range Fields() {
		s.cache.Delete(s.key(sessionId, f))
	}
	s.cache.Delete(s.lockKey(sessionId))
	return nil
}

func (s *MemoryStateStore) AcquireLock(ctx context.Context, sessionId uuid.UUID, ttl time.Duration) (bool, error) {
	// Add fails when the key already exists, which is exactly SetNX.
	err := s.cache.Add(s.lockKey(sessionId), "1", ttl)
	return err == nil, nil
}

func (s *MemoryStateStore) ReleaseLock(ctx context.Context, sessionId uuid.UUID) error {
	s.cache.Delete(s.lockKey(sessionId))
	return nil
}

func (s *MemoryStateStore) IsLocked(ctx context.Context, sessionId uuid.UUID) (bool, error) {
	_, found := s.cache.Get(s.lockKey(sessionId))
	return found, nil
}
