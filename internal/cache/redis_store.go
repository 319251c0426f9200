package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStateStore keeps volatile session state in redis. Keys are built from
// the typed Field list, never from ad-hoc strings, and every write carries
// the same TTL so the whole entry ages out together.
type RedisStateStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStateStore(rdb *redis.Client, ttl time.Duration) *RedisStateStore {
	return &RedisStateStore{
		rdb: rdb,
		ttl: ttl,
	}
}

func (s *RedisStateStore) key(sessionId uuid.UUID, field Field) string {
	return fmt.Sprintf("upload:session:%s:%s", sessionId, field)
}

func (s *RedisStateStore) lockKey(sessionId uuid.UUID) string {
	return fmt.Sprintf("upload:session:%s:lock", sessionId)
}

func (s *RedisStateStore) Set(ctx context.Context, sessionId uuid.UUID, field Field, value string) error {
	return s.rdb.Set(ctx, s.key(sessionId, field), value, s.ttl).Err()
}

func (s *RedisStateStore) Get(ctx context.Context, sessionId uuid.UUID, field Field) (string, bool, error) {
	val, err := s.rdb.Get(ctx, s.key(sessionId, field)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return val, true, nil
}

func (s *RedisStateStore) Delete(ctx context.Context, sessionId uuid.UUID, fields ...Field) error {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = s.key(sessionId, f)
	}
	return s.rdb.Del(ctx, keys...).Err()
}

func (s *RedisStateStore) ResetSession(ctx context.Context, sessionId uuid.UUID) error {
	keys := make([]string, 0, len(Fields())+1)
	for _, f := range Fields() {
		keys = append(keys, s.key(sessionId, f))
	}
	keys = append(keys, s.lockKey(sessionId))
	return s.rdb.Del(ctx, keys...).Err()
}

func (s *RedisStateStore) AcquireLock(ctx context.Context, sessionId uuid.UUID, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, s.lockKey(sessionId), "1", ttl).Result()
}

func (s *RedisStateStore) ReleaseLock(ctx context.Context, sessionId uuid.UUID) error {
	return s.rdb.Del(ctx, s.lockKey(sessionId)).Err()
}

func (s *RedisStateStore) IsLocked(ctx context.Context, sessionId uuid.UUID) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.lockKey(sessionId)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
