package service

import (
	"context"
	"encoding/json"
	"time"

	"ai-studykit-be/internal/cache"
	"ai-studykit-be/internal/chunkstore"
	"ai-studykit-be/internal/dto"
	"ai-studykit-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// IJanitorService removes orphaned upload files. It consumes explicit
// cleanup messages from deletes and evictions, and sweeps staging
// directories whose sessions were abandoned mid-upload.
type IJanitorService interface {
	Consume(ctx context.Context) error
	RunSweepLoop(ctx context.Context, interval time.Duration)
}

type janitorService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	chunks    *chunkstore.Store
	store     cache.StateStore
	chunkTTL  time.Duration
	log       logger.ILogger
}

func NewJanitorService(
	pubSub *gochannel.GoChannel,
	topicName string,
	chunks *chunkstore.Store,
	store cache.StateStore,
	chunkTTL time.Duration,
	log logger.ILogger,
) IJanitorService {
	return &janitorService{
		pubSub:    pubSub,
		topicName: topicName,
		chunks:    chunks,
		store:     store,
		chunkTTL:  chunkTTL,
		log:       log,
	}
}

func (j *janitorService) Consume(ctx context.Context) error {
	messages, err := j.pubSub.Subscribe(ctx, j.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			j.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (j *janitorService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.CleanupMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		j.log.Error("janitor", "unparseable cleanup message", map[string]interface{}{
			"error": err.Error(),
		})
		msg.Ack()
		return
	}

	if err := j.chunks.RemoveSession(payload.SessionId); err != nil {
		j.log.Error("janitor", "file cleanup failed", map[string]interface{}{
			"session_id": payload.SessionId,
			"error":      err.Error(),
		})
		msg.Nack()
		return
	}
	if err := j.store.ResetSession(ctx, payload.SessionId); err != nil {
		// Cache keys expire on their own; not worth a redelivery.
		j.log.Warn("janitor", "cache reset failed", map[string]interface{}{
			"session_id": payload.SessionId,
			"error":      err.Error(),
		})
	}

	j.log.Info("janitor", "session files removed", map[string]interface{}{
		"session_id": payload.SessionId,
	})
	msg.Ack()
}

// RunSweepLoop blocks until ctx is done, reclaiming abandoned staging
// directories on every tick.
func (j *janitorService) RunSweepLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reclaimed, err := j.chunks.SweepExpired(j.chunkTTL)
			if err != nil {
				j.log.Error("janitor", "staging sweep failed", map[string]interface{}{
					"error": err.Error(),
				})
				continue
			}
			for _, sessionId := range reclaimed {
				if err := j.store.ResetSession(ctx, sessionId); err != nil {
					j.log.Warn("janitor", "cache reset failed for swept session", map[string]interface{}{
						"session_id": sessionId,
						"error":      err.Error(),
					})
				}
			}
			if len(reclaimed) > 0 {
				j.log.Info("janitor", "reclaimed abandoned staging directories", map[string]interface{}{
					"count": len(reclaimed),
				})
			}
		}
	}
}
