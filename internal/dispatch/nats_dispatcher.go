package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ai-studykit-be/internal/apperr"
	"ai-studykit-be/internal/pkg/logger"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	streamName    = "TASKS"
	subjectPrefix = "tasks"
)

// NatsDispatcher publishes tasks to a JetStream work queue and lets worker
// processes consume them with a durable consumer.
type NatsDispatcher struct {
	nc  *nats.Conn
	js  jetstream.JetStream
	log logger.ILogger
}

func NewNatsDispatcher(url string, log logger.ILogger) (*NatsDispatcher, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindBrokerUnreachable, "connect to NATS", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, apperr.Wrap(apperr.KindBrokerUnreachable, "create JetStream context", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{subjectPrefix + ".>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.WorkQueuePolicy,
	})
	if err != nil {
		log.Warn("dispatch", "failed to ensure TASKS stream", map[string]interface{}{
			"error": err.Error(),
		})
		// The stream may already exist or NATS may still be starting.
	}

	return &NatsDispatcher{nc: nc, js: js, log: log}, nil
}

func (d *NatsDispatcher) Submit(ctx context.Context, taskType string, payload TaskPayload) (Handle, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Handle{}, fmt.Errorf("marshal task payload: %w", err)
	}

	subject := fmt.Sprintf("%s.%s.%s", subjectPrefix, taskType, payload.SessionId)
	if _, err := d.js.Publish(ctx, subject, data); err != nil {
		return Handle{}, apperr.Wrap(apperr.KindBrokerUnreachable, "publish task", err)
	}

	d.log.Info("dispatch", "task submitted", map[string]interface{}{
		"task_id":    payload.TaskId,
		"session_id": payload.SessionId,
		"subject":    subject,
	})

	return Handle{TaskId: payload.TaskId, Subject: subject}, nil
}

// Consume registers a durable consumer for the given task type. Redelivered
// messages are expected; handlers must stay idempotent per session.
func (d *NatsDispatcher) Consume(taskType, durableName string, handler TaskHandler) error {
	ctx := context.Background()

	consumer, err := d.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		Durable:       durableName,
		FilterSubject: fmt.Sprintf("%s.%s.>", subjectPrefix, taskType),
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return apperr.Wrap(apperr.KindBrokerUnreachable, "create consumer", err)
	}

	_, err = consumer.Consume(func(msg jetstream.Msg) {
		var payload TaskPayload
		if err := json.Unmarshal(msg.Data(), &payload); err != nil {
			d.log.Error("dispatch", "undecodable task message", map[string]interface{}{
				"subject": msg.Subject(),
				"error":   err.Error(),
			})
			msg.Ack() // poison message, never retryable
			return
		}

		if err := handler(context.Background(), payload); err != nil {
			d.log.Warn("dispatch", "task handler failed, requesting redelivery", map[string]interface{}{
				"session_id": payload.SessionId,
				"error":      err.Error(),
			})
			msg.Nak()
			return
		}
		msg.Ack()
	})
	if err != nil {
		return apperr.Wrap(apperr.KindBrokerUnreachable, "start consuming", err)
	}

	d.log.Info("dispatch", "consuming tasks", map[string]interface{}{
		"task_type": taskType,
		"durable":   durableName,
	})
	return nil
}

func (d *NatsDispatcher) Close() {
	if d.nc != nil {
		d.nc.Close()
	}
}
