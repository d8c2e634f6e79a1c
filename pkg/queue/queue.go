// Package queue provides the trigger queue: the buffer between trigger
// producers (scheduler, webhook intake, manual runs) and the execution worker.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/dukex/conduit/pkg/models"
)

// Topic is the single topic trigger messages travel on.
const Topic = "conduit.triggers"

// workflowIDMetadataKey carries the workflow id in message metadata so brokers
// can partition by workflow without unmarshaling the payload.
const workflowIDMetadataKey = "workflow_id"

// Handler processes one dequeued trigger message. A non-nil error nacks the
// message for redelivery.
type Handler func(ctx context.Context, msg *models.TriggerMessage) error

// Queue publishes and consumes trigger messages over a watermill channel.
type Queue struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     *slog.Logger
}

// NewQueue wraps a publisher/subscriber pair.
func NewQueue(pub message.Publisher, sub message.Subscriber, logger *slog.Logger) *Queue {
	return &Queue{
		publisher:  pub,
		subscriber: sub,
		logger:     logger.With("module", "queue"),
	}
}

// Publish enqueues a trigger message.
func (q *Queue) Publish(_ context.Context, triggerMsg *models.TriggerMessage) error {
	payload, err := json.Marshal(triggerMsg)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger message: %w", err)
	}

	msg := message.NewMessage("msg-"+watermill.NewULID(), payload)
	msg.Metadata.Set(workflowIDMetadataKey, triggerMsg.WorkflowID)

	err = q.publisher.Publish(Topic, msg)
	if err != nil {
		return fmt.Errorf("failed to publish trigger message: %w", err)
	}

	return nil
}

// Subscribe consumes trigger messages until the context is cancelled, invoking
// the handler for each. An undecodable payload can never succeed, so it is
// logged and acked rather than redelivered forever.
func (q *Queue) Subscribe(ctx context.Context, handler Handler) error {
	messages, err := q.subscriber.Subscribe(ctx, Topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", Topic, err)
	}

	go func() {
		for msg := range messages {
			var triggerMsg models.TriggerMessage

			err := json.Unmarshal(msg.Payload, &triggerMsg)
			if err != nil {
				q.logger.ErrorContext(ctx, "Discarding malformed trigger message",
					"message_id", msg.UUID, "error", err)
				msg.Ack()

				continue
			}

			err = handler(ctx, &triggerMsg)
			if err != nil {
				msg.Nack()

				continue
			}

			msg.Ack()
		}
	}()

	return nil
}

// Close closes the underlying publisher and subscriber.
func (q *Queue) Close() error {
	err := q.publisher.Close()
	if err != nil {
		return err
	}

	return q.subscriber.Close()
}
