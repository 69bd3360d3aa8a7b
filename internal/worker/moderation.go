package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/splits-network/messaging-service/internal/domain"
	"github.com/splits-network/messaging-service/internal/events"
	"github.com/splits-network/messaging-service/internal/metrics"
	"github.com/splits-network/messaging-service/internal/repository"
)

// WindowCounter is the sliding-window primitive; the Redis implementation
// lives in internal/cache.
type WindowCounter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// ModerationWorker consumes chat.message.created and flags burst senders.
// Flagging is advisory: it merges a moderation object into the message
// metadata, never blocks a send. Re-flagging an already-flagged message is
// harmless, which keeps the handler idempotent under redelivery.
type ModerationWorker struct {
	msgs      repository.MessageRepo
	counter   WindowCounter
	notifier  events.Notifier
	window    time.Duration
	threshold int64
	log       *zap.SugaredLogger
}

func NewModerationWorker(
	msgs repository.MessageRepo,
	counter WindowCounter,
	notifier events.Notifier,
	window time.Duration,
	threshold int64,
	log *zap.SugaredLogger,
) *ModerationWorker {
	if window <= 0 {
		window = 60 * time.Second
	}
	if threshold <= 0 {
		threshold = 5
	}
	return &ModerationWorker{msgs: msgs, counter: counter, notifier: notifier, window: window, threshold: threshold, log: log}
}

// Handle processes one delivery. Returning an error drops the message
// (nack, no requeue) — a malformed event will never parse better on
// redelivery.
func (w *ModerationWorker) Handle(ctx context.Context, d amqp.Delivery) error {
	var ev domain.Event
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if ev.Type != domain.EventMessageCreated {
		return nil
	}
	var payload domain.MessageCreatedPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if payload.MessageID == "" || payload.SenderID == "" {
		return fmt.Errorf("payload missing message or sender id")
	}

	count, err := w.counter.Incr(ctx, "moderation:burst:"+payload.SenderID, w.window)
	if err != nil {
		return fmt.Errorf("window counter: %w", err)
	}
	if count < w.threshold {
		return nil
	}

	flag := domain.ModerationFlag{
		Flagged:       true,
		Reason:        domain.FlagReasonBurstSend,
		WindowSeconds: int(w.window.Seconds()),
		Threshold:     w.threshold,
		Observed:      count,
		FlaggedAt:     time.Now().UTC(),
	}
	if err := w.msgs.SetModerationFlag(ctx, payload.MessageID, flag); err != nil {
		return fmt.Errorf("flag message %s: %w", payload.MessageID, err)
	}
	metrics.EventsFlagged.Inc()
	w.log.Infow("message flagged", "message", payload.MessageID, "sender", payload.SenderID, "observed", count)

	w.notifier.Publish(ctx, events.ConversationChannel(payload.ConversationID), domain.Notification{
		Type: domain.NotifyMessageUpdated,
		Data: map[string]any{"message_id": payload.MessageID, "moderation": flag},
	})
	return nil
}
