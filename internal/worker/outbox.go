// Package worker holds the long-lived consumers: the outbox drain, the
// moderation burst detector, and the attachment scan worker.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/splits-network/messaging-service/internal/metrics"
	"github.com/splits-network/messaging-service/internal/repository"
)

// EventPublisher is the broker side of the drain; mq.Publisher implements it.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey, messageID string, body []byte) error
}

// OutboxWorker drains pending outbox rows to the topic exchange. Rows are
// marked delivered only after a successful publish, so delivery is
// at-least-once; consumers deduplicate on the event id.
type OutboxWorker struct {
	repo     repository.OutboxRepo
	pub      EventPublisher
	interval time.Duration
	batch    int64
	log      *zap.SugaredLogger
}

func NewOutboxWorker(repo repository.OutboxRepo, pub EventPublisher, interval time.Duration, batch int64, log *zap.SugaredLogger) *OutboxWorker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batch <= 0 {
		batch = 100
	}
	return &OutboxWorker{repo: repo, pub: pub, interval: interval, batch: batch, log: log}
}

func (w *OutboxWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	w.log.Infow("outbox worker started", "interval", w.interval, "batch", w.batch)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

func (w *OutboxWorker) drain(ctx context.Context) {
	for {
		pending, err := w.repo.FetchPending(ctx, w.batch)
		if err != nil {
			w.log.Errorw("outbox fetch", "err", err)
			return
		}
		if len(pending) == 0 {
			return
		}
		for _, ev := range pending {
			if err := w.pub.Publish(ctx, ev.Type, ev.ID, ev.Body); err != nil {
				// Broker outage: leave the row pending, try again next
				// tick. That is the whole point of the outbox.
				w.log.Warnw("outbox publish failed", "event", ev.ID, "type", ev.Type, "err", err)
				_ = w.repo.IncrementAttempts(ctx, ev.ID)
				return
			}
			if err := w.repo.MarkDelivered(ctx, ev.ID, time.Now().UTC()); err != nil {
				w.log.Errorw("outbox mark delivered", "event", ev.ID, "err", err)
				return
			}
			metrics.EventsDrained.Inc()
		}
		if int64(len(pending)) < w.batch {
			return
		}
	}
}
