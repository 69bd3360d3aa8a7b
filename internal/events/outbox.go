package events

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/splits-network/messaging-service/internal/domain"
	"github.com/splits-network/messaging-service/internal/repository"
)

// Outbox is the durable, at-least-once path for downstream consumers.
type Outbox interface {
	Emit(ctx context.Context, eventType string, payload any)
}

type StoredOutbox struct {
	repo repository.OutboxRepo
	log  *zap.SugaredLogger
}

func NewStoredOutbox(repo repository.OutboxRepo, log *zap.SugaredLogger) *StoredOutbox {
	return &StoredOutbox{repo: repo, log: log}
}

// Emit appends the enveloped event for the drain worker. An append failure
// is logged but never fails the triggering operation; the user's write
// already happened.
func (o *StoredOutbox) Emit(ctx context.Context, eventType string, payload any) {
	ev, err := domain.NewEvent(eventType, payload)
	if err != nil {
		o.log.Errorw("outbox envelope", "type", eventType, "err", err)
		return
	}
	body, err := json.Marshal(ev)
	if err != nil {
		o.log.Errorw("outbox marshal", "type", eventType, "err", err)
		return
	}
	row := &domain.OutboxEvent{
		ID:        ev.ID,
		Type:      ev.Type,
		Body:      body,
		Delivered: false,
		CreatedAt: ev.OccurredAt,
	}
	if err := o.repo.Append(ctx, row); err != nil {
		o.log.Errorw("outbox append failed, event lost", "type", eventType, "event_id", ev.ID, "err", err)
	}
}
