package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/splits-network/messaging-service/internal/domain"
	"github.com/splits-network/messaging-service/internal/events"
	"github.com/splits-network/messaging-service/internal/metrics"
	"github.com/splits-network/messaging-service/internal/repository"
)

const previewRunes = 140

type MessageService struct {
	convs      repository.ConversationRepo
	msgs       repository.MessageRepo
	moderation repository.ModerationRepo
	notifier   events.Notifier
	outbox     events.Outbox
	log        *zap.SugaredLogger
}

func NewMessageService(
	convs repository.ConversationRepo,
	msgs repository.MessageRepo,
	moderation repository.ModerationRepo,
	notifier events.Notifier,
	outbox events.Outbox,
	log *zap.SugaredLogger,
) *MessageService {
	return &MessageService{convs: convs, msgs: msgs, moderation: moderation, notifier: notifier, outbox: outbox, log: log}
}

type SendInput struct {
	ConversationID  string   `json:"conversation_id"`
	Body            string   `json:"body"`
	ClientMessageID string   `json:"client_message_id"`
	AttachmentIDs   []string `json:"attachment_ids"`
}

// Send runs the full precondition gate, then inserts atomically. The unique
// index on (sender, client_message_id) makes retries converge on the
// original row instead of duplicating it.
func (s *MessageService) Send(ctx context.Context, senderID string, in SendInput) (*domain.Message, error) {
	if in.Body == "" && len(in.AttachmentIDs) == 0 {
		return nil, domain.InvalidArg("message body or attachments required")
	}

	conv, err := s.convs.GetByID(ctx, in.ConversationID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.NotFound("conversation not found")
	}
	if err != nil {
		return nil, domain.Internal("conversation read", err)
	}

	senderState, err := s.convs.GetState(ctx, conv.ID, senderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.AccessDenied("not a participant in this conversation")
	}
	if err != nil {
		return nil, domain.Internal("sender state read", err)
	}
	switch senderState.RequestState {
	case domain.RequestStatePending:
		return nil, domain.E(domain.CodeRequestNotAccepted, "accept the conversation request before replying")
	case domain.RequestStateDeclined:
		return nil, domain.E(domain.CodeConversationDeclined, "conversation was declined")
	}

	recipientID := conv.Other(senderID)
	recipientState, err := s.convs.GetState(ctx, conv.ID, recipientID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.NotFound("counterpart participant missing")
	}
	if err != nil {
		return nil, domain.Internal("recipient state read", err)
	}
	if recipientState.RequestState == domain.RequestStateDeclined {
		return nil, domain.E(domain.CodeConversationDeclined, "conversation was declined")
	}
	if recipientState.Archived() {
		return nil, domain.E(domain.CodeRecipientArchived, "recipient archived this conversation")
	}

	blocked, err := s.moderation.BlockedBetween(ctx, senderID, recipientID)
	if err != nil {
		return nil, domain.Internal("block lookup", err)
	}
	if blocked {
		// Deliberately generic so block status never leaks to the sender.
		return nil, domain.E(domain.CodeDeliveryBlocked, "message could not be delivered")
	}

	if recipientState.RequestState == domain.RequestStatePending {
		if len(in.AttachmentIDs) > 0 {
			return nil, domain.E(domain.CodeAttachmentsNotAllowed, "attachments are not allowed until the request is accepted")
		}
		count, err := s.msgs.CountInConversation(ctx, conv.ID)
		if err != nil {
			return nil, domain.Internal("message count", err)
		}
		if count >= 1 {
			return nil, domain.E(domain.CodeRequestThrottled, "wait for the request to be accepted before sending more messages")
		}
	}

	now := time.Now().UTC()
	msg := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		Kind:           domain.MessageKindUser,
		AttachmentIDs:  in.AttachmentIDs,
		CreatedAt:      now,
	}
	if in.Body != "" {
		body := in.Body
		msg.Body = &body
	}
	if in.ClientMessageID != "" {
		token := in.ClientMessageID
		msg.ClientMessageID = &token
	}

	err = s.msgs.Insert(ctx, msg)
	if errors.Is(err, repository.ErrDuplicate) && in.ClientMessageID != "" {
		// Client retry: return the row the first attempt inserted.
		original, ferr := s.msgs.FindByClientToken(ctx, senderID, in.ClientMessageID)
		if ferr != nil {
			return nil, domain.Internal("idempotent re-read", ferr)
		}
		return original, nil
	}
	if err != nil {
		return nil, domain.Internal("message insert", err)
	}

	if err := s.convs.IncrementUnread(ctx, conv.ID, recipientID); err != nil {
		s.log.Errorw("unread increment failed", "conversation", conv.ID, "err", err)
	}
	if err := s.convs.SetLastMessage(ctx, conv.ID, msg.ID, now); err != nil {
		s.log.Errorw("last message update failed", "conversation", conv.ID, "err", err)
	}

	s.notifier.Publish(ctx, events.ConversationChannel(conv.ID), domain.Notification{
		Type: domain.NotifyMessageCreated,
		Data: msg,
	})
	s.notifier.Publish(ctx, events.UserChannel(recipientID), domain.Notification{
		Type: domain.NotifyConversationUpdated,
		Data: map[string]any{"conversation_id": conv.ID, "last_message_id": msg.ID},
	})
	s.outbox.Emit(ctx, domain.EventMessageCreated, domain.MessageCreatedPayload{
		MessageID:      msg.ID,
		ConversationID: conv.ID,
		SenderID:       senderID,
		RecipientID:    recipientID,
		Preview:        msg.Preview(previewRunes),
		CreatedAt:      now,
	})
	metrics.MessagesSent.Inc()
	return msg, nil
}

// List returns messages in delivery order (created_at ascending).
func (s *MessageService) List(ctx context.Context, userID, convID string, after, before time.Time, limit int64) ([]domain.Message, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	if _, err := s.convs.GetState(ctx, convID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NotFound("conversation not found")
		}
		return nil, domain.Internal("participant state read", err)
	}
	msgs, err := s.msgs.List(ctx, convID, after, before, limit)
	if err != nil {
		return nil, domain.Internal("message list", err)
	}
	return msgs, nil
}
