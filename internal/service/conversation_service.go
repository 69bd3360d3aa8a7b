package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/splits-network/messaging-service/internal/access"
	"github.com/splits-network/messaging-service/internal/domain"
	"github.com/splits-network/messaging-service/internal/events"
	"github.com/splits-network/messaging-service/internal/repository"
)

const maxPageSize = 100

type ConversationService struct {
	convs    repository.ConversationRepo
	msgs     repository.MessageRepo
	resolver *access.Resolver
	notifier events.Notifier
	outbox   events.Outbox
	log      *zap.SugaredLogger
}

func NewConversationService(
	convs repository.ConversationRepo,
	msgs repository.MessageRepo,
	resolver *access.Resolver,
	notifier events.Notifier,
	outbox events.Outbox,
	log *zap.SugaredLogger,
) *ConversationService {
	return &ConversationService{convs: convs, msgs: msgs, resolver: resolver, notifier: notifier, outbox: outbox, log: log}
}

type CreateResult struct {
	Conversation *domain.Conversation `json:"conversation"`
	Created      bool                 `json:"created"`
	Routed       bool                 `json:"routed"`
	Counterpart  string               `json:"counterpart"`
}

// CreateOrFind is idempotent per (canonical pair, context): repeated calls
// converge on one conversation row. Losing a creation race falls back to
// re-reading the winner.
func (s *ConversationService) CreateOrFind(ctx context.Context, callerID, counterpartID string, cc domain.ConversationContext) (*CreateResult, error) {
	if counterpartID == "" {
		return nil, domain.InvalidArg("counterpart id required")
	}
	if counterpartID == callerID {
		return nil, domain.InvalidArg("cannot start a conversation with yourself")
	}
	if err := s.resolver.Authorize(ctx, callerID, cc); err != nil {
		return nil, err
	}

	routing, err := s.resolver.Route(ctx, callerID, counterpartID)
	if err != nil {
		return nil, err
	}
	effective := routing.EffectiveID
	if effective == callerID {
		return nil, domain.InvalidArg("cannot start a conversation with yourself")
	}

	lo, hi := domain.CanonicalPair(callerID, effective)
	if conv, err := s.convs.FindByPairContext(ctx, lo, hi, cc); err == nil {
		return &CreateResult{Conversation: conv, Created: false, Routed: routing.Routed, Counterpart: effective}, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, domain.Internal("conversation lookup", err)
	}

	now := time.Now().UTC()
	conv := &domain.Conversation{
		ID:            uuid.NewString(),
		ParticipantLo: lo,
		ParticipantHi: hi,
		Context:       cc,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	callerState := &domain.ParticipantState{
		ConversationID: conv.ID,
		UserID:         callerID,
		RequestState:   domain.RequestStateAccepted,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	counterState := &domain.ParticipantState{
		ConversationID: conv.ID,
		UserID:         effective,
		RequestState:   domain.RequestStatePending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.convs.Create(ctx, conv, callerState, counterState)
	if errors.Is(err, repository.ErrDuplicate) {
		winner, ferr := s.convs.FindByPairContext(ctx, lo, hi, cc)
		if ferr != nil {
			return nil, domain.Internal("conversation re-read after race", ferr)
		}
		return &CreateResult{Conversation: winner, Created: false, Routed: routing.Routed, Counterpart: effective}, nil
	}
	if err != nil {
		return nil, domain.Internal("conversation create", err)
	}

	if routing.Routed && routing.SystemMessage != "" {
		if err := s.seedSystemMessage(ctx, conv, callerID, routing.SystemMessage); err != nil {
			s.log.Errorw("system message seed failed", "conversation", conv.ID, "err", err)
		}
	}

	s.notifier.Publish(ctx, events.UserChannel(effective), domain.Notification{
		Type: domain.NotifyConversationRequested,
		Data: map[string]any{"conversation_id": conv.ID, "from": callerID},
	})
	return &CreateResult{Conversation: conv, Created: true, Routed: routing.Routed, Counterpart: effective}, nil
}

func (s *ConversationService) seedSystemMessage(ctx context.Context, conv *domain.Conversation, callerID, text string) error {
	now := time.Now().UTC()
	msg := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		SenderID:       callerID,
		Kind:           domain.MessageKindSystem,
		Body:           &text,
		CreatedAt:      now,
	}
	if err := s.msgs.Insert(ctx, msg); err != nil {
		return err
	}
	if err := s.convs.SetLastMessage(ctx, conv.ID, msg.ID, now); err != nil {
		return err
	}
	conv.LastMessageID = msg.ID
	conv.LastMessageAt = &now
	s.notifier.Publish(ctx, events.ConversationChannel(conv.ID), domain.Notification{
		Type: domain.NotifyMessageCreated,
		Data: msg,
	})
	return nil
}

func (s *ConversationService) List(ctx context.Context, userID string, filter domain.ConversationListFilter, before time.Time, limit int64) ([]domain.ConversationSummary, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	out, err := s.convs.ListForUser(ctx, userID, filter, before, limit)
	if err != nil {
		return nil, domain.Internal("conversation list", err)
	}
	return out, nil
}

func (s *ConversationService) Accept(ctx context.Context, userID, convID string) error {
	return s.transition(ctx, userID, convID, domain.RequestStateAccepted)
}

func (s *ConversationService) Decline(ctx context.Context, userID, convID string) error {
	return s.transition(ctx, userID, convID, domain.RequestStateDeclined)
}

func (s *ConversationService) transition(ctx context.Context, userID, convID string, next domain.RequestState) error {
	st, err := s.getState(ctx, convID, userID)
	if err != nil {
		return err
	}
	if st.RequestState == next {
		return nil // already there; transitions are idempotent to retries
	}
	if !st.RequestState.CanTransition(next) {
		return domain.E(domain.CodeInvalidArgument, "illegal request state transition")
	}
	if err := s.convs.SetRequestState(ctx, convID, userID, next); err != nil {
		return domain.Internal("request state update", err)
	}

	conv, err := s.convs.GetByID(ctx, convID)
	if err == nil {
		s.notifier.Publish(ctx, events.UserChannel(conv.Other(userID)), domain.Notification{
			Type: domain.NotifyConversationUpdated,
			Data: map[string]any{"conversation_id": convID, "request_state": next},
		})
	}
	return nil
}

func (s *ConversationService) SetMuted(ctx context.Context, userID, convID string, muted bool) error {
	if _, err := s.getState(ctx, convID, userID); err != nil {
		return err
	}
	var at *time.Time
	if muted {
		now := time.Now().UTC()
		at = &now
	}
	if err := s.convs.SetMuted(ctx, convID, userID, at); err != nil {
		return domain.Internal("mute update", err)
	}
	return nil
}

func (s *ConversationService) SetArchived(ctx context.Context, userID, convID string, archived bool) error {
	if _, err := s.getState(ctx, convID, userID); err != nil {
		return err
	}
	var at *time.Time
	if archived {
		now := time.Now().UTC()
		at = &now
	}
	if err := s.convs.SetArchived(ctx, convID, userID, at); err != nil {
		return domain.Internal("archive update", err)
	}
	return nil
}

// MarkRead advances the read cursor and zeroes the unread count. With no
// explicit message id the conversation's last message is used.
func (s *ConversationService) MarkRead(ctx context.Context, userID, convID, messageID string) error {
	if _, err := s.getState(ctx, convID, userID); err != nil {
		return err
	}
	if messageID == "" {
		conv, err := s.convs.GetByID(ctx, convID)
		if err != nil {
			return domain.Internal("conversation read", err)
		}
		messageID = conv.LastMessageID
	}
	if err := s.convs.MarkRead(ctx, convID, userID, messageID, time.Now().UTC()); err != nil {
		return domain.Internal("read receipt", err)
	}
	return nil
}

// ResyncSnapshot is the combined state a reconnecting client rebuilds from:
// ephemeral notifications missed while offline are recovered here.
type ResyncSnapshot struct {
	Conversation *domain.Conversation     `json:"conversation"`
	Own          *domain.ParticipantState `json:"own_state"`
	Counterpart  domain.RequestState      `json:"counterpart_request_state"`
	Messages     []domain.Message         `json:"messages"`
}

func (s *ConversationService) Resync(ctx context.Context, userID, convID string) (*ResyncSnapshot, error) {
	st, err := s.getState(ctx, convID, userID)
	if err != nil {
		return nil, err
	}
	conv, err := s.convs.GetByID(ctx, convID)
	if err != nil {
		return nil, domain.Internal("conversation read", err)
	}
	other, err := s.convs.GetState(ctx, convID, conv.Other(userID))
	if err != nil {
		return nil, domain.Internal("counterpart state read", err)
	}
	msgs, err := s.msgs.List(ctx, convID, time.Time{}, time.Time{}, 50)
	if err != nil {
		return nil, domain.Internal("message page read", err)
	}
	return &ResyncSnapshot{
		Conversation: conv,
		Own:          st,
		Counterpart:  other.RequestState,
		Messages:     msgs,
	}, nil
}

func (s *ConversationService) getState(ctx context.Context, convID, userID string) (*domain.ParticipantState, error) {
	st, err := s.convs.GetState(ctx, convID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.NotFound("conversation not found")
	}
	if err != nil {
		return nil, domain.Internal("participant state read", err)
	}
	return st, nil
}
