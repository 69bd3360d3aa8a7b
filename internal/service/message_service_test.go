package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splits-network/messaging-service/internal/domain"
)

type msgFixture struct {
	svc      *MessageService
	convs    *memConvRepo
	msgs     *memMsgRepo
	mod      *memModRepo
	notifier *memNotifier
	outbox   *memOutbox
	convID   string
}

// newMsgFixture seeds one conversation between alice (accepted, the opener)
// and bob (pending).
func newMsgFixture(t *testing.T) *msgFixture {
	t.Helper()
	f := &msgFixture{
		convs:    newMemConvRepo(),
		msgs:     newMemMsgRepo(),
		mod:      newMemModRepo(),
		notifier: &memNotifier{},
		outbox:   &memOutbox{},
	}
	f.svc = NewMessageService(f.convs, f.msgs, f.mod, f.notifier, f.outbox, testLogger())

	now := time.Now().UTC()
	lo, hi := domain.CanonicalPair("alice", "bob")
	conv := &domain.Conversation{ID: "conv-1", ParticipantLo: lo, ParticipantHi: hi, CreatedAt: now, UpdatedAt: now}
	err := f.convs.Create(context.Background(), conv,
		&domain.ParticipantState{ConversationID: "conv-1", UserID: "alice", RequestState: domain.RequestStateAccepted},
		&domain.ParticipantState{ConversationID: "conv-1", UserID: "bob", RequestState: domain.RequestStatePending},
	)
	require.NoError(t, err)
	f.convID = "conv-1"
	return f
}

func (f *msgFixture) acceptBob(t *testing.T) {
	t.Helper()
	require.NoError(t, f.convs.SetRequestState(context.Background(), f.convID, "bob", domain.RequestStateAccepted))
}

func TestSendFirstContactMessage(t *testing.T) {
	f := newMsgFixture(t)
	ctx := context.Background()

	msg, err := f.svc.Send(ctx, "alice", SendInput{ConversationID: f.convID, Body: "hello bob"})
	require.NoError(t, err)
	assert.Equal(t, "hello bob", *msg.Body)
	assert.Equal(t, domain.MessageKindUser, msg.Kind)

	// recipient unread count moves, sender's does not
	bobState, _ := f.convs.GetState(ctx, f.convID, "bob")
	assert.EqualValues(t, 1, bobState.UnreadCount)
	aliceState, _ := f.convs.GetState(ctx, f.convID, "alice")
	assert.EqualValues(t, 0, aliceState.UnreadCount)

	// durable event goes through the outbox with a preview
	evs := f.outbox.byType(domain.EventMessageCreated)
	require.Len(t, evs, 1)
	payload := evs[0].Payload.(domain.MessageCreatedPayload)
	assert.Equal(t, msg.ID, payload.MessageID)
	assert.Equal(t, "bob", payload.RecipientID)
	assert.Equal(t, "hello bob", payload.Preview)
}

func TestSendThrottledUntilAccepted(t *testing.T) {
	f := newMsgFixture(t)
	ctx := context.Background()

	_, err := f.svc.Send(ctx, "alice", SendInput{ConversationID: f.convID, Body: "first"})
	require.NoError(t, err)

	// one message while the request is pending, then wait
	_, err = f.svc.Send(ctx, "alice", SendInput{ConversationID: f.convID, Body: "second"})
	assert.Equal(t, domain.CodeRequestThrottled, domain.CodeOf(err))

	f.acceptBob(t)
	_, err = f.svc.Send(ctx, "alice", SendInput{ConversationID: f.convID, Body: "second"})
	assert.NoError(t, err)
}

func TestSendPendingSenderMustAcceptFirst(t *testing.T) {
	f := newMsgFixture(t)

	_, err := f.svc.Send(context.Background(), "bob", SendInput{ConversationID: f.convID, Body: "replying early"})
	assert.Equal(t, domain.CodeRequestNotAccepted, domain.CodeOf(err))
}

func TestSendDeclinedConversation(t *testing.T) {
	f := newMsgFixture(t)
	ctx := context.Background()
	require.NoError(t, f.convs.SetRequestState(ctx, f.convID, "bob", domain.RequestStateDeclined))

	_, err := f.svc.Send(ctx, "alice", SendInput{ConversationID: f.convID, Body: "anyone there?"})
	assert.Equal(t, domain.CodeConversationDeclined, domain.CodeOf(err))
}

func TestSendBlockedEitherDirection(t *testing.T) {
	ctx := context.Background()

	f := newMsgFixture(t)
	f.acceptBob(t)
	require.NoError(t, f.mod.InsertBlock(ctx, &domain.UserBlock{ID: "b1", BlockerID: "bob", BlockedID: "alice"}))
	_, err := f.svc.Send(ctx, "alice", SendInput{ConversationID: f.convID, Body: "hi"})
	assert.Equal(t, domain.CodeDeliveryBlocked, domain.CodeOf(err))

	// blocker cannot send either
	f2 := newMsgFixture(t)
	f2.acceptBob(t)
	require.NoError(t, f2.mod.InsertBlock(ctx, &domain.UserBlock{ID: "b2", BlockerID: "alice", BlockedID: "bob"}))
	_, err = f2.svc.Send(ctx, "alice", SendInput{ConversationID: f2.convID, Body: "hi"})
	assert.Equal(t, domain.CodeDeliveryBlocked, domain.CodeOf(err))
}

func TestSendRecipientArchived(t *testing.T) {
	f := newMsgFixture(t)
	ctx := context.Background()
	f.acceptBob(t)
	now := time.Now().UTC()
	require.NoError(t, f.convs.SetArchived(ctx, f.convID, "bob", &now))

	_, err := f.svc.Send(ctx, "alice", SendInput{ConversationID: f.convID, Body: "hi"})
	assert.Equal(t, domain.CodeRecipientArchived, domain.CodeOf(err))
}

func TestSendAttachmentsBlockedWhilePending(t *testing.T) {
	f := newMsgFixture(t)

	_, err := f.svc.Send(context.Background(), "alice", SendInput{
		ConversationID: f.convID,
		Body:           "see attached",
		AttachmentIDs:  []string{"att-1"},
	})
	assert.Equal(t, domain.CodeAttachmentsNotAllowed, domain.CodeOf(err))
}

func TestSendIdempotentRetry(t *testing.T) {
	f := newMsgFixture(t)
	ctx := context.Background()
	f.acceptBob(t)

	in := SendInput{ConversationID: f.convID, Body: "only once", ClientMessageID: "token-1"}
	first, err := f.svc.Send(ctx, "alice", in)
	require.NoError(t, err)

	retry, err := f.svc.Send(ctx, "alice", in)
	require.NoError(t, err)
	assert.Equal(t, first.ID, retry.ID)

	count, _ := f.msgs.CountInConversation(ctx, f.convID)
	assert.EqualValues(t, 1, count)

	// the retry does not double the recipient's unread count
	bobState, _ := f.convs.GetState(ctx, f.convID, "bob")
	assert.EqualValues(t, 1, bobState.UnreadCount)
}

func TestSendNonParticipant(t *testing.T) {
	f := newMsgFixture(t)
	_, err := f.svc.Send(context.Background(), "mallory", SendInput{ConversationID: f.convID, Body: "hi"})
	assert.Equal(t, domain.CodeAccessDenied, domain.CodeOf(err))
}

func TestSendEmptyMessage(t *testing.T) {
	f := newMsgFixture(t)
	_, err := f.svc.Send(context.Background(), "alice", SendInput{ConversationID: f.convID})
	assert.Equal(t, domain.CodeInvalidArgument, domain.CodeOf(err))
}

func TestListRequiresParticipation(t *testing.T) {
	f := newMsgFixture(t)
	ctx := context.Background()
	f.acceptBob(t)
	_, err := f.svc.Send(ctx, "alice", SendInput{ConversationID: f.convID, Body: "one"})
	require.NoError(t, err)

	msgs, err := f.svc.List(ctx, "bob", f.convID, time.Time{}, time.Time{}, 10)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	_, err = f.svc.List(ctx, "mallory", f.convID, time.Time{}, time.Time{}, 10)
	assert.Equal(t, domain.CodeNotFound, domain.CodeOf(err))
}
