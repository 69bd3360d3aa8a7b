package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splits-network/messaging-service/internal/access"
	"github.com/splits-network/messaging-service/internal/domain"
)

// openDirectory authorizes everything; representation routing is driven by
// the reps map.
type openDirectory struct {
	reps map[string]*access.Representation
}

func (d *openDirectory) GetApplication(context.Context, string) (*access.Application, error) {
	return &access.Application{}, nil
}
func (d *openDirectory) GetJob(context.Context, string) (*access.Job, error) {
	return &access.Job{}, nil
}
func (d *openDirectory) GetCompany(context.Context, string) (*access.Company, error) {
	return &access.Company{}, nil
}
func (d *openDirectory) HasJobAssignment(context.Context, string, string) (bool, error) {
	return true, nil
}
func (d *openDirectory) HasApplicationForJob(context.Context, string, string) (bool, error) {
	return true, nil
}
func (d *openDirectory) IsOrgMember(context.Context, string, string) (bool, error) {
	return true, nil
}
func (d *openDirectory) ActiveRepresentation(_ context.Context, candidateID string) (*access.Representation, error) {
	return d.reps[candidateID], nil
}

type convFixture struct {
	svc      *ConversationService
	convs    *memConvRepo
	msgs     *memMsgRepo
	notifier *memNotifier
	outbox   *memOutbox
	dir      *openDirectory
}

func newConvFixture() *convFixture {
	f := &convFixture{
		convs:    newMemConvRepo(),
		msgs:     newMemMsgRepo(),
		notifier: &memNotifier{},
		outbox:   &memOutbox{},
		dir:      &openDirectory{reps: map[string]*access.Representation{}},
	}
	resolver := access.NewResolver(f.dir, testLogger())
	f.svc = NewConversationService(f.convs, f.msgs, resolver, f.notifier, f.outbox, testLogger())
	return f
}

func TestCreateConversation(t *testing.T) {
	f := newConvFixture()
	ctx := context.Background()

	res, err := f.svc.CreateOrFind(ctx, "recruiter", "candidate", domain.ConversationContext{JobID: "job-1"})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.False(t, res.Routed)
	assert.Equal(t, "candidate", res.Counterpart)

	// caller starts accepted, counterpart starts pending
	callerState, err := f.convs.GetState(ctx, res.Conversation.ID, "recruiter")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStateAccepted, callerState.RequestState)

	counterState, err := f.convs.GetState(ctx, res.Conversation.ID, "candidate")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatePending, counterState.RequestState)

	// counterpart gets the request notification
	reqs := f.notifier.byType(domain.NotifyConversationRequested)
	require.Len(t, reqs, 1)
	assert.Equal(t, "user:candidate", reqs[0].Channel)
}

func TestCreateConversationIdempotent(t *testing.T) {
	f := newConvFixture()
	ctx := context.Background()
	cc := domain.ConversationContext{JobID: "job-1"}

	first, err := f.svc.CreateOrFind(ctx, "recruiter", "candidate", cc)
	require.NoError(t, err)
	require.True(t, first.Created)

	// same pair, either direction, converges on one conversation
	second, err := f.svc.CreateOrFind(ctx, "candidate", "recruiter", cc)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Conversation.ID, second.Conversation.ID)

	// a different context is a different conversation
	third, err := f.svc.CreateOrFind(ctx, "recruiter", "candidate", domain.ConversationContext{JobID: "job-2"})
	require.NoError(t, err)
	assert.True(t, third.Created)
	assert.NotEqual(t, first.Conversation.ID, third.Conversation.ID)
}

func TestCreateConversationLostRaceReturnsWinner(t *testing.T) {
	f := newConvFixture()
	ctx := context.Background()
	cc := domain.ConversationContext{}

	winner, err := f.svc.CreateOrFind(ctx, "recruiter", "candidate", cc)
	require.NoError(t, err)

	// simulate losing the race: the lookup misses, the insert then hits the
	// unique index and the winner is re-read
	f.convs.findMisses = 1
	res, err := f.svc.CreateOrFind(ctx, "recruiter", "candidate", cc)
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, winner.Conversation.ID, res.Conversation.ID)
}

func TestCreateConversationSelfRejected(t *testing.T) {
	f := newConvFixture()
	_, err := f.svc.CreateOrFind(context.Background(), "alice", "alice", domain.ConversationContext{})
	assert.Equal(t, domain.CodeInvalidArgument, domain.CodeOf(err))
}

func TestCreateConversationRoutedToRecruiter(t *testing.T) {
	f := newConvFixture()
	f.dir.reps["candidate"] = &access.Representation{
		RecruiterID:         "recruiter",
		RecruiterName:       "Rhea",
		CandidateName:       "Casey",
		ProtectionExpiresAt: time.Now().UTC().Add(24 * time.Hour),
	}
	ctx := context.Background()

	res, err := f.svc.CreateOrFind(ctx, "hirer", "candidate", domain.ConversationContext{})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.True(t, res.Routed)
	assert.Equal(t, "recruiter", res.Counterpart)
	assert.True(t, res.Conversation.HasParticipant("recruiter"))
	assert.False(t, res.Conversation.HasParticipant("candidate"))

	// the rerouting is announced inside the conversation
	msgs, err := f.msgs.List(ctx, res.Conversation.ID, time.Time{}, time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.MessageKindSystem, msgs[0].Kind)
	assert.Contains(t, *msgs[0].Body, "Rhea")
}

func TestAcceptAndDecline(t *testing.T) {
	f := newConvFixture()
	ctx := context.Background()
	res, err := f.svc.CreateOrFind(ctx, "recruiter", "candidate", domain.ConversationContext{})
	require.NoError(t, err)
	convID := res.Conversation.ID

	require.NoError(t, f.svc.Accept(ctx, "candidate", convID))
	st, _ := f.convs.GetState(ctx, convID, "candidate")
	assert.Equal(t, domain.RequestStateAccepted, st.RequestState)

	// accepting again is a no-op
	require.NoError(t, f.svc.Accept(ctx, "candidate", convID))

	// accepted is terminal
	err = f.svc.Decline(ctx, "candidate", convID)
	assert.Equal(t, domain.CodeInvalidArgument, domain.CodeOf(err))
}

func TestDeclineIsTerminal(t *testing.T) {
	f := newConvFixture()
	ctx := context.Background()
	res, err := f.svc.CreateOrFind(ctx, "recruiter", "candidate", domain.ConversationContext{})
	require.NoError(t, err)

	require.NoError(t, f.svc.Decline(ctx, "candidate", res.Conversation.ID))
	err = f.svc.Accept(ctx, "candidate", res.Conversation.ID)
	assert.Equal(t, domain.CodeInvalidArgument, domain.CodeOf(err))
}

func TestTransitionUnknownConversation(t *testing.T) {
	f := newConvFixture()
	err := f.svc.Accept(context.Background(), "anyone", "missing")
	assert.Equal(t, domain.CodeNotFound, domain.CodeOf(err))
}

func TestMarkReadDefaultsToLastMessage(t *testing.T) {
	f := newConvFixture()
	ctx := context.Background()
	res, err := f.svc.CreateOrFind(ctx, "recruiter", "candidate", domain.ConversationContext{})
	require.NoError(t, err)
	convID := res.Conversation.ID
	require.NoError(t, f.convs.SetLastMessage(ctx, convID, "msg-42", time.Now().UTC()))

	require.NoError(t, f.svc.MarkRead(ctx, "recruiter", convID, ""))
	st, _ := f.convs.GetState(ctx, convID, "recruiter")
	assert.Equal(t, "msg-42", st.LastReadMessageID)
	assert.Zero(t, st.UnreadCount)
}

func TestResyncSnapshot(t *testing.T) {
	f := newConvFixture()
	ctx := context.Background()
	res, err := f.svc.CreateOrFind(ctx, "recruiter", "candidate", domain.ConversationContext{})
	require.NoError(t, err)

	snap, err := f.svc.Resync(ctx, "recruiter", res.Conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Conversation.ID, snap.Conversation.ID)
	assert.Equal(t, domain.RequestStateAccepted, snap.Own.RequestState)
	assert.Equal(t, domain.RequestStatePending, snap.Counterpart)

	// outsiders cannot resync
	_, err = f.svc.Resync(ctx, "stranger", res.Conversation.ID)
	assert.Equal(t, domain.CodeNotFound, domain.CodeOf(err))
}
