package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestStateTransitions(t *testing.T) {
	assert.True(t, RequestStateNone.CanTransition(RequestStatePending))
	assert.True(t, RequestStateNone.CanTransition(RequestStateAccepted))
	assert.True(t, RequestStatePending.CanTransition(RequestStateAccepted))
	assert.True(t, RequestStatePending.CanTransition(RequestStateDeclined))

	// accepted and declined are terminal
	assert.False(t, RequestStateAccepted.CanTransition(RequestStateDeclined))
	assert.False(t, RequestStateAccepted.CanTransition(RequestStatePending))
	assert.False(t, RequestStateDeclined.CanTransition(RequestStateAccepted))
	assert.False(t, RequestStateDeclined.CanTransition(RequestStatePending))
	assert.False(t, RequestStateNone.CanTransition(RequestStateDeclined))
}

func TestCanonicalPair(t *testing.T) {
	lo, hi := CanonicalPair("user-b", "user-a")
	assert.Equal(t, "user-a", lo)
	assert.Equal(t, "user-b", hi)

	lo2, hi2 := CanonicalPair("user-a", "user-b")
	assert.Equal(t, lo, lo2)
	assert.Equal(t, hi, hi2)
}

func TestConversationOther(t *testing.T) {
	c := &Conversation{ParticipantLo: "alice", ParticipantHi: "bob"}
	assert.Equal(t, "bob", c.Other("alice"))
	assert.Equal(t, "alice", c.Other("bob"))
	assert.True(t, c.HasParticipant("alice"))
	assert.True(t, c.HasParticipant("bob"))
	assert.False(t, c.HasParticipant("carol"))
}

func TestContextEmpty(t *testing.T) {
	assert.True(t, ConversationContext{}.Empty())
	assert.False(t, ConversationContext{JobID: "job-1"}.Empty())
}
