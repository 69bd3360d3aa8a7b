package domain

import (
	"time"
)

// RequestState is the accept/decline handshake gating whether a conversation
// is live for a given participant.
type RequestState string

const (
	RequestStateNone     RequestState = "none"
	RequestStatePending  RequestState = "pending"
	RequestStateAccepted RequestState = "accepted"
	RequestStateDeclined RequestState = "declined"
)

var requestTransitions = map[RequestState][]RequestState{
	RequestStateNone:    {RequestStatePending, RequestStateAccepted},
	RequestStatePending: {RequestStateAccepted, RequestStateDeclined},
}

// CanTransition reports whether moving from s to next is a legal handshake
// step. Accepted and declined are terminal.
func (s RequestState) CanTransition(next RequestState) bool {
	for _, t := range requestTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// ConversationContext is the optional business anchor a conversation hangs
// off. Unset fields are stored as empty strings so the uniqueness index
// treats "no context" as its own distinct tuple.
type ConversationContext struct {
	ApplicationID string `bson:"application_id" json:"application_id,omitempty"`
	JobID         string `bson:"job_id" json:"job_id,omitempty"`
	CompanyID     string `bson:"company_id" json:"company_id,omitempty"`
}

func (c ConversationContext) Empty() bool {
	return c.ApplicationID == "" && c.JobID == "" && c.CompanyID == ""
}

type Conversation struct {
	ID            string              `bson:"_id" json:"id"`
	ParticipantLo string              `bson:"participant_lo" json:"participant_lo"`
	ParticipantHi string              `bson:"participant_hi" json:"participant_hi"`
	Context       ConversationContext `bson:"context" json:"context"`
	LastMessageID string              `bson:"last_message_id,omitempty" json:"last_message_id,omitempty"`
	LastMessageAt *time.Time          `bson:"last_message_at,omitempty" json:"last_message_at,omitempty"`
	CreatedAt     time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time           `bson:"updated_at" json:"updated_at"`
}

// CanonicalPair sorts a participant pair so that one unordered pair always
// maps to one (lo, hi) tuple.
func CanonicalPair(a, b string) (lo, hi string) {
	if a < b {
		return a, b
	}
	return b, a
}

// Other returns the counterpart of userID in the conversation.
func (c *Conversation) Other(userID string) string {
	if c.ParticipantLo == userID {
		return c.ParticipantHi
	}
	return c.ParticipantLo
}

func (c *Conversation) HasParticipant(userID string) bool {
	return c.ParticipantLo == userID || c.ParticipantHi == userID
}

// ParticipantState is the per-user, per-conversation record of the request
// handshake plus mute/archive/read status. Owned by the participant it
// belongs to; only the message pipeline touches it on their behalf (unread
// increments).
type ParticipantState struct {
	ConversationID    string       `bson:"conversation_id" json:"conversation_id"`
	UserID            string       `bson:"user_id" json:"user_id"`
	RequestState      RequestState `bson:"request_state" json:"request_state"`
	MutedAt           *time.Time   `bson:"muted_at,omitempty" json:"muted_at,omitempty"`
	ArchivedAt        *time.Time   `bson:"archived_at,omitempty" json:"archived_at,omitempty"`
	LastReadAt        *time.Time   `bson:"last_read_at,omitempty" json:"last_read_at,omitempty"`
	LastReadMessageID string       `bson:"last_read_message_id,omitempty" json:"last_read_message_id,omitempty"`
	UnreadCount       int64        `bson:"unread_count" json:"unread_count"`
	CreatedAt         time.Time    `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time    `bson:"updated_at" json:"updated_at"`
}

func (p *ParticipantState) Archived() bool { return p.ArchivedAt != nil }
func (p *ParticipantState) Muted() bool    { return p.MutedAt != nil }

// ConversationListFilter selects which slice of the inbox a listing returns.
type ConversationListFilter string

const (
	FilterInbox    ConversationListFilter = "inbox"
	FilterRequests ConversationListFilter = "requests"
	FilterArchived ConversationListFilter = "archived"
)

// ConversationSummary pairs a conversation with the viewer's own state for
// list endpoints.
type ConversationSummary struct {
	Conversation Conversation     `json:"conversation"`
	State        ParticipantState `json:"state"`
}
