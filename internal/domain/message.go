package domain

import (
	"time"
	"unicode/utf8"
)

type MessageKind string

const (
	MessageKindUser   MessageKind = "user"
	MessageKindSystem MessageKind = "system"
)

// Message rows are append-only. Redaction nulls the body and stamps
// RedactedAt; moderation merges into Metadata. Rows are never hard-deleted.
type Message struct {
	ID              string         `bson:"_id" json:"id"`
	ConversationID  string         `bson:"conversation_id" json:"conversation_id"`
	SenderID        string         `bson:"sender_id" json:"sender_id"`
	Kind            MessageKind    `bson:"kind" json:"kind"`
	Body            *string        `bson:"body" json:"body"`
	AttachmentIDs   []string       `bson:"attachment_ids,omitempty" json:"attachment_ids,omitempty"`
	Metadata        map[string]any `bson:"metadata,omitempty" json:"metadata,omitempty"`
	ClientMessageID *string        `bson:"client_message_id,omitempty" json:"client_message_id,omitempty"`
	EditedAt        *time.Time     `bson:"edited_at,omitempty" json:"edited_at,omitempty"`
	RedactedAt      *time.Time     `bson:"redacted_at,omitempty" json:"redacted_at,omitempty"`
	RedactionReason string         `bson:"redaction_reason,omitempty" json:"redaction_reason,omitempty"`
	CreatedAt       time.Time      `bson:"created_at" json:"created_at"`
}

// Preview returns the body truncated to max runes, for event payloads.
func (m *Message) Preview(max int) string {
	if m.Body == nil {
		return ""
	}
	s := *m.Body
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

// ModerationFlag is the object merged into message metadata when the burst
// detector trips. Advisory only; never blocks a send.
type ModerationFlag struct {
	Flagged       bool      `json:"flagged" bson:"flagged"`
	Reason        string    `json:"reason" bson:"reason"`
	WindowSeconds int       `json:"window_seconds" bson:"window_seconds"`
	Threshold     int64     `json:"threshold" bson:"threshold"`
	Observed      int64     `json:"observed" bson:"observed"`
	FlaggedAt     time.Time `json:"flagged_at" bson:"flagged_at"`
}

const FlagReasonBurstSend = "burst_send"
