package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Ephemeral notification types, published on conv:<id> / user:<id> channels.
// Best-effort; clients resync from durable state on reconnect.
const (
	NotifyConversationRequested = "conversation.requested"
	NotifyConversationUpdated   = "conversation.updated"
	NotifyMessageCreated        = "message.created"
	NotifyMessageUpdated        = "message.updated"
	NotifyAttachmentUpdated     = "attachment.updated"
)

// Durable domain event types, routed through the outbox to the topic
// exchange. Consumers must be idempotent; delivery is at-least-once.
const (
	EventMessageCreated          = "chat.message.created"
	EventAttachmentScanRequested = "chat.attachment.scan_requested"
)

const EventSource = "messaging-service"

// Event is the envelope every durable event ships in. The random ID lets
// idempotent consumers deduplicate replays.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Source     string          `json:"source"`
	Payload    json.RawMessage `json:"payload"`
}

func NewEvent(eventType string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Source:     EventSource,
		Payload:    raw,
	}, nil
}

type MessageCreatedPayload struct {
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	RecipientID    string    `json:"recipient_id"`
	Preview        string    `json:"preview"`
	CreatedAt      time.Time `json:"created_at"`
}

type ScanRequestedPayload struct {
	AttachmentID   string `json:"attachment_id"`
	ConversationID string `json:"conversation_id"`
	StorageKey     string `json:"storage_key"`
}

// OutboxEvent is the persisted form of an Event awaiting drain.
type OutboxEvent struct {
	ID          string     `bson:"_id" json:"id"`
	Type        string     `bson:"type" json:"type"`
	Body        []byte     `bson:"body" json:"-"`
	Delivered   bool       `bson:"delivered" json:"delivered"`
	Attempts    int        `bson:"attempts" json:"attempts"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	DeliveredAt *time.Time `bson:"delivered_at,omitempty" json:"delivered_at,omitempty"`
}

// Notification is the ephemeral pub/sub payload.
type Notification struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}
