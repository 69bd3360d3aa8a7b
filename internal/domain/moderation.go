package domain

import "time"

// UserBlock prevents delivery in both directions between blocker and blocked.
type UserBlock struct {
	ID        string    `bson:"_id" json:"id"`
	BlockerID string    `bson:"blocker_id" json:"blocker_id"`
	BlockedID string    `bson:"blocked_id" json:"blocked_id"`
	Reason    string    `bson:"reason,omitempty" json:"reason,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

type ReportStatus string

const (
	ReportOpen      ReportStatus = "open"
	ReportActioned  ReportStatus = "actioned"
	ReportDismissed ReportStatus = "dismissed"
)

// Report evidence is a snapshot of message ids captured at report time, not
// a live query, so later redaction does not erase what was reported.
type Report struct {
	ID             string       `bson:"_id" json:"id"`
	ReporterID     string       `bson:"reporter_id" json:"reporter_id"`
	ReportedID     string       `bson:"reported_id" json:"reported_id"`
	ConversationID string       `bson:"conversation_id,omitempty" json:"conversation_id,omitempty"`
	Category       string       `bson:"category" json:"category"`
	Description    string       `bson:"description,omitempty" json:"description,omitempty"`
	EvidenceIDs    []string     `bson:"evidence_ids,omitempty" json:"evidence_ids,omitempty"`
	Status         ReportStatus `bson:"status" json:"status"`
	CreatedAt      time.Time    `bson:"created_at" json:"created_at"`
}

type ModerationAction string

const (
	ActionWarn             ModerationAction = "warn"
	ActionMuteUser         ModerationAction = "mute_user"
	ActionSuspendMessaging ModerationAction = "suspend_messaging"
	ActionBanUser          ModerationAction = "ban_user"
)

func (a ModerationAction) Valid() bool {
	switch a {
	case ActionWarn, ActionMuteUser, ActionSuspendMessaging, ActionBanUser:
		return true
	}
	return false
}

type ModerationAudit struct {
	ID        string           `bson:"_id" json:"id"`
	ActorID   string           `bson:"actor_id" json:"actor_id"`
	TargetID  string           `bson:"target_id" json:"target_id"`
	ReportID  string           `bson:"report_id,omitempty" json:"report_id,omitempty"`
	Action    ModerationAction `bson:"action" json:"action"`
	Note      string           `bson:"note,omitempty" json:"note,omitempty"`
	CreatedAt time.Time        `bson:"created_at" json:"created_at"`
}
