package domain

import "time"

// RetentionConfig is a singleton-like row; Defaults applies when no row has
// ever been written.
type RetentionConfig struct {
	MessageRetentionDays    int       `bson:"message_retention_days" json:"message_retention_days"`
	AttachmentRetentionDays int       `bson:"attachment_retention_days" json:"attachment_retention_days"`
	AuditRetentionDays      int       `bson:"audit_retention_days" json:"audit_retention_days"`
	UpdatedAt               time.Time `bson:"updated_at" json:"updated_at"`
}

func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		MessageRetentionDays:    730,
		AttachmentRetentionDays: 365,
		AuditRetentionDays:      365,
	}
}

type RetentionRunStatus string

const (
	RetentionRunning   RetentionRunStatus = "running"
	RetentionCompleted RetentionRunStatus = "completed"
	RetentionFailed    RetentionRunStatus = "failed"
)

// RetentionRun rows are append-only: created at job start, finalized exactly
// once. The trail is the source of truth for when retention last ran.
type RetentionRun struct {
	ID                 string             `bson:"_id" json:"id"`
	Status             RetentionRunStatus `bson:"status" json:"status"`
	MessagesRedacted   int64              `bson:"messages_redacted" json:"messages_redacted"`
	AttachmentsDeleted int64              `bson:"attachments_deleted" json:"attachments_deleted"`
	AuditRowsPurged    int64              `bson:"audit_rows_purged" json:"audit_rows_purged"`
	Error              string             `bson:"error,omitempty" json:"error,omitempty"`
	StartedAt          time.Time          `bson:"started_at" json:"started_at"`
	FinishedAt         *time.Time         `bson:"finished_at,omitempty" json:"finished_at,omitempty"`
}

const RedactionReasonRetention = "retention"
