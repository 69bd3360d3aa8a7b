package repository

import (
	"context"
	"errors"
	"time"

	"github.com/splits-network/messaging-service/internal/domain"
)

// Sentinels the adapters translate storage-level failures into. Services map
// these onto domain error codes.
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
)

type ConversationRepo interface {
	// Create inserts the conversation and both participant states together.
	// Returns ErrDuplicate when the canonical (pair, context) tuple already
	// exists; callers re-read the winner.
	Create(ctx context.Context, conv *domain.Conversation, caller, counterpart *domain.ParticipantState) error
	GetByID(ctx context.Context, id string) (*domain.Conversation, error)
	FindByPairContext(ctx context.Context, lo, hi string, cc domain.ConversationContext) (*domain.Conversation, error)
	SetLastMessage(ctx context.Context, convID, messageID string, at time.Time) error
	ListForUser(ctx context.Context, userID string, filter domain.ConversationListFilter, before time.Time, limit int64) ([]domain.ConversationSummary, error)

	GetState(ctx context.Context, convID, userID string) (*domain.ParticipantState, error)
	SetRequestState(ctx context.Context, convID, userID string, state domain.RequestState) error
	SetMuted(ctx context.Context, convID, userID string, at *time.Time) error
	SetArchived(ctx context.Context, convID, userID string, at *time.Time) error
	MarkRead(ctx context.Context, convID, userID, messageID string, at time.Time) error
	IncrementUnread(ctx context.Context, convID, userID string) error

	CountCreatedSince(ctx context.Context, since time.Time) (int64, error)
	CountStatesByRequest(ctx context.Context, state domain.RequestState) (int64, error)
}

type MessageRepo interface {
	// Insert relies on the partial unique index on (sender_id,
	// client_message_id); a retried send surfaces as ErrDuplicate.
	Insert(ctx context.Context, m *domain.Message) error
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	FindByClientToken(ctx context.Context, senderID, token string) (*domain.Message, error)
	List(ctx context.Context, convID string, after, before time.Time, limit int64) ([]domain.Message, error)
	CountInConversation(ctx context.Context, convID string) (int64, error)
	SetModerationFlag(ctx context.Context, messageID string, flag domain.ModerationFlag) error

	FindUnredactedBefore(ctx context.Context, cutoff time.Time, limit int64) ([]domain.Message, error)
	RedactByIDs(ctx context.Context, ids []string, reason string, at time.Time) (int64, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int64, error)
}

type AttachmentRepo interface {
	Insert(ctx context.Context, a *domain.Attachment) error
	GetByID(ctx context.Context, id string) (*domain.Attachment, error)
	// UpdateStatus is conditional on the current status so concurrent
	// transitions cannot regress the state machine. ErrNotFound when the
	// row is no longer in `from`.
	UpdateStatus(ctx context.Context, id string, from, to domain.AttachmentStatus, result domain.ScanResult) error
	MarkDeleted(ctx context.Context, id string, at time.Time) error
	FindAgedBefore(ctx context.Context, cutoff time.Time, limit int64) ([]domain.Attachment, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int64, error)
}

type ModerationRepo interface {
	InsertBlock(ctx context.Context, b *domain.UserBlock) error
	DeleteBlock(ctx context.Context, blockerID, blockedID string) error
	BlockedBetween(ctx context.Context, a, b string) (bool, error)

	InsertReport(ctx context.Context, r *domain.Report) error
	GetReport(ctx context.Context, id string) (*domain.Report, error)
	ListReports(ctx context.Context, status domain.ReportStatus, limit, offset int64) ([]domain.Report, error)
	SetReportStatus(ctx context.Context, id string, status domain.ReportStatus) error

	InsertAudit(ctx context.Context, a *domain.ModerationAudit) error
	ListAudit(ctx context.Context, limit, offset int64) ([]domain.ModerationAudit, error)
	PurgeAuditBefore(ctx context.Context, cutoff time.Time) (int64, error)

	CountBlocksSince(ctx context.Context, since time.Time) (int64, error)
	CountReportsSince(ctx context.Context, since time.Time) (int64, error)
}

type RetentionRepo interface {
	GetConfig(ctx context.Context) (*domain.RetentionConfig, error)
	StartRun(ctx context.Context, run *domain.RetentionRun) error
	FinishRun(ctx context.Context, run *domain.RetentionRun) error
	LastRun(ctx context.Context) (*domain.RetentionRun, error)
}

type OutboxRepo interface {
	Append(ctx context.Context, ev *domain.OutboxEvent) error
	FetchPending(ctx context.Context, limit int64) ([]domain.OutboxEvent, error)
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	IncrementAttempts(ctx context.Context, id string) error
}
