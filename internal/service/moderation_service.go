package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/splits-network/messaging-service/internal/domain"
	"github.com/splits-network/messaging-service/internal/repository"
)

type ModerationService struct {
	moderation  repository.ModerationRepo
	convs       repository.ConversationRepo
	msgs        repository.MessageRepo
	attachments repository.AttachmentRepo
	retention   repository.RetentionRepo
	log         *zap.SugaredLogger
}

func NewModerationService(
	moderation repository.ModerationRepo,
	convs repository.ConversationRepo,
	msgs repository.MessageRepo,
	attachments repository.AttachmentRepo,
	retention repository.RetentionRepo,
	log *zap.SugaredLogger,
) *ModerationService {
	return &ModerationService{
		moderation:  moderation,
		convs:       convs,
		msgs:        msgs,
		attachments: attachments,
		retention:   retention,
		log:         log,
	}
}

func (s *ModerationService) Block(ctx context.Context, blockerID, blockedID, reason string) error {
	if blockedID == "" || blockedID == blockerID {
		return domain.InvalidArg("invalid block target")
	}
	b := &domain.UserBlock{
		ID:        uuid.NewString(),
		BlockerID: blockerID,
		BlockedID: blockedID,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
	err := s.moderation.InsertBlock(ctx, b)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil // blocking twice is a no-op
	}
	if err != nil {
		return domain.Internal("block insert", err)
	}
	return nil
}

func (s *ModerationService) Unblock(ctx context.Context, blockerID, blockedID string) error {
	err := s.moderation.DeleteBlock(ctx, blockerID, blockedID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.NotFound("block not found")
	}
	if err != nil {
		return domain.Internal("block delete", err)
	}
	return nil
}

type ReportInput struct {
	ReportedID     string   `json:"reported_id"`
	ConversationID string   `json:"conversation_id"`
	Category       string   `json:"category"`
	Description    string   `json:"description"`
	EvidenceIDs    []string `json:"evidence_ids"`
}

// Report captures the evidence message ids as a snapshot at report time so
// later redaction cannot erase what was reported.
func (s *ModerationService) Report(ctx context.Context, reporterID string, in ReportInput) (*domain.Report, error) {
	if in.ReportedID == "" || in.Category == "" {
		return nil, domain.InvalidArg("reported user and category required")
	}
	r := &domain.Report{
		ID:             uuid.NewString(),
		ReporterID:     reporterID,
		ReportedID:     in.ReportedID,
		ConversationID: in.ConversationID,
		Category:       in.Category,
		Description:    in.Description,
		EvidenceIDs:    in.EvidenceIDs,
		Status:         domain.ReportOpen,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.moderation.InsertReport(ctx, r); err != nil {
		return nil, domain.Internal("report insert", err)
	}
	return r, nil
}

func (s *ModerationService) ListReports(ctx context.Context, status domain.ReportStatus, limit, offset int64) ([]domain.Report, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	out, err := s.moderation.ListReports(ctx, status, limit, offset)
	if err != nil {
		return nil, domain.Internal("report list", err)
	}
	return out, nil
}

// ActOnReport records the moderation action in the audit trail and marks
// the report actioned. Enforcement of the action itself (muting, banning)
// belongs to the identity services.
func (s *ModerationService) ActOnReport(ctx context.Context, actorID, reportID string, action domain.ModerationAction, note string) (*domain.ModerationAudit, error) {
	if !action.Valid() {
		return nil, domain.InvalidArg("unknown moderation action")
	}
	report, err := s.moderation.GetReport(ctx, reportID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.NotFound("report not found")
	}
	if err != nil {
		return nil, domain.Internal("report read", err)
	}

	audit := &domain.ModerationAudit{
		ID:        uuid.NewString(),
		ActorID:   actorID,
		TargetID:  report.ReportedID,
		ReportID:  report.ID,
		Action:    action,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.moderation.InsertAudit(ctx, audit); err != nil {
		return nil, domain.Internal("audit insert", err)
	}
	if err := s.moderation.SetReportStatus(ctx, report.ID, domain.ReportActioned); err != nil {
		return nil, domain.Internal("report status update", err)
	}
	return audit, nil
}

func (s *ModerationService) ListAudit(ctx context.Context, limit, offset int64) ([]domain.ModerationAudit, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	out, err := s.moderation.ListAudit(ctx, limit, offset)
	if err != nil {
		return nil, domain.Internal("audit list", err)
	}
	return out, nil
}

// AdminMetrics is the rolling-window snapshot surfaced to administrators.
type AdminMetrics struct {
	WindowDays       int                  `json:"window_days"`
	Messages         int64                `json:"messages"`
	Conversations    int64                `json:"conversations"`
	Reports          int64                `json:"reports"`
	Blocks           int64                `json:"blocks"`
	Attachments      int64                `json:"attachments"`
	PendingRequests  int64                `json:"pending_requests"`
	DeclinedRequests int64                `json:"declined_requests"`
	LastRetentionRun *domain.RetentionRun `json:"last_retention_run,omitempty"`
}

func (s *ModerationService) Metrics(ctx context.Context, windowDays int) (*AdminMetrics, error) {
	if windowDays <= 0 {
		windowDays = 30
	}
	since := time.Now().UTC().AddDate(0, 0, -windowDays)
	m := &AdminMetrics{WindowDays: windowDays}

	var err error
	if m.Messages, err = s.msgs.CountCreatedSince(ctx, since); err != nil {
		return nil, domain.Internal("message count", err)
	}
	if m.Conversations, err = s.convs.CountCreatedSince(ctx, since); err != nil {
		return nil, domain.Internal("conversation count", err)
	}
	if m.Reports, err = s.moderation.CountReportsSince(ctx, since); err != nil {
		return nil, domain.Internal("report count", err)
	}
	if m.Blocks, err = s.moderation.CountBlocksSince(ctx, since); err != nil {
		return nil, domain.Internal("block count", err)
	}
	if m.Attachments, err = s.attachments.CountCreatedSince(ctx, since); err != nil {
		return nil, domain.Internal("attachment count", err)
	}
	if m.PendingRequests, err = s.convs.CountStatesByRequest(ctx, domain.RequestStatePending); err != nil {
		return nil, domain.Internal("pending count", err)
	}
	if m.DeclinedRequests, err = s.convs.CountStatesByRequest(ctx, domain.RequestStateDeclined); err != nil {
		return nil, domain.Internal("declined count", err)
	}
	run, err := s.retention.LastRun(ctx)
	if err == nil {
		m.LastRetentionRun = run
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, domain.Internal("retention run read", err)
	}
	return m, nil
}
