package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/splits-network/messaging-service/internal/domain"
	"github.com/splits-network/messaging-service/internal/events"
	"github.com/splits-network/messaging-service/internal/metrics"
	"github.com/splits-network/messaging-service/internal/repository"
	"github.com/splits-network/messaging-service/internal/storage"
)

type RetentionService struct {
	retention   repository.RetentionRepo
	msgs        repository.MessageRepo
	attachments repository.AttachmentRepo
	moderation  repository.ModerationRepo
	blobs       storage.BlobStore
	notifier    events.Notifier
	batchSize   int64
	log         *zap.SugaredLogger
}

func NewRetentionService(
	retention repository.RetentionRepo,
	msgs repository.MessageRepo,
	attachments repository.AttachmentRepo,
	moderation repository.ModerationRepo,
	blobs storage.BlobStore,
	notifier events.Notifier,
	batchSize int64,
	log *zap.SugaredLogger,
) *RetentionService {
	if batchSize <= 0 {
		batchSize = 200
	}
	return &RetentionService{
		retention:   retention,
		msgs:        msgs,
		attachments: attachments,
		moderation:  moderation,
		blobs:       blobs,
		notifier:    notifier,
		batchSize:   batchSize,
		log:         log,
	}
}

// Run executes one retention pass: redact aged messages, delete aged
// attachment blobs, purge aged audit rows. Every loop terminates on an
// empty page, so total work is bounded by the actual backlog and an
// interrupted run picks up where it stopped (already-redacted rows fall out
// of the filter). The RetentionRun row is finalized exactly once.
func (s *RetentionService) Run(ctx context.Context) (*domain.RetentionRun, error) {
	run := &domain.RetentionRun{
		ID:        uuid.NewString(),
		Status:    domain.RetentionRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := s.retention.StartRun(ctx, run); err != nil {
		return nil, domain.Internal("retention run insert", err)
	}

	cfg, err := s.retention.GetConfig(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		defaults := domain.DefaultRetentionConfig()
		cfg = &defaults
	} else if err != nil {
		return s.fail(ctx, run, err)
	}

	now := time.Now().UTC()
	msgCutoff := now.AddDate(0, 0, -cfg.MessageRetentionDays)
	attCutoff := now.AddDate(0, 0, -cfg.AttachmentRetentionDays)
	auditCutoff := now.AddDate(0, 0, -cfg.AuditRetentionDays)

	if run.MessagesRedacted, err = s.redactMessages(ctx, msgCutoff); err != nil {
		return s.fail(ctx, run, err)
	}
	if run.AttachmentsDeleted, err = s.deleteAttachments(ctx, attCutoff); err != nil {
		return s.fail(ctx, run, err)
	}
	if run.AuditRowsPurged, err = s.moderation.PurgeAuditBefore(ctx, auditCutoff); err != nil {
		return s.fail(ctx, run, err)
	}

	run.Status = domain.RetentionCompleted
	finished := time.Now().UTC()
	run.FinishedAt = &finished
	if err := s.retention.FinishRun(ctx, run); err != nil {
		return nil, domain.Internal("retention run finalize", err)
	}
	s.log.Infow("retention run completed",
		"run", run.ID,
		"messages_redacted", run.MessagesRedacted,
		"attachments_deleted", run.AttachmentsDeleted,
		"audit_purged", run.AuditRowsPurged,
	)
	return run, nil
}

func (s *RetentionService) redactMessages(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	for {
		page, err := s.msgs.FindUnredactedBefore(ctx, cutoff, s.batchSize)
		if err != nil {
			return total, err
		}
		if len(page) == 0 {
			return total, nil
		}

		ids := make([]string, 0, len(page))
		convs := map[string]struct{}{}
		for _, m := range page {
			ids = append(ids, m.ID)
			convs[m.ConversationID] = struct{}{}
		}
		now := time.Now().UTC()
		n, err := s.msgs.RedactByIDs(ctx, ids, domain.RedactionReasonRetention, now)
		if err != nil {
			return total, err
		}
		total += n
		metrics.RetentionRedacted.Add(float64(n))

		for convID := range convs {
			s.notifier.Publish(ctx, events.ConversationChannel(convID), domain.Notification{
				Type: domain.NotifyMessageUpdated,
				Data: map[string]any{"conversation_id": convID, "reason": domain.RedactionReasonRetention},
			})
		}
	}
}

func (s *RetentionService) deleteAttachments(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	for {
		page, err := s.attachments.FindAgedBefore(ctx, cutoff, s.batchSize)
		if err != nil {
			return total, err
		}
		if len(page) == 0 {
			return total, nil
		}
		for _, att := range page {
			// Blob removal is best-effort: a storage hiccup must not
			// abort the batch, and the row is marked deleted either way.
			if err := s.blobs.Delete(ctx, att.StorageKey); err != nil {
				s.log.Warnw("blob delete failed", "attachment", att.ID, "key", att.StorageKey, "err", err)
			}
			if err := s.attachments.MarkDeleted(ctx, att.ID, time.Now().UTC()); err != nil {
				return total, err
			}
			total++
			metrics.RetentionAttachmentsDeleted.Inc()
			s.notifier.Publish(ctx, events.ConversationChannel(att.ConversationID), domain.Notification{
				Type: domain.NotifyAttachmentUpdated,
				Data: map[string]any{"attachment_id": att.ID, "status": domain.AttachmentDeleted},
			})
		}
	}
}

func (s *RetentionService) fail(ctx context.Context, run *domain.RetentionRun, cause error) (*domain.RetentionRun, error) {
	run.Status = domain.RetentionFailed
	run.Error = cause.Error()
	finished := time.Now().UTC()
	run.FinishedAt = &finished
	if err := s.retention.FinishRun(ctx, run); err != nil {
		s.log.Errorw("retention run finalize failed", "run", run.ID, "err", err)
	}
	s.log.Errorw("retention run failed", "run", run.ID, "err", cause)
	return run, domain.Internal("retention run", cause)
}
