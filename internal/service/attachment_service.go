package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/splits-network/messaging-service/internal/domain"
	"github.com/splits-network/messaging-service/internal/events"
	"github.com/splits-network/messaging-service/internal/repository"
	"github.com/splits-network/messaging-service/internal/storage"
)

type AttachmentService struct {
	attachments repository.AttachmentRepo
	convs       repository.ConversationRepo
	blobs       storage.BlobStore
	notifier    events.Notifier
	outbox      events.Outbox
	presignTTL  time.Duration
	log         *zap.SugaredLogger
}

func NewAttachmentService(
	attachments repository.AttachmentRepo,
	convs repository.ConversationRepo,
	blobs storage.BlobStore,
	notifier events.Notifier,
	outbox events.Outbox,
	presignTTL time.Duration,
	log *zap.SugaredLogger,
) *AttachmentService {
	return &AttachmentService{
		attachments: attachments,
		convs:       convs,
		blobs:       blobs,
		notifier:    notifier,
		outbox:      outbox,
		presignTTL:  presignTTL,
		log:         log,
	}
}

type InitInput struct {
	ConversationID string `json:"conversation_id"`
	Filename       string `json:"filename"`
	ContentType    string `json:"content_type"`
	Size           int64  `json:"size"`
}

type InitResult struct {
	Attachment *domain.Attachment `json:"attachment"`
	UploadURL  string             `json:"upload_url"`
}

// Init creates the row in pending_upload and hands back a presigned upload
// URL. Requires the uploader to be an accepted participant and the
// counterpart to have accepted the request (no attachments on pending
// conversations).
func (s *AttachmentService) Init(ctx context.Context, userID string, in InitInput) (*InitResult, error) {
	if in.Filename == "" || in.ContentType == "" {
		return nil, domain.InvalidArg("filename and content type required")
	}

	conv, err := s.convs.GetByID(ctx, in.ConversationID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.NotFound("conversation not found")
	}
	if err != nil {
		return nil, domain.Internal("conversation read", err)
	}

	st, err := s.convs.GetState(ctx, conv.ID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.AccessDenied("not a participant in this conversation")
	}
	if err != nil {
		return nil, domain.Internal("participant state read", err)
	}
	switch st.RequestState {
	case domain.RequestStatePending:
		return nil, domain.E(domain.CodeRequestNotAccepted, "accept the conversation request first")
	case domain.RequestStateDeclined:
		return nil, domain.E(domain.CodeConversationDeclined, "conversation was declined")
	}

	other, err := s.convs.GetState(ctx, conv.ID, conv.Other(userID))
	if err != nil {
		return nil, domain.Internal("counterpart state read", err)
	}
	if other.RequestState == domain.RequestStatePending {
		return nil, domain.E(domain.CodeAttachmentsNotAllowed, "attachments are not allowed until the request is accepted")
	}

	now := time.Now().UTC()
	att := &domain.Attachment{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		UploaderID:     userID,
		Filename:       in.Filename,
		ContentType:    in.ContentType,
		Size:           in.Size,
		Status:         domain.AttachmentPendingUpload,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	att.StorageKey = fmt.Sprintf("conversations/%s/%s_%s", conv.ID, att.ID, in.Filename)

	if err := s.attachments.Insert(ctx, att); err != nil {
		return nil, domain.Internal("attachment insert", err)
	}
	url, err := s.blobs.PresignUpload(ctx, att.StorageKey, in.ContentType, s.presignTTL)
	if err != nil {
		return nil, domain.Internal("upload url", err)
	}
	return &InitResult{Attachment: att, UploadURL: url}, nil
}

// Complete transitions pending_upload → pending_scan and enqueues the scan
// through the outbox. Only the original uploader may complete.
func (s *AttachmentService) Complete(ctx context.Context, userID, attachmentID string) (*domain.Attachment, error) {
	att, err := s.get(ctx, attachmentID)
	if err != nil {
		return nil, err
	}
	if att.UploaderID != userID {
		return nil, domain.AccessDenied("only the uploader may complete an upload")
	}
	if !att.Status.CanTransition(domain.AttachmentPendingScan) {
		return nil, domain.E(domain.CodeInvalidArgument, "attachment is not awaiting upload")
	}
	if err := s.attachments.UpdateStatus(ctx, att.ID, domain.AttachmentPendingUpload, domain.AttachmentPendingScan, ""); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.E(domain.CodeInvalidArgument, "attachment is not awaiting upload")
		}
		return nil, domain.Internal("attachment transition", err)
	}
	att.Status = domain.AttachmentPendingScan

	s.outbox.Emit(ctx, domain.EventAttachmentScanRequested, domain.ScanRequestedPayload{
		AttachmentID:   att.ID,
		ConversationID: att.ConversationID,
		StorageKey:     att.StorageKey,
	})
	s.notifier.Publish(ctx, events.ConversationChannel(att.ConversationID), domain.Notification{
		Type: domain.NotifyAttachmentUpdated,
		Data: att,
	})
	return att, nil
}

// RecordScan is called by the scan worker. Clean results make the blob
// available; infected ones block it. Notifies the conversation either way.
func (s *AttachmentService) RecordScan(ctx context.Context, attachmentID string, result domain.ScanResult) error {
	att, err := s.get(ctx, attachmentID)
	if err != nil {
		return err
	}
	next := domain.AttachmentAvailable
	if result == domain.ScanResultInfected {
		next = domain.AttachmentBlocked
	}
	if !att.Status.CanTransition(next) {
		// A replayed scan event after the transition already happened;
		// at-least-once delivery makes this normal.
		return nil
	}
	if err := s.attachments.UpdateStatus(ctx, att.ID, domain.AttachmentPendingScan, next, result); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return domain.Internal("scan result update", err)
	}
	att.Status = next
	att.ScanResult = result
	s.notifier.Publish(ctx, events.ConversationChannel(att.ConversationID), domain.Notification{
		Type: domain.NotifyAttachmentUpdated,
		Data: att,
	})
	return nil
}

// DownloadURL re-validates conversation access: attachments never outlive
// participant access control, and the uploader alone is not enough.
func (s *AttachmentService) DownloadURL(ctx context.Context, userID, attachmentID string) (string, error) {
	att, err := s.get(ctx, attachmentID)
	if err != nil {
		return "", err
	}
	st, err := s.convs.GetState(ctx, att.ConversationID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", domain.AccessDenied("not a participant in this conversation")
	}
	if err != nil {
		return "", domain.Internal("participant state read", err)
	}
	if st.RequestState == domain.RequestStateDeclined {
		return "", domain.E(domain.CodeConversationDeclined, "conversation was declined")
	}
	if att.Status != domain.AttachmentAvailable {
		return "", domain.NotFound("attachment not available")
	}
	url, err := s.blobs.PresignDownload(ctx, att.StorageKey, s.presignTTL)
	if err != nil {
		return "", domain.Internal("download url", err)
	}
	return url, nil
}

func (s *AttachmentService) get(ctx context.Context, id string) (*domain.Attachment, error) {
	att, err := s.attachments.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.NotFound("attachment not found")
	}
	if err != nil {
		return nil, domain.Internal("attachment read", err)
	}
	return att, nil
}
