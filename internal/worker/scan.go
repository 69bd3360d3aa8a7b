package worker

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/splits-network/messaging-service/internal/domain"
	"github.com/splits-network/messaging-service/internal/service"
)

// Scanner is the external content-scanning collaborator.
type Scanner interface {
	Scan(ctx context.Context, storageKey string) (domain.ScanResult, error)
}

// PassthroughScanner marks everything clean; the real scanning service
// plugs in behind the same interface.
type PassthroughScanner struct{}

func (PassthroughScanner) Scan(ctx context.Context, storageKey string) (domain.ScanResult, error) {
	return domain.ScanResultClean, nil
}

// ScanWorker consumes chat.attachment.scan_requested and moves attachments
// out of pending_scan.
type ScanWorker struct {
	attachments *service.AttachmentService
	scanner     Scanner
	log         *zap.SugaredLogger
}

func NewScanWorker(attachments *service.AttachmentService, scanner Scanner, log *zap.SugaredLogger) *ScanWorker {
	return &ScanWorker{attachments: attachments, scanner: scanner, log: log}
}

func (w *ScanWorker) Handle(ctx context.Context, d amqp.Delivery) error {
	var ev domain.Event
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if ev.Type != domain.EventAttachmentScanRequested {
		return nil
	}
	var payload domain.ScanRequestedPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if payload.AttachmentID == "" {
		return fmt.Errorf("payload missing attachment id")
	}

	result, err := w.scanner.Scan(ctx, payload.StorageKey)
	if err != nil {
		return fmt.Errorf("scan %s: %w", payload.AttachmentID, err)
	}
	if err := w.attachments.RecordScan(ctx, payload.AttachmentID, result); err != nil {
		return fmt.Errorf("record scan %s: %w", payload.AttachmentID, err)
	}
	w.log.Infow("attachment scanned", "attachment", payload.AttachmentID, "result", result)
	return nil
}
