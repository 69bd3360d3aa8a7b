package domain

import "time"

type AttachmentStatus string

const (
	AttachmentPendingUpload AttachmentStatus = "pending_upload"
	AttachmentPendingScan   AttachmentStatus = "pending_scan"
	AttachmentAvailable     AttachmentStatus = "available"
	AttachmentBlocked       AttachmentStatus = "blocked"
	AttachmentDeleted       AttachmentStatus = "deleted"
)

// Forward-only lifecycle. Deleted is reachable from any state because
// retention removes blobs regardless of where the row got stuck.
var attachmentTransitions = map[AttachmentStatus][]AttachmentStatus{
	AttachmentPendingUpload: {AttachmentPendingScan, AttachmentDeleted},
	AttachmentPendingScan:   {AttachmentAvailable, AttachmentBlocked, AttachmentDeleted},
	AttachmentAvailable:     {AttachmentDeleted},
	AttachmentBlocked:       {AttachmentDeleted},
}

func (s AttachmentStatus) CanTransition(next AttachmentStatus) bool {
	for _, t := range attachmentTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

type ScanResult string

const (
	ScanResultClean    ScanResult = "clean"
	ScanResultInfected ScanResult = "infected"
)

type Attachment struct {
	ID             string           `bson:"_id" json:"id"`
	ConversationID string           `bson:"conversation_id" json:"conversation_id"`
	UploaderID     string           `bson:"uploader_id" json:"uploader_id"`
	Filename       string           `bson:"filename" json:"filename"`
	ContentType    string           `bson:"content_type" json:"content_type"`
	Size           int64            `bson:"size" json:"size"`
	StorageKey     string           `bson:"storage_key" json:"storage_key"`
	Status         AttachmentStatus `bson:"status" json:"status"`
	ScanResult     ScanResult       `bson:"scan_result,omitempty" json:"scan_result,omitempty"`
	CreatedAt      time.Time        `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `bson:"updated_at" json:"updated_at"`
}
