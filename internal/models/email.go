package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Email is a fetched message plus its classification result. message_id is
// the provider-assigned identifier and is globally unique, which makes
// re-fetching idempotent.
type Email struct {
	ID                   uuid.UUID                   `gorm:"type:uuid;primary_key" json:"id"`
	MessageID            string                      `gorm:"uniqueIndex;not null" json:"message_id"`
	ThreadID             string                      `json:"thread_id,omitempty"`
	Subject              string                      `json:"subject,omitempty"`
	Sender               string                      `gorm:"index" json:"sender,omitempty"`
	Recipients           datatypes.JSONSlice[string] `json:"recipients,omitempty"`
	ReceivedAt           *time.Time                  `gorm:"index" json:"received_at,omitempty"`
	BodyText             string                      `gorm:"type:text" json:"body_text,omitempty"`
	BodyHTML             string                      `gorm:"type:text" json:"body_html,omitempty"`
	IsBackupNotification bool                        `gorm:"default:false;index" json:"is_backup_notification"`
	DetectedBackupType   string                      `json:"detected_backup_type,omitempty"`
	DetectedStatus       string                      `json:"detected_status,omitempty"` // success, failure, warning
	DetectedNAS          string                      `gorm:"column:detected_nas" json:"detected_nas,omitempty"`
	AIConfidence         *int                        `gorm:"column:ai_confidence" json:"ai_confidence,omitempty"`
	AIExtractedData      datatypes.JSON              `gorm:"column:ai_extracted_data" json:"ai_extracted_data,omitempty"`
	IsProcessed          bool                        `gorm:"default:false;index" json:"is_processed"`
	ProcessingError      string                      `gorm:"type:text" json:"processing_error,omitempty"`
	FetchedAt            time.Time                   `json:"fetched_at"`
	ProcessedAt          *time.Time                  `json:"processed_at,omitempty"`
	CreatedAt            time.Time                   `json:"created_at"`
	UpdatedAt            time.Time                   `json:"updated_at"`
}

func (e *Email) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.FetchedAt.IsZero() {
		e.FetchedAt = time.Now().UTC()
	}
	return nil
}
