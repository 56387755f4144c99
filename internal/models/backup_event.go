package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Backup event types
const (
	EventTypeSuccess = "success"
	EventTypeFailure = "failure"
	EventTypeWarning = "warning"
	EventTypeUnknown = "unknown"
)

// BackupEvent is one observed outcome of a backup job, derived from one
// notification email. Events are immutable; the unique (backup_id, email_id)
// index is what makes re-processing the same email a no-op.
type BackupEvent struct {
	ID               uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	BackupID         uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_backup_events_backup_email" json:"backup_id"`
	EmailID          *uuid.UUID     `gorm:"type:uuid;uniqueIndex:idx_backup_events_backup_email" json:"email_id,omitempty"`
	EventType        string         `gorm:"not null" json:"event_type"` // success, failure, warning, unknown
	EventDate        time.Time      `gorm:"not null;index" json:"event_date"`
	DurationSecs     *int           `gorm:"column:duration_seconds" json:"duration_seconds,omitempty"`
	SizeBytes        *int64         `json:"size_bytes,omitempty"`
	TransferredBytes *int64         `json:"transferred_bytes,omitempty"`
	SourceSizeBytes  *int64         `json:"source_size_bytes,omitempty"`
	Message          string         `gorm:"type:text" json:"message,omitempty"`
	ErrorMessage     string         `gorm:"type:text" json:"error_message,omitempty"`
	ParsedData       datatypes.JSON `json:"parsed_data,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`

	// Relations
	Backup Backup `gorm:"foreignKey:BackupID" json:"backup,omitempty"`
	Email  *Email `gorm:"foreignKey:EmailID" json:"email,omitempty"`
}

func (e *BackupEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
