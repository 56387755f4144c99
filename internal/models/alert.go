package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Alert types
const (
	AlertTypeBackupMissing = "backup_missing"
	AlertTypeBackupFailed  = "backup_failed"
)

// Alert severities
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityAlert    = "alert"
	SeverityCritical = "critical"
)

type Alert struct {
	ID                uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	AlertType         string         `gorm:"not null;index" json:"alert_type"`
	Severity          string         `gorm:"not null;default:'warning'" json:"severity"` // info, warning, alert, critical
	ClientID          *uuid.UUID     `gorm:"type:uuid;index" json:"client_id,omitempty"`
	BackupID          *uuid.UUID     `gorm:"type:uuid;index" json:"backup_id,omitempty"`
	Title             string         `gorm:"not null" json:"title"`
	Message           string         `gorm:"type:text" json:"message,omitempty"`
	Details           datatypes.JSON `json:"details,omitempty"`
	IsAcknowledged    bool           `gorm:"default:false" json:"is_acknowledged"`
	AcknowledgedBy    string         `json:"acknowledged_by,omitempty"`
	AcknowledgedAt    *time.Time     `json:"acknowledged_at,omitempty"`
	IsResolved        bool           `gorm:"default:false;index" json:"is_resolved"`
	ResolvedBy        string         `json:"resolved_by,omitempty"`
	ResolvedAt        *time.Time     `json:"resolved_at,omitempty"`
	ResolutionNotes   string         `gorm:"type:text" json:"resolution_notes,omitempty"`
	NotificationsSent datatypes.JSON `json:"notifications_sent,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`

	// Relations
	Client *Client `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Backup *Backup `gorm:"foreignKey:BackupID" json:"backup,omitempty"`
}

func (a *Alert) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
