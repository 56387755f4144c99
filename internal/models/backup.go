package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Backup job types
const (
	BackupTypeHyperBackup   = "hyper_backup"
	BackupTypeActiveBackup  = "active_backup"
	BackupTypeRsync         = "rsync"
	BackupTypeVeeam         = "veeam"
	BackupTypeAcronis       = "acronis"
	BackupTypeWindowsBackup = "windows_backup"
	BackupTypeOther         = "other"
)

// BackupTypeLabel returns the display name of a backup type, used when
// composing backup names and report rows.
func BackupTypeLabel(backupType string) string {
	switch backupType {
	case BackupTypeHyperBackup:
		return "Hyper Backup"
	case BackupTypeActiveBackup:
		return "Active Backup"
	case BackupTypeRsync:
		return "RSync"
	case BackupTypeVeeam:
		return "Veeam"
	case BackupTypeAcronis:
		return "Acronis"
	case BackupTypeWindowsBackup:
		return "Windows Server Backup"
	default:
		return "Sauvegarde"
	}
}

// Backup health statuses
const (
	StatusOK       = "ok"
	StatusWarning  = "warning"
	StatusAlert    = "alert"
	StatusCritical = "critical"
	StatusFailed   = "failed"
	StatusUnknown  = "unknown"
)

type Backup struct {
	ID                uuid.UUID                   `gorm:"type:uuid;primary_key" json:"id"`
	ClientID          uuid.UUID                   `gorm:"type:uuid;not null;index" json:"client_id"`
	Name              string                      `gorm:"not null" json:"name"`
	BackupType        string                      `gorm:"not null;default:'other'" json:"backup_type"`
	SourceNAS         string                      `gorm:"column:source_nas;index" json:"source_nas,omitempty"`
	SourceDevice      string                      `json:"source_device,omitempty"`
	Destination       string                      `json:"destination,omitempty"`
	DestinationNAS    string                      `gorm:"column:destination_nas" json:"destination_nas,omitempty"`
	ExpectedSchedule  string                      `json:"expected_schedule,omitempty"` // daily, weekly
	ExpectedHour      *int                        `json:"expected_hour,omitempty"`
	CurrentStatus     string                      `gorm:"not null;default:'unknown'" json:"current_status"`
	LastSuccessAt     *time.Time                  `json:"last_success_at,omitempty"`
	LastFailureAt     *time.Time                  `json:"last_failure_at,omitempty"`
	LastEventAt       *time.Time                  `json:"last_event_at,omitempty"`
	TotalSuccessCount int                         `gorm:"default:0" json:"total_success_count"`
	TotalFailureCount int                         `gorm:"default:0" json:"total_failure_count"`
	LastSizeBytes     *int64                      `json:"last_size_bytes,omitempty"`
	LastDurationSecs  *int                        `gorm:"column:last_duration_seconds" json:"last_duration_seconds,omitempty"`
	EmailPatterns     datatypes.JSONSlice[string] `json:"email_patterns,omitempty"`
	Description       string                      `gorm:"type:text" json:"description,omitempty"`
	IsActive          bool                        `gorm:"default:true" json:"is_active"`
	IsMaintenance     bool                        `gorm:"default:false" json:"is_maintenance"`
	MaintenanceUntil  *time.Time                  `json:"maintenance_until,omitempty"`
	MaintenanceReason string                      `json:"maintenance_reason,omitempty"`
	CreatedAt         time.Time                   `json:"created_at"`
	UpdatedAt         time.Time                   `json:"updated_at"`

	// Relations
	Client Client        `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Events []BackupEvent `gorm:"foreignKey:BackupID;constraint:OnDelete:CASCADE" json:"events,omitempty"`
}

func (b *Backup) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// InMaintenance reports whether maintenance mode is active at the given time.
// An expired maintenance_until counts as maintenance over even if the flag is
// still set.
func (b *Backup) InMaintenance(now time.Time) bool {
	if !b.IsMaintenance {
		return false
	}
	if b.MaintenanceUntil != nil && now.After(*b.MaintenanceUntil) {
		return false
	}
	return true
}
