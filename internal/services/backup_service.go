package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/neovalpox/backupControl/internal/models"
	"github.com/neovalpox/backupControl/pkg/validation"
)

// BackupService manages backup job records: manual curation, maintenance
// windows and history lookups. Jobs are normally auto-created by the
// resolver when their first notification arrives.
type BackupService struct {
	db *gorm.DB
}

func NewBackupService(db *gorm.DB) *BackupService {
	return &BackupService{db: db}
}

// BackupFilters narrows backup listings.
type BackupFilters struct {
	ClientID   *uuid.UUID
	Status     string
	BackupType string
	SourceNAS  string
	IsActive   *bool
	Search     string
}

// List returns backups with their clients, worst status first.
func (s *BackupService) List(filters BackupFilters) ([]models.Backup, error) {
	query := s.db.Model(&models.Backup{})

	if filters.ClientID != nil {
		query = query.Where("client_id = ?", *filters.ClientID)
	}
	if filters.Status != "" {
		query = query.Where("current_status = ?", filters.Status)
	}
	if filters.BackupType != "" {
		query = query.Where("backup_type = ?", filters.BackupType)
	}
	if filters.SourceNAS != "" {
		query = query.Where("source_nas = ?", strings.ToUpper(filters.SourceNAS))
	}
	if filters.IsActive != nil {
		query = query.Where("is_active = ?", *filters.IsActive)
	}
	if filters.Search != "" {
		query = query.Where("name LIKE ?", "%"+filters.Search+"%")
	}

	var backups []models.Backup
	err := query.Preload("Client").
		Order("CASE current_status WHEN 'failed' THEN 0 WHEN 'critical' THEN 1 WHEN 'alert' THEN 2 WHEN 'warning' THEN 3 WHEN 'unknown' THEN 4 ELSE 5 END, name").
		Find(&backups).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}
	return backups, nil
}

func (s *BackupService) GetByID(id uuid.UUID) (*models.Backup, error) {
	var backup models.Backup
	err := s.db.Preload("Client").First(&backup, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("backup not found")
		}
		return nil, fmt.Errorf("failed to get backup: %w", err)
	}
	return &backup, nil
}

// BackupInput carries the fields accepted on manual backup creation.
type BackupInput struct {
	ClientID         uuid.UUID
	Name             string
	BackupType       string
	SourceNAS        string
	SourceDevice     string
	Destination      string
	DestinationNAS   string
	ExpectedSchedule string
	ExpectedHour     *int
	Description      string
}

// BackupUpdate carries partial updates; nil fields are left untouched.
type BackupUpdate struct {
	Name             *string
	BackupType       *string
	SourceNAS        *string
	SourceDevice     *string
	Destination      *string
	DestinationNAS   *string
	ExpectedSchedule *string
	ExpectedHour     *int
	Description      *string
	IsActive         *bool
}

func validBackupType(backupType string) bool {
	switch backupType {
	case models.BackupTypeHyperBackup, models.BackupTypeActiveBackup, models.BackupTypeRsync,
		models.BackupTypeVeeam, models.BackupTypeAcronis, models.BackupTypeWindowsBackup,
		models.BackupTypeOther:
		return true
	}
	return false
}

func (s *BackupService) Create(input BackupInput) (*models.Backup, error) {
	var client models.Client
	if err := s.db.First(&client, "id = ?", input.ClientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("client not found")
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("backup name is required")
	}
	backupType := input.BackupType
	if backupType == "" {
		backupType = models.BackupTypeOther
	}
	if !validBackupType(backupType) {
		return nil, fmt.Errorf("invalid backup type: %s", backupType)
	}

	backup := models.Backup{
		ClientID:         client.ID,
		Name:             validation.SanitizeString(name),
		BackupType:       backupType,
		SourceNAS:        strings.ToUpper(strings.TrimSpace(input.SourceNAS)),
		SourceDevice:     input.SourceDevice,
		Destination:      input.Destination,
		DestinationNAS:   strings.ToUpper(strings.TrimSpace(input.DestinationNAS)),
		ExpectedSchedule: input.ExpectedSchedule,
		ExpectedHour:     input.ExpectedHour,
		CurrentStatus:    models.StatusUnknown,
		Description:      input.Description,
		IsActive:         true,
	}
	if err := s.db.Create(&backup).Error; err != nil {
		return nil, fmt.Errorf("failed to create backup: %w", err)
	}
	return &backup, nil
}

func (s *BackupService) Update(id uuid.UUID, update BackupUpdate) (*models.Backup, error) {
	backup, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, fmt.Errorf("backup name is required")
		}
		updates["name"] = validation.SanitizeString(name)
	}
	if update.BackupType != nil {
		if !validBackupType(*update.BackupType) {
			return nil, fmt.Errorf("invalid backup type: %s", *update.BackupType)
		}
		updates["backup_type"] = *update.BackupType
	}
	if update.SourceNAS != nil {
		updates["source_nas"] = strings.ToUpper(strings.TrimSpace(*update.SourceNAS))
	}
	if update.SourceDevice != nil {
		updates["source_device"] = *update.SourceDevice
	}
	if update.Destination != nil {
		updates["destination"] = *update.Destination
	}
	if update.DestinationNAS != nil {
		updates["destination_nas"] = strings.ToUpper(strings.TrimSpace(*update.DestinationNAS))
	}
	if update.ExpectedSchedule != nil {
		updates["expected_schedule"] = *update.ExpectedSchedule
	}
	if update.ExpectedHour != nil {
		updates["expected_hour"] = *update.ExpectedHour
	}
	if update.Description != nil {
		updates["description"] = *update.Description
	}
	if update.IsActive != nil {
		updates["is_active"] = *update.IsActive
	}

	if len(updates) == 0 {
		return backup, nil
	}
	if err := s.db.Model(backup).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update backup: %w", err)
	}
	return s.GetByID(id)
}

func (s *BackupService) Delete(id uuid.UUID) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var backup models.Backup
		if err := tx.First(&backup, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("backup not found")
			}
			return fmt.Errorf("failed to get backup: %w", err)
		}
		if err := tx.Where("backup_id = ?", id).Delete(&models.Alert{}).Error; err != nil {
			return fmt.Errorf("failed to delete backup alerts: %w", err)
		}
		if err := tx.Where("backup_id = ?", id).Delete(&models.BackupEvent{}).Error; err != nil {
			return fmt.Errorf("failed to delete backup events: %w", err)
		}
		return tx.Delete(&backup).Error
	})
}

// SetMaintenance opens or closes a maintenance window. While the window is
// active the status engine leaves the backup untouched.
func (s *BackupService) SetMaintenance(id uuid.UUID, enabled bool, until *time.Time, reason string) (*models.Backup, error) {
	backup, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"is_maintenance":     enabled,
		"maintenance_until":  nil,
		"maintenance_reason": "",
	}
	if enabled {
		updates["maintenance_until"] = until
		updates["maintenance_reason"] = reason
	}
	if err := s.db.Model(backup).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update maintenance state: %w", err)
	}
	return s.GetByID(id)
}

// History returns the most recent events of one backup.
func (s *BackupService) History(id uuid.UUID, limit int) ([]models.BackupEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var events []models.BackupEvent
	err := s.db.Where("backup_id = ?", id).
		Order("event_date DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load backup history: %w", err)
	}
	return events, nil
}
