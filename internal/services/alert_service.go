package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/neovalpox/backupControl/internal/models"
)

// AlertService manages the alert lifecycle: creation from failed backups,
// acknowledgement and resolution by operators.
type AlertService struct {
	db       *gorm.DB
	settings *SettingsService
	notifier *NotificationService
}

func NewAlertService(db *gorm.DB, settings *SettingsService, notifier *NotificationService) *AlertService {
	return &AlertService{db: db, settings: settings, notifier: notifier}
}

// AlertFilters narrows alert listings.
type AlertFilters struct {
	AlertType      string
	Severity       string
	ClientID       *uuid.UUID
	BackupID       *uuid.UUID
	IsResolved     *bool
	IsAcknowledged *bool
	Page           int
	PageSize       int
}

// List returns alerts newest first with the total count before paging.
func (s *AlertService) List(filters AlertFilters) ([]models.Alert, int64, error) {
	query := s.db.Model(&models.Alert{})

	if filters.AlertType != "" {
		query = query.Where("alert_type = ?", filters.AlertType)
	}
	if filters.Severity != "" {
		query = query.Where("severity = ?", filters.Severity)
	}
	if filters.ClientID != nil {
		query = query.Where("client_id = ?", *filters.ClientID)
	}
	if filters.BackupID != nil {
		query = query.Where("backup_id = ?", *filters.BackupID)
	}
	if filters.IsResolved != nil {
		query = query.Where("is_resolved = ?", *filters.IsResolved)
	}
	if filters.IsAcknowledged != nil {
		query = query.Where("is_acknowledged = ?", *filters.IsAcknowledged)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	page := filters.Page
	if page < 1 {
		page = 1
	}
	pageSize := filters.PageSize
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	var alerts []models.Alert
	err := query.Preload("Client").Preload("Backup").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&alerts).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, total, nil
}

func (s *AlertService) GetByID(id uuid.UUID) (*models.Alert, error) {
	var alert models.Alert
	err := s.db.Preload("Client").Preload("Backup").First(&alert, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("alert not found")
		}
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return &alert, nil
}

// Acknowledge marks an alert as seen without closing it.
func (s *AlertService) Acknowledge(id uuid.UUID, by string) (*models.Alert, error) {
	alert, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"is_acknowledged": true,
		"acknowledged_by": by,
		"acknowledged_at": now,
	}
	if err := s.db.Model(alert).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to acknowledge alert: %w", err)
	}
	alert.IsAcknowledged = true
	alert.AcknowledgedBy = by
	alert.AcknowledgedAt = &now
	return alert, nil
}

// Resolve closes an alert.
func (s *AlertService) Resolve(id uuid.UUID, by, notes string) (*models.Alert, error) {
	alert, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"is_resolved":      true,
		"resolved_by":      by,
		"resolved_at":      now,
		"resolution_notes": notes,
	}
	if err := s.db.Model(alert).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to resolve alert: %w", err)
	}
	alert.IsResolved = true
	alert.ResolvedBy = by
	alert.ResolvedAt = &now
	alert.ResolutionNotes = notes
	return alert, nil
}

// ResolveAllForBackup closes every open alert of one backup, typically after
// the job recovered.
func (s *AlertService) ResolveAllForBackup(backupID uuid.UUID, by string) (int64, error) {
	now := time.Now().UTC()
	result := s.db.Model(&models.Alert{}).
		Where("backup_id = ? AND is_resolved = ?", backupID, false).
		Updates(map[string]interface{}{
			"is_resolved": true,
			"resolved_by": by,
			"resolved_at": now,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to resolve alerts: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *AlertService) Delete(id uuid.UUID) error {
	result := s.db.Delete(&models.Alert{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete alert: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("alert not found")
	}
	return nil
}

// CountUnresolved returns the number of open alerts, total and by severity.
func (s *AlertService) CountUnresolved() (int64, map[string]int64, error) {
	var total int64
	if err := s.db.Model(&models.Alert{}).Where("is_resolved = ?", false).Count(&total).Error; err != nil {
		return 0, nil, fmt.Errorf("failed to count alerts: %w", err)
	}

	type row struct {
		Severity string
		Count    int64
	}
	var rows []row
	err := s.db.Model(&models.Alert{}).
		Select("severity, COUNT(*) as count").
		Where("is_resolved = ?", false).
		Group("severity").
		Scan(&rows).Error
	if err != nil {
		return 0, nil, fmt.Errorf("failed to count alerts by severity: %w", err)
	}

	bySeverity := make(map[string]int64, len(rows))
	for _, r := range rows {
		bySeverity[r.Severity] = r.Count
	}
	return total, bySeverity, nil
}

// GenerateFromFailedBackups sweeps active backups in failed state and raises
// a critical alert for each one that has no open failure alert yet. Returns
// the number of alerts created.
func (s *AlertService) GenerateFromFailedBackups(ctx context.Context) (int, error) {
	var backups []models.Backup
	err := s.db.Preload("Client").
		Where("is_active = ? AND current_status = ?", true, models.StatusFailed).
		Find(&backups).Error
	if err != nil {
		return 0, fmt.Errorf("failed to load failed backups: %w", err)
	}
	if len(backups) == 0 {
		return 0, nil
	}

	rc, err := s.settings.LoadRunConfig()
	if err != nil {
		return 0, fmt.Errorf("failed to load run configuration: %w", err)
	}

	created := 0
	for i := range backups {
		backup := &backups[i]

		var open int64
		err := s.db.Model(&models.Alert{}).
			Where("backup_id = ? AND alert_type = ? AND is_resolved = ?",
				backup.ID, models.AlertTypeBackupFailed, false).
			Count(&open).Error
		if err != nil {
			log.Printf("ERROR: failed to check open alerts for backup %s: %v", backup.ID, err)
			continue
		}
		if open > 0 {
			continue
		}

		message := fmt.Sprintf("La sauvegarde %s (%s) a échoué", backup.Name, backup.Client.Name)
		details := map[string]interface{}{"backup_type": backup.BackupType}
		if backup.LastFailureAt != nil {
			details["last_failure_at"] = backup.LastFailureAt.UTC().Format(time.RFC3339)
		}
		if backup.LastSuccessAt != nil {
			details["last_success_at"] = backup.LastSuccessAt.UTC().Format(time.RFC3339)
		}
		detailsJSON, _ := json.Marshal(details)

		alert := models.Alert{
			AlertType: models.AlertTypeBackupFailed,
			Severity:  models.SeverityCritical,
			ClientID:  &backup.ClientID,
			BackupID:  &backup.ID,
			Title:     fmt.Sprintf("Echec de sauvegarde: %s", backup.Name),
			Message:   message,
			Details:   detailsJSON,
		}
		if err := s.db.Create(&alert).Error; err != nil {
			log.Printf("ERROR: failed to create failure alert for backup %s: %v", backup.ID, err)
			continue
		}
		created++
		if s.notifier != nil {
			s.notifier.NotifyAlert(ctx, &alert, rc)
		}
	}

	if created > 0 {
		log.Printf("Generated %d failure alerts from %d failed backups", created, len(backups))
	}
	return created, nil
}
