package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/neovalpox/backupControl/internal/models"
)

// StatusService ages backup statuses against the time since the last
// success and raises alerts on escalations. It runs on its own cadence,
// independent of email arrival.
type StatusService struct {
	db       *gorm.DB
	settings *SettingsService
	notifier *NotificationService
}

func NewStatusService(db *gorm.DB, settings *SettingsService, notifier *NotificationService) *StatusService {
	return &StatusService{db: db, settings: settings, notifier: notifier}
}

// StatusChange reports one backup whose status moved during a recompute run.
type StatusChange struct {
	BackupID       uuid.UUID `json:"backup_id"`
	BackupName     string    `json:"backup_name"`
	ClientName     string    `json:"client_name,omitempty"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	AlertCreated   bool      `json:"alert_created"`
}

// computeStatus applies the aging rules to one backup. Rules are checked in
// order and the first match wins:
//   - active maintenance keeps the current status
//   - a failure newer than the last success pins the status to failed
//   - no success ever recorded means unknown
//   - otherwise the status follows the hours elapsed since the last success
func computeStatus(backup *models.Backup, now time.Time, rc *RunConfig) string {
	if backup.InMaintenance(now) {
		return backup.CurrentStatus
	}
	if backup.CurrentStatus == models.StatusFailed && backup.LastFailureAt != nil {
		if backup.LastSuccessAt == nil || backup.LastFailureAt.After(*backup.LastSuccessAt) {
			return models.StatusFailed
		}
	}
	if backup.LastSuccessAt == nil {
		return models.StatusUnknown
	}

	elapsed := now.Sub(*backup.LastSuccessAt).Hours()
	switch {
	case elapsed <= float64(rc.WarningHours):
		return models.StatusOK
	case elapsed <= float64(rc.AlertHours):
		return models.StatusWarning
	case elapsed <= float64(rc.CriticalHours):
		return models.StatusAlert
	default:
		return models.StatusCritical
	}
}

// RecomputeBackup recomputes one backup inside tx and returns the change, if
// any. An alert row is created only when the status escalates into alert or
// critical from something else.
func (s *StatusService) RecomputeBackup(tx *gorm.DB, backup *models.Backup, now time.Time, rc *RunConfig) (*StatusChange, *models.Alert, error) {
	previous := backup.CurrentStatus
	next := computeStatus(backup, now, rc)
	if next == previous {
		return nil, nil, nil
	}

	backup.CurrentStatus = next
	if err := tx.Model(backup).Update("current_status", next).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to update status of backup %s: %w", backup.ID, err)
	}

	change := &StatusChange{
		BackupID:       backup.ID,
		BackupName:     backup.Name,
		PreviousStatus: previous,
		NewStatus:      next,
	}

	if next != models.StatusAlert && next != models.StatusCritical {
		return change, nil, nil
	}

	elapsedHours := 0
	if backup.LastSuccessAt != nil {
		elapsedHours = int(now.Sub(*backup.LastSuccessAt).Hours())
	}
	details, _ := json.Marshal(map[string]interface{}{
		"previous_status": previous,
		"new_status":      next,
		"elapsed_hours":   elapsedHours,
	})

	alert := models.Alert{
		AlertType: models.AlertTypeBackupMissing,
		Severity:  next,
		ClientID:  &backup.ClientID,
		BackupID:  &backup.ID,
		Title:     fmt.Sprintf("Sauvegarde manquante: %s", backup.Name),
		Message:   fmt.Sprintf("Aucune sauvegarde réussie depuis %dh", elapsedHours),
		Details:   details,
	}
	if err := tx.Create(&alert).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to create alert for backup %s: %w", backup.ID, err)
	}
	change.AlertCreated = true
	return change, &alert, nil
}

// RecomputeAll recomputes every active backup and fans created alerts out to
// the notification channels.
func (s *StatusService) RecomputeAll(ctx context.Context) ([]StatusChange, error) {
	rc, err := s.settings.LoadRunConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load run configuration: %w", err)
	}
	now := time.Now().UTC()

	var backups []models.Backup
	if err := s.db.Where("is_active = ?", true).Find(&backups).Error; err != nil {
		return nil, fmt.Errorf("failed to load backups: %w", err)
	}

	var changes []StatusChange
	var createdAlerts []models.Alert
	for i := range backups {
		backup := &backups[i]
		err := s.db.Transaction(func(tx *gorm.DB) error {
			change, alert, err := s.RecomputeBackup(tx, backup, now, rc)
			if err != nil {
				return err
			}
			if change != nil {
				changes = append(changes, *change)
			}
			if alert != nil {
				createdAlerts = append(createdAlerts, *alert)
			}
			return nil
		})
		if err != nil {
			log.Printf("ERROR: status recompute failed for backup %s: %v", backup.ID, err)
		}
	}

	if len(changes) > 0 {
		log.Printf("Status recompute: %d of %d backups changed, %d alerts", len(changes), len(backups), len(createdAlerts))
	}
	if s.notifier != nil {
		for i := range createdAlerts {
			s.notifier.NotifyAlert(ctx, &createdAlerts[i], rc)
		}
	}
	return changes, nil
}
