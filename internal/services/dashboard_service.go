package services

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/neovalpox/backupControl/internal/models"
)

// DashboardService aggregates the fleet overview shown on the home screen.
type DashboardService struct {
	db *gorm.DB
}

func NewDashboardService(db *gorm.DB) *DashboardService {
	return &DashboardService{db: db}
}

// DashboardSummary is the one-call overview of the whole fleet.
type DashboardSummary struct {
	TotalClients     int64            `json:"total_clients"`
	ActiveClients    int64            `json:"active_clients"`
	TotalBackups     int64            `json:"total_backups"`
	ActiveBackups    int64            `json:"active_backups"`
	BackupsByStatus  map[string]int64 `json:"backups_by_status"`
	BackupsByType    map[string]int64 `json:"backups_by_type"`
	UnresolvedAlerts int64            `json:"unresolved_alerts"`
	AlertsBySeverity map[string]int64 `json:"alerts_by_severity"`
	EventsLast24h    int64            `json:"events_last_24h"`
	SuccessesLast24h int64            `json:"successes_last_24h"`
	FailuresLast24h  int64            `json:"failures_last_24h"`
	EmailStats       map[string]int64 `json:"email_stats"`
	GeneratedAt      time.Time        `json:"generated_at"`
}

func (s *DashboardService) Summary() (*DashboardSummary, error) {
	summary := &DashboardSummary{
		BackupsByStatus:  map[string]int64{},
		BackupsByType:    map[string]int64{},
		AlertsBySeverity: map[string]int64{},
		EmailStats:       map[string]int64{},
		GeneratedAt:      time.Now().UTC(),
	}

	if err := s.db.Model(&models.Client{}).Count(&summary.TotalClients).Error; err != nil {
		return nil, fmt.Errorf("failed to count clients: %w", err)
	}
	if err := s.db.Model(&models.Client{}).Where("is_active = ?", true).Count(&summary.ActiveClients).Error; err != nil {
		return nil, fmt.Errorf("failed to count active clients: %w", err)
	}
	if err := s.db.Model(&models.Backup{}).Count(&summary.TotalBackups).Error; err != nil {
		return nil, fmt.Errorf("failed to count backups: %w", err)
	}
	if err := s.db.Model(&models.Backup{}).Where("is_active = ?", true).Count(&summary.ActiveBackups).Error; err != nil {
		return nil, fmt.Errorf("failed to count active backups: %w", err)
	}

	type countRow struct {
		Key   string
		Count int64
	}

	var statusRows []countRow
	err := s.db.Model(&models.Backup{}).
		Select("current_status as key, COUNT(*) as count").
		Where("is_active = ?", true).
		Group("current_status").
		Scan(&statusRows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to group backups by status: %w", err)
	}
	for _, r := range statusRows {
		summary.BackupsByStatus[r.Key] = r.Count
	}

	var typeRows []countRow
	err = s.db.Model(&models.Backup{}).
		Select("backup_type as key, COUNT(*) as count").
		Where("is_active = ?", true).
		Group("backup_type").
		Scan(&typeRows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to group backups by type: %w", err)
	}
	for _, r := range typeRows {
		summary.BackupsByType[r.Key] = r.Count
	}

	if err := s.db.Model(&models.Alert{}).Where("is_resolved = ?", false).Count(&summary.UnresolvedAlerts).Error; err != nil {
		return nil, fmt.Errorf("failed to count alerts: %w", err)
	}
	var severityRows []countRow
	err = s.db.Model(&models.Alert{}).
		Select("severity as key, COUNT(*) as count").
		Where("is_resolved = ?", false).
		Group("severity").
		Scan(&severityRows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to group alerts by severity: %w", err)
	}
	for _, r := range severityRows {
		summary.AlertsBySeverity[r.Key] = r.Count
	}

	since := time.Now().UTC().Add(-24 * time.Hour)
	if err := s.db.Model(&models.BackupEvent{}).Where("event_date >= ?", since).Count(&summary.EventsLast24h).Error; err != nil {
		return nil, fmt.Errorf("failed to count recent events: %w", err)
	}
	if err := s.db.Model(&models.BackupEvent{}).Where("event_date >= ? AND event_type = ?", since, models.EventTypeSuccess).Count(&summary.SuccessesLast24h).Error; err != nil {
		return nil, fmt.Errorf("failed to count recent successes: %w", err)
	}
	if err := s.db.Model(&models.BackupEvent{}).Where("event_date >= ? AND event_type = ?", since, models.EventTypeFailure).Count(&summary.FailuresLast24h).Error; err != nil {
		return nil, fmt.Errorf("failed to count recent failures: %w", err)
	}

	var totalEmails, notificationEmails int64
	if err := s.db.Model(&models.Email{}).Count(&totalEmails).Error; err != nil {
		return nil, fmt.Errorf("failed to count emails: %w", err)
	}
	if err := s.db.Model(&models.Email{}).Where("is_backup_notification = ?", true).Count(&notificationEmails).Error; err != nil {
		return nil, fmt.Errorf("failed to count notification emails: %w", err)
	}
	summary.EmailStats["total"] = totalEmails
	summary.EmailStats["backup_notifications"] = notificationEmails

	return summary, nil
}

// Attention returns the active backups that need an operator's eye, worst
// first.
func (s *DashboardService) Attention() ([]models.Backup, error) {
	var backups []models.Backup
	err := s.db.Preload("Client").
		Where("is_active = ? AND current_status IN ?", true,
			[]string{models.StatusFailed, models.StatusCritical, models.StatusAlert}).
		Order("CASE current_status WHEN 'failed' THEN 0 WHEN 'critical' THEN 1 ELSE 2 END, last_success_at ASC").
		Find(&backups).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list backups needing attention: %w", err)
	}
	return backups, nil
}
