package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/neovalpox/backupControl/internal/models"
)

// EmailService exposes the stored email archive: listing, inspection and
// retention cleanup. Fetching and analysis live in the pipeline.
type EmailService struct {
	db *gorm.DB
}

func NewEmailService(db *gorm.DB) *EmailService {
	return &EmailService{db: db}
}

// EmailFilters narrows email listings.
type EmailFilters struct {
	IsBackupNotification *bool
	IsProcessed          *bool
	DetectedStatus       string
	DetectedType         string
	Sender               string
	Search               string
	Since                *time.Time
	Until                *time.Time
	Page                 int
	PageSize             int
}

// List returns emails newest first with the total count before paging. Body
// columns are omitted from listings; GetByID loads them.
func (s *EmailService) List(filters EmailFilters) ([]models.Email, int64, error) {
	query := s.db.Model(&models.Email{})

	if filters.IsBackupNotification != nil {
		query = query.Where("is_backup_notification = ?", *filters.IsBackupNotification)
	}
	if filters.IsProcessed != nil {
		query = query.Where("is_processed = ?", *filters.IsProcessed)
	}
	if filters.DetectedStatus != "" {
		query = query.Where("detected_status = ?", filters.DetectedStatus)
	}
	if filters.DetectedType != "" {
		query = query.Where("detected_backup_type = ?", filters.DetectedType)
	}
	if filters.Sender != "" {
		query = query.Where("sender LIKE ?", "%"+filters.Sender+"%")
	}
	if filters.Search != "" {
		query = query.Where("subject LIKE ?", "%"+filters.Search+"%")
	}
	if filters.Since != nil {
		query = query.Where("received_at >= ?", *filters.Since)
	}
	if filters.Until != nil {
		query = query.Where("received_at <= ?", *filters.Until)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count emails: %w", err)
	}

	page := filters.Page
	if page < 1 {
		page = 1
	}
	pageSize := filters.PageSize
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	var emails []models.Email
	err := query.
		Omit("body_text", "body_html").
		Order("received_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&emails).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list emails: %w", err)
	}
	return emails, total, nil
}

func (s *EmailService) GetByID(id uuid.UUID) (*models.Email, error) {
	var email models.Email
	err := s.db.First(&email, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("email not found")
		}
		return nil, fmt.Errorf("failed to get email: %w", err)
	}
	return &email, nil
}

func (s *EmailService) Delete(id uuid.UUID) error {
	result := s.db.Delete(&models.Email{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete email: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("email not found")
	}
	return nil
}

// CleanupOld deletes non-backup emails fetched before the retention cutoff.
// Backup notifications are kept: they document the event history.
func (s *EmailService) CleanupOld(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	result := s.db.Where("is_backup_notification = ? AND fetched_at < ?", false, cutoff).
		Delete(&models.Email{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to clean up emails: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		log.Printf("Cleaned up %d emails older than %d days", result.RowsAffected, retentionDays)
	}
	return result.RowsAffected, nil
}

// Stats summarizes the archive for the dashboard.
func (s *EmailService) Stats() (map[string]int64, error) {
	stats := map[string]int64{}

	var total, notifications, unprocessed int64
	if err := s.db.Model(&models.Email{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count emails: %w", err)
	}
	if err := s.db.Model(&models.Email{}).Where("is_backup_notification = ?", true).Count(&notifications).Error; err != nil {
		return nil, fmt.Errorf("failed to count notifications: %w", err)
	}
	if err := s.db.Model(&models.Email{}).Where("is_processed = ?", false).Count(&unprocessed).Error; err != nil {
		return nil, fmt.Errorf("failed to count unprocessed emails: %w", err)
	}

	stats["total"] = total
	stats["backup_notifications"] = notifications
	stats["unprocessed"] = unprocessed
	return stats, nil
}
