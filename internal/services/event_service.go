package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/neovalpox/backupControl/internal/models"
)

// EventService records backup outcomes and keeps the parent Backup
// aggregates in sync.
type EventService struct {
	db *gorm.DB
}

func NewEventService(db *gorm.DB) *EventService {
	return &EventService{db: db}
}

// Record persists the outcome carried by a classified email. Replaying the
// same email against the same backup returns the existing event untouched,
// so batches can safely overlap. All writes go through tx.
func (s *EventService) Record(tx *gorm.DB, backup *models.Backup, email *models.Email, signal *BackupSignal) (*models.BackupEvent, bool, error) {
	eventDate := time.Now().UTC()
	if email.ReceivedAt != nil {
		eventDate = email.ReceivedAt.UTC()
	}

	event := models.BackupEvent{
		BackupID:         backup.ID,
		EmailID:          &email.ID,
		EventType:        eventTypeFromStatus(signal.Status),
		EventDate:        eventDate,
		DurationSecs:     signal.DurationSeconds,
		SourceSizeBytes:  signal.SourceSizeBytes,
		TransferredBytes: signal.TransferredSizeBytes,
		ErrorMessage:     signal.ErrorMessage,
	}
	if signal.TransferredSizeBytes != nil {
		event.SizeBytes = signal.TransferredSizeBytes
	} else if signal.SourceSizeBytes != nil {
		event.SizeBytes = signal.SourceSizeBytes
	}
	if parsed, err := json.Marshal(signal); err == nil {
		event.ParsedData = parsed
	}

	// The (backup_id, email_id) unique index gates replays. DO NOTHING on
	// conflict keeps the transaction usable on postgres, where a failed
	// plain INSERT would abort it and poison the re-query.
	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&event)
	if result.Error != nil {
		return nil, false, fmt.Errorf("failed to create event: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// An earlier run already recorded this email; reuse its event.
		var existing models.BackupEvent
		if err := tx.Where("backup_id = ? AND email_id = ?", backup.ID, email.ID).First(&existing).Error; err != nil {
			return nil, false, fmt.Errorf("failed to load event after insert conflict: %w", err)
		}
		return &existing, false, nil
	}

	if err := s.applyToBackup(tx, backup, &event); err != nil {
		return nil, false, err
	}
	return &event, true, nil
}

// applyToBackup folds one new event into the parent aggregates.
func (s *EventService) applyToBackup(tx *gorm.DB, backup *models.Backup, event *models.BackupEvent) error {
	eventDate := event.EventDate

	switch event.EventType {
	case models.EventTypeSuccess:
		backup.LastSuccessAt = &eventDate
		backup.TotalSuccessCount++
		backup.CurrentStatus = models.StatusOK
		if event.SizeBytes != nil {
			backup.LastSizeBytes = event.SizeBytes
		}
		if event.DurationSecs != nil {
			backup.LastDurationSecs = event.DurationSecs
		}
	case models.EventTypeFailure:
		backup.LastFailureAt = &eventDate
		backup.TotalFailureCount++
		backup.CurrentStatus = models.StatusFailed
	}

	if backup.LastEventAt == nil || eventDate.After(*backup.LastEventAt) {
		backup.LastEventAt = &eventDate
	}

	if err := tx.Save(backup).Error; err != nil {
		return fmt.Errorf("failed to update backup aggregates: %w", err)
	}
	return nil
}

func eventTypeFromStatus(status string) string {
	switch status {
	case "success":
		return models.EventTypeSuccess
	case "failure":
		return models.EventTypeFailure
	case "warning":
		return models.EventTypeWarning
	default:
		return models.EventTypeUnknown
	}
}

// EventFilters narrows event listings.
type EventFilters struct {
	BackupID  *uuid.UUID
	ClientID  *uuid.UUID
	EventType string
	Since     *time.Time
	Page      int
	PageSize  int
}

// List returns events newest first with the total count before paging.
func (s *EventService) List(filters EventFilters) ([]models.BackupEvent, int64, error) {
	query := s.db.Model(&models.BackupEvent{})

	if filters.BackupID != nil {
		query = query.Where("backup_id = ?", *filters.BackupID)
	}
	if filters.ClientID != nil {
		query = query.Where("backup_id IN (?)",
			s.db.Model(&models.Backup{}).Select("id").Where("client_id = ?", *filters.ClientID))
	}
	if filters.EventType != "" {
		query = query.Where("event_type = ?", filters.EventType)
	}
	if filters.Since != nil {
		query = query.Where("event_date >= ?", *filters.Since)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count events: %w", err)
	}

	page := filters.Page
	if page < 1 {
		page = 1
	}
	pageSize := filters.PageSize
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	var events []models.BackupEvent
	err := query.Preload("Backup").
		Order("event_date DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&events).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list events: %w", err)
	}
	return events, total, nil
}

// GetByID returns one event with its backup and email loaded.
func (s *EventService) GetByID(id uuid.UUID) (*models.BackupEvent, error) {
	var event models.BackupEvent
	err := s.db.Preload("Backup").Preload("Email").First(&event, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("event not found")
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return &event, nil
}
