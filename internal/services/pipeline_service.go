package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/neovalpox/backupControl/internal/models"
)

const (
	// batchCommitSize bounds how many emails are processed between pauses.
	batchCommitSize = 10
	// batchPause spaces commit groups to stay under AI provider rate limits.
	batchPause = time.Second
)

// BatchReport summarizes one pipeline run. Configuration failures surface
// here as Success=false rather than as errors, so scheduled runs never
// crash the host process.
type BatchReport struct {
	RunID               string         `json:"run_id"`
	Success             bool           `json:"success"`
	Error               string         `json:"error,omitempty"`
	Fetched             int            `json:"fetched"`
	Analyzed            int            `json:"analyzed"`
	AlreadyProcessed    int            `json:"already_processed"`
	BackupNotifications int            `json:"backup_notifications"`
	ClientsCreated      int            `json:"clients_created"`
	BackupsCreated      int            `json:"backups_created"`
	EventsCreated       int            `json:"events_created"`
	ByStatus            map[string]int `json:"by_status"`
	ByType              map[string]int `json:"by_type"`
	Errors              []string       `json:"errors,omitempty"`
	StartedAt           time.Time      `json:"started_at"`
	FinishedAt          time.Time      `json:"finished_at"`
	DurationSeconds     float64        `json:"duration_seconds"`
}

// PipelineService drives the fetch, classify, resolve, record cycle over the
// configured mailbox.
type PipelineService struct {
	db       *gorm.DB
	settings *SettingsService
	resolver *ResolverService
	events   *EventService
	progress ProgressStore
}

func NewPipelineService(db *gorm.DB, settings *SettingsService, resolver *ResolverService, events *EventService, progress ProgressStore) *PipelineService {
	return &PipelineService{
		db:       db,
		settings: settings,
		resolver: resolver,
		events:   events,
		progress: progress,
	}
}

// Run executes one batch cycle. A zero limit falls back to the configured
// batch size; an empty folder means the provider default inbox.
func (s *PipelineService) Run(ctx context.Context, limit int, folder string) *BatchReport {
	return s.RunWithID(ctx, uuid.NewString(), limit, folder)
}

// RunWithID is Run with a caller-chosen run id, so HTTP callers can return
// the id before the background run starts publishing progress under it.
func (s *PipelineService) RunWithID(ctx context.Context, runID string, limit int, folder string) *BatchReport {
	report := &BatchReport{
		RunID:     runID,
		ByStatus:  map[string]int{},
		ByType:    map[string]int{},
		StartedAt: time.Now().UTC(),
	}
	progress := &BatchProgress{
		RunID:     report.RunID,
		State:     RunStateRunning,
		Step:      "Chargement de la configuration",
		StartedAt: report.StartedAt,
		UpdatedAt: report.StartedAt,
	}
	s.progress.Save(ctx, progress)

	rc, err := s.settings.LoadRunConfig()
	if err != nil {
		return s.fail(ctx, report, progress, fmt.Errorf("failed to load run configuration: %w", err))
	}

	aiProvider, err := NewAIProvider(rc)
	if err != nil {
		return s.fail(ctx, report, progress, err)
	}
	mailProvider, err := NewMailProvider(rc)
	if err != nil {
		return s.fail(ctx, report, progress, err)
	}
	classifier := NewClassifierService(aiProvider)

	if limit <= 0 {
		limit = rc.BatchLimit
	}

	progress.Step = "Récupération des e-mails"
	progress.UpdatedAt = time.Now().UTC()
	s.progress.Save(ctx, progress)

	raws, err := mailProvider.FetchEmails(ctx, limit, folder)
	if err != nil {
		return s.fail(ctx, report, progress, fmt.Errorf("failed to fetch emails via %s: %w", mailProvider.Name(), err))
	}
	report.Fetched = len(raws)
	log.Printf("Batch %s: fetched %d emails via %s", report.RunID, len(raws), mailProvider.Name())

	// Oldest first so events replay in causal order.
	sort.SliceStable(raws, func(i, j int) bool {
		ti, tj := time.Time{}, time.Time{}
		if raws[i].ReceivedAt != nil {
			ti = *raws[i].ReceivedAt
		}
		if raws[j].ReceivedAt != nil {
			tj = *raws[j].ReceivedAt
		}
		return ti.Before(tj)
	})

	progress.Total = len(raws)
	for i := range raws {
		if ctx.Err() != nil {
			report.Errors = append(report.Errors, "run interrupted: "+ctx.Err().Error())
			break
		}

		if err := s.processEmail(ctx, classifier, rc, &raws[i], report); err != nil {
			msg := fmt.Sprintf("email %s: %v", raws[i].MessageID, err)
			log.Printf("ERROR: batch %s: %s", report.RunID, msg)
			report.Errors = append(report.Errors, msg)
		}

		progress.Processed = i + 1
		progress.Percent = (i + 1) * 100 / len(raws)
		progress.Step = fmt.Sprintf("Analyse %d/%d", i+1, len(raws))
		progress.UpdatedAt = time.Now().UTC()
		s.progress.Save(ctx, progress)

		if (i+1)%batchCommitSize == 0 && i+1 < len(raws) {
			select {
			case <-ctx.Done():
			case <-time.After(batchPause):
			}
		}
	}

	report.Success = true
	report.FinishedAt = time.Now().UTC()
	report.DurationSeconds = report.FinishedAt.Sub(report.StartedAt).Seconds()
	log.Printf("Batch %s: analyzed %d/%d emails, %d events, %d new clients, %d new backups, %d errors",
		report.RunID, report.Analyzed, report.Fetched, report.EventsCreated,
		report.ClientsCreated, report.BackupsCreated, len(report.Errors))

	finished := report.FinishedAt
	progress.State = RunStateCompleted
	progress.Step = "Terminé"
	progress.Percent = 100
	progress.FinishedAt = &finished
	progress.UpdatedAt = finished
	progress.Report = report
	s.progress.Save(ctx, progress)
	return report
}

func (s *PipelineService) fail(ctx context.Context, report *BatchReport, progress *BatchProgress, err error) *BatchReport {
	log.Printf("ERROR: batch %s aborted: %v", report.RunID, err)
	report.Success = false
	report.Error = err.Error()
	report.FinishedAt = time.Now().UTC()
	report.DurationSeconds = report.FinishedAt.Sub(report.StartedAt).Seconds()

	finished := report.FinishedAt
	progress.State = RunStateFailed
	progress.Step = report.Error
	progress.FinishedAt = &finished
	progress.UpdatedAt = finished
	progress.Report = report
	s.progress.Save(ctx, progress)
	return report
}

// processEmail runs classify, resolve, record for one fetched message. The
// email row is persisted up front so a crash mid-analysis leaves a traceable
// unprocessed row instead of losing the message.
func (s *PipelineService) processEmail(ctx context.Context, classifier *ClassifierService, rc *RunConfig, raw *RawEmail, report *BatchReport) error {
	if raw.MessageID == "" {
		return errors.New("message has no message id")
	}

	var email models.Email
	err := s.db.Where("message_id = ?", raw.MessageID).First(&email).Error
	switch {
	case err == nil:
		if email.IsProcessed {
			report.AlreadyProcessed++
			return nil
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		email = models.Email{
			MessageID:  raw.MessageID,
			ThreadID:   raw.ThreadID,
			Subject:    raw.Subject,
			Sender:     raw.Sender,
			Recipients: raw.Recipients,
			ReceivedAt: raw.ReceivedAt,
			BodyText:   raw.BodyText,
			BodyHTML:   raw.BodyHTML,
		}
		if err := s.db.Create(&email).Error; err != nil {
			// Another run may have stored the same message id first.
			if retryErr := s.db.Where("message_id = ?", raw.MessageID).First(&email).Error; retryErr != nil {
				return fmt.Errorf("failed to store email: %w", err)
			}
			if email.IsProcessed {
				report.AlreadyProcessed++
				return nil
			}
		}
	default:
		return fmt.Errorf("failed to look up email: %w", err)
	}

	return s.analyzeEmail(ctx, classifier, rc, &email, report)
}

// analyzeEmail classifies one stored email and, when it carries a backup
// signal, attaches it to its client and backup within one transaction.
func (s *PipelineService) analyzeEmail(ctx context.Context, classifier *ClassifierService, rc *RunConfig, email *models.Email, report *BatchReport) error {
	classifyCtx, cancel := context.WithTimeout(ctx, rc.AITimeout)
	signal := classifier.Classify(classifyCtx, email)
	cancel()

	report.Analyzed++
	if signal.IsBackupNotification {
		report.BackupNotifications++
		if signal.BackupType != "" {
			report.ByType[signal.BackupType]++
		}
		if signal.Status != "" {
			report.ByStatus[signal.Status]++
		}
	}

	now := time.Now().UTC()
	email.IsBackupNotification = signal.IsBackupNotification
	email.DetectedBackupType = signal.BackupType
	email.DetectedStatus = signal.Status
	email.DetectedNAS = signal.SourceNAS
	confidence := signal.Confidence
	email.AIConfidence = &confidence
	if extracted, err := json.Marshal(signal); err == nil {
		email.AIExtractedData = extracted
	}
	email.IsProcessed = true
	email.ProcessedAt = &now
	email.ProcessingError = ""

	if !signal.IsBackupNotification {
		if err := s.db.Save(email).Error; err != nil {
			return fmt.Errorf("failed to update email: %w", err)
		}
		return nil
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		resolution, err := s.resolver.Resolve(tx, signal)
		if err != nil {
			if errors.Is(err, ErrNoSourceNAS) {
				// Not attributable; keep the classification only.
				return tx.Save(email).Error
			}
			return err
		}
		if resolution.ClientCreated {
			report.ClientsCreated++
		}
		if resolution.BackupCreated {
			report.BackupsCreated++
		}

		_, created, err := s.events.Record(tx, resolution.Backup, email, signal)
		if err != nil {
			return err
		}
		if created {
			report.EventsCreated++
		}
		return tx.Save(email).Error
	})
	if err != nil {
		email.IsProcessed = false
		email.ProcessedAt = nil
		email.ProcessingError = err.Error()
		if saveErr := s.db.Save(email).Error; saveErr != nil {
			log.Printf("ERROR: failed to record processing error on email %s: %v", email.MessageID, saveErr)
		}
		return err
	}
	return nil
}

// Reprocess re-runs classification and recording for one stored email,
// regardless of its processed state. Used to retry failures and to test
// classifier changes against a known message.
func (s *PipelineService) Reprocess(ctx context.Context, emailID uuid.UUID) (*models.Email, *BatchReport, error) {
	var email models.Email
	if err := s.db.First(&email, "id = ?", emailID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("email not found")
		}
		return nil, nil, fmt.Errorf("failed to load email: %w", err)
	}

	rc, err := s.settings.LoadRunConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load run configuration: %w", err)
	}
	aiProvider, err := NewAIProvider(rc)
	if err != nil {
		return nil, nil, err
	}
	classifier := NewClassifierService(aiProvider)

	report := &BatchReport{
		RunID:     uuid.NewString(),
		ByStatus:  map[string]int{},
		ByType:    map[string]int{},
		StartedAt: time.Now().UTC(),
	}
	if err := s.analyzeEmail(ctx, classifier, rc, &email, report); err != nil {
		return nil, nil, err
	}
	report.Success = true
	report.FinishedAt = time.Now().UTC()
	report.DurationSeconds = report.FinishedAt.Sub(report.StartedAt).Seconds()

	var updated models.Email
	if err := s.db.First(&updated, "id = ?", email.ID).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to reload email: %w", err)
	}
	return &updated, report, nil
}

// Progress returns the snapshot of a run, if the store still has it.
func (s *PipelineService) Progress(ctx context.Context, runID string) (*BatchProgress, bool) {
	return s.progress.Load(ctx, runID)
}
