package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/neovalpox/backupControl/internal/config"
)

// SchedulerService owns the recurring jobs: the daily mailbox analysis, the
// hourly status recompute, the daily suggestion refresh and the weekly
// retention cleanup. Job times follow the configured timezone; the analysis
// hour comes from settings and is re-read on Restart.
type SchedulerService struct {
	cfg         *config.Config
	settings    *SettingsService
	pipeline    *PipelineService
	status      *StatusService
	alerts      *AlertService
	emails      *EmailService
	suggestions *SuggestionService

	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID
}

func NewSchedulerService(
	cfg *config.Config,
	settings *SettingsService,
	pipeline *PipelineService,
	status *StatusService,
	alerts *AlertService,
	emails *EmailService,
	suggestions *SuggestionService,
) *SchedulerService {
	return &SchedulerService{
		cfg:         cfg,
		settings:    settings,
		pipeline:    pipeline,
		status:      status,
		alerts:      alerts,
		emails:      emails,
		suggestions: suggestions,
		entries:     map[string]cron.EntryID{},
	}
}

// Start registers and launches the recurring jobs. It is a no-op when the
// scheduler is disabled by configuration.
func (s *SchedulerService) Start() error {
	if !s.cfg.SchedulerEnabled {
		log.Println("Scheduler disabled by configuration")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	location, err := time.LoadLocation(s.cfg.SchedulerTimezone)
	if err != nil {
		return fmt.Errorf("invalid scheduler timezone %q: %w", s.cfg.SchedulerTimezone, err)
	}

	checkHour := s.settings.GetInt("check_hour", s.cfg.CheckHour)
	if checkHour < 0 || checkHour > 23 {
		checkHour = 8
	}
	suggestionHour := (checkHour + 1) % 24

	c := cron.New(
		cron.WithLocation(location),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)

	jobs := []struct {
		name string
		spec string
		run  func()
	}{
		{"daily_analysis", fmt.Sprintf("0 %d * * *", checkHour), s.runDailyAnalysis},
		{"hourly_status", "0 * * * *", s.runStatusRecompute},
		{"daily_suggestions", fmt.Sprintf("0 %d * * *", suggestionHour), s.runSuggestionRefresh},
		{"weekly_cleanup", "0 3 * * 0", s.runCleanup},
	}
	for _, job := range jobs {
		id, err := c.AddFunc(job.spec, job.run)
		if err != nil {
			return fmt.Errorf("failed to schedule %s: %w", job.name, err)
		}
		s.entries[job.name] = id
	}

	c.Start()
	s.cron = c
	log.Printf("Scheduler started (%s): analysis at %02d:00, suggestions at %02d:00", location, checkHour, suggestionHour)
	return nil
}

// Stop halts the scheduler, waiting for a running job to finish.
func (s *SchedulerService) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.entries = map[string]cron.EntryID{}
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
		log.Println("Scheduler stopped")
	}
}

// Restart re-reads the schedule settings and relaunches the jobs. Called
// after check_hour changes.
func (s *SchedulerService) Restart() error {
	s.Stop()
	return s.Start()
}

// ScheduledJob describes one registered job for the API.
type ScheduledJob struct {
	Name    string    `json:"name"`
	NextRun time.Time `json:"next_run"`
	PrevRun time.Time `json:"prev_run,omitempty"`
}

// Jobs lists the registered jobs and their next run times.
func (s *SchedulerService) Jobs() []ScheduledJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return nil
	}
	jobs := make([]ScheduledJob, 0, len(s.entries))
	for name, id := range s.entries {
		entry := s.cron.Entry(id)
		jobs = append(jobs, ScheduledJob{Name: name, NextRun: entry.Next, PrevRun: entry.Prev})
	}
	return jobs
}

func (s *SchedulerService) runDailyAnalysis() {
	log.Println("Scheduled analysis starting")
	report := s.pipeline.Run(context.Background(), 0, "")
	if !report.Success {
		log.Printf("ERROR: scheduled analysis failed: %s", report.Error)
	}
}

func (s *SchedulerService) runStatusRecompute() {
	ctx := context.Background()
	if _, err := s.status.RecomputeAll(ctx); err != nil {
		log.Printf("ERROR: scheduled status recompute failed: %v", err)
	}
	if _, err := s.alerts.GenerateFromFailedBackups(ctx); err != nil {
		log.Printf("ERROR: scheduled alert sweep failed: %v", err)
	}
}

func (s *SchedulerService) runSuggestionRefresh() {
	if _, err := s.suggestions.Generate(context.Background()); err != nil {
		log.Printf("ERROR: scheduled suggestion refresh failed: %v", err)
	}
}

func (s *SchedulerService) runCleanup() {
	retention := s.settings.GetInt("email_retention_days", s.cfg.EmailRetentionDays)
	if _, err := s.emails.CleanupOld(retention); err != nil {
		log.Printf("ERROR: scheduled email cleanup failed: %v", err)
	}
	if _, err := s.suggestions.CleanupExpired(); err != nil {
		log.Printf("ERROR: scheduled suggestion cleanup failed: %v", err)
	}
}
