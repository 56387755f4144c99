package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/neovalpox/backupControl/internal/models"
)

const (
	suggestionWindow   = 30 * 24 * time.Hour
	suggestionLifetime = 7 * 24 * time.Hour
	silentBackupAge    = 7 * 24 * time.Hour
	suggestionTokens   = 2048
)

const fleetAnalysisSystemPrompt = `Tu es un expert en infrastructure de sauvegarde.
On te fournit un résumé de l'état d'un parc de sauvegardes (NAS Synology, Veeam, Acronis).
Propose des améliorations concrètes et actionnables.

Réponds UNIQUEMENT avec un tableau JSON:
[
    {
        "category": "optimization" | "security" | "reliability" | "config",
        "priority": "low" | "medium" | "high" | "critical",
        "title": string,
        "description": string,
        "recommendation": string
    }
]`

// SuggestionService derives fleet improvement recommendations from event
// history, optionally enriched by an AI pass over the fleet summary.
type SuggestionService struct {
	db       *gorm.DB
	settings *SettingsService
}

func NewSuggestionService(db *gorm.DB, settings *SettingsService) *SuggestionService {
	return &SuggestionService{db: db, settings: settings}
}

// Generate replaces the open suggestions with a fresh set. Dismissed and
// implemented suggestions are kept as history. The rule-based suggestions
// never depend on the AI provider; the fleet-health pass is best effort.
func (s *SuggestionService) Generate(ctx context.Context) ([]models.AISuggestion, error) {
	var backups []models.Backup
	err := s.db.Preload("Client").Where("is_active = ?", true).Find(&backups).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load backups: %w", err)
	}

	var suggestions []models.AISuggestion
	suggestions = append(suggestions, s.reliabilitySuggestions(backups)...)
	suggestions = append(suggestions, s.availabilitySuggestions(backups)...)
	suggestions = append(suggestions, s.fleetHealthSuggestions(ctx, backups)...)

	expiry := time.Now().UTC().Add(suggestionLifetime)
	for i := range suggestions {
		suggestions[i].ExpiresAt = &expiry
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("is_dismissed = ? AND is_implemented = ?", false, false).
			Delete(&models.AISuggestion{}).Error; err != nil {
			return err
		}
		for i := range suggestions {
			if err := tx.Create(&suggestions[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store suggestions: %w", err)
	}

	log.Printf("Generated %d suggestions over %d backups", len(suggestions), len(backups))
	return suggestions, nil
}

// reliabilitySuggestions flags backups whose recent failure rate crossed 10%.
func (s *SuggestionService) reliabilitySuggestions(backups []models.Backup) []models.AISuggestion {
	since := time.Now().UTC().Add(-suggestionWindow)
	var suggestions []models.AISuggestion

	for i := range backups {
		backup := &backups[i]

		type tally struct {
			EventType string
			Count     int64
		}
		var tallies []tally
		err := s.db.Model(&models.BackupEvent{}).
			Select("event_type, COUNT(*) as count").
			Where("backup_id = ? AND event_date >= ?", backup.ID, since).
			Group("event_type").
			Scan(&tallies).Error
		if err != nil {
			log.Printf("WARN: failed to tally events for backup %s: %v", backup.ID, err)
			continue
		}

		var successes, failures int64
		for _, t := range tallies {
			switch t.EventType {
			case models.EventTypeSuccess:
				successes = t.Count
			case models.EventTypeFailure:
				failures = t.Count
			}
		}
		total := successes + failures
		if total == 0 || failures < 2 {
			continue
		}
		rate := float64(failures) / float64(total)
		if rate <= 0.10 {
			continue
		}

		priority := "medium"
		if rate > 0.30 {
			priority = "high"
		}
		analysis, _ := json.Marshal(map[string]interface{}{
			"window_days":  30,
			"successes":    successes,
			"failures":     failures,
			"failure_rate": rate,
		})
		suggestions = append(suggestions, models.AISuggestion{
			Category: "reliability",
			Priority: priority,
			Title:    fmt.Sprintf("Fiabilité en baisse: %s", backup.Name),
			Description: fmt.Sprintf("%d échecs sur %d exécutions au cours des 30 derniers jours (%.0f%%) pour %s (%s).",
				failures, total, rate*100, backup.Name, backup.Client.Name),
			Recommendation:  "Vérifier l'espace disque de destination, les identifiants et les journaux de la tâche.",
			AffectedClients: []string{backup.ClientID.String()},
			AffectedBackups: []string{backup.ID.String()},
			AnalysisData:    analysis,
		})
	}
	return suggestions
}

// availabilitySuggestions flags backups that went silent: past events exist
// but nothing succeeded for over a week.
func (s *SuggestionService) availabilitySuggestions(backups []models.Backup) []models.AISuggestion {
	now := time.Now().UTC()
	var silent []models.Backup
	for i := range backups {
		backup := backups[i]
		if backup.LastEventAt == nil || backup.InMaintenance(now) {
			continue
		}
		if backup.LastSuccessAt != nil && now.Sub(*backup.LastSuccessAt) < silentBackupAge {
			continue
		}
		silent = append(silent, backup)
	}
	if len(silent) == 0 {
		return nil
	}

	var suggestions []models.AISuggestion
	for _, backup := range silent {
		sinceText := "jamais"
		if backup.LastSuccessAt != nil {
			sinceText = fmt.Sprintf("%d jours", int(now.Sub(*backup.LastSuccessAt).Hours()/24))
		}
		suggestions = append(suggestions, models.AISuggestion{
			Category: "availability",
			Priority: "high",
			Title:    fmt.Sprintf("Sauvegarde silencieuse: %s", backup.Name),
			Description: fmt.Sprintf("Dernière réussite: %s. La tâche %s (%s) émet des notifications mais ne réussit plus.",
				sinceText, backup.Name, backup.Client.Name),
			Recommendation:  "Contrôler la planification de la tâche et la connectivité vers la destination.",
			AffectedClients: []string{backup.ClientID.String()},
			AffectedBackups: []string{backup.ID.String()},
		})
	}
	return suggestions
}

type suggestionWire struct {
	Category       *string `json:"category"`
	Priority       *string `json:"priority"`
	Title          *string `json:"title"`
	Description    *string `json:"description"`
	Recommendation *string `json:"recommendation"`
}

// fleetHealthSuggestions asks the AI provider for recommendations over a
// fleet summary. Any failure yields no suggestions rather than an error.
func (s *SuggestionService) fleetHealthSuggestions(ctx context.Context, backups []models.Backup) []models.AISuggestion {
	rc, err := s.settings.LoadRunConfig()
	if err != nil {
		return nil
	}
	provider, err := NewAIProvider(rc)
	if err != nil {
		log.Printf("WARN: fleet analysis skipped: %v", err)
		return nil
	}

	byStatus := map[string]int{}
	var failing []string
	for i := range backups {
		byStatus[backups[i].CurrentStatus]++
		if backups[i].CurrentStatus == models.StatusFailed || backups[i].CurrentStatus == models.StatusCritical {
			failing = append(failing, fmt.Sprintf("%s (%s, %s)",
				backups[i].Name, backups[i].Client.Name, backups[i].CurrentStatus))
		}
	}
	if len(failing) > 10 {
		failing = failing[:10]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Parc: %d sauvegardes actives.\n", len(backups))
	fmt.Fprintf(&sb, "Répartition par statut: %v\n", byStatus)
	if len(failing) > 0 {
		fmt.Fprintf(&sb, "Sauvegardes en difficulté:\n- %s\n", strings.Join(failing, "\n- "))
	}

	callCtx, cancel := context.WithTimeout(ctx, rc.AITimeout)
	defer cancel()
	text, err := provider.Complete(callCtx, CompletionRequest{
		System:    fleetAnalysisSystemPrompt,
		Prompt:    sb.String(),
		MaxTokens: suggestionTokens,
	})
	if err != nil {
		log.Printf("WARN: fleet analysis failed: %v", err)
		return nil
	}

	payload, ok := extractJSON(text)
	if !ok {
		log.Printf("WARN: fleet analysis returned no JSON array")
		return nil
	}
	var wires []suggestionWire
	if err := json.Unmarshal([]byte(payload), &wires); err != nil {
		log.Printf("WARN: unparsable fleet analysis response: %v", err)
		return nil
	}

	var suggestions []models.AISuggestion
	for _, w := range wires {
		title := strings.TrimSpace(strValue(w.Title))
		if title == "" {
			continue
		}
		suggestions = append(suggestions, models.AISuggestion{
			Category:       normalizeSuggestionCategory(strValue(w.Category)),
			Priority:       normalizeSuggestionPriority(strValue(w.Priority)),
			Title:          title,
			Description:    strValue(w.Description),
			Recommendation: strValue(w.Recommendation),
		})
	}
	return suggestions
}

func normalizeSuggestionCategory(category string) string {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case "optimization", "security", "reliability", "config", "availability":
		return strings.ToLower(strings.TrimSpace(category))
	default:
		return "fleet_health"
	}
}

func normalizeSuggestionPriority(priority string) string {
	switch strings.ToLower(strings.TrimSpace(priority)) {
	case "low", "medium", "high", "critical":
		return strings.ToLower(strings.TrimSpace(priority))
	default:
		return "medium"
	}
}

// List returns suggestions, most urgent first.
func (s *SuggestionService) List(includeDismissed bool) ([]models.AISuggestion, error) {
	query := s.db.Model(&models.AISuggestion{})
	if !includeDismissed {
		query = query.Where("is_dismissed = ?", false)
	}
	var suggestions []models.AISuggestion
	err := query.Order("CASE priority WHEN 'critical' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END, created_at DESC").
		Find(&suggestions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list suggestions: %w", err)
	}
	return suggestions, nil
}

func (s *SuggestionService) Dismiss(id uuid.UUID) (*models.AISuggestion, error) {
	return s.setFlag(id, "is_dismissed")
}

func (s *SuggestionService) MarkImplemented(id uuid.UUID) (*models.AISuggestion, error) {
	return s.setFlag(id, "is_implemented")
}

func (s *SuggestionService) setFlag(id uuid.UUID, column string) (*models.AISuggestion, error) {
	var suggestion models.AISuggestion
	if err := s.db.First(&suggestion, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("suggestion not found")
		}
		return nil, fmt.Errorf("failed to get suggestion: %w", err)
	}
	if err := s.db.Model(&suggestion).Update(column, true).Error; err != nil {
		return nil, fmt.Errorf("failed to update suggestion: %w", err)
	}
	return &suggestion, nil
}

// CleanupExpired drops expired suggestions that were never acted on.
func (s *SuggestionService) CleanupExpired() (int64, error) {
	result := s.db.Where("expires_at IS NOT NULL AND expires_at < ? AND is_implemented = ?", time.Now().UTC(), false).
		Delete(&models.AISuggestion{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to clean up suggestions: %w", result.Error)
	}
	return result.RowsAffected, nil
}
