package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/neovalpox/backupControl/internal/models"
)

func seedEvents(t *testing.T, db *gorm.DB, backup *models.Backup, eventType string, count int, at time.Time) {
	t.Helper()
	for i := 0; i < count; i++ {
		require.NoError(t, db.Create(&models.BackupEvent{
			BackupID:  backup.ID,
			EventType: eventType,
			EventDate: at.Add(time.Duration(i) * time.Minute),
		}).Error)
	}
}

func TestReliabilitySuggestions(t *testing.T) {
	db := newTestDB(t)
	service := NewSuggestionService(db, newTestSettings(t, db))
	client := createTestClient(t, db, "NABO")
	recent := time.Now().UTC().Add(-48 * time.Hour)

	flaky := createTestBackup(t, db, client, "Sauvegarde fragile", models.BackupTypeHyperBackup)
	seedEvents(t, db, flaky, models.EventTypeSuccess, 8, recent)
	seedEvents(t, db, flaky, models.EventTypeFailure, 2, recent)

	broken := createTestBackup(t, db, client, "Sauvegarde cassée", models.BackupTypeVeeam)
	seedEvents(t, db, broken, models.EventTypeSuccess, 5, recent)
	seedEvents(t, db, broken, models.EventTypeFailure, 5, recent)

	lone := createTestBackup(t, db, client, "Échec isolé", models.BackupTypeRsync)
	seedEvents(t, db, lone, models.EventTypeSuccess, 9, recent)
	seedEvents(t, db, lone, models.EventTypeFailure, 1, recent)

	stale := createTestBackup(t, db, client, "Échecs anciens", models.BackupTypeAcronis)
	seedEvents(t, db, stale, models.EventTypeFailure, 5, time.Now().UTC().Add(-40*24*time.Hour))

	var backups []models.Backup
	require.NoError(t, db.Preload("Client").Find(&backups).Error)

	suggestions := service.reliabilitySuggestions(backups)
	require.Len(t, suggestions, 2)

	byTitle := map[string]models.AISuggestion{}
	for _, s := range suggestions {
		byTitle[s.Title] = s
	}

	flagged, ok := byTitle["Fiabilité en baisse: Sauvegarde fragile"]
	require.True(t, ok)
	assert.Equal(t, "reliability", flagged.Category)
	assert.Equal(t, "medium", flagged.Priority)
	assert.Contains(t, flagged.Description, "2 échecs sur 10")
	assert.Contains(t, flagged.Description, "Client NABO")

	critical, ok := byTitle["Fiabilité en baisse: Sauvegarde cassée"]
	require.True(t, ok)
	assert.Equal(t, "high", critical.Priority)
}

func TestAvailabilitySuggestions(t *testing.T) {
	db := newTestDB(t)
	service := NewSuggestionService(db, newTestSettings(t, db))
	now := time.Now().UTC()
	client := models.Client{Name: "Client NABO"}
	clientID := uuid.New()

	neverSucceeded := models.Backup{
		ID: uuid.New(), ClientID: clientID, Client: client,
		Name:        "Jamais réussie",
		LastEventAt: timePtr(now.Add(-time.Hour)),
	}
	silentWeek := models.Backup{
		ID: uuid.New(), ClientID: clientID, Client: client,
		Name:          "Silencieuse",
		LastEventAt:   timePtr(now.Add(-time.Hour)),
		LastSuccessAt: timePtr(now.Add(-8 * 24 * time.Hour)),
	}
	healthy := models.Backup{
		ID: uuid.New(), ClientID: clientID, Client: client,
		Name:          "Saine",
		LastEventAt:   timePtr(now.Add(-time.Hour)),
		LastSuccessAt: timePtr(now.Add(-24 * time.Hour)),
	}
	inMaintenance := models.Backup{
		ID: uuid.New(), ClientID: clientID, Client: client,
		Name:          "En maintenance",
		LastEventAt:   timePtr(now.Add(-time.Hour)),
		IsMaintenance: true,
	}
	neverSeen := models.Backup{
		ID: uuid.New(), ClientID: clientID, Client: client,
		Name: "Jamais vue",
	}

	suggestions := service.availabilitySuggestions([]models.Backup{
		neverSucceeded, silentWeek, healthy, inMaintenance, neverSeen,
	})
	require.Len(t, suggestions, 2)

	assert.Equal(t, "Sauvegarde silencieuse: Jamais réussie", suggestions[0].Title)
	assert.Contains(t, suggestions[0].Description, "jamais")
	assert.Equal(t, "high", suggestions[0].Priority)

	assert.Equal(t, "Sauvegarde silencieuse: Silencieuse", suggestions[1].Title)
	assert.Contains(t, suggestions[1].Description, "8 jours")
}

func TestGenerateReplacesOpenSuggestions(t *testing.T) {
	db := newTestDB(t)
	service := NewSuggestionService(db, newTestSettings(t, db))
	client := createTestClient(t, db, "NABO")

	backup := createTestBackup(t, db, client, "Sauvegarde cassée", models.BackupTypeHyperBackup)
	recent := time.Now().UTC().Add(-48 * time.Hour)
	seedEvents(t, db, backup, models.EventTypeSuccess, 5, recent)
	seedEvents(t, db, backup, models.EventTypeFailure, 5, recent)

	open := &models.AISuggestion{Category: "reliability", Priority: "low", Title: "Ancienne suggestion"}
	dismissed := &models.AISuggestion{Category: "reliability", Priority: "low", Title: "Écartée", IsDismissed: true}
	implemented := &models.AISuggestion{Category: "config", Priority: "low", Title: "Appliquée", IsImplemented: true}
	require.NoError(t, db.Create(open).Error)
	require.NoError(t, db.Create(dismissed).Error)
	require.NoError(t, db.Create(implemented).Error)

	// No AI key is configured, so only the rule-based suggestions appear.
	suggestions, err := service.Generate(context.Background())
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "Fiabilité en baisse: Sauvegarde cassée", suggestions[0].Title)
	require.NotNil(t, suggestions[0].ExpiresAt)
	assert.True(t, suggestions[0].ExpiresAt.After(time.Now().UTC().Add(6*24*time.Hour)))

	var titles []string
	require.NoError(t, db.Model(&models.AISuggestion{}).Order("title").Pluck("title", &titles).Error)
	assert.Equal(t, []string{"Appliquée", "Fiabilité en baisse: Sauvegarde cassée", "Écartée"}, titles)
}

func TestCleanupExpired(t *testing.T) {
	db := newTestDB(t)
	service := NewSuggestionService(db, newTestSettings(t, db))
	now := time.Now().UTC()

	require.NoError(t, db.Create(&models.AISuggestion{Title: "Expirée", ExpiresAt: timePtr(now.Add(-time.Hour))}).Error)
	require.NoError(t, db.Create(&models.AISuggestion{Title: "Expirée mais appliquée", ExpiresAt: timePtr(now.Add(-time.Hour)), IsImplemented: true}).Error)
	require.NoError(t, db.Create(&models.AISuggestion{Title: "Valide", ExpiresAt: timePtr(now.Add(time.Hour))}).Error)
	require.NoError(t, db.Create(&models.AISuggestion{Title: "Sans expiration"}).Error)

	deleted, err := service.CleanupExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var count int64
	require.NoError(t, db.Model(&models.AISuggestion{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)
}

func TestSuggestionListOrdering(t *testing.T) {
	db := newTestDB(t)
	service := NewSuggestionService(db, newTestSettings(t, db))

	require.NoError(t, db.Create(&models.AISuggestion{Title: "Basse", Priority: "low"}).Error)
	require.NoError(t, db.Create(&models.AISuggestion{Title: "Critique", Priority: "critical"}).Error)
	require.NoError(t, db.Create(&models.AISuggestion{Title: "Moyenne", Priority: "medium"}).Error)
	require.NoError(t, db.Create(&models.AISuggestion{Title: "Écartée", Priority: "critical", IsDismissed: true}).Error)

	suggestions, err := service.List(false)
	require.NoError(t, err)
	require.Len(t, suggestions, 3)
	assert.Equal(t, "Critique", suggestions[0].Title)
	assert.Equal(t, "Moyenne", suggestions[1].Title)
	assert.Equal(t, "Basse", suggestions[2].Title)

	all, err := service.List(true)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestDismissAndImplement(t *testing.T) {
	db := newTestDB(t)
	service := NewSuggestionService(db, newTestSettings(t, db))

	s := &models.AISuggestion{Title: "Suggestion"}
	require.NoError(t, db.Create(s).Error)

	_, err := service.Dismiss(s.ID)
	require.NoError(t, err)
	var reloaded models.AISuggestion
	require.NoError(t, db.First(&reloaded, "id = ?", s.ID).Error)
	assert.True(t, reloaded.IsDismissed)

	_, err = service.MarkImplemented(s.ID)
	require.NoError(t, err)
	require.NoError(t, db.First(&reloaded, "id = ?", s.ID).Error)
	assert.True(t, reloaded.IsImplemented)

	_, err = service.Dismiss(uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "suggestion not found")
}

func TestNormalizeSuggestionFields(t *testing.T) {
	assert.Equal(t, "security", normalizeSuggestionCategory(" Security "))
	assert.Equal(t, "fleet_health", normalizeSuggestionCategory("divers"))
	assert.Equal(t, "high", normalizeSuggestionPriority("HIGH"))
	assert.Equal(t, "medium", normalizeSuggestionPriority("urgent"))
}
