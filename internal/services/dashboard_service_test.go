package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neovalpox/backupControl/internal/models"
)

func TestDashboardSummary(t *testing.T) {
	db := newTestDB(t)
	service := NewDashboardService(db)
	now := time.Now().UTC()

	nabo := createTestClient(t, db, "NABO")
	beta := createTestClient(t, db, "NBET")
	require.NoError(t, db.Model(beta).Update("is_active", false).Error)

	ok := createTestBackup(t, db, nabo, "Sauvegarde quotidienne", models.BackupTypeHyperBackup)
	require.NoError(t, db.Model(ok).Update("current_status", models.StatusOK).Error)
	failed := createTestBackup(t, db, nabo, "Sauvegarde hebdomadaire", models.BackupTypeHyperBackup)
	require.NoError(t, db.Model(failed).Update("current_status", models.StatusFailed).Error)
	retired := createTestBackup(t, db, nabo, "Ancienne sauvegarde", models.BackupTypeVeeam)
	require.NoError(t, db.Model(retired).Updates(map[string]interface{}{
		"current_status": models.StatusCritical,
		"is_active":      false,
	}).Error)

	createTestAlert(t, db, failed, models.AlertTypeBackupFailed, models.SeverityCritical)
	resolved := createTestAlert(t, db, ok, models.AlertTypeBackupMissing, models.SeverityWarning)
	require.NoError(t, db.Model(resolved).Update("is_resolved", true).Error)

	events := []models.BackupEvent{
		{BackupID: ok.ID, EventType: models.EventTypeSuccess, EventDate: now.Add(-2 * time.Hour)},
		{BackupID: failed.ID, EventType: models.EventTypeFailure, EventDate: now.Add(-3 * time.Hour)},
		{BackupID: ok.ID, EventType: models.EventTypeSuccess, EventDate: now.Add(-48 * time.Hour)},
	}
	for i := range events {
		require.NoError(t, db.Create(&events[i]).Error)
	}

	emails := []models.Email{
		{MessageID: "dash-1", IsBackupNotification: true},
		{MessageID: "dash-2"},
	}
	for i := range emails {
		require.NoError(t, db.Create(&emails[i]).Error)
	}

	summary, err := service.Summary()
	require.NoError(t, err)

	assert.Equal(t, int64(2), summary.TotalClients)
	assert.Equal(t, int64(1), summary.ActiveClients)
	assert.Equal(t, int64(3), summary.TotalBackups)
	assert.Equal(t, int64(2), summary.ActiveBackups)

	// Grouped counters only cover active backups.
	assert.Equal(t, int64(1), summary.BackupsByStatus[models.StatusOK])
	assert.Equal(t, int64(1), summary.BackupsByStatus[models.StatusFailed])
	assert.NotContains(t, summary.BackupsByStatus, models.StatusCritical)
	assert.Equal(t, int64(2), summary.BackupsByType[models.BackupTypeHyperBackup])
	assert.NotContains(t, summary.BackupsByType, models.BackupTypeVeeam)

	assert.Equal(t, int64(1), summary.UnresolvedAlerts)
	assert.Equal(t, int64(1), summary.AlertsBySeverity[models.SeverityCritical])
	assert.NotContains(t, summary.AlertsBySeverity, models.SeverityWarning)

	assert.Equal(t, int64(2), summary.EventsLast24h)
	assert.Equal(t, int64(1), summary.SuccessesLast24h)
	assert.Equal(t, int64(1), summary.FailuresLast24h)

	assert.Equal(t, int64(2), summary.EmailStats["total"])
	assert.Equal(t, int64(1), summary.EmailStats["backup_notifications"])
	assert.WithinDuration(t, now, summary.GeneratedAt, time.Minute)
}

func TestDashboardAttention(t *testing.T) {
	db := newTestDB(t)
	service := NewDashboardService(db)
	now := time.Now().UTC()
	client := createTestClient(t, db, "NABO")

	healthy := createTestBackup(t, db, client, "Sauvegarde saine", models.BackupTypeHyperBackup)
	require.NoError(t, db.Model(healthy).Update("current_status", models.StatusOK).Error)

	alerting := createTestBackup(t, db, client, "Sauvegarde en alerte", models.BackupTypeHyperBackup)
	require.NoError(t, db.Model(alerting).Updates(map[string]interface{}{
		"current_status":  models.StatusAlert,
		"last_success_at": now.Add(-50 * time.Hour),
	}).Error)

	critical := createTestBackup(t, db, client, "Sauvegarde critique", models.BackupTypeRsync)
	require.NoError(t, db.Model(critical).Updates(map[string]interface{}{
		"current_status":  models.StatusCritical,
		"last_success_at": now.Add(-100 * time.Hour),
	}).Error)

	broken := createTestBackup(t, db, client, "Sauvegarde cassée", models.BackupTypeActiveBackup)
	require.NoError(t, db.Model(broken).Update("current_status", models.StatusFailed).Error)

	ignored := createTestBackup(t, db, client, "Sauvegarde retirée", models.BackupTypeVeeam)
	require.NoError(t, db.Model(ignored).Updates(map[string]interface{}{
		"current_status": models.StatusFailed,
		"is_active":      false,
	}).Error)

	backups, err := service.Attention()
	require.NoError(t, err)
	require.Len(t, backups, 3)
	assert.Equal(t, "Sauvegarde cassée", backups[0].Name)
	assert.Equal(t, "Sauvegarde critique", backups[1].Name)
	assert.Equal(t, "Sauvegarde en alerte", backups[2].Name)
	// The client comes preloaded for display.
	assert.Equal(t, "NABO", backups[0].Client.ShortName)
}
