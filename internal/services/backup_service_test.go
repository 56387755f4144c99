package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neovalpox/backupControl/internal/models"
)

func TestBackupCreate(t *testing.T) {
	db := newTestDB(t)
	service := NewBackupService(db)
	client := createTestClient(t, db, "NABO")

	backup, err := service.Create(BackupInput{
		ClientID:   client.ID,
		Name:       "  Sauvegarde quotidienne  ",
		BackupType: models.BackupTypeHyperBackup,
		SourceNAS:  "nabo03",
	})
	require.NoError(t, err)

	assert.Equal(t, "Sauvegarde quotidienne", backup.Name)
	assert.Equal(t, "NABO03", backup.SourceNAS)
	assert.Equal(t, models.StatusUnknown, backup.CurrentStatus)
	assert.True(t, backup.IsActive)
}

func TestBackupCreateValidations(t *testing.T) {
	db := newTestDB(t)
	service := NewBackupService(db)
	client := createTestClient(t, db, "NABO")

	_, err := service.Create(BackupInput{ClientID: uuid.New(), Name: "X", BackupType: models.BackupTypeVeeam})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client not found")

	_, err = service.Create(BackupInput{ClientID: client.ID, Name: "   "})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backup name is required")

	_, err = service.Create(BackupInput{ClientID: client.ID, Name: "X", BackupType: "zip"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid backup type")

	// An empty type defaults to other.
	backup, err := service.Create(BackupInput{ClientID: client.ID, Name: "X"})
	require.NoError(t, err)
	assert.Equal(t, models.BackupTypeOther, backup.BackupType)
}

func TestBackupUpdate(t *testing.T) {
	db := newTestDB(t)
	service := NewBackupService(db)
	client := createTestClient(t, db, "NABO")
	backup := createTestBackup(t, db, client, "Sauvegarde quotidienne", models.BackupTypeHyperBackup)

	updated, err := service.Update(backup.ID, BackupUpdate{
		Name:     strPtr("Sauvegarde renommée"),
		IsActive: boolPtr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, "Sauvegarde renommée", updated.Name)
	assert.False(t, updated.IsActive)
	// Untouched fields survive a partial update.
	assert.Equal(t, models.BackupTypeHyperBackup, updated.BackupType)

	_, err = service.Update(backup.ID, BackupUpdate{BackupType: strPtr("zip")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid backup type")

	_, err = service.Update(uuid.New(), BackupUpdate{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backup not found")
}

func TestBackupListWorstFirst(t *testing.T) {
	db := newTestDB(t)
	service := NewBackupService(db)
	client := createTestClient(t, db, "NABO")

	for name, status := range map[string]string{
		"Tâche OK":       models.StatusOK,
		"Tâche échouée":  models.StatusFailed,
		"Tâche alerte":   models.StatusAlert,
		"Tâche critique": models.StatusCritical,
	} {
		backup := createTestBackup(t, db, client, name, models.BackupTypeHyperBackup)
		require.NoError(t, db.Model(backup).Update("current_status", status).Error)
	}

	backups, err := service.List(BackupFilters{})
	require.NoError(t, err)
	require.Len(t, backups, 4)
	assert.Equal(t, models.StatusFailed, backups[0].CurrentStatus)
	assert.Equal(t, models.StatusCritical, backups[1].CurrentStatus)
	assert.Equal(t, models.StatusAlert, backups[2].CurrentStatus)
	assert.Equal(t, models.StatusOK, backups[3].CurrentStatus)
}

func TestBackupListFilters(t *testing.T) {
	db := newTestDB(t)
	service := NewBackupService(db)
	clientA := createTestClient(t, db, "NABO")
	clientB := createTestClient(t, db, "NBET")

	createTestBackup(t, db, clientA, "Hyper quotidienne", models.BackupTypeHyperBackup)
	createTestBackup(t, db, clientB, "Veeam hebdo", models.BackupTypeVeeam)
	inactive := createTestBackup(t, db, clientB, "Ancienne tâche", models.BackupTypeVeeam)
	require.NoError(t, db.Model(inactive).Update("is_active", false).Error)

	byClient, err := service.List(BackupFilters{ClientID: &clientA.ID})
	require.NoError(t, err)
	require.Len(t, byClient, 1)
	assert.Equal(t, "Hyper quotidienne", byClient[0].Name)

	byType, err := service.List(BackupFilters{BackupType: models.BackupTypeVeeam, IsActive: boolPtr(true)})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, "Veeam hebdo", byType[0].Name)

	// Lowercase NAS filters match the stored uppercase identifier.
	byNAS, err := service.List(BackupFilters{SourceNAS: "nabo01"})
	require.NoError(t, err)
	assert.Len(t, byNAS, 1)

	bySearch, err := service.List(BackupFilters{Search: "hebdo"})
	require.NoError(t, err)
	assert.Len(t, bySearch, 1)
}

func TestBackupSetMaintenance(t *testing.T) {
	db := newTestDB(t)
	service := NewBackupService(db)
	client := createTestClient(t, db, "NABO")
	backup := createTestBackup(t, db, client, "Sauvegarde quotidienne", models.BackupTypeHyperBackup)

	until := time.Now().UTC().Add(48 * time.Hour)
	updated, err := service.SetMaintenance(backup.ID, true, &until, "migration de baie")
	require.NoError(t, err)
	assert.True(t, updated.IsMaintenance)
	require.NotNil(t, updated.MaintenanceUntil)
	assert.Equal(t, "migration de baie", updated.MaintenanceReason)
	assert.True(t, updated.InMaintenance(time.Now().UTC()))

	updated, err = service.SetMaintenance(backup.ID, false, nil, "")
	require.NoError(t, err)
	assert.False(t, updated.IsMaintenance)
	assert.Nil(t, updated.MaintenanceUntil)
	assert.Equal(t, "", updated.MaintenanceReason)
}

func TestBackupDeleteCascades(t *testing.T) {
	db := newTestDB(t)
	service := NewBackupService(db)
	events := NewEventService(db)
	client := createTestClient(t, db, "NABO")
	backup := createTestBackup(t, db, client, "Sauvegarde quotidienne", models.BackupTypeHyperBackup)

	email := createTestEmail(t, db, "msg-1", time.Now().UTC())
	_, _, err := events.Record(db, backup, email, &BackupSignal{Status: "failure"})
	require.NoError(t, err)
	createTestAlert(t, db, backup, models.AlertTypeBackupFailed, models.SeverityCritical)

	require.NoError(t, service.Delete(backup.ID))

	var eventCount, alertCount int64
	require.NoError(t, db.Model(&models.BackupEvent{}).Count(&eventCount).Error)
	require.NoError(t, db.Model(&models.Alert{}).Count(&alertCount).Error)
	assert.Equal(t, int64(0), eventCount)
	assert.Equal(t, int64(0), alertCount)

	err = service.Delete(backup.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backup not found")
}

func TestBackupHistory(t *testing.T) {
	db := newTestDB(t)
	service := NewBackupService(db)
	events := NewEventService(db)
	client := createTestClient(t, db, "NABO")
	backup := createTestBackup(t, db, client, "Sauvegarde quotidienne", models.BackupTypeHyperBackup)

	base := time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		email := createTestEmail(t, db, uuid.NewString(), base.Add(time.Duration(i)*24*time.Hour))
		_, _, err := events.Record(db, backup, email, &BackupSignal{Status: "success"})
		require.NoError(t, err)
	}

	history, err := service.History(backup.ID, 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	// Newest first.
	assert.True(t, history[0].EventDate.After(history[1].EventDate))
	assert.True(t, history[1].EventDate.After(history[2].EventDate))
}
