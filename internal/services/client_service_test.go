package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neovalpox/backupControl/internal/models"
)

func TestClientCreate(t *testing.T) {
	db := newTestDB(t)
	service := NewClientService(db)

	client, err := service.Create(ClientInput{
		ShortName:      " nabo ",
		NASIdentifiers: []string{"nabo03", " NABO05 "},
	})
	require.NoError(t, err)

	assert.Equal(t, "NABO", client.ShortName)
	assert.Equal(t, "Client NABO", client.Name)
	assert.Equal(t, 48, client.SLAHours)
	assert.True(t, client.IsActive)
	assert.True(t, client.HasNASIdentifier("NABO03"))
	assert.True(t, client.HasNASIdentifier("NABO05"))
}

func TestClientCreateValidations(t *testing.T) {
	db := newTestDB(t)
	service := NewClientService(db)

	_, err := service.Create(ClientInput{ShortName: "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid short name")

	_, err = service.Create(ClientInput{ShortName: "AB-CD"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid short name")

	_, err = service.Create(ClientInput{ShortName: "NABO", ContactEmail: "pas-un-email"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid contact email")

	_, err = service.Create(ClientInput{ShortName: "NABO"})
	require.NoError(t, err)

	_, err = service.Create(ClientInput{ShortName: "nabo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already taken")
}

func TestClientUpdate(t *testing.T) {
	db := newTestDB(t)
	service := NewClientService(db)
	client := createTestClient(t, db, "NABO")

	updated, err := service.Update(client.ID, ClientUpdate{
		Name:     strPtr("Nabo Industries"),
		SLAHours: intPtr(24),
		IsActive: boolPtr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, "Nabo Industries", updated.Name)
	assert.Equal(t, 24, updated.SLAHours)
	assert.False(t, updated.IsActive)
	// Untouched fields survive a partial update.
	assert.Equal(t, "NABO", updated.ShortName)

	_, err = service.Update(uuid.New(), ClientUpdate{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client not found")
}

func TestClientUpdateShortNameConflicts(t *testing.T) {
	db := newTestDB(t)
	service := NewClientService(db)
	createTestClient(t, db, "NABO")
	other := createTestClient(t, db, "NBET")

	_, err := service.Update(other.ID, ClientUpdate{ShortName: strPtr("nabo")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already taken")

	// Re-submitting the current short name is a no-op, not a conflict.
	updated, err := service.Update(other.ID, ClientUpdate{ShortName: strPtr("NBET")})
	require.NoError(t, err)
	assert.Equal(t, "NBET", updated.ShortName)
}

func TestClientList(t *testing.T) {
	db := newTestDB(t)
	service := NewClientService(db)

	createTestClient(t, db, "NABO")
	createTestClient(t, db, "NBET")
	inactive := createTestClient(t, db, "NOLD")
	require.NoError(t, db.Model(inactive).Update("is_active", false).Error)

	active, err := service.List(false, "")
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "NABO", active[0].ShortName)
	assert.Equal(t, "NBET", active[1].ShortName)

	all, err := service.List(true, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	found, err := service.List(true, "NOLD")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "NOLD", found[0].ShortName)
}

func TestClientDeleteCascades(t *testing.T) {
	db := newTestDB(t)
	service := NewClientService(db)
	events := NewEventService(db)
	client := createTestClient(t, db, "NABO")
	backup := createTestBackup(t, db, client, "Sauvegarde quotidienne", models.BackupTypeHyperBackup)

	email := createTestEmail(t, db, "msg-1", time.Now().UTC())
	_, _, err := events.Record(db, backup, email, &BackupSignal{Status: "success"})
	require.NoError(t, err)
	createTestAlert(t, db, backup, models.AlertTypeBackupMissing, models.SeverityAlert)

	keep := createTestClient(t, db, "NBET")
	keepBackup := createTestBackup(t, db, keep, "Autre sauvegarde", models.BackupTypeVeeam)

	require.NoError(t, service.Delete(client.ID))

	var clientCount, backupCount, eventCount, alertCount int64
	require.NoError(t, db.Model(&models.Client{}).Count(&clientCount).Error)
	require.NoError(t, db.Model(&models.Backup{}).Count(&backupCount).Error)
	require.NoError(t, db.Model(&models.BackupEvent{}).Count(&eventCount).Error)
	require.NoError(t, db.Model(&models.Alert{}).Count(&alertCount).Error)
	assert.Equal(t, int64(1), clientCount)
	assert.Equal(t, int64(1), backupCount)
	assert.Equal(t, int64(0), eventCount)
	assert.Equal(t, int64(0), alertCount)

	var survivor models.Backup
	require.NoError(t, db.First(&survivor, "id = ?", keepBackup.ID).Error)

	err = service.Delete(client.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client not found")
}

func TestClientGetByIDLoadsBackups(t *testing.T) {
	db := newTestDB(t)
	service := NewClientService(db)
	client := createTestClient(t, db, "NABO")
	createTestBackup(t, db, client, "Sauvegarde quotidienne", models.BackupTypeHyperBackup)

	loaded, err := service.GetByID(client.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Backups, 1)
}
