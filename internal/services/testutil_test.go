package services

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/neovalpox/backupControl/internal/config"
	"github.com/neovalpox/backupControl/internal/models"
)

// newTestDB opens an isolated in-memory database. The pool is pinned to a
// single connection so every session sees the same memory store.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.Migrate(db))
	return db
}

func newTestSettings(t *testing.T, db *gorm.DB) *SettingsService {
	t.Helper()
	return NewSettingsService(db, &config.Config{AITimeout: 5 * time.Second})
}

func createTestClient(t *testing.T, db *gorm.DB, shortName string) *models.Client {
	t.Helper()
	client := &models.Client{
		Name:      "Client " + shortName,
		ShortName: shortName,
		SLAHours:  48,
		IsActive:  true,
	}
	require.NoError(t, db.Create(client).Error)
	return client
}

func createTestBackup(t *testing.T, db *gorm.DB, client *models.Client, name, backupType string) *models.Backup {
	t.Helper()
	backup := &models.Backup{
		ClientID:      client.ID,
		Name:          name,
		BackupType:    backupType,
		SourceNAS:     client.ShortName + "01",
		CurrentStatus: models.StatusUnknown,
		IsActive:      true,
	}
	require.NoError(t, db.Create(backup).Error)
	return backup
}

func timePtr(t time.Time) *time.Time { return &t }

func intPtr(v int) *int { return &v }

func int64Ptr(v int64) *int64 { return &v }

func boolPtr(v bool) *bool { return &v }

func strPtr(v string) *string { return &v }
