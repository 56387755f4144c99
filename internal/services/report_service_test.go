package services

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neovalpox/backupControl/internal/models"
)

func TestBackupsCSV(t *testing.T) {
	db := newTestDB(t)
	service := NewReportService(db)
	now := time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC)

	beta := createTestClient(t, db, "NBET")
	createTestBackup(t, db, beta, "Sauvegarde Beta", models.BackupTypeVeeam)

	nabo := createTestClient(t, db, "NABO")
	backup := createTestBackup(t, db, nabo, "Sauvegarde quotidienne", models.BackupTypeHyperBackup)
	require.NoError(t, db.Model(backup).Updates(map[string]interface{}{
		"current_status":      models.StatusOK,
		"last_success_at":     now,
		"total_success_count": 12,
		"total_failure_count": 1,
		"last_size_bytes":     123456,
	}).Error)

	var buf bytes.Buffer
	require.NoError(t, service.BackupsCSV(&buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{
		"client", "client_short_name", "backup", "type", "source_nas", "destination",
		"status", "last_success_at", "last_failure_at", "success_count", "failure_count",
		"last_size_bytes", "is_active", "is_maintenance",
	}, records[0])

	// Rows come out sorted by client short name.
	naboRow := records[1]
	assert.Equal(t, "Client NABO", naboRow[0])
	assert.Equal(t, "NABO", naboRow[1])
	assert.Equal(t, "Sauvegarde quotidienne", naboRow[2])
	assert.Equal(t, models.BackupTypeHyperBackup, naboRow[3])
	assert.Equal(t, "NABO01", naboRow[4])
	assert.Equal(t, models.StatusOK, naboRow[6])
	assert.Equal(t, "2026-03-14T06:00:00Z", naboRow[7])
	assert.Equal(t, "", naboRow[8])
	assert.Equal(t, "12", naboRow[9])
	assert.Equal(t, "1", naboRow[10])
	assert.Equal(t, "123456", naboRow[11])
	assert.Equal(t, "true", naboRow[12])
	assert.Equal(t, "false", naboRow[13])

	assert.Equal(t, "NBET", records[2][1])
}

func TestFleetPDF(t *testing.T) {
	db := newTestDB(t)
	service := NewReportService(db)

	client := createTestClient(t, db, "NABO")
	backup := createTestBackup(t, db, client, "Sauvegarde quotidienne", models.BackupTypeHyperBackup)
	require.NoError(t, db.Model(backup).Update("current_status", models.StatusCritical).Error)

	data, err := service.FleetPDF()
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestTruncateCell(t *testing.T) {
	assert.Equal(t, "court", truncateCell("court", 10))
	assert.Equal(t, "sauvega...", truncateCell("sauvegarde mensuelle", 10))
	// Accented runes count as one character, not their byte width.
	assert.Equal(t, "éééééééééé", truncateCell("éééééééééé", 10))
}
