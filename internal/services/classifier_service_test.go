package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neovalpox/backupControl/internal/models"
)

func TestFallbackClassifiesHyperBackupSuccess(t *testing.T) {
	classifier := NewClassifierService(nil)
	email := &models.Email{
		Subject:  "NABO03 - Sauvegarde Hyper Backup réussie",
		BodyText: "La tâche de sauvegarde s'est terminée sur NABO03.",
	}

	signal := classifier.Classify(context.Background(), email)

	assert.True(t, signal.IsBackupNotification)
	assert.Equal(t, "backup", signal.NotificationType)
	assert.Equal(t, models.BackupTypeHyperBackup, signal.BackupType)
	assert.Equal(t, "success", signal.Status)
	assert.Equal(t, "NABO03", signal.SourceNAS)
	assert.Equal(t, fallbackConfidence, signal.Confidence)
}

func TestFallbackClassifiesFailure(t *testing.T) {
	classifier := NewClassifierService(nil)
	email := &models.Email{
		Subject:  "Échec de la sauvegarde Active Backup sur NABO05",
		BodyText: "La tâche a échoué.",
	}

	signal := classifier.Classify(context.Background(), email)

	assert.True(t, signal.IsBackupNotification)
	assert.Equal(t, models.BackupTypeActiveBackup, signal.BackupType)
	assert.Equal(t, "failure", signal.Status)
	assert.Equal(t, "NABO05", signal.SourceNAS)
}

func TestFallbackSuccessKeywordsWinOverFailure(t *testing.T) {
	// "terminée" and "erreur" both appear; the success keywords are checked
	// first so a completed-with-remarks notification stays a success.
	classifier := NewClassifierService(nil)
	email := &models.Email{
		Subject:  "Sauvegarde rsync",
		BodyText: "La tâche s'est terminée. 1 erreur ignorée.",
	}

	signal := classifier.Classify(context.Background(), email)

	assert.Equal(t, models.BackupTypeRsync, signal.BackupType)
	assert.Equal(t, "success", signal.Status)
}

func TestFallbackNotificationTypesFromSubject(t *testing.T) {
	classifier := NewClassifierService(nil)

	tests := []struct {
		subject  string
		wantType string
	}{
		{"Alerte de sécurité sur NBET02", "security"},
		{"DSM 7.2 Update disponible", "update"},
		{"Onduleur: passage sur batterie", "ups"},
		{"Rapport mensuel", "other"},
	}
	for _, tt := range tests {
		signal := classifier.Classify(context.Background(), &models.Email{Subject: tt.subject})
		assert.False(t, signal.IsBackupNotification, tt.subject)
		assert.Equal(t, tt.wantType, signal.NotificationType, tt.subject)
	}
}

func TestFallbackActiveBackupTaskMarkerIsCaseSensitive(t *testing.T) {
	classifier := NewClassifierService(nil)

	signal := classifier.Classify(context.Background(), &models.Email{
		Subject: "Sauvegarde AB_SRV01 terminée",
	})
	assert.Equal(t, models.BackupTypeActiveBackup, signal.BackupType)

	signal = classifier.Classify(context.Background(), &models.Email{
		Subject: "Sauvegarde ab_srv01 terminée",
	})
	assert.Equal(t, "", signal.BackupType)
}

func TestFallbackExtractsNASFromBody(t *testing.T) {
	classifier := NewClassifierService(nil)

	signal := classifier.Classify(context.Background(), &models.Email{
		Subject:  "Sauvegarde terminée",
		BodyText: "le nas nabo03 a terminé la tâche",
	})
	assert.Equal(t, "NABO03", signal.SourceNAS)

	signal = classifier.Classify(context.Background(), &models.Email{
		Subject:  "Sauvegarde terminée",
		BodyText: "serveur SRV9",
	})
	assert.Equal(t, "", signal.SourceNAS)
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"prose around object", "Voici le résultat:\n{\"a\": 1}\nmerci", `{"a": 1}`, true},
		{"nested object", `{"inner": {"x": 1}, "b": 2}`, `{"inner": {"x": 1}, "b": 2}`, true},
		{"brace inside string", `{"msg": "a } b", "ok": true}`, `{"msg": "a } b", "ok": true}`, true},
		{"escaped quote inside string", `{"msg": "say \" and {", "ok": true}`, `{"msg": "say \" and {", "ok": true}`, true},
		{"array payload", `[1, 2, {"a": 3}]`, `[1, 2, {"a": 3}]`, true},
		{"no json", "pas de json ici", "", false},
		{"unbalanced", `{"a": 1`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractJSON(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSignalNormalization(t *testing.T) {
	signal, ok := parseSignal(`{
		"is_backup_notification": true,
		"notification_type": "backup",
		"backup_type": "Hyper_Backup",
		"status": "SUCCESS",
		"source_nas": " nabo03 ",
		"task_name": " Sauvegarde quotidienne ",
		"duration_seconds": 642.7,
		"transferred_size_bytes": 123456789.0,
		"confidence": 250
	}`)
	require.True(t, ok)

	assert.True(t, signal.IsBackupNotification)
	assert.Equal(t, models.BackupTypeHyperBackup, signal.BackupType)
	assert.Equal(t, "success", signal.Status)
	assert.Equal(t, "NABO03", signal.SourceNAS)
	assert.Equal(t, "Sauvegarde quotidienne", signal.TaskName)
	require.NotNil(t, signal.DurationSeconds)
	assert.Equal(t, 642, *signal.DurationSeconds)
	require.NotNil(t, signal.TransferredSizeBytes)
	assert.Equal(t, int64(123456789), *signal.TransferredSizeBytes)
	assert.Equal(t, 100, signal.Confidence)
}

func TestParseSignalUnknownValues(t *testing.T) {
	signal, ok := parseSignal(`{"is_backup_notification": false, "backup_type": "tape", "status": "done", "confidence": -5}`)
	require.True(t, ok)

	assert.Equal(t, models.BackupTypeOther, signal.BackupType)
	assert.Equal(t, "", signal.Status)
	assert.Equal(t, 0, signal.Confidence)

	_, ok = parseSignal("rien d'utilisable")
	assert.False(t, ok)
}

// anthropicStub answers the messages endpoint with a fixed completion text.
func anthropicStub(t *testing.T, status int, text string, gotBody *[]byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("failed to read request body: %v", err)
		}
		if gotBody != nil {
			*gotBody = body
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			fmt.Fprint(w, `{"error": {"type": "overloaded_error", "message": "try later"}}`)
			return
		}
		resp := map[string]interface{}{
			"content": []map[string]string{{"type": "text", "text": text}},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestClassifyWithProvider(t *testing.T) {
	var gotBody []byte
	srv := anthropicStub(t, http.StatusOK, "Voici l'analyse:\n"+`{
		"is_backup_notification": true,
		"notification_type": "backup",
		"backup_type": "hyper_backup",
		"status": "success",
		"source_nas": "nabo03",
		"task_name": "Sauvegarde quotidienne",
		"confidence": 92
	}`, &gotBody)
	defer srv.Close()

	provider := NewAnthropicProviderWithBaseURL("test-key", "", srv.URL, 5*time.Second)
	classifier := NewClassifierService(provider)

	receivedAt := time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC)
	email := &models.Email{
		MessageID:  "msg-1",
		Subject:    "NABO03 - Hyper Backup",
		Sender:     "nas@client.fr",
		BodyText:   "Tâche terminée.",
		ReceivedAt: &receivedAt,
	}
	signal := classifier.Classify(context.Background(), email)

	assert.True(t, signal.IsBackupNotification)
	assert.Equal(t, models.BackupTypeHyperBackup, signal.BackupType)
	assert.Equal(t, "success", signal.Status)
	assert.Equal(t, "NABO03", signal.SourceNAS)
	assert.Equal(t, 92, signal.Confidence)

	var req struct {
		Model    string `json:"model"`
		System   string `json:"system"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(gotBody, &req))
	assert.NotEmpty(t, req.System)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "user", req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "NABO03 - Hyper Backup")
	assert.Contains(t, req.Messages[0].Content, "2026-03-14T06:00:00Z")
}

func TestClassifyFallsBackOnGarbageResponse(t *testing.T) {
	srv := anthropicStub(t, http.StatusOK, "je ne peux pas analyser cet e-mail", nil)
	defer srv.Close()

	provider := NewAnthropicProviderWithBaseURL("test-key", "", srv.URL, 5*time.Second)
	classifier := NewClassifierService(provider)

	signal := classifier.Classify(context.Background(), &models.Email{
		Subject: "Sauvegarde Veeam réussie sur NPRO01",
	})

	assert.Equal(t, fallbackConfidence, signal.Confidence)
	assert.True(t, signal.IsBackupNotification)
	assert.Equal(t, models.BackupTypeVeeam, signal.BackupType)
	assert.Equal(t, "NPRO01", signal.SourceNAS)
}

func TestClassifyFallsBackOnProviderError(t *testing.T) {
	srv := anthropicStub(t, http.StatusInternalServerError, "", nil)
	defer srv.Close()

	provider := NewAnthropicProviderWithBaseURL("test-key", "", srv.URL, 5*time.Second)
	classifier := NewClassifierService(provider)

	signal := classifier.Classify(context.Background(), &models.Email{
		Subject: "Sauvegarde échouée sur NABO03",
	})

	assert.Equal(t, fallbackConfidence, signal.Confidence)
	assert.Equal(t, "failure", signal.Status)
}

func TestTruncateBodyKeepsRuneBoundaries(t *testing.T) {
	assert.Equal(t, "court", truncateBody("court", 10))
	assert.Equal(t, "ab", truncateBody("abcd", 2))
	// "é" is two bytes; cutting at 3 must back off to the rune boundary.
	assert.Equal(t, "é", truncateBody("éé", 3))

	long := "a" + strings.Repeat("é", maxBodyChars)
	cut := truncateBody(long, maxBodyChars)
	assert.True(t, utf8.ValidString(cut))
	assert.Len(t, cut, maxBodyChars-1)
}
