package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neovalpox/backupControl/internal/config"
	"github.com/neovalpox/backupControl/internal/models"
)

func TestEnsureDefaultsKeepsExistingValues(t *testing.T) {
	db := newTestDB(t)
	service := NewSettingsService(db, &config.Config{
		AIProvider:      "anthropic",
		AnthropicAPIKey: "k1",
		EmailProvider:   "office365",
		IMAPPort:        993,
		CheckHour:       8,
		BatchLimit:      100,
	})

	require.NoError(t, service.EnsureDefaults())
	assert.Equal(t, "k1", service.Get("anthropic_api_key", ""))
	assert.Equal(t, "8", service.Get("check_hour", ""))

	require.NoError(t, service.Set("check_hour", "10"))
	require.NoError(t, service.EnsureDefaults())
	assert.Equal(t, "10", service.Get("check_hour", ""))
}

func TestGetFallsBackOnMissingOrEmpty(t *testing.T) {
	db := newTestDB(t)
	service := newTestSettings(t, db)

	assert.Equal(t, "dflt", service.Get("nonexistent", "dflt"))

	require.NoError(t, db.Create(&models.AppSetting{Key: "empty_key", Value: ""}).Error)
	assert.Equal(t, "dflt", service.Get("empty_key", "dflt"))

	require.NoError(t, db.Create(&models.AppSetting{Key: "set_key", Value: "v"}).Error)
	assert.Equal(t, "v", service.Get("set_key", "dflt"))
}

func TestGetIntAndGetBool(t *testing.T) {
	db := newTestDB(t)
	service := newTestSettings(t, db)

	require.NoError(t, service.Set("num", "42"))
	require.NoError(t, service.Set("notnum", "abc"))
	assert.Equal(t, 42, service.GetInt("num", 7))
	assert.Equal(t, 7, service.GetInt("notnum", 7))
	assert.Equal(t, 7, service.GetInt("missing", 7))

	require.NoError(t, service.Set("flag_on", "true"))
	require.NoError(t, service.Set("flag_off", "0"))
	assert.True(t, service.GetBool("flag_on", false))
	assert.False(t, service.GetBool("flag_off", true))
	assert.True(t, service.GetBool("missing", true))
}

func TestSetIgnoresBlankSecretWrites(t *testing.T) {
	db := newTestDB(t)
	service := newTestSettings(t, db)

	require.NoError(t, db.Create(&models.AppSetting{Key: "api_key", Value: "secret-1", IsSecret: true}).Error)
	require.NoError(t, db.Create(&models.AppSetting{Key: "plain", Value: "v1"}).Error)

	// The settings UI sends masked secrets back blank; keep the stored value.
	require.NoError(t, service.Set("api_key", "   "))
	assert.Equal(t, "secret-1", service.Get("api_key", ""))

	require.NoError(t, service.Set("api_key", "secret-2"))
	assert.Equal(t, "secret-2", service.Get("api_key", ""))

	require.NoError(t, service.Set("plain", ""))
	assert.Equal(t, "fallback", service.Get("plain", "fallback"))
}

func TestListMasksSecrets(t *testing.T) {
	db := newTestDB(t)
	service := newTestSettings(t, db)

	require.NoError(t, db.Create(&models.AppSetting{Key: "api_key", Value: "secret", IsSecret: true, Category: "ai"}).Error)
	require.NoError(t, db.Create(&models.AppSetting{Key: "empty_secret", Value: "", IsSecret: true, Category: "ai"}).Error)
	require.NoError(t, db.Create(&models.AppSetting{Key: "plain", Value: "v", Category: "general"}).Error)

	masked, err := service.List(false)
	require.NoError(t, err)
	byKey := map[string]string{}
	for _, s := range masked {
		byKey[s.Key] = s.Value
	}
	assert.Equal(t, "***", byKey["api_key"])
	assert.Equal(t, "", byKey["empty_secret"])
	assert.Equal(t, "v", byKey["plain"])

	full, err := service.List(true)
	require.NoError(t, err)
	for _, s := range full {
		if s.Key == "api_key" {
			assert.Equal(t, "secret", s.Value)
		}
	}
}

func TestLoadRunConfigDefaults(t *testing.T) {
	db := newTestDB(t)
	service := NewSettingsService(db, &config.Config{})

	rc, err := service.LoadRunConfig()
	require.NoError(t, err)

	assert.Equal(t, "anthropic", rc.AIProvider)
	assert.Equal(t, "office365", rc.EmailProvider)
	assert.Equal(t, 993, rc.IMAPPort)
	assert.Equal(t, 8, rc.CheckHour)
	assert.Equal(t, 100, rc.BatchLimit)
	assert.Equal(t, 90, rc.EmailRetentionDays)
	assert.Equal(t, 24, rc.WarningHours)
	assert.Equal(t, 48, rc.AlertHours)
	assert.Equal(t, 72, rc.CriticalHours)
	assert.True(t, rc.NotificationsEnabled)
	assert.Equal(t, 60*time.Second, rc.AITimeout)
}

func TestLoadRunConfigReadsOverrides(t *testing.T) {
	db := newTestDB(t)
	service := newTestSettings(t, db)

	require.NoError(t, service.Set("warning_hours", "12"))
	require.NoError(t, service.Set("ai_provider", "openai"))
	require.NoError(t, service.Set("notifications_enabled", "false"))

	rc, err := service.LoadRunConfig()
	require.NoError(t, err)

	assert.Equal(t, 12, rc.WarningHours)
	assert.Equal(t, "openai", rc.AIProvider)
	assert.False(t, rc.NotificationsEnabled)
	assert.Equal(t, 5*time.Second, rc.AITimeout)
}
