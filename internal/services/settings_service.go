package services

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/neovalpox/backupControl/internal/config"
	"github.com/neovalpox/backupControl/internal/models"
	"gorm.io/gorm"
)

// RunConfig is the snapshot of behavioural settings one batch run operates
// under. It is loaded from the settings store at the start of the run and
// never re-read mid-run.
type RunConfig struct {
	AIProvider      string
	AIModel         string
	AnthropicAPIKey string
	OpenAIAPIKey    string
	AITimeout       time.Duration

	EmailProvider    string
	O365TenantID     string
	O365ClientID     string
	O365ClientSecret string
	O365Mailbox      string
	GmailAccessToken string
	IMAPHost         string
	IMAPPort         int
	IMAPUsername     string
	IMAPPassword     string

	CheckHour          int
	BatchLimit         int
	EmailRetentionDays int

	WarningHours  int
	AlertHours    int
	CriticalHours int

	NotificationsEnabled bool
	DiscordWebhookURL    string
	SlackWebhookURL      string
	TeamsWebhookURL      string
	TelegramBotToken     string
	TelegramChatID       string
	AlertEmailRecipient  string
}

type SettingsService struct {
	db  *gorm.DB
	cfg *config.Config
}

func NewSettingsService(db *gorm.DB, cfg *config.Config) *SettingsService {
	return &SettingsService{db: db, cfg: cfg}
}

// EnsureDefaults seeds the settings table with every known key. Existing rows
// are left untouched; seed values come from the environment config.
func (s *SettingsService) EnsureDefaults() error {
	defaults := []models.AppSetting{
		{Key: "ai_provider", Value: s.cfg.AIProvider, Category: "ai", Description: "AI provider (anthropic|openai)"},
		{Key: "ai_model", Value: s.cfg.AIModel, Category: "ai", Description: "Model override; empty uses the provider default"},
		{Key: "anthropic_api_key", Value: s.cfg.AnthropicAPIKey, Category: "ai", IsSecret: true},
		{Key: "openai_api_key", Value: s.cfg.OpenAIAPIKey, Category: "ai", IsSecret: true},

		{Key: "email_provider", Value: s.cfg.EmailProvider, Category: "email", Description: "Mailbox provider (office365|gmail|imap)"},
		{Key: "o365_tenant_id", Value: s.cfg.O365TenantID, Category: "email"},
		{Key: "o365_client_id", Value: s.cfg.O365ClientID, Category: "email"},
		{Key: "o365_client_secret", Value: s.cfg.O365ClientSecret, Category: "email", IsSecret: true},
		{Key: "o365_mailbox", Value: s.cfg.O365Mailbox, Category: "email"},
		{Key: "gmail_access_token", Value: s.cfg.GmailAccessToken, Category: "email", IsSecret: true},
		{Key: "imap_host", Value: s.cfg.IMAPHost, Category: "email"},
		{Key: "imap_port", Value: strconv.Itoa(s.cfg.IMAPPort), Category: "email"},
		{Key: "imap_username", Value: s.cfg.IMAPUsername, Category: "email"},
		{Key: "imap_password", Value: s.cfg.IMAPPassword, Category: "email", IsSecret: true},

		{Key: "check_hour", Value: strconv.Itoa(s.cfg.CheckHour), Category: "general", Description: "Hour of the daily analysis run (0-23)"},
		{Key: "batch_limit", Value: strconv.Itoa(s.cfg.BatchLimit), Category: "general", Description: "Max emails fetched per run"},
		{Key: "email_retention_days", Value: strconv.Itoa(s.cfg.EmailRetentionDays), Category: "general", Description: "Retention for non-backup emails"},

		{Key: "warning_hours", Value: "24", Category: "alerts", Description: "Hours without success before warning"},
		{Key: "alert_hours", Value: "48", Category: "alerts", Description: "Hours without success before alert"},
		{Key: "critical_hours", Value: "72", Category: "alerts", Description: "Hours without success before critical"},

		{Key: "notifications_enabled", Value: "true", Category: "alerts"},
		{Key: "discord_webhook_url", Value: s.cfg.DiscordWebhookURL, Category: "alerts", IsSecret: true},
		{Key: "slack_webhook_url", Value: s.cfg.SlackWebhookURL, Category: "alerts", IsSecret: true},
		{Key: "teams_webhook_url", Value: s.cfg.TeamsWebhookURL, Category: "alerts", IsSecret: true},
		{Key: "telegram_bot_token", Value: s.cfg.TelegramBotToken, Category: "alerts", IsSecret: true},
		{Key: "telegram_chat_id", Value: s.cfg.TelegramChatID, Category: "alerts"},
		{Key: "alert_email_recipient", Value: s.cfg.AlertEmailRecipient, Category: "alerts"},
	}

	for _, def := range defaults {
		var existing models.AppSetting
		err := s.db.Where("key = ?", def.Key).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			setting := def
			if err := s.db.Create(&setting).Error; err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Get returns the stored value for a key, or the given default when the key
// is absent or empty.
func (s *SettingsService) Get(key, defaultValue string) string {
	var setting models.AppSetting
	if err := s.db.Where("key = ?", key).First(&setting).Error; err != nil {
		return defaultValue
	}
	if setting.Value == "" {
		return defaultValue
	}
	return setting.Value
}

// GetInt returns an integer setting, falling back on parse failure.
func (s *SettingsService) GetInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(s.Get(key, "")); err == nil {
		return v
	}
	return defaultValue
}

// GetBool returns a boolean setting ("true"/"false").
func (s *SettingsService) GetBool(key string, defaultValue bool) bool {
	switch strings.ToLower(s.Get(key, "")) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return defaultValue
}

// Set updates a setting. Blank writes to secret keys are ignored so that
// masked round-trips from the settings UI do not wipe stored credentials.
func (s *SettingsService) Set(key, value string) error {
	var setting models.AppSetting
	err := s.db.Where("key = ?", key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.db.Create(&models.AppSetting{Key: key, Value: value}).Error
	}
	if err != nil {
		return err
	}
	if setting.IsSecret && strings.TrimSpace(value) == "" {
		return nil
	}
	return s.db.Model(&setting).Update("value", value).Error
}

// List returns all settings ordered by category and key. Secret values are
// masked unless includeSecrets is set.
func (s *SettingsService) List(includeSecrets bool) ([]models.AppSetting, error) {
	var settings []models.AppSetting
	if err := s.db.Order("category, key").Find(&settings).Error; err != nil {
		return nil, err
	}
	if !includeSecrets {
		for i := range settings {
			if settings[i].IsSecret && settings[i].Value != "" {
				settings[i].Value = "***"
			}
		}
	}
	return settings, nil
}

// LoadRunConfig snapshots the behavioural settings for one batch run.
func (s *SettingsService) LoadRunConfig() (*RunConfig, error) {
	rc := &RunConfig{
		AIProvider:      s.Get("ai_provider", "anthropic"),
		AIModel:         s.Get("ai_model", ""),
		AnthropicAPIKey: s.Get("anthropic_api_key", ""),
		OpenAIAPIKey:    s.Get("openai_api_key", ""),
		AITimeout:       s.cfg.AITimeout,

		EmailProvider:    s.Get("email_provider", "office365"),
		O365TenantID:     s.Get("o365_tenant_id", ""),
		O365ClientID:     s.Get("o365_client_id", ""),
		O365ClientSecret: s.Get("o365_client_secret", ""),
		O365Mailbox:      s.Get("o365_mailbox", ""),
		GmailAccessToken: s.Get("gmail_access_token", ""),
		IMAPHost:         s.Get("imap_host", ""),
		IMAPPort:         s.GetInt("imap_port", 993),
		IMAPUsername:     s.Get("imap_username", ""),
		IMAPPassword:     s.Get("imap_password", ""),

		CheckHour:          s.GetInt("check_hour", 8),
		BatchLimit:         s.GetInt("batch_limit", 100),
		EmailRetentionDays: s.GetInt("email_retention_days", 90),

		WarningHours:  s.GetInt("warning_hours", 24),
		AlertHours:    s.GetInt("alert_hours", 48),
		CriticalHours: s.GetInt("critical_hours", 72),

		NotificationsEnabled: s.GetBool("notifications_enabled", true),
		DiscordWebhookURL:    s.Get("discord_webhook_url", ""),
		SlackWebhookURL:      s.Get("slack_webhook_url", ""),
		TeamsWebhookURL:      s.Get("teams_webhook_url", ""),
		TelegramBotToken:     s.Get("telegram_bot_token", ""),
		TelegramChatID:       s.Get("telegram_chat_id", ""),
		AlertEmailRecipient:  s.Get("alert_email_recipient", ""),
	}
	if rc.AITimeout <= 0 {
		rc.AITimeout = 60 * time.Second
	}
	return rc, nil
}
