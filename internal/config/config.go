package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	Port        string
	Env         string
	APIUrl      string
	FrontendURL string

	// Database
	DBDriver   string // "postgres" | "sqlite"
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	DBTimeZone string
	SQLitePath string

	// Redis
	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// JWT
	JWTSecret               string
	JWTAccessTokenDuration  time.Duration
	JWTRefreshTokenDuration time.Duration

	// Admin
	AdminUsername string
	AdminPassword string
	AdminEmail    string

	// Scheduler
	SchedulerEnabled  bool
	SchedulerTimezone string

	// AI defaults (seed values for the settings store)
	AIProvider      string // "anthropic" | "openai"
	AIModel         string
	AnthropicAPIKey string
	OpenAIAPIKey    string
	AITimeout       time.Duration

	// Email provider defaults (seed values for the settings store)
	EmailProvider    string // "office365" | "gmail" | "imap"
	O365TenantID     string
	O365ClientID     string
	O365ClientSecret string
	O365Mailbox      string
	GmailAccessToken string
	IMAPHost         string
	IMAPPort         int
	IMAPUsername     string
	IMAPPassword     string

	// SMTP (alert channel)
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string

	// Notification webhooks (seed values for the settings store)
	DiscordWebhookURL string
	SlackWebhookURL   string
	TeamsWebhookURL   string
	TelegramBotToken  string
	TelegramChatID    string

	// Batch defaults (seed values for the settings store)
	CheckHour           int
	BatchLimit          int
	EmailRetentionDays  int
	AlertEmailRecipient string

	// Security
	BcryptCost         int
	RateLimitRequests  int
	RateLimitDuration  time.Duration
	LoginMaxAttempts   int
	LoginWindow        time.Duration
	LoginBlockDuration time.Duration
	AnalysisMaxPerDay  int

	// CORS
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

func New() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		APIUrl:      getEnv("API_URL", "http://localhost:8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),

		// Database
		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "backupcontrol"),
		DBPassword: getEnv("DB_PASSWORD", "password"),
		DBName:     getEnv("DB_NAME", "backupcontrol_db"),
		DBSSLMode:  getEnv("DB_SSL_MODE", "disable"),
		DBTimeZone: getEnv("DB_TIMEZONE", "Europe/Paris"),
		SQLitePath: getEnv("SQLITE_PATH", "/data/backupcontrol.db"),

		// Redis
		RedisEnabled:  getEnv("REDIS_ENABLED", "true") == "true",
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// JWT
		JWTSecret:               getEnv("JWT_SECRET", "your-secret-key"),
		JWTAccessTokenDuration:  getEnvAsDuration("JWT_ACCESS_TOKEN_DURATION", "30m"),
		JWTRefreshTokenDuration: getEnvAsDuration("JWT_REFRESH_TOKEN_DURATION", "168h"),

		// Admin
		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", "admin123"),
		AdminEmail:    getEnv("ADMIN_EMAIL", "admin@backupcontrol.local"),

		// Scheduler
		SchedulerEnabled:  getEnv("SCHEDULER_ENABLED", "true") == "true",
		SchedulerTimezone: getEnv("SCHEDULER_TIMEZONE", "Europe/Paris"),

		// AI defaults
		AIProvider:      getEnv("AI_PROVIDER", "anthropic"),
		AIModel:         getEnv("AI_MODEL", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AITimeout:       getEnvAsDuration("AI_TIMEOUT", "60s"),

		// Email provider defaults
		EmailProvider:    getEnv("EMAIL_PROVIDER", "office365"),
		O365TenantID:     getEnv("O365_TENANT_ID", ""),
		O365ClientID:     getEnv("O365_CLIENT_ID", ""),
		O365ClientSecret: getEnv("O365_CLIENT_SECRET", ""),
		O365Mailbox:      getEnv("O365_MAILBOX", ""),
		GmailAccessToken: getEnv("GMAIL_ACCESS_TOKEN", ""),
		IMAPHost:         getEnv("IMAP_HOST", ""),
		IMAPPort:         getEnvAsInt("IMAP_PORT", 993),
		IMAPUsername:     getEnv("IMAP_USERNAME", ""),
		IMAPPassword:     getEnv("IMAP_PASSWORD", ""),

		// SMTP
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "alerts@backupcontrol.local"),
		SMTPFromName: getEnv("SMTP_FROM_NAME", "BackupControl"),

		// Notification webhooks
		DiscordWebhookURL: getEnv("DISCORD_WEBHOOK_URL", ""),
		SlackWebhookURL:   getEnv("SLACK_WEBHOOK_URL", ""),
		TeamsWebhookURL:   getEnv("TEAMS_WEBHOOK_URL", ""),
		TelegramBotToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:    getEnv("TELEGRAM_CHAT_ID", ""),

		// Batch defaults
		CheckHour:           getEnvAsInt("CHECK_HOUR", 8),
		BatchLimit:          getEnvAsInt("BATCH_LIMIT", 100),
		EmailRetentionDays:  getEnvAsInt("EMAIL_RETENTION_DAYS", 90),
		AlertEmailRecipient: getEnv("ALERT_EMAIL_RECIPIENT", ""),

		// Security
		BcryptCost:         getEnvAsInt("BCRYPT_COST", 12),
		RateLimitRequests:  getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitDuration:  getEnvAsDuration("RATE_LIMIT_DURATION", "1m"),
		LoginMaxAttempts:   getEnvAsInt("LOGIN_MAX_ATTEMPTS", 5),
		LoginWindow:        getEnvAsDuration("LOGIN_WINDOW", "15m"),
		LoginBlockDuration: getEnvAsDuration("LOGIN_BLOCK_DURATION", "1h"),
		AnalysisMaxPerDay:  getEnvAsInt("ANALYSIS_MAX_PER_DAY", 24),

		// CORS
		AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		AllowedMethods: getEnvAsSlice("ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		AllowedHeaders: getEnvAsSlice("ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	if duration, err := time.ParseDuration(defaultValue); err == nil {
		return duration
	}
	return time.Hour
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	return strings.Split(valueStr, ",")
}
