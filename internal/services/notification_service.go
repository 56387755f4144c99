package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"gopkg.in/gomail.v2"
	"gorm.io/gorm"

	"github.com/neovalpox/backupControl/internal/config"
	"github.com/neovalpox/backupControl/internal/models"
)

const (
	telegramAPIURL  = "https://api.telegram.org"
	notifyTimeout   = 15 * time.Second
	notifierAppName = "BackupControl"
)

// NotificationService fans alerts out to the configured channels. Sends are
// fire-and-forget: a dead webhook never blocks or fails the pipeline that
// raised the alert.
type NotificationService struct {
	db             *gorm.DB
	cfg            *config.Config
	client         *http.Client
	telegramAPIURL string
}

func NewNotificationService(db *gorm.DB, cfg *config.Config) *NotificationService {
	return &NotificationService{
		db:             db,
		cfg:            cfg,
		client:         &http.Client{Timeout: notifyTimeout},
		telegramAPIURL: telegramAPIURL,
	}
}

// NotifyAlert dispatches one alert to every configured channel in the
// background. The caller's context is not reused so an ending request
// cannot cancel deliveries already underway.
func (s *NotificationService) NotifyAlert(ctx context.Context, alert *models.Alert, rc *RunConfig) {
	if !rc.NotificationsEnabled {
		return
	}
	go s.dispatch(alert, rc)
}

func (s *NotificationService) dispatch(alert *models.Alert, rc *RunConfig) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	results := map[string]string{}
	record := func(channel string, err error) {
		if err != nil {
			log.Printf("WARN: %s notification failed for alert %s: %v", channel, alert.ID, err)
			results[channel] = err.Error()
			return
		}
		results[channel] = "sent"
	}

	if rc.DiscordWebhookURL != "" {
		record("discord", s.sendDiscord(ctx, rc.DiscordWebhookURL, alert))
	}
	if rc.SlackWebhookURL != "" {
		record("slack", s.sendSlack(ctx, rc.SlackWebhookURL, alert))
	}
	if rc.TeamsWebhookURL != "" {
		record("teams", s.sendTeams(ctx, rc.TeamsWebhookURL, alert))
	}
	if rc.TelegramBotToken != "" && rc.TelegramChatID != "" {
		record("telegram", s.sendTelegram(ctx, rc, alert))
	}
	if rc.AlertEmailRecipient != "" && s.cfg.SMTPHost != "" {
		record("email", s.sendEmail(rc.AlertEmailRecipient, alert))
	}

	if len(results) == 0 {
		return
	}
	results["sent_at"] = time.Now().UTC().Format(time.RFC3339)
	payload, err := json.Marshal(results)
	if err != nil {
		return
	}
	if err := s.db.Model(&models.Alert{}).Where("id = ?", alert.ID).
		Update("notifications_sent", payload).Error; err != nil {
		log.Printf("WARN: failed to record notification results for alert %s: %v", alert.ID, err)
	}
}

func (s *NotificationService) postJSON(ctx context.Context, url string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (s *NotificationService) sendDiscord(ctx context.Context, url string, alert *models.Alert) error {
	return s.postJSON(ctx, url, map[string]interface{}{
		"embeds": []map[string]interface{}{{
			"title":       alert.Title,
			"description": alert.Message,
			"color":       severityColorInt(alert.Severity),
			"timestamp":   alert.CreatedAt.UTC().Format(time.RFC3339),
			"footer":      map[string]string{"text": notifierAppName},
		}},
	})
}

func (s *NotificationService) sendSlack(ctx context.Context, url string, alert *models.Alert) error {
	return s.postJSON(ctx, url, map[string]interface{}{
		"attachments": []map[string]interface{}{{
			"color":  severityColorHex(alert.Severity),
			"title":  alert.Title,
			"text":   alert.Message,
			"footer": notifierAppName,
			"ts":     alert.CreatedAt.Unix(),
		}},
	})
}

func (s *NotificationService) sendTeams(ctx context.Context, url string, alert *models.Alert) error {
	return s.postJSON(ctx, url, map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": strings.TrimPrefix(severityColorHex(alert.Severity), "#"),
		"summary":    alert.Title,
		"sections": []map[string]interface{}{{
			"activityTitle":    alert.Title,
			"activitySubtitle": strings.ToUpper(alert.Severity),
			"text":             alert.Message,
		}},
	})
}

func (s *NotificationService) sendTelegram(ctx context.Context, rc *RunConfig, alert *models.Alert) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", s.telegramAPIURL, rc.TelegramBotToken)
	text := fmt.Sprintf("<b>%s</b>\n%s", alert.Title, alert.Message)
	return s.postJSON(ctx, url, map[string]interface{}{
		"chat_id":    rc.TelegramChatID,
		"text":       text,
		"parse_mode": "HTML",
	})
}

func (s *NotificationService) sendEmail(recipient string, alert *models.Alert) error {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.cfg.SMTPFrom, s.cfg.SMTPFromName)
	m.SetHeader("To", recipient)
	m.SetHeader("Subject", fmt.Sprintf("[%s] %s", strings.ToUpper(alert.Severity), alert.Title))
	m.SetBody("text/plain", fmt.Sprintf("%s\n\n%s\n\nSévérité: %s\nDate: %s",
		alert.Title, alert.Message, alert.Severity, alert.CreatedAt.UTC().Format(time.RFC3339)))

	dialer := gomail.NewDialer(s.cfg.SMTPHost, s.cfg.SMTPPort, s.cfg.SMTPUsername, s.cfg.SMTPPassword)
	return dialer.DialAndSend(m)
}

func severityColorInt(severity string) int {
	switch severity {
	case models.SeverityCritical:
		return 0xE74C3C
	case models.SeverityAlert:
		return 0xE67E22
	case models.SeverityWarning:
		return 0xF1C40F
	default:
		return 0x3498DB
	}
}

func severityColorHex(severity string) string {
	switch severity {
	case models.SeverityCritical:
		return "#e74c3c"
	case models.SeverityAlert:
		return "#e67e22"
	case models.SeverityWarning:
		return "#f1c40f"
	default:
		return "#3498db"
	}
}
