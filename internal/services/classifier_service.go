package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/neovalpox/backupControl/internal/models"
)

// maxBodyChars bounds the email body sent to the AI provider.
const maxBodyChars = 3000

// fallbackConfidence is the fixed confidence of the keyword classifier.
const fallbackConfidence = 30

// backupAnalysisSystemPrompt drives the extraction. The notification emails
// it targets come from French-localised Synology/Veeam/Acronis installs, so
// the prompt stays in French.
const backupAnalysisSystemPrompt = `Tu es un expert en analyse d'e-mails de notifications de sauvegarde.
Tu dois analyser les e-mails et extraire les informations structurées suivantes.

Types de sauvegardes à identifier:
- Synology Hyper Backup (mots-clés: "Hyper Backup", "Network backup", ".hbk")
- Synology Active Backup for Business (mots-clés: "Active Backup for Business", "AB_")
- RSync (mots-clés: "rsync", "RSYNC")
- Veeam (mots-clés: "Veeam")
- Acronis (mots-clés: "Acronis")
- Windows Server Backup (mots-clés: "Windows Server Backup", "WSB")

Pour chaque e-mail, détermine:
1. S'il s'agit d'une notification de sauvegarde (ou autre type: sécurité, mise à jour, UPS, etc.)
2. Le type de sauvegarde
3. Le statut (succès, échec, avertissement)
4. Le NAS/serveur source (souvent au format NXXX## comme NABO03)
5. Le nom de la tâche de sauvegarde
6. La destination
7. La durée et les tailles (source, transférée)
8. Les périphériques concernés (pour Active Backup)
9. Tout message d'erreur

Réponds UNIQUEMENT en JSON valide avec la structure suivante:
{
    "is_backup_notification": boolean,
    "notification_type": "backup" | "security" | "update" | "ups" | "other",
    "backup_type": "hyper_backup" | "active_backup" | "rsync" | "veeam" | "acronis" | "windows_backup" | "other" | null,
    "status": "success" | "failure" | "warning" | null,
    "source_nas": string | null,
    "task_name": string | null,
    "client_name": string | null,
    "destination": string | null,
    "destination_nas": string | null,
    "duration_seconds": number | null,
    "source_size_bytes": number | null,
    "transferred_size_bytes": number | null,
    "devices": [string] | null,
    "error_message": string | null,
    "confidence": number (0-100)
}`

// BackupSignal is the structured result of classifying one email.
type BackupSignal struct {
	IsBackupNotification bool     `json:"is_backup_notification"`
	NotificationType     string   `json:"notification_type,omitempty"` // backup, security, update, ups, other
	BackupType           string   `json:"backup_type,omitempty"`
	Status               string   `json:"status,omitempty"` // success, failure, warning
	SourceNAS            string   `json:"source_nas,omitempty"`
	TaskName             string   `json:"task_name,omitempty"`
	ClientName           string   `json:"client_name,omitempty"`
	Destination          string   `json:"destination,omitempty"`
	DestinationNAS       string   `json:"destination_nas,omitempty"`
	DurationSeconds      *int     `json:"duration_seconds,omitempty"`
	SourceSizeBytes      *int64   `json:"source_size_bytes,omitempty"`
	TransferredSizeBytes *int64   `json:"transferred_size_bytes,omitempty"`
	Devices              []string `json:"devices,omitempty"`
	ErrorMessage         string   `json:"error_message,omitempty"`
	Confidence           int      `json:"confidence"`
}

// signalWire tolerates the loose typing of AI responses before normalization.
type signalWire struct {
	IsBackupNotification bool     `json:"is_backup_notification"`
	NotificationType     *string  `json:"notification_type"`
	BackupType           *string  `json:"backup_type"`
	Status               *string  `json:"status"`
	SourceNAS            *string  `json:"source_nas"`
	TaskName             *string  `json:"task_name"`
	ClientName           *string  `json:"client_name"`
	Destination          *string  `json:"destination"`
	DestinationNAS       *string  `json:"destination_nas"`
	DurationSeconds      *float64 `json:"duration_seconds"`
	SourceSizeBytes      *float64 `json:"source_size_bytes"`
	TransferredSizeBytes *float64 `json:"transferred_size_bytes"`
	Devices              []string `json:"devices"`
	ErrorMessage         *string  `json:"error_message"`
	Confidence           *float64 `json:"confidence"`
}

var nasIdentifierRegex = regexp.MustCompile(`(?i)\b(N[A-Z]{2,4}\d{1,2})\b`)

// ClassifierService turns raw emails into BackupSignals via the configured
// AI provider, degrading to keyword heuristics when the provider is
// unavailable or returns garbage.
type ClassifierService struct {
	provider AIProvider
}

func NewClassifierService(provider AIProvider) *ClassifierService {
	return &ClassifierService{provider: provider}
}

// Classify analyzes one email. It never fails: any provider or parsing
// problem degrades to the heuristic fallback.
func (s *ClassifierService) Classify(ctx context.Context, email *models.Email) *BackupSignal {
	if s.provider == nil {
		return s.fallback(email)
	}

	body := truncateBody(email.BodyText, maxBodyChars)
	receivedAt := ""
	if email.ReceivedAt != nil {
		receivedAt = email.ReceivedAt.Format(time.RFC3339)
	}
	prompt := fmt.Sprintf("Analyse cet e-mail:\n\nSujet: %s\nDe: %s\nDate: %s\n\nContenu:\n%s",
		email.Subject, email.Sender, receivedAt, body)

	text, err := s.provider.Complete(ctx, CompletionRequest{
		System: backupAnalysisSystemPrompt,
		Prompt: prompt,
	})
	if err != nil {
		log.Printf("WARN: AI classification failed for email %s: %v", email.MessageID, err)
		return s.fallback(email)
	}

	signal, ok := parseSignal(text)
	if !ok {
		log.Printf("WARN: unparsable AI response for email %s", email.MessageID)
		return s.fallback(email)
	}
	return signal
}

// parseSignal extracts and normalizes the first JSON object in the provider
// response.
func parseSignal(text string) (*BackupSignal, bool) {
	payload, ok := extractJSON(text)
	if !ok {
		return nil, false
	}
	var wire signalWire
	if err := json.Unmarshal([]byte(payload), &wire); err != nil {
		return nil, false
	}
	return wire.normalize(), true
}

func (w *signalWire) normalize() *BackupSignal {
	signal := &BackupSignal{
		IsBackupNotification: w.IsBackupNotification,
		NotificationType:     strValue(w.NotificationType),
		BackupType:           normalizeBackupType(strValue(w.BackupType)),
		Status:               normalizeStatus(strValue(w.Status)),
		SourceNAS:            strings.ToUpper(strings.TrimSpace(strValue(w.SourceNAS))),
		TaskName:             strings.TrimSpace(strValue(w.TaskName)),
		ClientName:           strings.TrimSpace(strValue(w.ClientName)),
		Destination:          strValue(w.Destination),
		DestinationNAS:       strings.ToUpper(strings.TrimSpace(strValue(w.DestinationNAS))),
		Devices:              w.Devices,
		ErrorMessage:         strValue(w.ErrorMessage),
	}
	if w.DurationSeconds != nil {
		d := int(*w.DurationSeconds)
		signal.DurationSeconds = &d
	}
	if w.SourceSizeBytes != nil {
		v := int64(*w.SourceSizeBytes)
		signal.SourceSizeBytes = &v
	}
	if w.TransferredSizeBytes != nil {
		v := int64(*w.TransferredSizeBytes)
		signal.TransferredSizeBytes = &v
	}
	if w.Confidence != nil {
		c := int(*w.Confidence)
		if c < 0 {
			c = 0
		}
		if c > 100 {
			c = 100
		}
		signal.Confidence = c
	}
	return signal
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func normalizeBackupType(backupType string) string {
	switch strings.ToLower(strings.TrimSpace(backupType)) {
	case models.BackupTypeHyperBackup, models.BackupTypeActiveBackup, models.BackupTypeRsync,
		models.BackupTypeVeeam, models.BackupTypeAcronis, models.BackupTypeWindowsBackup:
		return strings.ToLower(strings.TrimSpace(backupType))
	case "":
		return ""
	default:
		return models.BackupTypeOther
	}
}

func normalizeStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "success", "failure", "warning":
		return strings.ToLower(strings.TrimSpace(status))
	default:
		return ""
	}
}

// extractJSON returns the first balanced JSON object or array in s. It
// tolerates prose around the payload and brackets inside string literals.
func extractJSON(s string) (string, bool) {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", false
	}
	open := s[start]
	var close byte = '}'
	if open == '[' {
		close = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case open:
			if !inString {
				depth++
			}
		case close:
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}

// fallback is the deterministic keyword classifier used when the AI provider
// is degraded. Matches both French and English notification vocabulary.
func (s *ClassifierService) fallback(email *models.Email) *BackupSignal {
	subject := strings.ToLower(email.Subject)
	body := strings.ToLower(email.BodyText)
	combined := subject + " " + body

	signal := &BackupSignal{
		NotificationType: "other",
		Confidence:       fallbackConfidence,
	}

	switch {
	case containsAny(combined, "backup", "sauvegarde", "hyper backup", "active backup"):
		signal.IsBackupNotification = true
		signal.NotificationType = "backup"
	case strings.Contains(subject, "sécurité") || strings.Contains(subject, "security"):
		signal.NotificationType = "security"
	case strings.Contains(subject, "mise à jour") || strings.Contains(subject, "update"):
		signal.NotificationType = "update"
	case strings.Contains(subject, "onduleur") || strings.Contains(subject, "ups"):
		signal.NotificationType = "ups"
	}

	switch {
	case strings.Contains(combined, "hyper backup") || strings.Contains(combined, "network backup"):
		signal.BackupType = models.BackupTypeHyperBackup
	case strings.Contains(combined, "active backup") || strings.Contains(email.Subject+" "+email.BodyText, "AB_"):
		signal.BackupType = models.BackupTypeActiveBackup
	case strings.Contains(combined, "rsync"):
		signal.BackupType = models.BackupTypeRsync
	case strings.Contains(combined, "veeam"):
		signal.BackupType = models.BackupTypeVeeam
	case strings.Contains(combined, "acronis"):
		signal.BackupType = models.BackupTypeAcronis
	case strings.Contains(combined, "windows server backup"):
		signal.BackupType = models.BackupTypeWindowsBackup
	}

	switch {
	case containsAny(combined, "réussi", "succès", "success", "terminée", "effectuée"):
		signal.Status = "success"
	case containsAny(combined, "échoué", "échec", "failed", "erreur", "error"):
		signal.Status = "failure"
	case containsAny(combined, "avertissement", "warning"):
		signal.Status = "warning"
	}

	if match := nasIdentifierRegex.FindStringSubmatch(email.Subject + " " + email.BodyText); match != nil {
		signal.SourceNAS = strings.ToUpper(match[1])
	}

	return signal
}

// truncateBody bounds the prompt body without splitting a UTF-8 sequence
// mid-rune. The notification bodies are French, so byte slicing alone would
// regularly mangle the trailing character.
func truncateBody(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func containsAny(s string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
