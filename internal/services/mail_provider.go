package services

import (
	"context"
	"fmt"
	"time"
)

// RawEmail is a provider-agnostic fetched message, before any analysis.
type RawEmail struct {
	MessageID  string
	ThreadID   string
	Subject    string
	Sender     string
	Recipients []string
	ReceivedAt *time.Time
	BodyText   string
	BodyHTML   string
}

// MailProvider abstracts the mailbox the notification emails land in.
type MailProvider interface {
	// FetchEmails returns up to limit messages from the given folder,
	// newest first. Folder may be empty for the provider default inbox.
	FetchEmails(ctx context.Context, limit int, folder string) ([]RawEmail, error)
	// TestConnection verifies credentials without fetching messages.
	TestConnection(ctx context.Context) error
	Name() string
}

// NewMailProvider builds the provider selected by the run configuration.
func NewMailProvider(rc *RunConfig) (MailProvider, error) {
	switch rc.EmailProvider {
	case "office365":
		if rc.O365TenantID == "" || rc.O365ClientID == "" || rc.O365ClientSecret == "" {
			return nil, fmt.Errorf("office365 credentials are not configured")
		}
		return NewOffice365Provider(rc.O365TenantID, rc.O365ClientID, rc.O365ClientSecret, rc.O365Mailbox), nil
	case "gmail":
		if rc.GmailAccessToken == "" {
			return nil, fmt.Errorf("gmail_access_token is not configured")
		}
		return NewGmailProvider(rc.GmailAccessToken), nil
	case "imap":
		if rc.IMAPHost == "" || rc.IMAPUsername == "" || rc.IMAPPassword == "" {
			return nil, fmt.Errorf("imap credentials are not configured")
		}
		return NewIMAPProvider(rc.IMAPHost, rc.IMAPPort, rc.IMAPUsername, rc.IMAPPassword), nil
	default:
		return nil, fmt.Errorf("unknown email provider: %s", rc.EmailProvider)
	}
}
