package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	graphAPIURL      = "https://graph.microsoft.com/v1.0"
	graphLoginURL    = "https://login.microsoftonline.com"
	graphPageSize    = 50
	graphTokenMargin = 60 * time.Second
)

// Office365Provider reads a mailbox through the Microsoft Graph API using
// client-credentials application access.
type Office365Provider struct {
	tenantID     string
	clientID     string
	clientSecret string
	mailbox      string
	apiURL       string
	loginURL     string
	client       *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewOffice365Provider(tenantID, clientID, clientSecret, mailbox string) *Office365Provider {
	return NewOffice365ProviderWithURLs(tenantID, clientID, clientSecret, mailbox, graphAPIURL, graphLoginURL)
}

func NewOffice365ProviderWithURLs(tenantID, clientID, clientSecret, mailbox, apiURL, loginURL string) *Office365Provider {
	return &Office365Provider{
		tenantID:     tenantID,
		clientID:     clientID,
		clientSecret: clientSecret,
		mailbox:      mailbox,
		apiURL:       apiURL,
		loginURL:     loginURL,
		client:       &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *Office365Provider) Name() string {
	return "office365"
}

type graphTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type graphEmailAddress struct {
	EmailAddress struct {
		Address string `json:"address"`
	} `json:"emailAddress"`
}

type graphMessage struct {
	InternetMessageID string              `json:"internetMessageId"`
	ConversationID    string              `json:"conversationId"`
	Subject           string              `json:"subject"`
	From              graphEmailAddress   `json:"from"`
	ToRecipients      []graphEmailAddress `json:"toRecipients"`
	ReceivedDateTime  string              `json:"receivedDateTime"`
	BodyPreview       string              `json:"bodyPreview"`
	Body              struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
}

type graphMessageList struct {
	Value    []graphMessage `json:"value"`
	NextLink string         `json:"@odata.nextLink"`
}

// token returns a cached application token, refreshing it near expiry.
func (p *Office365Provider) token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.accessToken != "" && time.Now().Before(p.tokenExpiry.Add(-graphTokenMargin)) {
		return p.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", p.clientID)
	form.Set("client_secret", p.clientSecret)
	form.Set("scope", "https://graph.microsoft.com/.default")

	tokenURL := fmt.Sprintf("%s/%s/oauth2/v2.0/token", p.loginURL, p.tenantID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request returned status %d", resp.StatusCode)
	}

	var tok graphTokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token response contained no access token")
	}

	p.accessToken = tok.AccessToken
	p.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return p.accessToken, nil
}

func (p *Office365Provider) FetchEmails(ctx context.Context, limit int, folder string) ([]RawEmail, error) {
	token, err := p.token(ctx)
	if err != nil {
		return nil, err
	}

	if folder == "" {
		folder = "inbox"
	}
	pageSize := graphPageSize
	if limit > 0 && limit < pageSize {
		pageSize = limit
	}

	query := url.Values{}
	query.Set("$top", fmt.Sprintf("%d", pageSize))
	query.Set("$orderby", "receivedDateTime desc")
	query.Set("$select", "internetMessageId,conversationId,subject,from,toRecipients,receivedDateTime,body,bodyPreview")
	next := fmt.Sprintf("%s/users/%s/mailFolders/%s/messages?%s",
		p.apiURL, url.PathEscape(p.mailbox), url.PathEscape(folder), query.Encode())

	var emails []RawEmail
	for next != "" && (limit <= 0 || len(emails) < limit) {
		page, err := p.fetchPage(ctx, token, next)
		if err != nil {
			return nil, err
		}
		for _, msg := range page.Value {
			emails = append(emails, msg.toRawEmail())
			if limit > 0 && len(emails) >= limit {
				break
			}
		}
		next = page.NextLink
	}
	return emails, nil
}

func (p *Office365Provider) fetchPage(ctx context.Context, token, pageURL string) (*graphMessageList, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create messages request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("messages request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read messages response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("messages request returned status %d", resp.StatusCode)
	}

	var page graphMessageList
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to parse messages response: %w", err)
	}
	return &page, nil
}

func (m *graphMessage) toRawEmail() RawEmail {
	raw := RawEmail{
		MessageID: m.InternetMessageID,
		ThreadID:  m.ConversationID,
		Subject:   m.Subject,
		Sender:    m.From.EmailAddress.Address,
	}
	for _, r := range m.ToRecipients {
		raw.Recipients = append(raw.Recipients, r.EmailAddress.Address)
	}
	if t, err := time.Parse(time.RFC3339, m.ReceivedDateTime); err == nil {
		utc := t.UTC()
		raw.ReceivedAt = &utc
	}
	if strings.EqualFold(m.Body.ContentType, "html") {
		raw.BodyHTML = m.Body.Content
		raw.BodyText = m.BodyPreview
	} else {
		raw.BodyText = m.Body.Content
	}
	return raw
}

func (p *Office365Provider) TestConnection(ctx context.Context) error {
	token, err := p.token(ctx)
	if err != nil {
		return err
	}

	testURL := fmt.Sprintf("%s/users/%s/mailFolders/inbox?$select=id", p.apiURL, url.PathEscape(p.mailbox))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, testURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create test request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("test request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mailbox access check returned status %d", resp.StatusCode)
	}
	return nil
}
