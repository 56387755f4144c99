package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const gmailAPIURL = "https://gmail.googleapis.com/gmail/v1"

// GmailProvider reads a mailbox through the Gmail REST API with a
// pre-obtained OAuth access token.
type GmailProvider struct {
	accessToken string
	apiURL      string
	client      *http.Client
}

func NewGmailProvider(accessToken string) *GmailProvider {
	return NewGmailProviderWithBaseURL(accessToken, gmailAPIURL)
}

func NewGmailProviderWithBaseURL(accessToken, apiURL string) *GmailProvider {
	return &GmailProvider{
		accessToken: accessToken,
		apiURL:      apiURL,
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *GmailProvider) Name() string {
	return "gmail"
}

type gmailListResponse struct {
	Messages []struct {
		ID       string `json:"id"`
		ThreadID string `json:"threadId"`
	} `json:"messages"`
}

type gmailHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type gmailPart struct {
	MimeType string        `json:"mimeType"`
	Headers  []gmailHeader `json:"headers"`
	Body     struct {
		Data string `json:"data"`
	} `json:"body"`
	Parts []gmailPart `json:"parts"`
}

type gmailMessage struct {
	ID           string    `json:"id"`
	ThreadID     string    `json:"threadId"`
	InternalDate string    `json:"internalDate"`
	Payload      gmailPart `json:"payload"`
}

func (p *GmailProvider) FetchEmails(ctx context.Context, limit int, folder string) ([]RawEmail, error) {
	if folder == "" {
		folder = "INBOX"
	}
	if limit <= 0 {
		limit = 100
	}

	query := url.Values{}
	query.Set("maxResults", strconv.Itoa(limit))
	query.Set("labelIds", strings.ToUpper(folder))
	listURL := fmt.Sprintf("%s/users/me/messages?%s", p.apiURL, query.Encode())

	var list gmailListResponse
	if err := p.get(ctx, listURL, &list); err != nil {
		return nil, err
	}

	var emails []RawEmail
	for _, ref := range list.Messages {
		msgURL := fmt.Sprintf("%s/users/me/messages/%s?format=full", p.apiURL, url.PathEscape(ref.ID))
		var msg gmailMessage
		if err := p.get(ctx, msgURL, &msg); err != nil {
			return nil, err
		}
		emails = append(emails, msg.toRawEmail())
	}
	return emails, nil
}

func (p *GmailProvider) get(ctx context.Context, reqURL string, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create gmail request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.accessToken)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("gmail request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read gmail response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gmail request returned status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse gmail response: %w", err)
	}
	return nil
}

func (m *gmailMessage) toRawEmail() RawEmail {
	raw := RawEmail{ThreadID: m.ThreadID}

	for _, h := range m.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "message-id":
			raw.MessageID = strings.Trim(h.Value, "<>")
		case "subject":
			raw.Subject = h.Value
		case "from":
			raw.Sender = h.Value
		case "to":
			for _, addr := range strings.Split(h.Value, ",") {
				raw.Recipients = append(raw.Recipients, strings.TrimSpace(addr))
			}
		}
	}
	if raw.MessageID == "" {
		raw.MessageID = m.ID
	}
	if ms, err := strconv.ParseInt(m.InternalDate, 10, 64); err == nil {
		t := time.UnixMilli(ms).UTC()
		raw.ReceivedAt = &t
	}

	raw.BodyText = decodeGmailBody(findGmailPart(&m.Payload, "text/plain"))
	raw.BodyHTML = decodeGmailBody(findGmailPart(&m.Payload, "text/html"))
	if raw.BodyText == "" && raw.BodyHTML == "" {
		raw.BodyText = decodeGmailBody(m.Payload.Body.Data)
	}
	return raw
}

// findGmailPart walks the MIME tree for the first part of the given type.
func findGmailPart(part *gmailPart, mimeType string) string {
	if strings.EqualFold(part.MimeType, mimeType) && part.Body.Data != "" {
		return part.Body.Data
	}
	for i := range part.Parts {
		if data := findGmailPart(&part.Parts[i], mimeType); data != "" {
			return data
		}
	}
	return ""
}

func decodeGmailBody(data string) string {
	if data == "" {
		return ""
	}
	decoded, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.URLEncoding.DecodeString(data)
		if err != nil {
			return ""
		}
	}
	return string(decoded)
}

func (p *GmailProvider) TestConnection(ctx context.Context) error {
	profileURL := fmt.Sprintf("%s/users/me/profile", p.apiURL)
	var profile struct {
		EmailAddress string `json:"emailAddress"`
	}
	if err := p.get(ctx, profileURL, &profile); err != nil {
		return err
	}
	if profile.EmailAddress == "" {
		return fmt.Errorf("gmail profile returned no address")
	}
	return nil
}
