package services

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"

	_ "github.com/emersion/go-message/charset"
)

// IMAPProvider reads a mailbox over IMAP with TLS. It covers the
// self-hosted setups that neither Office 365 nor Gmail serve.
type IMAPProvider struct {
	host     string
	port     int
	username string
	password string
}

func NewIMAPProvider(host string, port int, username, password string) *IMAPProvider {
	if port <= 0 {
		port = 993
	}
	return &IMAPProvider{host: host, port: port, username: username, password: password}
}

func (p *IMAPProvider) Name() string {
	return "imap"
}

func (p *IMAPProvider) connect() (*client.Client, error) {
	c, err := client.DialTLS(fmt.Sprintf("%s:%d", p.host, p.port), nil)
	if err != nil {
		return nil, fmt.Errorf("imap dial failed: %w", err)
	}
	if err := c.Login(p.username, p.password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("imap login failed: %w", err)
	}
	return c, nil
}

func (p *IMAPProvider) FetchEmails(ctx context.Context, limit int, folder string) ([]RawEmail, error) {
	if folder == "" {
		folder = "INBOX"
	}
	if limit <= 0 {
		limit = 100
	}

	c, err := p.connect()
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	mbox, err := c.Select(folder, true)
	if err != nil {
		return nil, fmt.Errorf("imap select %s failed: %w", folder, err)
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	from := uint32(1)
	if mbox.Messages > uint32(limit) {
		from = mbox.Messages - uint32(limit) + 1
	}
	seqSet := new(imap.SeqSet)
	seqSet.AddRange(from, mbox.Messages)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqSet, items, messages)
	}()

	emails := drainMessages(ctx, messages, section)
	fetchErr := <-done
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fetchErr != nil {
		return nil, fmt.Errorf("imap fetch failed: %w", fetchErr)
	}

	// Sequence numbers run oldest to newest; callers expect newest first.
	for i, j := 0, len(emails)-1; i < j; i, j = i+1, j-1 {
		emails[i], emails[j] = emails[j], emails[i]
	}
	return emails, nil
}

// drainMessages converts fetched messages into RawEmails. After cancellation
// it keeps consuming the channel without converting, so the fetch goroutine
// can always finish sending and exit without waiting for connection teardown.
func drainMessages(ctx context.Context, messages <-chan *imap.Message, section *imap.BodySectionName) []RawEmail {
	var emails []RawEmail
	for msg := range messages {
		if ctx.Err() != nil {
			continue
		}
		emails = append(emails, imapToRawEmail(msg, section))
	}
	return emails
}

func imapToRawEmail(msg *imap.Message, section *imap.BodySectionName) RawEmail {
	raw := RawEmail{}
	if env := msg.Envelope; env != nil {
		raw.MessageID = strings.Trim(env.MessageId, "<>")
		raw.Subject = env.Subject
		if len(env.From) > 0 {
			raw.Sender = env.From[0].Address()
		}
		for _, addr := range env.To {
			raw.Recipients = append(raw.Recipients, addr.Address())
		}
		if !env.Date.IsZero() {
			t := env.Date.UTC()
			raw.ReceivedAt = &t
		}
	}
	if body := msg.GetBody(section); body != nil {
		raw.BodyText, raw.BodyHTML = readIMAPBody(body)
	}
	return raw
}

// readIMAPBody walks the MIME parts for the text and HTML bodies.
func readIMAPBody(r io.Reader) (text, html string) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return "", ""
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, err := header.ContentType()
		if err != nil {
			continue
		}
		content, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		switch contentType {
		case "text/plain":
			if text == "" {
				text = string(content)
			}
		case "text/html":
			if html == "" {
				html = string(content)
			}
		}
	}
	return text, html
}

func (p *IMAPProvider) TestConnection(ctx context.Context) error {
	c, err := p.connect()
	if err != nil {
		return err
	}
	defer c.Logout()

	if _, err := c.Select("INBOX", true); err != nil {
		return fmt.Errorf("imap select failed: %w", err)
	}
	return nil
}
