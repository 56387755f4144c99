package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGmailFetchEmails(t *testing.T) {
	textBody := base64.RawURLEncoding.EncodeToString([]byte("Tâche: Sauvegarde quotidienne"))
	htmlBody := base64.RawURLEncoding.EncodeToString([]byte("<p>Tâche: Sauvegarde quotidienne</p>"))
	paddedBody := base64.URLEncoding.EncodeToString([]byte("Sauvegarde Active Backup terminée"))

	var listQuery url.Values
	var authHeader string

	mux := http.NewServeMux()
	mux.HandleFunc("/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		listQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"messages":[{"id":"g1","threadId":"th1"},{"id":"g2","threadId":"th2"}]}`)
	})
	mux.HandleFunc("/users/me/messages/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/users/me/messages/")
		assert.Equal(t, "full", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "application/json")
		switch id {
		case "g1":
			fmt.Fprintf(w, `{"id":"g1","threadId":"th1","internalDate":"1773468000000","payload":{
				"mimeType":"multipart/alternative",
				"headers":[
					{"name":"Message-Id","value":"<m1@nas>"},
					{"name":"Subject","value":"NABO03 - Sauvegarde Hyper Backup réussie"},
					{"name":"From","value":"nas@nabo.fr"},
					{"name":"To","value":"backup@nabo.fr, infogerance@exemple.fr"}
				],
				"parts":[
					{"mimeType":"text/plain","body":{"data":%q}},
					{"mimeType":"text/html","body":{"data":%q}}
				]}}`, textBody, htmlBody)
		case "g2":
			fmt.Fprintf(w, `{"id":"g2","threadId":"th2","internalDate":"not-a-number","payload":{
				"headers":[{"name":"Subject","value":"NABO05 - Active Backup"}],
				"body":{"data":%q}}}`, paddedBody)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	provider := NewGmailProviderWithBaseURL("tok-gmail", srv.URL)
	assert.Equal(t, "gmail", provider.Name())

	emails, err := provider.FetchEmails(context.Background(), 25, "")
	require.NoError(t, err)
	require.Len(t, emails, 2)

	assert.Equal(t, "Bearer tok-gmail", authHeader)
	assert.Equal(t, "25", listQuery.Get("maxResults"))
	assert.Equal(t, "INBOX", listQuery.Get("labelIds"))

	first := emails[0]
	assert.Equal(t, "m1@nas", first.MessageID)
	assert.Equal(t, "th1", first.ThreadID)
	assert.Equal(t, "NABO03 - Sauvegarde Hyper Backup réussie", first.Subject)
	assert.Equal(t, "nas@nabo.fr", first.Sender)
	assert.Equal(t, []string{"backup@nabo.fr", "infogerance@exemple.fr"}, first.Recipients)
	require.NotNil(t, first.ReceivedAt)
	assert.WithinDuration(t, time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC), *first.ReceivedAt, 0)
	assert.Equal(t, "Tâche: Sauvegarde quotidienne", first.BodyText)
	assert.Equal(t, "<p>Tâche: Sauvegarde quotidienne</p>", first.BodyHTML)

	second := emails[1]
	// No Message-Id header: the gmail id stands in.
	assert.Equal(t, "g2", second.MessageID)
	assert.Nil(t, second.ReceivedAt)
	// Untyped payloads fall back to the top-level body, padded base64 included.
	assert.Equal(t, "Sauvegarde Active Backup terminée", second.BodyText)
	assert.Empty(t, second.BodyHTML)
}

func TestGmailFetchEmailsUppercasesFolder(t *testing.T) {
	var listQuery url.Values

	mux := http.NewServeMux()
	mux.HandleFunc("/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		listQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"messages":[]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	provider := NewGmailProviderWithBaseURL("tok-gmail", srv.URL)
	emails, err := provider.FetchEmails(context.Background(), 0, "archives")
	require.NoError(t, err)
	assert.Empty(t, emails)
	assert.Equal(t, "100", listQuery.Get("maxResults"))
	assert.Equal(t, "ARCHIVES", listQuery.Get("labelIds"))
}

func TestGmailTestConnection(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/me/profile", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"emailAddress":"backup@nabo.fr"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	provider := NewGmailProviderWithBaseURL("tok-gmail", srv.URL)
	require.NoError(t, provider.TestConnection(context.Background()))

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer empty.Close()

	provider = NewGmailProviderWithBaseURL("tok-gmail", empty.URL)
	err := provider.TestConnection(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no address")

	denied := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer denied.Close()

	provider = NewGmailProviderWithBaseURL("tok-gmail", denied.URL)
	err = provider.TestConnection(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
