package n8n

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"thor_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type urls struct{ scrape, email string }

func (u urls) GetScrapeWebhookURL() string { return u.scrape }
func (u urls) GetEmailWebhookURL() string  { return u.email }

func quietLogger() *logger.Logger { return logger.NewWithWriter("test", io.Discard) }

func TestPostScrapeSendsPayload(t *testing.T) {
	var got ScrapePayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client := NewClient(urls{scrape: srv.URL}, srv.Client(), quietLogger())
	owner := uuid.New()
	err := client.PostScrape(context.Background(), ScrapePayload{RunID: "run-1", OwnerID: owner, Keyword: "bares", Location: "Sevilla", Limit: 15})
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, owner, got.OwnerID)
	assert.Equal(t, 15, got.Limit)
}

func TestPostEmailReadsCorrelationID(t *testing.T) {
	cases := map[string]string{
		`{"execution_id":"exec-7","run_id":"run-2"}`: "exec-7",
		`{"run_id":"run-2"}`:                         "run-2",
		`accepted`:                                   "",
		``:                                           "",
	}
	for body, want := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		client := NewClient(urls{email: srv.URL}, srv.Client(), quietLogger())
		resp, err := client.PostEmail(context.Background(), EmailPayload{RunID: "run-2", To: "a@b.es"})
		srv.Close()
		require.NoError(t, err, body)
		assert.Equal(t, want, resp.CorrelationID(), body)
	}
}

func TestUnconfiguredWebhooksFailFast(t *testing.T) {
	client := NewClient(urls{}, nil, quietLogger())
	assert.True(t, errors.Is(client.PostScrape(context.Background(), ScrapePayload{}), ErrScrapeWebhookNotConfigured))
	_, err := client.PostEmail(context.Background(), EmailPayload{})
	assert.True(t, errors.Is(err, ErrEmailWebhookNotConfigured))
}

func TestNon2xxCarriesStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("webhook not registered\n"))
	}))
	defer srv.Close()

	client := NewClient(urls{email: srv.URL}, srv.Client(), quietLogger())
	_, err := client.PostEmail(context.Background(), EmailPayload{})
	require.Error(t, err)
	assert.Equal(t, "HTTP 404: webhook not registered", err.Error())
}
