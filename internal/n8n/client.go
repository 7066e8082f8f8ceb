// Package n8n talks to the external automation runner that executes scrape and email jobs.
package n8n

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"thor_backend/platform/config"
	"thor_backend/platform/logger"

	"github.com/google/uuid"
)

var (
	ErrScrapeWebhookNotConfigured = errors.New("scrape webhook URL is not configured")
	ErrEmailWebhookNotConfigured  = errors.New("email webhook URL is not configured")
)

// Client posts job payloads to the runner webhooks. The underlying http.Client
// has no Timeout: jobs may run far longer than a request round trip, and the
// caller bounds how long it is willing to wait.
type Client struct {
	scrapeURL string
	emailURL  string
	http      *http.Client
	log       *logger.Logger
}

// ScrapePayload starts a Maps scrape for keyword in location.
type ScrapePayload struct {
	RunID    string    `json:"run_id"`
	OwnerID  uuid.UUID `json:"owner_id"`
	Keyword  string    `json:"keyword"`
	Location string    `json:"location"`
	Limit    int       `json:"limit"`
}

// SocialLinks are forwarded so the email template can reference them.
type SocialLinks struct {
	LinkedIn  *string `json:"linkedin"`
	Facebook  *string `json:"facebook"`
	Instagram *string `json:"instagram"`
	Twitter   *string `json:"twitter"`
}

// EmailPayload asks the runner to compose and send an email to one lead.
type EmailPayload struct {
	RunID       string          `json:"run_id"`
	OwnerID     uuid.UUID       `json:"owner_id"`
	LeadID      uuid.UUID       `json:"lead_id"`
	To          string          `json:"to"`
	Nombre      string          `json:"nombre"`
	Website     string          `json:"website"`
	Informe     json.RawMessage `json:"informe"`
	WebsiteRRSS SocialLinks     `json:"website_rrss"`
}

// EmailResponse is the optional acknowledgment body of the email webhook.
type EmailResponse struct {
	ExecutionID string `json:"execution_id"`
	RunID       string `json:"run_id"`
}

// CorrelationID returns the id the runner will echo in its callback, if it sent one.
func (r EmailResponse) CorrelationID() string {
	if strings.TrimSpace(r.ExecutionID) != "" {
		return r.ExecutionID
	}
	return strings.TrimSpace(r.RunID)
}

func NewClient(cfg config.N8NConfig, httpClient *http.Client, log *logger.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		scrapeURL: strings.TrimSpace(cfg.GetScrapeWebhookURL()),
		emailURL:  strings.TrimSpace(cfg.GetEmailWebhookURL()),
		http:      httpClient,
		log:       log,
	}
}

// PostScrape delivers a scrape job. Any 2xx response means the runner took it.
func (c *Client) PostScrape(ctx context.Context, payload ScrapePayload) error {
	if c.scrapeURL == "" {
		return ErrScrapeWebhookNotConfigured
	}
	_, err := c.post(ctx, c.scrapeURL, payload)
	if err != nil {
		return err
	}
	c.log.Debug("scrape job delivered", "run_id", payload.RunID)
	return nil
}

// PostEmail delivers an email job and decodes the optional acknowledgment body.
func (c *Client) PostEmail(ctx context.Context, payload EmailPayload) (EmailResponse, error) {
	if c.emailURL == "" {
		return EmailResponse{}, ErrEmailWebhookNotConfigured
	}
	data, err := c.post(ctx, c.emailURL, payload)
	if err != nil {
		return EmailResponse{}, err
	}

	var resp EmailResponse
	if len(bytes.TrimSpace(data)) > 0 {
		// A body that is not JSON is still an accepted job.
		if err := json.Unmarshal(data, &resp); err != nil {
			c.log.Debug("email webhook returned non-JSON body", "run_id", payload.RunID)
		}
	}
	c.log.Debug("email job delivered", "run_id", payload.RunID, "execution_id", resp.ExecutionID)
	return resp, nil
}

func (c *Client) post(ctx context.Context, url string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}
