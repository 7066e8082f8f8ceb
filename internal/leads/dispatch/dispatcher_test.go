package dispatch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"thor_backend/internal/leads/domain"
	"thor_backend/internal/n8n"
	"thor_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRuns struct {
	mu   sync.Mutex
	runs map[string]domain.DispatchRun
}

func newMemRuns() *memRuns {
	return &memRuns{runs: map[string]domain.DispatchRun{}}
}

func (m *memRuns) CreateRun(_ context.Context, run domain.DispatchRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.RunID] = run
	return nil
}

func (m *memRuns) DeleteRun(_ context.Context, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.runs, runID)
	return nil
}

func (m *memRuns) has(runID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.runs[runID]
	return ok
}

type webhookConfig struct{ scrape string }

func (c webhookConfig) GetScrapeWebhookURL() string { return c.scrape }
func (c webhookConfig) GetEmailWebhookURL() string  { return "" }

func testLogger() *logger.Logger {
	return logger.NewWithWriter("test", io.Discard)
}

func scrapeJob(client *n8n.Client, owner uuid.UUID) Job {
	return Job{
		Kind:    domain.JobScrape,
		OwnerID: owner,
		Send: func(ctx context.Context, jobID string) (SendResult, error) {
			return SendResult{}, client.PostScrape(ctx, n8n.ScrapePayload{
				RunID: jobID, OwnerID: owner, Keyword: "dentistas", Location: "Madrid", Limit: 15,
			})
		},
	}
}

func TestDispatchFastAcceptReturnsBeforeWindow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	runs := newMemRuns()
	d := New(runs, testLogger())
	client := n8n.NewClient(webhookConfig{scrape: srv.URL}, srv.Client(), testLogger())

	start := time.Now()
	res, err := d.Dispatch(context.Background(), scrapeJob(client, uuid.New()))
	require.NoError(t, err)

	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, res.Accepted)
	assert.False(t, res.TimedOut)
	_, parseErr := uuid.Parse(res.JobID)
	assert.NoError(t, parseErr, "job id should be a random uuid")
	assert.True(t, runs.has(res.JobID), "correlation record must persist on accept")
}

func TestDispatchUnreachableEndpointRejectsQuickly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	runs := newMemRuns()
	d := New(runs, testLogger())
	client := n8n.NewClient(webhookConfig{scrape: url}, nil, testLogger())

	start := time.Now()
	res, err := d.Dispatch(context.Background(), scrapeJob(client, uuid.New()))
	require.NoError(t, err)

	assert.Less(t, time.Since(start), AckWindow)
	assert.False(t, res.Accepted)
	assert.NotEmpty(t, res.Reason)
	assert.False(t, runs.has(res.JobID), "rejected dispatch must not leave a correlation record")
}

func TestDispatchNon2xxIsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("workflow inactive"))
	}))
	defer srv.Close()

	runs := newMemRuns()
	d := New(runs, testLogger())
	client := n8n.NewClient(webhookConfig{scrape: srv.URL}, srv.Client(), testLogger())

	res, err := d.Dispatch(context.Background(), scrapeJob(client, uuid.New()))
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Equal(t, "HTTP 502: workflow inactive", res.Reason)
	assert.False(t, runs.has(res.JobID))
}

func TestDispatchTimeoutIsAcceptedAndLateResultIsObserved(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	settled := make(chan string, 1)
	runs := newMemRuns()
	d := New(runs, testLogger(), WithAckWindow(50*time.Millisecond))
	client := n8n.NewClient(webhookConfig{scrape: srv.URL}, srv.Client(), testLogger())

	job := scrapeJob(client, uuid.New())
	job.Settled = func(_ context.Context, jobID string, _ SendResult) error {
		settled <- jobID
		return nil
	}

	res, err := d.Dispatch(context.Background(), job)
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.True(t, res.TimedOut)
	assert.True(t, runs.has(res.JobID))

	close(release)
	select {
	case id := <-settled:
		assert.Equal(t, res.JobID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("late settlement was not observed")
	}
}

func TestDispatchTimeoutRejectedWhenPolicyDisallows(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	undone := false
	runs := newMemRuns()
	d := New(runs, testLogger(),
		WithAckWindow(20*time.Millisecond),
		WithPolicy(domain.JobMessage, Policy{AcceptOnTimeout: false}),
	)

	res, err := d.Dispatch(context.Background(), Job{
		Kind: domain.JobMessage,
		Prepare: func(context.Context, string) (func(context.Context) error, error) {
			return func(context.Context) error { undone = true; return nil }, nil
		},
		Send: func(context.Context, string) (SendResult, error) {
			<-release
			return SendResult{}, nil
		},
	})
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Equal(t, ErrAcknowledgmentTimeout.Error(), res.Reason)
	assert.True(t, undone)
	assert.False(t, runs.has(res.JobID))
}

func TestDispatchStoresCorrelationBeforeSending(t *testing.T) {
	runs := newMemRuns()
	d := New(runs, testLogger(), WithIDGenerator(func() string { return "run-fixed" }))

	var seenBeforeSend bool
	res, err := d.Dispatch(context.Background(), Job{
		Kind: domain.JobScrape,
		Send: func(_ context.Context, jobID string) (SendResult, error) {
			seenBeforeSend = runs.has(jobID)
			return SendResult{ExternalRunID: "exec-1"}, nil
		},
	})
	require.NoError(t, err)
	assert.True(t, seenBeforeSend)
	assert.Equal(t, "run-fixed", res.JobID)
	assert.Equal(t, "exec-1", res.ExternalRunID)
}

func TestDispatchPrepareFailureSendsNothing(t *testing.T) {
	runs := newMemRuns()
	d := New(runs, testLogger(), WithIDGenerator(func() string { return "run-prep" }))

	sent := false
	_, err := d.Dispatch(context.Background(), Job{
		Kind: domain.JobMessage,
		Prepare: func(context.Context, string) (func(context.Context) error, error) {
			return nil, errors.New("insert failed")
		},
		Send: func(context.Context, string) (SendResult, error) {
			sent = true
			return SendResult{}, nil
		},
	})
	require.Error(t, err)
	assert.False(t, sent)
	assert.False(t, runs.has("run-prep"))
}

func TestDispatchSettledFailureBecomesWarning(t *testing.T) {
	d := New(newMemRuns(), testLogger())
	res, err := d.Dispatch(context.Background(), Job{
		Kind: domain.JobMessage,
		Send: func(context.Context, string) (SendResult, error) {
			return SendResult{ExternalRunID: "exec-9"}, nil
		},
		Settled: func(context.Context, string, SendResult) error {
			return errors.New("store unavailable")
		},
	})
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.True(t, res.HasWarning("dispatch_settled"))
}
