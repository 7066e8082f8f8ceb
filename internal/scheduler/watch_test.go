package scheduler

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"thor_backend/internal/leads/domain"
	"thor_backend/internal/leads/repository/repotest"
	"thor_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countRecorder struct{ n int }

func (c *countRecorder) UnreportedRun() { c.n++ }

func testLogger() *logger.Logger {
	return logger.NewWithWriter("test", io.Discard)
}

func watchTask(t *testing.T, runID string) *asynq.Task {
	t.Helper()
	task, err := NewScrapeRunWatchTask(ScrapeRunWatchPayload{RunID: runID, OwnerID: uuid.NewString()})
	require.NoError(t, err)
	return task
}

func TestRunWatchReportsPendingRun(t *testing.T) {
	store := repotest.New()
	owner := uuid.New()
	runID := uuid.NewString()
	require.NoError(t, store.CreateRun(context.Background(), domain.DispatchRun{RunID: runID, OwnerID: owner, Kind: domain.JobScrape}))

	runIDCopy := runID
	lead := store.AddLead(domain.Lead{OwnerID: owner, Status: domain.StatusInProgress, RunID: &runIDCopy})

	rec := &countRecorder{}
	h := NewRunWatchHandler(store, rec, testLogger())
	require.NoError(t, h.ProcessTask(context.Background(), watchTask(t, runID)))
	assert.Equal(t, 1, rec.n)

	got, _ := store.Lead(lead.ID)
	assert.Equal(t, domain.StatusInProgress, got.Status, "watch must never change lead status")
}

func TestRunWatchIgnoresCompletedAndUnknownRuns(t *testing.T) {
	store := repotest.New()
	runID := uuid.NewString()
	require.NoError(t, store.CreateRun(context.Background(), domain.DispatchRun{RunID: runID, OwnerID: uuid.New(), Kind: domain.JobScrape}))
	require.NoError(t, store.CompleteRun(context.Background(), runID, "completed"))

	rec := &countRecorder{}
	h := NewRunWatchHandler(store, rec, testLogger())
	require.NoError(t, h.ProcessTask(context.Background(), watchTask(t, runID)))
	require.NoError(t, h.ProcessTask(context.Background(), watchTask(t, "gone")))
	assert.Zero(t, rec.n)
}

func TestRunWatchSkipsRetryOnBadPayload(t *testing.T) {
	h := NewRunWatchHandler(repotest.New(), &countRecorder{}, testLogger())
	err := h.ProcessTask(context.Background(), asynq.NewTask(TaskScrapeRunWatch, []byte("{")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestRunWatchRetriesOnStoreFailure(t *testing.T) {
	store := repotest.New()
	store.Fail("GetRun", errors.New("connection refused"))
	h := NewRunWatchHandler(store, &countRecorder{}, testLogger())

	err := h.ProcessTask(context.Background(), watchTask(t, "r1"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestRunCleanupDeletesOnlyOldSettledRuns(t *testing.T) {
	store := repotest.New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-45 * 24 * time.Hour)
	recent := now.Add(-time.Hour)

	ctx := context.Background()
	require.NoError(t, store.CreateRun(ctx, domain.DispatchRun{RunID: "old", Kind: domain.JobScrape, CompletedAt: &old}))
	require.NoError(t, store.CreateRun(ctx, domain.DispatchRun{RunID: "recent", Kind: domain.JobScrape, CompletedAt: &recent}))
	require.NoError(t, store.CreateRun(ctx, domain.DispatchRun{RunID: "pending", Kind: domain.JobScrape, CreatedAt: old}))

	c := NewRunCleanup(store, testLogger(), 0, 0)
	c.now = func() time.Time { return now }
	c.cleanup(ctx)

	_, ok := store.Run("old")
	assert.False(t, ok)
	_, ok = store.Run("recent")
	assert.True(t, ok)
	_, ok = store.Run("pending")
	assert.True(t, ok, "runs that never reported back are kept")
}

func TestScrapeRunWatchPayloadRoundTrip(t *testing.T) {
	task := watchTask(t, "run-7")
	assert.Equal(t, TaskScrapeRunWatch, task.Type())
	payload, err := ParseScrapeRunWatchPayload(task)
	require.NoError(t, err)
	assert.Equal(t, "run-7", payload.RunID)
}
