package scheduler

import (
	"context"
	"errors"

	"thor_backend/internal/leads/domain"
	"thor_backend/internal/leads/repository"
	"thor_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// RunReader looks up correlation records.
type RunReader interface {
	GetRun(ctx context.Context, runID string) (domain.DispatchRun, error)
}

// WatchRecorder counts runs found without a callback.
type WatchRecorder interface {
	UnreportedRun()
}

// RunWatchHandler reports scrape runs that never called back. It only
// observes: a lead left in en_progreso is a valid steady state, so no lead is
// ever touched here.
type RunWatchHandler struct {
	runs     RunReader
	recorder WatchRecorder
	log      *logger.Logger
}

func NewRunWatchHandler(runs RunReader, recorder WatchRecorder, log *logger.Logger) *RunWatchHandler {
	return &RunWatchHandler{runs: runs, recorder: recorder, log: log}
}

func (h *RunWatchHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseScrapeRunWatchPayload(task)
	if err != nil {
		// A malformed payload will never parse; do not retry it.
		return errors.Join(err, asynq.SkipRetry)
	}

	run, err := h.runs.GetRun(ctx, payload.RunID)
	if errors.Is(err, repository.ErrRunNotFound) {
		// Cleaned up or discarded after a rejected dispatch.
		return nil
	}
	if err != nil {
		return err
	}

	if run.Completed() {
		return nil
	}

	h.log.WithRun(run.RunID, string(run.Kind)).Warn("scrape run has not reported back",
		"owner_id", run.OwnerID.String(),
		"dispatched_at", run.CreatedAt,
	)
	if h.recorder != nil {
		h.recorder.UnreportedRun()
	}
	return nil
}
