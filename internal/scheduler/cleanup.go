package scheduler

import (
	"context"
	"time"

	"thor_backend/platform/logger"
)

const (
	defaultRunCleanupInterval = time.Hour
	defaultRunRetention       = 30 * 24 * time.Hour
)

// RunPruner deletes settled correlation records.
type RunPruner interface {
	DeleteCompletedRunsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RunCleanup periodically removes correlation records whose callback arrived
// long ago. Runs that never reported back are kept.
type RunCleanup struct {
	runs      RunPruner
	log       *logger.Logger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
}

func NewRunCleanup(runs RunPruner, log *logger.Logger, interval, retention time.Duration) *RunCleanup {
	if interval <= 0 {
		interval = defaultRunCleanupInterval
	}
	if retention <= 0 {
		retention = defaultRunRetention
	}

	return &RunCleanup{
		runs:      runs,
		log:       log,
		interval:  interval,
		retention: retention,
		now:       time.Now,
	}
}

func (c *RunCleanup) Run(ctx context.Context) {
	if c == nil || c.runs == nil {
		return
	}

	c.cleanup(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

func (c *RunCleanup) cleanup(ctx context.Context) {
	deleted, err := c.runs.DeleteCompletedRunsBefore(ctx, c.now().Add(-c.retention))
	if err != nil {
		c.log.Warn("dispatch run cleanup failed", "error", err)
		return
	}

	if deleted > 0 {
		c.log.Info("dispatch run cleanup deleted settled runs", "deleted", deleted)
	}
}
