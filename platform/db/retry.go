package db

import (
	"context"
	"time"

	"thor_backend/platform/config"
	"thor_backend/platform/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	retryInitialInterval = 2 * time.Second
	retryMaxInterval     = 30 * time.Second
	retryMaxElapsed      = 2 * time.Minute
)

// newRetryPolicy returns an exponential backoff that stops with ctx or after
// retryMaxElapsed.
func newRetryPolicy(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.MaxInterval = retryMaxInterval
	b.MaxElapsedTime = retryMaxElapsed
	b.Reset()
	return backoff.WithContext(b, ctx)
}

// Retry runs op until it succeeds, the policy gives up or ctx ends.
func Retry(ctx context.Context, log *logger.Logger, name string, op func() error) error {
	notify := func(err error, next time.Duration) {
		log.Warn("retryable operation failed", "operation", name, "error", err.Error(), "retry_in", next.String())
	}
	return backoff.RetryNotify(op, newRetryPolicy(ctx), notify)
}

// ConnectWithRetry opens the pool, retrying while the database comes up.
func ConnectWithRetry(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*pgxpool.Pool, error) {
	return backoff.RetryNotifyWithData(func() (*pgxpool.Pool, error) {
		return NewPool(ctx, cfg)
	}, newRetryPolicy(ctx), func(err error, next time.Duration) {
		log.Warn("database connection failed", "error", err.Error(), "retry_in", next.String())
	})
}
