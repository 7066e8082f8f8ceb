package scheduler

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"thor_backend/platform/config"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const defaultRunWatchAfter = 6 * time.Hour

type Client struct {
	client     *asynq.Client
	queue      string
	watchAfter time.Duration
}

// RunWatcher schedules a later check on a dispatched scrape run.
type RunWatcher interface {
	WatchScrapeRun(ctx context.Context, runID string, ownerID uuid.UUID) error
}

var _ RunWatcher = (*Client)(nil)

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	watchAfter := cfg.GetRunWatchAfter()
	if watchAfter <= 0 {
		watchAfter = defaultRunWatchAfter
	}

	return &Client{
		client:     asynq.NewClient(opt),
		queue:      queue,
		watchAfter: watchAfter,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// WatchScrapeRun enqueues a check that fires once the watch delay has passed.
// The task id is derived from the run so a repeated call is a no-op.
func (c *Client) WatchScrapeRun(ctx context.Context, runID string, ownerID uuid.UUID) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewScrapeRunWatchTask(ScrapeRunWatchPayload{RunID: runID, OwnerID: ownerID.String()})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.ProcessIn(c.watchAfter),
		asynq.Queue(c.queue),
		asynq.TaskID(TaskScrapeRunWatch+":"+runID),
	)
	return err
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
