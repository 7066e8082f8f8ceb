package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"thor_backend/internal/leads/repository"
	"thor_backend/internal/observer"
	"thor_backend/internal/scheduler"
	"thor_backend/platform/config"
	"thor_backend/platform/db"
	"thor_backend/platform/logger"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env, "queue", cfg.GetAsynqQueueName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.ConnectWithRetry(ctx, cfg, log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	runs := repository.New(pool)

	worker, err := scheduler.NewWorker(cfg, runs, observer.NewRecorder(), log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	cleanupInterval := getDurationEnv("RUN_CLEANUP_INTERVAL", time.Hour)
	retention := time.Duration(getPositiveIntEnv("RUN_RETENTION_DAYS", 30)) * 24 * time.Hour
	cleanup := scheduler.NewRunCleanup(runs, log, cleanupInterval, retention)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cleanup.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return worker.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		log.Error("scheduler stopped with error", "error", err)
		panic("scheduler error: " + err.Error())
	}
	log.Info("scheduler stopped")
}

func getPositiveIntEnv(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}

	return parsed
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}

	return parsed
}
