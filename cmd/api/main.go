package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	apphttp "thor_backend/internal/http"
	"thor_backend/internal/http/router"
	"thor_backend/internal/leads"
	"thor_backend/internal/leads/report"
	"thor_backend/internal/leads/service"
	"thor_backend/internal/n8n"
	"thor_backend/internal/observer"
	"thor_backend/internal/scheduler"
	"thor_backend/migrations"
	"thor_backend/platform/ai/chatcompletion"
	"thor_backend/platform/config"
	"thor_backend/platform/db"
	"thor_backend/platform/logger"
	"thor_backend/platform/validator"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr, "llm_provider", cfg.GetLLMProvider())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	pool, err := db.ConnectWithRetry(ctx, cfg, log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	if err := db.Retry(ctx, log, "database migrations", func() error {
		return db.RunMigrations(ctx, pool, migrations.FS, log)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	recorder := observer.NewRecorder()
	runner := n8n.NewClient(cfg, &http.Client{}, log)
	llm := chatcompletion.NewModel(llmConfig(cfg), &http.Client{})
	reports := report.NewPipeline(report.NewLLMGenerator(llm), cfg.GetLLMProvider())

	watcher, closeWatcher := initRunWatcher(cfg, log)
	if closeWatcher != nil {
		defer closeWatcher()
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	leadsModule := leads.NewModule(pool, runner, reports, watcher, recorder, val, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:  cfg,
		Logger:  log,
		Health:  pool,
		Modules: []apphttp.Module{leadsModule},
	}

	srv := &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		panic("server error: " + err.Error())
	}
	log.Info("server stopped")
}

func llmConfig(cfg config.LLMConfig) chatcompletion.Config {
	if cfg.GetLLMProvider() == config.ProviderPerplexity {
		return chatcompletion.PerplexityConfig(cfg.GetLLMAPIKey(), cfg.GetLLMModel())
	}
	return chatcompletion.OpenAIConfig(cfg.GetLLMAPIKey(), cfg.GetLLMModel())
}

// initRunWatcher returns nil when Redis is not configured; scrape runs are
// then not followed up after dispatch.
func initRunWatcher(cfg config.SchedulerConfig, log *logger.Logger) (service.RunWatcher, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; unreported scrape runs will not be flagged")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}
