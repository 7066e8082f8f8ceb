// Package leads provides the lead lifecycle bounded context module.
// This file defines the module that encapsulates all leads setup and route registration.
package leads

import (
	apphttp "thor_backend/internal/http"
	"thor_backend/internal/leads/callbacks"
	"thor_backend/internal/leads/dispatch"
	"thor_backend/internal/leads/handler"
	"thor_backend/internal/leads/repository"
	"thor_backend/internal/leads/service"
	"thor_backend/internal/observer"
	"thor_backend/platform/logger"
	"thor_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler   *handler.Handler
	callbacks *callbacks.Handler
	service   *service.Service
	repo      *repository.Repository
}

// NewModule creates and initializes the leads module with all its dependencies.
// watcher may be nil when no background scheduler is configured.
func NewModule(
	pool *pgxpool.Pool,
	runner service.Runner,
	reports service.ReportGenerator,
	watcher service.RunWatcher,
	recorder *observer.Recorder,
	val *validator.Validator,
	log *logger.Logger,
) *Module {
	repo := repository.New(pool)

	dispatcher := dispatch.New(repo, log, dispatch.WithRecorder(recorder))
	svc := service.New(service.Deps{
		Repo:       repo,
		Dispatcher: dispatcher,
		Runner:     runner,
		Reports:    reports,
		Watcher:    watcher,
		Recorder:   recorder,
		Log:        log,
	})

	reconciler := callbacks.NewReconciler(repo, recorder, log)

	return &Module{
		handler:   handler.New(svc, val),
		callbacks: callbacks.NewHandler(reconciler, val, recorder, log),
		service:   svc,
		repo:      repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Service returns the lead lifecycle service for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the leads store, which also holds the correlation records.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts leads routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Operator routes require authentication
	m.handler.RegisterRoutes(ctx.Protected.Group("/leads"))

	// Runner callbacks carry no user token
	guards := callbackGuards(ctx)
	cb := ctx.V1.Group("/callbacks", guards...)
	cb.POST("/scrape", m.callbacks.HandleScrape)
	cb.POST("/message", m.callbacks.HandleMessage)

	// Paths the deployed workflows were built against
	legacy := ctx.Engine.Group("/api/n8n", guards...)
	legacy.POST("/scrape-callback", m.callbacks.HandleScrape)
	legacy.POST("/email-callback", m.callbacks.HandleMessage)
}

func callbackGuards(ctx *apphttp.RouterContext) []gin.HandlerFunc {
	var guards []gin.HandlerFunc
	if ctx.CallbackRateLimiter != nil {
		guards = append(guards, ctx.CallbackRateLimiter.RateLimit())
	}
	if ctx.CallbackGuard != nil {
		guards = append(guards, ctx.CallbackGuard)
	}
	return guards
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
