// Package service orchestrates the lead lifecycle: dispatching runner jobs,
// investigations, manual edits and deduplication.
package service

import (
	"context"
	"encoding/json"
	"errors"

	"thor_backend/internal/leads/dispatch"
	"thor_backend/internal/leads/domain"
	"thor_backend/internal/leads/repository"
	"thor_backend/internal/leads/report"
	"thor_backend/internal/n8n"
	"thor_backend/platform/apperr"
	"thor_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	msgLeadNotFound   = "lead not found"
	msgDetailNotFound = "lead detail not found"
	fallbackName      = "Cliente"
)

// Dispatcher hands a job to the runner within the acknowledgment window.
type Dispatcher interface {
	Dispatch(ctx context.Context, job dispatch.Job) (dispatch.Result, error)
}

// Runner is the outbound side of the automation runner.
type Runner interface {
	PostScrape(ctx context.Context, payload n8n.ScrapePayload) error
	PostEmail(ctx context.Context, payload n8n.EmailPayload) (n8n.EmailResponse, error)
}

// ReportGenerator produces a validated investigation report.
type ReportGenerator interface {
	Generate(ctx context.Context, req report.Request) (*domain.Informe, error)
}

// RunWatcher schedules a later check on an accepted scrape run.
type RunWatcher interface {
	WatchScrapeRun(ctx context.Context, runID string, ownerID uuid.UUID) error
}

// Recorder receives investigation telemetry.
type Recorder interface {
	Investigation(ok bool)
}

type Service struct {
	repo       repository.LeadsRepository
	dispatcher Dispatcher
	runner     Runner
	reports    ReportGenerator
	watcher    RunWatcher
	recorder   Recorder
	log        *logger.Logger
}

// Deps are the collaborators of Service. Watcher and Recorder are optional.
type Deps struct {
	Repo       repository.LeadsRepository
	Dispatcher Dispatcher
	Runner     Runner
	Reports    ReportGenerator
	Watcher    RunWatcher
	Recorder   Recorder
	Log        *logger.Logger
}

func New(deps Deps) *Service {
	recorder := deps.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Service{
		repo:       deps.Repo,
		dispatcher: deps.Dispatcher,
		runner:     deps.Runner,
		reports:    deps.Reports,
		watcher:    deps.Watcher,
		recorder:   recorder,
		log:        deps.Log,
	}
}

func (s *Service) getLead(ctx context.Context, ownerID, leadID uuid.UUID) (domain.Lead, error) {
	lead, err := s.repo.GetLead(ctx, ownerID, leadID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Lead{}, apperr.NotFound(msgLeadNotFound)
	}
	return lead, err
}

// dispatchFailure turns a dispatch that never produced an accepted job into
// a caller-facing error.
func dispatchFailure(op string, res dispatch.Result, err error) error {
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to dispatch job", err).WithOp(op)
	}
	return apperr.Upstream(res.Reason, nil).WithOp(op)
}

func informePayload(inf *domain.Informe) (json.RawMessage, error) {
	if inf == nil {
		return json.RawMessage("null"), nil
	}
	raw, err := json.Marshal(inf)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func derefOr(value *string, fallback string) string {
	if value == nil || *value == "" {
		return fallback
	}
	return *value
}

type nopRecorder struct{}

func (nopRecorder) Investigation(bool) {}
