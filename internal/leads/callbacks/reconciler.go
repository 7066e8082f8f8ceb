// Package callbacks applies asynchronous results reported by the automation
// runner to outbound messages and lead status.
package callbacks

import (
	"context"
	"errors"
	"fmt"

	"thor_backend/internal/leads/domain"
	"thor_backend/internal/leads/repository"
	"thor_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	ScrapeCompleted = "completed"
	ScrapeFailed    = "error"
)

// Callback results reported to the Recorder.
const (
	ResultApplied   = "applied"
	ResultUnmatched = "unmatched"
	ResultInvalid   = "invalid"
	ResultFailed    = "failed"
)

// ScrapeResult is the body the runner posts when a scrape run ends.
type ScrapeResult struct {
	RunID  string  `json:"run_id" validate:"required,notblank"`
	Status string  `json:"status" validate:"required,oneof=completed error"`
	Error  *string `json:"error"`
}

// MessageResult is the body the runner posts when a message changes state.
type MessageResult struct {
	N8NRunID          string  `json:"n8n_run_id" validate:"required,notblank"`
	LeadID            string  `json:"lead_id" validate:"required,uuid"`
	Status            string  `json:"status" validate:"required,oneof=entregado respondido fallo"`
	ProviderMessageID *string `json:"provider_message_id"`
	ResponseText      *string `json:"response_text"`
}

// Store is the subset of the leads repository the reconciler writes to.
type Store interface {
	GetRun(ctx context.Context, runID string) (domain.DispatchRun, error)
	CompleteRun(ctx context.Context, runID, outcome string) error
	SetStatusByRun(ctx context.Context, runID string, ownerID *uuid.UUID, status domain.Status) (int64, error)
	ApplyMessageCallback(ctx context.Context, runID string, params repository.MessageCallbackParams) ([]domain.OutboundMessage, error)
	UpdateStatus(ctx context.Context, ownerID, id uuid.UUID, status domain.Status) error
	UpdateStatusUnscoped(ctx context.Context, id uuid.UUID, status domain.Status) (int64, error)
}

// Recorder receives callback telemetry.
type Recorder interface {
	Callback(kind domain.JobKind, result string)
}

// Report describes what a callback changed.
type Report struct {
	Matched int64
	domain.Outcome
}

type Reconciler struct {
	store    Store
	log      *logger.Logger
	recorder Recorder
}

func NewReconciler(store Store, recorder Recorder, log *logger.Logger) *Reconciler {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Reconciler{store: store, log: log, recorder: recorder}
}

// ApplyScrape sets the mapped status on every lead of the run. A returned
// error means the lead update itself failed and nothing may be assumed
// written; every other problem is a warning.
func (r *Reconciler) ApplyScrape(ctx context.Context, in ScrapeResult) (Report, error) {
	event := domain.EventScrapeCompleted
	if in.Status == ScrapeFailed {
		event = domain.EventScrapeFailed
	}
	target, err := domain.ApplyLifecycleEvent(domain.StatusInProgress, event)
	if err != nil {
		return Report{}, err
	}

	log := r.log.WithRun(in.RunID, string(domain.JobScrape))
	if in.Error != nil && *in.Error != "" {
		log.Warn("scrape run reported an error", "runner_error", *in.Error)
	}

	var report Report
	owner, known, err := r.runOwner(ctx, in.RunID)
	if err != nil {
		r.recorder.Callback(domain.JobScrape, ResultFailed)
		return Report{}, err
	}
	if !known {
		report.Note("correlation_lookup", "no dispatch record for run "+in.RunID)
	}

	n, err := r.store.SetStatusByRun(ctx, in.RunID, owner, target)
	if err != nil {
		log.DatabaseError("set status by run", err)
		r.recorder.Callback(domain.JobScrape, ResultFailed)
		return Report{}, err
	}
	report.Matched = n

	if n == 0 {
		r.log.CallbackMismatch(string(domain.JobScrape), in.RunID)
		report.Note("lead_update", "no leads carry run "+in.RunID)
		r.recorder.Callback(domain.JobScrape, ResultUnmatched)
	} else {
		log.Info("scrape callback applied", "leads_count", n, "status", string(target))
		r.recorder.Callback(domain.JobScrape, ResultApplied)
	}

	if known {
		r.completeRun(ctx, log, &report, in.RunID, in.Status)
	}
	return report, nil
}

// ApplyMessage records the delivery update on the message that carries the
// callback key and, for replies, moves the referenced lead to
// respuesta_recibida.
func (r *Reconciler) ApplyMessage(ctx context.Context, in MessageResult) (Report, error) {
	leadID, err := uuid.Parse(in.LeadID)
	if err != nil {
		return Report{}, fmt.Errorf("lead_id: %w", err)
	}
	status := domain.MessageStatus(in.Status)
	log := r.log.WithRun(in.N8NRunID, string(domain.JobMessage))

	params := repository.MessageCallbackParams{
		Status:            status,
		ProviderMessageID: in.ProviderMessageID,
	}
	if in.ResponseText != nil && *in.ResponseText != "" {
		params.Meta = map[string]any{"response_text": *in.ResponseText}
	}

	messages, err := r.store.ApplyMessageCallback(ctx, in.N8NRunID, params)
	if err != nil {
		log.DatabaseError("apply message callback", err)
		r.recorder.Callback(domain.JobMessage, ResultFailed)
		return Report{}, err
	}

	report := Report{Matched: int64(len(messages))}
	if len(messages) == 0 {
		r.log.CallbackMismatch(string(domain.JobMessage), in.N8NRunID)
		report.Note("message_update", "no message carries run "+in.N8NRunID)
		r.recorder.Callback(domain.JobMessage, ResultUnmatched)
	} else {
		log.Info("message callback applied", "message_id", messages[0].ID.String(), "status", in.Status)
		r.recorder.Callback(domain.JobMessage, ResultApplied)
		r.completeRun(ctx, log, &report, messages[0].N8NRunID, in.Status)
	}

	if status == domain.MessageReplied {
		if err := r.markReplied(ctx, in.N8NRunID, leadID, messages); err != nil {
			log.Warn("mark lead replied failed", "lead_id", leadID.String(), "error", err.Error())
			report.Warn("lead_update", err)
		}
	}
	return report, nil
}

func (r *Reconciler) markReplied(ctx context.Context, runID string, leadID uuid.UUID, messages []domain.OutboundMessage) error {
	target, err := domain.ApplyLifecycleEvent(domain.StatusEmailSent, domain.EventReplyReceived)
	if err != nil {
		return err
	}

	for _, m := range messages {
		if m.LeadID == leadID {
			return r.store.UpdateStatus(ctx, m.OwnerID, leadID, target)
		}
	}
	if run, err := r.store.GetRun(ctx, runID); err == nil {
		return r.store.UpdateStatus(ctx, run.OwnerID, leadID, target)
	}

	n, err := r.store.UpdateStatusUnscoped(ctx, leadID, target)
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// runOwner resolves the owner recorded at dispatch time. Unknown runs are
// not an error: the update then falls back to matching on run_id alone.
func (r *Reconciler) runOwner(ctx context.Context, runID string) (*uuid.UUID, bool, error) {
	run, err := r.store.GetRun(ctx, runID)
	if errors.Is(err, repository.ErrRunNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	owner := run.OwnerID
	return &owner, true, nil
}

func (r *Reconciler) completeRun(ctx context.Context, log *logger.Logger, report *Report, runID, outcome string) {
	err := r.store.CompleteRun(ctx, runID, outcome)
	if errors.Is(err, repository.ErrRunNotFound) {
		return
	}
	if err != nil {
		log.Warn("complete dispatch run failed", "error", err.Error())
		report.Warn("complete_run", err)
	}
}

type nopRecorder struct{}

func (nopRecorder) Callback(domain.JobKind, string) {}
