// Package dispatch hands jobs to the automation runner and decides, within a
// short acknowledgment window, whether each one was accepted.
package dispatch

import (
	"context"
	"errors"
	"time"

	"thor_backend/internal/leads/domain"
	"thor_backend/platform/logger"

	"github.com/google/uuid"
)

// AckWindow is how long Dispatch waits for the runner before applying the
// timeout policy. It surfaces connection-level failures quickly; it does not
// bound how long the job itself may run.
const AckWindow = 5 * time.Second

// ErrAcknowledgmentTimeout is the rejection reason for kinds that do not accept on timeout.
var ErrAcknowledgmentTimeout = errors.New("runner did not acknowledge the job in time")

// SendResult is what the runner returned when the outbound call settled.
type SendResult struct {
	// ExternalRunID is an alternative correlation key reported by the runner.
	ExternalRunID string
}

// SendFunc performs the outbound call for jobID. It receives a context that is
// detached from the caller so the job survives the originating request.
type SendFunc func(ctx context.Context, jobID string) (SendResult, error)

// Job describes one dispatch.
type Job struct {
	Kind    domain.JobKind
	OwnerID uuid.UUID
	LeadID  *uuid.UUID
	// Prepare runs after the correlation record is stored and before Send.
	// Its undo func is invoked if the dispatch is rejected.
	Prepare func(ctx context.Context, jobID string) (undo func(context.Context) error, err error)
	Send    SendFunc
	// Settled runs once Send succeeds, inline or after an accepted timeout.
	Settled func(ctx context.Context, jobID string, res SendResult) error
}

// Result is the caller-visible outcome of Dispatch.
type Result struct {
	Accepted      bool
	JobID         string
	Reason        string
	ExternalRunID string
	// TimedOut is set when the window elapsed before the runner answered.
	TimedOut bool
	domain.Outcome
}

// Policy controls how a job kind is resolved when the window elapses first.
type Policy struct {
	AcceptOnTimeout bool
}

// RunWriter is the part of the correlation store a dispatcher writes to.
type RunWriter interface {
	CreateRun(ctx context.Context, run domain.DispatchRun) error
	DeleteRun(ctx context.Context, runID string) error
}

// Recorder receives dispatch telemetry.
type Recorder interface {
	DispatchResolved(kind domain.JobKind, outcome string, elapsed time.Duration)
	LateSettlement(kind domain.JobKind, ok bool)
}

const (
	OutcomeAccepted          = "accepted"
	OutcomeAcceptedOnTimeout = "accepted_on_timeout"
	OutcomeRejected          = "rejected"
)

type sendOutcome struct {
	res SendResult
	err error
}

type Dispatcher struct {
	runs     RunWriter
	log      *logger.Logger
	recorder Recorder
	window   time.Duration
	policies map[domain.JobKind]Policy
	newID    func() string
}

type Option func(*Dispatcher)

// WithAckWindow overrides AckWindow. Intended for tests.
func WithAckWindow(d time.Duration) Option {
	return func(disp *Dispatcher) { disp.window = d }
}

func WithRecorder(r Recorder) Option {
	return func(disp *Dispatcher) { disp.recorder = r }
}

func WithPolicy(kind domain.JobKind, p Policy) Option {
	return func(disp *Dispatcher) { disp.policies[kind] = p }
}

// WithIDGenerator replaces the job id generator.
func WithIDGenerator(fn func() string) Option {
	return func(disp *Dispatcher) { disp.newID = fn }
}

func New(runs RunWriter, log *logger.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		runs:     runs,
		log:      log,
		recorder: nopRecorder{},
		window:   AckWindow,
		policies: map[domain.JobKind]Policy{
			domain.JobScrape:  {AcceptOnTimeout: true},
			domain.JobMessage: {AcceptOnTimeout: true},
		},
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch stores the correlation record, runs job.Prepare, then races
// job.Send against the acknowledgment window. A returned error means nothing
// was sent; a rejected Result means the runner refused or was unreachable.
// In both cases no correlation record survives.
func (d *Dispatcher) Dispatch(ctx context.Context, job Job) (Result, error) {
	if job.Send == nil {
		return Result{}, errors.New("dispatch: job has no send func")
	}
	started := time.Now()
	jobID := d.newID()
	log := d.log.WithRun(jobID, string(job.Kind))

	// Writes from here on must not be abandoned if the caller goes away.
	bg := context.WithoutCancel(ctx)

	if err := d.runs.CreateRun(bg, domain.DispatchRun{
		RunID:   jobID,
		OwnerID: job.OwnerID,
		Kind:    job.Kind,
		LeadID:  job.LeadID,
	}); err != nil {
		return Result{}, err
	}

	var undo func(context.Context) error
	if job.Prepare != nil {
		u, err := job.Prepare(bg, jobID)
		if err != nil {
			d.discardRun(bg, log, jobID)
			return Result{}, err
		}
		undo = u
	}

	results := make(chan sendOutcome, 1)
	go func() {
		res, err := job.Send(bg, jobID)
		results <- sendOutcome{res: res, err: err}
	}()

	timer := time.NewTimer(d.window)
	defer timer.Stop()

	select {
	case out := <-results:
		if out.err != nil {
			d.rollback(bg, log, jobID, undo)
			d.finish(job.Kind, jobID, OutcomeRejected, started, out.err.Error())
			return Result{JobID: jobID, Reason: out.err.Error()}, nil
		}
		result := Result{Accepted: true, JobID: jobID, ExternalRunID: out.res.ExternalRunID}
		if job.Settled != nil {
			result.Warn("dispatch_settled", job.Settled(bg, jobID, out.res))
		}
		d.finish(job.Kind, jobID, OutcomeAccepted, started, "")
		return result, nil

	case <-timer.C:
		go d.awaitLate(bg, log, job, jobID, results)
		if d.policies[job.Kind].AcceptOnTimeout {
			d.finish(job.Kind, jobID, OutcomeAcceptedOnTimeout, started, "")
			return Result{Accepted: true, JobID: jobID, TimedOut: true}, nil
		}
		d.rollback(bg, log, jobID, undo)
		d.finish(job.Kind, jobID, OutcomeRejected, started, ErrAcknowledgmentTimeout.Error())
		return Result{JobID: jobID, Reason: ErrAcknowledgmentTimeout.Error(), TimedOut: true}, nil
	}
}

// awaitLate observes a send that outlived the window. Its result is never
// surfaced to the original caller.
func (d *Dispatcher) awaitLate(ctx context.Context, log *logger.Logger, job Job, jobID string, results <-chan sendOutcome) {
	out := <-results
	d.recorder.LateSettlement(job.Kind, out.err == nil)
	if out.err != nil {
		log.Warn("dispatch failed after acknowledgment window", "error", out.err.Error())
		return
	}
	log.Info("dispatch settled after acknowledgment window", "external_run_id", out.res.ExternalRunID)
	if job.Settled != nil {
		if err := job.Settled(ctx, jobID, out.res); err != nil {
			log.Warn("late dispatch settlement hook failed", "error", err.Error())
		}
	}
}

func (d *Dispatcher) rollback(ctx context.Context, log *logger.Logger, jobID string, undo func(context.Context) error) {
	if undo != nil {
		if err := undo(ctx); err != nil {
			log.Warn("undo of rejected dispatch failed", "error", err.Error())
		}
	}
	d.discardRun(ctx, log, jobID)
}

func (d *Dispatcher) discardRun(ctx context.Context, log *logger.Logger, jobID string) {
	if err := d.runs.DeleteRun(ctx, jobID); err != nil {
		log.Warn("discard correlation record failed", "error", err.Error())
	}
}

func (d *Dispatcher) finish(kind domain.JobKind, jobID, outcome string, started time.Time, reason string) {
	d.recorder.DispatchResolved(kind, outcome, time.Since(started))
	d.log.DispatchOutcome(jobID, string(kind), outcome != OutcomeRejected, outcome == OutcomeAcceptedOnTimeout, reason)
}

type nopRecorder struct{}

func (nopRecorder) DispatchResolved(domain.JobKind, string, time.Duration) {}
func (nopRecorder) LateSettlement(domain.JobKind, bool)                    {}
