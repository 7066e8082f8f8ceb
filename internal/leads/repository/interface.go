package repository

import (
	"context"
	"time"

	"thor_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// =====================================
// Segregated Interfaces (Interface Segregation Principle)
// =====================================

// LeadReader provides owner-scoped read access to leads.
type LeadReader interface {
	GetLead(ctx context.Context, ownerID, id uuid.UUID) (domain.Lead, error)
	// ListLeads returns the owner's leads, most recently created first.
	ListLeads(ctx context.Context, ownerID uuid.UUID) ([]domain.Lead, error)
}

// LeadWriter provides write operations on leads.
type LeadWriter interface {
	UpdateLead(ctx context.Context, ownerID, id uuid.UUID, params UpdateLeadParams) (domain.Lead, error)
	UpdateStatus(ctx context.Context, ownerID, id uuid.UUID, status domain.Status) error
	// UpdateStatusUnscoped is reserved for runner callbacks that cannot name an owner.
	UpdateStatusUnscoped(ctx context.Context, id uuid.UUID, status domain.Status) (int64, error)
	// SetStatusByRun sets status on every lead carrying runID. A nil ownerID leaves the update unscoped.
	SetStatusByRun(ctx context.Context, runID string, ownerID *uuid.UUID, status domain.Status) (int64, error)
	DeleteLead(ctx context.Context, ownerID, id uuid.UUID) error
	DeleteLeads(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (int64, error)
}

// DetailStore manages lead enrichment rows.
type DetailStore interface {
	GetDetail(ctx context.Context, ownerID, leadID uuid.UUID) (domain.LeadDetail, error)
	CreateDetail(ctx context.Context, params CreateDetailParams) (domain.LeadDetail, error)
	UpdateDetail(ctx context.Context, ownerID, leadID uuid.UUID, params UpdateDetailParams) (domain.LeadDetail, error)
	SaveInforme(ctx context.Context, ownerID, leadID uuid.UUID, informe domain.Informe) error
	DeleteDetailsForLeads(ctx context.Context, ownerID uuid.UUID, leadIDs []uuid.UUID) (int64, error)
}

// MessageStore manages outbound messages.
type MessageStore interface {
	CreateMessage(ctx context.Context, params CreateMessageParams) (domain.OutboundMessage, error)
	DeleteMessage(ctx context.Context, id uuid.UUID) error
	SetExternalRunID(ctx context.Context, id uuid.UUID, externalRunID string) error
	// ApplyMessageCallback updates every message whose n8n_run_id or external_run_id equals runID.
	ApplyMessageCallback(ctx context.Context, runID string, params MessageCallbackParams) ([]domain.OutboundMessage, error)
	LatestMessage(ctx context.Context, ownerID, leadID uuid.UUID) (*domain.OutboundMessage, error)
}

// RunStore is the correlation store between a dispatch and its callback.
type RunStore interface {
	CreateRun(ctx context.Context, run domain.DispatchRun) error
	GetRun(ctx context.Context, runID string) (domain.DispatchRun, error)
	DeleteRun(ctx context.Context, runID string) error
	// CompleteRun is idempotent: replays keep the first completion time and overwrite the outcome.
	CompleteRun(ctx context.Context, runID, outcome string) error
	DeleteCompletedRunsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// LeadsRepository composes every store used by the leads module.
type LeadsRepository interface {
	LeadReader
	LeadWriter
	DetailStore
	MessageStore
	RunStore
}

var _ LeadsRepository = (*Repository)(nil)
