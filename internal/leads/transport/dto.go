package transport

import (
	"encoding/json"
	"time"

	"thor_backend/internal/leads/domain"

	"github.com/google/uuid"
)

const DefaultScrapeLimit = 15

// Request DTOs
type ScrapeRequest struct {
	Keyword  string `json:"keyword" validate:"required,notblank,max=200"`
	Location string `json:"location" validate:"required,notblank,max=200"`
	Limit    *int   `json:"limit,omitempty" validate:"omitempty,min=1,max=15"`
}

// EffectiveLimit applies the default when no limit was sent.
func (r ScrapeRequest) EffectiveLimit() int {
	if r.Limit == nil {
		return DefaultScrapeLimit
	}
	return *r.Limit
}

type LifecycleEventRequest struct {
	Event string `json:"event" validate:"required"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type UpdateLeadRequest struct {
	SearchString OptionalString `json:"search_string,omitempty" validate:"-"`
	Title        OptionalString `json:"title,omitempty" validate:"-"`
	CategoryName OptionalString `json:"category_name,omitempty" validate:"-"`
	Address      OptionalString `json:"address,omitempty" validate:"-"`
	Phone        OptionalString `json:"phone,omitempty" validate:"-"`
	Website      *string        `json:"website,omitempty" validate:"omitempty,max=500"`
	Status       *string        `json:"status,omitempty" validate:"omitempty"`
}

type UpdateLeadDetailRequest struct {
	ClientName OptionalString  `json:"client_name,omitempty" validate:"-"`
	Website    OptionalString  `json:"website,omitempty" validate:"-"`
	Emails     *[]string       `json:"emails,omitempty" validate:"omitempty,dive,email"`
	LinkedIn   OptionalString  `json:"linkedin,omitempty" validate:"-"`
	Facebook   OptionalString  `json:"facebook,omitempty" validate:"-"`
	Instagram  OptionalString  `json:"instagram,omitempty" validate:"-"`
	Twitter    OptionalString  `json:"twitter,omitempty" validate:"-"`
	Informe    json.RawMessage `json:"informe,omitempty" validate:"-"`
}

type BatchDeleteRequest struct {
	LeadIDs []uuid.UUID `json:"lead_ids" validate:"required,min=1"`
}

// Response DTOs
type LeadResponse struct {
	ID           uuid.UUID `json:"id"`
	SearchString *string   `json:"search_string"`
	Title        *string   `json:"title"`
	CategoryName *string   `json:"category_name"`
	Address      *string   `json:"address"`
	Phone        *string   `json:"phone"`
	Website      string    `json:"website"`
	Status       string    `json:"status"`
	RunID        *string   `json:"run_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type LeadDetailResponse struct {
	ID         uuid.UUID       `json:"id"`
	LeadID     uuid.UUID       `json:"lead_id"`
	ClientName *string         `json:"client_name"`
	Website    *string         `json:"website"`
	Emails     []string        `json:"emails"`
	LinkedIn   *string         `json:"linkedin"`
	Facebook   *string         `json:"facebook"`
	Instagram  *string         `json:"instagram"`
	Twitter    *string         `json:"twitter"`
	Informe    *domain.Informe `json:"informe"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type MessageResponse struct {
	ID                uuid.UUID       `json:"id"`
	Channel           string          `json:"channel"`
	Status            string          `json:"status"`
	N8NRunID          string          `json:"n8n_run_id"`
	ExternalRunID     *string         `json:"external_run_id"`
	ProviderMessageID *string         `json:"provider_message_id"`
	Meta              json.RawMessage `json:"meta"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type LeadWithDetailResponse struct {
	LeadResponse
	Detail        *LeadDetailResponse `json:"detail"`
	LatestMessage *MessageResponse    `json:"latest_message"`
}

type LeadListResponse struct {
	Items []LeadResponse `json:"items"`
	Total int            `json:"total"`
}

// Action results. Warnings list secondary writes that failed after the
// primary write succeeded.
type ScrapeResponse struct {
	RunID    string           `json:"run_id"`
	Warnings []domain.Warning `json:"warnings,omitempty"`
}

type EmailResponse struct {
	MessageID uuid.UUID        `json:"message_id"`
	RunID     string           `json:"run_id"`
	Warnings  []domain.Warning `json:"warnings,omitempty"`
}

type InvestigateResponse struct {
	Informe  domain.Informe   `json:"informe"`
	Warnings []domain.Warning `json:"warnings,omitempty"`
}

type DuplicatesResponse struct {
	DuplicatesFound   int              `json:"duplicates_found"`
	DuplicatesRemoved int              `json:"duplicates_removed"`
	Warnings          []domain.Warning `json:"warnings,omitempty"`
}
