package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Lead is a scraped business tracked through scrape, investigate, contact and reply.
type Lead struct {
	ID           uuid.UUID
	OwnerID      uuid.UUID
	SearchString *string
	Title        *string
	CategoryName *string
	Address      *string
	Phone        *string
	Website      string
	Status       Status
	RunID        *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DisplayTitle returns the lead title or an empty string.
func (l Lead) DisplayTitle() string {
	if l.Title == nil {
		return ""
	}
	return *l.Title
}

// Socials groups the social profile links of a lead.
type Socials struct {
	LinkedIn  *string
	Facebook  *string
	Instagram *string
	Twitter   *string
}

// LeadDetail holds enrichment data, one per lead.
type LeadDetail struct {
	ID         uuid.UUID
	LeadID     uuid.UUID
	OwnerID    uuid.UUID
	ClientName *string
	Website    *string
	Emails     []string
	Socials    Socials
	Informe    *Informe
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ClientNameOr returns the stored client name or fallback.
func (d LeadDetail) ClientNameOr(fallback string) string {
	if d.ClientName != nil && *d.ClientName != "" {
		return *d.ClientName
	}
	return fallback
}

// MessageStatus is the delivery state of an outbound message.
type MessageStatus string

const (
	MessageSent      MessageStatus = "enviado"
	MessageDelivered MessageStatus = "entregado"
	MessageReplied   MessageStatus = "respondido"
	MessageFailed    MessageStatus = "fallo"
)

// ChannelEmail is the only outbound channel in use.
const ChannelEmail = "email"

// OutboundMessage is one dispatched communication to a lead.
type OutboundMessage struct {
	ID                uuid.UUID
	OwnerID           uuid.UUID
	LeadID            uuid.UUID
	Channel           string
	Subject           *string
	Body              *string
	N8NRunID          string
	ExternalRunID     *string
	ProviderMessageID *string
	Status            MessageStatus
	Meta              json.RawMessage
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// JobKind identifies which automation flow a dispatch belongs to.
type JobKind string

const (
	JobScrape  JobKind = "scrape"
	JobMessage JobKind = "message"
)

// DispatchRun is the correlation record written for every dispatched job.
type DispatchRun struct {
	RunID       string
	OwnerID     uuid.UUID
	Kind        JobKind
	LeadID      *uuid.UUID
	Outcome     *string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// Completed reports whether a callback has settled this run.
func (r DispatchRun) Completed() bool {
	return r.CompletedAt != nil
}
