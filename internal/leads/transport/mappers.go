package transport

import (
	"encoding/json"

	"thor_backend/internal/leads/domain"
)

func ToLeadResponse(lead domain.Lead) LeadResponse {
	return LeadResponse{
		ID:           lead.ID,
		SearchString: lead.SearchString,
		Title:        lead.Title,
		CategoryName: lead.CategoryName,
		Address:      lead.Address,
		Phone:        lead.Phone,
		Website:      lead.Website,
		Status:       string(lead.Status),
		RunID:        lead.RunID,
		CreatedAt:    lead.CreatedAt,
		UpdatedAt:    lead.UpdatedAt,
	}
}

func ToLeadDetailResponse(d domain.LeadDetail) LeadDetailResponse {
	emails := d.Emails
	if emails == nil {
		emails = []string{}
	}
	return LeadDetailResponse{
		ID:         d.ID,
		LeadID:     d.LeadID,
		ClientName: d.ClientName,
		Website:    d.Website,
		Emails:     emails,
		LinkedIn:   d.Socials.LinkedIn,
		Facebook:   d.Socials.Facebook,
		Instagram:  d.Socials.Instagram,
		Twitter:    d.Socials.Twitter,
		Informe:    d.Informe,
		UpdatedAt:  d.UpdatedAt,
	}
}

func ToMessageResponse(m domain.OutboundMessage) MessageResponse {
	meta := m.Meta
	if len(meta) == 0 {
		meta = json.RawMessage(`{}`)
	}
	return MessageResponse{
		ID:                m.ID,
		Channel:           m.Channel,
		Status:            string(m.Status),
		N8NRunID:          m.N8NRunID,
		ExternalRunID:     m.ExternalRunID,
		ProviderMessageID: m.ProviderMessageID,
		Meta:              meta,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}
