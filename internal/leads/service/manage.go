package service

import (
	"context"
	"errors"
	"strings"

	"thor_backend/internal/leads/dedup"
	"thor_backend/internal/leads/domain"
	"thor_backend/internal/leads/repository"
	"thor_backend/internal/leads/transport"
	"thor_backend/platform/apperr"
	"thor_backend/platform/phone"
	"thor_backend/platform/sanitize"

	"github.com/google/uuid"
)

// ApplyLifecycleEvent moves the lead along a sanctioned transition.
func (s *Service) ApplyLifecycleEvent(ctx context.Context, ownerID, leadID uuid.UUID, rawEvent string) (domain.Status, error) {
	event, err := domain.ParseLifecycleEvent(rawEvent)
	if err != nil {
		return "", apperr.Validation(err.Error())
	}

	lead, err := s.getLead(ctx, ownerID, leadID)
	if err != nil {
		return "", err
	}

	next, err := domain.ApplyLifecycleEvent(lead.Status, event)
	if err != nil {
		return "", apperr.Validation(err.Error())
	}
	if err := s.repo.UpdateStatus(ctx, ownerID, leadID, next); err != nil {
		return "", s.mapLeadErr(err)
	}
	return next, nil
}

// SetStatusDirect is the manual override: any defined status is accepted.
func (s *Service) SetStatusDirect(ctx context.Context, ownerID, leadID uuid.UUID, rawStatus string) (domain.Status, error) {
	status, err := domain.SetStatusDirect(domain.Status(rawStatus))
	if err != nil {
		return "", apperr.Validation(err.Error())
	}
	if err := s.repo.UpdateStatus(ctx, ownerID, leadID, status); err != nil {
		return "", s.mapLeadErr(err)
	}
	return status, nil
}

func (s *Service) UpdateLead(ctx context.Context, ownerID, leadID uuid.UUID, req transport.UpdateLeadRequest) (transport.LeadResponse, error) {
	params := repository.UpdateLeadParams{
		SearchString: sanitize.TextPtr(req.SearchString.Patch()),
		Title:        sanitize.TextPtr(req.Title.Patch()),
		CategoryName: sanitize.TextPtr(req.CategoryName.Patch()),
		Address:      sanitize.TextPtr(req.Address.Patch()),
		Phone:        phone.NormalizePtr(req.Phone.Patch()),
	}
	if req.Website != nil {
		website := strings.TrimSpace(sanitize.Text(*req.Website))
		params.Website = &website
	}
	if req.Status != nil {
		status, err := domain.SetStatusDirect(domain.Status(*req.Status))
		if err != nil {
			return transport.LeadResponse{}, apperr.Validation(err.Error())
		}
		params.Status = &status
	}

	lead, err := s.repo.UpdateLead(ctx, ownerID, leadID, params)
	if err != nil {
		return transport.LeadResponse{}, s.mapLeadErr(err)
	}
	return transport.ToLeadResponse(lead), nil
}

// UpdateLeadDetail applies a partial edit. A supplied informe must pass the
// same schema as a generated one.
func (s *Service) UpdateLeadDetail(ctx context.Context, ownerID, leadID uuid.UUID, req transport.UpdateLeadDetailRequest) (transport.LeadDetailResponse, error) {
	lead, err := s.getLead(ctx, ownerID, leadID)
	if err != nil {
		return transport.LeadDetailResponse{}, err
	}

	params := repository.UpdateDetailParams{
		ClientName: sanitize.TextPtr(req.ClientName.Patch()),
		Website:    sanitize.TextPtr(req.Website.Patch()),
		LinkedIn:   sanitize.TextPtr(req.LinkedIn.Patch()),
		Facebook:   sanitize.TextPtr(req.Facebook.Patch()),
		Instagram:  sanitize.TextPtr(req.Instagram.Patch()),
		Twitter:    sanitize.TextPtr(req.Twitter.Patch()),
	}
	if req.Emails != nil {
		emails := sanitize.Strings(*req.Emails)
		params.Emails = &emails
	}

	if len(req.Informe) > 0 && string(req.Informe) != "null" {
		website := lead.Website
		if params.Website != nil && *params.Website != "" {
			website = *params.Website
		}
		informe, err := domain.ParseInforme(req.Informe, website)
		if err != nil {
			var schemaErr *domain.SchemaError
			if errors.As(err, &schemaErr) {
				return transport.LeadDetailResponse{}, apperr.Validation("invalid informe").WithDetails(schemaErr.Issues)
			}
			return transport.LeadDetailResponse{}, apperr.Validation("invalid informe: " + err.Error())
		}
		params.Informe = informe
	}

	detail, err := s.repo.UpdateDetail(ctx, ownerID, leadID, params)
	if errors.Is(err, repository.ErrDetailNotFound) {
		return transport.LeadDetailResponse{}, apperr.NotFound(msgDetailNotFound)
	}
	if err != nil {
		return transport.LeadDetailResponse{}, err
	}
	return transport.ToLeadDetailResponse(detail), nil
}

// DeleteLead removes the lead; details and messages go with it. Any job still
// running for it becomes a zero-match callback.
func (s *Service) DeleteLead(ctx context.Context, ownerID, leadID uuid.UUID) error {
	return s.mapLeadErr(s.repo.DeleteLead(ctx, ownerID, leadID))
}

func (s *Service) BatchDeleteLeads(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, apperr.Validation("lead_ids must not be empty")
	}
	return s.repo.DeleteLeads(ctx, ownerID, ids)
}

func (s *Service) ListLeads(ctx context.Context, ownerID uuid.UUID) (transport.LeadListResponse, error) {
	leads, err := s.repo.ListLeads(ctx, ownerID)
	if err != nil {
		return transport.LeadListResponse{}, err
	}

	items := make([]transport.LeadResponse, 0, len(leads))
	for _, lead := range leads {
		items = append(items, transport.ToLeadResponse(lead))
	}
	return transport.LeadListResponse{Items: items, Total: len(items)}, nil
}

// GetLead returns the lead with its detail and the state of its latest message.
func (s *Service) GetLead(ctx context.Context, ownerID, leadID uuid.UUID) (transport.LeadWithDetailResponse, error) {
	lead, err := s.getLead(ctx, ownerID, leadID)
	if err != nil {
		return transport.LeadWithDetailResponse{}, err
	}

	resp := transport.LeadWithDetailResponse{LeadResponse: transport.ToLeadResponse(lead)}

	detail, err := s.repo.GetDetail(ctx, ownerID, leadID)
	switch {
	case err == nil:
		d := transport.ToLeadDetailResponse(detail)
		resp.Detail = &d
	case !errors.Is(err, repository.ErrDetailNotFound):
		return transport.LeadWithDetailResponse{}, err
	}

	msg, err := s.repo.LatestMessage(ctx, ownerID, leadID)
	if err != nil {
		return transport.LeadWithDetailResponse{}, err
	}
	if msg != nil {
		m := transport.ToMessageResponse(*msg)
		resp.LatestMessage = &m
	}
	return resp, nil
}

// RemoveDuplicates keeps the most recent lead per normalized website and
// deletes the rest in one batch.
func (s *Service) RemoveDuplicates(ctx context.Context, ownerID uuid.UUID) (transport.DuplicatesResponse, error) {
	leads, err := s.repo.ListLeads(ctx, ownerID)
	if err != nil {
		return transport.DuplicatesResponse{}, err
	}

	plan := dedup.BuildPlan(leads)
	if len(plan.Remove) == 0 {
		return transport.DuplicatesResponse{}, nil
	}

	var outcome domain.Outcome
	if _, err := s.repo.DeleteDetailsForLeads(ctx, ownerID, plan.Remove); err != nil {
		s.log.Warn("delete details of duplicate leads failed", "error", err.Error())
		outcome.Warn("delete_details", err)
	}

	if _, err := s.repo.DeleteLeads(ctx, ownerID, plan.Remove); err != nil {
		s.log.DatabaseError("delete duplicate leads", err)
		return transport.DuplicatesResponse{}, err
	}

	s.log.Info("duplicate leads removed",
		"owner_id", ownerID.String(),
		"duplicates_found", plan.Found,
		"duplicates_removed", len(plan.Remove),
	)
	return transport.DuplicatesResponse{
		DuplicatesFound:   plan.Found,
		DuplicatesRemoved: len(plan.Remove),
		Warnings:          outcome.Warnings,
	}, nil
}

func (s *Service) mapLeadErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(msgLeadNotFound)
	}
	return err
}
