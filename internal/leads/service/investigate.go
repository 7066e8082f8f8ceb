package service

import (
	"context"
	"errors"

	"thor_backend/internal/leads/domain"
	"thor_backend/internal/leads/repository"
	"thor_backend/internal/leads/report"
	"thor_backend/internal/leads/transport"

	"github.com/google/uuid"
)

// Investigate generates and stores a report for the lead, then marks it
// investigado. A failed generation writes nothing and leaves status as is.
func (s *Service) Investigate(ctx context.Context, ownerID, leadID uuid.UUID) (transport.InvestigateResponse, error) {
	lead, err := s.getLead(ctx, ownerID, leadID)
	if err != nil {
		return transport.InvestigateResponse{}, err
	}

	detail, err := s.repo.GetDetail(ctx, ownerID, leadID)
	if errors.Is(err, repository.ErrDetailNotFound) {
		website := lead.Website
		detail, err = s.repo.CreateDetail(ctx, repository.CreateDetailParams{
			OwnerID:    ownerID,
			LeadID:     leadID,
			ClientName: lead.Title,
			Website:    &website,
			Emails:     []string{},
		})
	}
	if err != nil {
		return transport.InvestigateResponse{}, err
	}

	website := lead.Website
	if website == "" {
		website = derefOr(detail.Website, "")
	}

	log := s.log.WithContext(ctx).With("lead_id", leadID.String())
	log.Info("investigation started", "website", website)

	informe, err := s.reports.Generate(ctx, report.Request{
		Name:    lead.DisplayTitle(),
		Website: website,
		Emails:  detail.Emails,
		Socials: report.Socials{
			LinkedIn:  derefOr(detail.Socials.LinkedIn, ""),
			Facebook:  derefOr(detail.Socials.Facebook, ""),
			Instagram: derefOr(detail.Socials.Instagram, ""),
			Twitter:   derefOr(detail.Socials.Twitter, ""),
		},
	})
	if err != nil {
		s.recorder.Investigation(false)
		log.Error("investigation failed", "error", err.Error())
		return transport.InvestigateResponse{}, err
	}
	s.recorder.Investigation(true)

	if err := s.repo.SaveInforme(ctx, ownerID, leadID, *informe); err != nil {
		return transport.InvestigateResponse{}, err
	}

	var outcome domain.Outcome
	if next, err := domain.ApplyLifecycleEvent(lead.Status, domain.EventInvestigated); err == nil {
		if err := s.repo.UpdateStatus(ctx, ownerID, leadID, next); err != nil {
			log.Warn("investigation status update failed", "error", err.Error())
			outcome.Warn("lead_status", err)
		}
	}

	log.Info("investigation completed")
	return transport.InvestigateResponse{Informe: *informe, Warnings: outcome.Warnings}, nil
}
