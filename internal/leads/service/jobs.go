package service

import (
	"context"
	"errors"

	"thor_backend/internal/leads/dispatch"
	"thor_backend/internal/leads/domain"
	"thor_backend/internal/leads/repository"
	"thor_backend/internal/leads/transport"
	"thor_backend/internal/n8n"
	"thor_backend/platform/apperr"

	"github.com/google/uuid"
)

// RequestScrape dispatches a scrape job. Lead status is untouched until the
// runner calls back.
func (s *Service) RequestScrape(ctx context.Context, ownerID uuid.UUID, req transport.ScrapeRequest) (transport.ScrapeResponse, error) {
	payload := n8n.ScrapePayload{
		OwnerID:  ownerID,
		Keyword:  req.Keyword,
		Location: req.Location,
		Limit:    req.EffectiveLimit(),
	}

	res, err := s.dispatcher.Dispatch(ctx, dispatch.Job{
		Kind:    domain.JobScrape,
		OwnerID: ownerID,
		Send: func(ctx context.Context, jobID string) (dispatch.SendResult, error) {
			p := payload
			p.RunID = jobID
			return dispatch.SendResult{}, s.runner.PostScrape(ctx, p)
		},
	})
	if err != nil || !res.Accepted {
		return transport.ScrapeResponse{}, dispatchFailure("request_scrape", res, err)
	}

	outcome := res.Outcome
	if s.watcher != nil {
		outcome.Warn("watch_run", s.watcher.WatchScrapeRun(ctx, res.JobID, ownerID))
	}
	s.logWarnings(res.JobID, domain.JobScrape, outcome)
	return transport.ScrapeResponse{RunID: res.JobID, Warnings: outcome.Warnings}, nil
}

// RequestEmail dispatches an email to the first address of the lead. The
// outbound message row exists before the runner is called so its callback
// always finds it.
func (s *Service) RequestEmail(ctx context.Context, ownerID, leadID uuid.UUID) (transport.EmailResponse, error) {
	lead, err := s.getLead(ctx, ownerID, leadID)
	if err != nil {
		return transport.EmailResponse{}, err
	}

	detail, err := s.repo.GetDetail(ctx, ownerID, leadID)
	if errors.Is(err, repository.ErrDetailNotFound) {
		return transport.EmailResponse{}, apperr.NotFound(msgDetailNotFound)
	}
	if err != nil {
		return transport.EmailResponse{}, err
	}
	if len(detail.Emails) == 0 {
		return transport.EmailResponse{}, apperr.Validation("lead has no email address")
	}

	informe, err := informePayload(detail.Informe)
	if err != nil {
		return transport.EmailResponse{}, err
	}

	payload := n8n.EmailPayload{
		OwnerID: ownerID,
		LeadID:  leadID,
		To:      detail.Emails[0],
		Nombre:  detail.ClientNameOr(derefOr(lead.Title, fallbackName)),
		Website: derefOr(detail.Website, lead.Website),
		Informe: informe,
		WebsiteRRSS: n8n.SocialLinks{
			LinkedIn:  detail.Socials.LinkedIn,
			Facebook:  detail.Socials.Facebook,
			Instagram: detail.Socials.Instagram,
			Twitter:   detail.Socials.Twitter,
		},
	}

	var messageID uuid.UUID
	res, err := s.dispatcher.Dispatch(ctx, dispatch.Job{
		Kind:    domain.JobMessage,
		OwnerID: ownerID,
		LeadID:  &leadID,
		Prepare: func(ctx context.Context, jobID string) (func(context.Context) error, error) {
			msg, err := s.repo.CreateMessage(ctx, repository.CreateMessageParams{
				OwnerID:  ownerID,
				LeadID:   leadID,
				Channel:  domain.ChannelEmail,
				N8NRunID: jobID,
				Status:   domain.MessageSent,
			})
			if err != nil {
				return nil, err
			}
			messageID = msg.ID
			return func(ctx context.Context) error { return s.repo.DeleteMessage(ctx, msg.ID) }, nil
		},
		Send: func(ctx context.Context, jobID string) (dispatch.SendResult, error) {
			p := payload
			p.RunID = jobID
			resp, err := s.runner.PostEmail(ctx, p)
			if err != nil {
				return dispatch.SendResult{}, err
			}
			return dispatch.SendResult{ExternalRunID: resp.CorrelationID()}, nil
		},
		Settled: func(ctx context.Context, jobID string, sent dispatch.SendResult) error {
			if sent.ExternalRunID == "" || sent.ExternalRunID == jobID {
				return nil
			}
			return s.repo.SetExternalRunID(ctx, messageID, sent.ExternalRunID)
		},
	})
	if err != nil || !res.Accepted {
		return transport.EmailResponse{}, dispatchFailure("request_email", res, err)
	}

	outcome := res.Outcome
	if next, err := domain.ApplyLifecycleEvent(lead.Status, domain.EventEmailSent); err == nil {
		outcome.Warn("lead_status", s.repo.UpdateStatus(ctx, ownerID, leadID, next))
	}
	s.logWarnings(res.JobID, domain.JobMessage, outcome)
	return transport.EmailResponse{MessageID: messageID, RunID: res.JobID, Warnings: outcome.Warnings}, nil
}

func (s *Service) logWarnings(runID string, kind domain.JobKind, outcome domain.Outcome) {
	for _, w := range outcome.Warnings {
		s.log.WithRun(runID, string(kind)).Warn("dispatch side effect failed", "op", w.Op, "error", w.Message)
	}
}
