// Package repotest provides an in-memory LeadsRepository for tests.
package repotest

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"thor_backend/internal/leads/domain"
	"thor_backend/internal/leads/repository"

	"github.com/google/uuid"
)

// Store is a concurrency-safe in-memory LeadsRepository. Set Fail to make a
// named method return an error before it touches any state.
type Store struct {
	mu       sync.Mutex
	leads    map[uuid.UUID]domain.Lead
	details  map[uuid.UUID]domain.LeadDetail
	messages map[uuid.UUID]domain.OutboundMessage
	runs     map[string]domain.DispatchRun
	fail     map[string]error
	now      func() time.Time
}

var _ repository.LeadsRepository = (*Store)(nil)

func New() *Store {
	return &Store{
		leads:    map[uuid.UUID]domain.Lead{},
		details:  map[uuid.UUID]domain.LeadDetail{},
		messages: map[uuid.UUID]domain.OutboundMessage{},
		runs:     map[string]domain.DispatchRun{},
		fail:     map[string]error{},
		now:      time.Now,
	}
}

// Fail makes method return err until cleared with a nil err.
func (s *Store) Fail(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fail, method)
		return
	}
	s.fail[method] = err
}

func (s *Store) failure(method string) error {
	return s.fail[method]
}

// AddLead stores lead, filling ID, status and timestamps when unset.
func (s *Store) AddLead(lead domain.Lead) domain.Lead {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	if lead.Status == "" {
		lead.Status = domain.StatusNew
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = s.now()
	}
	lead.UpdatedAt = lead.CreatedAt
	s.leads[lead.ID] = lead
	return lead
}

// AddDetail stores detail, filling ID when unset.
func (s *Store) AddDetail(detail domain.LeadDetail) domain.LeadDetail {
	s.mu.Lock()
	defer s.mu.Unlock()
	if detail.ID == uuid.Nil {
		detail.ID = uuid.New()
	}
	if detail.Emails == nil {
		detail.Emails = []string{}
	}
	s.details[detail.LeadID] = detail
	return detail
}

// Lead returns the stored lead regardless of owner.
func (s *Store) Lead(id uuid.UUID) (domain.Lead, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[id]
	return lead, ok
}

// Detail returns the stored detail for leadID regardless of owner.
func (s *Store) Detail(leadID uuid.UUID) (domain.LeadDetail, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.details[leadID]
	return d, ok
}

// Run returns the stored correlation record.
func (s *Store) Run(runID string) (domain.DispatchRun, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	return run, ok
}

// Messages returns every stored message for leadID.
func (s *Store) Messages(leadID uuid.UUID) []domain.OutboundMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.OutboundMessage
	for _, m := range s.messages {
		if m.LeadID == leadID {
			out = append(out, m)
		}
	}
	return out
}

func (s *Store) GetLead(_ context.Context, ownerID, id uuid.UUID) (domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("GetLead"); err != nil {
		return domain.Lead{}, err
	}
	lead, ok := s.leads[id]
	if !ok || lead.OwnerID != ownerID {
		return domain.Lead{}, repository.ErrNotFound
	}
	return lead, nil
}

func (s *Store) ListLeads(_ context.Context, ownerID uuid.UUID) ([]domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("ListLeads"); err != nil {
		return nil, err
	}
	items := make([]domain.Lead, 0)
	for _, lead := range s.leads {
		if lead.OwnerID == ownerID {
			items = append(items, lead)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID.String() > items[j].ID.String()
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) UpdateLead(_ context.Context, ownerID, id uuid.UUID, params repository.UpdateLeadParams) (domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("UpdateLead"); err != nil {
		return domain.Lead{}, err
	}
	lead, ok := s.leads[id]
	if !ok || lead.OwnerID != ownerID {
		return domain.Lead{}, repository.ErrNotFound
	}
	setPtr(&lead.SearchString, params.SearchString)
	setPtr(&lead.Title, params.Title)
	setPtr(&lead.CategoryName, params.CategoryName)
	setPtr(&lead.Address, params.Address)
	setPtr(&lead.Phone, params.Phone)
	if params.Website != nil {
		lead.Website = *params.Website
	}
	if params.Status != nil {
		lead.Status = *params.Status
	}
	lead.UpdatedAt = s.now()
	s.leads[id] = lead
	return lead, nil
}

func (s *Store) UpdateStatus(_ context.Context, ownerID, id uuid.UUID, status domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("UpdateStatus"); err != nil {
		return err
	}
	lead, ok := s.leads[id]
	if !ok || lead.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	lead.Status = status
	lead.UpdatedAt = s.now()
	s.leads[id] = lead
	return nil
}

func (s *Store) UpdateStatusUnscoped(_ context.Context, id uuid.UUID, status domain.Status) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("UpdateStatusUnscoped"); err != nil {
		return 0, err
	}
	lead, ok := s.leads[id]
	if !ok {
		return 0, nil
	}
	lead.Status = status
	lead.UpdatedAt = s.now()
	s.leads[id] = lead
	return 1, nil
}

func (s *Store) SetStatusByRun(_ context.Context, runID string, ownerID *uuid.UUID, status domain.Status) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("SetStatusByRun"); err != nil {
		return 0, err
	}
	var n int64
	for id, lead := range s.leads {
		if lead.RunID == nil || *lead.RunID != runID {
			continue
		}
		if ownerID != nil && lead.OwnerID != *ownerID {
			continue
		}
		lead.Status = status
		lead.UpdatedAt = s.now()
		s.leads[id] = lead
		n++
	}
	return n, nil
}

func (s *Store) DeleteLead(_ context.Context, ownerID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("DeleteLead"); err != nil {
		return err
	}
	lead, ok := s.leads[id]
	if !ok || lead.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	s.deleteLeadLocked(id)
	return nil
}

func (s *Store) DeleteLeads(_ context.Context, ownerID uuid.UUID, ids []uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("DeleteLeads"); err != nil {
		return 0, err
	}
	var n int64
	for _, id := range ids {
		if lead, ok := s.leads[id]; ok && lead.OwnerID == ownerID {
			s.deleteLeadLocked(id)
			n++
		}
	}
	return n, nil
}

// deleteLeadLocked mirrors the ON DELETE CASCADE of the schema.
func (s *Store) deleteLeadLocked(id uuid.UUID) {
	delete(s.leads, id)
	delete(s.details, id)
	for mid, m := range s.messages {
		if m.LeadID == id {
			delete(s.messages, mid)
		}
	}
}

func (s *Store) GetDetail(_ context.Context, ownerID, leadID uuid.UUID) (domain.LeadDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("GetDetail"); err != nil {
		return domain.LeadDetail{}, err
	}
	d, ok := s.details[leadID]
	if !ok || d.OwnerID != ownerID {
		return domain.LeadDetail{}, repository.ErrDetailNotFound
	}
	return d, nil
}

func (s *Store) CreateDetail(_ context.Context, params repository.CreateDetailParams) (domain.LeadDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("CreateDetail"); err != nil {
		return domain.LeadDetail{}, err
	}
	emails := params.Emails
	if emails == nil {
		emails = []string{}
	}
	d := domain.LeadDetail{
		ID:         uuid.New(),
		LeadID:     params.LeadID,
		OwnerID:    params.OwnerID,
		ClientName: params.ClientName,
		Website:    params.Website,
		Emails:     emails,
		CreatedAt:  s.now(),
		UpdatedAt:  s.now(),
	}
	s.details[params.LeadID] = d
	return d, nil
}

func (s *Store) UpdateDetail(_ context.Context, ownerID, leadID uuid.UUID, params repository.UpdateDetailParams) (domain.LeadDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("UpdateDetail"); err != nil {
		return domain.LeadDetail{}, err
	}
	d, ok := s.details[leadID]
	if !ok || d.OwnerID != ownerID {
		return domain.LeadDetail{}, repository.ErrDetailNotFound
	}
	setPtr(&d.ClientName, params.ClientName)
	setPtr(&d.Website, params.Website)
	setPtr(&d.Socials.LinkedIn, params.LinkedIn)
	setPtr(&d.Socials.Facebook, params.Facebook)
	setPtr(&d.Socials.Instagram, params.Instagram)
	setPtr(&d.Socials.Twitter, params.Twitter)
	if params.Emails != nil {
		d.Emails = append([]string{}, (*params.Emails)...)
	}
	if params.Informe != nil {
		inf := *params.Informe
		d.Informe = &inf
	}
	d.UpdatedAt = s.now()
	s.details[leadID] = d
	return d, nil
}

func (s *Store) SaveInforme(_ context.Context, ownerID, leadID uuid.UUID, informe domain.Informe) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("SaveInforme"); err != nil {
		return err
	}
	d, ok := s.details[leadID]
	if !ok || d.OwnerID != ownerID {
		return repository.ErrDetailNotFound
	}
	d.Informe = &informe
	d.UpdatedAt = s.now()
	s.details[leadID] = d
	return nil
}

func (s *Store) DeleteDetailsForLeads(_ context.Context, ownerID uuid.UUID, leadIDs []uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("DeleteDetailsForLeads"); err != nil {
		return 0, err
	}
	var n int64
	for _, id := range leadIDs {
		if d, ok := s.details[id]; ok && d.OwnerID == ownerID {
			delete(s.details, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateMessage(_ context.Context, params repository.CreateMessageParams) (domain.OutboundMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("CreateMessage"); err != nil {
		return domain.OutboundMessage{}, err
	}
	status := params.Status
	if status == "" {
		status = domain.MessageSent
	}
	channel := params.Channel
	if channel == "" {
		channel = domain.ChannelEmail
	}
	m := domain.OutboundMessage{
		ID:        uuid.New(),
		OwnerID:   params.OwnerID,
		LeadID:    params.LeadID,
		Channel:   channel,
		Subject:   params.Subject,
		Body:      params.Body,
		N8NRunID:  params.N8NRunID,
		Status:    status,
		Meta:      json.RawMessage(`{}`),
		CreatedAt: s.now(),
		UpdatedAt: s.now(),
	}
	s.messages[m.ID] = m
	return m, nil
}

func (s *Store) DeleteMessage(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("DeleteMessage"); err != nil {
		return err
	}
	if _, ok := s.messages[id]; !ok {
		return repository.ErrMessageNotFound
	}
	delete(s.messages, id)
	return nil
}

func (s *Store) SetExternalRunID(_ context.Context, id uuid.UUID, externalRunID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("SetExternalRunID"); err != nil {
		return err
	}
	m, ok := s.messages[id]
	if !ok {
		return repository.ErrMessageNotFound
	}
	m.ExternalRunID = &externalRunID
	s.messages[id] = m
	return nil
}

func (s *Store) ApplyMessageCallback(_ context.Context, runID string, params repository.MessageCallbackParams) ([]domain.OutboundMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("ApplyMessageCallback"); err != nil {
		return nil, err
	}
	items := make([]domain.OutboundMessage, 0, 1)
	for id, m := range s.messages {
		if m.N8NRunID != runID && (m.ExternalRunID == nil || *m.ExternalRunID != runID) {
			continue
		}
		m.Status = params.Status
		if params.ProviderMessageID != nil {
			v := *params.ProviderMessageID
			m.ProviderMessageID = &v
		}
		merged, err := mergeMeta(m.Meta, params.Meta)
		if err != nil {
			return nil, err
		}
		m.Meta = merged
		m.UpdatedAt = s.now()
		s.messages[id] = m
		items = append(items, m)
	}
	return items, nil
}

func (s *Store) LatestMessage(_ context.Context, ownerID, leadID uuid.UUID) (*domain.OutboundMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("LatestMessage"); err != nil {
		return nil, err
	}
	var latest *domain.OutboundMessage
	for _, m := range s.messages {
		if m.LeadID != leadID || m.OwnerID != ownerID {
			continue
		}
		if latest == nil || m.CreatedAt.After(latest.CreatedAt) {
			msg := m
			latest = &msg
		}
	}
	return latest, nil
}

func (s *Store) CreateRun(_ context.Context, run domain.DispatchRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("CreateRun"); err != nil {
		return err
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now()
	}
	s.runs[run.RunID] = run
	return nil
}

func (s *Store) GetRun(_ context.Context, runID string) (domain.DispatchRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("GetRun"); err != nil {
		return domain.DispatchRun{}, err
	}
	run, ok := s.runs[runID]
	if !ok {
		return domain.DispatchRun{}, repository.ErrRunNotFound
	}
	return run, nil
}

func (s *Store) DeleteRun(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("DeleteRun"); err != nil {
		return err
	}
	delete(s.runs, runID)
	return nil
}

func (s *Store) CompleteRun(_ context.Context, runID, outcome string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("CompleteRun"); err != nil {
		return err
	}
	run, ok := s.runs[runID]
	if !ok {
		return repository.ErrRunNotFound
	}
	run.Outcome = &outcome
	if run.CompletedAt == nil {
		now := s.now()
		run.CompletedAt = &now
	}
	s.runs[runID] = run
	return nil
}

func (s *Store) DeleteCompletedRunsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("DeleteCompletedRunsBefore"); err != nil {
		return 0, err
	}
	var n int64
	for id, run := range s.runs {
		if run.CompletedAt != nil && run.CompletedAt.Before(cutoff) {
			delete(s.runs, id)
			n++
		}
	}
	return n, nil
}

func setPtr(dst **string, src *string) {
	if src == nil {
		return
	}
	v := *src
	*dst = &v
}

func mergeMeta(current json.RawMessage, patch map[string]any) (json.RawMessage, error) {
	merged := map[string]any{}
	if len(current) > 0 {
		if err := json.Unmarshal(current, &merged); err != nil {
			return nil, err
		}
	}
	for k, v := range patch {
		merged[k] = v
	}
	out, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(out), nil
}
