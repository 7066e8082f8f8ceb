package callbacks

import (
	"context"
	"errors"
	"io"
	"testing"

	"thor_backend/internal/leads/domain"
	"thor_backend/internal/leads/repository"
	"thor_backend/internal/leads/repository/repotest"
	"thor_backend/platform/logger"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logger.Logger {
	return logger.NewWithWriter("test", io.Discard)
}

func seedRunLeads(store *repotest.Store, owner uuid.UUID, runID string, n int) []domain.Lead {
	leads := make([]domain.Lead, 0, n)
	for i := 0; i < n; i++ {
		title := gofakeit.Company()
		leads = append(leads, store.AddLead(domain.Lead{
			OwnerID: owner,
			Title:   &title,
			Website: gofakeit.DomainName(),
			Status:  domain.StatusInProgress,
			RunID:   &runID,
		}))
	}
	return leads
}

func TestApplyScrapeFansOutToEveryLeadOfTheRun(t *testing.T) {
	store := repotest.New()
	owner := uuid.New()
	runID := uuid.NewString()
	require.NoError(t, store.CreateRun(context.Background(), domain.DispatchRun{RunID: runID, OwnerID: owner, Kind: domain.JobScrape}))

	leads := seedRunLeads(store, owner, runID, 3)
	otherRun := "other-run"
	unrelated := store.AddLead(domain.Lead{OwnerID: owner, Status: domain.StatusInProgress, RunID: &otherRun})

	rec := NewReconciler(store, nil, testLogger())
	report, err := rec.ApplyScrape(context.Background(), ScrapeResult{RunID: runID, Status: ScrapeCompleted})
	require.NoError(t, err)
	assert.Equal(t, int64(3), report.Matched)
	assert.Empty(t, report.Warnings)

	for _, l := range leads {
		got, _ := store.Lead(l.ID)
		assert.Equal(t, domain.StatusCompleted, got.Status)
	}
	got, _ := store.Lead(unrelated.ID)
	assert.Equal(t, domain.StatusInProgress, got.Status)

	run, _ := store.Run(runID)
	assert.True(t, run.Completed())
	require.NotNil(t, run.Outcome)
	assert.Equal(t, ScrapeCompleted, *run.Outcome)
}

func TestApplyScrapeErrorMarksLeadsFailed(t *testing.T) {
	store := repotest.New()
	owner := uuid.New()
	runID := uuid.NewString()
	leads := seedRunLeads(store, owner, runID, 2)

	reason := "actor crashed"
	rec := NewReconciler(store, nil, testLogger())
	report, err := rec.ApplyScrape(context.Background(), ScrapeResult{RunID: runID, Status: ScrapeFailed, Error: &reason})
	require.NoError(t, err)
	assert.Equal(t, int64(2), report.Matched)
	assert.True(t, report.HasWarning("correlation_lookup"), "unknown run should be noted")

	for _, l := range leads {
		got, _ := store.Lead(l.ID)
		assert.Equal(t, domain.StatusError, got.Status)
	}
}

func TestApplyScrapeScopesToRunOwner(t *testing.T) {
	store := repotest.New()
	owner, stranger := uuid.New(), uuid.New()
	runID := uuid.NewString()
	require.NoError(t, store.CreateRun(context.Background(), domain.DispatchRun{RunID: runID, OwnerID: owner, Kind: domain.JobScrape}))

	mine := seedRunLeads(store, owner, runID, 1)[0]
	theirs := seedRunLeads(store, stranger, runID, 1)[0]

	_, err := NewReconciler(store, nil, testLogger()).ApplyScrape(context.Background(), ScrapeResult{RunID: runID, Status: ScrapeCompleted})
	require.NoError(t, err)

	got, _ := store.Lead(mine.ID)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	got, _ = store.Lead(theirs.ID)
	assert.Equal(t, domain.StatusInProgress, got.Status)
}

func TestApplyScrapeZeroMatchIsNotAnError(t *testing.T) {
	store := repotest.New()
	report, err := NewReconciler(store, nil, testLogger()).ApplyScrape(context.Background(), ScrapeResult{RunID: "nobody", Status: ScrapeCompleted})
	require.NoError(t, err)
	assert.Zero(t, report.Matched)
	assert.True(t, report.HasWarning("lead_update"))
}

func TestApplyScrapeStoreFailureIsReturned(t *testing.T) {
	store := repotest.New()
	store.Fail("SetStatusByRun", errors.New("connection reset"))

	_, err := NewReconciler(store, nil, testLogger()).ApplyScrape(context.Background(), ScrapeResult{RunID: "r1", Status: ScrapeCompleted})
	assert.Error(t, err)
}

func TestAcceptedDispatchNeverProducesZeroMatch(t *testing.T) {
	store := repotest.New()
	owner := uuid.New()
	lead := store.AddLead(domain.Lead{OwnerID: owner, Status: domain.StatusInvestigated})
	runID := uuid.NewString()

	// What the email flow writes before it reports acceptance.
	require.NoError(t, store.CreateRun(context.Background(), domain.DispatchRun{RunID: runID, OwnerID: owner, Kind: domain.JobMessage, LeadID: &lead.ID}))
	_, err := store.CreateMessage(context.Background(), repository.CreateMessageParams{OwnerID: owner, LeadID: lead.ID, N8NRunID: runID})
	require.NoError(t, err)

	report, err := NewReconciler(store, nil, testLogger()).ApplyMessage(context.Background(), MessageResult{
		N8NRunID: runID, LeadID: lead.ID.String(), Status: string(domain.MessageDelivered),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Matched)
	assert.False(t, report.HasWarning("message_update"))
}

func TestApplyMessageReplyIsIdempotent(t *testing.T) {
	store := repotest.New()
	owner := uuid.New()
	lead := store.AddLead(domain.Lead{OwnerID: owner, Status: domain.StatusEmailSent})
	runID := uuid.NewString()
	_, err := store.CreateMessage(context.Background(), repository.CreateMessageParams{OwnerID: owner, LeadID: lead.ID, N8NRunID: runID})
	require.NoError(t, err)

	providerID := "msg-42"
	text := "Nos interesa, llamadnos"
	in := MessageResult{
		N8NRunID: runID, LeadID: lead.ID.String(), Status: string(domain.MessageReplied),
		ProviderMessageID: &providerID, ResponseText: &text,
	}

	rec := NewReconciler(store, nil, testLogger())
	var snapshots []domain.OutboundMessage
	for i := 0; i < 2; i++ {
		_, err := rec.ApplyMessage(context.Background(), in)
		require.NoError(t, err)
		msgs := store.Messages(lead.ID)
		require.Len(t, msgs, 1)
		snapshots = append(snapshots, msgs[0])
	}

	assert.Equal(t, snapshots[0].Status, snapshots[1].Status)
	assert.Equal(t, *snapshots[0].ProviderMessageID, *snapshots[1].ProviderMessageID)
	assert.JSONEq(t, string(snapshots[0].Meta), string(snapshots[1].Meta))
	assert.JSONEq(t, `{"response_text":"Nos interesa, llamadnos"}`, string(snapshots[1].Meta))

	got, _ := store.Lead(lead.ID)
	assert.Equal(t, domain.StatusReplyReceived, got.Status)
}

func TestApplyMessageMatchesExternalRunID(t *testing.T) {
	store := repotest.New()
	owner := uuid.New()
	lead := store.AddLead(domain.Lead{OwnerID: owner, Status: domain.StatusEmailSent})
	msg, err := store.CreateMessage(context.Background(), repository.CreateMessageParams{OwnerID: owner, LeadID: lead.ID, N8NRunID: uuid.NewString()})
	require.NoError(t, err)
	require.NoError(t, store.SetExternalRunID(context.Background(), msg.ID, "exec-777"))

	report, err := NewReconciler(store, nil, testLogger()).ApplyMessage(context.Background(), MessageResult{
		N8NRunID: "exec-777", LeadID: lead.ID.String(), Status: string(domain.MessageFailed),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Matched)

	got, _ := store.Lead(lead.ID)
	assert.Equal(t, domain.StatusEmailSent, got.Status, "failed delivery must not touch lead status")
	assert.Equal(t, domain.MessageFailed, store.Messages(lead.ID)[0].Status)
}

func TestApplyMessageLeadFailureIsAWarning(t *testing.T) {
	store := repotest.New()
	owner := uuid.New()
	lead := store.AddLead(domain.Lead{OwnerID: owner, Status: domain.StatusEmailSent})
	runID := uuid.NewString()
	_, err := store.CreateMessage(context.Background(), repository.CreateMessageParams{OwnerID: owner, LeadID: lead.ID, N8NRunID: runID})
	require.NoError(t, err)
	store.Fail("UpdateStatus", errors.New("deadlock detected"))

	report, err := NewReconciler(store, nil, testLogger()).ApplyMessage(context.Background(), MessageResult{
		N8NRunID: runID, LeadID: lead.ID.String(), Status: string(domain.MessageReplied),
	})
	require.NoError(t, err)
	assert.True(t, report.HasWarning("lead_update"))
	assert.Equal(t, domain.MessageReplied, store.Messages(lead.ID)[0].Status)
}

func TestApplyMessageZeroMatchStillUpdatesRepliedLead(t *testing.T) {
	store := repotest.New()
	lead := store.AddLead(domain.Lead{OwnerID: uuid.New(), Status: domain.StatusEmailSent})

	report, err := NewReconciler(store, nil, testLogger()).ApplyMessage(context.Background(), MessageResult{
		N8NRunID: "unknown", LeadID: lead.ID.String(), Status: string(domain.MessageReplied),
	})
	require.NoError(t, err)
	assert.True(t, report.HasWarning("message_update"))

	got, _ := store.Lead(lead.ID)
	assert.Equal(t, domain.StatusReplyReceived, got.Status)
}
