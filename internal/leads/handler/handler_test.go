package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"thor_backend/internal/leads/dispatch"
	"thor_backend/internal/leads/domain"
	"thor_backend/internal/leads/report"
	"thor_backend/internal/leads/repository/repotest"
	"thor_backend/internal/leads/service"
	"thor_backend/internal/n8n"
	"thor_backend/platform/httpkit"
	"thor_backend/platform/logger"
	"thor_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct{ scrapeErr error }

func (s stubRunner) PostScrape(context.Context, n8n.ScrapePayload) error { return s.scrapeErr }
func (stubRunner) PostEmail(context.Context, n8n.EmailPayload) (n8n.EmailResponse, error) {
	return n8n.EmailResponse{}, nil
}

type stubReports struct{}

func (stubReports) Generate(context.Context, report.Request) (*domain.Informe, error) {
	return nil, errors.New("not used")
}

type env struct {
	store  *repotest.Store
	engine *gin.Engine
	owner  uuid.UUID
}

func newEnv(t *testing.T, runner stubRunner) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewWithWriter("test", io.Discard)

	store := repotest.New()
	svc := service.New(service.Deps{
		Repo:       store,
		Dispatcher: dispatch.New(store, log, dispatch.WithAckWindow(time.Second)),
		Runner:     runner,
		Reports:    stubReports{},
		Log:        log,
	})

	e := &env{store: store, owner: uuid.New()}
	engine := gin.New()
	group := engine.Group("/api/v1/leads", func(c *gin.Context) {
		if c.GetHeader("X-Test-Anonymous") == "" {
			c.Set(httpkit.ContextUserIDKey, e.owner)
		}
		c.Next()
	})
	New(svc, validator.New()).RegisterRoutes(group)
	e.engine = engine
	return e
}

func (e *env) do(t *testing.T, method, path string, body any, headers ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	var decoded map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &decoded)
	return w, decoded
}

func TestRequestsWithoutIdentityAreRejected(t *testing.T) {
	e := newEnv(t, stubRunner{})
	w, _ := e.do(t, http.MethodGet, "/api/v1/leads", nil, "X-Test-Anonymous", "1")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestScrapeReturnsRunID(t *testing.T) {
	e := newEnv(t, stubRunner{})
	w, body := e.do(t, http.MethodPost, "/api/v1/leads/scrape", gin.H{"keyword": "fontaneros", "location": "Valencia"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	runID, _ := body["run_id"].(string)
	_, ok := e.store.Run(runID)
	assert.True(t, ok)
	assert.NotContains(t, body, "warnings")
}

func TestScrapeValidationUsesJSONFieldNames(t *testing.T) {
	e := newEnv(t, stubRunner{})
	w, body := e.do(t, http.MethodPost, "/api/v1/leads/scrape", gin.H{"keyword": "  ", "limit": 40})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, body["success"])
	details, _ := body["details"].(map[string]any)
	assert.Contains(t, details, "keyword")
	assert.Contains(t, details, "location")
	assert.Contains(t, details, "limit")
}

func TestScrapeRunnerRejectionIsBadGateway(t *testing.T) {
	e := newEnv(t, stubRunner{scrapeErr: errors.New("HTTP 404: not registered")})
	w, body := e.do(t, http.MethodPost, "/api/v1/leads/scrape", gin.H{"keyword": "k", "location": "l"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "HTTP 404: not registered", body["error"])
}

func TestLifecycleEventEndpoint(t *testing.T) {
	e := newEnv(t, stubRunner{})
	lead := e.store.AddLead(domain.Lead{OwnerID: e.owner})

	w, body := e.do(t, http.MethodPost, "/api/v1/leads/"+lead.ID.String()+"/lifecycle", gin.H{"event": "investigated"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(domain.StatusInvestigated), body["status"])

	w, body = e.do(t, http.MethodPost, "/api/v1/leads/"+lead.ID.String()+"/lifecycle", gin.H{"event": "vanished"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, body["success"])
}

func TestGetLeadIsScopedToOwner(t *testing.T) {
	e := newEnv(t, stubRunner{})
	other := e.store.AddLead(domain.Lead{OwnerID: uuid.New()})

	w, _ := e.do(t, http.MethodGet, "/api/v1/leads/"+other.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = e.do(t, http.MethodGet, "/api/v1/leads/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBatchDeleteAndDuplicates(t *testing.T) {
	e := newEnv(t, stubRunner{})
	a := e.store.AddLead(domain.Lead{OwnerID: e.owner, Website: "foo.com", CreatedAt: time.Now().Add(-time.Hour)})
	e.store.AddLead(domain.Lead{OwnerID: e.owner, Website: "https://foo.com/"})

	w, body := e.do(t, http.MethodPost, "/api/v1/leads/remove-duplicates", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["duplicates_found"])
	assert.Equal(t, float64(1), body["duplicates_removed"])
	_, ok := e.store.Lead(a.ID)
	assert.False(t, ok)

	w, body = e.do(t, http.MethodPost, "/api/v1/leads/batch-delete", gin.H{"lead_ids": []uuid.UUID{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, body["success"])

	list, _ := e.do(t, http.MethodGet, "/api/v1/leads", nil)
	var resp struct {
		Items []struct {
			ID uuid.UUID `json:"id"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)

	w, body = e.do(t, http.MethodPost, "/api/v1/leads/batch-delete", gin.H{"lead_ids": []uuid.UUID{resp.Items[0].ID}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["deleted_count"])
}
