package callbacks

import (
	"net/http"

	"thor_backend/internal/leads/domain"
	"thor_backend/platform/httpkit"
	"thor_backend/platform/logger"
	"thor_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	errInvalidPayload = "invalid payload"
	errApplyFailed    = "failed to apply callback"
)

// Handler exposes the runner callback endpoints. Both answer {success:true}
// for any well-formed body, whether or not it matched a stored record.
type Handler struct {
	reconciler *Reconciler
	val        *validator.Validator
	recorder   Recorder
	log        *logger.Logger
}

func NewHandler(reconciler *Reconciler, val *validator.Validator, recorder Recorder, log *logger.Logger) *Handler {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Handler{reconciler: reconciler, val: val, recorder: recorder, log: log}
}

// HandleScrape applies a scrape run result.
// POST /api/v1/callbacks/scrape
func (h *Handler) HandleScrape(c *gin.Context) {
	var req ScrapeResult
	if !h.bindAndValidate(c, domain.JobScrape, &req) {
		return
	}
	if _, err := h.reconciler.ApplyScrape(c.Request.Context(), req); err != nil {
		_ = c.Error(err)
		httpkit.Error(c, http.StatusInternalServerError, errApplyFailed, nil)
		return
	}
	httpkit.Action(c, nil)
}

// HandleMessage applies a message delivery update.
// POST /api/v1/callbacks/message
func (h *Handler) HandleMessage(c *gin.Context) {
	var req MessageResult
	if !h.bindAndValidate(c, domain.JobMessage, &req) {
		return
	}
	if _, err := h.reconciler.ApplyMessage(c.Request.Context(), req); err != nil {
		_ = c.Error(err)
		httpkit.Error(c, http.StatusInternalServerError, errApplyFailed, nil)
		return
	}
	httpkit.Action(c, nil)
}

func (h *Handler) bindAndValidate(c *gin.Context, kind domain.JobKind, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.reject(c, kind, err.Error())
		return false
	}
	if err := h.val.Struct(req); err != nil {
		h.reject(c, kind, validator.FieldErrors(err))
		return false
	}
	return true
}

func (h *Handler) reject(c *gin.Context, kind domain.JobKind, details interface{}) {
	h.recorder.Callback(kind, ResultInvalid)
	h.log.Warn("invalid callback payload", "kind", string(kind), "details", details)
	httpkit.Error(c, http.StatusBadRequest, errInvalidPayload, details)
}
