package handler

import (
	"net/http"

	"thor_backend/internal/leads/domain"
	"thor_backend/internal/leads/service"
	"thor_backend/internal/leads/transport"
	"thor_backend/platform/apperr"
	"thor_backend/platform/httpkit"
	"thor_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler serves the operator-facing lead endpoints. Every call is scoped to
// the authenticated owner.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidLeadID    = "invalid lead id"
)

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("/scrape", h.RequestScrape)
	rg.POST("/batch-delete", h.BatchDelete)
	rg.POST("/remove-duplicates", h.RemoveDuplicates)
	rg.GET("/:id", h.GetByID)
	rg.PATCH("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
	rg.PATCH("/:id/status", h.UpdateStatus)
	rg.PATCH("/:id/detail", h.UpdateDetail)
	rg.POST("/:id/lifecycle", h.ApplyLifecycleEvent)
	rg.POST("/:id/investigate", h.Investigate)
	rg.POST("/:id/email", h.RequestEmail)
}

func (h *Handler) List(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	result, err := h.svc.ListLeads(c.Request.Context(), id.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) GetByID(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}

	lead, err := h.svc.GetLead(c.Request.Context(), id.UserID(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, lead)
}

// RequestScrape starts a scrape run. The response only means the runner took
// the job; leads arrive through the scrape callback.
func (h *Handler) RequestScrape(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	var req transport.ScrapeRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	res, err := h.svc.RequestScrape(c.Request.Context(), id.UserID(), req)
	if err != nil {
		httpkit.ActionFailed(c, err)
		return
	}
	httpkit.Action(c, withWarnings(gin.H{"run_id": res.RunID}, res.Warnings))
}

func (h *Handler) RequestEmail(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}

	res, err := h.svc.RequestEmail(c.Request.Context(), id.UserID(), leadID)
	if err != nil {
		httpkit.ActionFailed(c, err)
		return
	}
	httpkit.Action(c, withWarnings(gin.H{"message_id": res.MessageID, "run_id": res.RunID}, res.Warnings))
}

func (h *Handler) Investigate(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}

	res, err := h.svc.Investigate(c.Request.Context(), id.UserID(), leadID)
	if err != nil {
		httpkit.ActionFailed(c, err)
		return
	}
	httpkit.Action(c, withWarnings(gin.H{"informe": res.Informe}, res.Warnings))
}

func (h *Handler) ApplyLifecycleEvent(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}

	var req transport.LifecycleEventRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	status, err := h.svc.ApplyLifecycleEvent(c.Request.Context(), id.UserID(), leadID, req.Event)
	if err != nil {
		httpkit.ActionFailed(c, err)
		return
	}
	httpkit.Action(c, gin.H{"status": status})
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}

	var req transport.UpdateStatusRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	status, err := h.svc.SetStatusDirect(c.Request.Context(), id.UserID(), leadID, req.Status)
	if err != nil {
		httpkit.ActionFailed(c, err)
		return
	}
	httpkit.Action(c, gin.H{"status": status})
}

func (h *Handler) Update(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}

	var req transport.UpdateLeadRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	lead, err := h.svc.UpdateLead(c.Request.Context(), id.UserID(), leadID, req)
	if err != nil {
		httpkit.ActionFailed(c, err)
		return
	}
	httpkit.Action(c, gin.H{"lead": lead})
}

func (h *Handler) UpdateDetail(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}

	var req transport.UpdateLeadDetailRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	detail, err := h.svc.UpdateLeadDetail(c.Request.Context(), id.UserID(), leadID, req)
	if err != nil {
		httpkit.ActionFailed(c, err)
		return
	}
	httpkit.Action(c, gin.H{"detail": detail})
}

func (h *Handler) Delete(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}

	if err := h.svc.DeleteLead(c.Request.Context(), id.UserID(), leadID); err != nil {
		httpkit.ActionFailed(c, err)
		return
	}
	httpkit.Action(c, nil)
}

func (h *Handler) BatchDelete(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	var req transport.BatchDeleteRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	deleted, err := h.svc.BatchDeleteLeads(c.Request.Context(), id.UserID(), req.LeadIDs)
	if err != nil {
		httpkit.ActionFailed(c, err)
		return
	}
	httpkit.Action(c, gin.H{"deleted_count": deleted})
}

func (h *Handler) RemoveDuplicates(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	res, err := h.svc.RemoveDuplicates(c.Request.Context(), id.UserID())
	if err != nil {
		httpkit.ActionFailed(c, err)
		return
	}
	httpkit.Action(c, withWarnings(gin.H{
		"duplicates_found":   res.DuplicatesFound,
		"duplicates_removed": res.DuplicatesRemoved,
	}, res.Warnings))
}

func (h *Handler) bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.ActionFailed(c, apperr.BadRequest(msgInvalidRequest).WithDetails(err.Error()))
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.ActionFailed(c, apperr.Validation(msgValidationFailed).WithDetails(validator.FieldErrors(err)))
		return false
	}
	return true
}

// withWarnings attaches the secondary writes that failed after the primary one
// succeeded.
func withWarnings(fields gin.H, warnings []domain.Warning) gin.H {
	if len(warnings) > 0 {
		fields["warnings"] = warnings
	}
	return fields
}

func parseLeadID(c *gin.Context) (uuid.UUID, bool) {
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidLeadID, nil)
		return uuid.Nil, false
	}
	return leadID, true
}
