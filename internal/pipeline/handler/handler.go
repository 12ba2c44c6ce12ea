package handler

import (
	"net/http"
	"strconv"

	"crm_pipeline_backend/internal/pipeline/domain"
	"crm_pipeline_backend/internal/pipeline/reminders"
	"crm_pipeline_backend/internal/pipeline/repository"
	"crm_pipeline_backend/internal/pipeline/service"
	"crm_pipeline_backend/internal/pipeline/transport"
	"crm_pipeline_backend/platform/httpkit"
	"crm_pipeline_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for the pipeline API.
type Handler struct {
	svc       *service.Service
	reminders *reminders.Service
	val       *validator.Validator
}

func New(svc *service.Service, remindersSvc *reminders.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, reminders: remindersSvc, val: val}
}

// RegisterRoutes registers the pipeline routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stages", h.ListStages)
	rg.GET("/leads/:id", h.GetLead)
	rg.POST("/leads/:id/advance", h.Advance)
	rg.PUT("/leads/:id/stage", h.SetStage)
	rg.GET("/leads/:id/activity", h.ListActivity)
	rg.GET("/leads/:id/reminders", h.ListReminders)
	rg.POST("/leads/:id/reminders/:reminderId/dismiss", h.DismissReminder)
}

// ListStages handles GET /pipeline/stages
func (h *Handler) ListStages(c *gin.Context) {
	stages := h.svc.Stages()
	out := make([]string, 0, len(stages))
	for _, stage := range stages {
		out = append(out, string(stage))
	}
	httpkit.OK(c, gin.H{"stages": out})
}

// GetLead handles GET /pipeline/leads/:id
func (h *Handler) GetLead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	lead, stage, err := h.svc.GetLead(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toLeadResponse(lead, stage))
}

// Advance handles POST /pipeline/leads/:id/advance
func (h *Handler) Advance(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.AdvanceLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	trigger := req.Trigger
	if trigger == "" {
		trigger = "api"
	}

	result, err := h.svc.Advance(c.Request.Context(), id, domain.Stage(req.Stage), trigger)
	if httpkit.HandleError(c, err) {
		return
	}

	if result.Outcome == service.OutcomeLeadNotFound {
		httpkit.Error(c, http.StatusNotFound, "lead not found", nil)
		return
	}

	httpkit.OK(c, transport.TransitionResponse{
		Outcome: string(result.Outcome),
		From:    string(result.From),
		To:      string(result.To),
	})
}

// SetStage handles PUT /pipeline/leads/:id/stage
func (h *Handler) SetStage(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.SetStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	if err := h.svc.SetStage(c.Request.Context(), id, domain.Stage(req.Stage), identity.UserID().String()); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "ok"})
}

// ListActivity handles GET /pipeline/leads/:id/activity
func (h *Handler) ListActivity(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 200 {
		limit = 50
	}

	items, err := h.svc.ListActivity(c.Request.Context(), id, limit)
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]transport.ActivityResponse, 0, len(items))
	for _, item := range items {
		out = append(out, transport.ActivityResponse{
			ID:        item.ID,
			Actor:     item.Actor,
			Action:    item.Action,
			Meta:      item.Meta,
			CreatedAt: item.CreatedAt,
		})
	}

	httpkit.OK(c, gin.H{"items": out})
}

// ListReminders handles GET /pipeline/leads/:id/reminders
func (h *Handler) ListReminders(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	items, err := h.reminders.ListByLead(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]transport.ReminderResponse, 0, len(items))
	for _, item := range items {
		out = append(out, transport.ReminderResponse{
			ID:         item.ID,
			LeadID:     item.LeadID,
			AssigneeID: item.AssigneeID,
			DueAt:      item.DueAt,
			Reason:     item.Reason,
			Status:     item.Status,
			CreatedAt:  item.CreatedAt,
		})
	}

	httpkit.OK(c, gin.H{"items": out})
}

// DismissReminder handles POST /pipeline/leads/:id/reminders/:reminderId/dismiss
func (h *Handler) DismissReminder(c *gin.Context) {
	if _, err := uuid.Parse(c.Param("id")); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	reminderID, err := uuid.Parse(c.Param("reminderId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	if err := h.reminders.Dismiss(c.Request.Context(), reminderID); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "ok"})
}

func toLeadResponse(lead repository.Lead, stage domain.Stage) transport.LeadResponse {
	return transport.LeadResponse{
		ID:              lead.ID,
		FirstName:       lead.FirstName,
		LastName:        lead.LastName,
		Phone:           lead.Phone,
		Email:           lead.Email,
		Source:          lead.Source,
		AssignedAgentID: lead.AssignedAgentID,
		Stage:           string(stage),
		StageChangedAt:  lead.StageChangedAt,
		LastContactedAt: lead.LastContactedAt,
		CreatedAt:       lead.CreatedAt,
	}
}
