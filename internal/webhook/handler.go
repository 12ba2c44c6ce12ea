package webhook

import (
	"context"
	"net/http"

	"crm_pipeline_backend/internal/pipeline/service"
	"crm_pipeline_backend/platform/httpkit"
	"crm_pipeline_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const msgInvalidRequest = "invalid request"

// IntakeLeadRequest is the payload for external lead capture.
type IntakeLeadRequest struct {
	FirstName       string     `json:"firstName" validate:"required,min=1,max=100"`
	LastName        string     `json:"lastName" validate:"required,min=1,max=100"`
	Phone           string     `json:"phone" validate:"required,min=3,max=32"`
	Email           *string    `json:"email,omitempty" validate:"omitempty,email"`
	Source          *string    `json:"source,omitempty" validate:"omitempty,max=100"`
	AssignedAgentID *uuid.UUID `json:"assignedAgentId,omitempty"`
}

// ExternalEventRequest is the payload for payment/booking trigger webhooks.
type ExternalEventRequest struct {
	LeadID uuid.UUID `json:"leadId" validate:"required"`
}

type Handler struct {
	svc *Service
	val *validator.Validator
}

func NewHandler(svc *Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// HandleLeadIntake handles POST /webhook/leads
func (h *Handler) HandleLeadIntake(c *gin.Context) {
	var req IntakeLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	lead, err := h.svc.IntakeLead(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, gin.H{"leadId": lead.ID})
}

// HandlePayment handles POST /webhook/payment
func (h *Handler) HandlePayment(c *gin.Context) {
	h.handleTrigger(c, h.svc.HandlePayment)
}

// HandleBooking handles POST /webhook/booking
func (h *Handler) HandleBooking(c *gin.Context) {
	h.handleTrigger(c, h.svc.HandleBooking)
}

// handleTrigger runs a webhook-driven transition. Missing leads return 200
// with a lead_not_found outcome so upstream providers do not retry forever.
func (h *Handler) handleTrigger(c *gin.Context, advance func(ctx context.Context, leadID uuid.UUID) (service.TransitionResult, error)) {
	var req ExternalEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	result, err := advance(c.Request.Context(), req.LeadID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{
		"outcome": string(result.Outcome),
		"from":    string(result.From),
		"to":      string(result.To),
	})
}
