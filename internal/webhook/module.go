// Package webhook provides the inbound webhook bounded context: external
// systems (forms, payment and booking providers) trigger lead intake and
// pipeline transitions through shared-secret protected endpoints.
package webhook

import (
	"crm_pipeline_backend/internal/events"
	apphttp "crm_pipeline_backend/internal/http"
	"crm_pipeline_backend/platform/config"
	"crm_pipeline_backend/platform/logger"
	"crm_pipeline_backend/platform/validator"
)

// Module is the webhook bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	cfg     config.WebhookConfig
}

// NewModule creates and initializes the webhook module with its dependencies.
func NewModule(leads LeadCreator, engine LeadAdvancer, cfg config.WebhookConfig, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	svc := NewService(leads, engine, bus, log)
	h := NewHandler(svc, val)

	return &Module{
		handler: h,
		cfg:     cfg,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts webhook routes on the provided router context. These
// bypass JWT auth; callers authenticate with the shared secret and are rate
// limited per IP.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/webhook")
	if ctx.WebhookRateLimiter != nil {
		group.Use(ctx.WebhookRateLimiter.RateLimit())
	}
	group.Use(SharedSecretMiddleware(m.cfg))

	group.POST("/leads", m.handler.HandleLeadIntake)
	group.POST("/payment", m.handler.HandlePayment)
	group.POST("/booking", m.handler.HandleBooking)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
