package webhook

import (
	"context"
	"strings"

	"crm_pipeline_backend/internal/events"
	"crm_pipeline_backend/internal/pipeline/domain"
	"crm_pipeline_backend/internal/pipeline/repository"
	"crm_pipeline_backend/internal/pipeline/service"
	"crm_pipeline_backend/platform/apperr"
	"crm_pipeline_backend/platform/logger"
	"crm_pipeline_backend/platform/phone"

	"github.com/google/uuid"
)

// Triggers recorded on engine transitions originating from webhooks.
const (
	TriggerLeadIntake = "lead_intake"
	TriggerPayment    = "payment_webhook"
	TriggerBooking    = "booking_webhook"
)

// LeadCreator is the store surface lead intake writes through.
type LeadCreator interface {
	Create(ctx context.Context, params repository.CreateLeadParams) (repository.Lead, error)
	AddActivity(ctx context.Context, leadID uuid.UUID, actor string, action string, meta map[string]interface{}) error
}

// LeadAdvancer drives stage transitions through the engine.
type LeadAdvancer interface {
	Advance(ctx context.Context, leadID uuid.UUID, target domain.Stage, trigger string) (service.TransitionResult, error)
}

type Service struct {
	leads  LeadCreator
	engine LeadAdvancer
	bus    events.Bus
	log    *logger.Logger
}

func NewService(leads LeadCreator, engine LeadAdvancer, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		leads:  leads,
		engine: engine,
		bus:    bus,
		log:    log,
	}
}

// IntakeLead creates a lead from an external form submission and places it at
// the start of the pipeline.
func (s *Service) IntakeLead(ctx context.Context, req IntakeLeadRequest) (repository.Lead, error) {
	const op = "webhook.IntakeLead"

	normalizedPhone := phone.NormalizeE164(req.Phone)
	if normalizedPhone == "" {
		return repository.Lead{}, apperr.Validation("phone is required").WithOp(op)
	}

	params := repository.CreateLeadParams{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Phone:     normalizedPhone,
	}
	if req.Email != nil && strings.TrimSpace(*req.Email) != "" {
		trimmed := strings.TrimSpace(*req.Email)
		params.Email = &trimmed
	}
	if req.Source != nil && strings.TrimSpace(*req.Source) != "" {
		trimmed := strings.TrimSpace(*req.Source)
		params.Source = &trimmed
	}
	if req.AssignedAgentID != nil {
		params.AssignedAgentID = req.AssignedAgentID
	}

	lead, err := s.leads.Create(ctx, params)
	if err != nil {
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "failed to create lead", err).WithOp(op)
	}

	if err := s.leads.AddActivity(ctx, lead.ID, repository.ActorSystem, repository.ActionLeadCreated, map[string]interface{}{
		"source": derefOr(params.Source, "webhook"),
	}); err != nil {
		s.log.SideEffectFailure("activity_log", lead.ID.String(), err)
	}

	s.bus.Publish(ctx, events.LeadCreated{
		BaseEvent:  events.NewBaseEvent(),
		LeadID:     lead.ID,
		Source:     derefOr(params.Source, "webhook"),
		AssigneeID: params.AssignedAgentID,
	})

	if _, err := s.engine.Advance(ctx, lead.ID, domain.StageNewLead, TriggerLeadIntake); err != nil {
		s.log.Error("failed to place new lead in pipeline", "leadId", lead.ID.String(), "error", err)
	}

	return lead, nil
}

// HandlePayment maps an external payment confirmation to a contract_signed
// transition. Unknown leads are a no-op: the payment provider retries on
// non-2xx, and there is nothing to retry into existence.
func (s *Service) HandlePayment(ctx context.Context, leadID uuid.UUID) (service.TransitionResult, error) {
	return s.engine.Advance(ctx, leadID, domain.StageContractSigned, TriggerPayment)
}

// HandleBooking maps an external booking confirmation to a
// discovery_scheduled transition.
func (s *Service) HandleBooking(ctx context.Context, leadID uuid.UUID) (service.TransitionResult, error) {
	return s.engine.Advance(ctx, leadID, domain.StageDiscoveryScheduled, TriggerBooking)
}

func derefOr(value *string, fallback string) string {
	if value == nil {
		return fallback
	}
	return *value
}
