package webhook

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"crm_pipeline_backend/internal/events"
	"crm_pipeline_backend/internal/pipeline/domain"
	"crm_pipeline_backend/internal/pipeline/repository"
	"crm_pipeline_backend/internal/pipeline/service"
	"crm_pipeline_backend/platform/apperr"
	"crm_pipeline_backend/platform/logger"
)

type fakeLeadCreator struct {
	created    []repository.CreateLeadParams
	createErr  error
	activities []string
}

func (f *fakeLeadCreator) Create(ctx context.Context, params repository.CreateLeadParams) (repository.Lead, error) {
	if f.createErr != nil {
		return repository.Lead{}, f.createErr
	}
	f.created = append(f.created, params)
	return repository.Lead{
		ID:        uuid.New(),
		FirstName: params.FirstName,
		LastName:  params.LastName,
		Phone:     params.Phone,
		Email:     params.Email,
		Source:    params.Source,
	}, nil
}

func (f *fakeLeadCreator) AddActivity(ctx context.Context, leadID uuid.UUID, actor string, action string, meta map[string]interface{}) error {
	f.activities = append(f.activities, action)
	return nil
}

type advanceCall struct {
	leadID  uuid.UUID
	target  domain.Stage
	trigger string
}

type fakeAdvancer struct {
	calls  []advanceCall
	result service.TransitionResult
	err    error
}

func (f *fakeAdvancer) Advance(ctx context.Context, leadID uuid.UUID, target domain.Stage, trigger string) (service.TransitionResult, error) {
	f.calls = append(f.calls, advanceCall{leadID: leadID, target: target, trigger: trigger})
	return f.result, f.err
}

type recordingBus struct {
	events []events.Event
}

func (r *recordingBus) Publish(ctx context.Context, event events.Event) {
	r.events = append(r.events, event)
}

func (r *recordingBus) PublishSync(ctx context.Context, event events.Event) error {
	r.Publish(ctx, event)
	return nil
}

func (r *recordingBus) Subscribe(eventName string, handler events.Handler) {}

func newWebhookFixture(t *testing.T) (*Service, *fakeLeadCreator, *fakeAdvancer, *recordingBus) {
	t.Helper()
	leads := &fakeLeadCreator{}
	engine := &fakeAdvancer{result: service.TransitionResult{Outcome: service.OutcomeAdvanced}}
	bus := &recordingBus{}
	svc := NewService(leads, engine, bus, logger.New("test"))
	return svc, leads, engine, bus
}

func TestIntakeLead_CreatesAndEntersPipeline(t *testing.T) {
	svc, leads, engine, bus := newWebhookFixture(t)

	email := "ada@example.com"
	source := "landing_page"
	lead, err := svc.IntakeLead(context.Background(), IntakeLeadRequest{
		FirstName: "  Ada ",
		LastName:  "Lovelace",
		Phone:     "415-555-0100",
		Email:     &email,
		Source:    &source,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(leads.created) != 1 {
		t.Fatalf("expected 1 create call, got %d", len(leads.created))
	}
	params := leads.created[0]
	if params.FirstName != "Ada" {
		t.Fatalf("expected trimmed first name, got %q", params.FirstName)
	}
	if params.Phone != "+14155550100" {
		t.Fatalf("expected E.164 phone, got %q", params.Phone)
	}

	if len(leads.activities) != 1 || leads.activities[0] != repository.ActionLeadCreated {
		t.Fatalf("expected lead.created activity, got %v", leads.activities)
	}

	if len(bus.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(bus.events))
	}
	created, ok := bus.events[0].(events.LeadCreated)
	if !ok {
		t.Fatalf("expected LeadCreated, got %T", bus.events[0])
	}
	if created.LeadID != lead.ID || created.Source != "landing_page" {
		t.Fatalf("unexpected event payload: %+v", created)
	}

	if len(engine.calls) != 1 {
		t.Fatalf("expected 1 engine call, got %d", len(engine.calls))
	}
	call := engine.calls[0]
	if call.target != domain.StageNewLead || call.trigger != TriggerLeadIntake {
		t.Fatalf("unexpected engine call: %+v", call)
	}
}

func TestIntakeLead_RequiresPhone(t *testing.T) {
	svc, leads, _, _ := newWebhookFixture(t)

	_, err := svc.IntakeLead(context.Background(), IntakeLeadRequest{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Phone:     "   ",
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(leads.created) != 0 {
		t.Fatal("invalid intake must not create a lead")
	}
}

func TestIntakeLead_EngineFailureDoesNotFailIntake(t *testing.T) {
	svc, leads, engine, _ := newWebhookFixture(t)
	engine.err = errors.New("db down")

	lead, err := svc.IntakeLead(context.Background(), IntakeLeadRequest{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Phone:     "415-555-0100",
	})
	if err != nil {
		t.Fatalf("failed pipeline entry must not lose the created lead: %v", err)
	}
	if lead.ID == uuid.Nil {
		t.Fatal("expected a created lead")
	}
	if len(leads.created) != 1 {
		t.Fatal("expected the lead to be created")
	}
}

func TestIntakeLead_DefaultsSourceToWebhook(t *testing.T) {
	svc, _, _, bus := newWebhookFixture(t)

	_, err := svc.IntakeLead(context.Background(), IntakeLeadRequest{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Phone:     "415-555-0100",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	created := bus.events[0].(events.LeadCreated)
	if created.Source != "webhook" {
		t.Fatalf("expected default source webhook, got %q", created.Source)
	}
}

func TestHandlePayment_MapsToContractSigned(t *testing.T) {
	svc, _, engine, _ := newWebhookFixture(t)
	leadID := uuid.New()

	if _, err := svc.HandlePayment(context.Background(), leadID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	call := engine.calls[0]
	if call.leadID != leadID || call.target != domain.StageContractSigned || call.trigger != TriggerPayment {
		t.Fatalf("unexpected engine call: %+v", call)
	}
}

func TestHandleBooking_MapsToDiscoveryScheduled(t *testing.T) {
	svc, _, engine, _ := newWebhookFixture(t)
	leadID := uuid.New()

	if _, err := svc.HandleBooking(context.Background(), leadID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	call := engine.calls[0]
	if call.target != domain.StageDiscoveryScheduled || call.trigger != TriggerBooking {
		t.Fatalf("unexpected engine call: %+v", call)
	}
}
