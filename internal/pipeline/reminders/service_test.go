package reminders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"crm_pipeline_backend/internal/events"
	"crm_pipeline_backend/internal/pipeline/domain"
	"crm_pipeline_backend/internal/pipeline/repository"
	"crm_pipeline_backend/platform/apperr"
	"crm_pipeline_backend/platform/logger"
)

type fakeStore struct {
	supersedeParams []repository.SupersedeReminderParams
	supersedeErr    error
	dismissErr      error
	dismissed       []uuid.UUID
	nextID          uuid.UUID
}

func (f *fakeStore) Supersede(ctx context.Context, params repository.SupersedeReminderParams) (repository.Reminder, error) {
	if f.supersedeErr != nil {
		return repository.Reminder{}, f.supersedeErr
	}
	f.supersedeParams = append(f.supersedeParams, params)
	return repository.Reminder{
		ID:         f.nextID,
		LeadID:     params.LeadID,
		AssigneeID: params.AssigneeID,
		DueAt:      params.DueAt,
		Reason:     params.Reason,
		Status:     repository.ReminderStatusPending,
	}, nil
}

func (f *fakeStore) Dismiss(ctx context.Context, id uuid.UUID) error {
	if f.dismissErr != nil {
		return f.dismissErr
	}
	f.dismissed = append(f.dismissed, id)
	return nil
}

func (f *fakeStore) GetReminder(ctx context.Context, id uuid.UUID) (repository.Reminder, error) {
	return repository.Reminder{}, repository.ErrReminderNotFound
}

func (f *fakeStore) ListByLead(ctx context.Context, leadID uuid.UUID) ([]repository.Reminder, error) {
	return nil, nil
}

type fakeDueScheduler struct {
	calls []time.Time
	err   error
}

func (f *fakeDueScheduler) ScheduleReminderDue(ctx context.Context, reminderID, leadID uuid.UUID, runAt time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, runAt)
	return nil
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

func newReminderFixture(t *testing.T) (*Service, *fakeStore, *fakeDueScheduler, *recordingBus) {
	t.Helper()
	store := &fakeStore{nextID: uuid.New()}
	due := &fakeDueScheduler{}
	bus := &recordingBus{}
	svc := NewService(store, due, domain.DefaultRuleTable(), bus, logger.New("test"))
	return svc, store, due, bus
}

func TestScheduleIfApplicable_StageWithoutRuleIsNoOp(t *testing.T) {
	svc, store, due, bus := newReminderFixture(t)

	err := svc.ScheduleIfApplicable(context.Background(), uuid.New(), domain.StageNewLead, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// No rule means no supersession: an existing pending reminder survives.
	if len(store.supersedeParams) != 0 {
		t.Fatal("expected no reminder writes for a stage without a rule")
	}
	if len(due.calls) != 0 || len(bus.events) != 0 {
		t.Fatal("expected no scheduling or events for a stage without a rule")
	}
}

func TestScheduleIfApplicable_SchedulesPerRule(t *testing.T) {
	svc, store, due, bus := newReminderFixture(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	leadID := uuid.New()
	assignee := uuid.New()

	err := svc.ScheduleIfApplicable(context.Background(), leadID, domain.StageContacted, &assignee)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.supersedeParams) != 1 {
		t.Fatalf("expected 1 supersede call, got %d", len(store.supersedeParams))
	}
	params := store.supersedeParams[0]
	wantDue := now.Add(3 * 24 * time.Hour)
	if !params.DueAt.Equal(wantDue) {
		t.Fatalf("expected due at %s, got %s", wantDue, params.DueAt)
	}
	if params.Reason == "" {
		t.Fatal("expected a reason from the rule table")
	}
	if params.AssigneeID == nil || *params.AssigneeID != assignee {
		t.Fatal("expected assignee carried onto the reminder")
	}

	if len(due.calls) != 1 || !due.calls[0].Equal(wantDue) {
		t.Fatalf("expected due task scheduled at %s, got %v", wantDue, due.calls)
	}

	if len(bus.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(bus.events))
	}
	scheduled, ok := bus.events[0].(events.FollowUpReminderScheduled)
	if !ok {
		t.Fatalf("expected FollowUpReminderScheduled, got %T", bus.events[0])
	}
	if scheduled.LeadID != leadID {
		t.Fatal("event must carry the lead id")
	}
}

func TestScheduleIfApplicable_EnqueueFailureIsTolerated(t *testing.T) {
	svc, store, due, bus := newReminderFixture(t)
	due.err = errors.New("redis down")

	err := svc.ScheduleIfApplicable(context.Background(), uuid.New(), domain.StageContacted, nil)
	if err != nil {
		t.Fatalf("lost enqueue must not fail scheduling: %v", err)
	}

	// The reminder row exists; the sweeper re-enqueues it once overdue.
	if len(store.supersedeParams) != 1 {
		t.Fatal("expected the reminder to be written")
	}
	if len(bus.events) != 1 {
		t.Fatal("expected the scheduled event to still publish")
	}
}

func TestScheduleIfApplicable_StoreErrorPropagates(t *testing.T) {
	svc, store, _, bus := newReminderFixture(t)
	store.supersedeErr = errors.New("db down")

	err := svc.ScheduleIfApplicable(context.Background(), uuid.New(), domain.StageContacted, nil)
	if err == nil {
		t.Fatal("expected store error to propagate")
	}
	if len(bus.events) != 0 {
		t.Fatal("failed scheduling must not publish events")
	}
}

func TestDismiss_MapsMissingReminderToNotFound(t *testing.T) {
	svc, store, _, _ := newReminderFixture(t)
	store.dismissErr = repository.ErrReminderNotFound

	err := svc.Dismiss(context.Background(), uuid.New())
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestDismiss_Success(t *testing.T) {
	svc, store, _, _ := newReminderFixture(t)
	id := uuid.New()

	if err := svc.Dismiss(context.Background(), id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.dismissed) != 1 || store.dismissed[0] != id {
		t.Fatalf("expected dismiss call for %s, got %v", id, store.dismissed)
	}
}
