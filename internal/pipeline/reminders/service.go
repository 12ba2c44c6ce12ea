// Package reminders implements follow-up reminder scheduling driven by the
// per-stage rule table.
package reminders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"crm_pipeline_backend/internal/events"
	"crm_pipeline_backend/internal/pipeline/domain"
	"crm_pipeline_backend/internal/pipeline/repository"
	"crm_pipeline_backend/platform/apperr"
	"crm_pipeline_backend/platform/logger"
)

// Store is the reminder persistence surface the scheduler needs.
type Store interface {
	Supersede(ctx context.Context, params repository.SupersedeReminderParams) (repository.Reminder, error)
	Dismiss(ctx context.Context, id uuid.UUID) error
	GetReminder(ctx context.Context, id uuid.UUID) (repository.Reminder, error)
	ListByLead(ctx context.Context, leadID uuid.UUID) ([]repository.Reminder, error)
}

// DueTaskScheduler enqueues the delayed task that fires when a reminder
// comes due. Implemented by the asynq client; failures here are tolerable
// because the sweeper re-detects overdue pending reminders from the table.
type DueTaskScheduler interface {
	ScheduleReminderDue(ctx context.Context, reminderID, leadID uuid.UUID, runAt time.Time) error
}

type Service struct {
	store Store
	due   DueTaskScheduler
	rules domain.RuleTable
	bus   events.Bus
	log   *logger.Logger
	now   func() time.Time
}

func NewService(store Store, due DueTaskScheduler, rules domain.RuleTable, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		store: store,
		due:   due,
		rules: rules,
		bus:   bus,
		log:   log,
		now:   time.Now,
	}
}

// ScheduleIfApplicable creates the follow-up reminder for a lead entering
// stage, replacing any pending reminder the lead already had. Stages without
// a rule schedule nothing and leave existing reminders untouched.
func (s *Service) ScheduleIfApplicable(ctx context.Context, leadID uuid.UUID, stage domain.Stage, assigneeID *uuid.UUID) error {
	rule, ok := s.rules[stage]
	if !ok {
		return nil
	}

	dueAt := s.now().Add(rule.Delay())

	reminder, err := s.store.Supersede(ctx, repository.SupersedeReminderParams{
		LeadID:     leadID,
		AssigneeID: assigneeID,
		DueAt:      dueAt,
		Reason:     rule.Reason,
	})
	if err != nil {
		return err
	}

	if err := s.due.ScheduleReminderDue(ctx, reminder.ID, leadID, dueAt); err != nil {
		// The sweeper will pick the reminder up from the table once it is
		// overdue, so a lost enqueue delays delivery rather than losing it.
		s.log.Error("failed to enqueue reminder due task",
			"reminderId", reminder.ID.String(), "leadId", leadID.String(), "error", err)
	}

	s.bus.Publish(ctx, events.FollowUpReminderScheduled{
		BaseEvent:  events.NewBaseEvent(),
		ReminderID: reminder.ID,
		LeadID:     leadID,
		AssigneeID: assigneeID,
		DueAt:      dueAt,
		Reason:     rule.Reason,
	})

	return nil
}

// ListByLead returns all reminders for a lead, newest first.
func (s *Service) ListByLead(ctx context.Context, leadID uuid.UUID) ([]repository.Reminder, error) {
	const op = "reminders.ListByLead"

	items, err := s.store.ListByLead(ctx, leadID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list reminders", err).WithOp(op)
	}
	return items, nil
}

// Dismiss cancels a pending reminder by hand.
func (s *Service) Dismiss(ctx context.Context, reminderID uuid.UUID) error {
	const op = "reminders.Dismiss"

	if err := s.store.Dismiss(ctx, reminderID); err != nil {
		if errors.Is(err, repository.ErrReminderNotFound) {
			return apperr.NotFound("no pending reminder with that id").WithOp(op)
		}
		return apperr.Wrap(apperr.KindInternal, "failed to dismiss reminder", err).WithOp(op)
	}
	return nil
}
