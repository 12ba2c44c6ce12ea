// Package service implements the pipeline transition engine: the single
// code path through which leads move between stages.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"crm_pipeline_backend/internal/events"
	"crm_pipeline_backend/internal/pipeline/domain"
	"crm_pipeline_backend/internal/pipeline/repository"
	"crm_pipeline_backend/platform/apperr"
	"crm_pipeline_backend/platform/logger"
	"crm_pipeline_backend/platform/tasks"
)

// Outcome classifies what a transition attempt did.
type Outcome string

const (
	// OutcomeAdvanced means the stage write was applied by this call.
	OutcomeAdvanced Outcome = "advanced"
	// OutcomeNotForward means the target stage was not strictly ahead of
	// the lead's current stage, so nothing changed. Repeated and backward
	// triggers land here, which is what makes the engine idempotent.
	OutcomeNotForward Outcome = "not_forward"
	// OutcomeLeadNotFound means the lead does not exist. Trigger sources
	// like webhooks treat this as a no-op rather than an error.
	OutcomeLeadNotFound Outcome = "lead_not_found"
)

// TransitionResult reports the outcome of an Advance call.
type TransitionResult struct {
	Outcome Outcome
	From    domain.Stage
	To      domain.Stage
}

// Advanced reports whether this call applied the stage change.
func (r TransitionResult) Advanced() bool { return r.Outcome == OutcomeAdvanced }

// LeadStore is the persistence surface the engine needs.
type LeadStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	TryAdvanceStage(ctx context.Context, id uuid.UUID, stage string, targetIndex int) (bool, error)
	SetStage(ctx context.Context, id uuid.UUID, stage string, stageIndex int) error
	StampLastContacted(ctx context.Context, id uuid.UUID, at time.Time) error
	AddActivity(ctx context.Context, leadID uuid.UUID, actor string, action string, meta map[string]interface{}) error
	ListActivity(ctx context.Context, leadID uuid.UUID, limit int) ([]repository.Activity, error)
}

// ReminderScheduler schedules the follow-up reminder for a stage entry.
type ReminderScheduler interface {
	ScheduleIfApplicable(ctx context.Context, leadID uuid.UUID, stage domain.Stage, assigneeID *uuid.UUID) error
}

type Service struct {
	leads     LeadStore
	reminders ReminderScheduler
	order     *domain.Order
	hooks     domain.HookTable
	bus       events.Bus
	runner    *tasks.Runner
	log       *logger.Logger
	now       func() time.Time
}

func NewService(
	leads LeadStore,
	reminders ReminderScheduler,
	order *domain.Order,
	hooks domain.HookTable,
	bus events.Bus,
	runner *tasks.Runner,
	log *logger.Logger,
) *Service {
	return &Service{
		leads:     leads,
		reminders: reminders,
		order:     order,
		hooks:     hooks,
		bus:       bus,
		runner:    runner,
		log:       log,
		now:       time.Now,
	}
}

// Advance attempts to move the lead forward to target. The stage write is
// guarded both here and in the store, so concurrent calls settle on the
// furthest stage and every side effect fires exactly once per applied
// transition. Side-effect failures are logged but never unwind the write.
func (s *Service) Advance(ctx context.Context, leadID uuid.UUID, target domain.Stage, trigger string) (TransitionResult, error) {
	const op = "pipeline.Advance"

	if !s.order.IsKnown(target) {
		return TransitionResult{}, apperr.Validation(fmt.Sprintf("unknown pipeline stage %q", target)).WithOp(op)
	}

	lead, err := s.leads.GetByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TransitionResult{Outcome: OutcomeLeadNotFound, To: target}, nil
		}
		return TransitionResult{}, apperr.Wrap(apperr.KindInternal, "failed to load lead", err).WithOp(op)
	}

	current := currentStage(lead)
	currentIndex := s.order.IndexOf(current)
	targetIndex := s.order.IndexOf(target)

	if targetIndex <= currentIndex {
		return TransitionResult{Outcome: OutcomeNotForward, From: current, To: target}, nil
	}

	applied, err := s.leads.TryAdvanceStage(ctx, leadID, string(target), targetIndex)
	if err != nil {
		return TransitionResult{}, apperr.Wrap(apperr.KindInternal, "failed to persist stage change", err).WithOp(op)
	}
	if !applied {
		// A concurrent transition moved the lead to or past the target
		// between our read and the guarded write.
		return TransitionResult{Outcome: OutcomeNotForward, From: current, To: target}, nil
	}

	s.log.StageTransition(leadID.String(), string(current), string(target), trigger)
	s.runSideEffects(ctx, lead, current, target, trigger)

	return TransitionResult{Outcome: OutcomeAdvanced, From: current, To: target}, nil
}

// SetStage is the manual correction path: it overwrites the stage without
// the forward-only guard and records who did it. No hooks, reminders, or
// notifications fire; corrections are bookkeeping, not progress.
func (s *Service) SetStage(ctx context.Context, leadID uuid.UUID, target domain.Stage, actor string) error {
	const op = "pipeline.SetStage"

	if !s.order.IsKnown(target) {
		return apperr.Validation(fmt.Sprintf("unknown pipeline stage %q", target)).WithOp(op)
	}

	lead, err := s.leads.GetByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("lead not found").WithOp(op)
		}
		return apperr.Wrap(apperr.KindInternal, "failed to load lead", err).WithOp(op)
	}

	if err := s.leads.SetStage(ctx, leadID, string(target), s.order.IndexOf(target)); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to set stage", err).WithOp(op)
	}

	if err := s.leads.AddActivity(ctx, leadID, actor, repository.ActionStageOverridden, map[string]interface{}{
		"from": string(currentStage(lead)),
		"to":   string(target),
	}); err != nil {
		s.log.SideEffectFailure("activity_log", leadID.String(), err)
	}

	return nil
}

// ListActivity returns the lead's activity log, newest first.
func (s *Service) ListActivity(ctx context.Context, leadID uuid.UUID, limit int) ([]repository.Activity, error) {
	const op = "pipeline.ListActivity"

	if _, err := s.leads.GetByID(ctx, leadID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("lead not found").WithOp(op)
		}
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load lead", err).WithOp(op)
	}

	items, err := s.leads.ListActivity(ctx, leadID, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list activity", err).WithOp(op)
	}
	return items, nil
}

// GetLead returns the lead with its stage mapped for display.
func (s *Service) GetLead(ctx context.Context, leadID uuid.UUID) (repository.Lead, domain.Stage, error) {
	const op = "pipeline.GetLead"

	lead, err := s.leads.GetByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Lead{}, "", apperr.NotFound("lead not found").WithOp(op)
		}
		return repository.Lead{}, "", apperr.Wrap(apperr.KindInternal, "failed to load lead", err).WithOp(op)
	}

	return lead, s.order.Display(currentStage(lead)), nil
}

// Stages returns the pipeline stage order for clients that render it.
func (s *Service) Stages() []domain.Stage {
	return s.order.Stages()
}

func (s *Service) runSideEffects(ctx context.Context, lead repository.Lead, from, to domain.Stage, trigger string) {
	now := s.now()

	for _, hook := range s.hooks[to] {
		if err := hook.Run(ctx, s.leads, lead.ID, now); err != nil {
			s.log.SideEffectFailure(hook.Name, lead.ID.String(), err)
		}
	}

	if err := s.leads.AddActivity(ctx, lead.ID, repository.ActorSystem, repository.ActionAutoStageChanged, map[string]interface{}{
		"from":    string(from),
		"to":      string(to),
		"trigger": trigger,
	}); err != nil {
		s.log.SideEffectFailure("activity_log", lead.ID.String(), err)
	}

	s.bus.Publish(ctx, events.LeadStageAdvanced{
		BaseEvent:     events.NewBaseEvent(),
		LeadID:        lead.ID,
		FromStage:     string(from),
		ToStage:       string(to),
		Trigger:       trigger,
		AssigneeID:    lead.AssignedAgentID,
		ConsumerName:  lead.FirstName + " " + lead.LastName,
		ConsumerEmail: lead.Email,
	})

	s.runner.Go(ctx, "schedule_follow_up", func(ctx context.Context) error {
		return s.reminders.ScheduleIfApplicable(ctx, lead.ID, to, lead.AssignedAgentID)
	})
}

func currentStage(lead repository.Lead) domain.Stage {
	if lead.PipelineStage == nil {
		return domain.StageUnset
	}
	return domain.Stage(*lead.PipelineStage)
}
