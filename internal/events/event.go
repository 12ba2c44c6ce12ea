// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"crm_pipeline_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Pipeline Domain Events
// =============================================================================

// LeadCreated is published when a new lead enters the system via intake.
type LeadCreated struct {
	BaseEvent
	LeadID     uuid.UUID  `json:"leadId"`
	Source     string     `json:"source"`
	AssigneeID *uuid.UUID `json:"assigneeId,omitempty"`
}

func (e LeadCreated) EventName() string { return "pipeline.lead.created" }

// LeadStageAdvanced is published after the transition engine persists a
// forward stage change. Consumer fields are denormalized so the notification
// module does not have to reload the lead.
type LeadStageAdvanced struct {
	BaseEvent
	LeadID        uuid.UUID  `json:"leadId"`
	FromStage     string     `json:"fromStage"`
	ToStage       string     `json:"toStage"`
	Trigger       string     `json:"trigger"`
	AssigneeID    *uuid.UUID `json:"assigneeId,omitempty"`
	ConsumerName  string     `json:"consumerName"`
	ConsumerEmail *string    `json:"consumerEmail,omitempty"`
}

func (e LeadStageAdvanced) EventName() string { return "pipeline.lead.stage_advanced" }

// FollowUpReminderScheduled is published when the reminder scheduler creates
// a new pending follow-up reminder for a lead.
type FollowUpReminderScheduled struct {
	BaseEvent
	ReminderID uuid.UUID  `json:"reminderId"`
	LeadID     uuid.UUID  `json:"leadId"`
	AssigneeID *uuid.UUID `json:"assigneeId,omitempty"`
	DueAt      time.Time  `json:"dueAt"`
	Reason     string     `json:"reason"`
}

func (e FollowUpReminderScheduled) EventName() string {
	return "pipeline.reminder.scheduled"
}

// FollowUpReminderDue is published by the scheduler worker when a pending
// reminder reaches its due time. The notification module delivers it.
type FollowUpReminderDue struct {
	BaseEvent
	ReminderID uuid.UUID `json:"reminderId"`
	LeadID     uuid.UUID `json:"leadId"`
}

func (e FollowUpReminderDue) EventName() string { return "pipeline.reminder.due" }
