// Package transport defines request and response DTOs for the pipeline API.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// AdvanceLeadRequest is the request body for a rule-driven stage advance.
type AdvanceLeadRequest struct {
	Stage   string `json:"stage" validate:"required,min=1,max=64"`
	Trigger string `json:"trigger,omitempty" validate:"max=64"`
}

// SetStageRequest is the request body for a manual stage override.
type SetStageRequest struct {
	Stage string `json:"stage" validate:"required,min=1,max=64"`
}

// TransitionResponse reports the outcome of an advance attempt.
type TransitionResponse struct {
	Outcome string `json:"outcome"`
	From    string `json:"from,omitempty"`
	To      string `json:"to"`
}

// LeadResponse is the pipeline view of a lead.
type LeadResponse struct {
	ID              uuid.UUID  `json:"id"`
	FirstName       string     `json:"firstName"`
	LastName        string     `json:"lastName"`
	Phone           string     `json:"phone"`
	Email           *string    `json:"email,omitempty"`
	Source          *string    `json:"source,omitempty"`
	AssignedAgentID *uuid.UUID `json:"assignedAgentId,omitempty"`
	Stage           string     `json:"stage"`
	StageChangedAt  *time.Time `json:"stageChangedAt,omitempty"`
	LastContactedAt *time.Time `json:"lastContactedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// ActivityResponse is one entry in a lead's activity log.
type ActivityResponse struct {
	ID        uuid.UUID              `json:"id"`
	Actor     string                 `json:"actor"`
	Action    string                 `json:"action"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

// ReminderResponse is one follow-up reminder for a lead.
type ReminderResponse struct {
	ID         uuid.UUID  `json:"id"`
	LeadID     uuid.UUID  `json:"leadId"`
	AssigneeID *uuid.UUID `json:"assigneeId,omitempty"`
	DueAt      time.Time  `json:"dueAt"`
	Reason     string     `json:"reason"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`
}
