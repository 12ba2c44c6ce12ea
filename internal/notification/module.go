// Package notification turns pipeline domain events into agent-facing
// notifications: in-app feed entries and email. It subscribes on the event
// bus so the pipeline modules never know about delivery channels.
package notification

import (
	"context"
	"fmt"
	"strings"

	"crm_pipeline_backend/internal/email"
	"crm_pipeline_backend/internal/events"
	apphttp "crm_pipeline_backend/internal/http"
	notifhandler "crm_pipeline_backend/internal/notification/handler"
	"crm_pipeline_backend/internal/notification/inapp"
	"crm_pipeline_backend/internal/pipeline/repository"
	"crm_pipeline_backend/platform/config"
	"crm_pipeline_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LeadReader resolves lead details for reminder notifications.
type LeadReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
}

// ReminderReader resolves reminder details when a due event arrives.
type ReminderReader interface {
	GetReminder(ctx context.Context, id uuid.UUID) (repository.Reminder, error)
}

// AssigneeReader resolves agent contact details for email delivery.
type AssigneeReader interface {
	GetOrgMember(ctx context.Context, id uuid.UUID) (repository.OrgMember, error)
}

// Module handles all notification-related event subscriptions.
type Module struct {
	sender       email.Sender
	cfg          config.NotificationConfig
	log          *logger.Logger
	leads        LeadReader
	reminders    ReminderReader
	assignees    AssigneeReader
	inAppService *inapp.Service
	inAppHandler *notifhandler.HTTPHandler
}

// New creates the notification module.
func New(pool *pgxpool.Pool, sender email.Sender, cfg config.NotificationConfig, log *logger.Logger) *Module {
	inAppRepo := inapp.NewRepository(pool)
	inAppSvc := inapp.NewService(inAppRepo, log)

	return &Module{
		sender:       sender,
		cfg:          cfg,
		log:          log,
		inAppService: inAppSvc,
		inAppHandler: notifhandler.NewHTTPHandler(inAppSvc),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "notification" }

// RegisterRoutes registers the in-app notification API routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	if m.inAppHandler == nil {
		return
	}

	notifications := ctx.Protected.Group("/notifications")
	m.inAppHandler.RegisterRoutes(notifications)
}

// SetLeadReader injects the lead reader for reminder notifications.
func (m *Module) SetLeadReader(reader LeadReader) { m.leads = reader }

// SetReminderReader injects the reminder reader for due events.
func (m *Module) SetReminderReader(reader ReminderReader) { m.reminders = reader }

// SetAssigneeReader injects the agent directory reader for email delivery.
func (m *Module) SetAssigneeReader(reader AssigneeReader) { m.assignees = reader }

// RegisterHandlers subscribes to the pipeline domain events on the event bus.
func (m *Module) RegisterHandlers(bus *events.InMemoryBus) {
	bus.Subscribe(events.LeadCreated{}.EventName(), m)
	bus.Subscribe(events.LeadStageAdvanced{}.EventName(), m)
	bus.Subscribe(events.FollowUpReminderScheduled{}.EventName(), m)
	bus.Subscribe(events.FollowUpReminderDue{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.LeadCreated:
		return m.handleLeadCreated(ctx, e)
	case events.LeadStageAdvanced:
		return m.handleLeadStageAdvanced(ctx, e)
	case events.FollowUpReminderScheduled:
		return m.handleFollowUpReminderScheduled(ctx, e)
	case events.FollowUpReminderDue:
		return m.handleFollowUpReminderDue(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

func (m *Module) handleLeadCreated(ctx context.Context, e events.LeadCreated) error {
	if e.AssigneeID == nil {
		return nil
	}

	_, consumerName := m.resolveLead(ctx, e.LeadID)
	if consumerName == "" {
		consumerName = "A new lead"
	}

	leadID := e.LeadID
	if err := m.inAppService.Send(ctx, inapp.SendParams{
		UserID:       *e.AssigneeID,
		Title:        "New lead assigned",
		Content:      fmt.Sprintf("%s was assigned to you", consumerName),
		ResourceID:   &leadID,
		ResourceType: "lead",
		Category:     "info",
	}); err != nil {
		m.log.Error("failed to create lead-created notification", "leadId", e.LeadID, "error", err)
	}

	agent, ok := m.resolveAssignee(ctx, *e.AssigneeID)
	if !ok {
		return nil
	}

	if err := m.sender.SendLeadAssignedEmail(ctx, agent.Email, agent.FullName, consumerName, e.Source, m.leadURL(e.LeadID)); err != nil {
		m.log.Error("failed to send lead assigned email", "leadId", e.LeadID, "email", agent.Email, "error", err)
		return err
	}

	return nil
}

func (m *Module) handleLeadStageAdvanced(ctx context.Context, e events.LeadStageAdvanced) error {
	if e.AssigneeID == nil {
		return nil
	}

	consumerName := strings.TrimSpace(e.ConsumerName)
	if consumerName == "" {
		consumerName = "Lead"
	}

	leadID := e.LeadID
	if err := m.inAppService.Send(ctx, inapp.SendParams{
		UserID:       *e.AssigneeID,
		Title:        "Pipeline update",
		Content:      fmt.Sprintf("%s moved from %s to %s", consumerName, stageLabel(e.FromStage), stageLabel(e.ToStage)),
		ResourceID:   &leadID,
		ResourceType: "lead",
		Category:     "info",
	}); err != nil {
		m.log.Error("failed to create stage-advanced notification", "leadId", e.LeadID, "error", err)
	}

	agent, ok := m.resolveAssignee(ctx, *e.AssigneeID)
	if !ok {
		return nil
	}

	if err := m.sender.SendStageAdvancedEmail(ctx, agent.Email, agent.FullName, consumerName, e.FromStage, e.ToStage, m.leadURL(e.LeadID)); err != nil {
		m.log.Error("failed to send stage advanced email", "leadId", e.LeadID, "email", agent.Email, "error", err)
		return err
	}

	return nil
}

// handleFollowUpReminderScheduled writes an in-app entry only; the email
// goes out when the reminder comes due.
func (m *Module) handleFollowUpReminderScheduled(ctx context.Context, e events.FollowUpReminderScheduled) error {
	if e.AssigneeID == nil {
		return nil
	}

	_, consumerName := m.resolveLead(ctx, e.LeadID)
	if consumerName == "" {
		consumerName = "your lead"
	}

	reminderID := e.ReminderID
	if err := m.inAppService.Send(ctx, inapp.SendParams{
		UserID:       *e.AssigneeID,
		Title:        "Follow-up scheduled",
		Content:      fmt.Sprintf("%s: %s (due %s)", consumerName, e.Reason, e.DueAt.Format("Jan 2")),
		ResourceID:   &reminderID,
		ResourceType: "reminder",
		Category:     "info",
	}); err != nil {
		m.log.Error("failed to create reminder-scheduled notification", "reminderId", e.ReminderID, "error", err)
	}

	return nil
}

func (m *Module) handleFollowUpReminderDue(ctx context.Context, e events.FollowUpReminderDue) error {
	if m.reminders == nil {
		return nil
	}

	reminder, err := m.reminders.GetReminder(ctx, e.ReminderID)
	if err != nil {
		m.log.Warn("due reminder no longer resolvable", "reminderId", e.ReminderID, "error", err)
		return nil
	}
	if reminder.AssigneeID == nil {
		return nil
	}

	_, consumerName := m.resolveLead(ctx, e.LeadID)
	if consumerName == "" {
		consumerName = "your lead"
	}

	reminderID := reminder.ID
	if err := m.inAppService.Send(ctx, inapp.SendParams{
		UserID:       *reminder.AssigneeID,
		Title:        "Follow-up due",
		Content:      fmt.Sprintf("%s: %s", consumerName, reminder.Reason),
		ResourceID:   &reminderID,
		ResourceType: "reminder",
		Category:     "warning",
	}); err != nil {
		m.log.Error("failed to create reminder notification", "reminderId", e.ReminderID, "error", err)
	}

	agent, ok := m.resolveAssignee(ctx, *reminder.AssigneeID)
	if !ok {
		return nil
	}

	if err := m.sender.SendFollowUpReminderEmail(ctx, agent.Email, agent.FullName, consumerName, reminder.Reason, m.leadURL(e.LeadID)); err != nil {
		m.log.Error("failed to send follow-up reminder email", "reminderId", e.ReminderID, "email", agent.Email, "error", err)
		return err
	}

	return nil
}

func (m *Module) resolveLead(ctx context.Context, leadID uuid.UUID) (*repository.Lead, string) {
	if m.leads == nil {
		return nil, ""
	}
	lead, err := m.leads.GetByID(ctx, leadID)
	if err != nil {
		return nil, ""
	}
	return &lead, strings.TrimSpace(lead.FirstName + " " + lead.LastName)
}

func (m *Module) resolveAssignee(ctx context.Context, assigneeID uuid.UUID) (repository.OrgMember, bool) {
	if m.assignees == nil {
		return repository.OrgMember{}, false
	}
	member, err := m.assignees.GetOrgMember(ctx, assigneeID)
	if err != nil {
		m.log.Warn("failed to resolve assignee for email", "assigneeId", assigneeID, "error", err)
		return repository.OrgMember{}, false
	}
	if member.Email == "" {
		return repository.OrgMember{}, false
	}
	return member, true
}

func (m *Module) leadURL(leadID uuid.UUID) string {
	base := strings.TrimRight(m.cfg.GetAppBaseURL(), "/")
	return base + "/leads/" + leadID.String()
}

func stageLabel(stage string) string {
	if stage == "" {
		return "unset"
	}
	return strings.ReplaceAll(stage, "_", " ")
}
