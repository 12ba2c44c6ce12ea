package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"crm_pipeline_backend/internal/events"
	"crm_pipeline_backend/internal/pipeline/repository"
	"crm_pipeline_backend/platform/logger"
)

type sentEmail struct {
	kind    string
	to      string
	subject string
	leadURL string
	detail  string
}

type fakeSender struct {
	sent []sentEmail
	err  error
}

func (f *fakeSender) SendStageAdvancedEmail(ctx context.Context, toEmail, agentName, consumerName, fromStage, toStage, leadURL string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentEmail{kind: "stage_advanced", to: toEmail, leadURL: leadURL, detail: fromStage + ">" + toStage})
	return nil
}

func (f *fakeSender) SendFollowUpReminderEmail(ctx context.Context, toEmail, agentName, consumerName, reason, leadURL string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentEmail{kind: "follow_up", to: toEmail, leadURL: leadURL, detail: reason})
	return nil
}

func (f *fakeSender) SendLeadAssignedEmail(ctx context.Context, toEmail, agentName, consumerName, source, leadURL string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentEmail{kind: "lead_assigned", to: toEmail, leadURL: leadURL, detail: source})
	return nil
}

func (f *fakeSender) SendCustomEmail(ctx context.Context, toEmail, subject, htmlContent string) error {
	f.sent = append(f.sent, sentEmail{kind: "custom", to: toEmail, subject: subject})
	return nil
}

type fakeLeadReader struct {
	lead  repository.Lead
	err   error
	calls int
}

func (f *fakeLeadReader) GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error) {
	f.calls++
	return f.lead, f.err
}

type fakeReminderReader struct {
	reminder repository.Reminder
	err      error
}

func (f *fakeReminderReader) GetReminder(ctx context.Context, id uuid.UUID) (repository.Reminder, error) {
	return f.reminder, f.err
}

type fakeAssigneeReader struct {
	member repository.OrgMember
	err    error
}

func (f *fakeAssigneeReader) GetOrgMember(ctx context.Context, id uuid.UUID) (repository.OrgMember, error) {
	return f.member, f.err
}

type testNotifConfig struct{}

func (testNotifConfig) GetAppBaseURL() string { return "https://app.example.com/" }

func newNotifFixture(t *testing.T) (*Module, *fakeSender) {
	t.Helper()
	sender := &fakeSender{}
	// nil pool: in-app sends fail and get logged, which the tests ignore.
	m := New(nil, sender, testNotifConfig{}, logger.New("test"))
	m.SetAssigneeReader(&fakeAssigneeReader{member: repository.OrgMember{
		ID:       uuid.New(),
		Email:    "agent@example.com",
		FullName: "Grace Hopper",
	}})
	return m, sender
}

func TestHandleLeadStageAdvanced_EmailsAssignee(t *testing.T) {
	m, sender := newNotifFixture(t)
	assignee := uuid.New()
	leadID := uuid.New()

	err := m.Handle(context.Background(), events.LeadStageAdvanced{
		BaseEvent:    events.NewBaseEvent(),
		LeadID:       leadID,
		FromStage:    "new_lead",
		ToStage:      "contacted",
		Trigger:      "api",
		AssigneeID:   &assignee,
		ConsumerName: "Ada Lovelace",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(sender.sent))
	}
	mail := sender.sent[0]
	if mail.kind != "stage_advanced" || mail.to != "agent@example.com" {
		t.Fatalf("unexpected email: %+v", mail)
	}
	want := "https://app.example.com/leads/" + leadID.String()
	if mail.leadURL != want {
		t.Fatalf("expected lead URL %q, got %q", want, mail.leadURL)
	}
}

func TestHandleLeadStageAdvanced_NoAssigneeIsNoOp(t *testing.T) {
	m, sender := newNotifFixture(t)

	err := m.Handle(context.Background(), events.LeadStageAdvanced{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    uuid.New(),
		FromStage: "new_lead",
		ToStage:   "contacted",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatal("unassigned leads must not notify anyone")
	}
}

func TestHandleLeadCreated_EmailsAssignee(t *testing.T) {
	m, sender := newNotifFixture(t)
	assignee := uuid.New()

	err := m.Handle(context.Background(), events.LeadCreated{
		BaseEvent:  events.NewBaseEvent(),
		LeadID:     uuid.New(),
		Source:     "landing_page",
		AssigneeID: &assignee,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sender.sent) != 1 || sender.sent[0].kind != "lead_assigned" {
		t.Fatalf("expected lead assigned email, got %+v", sender.sent)
	}
	if sender.sent[0].detail != "landing_page" {
		t.Fatalf("expected source carried to email, got %q", sender.sent[0].detail)
	}
}

func TestHandleFollowUpReminderScheduled_IsInAppOnly(t *testing.T) {
	m, sender := newNotifFixture(t)
	assignee := uuid.New()
	leads := &fakeLeadReader{lead: repository.Lead{FirstName: "Ada", LastName: "Lovelace"}}
	m.SetLeadReader(leads)

	err := m.Handle(context.Background(), events.FollowUpReminderScheduled{
		BaseEvent:  events.NewBaseEvent(),
		ReminderID: uuid.New(),
		LeadID:     uuid.New(),
		AssigneeID: &assignee,
		DueAt:      time.Now().Add(72 * time.Hour),
		Reason:     "Follow up after initial contact",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The scheduled notice goes to the in-app feed; the email waits for
	// the due event.
	if len(sender.sent) != 0 {
		t.Fatalf("scheduled reminder must not email, got %+v", sender.sent)
	}
	if leads.calls != 1 {
		t.Fatalf("expected the lead to be resolved for the notice, got %d calls", leads.calls)
	}
}

func TestHandleFollowUpReminderScheduled_NoAssigneeIsNoOp(t *testing.T) {
	m, _ := newNotifFixture(t)
	leads := &fakeLeadReader{}
	m.SetLeadReader(leads)

	err := m.Handle(context.Background(), events.FollowUpReminderScheduled{
		BaseEvent:  events.NewBaseEvent(),
		ReminderID: uuid.New(),
		LeadID:     uuid.New(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if leads.calls != 0 {
		t.Fatal("unassigned reminders must not resolve the lead")
	}
}

func TestHandleFollowUpReminderDue_SendsEmail(t *testing.T) {
	m, sender := newNotifFixture(t)
	assignee := uuid.New()
	m.SetReminderReader(&fakeReminderReader{reminder: repository.Reminder{
		ID:         uuid.New(),
		LeadID:     uuid.New(),
		AssigneeID: &assignee,
		Reason:     "Check in on proposal",
		Status:     repository.ReminderStatusSent,
	}})
	m.SetLeadReader(&fakeLeadReader{lead: repository.Lead{
		FirstName: "Ada",
		LastName:  "Lovelace",
	}})

	err := m.Handle(context.Background(), events.FollowUpReminderDue{
		BaseEvent:  events.NewBaseEvent(),
		ReminderID: uuid.New(),
		LeadID:     uuid.New(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sender.sent) != 1 || sender.sent[0].kind != "follow_up" {
		t.Fatalf("expected follow-up email, got %+v", sender.sent)
	}
	if sender.sent[0].detail != "Check in on proposal" {
		t.Fatalf("expected reminder reason in email, got %q", sender.sent[0].detail)
	}
}

func TestHandleFollowUpReminderDue_UnresolvableReminderIsDropped(t *testing.T) {
	m, sender := newNotifFixture(t)
	m.SetReminderReader(&fakeReminderReader{err: errors.New("gone")})

	err := m.Handle(context.Background(), events.FollowUpReminderDue{
		BaseEvent:  events.NewBaseEvent(),
		ReminderID: uuid.New(),
		LeadID:     uuid.New(),
	})
	if err != nil {
		t.Fatalf("unresolvable reminder must not error: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatal("unresolvable reminder must not notify")
	}
}

func TestStageLabel(t *testing.T) {
	if got := stageLabel("discovery_scheduled"); got != "discovery scheduled" {
		t.Fatalf("unexpected label %q", got)
	}
	if got := stageLabel(""); got != "unset" {
		t.Fatalf("unexpected label %q", got)
	}
}
