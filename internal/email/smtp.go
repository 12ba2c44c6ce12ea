package email

import (
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender implements Sender over a direct SMTP connection via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

func (s *SMTPSender) SendStageAdvancedEmail(ctx context.Context, toEmail, agentName, consumerName, fromStage, toStage, leadURL string) error {
	toStageLabel := humanizeStage(toStage)
	subject := fmt.Sprintf(subjectStageAdvancedFmt, consumerName, toStageLabel)
	content, err := renderEmailTemplate("stage_advanced.html", stageAdvancedEmailData{
		baseEmailData: baseEmailData{
			Title:    "Pipeline update",
			Heading:  "Pipeline update",
			CTALabel: "Open lead",
			CTAURL:   leadURL,
		},
		AgentName:    agentName,
		ConsumerName: consumerName,
		FromStage:    humanizeStage(fromStage),
		ToStage:      toStageLabel,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}

func (s *SMTPSender) SendFollowUpReminderEmail(ctx context.Context, toEmail, agentName, consumerName, reason, leadURL string) error {
	content, err := renderEmailTemplate("follow_up_reminder.html", followUpReminderEmailData{
		baseEmailData: baseEmailData{
			Title:    "Follow-up reminder",
			Heading:  "Time to follow up",
			CTALabel: "Open lead",
			CTAURL:   leadURL,
		},
		AgentName:    agentName,
		ConsumerName: consumerName,
		Reason:       reason,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectFollowUpReminder, content)
}

func (s *SMTPSender) SendLeadAssignedEmail(ctx context.Context, toEmail, agentName, consumerName, source, leadURL string) error {
	subject := fmt.Sprintf(subjectLeadAssignedFmt, consumerName)
	content, err := renderEmailTemplate("lead_assigned.html", leadAssignedEmailData{
		baseEmailData: baseEmailData{
			Title:    "New lead",
			Heading:  "A new lead was assigned to you",
			CTALabel: "Open lead",
			CTAURL:   leadURL,
		},
		AgentName:    agentName,
		ConsumerName: consumerName,
		Source:       source,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}

func (s *SMTPSender) SendCustomEmail(ctx context.Context, toEmail, subject, htmlContent string) error {
	return s.send(ctx, toEmail, subject, htmlContent)
}
