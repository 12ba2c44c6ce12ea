// Package email delivers transactional mail for pipeline events. Senders
// render embedded HTML templates; the notification module decides when to
// send.
package email

import (
	"context"
)

type Sender interface {
	SendStageAdvancedEmail(ctx context.Context, toEmail, agentName, consumerName, fromStage, toStage, leadURL string) error
	SendFollowUpReminderEmail(ctx context.Context, toEmail, agentName, consumerName, reason, leadURL string) error
	SendLeadAssignedEmail(ctx context.Context, toEmail, agentName, consumerName, source, leadURL string) error
	SendCustomEmail(ctx context.Context, toEmail, subject, htmlContent string) error
}

// NoopSender is used when email delivery is disabled. All sends succeed
// without doing anything.
type NoopSender struct{}

func (NoopSender) SendStageAdvancedEmail(ctx context.Context, toEmail, agentName, consumerName, fromStage, toStage, leadURL string) error {
	return nil
}

func (NoopSender) SendFollowUpReminderEmail(ctx context.Context, toEmail, agentName, consumerName, reason, leadURL string) error {
	return nil
}

func (NoopSender) SendLeadAssignedEmail(ctx context.Context, toEmail, agentName, consumerName, source, leadURL string) error {
	return nil
}

func (NoopSender) SendCustomEmail(ctx context.Context, toEmail, subject, htmlContent string) error {
	return nil
}
