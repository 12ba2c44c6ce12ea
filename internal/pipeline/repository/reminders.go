package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Reminder statuses. A lead has at most one pending reminder at a time,
// enforced by a partial unique index on (lead_id) WHERE status = 'pending'.
const (
	ReminderStatusPending   = "pending"
	ReminderStatusSent      = "sent"
	ReminderStatusDismissed = "dismissed"
)

type Reminder struct {
	ID         uuid.UUID
	LeadID     uuid.UUID
	AssigneeID *uuid.UUID
	DueAt      time.Time
	Reason     string
	Status     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type SupersedeReminderParams struct {
	LeadID     uuid.UUID
	AssigneeID *uuid.UUID
	DueAt      time.Time
	Reason     string
}

const reminderColumns = `id, lead_id, assignee_id, due_at, reason, status, created_at, updated_at`

func scanReminder(row pgx.Row) (Reminder, error) {
	var reminder Reminder
	err := row.Scan(
		&reminder.ID, &reminder.LeadID, &reminder.AssigneeID, &reminder.DueAt,
		&reminder.Reason, &reminder.Status, &reminder.CreatedAt, &reminder.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Reminder{}, ErrReminderNotFound
	}
	return reminder, err
}

func (r *Repository) GetReminder(ctx context.Context, id uuid.UUID) (Reminder, error) {
	return scanReminder(r.pool.QueryRow(ctx, `
		SELECT `+reminderColumns+`
		FROM follow_up_reminders WHERE id = $1
	`, id))
}

// Supersede dismisses the lead's pending reminder (if any) and inserts the
// replacement in one transaction, so the at-most-one-pending invariant holds
// even under concurrent stage transitions.
func (r *Repository) Supersede(ctx context.Context, params SupersedeReminderParams) (Reminder, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Reminder{}, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE follow_up_reminders
		SET status = 'dismissed', updated_at = now()
		WHERE lead_id = $1 AND status = 'pending'
	`, params.LeadID); err != nil {
		return Reminder{}, err
	}

	reminder, err := scanReminder(tx.QueryRow(ctx, `
		INSERT INTO follow_up_reminders (lead_id, assignee_id, due_at, reason, status)
		VALUES ($1, $2, $3, $4, 'pending')
		RETURNING `+reminderColumns,
		params.LeadID, params.AssigneeID, params.DueAt, params.Reason,
	))
	if err != nil {
		return Reminder{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Reminder{}, err
	}

	return reminder, nil
}

// MarkSent transitions a reminder from pending to sent. Returns false when
// the reminder was already sent or dismissed, which makes delivery workers
// idempotent under redelivery.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE follow_up_reminders
		SET status = 'sent', updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`, id)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

func (r *Repository) Dismiss(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE follow_up_reminders
		SET status = 'dismissed', updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrReminderNotFound
	}
	return nil
}

func (r *Repository) ListByLead(ctx context.Context, leadID uuid.UUID) ([]Reminder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+reminderColumns+`
		FROM follow_up_reminders
		WHERE lead_id = $1
		ORDER BY created_at DESC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectReminders(rows)
}

// ListDue returns pending reminders whose due time has passed. The sweeper
// uses this as a backstop for reminders whose queue delivery was lost.
func (r *Repository) ListDue(ctx context.Context, before time.Time, limit int) ([]Reminder, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+reminderColumns+`
		FROM follow_up_reminders
		WHERE status = 'pending' AND due_at <= $1
		ORDER BY due_at ASC
		LIMIT $2
	`, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectReminders(rows)
}

func collectReminders(rows pgx.Rows) ([]Reminder, error) {
	items := make([]Reminder, 0)
	for rows.Next() {
		reminder, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, reminder)
	}
	return items, rows.Err()
}
