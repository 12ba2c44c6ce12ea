// Package repository provides pgx-backed persistence for the pipeline
// bounded context: leads, their activity log, and follow-up reminders.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound         = errors.New("lead not found")
	ErrReminderNotFound = errors.New("reminder not found")
)

// System actor recorded on engine-driven activity entries.
const ActorSystem = "system"

// Activity log action names.
const (
	ActionAutoStageChanged = "lead.auto_stage_changed"
	ActionStageOverridden  = "lead.stage_overridden"
	ActionLeadCreated      = "lead.created"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Ping reports database reachability for health checks.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

type Lead struct {
	ID              uuid.UUID
	FirstName       string
	LastName        string
	Phone           string
	Email           *string
	Source          *string
	AssignedAgentID *uuid.UUID
	PipelineStage   *string
	StageIndex      *int
	StageChangedAt  *time.Time
	LastContactedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type CreateLeadParams struct {
	FirstName       string
	LastName        string
	Phone           string
	Email           *string
	Source          *string
	AssignedAgentID *uuid.UUID
}

const leadColumns = `id, first_name, last_name, phone, email, source, assigned_agent_id,
	pipeline_stage, pipeline_stage_index, stage_changed_at, last_contacted_at, created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var lead Lead
	err := row.Scan(
		&lead.ID, &lead.FirstName, &lead.LastName, &lead.Phone, &lead.Email,
		&lead.Source, &lead.AssignedAgentID,
		&lead.PipelineStage, &lead.StageIndex, &lead.StageChangedAt, &lead.LastContactedAt,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (Lead, error) {
	return scanLead(r.pool.QueryRow(ctx, `
		INSERT INTO leads (first_name, last_name, phone, email, source, assigned_agent_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+leadColumns,
		params.FirstName, params.LastName, params.Phone, params.Email,
		params.Source, params.AssignedAgentID,
	))
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	return scanLead(r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads WHERE id = $1 AND deleted_at IS NULL
	`, id))
}

// TryAdvanceStage is the engine's atomic guarded write. The WHERE clause
// carries the forward-only invariant into the database so two concurrent
// transitions cannot regress the stage: the row is only updated when its
// persisted index is still below the target index.
func (r *Repository) TryAdvanceStage(ctx context.Context, id uuid.UUID, stage string, targetIndex int) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET pipeline_stage = $2, pipeline_stage_index = $3, stage_changed_at = now(), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL AND COALESCE(pipeline_stage_index, 0) < $3
	`, id, stage, targetIndex)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

// SetStage overwrites the stage unconditionally. Manual correction path.
func (r *Repository) SetStage(ctx context.Context, id uuid.UUID, stage string, stageIndex int) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET pipeline_stage = $2, pipeline_stage_index = $3, stage_changed_at = now(), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, id, stage, stageIndex)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) StampLastContacted(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE leads SET last_contacted_at = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL AND last_contacted_at IS NULL
	`, id, at)
	return err
}

// ListStaleLeads returns leads whose stage index is at or below
// maxStageIndex and whose last stage change (or creation) predates
// olderThan. Used by the stale-lead sweep job.
func (r *Repository) ListStaleLeads(ctx context.Context, maxStageIndex int, olderThan time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM leads
		WHERE deleted_at IS NULL
		  AND COALESCE(pipeline_stage_index, 0) <= $1
		  AND COALESCE(stage_changed_at, created_at) < $2
		ORDER BY created_at ASC
		LIMIT $3
	`, maxStageIndex, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

type Activity struct {
	ID        uuid.UUID
	LeadID    uuid.UUID
	Actor     string
	Action    string
	Meta      map[string]interface{}
	CreatedAt time.Time
}

func (r *Repository) AddActivity(ctx context.Context, leadID uuid.UUID, actor string, action string, meta map[string]interface{}) error {
	var metaJSON []byte
	if meta != nil {
		encoded, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		metaJSON = encoded
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO lead_activity (lead_id, actor, action, meta)
		VALUES ($1, $2, $3, $4)
	`, leadID, actor, action, metaJSON)
	return err
}

func (r *Repository) ListActivity(ctx context.Context, leadID uuid.UUID, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, actor, action, meta, created_at
		FROM lead_activity
		WHERE lead_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, leadID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Activity, 0)
	for rows.Next() {
		var item Activity
		var metaJSON []byte
		if err := rows.Scan(&item.ID, &item.LeadID, &item.Actor, &item.Action, &metaJSON, &item.CreatedAt); err != nil {
			return nil, err
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &item.Meta); err != nil {
				return nil, err
			}
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// OrgMember is a row from the local mirror of the hosted auth provider's
// user directory, kept for assignee lookups by the notification module.
type OrgMember struct {
	ID       uuid.UUID
	Email    string
	FullName string
}

func (r *Repository) GetOrgMember(ctx context.Context, id uuid.UUID) (OrgMember, error) {
	var member OrgMember
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, full_name FROM users WHERE id = $1
	`, id).Scan(&member.ID, &member.Email, &member.FullName)
	if errors.Is(err, pgx.ErrNoRows) {
		return OrgMember{}, ErrNotFound
	}
	return member, err
}
