package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LeadStamper is the narrow store surface stage hooks write through.
type LeadStamper interface {
	// StampLastContacted records the moment a lead was first reached.
	StampLastContacted(ctx context.Context, leadID uuid.UUID, at time.Time) error
}

// StageHook runs an additional side effect when a lead enters a stage.
// Hooks run after the stage write has been persisted; a hook failure must
// not unwind the stage change.
type StageHook struct {
	Name string
	Run  func(ctx context.Context, store LeadStamper, leadID uuid.UUID, now time.Time) error
}

// HookTable maps a stage to the extra side effects of entering it. Encoding
// the stage-specific behavior as data keeps the guard logic in the engine
// free of per-stage conditionals.
type HookTable map[Stage][]StageHook

// DefaultHookTable returns the production hook table: entering `contacted`
// stamps the lead's last-contacted-at timestamp.
func DefaultHookTable() HookTable {
	return HookTable{
		StageContacted: {
			{
				Name: "stamp_last_contacted",
				Run: func(ctx context.Context, store LeadStamper, leadID uuid.UUID, now time.Time) error {
					return store.StampLastContacted(ctx, leadID, now)
				},
			},
		},
	}
}
