// Package domain defines the pipeline stage model: the fixed, totally
// ordered list of stages a lead moves through, the follow-up rule table, and
// the per-stage side-effect hooks.
package domain

import (
	"fmt"
)

// Stage identifies a position in the sales pipeline.
type Stage string

const (
	// StageUnset is the zero value of a lead that has not entered the
	// pipeline yet. It compares below every real stage.
	StageUnset Stage = ""

	StageNewLead            Stage = "new_lead"
	StageContacted          Stage = "contacted"
	StageDiscoveryScheduled Stage = "discovery_scheduled"
	StageDiscoveryCompleted Stage = "discovery_completed"
	StageProposalSent       Stage = "proposal_sent"
	StageNegotiation        Stage = "negotiation"
	StageContractSigned     Stage = "contract_signed"
	StageActiveClient       Stage = "active_client"
	StageProjectDelivered   Stage = "project_delivered"
	StageRetention          Stage = "retention"
)

// DefaultStages returns the pipeline order used in production. Position in
// this slice is the sole ordering key for forward/backward comparisons.
func DefaultStages() []Stage {
	return []Stage{
		StageNewLead,
		StageContacted,
		StageDiscoveryScheduled,
		StageDiscoveryCompleted,
		StageProposalSent,
		StageNegotiation,
		StageContractSigned,
		StageActiveClient,
		StageProjectDelivered,
		StageRetention,
	}
}

// Order is an immutable total order over pipeline stages. It is constructed
// once at startup and injected into the transition engine; the engine never
// consults package-global state.
type Order struct {
	stages   []Stage
	position map[Stage]int
}

// NewOrder builds an Order from the given stage sequence. Stages are indexed
// from 1 so that the unset/unknown sentinel (0) sorts below the first stage.
func NewOrder(stages []Stage) (*Order, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("stage order must not be empty")
	}

	position := make(map[Stage]int, len(stages))
	for i, stage := range stages {
		if stage == StageUnset {
			return nil, fmt.Errorf("stage order contains an empty stage at position %d", i)
		}
		if _, dup := position[stage]; dup {
			return nil, fmt.Errorf("stage order contains duplicate stage %q", stage)
		}
		position[stage] = i + 1
	}

	ordered := make([]Stage, len(stages))
	copy(ordered, stages)

	return &Order{stages: ordered, position: position}, nil
}

// MustDefaultOrder returns the production stage order. It panics only if the
// built-in stage list is malformed, which would be a programming error.
func MustDefaultOrder() *Order {
	order, err := NewOrder(DefaultStages())
	if err != nil {
		panic(err)
	}
	return order
}

// IndexOf returns the 1-based position of stage in the order. Unset and
// unknown stages map to the sentinel 0, which sorts before every real stage.
func (o *Order) IndexOf(stage Stage) int {
	return o.position[stage]
}

// IsKnown reports whether stage is a member of the order.
func (o *Order) IsKnown(stage Stage) bool {
	_, ok := o.position[stage]
	return ok
}

// First returns the first stage in the order.
func (o *Order) First() Stage {
	return o.stages[0]
}

// Stages returns a copy of the ordered stage list.
func (o *Order) Stages() []Stage {
	out := make([]Stage, len(o.stages))
	copy(out, o.stages)
	return out
}

// Display maps the unset sentinel to the first stage for presentation. The
// comparison logic never uses this; it exists so API responses don't leak
// empty stage values.
func (o *Order) Display(stage Stage) Stage {
	if stage == StageUnset {
		return o.First()
	}
	return stage
}
