package domain

import (
	"testing"
)

func TestNewOrder_RejectsEmptyList(t *testing.T) {
	if _, err := NewOrder(nil); err == nil {
		t.Fatal("expected error for empty stage list")
	}
}

func TestNewOrder_RejectsDuplicateStage(t *testing.T) {
	if _, err := NewOrder([]Stage{StageNewLead, StageContacted, StageNewLead}); err == nil {
		t.Fatal("expected error for duplicate stage")
	}
}

func TestNewOrder_RejectsEmptyStage(t *testing.T) {
	if _, err := NewOrder([]Stage{StageNewLead, StageUnset}); err == nil {
		t.Fatal("expected error for empty stage in order")
	}
}

func TestOrder_IndexOfIsOneBased(t *testing.T) {
	order := MustDefaultOrder()

	if got := order.IndexOf(StageNewLead); got != 1 {
		t.Fatalf("expected new_lead at index 1, got %d", got)
	}
	if got := order.IndexOf(StageRetention); got != len(DefaultStages()) {
		t.Fatalf("expected retention at index %d, got %d", len(DefaultStages()), got)
	}
}

func TestOrder_UnknownAndUnsetMapToSentinel(t *testing.T) {
	order := MustDefaultOrder()

	if got := order.IndexOf(StageUnset); got != 0 {
		t.Fatalf("expected unset stage at sentinel 0, got %d", got)
	}
	if got := order.IndexOf(Stage("no_such_stage")); got != 0 {
		t.Fatalf("expected unknown stage at sentinel 0, got %d", got)
	}
	if order.IsKnown(Stage("no_such_stage")) {
		t.Fatal("expected unknown stage to not be known")
	}
}

func TestOrder_SentinelSortsBelowEveryStage(t *testing.T) {
	order := MustDefaultOrder()

	for _, stage := range order.Stages() {
		if order.IndexOf(stage) <= order.IndexOf(StageUnset) {
			t.Fatalf("stage %q does not sort above the unset sentinel", stage)
		}
	}
}

func TestOrder_DisplayMapsUnsetToFirst(t *testing.T) {
	order := MustDefaultOrder()

	if got := order.Display(StageUnset); got != StageNewLead {
		t.Fatalf("expected unset to display as new_lead, got %q", got)
	}
	if got := order.Display(StageNegotiation); got != StageNegotiation {
		t.Fatalf("expected negotiation to display unchanged, got %q", got)
	}
}

func TestOrder_StagesReturnsCopy(t *testing.T) {
	order := MustDefaultOrder()

	stages := order.Stages()
	stages[0] = Stage("mutated")

	if order.First() != StageNewLead {
		t.Fatal("mutating the returned slice must not affect the order")
	}
}
