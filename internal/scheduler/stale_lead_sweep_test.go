package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"crm_pipeline_backend/internal/pipeline/domain"
	"crm_pipeline_backend/internal/pipeline/service"
	"crm_pipeline_backend/platform/logger"
)

type fakeStaleLister struct {
	ids          []uuid.UUID
	err          error
	gotMaxIndex  int
	gotOlderThan time.Time
}

func (f *fakeStaleLister) ListStaleLeads(ctx context.Context, maxStageIndex int, olderThan time.Time, limit int) ([]uuid.UUID, error) {
	f.gotMaxIndex = maxStageIndex
	f.gotOlderThan = olderThan
	return f.ids, f.err
}

type sweepAdvanceCall struct {
	leadID  uuid.UUID
	target  domain.Stage
	trigger string
}

type fakeSweepAdvancer struct {
	calls []sweepAdvanceCall
	err   error
}

func (f *fakeSweepAdvancer) Advance(ctx context.Context, leadID uuid.UUID, target domain.Stage, trigger string) (service.TransitionResult, error) {
	f.calls = append(f.calls, sweepAdvanceCall{leadID: leadID, target: target, trigger: trigger})
	if f.err != nil {
		return service.TransitionResult{}, f.err
	}
	return service.TransitionResult{Outcome: service.OutcomeAdvanced, To: target}, nil
}

func TestStaleLeadSweep_AdvancesThroughEngine(t *testing.T) {
	lister := &fakeStaleLister{ids: []uuid.UUID{uuid.New(), uuid.New()}}
	engine := &fakeSweepAdvancer{}
	sweep := NewStaleLeadSweep(lister, engine, domain.MustDefaultOrder(), 72*time.Hour, logger.New("test"))

	sweep.sweep(context.Background())

	if lister.gotMaxIndex != 1 {
		t.Fatalf("expected sweep to target leads at or before new_lead (index 1), got %d", lister.gotMaxIndex)
	}
	if time.Since(lister.gotOlderThan) < 71*time.Hour {
		t.Fatalf("expected a ~72h cutoff, got %s", lister.gotOlderThan)
	}

	if len(engine.calls) != 2 {
		t.Fatalf("expected 2 engine calls, got %d", len(engine.calls))
	}
	for _, call := range engine.calls {
		if call.target != domain.StageContacted || call.trigger != staleLeadTrigger {
			t.Fatalf("unexpected engine call: %+v", call)
		}
	}
}

func TestStaleLeadSweep_AdvanceFailureDoesNotStopBatch(t *testing.T) {
	lister := &fakeStaleLister{ids: []uuid.UUID{uuid.New(), uuid.New()}}
	engine := &fakeSweepAdvancer{err: errors.New("db down")}
	sweep := NewStaleLeadSweep(lister, engine, domain.MustDefaultOrder(), 72*time.Hour, logger.New("test"))

	sweep.sweep(context.Background())

	if len(engine.calls) != 2 {
		t.Fatalf("expected the sweep to continue past failures, got %d calls", len(engine.calls))
	}
}

func TestStaleLeadSweep_ListFailureIsTolerated(t *testing.T) {
	lister := &fakeStaleLister{err: errors.New("db down")}
	engine := &fakeSweepAdvancer{}
	sweep := NewStaleLeadSweep(lister, engine, domain.MustDefaultOrder(), 72*time.Hour, logger.New("test"))

	sweep.sweep(context.Background())

	if len(engine.calls) != 0 {
		t.Fatal("expected no advances when the query fails")
	}
}
