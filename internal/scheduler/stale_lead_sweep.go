package scheduler

import (
	"context"
	"time"

	"crm_pipeline_backend/internal/pipeline/domain"
	"crm_pipeline_backend/internal/pipeline/service"
	"crm_pipeline_backend/platform/logger"

	"github.com/google/uuid"
)

const staleLeadTrigger = "stale_lead_sweep"

// LeadAdvancer is the engine surface the sweep drives transitions through.
type LeadAdvancer interface {
	Advance(ctx context.Context, leadID uuid.UUID, target domain.Stage, trigger string) (service.TransitionResult, error)
}

// StaleLeadLister finds leads that have not moved past the first stage.
type StaleLeadLister interface {
	ListStaleLeads(ctx context.Context, maxStageIndex int, olderThan time.Time, limit int) ([]uuid.UUID, error)
}

// StaleLeadSweep advances leads that have sat in new_lead (or have never
// entered the pipeline) beyond the configured age. It goes through the
// transition engine rather than writing stages directly, so the usual
// activity log, hooks, and follow-up scheduling all apply.
type StaleLeadSweep struct {
	leads    StaleLeadLister
	engine   LeadAdvancer
	order    *domain.Order
	maxAge   time.Duration
	interval time.Duration
	log      *logger.Logger
}

func NewStaleLeadSweep(leads StaleLeadLister, engine LeadAdvancer, order *domain.Order, maxAge time.Duration, log *logger.Logger) *StaleLeadSweep {
	if maxAge <= 0 {
		maxAge = 72 * time.Hour
	}
	return &StaleLeadSweep{
		leads:    leads,
		engine:   engine,
		order:    order,
		maxAge:   maxAge,
		interval: time.Hour,
		log:      log,
	}
}

func (s *StaleLeadSweep) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s.sweep(ctx)
	}
}

func (s *StaleLeadSweep) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.maxAge)
	maxIndex := s.order.IndexOf(domain.StageNewLead)

	ids, err := s.leads.ListStaleLeads(ctx, maxIndex, cutoff, 200)
	if err != nil {
		s.log.Warn("stale lead query failed", "error", err)
		return
	}

	for _, id := range ids {
		result, err := s.engine.Advance(ctx, id, domain.StageContacted, staleLeadTrigger)
		if err != nil {
			s.log.Warn("stale lead advance failed", "leadId", id.String(), "error", err)
			continue
		}
		if result.Advanced() {
			s.log.Info("stale lead advanced", "leadId", id.String())
		}
	}
}
