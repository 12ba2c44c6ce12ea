// Package pipeline provides the sales pipeline domain module: the stage
// transition engine, follow-up reminder scheduling, and their HTTP API.
package pipeline

import (
	"crm_pipeline_backend/internal/events"
	apphttp "crm_pipeline_backend/internal/http"
	"crm_pipeline_backend/internal/pipeline/domain"
	"crm_pipeline_backend/internal/pipeline/handler"
	"crm_pipeline_backend/internal/pipeline/reminders"
	"crm_pipeline_backend/internal/pipeline/repository"
	"crm_pipeline_backend/internal/pipeline/service"
	"crm_pipeline_backend/platform/logger"
	"crm_pipeline_backend/platform/tasks"
	"crm_pipeline_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the pipeline domain module.
type Module struct {
	handler   *handler.Handler
	svc       *service.Service
	reminders *reminders.Service
	repo      *repository.Repository
}

// NewModule creates the pipeline module with all dependencies wired. The due
// task scheduler may be a nil-safe no-op client when redis is not configured.
func NewModule(
	pool *pgxpool.Pool,
	bus events.Bus,
	runner *tasks.Runner,
	due reminders.DueTaskScheduler,
	order *domain.Order,
	rules domain.RuleTable,
	hooks domain.HookTable,
	val *validator.Validator,
	log *logger.Logger,
) *Module {
	repo := repository.New(pool)
	remindersSvc := reminders.NewService(repo, due, rules, bus, log)
	svc := service.NewService(repo, remindersSvc, order, hooks, bus, runner, log)
	h := handler.New(svc, remindersSvc, val)

	return &Module{
		handler:   h,
		svc:       svc,
		reminders: remindersSvc,
		repo:      repo,
	}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "pipeline"
}

// RegisterRoutes registers the module's routes under /api/v1/pipeline.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	pipeline := ctx.Protected.Group("/pipeline")
	m.handler.RegisterRoutes(pipeline)
}

// Service exposes the transition engine for other modules (webhooks, sweeps).
func (m *Module) Service() *service.Service { return m.svc }

// Reminders exposes the reminder service.
func (m *Module) Reminders() *reminders.Service { return m.reminders }

// Repository exposes the pipeline store for readers in other modules.
func (m *Module) Repository() *repository.Repository { return m.repo }

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
