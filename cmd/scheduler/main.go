package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crm_pipeline_backend/internal/email"
	"crm_pipeline_backend/internal/events"
	"crm_pipeline_backend/internal/notification"
	"crm_pipeline_backend/internal/pipeline"
	"crm_pipeline_backend/internal/pipeline/domain"
	"crm_pipeline_backend/internal/scheduler"
	"crm_pipeline_backend/platform/config"
	"crm_pipeline_backend/platform/db"
	"crm_pipeline_backend/platform/logger"
	"crm_pipeline_backend/platform/tasks"
	"crm_pipeline_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	runner := tasks.NewRunner(16, log)
	val := validator.New()

	sender := initEmailSender(cfg, log)

	order := domain.MustDefaultOrder()
	rules, err := domain.LoadRuleTable(cfg.GetStageRulesPath(), order)
	if err != nil {
		log.Error("failed to load stage rule table", "error", err, "path", cfg.GetStageRulesPath())
		panic("failed to load stage rule table: " + err.Error())
	}
	hooks := domain.DefaultHookTable()

	dueClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize due task client", "error", err)
		panic("failed to initialize due task client: " + err.Error())
	}
	defer func() { _ = dueClient.Close() }()

	// The sweeps drive transitions through the same engine the API uses, so
	// the activity log, stage hooks, and reminder scheduling all apply.
	pipelineModule := pipeline.NewModule(pool, eventBus, runner, dueClient, order, rules, hooks, val, log)

	notificationModule := notification.New(pool, sender, cfg, log)
	notificationModule.SetLeadReader(pipelineModule.Repository())
	notificationModule.SetReminderReader(pipelineModule.Repository())
	notificationModule.SetAssigneeReader(pipelineModule.Repository())
	notificationModule.RegisterHandlers(eventBus)

	sweeper, err := scheduler.NewReminderSweeper(cfg, cfg, pool, log)
	if err != nil {
		log.Error("failed to initialize reminder sweeper", "error", err)
		panic("failed to initialize reminder sweeper: " + err.Error())
	}
	defer func() { _ = sweeper.Close() }()
	go sweeper.Run(ctx)

	staleSweep := scheduler.NewStaleLeadSweep(pipelineModule.Repository(), pipelineModule.Service(), order, cfg.GetStaleLeadAge(), log)
	go staleSweep.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, pool, eventBus, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
	// Runner first: drained tasks may still publish events.
	runner.Drain()
	eventBus.Drain()
}

func initEmailSender(cfg config.SMTPConfig, log *logger.Logger) email.Sender {
	if !cfg.GetEmailEnabled() {
		log.Warn("email delivery disabled; using noop sender")
		return email.NoopSender{}
	}

	return email.NewSMTPSender(
		cfg.GetSMTPHost(),
		cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(),
		cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(),
		cfg.GetEmailFromName(),
	)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
