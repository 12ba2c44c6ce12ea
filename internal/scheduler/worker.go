package scheduler

import (
	"context"
	"fmt"

	"crm_pipeline_backend/internal/events"
	"crm_pipeline_backend/internal/pipeline/repository"
	"crm_pipeline_backend/platform/config"
	"crm_pipeline_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	repo   *repository.Repository
	bus    events.Bus
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, pool *pgxpool.Pool, bus events.Bus, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		repo:   repository.New(pool),
		bus:    bus,
		log:    log,
	}

	mux.HandleFunc(TaskReminderDue, w.handleReminderDue)

	return w, nil
}

// handleReminderDue fires a pending reminder. The guarded MarkSent makes the
// handler idempotent: a reminder that was dismissed, superseded, or already
// delivered by an earlier attempt is silently skipped, so queue redeliveries
// and sweeper duplicates never notify twice.
func (w *Worker) handleReminderDue(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseReminderDuePayload(task)
	if err != nil {
		return err
	}

	reminderID, err := uuid.Parse(payload.ReminderID)
	if err != nil {
		return err
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return err
	}

	sent, err := w.repo.MarkSent(ctx, reminderID)
	if err != nil {
		return err
	}
	if !sent {
		return nil
	}

	if w.bus == nil {
		return nil
	}

	// Sync so a delivery failure is visible as a task error in asynq. The
	// reminder stays sent either way: delivery is at-most-once.
	return w.bus.PublishSync(ctx, events.FollowUpReminderDue{
		BaseEvent:  events.NewBaseEvent(),
		ReminderID: reminderID,
		LeadID:     leadID,
	})
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
