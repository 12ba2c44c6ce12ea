package scheduler

import (
	"context"
	"fmt"
	"time"

	"crm_pipeline_backend/internal/pipeline/repository"
	"crm_pipeline_backend/platform/config"
	"crm_pipeline_backend/platform/logger"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReminderSweeper periodically re-enqueues overdue pending reminders. It is
// the backstop for reminders whose original enqueue was lost (redis outage,
// crash between the table write and the enqueue). The worker's guarded
// MarkSent keeps the duplicates harmless.
type ReminderSweeper struct {
	client   *asynq.Client
	queue    string
	repo     *repository.Repository
	interval time.Duration
	log      *logger.Logger
}

func NewReminderSweeper(cfg config.SchedulerConfig, pipelineCfg config.PipelineConfig, pool *pgxpool.Pool, log *logger.Logger) (*ReminderSweeper, error) {
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

	interval := pipelineCfg.GetReminderSweepInterval()
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	return &ReminderSweeper{
		client:   asynq.NewClient(opt),
		queue:    queue,
		repo:     repository.New(pool),
		interval: interval,
		log:      log,
	}, nil
}

func (s *ReminderSweeper) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *ReminderSweeper) Run(ctx context.Context) {
	if s == nil || s.client == nil || s.repo == nil {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		overdue, err := s.repo.ListDue(ctx, time.Now(), 100)
		if err != nil {
			s.log.Warn("reminder sweep query failed", "error", err)
			continue
		}

		for _, reminder := range overdue {
			task, err := NewReminderDueTask(ReminderDuePayload{
				ReminderID: reminder.ID.String(),
				LeadID:     reminder.LeadID.String(),
			})
			if err != nil {
				s.log.Warn("reminder sweep task build failed", "reminderId", reminder.ID.String(), "error", err)
				continue
			}

			if _, err := s.client.EnqueueContext(ctx, task, asynq.Queue(s.queue)); err != nil {
				s.log.Warn("reminder sweep enqueue failed", "reminderId", reminder.ID.String(), "error", err)
			}
		}
	}
}
