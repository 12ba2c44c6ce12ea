// Package tasks provides a bounded runner for background side effects.
// This is part of the platform layer and contains no business logic.
package tasks

import (
	"context"
	"fmt"

	"crm_pipeline_backend/platform/logger"

	"golang.org/x/sync/errgroup"
)

// Runner executes fire-and-forget side effects on a bounded pool of
// goroutines. Callers return immediately; failures are logged, never
// surfaced. The composition root drains the runner on shutdown so in-flight
// work is not orphaned when the process exits.
type Runner struct {
	group *errgroup.Group
	log   *logger.Logger
}

// NewRunner creates a runner allowing at most limit concurrent tasks.
// A limit of zero or less means unbounded.
func NewRunner(limit int, log *logger.Logger) *Runner {
	group := &errgroup.Group{}
	if limit > 0 {
		group.SetLimit(limit)
	}
	return &Runner{group: group, log: log}
}

// Go schedules fn on the runner. The task runs with a context detached from
// the caller's cancellation so an HTTP request finishing does not abort the
// side effect. Errors and panics are logged under the given name.
func (r *Runner) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	taskCtx := context.WithoutCancel(ctx)
	r.group.Go(func() error {
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("background task panic", "task", name, "panic", fmt.Sprint(rec))
			}
		}()
		if err := fn(taskCtx); err != nil {
			r.log.Error("background task failed", "task", name, "error", err)
		}
		// Errors never fail the group; they are absorbed at the policy level.
		return nil
	})
}

// Drain waits for all scheduled tasks to complete.
func (r *Runner) Drain() {
	_ = r.group.Wait()
}
