package pipeline

import (
	"context"

	"meetscribe/internal/worker"
)

// Scheduler hands jobs to the executor in the background.
type Scheduler struct {
	dispatcher *worker.Dispatcher
	executor   *Executor
}

// NewScheduler creates a Scheduler running jobs on d.
func NewScheduler(d *worker.Dispatcher, e *Executor) *Scheduler {
	return &Scheduler{dispatcher: d, executor: e}
}

// Schedule starts req and returns without waiting for it.
// It fails with worker.ErrShuttingDown once shutdown has begun.
func (s *Scheduler) Schedule(req Request) error {
	return s.dispatcher.Dispatch("job "+req.JobID, func(ctx context.Context) {
		s.executor.Run(ctx, req)
	})
}
