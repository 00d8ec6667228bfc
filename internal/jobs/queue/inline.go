package queue

import (
	"context"

	"github.com/google/uuid"

	jobrt "github.com/kotky/gradebook-edx-platform-extensions/internal/jobs/runtime"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/observability"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/platform/logger"
)

// Inline runs each task synchronously in the enqueuing goroutine, once. It
// suits tests and single-process development setups.
type Inline struct {
	executor *jobrt.Executor
	log      *logger.Logger
	metrics  *observability.Metrics
	// Propagate returns task errors to the caller instead of only logging them.
	Propagate bool
}

func NewInline(executor *jobrt.Executor, log *logger.Logger, metrics *observability.Metrics) *Inline {
	if log == nil {
		log = logger.NewNop()
	}
	return &Inline{
		executor: executor,
		log:      log.With("component", "InlineQueue"),
		metrics:  metrics,
	}
}

func (q *Inline) Enqueue(ctx context.Context, taskType string, args ...any) (string, error) {
	raw, err := jobrt.EncodeArgs(args...)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	q.metrics.IncTaskEnqueued(taskType, BackendInline)
	if err := q.executor.Execute(ctx, id, taskType, 1, BackendInline, raw); err != nil {
		q.log.Error("Inline task failed", "task_id", id, "task_type", taskType, "permanent", jobrt.IsPermanent(err), "error", err)
		if q.Propagate {
			return id, err
		}
	}
	return id, nil
}
