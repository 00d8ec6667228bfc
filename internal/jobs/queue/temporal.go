package queue

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	temporalsdkclient "go.temporal.io/sdk/client"

	jobrt "github.com/kotky/gradebook-edx-platform-extensions/internal/jobs/runtime"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/observability"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/temporalx/taskrun"
)

// WorkflowStarter is the subset of the Temporal client the queue needs.
type WorkflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options temporalsdkclient.StartWorkflowOptions, workflow interface{}, args ...interface{}) (temporalsdkclient.WorkflowRun, error)
}

// Temporal starts one task_run workflow per task; Temporal owns retries.
type Temporal struct {
	client    WorkflowStarter
	taskQueue string
	retry     taskrun.RetryPolicy
	metrics   *observability.Metrics
}

func NewTemporal(client WorkflowStarter, taskQueue string, policy RetryPolicy, metrics *observability.Metrics) *Temporal {
	return &Temporal{
		client:    client,
		taskQueue: taskQueue,
		retry: taskrun.RetryPolicy{
			MaxAttempts:     policy.MaxAttempts,
			InitialInterval: policy.RetryDelay,
			MaximumInterval: policy.MaxDelay,
		},
		metrics: metrics,
	}
}

func (q *Temporal) Enqueue(ctx context.Context, taskType string, args ...any) (string, error) {
	if q.client == nil {
		return "", fmt.Errorf("temporal queue: client not configured")
	}
	raw, err := jobrt.EncodeArgs(args...)
	if err != nil {
		return "", err
	}
	id := taskType + ":" + uuid.NewString()
	run, err := q.client.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:        id,
		TaskQueue: q.taskQueue,
	}, taskrun.WorkflowName, taskrun.Input{
		TaskID:   id,
		TaskType: taskType,
		Args:     raw,
		Retry:    q.retry,
	})
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	q.metrics.IncTaskEnqueued(taskType, BackendTemporal)
	return run.GetID(), nil
}
