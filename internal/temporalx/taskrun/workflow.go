package taskrun

import (
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

func Workflow(ctx workflow.Context, in Input) error {
	if strings.TrimSpace(in.TaskType) == "" {
		return temporal.NewNonRetryableApplicationError("taskrun: missing task_type", ErrTypePermanent, nil)
	}
	if strings.TrimSpace(in.TaskID) == "" {
		in.TaskID = workflow.GetInfo(ctx).WorkflowExecution.ID
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy:         in.Retry.toTemporal(),
	})

	return workflow.ExecuteActivity(ctx, ActivityExecute, in).Get(ctx, nil)
}

func (p RetryPolicy) toTemporal() *temporal.RetryPolicy {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	initial := p.InitialInterval
	if initial <= 0 {
		initial = defaultInitialInterval
	}
	maximum := p.MaximumInterval
	if maximum <= 0 {
		maximum = defaultMaximumInterval
	}
	if maximum < initial {
		maximum = initial
	}
	return &temporal.RetryPolicy{
		InitialInterval:        initial,
		BackoffCoefficient:     2,
		MaximumInterval:        maximum,
		MaximumAttempts:        int32(attempts),
		NonRetryableErrorTypes: []string{ErrTypePermanent},
	}
}
