package taskrun

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	jobrt "github.com/kotky/gradebook-edx-platform-extensions/internal/jobs/runtime"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/observability"
)

const backendName = "temporal"

type Activities struct {
	Executor *jobrt.Executor
	Metrics  *observability.Metrics
}

func (a *Activities) Execute(ctx context.Context, in Input) error {
	if a == nil || a.Executor == nil {
		return fmt.Errorf("taskrun: activity not configured")
	}
	start := time.Now()
	attempt := int(activity.GetInfo(ctx).Attempt)

	stopHB := startHeartbeat(ctx)
	err := a.Executor.Execute(ctx, in.TaskID, in.TaskType, attempt, backendName, in.Args)
	stopHB()

	status := "succeeded"
	if err != nil {
		status = "failed"
	}
	a.Metrics.ObserveActivity(ActivityExecute, in.TaskType, status, time.Since(start))

	if jobrt.IsPermanent(err) {
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypePermanent, err)
	}
	return err
}

func startHeartbeat(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(10 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				activity.RecordHeartbeat(ctx)
			}
		}
	}()
	return func() { close(done) }
}
