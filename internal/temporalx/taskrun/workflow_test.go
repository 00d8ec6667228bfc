package taskrun

import (
	"errors"
	"sync/atomic"
	"testing"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	jobrt "github.com/kotky/gradebook-edx-platform-extensions/internal/jobs/runtime"
)

type countingHandler struct {
	calls    atomic.Int32
	failures int32
	err      error
}

func (h *countingHandler) Type() string { return "test.count" }

func (h *countingHandler) Run(rc *jobrt.Context) error {
	n := h.calls.Add(1)
	if n <= h.failures {
		return h.err
	}
	return nil
}

func runWorkflow(t *testing.T, h *countingHandler, in Input) error {
	t.Helper()
	reg := jobrt.NewRegistry()
	if err := reg.Register(h); err != nil {
		t.Fatalf("Register: %v", err)
	}
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	acts := &Activities{Executor: &jobrt.Executor{Registry: reg}}
	env.RegisterActivityWithOptions(acts.Execute, activity.RegisterOptions{Name: ActivityExecute})
	env.ExecuteWorkflow(Workflow, in)
	if !env.IsWorkflowCompleted() {
		t.Fatalf("workflow did not complete")
	}
	return env.GetWorkflowError()
}

func TestWorkflowRetriesTransientFailures(t *testing.T) {
	h := &countingHandler{failures: 2, err: errors.New("user not found")}
	err := runWorkflow(t, h, Input{TaskID: "t1", TaskType: "test.count"})
	if err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	if got := h.calls.Load(); got != 3 {
		t.Fatalf("attempts: want=3 got=%d", got)
	}
}

func TestWorkflowStopsOnPermanentFailure(t *testing.T) {
	h := &countingHandler{failures: 10, err: jobrt.Permanentf("bad course key")}
	err := runWorkflow(t, h, Input{TaskID: "t2", TaskType: "test.count"})
	if err == nil {
		t.Fatalf("expected workflow error")
	}
	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) || appErr.Type() != ErrTypePermanent {
		t.Fatalf("expected permanent application error, got %v", err)
	}
	if got := h.calls.Load(); got != 1 {
		t.Fatalf("attempts: want=1 got=%d", got)
	}
}

func TestWorkflowGivesUpAfterMaxAttempts(t *testing.T) {
	h := &countingHandler{failures: 10, err: errors.New("still broken")}
	err := runWorkflow(t, h, Input{TaskID: "t3", TaskType: "test.count", Retry: RetryPolicy{MaxAttempts: 2}})
	if err == nil {
		t.Fatalf("expected workflow error")
	}
	if got := h.calls.Load(); got != 2 {
		t.Fatalf("attempts: want=2 got=%d", got)
	}
}

func TestRetryPolicyDefaults(t *testing.T) {
	p := RetryPolicy{}.toTemporal()
	if p.MaximumAttempts != defaultMaxAttempts || p.InitialInterval != defaultInitialInterval {
		t.Fatalf("defaults: %+v", p)
	}
	if len(p.NonRetryableErrorTypes) != 1 || p.NonRetryableErrorTypes[0] != ErrTypePermanent {
		t.Fatalf("non-retryable types: %v", p.NonRetryableErrorTypes)
	}
}
