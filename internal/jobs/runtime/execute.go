package runtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kotky/gradebook-edx-platform-extensions/internal/observability"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/platform/logger"
)

// Executor runs a single task attempt against the registered handler. Every
// queue backend funnels through it so panics, logging and metrics behave the
// same whichever backend delivered the task.
type Executor struct {
	Registry *Registry
	Log      *logger.Logger
	Metrics  *observability.Metrics
}

func (e *Executor) Execute(ctx context.Context, taskID, taskType string, attempt int, backend string, args []json.RawMessage) (err error) {
	start := time.Now()
	log := e.Log
	if log == nil {
		log = logger.NewNop()
	}
	log = log.With("task_id", taskID, "task_type", taskType, "attempt", attempt, "backend", backend)

	defer func() {
		if r := recover(); r != nil {
			log.Error("Task handler panic", "panic", r)
			err = &PanicError{Val: r}
		}
		status := "succeeded"
		switch {
		case err == nil:
		case IsPermanent(err):
			status = "dead"
		default:
			status = "failed"
		}
		e.Metrics.ObserveTask(taskType, status, time.Since(start))
	}()

	if e.Registry == nil {
		return Permanent(&MissingHandlerError{TaskType: taskType})
	}
	h, ok := e.Registry.Get(taskType)
	if !ok {
		log.Warn("No handler registered for task_type")
		return Permanent(&MissingHandlerError{TaskType: taskType})
	}
	return h.Run(NewContext(ctx, taskID, taskType, attempt, backend, args))
}
