// Package taskrun runs one queued task as a Temporal workflow whose single
// activity invokes the registered task handler, with Temporal owning retries.
package taskrun

import (
	"encoding/json"
	"time"
)

const (
	WorkflowName    = "task_run"
	ActivityExecute = "task_run_execute"

	// ErrTypePermanent is the application error type that disables retries.
	ErrTypePermanent = "PermanentTaskError"
)

type Input struct {
	TaskID   string            `json:"task_id"`
	TaskType string            `json:"task_type"`
	Args     []json.RawMessage `json:"args"`
	Retry    RetryPolicy       `json:"retry"`
}

// RetryPolicy mirrors the queue-wide retry settings. Zero values fall back to
// the defaults below.
type RetryPolicy struct {
	MaxAttempts     int           `json:"max_attempts"`
	InitialInterval time.Duration `json:"initial_interval"`
	MaximumInterval time.Duration `json:"maximum_interval"`
}

const (
	defaultMaxAttempts     = 5
	defaultInitialInterval = time.Second
	defaultMaximumInterval = time.Minute
)
