// Package queue delivers tasks to handlers through one of three backends:
// inline (run in the caller), db (job_run table plus worker pool) or
// temporal (one workflow per task).
package queue

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	BackendInline   = "inline"
	BackendDB       = "db"
	BackendTemporal = "temporal"
)

// Enqueuer schedules a task and returns its id without waiting for it to run.
// Delivery is at-least-once.
type Enqueuer interface {
	Enqueue(ctx context.Context, taskType string, args ...any) (string, error)
}

// RetryPolicy is shared by the db and temporal backends.
type RetryPolicy struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	StaleRunning time.Duration `yaml:"stale_running"`
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  5,
		RetryDelay:   30 * time.Second,
		MaxDelay:     10 * time.Minute,
		StaleRunning: 30 * time.Minute,
	}
}

// Backoff is the wait after the given failed attempt: RetryDelay doubled per
// earlier attempt, capped at MaxDelay when MaxDelay is set.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := p.RetryDelay
	if d <= 0 {
		return 0
	}
	for i := 1; i < attempt; i++ {
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			break
		}
		d *= 2
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

func ValidateBackend(name string) error {
	switch strings.TrimSpace(name) {
	case BackendInline, BackendDB, BackendTemporal:
		return nil
	default:
		return fmt.Errorf("unknown queue backend %q", name)
	}
}
