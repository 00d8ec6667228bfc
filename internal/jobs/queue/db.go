package queue

import (
	"context"
	"encoding/json"
	"fmt"

	jobsrepo "github.com/kotky/gradebook-edx-platform-extensions/internal/data/repos/jobs"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/domain/jobs"
	jobrt "github.com/kotky/gradebook-edx-platform-extensions/internal/jobs/runtime"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/observability"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/platform/dbctx"
)

// DB persists tasks as job_run rows for the worker pool in internal/jobs/worker.
type DB struct {
	repo    jobsrepo.JobRunRepo
	metrics *observability.Metrics
}

func NewDB(repo jobsrepo.JobRunRepo, metrics *observability.Metrics) *DB {
	return &DB{repo: repo, metrics: metrics}
}

func (q *DB) Enqueue(ctx context.Context, taskType string, args ...any) (string, error) {
	raw, err := jobrt.EncodeArgs(args...)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		return "", fmt.Errorf("encode task payload: %w", err)
	}
	rows, err := q.repo.Create(dbctx.Background(ctx), []*jobs.JobRun{{
		JobType: taskType,
		Status:  jobs.StatusQueued,
		Payload: payload,
	}})
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	q.metrics.IncTaskEnqueued(taskType, BackendDB)
	return rows[0].ID.String(), nil
}
