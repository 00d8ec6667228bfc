package worker

import (
	"context"
	"sync"
	"time"

	jobsrepo "github.com/kotky/gradebook-edx-platform-extensions/internal/data/repos/jobs"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/domain/jobs"
	jobrt "github.com/kotky/gradebook-edx-platform-extensions/internal/jobs/runtime"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/jobs/queue"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/platform/dbctx"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/platform/logger"
)

type Options struct {
	Concurrency  int
	PollInterval time.Duration
	Heartbeat    time.Duration
	Retry        queue.RetryPolicy
}

// Worker polls job_run for runnable tasks and executes them.
type Worker struct {
	log      *logger.Logger
	repo     jobsrepo.JobRunRepo
	executor *jobrt.Executor
	opts     Options
	wg       sync.WaitGroup
}

func NewWorker(baseLog *logger.Logger, repo jobsrepo.JobRunRepo, executor *jobrt.Executor, opts Options) *Worker {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 30 * time.Second
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = queue.DefaultRetryPolicy()
	}
	return &Worker{
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		executor: executor,
		opts:     opts,
	}
}

// Start launches the worker pool. It returns immediately; Wait blocks until
// every loop has exited after ctx is done.
func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Starting job worker pool", "concurrency", w.opts.Concurrency)
	for i := 0; i < w.opts.Concurrency; i++ {
		workerID := i + 1
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.runLoop(ctx, workerID)
		}()
	}
}

func (w *Worker) Wait() { w.wg.Wait() }

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			for w.RunOnce(ctx) {
				if ctx.Err() != nil {
					return
				}
			}
		}
	}
}

// RunOnce claims and executes at most one run. It reports whether a run was
// claimed so callers can drain the queue without waiting for the next tick.
func (w *Worker) RunOnce(ctx context.Context) bool {
	dbc := dbctx.Background(ctx)
	policy := w.opts.Retry
	run, err := w.repo.ClaimNextRunnable(dbc, policy.MaxAttempts, policy.StaleRunning)
	if err != nil {
		w.log.Warn("ClaimNextRunnable failed", "error", err)
		return false
	}
	if run == nil {
		return false
	}

	args, err := jobrt.DecodeArgs(run.Payload)
	if err == nil {
		stopHB := w.startHeartbeat(ctx, run)
		err = w.executor.Execute(ctx, run.ID.String(), run.JobType, run.Attempts, queue.BackendDB, args)
		stopHB()
	}

	if err == nil {
		if mErr := w.repo.MarkSucceeded(dbc, run.ID); mErr != nil {
			w.log.Error("MarkSucceeded failed", "job_id", run.ID, "error", mErr)
		}
		return true
	}

	status, mErr := w.repo.MarkFailed(dbc, run.ID, err, jobrt.IsPermanent(err), policy.MaxAttempts, policy.Backoff(run.Attempts))
	if mErr != nil {
		w.log.Error("MarkFailed failed", "job_id", run.ID, "error", mErr)
		return true
	}
	if status == jobs.StatusDead {
		w.log.Error("Task dead", "job_id", run.ID, "job_type", run.JobType, "attempts", run.Attempts, "error", err)
	} else {
		w.log.Warn("Task failed; will retry", "job_id", run.ID, "job_type", run.JobType, "attempts", run.Attempts, "retry_in", policy.Backoff(run.Attempts).String(), "error", err)
	}
	return true
}

func (w *Worker) startHeartbeat(ctx context.Context, run *jobs.JobRun) func() {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(w.opts.Heartbeat)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				if err := w.repo.Heartbeat(dbctx.Background(ctx), run.ID); err != nil {
					w.log.Warn("Heartbeat failed", "job_id", run.ID, "error", err)
				}
			}
		}
	}()
	return func() { close(done) }
}
