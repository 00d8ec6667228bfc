package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/kotky/gradebook-edx-platform-extensions/internal/courseware"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/data/aggregates"
	domainagg "github.com/kotky/gradebook-edx-platform-extensions/internal/domain/aggregates"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/events"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/gradebook"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/jobs/queue"
	jobrt "github.com/kotky/gradebook-edx-platform-extensions/internal/jobs/runtime"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/jobs/worker"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/observability"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/platform/logger"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/temporalx/temporalworker"
)

type Services struct {
	Events     *events.Dispatcher
	Gradebook  domainagg.GradebookAggregate
	Registry   *jobrt.Registry
	Queue      queue.Enqueuer
	Receivers  *gradebook.Receivers
	Courseware *courseware.GradePublisher

	// At most one of these is set, and only when RUN_WORKER is on.
	JobWorker      *worker.Worker
	TemporalWorker *temporalworker.Runner
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, repos Repos, clients Clients, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	dispatcher := events.NewDispatcher(log, metrics)

	var saveHooks domainagg.EntrySaveHooks
	if cfg.Gradebook.NotificationsEnabled {
		notifier := gradebook.NewEventNotifier(dispatcher, log, metrics)
		saveHooks = gradebook.NewLeaderboardHooks(cfg.Gradebook, log, repos.GradebookEntry, repos.User, notifier)
	}
	agg := aggregates.NewGradebookAggregate(aggregates.GradebookAggregateDeps{
		DB:        db,
		Log:       log,
		Metrics:   metrics,
		Entries:   repos.GradebookEntry,
		History:   repos.GradebookHistory,
		SaveHooks: saveHooks,
	})

	registry := jobrt.NewRegistry()
	if cfg.Gradebook.Enabled {
		task := gradebook.NewUpdateTask(log, repos.User, clients.Grades, agg, metrics)
		if err := registry.Register(task); err != nil {
			return Services{}, err
		}
	}
	executor := &jobrt.Executor{Registry: registry, Log: log, Metrics: metrics}

	out := Services{
		Events:    dispatcher,
		Gradebook: agg,
		Registry:  registry,
	}

	switch cfg.Queue.Backend {
	case queue.BackendInline:
		out.Queue = queue.NewInline(executor, log, metrics)
	case queue.BackendDB:
		out.Queue = queue.NewDB(repos.JobRun, metrics)
		if cfg.RunWorker {
			out.JobWorker = worker.NewWorker(log, repos.JobRun, executor, worker.Options{
				Concurrency:  cfg.Queue.Concurrency,
				PollInterval: cfg.Queue.PollInterval,
				Retry:        cfg.Queue.Retry,
			})
		}
	case queue.BackendTemporal:
		if clients.Temporal == nil {
			return Services{}, fmt.Errorf("temporal queue backend requires a temporal client")
		}
		out.Queue = queue.NewTemporal(clients.Temporal, cfg.Temporal.TaskQueue, cfg.Queue.Retry, metrics)
		if cfg.RunWorker {
			r, err := temporalworker.NewRunner(log, clients.Temporal, cfg.Temporal, executor, metrics, cfg.Queue.Concurrency)
			if err != nil {
				return Services{}, fmt.Errorf("init temporal worker: %w", err)
			}
			out.TemporalWorker = r
		}
	default:
		return Services{}, queue.ValidateBackend(cfg.Queue.Backend)
	}

	out.Receivers = gradebook.NewReceivers(cfg.Gradebook, log, out.Queue, agg)
	out.Receivers.Register(dispatcher)

	if clients.Grades != nil {
		out.Courseware = courseware.NewGradePublisher(cfg.Gradebook, log, clients.Grades, repos.User, dispatcher)
		out.Courseware.Register(dispatcher)
	}

	return out, nil
}
