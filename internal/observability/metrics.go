package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/kotky/gradebook-edx-platform-extensions/internal/domain"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/platform/logger"
)

type Metrics struct {
	apiRequests  *CounterVec
	apiLatency   *HistogramVec
	apiInflight  *Gauge
	taskRuns     *CounterVec
	taskLatency  *HistogramVec
	taskEnqueued *CounterVec
	activityTime *HistogramVec
	workerTotal  *Counter
	workerError  *Counter

	gradebookWrites   *CounterVec
	leaderboardEnters *Counter
	eventDispatches   *CounterVec
	busMessages       *CounterVec

	aggregateOps       *HistogramVec
	aggregateConflicts *CounterVec
	aggregateRetries   *CounterVec

	queueDepth *GaugeVec
	pgStats    *GaugeVec
	redisUp    *Gauge
	redisPing  *Gauge

	scrapeInterval time.Duration
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Current returns the process-wide registry, or nil when metrics are disabled.
func Current() *Metrics {
	return instance
}

// Init builds the process-wide registry once. It returns nil when disabled;
// every method on a nil *Metrics is a no-op.
func Init(log *logger.Logger, enabled bool, scrapeInterval time.Duration) *Metrics {
	if !enabled {
		return nil
	}
	initOnce.Do(func() {
		instance = New(scrapeInterval)
		if log != nil {
			log.Info("Observability metrics enabled")
		}
	})
	return instance
}

// New builds a standalone registry.
func New(scrapeInterval time.Duration) *Metrics {
	if scrapeInterval <= 0 {
		scrapeInterval = 10 * time.Second
	}
	return &Metrics{
		apiRequests: NewCounterVec("gb_http_requests_total", "Ops HTTP requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"gb_http_request_duration_seconds",
			"Ops HTTP request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		),
		apiInflight: NewGauge("gb_http_inflight_requests", "In-flight ops HTTP requests."),
		taskRuns:    NewCounterVec("gb_task_runs_total", "Task executions by task/status.", []string{"task", "status"}),
		taskLatency: NewHistogramVec(
			"gb_task_duration_seconds",
			"Task execution time in seconds by task/status.",
			[]string{"task", "status"},
			[]float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		),
		taskEnqueued: NewCounterVec("gb_task_enqueued_total", "Tasks enqueued by task/backend.", []string{"task", "backend"}),
		activityTime: NewHistogramVec(
			"gb_worker_activity_duration_seconds",
			"Worker activity duration in seconds.",
			[]string{"activity", "job_type", "status"},
			[]float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		),
		workerTotal:       NewCounter("gb_worker_activity_total", "Total worker activities."),
		workerError:       NewCounter("gb_worker_activity_error_total", "Total worker activities with failure status."),
		gradebookWrites:   NewCounterVec("gb_gradebook_writes_total", "Gradebook entry writes by outcome.", []string{"outcome"}),
		leaderboardEnters: NewCounter("gb_leaderboard_entered_total", "Learners who entered the course leaderboard."),
		eventDispatches:   NewCounterVec("gb_event_dispatch_total", "Event dispatches by event/status.", []string{"event", "status"}),
		busMessages:       NewCounterVec("gb_bus_messages_total", "Event bus messages by direction/event/status.", []string{"direction", "event", "status"}),
		aggregateOps: NewHistogramVec(
			"gb_aggregate_operation_duration_seconds",
			"Aggregate write duration in seconds by operation/status.",
			[]string{"operation", "status"},
			[]float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		),
		aggregateConflicts: NewCounterVec("gb_aggregate_conflicts_total", "Aggregate compare-and-swap conflicts by operation.", []string{"operation"}),
		aggregateRetries:   NewCounterVec("gb_aggregate_retryable_total", "Aggregate retryable failures by operation.", []string{"operation"}),
		queueDepth:         NewGaugeVec("gb_job_queue_depth", "Job queue depth by status.", []string{"status"}),
		pgStats:            NewGaugeVec("gb_db_stats", "Database connection pool stats.", []string{"metric"}),
		redisUp:            NewGauge("gb_redis_up", "Redis connectivity (1=up, 0=down)."),
		redisPing:          NewGauge("gb_redis_ping_seconds", "Redis ping latency in seconds."),
		scrapeInterval:     scrapeInterval,
	}
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

type promWriter interface {
	WritePrometheus(w io.Writer) error
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []promWriter{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.taskRuns, m.taskLatency, m.taskEnqueued,
		m.activityTime, m.workerTotal, m.workerError,
		m.gradebookWrites, m.leaderboardEnters,
		m.eventDispatches, m.busMessages,
		m.aggregateOps, m.aggregateConflicts, m.aggregateRetries,
		m.queueDepth, m.pgStats, m.redisUp, m.redisPing,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveTask(task, status string, dur time.Duration) {
	if m == nil {
		return
	}
	task = orUnknown(task)
	status = orUnknown(status)
	m.taskRuns.Inc(task, status)
	m.taskLatency.Observe(dur.Seconds(), task, status)
}

func (m *Metrics) IncTaskEnqueued(task, backend string) {
	if m == nil {
		return
	}
	m.taskEnqueued.Inc(orUnknown(task), orUnknown(backend))
}

func (m *Metrics) ObserveActivity(activityName, jobType, status string, dur time.Duration) {
	if m == nil {
		return
	}
	activityName = orUnknown(activityName)
	jobType = orUnknown(jobType)
	status = orUnknown(status)
	m.activityTime.Observe(dur.Seconds(), activityName, jobType, status)
	m.workerTotal.Inc()
	if isFailureStatus(status) {
		m.workerError.Inc()
	}
}

func (m *Metrics) IncGradebookWrite(outcome string) {
	if m == nil {
		return
	}
	m.gradebookWrites.Inc(orUnknown(outcome))
}

func (m *Metrics) IncLeaderboardEntered() {
	if m == nil {
		return
	}
	m.leaderboardEnters.Inc()
}

func (m *Metrics) IncEventDispatch(event, status string) {
	if m == nil {
		return
	}
	m.eventDispatches.Inc(orUnknown(event), orUnknown(status))
}

func (m *Metrics) IncBusMessage(direction, event, status string) {
	if m == nil {
		return
	}
	m.busMessages.Inc(orUnknown(direction), orUnknown(event), orUnknown(status))
}

func (m *Metrics) ObserveAggregateOperation(operation, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.aggregateOps.Observe(dur.Seconds(), orUnknown(operation), orUnknown(status))
}

func (m *Metrics) IncAggregateConflict(operation string) {
	if m == nil {
		return
	}
	m.aggregateConflicts.Inc(orUnknown(operation))
}

func (m *Metrics) IncAggregateRetry(operation string) {
	if m == nil {
		return
	}
	m.aggregateRetries.Inc(orUnknown(operation))
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(m.scrapeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: db stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.pgStats.Set(float64(stats.OpenConnections), "open_connections")
				m.pgStats.Set(float64(stats.InUse), "in_use")
				m.pgStats.Set(float64(stats.Idle), "idle")
				m.pgStats.Set(float64(stats.WaitCount), "wait_count")
				m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
				m.pgStats.Set(float64(stats.MaxOpenConnections), "max_open_connections")
			}
		}
	}()
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(m.scrapeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}

func (m *Metrics) StartJobQueueCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	statuses := []string{"queued", "running", "succeeded", "failed", "dead"}
	go func() {
		ticker := time.NewTicker(m.scrapeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, s := range statuses {
					m.queueDepth.Set(0, s)
				}
				var rows []struct {
					Status string
					Count  int64
				}
				if err := db.WithContext(ctx).
					Model(&domain.JobRun{}).
					Select("status, count(*) as count").
					Group("status").
					Scan(&rows).Error; err != nil {
					if log != nil {
						log.Warn("metrics: job queue depth query failed", "error", err)
					}
					continue
				}
				for _, row := range rows {
					m.queueDepth.Set(float64(row.Count), orUnknown(strings.TrimSpace(row.Status)))
				}
			}
		}
	}()
}

func orUnknown(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "unknown"
	}
	return v
}
