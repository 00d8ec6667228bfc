package gradebook

import (
	"context"
	"fmt"

	domainagg "github.com/kotky/gradebook-edx-platform-extensions/internal/domain/aggregates"
	domainevents "github.com/kotky/gradebook-edx-platform-extensions/internal/domain/events"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/events"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/jobs/queue"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/platform/logger"
)

const (
	ReceiverScoreChanged  = "gradebook.score_changed"
	ReceiverCourseDeleted = "gradebook.course_deleted"
)

// Receivers connect platform events to gradebook work.
type Receivers struct {
	cfg Config
	log *logger.Logger
	enq queue.Enqueuer
	agg domainagg.GradebookAggregate
}

func NewReceivers(cfg Config, baseLog *logger.Logger, enq queue.Enqueuer, agg domainagg.GradebookAggregate) *Receivers {
	if baseLog == nil {
		baseLog = logger.NewNop()
	}
	return &Receivers{
		cfg: cfg,
		log: baseLog.With("component", "GradebookReceivers"),
		enq: enq,
		agg: agg,
	}
}

// Register subscribes the receivers. Calling it twice keeps one subscription
// per event.
func (r *Receivers) Register(d *events.Dispatcher) {
	if !r.cfg.Enabled {
		r.log.Info("Student gradebook disabled; receivers not registered")
		return
	}
	events.On(d, ReceiverScoreChanged, r.OnScoreChanged)
	events.On(d, ReceiverCourseDeleted, r.OnCourseDeleted)
}

// OnScoreChanged queues a recompute and returns without waiting for it.
// ScoreChanged from another process skipped the closed-course gate, so it is
// ignored; remote producers send GradePublished instead.
func (r *Receivers) OnScoreChanged(ctx context.Context, ev domainevents.ScoreChanged) error {
	if events.IsRemoteOrigin(ctx) {
		r.log.Debug("Ignoring remote score_changed", "course_id", ev.CourseKey.String(), "user_id", ev.UserID)
		return nil
	}
	if !ev.CourseKey.Valid() || ev.UserID <= 0 {
		return fmt.Errorf("gradebook: score_changed missing course key or user id")
	}
	id, err := r.enq.Enqueue(ctx, TaskUpdateUserGradebook, ev.CourseKey.String(), ev.UserID)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", TaskUpdateUserGradebook, err)
	}
	r.log.Debug("Gradebook update queued", "task_id", id, "course_id", ev.CourseKey.String(), "user_id", ev.UserID)
	return nil
}

// OnCourseDeleted removes the course's entries, then its history.
func (r *Receivers) OnCourseDeleted(ctx context.Context, ev domainevents.CourseDeleted) error {
	courseID := ev.CourseKey.String()
	res, err := r.agg.PurgeCourse(ctx, courseID)
	if err != nil {
		r.log.Error("Gradebook purge failed", "course_id", courseID, "entries_deleted", res.EntriesDeleted, "error", err)
		return err
	}
	r.log.Info("Gradebook purged", "course_id", courseID, "entries_deleted", res.EntriesDeleted, "history_deleted", res.HistoryDeleted)
	return nil
}
