package gradebook

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/kotky/gradebook-edx-platform-extensions/internal/coursekey"
	userrepo "github.com/kotky/gradebook-edx-platform-extensions/internal/data/repos/user"
	domainagg "github.com/kotky/gradebook-edx-platform-extensions/internal/domain/aggregates"
	jobrt "github.com/kotky/gradebook-edx-platform-extensions/internal/jobs/runtime"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/observability"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/platform/logger"
)

const TaskUpdateUserGradebook = "gradebook.update_user_gradebook"

// UpdateTask recomputes one learner's gradebook entry for one course. Its
// arguments are the positional pair (course_key string, user_id int).
type UpdateTask struct {
	log     *logger.Logger
	users   userrepo.UserRepo
	engine  Engine
	agg     domainagg.GradebookAggregate
	metrics *observability.Metrics
}

func NewUpdateTask(baseLog *logger.Logger, users userrepo.UserRepo, engine Engine, agg domainagg.GradebookAggregate, metrics *observability.Metrics) *UpdateTask {
	if baseLog == nil {
		baseLog = logger.NewNop()
	}
	return &UpdateTask{
		log:     baseLog.With("job", TaskUpdateUserGradebook),
		users:   users,
		engine:  engine,
		agg:     agg,
		metrics: metrics,
	}
}

func (t *UpdateTask) Type() string { return TaskUpdateUserGradebook }

func (t *UpdateTask) Run(rc *jobrt.Context) error {
	if rc == nil {
		return jobrt.Permanentf("%s: nil task context", TaskUpdateUserGradebook)
	}
	rawKey, err := rc.ArgString(0)
	if err != nil {
		t.log.Warn("Rejecting gradebook update", "task_id", rc.TaskID, "error", err)
		return err
	}
	key, err := coursekey.Parse(rawKey)
	if err != nil {
		t.log.Warn("Rejecting gradebook update", "task_id", rc.TaskID, "error", err)
		return jobrt.Permanent(err)
	}
	userID, err := rc.ArgInt64(1)
	if err != nil {
		t.log.Warn("Rejecting gradebook update", "task_id", rc.TaskID, "error", err)
		return err
	}

	ctx, span := observability.StartSpan(rc.Ctx, TaskUpdateUserGradebook,
		attribute.String("gradebook.course_id", key.String()),
		attribute.Int64("gradebook.user_id", userID),
		attribute.Int("task.attempt", rc.Attempt),
	)
	defer span.End()

	log := t.log.With("task_id", rc.TaskID, "course_id", key.String(), "user_id", userID)

	outcome, err := t.update(ctx, userID, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		t.metrics.IncGradebookWrite("error")
		log.Error("Gradebook update failed", "error", err)
		return err
	}
	span.SetAttributes(attribute.String("gradebook.outcome", outcome))
	t.metrics.IncGradebookWrite(outcome)
	log.Debug("Gradebook update done", "outcome", outcome)
	return nil
}

func (t *UpdateTask) update(ctx context.Context, userID int64, key coursekey.CourseKey) (string, error) {
	if _, err := t.users.GetByID(ctx, nil, userID); err != nil {
		// A user row can lag behind the event that named it, so this stays retryable.
		return "", fmt.Errorf("load user: %w", err)
	}

	course, err := t.engine.Course(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCourseNotFound) {
			return "", jobrt.Permanent(err)
		}
		return "", fmt.Errorf("load course: %w", err)
	}
	progress, err := t.engine.ProgressSummary(ctx, userID, course)
	if err != nil {
		return "", fmt.Errorf("progress summary: %w", err)
	}
	summary, err := t.engine.Grade(ctx, userID, course)
	if err != nil {
		return "", fmt.Errorf("grade: %w", err)
	}
	proforma, err := t.engine.ProformaGrade(ctx, summary, course.GradingPolicy)
	if err != nil {
		return "", fmt.Errorf("proforma grade: %w", err)
	}

	res, err := t.agg.ApplyGrade(ctx, domainagg.ApplyGradeInput{
		UserID:          userID,
		CourseID:        key.String(),
		Grade:           summary.Percent,
		ProformaGrade:   proforma,
		ProgressSummary: progress,
		GradeSummary:    summary.Raw,
		GradingPolicy:   course.GradingPolicy,
	})
	if err != nil {
		if domainagg.IsCode(err, domainagg.CodeValidation) {
			return "", jobrt.Permanent(err)
		}
		return "", err
	}
	return res.Outcome, nil
}
