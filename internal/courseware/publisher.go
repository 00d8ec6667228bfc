// Package courseware is the inbound side of grading: it turns grade
// publications from course blocks into ScoreChanged events.
package courseware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kotky/gradebook-edx-platform-extensions/internal/coursekey"
	userrepo "github.com/kotky/gradebook-edx-platform-extensions/internal/data/repos/user"
	domainevents "github.com/kotky/gradebook-edx-platform-extensions/internal/domain/events"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/domain/user"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/events"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/gradebook"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/platform/logger"
)

var ErrInvalidGrade = errors.New("invalid grade publication")

const ReceiverGradePublished = "courseware.grade_published"

// Publisher is the subset of the event dispatcher the courseware needs.
type Publisher interface {
	Publish(ctx context.Context, ev domainevents.Event) error
}

// GradeEvent is one block's grade publication for a learner.
type GradeEvent struct {
	UserID   int64
	UsageKey coursekey.UsageKey
	Value    float64
	MaxValue float64
}

type Outcome string

const (
	OutcomePublished      Outcome = "published"
	OutcomeSignalDisabled Outcome = "signal_disabled"
	OutcomeCourseClosed   Outcome = "course_closed"
)

type GradePublisher struct {
	cfg     gradebook.Config
	log     *logger.Logger
	courses gradebook.CourseLookup
	users   userrepo.UserRepo
	events  Publisher
	now     func() time.Time
}

func NewGradePublisher(cfg gradebook.Config, baseLog *logger.Logger, courses gradebook.CourseLookup, users userrepo.UserRepo, events Publisher) *GradePublisher {
	if baseLog == nil {
		baseLog = logger.NewNop()
	}
	return &GradePublisher{
		cfg:     cfg,
		log:     baseLog.With("component", "CoursewareGradePublisher"),
		courses: courses,
		users:   users,
		events:  events,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// PublishGrade validates a grade publication and announces it as
// ScoreChanged. Learner events on a closed course are dropped unless the
// platform allows late state updates; staff, admins and course staff always
// pass.
func (p *GradePublisher) PublishGrade(ctx context.Context, ev GradeEvent) (Outcome, error) {
	if ev.UserID <= 0 {
		return "", fmt.Errorf("%w: user id is required", ErrInvalidGrade)
	}
	if !ev.UsageKey.Course.Valid() {
		return "", fmt.Errorf("%w: usage key %q names no course run", ErrInvalidGrade, ev.UsageKey.String())
	}
	if ev.MaxValue < 0 || ev.Value < 0 || ev.Value > ev.MaxValue {
		return "", fmt.Errorf("%w: value %v of %v", ErrInvalidGrade, ev.Value, ev.MaxValue)
	}
	if !p.cfg.SignalOnScoreChanged {
		return OutcomeSignalDisabled, nil
	}

	key := ev.UsageKey.Course
	course, err := p.courses.Course(ctx, key)
	if err != nil {
		return "", fmt.Errorf("load course %s: %w", key, err)
	}
	if course.IsClosed(p.now()) && !p.cfg.AllowStudentStateUpdatesOnClosedCourse {
		privileged, err := p.privileged(ctx, ev.UserID, key)
		if err != nil {
			return "", err
		}
		if !privileged {
			p.log.Info("Dropping grade on closed course", "course_id", key.String(), "user_id", ev.UserID, "usage_key", ev.UsageKey.String())
			return OutcomeCourseClosed, nil
		}
	}

	// The gate ran here, so the ScoreChanged is local even when the
	// publication came over the bus.
	err = p.events.Publish(events.WithLocalOrigin(ctx), domainevents.ScoreChanged{
		UserID:    ev.UserID,
		CourseKey: key,
		UsageKey:  ev.UsageKey.String(),
		Points:    ev.Value,
		Possible:  ev.MaxValue,
	})
	if err != nil {
		return "", err
	}
	return OutcomePublished, nil
}

// Register subscribes the publisher to GradePublished, the inbound form of a
// grade publication on the event bus.
func (p *GradePublisher) Register(d *events.Dispatcher) {
	events.On(d, ReceiverGradePublished, p.OnGradePublished)
}

// OnGradePublished runs a published grade through PublishGrade. Malformed
// publications are logged and dropped.
func (p *GradePublisher) OnGradePublished(ctx context.Context, ev domainevents.GradePublished) error {
	outcome, err := p.PublishGrade(ctx, GradeEvent{
		UserID:   ev.UserID,
		UsageKey: ev.UsageKey,
		Value:    ev.Value,
		MaxValue: ev.MaxValue,
	})
	if errors.Is(err, ErrInvalidGrade) {
		p.log.Warn("Dropping invalid grade publication", "user_id", ev.UserID, "usage_key", ev.UsageKey.String(), "error", err)
		return nil
	}
	if err != nil {
		return err
	}
	p.log.Debug("Grade publication handled", "user_id", ev.UserID, "usage_key", ev.UsageKey.String(), "outcome", string(outcome))
	return nil
}

func (p *GradePublisher) privileged(ctx context.Context, userID int64, key coursekey.CourseKey) (bool, error) {
	u, err := p.users.GetByID(ctx, nil, userID)
	if err != nil {
		return false, fmt.Errorf("load user: %w", err)
	}
	if u.IsAdmin() {
		return true, nil
	}
	return p.users.HasCourseRole(ctx, nil, userID, key.String(), key.Org, user.StaffRoles)
}
