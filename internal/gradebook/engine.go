package gradebook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kotky/gradebook-edx-platform-extensions/internal/coursekey"
)

var ErrCourseNotFound = errors.New("course not found")

// Course is what the gradebook needs to know about a course run.
type Course struct {
	Key coursekey.CourseKey
	// GradingPolicy is the policy document as the engine returned it.
	GradingPolicy json.RawMessage
	Start         *time.Time
	End           *time.Time
}

// IsClosed reports whether the course end date has passed at now. Courses
// without an end date never close; courses that have not started are open.
func (c *Course) IsClosed(now time.Time) bool {
	return c != nil && c.End != nil && now.After(*c.End)
}

// GradeSummary is the engine's grade result. Percent is the learner's
// weighted course grade; Raw is the full summary, stored verbatim.
type GradeSummary struct {
	Percent float64
	Raw     json.RawMessage
}

// ParseGradeSummary pulls the percent out of a raw summary object.
func ParseGradeSummary(raw json.RawMessage) (GradeSummary, error) {
	var probe struct {
		Percent *float64 `json:"percent"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return GradeSummary{}, fmt.Errorf("grade summary: %w", err)
	}
	if probe.Percent == nil {
		return GradeSummary{}, errors.New("grade summary: missing percent")
	}
	return GradeSummary{Percent: *probe.Percent, Raw: raw}, nil
}

// CourseLookup resolves a course key to its descriptor. Implementations
// return ErrCourseNotFound for unknown courses.
type CourseLookup interface {
	Course(ctx context.Context, key coursekey.CourseKey) (*Course, error)
}

// Engine is the external grading engine. It owns every grading rule; the
// gradebook only stores what it returns.
type Engine interface {
	CourseLookup
	ProgressSummary(ctx context.Context, userID int64, course *Course) (json.RawMessage, error)
	Grade(ctx context.Context, userID int64, course *Course) (GradeSummary, error)
	// ProformaGrade is the policy aware running grade over attempted work only.
	ProformaGrade(ctx context.Context, summary GradeSummary, policy json.RawMessage) (float64, error)
}
