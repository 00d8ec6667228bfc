package aggregates

import (
	"context"
	"encoding/json"

	"github.com/kotky/gradebook-edx-platform-extensions/internal/domain/gradebook"
)

const (
	OutcomeCreated   = "created"
	OutcomeUpdated   = "updated"
	OutcomeUnchanged = "unchanged"
)

// GradebookAggregate owns the per-learner gradebook row and its append-only
// history. Updates are compare-and-swap on the previously read grade.
//
// Failed writes return *WriteError.
type GradebookAggregate interface {
	// ApplyGrade creates the entry when missing, rewrites it when the grade
	// differs from the snapshot, and otherwise leaves it untouched. Every write
	// appends exactly one history row in the same transaction.
	ApplyGrade(ctx context.Context, in ApplyGradeInput) (ApplyGradeResult, error)

	// PurgeCourse deletes all entries and then all history rows of a course.
	// The two deletes are independent; a failure in the second leaves the first applied.
	PurgeCourse(ctx context.Context, courseID string) (PurgeCourseResult, error)
}

type ApplyGradeInput struct {
	UserID          int64
	CourseID        string
	Grade           float64
	ProformaGrade   float64
	ProgressSummary json.RawMessage
	GradeSummary    json.RawMessage
	GradingPolicy   json.RawMessage

	// Snapshot is the entry state the write is based on. When nil the
	// aggregate reads it before deciding.
	Snapshot *EntrySnapshot
}

// EntrySnapshot is the compare side of the compare-and-swap.
type EntrySnapshot struct {
	Exists bool
	Grade  float64
}

type ApplyGradeResult struct {
	Outcome string
	Entry   *gradebook.Entry
}

type PurgeCourseResult struct {
	EntriesDeleted int64
	HistoryDeleted int64
}

// EntrySaveHooks observe gradebook writes. Implementations must not fail the
// write: errors are handled inside the hook.
type EntrySaveHooks interface {
	BeforeEntrySave(ctx context.Context, entry *gradebook.Entry)
	AfterEntrySave(ctx context.Context, entry *gradebook.Entry, created bool)
}
