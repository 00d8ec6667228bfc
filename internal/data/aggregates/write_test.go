package aggregates

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	gbrepo "github.com/kotky/gradebook-edx-platform-extensions/internal/data/repos/gradebook"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/data/repos/testutil"
	domainagg "github.com/kotky/gradebook-edx-platform-extensions/internal/domain/aggregates"
	"gorm.io/gorm"
)

type spyWriteMetrics struct {
	ops       []spyOp
	conflicts []string
	retries   []string
}

type spyOp struct {
	name   string
	status string
}

func (m *spyWriteMetrics) ObserveAggregateOperation(name, status string, _ time.Duration) {
	m.ops = append(m.ops, spyOp{name: name, status: status})
}

func (m *spyWriteMetrics) IncAggregateConflict(name string) {
	m.conflicts = append(m.conflicts, name)
}

func (m *spyWriteMetrics) IncAggregateRetry(name string) {
	m.retries = append(m.retries, name)
}

func newMeteredAggregate(t *testing.T, db *gorm.DB) (domainagg.GradebookAggregate, *spyWriteMetrics) {
	t.Helper()
	log := testutil.Logger(t)
	m := &spyWriteMetrics{}
	agg := NewGradebookAggregate(GradebookAggregateDeps{
		DB:      db,
		Log:     log,
		Entries: gbrepo.NewEntryRepo(db, log),
		History: gbrepo.NewHistoryRepo(db, log),
		Metrics: m,
	})
	return agg, m
}

func TestApplyGradeRecordsWriteOutcomes(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	testutil.SeedEntry(t, ctx, db, 4, testCourse, 0.5)
	agg, m := newMeteredAggregate(t, db)

	snap := &domainagg.EntrySnapshot{Exists: true, Grade: 0.5}
	if _, err := agg.ApplyGrade(ctx, domainagg.ApplyGradeInput{UserID: 4, CourseID: testCourse, Grade: 0.7, Snapshot: snap}); err != nil {
		t.Fatalf("ApplyGrade: %v", err)
	}
	_, err := agg.ApplyGrade(ctx, domainagg.ApplyGradeInput{UserID: 4, CourseID: testCourse, Grade: 0.9, Snapshot: snap})
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("stale write: want conflict got=%v", err)
	}

	want := []spyOp{{"apply_grade", "success"}, {"apply_grade", "conflict"}}
	if fmt.Sprint(m.ops) != fmt.Sprint(want) {
		t.Fatalf("ops: want=%v got=%v", want, m.ops)
	}
	if len(m.conflicts) != 1 || m.conflicts[0] != "apply_grade" {
		t.Fatalf("conflicts: %v", m.conflicts)
	}
	if len(m.retries) != 0 {
		t.Fatalf("retries: %v", m.retries)
	}

	var we *domainagg.WriteError
	if !errors.As(err, &we) || we.Op != domainagg.OpApplyGrade {
		t.Fatalf("want *WriteError for apply_grade, got %T %v", err, err)
	}
}

func TestApplyGradeValidationIsNotObserved(t *testing.T) {
	agg, m := newMeteredAggregate(t, testutil.DB(t))
	_, err := agg.ApplyGrade(context.Background(), domainagg.ApplyGradeInput{CourseID: testCourse})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("missing user: want validation got=%v", err)
	}
	if len(m.ops) != 0 {
		t.Fatalf("rejected input reached a transaction: %v", m.ops)
	}
}

func TestPurgeCourseRecordsBothDeletes(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	agg, m := newMeteredAggregate(t, db)
	if _, err := agg.ApplyGrade(ctx, domainagg.ApplyGradeInput{UserID: 1, CourseID: testCourse, Grade: 0.2}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := agg.PurgeCourse(ctx, testCourse); err != nil {
		t.Fatalf("PurgeCourse: %v", err)
	}
	want := []spyOp{
		{"apply_grade", "success"},
		{"purge_course.entries", "success"},
		{"purge_course.history", "success"},
	}
	if fmt.Sprint(m.ops) != fmt.Sprint(want) {
		t.Fatalf("ops: want=%v got=%v", want, m.ops)
	}
}

func TestPurgeCourseCancelledIsRetryable(t *testing.T) {
	agg, m := newMeteredAggregate(t, testutil.DB(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := agg.PurgeCourse(ctx, testCourse)
	if !domainagg.IsCode(err, domainagg.CodeRetryable) {
		t.Fatalf("want retryable got=%v", err)
	}
	// The history delete never runs once the entries delete fails.
	if len(m.ops) != 1 || m.ops[0] != (spyOp{"purge_course.entries", "retryable"}) {
		t.Fatalf("ops: %v", m.ops)
	}
	if len(m.retries) != 1 || m.retries[0] != "purge_course.entries" {
		t.Fatalf("retries: %v", m.retries)
	}
}

func TestApplyGradeWithoutDatabaseIsInternal(t *testing.T) {
	log := testutil.Logger(t)
	agg := NewGradebookAggregate(GradebookAggregateDeps{
		Log:     log,
		Entries: gbrepo.NewEntryRepo(nil, log),
		History: gbrepo.NewHistoryRepo(nil, log),
	})
	_, err := agg.ApplyGrade(context.Background(), domainagg.ApplyGradeInput{
		UserID:   1,
		CourseID: testCourse,
		Grade:    0.4,
		Snapshot: &domainagg.EntrySnapshot{},
	})
	if !domainagg.IsCode(err, domainagg.CodeInternal) {
		t.Fatalf("want internal got=%v", err)
	}
}

func TestClassifyDriverErrors(t *testing.T) {
	cases := []struct {
		err  error
		want domainagg.ErrorCode
	}{
		{&pgconn.PgError{Code: "23505"}, domainagg.CodeConflict},
		{&pgconn.PgError{Code: "23503"}, domainagg.CodeValidation},
		{&pgconn.PgError{Code: "40P01"}, domainagg.CodeRetryable},
		{errors.New("UNIQUE constraint failed: gradebook_studentgradebook.user_id"), domainagg.CodeConflict},
		{errors.New("database is locked"), domainagg.CodeRetryable},
		{context.DeadlineExceeded, domainagg.CodeRetryable},
		{errors.New("disk full"), domainagg.CodeInternal},
	}
	for _, tc := range cases {
		if got := domainagg.CodeOf(classify(domainagg.OpApplyGrade, tc.err)); got != tc.want {
			t.Fatalf("%v: want=%s got=%s", tc.err, tc.want, got)
		}
	}

	in := &domainagg.WriteError{Code: domainagg.CodeRetryable, Op: domainagg.OpPurgeHistory}
	if out := classify(domainagg.OpApplyGrade, in); out != error(in) {
		t.Fatalf("write errors must pass through unchanged")
	}
}
