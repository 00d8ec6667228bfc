package gradebook

import (
	"context"
	"testing"
	"time"

	"github.com/kotky/gradebook-edx-platform-extensions/internal/data/repos/testutil"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/domain/gradebook"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/platform/dbctx"
)

const (
	courseA = "course-v1:edX+DemoX+Demo_2014"
	courseB = "course-v1:edX+Other+2015"
)

func TestEntryRepoCreateGetDelete(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewEntryRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: db}

	got, err := repo.GetByUserCourse(dbc, 1, courseA)
	if err != nil {
		t.Fatalf("GetByUserCourse(missing): %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing entry, got=%+v", got)
	}

	entry := &gradebook.Entry{
		UserID:          1,
		CourseID:        courseA,
		Grade:           0.31,
		ProformaGrade:   0.8831666666666667,
		ProgressSummary: []byte(`[{"url_name":"Overview","sections":[]}]`),
	}
	if err := repo.Create(dbc, entry); err != nil {
		t.Fatalf("Create: %v", err)
	}
	testutil.SeedEntry(t, ctx, db, 2, courseA, 0.1)
	testutil.SeedEntry(t, ctx, db, 1, courseB, 0.2)

	got, err = repo.GetByUserCourse(dbc, 1, courseA)
	if err != nil || got == nil {
		t.Fatalf("GetByUserCourse: entry=%v err=%v", got, err)
	}
	if got.ProformaGrade != 0.8831666666666667 {
		t.Fatalf("proforma grade not stored verbatim: %v", got.ProformaGrade)
	}
	if string(got.ProgressSummary) != `[{"url_name":"Overview","sections":[]}]` {
		t.Fatalf("progress summary mismatch: %s", got.ProgressSummary)
	}

	if n, err := repo.CountByCourse(dbc, courseA); err != nil || n != 2 {
		t.Fatalf("CountByCourse: n=%d err=%v", n, err)
	}
	deleted, err := repo.DeleteByCourse(dbc, courseA)
	if err != nil {
		t.Fatalf("DeleteByCourse: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("deleted: want=2 got=%d", deleted)
	}
	if n, _ := repo.CountByCourse(dbc, courseB); n != 1 {
		t.Fatalf("other course should be untouched, count=%d", n)
	}
}

func TestEntryRepoRejectsDuplicateUserCourse(t *testing.T) {
	db := testutil.DB(t)
	repo := NewEntryRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: db}

	if err := repo.Create(dbc, &gradebook.Entry{UserID: 5, CourseID: courseA, Grade: 0.1}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if err := repo.Create(dbc, &gradebook.Entry{UserID: 5, CourseID: courseA, Grade: 0.2}); err == nil {
		t.Fatalf("expected unique violation on second create")
	}
}

func TestEntryRepoUserPosition(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewEntryRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: db}

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	seed := func(userID int64, grade float64, at time.Time) {
		e := &gradebook.Entry{UserID: userID, CourseID: courseA, Grade: grade, CreatedAt: at, ModifiedAt: at}
		if err := repo.Create(dbc, e); err != nil {
			t.Fatalf("seed %d: %v", userID, err)
		}
	}
	seed(10, 0.9, base)
	seed(11, 0.5, base.Add(time.Minute))
	seed(12, 0.5, base.Add(2*time.Minute))
	seed(13, 0.2, base)
	seed(99, 0.95, base)

	cases := []struct {
		userID  int64
		exclude []int64
		want    int
	}{
		{userID: 10, want: 2},
		{userID: 10, exclude: []int64{99}, want: 1},
		{userID: 11, exclude: []int64{99}, want: 2},
		{userID: 12, exclude: []int64{99}, want: 3},
		{userID: 13, exclude: []int64{99}, want: 4},
		{userID: 14, want: 0},
	}
	for _, tc := range cases {
		got, err := repo.UserPosition(dbc, courseA, tc.userID, tc.exclude)
		if err != nil {
			t.Fatalf("UserPosition(%d): %v", tc.userID, err)
		}
		if got != tc.want {
			t.Fatalf("UserPosition(%d, exclude=%v): want=%d got=%d", tc.userID, tc.exclude, tc.want, got)
		}
	}
}
