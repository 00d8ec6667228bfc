package courseware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kotky/gradebook-edx-platform-extensions/internal/coursekey"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/data/repos/testutil"
	userrepo "github.com/kotky/gradebook-edx-platform-extensions/internal/data/repos/user"
	domainevents "github.com/kotky/gradebook-edx-platform-extensions/internal/domain/events"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/domain/user"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/events"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/gradebook"
)

var course = coursekey.MustParse("course-v1:edX+DemoX+Demo_2014")

type courses map[string]*gradebook.Course

func (c courses) Course(_ context.Context, key coursekey.CourseKey) (*gradebook.Course, error) {
	if found, ok := c[key.String()]; ok {
		return found, nil
	}
	return nil, gradebook.ErrCourseNotFound
}

type captured struct {
	evs    []domainevents.Event
	remote int
}

func (c *captured) Publish(ctx context.Context, ev domainevents.Event) error {
	c.evs = append(c.evs, ev)
	if events.IsRemoteOrigin(ctx) {
		c.remote++
	}
	return nil
}

func date(y int) *time.Time {
	t := time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC)
	return &t
}

func newPublisher(t *testing.T, cfg gradebook.Config, start, end *time.Time) (*GradePublisher, *captured, context.Context) {
	t.Helper()
	db := testutil.DB(t)
	ctx := context.Background()
	testutil.SeedUser(t, ctx, db, 1)
	testutil.SeedAdmin(t, ctx, db, 2)
	testutil.SeedUser(t, ctx, db, 3)
	testutil.SeedCourseRole(t, ctx, db, 3, course.String(), user.RoleStaff)

	out := &captured{}
	p := NewGradePublisher(cfg, testutil.Logger(t), courses{
		course.String(): {Key: course, Start: start, End: end},
	}, userrepo.NewUserRepo(db, testutil.Logger(t)), out)
	p.now = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }
	return p, out, ctx
}

func grade(userID int64) GradeEvent {
	return GradeEvent{UserID: userID, UsageKey: course.MakeUsageKey("problem", "homework_problem_1"), Value: 0.75, MaxValue: 1}
}

func TestPublishGradeOpenAndUnstartedCourses(t *testing.T) {
	for name, dates := range map[string][2]*time.Time{
		"open":        {date(2010), date(3000)},
		"not started": {date(3000), date(3000)},
		"no dates":    {nil, nil},
	} {
		p, out, ctx := newPublisher(t, gradebook.DefaultConfig(), dates[0], dates[1])
		got, err := p.PublishGrade(ctx, grade(1))
		if err != nil || got != OutcomePublished {
			t.Fatalf("%s: got %q, %v", name, got, err)
		}
		if len(out.evs) != 1 {
			t.Fatalf("%s: want one event, got %d", name, len(out.evs))
		}
		ev, ok := out.evs[0].(domainevents.ScoreChanged)
		if !ok || ev.UserID != 1 || ev.CourseKey != course || ev.Points != 0.75 {
			t.Fatalf("%s: unexpected event %+v", name, out.evs[0])
		}
	}
}

func TestPublishGradeClosedCourse(t *testing.T) {
	cases := []struct {
		name   string
		userID int64
		allow  bool
		want   Outcome
	}{
		{"student dropped", 1, false, OutcomeCourseClosed},
		{"admin passes", 2, false, OutcomePublished},
		{"course staff passes", 3, false, OutcomePublished},
		{"student allowed by flag", 1, true, OutcomePublished},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := gradebook.DefaultConfig()
			cfg.AllowStudentStateUpdatesOnClosedCourse = tc.allow
			p, out, ctx := newPublisher(t, cfg, date(2010), date(2011))
			got, err := p.PublishGrade(ctx, grade(tc.userID))
			if err != nil {
				t.Fatalf("PublishGrade: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
			wantEvents := 0
			if tc.want == OutcomePublished {
				wantEvents = 1
			}
			if len(out.evs) != wantEvents {
				t.Fatalf("want %d events, got %d", wantEvents, len(out.evs))
			}
		})
	}
}

func TestPublishGradeSignalDisabled(t *testing.T) {
	cfg := gradebook.DefaultConfig()
	cfg.SignalOnScoreChanged = false
	p, out, ctx := newPublisher(t, cfg, nil, nil)
	got, err := p.PublishGrade(ctx, grade(1))
	if err != nil || got != OutcomeSignalDisabled || len(out.evs) != 0 {
		t.Fatalf("got %q, %v, %d events", got, err, len(out.evs))
	}
}

func TestPublishGradeRejectsBadInput(t *testing.T) {
	p, _, ctx := newPublisher(t, gradebook.DefaultConfig(), nil, nil)
	bad := []GradeEvent{
		{UserID: 0, UsageKey: grade(1).UsageKey, Value: 1, MaxValue: 1},
		{UserID: 1, Value: 1, MaxValue: 1},
		{UserID: 1, UsageKey: grade(1).UsageKey, Value: 2, MaxValue: 1},
	}
	// i4x usage keys carry no run, so their course cannot be graded.
	legacy, err := coursekey.ParseUsageKey("i4x://edX/DemoX/problem/p1")
	if err != nil {
		t.Fatalf("ParseUsageKey: %v", err)
	}
	bad = append(bad, GradeEvent{UserID: 1, UsageKey: legacy, Value: 1, MaxValue: 1})
	for i, ev := range bad {
		if _, err := p.PublishGrade(ctx, ev); !errors.Is(err, ErrInvalidGrade) {
			t.Fatalf("case %d: want ErrInvalidGrade, got %v", i, err)
		}
	}

	unknown := grade(1)
	unknown.UsageKey = coursekey.MustParse("course-v1:edX+Gone+2001").MakeUsageKey("problem", "p1")
	if _, err := p.PublishGrade(ctx, unknown); !errors.Is(err, gradebook.ErrCourseNotFound) {
		t.Fatalf("want ErrCourseNotFound, got %v", err)
	}
}

func TestGradePublishedEventIsGated(t *testing.T) {
	p, out, ctx := newPublisher(t, gradebook.DefaultConfig(), date(2010), date(2011))
	d := events.NewDispatcher(nil, nil)
	p.Register(d)
	p.Register(d)
	if n := d.Handlers(domainevents.NameGradePublished); n != 1 {
		t.Fatalf("want 1 grade_published handler, got %d", n)
	}

	remote := events.WithRemoteOrigin(ctx)
	for _, userID := range []int64{1, 3} {
		ev := domainevents.GradePublished{UserID: userID, UsageKey: grade(userID).UsageKey, Value: 1, MaxValue: 2}
		if err := d.Publish(remote, ev); err != nil {
			t.Fatalf("publish for user %d: %v", userID, err)
		}
	}
	// The student is dropped on the closed course; course staff passes.
	if len(out.evs) != 1 {
		t.Fatalf("want 1 score_changed, got %d", len(out.evs))
	}
	sc := out.evs[0].(domainevents.ScoreChanged)
	if sc.UserID != 3 || sc.CourseKey != course || sc.Points != 1 || sc.Possible != 2 {
		t.Fatalf("unexpected event %+v", sc)
	}
	if out.remote != 0 {
		t.Fatalf("gated score_changed still marked remote")
	}

	legacy, err := coursekey.ParseUsageKey("i4x://edX/DemoX/problem/p1")
	if err != nil {
		t.Fatalf("ParseUsageKey: %v", err)
	}
	if err := d.Publish(remote, domainevents.GradePublished{UserID: 3, UsageKey: legacy, Value: 1, MaxValue: 1}); err != nil {
		t.Fatalf("invalid publication should be dropped, got %v", err)
	}
	if len(out.evs) != 1 {
		t.Fatalf("run-less usage key produced an event")
	}
}
