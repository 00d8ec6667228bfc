package gradebook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/kotky/gradebook-edx-platform-extensions/internal/coursekey"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/data/aggregates"
	gbrepo "github.com/kotky/gradebook-edx-platform-extensions/internal/data/repos/gradebook"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/data/repos/testutil"
	userrepo "github.com/kotky/gradebook-edx-platform-extensions/internal/data/repos/user"
	domainagg "github.com/kotky/gradebook-edx-platform-extensions/internal/domain/aggregates"
	domainevents "github.com/kotky/gradebook-edx-platform-extensions/internal/domain/events"
	gbdomain "github.com/kotky/gradebook-edx-platform-extensions/internal/domain/gradebook"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/events"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/jobs/queue"
	jobrt "github.com/kotky/gradebook-edx-platform-extensions/internal/jobs/runtime"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/platform/dbctx"
)

const demoPolicy = `{"GRADER":[{"short_label":"HW","min_count":12,"type":"Homework","drop_count":2,"weight":0.15},{"min_count":12,"type":"Lab","drop_count":2,"weight":0.15},{"short_label":"Midterm","min_count":1,"type":"Midterm Exam","drop_count":0,"weight":0.3},{"short_label":"Final","min_count":1,"type":"Final Exam","drop_count":0,"weight":0.4}],"GRADE_CUTOFFS":{"Pass":0.5}}`

var demoCourse = coursekey.MustParse("course-v1:edX+DemoX+Demo_2014")

// scoreStep is what the engine reports after one graded submission.
type scoreStep struct {
	grade    float64
	proforma float64
	section  string
	category string
}

func (s scoreStep) progress() json.RawMessage {
	return json.RawMessage(`{"chapters":[{"display_name":"Chapter 1","sections":[` + s.section + `]}]}`)
}

func (s scoreStep) summary() json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"percent":%v,"grade":null,"section_breakdown":[%s]}`, s.grade, s.category))
}

var fiveScores = []scoreStep{
	{
		grade: 0.01, proforma: 0.75,
		section:  `{"url_name":"homework_problem_1","display_name":"homework problem 1","graded":true,"format":"Homework","section_total":[0.75,1.0,false,"homework problem 1",null,null],"due":null}`,
		category: `{"category":"Homework","percent":0.75,"detail":"Homework 1 - homework problem 1 - 75% (0.75/1)","label":"HW 01"}`,
	},
	{
		grade: 0.03, proforma: 0.85,
		section:  `{"url_name":"homework_problem_2","display_name":"homework problem 2","graded":true,"format":"Homework","section_total":[0.95,1.0,false,"homework problem 2",null,null],"due":null}`,
		category: `{"category":"Homework","percent":0.95,"detail":"Homework 2 - homework problem 2 - 95% (0.95/1)","label":"HW 02"}`,
	},
	{
		grade: 0.04, proforma: 0.855,
		section:  `{"url_name":"lab_problem_1","display_name":"lab problem 1","graded":true,"format":"Lab","section_total":[0.86,1.0,false,"lab problem 1",null,null],"due":null}`,
		category: `{"category":"Lab","percent":0.86,"detail":"Lab 1 - lab problem 1 - 86% (0.86/1)","label":"Lab 01"}`,
	},
	{
		grade: 0.31, proforma: 0.8831666666666667,
		section:  `{"url_name":"midterm_problem_2","display_name":"midterm problem 2","graded":true,"format":"Midterm Exam","section_total":[0.92,1.0,false,"midterm problem 2",null,null],"due":null}`,
		category: `{"category":"Midterm Exam","prominent":true,"percent":0.92,"detail":"Midterm Exam = 92%","label":"Midterm"}`,
	},
	{
		grade: 0.66, proforma: 0.8805000000000001,
		section:  `{"url_name":"final_problem_2","display_name":"final problem 2","graded":true,"format":"Final Exam","section_total":[0.87,1.0,false,"final problem 2",null,null],"due":null}`,
		category: `{"category":"Final Exam","prominent":true,"percent":0.87,"detail":"Final Exam = 87%","label":"Final"}`,
	},
}

type fakeEngine struct {
	courses map[string]*Course
	current map[int64]scoreStep
	err     error
}

func newFakeEngine(keys ...coursekey.CourseKey) *fakeEngine {
	e := &fakeEngine{courses: map[string]*Course{}, current: map[int64]scoreStep{}}
	for _, k := range keys {
		e.courses[k.String()] = &Course{Key: k, GradingPolicy: json.RawMessage(demoPolicy)}
	}
	return e
}

func (e *fakeEngine) Course(_ context.Context, key coursekey.CourseKey) (*Course, error) {
	c, ok := e.courses[key.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCourseNotFound, key)
	}
	return c, nil
}

func (e *fakeEngine) ProgressSummary(_ context.Context, userID int64, _ *Course) (json.RawMessage, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.current[userID].progress(), nil
}

func (e *fakeEngine) Grade(_ context.Context, userID int64, _ *Course) (GradeSummary, error) {
	return ParseGradeSummary(e.current[userID].summary())
}

func (e *fakeEngine) ProformaGrade(_ context.Context, summary GradeSummary, _ json.RawMessage) (float64, error) {
	for _, s := range e.current {
		if s.grade == summary.Percent {
			return s.proforma, nil
		}
	}
	return 0, errors.New("no proforma for summary")
}

type harness struct {
	db         *gorm.DB
	entries    gbrepo.EntryRepo
	history    gbrepo.HistoryRepo
	users      userrepo.UserRepo
	agg        domainagg.GradebookAggregate
	dispatcher *events.Dispatcher
	engine     *fakeEngine
	queue      *queue.Inline
}

func newHarness(t *testing.T, cfg Config, hookUsers userrepo.UserRepo) *harness {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)

	h := &harness{
		db:         db,
		entries:    gbrepo.NewEntryRepo(db, log),
		history:    gbrepo.NewHistoryRepo(db, log),
		users:      userrepo.NewUserRepo(db, log),
		dispatcher: events.NewDispatcher(log, nil),
		engine:     newFakeEngine(demoCourse),
	}
	if hookUsers == nil {
		hookUsers = h.users
	}
	hooks := NewLeaderboardHooks(cfg, log, h.entries, hookUsers, NewEventNotifier(h.dispatcher, log, nil))
	h.agg = aggregates.NewGradebookAggregate(aggregates.GradebookAggregateDeps{
		DB:        db,
		Log:       log,
		Entries:   h.entries,
		History:   h.history,
		SaveHooks: hooks,
	})

	reg := jobrt.NewRegistry()
	if err := reg.Register(NewUpdateTask(log, h.users, h.engine, h.agg, nil)); err != nil {
		t.Fatalf("register: %v", err)
	}
	h.queue = queue.NewInline(&jobrt.Executor{Registry: reg, Log: log}, log, nil)
	h.queue.Propagate = true
	NewReceivers(cfg, log, h.queue, h.agg).Register(h.dispatcher)
	return h
}

func (h *harness) score(t *testing.T, userID int64, key coursekey.CourseKey, step scoreStep) error {
	t.Helper()
	h.engine.current[userID] = step
	return h.dispatcher.Publish(context.Background(), domainevents.ScoreChanged{UserID: userID, CourseKey: key})
}

func (h *harness) entry(t *testing.T, userID int64, key coursekey.CourseKey) *gbdomain.Entry {
	t.Helper()
	e, err := h.entries.GetByUserCourse(dbctx.Background(context.Background()), userID, key.String())
	if err != nil {
		t.Fatalf("GetByUserCourse: %v", err)
	}
	return e
}

func (h *harness) counts(t *testing.T, key coursekey.CourseKey) (int64, int64) {
	t.Helper()
	dbc := dbctx.Background(context.Background())
	entries, err := h.entries.CountByCourse(dbc, key.String())
	if err != nil {
		t.Fatalf("count entries: %v", err)
	}
	history, err := h.history.CountByCourse(dbc, key.String())
	if err != nil {
		t.Fatalf("count history: %v", err)
	}
	return entries, history
}

func TestScoreSequenceStoresEngineOutputVerbatim(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	testutil.SeedUser(t, context.Background(), h.db, 1)

	for i, step := range fiveScores {
		if err := h.score(t, 1, demoCourse, step); err != nil {
			t.Fatalf("step %d: publish: %v", i, err)
		}
		e := h.entry(t, 1, demoCourse)
		if e == nil {
			t.Fatalf("step %d: no entry", i)
		}
		if e.Grade != step.grade || e.ProformaGrade != step.proforma {
			t.Fatalf("step %d: got grade=%v proforma=%v want %v %v", i, e.Grade, e.ProformaGrade, step.grade, step.proforma)
		}
		if !strings.Contains(string(e.ProgressSummary), step.section) {
			t.Fatalf("step %d: progress summary %s lacks %s", i, e.ProgressSummary, step.section)
		}
		if !strings.Contains(string(e.GradeSummary), step.category) {
			t.Fatalf("step %d: grade summary %s lacks %s", i, e.GradeSummary, step.category)
		}
		if string(e.GradingPolicy) != demoPolicy {
			t.Fatalf("step %d: grading policy %s", i, e.GradingPolicy)
		}
	}

	entries, history := h.counts(t, demoCourse)
	if entries != 1 || history != 5 {
		t.Fatalf("want 1 entry and 5 history rows, got %d and %d", entries, history)
	}
	rows, err := h.history.ListByUserCourse(dbctx.Background(context.Background()), 1, demoCourse.String())
	if err != nil {
		t.Fatalf("ListByUserCourse: %v", err)
	}
	if rows[0].Action != "created" || rows[4].Action != "updated" || rows[4].Grade != 0.66 {
		t.Fatalf("unexpected history: first=%+v last=%+v", rows[0], rows[4])
	}
}

func TestUnchangedGradeWritesNothing(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	testutil.SeedUser(t, context.Background(), h.db, 1)

	if err := h.score(t, 1, demoCourse, fiveScores[0]); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	again := fiveScores[0]
	again.section = `{"url_name":"ungraded_change"}`
	if err := h.score(t, 1, demoCourse, again); err != nil {
		t.Fatalf("second publish: %v", err)
	}

	entries, history := h.counts(t, demoCourse)
	if entries != 1 || history != 1 {
		t.Fatalf("want 1 entry and 1 history row, got %d and %d", entries, history)
	}
	if e := h.entry(t, 1, demoCourse); strings.Contains(string(e.ProgressSummary), "ungraded_change") {
		t.Fatalf("detail fields should not refresh on an unchanged grade")
	}
}

func TestCourseDeletedPurgesOnlyThatCourse(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	ctx := context.Background()
	other := coursekey.MustParse("course-v1:edX+Other+2024")
	h.engine.courses[other.String()] = &Course{Key: other, GradingPolicy: json.RawMessage(demoPolicy)}
	testutil.SeedUser(t, ctx, h.db, 1)
	testutil.SeedUser(t, ctx, h.db, 2)

	for _, uid := range []int64{1, 2} {
		if err := h.score(t, uid, demoCourse, fiveScores[0]); err != nil {
			t.Fatalf("score demo: %v", err)
		}
		if err := h.score(t, uid, other, fiveScores[1]); err != nil {
			t.Fatalf("score other: %v", err)
		}
	}

	if err := h.dispatcher.Publish(ctx, domainevents.CourseDeleted{CourseKey: demoCourse}); err != nil {
		t.Fatalf("publish course deleted: %v", err)
	}
	if entries, history := h.counts(t, demoCourse); entries != 0 || history != 0 {
		t.Fatalf("demo course not purged: %d entries, %d history", entries, history)
	}
	if entries, history := h.counts(t, other); entries != 2 || history != 2 {
		t.Fatalf("other course touched: %d entries, %d history", entries, history)
	}
}

func TestNonStringCourseKeyIsPermanent(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	ctx := context.Background()
	testutil.SeedUser(t, ctx, h.db, 1)
	h.engine.current[1] = fiveScores[0]

	cases := []struct {
		name string
		args []any
	}{
		{"number", []any{42, int64(1)}},
		{"object", []any{map[string]string{"org": "edX"}, int64(1)}},
		{"unparsable", []any{"not a course key", int64(1)}},
		{"user id string", []any{demoCourse.String(), "1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.queue.Enqueue(ctx, TaskUpdateUserGradebook, tc.args...)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !jobrt.IsPermanent(err) {
				t.Fatalf("expected permanent error, got %v", err)
			}
		})
	}
	if entries, history := h.counts(t, demoCourse); entries != 0 || history != 0 {
		t.Fatalf("rejected input wrote rows: %d entries, %d history", entries, history)
	}
}

func TestMissingUserIsRetryable(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	err := h.score(t, 99, demoCourse, fiveScores[0])
	if err == nil {
		t.Fatalf("expected error for missing user")
	}
	if !errors.Is(err, userrepo.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if jobrt.IsPermanent(err) {
		t.Fatalf("missing user must stay retryable")
	}
	if entries, _ := h.counts(t, demoCourse); entries != 0 {
		t.Fatalf("no entry expected, got %d", entries)
	}
}

func TestUnknownCourseIsPermanent(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	testutil.SeedUser(t, context.Background(), h.db, 1)
	err := h.score(t, 1, coursekey.MustParse("course-v1:edX+Gone+2001"), fiveScores[0])
	if !errors.Is(err, ErrCourseNotFound) || !jobrt.IsPermanent(err) {
		t.Fatalf("expected permanent ErrCourseNotFound, got %v", err)
	}
}

func TestEngineFailureIsReturned(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	testutil.SeedUser(t, context.Background(), h.db, 1)
	h.engine.err = errors.New("engine down")
	err := h.score(t, 1, demoCourse, fiveScores[0])
	if err == nil || !strings.Contains(err.Error(), "engine down") {
		t.Fatalf("expected engine error, got %v", err)
	}
	if jobrt.IsPermanent(err) {
		t.Fatalf("engine failures should be retried")
	}
}

type recordingEnqueuer struct {
	taskType string
	args     []any
}

func (r *recordingEnqueuer) Enqueue(_ context.Context, taskType string, args ...any) (string, error) {
	r.taskType = taskType
	r.args = args
	return "task-1", nil
}

func TestScoreChangedEnqueuesCourseKeyAndUser(t *testing.T) {
	enq := &recordingEnqueuer{}
	d := events.NewDispatcher(nil, nil)
	NewReceivers(DefaultConfig(), nil, enq, nil).Register(d)

	if err := d.Publish(context.Background(), domainevents.ScoreChanged{UserID: 7, CourseKey: demoCourse}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if enq.taskType != TaskUpdateUserGradebook {
		t.Fatalf("task type %q", enq.taskType)
	}
	if len(enq.args) != 2 || enq.args[0] != demoCourse.String() || enq.args[1] != int64(7) {
		t.Fatalf("unexpected args %#v", enq.args)
	}
}

func TestScoreChangedRejectsRemoteAndRunlessCourses(t *testing.T) {
	enq := &recordingEnqueuer{}
	d := events.NewDispatcher(nil, nil)
	NewReceivers(DefaultConfig(), nil, enq, nil).Register(d)

	remote := events.WithRemoteOrigin(context.Background())
	if err := d.Publish(remote, domainevents.ScoreChanged{UserID: 7, CourseKey: demoCourse}); err != nil {
		t.Fatalf("publish remote: %v", err)
	}
	if enq.taskType != "" {
		t.Fatalf("remote score_changed enqueued %q", enq.taskType)
	}

	legacy, err := coursekey.ParseUsageKey("i4x://edX/DemoX/problem/p1")
	if err != nil {
		t.Fatalf("ParseUsageKey: %v", err)
	}
	if err := d.Publish(context.Background(), domainevents.ScoreChanged{UserID: 7, CourseKey: legacy.Course}); err == nil {
		t.Fatalf("run-less course accepted")
	}
	if enq.taskType != "" {
		t.Fatalf("run-less course enqueued %q", enq.taskType)
	}
}

func TestReceiversRegisterOnlyWhenEnabled(t *testing.T) {
	d := events.NewDispatcher(nil, nil)
	cfg := DefaultConfig()
	cfg.Enabled = false
	NewReceivers(cfg, nil, &recordingEnqueuer{}, nil).Register(d)
	if n := d.Handlers(domainevents.NameScoreChanged); n != 0 {
		t.Fatalf("disabled gradebook registered %d handlers", n)
	}

	cfg.Enabled = true
	r := NewReceivers(cfg, nil, &recordingEnqueuer{}, nil)
	r.Register(d)
	r.Register(d)
	if n := d.Handlers(domainevents.NameScoreChanged); n != 1 {
		t.Fatalf("want 1 score handler, got %d", n)
	}
	if n := d.Handlers(domainevents.NameCourseDeleted); n != 1 {
		t.Fatalf("want 1 course handler, got %d", n)
	}
}

func TestParseGradeSummary(t *testing.T) {
	gs, err := ParseGradeSummary(json.RawMessage(`{"percent":0.31,"grade":"Pass"}`))
	if err != nil || gs.Percent != 0.31 {
		t.Fatalf("got %+v, %v", gs, err)
	}
	if _, err := ParseGradeSummary(json.RawMessage(`{"grade":"Pass"}`)); err == nil {
		t.Fatalf("missing percent should fail")
	}
	if _, err := ParseGradeSummary(json.RawMessage(`[]`)); err == nil {
		t.Fatalf("non-object should fail")
	}
}
