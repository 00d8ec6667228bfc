package aggregates

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	gbrepo "github.com/kotky/gradebook-edx-platform-extensions/internal/data/repos/gradebook"
	domainagg "github.com/kotky/gradebook-edx-platform-extensions/internal/domain/aggregates"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/domain/gradebook"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/jsonenc"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/platform/dbctx"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/platform/logger"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type GradebookAggregateDeps struct {
	DB      *gorm.DB
	Log     *logger.Logger
	Entries gbrepo.EntryRepo
	History gbrepo.HistoryRepo
	// Metrics and SaveHooks are optional.
	Metrics   WriteMetrics
	SaveHooks domainagg.EntrySaveHooks
}

type gradebookAggregate struct {
	db        *gorm.DB
	log       *logger.Logger
	cas       CASGuard
	entries   gbrepo.EntryRepo
	history   gbrepo.HistoryRepo
	metrics   WriteMetrics
	saveHooks domainagg.EntrySaveHooks
}

func NewGradebookAggregate(deps GradebookAggregateDeps) domainagg.GradebookAggregate {
	return &gradebookAggregate{
		db:        deps.DB,
		log:       deps.Log.With("aggregate", "Gradebook"),
		cas:       NewCASGuard(deps.DB),
		entries:   deps.Entries,
		history:   deps.History,
		metrics:   deps.Metrics,
		saveHooks: deps.SaveHooks,
	}
}

func (a *gradebookAggregate) ApplyGrade(ctx context.Context, in domainagg.ApplyGradeInput) (domainagg.ApplyGradeResult, error) {
	const op = domainagg.OpApplyGrade
	courseID := strings.TrimSpace(in.CourseID)
	if in.UserID <= 0 {
		return domainagg.ApplyGradeResult{}, classify(op, ValidationError("user id is required"))
	}
	if courseID == "" {
		return domainagg.ApplyGradeResult{}, classify(op, ValidationError("course id is required"))
	}

	var current *gradebook.Entry
	snap := in.Snapshot
	if snap == nil {
		var err error
		current, err = a.entries.GetByUserCourse(dbctx.Context{Ctx: ctx}, in.UserID, courseID)
		if err != nil {
			return domainagg.ApplyGradeResult{}, classify(op, err)
		}
		snap = &domainagg.EntrySnapshot{Exists: current != nil}
		if current != nil {
			snap.Grade = current.Grade
		}
	}
	if snap.Exists && snap.Grade == in.Grade {
		return domainagg.ApplyGradeResult{Outcome: domainagg.OutcomeUnchanged, Entry: current}, nil
	}

	entry := &gradebook.Entry{
		UserID:        in.UserID,
		CourseID:      courseID,
		Grade:         in.Grade,
		ProformaGrade: in.ProformaGrade,
	}
	var err error
	if entry.ProgressSummary, err = encodeSummary(in.ProgressSummary); err != nil {
		return domainagg.ApplyGradeResult{}, classify(op, ValidationError("progress summary: "+err.Error()))
	}
	if entry.GradeSummary, err = encodeSummary(in.GradeSummary); err != nil {
		return domainagg.ApplyGradeResult{}, classify(op, ValidationError("grade summary: "+err.Error()))
	}
	if entry.GradingPolicy, err = encodeSummary(in.GradingPolicy); err != nil {
		return domainagg.ApplyGradeResult{}, classify(op, ValidationError("grading policy: "+err.Error()))
	}

	created := !snap.Exists
	if a.saveHooks != nil {
		a.saveHooks.BeforeEntrySave(ctx, entry)
	}

	err = a.inTx(ctx, op, func(dbc dbctx.Context) error {
		if created {
			if err := a.entries.Create(dbc, entry); err != nil {
				return err
			}
			return a.history.Append(dbc, gradebook.HistoryFor(entry, gradebook.HistoryActionCreated))
		}
		now := time.Now().UTC()
		ok, err := a.cas.UpdateWhere(dbc, gradebook.Entry{}.TableName(),
			map[string]any{
				"user_id":   entry.UserID,
				"course_id": entry.CourseID,
				"grade":     snap.Grade,
			},
			map[string]any{
				"grade":            entry.Grade,
				"proforma_grade":   entry.ProformaGrade,
				"progress_summary": entry.ProgressSummary,
				"grade_summary":    entry.GradeSummary,
				"grading_policy":   entry.GradingPolicy,
				"modified":         now,
			})
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "gradebook entry changed since it was read"); err != nil {
			return err
		}
		entry.ModifiedAt = now
		if current != nil {
			entry.ID = current.ID
			entry.CreatedAt = current.CreatedAt
		}
		return a.history.Append(dbc, gradebook.HistoryFor(entry, gradebook.HistoryActionUpdated))
	})
	if err != nil {
		return domainagg.ApplyGradeResult{}, err
	}

	if a.saveHooks != nil {
		a.saveHooks.AfterEntrySave(ctx, entry, created)
	}
	outcome := domainagg.OutcomeUpdated
	if created {
		outcome = domainagg.OutcomeCreated
	}
	return domainagg.ApplyGradeResult{Outcome: outcome, Entry: entry}, nil
}

func (a *gradebookAggregate) PurgeCourse(ctx context.Context, courseID string) (domainagg.PurgeCourseResult, error) {
	var res domainagg.PurgeCourseResult
	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		return res, classify(domainagg.OpPurgeEntries, ValidationError("course id is required"))
	}
	err := a.inTx(ctx, domainagg.OpPurgeEntries, func(dbc dbctx.Context) error {
		n, err := a.entries.DeleteByCourse(dbc, courseID)
		res.EntriesDeleted = n
		return err
	})
	if err != nil {
		return res, err
	}
	err = a.inTx(ctx, domainagg.OpPurgeHistory, func(dbc dbctx.Context) error {
		n, err := a.history.DeleteByCourse(dbc, courseID)
		res.HistoryDeleted = n
		return err
	})
	return res, err
}

func encodeSummary(raw json.RawMessage) (datatypes.JSON, error) {
	if len(raw) == 0 {
		return datatypes.JSON("{}"), nil
	}
	return jsonenc.Encode(raw)
}
