package gradebook

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/kotky/gradebook-edx-platform-extensions/internal/domain/gradebook"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/platform/dbctx"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/platform/logger"
)

type EntryRepo interface {
	GetByUserCourse(dbc dbctx.Context, userID int64, courseID string) (*gradebook.Entry, error)
	CountByCourse(dbc dbctx.Context, courseID string) (int64, error)
	Create(dbc dbctx.Context, entry *gradebook.Entry) error
	DeleteByCourse(dbc dbctx.Context, courseID string) (int64, error)
	// UserPosition is the learner's 1-based rank in the course, ignoring
	// excluded users. Ties go to whoever reached the grade first. Learners
	// without an entry are unranked (0).
	UserPosition(dbc dbctx.Context, courseID string, userID int64, excludeUserIDs []int64) (int, error)
}

type entryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEntryRepo(db *gorm.DB, baseLog *logger.Logger) EntryRepo {
	return &entryRepo{
		db:  db,
		log: baseLog.With("repo", "GradebookEntryRepo"),
	}
}

func (r *entryRepo) GetByUserCourse(dbc dbctx.Context, userID int64, courseID string) (*gradebook.Entry, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var entry gradebook.Entry
	err := transaction.WithContext(dbc.Ctx).
		Where("user_id = ? AND course_id = ?", userID, strings.TrimSpace(courseID)).
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *entryRepo) CountByCourse(dbc dbctx.Context, courseID string) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&gradebook.Entry{}).
		Where("course_id = ?", strings.TrimSpace(courseID)).
		Count(&n).Error
	return n, err
}

func (r *entryRepo) Create(dbc dbctx.Context, entry *gradebook.Entry) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if entry == nil {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).Create(entry).Error
}

func (r *entryRepo) DeleteByCourse(dbc dbctx.Context, courseID string) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		return 0, nil
	}
	res := transaction.WithContext(dbc.Ctx).
		Where("course_id = ?", courseID).
		Delete(&gradebook.Entry{})
	return res.RowsAffected, res.Error
}

func (r *entryRepo) UserPosition(dbc dbctx.Context, courseID string, userID int64, excludeUserIDs []int64) (int, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	courseID = strings.TrimSpace(courseID)
	mine, err := r.GetByUserCourse(dbc, userID, courseID)
	if err != nil || mine == nil {
		return 0, err
	}

	q := transaction.WithContext(dbc.Ctx).
		Model(&gradebook.Entry{}).
		Where("course_id = ? AND user_id <> ?", courseID, userID).
		Where("(grade > ? OR (grade = ? AND modified < ?))", mine.Grade, mine.Grade, mine.ModifiedAt)
	if len(excludeUserIDs) > 0 {
		q = q.Where("user_id NOT IN ?", excludeUserIDs)
	}
	var ahead int64
	if err := q.Count(&ahead).Error; err != nil {
		return 0, err
	}
	return int(ahead) + 1, nil
}
