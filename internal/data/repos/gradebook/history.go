package gradebook

import (
	"strings"

	"gorm.io/gorm"

	"github.com/kotky/gradebook-edx-platform-extensions/internal/domain/gradebook"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/platform/dbctx"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/platform/logger"
)

type HistoryRepo interface {
	Append(dbc dbctx.Context, rows ...*gradebook.History) error
	ListByUserCourse(dbc dbctx.Context, userID int64, courseID string) ([]*gradebook.History, error)
	CountByCourse(dbc dbctx.Context, courseID string) (int64, error)
	DeleteByCourse(dbc dbctx.Context, courseID string) (int64, error)
}

type historyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewHistoryRepo(db *gorm.DB, baseLog *logger.Logger) HistoryRepo {
	return &historyRepo{
		db:  db,
		log: baseLog.With("repo", "GradebookHistoryRepo"),
	}
}

func (r *historyRepo) Append(dbc dbctx.Context, rows ...*gradebook.History) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).Create(&rows).Error
}

func (r *historyRepo) ListByUserCourse(dbc dbctx.Context, userID int64, courseID string) ([]*gradebook.History, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*gradebook.History
	if err := transaction.WithContext(dbc.Ctx).
		Where("user_id = ? AND course_id = ?", userID, strings.TrimSpace(courseID)).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *historyRepo) CountByCourse(dbc dbctx.Context, courseID string) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&gradebook.History{}).
		Where("course_id = ?", strings.TrimSpace(courseID)).
		Count(&n).Error
	return n, err
}

func (r *historyRepo) DeleteByCourse(dbc dbctx.Context, courseID string) (int64, error) {
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
		Delete(&gradebook.History{})
	return res.RowsAffected, res.Error
}
