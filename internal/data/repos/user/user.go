package user

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/kotky/gradebook-edx-platform-extensions/internal/domain/user"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/platform/logger"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepo reads the platform's user and course-role tables.
type UserRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, userID int64) (*user.User, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, userIDs []int64) ([]*user.User, error)
	// HasCourseRole matches roles granted on the course or, with an empty
	// course id, on the course's whole org.
	HasCourseRole(ctx context.Context, tx *gorm.DB, userID int64, courseID, org string, roles []string) (bool, error)
	// AggregateExclusionUserIDs lists users kept out of course aggregates:
	// course staff, instructors, observers, assistants and global admins.
	AggregateExclusionUserIDs(ctx context.Context, tx *gorm.DB, courseID string) ([]int64, error)
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	repoLog := baseLog.With("repo", "UserRepo")
	return &userRepo{db: db, log: repoLog}
}

func (ur *userRepo) GetByID(ctx context.Context, tx *gorm.DB, userID int64) (*user.User, error) {
	found, err := ur.GetByIDs(ctx, tx, []int64{userID})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: id=%d", ErrUserNotFound, userID)
	}
	return found[0], nil
}

func (ur *userRepo) GetByIDs(ctx context.Context, tx *gorm.DB, userIDs []int64) ([]*user.User, error) {
	transaction := tx
	if transaction == nil {
		transaction = ur.db
	}

	var results []*user.User

	if len(userIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", userIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (ur *userRepo) HasCourseRole(ctx context.Context, tx *gorm.DB, userID int64, courseID, org string, roles []string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = ur.db
	}
	if len(roles) == 0 {
		return false, nil
	}
	var n int64
	err := transaction.WithContext(ctx).
		Model(&user.CourseAccessRole{}).
		Where("user_id = ? AND role IN ?", userID, roles).
		Where("(course_id = ? OR (course_id = '' AND org = ?))", strings.TrimSpace(courseID), strings.TrimSpace(org)).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (ur *userRepo) AggregateExclusionUserIDs(ctx context.Context, tx *gorm.DB, courseID string) ([]int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = ur.db
	}

	var roleIDs []int64
	if err := transaction.WithContext(ctx).
		Model(&user.CourseAccessRole{}).
		Where("course_id = ? AND role IN ?", strings.TrimSpace(courseID), user.ExclusionRoles).
		Distinct().
		Pluck("user_id", &roleIDs).Error; err != nil {
		return nil, err
	}

	var adminIDs []int64
	if err := transaction.WithContext(ctx).
		Model(&user.User{}).
		Where("is_staff = ? OR is_superuser = ?", true, true).
		Pluck("id", &adminIDs).Error; err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{}, len(roleIDs)+len(adminIDs))
	out := make([]int64, 0, len(roleIDs)+len(adminIDs))
	for _, id := range append(roleIDs, adminIDs...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
