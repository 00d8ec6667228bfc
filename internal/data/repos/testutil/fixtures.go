package testutil

import (
	"context"
	"fmt"
	"testing"

	"gorm.io/gorm"

	"github.com/kotky/gradebook-edx-platform-extensions/internal/domain/gradebook"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/domain/user"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, id int64) *user.User {
	tb.Helper()
	u := &user.User{
		ID:       id,
		Username: fmt.Sprintf("learner%d", id),
		Email:    fmt.Sprintf("learner%d@example.com", id),
		IsActive: true,
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedAdmin(tb testing.TB, ctx context.Context, tx *gorm.DB, id int64) *user.User {
	tb.Helper()
	u := &user.User{
		ID:          id,
		Username:    fmt.Sprintf("admin%d", id),
		IsActive:    true,
		IsStaff:     true,
		IsSuperuser: true,
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed admin: %v", err)
	}
	return u
}

func SeedCourseRole(tb testing.TB, ctx context.Context, tx *gorm.DB, userID int64, courseID string, role string) *user.CourseAccessRole {
	tb.Helper()
	r := &user.CourseAccessRole{UserID: userID, CourseID: courseID, Role: role}
	if err := tx.WithContext(ctx).Create(r).Error; err != nil {
		tb.Fatalf("seed course role: %v", err)
	}
	return r
}

func SeedEntry(tb testing.TB, ctx context.Context, tx *gorm.DB, userID int64, courseID string, grade float64) *gradebook.Entry {
	tb.Helper()
	e := &gradebook.Entry{UserID: userID, CourseID: courseID, Grade: grade}
	if err := tx.WithContext(ctx).Create(e).Error; err != nil {
		tb.Fatalf("seed gradebook entry: %v", err)
	}
	return e
}
