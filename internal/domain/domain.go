// Package domain lists the persistent models owned or read by the gradebook.
package domain

import (
	"github.com/kotky/gradebook-edx-platform-extensions/internal/domain/gradebook"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/domain/jobs"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/domain/user"
)

type (
	StudentGradebook        = gradebook.Entry
	StudentGradebookHistory = gradebook.History
	JobRun                  = jobs.JobRun
	User                    = user.User
	CourseAccessRole        = user.CourseAccessRole
)

// OwnedModels are the tables this service migrates.
func OwnedModels() []any {
	return []any{
		&gradebook.Entry{},
		&gradebook.History{},
		&jobs.JobRun{},
	}
}

// PlatformModels are tables owned by the wider platform. They are migrated
// only for local development and tests.
func PlatformModels() []any {
	return []any{
		&user.User{},
		&user.CourseAccessRole{},
	}
}
