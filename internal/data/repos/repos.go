package repos

import (
	"gorm.io/gorm"

	"github.com/kotky/gradebook-edx-platform-extensions/internal/data/repos/gradebook"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/data/repos/jobs"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/data/repos/user"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/platform/logger"
)

type UserRepo = user.UserRepo

type GradebookEntryRepo = gradebook.EntryRepo
type GradebookHistoryRepo = gradebook.HistoryRepo

type JobRunRepo = jobs.JobRunRepo

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo { return user.NewUserRepo(db, baseLog) }

func NewGradebookEntryRepo(db *gorm.DB, baseLog *logger.Logger) GradebookEntryRepo {
	return gradebook.NewEntryRepo(db, baseLog)
}
func NewGradebookHistoryRepo(db *gorm.DB, baseLog *logger.Logger) GradebookHistoryRepo {
	return gradebook.NewHistoryRepo(db, baseLog)
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return jobs.NewJobRunRepo(db, baseLog)
}
