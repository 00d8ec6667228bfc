package app

import (
	"gorm.io/gorm"

	"github.com/kotky/gradebook-edx-platform-extensions/internal/data/repos"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/platform/logger"
)

type Repos struct {
	User             repos.UserRepo
	GradebookEntry   repos.GradebookEntryRepo
	GradebookHistory repos.GradebookHistoryRepo
	JobRun           repos.JobRunRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:             repos.NewUserRepo(db, log),
		GradebookEntry:   repos.NewGradebookEntryRepo(db, log),
		GradebookHistory: repos.NewGradebookHistoryRepo(db, log),
		JobRun:           repos.NewJobRunRepo(db, log),
	}
}
