package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/kotky/gradebook-edx-platform-extensions/internal/domain"
)

func AutoMigrateAll(db *gorm.DB, withPlatformTables bool) error {
	models := domain.OwnedModels()
	if withPlatformTables {
		models = append(models, domain.PlatformModels()...)
	}
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
