package db

import (
	"testing"

	"github.com/kotky/gradebook-edx-platform-extensions/internal/platform/logger"
)

func TestPostgresDSNDefaultsSSLMode(t *testing.T) {
	cfg := Config{User: "u", Password: "p", Host: "h", Port: "5432", Name: "gradebook"}
	want := "postgres://u:p@h:5432/gradebook?sslmode=disable"
	if got := cfg.PostgresDSN(); got != want {
		t.Fatalf("want=%s got=%s", want, got)
	}
	cfg.SSLMode = "require"
	if got := cfg.PostgresDSN(); got != "postgres://u:p@h:5432/gradebook?sslmode=require" {
		t.Fatalf("sslmode override: got=%s", got)
	}
}

func TestNewServiceRejectsUnknownDriver(t *testing.T) {
	if _, err := NewService(Config{Driver: "mysql"}, logger.NewNop()); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
	if _, err := NewService(Config{Driver: DriverSQLite}, logger.NewNop()); err == nil {
		t.Fatalf("expected error for sqlite without path")
	}
}

func TestSQLiteServiceMigrates(t *testing.T) {
	svc, err := NewService(Config{Driver: DriverSQLite, SQLitePath: "file:db_service_test?mode=memory&cache=shared"}, logger.NewNop())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	defer svc.Close()
	if err := AutoMigrateAll(svc.DB(), true); err != nil {
		t.Fatalf("AutoMigrateAll: %v", err)
	}
	for _, table := range []string{"gradebook_studentgradebook", "gradebook_studentgradebookhistory", "job_run", "auth_user", "student_courseaccessrole"} {
		if !svc.DB().Migrator().HasTable(table) {
			t.Fatalf("missing table %s", table)
		}
	}
}
