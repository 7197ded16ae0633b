package shared

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

func prepareGoose() error {
	goose.SetBaseFS(migrationFiles)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	return nil
}

// RunMigrations applies all pending migrations embedded under sql/.
func RunMigrations(db *sql.DB) error {
	if err := prepareGoose(); err != nil {
		return err
	}
	if err := goose.Up(db, "sql"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// RollbackMigration rolls back the most recent migration.
func RollbackMigration(db *sql.DB) error {
	if err := prepareGoose(); err != nil {
		return err
	}
	if err := goose.Down(db, "sql"); err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}
	return nil
}

// SchemaVersion reports the latest applied migration version.
func SchemaVersion(db *sql.DB) (int64, error) {
	if err := prepareGoose(); err != nil {
		return 0, err
	}
	version, err := goose.GetDBVersion(db)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}
