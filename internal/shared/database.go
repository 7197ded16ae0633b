package shared

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// NewDatabase opens a connection to a SQLite database at the specified path.
// The path can be ":memory:" for an in-memory database; "~" is expanded and parent directories are created.
func NewDatabase(path string) (*sql.DB, error) {
	if path != ":memory:" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(expanded), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		path = expanded
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// ConfigureDatabase sets connection pool settings for the database.
//
// SQLite serializes writers, so a single open connection avoids "database is locked" errors
// when chunked stage writes land concurrently.
func ConfigureDatabase(db *sql.DB, maxOpenConns, maxIdleConns int) {
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
}
