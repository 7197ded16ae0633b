package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/pmx/internal/shared"
)

// SQLiteStore keeps documents in the documents table created by [shared.RunMigrations].
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an open, migrated database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Get(collection, id string) ([]byte, error) {
	if err := validKey(collection, id); err != nil {
		return nil, err
	}
	var body []byte
	err := s.db.QueryRow(`SELECT body FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", shared.ErrNotFound, collection, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	return body, nil
}

func (s *SQLiteStore) Put(collection, id string, doc []byte) error {
	if err := validKey(collection, id); err != nil {
		return err
	}
	query := `
		INSERT INTO documents (collection, id, body, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at
	`
	if _, err := s.db.Exec(query, collection, id, doc, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *SQLiteStore) List(collection string) ([]string, error) {
	if err := validKey(collection); err != nil {
		return nil, err
	}
	return s.strings(`SELECT id FROM documents WHERE collection = ? ORDER BY id`, collection)
}

func (s *SQLiteStore) Collections() ([]string, error) {
	return s.strings(`SELECT DISTINCT collection FROM documents ORDER BY collection`)
}

func (s *SQLiteStore) strings(query string, args ...any) ([]string, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("failed to scan document key: %w", err)
		}
		out = append(out, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return out, nil
}
