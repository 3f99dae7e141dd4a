package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) a SQLite database at path.
func OpenSQLite(ctx context.Context, path string) (Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS documents (
		id text not null primary key,
		content text not null,
		updated_at integer not null
		)`,
	); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create documents table: %w", err)
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Load(ctx context.Context, docID string) (string, error) {
	var content string
	err := s.db.QueryRowContext(ctx, `SELECT content FROM documents WHERE id = ?`, docID).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	} else if err != nil {
		return "", fmt.Errorf("failed to load %s: %w", docID, err)
	}
	return content, nil
}

func (s *sqliteStore) Save(ctx context.Context, docID, content string) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, content, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at`,
		docID, content, time.Now().Unix(),
	); err != nil {
		return fmt.Errorf("failed to save %s: %w", docID, err)
	}
	return nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
