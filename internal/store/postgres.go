package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects a pool to the database at url.
func OpenPostgres(ctx context.Context, url string) (Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if _, err := pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS documents (
		id text not null primary key,
		content text not null,
		updated_at timestamptz not null default now()
		)`,
	); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create documents table: %w", err)
	}
	return &postgresStore{pool: pool}, nil
}

func (s *postgresStore) Load(ctx context.Context, docID string) (string, error) {
	var content string
	err := s.pool.QueryRow(ctx, `SELECT content FROM documents WHERE id = $1`, docID).Scan(&content)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	} else if err != nil {
		return "", fmt.Errorf("failed to load %s: %w", docID, err)
	}
	return content, nil
}

func (s *postgresStore) Save(ctx context.Context, docID, content string) error {
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO documents (id, content) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET content = excluded.content, updated_at = now()`,
		docID, content,
	); err != nil {
		return fmt.Errorf("failed to save %s: %w", docID, err)
	}
	return nil
}

func (s *postgresStore) Close() error {
	s.pool.Close()
	return nil
}
