// Package store persists the latest snapshot of each relayed document.
package store

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by Load for a document that was never saved.
var ErrNotFound = errors.New("document not found")

// Store keeps one serialised snapshot per document id.
type Store interface {
	Load(ctx context.Context, docID string) (string, error)
	Save(ctx context.Context, docID, content string) error
	Close() error
}

// Open picks a backend from dsn: postgres:// and postgresql:// URLs use
// PostgreSQL, anything else is a SQLite file path with an optional
// "sqlite:" prefix.
func Open(ctx context.Context, dsn string) (Store, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return OpenPostgres(ctx, dsn)
	}
	return OpenSQLite(ctx, strings.TrimPrefix(dsn, "sqlite:"))
}
