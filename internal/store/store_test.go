package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	if _, err := s.Load(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load(missing) error = %v, want ErrNotFound", err)
	}

	if err := s.Save(ctx, "doc", "<p>one</p>"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Save(ctx, "doc", "<p>two</p>"); err != nil {
		t.Fatalf("Save() overwrite error = %v", err)
	}
	got, err := s.Load(ctx, "doc")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != "<p>two</p>" {
		t.Errorf("Load() = %q, want the latest save", got)
	}
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.sqlite3")
	s, err := Open(context.Background(), "sqlite:"+path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteStoreReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "docs.sqlite3")

	s, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	if err := s.Save(ctx, "doc", "<p>kept</p>"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s, err = OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()
	if got, err := s.Load(ctx, "doc"); err != nil || got != "<p>kept</p>" {
		t.Errorf("Load() after reopen = %q, %v", got, err)
	}
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("VCURSOR_TEST_POSTGRES")
	if url == "" {
		t.Skip("VCURSOR_TEST_POSTGRES not set")
	}
	s, err := Open(context.Background(), url)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}
