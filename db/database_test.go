package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"areacapture/core"
)

func TestOpen_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data", "history.db")

	database, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer database.Close()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file not created: %v", err)
	}
	if database.Path() != path {
		t.Errorf("Path() = %q, want %q", database.Path(), path)
	}
	if err := database.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open("")
	if core.GetErrorCode(err) != core.ErrCodeMissingConfig {
		t.Errorf("Open(\"\") code = %q, want %q", core.GetErrorCode(err), core.ErrCodeMissingConfig)
	}
}

func TestDatabase_CloseIsIdempotent(t *testing.T) {
	database := openTestDatabase(t)

	if err := database.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := database.Shutdown(context.Background()); err != nil {
		t.Errorf("second close error = %v", err)
	}
	if err := database.Ping(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Ping() after close = %v, want ErrClosed", err)
	}

	repo := NewRepository(database, nil)
	if _, err := repo.CountGenerations(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("CountGenerations() after close = %v, want ErrClosed", err)
	}
}

func TestDatabase_ReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	first, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := NewRepository(first, nil).InsertGeneration(ctx, testGeneration("job-1", time.Now())); err != nil {
		t.Fatalf("InsertGeneration() error = %v", err)
	}
	first.Close()

	second, err := Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer second.Close()

	n, err := NewRepository(second, nil).CountGenerations(ctx)
	if err != nil {
		t.Fatalf("CountGenerations() error = %v", err)
	}
	if n != 1 {
		t.Errorf("CountGenerations() = %d, want 1", n)
	}
}
