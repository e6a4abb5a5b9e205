package db

import (
	"path/filepath"
	"testing"
	"time"
)

func TestNewSQLiteConnection_Pragmas(t *testing.T) {
	conn, err := NewSQLiteConnection(DefaultConnectionConfig(filepath.Join(t.TempDir(), "test.db")))
	if err != nil {
		t.Fatalf("NewSQLiteConnection() error = %v", err)
	}
	defer conn.Close()

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"foreign_keys", "1"},
		{"busy_timeout", "5000"},
	}
	for _, tt := range tests {
		t.Run(tt.pragma, func(t *testing.T) {
			var got string
			if err := conn.QueryRow("PRAGMA " + tt.pragma).Scan(&got); err != nil {
				t.Fatalf("PRAGMA %s error = %v", tt.pragma, err)
			}
			if got != tt.want {
				t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
			}
		})
	}
}

func TestNewSQLiteConnection_EmptyPath(t *testing.T) {
	if _, err := NewSQLiteConnection(ConnectionConfig{}); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestDefaultConnectionConfig(t *testing.T) {
	cfg := DefaultConnectionConfig("x.db")
	if cfg.Path != "x.db" {
		t.Errorf("Path = %q, want x.db", cfg.Path)
	}
	if cfg.BusyTimeout != 5*time.Second {
		t.Errorf("BusyTimeout = %v, want 5s", cfg.BusyTimeout)
	}
	if cfg.MaxOpenConns != 1 {
		t.Errorf("MaxOpenConns = %d, want 1", cfg.MaxOpenConns)
	}
}
