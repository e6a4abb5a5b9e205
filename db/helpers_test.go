package db

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestDatabase(t *testing.T) *Database {
	t.Helper()

	database, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func testGeneration(jobID string, started time.Time) GenerationEntry {
	return GenerationEntry{
		JobID:           jobID,
		CaptureID:       "capture-1",
		TargetName:      "lobby",
		OutputDirectory: "/tmp/out",
		Authoring:       true,
		Keyframes:       42,
		Outcome:         "generation_success",
		StartedAt:       started,
		FinishedAt:      started.Add(1500 * time.Millisecond),
		Duration:        1500 * time.Millisecond,
	}
}
