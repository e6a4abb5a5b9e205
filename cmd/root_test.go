package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"areacapture/core"
	"areacapture/db"
)

// execute runs the root command with args and returns the exit code and stdout.
func execute(t *testing.T, args ...string) (int, string) {
	t.Helper()

	t.Setenv("AREACAPTURE_DATA_DIR", t.TempDir())
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	code := Execute()
	return code, out.String()
}

func TestExecute_Version(t *testing.T) {
	code, out := execute(t, "version", "--json=false")
	if code != core.ExitCodeSuccess {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if !strings.HasPrefix(out, core.AppName+" ") {
		t.Errorf("output = %q, want prefix %q", out, core.AppName)
	}

	code, out = execute(t, "version", "--json")
	if code != core.ExitCodeSuccess {
		t.Fatalf("exit code = %d, want 0", code)
	}
	var info core.VersionInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if info.Version != core.Version {
		t.Errorf("Version = %q, want %q", info.Version, core.Version)
	}
}

func TestExecute_HashSecret(t *testing.T) {
	code, out := execute(t, "hash-secret", "--cost", "4", "s3cret")
	if code != core.ExitCodeSuccess {
		t.Fatalf("exit code = %d, want 0", code)
	}
	hash := strings.TrimSpace(out)
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")); err != nil {
		t.Errorf("hash does not match secret: %v", err)
	}

	if code, _ := execute(t, "hash-secret", "--cost", "4", ""); code != core.ExitCodeError {
		t.Errorf("empty secret exit code = %d, want %d", code, core.ExitCodeError)
	}
	if code, _ := execute(t, "hash-secret"); code != core.ExitCodeError {
		t.Errorf("missing argument exit code = %d, want %d", code, core.ExitCodeError)
	}
}

func TestExecute_Validate(t *testing.T) {
	out := t.TempDir()

	tests := []struct {
		name     string
		target   string
		wantCode int
		wantText string
	}{
		{"passes", "lobby", core.ExitCodeSuccess, "Validation Passed"},
		{"bad target", "lobby west", core.ExitCodeValidationFailed, "Validation Failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, text := execute(t, "validate", "-q",
				"--target", tt.target, "--out", out, "--user", "operator", "--secret", "s3cret")
			if code != tt.wantCode {
				t.Errorf("exit code = %d, want %d\n%s", code, tt.wantCode, text)
			}
			if !strings.Contains(text, tt.wantText) {
				t.Errorf("output = %q, want %q", text, tt.wantText)
			}
		})
	}
}

func TestExecute_InvalidConfig(t *testing.T) {
	t.Setenv("AREACAPTURE_LOG_LEVEL", "loud")
	if code, _ := execute(t, "history"); code != core.ExitCodeValidationFailed {
		t.Errorf("exit code = %d, want %d", code, core.ExitCodeValidationFailed)
	}
}

func TestExecute_History(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	t.Setenv("AREACAPTURE_DB_PATH", dbPath)

	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	repo := db.NewRepository(database, nil)
	started := time.Now().Add(-time.Minute)
	for _, id := range []string{"job-1", "job-2"} {
		_, err := repo.InsertGeneration(context.Background(), db.GenerationEntry{
			JobID: id, CaptureID: "capture-1", TargetName: "lobby", OutputDirectory: "/out",
			Outcome: "generation_success", StartedAt: started, FinishedAt: started.Add(time.Second),
		})
		if err != nil {
			t.Fatalf("InsertGeneration() error = %v", err)
		}
	}
	database.Close()

	code, out := execute(t, "history", "--json", "--limit", "1", "--capture", "", "--prune-days", "-1")
	if code != core.ExitCodeSuccess {
		t.Fatalf("exit code = %d, want 0", code)
	}
	var entries []db.GenerationEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if len(entries) != 1 || entries[0].JobID != "job-2" {
		t.Errorf("entries = %+v, want only job-2", entries)
	}

	code, out = execute(t, "history", "--json=false", "--limit", "10", "--capture", "", "--prune-days", "-1")
	if code != core.ExitCodeSuccess {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if !strings.Contains(out, "job-1") || !strings.Contains(out, "generation_success") {
		t.Errorf("table output missing rows:\n%s", out)
	}

	code, out = execute(t, "history", "--json=false", "--capture", "", "--prune-days", "0")
	if code != core.ExitCodeSuccess {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if !strings.Contains(out, "Pruned 2 records") || !strings.Contains(out, "No generations recorded") {
		t.Errorf("prune output = %q", out)
	}
}

func TestGenerationFlags_ApplyOnlyChanged(t *testing.T) {
	var flags generationFlags
	cmd := &cobra.Command{Use: "test"}
	flags.register(cmd)
	if err := cmd.ParseFlags([]string{"--target", "atrium", "--packages"}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	cfg := core.DefaultConfig()
	cfg.Generation.OutputDirectory = "/from/config"
	cfg.Generation.UserAuth = "config-user"
	flags.apply(cmd, cfg)

	if cfg.Generation.TargetName != "atrium" || !cfg.Generation.Packages {
		t.Errorf("flags not applied: %+v", cfg.Generation)
	}
	if cfg.Generation.OutputDirectory != "/from/config" || cfg.Generation.UserAuth != "config-user" {
		t.Errorf("unset flags overrode config: %+v", cfg.Generation)
	}
	if !cfg.Generation.Authoring {
		t.Error("Authoring default should survive")
	}
}
