package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// clearConfigEnv blanks every variable LoadConfig reads so host settings do not leak in.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"AREACAPTURE_SAMPLE_RATE", "AREACAPTURE_SCAN_DURATION", "AREACAPTURE_SUFFICIENT_KEYFRAMES",
		"AREACAPTURE_MAX_KEYFRAMES", "GENERATION_USER", "GENERATION_SECRET", "GENERATION_SECRET_HASH",
		"AREACAPTURE_OUTPUT_DIR", "AREACAPTURE_TARGET_NAME", "AREACAPTURE_AUTHORING", "AREACAPTURE_PACKAGES",
		"AREACAPTURE_ETA_WARMUP", "AREACAPTURE_MIN_FREE_SPACE", "AREACAPTURE_BACKEND_STEPS",
		"AREACAPTURE_BACKEND_STEP_DELAY", "AREACAPTURE_KEEP_INTERMEDIATE", "AREACAPTURE_DB_PATH",
		"AREACAPTURE_LOG_LEVEL", "AREACAPTURE_LOG_FILE", "AREACAPTURE_DEV", "AREACAPTURE_SHUTDOWN_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("AREACAPTURE_DATA_DIR", t.TempDir())
}

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	want := DefaultConfig()
	if cfg.Scan != want.Scan {
		t.Errorf("Scan = %+v, want %+v", cfg.Scan, want.Scan)
	}
	if cfg.Generation != want.Generation {
		t.Errorf("Generation = %+v, want %+v", cfg.Generation, want.Generation)
	}
	if cfg.Storage.DatabasePath != GetDataFilePath(DefaultDatabaseFile) {
		t.Errorf("DatabasePath = %q", cfg.Storage.DatabasePath)
	}
	if !cfg.Generation.Authoring || cfg.Generation.Packages {
		t.Error("defaults should enable authoring and disable packages")
	}
}

func TestLoadConfig_YAML(t *testing.T) {
	clearConfigEnv(t)
	path := writeConfigFile(t, "capture.yaml", `
scan:
  sample_rate: 60
  duration: 5s
generation:
  target_name: lobby
  packages: true
backend:
  steps: 4
  step_delay: 50ms
shutdown_timeout: 10s
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Scan.SampleRate != 60 || cfg.Scan.Duration != 5*time.Second {
		t.Errorf("Scan = %+v", cfg.Scan)
	}
	if cfg.Generation.TargetName != "lobby" || !cfg.Generation.Packages {
		t.Errorf("Generation = %+v", cfg.Generation)
	}
	if !cfg.Generation.Authoring {
		t.Error("unset file keys should keep their defaults")
	}
	if cfg.Backend.Steps != 4 || cfg.Backend.StepDelay != 50*time.Millisecond {
		t.Errorf("Backend = %+v", cfg.Backend)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v", cfg.ShutdownTimeout)
	}
}

func TestLoadConfig_TOML(t *testing.T) {
	clearConfigEnv(t)
	path := writeConfigFile(t, "capture.toml", `
[scan]
max_keyframes = 500

[generation]
output_directory = "/tmp/out"
eta_warmup = "1s"

[logging]
level = "debug"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Scan.MaxKeyframes != 500 {
		t.Errorf("MaxKeyframes = %d, want 500", cfg.Scan.MaxKeyframes)
	}
	if cfg.Generation.OutputDirectory != "/tmp/out" {
		t.Errorf("OutputDirectory = %q", cfg.Generation.OutputDirectory)
	}
	if cfg.Generation.ETAWarmup != time.Second {
		t.Errorf("ETAWarmup = %v, want 1s", cfg.Generation.ETAWarmup)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q", cfg.Logging.Level)
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	clearConfigEnv(t)
	path := writeConfigFile(t, "capture.yaml", "generation:\n  target_name: from_file\n")
	t.Setenv("AREACAPTURE_TARGET_NAME", "from_env")
	t.Setenv("AREACAPTURE_PACKAGES", "yes")
	t.Setenv("AREACAPTURE_BACKEND_STEP_DELAY", "10ms")
	t.Setenv("GENERATION_USER", "alice")
	t.Setenv("GENERATION_SECRET", "s3cret")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Generation.TargetName != "from_env" {
		t.Errorf("TargetName = %q, want from_env", cfg.Generation.TargetName)
	}
	if !cfg.Generation.Packages {
		t.Error("Packages should be enabled by the environment")
	}
	if cfg.Backend.StepDelay != 10*time.Millisecond {
		t.Errorf("StepDelay = %v", cfg.Backend.StepDelay)
	}
	if cfg.Generation.UserAuth != "alice" || cfg.Generation.SecretAuth != "s3cret" {
		t.Errorf("credentials not loaded: %+v", cfg.Generation)
	}
}

func TestLoadConfig_FileErrors(t *testing.T) {
	clearConfigEnv(t)

	tests := []struct {
		name string
		path string
		code string
	}{
		{"missing file", filepath.Join(t.TempDir(), "absent.yaml"), ErrCodeConfigFileMissing},
		{"bad yaml", writeConfigFile(t, "bad.yaml", "scan: [unclosed"), ErrCodeConfigFileInvalid},
		{"bad toml", writeConfigFile(t, "bad.toml", "[scan\nsample_rate = "), ErrCodeConfigFileInvalid},
		{"unknown extension", writeConfigFile(t, "capture.ini", "x=1"), ErrCodeUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(tt.path)
			if got := GetErrorCode(err); got != tt.code {
				t.Errorf("GetErrorCode() = %q, want %q (err = %v)", got, tt.code, err)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("GenerateFromPassword() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		code   string
	}{
		{"defaults", func(*Config) {}, ""},
		{"zero sample rate", func(c *Config) { c.Scan.SampleRate = 0 }, ErrCodeInvalidValue},
		{"negative duration", func(c *Config) { c.Scan.Duration = -time.Second }, ErrCodeInvalidValue},
		{"capacity below sufficient", func(c *Config) { c.Scan.MaxKeyframes = 5 }, ErrCodeInvalidValue},
		{"warning ratio above one", func(c *Config) { c.Scan.CapacityWarningRatio = 1.5 }, ErrCodeInvalidValue},
		{"zero steps", func(c *Config) { c.Backend.Steps = 0 }, ErrCodeInvalidValue},
		{"empty database path", func(c *Config) { c.Storage.DatabasePath = "" }, ErrCodeMissingConfig},
		{"unknown log level", func(c *Config) { c.Logging.Level = "chatty" }, ErrCodeInvalidValue},
		{"bad free space", func(c *Config) { c.Generation.MinFreeSpace = "lots" }, ErrCodeInvalidValue},
		{"zero shutdown timeout", func(c *Config) { c.ShutdownTimeout = 0 }, ErrCodeInvalidValue},
		{"malformed hash", func(c *Config) { c.Generation.SecretHash = "plain" }, ErrCodeInvalidSecretHash},
		{"hash without user", func(c *Config) { c.Generation.SecretHash = string(hash) }, ErrCodeMissingConfig},
		{"hash with user", func(c *Config) {
			c.Generation.SecretHash = string(hash)
			c.Generation.UserAuth = "alice"
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if got := GetErrorCode(err); got != tt.code {
				t.Errorf("Validate() code = %q, want %q (err = %v)", got, tt.code, err)
			}
		})
	}
}
