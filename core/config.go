package core

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap/zapcore"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// ScanConfig controls the simulated pose feed and the reconstruction thresholds.
type ScanConfig struct {
	SampleRate           float64       `yaml:"sample_rate" toml:"sample_rate"`
	Duration             time.Duration `yaml:"duration" toml:"duration"`
	SufficientKeyframes  int           `yaml:"sufficient_keyframes" toml:"sufficient_keyframes"`
	KeyframeSpacing      float64       `yaml:"keyframe_spacing" toml:"keyframe_spacing"`
	MaxKeyframes         int           `yaml:"max_keyframes" toml:"max_keyframes"`
	CapacityWarningRatio float64       `yaml:"capacity_warning_ratio" toml:"capacity_warning_ratio"`
	MaxSpeed             float64       `yaml:"max_speed" toml:"max_speed"`
}

// GenerationSettings are the defaults used to build a generation request.
type GenerationSettings struct {
	UserAuth        string        `yaml:"user_auth" toml:"user_auth"`
	SecretAuth      string        `yaml:"secret_auth" toml:"secret_auth"`
	SecretHash      string        `yaml:"secret_hash" toml:"secret_hash"`
	OutputDirectory string        `yaml:"output_directory" toml:"output_directory"`
	TargetName      string        `yaml:"target_name" toml:"target_name"`
	Authoring       bool          `yaml:"authoring" toml:"authoring"`
	Packages        bool          `yaml:"packages" toml:"packages"`
	ETAWarmup       time.Duration `yaml:"eta_warmup" toml:"eta_warmup"`
	MinFreeSpace    string        `yaml:"min_free_space" toml:"min_free_space"`
}

// BackendConfig tunes the local generation backend.
type BackendConfig struct {
	Steps            int           `yaml:"steps" toml:"steps"`
	StepDelay        time.Duration `yaml:"step_delay" toml:"step_delay"`
	KeepIntermediate bool          `yaml:"keep_intermediate" toml:"keep_intermediate"`
}

// StorageConfig locates the generation history database.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path" toml:"database_path"`
}

// LoggingConfig selects level, file and console format.
type LoggingConfig struct {
	Level       string `yaml:"level" toml:"level"`
	File        string `yaml:"file" toml:"file"`
	Development bool   `yaml:"development" toml:"development"`
}

// Config holds all application configuration.
type Config struct {
	Scan            ScanConfig         `yaml:"scan" toml:"scan"`
	Generation      GenerationSettings `yaml:"generation" toml:"generation"`
	Backend         BackendConfig      `yaml:"backend" toml:"backend"`
	Storage         StorageConfig      `yaml:"storage" toml:"storage"`
	Logging         LoggingConfig      `yaml:"logging" toml:"logging"`
	ShutdownTimeout time.Duration      `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// DefaultConfig returns the configuration used when neither a file nor the
// environment says otherwise.
func DefaultConfig() *Config {
	return &Config{
		Scan: ScanConfig{
			SampleRate:           30,
			Duration:             10 * time.Second,
			SufficientKeyframes:  20,
			KeyframeSpacing:      0.1,
			MaxKeyframes:         2000,
			CapacityWarningRatio: 0.9,
			MaxSpeed:             2.0,
		},
		Generation: GenerationSettings{
			OutputDirectory: ".",
			TargetName:      "area_target",
			Authoring:       true,
			ETAWarmup:       3 * time.Second,
			MinFreeSpace:    "50MB",
		},
		Backend: BackendConfig{
			Steps:     10,
			StepDelay: 200 * time.Millisecond,
		},
		Storage: StorageConfig{
			DatabasePath: GetDataFilePath(DefaultDatabaseFile),
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  GetDataFilePath(DefaultLogFile),
		},
		ShutdownTimeout: 30 * time.Second,
	}
}

// LoadConfig builds the configuration in three layers: defaults, the optional
// file at path (.yaml, .yml or .toml), then environment variables. The .env
// file is expected to have been loaded into the environment already.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrConfigFileMissing(path)
		}
		return ErrConfigFileInvalid(path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return ErrConfigFileInvalid(path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return ErrConfigFileInvalid(path, err)
		}
	default:
		return ErrUnsupportedFormat(path)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Scan.SampleRate = ParseFloat64Env("AREACAPTURE_SAMPLE_RATE", cfg.Scan.SampleRate)
	cfg.Scan.Duration = ParseDurationEnv("AREACAPTURE_SCAN_DURATION", cfg.Scan.Duration)
	cfg.Scan.SufficientKeyframes = ParseIntEnv("AREACAPTURE_SUFFICIENT_KEYFRAMES", cfg.Scan.SufficientKeyframes)
	cfg.Scan.MaxKeyframes = ParseIntEnv("AREACAPTURE_MAX_KEYFRAMES", cfg.Scan.MaxKeyframes)

	cfg.Generation.UserAuth = GetEnvOrDefault("GENERATION_USER", cfg.Generation.UserAuth)
	cfg.Generation.SecretAuth = GetEnvOrDefault("GENERATION_SECRET", cfg.Generation.SecretAuth)
	cfg.Generation.SecretHash = GetEnvOrDefault("GENERATION_SECRET_HASH", cfg.Generation.SecretHash)
	cfg.Generation.OutputDirectory = GetEnvOrDefault("AREACAPTURE_OUTPUT_DIR", cfg.Generation.OutputDirectory)
	cfg.Generation.TargetName = GetEnvOrDefault("AREACAPTURE_TARGET_NAME", cfg.Generation.TargetName)
	cfg.Generation.Authoring = ParseBoolEnv("AREACAPTURE_AUTHORING", cfg.Generation.Authoring)
	cfg.Generation.Packages = ParseBoolEnv("AREACAPTURE_PACKAGES", cfg.Generation.Packages)
	cfg.Generation.ETAWarmup = ParseDurationEnv("AREACAPTURE_ETA_WARMUP", cfg.Generation.ETAWarmup)
	cfg.Generation.MinFreeSpace = GetEnvOrDefault("AREACAPTURE_MIN_FREE_SPACE", cfg.Generation.MinFreeSpace)

	cfg.Backend.Steps = ParseIntEnv("AREACAPTURE_BACKEND_STEPS", cfg.Backend.Steps)
	cfg.Backend.StepDelay = ParseDurationEnv("AREACAPTURE_BACKEND_STEP_DELAY", cfg.Backend.StepDelay)
	cfg.Backend.KeepIntermediate = ParseBoolEnv("AREACAPTURE_KEEP_INTERMEDIATE", cfg.Backend.KeepIntermediate)

	cfg.Storage.DatabasePath = GetEnvOrDefault("AREACAPTURE_DB_PATH", cfg.Storage.DatabasePath)

	cfg.Logging.Level = GetEnvOrDefault("AREACAPTURE_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.File = GetEnvOrDefault("AREACAPTURE_LOG_FILE", cfg.Logging.File)
	cfg.Logging.Development = ParseBoolEnv("AREACAPTURE_DEV", cfg.Logging.Development)

	cfg.ShutdownTimeout = ParseDurationEnv("AREACAPTURE_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
}

// Validate checks ranges only. Credentials, target name and output directory
// are checked by the capture layer when a generation starts.
func (c *Config) Validate() error {
	switch {
	case c.Scan.SampleRate <= 0:
		return ErrInvalidValue("scan.sample_rate", c.Scan.SampleRate, "must be positive")
	case c.Scan.Duration < 0:
		return ErrInvalidValue("scan.duration", c.Scan.Duration, "must not be negative")
	case c.Scan.SufficientKeyframes < 1:
		return ErrInvalidValue("scan.sufficient_keyframes", c.Scan.SufficientKeyframes, "must be at least 1")
	case c.Scan.KeyframeSpacing <= 0:
		return ErrInvalidValue("scan.keyframe_spacing", c.Scan.KeyframeSpacing, "must be positive")
	case c.Scan.MaxKeyframes < c.Scan.SufficientKeyframes:
		return ErrInvalidValue("scan.max_keyframes", c.Scan.MaxKeyframes, "must be at least scan.sufficient_keyframes")
	case c.Scan.CapacityWarningRatio <= 0 || c.Scan.CapacityWarningRatio > 1:
		return ErrInvalidValue("scan.capacity_warning_ratio", c.Scan.CapacityWarningRatio, "must be in (0, 1]")
	case c.Scan.MaxSpeed <= 0:
		return ErrInvalidValue("scan.max_speed", c.Scan.MaxSpeed, "must be positive")
	case c.Generation.ETAWarmup < 0:
		return ErrInvalidValue("generation.eta_warmup", c.Generation.ETAWarmup, "must not be negative")
	case c.Backend.Steps < 1:
		return ErrInvalidValue("backend.steps", c.Backend.Steps, "must be at least 1")
	case c.Backend.StepDelay < 0:
		return ErrInvalidValue("backend.step_delay", c.Backend.StepDelay, "must not be negative")
	case c.Storage.DatabasePath == "":
		return ErrMissingConfig("AREACAPTURE_DB_PATH")
	case c.ShutdownTimeout <= 0:
		return ErrInvalidValue("shutdown_timeout", c.ShutdownTimeout, "must be positive")
	}

	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return ErrInvalidValue("logging.level", c.Logging.Level, "must be one of debug, info, warn, error")
	}
	if c.Generation.MinFreeSpace != "" {
		if _, err := humanize.ParseBytes(c.Generation.MinFreeSpace); err != nil {
			return ErrInvalidValue("generation.min_free_space", c.Generation.MinFreeSpace, "must be a size such as 50MB")
		}
	}

	if c.Generation.SecretHash != "" {
		if _, err := bcrypt.Cost([]byte(c.Generation.SecretHash)); err != nil {
			return ErrInvalidSecretHash(err)
		}
		if c.Generation.UserAuth == "" {
			return ErrMissingConfig("GENERATION_USER")
		}
	}
	return nil
}
