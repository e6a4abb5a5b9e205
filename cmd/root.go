// Package cmd implements the areacapture command line.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"areacapture/core"
	"areacapture/logging"
)

var rootCmd = &cobra.Command{
	Use:   "areacapture",
	Short: "Capture a physical area and generate an area target",
	Long: `areacapture scans an area with a device pose feed, reconstructs keyframes
and generates area target files for tracking, authoring and packaging.

Quick start:
  areacapture validate --target lobby --out ./targets    # Pre-flight checks
  areacapture run --target lobby --out ./targets         # Scan and generate
  areacapture history                                    # Past generations`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var configPathFlag string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPathFlag, "config", "c", "", "Config file (.yaml, .yml or .toml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(hashSecretCmd)
	rootCmd.AddCommand(versionCmd)
}

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return core.ExitCodeName(e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func withExitCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return core.ExitCodeSuccess
	}

	code := core.ExitCodeError
	var ee *exitError
	if errors.As(err, &ee) {
		code = ee.code
	}
	if ee == nil || ee.err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		var cfgErr *core.ConfigError
		if errors.As(err, &cfgErr) && cfgErr.Action != "" {
			fmt.Fprintf(os.Stderr, "  %s\n", cfgErr.Action)
		}
	}
	return code
}

// loadConfig reads the --config file and the environment.
func loadConfig() (*core.Config, error) {
	cfg, err := core.LoadConfig(configPathFlag)
	if err != nil {
		return nil, withExitCode(core.ExitCodeValidationFailed, err)
	}
	return cfg, nil
}

// newLogger builds the application logger from cfg.Logging.
func newLogger(cfg *core.Config) (*logging.Logger, error) {
	// Console logs go to stderr so they do not mix with command output.
	logger, err := logging.NewLogger(logging.Options{
		Level:       logging.ParseLogLevelString(cfg.Logging.Level, zapcore.InfoLevel),
		FilePath:    cfg.Logging.File,
		Development: cfg.Logging.Development,
		File:        logging.DefaultFileWriterConfig(),
		Console:     zapcore.Lock(os.Stderr),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Debug("Configuration loaded",
		zap.String("config", configPathFlag),
		zap.String("output_directory", cfg.Generation.OutputDirectory),
		zap.String("target_name", cfg.Generation.TargetName),
		zap.String("database", cfg.Storage.DatabasePath),
		zap.String("user", cfg.Generation.UserAuth),
	)
	return logger, nil
}
