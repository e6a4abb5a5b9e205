// Package validation runs the pre-flight checks behind the validate command
// and the start of a capture run.
package validation

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"areacapture/capture"
	"areacapture/core"
	"areacapture/generation"
)

// ValidationStep represents a single validation step with its status.
type ValidationStep struct {
	Name    string
	Status  StepStatus
	Message string
	Error   error
	Latency time.Duration
}

// StepStatus represents the status of a validation step.
type StepStatus int

const (
	StepPending StepStatus = iota
	StepRunning
	StepPassed
	StepFailed
	StepWarning
	StepSkipped
)

// String returns the string representation of a step status.
func (s StepStatus) String() string {
	switch s {
	case StepPending:
		return "pending"
	case StepRunning:
		return "running"
	case StepPassed:
		return "passed"
	case StepFailed:
		return "failed"
	case StepWarning:
		return "warning"
	case StepSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// SuiteResult represents the complete result of validation suite execution.
type SuiteResult struct {
	Steps       []ValidationStep
	TotalSteps  int
	PassedSteps int
	FailedSteps int
	Warnings    int
	Duration    time.Duration
	Success     bool
}

// errWarning marks a check that passed with a caveat.
var errWarning = errors.New("validation: warning")

// ValidationSuite checks a loaded configuration before any capture is started:
// generation settings, the output location and the history database.
type ValidationSuite struct {
	cfg          *core.Config
	configPath   string
	output       io.Writer
	showProgress bool
	failFast     bool
}

// NewValidationSuite creates a suite for cfg with progress output on stdout.
func NewValidationSuite(cfg *core.Config) *ValidationSuite {
	return &ValidationSuite{
		cfg:          cfg,
		output:       os.Stdout,
		showProgress: true,
	}
}

// WithOutput sets the output writer for progress messages.
func (s *ValidationSuite) WithOutput(w io.Writer) *ValidationSuite {
	s.output = w
	return s
}

// WithConfigPath adds a check that the config file at path exists.
func (s *ValidationSuite) WithConfigPath(path string) *ValidationSuite {
	s.configPath = path
	return s
}

// WithShowProgress enables or disables progress output.
func (s *ValidationSuite) WithShowProgress(show bool) *ValidationSuite {
	s.showProgress = show
	return s
}

// WithFailFast stops validation on first failure if enabled.
func (s *ValidationSuite) WithFailFast(failFast bool) *ValidationSuite {
	s.failFast = failFast
	return s
}

type check struct {
	name string
	fn   func() (string, error)
}

func (s *ValidationSuite) checks() []check {
	gen := s.cfg.Generation
	checks := make([]check, 0, 7)

	if s.configPath != "" {
		checks = append(checks, check{"Configuration File", func() (string, error) {
			if err := CheckFileExists(s.configPath); err != nil {
				return "", err
			}
			return s.configPath, nil
		}})
	}

	checks = append(checks,
		check{"Target Name", func() (string, error) {
			if err := capture.ValidateTargetName(gen.TargetName); err != nil {
				return "", err
			}
			return gen.TargetName, nil
		}},
		check{"Output Directory", func() (string, error) {
			if err := capture.ValidateOutputDirectory(gen.OutputDirectory); err != nil {
				return "", err
			}
			return gen.OutputDirectory + " is writable", nil
		}},
		check{"Disk Space", s.checkDiskSpace},
		check{"Generation Credentials", s.checkCredentials},
		check{"Artifact Selection", func() (string, error) {
			if err := capture.ValidateArtifactFlags(gen.Authoring, gen.Packages); err != nil {
				return "", err
			}
			return fmt.Sprintf("authoring=%t packages=%t", gen.Authoring, gen.Packages), nil
		}},
		check{"History Database", func() (string, error) {
			exists, err := CheckParentDirectory(s.cfg.Storage.DatabasePath)
			if err != nil {
				return "", err
			}
			if !exists {
				return s.cfg.Storage.DatabasePath + " (directory will be created)", errWarning
			}
			return s.cfg.Storage.DatabasePath, nil
		}},
	)
	return checks
}

func (s *ValidationSuite) checkDiskSpace() (string, error) {
	var required uint64
	if s.cfg.Generation.MinFreeSpace != "" {
		n, err := humanize.ParseBytes(s.cfg.Generation.MinFreeSpace)
		if err != nil {
			return "", fmt.Errorf("invalid minimum free space %q: %w", s.cfg.Generation.MinFreeSpace, err)
		}
		required = n
	}

	info, err := CheckDiskSpace(s.cfg.Generation.OutputDirectory, required)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s free (%.0f%% used)", info.FreeFormatted(), info.UsedPercent), nil
}

func (s *ValidationSuite) checkCredentials() (string, error) {
	gen := s.cfg.Generation
	if err := capture.ValidateCredentials(gen.UserAuth, gen.SecretAuth); err != nil {
		return "", err
	}

	if gen.SecretHash == "" {
		return "user " + gen.UserAuth + " (no secret hash configured)", errWarning
	}

	auth, err := generation.NewAuthenticator(gen.UserAuth, gen.SecretHash)
	if err != nil {
		return "", err
	}
	if err := auth.Verify(gen.UserAuth, gen.SecretAuth); err != nil {
		return "", err
	}
	return "user " + gen.UserAuth + " verified", nil
}

// Validate runs every check in order with progress output.
func (s *ValidationSuite) Validate() SuiteResult {
	startTime := time.Now()

	if s.showProgress {
		s.printHeader("Area Target Capture Pre-flight Check")
	}

	checks := s.checks()
	steps := make([]ValidationStep, 0, len(checks))
	for i, c := range checks {
		step := s.runStep(c.name, c.fn)
		steps = append(steps, step)
		if s.failFast && step.Status == StepFailed {
			for _, rest := range checks[i+1:] {
				skipped := ValidationStep{Name: rest.name, Status: StepSkipped, Message: "Skipped after earlier failure"}
				if s.showProgress {
					s.printStep(skipped)
				}
				steps = append(steps, skipped)
			}
			break
		}
	}

	result := s.buildResult(steps, startTime)
	if s.showProgress {
		s.printSummary(result)
	}
	return result
}

// runStep executes a validation step with timing and progress output.
func (s *ValidationSuite) runStep(name string, fn func() (string, error)) ValidationStep {
	step := ValidationStep{Name: name, Status: StepRunning}

	if s.showProgress {
		s.printStepStart(name)
	}

	startTime := time.Now()
	message, err := fn()
	step.Latency = time.Since(startTime)
	step.Message = message

	switch {
	case err == nil:
		step.Status = StepPassed
	case errors.Is(err, errWarning):
		step.Status = StepWarning
	default:
		step.Status = StepFailed
		step.Error = err
	}

	if s.showProgress {
		s.printStep(step)
	}
	return step
}

// buildResult creates a SuiteResult from completed steps.
func (s *ValidationSuite) buildResult(steps []ValidationStep, startTime time.Time) SuiteResult {
	result := SuiteResult{
		Steps:      steps,
		TotalSteps: len(steps),
		Duration:   time.Since(startTime),
		Success:    true,
	}

	for _, step := range steps {
		switch step.Status {
		case StepPassed:
			result.PassedSteps++
		case StepFailed:
			result.FailedSteps++
			result.Success = false
		case StepWarning:
			result.Warnings++
		}
	}
	return result
}

func (s *ValidationSuite) printHeader(title string) {
	fmt.Fprintln(s.output)
	color.New(color.FgCyan, color.Bold).Fprintf(s.output, "━━━ %s ━━━\n", title)
	fmt.Fprintln(s.output)
}

func (s *ValidationSuite) printStepStart(name string) {
	fmt.Fprintf(s.output, "  ◌ %s...", name)
}

func (s *ValidationSuite) printStep(step ValidationStep) {
	var icon string
	var clr *color.Color

	switch step.Status {
	case StepPassed:
		icon, clr = "✓", color.New(color.FgGreen)
	case StepFailed:
		icon, clr = "✗", color.New(color.FgRed)
	case StepWarning:
		icon, clr = "!", color.New(color.FgYellow)
	case StepSkipped:
		icon, clr = "○", color.New(color.FgHiBlack)
	default:
		icon, clr = "?", color.New(color.FgWhite)
	}

	// Overwrite the "running" line.
	fmt.Fprintf(s.output, "\r")
	clr.Fprintf(s.output, "  %s %s", icon, step.Name)
	if step.Message != "" {
		color.New(color.FgHiBlack).Fprintf(s.output, " - %s", step.Message)
	}
	fmt.Fprintln(s.output)

	if step.Status == StepFailed && step.Error != nil {
		color.New(color.FgRed).Fprintf(s.output, "    └─ %s\n", step.Error.Error())
	}
}

func (s *ValidationSuite) printSummary(result SuiteResult) {
	fmt.Fprintln(s.output)

	if result.Success {
		successColor := color.New(color.FgGreen, color.Bold)
		successColor.Fprintf(s.output, "━━━ Validation Passed ")
		color.New(color.FgHiBlack).Fprintf(s.output, "(%d/%d checks passed, %d warnings)",
			result.PassedSteps, result.TotalSteps, result.Warnings)
		successColor.Fprintln(s.output, " ━━━")
	} else {
		failColor := color.New(color.FgRed, color.Bold)
		failColor.Fprintf(s.output, "━━━ Validation Failed ")
		color.New(color.FgHiBlack).Fprintf(s.output, "(%d passed, %d failed)",
			result.PassedSteps, result.FailedSteps)
		failColor.Fprintln(s.output, " ━━━")
	}

	fmt.Fprintln(s.output)
}

// GetErrors returns all errors from failed steps.
func (r SuiteResult) GetErrors() []error {
	errs := make([]error, 0)
	for _, step := range r.Steps {
		if step.Error != nil {
			errs = append(errs, step.Error)
		}
	}
	return errs
}

// GetFirstError returns the first error from failed steps, or nil if all passed.
func (r SuiteResult) GetFirstError() error {
	for _, step := range r.Steps {
		if step.Error != nil {
			return step.Error
		}
	}
	return nil
}

// Summary returns a human-readable summary string.
func (r SuiteResult) Summary() string {
	var sb strings.Builder
	if r.Success {
		sb.WriteString("Validation Passed: ")
	} else {
		sb.WriteString("Validation Failed: ")
	}
	fmt.Fprintf(&sb, "%d/%d checks passed", r.PassedSteps, r.TotalSteps)
	if r.FailedSteps > 0 {
		fmt.Fprintf(&sb, ", %d failed", r.FailedSteps)
	}
	if r.Warnings > 0 {
		fmt.Fprintf(&sb, ", %d warnings", r.Warnings)
	}
	fmt.Fprintf(&sb, " (took %v)", r.Duration.Round(time.Millisecond))
	return sb.String()
}
