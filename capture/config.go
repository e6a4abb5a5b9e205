package capture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"areacapture/engine"
)

// MaxTargetNameLength is the longest accepted target name.
const MaxTargetNameLength = 64

var targetNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Validation errors. Each maps onto one GenerationErrorCode in Validate.
var (
	ErrInvalidTargetName      = errors.New("capture: invalid target name")
	ErrInvalidOutputDirectory = errors.New("capture: invalid output directory")
	ErrMissingAuthentication  = errors.New("capture: missing authentication")
	ErrPackagesNeedAuthoring  = errors.New("capture: packages require authoring files")
)

// CaptureConfig configures CreateAreaTargetCapture.
type CaptureConfig struct {
	// DevicePoseObserver supplies the pose stream. It must be created by the
	// controller's engine and not destroyed.
	DevicePoseObserver *engine.PoseObserver
	// Start starts the capture right after creation.
	Start bool
}

// DefaultCaptureConfig returns a config without observer and without auto-start.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{Start: false}
}

// GenerationConfig configures Generate. It is copied by value when the job
// starts; later changes by the caller have no effect on a running job.
type GenerationConfig struct {
	UserAuth        string `yaml:"user_auth" toml:"user_auth"`
	SecretAuth      string `yaml:"secret_auth" toml:"secret_auth"`
	OutputDirectory string `yaml:"output_directory" toml:"output_directory"`
	TargetName      string `yaml:"target_name" toml:"target_name"`
	// GenerateAuthoringFiles produces files for authoring tools.
	GenerateAuthoringFiles bool `yaml:"generate_authoring_files" toml:"generate_authoring_files"`
	// GeneratePackages bundles the results. Requires GenerateAuthoringFiles.
	GeneratePackages bool `yaml:"generate_packages" toml:"generate_packages"`
}

// DefaultGenerationConfig returns a config generating authoring files but no packages.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		GenerateAuthoringFiles: true,
		GeneratePackages:       false,
	}
}

// ValidateTargetName checks length 1-64 and the charset [A-Za-z0-9_-].
func ValidateTargetName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidTargetName)
	}
	if len(name) > MaxTargetNameLength {
		return fmt.Errorf("%w: %d characters exceeds %d", ErrInvalidTargetName, len(name), MaxTargetNameLength)
	}
	if !targetNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q contains characters outside [A-Za-z0-9_-]", ErrInvalidTargetName, name)
	}
	return nil
}

// ValidateOutputDirectory checks that dir exists, is a directory and is writable.
// Writability is probed by creating and removing a temporary file.
func ValidateOutputDirectory(dir string) error {
	if dir == "" {
		return fmt.Errorf("%w: path is empty", ErrInvalidOutputDirectory)
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s does not exist", ErrInvalidOutputDirectory, dir)
		}
		return fmt.Errorf("%w: %v", ErrInvalidOutputDirectory, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidOutputDirectory, dir)
	}

	probe, err := os.CreateTemp(dir, ".areacapture-probe-*")
	if err != nil {
		return fmt.Errorf("%w: %s is not writable: %v", ErrInvalidOutputDirectory, dir, err)
	}
	name := probe.Name()
	probe.Close()
	if err := os.Remove(name); err != nil {
		return fmt.Errorf("%w: cannot remove probe file %s: %v", ErrInvalidOutputDirectory, filepath.Base(name), err)
	}
	return nil
}

// ValidateCredentials requires both user and secret to be present.
func ValidateCredentials(user, secret string) error {
	if user == "" && secret == "" {
		return fmt.Errorf("%w: user and secret are empty", ErrMissingAuthentication)
	}
	if user == "" {
		return fmt.Errorf("%w: user is empty", ErrMissingAuthentication)
	}
	if secret == "" {
		return fmt.Errorf("%w: secret is empty", ErrMissingAuthentication)
	}
	return nil
}

// ValidateArtifactFlags enforces that packages are only built with authoring files.
func ValidateArtifactFlags(authoring, packages bool) error {
	if packages && !authoring {
		return ErrPackagesNeedAuthoring
	}
	return nil
}

// Validate runs the start-time checks in order: credentials, output directory,
// target name. The artifact flag rule is not checked here; a job violating it
// fails after start.
func (c GenerationConfig) Validate() *GenerationError {
	if err := ValidateCredentials(c.UserAuth, c.SecretAuth); err != nil {
		return newGenerationError(GenerationErrorMissingAuthentication, "credentials required", err)
	}
	if err := ValidateOutputDirectory(c.OutputDirectory); err != nil {
		return newGenerationError(GenerationErrorInvalidOutputDirectory, "output directory unusable", err)
	}
	if err := ValidateTargetName(c.TargetName); err != nil {
		return newGenerationError(GenerationErrorInvalidTargetName, "target name rejected", err)
	}
	return nil
}
