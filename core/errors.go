package core

import (
	"errors"
	"fmt"
)

// ConfigError represents a configuration-related error with actionable instructions.
type ConfigError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
	Action  string // Actionable instruction for resolution
	Err     error  // Underlying cause, if any
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Error codes for configuration errors
const (
	ErrCodeConfigFileMissing  = "CONFIG_FILE_MISSING"
	ErrCodeConfigFileInvalid  = "CONFIG_FILE_INVALID"
	ErrCodeUnsupportedFormat  = "UNSUPPORTED_CONFIG_FORMAT"
	ErrCodeInvalidValue       = "INVALID_VALUE"
	ErrCodeMissingConfig      = "MISSING_CONFIG"
	ErrCodeInvalidSecretHash  = "INVALID_SECRET_HASH"
	ErrCodeDataDirUnavailable = "DATA_DIR_UNAVAILABLE"
)

// ErrConfigFileMissing returns an error for a config file that does not exist
func ErrConfigFileMissing(path string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeConfigFileMissing,
		Message: fmt.Sprintf("Configuration file not found: %s", path),
		Action:  "Check the --config path or omit it to use defaults and environment variables",
	}
}

// ErrConfigFileInvalid returns an error for a config file that cannot be decoded
func ErrConfigFileInvalid(path string, cause error) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeConfigFileInvalid,
		Message: fmt.Sprintf("Configuration file %s could not be parsed: %v", path, cause),
		Action:  "Fix the syntax error reported above",
		Err:     cause,
	}
}

// ErrUnsupportedFormat returns an error for an unknown config file extension
func ErrUnsupportedFormat(path string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeUnsupportedFormat,
		Message: fmt.Sprintf("Unsupported configuration format: %s", path),
		Action:  "Use a .yaml, .yml or .toml file",
	}
}

// ErrInvalidValue returns an error for a setting outside its accepted range
func ErrInvalidValue(name string, value any, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidValue,
		Message: fmt.Sprintf("Invalid value for %s (%v): %s", name, value, reason),
		Action:  fmt.Sprintf("Set %s to a valid value in the config file or environment", name),
	}
}

// ErrMissingConfig returns an error for missing required configuration
func ErrMissingConfig(varName string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingConfig,
		Message: fmt.Sprintf("Missing required configuration: %s", varName),
		Action:  fmt.Sprintf("Set %s in your .env file or pass it as a flag", varName),
	}
}

// ErrInvalidSecretHash returns an error for a malformed GENERATION_SECRET_HASH
func ErrInvalidSecretHash(cause error) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidSecretHash,
		Message: "GENERATION_SECRET_HASH is not a valid bcrypt hash",
		Action:  "Generate one with 'areacapture hash-secret <secret>'",
		Err:     cause,
	}
}

// ErrDataDirUnavailable returns an error when the data directory cannot be created
func ErrDataDirUnavailable(path string, cause error) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeDataDirUnavailable,
		Message: fmt.Sprintf("Cannot create data directory %s: %v", path, cause),
		Action:  "Check permissions or set AREACAPTURE_DB_PATH to a writable location",
		Err:     cause,
	}
}

// IsConfigError checks if an error is a ConfigError and returns it if so
func IsConfigError(err error) (*ConfigError, bool) {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from an error if it's a ConfigError
func GetErrorCode(err error) string {
	if configErr, ok := IsConfigError(err); ok {
		return configErr.Code
	}
	return ""
}
