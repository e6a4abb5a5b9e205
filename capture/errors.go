package capture

import (
	"errors"
	"fmt"
)

// Sentinel errors for simple precondition failures. The cause is evident from
// the current status, so no detail code is attached.
var (
	ErrInvalidStatus           = errors.New("capture: operation not valid in current status")
	ErrEngineNotRunning        = errors.New("capture: engine not running")
	ErrCaptureDestroyed        = errors.New("capture: capture destroyed")
	ErrNotGenerating           = errors.New("capture: no generation in progress")
	ErrTimeEstimateUnavailable = errors.New("capture: time estimate not yet available")
	ErrReconstructionFailed    = errors.New("capture: reconstruction failed")
)

// CreationErrorCode details why a capture could not be created.
type CreationErrorCode int

const (
	CreationErrorNone                          CreationErrorCode = 0
	CreationErrorInternal                      CreationErrorCode = 1
	CreationErrorAutostartFailed               CreationErrorCode = 2
	CreationErrorFeatureNotSupported           CreationErrorCode = 3
	CreationErrorMultipleInstancesNotSupported CreationErrorCode = 4
	CreationErrorInvalidDevicePoseObserver     CreationErrorCode = 5
)

// String returns the string representation of a creation error code.
func (c CreationErrorCode) String() string {
	switch c {
	case CreationErrorNone:
		return "none"
	case CreationErrorInternal:
		return "internal"
	case CreationErrorAutostartFailed:
		return "autostart_failed"
	case CreationErrorFeatureNotSupported:
		return "feature_not_supported"
	case CreationErrorMultipleInstancesNotSupported:
		return "multiple_instances_not_supported"
	case CreationErrorInvalidDevicePoseObserver:
		return "invalid_device_pose_observer"
	default:
		return "unknown"
	}
}

// CreationError is returned by CreateAreaTargetCapture.
type CreationError struct {
	Code    CreationErrorCode
	Message string
	Err     error
}

func (e *CreationError) Error() string {
	msg := fmt.Sprintf("capture: creation failed (%s): %s", e.Code, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CreationError) Unwrap() error {
	return e.Err
}

func newCreationError(code CreationErrorCode, msg string, err error) *CreationError {
	return &CreationError{Code: code, Message: msg, Err: err}
}

// GenerationErrorCode details why a generation could not be started.
type GenerationErrorCode int

const (
	GenerationErrorNone                   GenerationErrorCode = 0
	GenerationErrorInternal               GenerationErrorCode = 1
	GenerationErrorEngineNotRunning       GenerationErrorCode = 2
	GenerationErrorInvalidStatus          GenerationErrorCode = 3
	GenerationErrorInsufficientData       GenerationErrorCode = 4
	GenerationErrorMissingAuthentication  GenerationErrorCode = 5
	GenerationErrorInvalidOutputDirectory GenerationErrorCode = 6
	GenerationErrorInvalidTargetName      GenerationErrorCode = 7
)

// String returns the string representation of a generation error code.
func (c GenerationErrorCode) String() string {
	switch c {
	case GenerationErrorNone:
		return "none"
	case GenerationErrorInternal:
		return "internal"
	case GenerationErrorEngineNotRunning:
		return "engine_not_running"
	case GenerationErrorInvalidStatus:
		return "invalid_status"
	case GenerationErrorInsufficientData:
		return "insufficient_data"
	case GenerationErrorMissingAuthentication:
		return "missing_authentication"
	case GenerationErrorInvalidOutputDirectory:
		return "invalid_output_directory"
	case GenerationErrorInvalidTargetName:
		return "invalid_target_name"
	default:
		return "unknown"
	}
}

// GenerationError is returned by Generate when the job cannot be started.
// Failures after the job started are reported through StatusInfo only.
type GenerationError struct {
	Code    GenerationErrorCode
	Message string
	Err     error
}

func (e *GenerationError) Error() string {
	msg := fmt.Sprintf("capture: generation rejected (%s): %s", e.Code, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

func newGenerationError(code GenerationErrorCode, msg string, err error) *GenerationError {
	return &GenerationError{Code: code, Message: msg, Err: err}
}

// AsCreationError returns the CreationError in err's chain, if any.
func AsCreationError(err error) (*CreationError, bool) {
	var ce *CreationError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// AsGenerationError returns the GenerationError in err's chain, if any.
func AsGenerationError(err error) (*GenerationError, bool) {
	var ge *GenerationError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// CreationErrorCodeOf returns the creation code of err.
// A nil error yields CreationErrorNone, a foreign error CreationErrorInternal.
func CreationErrorCodeOf(err error) CreationErrorCode {
	if err == nil {
		return CreationErrorNone
	}
	if ce, ok := AsCreationError(err); ok {
		return ce.Code
	}
	return CreationErrorInternal
}

// GenerationErrorCodeOf returns the generation code of err.
// A nil error yields GenerationErrorNone, a foreign error GenerationErrorInternal.
func GenerationErrorCodeOf(err error) GenerationErrorCode {
	if err == nil {
		return GenerationErrorNone
	}
	if ge, ok := AsGenerationError(err); ok {
		return ge.Code
	}
	return GenerationErrorInternal
}
