// Package generation defines the asynchronous boundary to the target
// generation backend and provides a local backend that writes placeholder
// artifacts to the output directory.
//
// A generation job runs the phases in order:
//
//	tracking data -> authoring data (optional) -> device database -> package (optional)
//
// The capture package drives the phases; a Service only executes one phase at
// a time and reports the fraction of that phase completed.
package generation

import (
	"context"
	"errors"
	"time"
)

// Backend errors. The capture package maps them onto generation status info
// codes; any other error is treated as an internal failure.
var (
	ErrNoNetwork           = errors.New("generation: no network connection")
	ErrServiceUnavailable  = errors.New("generation: service not available")
	ErrAuthorizationFailed = errors.New("generation: authorization failed")
)

// Phase is one step of a generation job.
type Phase int

const (
	PhaseTrackingData Phase = iota
	PhaseAuthoringData
	PhaseDeviceDatabase
	PhasePackage
)

// String returns the string representation of a phase.
func (p Phase) String() string {
	switch p {
	case PhaseTrackingData:
		return "tracking_data"
	case PhaseAuthoringData:
		return "authoring_data"
	case PhaseDeviceDatabase:
		return "device_database"
	case PhasePackage:
		return "package"
	default:
		return "unknown"
	}
}

// Phases returns the phases a job runs for the given artifact flags.
func Phases(authoring, packages bool) []Phase {
	phases := []Phase{PhaseTrackingData}
	if authoring {
		phases = append(phases, PhaseAuthoringData)
	}
	phases = append(phases, PhaseDeviceDatabase)
	if packages {
		phases = append(phases, PhasePackage)
	}
	return phases
}

// Keyframe is one captured pose retained by the reconstruction model.
type Keyframe struct {
	Index     int        `yaml:"index"`
	Timestamp time.Time  `yaml:"timestamp"`
	Position  [3]float64 `yaml:"position,flow"`
	Rotation  [4]float64 `yaml:"rotation,flow"`
}

// Request is the immutable input of a generation job.
type Request struct {
	JobID           string
	TargetName      string
	OutputDirectory string
	UserAuth        string
	SecretAuth      string
	Keyframes       []Keyframe
	Authoring       bool
	Packages        bool
}

// Service executes generation phases.
//
// RunPhase blocks until the phase finished, failed or ctx was canceled.
// report may be called any number of times with the completed fraction of
// the phase in [0, 1]. Implementations must return promptly once ctx is done.
type Service interface {
	RunPhase(ctx context.Context, phase Phase, req Request, report func(fraction float64)) error
}

// ServiceFunc adapts a function to the Service interface.
type ServiceFunc func(ctx context.Context, phase Phase, req Request, report func(fraction float64)) error

// RunPhase calls f.
func (f ServiceFunc) RunPhase(ctx context.Context, phase Phase, req Request, report func(fraction float64)) error {
	return f(ctx, phase, req, report)
}
