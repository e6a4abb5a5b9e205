// Package capture implements the area target capture controller: a bounded
// scan session with an asynchronous, cancellable target generation job.
//
// A Capture moves through
//
//	INITIALIZED -> PREPARING -> CAPTURING <-> PAUSED
//	PREPARING/CAPTURING/PAUSED -> STOPPED -> GENERATING -> STOPPED
//
// Caller-driven transitions hold the engine lifecycle lock shared, engine
// start/stop hooks hold it exclusively, so the two never interleave.
// Progress of a generation job is observed by polling only.
package capture

import (
	"fmt"
	"sync"
	"time"

	"areacapture/engine"
	"areacapture/generation"

	"go.uber.org/zap"
)

// ControllerKind identifies the area target capture controller on an engine.
const ControllerKind = "area_target_capture"

// Option configures a Controller and the captures it creates.
type Option func(*options)

type options struct {
	logger    *zap.Logger
	service   generation.Service
	recorder  Recorder
	factory   ReconstructorFactory
	etaWarmup time.Duration
	now       func() time.Time
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithService sets the generation backend.
func WithService(s generation.Service) Option {
	return func(o *options) {
		if s != nil {
			o.service = s
		}
	}
}

// WithRecorder sets the history recorder.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithReconstructorFactory overrides the reconstruction model.
func WithReconstructorFactory(f ReconstructorFactory) Option {
	return func(o *options) {
		if f != nil {
			o.factory = f
		}
	}
}

// WithReconstructionConfig uses the keyframe model with config.
func WithReconstructionConfig(config ReconstructionConfig) Option {
	return WithReconstructorFactory(KeyframeModelFactory(config))
}

// WithETAWarmup sets how long a job runs before time estimates are reported.
func WithETAWarmup(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.etaWarmup = d
		}
	}
}

// Controller creates area target captures for one engine and enforces that
// at most one capture exists at a time.
type Controller struct {
	engine *engine.Engine
	opts   options

	mu     sync.Mutex
	active *Capture
}

// NewController returns the area target capture controller of e.
// Each engine has a single controller; a second call fails.
func NewController(e *engine.Engine, opts ...Option) (*Controller, error) {
	if err := e.ClaimController(ControllerKind); err != nil {
		return nil, err
	}

	o := options{
		logger:    zap.NewNop(),
		service:   generation.NewLocalService(),
		recorder:  nopRecorder{},
		factory:   KeyframeModelFactory(DefaultReconstructionConfig()),
		etaWarmup: DefaultETAWarmup,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Controller{engine: e, opts: o}, nil
}

// Engine returns the engine the controller belongs to.
func (ctl *Controller) Engine() *engine.Engine {
	return ctl.engine
}

// Active returns the live capture, or nil.
func (ctl *Controller) Active() *Capture {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	return ctl.active
}

// CreateAreaTargetCapture creates the capture. On failure the error is a
// *CreationError and no capture exists afterwards (an existing capture is
// left untouched).
//
// Without cfg.Start the capture is INITIALIZED. With cfg.Start it is
// PREPARING when the engine runs, or PAUSED with SUSPENDED info until the
// engine starts.
func (ctl *Controller) CreateAreaTargetCapture(cfg CaptureConfig) (*Capture, error) {
	var created *Capture
	err := ctl.engine.WithLifecycle(func(running bool) error {
		if !ctl.engine.Device().DepthSensor {
			return newCreationError(CreationErrorFeatureNotSupported,
				fmt.Sprintf("device %q has no depth sensor", ctl.engine.Device().Model), nil)
		}

		observer := cfg.DevicePoseObserver
		if !observer.IsValid() || !ctl.engine.Owns(observer) {
			return newCreationError(CreationErrorInvalidDevicePoseObserver,
				"device pose observer is missing, destroyed or belongs to another engine", nil)
		}

		ctl.mu.Lock()
		defer ctl.mu.Unlock()

		if ctl.active != nil {
			return newCreationError(CreationErrorMultipleInstancesNotSupported,
				fmt.Sprintf("capture %s already exists", ctl.active.ID()), nil)
		}

		recon, err := ctl.opts.factory()
		if err != nil {
			return newCreationError(CreationErrorInternal, "reconstruction model unavailable", err)
		}

		c := newCapture(ctl, observer, recon)
		if cfg.Start {
			c.mu.Lock()
			err := c.startLocked(running)
			c.mu.Unlock()
			if err != nil {
				return newCreationError(CreationErrorAutostartFailed, "capture could not be started", err)
			}
		}

		c.attach()
		ctl.active = c
		created = c
		return nil
	})
	if err != nil {
		ctl.opts.logger.Warn("Capture creation failed",
			zap.String("code", CreationErrorCodeOf(err).String()),
			zap.Error(err))
		return nil, err
	}

	ctl.opts.logger.Info("Capture created",
		zap.String("capture_id", created.ID()),
		zap.Bool("autostart", cfg.Start))
	return created, nil
}

// release frees the single-instance slot held by c.
func (ctl *Controller) release(c *Capture) {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	if ctl.active == c {
		ctl.active = nil
	}
}
