package capture

import (
	"fmt"
	"sync"

	"areacapture/engine"
	"areacapture/generation"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Capture is one area scanning session. All methods are safe for concurrent
// use. CancelGeneration and Destroy block until background work has unwound;
// every other method returns immediately.
type Capture struct {
	id       string
	ctl      *Controller
	engine   *engine.Engine
	observer *engine.PoseObserver
	opts     options
	logger   *zap.Logger

	mu               sync.Mutex
	status           Status
	info             StatusInfo
	prePause         Status
	reachedCapturing bool
	destroyed        bool
	recon            Reconstructor
	reconStarted     bool
	// keyframes is the snapshot taken when acquisition stopped.
	keyframes []generation.Keyframe
	job       *job

	unsubscribeEngine func()
	detach            []func()
}

func newCapture(ctl *Controller, observer *engine.PoseObserver, recon Reconstructor) *Capture {
	id := uuid.NewString()
	return &Capture{
		id:       id,
		ctl:      ctl,
		engine:   ctl.engine,
		observer: observer,
		opts:     ctl.opts,
		logger:   ctl.opts.logger.With(zap.String("capture_id", id)),
		status:   StatusInitialized,
		info:     InfoNormal,
		recon:    recon,
	}
}

// attach subscribes the capture to engine lifecycle and pose events.
func (c *Capture) attach() {
	c.unsubscribeEngine = c.engine.Subscribe(engine.Hooks{
		OnStart: c.onEngineStart,
		OnStop:  c.onEngineStop,
	})
	c.detach = append(c.detach,
		c.unsubscribeEngine,
		c.observer.Subscribe(c.onPose),
		c.observer.OnActiveChange(c.onObserverActive),
	)
}

// ID returns the capture identifier.
func (c *Capture) ID() string {
	return c.id
}

// Status returns the lifecycle phase.
func (c *Capture) Status() (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return 0, ErrCaptureDestroyed
	}
	return c.status, nil
}

// StatusInfo returns the sub-state of the current status.
func (c *Capture) StatusInfo() (StatusInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return 0, ErrCaptureDestroyed
	}
	return c.info, nil
}

// Start begins acquisition from INITIALIZED. With the engine stopped the
// capture waits in PAUSED with SUSPENDED info and starts with the engine.
func (c *Capture) Start() error {
	return c.engine.WithLifecycle(func(running bool) error {
		c.mu.Lock()
		defer c.mu.Unlock()

		if err := c.checkStatusLocked("start", StatusInitialized); err != nil {
			return err
		}
		return c.startLocked(running)
	})
}

func (c *Capture) startLocked(running bool) error {
	if !running {
		c.prePause = StatusPreparing
		c.transitionLocked(StatusPaused, InfoSuspended)
		return nil
	}
	if err := c.ensureReconStartedLocked(); err != nil {
		return err
	}
	c.transitionLocked(StatusPreparing, c.acquiringInfoLocked())
	return nil
}

// Stop ends acquisition from PREPARING, CAPTURING or PAUSED. Buffered data is
// discarded; the reconstruction is kept for generation.
func (c *Capture) Stop() error {
	return c.engine.WithLifecycle(func(running bool) error {
		c.mu.Lock()
		defer c.mu.Unlock()

		if err := c.checkStatusLocked("stop", StatusPreparing, StatusCapturing, StatusPaused); err != nil {
			return err
		}
		if !running {
			return ErrEngineNotRunning
		}
		c.stopAcquisitionLocked()
		c.transitionLocked(StatusStopped, InfoNormal)
		return nil
	})
}

// Pause suspends acquisition from PREPARING or CAPTURING.
func (c *Capture) Pause() error {
	return c.engine.WithLifecycle(func(running bool) error {
		c.mu.Lock()
		defer c.mu.Unlock()

		if err := c.checkStatusLocked("pause", StatusPreparing, StatusCapturing); err != nil {
			return err
		}
		if !running {
			return ErrEngineNotRunning
		}
		c.prePause = c.status
		c.transitionLocked(StatusPaused, InfoNormal)
		return nil
	})
}

// Resume restores the status held before the capture was paused.
func (c *Capture) Resume() error {
	return c.engine.WithLifecycle(func(running bool) error {
		c.mu.Lock()
		defer c.mu.Unlock()

		if err := c.checkStatusLocked("resume", StatusPaused); err != nil {
			return err
		}
		if !running {
			return ErrEngineNotRunning
		}
		return c.resumeLocked()
	})
}

func (c *Capture) resumeLocked() error {
	if err := c.ensureReconStartedLocked(); err != nil {
		return err
	}
	c.transitionLocked(c.prePause, c.acquiringInfoLocked())
	return nil
}

// Destroy tears the capture down from any status. Acquisition is stopped and
// a running generation job is canceled; Destroy blocks until the job has
// unwound. It fails only when the capture was already destroyed.
func (c *Capture) Destroy() error {
	err := c.engine.WithLifecycle(func(bool) error {
		c.mu.Lock()
		if c.destroyed {
			c.mu.Unlock()
			return ErrCaptureDestroyed
		}
		c.destroyed = true
		if c.reconStarted {
			c.stopAcquisitionLocked()
		}
		j := c.job
		if j != nil {
			j.requestCancel()
		}
		c.mu.Unlock()

		if j != nil {
			<-j.done
		}

		for _, fn := range c.detach {
			fn()
		}
		c.ctl.release(c)
		return nil
	})
	if err != nil {
		return err
	}

	c.logger.Info("Capture destroyed")
	return nil
}

// onEngineStop runs with the lifecycle lock held exclusively.
func (c *Capture) onEngineStop() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}

	switch c.status {
	case StatusPreparing, StatusCapturing:
		c.prePause = c.status
		c.transitionLocked(StatusPaused, InfoSuspended)
		c.mu.Unlock()
	case StatusGenerating:
		j := c.job
		j.requestCancel()
		c.mu.Unlock()
		c.logger.Info("Engine stopping, canceling generation", zap.String("job_id", j.id))
		<-j.done
	default:
		c.mu.Unlock()
	}
}

// onEngineStart runs with the lifecycle lock held exclusively.
func (c *Capture) onEngineStart() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed || c.status != StatusPaused || c.info != InfoSuspended {
		return
	}
	if err := c.resumeLocked(); err != nil {
		c.logger.Error("Failed to resume suspended capture", zap.Error(err))
	}
}

func (c *Capture) onPose(sample engine.PoseSample) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed || !c.status.IsAcquiring() {
		return
	}

	info := c.recon.Integrate(sample)
	if c.status == StatusPreparing && c.recon.Sufficient() {
		c.transitionLocked(StatusCapturing, info)
		return
	}
	if info != c.info {
		c.logger.Debug("Capture status info changed",
			zap.Stringer("from", c.info),
			zap.Stringer("to", info))
		c.info = info
	}
}

func (c *Capture) onObserverActive(active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed || !c.status.IsAcquiring() {
		return
	}
	if active {
		c.info = InfoNormal
	} else {
		c.info = InfoInterrupted
	}
	c.logger.Info("Device pose observer activity changed",
		zap.Bool("active", active),
		zap.Stringer("status_info", c.info))
}

func (c *Capture) checkStatusLocked(op string, allowed ...Status) error {
	if c.destroyed {
		return ErrCaptureDestroyed
	}
	for _, s := range allowed {
		if c.status == s {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidStatus, op, c.status)
}

func (c *Capture) ensureReconStartedLocked() error {
	if c.reconStarted {
		return nil
	}
	if err := c.recon.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrReconstructionFailed, err)
	}
	c.reconStarted = true
	return nil
}

func (c *Capture) stopAcquisitionLocked() {
	c.keyframes = c.recon.Keyframes()
	c.recon.Stop()
	c.reconStarted = false
}

func (c *Capture) acquiringInfoLocked() StatusInfo {
	if !c.observer.IsActive() {
		return InfoInterrupted
	}
	return InfoNormal
}

func (c *Capture) transitionLocked(to Status, info StatusInfo) {
	from := c.status
	c.status = to
	c.info = info
	if to == StatusCapturing {
		c.reachedCapturing = true
	}

	c.logger.Info("Capture status changed",
		zap.Stringer("from", from),
		zap.Stringer("to", to),
		zap.Stringer("status_info", info))
	c.opts.recorder.RecordTransition(TransitionRecord{
		CaptureID: c.id,
		From:      from,
		To:        to,
		Info:      info,
		At:        c.opts.now(),
	})
}
