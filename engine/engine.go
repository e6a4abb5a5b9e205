// Package engine models the host engine the capture controller depends on:
// the global running/stopped lifecycle, the device capabilities and the
// device pose stream.
//
// The engine owns a lifecycle lock. Start and Stop hold it exclusively while
// running the registered lifecycle hooks, and controllers hold it shared for
// the duration of caller-driven transitions (WithLifecycle), so the two kinds
// of transitions never interleave.
package engine

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

var (
	// ErrAlreadyRunning is returned by Start on a running engine.
	ErrAlreadyRunning = errors.New("engine: already running")
	// ErrNotRunning is returned by Stop on a stopped engine.
	ErrNotRunning = errors.New("engine: not running")
	// ErrControllerClaimed is returned when a controller kind is requested twice.
	ErrControllerClaimed = errors.New("engine: controller already claimed")
)

// Device describes the capabilities of the device the engine runs on.
type Device struct {
	Model string
	// DepthSensor reports whether a depth (LiDAR) sensor is available.
	DepthSensor bool
}

// DefaultDevice is a device with the sensors area capture needs.
func DefaultDevice() Device {
	return Device{Model: "simulated-lidar", DepthSensor: true}
}

// Hooks are lifecycle callbacks registered by controllers.
// They run with the lifecycle lock held exclusively and must not call
// WithLifecycle, Start or Stop.
type Hooks struct {
	// OnStart runs after the engine is marked running.
	OnStart func()
	// OnStop runs before the engine is marked stopped.
	OnStop func()
}

type hookEntry struct {
	id    int
	hooks Hooks
}

// Engine is the lifecycle owner for controllers and observers.
type Engine struct {
	lifecycle sync.RWMutex
	// running is written only with the lifecycle lock held exclusively.
	running atomic.Bool

	mu          sync.Mutex
	hooks       []hookEntry
	nextHookID  int
	observers   map[*PoseObserver]struct{}
	controllers map[string]struct{}

	device Device
	logger *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithDevice overrides the simulated device capabilities.
func WithDevice(d Device) Option {
	return func(e *Engine) {
		e.device = d
	}
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates a stopped engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		observers:   make(map[*PoseObserver]struct{}),
		controllers: make(map[string]struct{}),
		device:      DefaultDevice(),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start marks the engine running and runs the start hooks in registration order.
func (e *Engine) Start() error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	if e.running.Load() {
		return ErrAlreadyRunning
	}
	e.running.Store(true)
	e.logger.Info("Engine started")

	for _, h := range e.snapshotHooks() {
		if h.OnStart != nil {
			h.OnStart()
		}
	}
	return nil
}

// Stop runs the stop hooks in reverse registration order and marks the engine stopped.
// Stop blocks until every hook returns; hooks may cancel long-running work.
func (e *Engine) Stop() error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	if !e.running.Load() {
		return ErrNotRunning
	}

	hooks := e.snapshotHooks()
	for i := len(hooks) - 1; i >= 0; i-- {
		if hooks[i].OnStop != nil {
			hooks[i].OnStop()
		}
	}

	e.running.Store(false)
	e.logger.Info("Engine stopped")
	return nil
}

// IsRunning reports the current lifecycle state without taking the lifecycle lock.
func (e *Engine) IsRunning() bool {
	return e.running.Load()
}

// WithLifecycle runs fn while holding the lifecycle lock shared.
// fn observes a running flag that cannot change until it returns.
func (e *Engine) WithLifecycle(fn func(running bool) error) error {
	e.lifecycle.RLock()
	defer e.lifecycle.RUnlock()
	return fn(e.running.Load())
}

// Device returns the device capabilities.
func (e *Engine) Device() Device {
	return e.device
}

// Subscribe registers lifecycle hooks. The returned function removes them.
func (e *Engine) Subscribe(h Hooks) (unsubscribe func()) {
	e.mu.Lock()
	id := e.nextHookID
	e.nextHookID++
	e.hooks = append(e.hooks, hookEntry{id: id, hooks: h})
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			for i, entry := range e.hooks {
				if entry.id == id {
					e.hooks = append(e.hooks[:i], e.hooks[i+1:]...)
					return
				}
			}
		})
	}
}

// ClaimController reserves a controller kind on this engine.
// Each controller kind exists at most once per engine.
func (e *Engine) ClaimController(kind string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.controllers[kind]; ok {
		return fmt.Errorf("%w: %s", ErrControllerClaimed, kind)
	}
	e.controllers[kind] = struct{}{}
	return nil
}

// CreateDevicePoseObserver creates an active observer for the device pose.
func (e *Engine) CreateDevicePoseObserver() (*PoseObserver, error) {
	o := newPoseObserver(e)

	e.mu.Lock()
	e.observers[o] = struct{}{}
	e.mu.Unlock()

	e.logger.Debug("Device pose observer created", zap.String("observer_id", o.ID()))
	return o, nil
}

// Owns reports whether o was created by this engine and has not been destroyed.
func (e *Engine) Owns(o *PoseObserver) bool {
	if o == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.observers[o]
	return ok
}

// ObserverCount returns the number of live observers.
func (e *Engine) ObserverCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.observers)
}

func (e *Engine) removeObserver(o *PoseObserver) {
	e.mu.Lock()
	delete(e.observers, o)
	e.mu.Unlock()
}

func (e *Engine) snapshotHooks() []Hooks {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Hooks, len(e.hooks))
	for i, entry := range e.hooks {
		out[i] = entry.hooks
	}
	return out
}
