package engine

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TrackingStatus is the quality of a device pose sample.
type TrackingStatus int

const (
	// TrackingNormal means the pose is fully tracked.
	TrackingNormal TrackingStatus = iota
	// TrackingLimited means the pose is unreliable and the device is relocalizing.
	TrackingLimited
)

// String returns the string representation of a tracking status.
func (t TrackingStatus) String() string {
	switch t {
	case TrackingNormal:
		return "normal"
	case TrackingLimited:
		return "limited"
	default:
		return "unknown"
	}
}

// PoseSample is one device pose reported by the pose stream.
type PoseSample struct {
	Timestamp time.Time
	// Position in meters.
	Position [3]float64
	// Rotation as a unit quaternion (x, y, z, w).
	Rotation [4]float64
	Tracking TrackingStatus
}

// DistanceTo returns the euclidean distance between two sample positions.
func (p PoseSample) DistanceTo(other PoseSample) float64 {
	dx := p.Position[0] - other.Position[0]
	dy := p.Position[1] - other.Position[1]
	dz := p.Position[2] - other.Position[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// PoseObserver observes the device pose. Samples are delivered to subscribers
// only while the engine is running and the observer is active.
type PoseObserver struct {
	engine *Engine
	id     string

	mu          sync.Mutex
	active      bool
	destroyed   bool
	nextID      int
	samples     map[int]func(PoseSample)
	activations map[int]func(active bool)
}

func newPoseObserver(e *Engine) *PoseObserver {
	return &PoseObserver{
		engine:      e,
		id:          uuid.NewString(),
		active:      true,
		samples:     make(map[int]func(PoseSample)),
		activations: make(map[int]func(bool)),
	}
}

// ID returns the observer identifier.
func (o *PoseObserver) ID() string {
	return o.id
}

// Engine returns the engine that created the observer.
func (o *PoseObserver) Engine() *Engine {
	return o.engine
}

// IsActive reports whether the observer currently produces samples.
func (o *PoseObserver) IsActive() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active && !o.destroyed
}

// IsValid reports whether the observer can still be used.
func (o *PoseObserver) IsValid() bool {
	if o == nil {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return !o.destroyed
}

// Activate resumes sample delivery.
func (o *PoseObserver) Activate() {
	o.setActive(true)
}

// Deactivate suspends sample delivery.
func (o *PoseObserver) Deactivate() {
	o.setActive(false)
}

func (o *PoseObserver) setActive(active bool) {
	o.mu.Lock()
	if o.destroyed || o.active == active {
		o.mu.Unlock()
		return
	}
	o.active = active
	listeners := make([]func(bool), 0, len(o.activations))
	for _, fn := range o.activations {
		listeners = append(listeners, fn)
	}
	o.mu.Unlock()

	for _, fn := range listeners {
		fn(active)
	}
}

// Destroy invalidates the observer and drops all subscribers. Activation
// listeners of an active observer are told it went inactive.
func (o *PoseObserver) Destroy() {
	o.mu.Lock()
	if o.destroyed {
		o.mu.Unlock()
		return
	}
	var listeners []func(bool)
	if o.active {
		for _, fn := range o.activations {
			listeners = append(listeners, fn)
		}
	}
	o.destroyed = true
	o.samples = make(map[int]func(PoseSample))
	o.activations = make(map[int]func(bool))
	o.mu.Unlock()

	o.engine.removeObserver(o)
	for _, fn := range listeners {
		fn(false)
	}
}

// Subscribe registers a sample callback. Callbacks run on the publishing
// goroutine. The returned function removes the callback.
func (o *PoseObserver) Subscribe(fn func(PoseSample)) (unsubscribe func()) {
	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.samples[id] = fn
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.samples, id)
		o.mu.Unlock()
	}
}

// OnActiveChange registers a callback for activation changes.
func (o *PoseObserver) OnActiveChange(fn func(active bool)) (unsubscribe func()) {
	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.activations[id] = fn
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.activations, id)
		o.mu.Unlock()
	}
}

// Publish delivers a sample to subscribers. It returns false when the sample
// was dropped because the engine is stopped or the observer is inactive.
func (o *PoseObserver) Publish(sample PoseSample) bool {
	if !o.engine.IsRunning() {
		return false
	}

	o.mu.Lock()
	if !o.active || o.destroyed {
		o.mu.Unlock()
		return false
	}
	subs := make([]func(PoseSample), 0, len(o.samples))
	for _, fn := range o.samples {
		subs = append(subs, fn)
	}
	o.mu.Unlock()

	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}
	for _, fn := range subs {
		fn(sample)
	}
	return true
}
