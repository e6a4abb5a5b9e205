package capture

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"areacapture/engine"
	"areacapture/generation"

	"go.uber.org/zap/zaptest"
)

// fakeRecon is a Reconstructor whose sufficiency is set by the test.
type fakeRecon struct {
	mu         sync.Mutex
	startErr   error
	sufficient bool
	info       StatusInfo
	starts     int
	stops      int
	samples    int
}

func (f *fakeRecon) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.starts++
	return nil
}

func (f *fakeRecon) Integrate(engine.PoseSample) StatusInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples++
	if f.info == 0 {
		return InfoNormal
	}
	return f.info
}

func (f *fakeRecon) Sufficient() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sufficient
}

func (f *fakeRecon) Keyframes() []generation.Keyframe {
	return []generation.Keyframe{{Index: 0}, {Index: 1, Position: [3]float64{1, 0, 0}}}
}

func (f *fakeRecon) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeRecon) set(sufficient bool, info StatusInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sufficient = sufficient
	f.info = info
}

func (f *fakeRecon) counts() (starts, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops
}

// gatedService advances one step per value received on advance.
type gatedService struct {
	steps   int
	advance chan struct{}
	unwound atomic.Bool
}

func newGatedService(steps int) *gatedService {
	return &gatedService{steps: steps, advance: make(chan struct{})}
}

func (s *gatedService) RunPhase(ctx context.Context, _ generation.Phase, _ generation.Request, report func(float64)) error {
	for i := 1; i <= s.steps; i++ {
		select {
		case <-ctx.Done():
			s.unwound.Store(true)
			return ctx.Err()
		case <-s.advance:
		}
		report(float64(i) / float64(s.steps))
	}
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func withClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

type memRecorder struct {
	mu          sync.Mutex
	transitions []TransitionRecord
	generations []GenerationRecord
}

func (r *memRecorder) RecordTransition(rec TransitionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, rec)
}

func (r *memRecorder) RecordGeneration(rec GenerationRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generations = append(r.generations, rec)
}

func (r *memRecorder) generationsSnapshot() []GenerationRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]GenerationRecord(nil), r.generations...)
}

type fixture struct {
	engine   *engine.Engine
	observer *engine.PoseObserver
	ctl      *Controller
	recon    *fakeRecon
}

// newFixture returns a running engine with a controller whose captures use
// a fakeRecon. Extra options override the defaults.
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	e := engine.New(engine.WithLogger(zaptest.NewLogger(t)))
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}
	obs, err := e.CreateDevicePoseObserver()
	if err != nil {
		t.Fatal(err)
	}

	f := &fixture{engine: e, observer: obs, recon: &fakeRecon{}}
	base := []Option{
		WithLogger(zaptest.NewLogger(t)),
		WithReconstructorFactory(func() (Reconstructor, error) { return f.recon, nil }),
		WithService(generation.NewLocalService(generation.WithSteps(2), generation.WithStepDelay(time.Millisecond))),
	}
	ctl, err := NewController(e, append(base, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	f.ctl = ctl
	return f
}

// create makes a capture that is destroyed when the test ends.
func (f *fixture) create(t *testing.T, start bool) *Capture {
	t.Helper()
	c, err := f.ctl.CreateAreaTargetCapture(CaptureConfig{DevicePoseObserver: f.observer, Start: start})
	if err != nil {
		t.Fatalf("CreateAreaTargetCapture() error = %v", err)
	}
	t.Cleanup(func() {
		if err := c.Destroy(); err != nil && !errors.Is(err, ErrCaptureDestroyed) {
			t.Errorf("Destroy() error = %v", err)
		}
	})
	return c
}

// reachCapturing publishes a pose after marking the reconstruction sufficient.
func (f *fixture) reachCapturing(t *testing.T, c *Capture) {
	t.Helper()
	f.recon.set(true, InfoNormal)
	if !f.observer.Publish(engine.PoseSample{}) {
		t.Fatal("pose sample dropped")
	}
	assertStatus(t, c, StatusCapturing)
}

// ignoreEngineLifecycle unhooks c from engine start and stop so the engine
// can be stopped without suspending the capture.
func (f *fixture) ignoreEngineLifecycle(c *Capture) {
	c.unsubscribeEngine()
}

// stoppedWithData returns a STOPPED capture that reached CAPTURING.
func (f *fixture) stoppedWithData(t *testing.T) *Capture {
	t.Helper()
	c := f.create(t, true)
	f.reachCapturing(t, c)
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	return c
}

func validGenerationConfig(t *testing.T) GenerationConfig {
	t.Helper()
	cfg := DefaultGenerationConfig()
	cfg.UserAuth = "scanner"
	cfg.SecretAuth = "secret"
	cfg.OutputDirectory = t.TempDir()
	cfg.TargetName = "lobby-01"
	return cfg
}

func assertStatus(t *testing.T, c *Capture, want Status) {
	t.Helper()
	got, err := c.Status()
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if got != want {
		t.Fatalf("Status() = %s, want %s", got, want)
	}
}

func assertInfo(t *testing.T, c *Capture, want StatusInfo) {
	t.Helper()
	got, err := c.StatusInfo()
	if err != nil {
		t.Fatalf("StatusInfo() error = %v", err)
	}
	if got != want {
		t.Fatalf("StatusInfo() = %s, want %s", got, want)
	}
}

// waitStopped polls until the capture leaves GENERATING.
func waitStopped(t *testing.T, c *Capture) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s, err := c.Status(); err == nil && s == StatusStopped {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("capture did not return to stopped")
}

// waitProgress polls until progress reaches at least min.
func waitProgress(t *testing.T, c *Capture, min float32) float32 {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		p, err := c.GenerationProgress()
		if err != nil {
			t.Fatalf("GenerationProgress() error = %v", err)
		}
		if p >= min {
			return p
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("progress did not reach %v", min)
	return 0
}
