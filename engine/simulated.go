package engine

import (
	"context"
	"math"
	"time"
)

// SimulatedPoseConfig configures a SimulatedPoseSource.
type SimulatedPoseConfig struct {
	// Rate is the number of samples per second.
	Rate float64
	// Radius of the circular walking path in meters.
	Radius float64
	// Speed along the path in meters per second.
	Speed float64
	// Height of the device above the floor in meters.
	Height float64
}

// DefaultSimulatedPoseConfig walks a 3m circle at a slow walking pace.
func DefaultSimulatedPoseConfig() SimulatedPoseConfig {
	return SimulatedPoseConfig{
		Rate:   30,
		Radius: 3,
		Speed:  0.6,
		Height: 1.5,
	}
}

// SimulatedPoseSource publishes a synthetic walking trajectory to an observer.
// It stands in for the camera/IMU pipeline of a real device.
type SimulatedPoseSource struct {
	observer *PoseObserver
	config   SimulatedPoseConfig
	now      func() time.Time
}

// NewSimulatedPoseSource creates a source publishing to observer.
func NewSimulatedPoseSource(observer *PoseObserver, config SimulatedPoseConfig) *SimulatedPoseSource {
	def := DefaultSimulatedPoseConfig()
	if config.Rate <= 0 {
		config.Rate = def.Rate
	}
	if config.Radius <= 0 {
		config.Radius = def.Radius
	}
	if config.Speed <= 0 {
		config.Speed = def.Speed
	}
	if config.Height == 0 {
		config.Height = def.Height
	}
	return &SimulatedPoseSource{
		observer: observer,
		config:   config,
		now:      time.Now,
	}
}

// SampleAt returns the simulated pose after elapsed walking time.
func (s *SimulatedPoseSource) SampleAt(elapsed time.Duration) PoseSample {
	angle := s.config.Speed * elapsed.Seconds() / s.config.Radius
	heading := angle + math.Pi/2
	return PoseSample{
		Timestamp: s.now(),
		Position: [3]float64{
			s.config.Radius * math.Cos(angle),
			s.config.Height,
			s.config.Radius * math.Sin(angle),
		},
		// rotation about the vertical axis
		Rotation: [4]float64{0, math.Sin(heading / 2), 0, math.Cos(heading / 2)},
		Tracking: TrackingNormal,
	}
}

// Run publishes samples until ctx is done. Samples dropped by the observer
// (engine stopped, observer inactive) are not retried.
func (s *SimulatedPoseSource) Run(ctx context.Context) {
	interval := time.Duration(float64(time.Second) / s.config.Rate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := s.now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.observer.Publish(s.SampleAt(s.now().Sub(start)))
		}
	}
}
