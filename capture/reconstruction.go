package capture

import (
	"errors"
	"fmt"
	"time"

	"areacapture/engine"
	"areacapture/generation"
)

// Reconstructor accumulates pose data into an environment reconstruction.
// Implementations are not safe for concurrent use; the capture serializes
// every call under its own lock.
type Reconstructor interface {
	// Start begins acquisition. It may be called again after Stop.
	Start() error
	// Integrate adds one pose sample and returns the advisory status info
	// describing the acquisition conditions.
	Integrate(sample engine.PoseSample) StatusInfo
	// Sufficient reports whether enough data was gathered for an initial
	// reconstruction.
	Sufficient() bool
	// Keyframes returns a copy of the retained keyframes.
	Keyframes() []generation.Keyframe
	// Stop ends acquisition and discards buffered samples. Keyframes remain.
	Stop()
}

// ReconstructorFactory builds the reconstructor of a new capture.
type ReconstructorFactory func() (Reconstructor, error)

// ReconstructionConfig tunes the keyframe model.
type ReconstructionConfig struct {
	// SufficientKeyframes is the number of keyframes after which the
	// reconstruction is considered sufficient.
	SufficientKeyframes int `yaml:"sufficient_keyframes" toml:"sufficient_keyframes"`
	// KeyframeSpacing is the minimum distance in meters between keyframes.
	KeyframeSpacing float64 `yaml:"keyframe_spacing" toml:"keyframe_spacing"`
	// MaxKeyframes bounds the keyframe buffer; the oldest keyframes are evicted.
	MaxKeyframes int `yaml:"max_keyframes" toml:"max_keyframes"`
	// CapacityWarningRatio is the buffer fill ratio reported as capacity warning.
	CapacityWarningRatio float64 `yaml:"capacity_warning_ratio" toml:"capacity_warning_ratio"`
	// MaxSpeed in meters per second; faster motion is rejected as excessive.
	MaxSpeed float64 `yaml:"max_speed" toml:"max_speed"`
	// MaxSampleGap beyond which two samples are not compared for speed.
	MaxSampleGap time.Duration `yaml:"max_sample_gap" toml:"max_sample_gap"`
}

// DefaultReconstructionConfig returns defaults suited to a walking scan.
func DefaultReconstructionConfig() ReconstructionConfig {
	return ReconstructionConfig{
		SufficientKeyframes:  20,
		KeyframeSpacing:      0.1,
		MaxKeyframes:         2000,
		CapacityWarningRatio: 0.9,
		MaxSpeed:             2.0,
		MaxSampleGap:         time.Second,
	}
}

// ErrInvalidReconstructionConfig is returned for unusable model settings.
var ErrInvalidReconstructionConfig = errors.New("capture: invalid reconstruction config")

// Validate checks the config for values the model cannot work with.
func (c ReconstructionConfig) Validate() error {
	switch {
	case c.SufficientKeyframes <= 0:
		return fmt.Errorf("%w: sufficient_keyframes must be positive", ErrInvalidReconstructionConfig)
	case c.MaxKeyframes < c.SufficientKeyframes:
		return fmt.Errorf("%w: max_keyframes %d below sufficient_keyframes %d", ErrInvalidReconstructionConfig, c.MaxKeyframes, c.SufficientKeyframes)
	case c.KeyframeSpacing < 0:
		return fmt.Errorf("%w: keyframe_spacing must not be negative", ErrInvalidReconstructionConfig)
	case c.MaxSpeed <= 0:
		return fmt.Errorf("%w: max_speed must be positive", ErrInvalidReconstructionConfig)
	case c.CapacityWarningRatio <= 0 || c.CapacityWarningRatio > 1:
		return fmt.Errorf("%w: capacity_warning_ratio must be in (0, 1]", ErrInvalidReconstructionConfig)
	}
	return nil
}

// KeyframeModel is the default Reconstructor. It keeps a bounded buffer of
// keyframes spaced along the device trajectory.
type KeyframeModel struct {
	config ReconstructionConfig

	running    bool
	last       *engine.PoseSample
	keyframes  []generation.Keyframe
	integrated int
	nextIndex  int
}

// NewKeyframeModel creates a keyframe model.
func NewKeyframeModel(config ReconstructionConfig) (*KeyframeModel, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &KeyframeModel{config: config}, nil
}

// KeyframeModelFactory returns a ReconstructorFactory building keyframe models.
func KeyframeModelFactory(config ReconstructionConfig) ReconstructorFactory {
	return func() (Reconstructor, error) {
		return NewKeyframeModel(config)
	}
}

// Start implements Reconstructor.
func (m *KeyframeModel) Start() error {
	m.running = true
	m.last = nil
	return nil
}

// Stop implements Reconstructor.
func (m *KeyframeModel) Stop() {
	m.running = false
	m.last = nil
}

// Sufficient implements Reconstructor. Evicted keyframes still count.
func (m *KeyframeModel) Sufficient() bool {
	return m.integrated >= m.config.SufficientKeyframes
}

// Keyframes implements Reconstructor.
func (m *KeyframeModel) Keyframes() []generation.Keyframe {
	out := make([]generation.Keyframe, len(m.keyframes))
	copy(out, m.keyframes)
	return out
}

// Integrate implements Reconstructor.
func (m *KeyframeModel) Integrate(sample engine.PoseSample) StatusInfo {
	if !m.running {
		return InfoNormal
	}
	if sample.Tracking == engine.TrackingLimited {
		m.last = nil
		return InfoRelocalizing
	}

	prev := m.last
	m.last = &sample
	if prev != nil {
		dt := sample.Timestamp.Sub(prev.Timestamp)
		if dt > 0 && dt <= m.config.MaxSampleGap {
			if speed := sample.DistanceTo(*prev) / dt.Seconds(); speed > m.config.MaxSpeed {
				return InfoExcessiveMotion
			}
		}
	}

	evicted := false
	if n := len(m.keyframes); n == 0 || keyframeDistance(m.keyframes[n-1], sample) >= m.config.KeyframeSpacing {
		m.keyframes = append(m.keyframes, generation.Keyframe{
			Index:     m.nextIndex,
			Timestamp: sample.Timestamp,
			Position:  sample.Position,
			Rotation:  sample.Rotation,
		})
		m.nextIndex++
		m.integrated++
		if len(m.keyframes) > m.config.MaxKeyframes {
			m.keyframes = m.keyframes[len(m.keyframes)-m.config.MaxKeyframes:]
			evicted = true
		}
	}

	fill := float64(len(m.keyframes)) / float64(m.config.MaxKeyframes)
	if evicted || fill >= m.config.CapacityWarningRatio {
		return InfoCapacityWarning
	}
	return InfoNormal
}

func keyframeDistance(kf generation.Keyframe, sample engine.PoseSample) float64 {
	return engine.PoseSample{Position: kf.Position}.DistanceTo(sample)
}
