package capture

import (
	"errors"
	"testing"
	"time"

	"areacapture/engine"
)

func sampleAt(base time.Time, ms int, x float64) engine.PoseSample {
	return engine.PoseSample{
		Timestamp: base.Add(time.Duration(ms) * time.Millisecond),
		Position:  [3]float64{x, 1.5, 0},
		Rotation:  [4]float64{0, 0, 0, 1},
	}
}

func testModel(t *testing.T, mutate func(*ReconstructionConfig)) *KeyframeModel {
	t.Helper()
	cfg := DefaultReconstructionConfig()
	cfg.SufficientKeyframes = 3
	cfg.MaxKeyframes = 10
	if mutate != nil {
		mutate(&cfg)
	}
	m, err := NewKeyframeModel(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestKeyframeModel_Sufficiency(t *testing.T) {
	m := testModel(t, nil)
	base := time.Now()

	for i := 0; i < 3; i++ {
		if m.Sufficient() {
			t.Fatalf("sufficient after %d keyframes", i)
		}
		if info := m.Integrate(sampleAt(base, i*100, float64(i)*0.15)); info != InfoNormal {
			t.Fatalf("Integrate() = %s, want normal", info)
		}
	}
	if !m.Sufficient() {
		t.Error("model should be sufficient after 3 keyframes")
	}
	if got := len(m.Keyframes()); got != 3 {
		t.Errorf("keyframes = %d, want 3", got)
	}
}

func TestKeyframeModel_Spacing(t *testing.T) {
	m := testModel(t, nil)
	base := time.Now()

	m.Integrate(sampleAt(base, 0, 0))
	m.Integrate(sampleAt(base, 100, 0.05))
	m.Integrate(sampleAt(base, 200, 0.09))
	if got := len(m.Keyframes()); got != 1 {
		t.Errorf("keyframes = %d, want 1 for sub-spacing motion", got)
	}
}

func TestKeyframeModel_ExcessiveMotion(t *testing.T) {
	m := testModel(t, nil)
	base := time.Now()

	m.Integrate(sampleAt(base, 0, 0))
	// 1m in 100ms
	if info := m.Integrate(sampleAt(base, 100, 1)); info != InfoExcessiveMotion {
		t.Errorf("Integrate() = %s, want excessive_motion", info)
	}
	if got := len(m.Keyframes()); got != 1 {
		t.Errorf("fast sample should not become a keyframe, keyframes = %d", got)
	}
	// slow again relative to the last sample
	if info := m.Integrate(sampleAt(base, 200, 1.1)); info != InfoNormal {
		t.Errorf("Integrate() = %s, want normal", info)
	}
}

func TestKeyframeModel_GapSkipsSpeedCheck(t *testing.T) {
	m := testModel(t, nil)
	base := time.Now()

	m.Integrate(sampleAt(base, 0, 0))
	if info := m.Integrate(sampleAt(base, 5000, 3)); info != InfoNormal {
		t.Errorf("Integrate() after gap = %s, want normal", info)
	}
}

func TestKeyframeModel_Relocalizing(t *testing.T) {
	m := testModel(t, nil)
	s := sampleAt(time.Now(), 0, 0)
	s.Tracking = engine.TrackingLimited

	if info := m.Integrate(s); info != InfoRelocalizing {
		t.Errorf("Integrate() = %s, want relocalizing", info)
	}
	if len(m.Keyframes()) != 0 {
		t.Error("limited tracking sample should not be integrated")
	}
}

func TestKeyframeModel_CapacityEviction(t *testing.T) {
	m := testModel(t, func(c *ReconstructionConfig) {
		c.MaxKeyframes = 4
		c.CapacityWarningRatio = 1
	})
	base := time.Now()

	var info StatusInfo
	for i := 0; i < 3; i++ {
		info = m.Integrate(sampleAt(base, i*100, float64(i)*0.15))
	}
	if info != InfoNormal {
		t.Errorf("info below capacity = %s, want normal", info)
	}

	info = m.Integrate(sampleAt(base, 300, 0.45))
	if info != InfoCapacityWarning {
		t.Errorf("info at capacity = %s, want capacity_warning", info)
	}

	info = m.Integrate(sampleAt(base, 400, 0.60))
	if info != InfoCapacityWarning {
		t.Errorf("info on eviction = %s, want capacity_warning", info)
	}
	kfs := m.Keyframes()
	if len(kfs) != 4 || kfs[0].Index != 1 {
		t.Errorf("keyframes after eviction = %d starting at %d, want 4 starting at 1", len(kfs), kfs[0].Index)
	}
	if !m.Sufficient() {
		t.Error("evicted keyframes should still count towards sufficiency")
	}
}

func TestKeyframeModel_StoppedIgnoresSamples(t *testing.T) {
	m := testModel(t, nil)
	m.Stop()
	m.Integrate(sampleAt(time.Now(), 0, 0))
	if len(m.Keyframes()) != 0 {
		t.Error("stopped model should ignore samples")
	}
}

func TestReconstructionConfig_Validate(t *testing.T) {
	if err := DefaultReconstructionConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*ReconstructionConfig)
	}{
		{"zero sufficient", func(c *ReconstructionConfig) { c.SufficientKeyframes = 0 }},
		{"capacity below sufficient", func(c *ReconstructionConfig) { c.MaxKeyframes = c.SufficientKeyframes - 1 }},
		{"negative spacing", func(c *ReconstructionConfig) { c.KeyframeSpacing = -1 }},
		{"zero speed", func(c *ReconstructionConfig) { c.MaxSpeed = 0 }},
		{"ratio above one", func(c *ReconstructionConfig) { c.CapacityWarningRatio = 1.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultReconstructionConfig()
			tt.mutate(&cfg)
			if _, err := NewKeyframeModel(cfg); !errors.Is(err, ErrInvalidReconstructionConfig) {
				t.Errorf("NewKeyframeModel() = %v, want ErrInvalidReconstructionConfig", err)
			}
		})
	}
}

func TestKeyframeModel_DrivesCapture(t *testing.T) {
	cfg := DefaultReconstructionConfig()
	cfg.SufficientKeyframes = 3
	f := newFixture(t, WithReconstructionConfig(cfg))
	c := f.create(t, true)

	base := time.Now()
	for i := 0; i < 3; i++ {
		f.observer.Publish(sampleAt(base, i*100, float64(i)*0.15))
	}
	assertStatus(t, c, StatusCapturing)
}
