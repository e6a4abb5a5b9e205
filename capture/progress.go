package capture

import (
	"math"
	"sync"
	"time"

	"areacapture/generation"
)

// DefaultETAWarmup is how long a job runs before a time estimate is reported.
const DefaultETAWarmup = 3 * time.Second

// phaseWeights is the share of overall progress per phase before
// renormalization over the phases a job actually runs.
var phaseWeights = map[generation.Phase]float64{
	generation.PhaseTrackingData:   0.40,
	generation.PhaseAuthoringData:  0.25,
	generation.PhaseDeviceDatabase: 0.20,
	generation.PhasePackage:        0.15,
}

// phasePlan maps per-phase fractions onto overall job progress.
type phasePlan struct {
	phases []generation.Phase
	// offsets[i] is the overall progress at the start of phases[i].
	offsets []float64
	weights []float64
}

func newPhasePlan(phases []generation.Phase) phasePlan {
	var total float64
	for _, p := range phases {
		total += phaseWeights[p]
	}

	plan := phasePlan{
		phases:  phases,
		offsets: make([]float64, len(phases)),
		weights: make([]float64, len(phases)),
	}
	var offset float64
	for i, p := range phases {
		w := phaseWeights[p] / total
		plan.offsets[i] = offset
		plan.weights[i] = w
		offset += w
	}
	return plan
}

// overall returns job progress when phase i is fraction complete.
func (p phasePlan) overall(i int, fraction float64) float64 {
	fraction = math.Max(0, math.Min(1, fraction))
	if i == len(p.phases)-1 && fraction == 1 {
		return 1
	}
	return math.Min(1, p.offsets[i]+p.weights[i]*fraction)
}

// progressTracker tracks job progress and estimates the remaining time.
// The completion rate is an exponential moving average of progress per second.
type progressTracker struct {
	mu sync.RWMutex

	fraction float64
	// Time when the job started
	startTime time.Time
	// Last update time for rate calculation
	lastUpdateTime time.Time
	// Fraction at last rate update
	lastFraction float64
	// Moving average of rate (fraction/sec)
	rateAvg float64
	// Weight for exponential moving average (0-1, higher = more recent data)
	rateAlpha float64
	warmup    time.Duration
	now       func() time.Time
}

func newProgressTracker(warmup time.Duration, now func() time.Time) *progressTracker {
	if now == nil {
		now = time.Now
	}
	start := now()
	return &progressTracker{
		startTime:      start,
		lastUpdateTime: start,
		rateAlpha:      0.3,
		warmup:         warmup,
		now:            now,
	}
}

// Set records progress. Values below the current fraction are ignored so the
// reported progress never decreases.
func (p *progressTracker) Set(fraction float64) {
	fraction = math.Max(0, math.Min(1, fraction))

	p.mu.Lock()
	defer p.mu.Unlock()

	if fraction <= p.fraction {
		return
	}
	p.fraction = fraction
	p.updateRate()
}

// updateRate recalculates the completion rate.
// Must be called with mu held.
func (p *progressTracker) updateRate() {
	now := p.now()
	elapsed := now.Sub(p.lastUpdateTime).Seconds()

	if elapsed >= 0.1 {
		instant := (p.fraction - p.lastFraction) / elapsed
		if p.rateAvg == 0 {
			p.rateAvg = instant
		} else {
			p.rateAvg = p.rateAlpha*instant + (1-p.rateAlpha)*p.rateAvg
		}
		p.lastUpdateTime = now
		p.lastFraction = p.fraction
	}
}

// Fraction returns the current progress in [0, 1].
func (p *progressTracker) Fraction() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fraction
}

// Estimate returns the remaining whole seconds, rounded up. ok is false
// during the warm-up period and while no rate is known.
func (p *progressTracker) Estimate() (seconds int32, ok bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	elapsed := p.now().Sub(p.startTime)
	if elapsed < p.warmup {
		return 0, false
	}
	if p.fraction >= 1 {
		return 0, true
	}

	rate := p.rateAvg
	if rate <= 0 && p.fraction > 0 && elapsed > 0 {
		rate = p.fraction / elapsed.Seconds()
	}
	if rate <= 0 {
		return 0, false
	}

	remaining := math.Ceil((1 - p.fraction) / rate)
	if remaining > math.MaxInt32 {
		remaining = math.MaxInt32
	}
	return int32(remaining), true
}
