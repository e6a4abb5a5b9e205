package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"areacapture/generation"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// job is the background generation task of a capture. It exists only while
// the capture is GENERATING.
type job struct {
	id        string
	config    GenerationConfig
	keyframes []generation.Keyframe
	plan      phasePlan
	progress  *progressTracker
	startedAt time.Time

	cancel context.CancelFunc
	done   chan struct{}
	// canceled is guarded by the capture mutex. Once set, the job ends as
	// canceled whatever the phase outcome.
	canceled bool
}

// requestCancel must be called with the capture mutex held.
func (j *job) requestCancel() {
	j.canceled = true
	j.cancel()
}

var phaseInfo = map[generation.Phase]StatusInfo{
	generation.PhaseTrackingData:   InfoTrackingDataGeneration,
	generation.PhaseAuthoringData:  InfoAuthoringDataGeneration,
	generation.PhaseDeviceDatabase: InfoDeviceDatabaseGeneration,
	generation.PhasePackage:        InfoPackageGeneration,
}

// Generate starts target generation from the captured data. It returns
// immediately; the job runs in the background and is observed through
// Status, StatusInfo, GenerationProgress and GenerationTimeEstimate.
//
// Start-time rejections are returned as *GenerationError and leave the
// capture unchanged. The checks run in order: engine running, status
// STOPPED, capture reached CAPTURING, credentials, output directory,
// target name.
func (c *Capture) Generate(cfg GenerationConfig) error {
	err := c.engine.WithLifecycle(func(running bool) error {
		c.mu.Lock()
		defer c.mu.Unlock()

		if c.destroyed {
			return newGenerationError(GenerationErrorInternal, "capture destroyed", ErrCaptureDestroyed)
		}
		if !running {
			return newGenerationError(GenerationErrorEngineNotRunning, "engine is stopped", ErrEngineNotRunning)
		}
		if c.status != StatusStopped {
			return newGenerationError(GenerationErrorInvalidStatus,
				fmt.Sprintf("capture is %s, must be stopped", c.status), ErrInvalidStatus)
		}
		if !c.reachedCapturing {
			return newGenerationError(GenerationErrorInsufficientData,
				"capture never gathered enough data for a reconstruction", nil)
		}
		if gerr := cfg.Validate(); gerr != nil {
			return gerr
		}

		c.startJobLocked(cfg)
		return nil
	})
	if err != nil {
		c.logger.Warn("Generation rejected",
			zap.String("code", GenerationErrorCodeOf(err).String()),
			zap.Error(err))
	}
	return err
}

func (c *Capture) startJobLocked(cfg GenerationConfig) {
	ctx, cancel := context.WithCancel(context.Background())
	j := &job{
		id:        uuid.NewString(),
		config:    cfg,
		keyframes: c.keyframes,
		plan:      newPhasePlan(generation.Phases(cfg.GenerateAuthoringFiles, cfg.GeneratePackages)),
		progress:  newProgressTracker(c.opts.etaWarmup, c.opts.now),
		startedAt: c.opts.now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	c.job = j
	c.transitionLocked(StatusGenerating, InfoTrackingDataGeneration)

	c.logger.Info("Generation started",
		zap.String("job_id", j.id),
		zap.String("target_name", cfg.TargetName),
		zap.String("output_directory", cfg.OutputDirectory),
		zap.Bool("authoring", cfg.GenerateAuthoringFiles),
		zap.Bool("packages", cfg.GeneratePackages),
		zap.Int("keyframes", len(j.keyframes)))

	go c.runJob(ctx, j)
}

func (c *Capture) runJob(ctx context.Context, j *job) {
	defer close(j.done)
	defer j.cancel()

	outcome, err := c.executeJob(ctx, j)
	c.finishJob(j, outcome, err)
}

func (c *Capture) executeJob(ctx context.Context, j *job) (StatusInfo, error) {
	if err := ValidateArtifactFlags(j.config.GenerateAuthoringFiles, j.config.GeneratePackages); err != nil {
		return InfoGenerationErrorInternal, err
	}

	req := generation.Request{
		JobID:           j.id,
		TargetName:      j.config.TargetName,
		OutputDirectory: j.config.OutputDirectory,
		UserAuth:        j.config.UserAuth,
		SecretAuth:      j.config.SecretAuth,
		Keyframes:       j.keyframes,
		Authoring:       j.config.GenerateAuthoringFiles,
		Packages:        j.config.GeneratePackages,
	}

	for i, phase := range j.plan.phases {
		if ctx.Err() != nil {
			return InfoGenerationCanceled, ctx.Err()
		}
		if err := ValidateOutputDirectory(req.OutputDirectory); err != nil {
			return InfoGenerationErrorInternal, err
		}
		c.enterPhase(j, phase)

		report := func(fraction float64) {
			j.progress.Set(j.plan.overall(i, fraction))
		}
		if err := c.opts.service.RunPhase(ctx, phase, req, report); err != nil {
			if ctx.Err() != nil {
				return InfoGenerationCanceled, ctx.Err()
			}
			return outcomeForError(err), fmt.Errorf("%s: %w", phase, err)
		}
		report(1)
	}
	return InfoGenerationSuccess, nil
}

// outcomeForError maps a backend failure onto a generation status info.
func outcomeForError(err error) StatusInfo {
	switch {
	case errors.Is(err, generation.ErrNoNetwork):
		return InfoGenerationErrorNoNetwork
	case errors.Is(err, generation.ErrServiceUnavailable):
		return InfoGenerationErrorServiceNotAvailable
	case errors.Is(err, generation.ErrAuthorizationFailed):
		return InfoGenerationErrorAuthorizationFailed
	default:
		return InfoGenerationErrorInternal
	}
}

func (c *Capture) enterPhase(j *job, phase generation.Phase) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.job != j || j.canceled {
		return
	}
	c.info = phaseInfo[phase]
	c.logger.Debug("Generation phase started",
		zap.String("job_id", j.id),
		zap.Stringer("phase", phase))
}

func (c *Capture) finishJob(j *job, outcome StatusInfo, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if j.canceled {
		outcome = InfoGenerationCanceled
		err = nil
	}
	if outcome == InfoGenerationSuccess {
		j.progress.Set(1)
	}
	if c.job == j {
		c.job = nil
		c.transitionLocked(StatusStopped, outcome)
	}

	finished := c.opts.now()
	fields := []zap.Field{
		zap.String("job_id", j.id),
		zap.Stringer("outcome", outcome),
		zap.Duration("duration", finished.Sub(j.startedAt)),
	}
	record := GenerationRecord{
		JobID:           j.id,
		CaptureID:       c.id,
		TargetName:      j.config.TargetName,
		OutputDirectory: j.config.OutputDirectory,
		Authoring:       j.config.GenerateAuthoringFiles,
		Packages:        j.config.GeneratePackages,
		Keyframes:       len(j.keyframes),
		Outcome:         outcome,
		StartedAt:       j.startedAt,
		FinishedAt:      finished,
	}
	if err != nil {
		record.Error = err.Error()
		c.logger.Error("Generation failed", append(fields, zap.Error(err))...)
	} else {
		c.logger.Info("Generation finished", fields...)
	}
	c.opts.recorder.RecordGeneration(record)
}

// CancelGeneration cancels the running job and blocks until it has unwound.
// Afterwards the capture is STOPPED with GENERATION_CANCELED info.
func (c *Capture) CancelGeneration() error {
	return c.engine.WithLifecycle(func(bool) error {
		c.mu.Lock()
		if c.destroyed {
			c.mu.Unlock()
			return ErrCaptureDestroyed
		}
		if c.status != StatusGenerating || c.job == nil {
			c.mu.Unlock()
			return ErrNotGenerating
		}
		j := c.job
		j.requestCancel()
		c.mu.Unlock()

		c.logger.Info("Canceling generation", zap.String("job_id", j.id))
		<-j.done
		return nil
	})
}

// GenerationProgress returns the job progress in [0, 1]. Successive calls
// during one job never return a smaller value.
func (c *Capture) GenerationProgress() (float32, error) {
	j, err := c.activeJob()
	if err != nil {
		return 0, err
	}
	return float32(j.progress.Fraction()), nil
}

// GenerationTimeEstimate returns the estimated remaining whole seconds.
// It fails with ErrTimeEstimateUnavailable during the first seconds of a job.
func (c *Capture) GenerationTimeEstimate() (int32, error) {
	j, err := c.activeJob()
	if err != nil {
		return 0, err
	}
	seconds, ok := j.progress.Estimate()
	if !ok {
		return 0, ErrTimeEstimateUnavailable
	}
	return seconds, nil
}

func (c *Capture) activeJob() (*job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return nil, ErrCaptureDestroyed
	}
	if c.status != StatusGenerating || c.job == nil {
		return nil, ErrNotGenerating
	}
	return c.job, nil
}
