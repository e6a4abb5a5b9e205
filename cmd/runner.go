package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"go.uber.org/zap"

	"areacapture/capture"
	"areacapture/core"
	"areacapture/db"
	"areacapture/engine"
	"areacapture/generation"
	"areacapture/shutdown"
)

// Shutdown priorities, lowest first.
const (
	priorityCapture          = 10
	priorityEngine           = 20
	priorityHistory          = 30
	priorityPartialArtifacts = 45
)

var artifactSuffixes = []string{
	generation.SuffixTrackingData,
	generation.SuffixAuthoring,
	generation.SuffixMesh,
	generation.SuffixDatabaseXML,
	generation.SuffixDatabaseDat,
	generation.SuffixPackage,
}

// runner drives one scan-and-generate session. Everything it creates is
// torn down by the shutdown manager's handlers.
type runner struct {
	cfg     *core.Config
	logger  *zap.Logger
	out     io.Writer
	manager *shutdown.Manager

	history      bool
	pollInterval time.Duration
	statusEvery  time.Duration
}

func newRunner(cfg *core.Config, logger *zap.Logger, out io.Writer, manager *shutdown.Manager) *runner {
	return &runner{
		cfg:          cfg,
		logger:       logger,
		out:          out,
		manager:      manager,
		history:      true,
		pollInterval: 250 * time.Millisecond,
		statusEvery:  time.Second,
	}
}

func (r *runner) withHistory(on bool) *runner {
	r.history = on
	return r
}

func (r *runner) run() error {
	ctx := r.manager.Context()

	recorder := r.openHistory()

	e := engine.New(engine.WithLogger(r.logger))
	if err := e.Start(); err != nil {
		return withExitCode(core.ExitCodeError, err)
	}
	r.manager.Register("engine", priorityEngine, func(context.Context) error {
		if err := e.Stop(); err != nil && !errors.Is(err, engine.ErrNotRunning) {
			return err
		}
		return nil
	})

	service, err := r.newService()
	if err != nil {
		return withExitCode(core.ExitCodeValidationFailed, err)
	}
	controller, err := capture.NewController(e,
		capture.WithLogger(r.logger),
		capture.WithService(service),
		capture.WithRecorder(recorder),
		capture.WithReconstructionConfig(r.reconstructionConfig()),
		capture.WithETAWarmup(r.cfg.Generation.ETAWarmup),
	)
	if err != nil {
		return withExitCode(core.ExitCodeError, err)
	}

	observer, err := e.CreateDevicePoseObserver()
	if err != nil {
		return withExitCode(core.ExitCodeError, err)
	}
	c, err := controller.CreateAreaTargetCapture(capture.CaptureConfig{
		DevicePoseObserver: observer,
		Start:              true,
	})
	if err != nil {
		observer.Destroy()
		return withExitCode(core.ExitCodeError, err)
	}
	r.manager.Register("capture", priorityCapture, func(context.Context) error {
		defer observer.Destroy()
		if err := c.Destroy(); err != nil && !errors.Is(err, capture.ErrCaptureDestroyed) {
			return err
		}
		return nil
	})
	r.manager.Register("partial-artifacts", priorityPartialArtifacts,
		shutdown.CleanupPartialArtifacts(r.logger, r.cfg.Generation.OutputDirectory))

	if err := r.scan(ctx, c, observer); err != nil {
		return err
	}
	if err := c.Stop(); err != nil {
		return withExitCode(core.ExitCodeError, err)
	}
	return r.generate(ctx, c)
}

// openHistory returns the history recorder, or nil when history is disabled
// or the database cannot be opened.
func (r *runner) openHistory() capture.Recorder {
	if !r.history {
		return nil
	}

	database, err := db.Open(r.cfg.Storage.DatabasePath)
	if err != nil {
		r.logger.Warn("History database unavailable, continuing without history",
			zap.String("path", r.cfg.Storage.DatabasePath),
			zap.Error(err))
		return nil
	}

	// The handler inserts synchronously through a repository without writer.
	handler := db.NewRepository(database, nil).CreateAsyncWriteHandler()
	writer := db.NewAsyncWriterWithConfig(handler, db.AsyncWriterConfig{
		OnError: func(op db.WriteOperation, err error) {
			r.logger.Error("History write failed", zap.Error(err))
		},
	})
	repo := db.NewRepository(database, writer)
	writer.Start()

	r.manager.Register("history", priorityHistory, closeHistory(r.logger, writer, database))
	return db.NewHistoryRecorder(repo, r.logger)
}

// closeHistory drains the writer before closing the database. When the drain
// times out the database stays open so the writer can finish its inserts.
func closeHistory(logger *zap.Logger, writer *db.AsyncWriter, database *db.Database) core.ShutdownFunc {
	return func(context.Context) error {
		if !writer.Close() {
			logger.Warn("History writer did not drain in time, leaving database open",
				zap.Int("pending", writer.Pending()))
			return fmt.Errorf("history writer drain timed out with %d pending", writer.Pending())
		}
		return database.Close()
	}
}

func (r *runner) newService() (generation.Service, error) {
	opts := []generation.LocalOption{
		generation.WithSteps(r.cfg.Backend.Steps),
		generation.WithStepDelay(r.cfg.Backend.StepDelay),
		generation.WithKeepIntermediate(r.cfg.Backend.KeepIntermediate),
		generation.WithLogger(r.logger),
	}
	if hash := r.cfg.Generation.SecretHash; hash != "" {
		auth, err := generation.NewAuthenticator(r.cfg.Generation.UserAuth, hash)
		if err != nil {
			return nil, err
		}
		opts = append(opts, generation.WithAuthenticator(auth))
	}
	return generation.NewLocalService(opts...), nil
}

func (r *runner) reconstructionConfig() capture.ReconstructionConfig {
	rc := capture.DefaultReconstructionConfig()
	rc.SufficientKeyframes = r.cfg.Scan.SufficientKeyframes
	rc.KeyframeSpacing = r.cfg.Scan.KeyframeSpacing
	rc.MaxKeyframes = r.cfg.Scan.MaxKeyframes
	rc.CapacityWarningRatio = r.cfg.Scan.CapacityWarningRatio
	rc.MaxSpeed = r.cfg.Scan.MaxSpeed
	return rc
}

// scan feeds simulated poses for the configured duration.
func (r *runner) scan(ctx context.Context, c *capture.Capture, observer *engine.PoseObserver) error {
	poseConfig := engine.DefaultSimulatedPoseConfig()
	poseConfig.Rate = r.cfg.Scan.SampleRate
	source := engine.NewSimulatedPoseSource(observer, poseConfig)

	scanCtx, stop := context.WithTimeout(ctx, r.cfg.Scan.Duration)
	defer stop()
	done := make(chan struct{})
	go func() {
		defer close(done)
		source.Run(scanCtx)
	}()

	color.New(color.FgCyan, color.Bold).Fprintf(r.out, "Scanning %s for %s\n",
		r.cfg.Generation.TargetName, r.cfg.Scan.Duration)

	ticker := time.NewTicker(r.statusEvery)
	defer ticker.Stop()
	for {
		select {
		case <-scanCtx.Done():
			stop()
			<-done
			r.printScanStatus(c)
			if ctx.Err() != nil {
				color.New(color.FgYellow).Fprintln(r.out, "Scan interrupted")
				return withExitCode(r.manager.ExitCode(), nil)
			}
			return nil
		case <-ticker.C:
			r.printScanStatus(c)
		}
	}
}

func (r *runner) printScanStatus(c *capture.Capture) {
	status, err := c.Status()
	if err != nil {
		return
	}
	info, _ := c.StatusInfo()

	clr := color.New(color.FgHiBlack)
	switch {
	case status == capture.StatusCapturing && info == capture.InfoNormal:
		clr = color.New(color.FgGreen)
	case info != capture.InfoNormal:
		clr = color.New(color.FgYellow)
	}
	clr.Fprintf(r.out, "  %-10s %s\n", status, info)
}

// generate starts the job and waits for it as a tracked operation, so
// Shutdown does not tear the capture down under a running job.
func (r *runner) generate(ctx context.Context, c *capture.Capture) error {
	gen := r.cfg.Generation
	err := c.Generate(capture.GenerationConfig{
		UserAuth:               gen.UserAuth,
		SecretAuth:             gen.SecretAuth,
		OutputDirectory:        gen.OutputDirectory,
		TargetName:             gen.TargetName,
		GenerateAuthoringFiles: gen.Authoring,
		GeneratePackages:       gen.Packages,
	})
	if err != nil {
		if _, ok := capture.AsGenerationError(err); ok {
			return withExitCode(core.ExitCodeValidationFailed, err)
		}
		return withExitCode(core.ExitCodeError, err)
	}

	err = r.manager.WrapOperation(context.Background(), "generation", func(context.Context) error {
		return r.waitForGeneration(ctx, c)
	})
	if err != nil {
		return withExitCode(core.ExitCodeError, err)
	}
	return r.report(c)
}

// waitForGeneration polls progress until the job finished. When ctx is
// done the job is canceled and the call blocks until it has unwound.
func (r *runner) waitForGeneration(ctx context.Context, c *capture.Capture) error {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	cancelRequested := ctx.Done()
	for {
		status, err := c.Status()
		if err != nil {
			return err
		}
		if status != capture.StatusGenerating {
			fmt.Fprintln(r.out)
			return nil
		}
		r.printProgress(c)

		select {
		case <-cancelRequested:
			cancelRequested = nil
			color.New(color.FgYellow).Fprintln(r.out, "\nCanceling generation...")
			if err := c.CancelGeneration(); err != nil && !errors.Is(err, capture.ErrNotGenerating) {
				return err
			}
		case <-ticker.C:
		}
	}
}

func (r *runner) printProgress(c *capture.Capture) {
	progress, err := c.GenerationProgress()
	if err != nil {
		return
	}
	info, _ := c.StatusInfo()

	eta := "--"
	if seconds, err := c.GenerationTimeEstimate(); err == nil {
		eta = (time.Duration(seconds) * time.Second).String()
	}
	fmt.Fprintf(r.out, "\r  %-28s %5.1f%%  ETA %-8s", info, progress*100, eta)
}

// report prints the outcome and maps it to the exit code.
func (r *runner) report(c *capture.Capture) error {
	info, err := c.StatusInfo()
	if err != nil {
		return withExitCode(core.ExitCodeError, err)
	}

	switch info {
	case capture.InfoGenerationSuccess:
		color.New(color.FgGreen, color.Bold).Fprintf(r.out, "Generated %s in %s\n",
			r.cfg.Generation.TargetName, r.cfg.Generation.OutputDirectory)
		r.printArtifacts()
		return nil
	case capture.InfoGenerationCanceled:
		color.New(color.FgYellow).Fprintln(r.out, "Generation canceled")
		code := r.manager.ExitCode()
		if code == core.ExitCodeSuccess {
			code = core.ExitCodeGenerationFailed
		}
		return withExitCode(code, nil)
	default:
		color.New(color.FgRed, color.Bold).Fprintf(r.out, "Generation failed: %s\n", info)
		return withExitCode(core.ExitCodeGenerationFailed, fmt.Errorf("generation finished with %s", info))
	}
}

func (r *runner) printArtifacts() {
	for _, suffix := range artifactSuffixes {
		path := filepath.Join(r.cfg.Generation.OutputDirectory, r.cfg.Generation.TargetName+suffix)
		st, err := os.Stat(path)
		if err != nil {
			continue
		}
		fmt.Fprintf(r.out, "  %-40s %s\n", filepath.Base(path), humanize.Bytes(uint64(st.Size())))
	}
}
