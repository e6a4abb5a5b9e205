package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"areacapture/shutdown"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scan the area with the simulated pose feed and generate a target",
	Long: `run starts the engine, scans for --scan, stops the capture and generates
the area target into --out. Ctrl-C during generation cancels the job and
waits for it to unwind; a second Ctrl-C exits immediately.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var (
	runGenerationFlags generationFlags
	runScanFlag        time.Duration
	runNoHistoryFlag   bool
)

func init() {
	runGenerationFlags.register(runCmd)
	runCmd.Flags().DurationVar(&runScanFlag, "scan", 0, "Scan duration (default from config)")
	runCmd.Flags().BoolVar(&runNoHistoryFlag, "no-history", false, "Do not record the run in the history database")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	runGenerationFlags.apply(cmd, cfg)
	if cmd.Flags().Changed("scan") {
		cfg.Scan.Duration = runScanFlag
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	manager := shutdown.NewManager(logger.Zap(), shutdown.WithTimeout(cfg.ShutdownTimeout))
	manager.Register("logs", 90, func(context.Context) error { return logger.Sync() })
	manager.Start()

	runErr := newRunner(cfg, logger.Zap(), cmd.OutOrStdout(), manager).
		withHistory(!runNoHistoryFlag).
		run()

	if err := manager.Shutdown(); err != nil {
		logger.Warn("Shutdown finished with errors", zap.Error(err))
	}
	return runErr
}
