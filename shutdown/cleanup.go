package shutdown

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"areacapture/core"
)

// partialArtifactPatterns match files left behind when a generation is killed
// between writing a temporary file and renaming it into place.
var partialArtifactPatterns = []string{
	".*.tmp-*",
	".areacapture-probe-*",
}

// CleanupPartialArtifacts returns a shutdown function that removes leftover
// temporary artifact files from outputDir. Finished artifacts are never touched.
//
// Failures are logged, not returned, so a read-only directory cannot block shutdown.
//
//	manager.Register("partial-artifacts", 45, shutdown.CleanupPartialArtifacts(logger, cfg.Generation.OutputDirectory))
func CleanupPartialArtifacts(logger *zap.Logger, outputDir string) core.ShutdownFunc {
	return func(ctx context.Context) error {
		var matches []string
		for _, pattern := range partialArtifactPatterns {
			m, err := filepath.Glob(filepath.Join(outputDir, pattern))
			if err != nil {
				logger.Error("Failed to list partial artifacts", zap.String("pattern", pattern), zap.Error(err))
				continue
			}
			matches = append(matches, m...)
		}
		if len(matches) == 0 {
			return nil
		}

		var removed, failed int
		for _, match := range matches {
			if ctx.Err() != nil {
				logger.Warn("Shutdown context cancelled during artifact cleanup",
					zap.Int("removed", removed),
					zap.Int("remaining", len(matches)-removed-failed),
				)
				return nil
			}
			if err := os.Remove(match); err != nil {
				failed++
				logger.Warn("Failed to remove partial artifact", zap.String("file", filepath.Base(match)), zap.Error(err))
				continue
			}
			removed++
		}

		logger.Info("Partial artifact cleanup complete",
			zap.String("directory", outputDir),
			zap.Int("removed", removed),
			zap.Int("failed", failed),
		)
		return nil
	}
}
