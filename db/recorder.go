package db

import (
	"go.uber.org/zap"

	"areacapture/capture"
)

// HistoryRecorder implements capture.Recorder on top of the async writer.
// Records that do not fit in the write buffer are dropped with a warning.
type HistoryRecorder struct {
	repo   *Repository
	logger *zap.Logger
}

var _ capture.Recorder = (*HistoryRecorder)(nil)

// NewHistoryRecorder creates a recorder that queues through repo.
func NewHistoryRecorder(repo *Repository, logger *zap.Logger) *HistoryRecorder {
	return &HistoryRecorder{repo: repo, logger: logger.Named("history")}
}

// RecordTransition queues a capture_events row.
func (h *HistoryRecorder) RecordTransition(rec capture.TransitionRecord) {
	if !h.repo.QueueCaptureEvent(CaptureEventFromRecord(rec)) {
		h.logger.Warn("Dropped capture event",
			zap.String("capture_id", rec.CaptureID),
			zap.Stringer("to", rec.To))
	}
}

// RecordGeneration queues a generation_history row.
func (h *HistoryRecorder) RecordGeneration(rec capture.GenerationRecord) {
	if !h.repo.QueueGeneration(GenerationEntryFromRecord(rec)) {
		h.logger.Warn("Dropped generation record", zap.String("job_id", rec.JobID))
	}
}

// GenerationEntryFromRecord converts a finished job into its history row.
func GenerationEntryFromRecord(rec capture.GenerationRecord) GenerationEntry {
	return GenerationEntry{
		JobID:           rec.JobID,
		CaptureID:       rec.CaptureID,
		TargetName:      rec.TargetName,
		OutputDirectory: rec.OutputDirectory,
		Authoring:       rec.Authoring,
		Packages:        rec.Packages,
		Keyframes:       rec.Keyframes,
		Outcome:         rec.Outcome.String(),
		ErrorMessage:    rec.Error,
		StartedAt:       rec.StartedAt,
		FinishedAt:      rec.FinishedAt,
		Duration:        rec.FinishedAt.Sub(rec.StartedAt),
	}
}

// CaptureEventFromRecord converts a status change into its history row.
func CaptureEventFromRecord(rec capture.TransitionRecord) CaptureEvent {
	return CaptureEvent{
		CaptureID:  rec.CaptureID,
		FromStatus: rec.From.String(),
		ToStatus:   rec.To.String(),
		StatusInfo: rec.Info.String(),
		OccurredAt: rec.At,
	}
}
