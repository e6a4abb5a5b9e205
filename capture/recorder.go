package capture

import "time"

// TransitionRecord describes one status change of a capture.
type TransitionRecord struct {
	CaptureID string
	From      Status
	To        Status
	Info      StatusInfo
	At        time.Time
}

// GenerationRecord describes a finished generation job.
type GenerationRecord struct {
	JobID           string
	CaptureID       string
	TargetName      string
	OutputDirectory string
	Authoring       bool
	Packages        bool
	Keyframes       int
	Outcome         StatusInfo
	Error           string
	StartedAt       time.Time
	FinishedAt      time.Time
}

// Recorder receives capture history. Methods are called with the capture
// locked and must neither block nor call back into the capture.
type Recorder interface {
	RecordTransition(TransitionRecord)
	RecordGeneration(GenerationRecord)
}

type nopRecorder struct{}

func (nopRecorder) RecordTransition(TransitionRecord) {}
func (nopRecorder) RecordGeneration(GenerationRecord) {}
