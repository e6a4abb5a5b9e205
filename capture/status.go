package capture

// Status is the coarse lifecycle phase of a capture.
type Status int

// Capture statuses. Numeric values are stable and used in persisted history.
const (
	StatusInitialized Status = 1
	StatusPreparing   Status = 2
	StatusCapturing   Status = 3
	StatusPaused      Status = 4
	StatusStopped     Status = 5
	StatusGenerating  Status = 6
)

// String returns the string representation of a status.
func (s Status) String() string {
	switch s {
	case StatusInitialized:
		return "initialized"
	case StatusPreparing:
		return "preparing"
	case StatusCapturing:
		return "capturing"
	case StatusPaused:
		return "paused"
	case StatusStopped:
		return "stopped"
	case StatusGenerating:
		return "generating"
	default:
		return "unknown"
	}
}

// IsAcquiring reports whether the capture accepts pose data in this status.
func (s Status) IsAcquiring() bool {
	return s == StatusPreparing || s == StatusCapturing
}

// StatusInfo is the fine-grained sub-state reported next to a Status.
type StatusInfo int

// Status info codes. Generation codes are meaningful only while generating
// (phases) or right after a job finished (outcomes).
const (
	InfoNormal                             StatusInfo = 1
	InfoRelocalizing                       StatusInfo = 2
	InfoExcessiveMotion                    StatusInfo = 3
	InfoCapacityWarning                    StatusInfo = 4
	InfoInterrupted                        StatusInfo = 5
	InfoSuspended                          StatusInfo = 6
	InfoTrackingDataGeneration             StatusInfo = 7
	InfoAuthoringDataGeneration            StatusInfo = 8
	InfoDeviceDatabaseGeneration           StatusInfo = 9
	InfoPackageGeneration                  StatusInfo = 10
	InfoGenerationSuccess                  StatusInfo = 11
	InfoGenerationCanceled                 StatusInfo = 12
	InfoGenerationErrorInternal            StatusInfo = 13
	InfoGenerationErrorNoNetwork           StatusInfo = 14
	InfoGenerationErrorServiceNotAvailable StatusInfo = 15
	InfoGenerationErrorAuthorizationFailed StatusInfo = 16
)

var statusInfoNames = map[StatusInfo]string{
	InfoNormal:                             "normal",
	InfoRelocalizing:                       "relocalizing",
	InfoExcessiveMotion:                    "excessive_motion",
	InfoCapacityWarning:                    "capacity_warning",
	InfoInterrupted:                        "interrupted",
	InfoSuspended:                          "suspended",
	InfoTrackingDataGeneration:             "tracking_data_generation",
	InfoAuthoringDataGeneration:            "authoring_data_generation",
	InfoDeviceDatabaseGeneration:           "device_database_generation",
	InfoPackageGeneration:                  "package_generation",
	InfoGenerationSuccess:                  "generation_success",
	InfoGenerationCanceled:                 "generation_canceled",
	InfoGenerationErrorInternal:            "generation_error_internal",
	InfoGenerationErrorNoNetwork:           "generation_error_no_network",
	InfoGenerationErrorServiceNotAvailable: "generation_error_service_not_available",
	InfoGenerationErrorAuthorizationFailed: "generation_error_authorization_failed",
}

// String returns the string representation of a status info code.
func (i StatusInfo) String() string {
	if name, ok := statusInfoNames[i]; ok {
		return name
	}
	return "unknown"
}

// IsGenerationPhase reports whether i names a running generation phase.
func (i StatusInfo) IsGenerationPhase() bool {
	return i >= InfoTrackingDataGeneration && i <= InfoPackageGeneration
}

// IsGenerationOutcome reports whether i is a terminal generation outcome.
func (i StatusInfo) IsGenerationOutcome() bool {
	return i >= InfoGenerationSuccess && i <= InfoGenerationErrorAuthorizationFailed
}

// IsGenerationError reports whether i is a generation-time failure.
func (i StatusInfo) IsGenerationError() bool {
	return i >= InfoGenerationErrorInternal && i <= InfoGenerationErrorAuthorizationFailed
}
