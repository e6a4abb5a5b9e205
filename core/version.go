package core

import (
	"fmt"
	"runtime"
)

// Build metadata, injected at link time:
//
//	go build -ldflags "-X areacapture/core.Version=$(git describe --tags --always) \
//	  -X areacapture/core.GitCommit=$(git rev-parse --short HEAD) \
//	  -X areacapture/core.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" .
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// VersionInfo is the build metadata reported by the version command.
type VersionInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetVersionInfo returns the build metadata of the running binary.
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String formats the metadata on a single line.
//
//	v1.0.0 (built 2024-01-15T10:30:00Z, commit abc1234, go1.24.0 linux/amd64)
func (v VersionInfo) String() string {
	return fmt.Sprintf("%s (built %s, commit %s, %s %s)", v.Version, v.BuildTime, v.GitCommit, v.GoVersion, v.Platform)
}
