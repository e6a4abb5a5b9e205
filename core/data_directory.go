package core

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName is the application name used in data directory paths.
const AppName = "areacapture"

// Default file names inside the data directory.
const (
	DefaultDatabaseFile = "history.db"
	DefaultLogFile      = "areacapture.log"
)

// GetDataDirectory returns the platform-specific data directory path for the application.
//
// Paths by platform:
//   - Windows: %APPDATA%/areacapture
//   - Linux/macOS: ~/.areacapture
//
// AREACAPTURE_DATA_DIR overrides both. Does NOT create the directory.
func GetDataDirectory() string {
	if dir := os.Getenv("AREACAPTURE_DATA_DIR"); dir != "" {
		return dir
	}

	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return AppName
			}
			return filepath.Join(home, "AppData", "Roaming", AppName)
		}
		return filepath.Join(appData, AppName)
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "." + AppName
		}
		return filepath.Join(home, "."+AppName)
	}
}

// GetDataFilePath returns the full path for a file within the data directory.
func GetDataFilePath(filename string) string {
	return filepath.Join(GetDataDirectory(), filename)
}

// EnsureParentDirectory creates the directory containing path with owner-only permissions.
func EnsureParentDirectory(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return ErrDataDirUnavailable(dir, err)
	}
	return nil
}
