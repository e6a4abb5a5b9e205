package validation

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
)

// DiskSpaceInfo contains information about disk space.
type DiskSpaceInfo struct {
	// Path that was checked
	Path string
	// Total disk space in bytes
	Total uint64
	// Free disk space in bytes, as available to the current user
	Free uint64
	// Percentage used (0-100)
	UsedPercent float64
}

// FreeFormatted returns Free in IEC units, e.g. "12 GiB".
func (d *DiskSpaceInfo) FreeFormatted() string {
	return humanize.IBytes(d.Free)
}

// DiskSpaceError indicates a disk space problem.
type DiskSpaceError struct {
	Path      string
	Required  uint64
	Available uint64
}

func (e *DiskSpaceError) Error() string {
	return fmt.Sprintf("insufficient disk space at %s: need %s, have %s free",
		e.Path, humanize.IBytes(e.Required), humanize.IBytes(e.Available))
}

// GetDiskSpace returns disk space information for the filesystem holding path.
// A path that does not exist yet is resolved to its nearest existing ancestor.
func GetDiskSpace(path string) (*DiskSpaceInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			if parent := filepath.Dir(path); parent != path {
				return GetDiskSpace(parent)
			}
		}
		return nil, fmt.Errorf("cannot access path %s: %w", path, err)
	}
	if !info.IsDir() {
		path = filepath.Dir(path)
	}

	total, free, err := getDiskSpace(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get disk space for %s: %w", path, err)
	}

	var usedPercent float64
	if total > 0 {
		usedPercent = float64(total-free) / float64(total) * 100
	}

	return &DiskSpaceInfo{
		Path:        path,
		Total:       total,
		Free:        free,
		UsedPercent: usedPercent,
	}, nil
}

// CheckDiskSpace verifies there is at least requiredBytes free at path.
// Returns a *DiskSpaceError when there is not.
func CheckDiskSpace(path string, requiredBytes uint64) (*DiskSpaceInfo, error) {
	info, err := GetDiskSpace(path)
	if err != nil {
		return nil, err
	}
	if info.Free < requiredBytes {
		return info, &DiskSpaceError{Path: path, Required: requiredBytes, Available: info.Free}
	}
	return info, nil
}
