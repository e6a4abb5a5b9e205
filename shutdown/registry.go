package shutdown

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"areacapture/core"
)

type shutdownEntry struct {
	name     string
	fn       core.ShutdownFunc
	priority int // lower = earlier execution
}

// ShutdownRegistry holds cleanup functions ordered by priority.
type ShutdownRegistry struct {
	mu      sync.Mutex
	entries []shutdownEntry
	closed  bool
}

// NewShutdownRegistry creates an empty registry.
func NewShutdownRegistry() *ShutdownRegistry {
	return &ShutdownRegistry{}
}

// Register adds a cleanup function. Lower priorities run first; equal
// priorities run in registration order. Registration after Shutdown is ignored.
//
// Priorities used by the CLI:
//   - 10: cancel the running generation and destroy the capture
//   - 20: stop the engine
//   - 30: drain the history writer, then close the database
//   - 45: remove partial artifacts
//   - 90: flush logs
func (r *ShutdownRegistry) Register(name string, priority int, fn core.ShutdownFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.entries = append(r.entries, shutdownEntry{name: name, fn: fn, priority: priority})
}

func (r *ShutdownRegistry) sorted() []shutdownEntry {
	sorted := slices.Clone(r.entries)
	slices.SortStableFunc(sorted, func(a, b shutdownEntry) int {
		return a.priority - b.priority
	})
	return sorted
}

// Shutdown runs every registered function in priority order, even after
// failures, and returns the errors wrapped with the handler name. The
// registry is closed afterwards; later calls return nil.
func (r *ShutdownRegistry) Shutdown(ctx context.Context) []error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	sorted := r.sorted()
	r.mu.Unlock()

	var errs []error
	for _, entry := range sorted {
		if err := entry.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", entry.name, err))
		}
	}
	return errs
}

// Names returns the registered names in execution order.
func (r *ShutdownRegistry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	sorted := r.sorted()
	names := make([]string, len(sorted))
	for i, entry := range sorted {
		names[i] = entry.name
	}
	return names
}

// Count returns the number of registered shutdown functions.
func (r *ShutdownRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
