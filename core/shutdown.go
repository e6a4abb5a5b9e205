package core

import (
	"context"
)

// ShutdownFunc is the function signature for cleanup handlers during graceful shutdown.
// Each shutdown function receives a context that may have a deadline for cleanup,
// and returns an error if cleanup fails.
//
// Implementations should respect the context deadline and be safe to call twice.
//
//	var historyShutdown ShutdownFunc = func(ctx context.Context) error {
//	    return database.Close()
//	}
type ShutdownFunc func(ctx context.Context) error
