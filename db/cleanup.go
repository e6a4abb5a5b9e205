package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CleanupResult contains statistics about a cleanup operation.
type CleanupResult struct {
	GenerationsDeleted   int64
	CaptureEventsDeleted int64
	TotalDeleted         int64
	Duration             time.Duration
}

// Cleanup deletes rows older than retentionDays from both history tables in
// one transaction and then runs VACUUM. A retention of zero empties the
// tables.
func (d *Database) Cleanup(ctx context.Context, retentionDays int) (CleanupResult, error) {
	start := time.Now()
	var result CleanupResult

	if retentionDays < 0 {
		return result, fmt.Errorf("retentionDays must be non-negative, got %d", retentionDays)
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	err := d.conn(func(conn *sql.DB) error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		tables := []struct {
			name    string
			deleted *int64
		}{
			{"generation_history", &result.GenerationsDeleted},
			{"capture_events", &result.CaptureEventsDeleted},
		}
		for _, table := range tables {
			res, err := tx.ExecContext(ctx,
				fmt.Sprintf("DELETE FROM %s WHERE created_at <= datetime('now', ?)", table.name),
				fmt.Sprintf("-%d days", retentionDays),
			)
			if err != nil {
				return fmt.Errorf("failed to delete from %s: %w", table.name, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected for %s: %w", table.name, err)
			}
			*table.deleted = n
			result.TotalDeleted += n
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}

		// VACUUM cannot run inside a transaction.
		if _, err := conn.ExecContext(ctx, "VACUUM"); err != nil {
			return fmt.Errorf("cleanup succeeded but VACUUM failed: %w", err)
		}
		return nil
	})

	result.Duration = time.Since(start)
	return result, err
}
