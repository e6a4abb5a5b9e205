package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// timeLayout is used for the started/finished/occurred columns.
const timeLayout = time.RFC3339Nano

// GenerationEntry is one row of generation_history: a finished generation
// job and its outcome.
type GenerationEntry struct {
	ID              int64         `json:"id"`
	JobID           string        `json:"job_id"`
	CaptureID       string        `json:"capture_id"`
	TargetName      string        `json:"target_name"`
	OutputDirectory string        `json:"output_directory"`
	Authoring       bool          `json:"authoring"`
	Packages        bool          `json:"packages"`
	Keyframes       int           `json:"keyframes"`
	Outcome         string        `json:"outcome"`
	ErrorMessage    string        `json:"error,omitempty"`
	StartedAt       time.Time     `json:"started_at"`
	FinishedAt      time.Time     `json:"finished_at"`
	Duration        time.Duration `json:"duration_ns"`
}

// CaptureEvent is one row of capture_events: a single status change.
type CaptureEvent struct {
	ID         int64     `json:"id"`
	CaptureID  string    `json:"capture_id"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	StatusInfo string    `json:"status_info"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Repository reads and writes history rows.
type Repository struct {
	db          *Database
	asyncWriter *AsyncWriter
}

// NewRepository creates a repository. asyncWriter may be nil, in which case
// the Queue methods always report false.
func NewRepository(db *Database, asyncWriter *AsyncWriter) *Repository {
	return &Repository{db: db, asyncWriter: asyncWriter}
}

// InsertGeneration stores a finished job and returns its row ID.
func (r *Repository) InsertGeneration(ctx context.Context, e GenerationEntry) (int64, error) {
	const query = `
		INSERT INTO generation_history (
			job_id, capture_id, target_name, output_directory,
			authoring, packages, keyframes, outcome, error_message,
			started_at, finished_at, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var id int64
	err := r.db.conn(func(conn *sql.DB) error {
		res, err := conn.ExecContext(ctx, query,
			e.JobID,
			e.CaptureID,
			e.TargetName,
			e.OutputDirectory,
			e.Authoring,
			e.Packages,
			e.Keyframes,
			e.Outcome,
			nullString(e.ErrorMessage),
			e.StartedAt.UTC().Format(timeLayout),
			e.FinishedAt.UTC().Format(timeLayout),
			e.Duration.Milliseconds(),
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to insert generation %s: %w", e.JobID, err)
	}
	return id, nil
}

// InsertCaptureEvent stores one status change and returns its row ID.
func (r *Repository) InsertCaptureEvent(ctx context.Context, ev CaptureEvent) (int64, error) {
	const query = `
		INSERT INTO capture_events (capture_id, from_status, to_status, status_info, occurred_at)
		VALUES (?, ?, ?, ?, ?)`

	var id int64
	err := r.db.conn(func(conn *sql.DB) error {
		res, err := conn.ExecContext(ctx, query,
			ev.CaptureID, ev.FromStatus, ev.ToStatus, ev.StatusInfo,
			ev.OccurredAt.UTC().Format(timeLayout),
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to insert capture event: %w", err)
	}
	return id, nil
}

const generationColumns = `
	id, job_id, capture_id, target_name, output_directory,
	authoring, packages, keyframes, outcome, COALESCE(error_message, ''),
	started_at, finished_at, duration_ms`

// ListGenerations returns the most recent jobs first. A non-positive limit
// means 10.
func (r *Repository) ListGenerations(ctx context.Context, limit int) ([]GenerationEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	var entries []GenerationEntry
	err := r.db.conn(func(conn *sql.DB) error {
		rows, err := conn.QueryContext(ctx,
			"SELECT"+generationColumns+" FROM generation_history ORDER BY id DESC LIMIT ?", limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			e, err := scanGeneration(rows)
			if err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query generation history: %w", err)
	}
	return entries, nil
}

// GetGeneration looks up one job by ID.
func (r *Repository) GetGeneration(ctx context.Context, jobID string) (GenerationEntry, error) {
	var e GenerationEntry
	err := r.db.conn(func(conn *sql.DB) error {
		row := conn.QueryRowContext(ctx,
			"SELECT"+generationColumns+" FROM generation_history WHERE job_id = ?", jobID)
		var err error
		e, err = scanGeneration(row)
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return GenerationEntry{}, fmt.Errorf("generation %s: %w", jobID, ErrNotFound)
	}
	if err != nil {
		return GenerationEntry{}, fmt.Errorf("failed to query generation %s: %w", jobID, err)
	}
	return e, nil
}

// ListCaptureEvents returns the status changes of one capture in order.
func (r *Repository) ListCaptureEvents(ctx context.Context, captureID string) ([]CaptureEvent, error) {
	const query = `
		SELECT id, capture_id, from_status, to_status, status_info, occurred_at
		FROM capture_events
		WHERE capture_id = ?
		ORDER BY id ASC`

	var events []CaptureEvent
	err := r.db.conn(func(conn *sql.DB) error {
		rows, err := conn.QueryContext(ctx, query, captureID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var ev CaptureEvent
			var occurred string
			if err := rows.Scan(&ev.ID, &ev.CaptureID, &ev.FromStatus, &ev.ToStatus, &ev.StatusInfo, &occurred); err != nil {
				return err
			}
			ev.OccurredAt, _ = time.Parse(timeLayout, occurred)
			events = append(events, ev)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query capture events: %w", err)
	}
	return events, nil
}

// CountGenerations returns the number of stored jobs.
func (r *Repository) CountGenerations(ctx context.Context) (int64, error) {
	return r.count(ctx, "generation_history")
}

// CountCaptureEvents returns the number of stored status changes.
func (r *Repository) CountCaptureEvents(ctx context.Context) (int64, error) {
	return r.count(ctx, "capture_events")
}

func (r *Repository) count(ctx context.Context, table string) (int64, error) {
	var n int64
	err := r.db.conn(func(conn *sql.DB) error {
		return conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// QueueGeneration hands e to the async writer. It never blocks and returns
// false when there is no running writer or its buffer is full.
func (r *Repository) QueueGeneration(e GenerationEntry) bool {
	return r.queue(e)
}

// QueueCaptureEvent is QueueGeneration for status changes.
func (r *Repository) QueueCaptureEvent(ev CaptureEvent) bool {
	return r.queue(ev)
}

func (r *Repository) queue(data any) bool {
	if r.asyncWriter == nil || !r.asyncWriter.IsStarted() {
		return false
	}
	return r.asyncWriter.Write(data)
}

// CreateAsyncWriteHandler returns the WriteHandler that applies queued
// entries with synchronous inserts.
func (r *Repository) CreateAsyncWriteHandler() WriteHandler {
	return func(op WriteOperation) error {
		ctx := context.Background()
		switch data := op.Data.(type) {
		case GenerationEntry:
			_, err := r.InsertGeneration(ctx, data)
			return err
		case CaptureEvent:
			_, err := r.InsertCaptureEvent(ctx, data)
			return err
		default:
			return fmt.Errorf("invalid operation type %T", op.Data)
		}
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGeneration(row rowScanner) (GenerationEntry, error) {
	var e GenerationEntry
	var started, finished string
	var durationMS int64

	err := row.Scan(
		&e.ID,
		&e.JobID,
		&e.CaptureID,
		&e.TargetName,
		&e.OutputDirectory,
		&e.Authoring,
		&e.Packages,
		&e.Keyframes,
		&e.Outcome,
		&e.ErrorMessage,
		&started,
		&finished,
		&durationMS,
	)
	if err != nil {
		return GenerationEntry{}, err
	}

	e.StartedAt, _ = time.Parse(timeLayout, started)
	e.FinishedAt, _ = time.Parse(timeLayout, finished)
	e.Duration = time.Duration(durationMS) * time.Millisecond
	return e, nil
}

// nullString stores an empty string as NULL.
func nullString(s string) any {
	if s == "" {
		return sql.NullString{}
	}
	return s
}
