package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mamadbah2/assetscan/internal/domain/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS scan_events (
    id          TEXT PRIMARY KEY,
    identifier  TEXT NOT NULL,
    status      TEXT NOT NULL,
    location    TEXT NOT NULL DEFAULT '',
    room        TEXT NOT NULL DEFAULT '',
    outcome     TEXT NOT NULL,
    label       TEXT NOT NULL DEFAULT '',
    row_number  INTEGER NOT NULL DEFAULT 0,
    scanned_at_ns INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scan_events_scanned_at ON scan_events(scanned_at_ns);
CREATE TABLE IF NOT EXISTS progress_snapshots (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    marked_count INTEGER NOT NULL,
    total_count  INTEGER NOT NULL,
    taken_at_ns  INTEGER NOT NULL
);
`

// Repository records scan events and progress snapshots in a local SQLite file.
// Timestamps are stored as Unix nanoseconds so they order numerically.
type Repository struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the audit database and applies the schema.
func Open(ctx context.Context, path string) (*Repository, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure audit dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection keeps writes ordered and avoids SQLITE_BUSY between pool members.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Repository{db: db, path: path}, nil
}

// RecordScan stores one processed submission.
func (r *Repository) RecordScan(ctx context.Context, event models.ScanEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO scan_events (id, identifier, status, location, room, outcome, label, row_number, scanned_at_ns)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Identifier,
		string(event.Status),
		event.Location,
		event.Room,
		string(event.Outcome),
		event.Label,
		event.RowNumber,
		event.ScannedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert scan event: %w", err)
	}
	return nil
}

// RecordProgress stores a progress snapshot.
func (r *Repository) RecordProgress(ctx context.Context, snapshot models.ProgressSnapshot) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO progress_snapshots (marked_count, total_count, taken_at_ns) VALUES (?, ?, ?)`,
		snapshot.MarkedCount,
		snapshot.TotalCount,
		snapshot.TakenAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert progress snapshot: %w", err)
	}
	return nil
}

// RecentScans returns up to limit scan events, newest first.
func (r *Repository) RecentScans(ctx context.Context, limit int) ([]models.ScanEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, identifier, status, location, room, outcome, label, row_number, scanned_at_ns
         FROM scan_events ORDER BY scanned_at_ns DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query scan events: %w", err)
	}
	defer rows.Close()

	var events []models.ScanEvent
	for rows.Next() {
		var (
			event     models.ScanEvent
			status    string
			outcome   string
			scannedAt int64
		)
		if err := rows.Scan(&event.ID, &event.Identifier, &status, &event.Location, &event.Room,
			&outcome, &event.Label, &event.RowNumber, &scannedAt); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		event.Status = models.StatusCode(status)
		event.Outcome = models.OutcomeKind(outcome)
		event.ScannedAt = time.Unix(0, scannedAt).UTC()
		events = append(events, event)
	}
	return events, rows.Err()
}

// LatestProgress returns the most recent snapshot, or false when none exist.
func (r *Repository) LatestProgress(ctx context.Context) (models.ProgressSnapshot, bool, error) {
	var (
		snapshot models.ProgressSnapshot
		takenAt  int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT marked_count, total_count, taken_at_ns FROM progress_snapshots ORDER BY taken_at_ns DESC, id DESC LIMIT 1`).
		Scan(&snapshot.MarkedCount, &snapshot.TotalCount, &takenAt)
	if err == sql.ErrNoRows {
		return models.ProgressSnapshot{}, false, nil
	}
	if err != nil {
		return models.ProgressSnapshot{}, false, fmt.Errorf("query progress snapshot: %w", err)
	}
	snapshot.TakenAt = time.Unix(0, takenAt).UTC()
	return snapshot, true, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close(ctx context.Context) error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}
