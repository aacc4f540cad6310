// =============================================================================
// Tax Transaction Manager - History Module
// =============================================================================
//
// This module keeps the processing history in a SQLite database.
//
// TABLE:
//   import_runs  one row per processed input file, with its counts, the tax
//                rate and the final tax
//
// Runs are listed most recent first.
//
// =============================================================================

// Package history records processing runs in a SQLite database so that past
// imports and their tax results can be listed later.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Schema defines the SQL statements to create the history tables.
const Schema = `
-- One row per processed input file
CREATE TABLE IF NOT EXISTS import_runs (
    id TEXT PRIMARY KEY,
    source_file TEXT NOT NULL,
    processed_at TEXT NOT NULL,        -- RFC 3339 with nanoseconds, UTC
    total INTEGER NOT NULL,
    valid INTEGER NOT NULL,
    invalid INTEGER NOT NULL,
    skipped INTEGER NOT NULL,
    deleted INTEGER NOT NULL,
    tax_rate REAL NOT NULL,
    final_tax REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_import_runs_processed_at
    ON import_runs(processed_at);
`

// timeLayout keeps a fixed width so processed_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run represents one processed input file.
type Run struct {
	ID          string
	SourceFile  string
	ProcessedAt time.Time
	Total       int
	Valid       int
	Invalid     int
	Skipped     int
	Deleted     int
	TaxRate     float64
	FinalTax    float64
}

// Store manages the history database.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open opens the history database at dbPath, creating the file, its parent
// directory and the schema when missing.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// Record stores run. A missing ID is generated and a zero ProcessedAt is set
// to the current time; the stored run is returned.
func (s *Store) Record(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.ProcessedAt.IsZero() {
		run.ProcessedAt = time.Now()
	}
	run.ProcessedAt = run.ProcessedAt.UTC()

	query := `
		INSERT INTO import_runs
			(id, source_file, processed_at, total, valid, invalid, skipped, deleted, tax_rate, final_tax)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.SourceFile,
		run.ProcessedAt.Format(timeLayout),
		run.Total,
		run.Valid,
		run.Invalid,
		run.Skipped,
		run.Deleted,
		run.TaxRate,
		run.FinalTax,
	)
	if err != nil {
		return Run{}, fmt.Errorf("failed to record run: %w", err)
	}

	return run, nil
}

// List returns the most recent runs first. A limit of zero or less returns
// every run.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT id, source_file, processed_at, total, valid, invalid, skipped, deleted, tax_rate, final_tax
		FROM import_runs
		ORDER BY processed_at DESC, rowid DESC
	`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var processedAt string

		if err := rows.Scan(
			&run.ID,
			&run.SourceFile,
			&processedAt,
			&run.Total,
			&run.Valid,
			&run.Invalid,
			&run.Skipped,
			&run.Deleted,
			&run.TaxRate,
			&run.FinalTax,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		run.ProcessedAt, err = time.Parse(timeLayout, processedAt)
		if err != nil {
			return nil, fmt.Errorf("invalid processed_at %q for run %s: %w", processedAt, run.ID, err)
		}

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}
