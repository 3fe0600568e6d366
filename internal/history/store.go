// Package history records finished runs in a local SQLite database.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"go.lorenzomilicia.dev/aurora-converter/internal/runstats"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes incompatibly.
const schemaVersion = 1

// timeLayout has a fixed width so started_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrSchemaMismatch indicates the database was written by an incompatible version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Status is the outcome of a recorded run.
type Status string

const (
	StatusCompleted   Status = "completed"
	StatusInterrupted Status = "interrupted"
	StatusFailed      Status = "failed"
)

// Run is one recorded batch.
type Run struct {
	Summary   runstats.Summary
	Status    Status
	InputDir  string
	OutputDir string
	Failure   string
}

// Store persists run summaries.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return tx.Commit()
}

// Record stores a finished run. Recording the same run id twice replaces the row.
func (s *Store) Record(ctx context.Context, run Run) error {
	sum := run.Summary
	if sum.RunID == "" {
		return errors.New("record run: empty run id")
	}
	status := run.Status
	if status == "" {
		status = StatusCompleted
	}
	var failure sql.NullString
	if run.Failure != "" {
		failure = sql.NullString{String: run.Failure, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (
			run_id, kind, status, input_dir, output_dir, started_at, elapsed_ms,
			converted, copied, skipped, errors, existing_preferred,
			original_bytes, final_bytes, failure
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.RunID, string(sum.Kind), string(status), run.InputDir, run.OutputDir,
		sum.StartedAt.UTC().Format(timeLayout), sum.Elapsed.Milliseconds(),
		sum.Converted, sum.Copied, sum.Skipped, sum.Errors, sum.ExistingTargetPreferred,
		sum.OriginalBytes, sum.FinalBytes, failure,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", sum.RunID, err)
	}
	return nil
}

// List returns the most recent runs first. A limit of zero or less returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT run_id, kind, status, input_dir, output_dir, started_at, elapsed_ms,
			converted, copied, skipped, errors, existing_preferred,
			original_bytes, final_bytes, failure
		FROM runs ORDER BY started_at DESC, run_id`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r         Run
			kind      string
			status    string
			startedAt string
			elapsedMS int64
			failure   sql.NullString
		)
		if err := rows.Scan(
			&r.Summary.RunID, &kind, &status, &r.InputDir, &r.OutputDir, &startedAt, &elapsedMS,
			&r.Summary.Converted, &r.Summary.Copied, &r.Summary.Skipped, &r.Summary.Errors,
			&r.Summary.ExistingTargetPreferred, &r.Summary.OriginalBytes, &r.Summary.FinalBytes, &failure,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Summary.Kind = runstats.Kind(kind)
		r.Status = Status(status)
		r.Summary.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		if t, err := time.Parse(timeLayout, startedAt); err == nil {
			r.Summary.StartedAt = t
		}
		r.Failure = failure.String
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
