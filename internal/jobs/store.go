// Package jobs persists job records in SQLite. A record tracks the stage a job
// last entered and whether it is pending, running, completed or failed, with
// the failing stage and error kind kept for reporting.
package jobs

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

var ErrSchemaMismatch = errors.New("schema version mismatch")

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open creates or opens the job database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("jobs: database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure database directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

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

	s := &Store{db: db, path: path, now: time.Now}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string { return s.path }

func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	var version int
	err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has %d, expected %d (remove %s to reset)", ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

// Ensure creates a pending record for id unless one exists. A non-empty
// sourceURL replaces the stored one.
func (s *Store) Ensure(ctx context.Context, id, sourceURL string) (*Job, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("jobs: empty job id")
	}
	ts := s.timestamp()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, source_url, current_stage, status, created_at, updated_at)
         VALUES (?, ?, '', ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             source_url = CASE WHEN excluded.source_url != '' THEN excluded.source_url ELSE jobs.source_url END`,
		id, sourceURL, StatusPending, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("ensure job: %w", err)
	}
	return s.Get(ctx, id)
}

// Get fetches a job by id.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns the most recently updated jobs first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Job, error) {
	query := selectColumns + ` ORDER BY updated_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	out := []Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, *job)
	}
	return out, rows.Err()
}

// StartStage marks the job running in stage and clears any previous failure.
func (s *Store) StartStage(ctx context.Context, id, stage string) error {
	return s.transition(ctx, id, StatusRunning,
		`UPDATE jobs SET status = ?, current_stage = ?, failed_stage = NULL, error_kind = NULL,
             error_message = NULL, updated_at = ? WHERE id = ?`,
		StatusRunning, stage, s.timestamp(), id,
	)
}

// CompleteStage records that the running stage finished. final marks the
// whole job completed; otherwise it waits, pending, for the next stage.
func (s *Store) CompleteStage(ctx context.Context, id string, final bool) error {
	to := StatusPending
	if final {
		to = StatusCompleted
	}
	return s.transition(ctx, id, to,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`,
		to, s.timestamp(), id,
	)
}

// Fail records the failing stage and the error kind and message.
func (s *Store) Fail(ctx context.Context, id, stage, kind, message string) error {
	return s.transition(ctx, id, StatusFailed,
		`UPDATE jobs SET status = ?, failed_stage = ?, error_kind = ?, error_message = ?, updated_at = ?
         WHERE id = ?`,
		StatusFailed, stage, kind, message, s.timestamp(), id,
	)
}

// SetClipsCount stores the number of clips in the job's manifest.
func (s *Store) SetClipsCount(ctx context.Context, id string, n int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET clips_count = ?, updated_at = ? WHERE id = ?`, n, s.timestamp(), id)
	if err != nil {
		return fmt.Errorf("set clips count: %w", err)
	}
	return requireRow(res, id)
}

func (s *Store) transition(ctx context.Context, id string, to Status, query string, args ...any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var from Status
	if err := tx.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = ?`, id).Scan(&from); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("read status: %w", err)
	}
	if err := checkTransition(id, from, to); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	return tx.Commit()
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

const selectColumns = `SELECT id, source_url, current_stage, status, failed_stage, error_kind, error_message,
    clips_count, created_at, updated_at FROM jobs`

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(r scanner) (*Job, error) {
	var (
		job                        Job
		failedStage, kind, message sql.NullString
		createdAt, updatedAt       string
	)
	if err := r.Scan(&job.ID, &job.SourceURL, &job.CurrentStage, &job.Status, &failedStage, &kind, &message,
		&job.ClipsCount, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	job.FailedStage = failedStage.String
	job.ErrorKind = kind.String
	job.ErrorMessage = message.String
	job.CreatedAt = parseTime(createdAt)
	job.UpdatedAt = parseTime(updatedAt)
	return &job, nil
}

func parseTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
