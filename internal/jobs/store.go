package jobs

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/google/uuid"

	"redub/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped on incompatible schema changes; the database must
// then be cleared.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by a different
// schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// ErrNotFound indicates no job matched the lookup.
var ErrNotFound = errors.New("job not found")

// Store persists dubbing jobs in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open connects to the job database, applying pragmas and the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.JobDBPath())
}

// OpenPath opens the store at an explicit database path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
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
		if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		return nil
	}
	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// NewJob inserts a pending job with a fresh correlation id.
func (s *Store) NewJob(ctx context.Context, sourcePath, sourceLanguage, targetLanguage string) (*Job, error) {
	now := timestamp()
	correlationID := uuid.NewString()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO dub_jobs (
            correlation_id, source_path, source_language, target_language,
            status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		correlationID, sourcePath, sourceLanguage, targetLanguage,
		StatusPending, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

const jobColumns = `id, correlation_id, source_path, output_path, source_language,
    target_language, status, error_message, failed_segments, segment_count,
    speaker_count, duration_ms, created_at, updated_at`

// GetByID fetches one job.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM dub_jobs WHERE id = ?", id)
	return scanJob(row)
}

// GetByCorrelationID fetches the job tracking a transport correlation id.
func (s *Store) GetByCorrelationID(ctx context.Context, correlationID string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM dub_jobs WHERE correlation_id = ?", correlationID)
	return scanJob(row)
}

// List returns jobs, optionally filtered by status, newest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	query := "SELECT " + jobColumns + " FROM dub_jobs"
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		query += " WHERE status IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	var out []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// NextPending claims the oldest pending job, moving it to transcribing.
// Returns nil when nothing is pending.
func (s *Store) NextPending(ctx context.Context) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id FROM dub_jobs WHERE status = ? ORDER BY id LIMIT 1", StatusPending)
	var id int64
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("next pending: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE dub_jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
		StatusTranscribing, timestamp(), id, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("claim pending: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Claimed by a concurrent worker between select and update.
		return nil, nil
	}
	return s.GetByID(ctx, id)
}

// UpdateStatus moves a job to a new stage.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status Status) error {
	if !ValidStatus(status) {
		return fmt.Errorf("unknown status %q", status)
	}
	_, err := s.db.ExecContext(ctx,
		"UPDATE dub_jobs SET status = ?, updated_at = ? WHERE id = ?",
		status, timestamp(), id)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

// SetCounts records the transcript shape discovered during transcription.
func (s *Store) SetCounts(ctx context.Context, id int64, segments, speakers int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE dub_jobs SET segment_count = ?, speaker_count = ?, updated_at = ? WHERE id = ?",
		segments, speakers, timestamp(), id)
	if err != nil {
		return fmt.Errorf("set counts: %w", err)
	}
	return nil
}

// MarkCompleted records the final artifact. Any failed segment indices make
// the job partial instead of completed.
func (s *Store) MarkCompleted(ctx context.Context, id int64, outputPath string, durationMS int64, failedSegments []int) error {
	status := StatusCompleted
	var failedJSON any
	if len(failedSegments) > 0 {
		status = StatusPartial
		encoded, err := json.Marshal(failedSegments)
		if err != nil {
			return fmt.Errorf("encode failed segments: %w", err)
		}
		failedJSON = string(encoded)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE dub_jobs SET status = ?, output_path = ?, duration_ms = ?,
            failed_segments = ?, updated_at = ? WHERE id = ?`,
		status, outputPath, durationMS, failedJSON, timestamp(), id)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

// MarkFailed records a terminal failure with its message.
func (s *Store) MarkFailed(ctx context.Context, id int64, message string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE dub_jobs SET status = ?, error_message = ?, updated_at = ? WHERE id = ?",
		StatusFailed, message, timestamp(), id)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// FailInFlight fails every processing job, used at daemon shutdown so
// nothing stays stuck in a stage status.
func (s *Store) FailInFlight(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE dub_jobs SET status = ?, error_message = ?, updated_at = ?
         WHERE status IN (?, ?, ?)`,
		StatusFailed, DaemonStopReason, timestamp(),
		StatusTranscribing, StatusDubbing, StatusAssembling)
	if err != nil {
		return 0, fmt.Errorf("fail in-flight jobs: %w", err)
	}
	return res.RowsAffected()
}

// Counts tallies jobs per status.
func (s *Store) Counts(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(1) FROM dub_jobs GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()
	out := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[status] = count
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*Job, error) {
	var job Job
	var outputPath, errorMessage, failedJSON sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(
		&job.ID, &job.CorrelationID, &job.SourcePath, &outputPath,
		&job.SourceLanguage, &job.TargetLanguage, &job.Status,
		&errorMessage, &failedJSON, &job.SegmentCount, &job.SpeakerCount,
		&job.DurationMS, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	job.OutputPath = outputPath.String
	job.ErrorMessage = errorMessage.String
	if failedJSON.Valid && failedJSON.String != "" {
		if err := json.Unmarshal([]byte(failedJSON.String), &job.FailedSegments); err != nil {
			return nil, fmt.Errorf("decode failed segments: %w", err)
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		job.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		job.UpdatedAt = t
	}
	return &job, nil
}
