package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"scribe/internal/config"
)

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the queue database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.QueueDBPath()
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

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the location of the queue database file.
func (s *Store) Path() string {
	return s.path
}

// Enqueue inserts a new job awaiting processing.
func (s *Store) Enqueue(ctx context.Context, transcriptID, audioPath, userID string) (*Job, error) {
	if strings.TrimSpace(transcriptID) == "" {
		return nil, errors.New("transcript id is required")
	}
	if strings.TrimSpace(audioPath) == "" {
		return nil, errors.New("audio path is required")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("user id is required")
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO transcription_jobs (
            transcript_id, audio_path, user_id, status, attempts, created_at, updated_at
        ) VALUES (?, ?, ?, ?, 0, ?, ?)`,
		transcriptID,
		audioPath,
		userID,
		StatusEnqueued,
		timestamp,
		timestamp,
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

// GetByID fetches a job by identifier. Returns nil when no job exists.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM transcription_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// GetByTranscriptID fetches the job for a given transcript identifier.
func (s *Store) GetByTranscriptID(ctx context.Context, transcriptID string) (*Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM transcription_jobs WHERE transcript_id = ? LIMIT 1`,
		transcriptID,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job by transcript: %w", err)
	}
	return job, nil
}

// NextEnqueued returns the oldest job awaiting processing, or nil.
func (s *Store) NextEnqueued(ctx context.Context) (*Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM transcription_jobs WHERE status = ? ORDER BY created_at LIMIT 1`,
		StatusEnqueued,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next enqueued: %w", err)
	}
	return job, nil
}

// Update persists changes to an existing job.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE transcription_jobs
         SET audio_path = ?, user_id = ?, status = ?, attempts = ?, error_message = ?,
             progress_message = ?, updated_at = ?, last_heartbeat = ?
         WHERE id = ?`,
		job.AudioPath,
		job.UserID,
		job.Status,
		job.Attempts,
		nullableString(job.ErrorMessage),
		nullableString(job.ProgressMessage),
		job.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(job.LastHeartbeat),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// List returns jobs filtered by status set (or all jobs when none provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	baseQuery := `SELECT ` + jobColumns + ` FROM transcription_jobs`
	orderClause := ` ORDER BY created_at`

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpdateHeartbeat refreshes the heartbeat timestamp for an in-flight job.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE transcription_jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now,
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleProcessing returns jobs stuck in processing to enqueued once
// their heartbeat has expired, provided they still have attempts left.
// Exhausted jobs are failed instead (dead-letter).
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time, maxAttempts int) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	cutoffText := cutoff.UTC().Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE transcription_jobs
         SET status = ?, progress_message = 'Reclaimed from stale processing',
             last_heartbeat = NULL, updated_at = ?
         WHERE status = ? AND attempts < ? AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		StatusEnqueued,
		now,
		StatusProcessing,
		maxAttempts,
		cutoffText,
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	reclaimed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	if _, err := s.db.ExecContext(
		ctx,
		`UPDATE transcription_jobs
         SET status = ?, error_message = 'Exceeded maximum attempts',
             progress_message = 'Exceeded maximum attempts', last_heartbeat = NULL, updated_at = ?
         WHERE status = ? AND attempts >= ? AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		StatusFailed,
		now,
		StatusProcessing,
		maxAttempts,
		cutoffText,
	); err != nil {
		return reclaimed, fmt.Errorf("dead-letter exhausted jobs: %w", err)
	}
	return reclaimed, nil
}

// RetryFailed moves failed jobs back to enqueued for reprocessing.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if len(ids) == 0 {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE transcription_jobs
             SET status = ?, attempts = 0, error_message = NULL,
                 progress_message = 'Retry requested', updated_at = ?
             WHERE status = ?`,
			StatusEnqueued,
			now,
			StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed jobs: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+2)
	args = append(args, StatusEnqueued, now)
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE transcription_jobs
        SET status = ?, attempts = 0, error_message = NULL,
            progress_message = 'Retry requested', updated_at = ?
        WHERE id IN (` + placeholders + `) AND status = '` + string(StatusFailed) + `'`
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected jobs: %w", err)
	}
	return res.RowsAffected()
}

// ClearCompleted removes completed jobs from the queue.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transcription_jobs WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM transcription_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates queue state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusEnqueued:
			health.Enqueued += count
		case StatusProcessing:
			health.Processing += count
		case StatusCompleted:
			health.Completed += count
		case StatusFailed:
			health.Failed += count
		}
	}
	return health, nil
}

const jobColumns = "id, transcript_id, audio_path, user_id, status, attempts, error_message, progress_message, created_at, updated_at, last_heartbeat"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           int64
		transcriptID string
		audioPath    string
		userID       string
		statusStr    string
		attempts     int
		errorMessage sql.NullString
		progress     sql.NullString
		createdRaw   string
		updatedRaw   string
		heartbeatRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&transcriptID,
		&audioPath,
		&userID,
		&statusStr,
		&attempts,
		&errorMessage,
		&progress,
		&createdRaw,
		&updatedRaw,
		&heartbeatRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:              id,
		TranscriptID:    transcriptID,
		AudioPath:       audioPath,
		UserID:          userID,
		Status:          Status(statusStr),
		Attempts:        attempts,
		ErrorMessage:    errorMessage.String,
		ProgressMessage: progress.String,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	if heartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(heartbeatRaw.String); err == nil {
			job.LastHeartbeat = &heartbeat
		}
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
