package queue

import (
	"context"
	"fmt"
)

const createJobsTable = `
CREATE TABLE IF NOT EXISTS transcription_jobs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    transcript_id TEXT NOT NULL UNIQUE,
    audio_path TEXT NOT NULL,
    user_id TEXT NOT NULL,
    status TEXT NOT NULL,
    attempts INTEGER NOT NULL DEFAULT 0,
    error_message TEXT,
    progress_message TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    last_heartbeat TEXT
)`

var jobIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_jobs_status_created ON transcription_jobs (status, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_user ON transcription_jobs (user_id)`,
}

func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createJobsTable); err != nil {
		return fmt.Errorf("create jobs table: %w", err)
	}
	for _, stmt := range jobIndexes {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create job index: %w", err)
		}
	}
	return nil
}
