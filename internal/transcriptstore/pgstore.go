package transcriptstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"scribe/internal/config"
)

// PGStore persists transcriptions in Postgres with pgvector-backed
// similarity search.
type PGStore struct {
	db *bun.DB
}

// NewPGStore connects to Postgres, ensures the schema exists, and
// returns the store.
func NewPGStore(ctx context.Context, cfg config.Database) (*PGStore, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
	if cfg.Password != "" {
		opts = append(opts, pgdriver.WithPassword(cfg.Password))
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(opts...))
	db := bun.NewDB(sqldb, pgdialect.New())
	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	store := &PGStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *PGStore) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("enable pgvector extension: %w", err)
	}
	if _, err := s.db.NewCreateTable().
		Model((*Transcription)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create transcriptions table: %w", err)
	}
	if _, err := s.db.NewCreateTable().
		Model((*TranscriptionChunk)(nil)).
		IfNotExists().
		ForeignKey(`("transcription_id") REFERENCES "transcriptions" ("id") ON DELETE CASCADE`).
		Exec(ctx); err != nil {
		return fmt.Errorf("create transcription_chunks table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		"CREATE UNIQUE INDEX IF NOT EXISTS transcription_chunks_transcription_idx ON transcription_chunks (transcription_id, chunk_index)",
	); err != nil {
		return fmt.Errorf("create chunk index: %w", err)
	}
	return nil
}

func (s *PGStore) Close() error {
	return s.db.Close()
}

func (s *PGStore) InsertTranscriptionWithChunks(ctx context.Context, transcription *Transcription, chunks []*TranscriptionChunk) error {
	if transcription == nil {
		return errors.New("transcription is nil")
	}

	exists, err := s.db.NewSelect().
		Model((*Transcription)(nil)).
		Where("id = ?", transcription.ID).
		Exists(ctx)
	if err != nil {
		return fmt.Errorf("check existing transcription: %w", err)
	}
	if exists {
		return nil
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(transcription).Exec(ctx); err != nil {
			return fmt.Errorf("insert transcription: %w", err)
		}
		if len(chunks) > 0 {
			if _, err := tx.NewInsert().Model(&chunks).Exec(ctx); err != nil {
				return fmt.Errorf("insert chunks: %w", err)
			}
		}
		return nil
	})
}

func (s *PGStore) GetTranscription(ctx context.Context, id string) (*Transcription, error) {
	transcription := new(Transcription)
	err := s.db.NewSelect().
		Model(transcription).
		Where("id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get transcription: %w", err)
	}
	return transcription, nil
}

func (s *PGStore) ListTranscriptions(ctx context.Context, userID string, page, limit int) ([]*Transcription, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	var transcriptions []*Transcription
	total, err := s.db.NewSelect().
		Model(&transcriptions).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list transcriptions: %w", err)
	}
	return transcriptions, total, nil
}

func (s *PGStore) ListChunks(ctx context.Context, transcriptionID string) ([]*TranscriptionChunk, error) {
	var chunks []*TranscriptionChunk
	err := s.db.NewSelect().
		Model(&chunks).
		Where("transcription_id = ?", transcriptionID).
		Order("chunk_index ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	return chunks, nil
}

func (s *PGStore) TopMatch(ctx context.Context, transcriptionID string, embedding []float32) (*SearchMatch, error) {
	if len(embedding) == 0 {
		return nil, errors.New("query embedding is empty")
	}

	match := new(SearchMatch)
	err := s.db.NewRaw(
		`SELECT id, transcription_id, chunk_index, text, start_time, end_time,
                1 - (embedding <=> ?::vector) AS similarity
         FROM transcription_chunks
         WHERE transcription_id = ?
         ORDER BY similarity DESC
         LIMIT 1`,
		vectorLiteral(embedding),
		transcriptionID,
	).Scan(ctx, &match.ID, &match.TranscriptionID, &match.ChunkIndex, &match.Text, &match.StartTime, &match.EndTime, &match.Similarity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no chunks for %s", ErrNotFound, transcriptionID)
	}
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	return match, nil
}

func (s *PGStore) ChunkAt(ctx context.Context, transcriptionID string, index int) (*TranscriptionChunk, error) {
	chunk := new(TranscriptionChunk)
	err := s.db.NewSelect().
		Model(chunk).
		ExcludeColumn("embedding").
		Where("transcription_id = ?", transcriptionID).
		Where("chunk_index = ?", index).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: chunk %d of %s", ErrNotFound, index, transcriptionID)
	}
	if err != nil {
		return nil, fmt.Errorf("get chunk: %w", err)
	}
	return chunk, nil
}

func (s *PGStore) ChunkRange(ctx context.Context, transcriptionID string, lo, hi int) ([]*TranscriptionChunk, error) {
	if hi < lo {
		return nil, nil
	}
	var chunks []*TranscriptionChunk
	err := s.db.NewSelect().
		Model(&chunks).
		ExcludeColumn("embedding").
		Where("transcription_id = ?", transcriptionID).
		Where("chunk_index BETWEEN ? AND ?", lo, hi).
		Order("chunk_index ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chunk range: %w", err)
	}
	return chunks, nil
}

// vectorLiteral renders an embedding in pgvector's input syntax.
func vectorLiteral(embedding []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range embedding {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}
