package transcriptstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a transcription or chunk does not exist.
var ErrNotFound = errors.New("transcript not found")

// Store is the persistence surface for transcriptions and their chunks.
type Store interface {
	// InsertTranscriptionWithChunks writes the transcription and all of
	// its chunks in a single transaction. Re-inserting an existing
	// transcription id is a no-op so redelivered jobs stay idempotent.
	InsertTranscriptionWithChunks(ctx context.Context, transcription *Transcription, chunks []*TranscriptionChunk) error

	// GetTranscription fetches one transcription by id.
	GetTranscription(ctx context.Context, id string) (*Transcription, error)

	// ListTranscriptions pages through a user's transcriptions, newest
	// first, returning the page and the total count.
	ListTranscriptions(ctx context.Context, userID string, page, limit int) ([]*Transcription, int, error)

	// ListChunks returns every chunk of a transcription ordered by index.
	ListChunks(ctx context.Context, transcriptionID string) ([]*TranscriptionChunk, error)

	// TopMatch returns the chunk of the transcription most similar to the
	// query embedding.
	TopMatch(ctx context.Context, transcriptionID string, embedding []float32) (*SearchMatch, error)

	// ChunkAt fetches the chunk at a specific index.
	ChunkAt(ctx context.Context, transcriptionID string, index int) (*TranscriptionChunk, error)

	// ChunkRange fetches chunks with index in [lo, hi], ordered by index.
	// An empty range yields an empty slice.
	ChunkRange(ctx context.Context, transcriptionID string, lo, hi int) ([]*TranscriptionChunk, error)

	Close() error
}
