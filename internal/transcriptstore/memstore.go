package transcriptstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/philippgille/chromem-go"
)

// MemStore is an in-memory Store backed by chromem-go for similarity
// search. It serves development setups and tests where Postgres is not
// available; contents do not survive a restart.
type MemStore struct {
	mu             sync.RWMutex
	vectors        *chromem.DB
	transcriptions map[string]*Transcription
	chunks         map[string][]*TranscriptionChunk
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		vectors:        chromem.NewDB(),
		transcriptions: make(map[string]*Transcription),
		chunks:         make(map[string][]*TranscriptionChunk),
	}
}

func (s *MemStore) Close() error {
	return nil
}

func collectionName(transcriptionID string) string {
	return "transcription-" + transcriptionID
}

func (s *MemStore) InsertTranscriptionWithChunks(ctx context.Context, transcription *Transcription, chunks []*TranscriptionChunk) error {
	if transcription == nil {
		return errors.New("transcription is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.transcriptions[transcription.ID]; exists {
		return nil
	}

	collection, err := s.vectors.GetOrCreateCollection(collectionName(transcription.ID), nil, nil)
	if err != nil {
		return fmt.Errorf("create vector collection: %w", err)
	}
	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			continue
		}
		doc := chromem.Document{
			ID:        chunk.ID,
			Embedding: chunk.Embedding,
			Content:   chunk.Text,
		}
		if err := collection.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("index chunk %s: %w", chunk.ID, err)
		}
	}

	stored := make([]*TranscriptionChunk, len(chunks))
	copy(stored, chunks)
	sort.Slice(stored, func(i, j int) bool {
		return stored[i].ChunkIndex < stored[j].ChunkIndex
	})

	copied := *transcription
	s.transcriptions[transcription.ID] = &copied
	s.chunks[transcription.ID] = stored
	return nil
}

func (s *MemStore) GetTranscription(ctx context.Context, id string) (*Transcription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	transcription, ok := s.transcriptions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	copied := *transcription
	return &copied, nil
}

func (s *MemStore) ListTranscriptions(ctx context.Context, userID string, page, limit int) ([]*Transcription, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*Transcription
	for _, transcription := range s.transcriptions {
		if transcription.UserID == userID {
			copied := *transcription
			matches = append(matches, &copied)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})

	total := len(matches)
	start := (page - 1) * limit
	if start >= total {
		return nil, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return matches[start:end], total, nil
}

func (s *MemStore) ListChunks(ctx context.Context, transcriptionID string) ([]*TranscriptionChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chunks, ok := s.chunks[transcriptionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, transcriptionID)
	}
	out := make([]*TranscriptionChunk, len(chunks))
	copy(out, chunks)
	return out, nil
}

func (s *MemStore) TopMatch(ctx context.Context, transcriptionID string, embedding []float32) (*SearchMatch, error) {
	if len(embedding) == 0 {
		return nil, errors.New("query embedding is empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	collection := s.vectors.GetCollection(collectionName(transcriptionID), nil)
	if collection == nil || collection.Count() == 0 {
		return nil, fmt.Errorf("%w: no chunks for %s", ErrNotFound, transcriptionID)
	}

	results, err := collection.QueryEmbedding(ctx, embedding, 1, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: no chunks for %s", ErrNotFound, transcriptionID)
	}

	chunk := s.chunkByID(transcriptionID, results[0].ID)
	if chunk == nil {
		return nil, fmt.Errorf("%w: chunk %s", ErrNotFound, results[0].ID)
	}
	return &SearchMatch{
		TranscriptionChunk: *chunk,
		Similarity:         float64(results[0].Similarity),
	}, nil
}

func (s *MemStore) ChunkAt(ctx context.Context, transcriptionID string, index int) (*TranscriptionChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, chunk := range s.chunks[transcriptionID] {
		if chunk.ChunkIndex == index {
			copied := *chunk
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("%w: chunk %d of %s", ErrNotFound, index, transcriptionID)
}

func (s *MemStore) ChunkRange(ctx context.Context, transcriptionID string, lo, hi int) ([]*TranscriptionChunk, error) {
	if hi < lo {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*TranscriptionChunk
	for _, chunk := range s.chunks[transcriptionID] {
		if chunk.ChunkIndex >= lo && chunk.ChunkIndex <= hi {
			copied := *chunk
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *MemStore) chunkByID(transcriptionID, chunkID string) *TranscriptionChunk {
	for _, chunk := range s.chunks[transcriptionID] {
		if chunk.ID == chunkID {
			copied := *chunk
			return &copied
		}
	}
	return nil
}
