package retrieval

import (
	"context"
	"fmt"
	"strings"

	"scribe/internal/services/embed"
	"scribe/internal/transcriptstore"
)

// Window selects surrounding chunks relative to an anchor index.
// Previous chunks with offsets in (StartPrevious, EndPrevious] and next
// chunks with offsets in (StartNext, EndNext] are included, so the
// default window skips nothing and extends three chunks each way.
type Window struct {
	StartPrevious int
	EndPrevious   int
	StartNext     int
	EndNext       int
}

// DefaultWindow extends three chunks before and after the anchor.
func DefaultWindow() Window {
	return Window{StartPrevious: 0, EndPrevious: 3, StartNext: 0, EndNext: 3}
}

// Context is the chunk at an anchor index together with its window of
// surrounding chunks. PreviousID and NextID identify the window edges
// adjacent to the anchor's window so a client can keep paging outward.
type Context struct {
	Chunk      *transcriptstore.TranscriptionChunk   `json:"chunk"`
	Previous   []*transcriptstore.TranscriptionChunk `json:"previous"`
	Next       []*transcriptstore.TranscriptionChunk `json:"next"`
	PreviousID string                                `json:"previousId,omitempty"`
	NextID     string                                `json:"nextId,omitempty"`
}

// SearchResult is the best-matching chunk for a query together with its
// surrounding context.
type SearchResult struct {
	Match *transcriptstore.SearchMatch `json:"match"`
	Context
}

// Service runs retrieval queries against a transcript store.
type Service struct {
	store    transcriptstore.Store
	embedder embed.Embedder
}

// NewService wires a retrieval service.
func NewService(store transcriptstore.Store, embedder embed.Embedder) *Service {
	return &Service{store: store, embedder: embedder}
}

// Search embeds the query, finds the most similar chunk in the
// transcription, and attaches its neighbor window.
func (s *Service) Search(ctx context.Context, transcriptionID, query string, window Window) (*SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is required")
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	match, err := s.store.TopMatch(ctx, transcriptionID, vector)
	if err != nil {
		return nil, err
	}

	neighborCtx, err := s.Neighbors(ctx, transcriptionID, match.ChunkIndex, window)
	if err != nil {
		return nil, err
	}
	return &SearchResult{Match: match, Context: *neighborCtx}, nil
}

// Neighbors returns the chunk at the anchor index and the chunks
// surrounding it per the window. The previous window covers indices
// [index-EndPrevious, index-StartPrevious-1] and the next window
// [index+StartNext+1, index+EndNext], both clamped to existing chunks.
func (s *Service) Neighbors(ctx context.Context, transcriptionID string, index int, window Window) (*Context, error) {
	if index < 0 {
		return nil, fmt.Errorf("chunk index must not be negative")
	}
	window = normalizeWindow(window)

	anchor, err := s.store.ChunkAt(ctx, transcriptionID, index)
	if err != nil {
		return nil, fmt.Errorf("anchor chunk: %w", err)
	}

	prevLo := index - window.EndPrevious
	prevHi := index - window.StartPrevious - 1
	if prevLo < 0 {
		prevLo = 0
	}

	var previous []*transcriptstore.TranscriptionChunk
	if prevHi >= prevLo && prevHi >= 0 {
		chunks, err := s.store.ChunkRange(ctx, transcriptionID, prevLo, prevHi)
		if err != nil {
			return nil, fmt.Errorf("previous window: %w", err)
		}
		previous = chunks
	}

	nextLo := index + window.StartNext + 1
	nextHi := index + window.EndNext
	var next []*transcriptstore.TranscriptionChunk
	if nextHi >= nextLo {
		chunks, err := s.store.ChunkRange(ctx, transcriptionID, nextLo, nextHi)
		if err != nil {
			return nil, fmt.Errorf("next window: %w", err)
		}
		next = chunks
	}

	out := &Context{Chunk: anchor, Previous: previous, Next: next}
	if len(previous) > 0 {
		out.PreviousID = previous[len(previous)-1].ID
	}
	if len(next) > 0 {
		out.NextID = next[0].ID
	}
	return out, nil
}

func normalizeWindow(window Window) Window {
	defaults := DefaultWindow()
	if window.StartPrevious < 0 {
		window.StartPrevious = defaults.StartPrevious
	}
	if window.EndPrevious < 0 {
		window.EndPrevious = defaults.EndPrevious
	}
	if window.StartNext < 0 {
		window.StartNext = defaults.StartNext
	}
	if window.EndNext < 0 {
		window.EndNext = defaults.EndNext
	}
	return window
}
