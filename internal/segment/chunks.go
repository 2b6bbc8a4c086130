package segment

import (
	"strings"
	"time"
)

// Chunk is a group of consecutive sentences persisted and embedded as one
// retrieval unit.
type Chunk struct {
	Text  string
	Start time.Duration
	End   time.Duration
}

// ChunkOptions controls how sentences are grouped into chunks.
type ChunkOptions struct {
	// MinSentences must accumulate before a paragraph-count close fires.
	MinSentences int
	// MaxSentences forces a close regardless of paragraph structure.
	MaxSentences int
	// ParagraphGap is the silence between sentences treated as an implicit
	// paragraph boundary.
	ParagraphGap time.Duration
	// TargetParagraphs is how many paragraphs a chunk aims to hold.
	TargetParagraphs int
}

// DefaultChunkOptions mirrors the tuning the pipeline ships with.
func DefaultChunkOptions() ChunkOptions {
	return ChunkOptions{
		MinSentences:     2,
		MaxSentences:     8,
		ParagraphGap:     2 * time.Second,
		TargetParagraphs: 2,
	}
}

// ChunkSentences groups sentences into chunks. A chunk closes at the last
// sentence, when it reaches MaxSentences, when it holds TargetParagraphs
// paragraphs and at least MinSentences sentences, or when a paragraph
// boundary lands after at least one earlier paragraph already closed
// inside the chunk.
func ChunkSentences(sentences []Sentence, opts ChunkOptions) []Chunk {
	if opts.MinSentences <= 0 {
		opts.MinSentences = DefaultChunkOptions().MinSentences
	}
	if opts.MaxSentences < opts.MinSentences {
		opts.MaxSentences = DefaultChunkOptions().MaxSentences
	}
	if opts.ParagraphGap <= 0 {
		opts.ParagraphGap = DefaultChunkOptions().ParagraphGap
	}
	if opts.TargetParagraphs <= 0 {
		opts.TargetParagraphs = DefaultChunkOptions().TargetParagraphs
	}

	var chunks []Chunk
	var current []Sentence
	paragraphs := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		texts := make([]string, len(current))
		for i, sentence := range current {
			texts[i] = sentence.Text
		}
		// Sentences join with spaces; newlines only appear inside a
		// sentence where a break marker was spoken.
		chunks = append(chunks, Chunk{
			Text:  strings.Join(texts, " "),
			Start: current[0].Start,
			End:   current[len(current)-1].End,
		})
		current = current[:0]
		paragraphs = 0
	}

	for i, sentence := range sentences {
		current = append(current, sentence)
		isLast := i == len(sentences)-1

		paragraphEnd := sentence.ParagraphBreak
		if !isLast && sentences[i+1].Start-sentence.End > opts.ParagraphGap {
			paragraphEnd = true
		}

		closedBefore := paragraphs
		if paragraphEnd {
			paragraphs++
		}

		switch {
		case isLast:
			flush()
		case len(current) >= opts.MaxSentences:
			flush()
		case paragraphs >= opts.TargetParagraphs && len(current) >= opts.MinSentences:
			flush()
		case paragraphEnd && closedBefore >= 1:
			flush()
		}
	}
	flush()
	return chunks
}
