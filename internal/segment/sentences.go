package segment

import (
	"strings"
	"time"

	"scribe/internal/vtt"
)

// Sentence is a reconstructed sentence spanning one or more cues.
type Sentence struct {
	Text  string
	Start time.Duration
	End   time.Duration
	// ParagraphBreak is set when the speaker closed this sentence with a
	// spoken paragraph command.
	ParagraphBreak bool
}

// SentenceOptions controls where cue runs are broken into sentences.
type SentenceOptions struct {
	// GapThreshold is the inter-cue silence that ends a sentence when the
	// accumulated text already carries MinWords words.
	GapThreshold time.Duration
	// MinWords gates the gap rule so brief pauses inside short phrases do
	// not split them.
	MinWords int
	// BreakMarker is a spoken paragraph command ("next line"); a cue
	// containing it closes the sentence and records a paragraph break.
	BreakMarker string
}

// DefaultSentenceOptions mirrors the tuning the pipeline ships with.
func DefaultSentenceOptions() SentenceOptions {
	return SentenceOptions{
		GapThreshold: 500 * time.Millisecond,
		MinWords:     3,
		BreakMarker:  "next line",
	}
}

// ReconstructSentences merges consecutive cues into sentences. A sentence
// ends when the cue text ends with terminal punctuation, when the cue is
// the last one, when the silence to the next cue exceeds GapThreshold and
// enough words have accumulated, or when the cue contains BreakMarker.
// Marker cues contribute a newline so the paragraph boundary survives in
// the sentence text.
func ReconstructSentences(cues []vtt.Cue, opts SentenceOptions) []Sentence {
	if opts.GapThreshold <= 0 {
		opts.GapThreshold = DefaultSentenceOptions().GapThreshold
	}
	if opts.MinWords <= 0 {
		opts.MinWords = DefaultSentenceOptions().MinWords
	}
	marker := strings.ToLower(strings.TrimSpace(opts.BreakMarker))

	var sentences []Sentence
	var parts []string
	var start time.Duration
	wordCount := 0

	flush := func(end time.Duration, paragraphBreak bool) {
		text := strings.Join(parts, " ")
		text = strings.ReplaceAll(text, " \n", "\n")
		text = strings.ReplaceAll(text, "\n ", "\n")
		text = strings.Trim(text, " \n")
		if text != "" {
			sentences = append(sentences, Sentence{
				Text:           text,
				Start:          start,
				End:            end,
				ParagraphBreak: paragraphBreak,
			})
		}
		parts = parts[:0]
		wordCount = 0
	}

	for i, cue := range cues {
		text := strings.TrimSpace(cue.Text)
		if text == "" {
			continue
		}
		if len(parts) == 0 {
			start = cue.Start
		}

		hasMarker := marker != "" && strings.Contains(strings.ToLower(text), marker)
		if hasMarker {
			// Every occurrence becomes a newline so the paragraph
			// commands' positions survive inside the sentence.
			pieces := splitOnMarker(text, marker)
			for j, piece := range pieces {
				if piece != "" {
					parts = append(parts, piece)
				}
				if j < len(pieces)-1 {
					parts = append(parts, "\n")
				}
			}
		} else {
			parts = append(parts, text)
		}
		wordCount += len(strings.Fields(text))

		endsWithPunctuation := strings.ContainsRune(".!?", rune(lastChar(text)))
		isLast := i == len(cues)-1

		longGap := false
		if !isLast {
			gap := cues[i+1].Start - cue.End
			longGap = gap > opts.GapThreshold && wordCount >= opts.MinWords
		}

		if endsWithPunctuation || isLast || longGap || hasMarker {
			flush(cue.End, hasMarker)
		}
	}
	return sentences
}

// splitOnMarker splits text on every occurrence of marker, matched
// case-insensitively, trimming each piece.
func splitOnMarker(text, marker string) []string {
	var pieces []string
	for {
		idx := strings.Index(strings.ToLower(text), marker)
		if idx == -1 {
			pieces = append(pieces, strings.TrimSpace(text))
			return pieces
		}
		pieces = append(pieces, strings.TrimSpace(text[:idx]))
		text = text[idx+len(marker):]
	}
}

func lastChar(text string) byte {
	if text == "" {
		return 0
	}
	return text[len(text)-1]
}
