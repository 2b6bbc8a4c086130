package transcriptstore

import (
	"time"

	"github.com/uptrace/bun"
)

// Transcription is a finished transcription record.
type Transcription struct {
	bun.BaseModel `bun:"table:transcriptions"`

	ID            string    `bun:"id,pk" json:"id"`
	UserID        string    `bun:"user_id,notnull" json:"userId"`
	Title         string    `bun:"title,notnull" json:"title"`
	Summary       string    `bun:"summary,notnull" json:"summary"`
	AudioKey      string    `bun:"audio_key,notnull" json:"audioKey"`
	TranscriptKey string    `bun:"transcript_key,notnull" json:"transcriptKey"`
	SubtitleKey   string    `bun:"subtitle_key,notnull" json:"subtitleKey"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

// TranscriptionChunk is one retrieval unit of a transcription. StartTime
// and EndTime are whole seconds from the start of the audio.
type TranscriptionChunk struct {
	bun.BaseModel `bun:"table:transcription_chunks"`

	ID              string    `bun:"id,pk" json:"id"`
	TranscriptionID string    `bun:"transcription_id,notnull" json:"transcriptionId"`
	ChunkIndex      int       `bun:"chunk_index,notnull" json:"chunkIndex"`
	Text            string    `bun:"text,notnull" json:"text"`
	StartTime       int       `bun:"start_time,notnull" json:"startTime"`
	EndTime         int       `bun:"end_time,notnull" json:"endTime"`
	Embedding       []float32 `bun:"embedding,type:vector(1024)" json:"-"`
}

// SearchMatch is a chunk returned from similarity search together with
// its cosine similarity to the query.
type SearchMatch struct {
	TranscriptionChunk
	Similarity float64 `json:"similarity"`
}
