package blobstore

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a key has no stored object.
var ErrNotFound = errors.New("blob not found")

// Store is the object storage surface the pipeline depends on. Keys are
// slash-separated paths. The content type is advisory; backends that
// have nowhere to record it may ignore it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key, contentType string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// AudioKey locates the uploaded audio for a transcription.
func AudioKey(userID, transcriptID string) string {
	return fmt.Sprintf("transcriptions/%s/%s/audio.mp3", userID, transcriptID)
}

// TranscriptKey locates the plain-text transcript artifact.
func TranscriptKey(userID, transcriptID string) string {
	return fmt.Sprintf("transcriptions/%s/%s/transcript.txt", userID, transcriptID)
}

// SubtitleKey locates the WebVTT subtitle artifact.
func SubtitleKey(userID, transcriptID string) string {
	return fmt.Sprintf("transcriptions/%s/%s/subtitles.vtt", userID, transcriptID)
}
