package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TypeQueueStatus marks notes emitted by the transcription pipeline.
const TypeQueueStatus = "queueStatus"

// Note is a single user-facing notification.
type Note struct {
	ID           string `json:"id"`
	Timestamp    int64  `json:"timestamp"`
	Type         string `json:"type"`
	Title        string `json:"title"`
	Content      string `json:"content"`
	RedirectPath string `json:"redirectPath"`
}

// Publisher delivers notes to a user's connected clients. Publish never
// blocks job processing; delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, userID string, note Note)
}

func newNote(title, content, transcriptID string) Note {
	return Note{
		ID:           uuid.NewString(),
		Timestamp:    time.Now().UnixMilli(),
		Type:         TypeQueueStatus,
		Title:        title,
		Content:      content,
		RedirectPath: "/dashboard/transcripts/" + transcriptID,
	}
}

// JobStarted announces that processing of a transcription began.
func JobStarted(transcriptID string) Note {
	return newNote(
		"Transcription started",
		fmt.Sprintf("Transcription %s is being processed", transcriptID),
		transcriptID,
	)
}

// JobCompleted announces a finished transcription with its generated
// title and summary.
func JobCompleted(transcriptID, title, summary string) Note {
	return newNote(
		"Transcription finished",
		fmt.Sprintf("%q: %s", title, summary),
		transcriptID,
	)
}

// JobFailed announces a failed transcription with the failure reason.
func JobFailed(transcriptID, reason string) Note {
	return newNote(
		"Transcription failed",
		fmt.Sprintf("Transcription %s failed: %s", transcriptID, reason),
		transcriptID,
	)
}

// Noop discards all notes. It stands in when notifications are disabled.
type Noop struct{}

func (Noop) Publish(ctx context.Context, userID string, note Note) {}
