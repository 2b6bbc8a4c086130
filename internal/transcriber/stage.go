package transcriber

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"scribe/internal/blobstore"
	"scribe/internal/config"
	"scribe/internal/ids"
	"scribe/internal/logging"
	"scribe/internal/notifications"
	"scribe/internal/queue"
	"scribe/internal/segment"
	"scribe/internal/services"
	"scribe/internal/services/embed"
	"scribe/internal/services/llm"
	"scribe/internal/services/speech"
	"scribe/internal/stage"
	"scribe/internal/transcriptstore"
	"scribe/internal/vtt"
)

// Generator produces the summary and title for a transcript. Both are
// best effort; the stage substitutes defaults when generation fails.
// Title consumes the generated summary, not the raw transcript.
type Generator interface {
	Summarize(ctx context.Context, transcript string) (string, error)
	Title(ctx context.Context, summary string) (string, error)
}

// Stage runs the transcription pipeline for one claimed job.
type Stage struct {
	blobs       blobstore.Store
	speech      speech.Transcriber
	generator   Generator
	embedder    embed.Embedder
	transcripts transcriptstore.Store
	notes       notifications.Publisher
	logger      *slog.Logger

	sentenceOpts segment.SentenceOptions
	chunkOpts    segment.ChunkOptions
	parallelism  int
}

// New wires a transcriber stage from its capabilities and configuration.
func New(
	cfg *config.Config,
	blobs blobstore.Store,
	stt speech.Transcriber,
	generator Generator,
	embedder embed.Embedder,
	transcripts transcriptstore.Store,
	notes notifications.Publisher,
	logger *slog.Logger,
) *Stage {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notes == nil {
		notes = notifications.Noop{}
	}
	parallelism := cfg.Embedding.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}
	return &Stage{
		blobs:       blobs,
		speech:      stt,
		generator:   generator,
		embedder:    embedder,
		transcripts: transcripts,
		notes:       notes,
		logger:      logging.NewComponentLogger(logger, "transcriber"),
		sentenceOpts: segment.SentenceOptions{
			GapThreshold: time.Duration(cfg.Segmenter.SentenceGapMS) * time.Millisecond,
			MinWords:     cfg.Segmenter.MinWordsPerSentence,
			BreakMarker:  cfg.Segmenter.ParagraphBreakMarker,
		},
		chunkOpts: segment.ChunkOptions{
			MinSentences:     cfg.Segmenter.MinSentencesPerChunk,
			MaxSentences:     cfg.Segmenter.MaxSentencesPerChunk,
			ParagraphGap:     time.Duration(cfg.Segmenter.ParagraphGapMS) * time.Millisecond,
			TargetParagraphs: cfg.Segmenter.TargetParagraphs,
		},
		parallelism: parallelism,
	}
}

// Prepare validates the claimed job before any external work starts.
func (s *Stage) Prepare(ctx context.Context, job *queue.Job) error {
	if job == nil {
		return services.Wrap(services.ErrValidation, "transcriber", "prepare", "job is nil", nil)
	}
	if strings.TrimSpace(job.TranscriptID) == "" {
		return services.Wrap(services.ErrValidation, "transcriber", "prepare", "job has no transcript id", nil)
	}
	if strings.TrimSpace(job.AudioPath) == "" {
		return services.Wrap(services.ErrValidation, "transcriber", "prepare", "job has no audio path", nil)
	}
	if strings.TrimSpace(job.UserID) == "" {
		return services.Wrap(services.ErrValidation, "transcriber", "prepare", "job has no user id", nil)
	}
	return nil
}

// Execute runs the pipeline. On failure the job owner is notified and a
// classified error is returned for the workflow manager to record.
func (s *Stage) Execute(ctx context.Context, job *queue.Job) error {
	ctx = services.WithTranscriptID(ctx, job.TranscriptID)
	logger := logging.WithContext(ctx, s.logger)

	s.notes.Publish(ctx, job.UserID, notifications.JobStarted(job.TranscriptID))

	err := s.run(ctx, job, logger)
	if err != nil {
		s.notes.Publish(ctx, job.UserID, notifications.JobFailed(job.TranscriptID, services.Message(err)))
		return err
	}
	return nil
}

func (s *Stage) run(ctx context.Context, job *queue.Job, logger *slog.Logger) error {
	audio, err := s.blobs.Get(ctx, job.AudioPath)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return services.Wrap(services.ErrAudioNotFound, "transcriber", "fetch_audio",
				fmt.Sprintf("audio object %s does not exist", job.AudioPath), err)
		}
		return services.Wrap(services.ErrAudioNotFound, "transcriber", "fetch_audio",
			"failed to fetch audio", err)
	}
	logger.Info("audio fetched", logging.Int("bytes", len(audio)))

	result, err := s.speech.Transcribe(ctx, audio, "audio.mp3")
	if err != nil {
		return services.Wrap(services.ErrTranscription, "transcriber", "speech_to_text",
			"speech-to-text failed", err)
	}
	logger.Info("transcription complete",
		logging.Int("text_chars", len(result.Text)),
		logging.Bool("has_subtitles", result.VTT != ""))

	title, summary := s.generateMetadata(ctx, result.Text, logger)

	if err := s.writeArtifacts(ctx, job, result); err != nil {
		return err
	}

	chunks := s.buildChunks(result, logger)

	records, err := s.embedChunks(ctx, job.TranscriptID, chunks)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "transcriber", "embed_chunks",
			"chunk embedding failed", err)
	}

	transcription := &transcriptstore.Transcription{
		ID:            job.TranscriptID,
		UserID:        job.UserID,
		Title:         title,
		Summary:       summary,
		AudioKey:      job.AudioPath,
		TranscriptKey: blobstore.TranscriptKey(job.UserID, job.TranscriptID),
		SubtitleKey:   blobstore.SubtitleKey(job.UserID, job.TranscriptID),
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.transcripts.InsertTranscriptionWithChunks(ctx, transcription, records); err != nil {
		return services.Wrap(services.ErrPersistence, "transcriber", "persist",
			"failed to persist transcription", err)
	}
	logger.Info("transcription persisted", logging.Int("chunks", len(records)))

	s.notes.Publish(ctx, job.UserID, notifications.JobCompleted(job.TranscriptID, title, summary))
	return nil
}

// generateMetadata asks the language model for a summary of the full
// transcript and then a title derived from that summary, falling back
// to defaults so the pipeline never blocks on the model.
func (s *Stage) generateMetadata(ctx context.Context, transcript string, logger *slog.Logger) (string, string) {
	title := llm.DefaultTitle
	summary := llm.DefaultSummary
	if s.generator == nil {
		return title, summary
	}

	generated, err := s.generator.Summarize(ctx, transcript)
	if err != nil || strings.TrimSpace(generated) == "" {
		logger.Warn("summary generation failed, using default", logging.Error(err))
	} else {
		summary = generated
	}

	// Without a usable summary the title falls back to the transcript.
	titleInput := summary
	if summary == llm.DefaultSummary {
		titleInput = transcript
	}
	titled, err := s.generator.Title(ctx, titleInput)
	if err != nil || strings.TrimSpace(titled) == "" {
		logger.Warn("title generation failed, using default", logging.Error(err))
	} else {
		title = titled
	}
	return title, summary
}

// writeArtifacts stores the transcript text and subtitle document
// side by side with the audio. Both uploads run concurrently and any
// failure is fatal for the job.
func (s *Stage) writeArtifacts(ctx context.Context, job *queue.Job, result *speech.Result) error {
	type write struct {
		key         string
		contentType string
		data        []byte
	}
	writes := []write{
		{key: blobstore.TranscriptKey(job.UserID, job.TranscriptID), contentType: "text/plain", data: []byte(result.Text)},
		{key: blobstore.SubtitleKey(job.UserID, job.TranscriptID), contentType: "text/vtt", data: []byte(result.VTT)},
	}

	var wg sync.WaitGroup
	errs := make([]error, len(writes))
	for i, w := range writes {
		wg.Add(1)
		go func(i int, w write) {
			defer wg.Done()
			errs[i] = s.blobs.Put(ctx, w.key, w.contentType, w.data)
		}(i, w)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return services.Wrap(services.ErrStorageWrite, "transcriber", "write_artifacts",
				fmt.Sprintf("failed to store %s", writes[i].key), err)
		}
	}
	return nil
}

// buildChunks segments the subtitle document into chunks. When the
// document is missing, unparseable, or yields nothing, the whole
// transcript becomes a single untimed chunk so the job still succeeds.
func (s *Stage) buildChunks(result *speech.Result, logger *slog.Logger) []segment.Chunk {
	fallback := []segment.Chunk{{Text: result.Text, Start: 0, End: 0}}

	if result.VTT == "" || !vtt.HasHeader(result.VTT) {
		logger.Warn("no usable subtitle document, storing transcript as a single chunk")
		return fallback
	}

	cues := vtt.Parse(result.VTT, logger)
	if len(cues) == 0 {
		logger.Warn("subtitle document produced no cues, storing transcript as a single chunk")
		return fallback
	}

	sentences := segment.ReconstructSentences(cues, s.sentenceOpts)
	chunks := segment.ChunkSentences(sentences, s.chunkOpts)
	if len(chunks) == 0 {
		return fallback
	}
	logger.Info("transcript segmented",
		logging.Int("cues", len(cues)),
		logging.Int("sentences", len(sentences)),
		logging.Int("chunks", len(chunks)))
	return chunks
}

// embedChunks computes embeddings with bounded parallelism and returns
// chunk records ordered by index. The first embedding error aborts the
// whole batch.
func (s *Stage) embedChunks(ctx context.Context, transcriptID string, chunks []segment.Chunk) ([]*transcriptstore.TranscriptionChunk, error) {
	records := make([]*transcriptstore.TranscriptionChunk, len(chunks))
	semaphore := make(chan struct{}, s.parallelism)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, chunk segment.Chunk) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			mu.Lock()
			failed := firstErr != nil
			mu.Unlock()
			if failed {
				return
			}

			vector, err := s.embedder.Embed(ctx, chunk.Text)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("chunk %d: %w", i, err)
				}
				mu.Unlock()
				return
			}
			records[i] = &transcriptstore.TranscriptionChunk{
				ID:              ids.NewChunkID(),
				TranscriptionID: transcriptID,
				ChunkIndex:      i,
				Text:            chunk.Text,
				StartTime:       int(chunk.Start / time.Second),
				EndTime:         int(chunk.End / time.Second),
				Embedding:       vector,
			}
		}(i, chunk)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return records, nil
}

// HealthCheck verifies the stage has its required capabilities wired.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	var missing []string
	if s.blobs == nil {
		missing = append(missing, "blob store")
	}
	if s.speech == nil {
		missing = append(missing, "speech client")
	}
	if s.embedder == nil {
		missing = append(missing, "embedder")
	}
	if s.transcripts == nil {
		missing = append(missing, "transcript store")
	}
	if len(missing) > 0 {
		return stage.Health{Ready: false, Detail: "missing: " + strings.Join(missing, ", ")}
	}
	return stage.Health{Ready: true, Detail: "ok"}
}
