package transcriber

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"scribe/internal/blobstore"
	"scribe/internal/config"
	"scribe/internal/notifications"
	"scribe/internal/queue"
	"scribe/internal/services"
	"scribe/internal/services/speech"
	"scribe/internal/transcriptstore"
)

const testVTT = `WEBVTT

1
00:00.000 --> 00:02.000
Hello and welcome to the show.

2
00:02.000 --> 00:04.000
Today we cover three topics.

3
00:08.000 --> 00:10.000
First up is storage.

4
00:10.000 --> 00:12.000
Then networking and then wrap-up.
`

type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut map[string]error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string][]byte), failPut: make(map[string]error)}
}

func (f *fakeBlobs) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", blobstore.ErrNotFound, key)
	}
	return data, nil
}

func (f *fakeBlobs) Put(ctx context.Context, key, contentType string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failPut[key]; ok {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeBlobs) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

type fakeSpeech struct {
	result *speech.Result
	err    error
}

func (f *fakeSpeech) Transcribe(ctx context.Context, audio []byte, filename string) (*speech.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeGenerator struct {
	mu         sync.Mutex
	title      string
	summary    string
	titleErr   error
	summaryErr error
	titleInput string
}

func (f *fakeGenerator) Title(ctx context.Context, summary string) (string, error) {
	f.mu.Lock()
	f.titleInput = summary
	f.mu.Unlock()
	return f.title, f.titleErr
}

func (f *fakeGenerator) Summarize(ctx context.Context, transcript string) (string, error) {
	return f.summary, f.summaryErr
}

type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) Dimension() int {
	return 3
}

type captureNotes struct {
	mu    sync.Mutex
	notes []notifications.Note
}

func (c *captureNotes) Publish(ctx context.Context, userID string, note notifications.Note) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = append(c.notes, note)
}

func (c *captureNotes) titles() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.notes))
	for i, note := range c.notes {
		out[i] = note.Title
	}
	return out
}

type fixture struct {
	stage   *Stage
	blobs   *fakeBlobs
	speech  *fakeSpeech
	gen     *fakeGenerator
	store   *transcriptstore.MemStore
	notes   *captureNotes
	embed   *fakeEmbedder
	job     *queue.Job
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := config.Default()
	blobs := newFakeBlobs()
	stt := &fakeSpeech{result: &speech.Result{Text: "full transcript text", VTT: testVTT}}
	gen := &fakeGenerator{title: "Generated Title", summary: "Generated summary."}
	embedder := &fakeEmbedder{}
	store := transcriptstore.NewMemStore()
	notes := &captureNotes{}

	job := &queue.Job{
		ID:           1,
		TranscriptID: "trs_test1",
		AudioPath:    blobstore.AudioKey("u1", "trs_test1"),
		UserID:       "u1",
		Status:       queue.StatusProcessing,
	}
	if err := blobs.Put(context.Background(), job.AudioPath, "audio/mpeg", []byte("audio-bytes")); err != nil {
		t.Fatalf("seed audio: %v", err)
	}

	return &fixture{
		stage:  New(&cfg, blobs, stt, gen, embedder, store, notes, nil),
		blobs:  blobs,
		speech: stt,
		gen:    gen,
		store:  store,
		notes:  notes,
		embed:  embedder,
		job:    job,
	}
}

func TestExecuteHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.stage.Execute(ctx, f.job); err != nil {
		t.Fatalf("execute: %v", err)
	}

	transcription, err := f.store.GetTranscription(ctx, "trs_test1")
	if err != nil {
		t.Fatalf("get transcription: %v", err)
	}
	if transcription.Title != "Generated Title" {
		t.Fatalf("unexpected title %q", transcription.Title)
	}
	if transcription.Summary != "Generated summary." {
		t.Fatalf("unexpected summary %q", transcription.Summary)
	}

	chunks, err := f.store.ListChunks(ctx, "trs_test1")
	if err != nil {
		t.Fatalf("list chunks: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected persisted chunks")
	}
	for i, chunk := range chunks {
		if chunk.ChunkIndex != i {
			t.Fatalf("expected contiguous chunk indices, got %d at %d", chunk.ChunkIndex, i)
		}
		if !strings.HasPrefix(chunk.ID, "trnchk_") {
			t.Fatalf("unexpected chunk id %q", chunk.ID)
		}
		if len(chunk.Embedding) != 3 {
			t.Fatalf("expected embedding on chunk %d", i)
		}
	}

	if _, err := f.blobs.Get(ctx, blobstore.TranscriptKey("u1", "trs_test1")); err != nil {
		t.Fatalf("transcript artifact missing: %v", err)
	}
	if _, err := f.blobs.Get(ctx, blobstore.SubtitleKey("u1", "trs_test1")); err != nil {
		t.Fatalf("subtitle artifact missing: %v", err)
	}

	titles := f.notes.titles()
	if len(titles) != 2 || titles[0] != "Transcription started" || titles[1] != "Transcription finished" {
		t.Fatalf("unexpected notifications %v", titles)
	}
}

func TestExecuteTitleDerivedFromSummary(t *testing.T) {
	f := newFixture(t)

	if err := f.stage.Execute(context.Background(), f.job); err != nil {
		t.Fatalf("execute: %v", err)
	}

	f.gen.mu.Lock()
	titleInput := f.gen.titleInput
	f.gen.mu.Unlock()
	if titleInput != "Generated summary." {
		t.Fatalf("expected title generated from summary, got input %q", titleInput)
	}
}

func TestExecuteCompletedNoteCarriesSummary(t *testing.T) {
	f := newFixture(t)

	if err := f.stage.Execute(context.Background(), f.job); err != nil {
		t.Fatalf("execute: %v", err)
	}

	f.notes.mu.Lock()
	defer f.notes.mu.Unlock()
	if len(f.notes.notes) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(f.notes.notes))
	}
	completed := f.notes.notes[1]
	if !strings.Contains(completed.Content, "Generated Title") || !strings.Contains(completed.Content, "Generated summary.") {
		t.Fatalf("expected title and summary in content, got %q", completed.Content)
	}
}

func TestExecuteMissingAudio(t *testing.T) {
	f := newFixture(t)
	_ = f.blobs.Delete(context.Background(), f.job.AudioPath)

	err := f.stage.Execute(context.Background(), f.job)
	if !errors.Is(err, services.ErrAudioNotFound) {
		t.Fatalf("expected ErrAudioNotFound, got %v", err)
	}

	titles := f.notes.titles()
	if len(titles) != 2 || titles[1] != "Transcription failed" {
		t.Fatalf("expected failure notification, got %v", titles)
	}
	if _, err := f.store.GetTranscription(context.Background(), "trs_test1"); err == nil {
		t.Fatal("expected nothing persisted")
	}
}

func TestExecuteTranscriptionFailure(t *testing.T) {
	f := newFixture(t)
	f.speech.result = nil
	f.speech.err = errors.New("model overloaded")

	err := f.stage.Execute(context.Background(), f.job)
	if !errors.Is(err, services.ErrTranscription) {
		t.Fatalf("expected ErrTranscription, got %v", err)
	}
}

func TestExecuteStorageWriteFailure(t *testing.T) {
	f := newFixture(t)
	f.blobs.failPut[blobstore.TranscriptKey("u1", "trs_test1")] = errors.New("disk full")

	err := f.stage.Execute(context.Background(), f.job)
	if !errors.Is(err, services.ErrStorageWrite) {
		t.Fatalf("expected ErrStorageWrite, got %v", err)
	}
	if _, err := f.store.GetTranscription(context.Background(), "trs_test1"); err == nil {
		t.Fatal("expected nothing persisted after storage failure")
	}
}

func TestExecuteEmbeddingFailureNothingPersisted(t *testing.T) {
	f := newFixture(t)
	f.embed.err = errors.New("embedding service down")

	err := f.stage.Execute(context.Background(), f.job)
	if !errors.Is(err, services.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if _, err := f.store.GetTranscription(context.Background(), "trs_test1"); err == nil {
		t.Fatal("expected no partial persistence")
	}
}

func TestExecuteGeneratorFailureUsesDefaults(t *testing.T) {
	f := newFixture(t)
	gen := &fakeGenerator{titleErr: errors.New("llm down"), summaryErr: errors.New("llm down")}
	f.stage.generator = gen

	if err := f.stage.Execute(context.Background(), f.job); err != nil {
		t.Fatalf("execute: %v", err)
	}
	transcription, err := f.store.GetTranscription(context.Background(), "trs_test1")
	if err != nil {
		t.Fatalf("get transcription: %v", err)
	}
	if transcription.Title != "Untitled Transcription" {
		t.Fatalf("expected default title, got %q", transcription.Title)
	}
	if transcription.Summary != "No summary available" {
		t.Fatalf("expected default summary, got %q", transcription.Summary)
	}
}

func TestExecuteFallbackSingleChunkWithoutSubtitles(t *testing.T) {
	f := newFixture(t)
	f.speech.result = &speech.Result{Text: "plain text without timing"}

	if err := f.stage.Execute(context.Background(), f.job); err != nil {
		t.Fatalf("execute: %v", err)
	}
	chunks, err := f.store.ListChunks(context.Background(), "trs_test1")
	if err != nil {
		t.Fatalf("list chunks: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected single fallback chunk, got %d", len(chunks))
	}
	if chunks[0].Text != "plain text without timing" {
		t.Fatalf("unexpected chunk text %q", chunks[0].Text)
	}
	if chunks[0].StartTime != 0 || chunks[0].EndTime != 0 {
		t.Fatalf("expected zero timing, got %d-%d", chunks[0].StartTime, chunks[0].EndTime)
	}
}

func TestExecuteFallbackOnHeaderlessSubtitles(t *testing.T) {
	f := newFixture(t)
	f.speech.result = &speech.Result{
		Text: "transcript text",
		VTT:  "1\n00:00.000 --> 00:02.000\nno header here\n",
	}

	if err := f.stage.Execute(context.Background(), f.job); err != nil {
		t.Fatalf("execute: %v", err)
	}
	chunks, err := f.store.ListChunks(context.Background(), "trs_test1")
	if err != nil {
		t.Fatalf("list chunks: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Text != "transcript text" {
		t.Fatalf("expected fallback chunk, got %v", chunks)
	}
}

func TestExecuteIsIdempotentOnRedelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.stage.Execute(ctx, f.job); err != nil {
		t.Fatalf("first execute: %v", err)
	}
	if err := f.stage.Execute(ctx, f.job); err != nil {
		t.Fatalf("second execute: %v", err)
	}

	chunks, err := f.store.ListChunks(ctx, "trs_test1")
	if err != nil {
		t.Fatalf("list chunks: %v", err)
	}
	seen := make(map[int]bool)
	for _, chunk := range chunks {
		if seen[chunk.ChunkIndex] {
			t.Fatalf("duplicate chunk index %d after redelivery", chunk.ChunkIndex)
		}
		seen[chunk.ChunkIndex] = true
	}
}

func TestPrepareValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.stage.Prepare(ctx, f.job); err != nil {
		t.Fatalf("prepare valid job: %v", err)
	}
	invalid := *f.job
	invalid.TranscriptID = ""
	if err := f.stage.Prepare(ctx, &invalid); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t)
	health := f.stage.HealthCheck(context.Background())
	if !health.Ready {
		t.Fatalf("expected ready, got %+v", health)
	}

	f.stage.embedder = nil
	health = f.stage.HealthCheck(context.Background())
	if health.Ready {
		t.Fatal("expected not ready without embedder")
	}
	if !strings.Contains(health.Detail, "embedder") {
		t.Fatalf("expected detail to name embedder, got %q", health.Detail)
	}
}
