package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"scribe/internal/blobstore"
	"scribe/internal/notifications"
	"scribe/internal/queue"
	"scribe/internal/retrieval"
	"scribe/internal/testsupport"
	"scribe/internal/transcriptstore"
)

type oneHotEmbedder struct {
	hot  int
	dims int
}

func (e oneHotEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, e.dims)
	v[e.hot] = 1
	return v, nil
}

func (e oneHotEmbedder) Dimension() int {
	return e.dims
}

func newTestAPI(t *testing.T) (*httptest.Server, *queue.Store, *transcriptstore.MemStore, *blobstore.FSStore) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenQueue(t, cfg)

	blobs, err := blobstore.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}
	transcripts := transcriptstore.NewMemStore()
	hub := notifications.NewHub(10, nil)
	t.Cleanup(hub.Close)

	d := &Daemon{cfg: cfg, queue: store, blobs: blobs, transcripts: transcripts, hub: hub}
	search := retrieval.NewService(transcripts, oneHotEmbedder{hot: 5, dims: 10})
	server := httptest.NewServer(newAPIServer(d, search, nil).routes())
	t.Cleanup(server.Close)

	return server, store, transcripts, blobs
}

func seedTranscript(t *testing.T, store *transcriptstore.MemStore, id string, chunkCount int) {
	t.Helper()
	transcription := &transcriptstore.Transcription{
		ID:        id,
		UserID:    "u1",
		Title:     "Seeded",
		Summary:   "Seeded summary",
		CreatedAt: time.Now().UTC(),
	}
	var chunks []*transcriptstore.TranscriptionChunk
	for i := 0; i < chunkCount; i++ {
		vector := make([]float32, 10)
		vector[i] = 1
		chunks = append(chunks, &transcriptstore.TranscriptionChunk{
			ID:              fmt.Sprintf("trnchk_%d", i),
			TranscriptionID: id,
			ChunkIndex:      i,
			Text:            fmt.Sprintf("chunk %d", i),
			Embedding:       vector,
		})
	}
	if err := store.InsertTranscriptionWithChunks(context.Background(), transcription, chunks); err != nil {
		t.Fatalf("seed transcript: %v", err)
	}
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && resp.StatusCode == http.StatusOK {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestStatusEndpoint(t *testing.T) {
	server, store, _, _ := newTestAPI(t)
	if _, err := store.Enqueue(context.Background(), "trs_s", "a.mp3", "u1"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	var body statusResponse
	if code := getJSON(t, server.URL+"/api/status", &body); code != http.StatusOK {
		t.Fatalf("unexpected status %d", code)
	}
	if body.Status != "running" {
		t.Fatalf("unexpected daemon status %q", body.Status)
	}
	if body.Queue.Enqueued != 1 {
		t.Fatalf("unexpected queue counts %+v", body.Queue)
	}
}

func TestQueueListAndFilter(t *testing.T) {
	server, store, _, _ := newTestAPI(t)
	ctx := context.Background()
	if _, err := store.Enqueue(ctx, "trs_1", "a.mp3", "u1"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	job, err := store.Enqueue(ctx, "trs_2", "b.mp3", "u1")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	job.SetFailed("boom")
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("update: %v", err)
	}

	var body struct {
		Jobs []*queue.Job `json:"jobs"`
	}
	if code := getJSON(t, server.URL+"/api/queue", &body); code != http.StatusOK {
		t.Fatalf("unexpected status %d", code)
	}
	if len(body.Jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(body.Jobs))
	}

	if code := getJSON(t, server.URL+"/api/queue?status=failed", &body); code != http.StatusOK {
		t.Fatalf("unexpected status %d", code)
	}
	if len(body.Jobs) != 1 || body.Jobs[0].TranscriptID != "trs_2" {
		t.Fatalf("unexpected filtered jobs %v", body.Jobs)
	}

	if code := getJSON(t, server.URL+"/api/queue?status=bogus", nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bogus status, got %d", code)
	}
}

func TestQueueRetryEndpoint(t *testing.T) {
	server, store, _, _ := newTestAPI(t)
	ctx := context.Background()
	job, err := store.Enqueue(ctx, "trs_r", "a.mp3", "u1")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	job.SetFailed("boom")
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("update: %v", err)
	}

	resp, err := http.Post(server.URL+"/api/queue/retry", "application/json", bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	var body struct {
		Retried int64 `json:"retried"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Retried != 1 {
		t.Fatalf("expected 1 retried job, got %d", body.Retried)
	}

	requeued, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if requeued.Status != queue.StatusEnqueued {
		t.Fatalf("expected requeued job, got %s", requeued.Status)
	}
}

func TestTranscriptEndpoints(t *testing.T) {
	server, _, transcripts, _ := newTestAPI(t)
	seedTranscript(t, transcripts, "trs_api", 10)

	var listBody struct {
		Total int `json:"total"`
	}
	if code := getJSON(t, server.URL+"/api/transcripts?user_id=u1", &listBody); code != http.StatusOK {
		t.Fatalf("unexpected status %d", code)
	}
	if listBody.Total != 1 {
		t.Fatalf("expected 1 transcription, got %d", listBody.Total)
	}

	if code := getJSON(t, server.URL+"/api/transcripts", nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 without user_id, got %d", code)
	}

	var single transcriptstore.Transcription
	if code := getJSON(t, server.URL+"/api/transcripts/trs_api", &single); code != http.StatusOK {
		t.Fatalf("unexpected status %d", code)
	}
	if single.Title != "Seeded" {
		t.Fatalf("unexpected title %q", single.Title)
	}

	if code := getJSON(t, server.URL+"/api/transcripts/trs_missing", nil); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
}

func TestTranscriptCreateEndpoint(t *testing.T) {
	server, store, _, blobs := newTestAPI(t)
	ctx := context.Background()

	key := blobstore.AudioKey("u1", "trs_pending")
	if err := blobs.Put(ctx, key, "audio/mpeg", []byte("audio-bytes")); err != nil {
		t.Fatalf("seed audio: %v", err)
	}

	payload := []byte(`{"audioKey":"` + key + `","userId":"u1"}`)
	resp, err := http.Post(server.URL+"/api/transcripts", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	var body struct {
		JobID        int64  `json:"jobId"`
		TranscriptID string `json:"transcriptId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	job, err := store.GetByID(ctx, body.JobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != queue.StatusEnqueued || job.AudioPath != key || job.TranscriptID != body.TranscriptID {
		t.Fatalf("unexpected enqueued job %+v", job)
	}

	missing := []byte(`{"audioKey":"transcriptions/u1/trs_nope/audio.mp3","userId":"u1"}`)
	resp, err = http.Post(server.URL+"/api/transcripts", "application/json", bytes.NewReader(missing))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for missing audio, got %d", resp.StatusCode)
	}

	resp, err = http.Post(server.URL+"/api/transcripts", "application/json", bytes.NewReader([]byte(`{}`)))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty payload, got %d", resp.StatusCode)
	}
}

func TestTranscriptTextEndpoint(t *testing.T) {
	server, _, transcripts, blobs := newTestAPI(t)
	ctx := context.Background()

	key := blobstore.TranscriptKey("u1", "trs_text")
	if err := blobs.Put(ctx, key, "text/plain", []byte("the full transcript")); err != nil {
		t.Fatalf("seed transcript blob: %v", err)
	}
	transcription := &transcriptstore.Transcription{
		ID:            "trs_text",
		UserID:        "u1",
		Title:         "Text Test",
		TranscriptKey: key,
		CreatedAt:     time.Now().UTC(),
	}
	if err := transcripts.InsertTranscriptionWithChunks(ctx, transcription, nil); err != nil {
		t.Fatalf("seed transcription: %v", err)
	}

	resp, err := http.Get(server.URL + "/api/transcripts/trs_text/text")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	text, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(text) != "the full transcript" {
		t.Fatalf("unexpected body %q", text)
	}

	if code := getJSON(t, server.URL+"/api/transcripts/trs_missing/text", nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown transcript, got %d", code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	server, _, transcripts, _ := newTestAPI(t)
	seedTranscript(t, transcripts, "trs_api", 10)

	var result retrieval.SearchResult
	url := server.URL + "/api/transcripts/trs_api/search?q=storage"
	if code := getJSON(t, url, &result); code != http.StatusOK {
		t.Fatalf("unexpected status %d", code)
	}
	if result.Match == nil || result.Match.ChunkIndex != 5 {
		t.Fatalf("expected match at chunk 5, got %+v", result.Match)
	}
	if result.Chunk == nil || result.Chunk.ChunkIndex != 5 {
		t.Fatalf("expected anchor chunk in payload, got %+v", result.Chunk)
	}
	if len(result.Previous) != 0 || len(result.Next) != 0 {
		t.Fatalf("expected no context by default, got %d/%d", len(result.Previous), len(result.Next))
	}

	url = server.URL + "/api/transcripts/trs_api/search?q=storage&previous=2&next=1"
	if code := getJSON(t, url, &result); code != http.StatusOK {
		t.Fatalf("unexpected status %d", code)
	}
	if len(result.Previous) != 2 || result.Previous[0].ChunkIndex != 3 {
		t.Fatalf("unexpected previous context %v", result.Previous)
	}
	if len(result.Next) != 1 || result.Next[0].ChunkIndex != 6 {
		t.Fatalf("unexpected next context %v", result.Next)
	}

	if code := getJSON(t, server.URL+"/api/transcripts/trs_api/search", nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 without query, got %d", code)
	}
}

func TestNeighborsEndpoint(t *testing.T) {
	server, _, transcripts, _ := newTestAPI(t)
	seedTranscript(t, transcripts, "trs_api", 10)

	var ctxBody retrieval.Context
	url := server.URL + "/api/transcripts/trs_api/chunks/5/neighbors"
	if code := getJSON(t, url, &ctxBody); code != http.StatusOK {
		t.Fatalf("unexpected status %d", code)
	}
	if ctxBody.Chunk == nil || ctxBody.Chunk.ChunkIndex != 5 {
		t.Fatalf("expected anchor chunk in payload, got %+v", ctxBody.Chunk)
	}
	if len(ctxBody.Previous) != 3 || ctxBody.Previous[0].ChunkIndex != 2 {
		t.Fatalf("unexpected previous window %v", ctxBody.Previous)
	}
	if ctxBody.NextID != "trnchk_6" {
		t.Fatalf("unexpected next id %q", ctxBody.NextID)
	}

	url = server.URL + "/api/transcripts/trs_api/chunks/5/neighbors?start_previous=1&end_previous=2&start_next=0&end_next=1"
	if code := getJSON(t, url, &ctxBody); code != http.StatusOK {
		t.Fatalf("unexpected status %d", code)
	}
	if len(ctxBody.Previous) != 1 || ctxBody.Previous[0].ChunkIndex != 3 {
		t.Fatalf("unexpected windowed previous %v", ctxBody.Previous)
	}
	if len(ctxBody.Next) != 1 || ctxBody.Next[0].ChunkIndex != 6 {
		t.Fatalf("unexpected windowed next %v", ctxBody.Next)
	}

	if code := getJSON(t, server.URL+"/api/transcripts/trs_api/chunks/99/neighbors", nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing anchor, got %d", code)
	}
	if code := getJSON(t, server.URL+"/api/transcripts/trs_api/chunks/notanumber/neighbors", nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric index, got %d", code)
	}
}
