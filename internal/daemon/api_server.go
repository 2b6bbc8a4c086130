package daemon

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"scribe/internal/blobstore"
	"scribe/internal/ids"
	"scribe/internal/logging"
	"scribe/internal/queue"
	"scribe/internal/retrieval"
	"scribe/internal/transcriptstore"
)

type apiServer struct {
	daemon *Daemon
	search *retrieval.Service
	logger *slog.Logger
}

func newAPIServer(d *Daemon, search *retrieval.Service, logger *slog.Logger) *apiServer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &apiServer{
		daemon: d,
		search: search,
		logger: logging.NewComponentLogger(logger, "api"),
	}
}

func (s *apiServer) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/queue", s.handleQueueList)
	mux.HandleFunc("POST /api/queue/retry", s.handleQueueRetry)
	mux.HandleFunc("GET /api/transcripts", s.handleTranscriptList)
	mux.HandleFunc("POST /api/transcripts", s.handleTranscriptCreate)
	mux.HandleFunc("GET /api/transcripts/{id}", s.handleTranscriptGet)
	mux.HandleFunc("GET /api/transcripts/{id}/text", s.handleTranscriptText)
	mux.HandleFunc("GET /api/transcripts/{id}/search", s.handleSearch)
	mux.HandleFunc("GET /api/transcripts/{id}/chunks/{index}/neighbors", s.handleNeighbors)
	mux.HandleFunc("GET /ws/notifications", s.handleNotifications)
	return mux
}

type statusResponse struct {
	Status string              `json:"status"`
	Queue  queue.HealthSummary `json:"queue"`
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	health, err := s.daemon.queue.Health(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, statusResponse{Status: "running", Queue: health})
}

func (s *apiServer) handleQueueList(w http.ResponseWriter, r *http.Request) {
	var statuses []queue.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, ok := queue.ParseStatus(raw)
		if !ok {
			s.writeError(w, http.StatusBadRequest, errors.New("unknown status "+raw))
			return
		}
		statuses = append(statuses, status)
	}

	jobs, err := s.daemon.queue.List(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if jobs == nil {
		jobs = []*queue.Job{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

type retryRequest struct {
	IDs []int64 `json:"ids"`
}

func (s *apiServer) handleQueueRetry(w http.ResponseWriter, r *http.Request) {
	var req retryRequest
	if r.Body != nil {
		// An empty body retries every failed job.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	retried, err := s.daemon.queue.RetryFailed(r.Context(), req.IDs...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"retried": retried})
}

func (s *apiServer) handleTranscriptList(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("user_id is required"))
		return
	}
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 20)

	transcriptions, total, err := s.daemon.transcripts.ListTranscriptions(r.Context(), userID, page, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if transcriptions == nil {
		transcriptions = []*transcriptstore.Transcription{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"transcriptions": transcriptions,
		"total":          total,
		"page":           page,
		"limit":          limit,
	})
}

type createTranscriptRequest struct {
	AudioKey string `json:"audioKey"`
	UserID   string `json:"userId"`
}

// handleTranscriptCreate enqueues a transcription job for audio that
// was already uploaded to the blob store.
func (s *apiServer) handleTranscriptCreate(w http.ResponseWriter, r *http.Request) {
	var req createTranscriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	if req.AudioKey == "" || req.UserID == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("audioKey and userId are required"))
		return
	}

	if _, err := s.daemon.blobs.Get(r.Context(), req.AudioKey); err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	transcriptID := ids.NewTranscriptID()
	job, err := s.daemon.queue.Enqueue(r.Context(), transcriptID, req.AudioKey, req.UserID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"jobId":        job.ID,
		"transcriptId": job.TranscriptID,
	})
}

func (s *apiServer) handleTranscriptGet(w http.ResponseWriter, r *http.Request) {
	transcription, err := s.daemon.transcripts.GetTranscription(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, transcription)
}

// handleTranscriptText serves the plain-text transcript artifact from
// the blob store.
func (s *apiServer) handleTranscriptText(w http.ResponseWriter, r *http.Request) {
	transcription, err := s.daemon.transcripts.GetTranscription(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	text, err := s.daemon.blobs.Get(r.Context(), transcription.TranscriptKey)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(text)
}

func (s *apiServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("q is required"))
		return
	}

	// Search context defaults to no surrounding chunks; previous/next
	// widen the window symmetrically from the match.
	window := retrieval.Window{
		EndPrevious: queryInt(r, "previous", 0),
		EndNext:     queryInt(r, "next", 0),
	}
	result, err := s.search.Search(r.Context(), r.PathValue("id"), query, window)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) handleNeighbors(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 {
		s.writeError(w, http.StatusBadRequest, errors.New("chunk index must be a non-negative integer"))
		return
	}

	// An out-of-range index is a 404, not an empty window.
	neighbors, err := s.search.Neighbors(r.Context(), r.PathValue("id"), index, windowFromQuery(r))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, neighbors)
}

func (s *apiServer) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if s.daemon.hub == nil {
		s.writeError(w, http.StatusNotFound, errors.New("notifications are disabled"))
		return
	}
	s.daemon.hub.ServeHTTP(w, r)
}

func windowFromQuery(r *http.Request) retrieval.Window {
	defaults := retrieval.DefaultWindow()
	return retrieval.Window{
		StartPrevious: queryInt(r, "start_previous", defaults.StartPrevious),
		EndPrevious:   queryInt(r, "end_previous", defaults.EndPrevious),
		StartNext:     queryInt(r, "start_next", defaults.StartNext),
		EndNext:       queryInt(r, "end_next", defaults.EndNext),
	}
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *apiServer) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, transcriptstore.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.writeError(w, http.StatusInternalServerError, err)
}
