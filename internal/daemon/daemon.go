package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"scribe/internal/blobstore"
	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/notifications"
	"scribe/internal/queue"
	"scribe/internal/retrieval"
	"scribe/internal/services/embed"
	"scribe/internal/services/llm"
	"scribe/internal/services/speech"
	"scribe/internal/transcriber"
	"scribe/internal/transcriptstore"
	"scribe/internal/workflow"
)

// Daemon owns every long-lived component of a running instance.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	lock        *flock.Flock
	queue       *queue.Store
	blobs       blobstore.Store
	transcripts transcriptstore.Store
	hub         *notifications.Hub
	manager     *workflow.Manager
	api         *http.Server
}

// New builds a daemon from configuration. It acquires the instance
// lock, opens stores, and wires the pipeline; Run starts it.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	lock := flock.New(cfg.LockFilePath())
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another instance already holds %s", cfg.LockFilePath())
	}

	d := &Daemon{cfg: cfg, logger: logging.NewComponentLogger(logger, "daemon"), lock: lock}

	cleanup := func() {
		d.closeStores()
		_ = lock.Unlock()
	}

	d.queue, err = queue.Open(cfg)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("open queue: %w", err)
	}

	d.blobs, err = blobstore.NewFSStore(cfg.BlobDir())
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	d.transcripts, err = openTranscriptStore(ctx, cfg)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("open transcript store: %w", err)
	}

	stt := speech.NewClient(cfg.Speech)
	generator, err := llm.NewClient(cfg.LLM)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("create llm client: %w", err)
	}
	embedder, err := embed.NewClient(cfg.Embedding)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("create embedding client: %w", err)
	}

	var publisher notifications.Publisher = notifications.Noop{}
	if cfg.Notifications.Enabled {
		d.hub = notifications.NewHub(cfg.Notifications.ReplaySize, logger)
		publisher = d.hub
	}

	pipeline := transcriber.New(cfg, d.blobs, stt, generator, embedder, d.transcripts, publisher, logger)
	d.manager = workflow.NewManager(cfg, d.queue, pipeline, logger)

	searcher := retrieval.NewService(d.transcripts, embedder)
	d.api = &http.Server{
		Addr:              cfg.Paths.APIBind,
		Handler:           newAPIServer(d, searcher, logger).routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return d, nil
}

// openTranscriptStore picks Postgres when a DSN is configured and the
// in-memory store otherwise.
func openTranscriptStore(ctx context.Context, cfg *config.Config) (transcriptstore.Store, error) {
	dsn := strings.TrimSpace(cfg.Database.DSN)
	if dsn == "" || dsn == "memory" {
		return transcriptstore.NewMemStore(), nil
	}
	return transcriptstore.NewPGStore(ctx, cfg.Database)
}

// Run starts the workflow manager and the API server and blocks until
// ctx is cancelled or the server fails.
func (d *Daemon) Run(ctx context.Context) error {
	d.manager.Start(ctx)

	serverErr := make(chan error, 1)
	go func() {
		d.logger.Info("api server listening", logging.String("bind", d.api.Addr))
		if err := d.api.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		d.logger.Info("shutdown requested")
	case err := <-serverErr:
		d.logger.Error("api server failed", logging.Error(err))
		d.shutdown()
		return err
	}

	d.shutdown()
	return nil
}

func (d *Daemon) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = d.api.Shutdown(shutdownCtx)

	d.manager.Stop()
	if d.hub != nil {
		d.hub.Close()
	}
	d.closeStores()
	_ = d.lock.Unlock()
	d.logger.Info("daemon stopped")
}

func (d *Daemon) closeStores() {
	if d.queue != nil {
		_ = d.queue.Close()
	}
	if d.transcripts != nil {
		_ = d.transcripts.Close()
	}
}
