package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/queue"
	"scribe/internal/services"
	"scribe/internal/stage"
)

// Manager polls the queue and processes one job at a time.
type Manager struct {
	store   *queue.Store
	handler stage.Handler
	logger  *slog.Logger

	pollInterval      time.Duration
	retryInterval     time.Duration
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
	maxAttempts       int

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewManager builds a manager from the workflow configuration section.
func NewManager(cfg *config.Config, store *queue.Store, handler stage.Handler, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		store:             store,
		handler:           handler,
		logger:            logging.NewComponentLogger(logger, "workflow"),
		pollInterval:      secondsOr(cfg.Workflow.QueuePollInterval, 5),
		retryInterval:     secondsOr(cfg.Workflow.ErrorRetryInterval, 10),
		heartbeatInterval: secondsOr(cfg.Workflow.HeartbeatInterval, 15),
		heartbeatTimeout:  secondsOr(cfg.Workflow.HeartbeatTimeout, 120),
		maxAttempts:       maxAttemptsOr(cfg.Workflow.MaxAttempts, 3),
	}
}

func secondsOr(value, fallback int) time.Duration {
	if value <= 0 {
		value = fallback
	}
	return time.Duration(value) * time.Second
}

func maxAttemptsOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

// Start launches the poll loop and the stale-job monitor. It returns
// immediately; call Stop to shut down.
func (m *Manager) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		m.pollLoop(runCtx)
	}()
	go func() {
		defer wg.Done()
		m.monitorLoop(runCtx)
	}()
	go func() {
		wg.Wait()
		close(m.done)
	}()

	m.logger.Info("workflow manager started",
		logging.Duration("poll_interval", m.pollInterval),
		logging.Int("max_attempts", m.maxAttempts))
}

// Stop cancels processing and waits for in-flight work to finish.
func (m *Manager) Stop() {
	m.once.Do(func() {
		if m.cancel != nil {
			m.cancel()
		}
		if m.done != nil {
			<-m.done
		}
		m.logger.Info("workflow manager stopped")
	})
}

func (m *Manager) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		// Drain the queue before sleeping so a burst of jobs is not
		// throttled to one per poll interval.
		for {
			if ctx.Err() != nil {
				return
			}
			processed, err := m.processNext(ctx)
			if err != nil {
				m.logger.Error("queue poll failed", logging.Error(err))
				if !sleepCtx(ctx, m.retryInterval) {
					return
				}
				break
			}
			if !processed {
				break
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// processNext claims and runs the oldest enqueued job. It reports
// whether a job was processed.
func (m *Manager) processNext(ctx context.Context) (bool, error) {
	job, err := m.store.NextEnqueued(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	job.Status = queue.StatusProcessing
	job.Attempts++
	job.ErrorMessage = ""
	job.ProgressMessage = "Processing"
	now := time.Now().UTC()
	job.LastHeartbeat = &now
	if err := m.store.Update(ctx, job); err != nil {
		return false, err
	}

	jobCtx := services.WithJobID(ctx, job.ID)
	jobCtx = services.WithTranscriptID(jobCtx, job.TranscriptID)
	logger := logging.WithContext(jobCtx, m.logger)
	logger.Info("job claimed", logging.Int("attempt", job.Attempts))

	if err := m.runStage(jobCtx, job); err != nil {
		m.handleFailure(jobCtx, job, err, logger)
		return true, nil
	}

	job.Status = queue.StatusCompleted
	job.ProgressMessage = "Completed"
	job.LastHeartbeat = nil
	if err := m.store.Update(jobCtx, job); err != nil {
		return true, err
	}
	logger.Info("job completed")
	return true, nil
}

// runStage executes the handler while a background goroutine keeps the
// job heartbeat fresh.
func (m *Manager) runStage(ctx context.Context, job *queue.Job) error {
	if err := m.handler.Prepare(ctx, job); err != nil {
		return err
	}

	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(m.heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-heartbeatCtx.Done():
				return
			case <-ticker.C:
				if err := m.store.UpdateHeartbeat(heartbeatCtx, job.ID); err != nil {
					m.logger.Warn("heartbeat update failed",
						logging.Int64(logging.FieldJobID, job.ID),
						logging.Error(err))
				}
			}
		}
	}()

	err := m.handler.Execute(ctx, job)
	stopHeartbeat()
	wg.Wait()
	return err
}

func (m *Manager) handleFailure(ctx context.Context, job *queue.Job, stageErr error, logger *slog.Logger) {
	message := services.Message(stageErr)
	kind := services.Classify(stageErr)

	if services.Retryable(stageErr) && job.Attempts < m.maxAttempts {
		job.Status = queue.StatusEnqueued
		job.ErrorMessage = message
		job.ProgressMessage = "Retrying after failure"
		job.LastHeartbeat = nil
		if err := m.store.Update(ctx, job); err != nil {
			logger.Error("failed to requeue job", logging.Error(err))
		}
		logger.Warn("job failed, requeued",
			logging.String("failure_kind", string(kind)),
			logging.Int("attempt", job.Attempts),
			logging.String("error", message))
		return
	}

	job.SetFailed(message)
	if err := m.store.Update(ctx, job); err != nil {
		logger.Error("failed to record job failure", logging.Error(err))
	}
	logger.Error("job failed permanently",
		logging.String("failure_kind", string(kind)),
		logging.Int("attempt", job.Attempts),
		logging.String("error", message))
}

// monitorLoop requeues jobs whose owner stopped heartbeating, so a
// crashed run does not strand work in processing.
func (m *Manager) monitorLoop(ctx context.Context) {
	ticker := time.NewTicker(m.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-m.heartbeatTimeout)
			reclaimed, err := m.store.ReclaimStaleProcessing(ctx, cutoff, m.maxAttempts)
			if err != nil {
				m.logger.Warn("stale job reclaim failed", logging.Error(err))
				continue
			}
			if reclaimed > 0 {
				m.logger.Info("reclaimed stale jobs", logging.Int64("count", reclaimed))
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
