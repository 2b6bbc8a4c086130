// Package stage defines the contract the workflow manager uses to run
// pipeline work against a claimed job.
package stage

import (
	"context"

	"scribe/internal/queue"
)

// Health reports whether a handler's external dependencies are usable.
type Health struct {
	Ready  bool
	Detail string
}

// Handler processes one job. Prepare validates inputs and fails fast;
// Execute performs the work and may take minutes; HealthCheck probes the
// handler's dependencies without touching any job.
type Handler interface {
	Prepare(ctx context.Context, job *queue.Job) error
	Execute(ctx context.Context, job *queue.Job) error
	HealthCheck(ctx context.Context) Health
}
