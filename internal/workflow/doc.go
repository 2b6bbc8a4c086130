// Package workflow drives the job queue: it claims enqueued jobs, runs
// the transcriber stage against them with heartbeats, and records the
// outcome.
package workflow
