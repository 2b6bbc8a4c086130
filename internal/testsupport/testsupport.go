// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"testing"

	"scribe/internal/config"
	"scribe/internal/queue"
)

// NewConfig returns a default configuration rooted in a per-test temp
// directory.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	base := t.TempDir()
	cfg.Paths.DataDir = base
	cfg.Paths.LogDir = base
	return &cfg
}

// MustOpenQueue opens a queue store for cfg and closes it when the test
// finishes.
func MustOpenQueue(t *testing.T, cfg *config.Config) *queue.Store {
	t.Helper()
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open queue store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
