package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, found, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if found {
		t.Fatal("expected found=false for missing file")
	}
	if cfg.Speech.Model != "whisper-large-v3-turbo" {
		t.Fatalf("unexpected default speech model %q", cfg.Speech.Model)
	}
	if cfg.Embedding.Dimension != 1024 {
		t.Fatalf("unexpected default embedding dimension %d", cfg.Embedding.Dimension)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[speech]
model = "custom-model"

[segmenter]
max_sentences_per_chunk = 12
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, found, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !found {
		t.Fatal("expected found=true")
	}
	if cfg.Speech.Model != "custom-model" {
		t.Fatalf("override not applied, got %q", cfg.Speech.Model)
	}
	if cfg.Segmenter.MaxSentencesPerChunk != 12 {
		t.Fatalf("override not applied, got %d", cfg.Segmenter.MaxSentencesPerChunk)
	}
	// Untouched sections keep their defaults.
	if cfg.LLM.Model != "llama-3.2-1b-instruct" {
		t.Fatalf("default lost, got %q", cfg.LLM.Model)
	}
}

// validConfig is Default plus the service endpoints an operator has to
// fill in before the daemon will start.
func validConfig() Config {
	cfg := Default()
	cfg.Speech.BaseURL = "https://api.example.com/v1"
	cfg.Embedding.BaseURL = "https://api.example.com/v1"
	return cfg
}

func TestValidateAcceptsCompletedConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("completed config should validate: %v", err)
	}
}

func TestValidateRequiresServiceEndpoints(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing speech.base_url")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Dimension = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero embedding dimension")
	}

	cfg = validConfig()
	cfg.Segmenter.MinSentencesPerChunk = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero min sentences")
	}

	cfg = validConfig()
	cfg.Paths.DataDir = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty data dir")
	}

	cfg = validConfig()
	cfg.Workflow.HeartbeatTimeout = cfg.Workflow.HeartbeatInterval
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for heartbeat timeout <= interval")
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if _, err := WriteSample(path); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	if _, err := WriteSample(path); err == nil {
		t.Fatal("expected error for existing file")
	}
}

func TestPathHelpers(t *testing.T) {
	cfg := Default()
	cfg.Paths.DataDir = "/tmp/scribe-test"
	if got := cfg.QueueDBPath(); got != "/tmp/scribe-test/queue.db" {
		t.Fatalf("unexpected queue path %q", got)
	}
	if got := cfg.BlobDir(); got != "/tmp/scribe-test/blobs" {
		t.Fatalf("unexpected blob dir %q", got)
	}
	if got := cfg.LockFilePath(); got != "/tmp/scribe-test/scribed.lock" {
		t.Fatalf("unexpected lock path %q", got)
	}
}
