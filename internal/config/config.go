package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	APIBind string `toml:"api_bind"`
}

// Database contains configuration for the transcript/chunk store.
// When DSN is empty the daemon falls back to the in-memory store.
type Database struct {
	DSN      string `toml:"dsn"`
	Password string `toml:"password"`
	Debug    bool   `toml:"debug"`
}

// Speech contains configuration for the speech-to-text service.
type Speech struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// LLM contains configuration for summary and title generation.
type LLM struct {
	BaseURL          string `toml:"base_url"`
	APIKey           string `toml:"api_key"`
	Model            string `toml:"model"`
	SummaryMaxTokens int    `toml:"summary_max_tokens"`
	TitleMaxTokens   int    `toml:"title_max_tokens"`
}

// Embedding contains configuration for the embedding service.
type Embedding struct {
	BaseURL     string `toml:"base_url"`
	APIKey      string `toml:"api_key"`
	Model       string `toml:"model"`
	Dimension   int    `toml:"dimension"`
	Parallelism int    `toml:"parallelism"`
}

// Segmenter contains thresholds for sentence and chunk segmentation.
// Durations are expressed in milliseconds to match cue timing fidelity.
type Segmenter struct {
	SentenceGapMS        int    `toml:"sentence_gap_ms"`
	MinWordsPerSentence  int    `toml:"min_words_per_sentence"`
	ParagraphBreakMarker string `toml:"paragraph_break_marker"`
	MinSentencesPerChunk int    `toml:"min_sentences_per_chunk"`
	MaxSentencesPerChunk int    `toml:"max_sentences_per_chunk"`
	ParagraphGapMS       int    `toml:"paragraph_gap_ms"`
	TargetParagraphs     int    `toml:"target_paragraphs"`
}

// Workflow contains configuration for daemon timing and retry policy.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
	MaxAttempts        int `toml:"max_attempts"`
}

// Notifications contains configuration for the websocket notification hub.
type Notifications struct {
	Enabled    bool `toml:"enabled"`
	ReplaySize int  `toml:"replay_size"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config is the root configuration object.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Database      Database      `toml:"database"`
	Speech        Speech        `toml:"speech"`
	LLM           LLM           `toml:"llm"`
	Embedding     Embedding     `toml:"embedding"`
	Segmenter     Segmenter     `toml:"segmenter"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the standard location of the config file.
func DefaultConfigPath() string {
	return "~/.config/scribe/config.toml"
}

// Load reads configuration from path, merging file values over defaults.
// A missing file is not an error; defaults are returned with found=false.
func Load(path string) (*Config, bool, error) {
	resolved, err := ExpandPath(path)
	if err != nil {
		return nil, false, err
	}

	cfg := Default()
	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg.normalize()
			return &cfg, false, nil
		}
		return nil, false, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, true, fmt.Errorf("parse config %s: %w", resolved, err)
	}
	cfg.normalize()
	return &cfg, true, nil
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) (string, error) {
	resolved, err := ExpandPath(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(resolved); err == nil {
		return "", fmt.Errorf("config file already exists at %s", resolved)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return "", fmt.Errorf("ensure config directory: %w", err)
	}
	if err := os.WriteFile(resolved, []byte(sampleConfig), 0o644); err != nil {
		return "", fmt.Errorf("write sample config: %w", err)
	}
	return resolved, nil
}

// EnsureDirectories creates the data and log directories if missing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.BlobDir()} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// BlobDir returns the root directory of the filesystem blob store.
func (c *Config) BlobDir() string {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return ""
	}
	return filepath.Join(c.Paths.DataDir, "blobs")
}

// QueueDBPath returns the SQLite job queue database location.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// LockFilePath returns the daemon instance lock location.
func (c *Config) LockFilePath() string {
	return filepath.Join(c.Paths.DataDir, "scribed.lock")
}

func (c *Config) normalize() {
	c.Paths.DataDir = expandBestEffort(c.Paths.DataDir)
	c.Paths.LogDir = expandBestEffort(c.Paths.LogDir)
	c.Speech.BaseURL = strings.TrimRight(strings.TrimSpace(c.Speech.BaseURL), "/")
	c.LLM.BaseURL = strings.TrimRight(strings.TrimSpace(c.LLM.BaseURL), "/")
	c.Embedding.BaseURL = strings.TrimRight(strings.TrimSpace(c.Embedding.BaseURL), "/")
}

// ExpandPath resolves a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", errors.New("path must not be empty")
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	return trimmed, nil
}

func expandBestEffort(path string) string {
	expanded, err := ExpandPath(path)
	if err != nil {
		return strings.TrimSpace(path)
	}
	return expanded
}
