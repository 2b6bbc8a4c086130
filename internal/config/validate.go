package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateSpeech(); err != nil {
		return err
	}
	if err := c.validateEmbedding(); err != nil {
		return err
	}
	if err := c.validateSegmenter(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return c.validateNotifications()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.APIBind) == "" {
		return errors.New("paths.api_bind must be set")
	}
	return nil
}

func (c *Config) validateSpeech() error {
	if strings.TrimSpace(c.Speech.BaseURL) == "" {
		return fmt.Errorf("speech.base_url is required; edit %s (create with 'scribe config init')", DefaultConfigPath())
	}
	if strings.TrimSpace(c.Speech.Model) == "" {
		return errors.New("speech.model must be set")
	}
	if c.Speech.TimeoutSeconds <= 0 {
		return errors.New("speech.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateEmbedding() error {
	if strings.TrimSpace(c.Embedding.BaseURL) == "" {
		return errors.New("embedding.base_url must be set")
	}
	if strings.TrimSpace(c.Embedding.Model) == "" {
		return errors.New("embedding.model must be set")
	}
	if c.Embedding.Dimension <= 0 {
		return errors.New("embedding.dimension must be positive")
	}
	if c.Embedding.Parallelism <= 0 {
		return errors.New("embedding.parallelism must be positive")
	}
	return nil
}

func (c *Config) validateSegmenter() error {
	if err := ensurePositiveMap(map[string]int{
		"segmenter.sentence_gap_ms":         c.Segmenter.SentenceGapMS,
		"segmenter.min_words_per_sentence":  c.Segmenter.MinWordsPerSentence,
		"segmenter.min_sentences_per_chunk": c.Segmenter.MinSentencesPerChunk,
		"segmenter.max_sentences_per_chunk": c.Segmenter.MaxSentencesPerChunk,
		"segmenter.paragraph_gap_ms":        c.Segmenter.ParagraphGapMS,
		"segmenter.target_paragraphs":       c.Segmenter.TargetParagraphs,
	}); err != nil {
		return err
	}
	if c.Segmenter.MaxSentencesPerChunk < c.Segmenter.MinSentencesPerChunk {
		return errors.New("segmenter.max_sentences_per_chunk must be >= segmenter.min_sentences_per_chunk")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"workflow.heartbeat_interval":   c.Workflow.HeartbeatInterval,
		"workflow.heartbeat_timeout":    c.Workflow.HeartbeatTimeout,
		"workflow.max_attempts":         c.Workflow.MaxAttempts,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.Enabled && c.Notifications.ReplaySize < 0 {
		return errors.New("notifications.replay_size must not be negative")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
