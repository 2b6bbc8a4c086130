// Package llm generates transcript summaries and titles through an
// OpenAI-compatible chat completion endpoint.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"scribe/internal/config"
)

// Generator produces short completions for a prompt.
type Generator interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Client wraps a hosted chat model.
type Client struct {
	model           llms.Model
	summaryMaxToken int
	titleMaxToken   int
}

// NewClient builds a client from the llm configuration section.
func NewClient(cfg config.LLM) (*Client, error) {
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}
	return &Client{
		model:           model,
		summaryMaxToken: cfg.SummaryMaxTokens,
		titleMaxToken:   cfg.TitleMaxTokens,
	}, nil
}

// Complete runs a single-prompt completion.
func (c *Client) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt, llms.WithMaxTokens(maxTokens))
	if err != nil {
		return "", fmt.Errorf("generate completion: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Summarize produces a short summary of the transcript text.
func (c *Client) Summarize(ctx context.Context, transcript string) (string, error) {
	return c.Complete(ctx, SummaryPrompt(transcript), c.summaryMaxToken)
}

// Title produces a short descriptive title from the generated summary.
func (c *Client) Title(ctx context.Context, summary string) (string, error) {
	title, err := c.Complete(ctx, TitlePrompt(summary), c.titleMaxToken)
	if err != nil {
		return "", err
	}
	return CleanTitle(title), nil
}
