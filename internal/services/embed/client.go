// Package embed produces vector embeddings for transcript chunks and
// search queries through an OpenAI-compatible embedding endpoint.
package embed

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"scribe/internal/config"
)

// Embedder converts text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Client wraps a hosted embedding model.
type Client struct {
	embedder  embeddings.Embedder
	dimension int
}

// NewClient builds a client from the embedding configuration section.
func NewClient(cfg config.Embedding) (*Client, error) {
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return &Client{embedder: embedder, dimension: cfg.Dimension}, nil
}

// Embed returns the embedding vector for text, validating its dimension.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("embedding input is empty")
	}
	vector, err := c.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	if c.dimension > 0 && len(vector) != c.dimension {
		return nil, fmt.Errorf("embedding has %d dimensions, expected %d", len(vector), c.dimension)
	}
	return vector, nil
}

// Dimension reports the configured vector width.
func (c *Client) Dimension() int {
	return c.dimension
}
