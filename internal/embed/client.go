package embed

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultModel   = "text-embedding-3-small"
	defaultBaseURL = "https://api.openai.com/v1"
	maxBatchSize   = 64
)

// Embedder turns text into vectors. Satisfied by Client and by test fakes.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Client wraps an OpenAI-compatible embedding API.
type Client struct {
	api   *openai.Client
	model string
}

// Config controls how the embedding client is constructed.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("embed: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}

	conf := openai.DefaultConfig(cfg.APIKey)
	conf.BaseURL = cfg.BaseURL

	return &Client{
		api:   openai.NewClientWithConfig(conf),
		model: cfg.Model,
	}, nil
}

// Model returns the configured embedding model name.
func (c *Client) Model() string {
	return c.model
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds many inputs, splitting the request into API-sized
// batches. The result is ordered like the input.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		req := openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(c.model),
			Input: texts[start:end],
		}
		resp, err := c.api.CreateEmbeddings(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d:%d]: %w", start, end, err)
		}
		if len(resp.Data) != end-start {
			return nil, fmt.Errorf("embed: expected %d vectors, got %d", end-start, len(resp.Data))
		}
		for _, d := range resp.Data {
			out = append(out, d.Embedding)
		}
	}
	return out, nil
}
