package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

// EmbedderConfig represents the configuration for an embedder.
type EmbedderConfig struct {
	Model     string
	BaseURL   string // Ollama server URL
	BatchSize int
}

// Embedder turns texts into vectors through an Ollama embedding model.
type Embedder struct {
	config   EmbedderConfig
	embedder embeddings.Embedder
}

func (c *EmbedderConfig) applyDefaults() {
	if c.Model == "" {
		c.Model = "nomic-embed-text:latest"
	}
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:11434"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 32
	}
}

func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	config.applyDefaults()

	client, err := ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	return newEmbedder(config, client)
}

func newEmbedder(config EmbedderConfig, client embeddings.EmbedderClient) (*Embedder, error) {
	// Newline stripping rewrites the caller's slice in place.
	emb, err := embeddings.NewEmbedder(client,
		embeddings.WithBatchSize(config.BatchSize),
		embeddings.WithStripNewLines(false),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	return &Embedder{
		config:   config,
		embedder: emb,
	}, nil
}

func (e *Embedder) Config() EmbedderConfig {
	return e.config
}

// CreateEmbedding embeds texts in batches and returns one vector per text.
func (e *Embedder) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}

	return vectors, nil
}
