package types

import (
	"context"
	"io"

	"github.com/xhad/docqa/internal/models"
)

// Core interfaces
type Extractor interface {
	Extract(ctx context.Context, name string, r io.Reader) (models.Document, error)
}

type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Indexer embeds and stores the chunks of one source. It returns the number
// of records written and commits nothing on failure.
type Indexer interface {
	Index(ctx context.Context, chunks []models.Chunk, source string) (int, error)
}

// Retriever returns candidates whose distance to the query is at most
// maxDistance, bounded by topK. An empty result is not an error.
type Retriever interface {
	Search(ctx context.Context, query string, topK int, maxDistance float64) ([]models.Candidate, error)
}

// Generator produces an answer grounded in passages. Provider failures are
// reported as fixed answer strings, never as errors.
type Generator interface {
	Generate(ctx context.Context, question string, passages []string, history []models.Message) string
}

type StreamGenerator interface {
	Generator
	GenerateStream(ctx context.Context, question string, passages []string, history []models.Message, onToken func(string)) string
}

type SessionStore interface {
	Append(ctx context.Context, sessionID, role, content string) error
	History(ctx context.Context, sessionID string, limit int) ([]models.Message, error)
}
