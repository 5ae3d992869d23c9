package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xhad/docqa/internal/models"
	"github.com/xhad/docqa/internal/types"
)

var (
	// ErrEmptyChunk rejects a batch containing a blank chunk.
	ErrEmptyChunk = errors.New("chunk text is empty")
	// ErrInconsistentBatch means the texts, vectors and ids of a batch do not line up.
	ErrInconsistentBatch = errors.New("inconsistent index batch")
)

// buildRecords embeds the chunks of one source. Chunk ids are the ordinal
// position in chunks, so re-indexing a source yields the same ids.
func buildRecords(ctx context.Context, embedder types.Embedder, chunks []models.Chunk, source string, dim int) ([]models.Record, error) {
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("%w: source is empty", ErrInconsistentBatch)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		text := sanitizeUTF8(c.Text)
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: chunk %d of %s", ErrEmptyChunk, i, source)
		}
		texts[i] = text
	}

	vectors, err := embedder.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: %d texts, %d embeddings", ErrInconsistentBatch, len(texts), len(vectors))
	}

	records := make([]models.Record, len(chunks))
	for i, c := range chunks {
		if dim > 0 && len(vectors[i]) != dim {
			return nil, fmt.Errorf("%w: embedding %d has dimension %d, want %d", ErrInconsistentBatch, i, len(vectors[i]), dim)
		}
		records[i] = models.Record{
			ChunkID:   i,
			Source:    source,
			Page:      c.SourcePage,
			ChunkSize: len(strings.Fields(texts[i])),
			Text:      texts[i],
			Embedding: vectors[i],
		}
	}

	return records, nil
}

func embedQuery(ctx context.Context, embedder types.Embedder, query string) ([]float32, error) {
	vectors, err := embedder.CreateEmbedding(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to create query embedding: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: %d embeddings for one query", ErrInconsistentBatch, len(vectors))
	}
	return vectors[0], nil
}

func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}
