package processor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xhad/docqa/internal/models"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

var ErrInvalidConfig = errors.New("invalid processor config")

// ProcessorConfig sizes the word windows. Both values count words.
type ProcessorConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

func (c ProcessorConfig) Validate() error {
	if c.ChunkSize < 1 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidConfig, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be non-negative and less than chunk_size, got %d/%d",
			ErrInvalidConfig, c.ChunkOverlap, c.ChunkSize)
	}
	return nil
}

// Stride is how far each window start advances.
func (c ProcessorConfig) Stride() int {
	return c.ChunkSize - c.ChunkOverlap
}

type Processor struct {
	config ProcessorConfig
}

// NewWithConfig uses the defaults for a zero config and rejects configs whose
// overlap would stop the window from advancing.
func NewWithConfig(config ProcessorConfig) (Processor, error) {
	if config.ChunkSize == 0 && config.ChunkOverlap == 0 {
		config.ChunkSize = DefaultChunkSize
		config.ChunkOverlap = DefaultChunkOverlap
	}
	if err := config.Validate(); err != nil {
		return Processor{}, err
	}

	return Processor{
		config: config,
	}, nil
}

func (p Processor) Config() ProcessorConfig {
	return p.config
}

// Chunk cuts every page into windows of ChunkSize words. Pages are never
// merged, so each chunk keeps the page number it was sliced from.
func (p Processor) Chunk(pages []models.Page) []models.Chunk {
	var chunks []models.Chunk

	for _, page := range pages {
		words := strings.Fields(page.Text)
		for _, window := range p.splitIntoWindows(words) {
			chunks = append(chunks, models.Chunk{
				Text:       strings.Join(window, " "),
				SourcePage: page.Number,
			})
		}
	}

	return chunks
}

func (p Processor) splitIntoWindows(words []string) [][]string {
	var windows [][]string

	stride := p.config.Stride()
	for start := 0; start < len(words); start += stride {
		end := start + p.config.ChunkSize
		if end > len(words) {
			end = len(words)
		}
		windows = append(windows, words[start:end])
	}

	return windows
}
