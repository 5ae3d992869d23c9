package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xhad/docqa/internal/models"
	"github.com/xhad/docqa/internal/types"
	"github.com/xhad/docqa/pkg/extract"
	"github.com/xhad/docqa/pkg/processor"
)

var (
	ErrUnsupportedType = extract.ErrUnsupportedType
	ErrNoText          = errors.New("no text could be extracted from the document")
	ErrNoChunks        = errors.New("document produced no chunks")
)

const StatusIndexed = "indexed"

type IngesterConfig struct {
	// ExtractedDir receives a plain text copy of every ingested document
	// when set.
	ExtractedDir string
	Logger       *slog.Logger
}

type IngestResult struct {
	Filename            string `json:"filename"`
	ChunksIndexed       int    `json:"chunks_indexed"`
	Status              string `json:"status"`
	CharactersExtracted int    `json:"characters_extracted"`
	Pages               int    `json:"pages"`
}

// Ingester turns documents into indexed chunks.
type Ingester struct {
	processor processor.Processor
	indexer   types.Indexer
	config    IngesterConfig
}

func NewIngester(proc processor.Processor, indexer types.Indexer, config IngesterConfig) *Ingester {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Ingester{
		processor: proc,
		indexer:   indexer,
		config:    config,
	}
}

// Ingest extracts name from r with the extractor its extension selects and
// indexes the result under name.
func (in *Ingester) Ingest(ctx context.Context, name string, r io.Reader) (IngestResult, error) {
	extractor, err := extract.ForName(name)
	if err != nil {
		return IngestResult{}, err
	}

	doc, err := extractor.Extract(ctx, name, r)
	if err != nil {
		return IngestResult{}, fmt.Errorf("failed to extract %s: %w", name, err)
	}
	return in.IngestDocument(ctx, doc)
}

// IngestDocument chunks and indexes an already extracted document. Indexing
// replaces whatever was stored for the same source.
func (in *Ingester) IngestDocument(ctx context.Context, doc models.Document) (IngestResult, error) {
	start := time.Now()

	characters := 0
	for _, p := range doc.Pages {
		characters += utf8.RuneCountInString(strings.TrimSpace(p.Text))
	}
	if characters == 0 {
		return IngestResult{}, fmt.Errorf("%s: %w", doc.Source, ErrNoText)
	}

	if in.config.ExtractedDir != "" {
		if err := in.saveExtracted(doc); err != nil {
			in.config.Logger.Warn("extracted_text_save_failed", slog.String("source", doc.Source), slog.String("error", err.Error()))
		}
	}

	chunks := in.processor.Chunk(doc.Pages)
	if len(chunks) == 0 {
		return IngestResult{}, fmt.Errorf("%s: %w", doc.Source, ErrNoChunks)
	}

	n, err := in.indexer.Index(ctx, chunks, doc.Source)
	if err != nil {
		return IngestResult{}, fmt.Errorf("failed to index %s: %w", doc.Source, err)
	}

	name := doc.Name
	if name == "" {
		name = doc.Source
	}

	in.config.Logger.Info("ingest_completed",
		slog.String("source", doc.Source),
		slog.Int("pages", len(doc.Pages)),
		slog.Int("characters", characters),
		slog.Int("chunks", n),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return IngestResult{
		Filename:            name,
		ChunksIndexed:       n,
		Status:              StatusIndexed,
		CharactersExtracted: characters,
		Pages:               len(doc.Pages),
	}, nil
}

func (in *Ingester) saveExtracted(doc models.Document) error {
	if err := os.MkdirAll(in.config.ExtractedDir, 0o755); err != nil {
		return err
	}

	base := filepath.Base(doc.Name)
	if doc.Name == "" {
		base = filepath.Base(doc.Source)
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." || stem == "/" {
		stem = "document"
	}

	var b strings.Builder
	for i, p := range doc.Pages {
		if i > 0 {
			b.WriteString("\f")
		}
		b.WriteString(p.Text)
	}

	return os.WriteFile(filepath.Join(in.config.ExtractedDir, stem+".txt"), []byte(b.String()), 0o644)
}
