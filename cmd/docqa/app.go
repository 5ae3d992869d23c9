package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xhad/docqa/internal/types"
	"github.com/xhad/docqa/pkg/config"
	"github.com/xhad/docqa/pkg/llm"
	"github.com/xhad/docqa/pkg/pipeline"
	"github.com/xhad/docqa/pkg/processor"
	"github.com/xhad/docqa/pkg/scraper"
	"github.com/xhad/docqa/pkg/session"
	"github.com/xhad/docqa/pkg/store"
	"github.com/xhad/docqa/server"
)

type index interface {
	types.Indexer
	types.Retriever
}

// app holds the process-wide clients. Each is created once per command and
// closed by Close.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	index    index
	querier  *pipeline.Querier
	ingester *pipeline.Ingester
	closers  []func()
}

func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:     cfg.Embedder.Model,
		BaseURL:   cfg.Embedder.BaseURL,
		BatchSize: cfg.Embedder.BatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	switch cfg.Index.Backend {
	case config.BackendPgvector:
		vs, err := store.NewWithConfig(ctx, store.VectorStoreConfig{
			ConnString: cfg.Database.URL,
			TableName:  cfg.Database.TableName,
			VectorDim:  cfg.Database.VectorDim,
			BatchSize:  cfg.Database.BatchSize,
		}, embedder)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize vector store: %w", err)
		}
		a.index = vs
		a.closers = append(a.closers, vs.Close)
	default:
		log.Warn("using in-memory index, documents are lost on exit")
		a.index = store.NewMemoryStore(embedder)
	}

	generator, err := newGenerator(cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	sessions, err := newSessions(ctx, cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	if rs, ok := sessions.(*session.RedisStore); ok {
		a.closers = append(a.closers, func() { rs.Close() })
	}

	proc, err := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    cfg.Processor.ChunkSize,
		ChunkOverlap: cfg.Processor.ChunkOverlap,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.querier = pipeline.NewQuerier(a.index, generator, sessions, pipeline.QuerierConfig{
		DefaultTopK:        cfg.Retrieval.TopK,
		MaxTopK:            cfg.Retrieval.MaxTopK,
		DefaultMaxDistance: cfg.Retrieval.MaxDistance,
		MaxContextTokens:   cfg.Retrieval.MaxContextTokens,
		HistoryLimit:       cfg.Session.HistoryLimit,
		Logger:             log,
	})
	a.ingester = pipeline.NewIngester(proc, a.index, pipeline.IngesterConfig{
		ExtractedDir: server.ExtractedDir(cfg.Server.DataDir),
		Logger:       log,
	})

	return a, nil
}

func newGenerator(cfg *config.Config, log *slog.Logger) (types.StreamGenerator, error) {
	if cfg.LLM.Provider == config.ProviderOpenAI {
		gen, err := llm.NewOpenAIWithConfig(llm.OpenAIConfig{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			Logger:      log,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize openai generator: %w", err)
		}
		return gen, nil
	}

	gen, err := llm.NewWithConfig(llm.ChatConfig{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		BaseURL:     cfg.LLM.BaseURL,
		Logger:      log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat engine: %w", err)
	}
	return gen, nil
}

func newSessions(ctx context.Context, cfg *config.Config, log *slog.Logger) (types.SessionStore, error) {
	storeCfg := session.RedisStoreConfig{
		URL:         cfg.Session.RedisURL,
		TTL:         cfg.Session.TTL,
		MaxMessages: cfg.Session.MaxMessages,
	}
	if cfg.Session.RedisURL == "" {
		return session.NewMemoryStore(storeCfg), nil
	}

	rs, err := session.NewRedisStore(storeCfg)
	if err != nil {
		return nil, err
	}
	if err := rs.Ping(ctx); err != nil {
		// sessions are optional; answers still work without history
		log.Warn("redis_unavailable", "error", err.Error())
	}
	return rs, nil
}

func (a *app) scraperConfig(baseURL string) scraper.ScraperConfig {
	return scraper.ScraperConfig{
		BaseURL:           baseURL,
		MaxDepth:          a.cfg.Scraper.MaxDepth,
		MaxPages:          a.cfg.Scraper.MaxPages,
		RateLimit:         a.cfg.Scraper.RateLimit,
		IgnorePatterns:    a.cfg.Scraper.IgnorePatterns,
		AllowedExtensions: a.cfg.Scraper.AllowedExtensions,
		Logger:            a.log,
	}
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
