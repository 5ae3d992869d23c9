package config

import (
	"fmt"
	"net/url"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func validURL(raw string, schemes ...string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return true
		}
	}
	return false
}

// Validate collects every problem instead of stopping at the first.
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError
	add := func(field, format string, args ...any) {
		errors = append(errors, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// LLM
	switch c.LLM.Provider {
	case ProviderOllama:
		if c.LLM.BaseURL == "" {
			add("llm.base_url", "Ollama base URL is required")
		} else if !validURL(c.LLM.BaseURL, "http", "https") {
			add("llm.base_url", "invalid Ollama base URL")
		}
	case ProviderOpenAI:
		if c.LLM.APIKey == "" {
			add("llm.api_key", "api_key (or OPENAI_API_KEY) is required for the openai provider")
		}
		if c.LLM.BaseURL != "" && !validURL(c.LLM.BaseURL, "http", "https") {
			add("llm.base_url", "invalid OpenAI base URL")
		}
	default:
		add("llm.provider", "provider must be %q or %q, got %q", ProviderOllama, ProviderOpenAI, c.LLM.Provider)
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 4096 {
		add("llm.max_tokens", "max_tokens must be between 1 and 4096")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 1 {
		add("llm.temperature", "temperature must be between 0 and 1")
	}

	// Embedder
	if !validURL(c.Embedder.BaseURL, "http", "https") {
		add("embedder.base_url", "invalid embedder base URL")
	}
	if c.Embedder.BatchSize < 1 {
		add("embedder.batch_size", "batch_size must be positive")
	}

	// Database and index
	switch c.Index.Backend {
	case BackendPgvector:
		if c.Database.URL == "" {
			add("database.url", "database URL is required for the pgvector index")
		}
	case BackendMemory:
	default:
		add("index.backend", "backend must be %q or %q, got %q", BackendPgvector, BackendMemory, c.Index.Backend)
	}
	if c.Database.URL != "" && !validURL(c.Database.URL, "postgres", "postgresql") {
		add("database.url", "invalid database URL")
	}
	if c.Database.VectorDim < 1 {
		add("database.vector_dim", "vector_dim must be positive")
	}
	if c.Database.BatchSize < 1 {
		add("database.batch_size", "batch_size must be positive")
	}

	// Session
	if c.Session.RedisURL != "" && !validURL(c.Session.RedisURL, "redis", "rediss") {
		add("session.redis_url", "invalid redis URL")
	}
	if c.Session.TTL <= 0 {
		add("session.ttl", "ttl must be positive")
	}
	if c.Session.MaxMessages < 1 {
		add("session.max_messages", "max_messages must be positive")
	}
	if c.Session.HistoryLimit < 0 || c.Session.HistoryLimit > c.Session.MaxMessages {
		add("session.history_limit", "history_limit must be between 0 and max_messages")
	}

	// Processor
	if c.Processor.ChunkSize < 1 {
		add("processor.chunk_size", "chunk_size must be positive")
	}
	if c.Processor.ChunkOverlap < 0 || c.Processor.ChunkOverlap >= c.Processor.ChunkSize {
		add("processor.chunk_overlap", "chunk_overlap must be non-negative and less than chunk_size")
	}

	// Retrieval
	if c.Retrieval.MaxTopK < 1 {
		add("retrieval.max_top_k", "max_top_k must be positive")
	}
	if c.Retrieval.TopK < 1 || c.Retrieval.TopK > c.Retrieval.MaxTopK {
		add("retrieval.top_k", "top_k must be between 1 and max_top_k")
	}
	if c.Retrieval.MaxDistance <= 0 || c.Retrieval.MaxDistance > 2 {
		add("retrieval.max_distance", "max_distance must be in (0, 2] for cosine distance")
	}
	if c.Retrieval.MaxContextTokens < 1 {
		add("retrieval.max_context_tokens", "max_context_tokens must be positive")
	}

	// Scraper
	if c.Scraper.MaxDepth < 1 {
		add("scraper.max_depth", "max_depth must be positive")
	}
	if c.Scraper.MaxPages < 1 {
		add("scraper.max_pages", "max_pages must be positive")
	}
	if c.Scraper.RateLimit <= 0 {
		add("scraper.rate_limit", "rate_limit must be positive")
	}
	for _, ext := range c.Scraper.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") && ext != "" && ext != "/" {
			add("scraper.allowed_extensions", "invalid extension format: %s", ext)
		}
	}

	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		add("server.port", "port must be between 1 and 65535")
	}
	if c.Server.DataDir == "" {
		add("server.data_dir", "data_dir is required")
	}
	if c.Server.MaxUploadMB < 1 {
		add("server.max_upload_mb", "max_upload_mb must be positive")
	}

	return errors
}
