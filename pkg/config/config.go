package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	BackendPgvector = "pgvector"
	BackendMemory   = "memory"
)

type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

type EmbedderConfig struct {
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	BatchSize int    `yaml:"batch_size"`
}

type DatabaseConfig struct {
	URL       string `yaml:"url"`
	TableName string `yaml:"table_name"`
	VectorDim int    `yaml:"vector_dim"`
	BatchSize int    `yaml:"batch_size"`
}

type IndexConfig struct {
	Backend string `yaml:"backend"`
}

type SessionConfig struct {
	RedisURL     string        `yaml:"redis_url"`
	TTL          time.Duration `yaml:"ttl"`
	MaxMessages  int           `yaml:"max_messages"`
	HistoryLimit int           `yaml:"history_limit"`
}

type ProcessorConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

type RetrievalConfig struct {
	TopK             int     `yaml:"top_k"`
	MaxTopK          int     `yaml:"max_top_k"`
	MaxDistance      float64 `yaml:"max_distance"`
	MaxContextTokens int     `yaml:"max_context_tokens"`
}

type ScraperConfig struct {
	MaxDepth          int      `yaml:"max_depth"`
	MaxPages          int      `yaml:"max_pages"`
	RateLimit         float64  `yaml:"rate_limit"`
	IgnorePatterns    []string `yaml:"ignore_patterns"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	DataDir        string   `yaml:"data_dir"`
	MaxUploadMB    int      `yaml:"max_upload_mb"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type UIConfig struct {
	Streaming bool   `yaml:"streaming"`
	Theme     string `yaml:"theme"`
}

type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Database  DatabaseConfig  `yaml:"database"`
	Index     IndexConfig     `yaml:"index"`
	Session   SessionConfig   `yaml:"session"`
	Processor ProcessorConfig `yaml:"processor"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Scraper   ScraperConfig   `yaml:"scraper"`
	Server    ServerConfig    `yaml:"server"`
	UI        UIConfig        `yaml:"ui"`
}

// SearchPaths are tried in order when LoadConfig gets an empty path.
func SearchPaths() []string {
	return []string{
		"config.yaml",
		"config.yml",
		filepath.Join(os.Getenv("HOME"), ".config/docqa/config.yaml"),
		"/etc/docqa/config.yaml",
	}
}

func LoadConfig(path string) (*Config, error) {
	if path == "" {
		for _, loc := range SearchPaths() {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() *Config {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config
}

func applyDefaults(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = ProviderOllama
	}
	if config.LLM.Model == "" {
		if config.LLM.Provider == ProviderOpenAI {
			config.LLM.Model = "llama-3.1-8b-instant"
		} else {
			config.LLM.Model = "mistral"
		}
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 500
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.2
	}
	if config.LLM.BaseURL == "" && config.LLM.Provider == ProviderOllama {
		config.LLM.BaseURL = "http://localhost:11434"
	}

	if config.Embedder.BaseURL == "" {
		if config.LLM.Provider == ProviderOllama {
			config.Embedder.BaseURL = config.LLM.BaseURL
		} else {
			config.Embedder.BaseURL = "http://localhost:11434"
		}
	}
	if config.Embedder.Model == "" {
		config.Embedder.Model = "nomic-embed-text:latest"
	}
	if config.Embedder.BatchSize == 0 {
		config.Embedder.BatchSize = 32
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "documents"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 768
	}
	if config.Database.BatchSize == 0 {
		config.Database.BatchSize = 100
	}

	if config.Index.Backend == "" {
		if config.Database.URL != "" {
			config.Index.Backend = BackendPgvector
		} else {
			config.Index.Backend = BackendMemory
		}
	}

	if config.Session.TTL == 0 {
		config.Session.TTL = 30 * time.Minute
	}
	if config.Session.MaxMessages == 0 {
		config.Session.MaxMessages = 50
	}
	if config.Session.HistoryLimit == 0 {
		config.Session.HistoryLimit = 10
	}

	// An explicit zero overlap is valid, so only a fully unset section is defaulted.
	if config.Processor.ChunkSize == 0 && config.Processor.ChunkOverlap == 0 {
		config.Processor.ChunkSize = 500
		config.Processor.ChunkOverlap = 50
	}

	if config.Retrieval.TopK == 0 {
		config.Retrieval.TopK = 5
	}
	if config.Retrieval.MaxTopK == 0 {
		config.Retrieval.MaxTopK = 50
	}
	if config.Retrieval.MaxDistance == 0 {
		config.Retrieval.MaxDistance = 1.5
	}
	if config.Retrieval.MaxContextTokens == 0 {
		config.Retrieval.MaxContextTokens = 1500
	}

	if config.Scraper.MaxDepth == 0 {
		config.Scraper.MaxDepth = 3
	}
	if config.Scraper.MaxPages == 0 {
		config.Scraper.MaxPages = 200
	}
	if config.Scraper.RateLimit == 0 {
		config.Scraper.RateLimit = 2.0
	}
	if len(config.Scraper.AllowedExtensions) == 0 {
		config.Scraper.AllowedExtensions = []string{".html", ".htm", "/", ""}
	}

	if config.Server.Port == 0 {
		config.Server.Port = 8000
	}
	if config.Server.DataDir == "" {
		config.Server.DataDir = "data"
	}
	if config.Server.MaxUploadMB == 0 {
		config.Server.MaxUploadMB = 50
	}

	if config.UI.Theme == "" {
		config.UI.Theme = "default"
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		if config.LLM.Provider != ProviderOpenAI {
			config.LLM.BaseURL = baseURL
		}
		config.Embedder.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		config.Session.RedisURL = redisURL
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" && config.LLM.Provider == ProviderOpenAI {
		config.LLM.BaseURL = baseURL
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
}
