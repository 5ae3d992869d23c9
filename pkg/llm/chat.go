package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/xhad/docqa/internal/models"
)

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Model           string
	Temperature     float64
	MaxTokens       int
	SystemTemplate  string
	ContextTemplate string
	BaseURL         string // Ollama server URL
	Logger          *slog.Logger
}

func (c *ChatConfig) applyDefaults() error {
	if c.Model == "" {
		c.Model = "mistral"
	}
	if c.Temperature < 0 || c.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0 and 1")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max tokens cannot be negative")
	} else if c.MaxTokens == 0 {
		c.MaxTokens = 500
	}
	if c.SystemTemplate == "" {
		c.SystemTemplate = DefaultSystemTemplate
	}
	if c.ContextTemplate == "" {
		c.ContextTemplate = DefaultContextTemplate
	}
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:11434"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// ChatEngine answers questions from retrieved passages with a langchaingo model.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
}

// NewWithConfig creates a ChatEngine backed by an Ollama server.
func NewWithConfig(config ChatConfig) (*ChatEngine, error) {
	if err := config.applyDefaults(); err != nil {
		return nil, err
	}

	llm, err := ollama.New(ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &ChatEngine{
		config: config,
		llm:    llm,
	}, nil
}

// NewWithModel creates a ChatEngine around an already constructed model.
func NewWithModel(config ChatConfig, model llms.Model) (*ChatEngine, error) {
	if err := config.applyDefaults(); err != nil {
		return nil, err
	}
	return &ChatEngine{config: config, llm: model}, nil
}

func (ce *ChatEngine) messages(question string, passages []string, history []models.Message) []llms.MessageContent {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, ce.config.SystemTemplate),
	}
	for _, m := range history {
		role := llms.ChatMessageTypeHuman
		if m.Role == models.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		content = append(content, llms.TextParts(role, m.Content))
	}
	return append(content,
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt(ce.config.ContextTemplate, question, passages)))
}

func (ce *ChatEngine) options() []llms.CallOption {
	return []llms.CallOption{
		llms.WithTemperature(ce.config.Temperature),
		llms.WithMaxTokens(ce.config.MaxTokens),
	}
}

// Generate returns the model answer, or a fixed fallback answer when the
// provider fails.
func (ce *ChatEngine) Generate(ctx context.Context, question string, passages []string, history []models.Message) string {
	resp, err := ce.llm.GenerateContent(ctx, ce.messages(question, passages, history), ce.options()...)
	if err != nil {
		ce.config.Logger.Error("generation_failed", slog.String("model", ce.config.Model), slog.String("error", err.Error()))
		return fallbackAnswer(err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		ce.config.Logger.Error("generation_empty", slog.String("model", ce.config.Model))
		return models.GenerationFailedAnswer
	}

	return strings.TrimSpace(resp.Choices[0].Content)
}

// GenerateStream forwards tokens to onToken as they arrive and returns the
// full answer. On failure only the fallback answer is sent.
func (ce *ChatEngine) GenerateStream(ctx context.Context, question string, passages []string, history []models.Message, onToken func(string)) string {
	var sb strings.Builder
	opts := append(ce.options(), llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
		sb.Write(chunk)
		onToken(string(chunk))
		return nil
	}))

	resp, err := ce.llm.GenerateContent(ctx, ce.messages(question, passages, history), opts...)
	if err != nil {
		ce.config.Logger.Error("generation_failed", slog.String("model", ce.config.Model), slog.String("error", err.Error()))
		answer := fallbackAnswer(err)
		if sb.Len() == 0 {
			onToken(answer)
		}
		return answer
	}

	if sb.Len() == 0 && resp != nil && len(resp.Choices) > 0 && resp.Choices[0] != nil {
		// model ignored the streaming callback
		onToken(resp.Choices[0].Content)
		return strings.TrimSpace(resp.Choices[0].Content)
	}
	return strings.TrimSpace(sb.String())
}
