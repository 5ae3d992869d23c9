package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/xhad/docqa/internal/models"
)

// OpenAIConfig configures a generator for any OpenAI compatible chat API
// (OpenAI, Groq, vLLM, ...).
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Temperature    float64
	MaxTokens      int
	SystemTemplate string
	Logger         *slog.Logger
}

type OpenAIEngine struct {
	config OpenAIConfig
	client openai.Client
}

func NewOpenAIWithConfig(config OpenAIConfig) (*OpenAIEngine, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if config.Model == "" {
		config.Model = "llama-3.1-8b-instant"
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 500
	}
	if config.SystemTemplate == "" {
		config.SystemTemplate = DefaultSystemTemplate
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		// throttling is reported to the caller, not retried
		option.WithMaxRetries(0),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &OpenAIEngine{
		config: config,
		client: openai.NewClient(opts...),
	}, nil
}

func (oe *OpenAIEngine) params(question string, passages []string, history []models.Message) openai.ChatCompletionNewParams {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(oe.config.SystemTemplate),
	}
	for _, m := range history {
		if m.Role == models.RoleAssistant {
			messages = append(messages, openai.AssistantMessage(m.Content))
		} else {
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}
	messages = append(messages, openai.UserMessage(userPrompt(DefaultContextTemplate, question, passages)))

	return openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(oe.config.Model),
		Messages:    messages,
		Temperature: openai.Float(oe.config.Temperature),
		MaxTokens:   openai.Int(int64(oe.config.MaxTokens)),
	}
}

func (oe *OpenAIEngine) Generate(ctx context.Context, question string, passages []string, history []models.Message) string {
	resp, err := oe.client.Chat.Completions.New(ctx, oe.params(question, passages, history))
	if err != nil {
		oe.config.Logger.Error("generation_failed", slog.String("model", oe.config.Model), slog.String("error", err.Error()))
		return fallbackAnswer(err)
	}
	if len(resp.Choices) == 0 {
		oe.config.Logger.Error("generation_empty", slog.String("model", oe.config.Model))
		return models.GenerationFailedAnswer
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content)
}

func (oe *OpenAIEngine) GenerateStream(ctx context.Context, question string, passages []string, history []models.Message, onToken func(string)) string {
	stream := oe.client.Chat.Completions.NewStreaming(ctx, oe.params(question, passages, history))
	defer stream.Close()

	var sb strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		sb.WriteString(chunk.Choices[0].Delta.Content)
		onToken(chunk.Choices[0].Delta.Content)
	}

	if err := stream.Err(); err != nil {
		oe.config.Logger.Error("generation_failed", slog.String("model", oe.config.Model), slog.String("error", err.Error()))
		answer := fallbackAnswer(err)
		if sb.Len() == 0 {
			onToken(answer)
		}
		return answer
	}
	return strings.TrimSpace(sb.String())
}
