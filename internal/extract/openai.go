package extract

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures the OpenAI chat-completions extraction
// backend.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Logger  *log.Logger
}

// OpenAIExtractor extracts structured items through the OpenAI chat
// completions API.
type OpenAIExtractor struct {
	client *openai.Client
	model  string
	logger *log.Logger
	now    func() time.Time
}

func NewOpenAIExtractor(config OpenAIConfig) *OpenAIExtractor {
	if strings.TrimSpace(config.Model) == "" {
		config.Model = "gpt-4o-mini"
	}
	if config.Logger == nil {
		config.Logger = log.New(io.Discard, "", 0)
	}

	clientConfig := openai.DefaultConfig(strings.TrimSpace(config.APIKey))
	if strings.TrimSpace(config.BaseURL) != "" {
		clientConfig.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	}

	return &OpenAIExtractor{
		client: openai.NewClientWithConfig(clientConfig),
		model:  config.Model,
		logger: config.Logger,
		now:    time.Now,
	}
}

func (e *OpenAIExtractor) Extract(ctx context.Context, transcript string) (Result, error) {
	if strings.TrimSpace(transcript) == "" {
		return Degraded("Kein Transkript vorhanden."), nil
	}

	response, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		Temperature: 0.2,
		MaxTokens:   8192,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "Du bist ein präziser Assistent, der ausschließlich mit gültigem JSON antwortet.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildExtractionPrompt(transcript, e.now()),
			},
		},
	})
	if err != nil {
		e.logger.Printf("openai extraction failed: %v", err)
		return Degraded(fmt.Sprintf("KI-Analyse fehlgeschlagen: %v", err)), nil
	}
	if len(response.Choices) == 0 {
		return Degraded("KI-Analyse fehlgeschlagen: leere Antwort."), nil
	}

	return parseModelResponse(response.Choices[0].Message.Content, e.now().UTC()), nil
}
