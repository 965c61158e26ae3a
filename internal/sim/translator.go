package sim

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Translator turns text into the target language.
type Translator interface {
	Translate(ctx context.Context, text, lang string) (string, error)
}

// TagTranslator is the offline translator: it prefixes the text with the
// language tag, which is enough to exercise the translation flow end to end.
type TagTranslator struct{}

func (TagTranslator) Translate(_ context.Context, text, lang string) (string, error) {
	return "[" + lang + "] " + text, nil
}

// OpenAIConfig configures the OpenAI translator.
type OpenAIConfig struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
}

// OpenAITranslator translates through the OpenAI chat completion API.
type OpenAITranslator struct {
	client *openai.Client
	cfg    OpenAIConfig
}

// NewOpenAITranslator builds a translator. BaseURL is only needed for
// compatible endpoints and tests.
func NewOpenAITranslator(cfg OpenAIConfig) (*OpenAITranslator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	return &OpenAITranslator{client: openai.NewClientWithConfig(config), cfg: cfg}, nil
}

func (t *OpenAITranslator) Translate(ctx context.Context, text, lang string) (string, error) {
	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     t.cfg.Model,
		MaxTokens: t.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: "You translate chat messages. Reply with the translation only, " +
					"keeping emoji, names and links unchanged. Target language: " + lang + ".",
			},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai translate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices returned from openai")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
