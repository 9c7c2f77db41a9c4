package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ErrEmptyChoices is returned when the API answers without any choice.
var ErrEmptyChoices = errors.New("llm: completion returned no choices")

// OpenAIConfig controls chat completion calls.
type OpenAIConfig struct {
	Model        string
	SystemPrompt string
	Temperature  float32
	MaxTokens    int
}

// DefaultOpenAIConfig returns the settings used when a node leaves them unset.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		Model:        openai.GPT3Dot5Turbo,
		SystemPrompt: "You are a helpful AI assistant.",
		Temperature:  0.5,
		MaxTokens:    256,
	}
}

// OpenAIClient completes prompts through the OpenAI chat completion API.
type OpenAIClient struct {
	client *openai.Client
	cfg    OpenAIConfig
}

func NewOpenAIClient(apiKey string) *OpenAIClient {
	return NewOpenAIClientWith(openai.NewClient(apiKey), DefaultOpenAIConfig())
}

// NewOpenAIClientWith wraps an existing go-openai client, e.g. one built with
// a custom base URL.
func NewOpenAIClientWith(client *openai.Client, cfg OpenAIConfig) *OpenAIClient {
	def := DefaultOpenAIConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = def.SystemPrompt
	}
	return &OpenAIClient{client: client, cfg: cfg}
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Response, error) {
	model := c.cfg.Model
	if req.ModelID != "" {
		model = req.ModelID
	}
	system := c.cfg.SystemPrompt
	if req.SystemPrompt != "" {
		system = req.SystemPrompt
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return Response{Error: apiErr.Message}, nil
		}
		return Response{}, fmt.Errorf("chat completion with %s: %w", model, err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, ErrEmptyChoices
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		content = resp.Choices[0].Message.Content
	}
	return Response{Response: content}, nil
}
