package gateway

import (
	"context"
	"fmt"

	"github.com/aretw0/wayfarer/pkg/domain"
	"github.com/aretw0/wayfarer/pkg/ports"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = openai.ChatModelGPT4oMini

// OpenAI generates text with the chat completions API.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates a client. An empty apiKey falls back to OPENAI_API_KEY,
// an empty baseURL to the public endpoint. SDK retries are disabled; the
// Retry decorator owns that concern within the turn deadline.
func NewOpenAI(apiKey, baseURL, model string) *OpenAI {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return NewOpenAIFromClient(&client, model)
}

// NewOpenAIFromClient wraps an existing client.
func NewOpenAIFromClient(client *openai.Client, model string) *OpenAI {
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAI{client: client, model: model}
}

// Generate implements ports.Gateway.
func (g *OpenAI) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	ctx, cancel := bound(ctx, req.Timeout)
	defer cancel()

	var messages []openai.ChatCompletionMessageParamUnion
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Messages:    messages,
		Model:       g.model,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classify(ctx, "openai", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: %w: no choices returned", domain.ErrInvalidResponse)
	}
	return nonEmpty("openai", resp.Choices[0].Message.Content)
}
