package gateway

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aretw0/wayfarer/pkg/ports"
)

// DefaultAnthropicModel is used when no model is configured.
const DefaultAnthropicModel = "claude-3-5-haiku-latest"

// defaultAnthropicMaxTokens applies when a request leaves MaxTokens unset;
// the messages API requires the field.
const defaultAnthropicMaxTokens = 512

// Anthropic generates text with the messages API.
type Anthropic struct {
	client *anthropic.Client
	model  anthropic.Model
}

// NewAnthropic creates a client. An empty apiKey falls back to ANTHROPIC_API_KEY.
func NewAnthropic(apiKey, baseURL, model string) *Anthropic {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(opts...)
	return NewAnthropicFromClient(&client, model)
}

// NewAnthropicFromClient wraps an existing client.
func NewAnthropicFromClient(client *anthropic.Client, model string) *Anthropic {
	if model == "" {
		model = DefaultAnthropicModel
	}
	return &Anthropic{client: client, model: anthropic.Model(model)}
}

// Generate implements ports.Gateway.
func (g *Anthropic) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	ctx, cancel := bound(ctx, req.Timeout)
	defer cancel()

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:       g.model,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(req.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return "", classify(ctx, "anthropic", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	return nonEmpty("anthropic", sb.String())
}
