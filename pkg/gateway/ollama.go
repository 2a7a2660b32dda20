package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aretw0/wayfarer/pkg/domain"
	"github.com/aretw0/wayfarer/pkg/ports"
)

const (
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "llama3.2:3b"
)

// Ollama talks to a local Ollama server through its generate endpoint.
type Ollama struct {
	baseURL    string
	model      string
	numCtx     int
	httpClient *http.Client
}

// OllamaOption configures the Ollama gateway.
type OllamaOption func(*Ollama)

// WithOllamaURL sets the server address.
func WithOllamaURL(url string) OllamaOption {
	return func(o *Ollama) {
		if url != "" {
			o.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithOllamaModel selects the model.
func WithOllamaModel(model string) OllamaOption {
	return func(o *Ollama) {
		if model != "" {
			o.model = model
		}
	}
}

// WithContextWindow sets num_ctx. Zero keeps the server default.
func WithContextWindow(n int) OllamaOption {
	return func(o *Ollama) {
		o.numCtx = n
	}
}

// WithHTTPClient replaces the HTTP client. Timeouts come from each request.
func WithHTTPClient(c *http.Client) OllamaOption {
	return func(o *Ollama) {
		o.httpClient = c
	}
}

// NewOllama creates an Ollama gateway.
func NewOllama(opts ...OllamaOption) *Ollama {
	o := &Ollama{
		baseURL:    DefaultOllamaURL,
		model:      DefaultOllamaModel,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
	NumCtx      int     `json:"num_ctx,omitempty"`
}

type ollamaResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// Generate implements ports.Gateway.
func (o *Ollama) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	ctx, cancel := bound(ctx, req.Timeout)
	defer cancel()

	body, err := json.Marshal(ollamaRequest{
		Model:  o.model,
		Prompt: req.Prompt,
		System: req.SystemPrompt,
		Stream: false,
		Options: ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
			NumCtx:      o.numCtx,
		},
	})
	if err != nil {
		return "", fmt.Errorf("ollama: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ollama: %w: %v", domain.ErrGatewayUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return "", classify(ctx, "ollama", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ollama: %w: status %d: %s", domain.ErrGatewayUnavailable, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if ctx.Err() != nil {
			return "", classify(ctx, "ollama", err)
		}
		return "", fmt.Errorf("ollama: %w: decode: %v", domain.ErrInvalidResponse, err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama: %w: %s", domain.ErrGatewayUnavailable, out.Error)
	}
	return nonEmpty("ollama", out.Response)
}

// Available reports whether the server answers its model listing.
func (o *Ollama) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
