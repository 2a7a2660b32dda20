package ports

import (
	"context"
	"time"
)

// GenerateRequest is a single text completion call.
type GenerateRequest struct {
	Prompt       string
	SystemPrompt string
	MaxTokens    int
	Temperature  float64

	// Timeout bounds the call. Implementations must give up once it elapses
	// and report domain.ErrGatewayTimeout.
	Timeout time.Duration
}

// Gateway abstracts a language generation backend.
//
// Failures are reported by wrapping one of domain.ErrGatewayTimeout,
// domain.ErrGatewayUnavailable or domain.ErrInvalidResponse.
type Gateway interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// GatewayFunc adapts an ordinary function to the Gateway interface.
type GatewayFunc func(ctx context.Context, req GenerateRequest) (string, error)

// Generate calls f(ctx, req).
func (f GatewayFunc) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	return f(ctx, req)
}
