// Package gateway provides text completion backends for responders.
//
// Every adapter reports failures by wrapping one of domain.ErrGatewayTimeout,
// domain.ErrGatewayUnavailable or domain.ErrInvalidResponse, so responders can
// pick their fallback path without knowing which backend is in use.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/wayfarer/pkg/domain"
)

// Backend names accepted by the configuration.
const (
	BackendOllama    = "ollama"
	BackendOpenAI    = "openai"
	BackendAnthropic = "anthropic"
	BackendOffline   = "offline"
)

// bound derives the context of one call: the request timeout, capped by any
// deadline the caller already set.
func bound(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// classify maps a transport error onto the gateway taxonomy.
func classify(ctx context.Context, backend string, err error) error {
	switch {
	case errors.Is(err, domain.ErrGatewayTimeout),
		errors.Is(err, domain.ErrGatewayUnavailable),
		errors.Is(err, domain.ErrInvalidResponse):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %v", backend, domain.ErrGatewayTimeout, err)
	default:
		return fmt.Errorf("%s: %w: %v", backend, domain.ErrGatewayUnavailable, err)
	}
}

// nonEmpty rejects blank completions.
func nonEmpty(backend, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%s: %w: empty completion", backend, domain.ErrInvalidResponse)
	}
	return text, nil
}
