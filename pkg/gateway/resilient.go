package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/aretw0/wayfarer/internal/logging"
	"github.com/aretw0/wayfarer/pkg/domain"
	"github.com/aretw0/wayfarer/pkg/ports"
)

// Offline never generates. Responders answer from their fallback tables.
type Offline struct{}

// Generate always reports the backend as unavailable.
func (Offline) Generate(context.Context, ports.GenerateRequest) (string, error) {
	return "", fmt.Errorf("offline: %w", domain.ErrGatewayUnavailable)
}

// Retry re-attempts unavailable or invalid completions while the request
// budget leaves room. Timeouts are never retried.
type Retry struct {
	next         ports.Gateway
	retries      int
	tempStep     float64
	backoff      time.Duration
	minRemaining time.Duration
	logger       *slog.Logger
}

// RetryOption configures Retry.
type RetryOption func(*Retry)

// WithTemperatureStep varies the temperature by step on each retry.
func WithTemperatureStep(step float64) RetryOption {
	return func(r *Retry) {
		r.tempStep = step
	}
}

// WithBackoff waits d between attempts.
func WithBackoff(d time.Duration) RetryOption {
	return func(r *Retry) {
		r.backoff = d
	}
}

// WithMinRemaining skips a retry when less than d of the budget is left.
func WithMinRemaining(d time.Duration) RetryOption {
	return func(r *Retry) {
		r.minRemaining = d
	}
}

// WithRetryLogger configures a logger for Retry.
func WithRetryLogger(logger *slog.Logger) RetryOption {
	return func(r *Retry) {
		r.logger = logger
	}
}

// NewRetry wraps next with up to retries additional attempts.
func NewRetry(next ports.Gateway, retries int, opts ...RetryOption) *Retry {
	r := &Retry{
		next:         next,
		retries:      retries,
		tempStep:     0.1,
		backoff:      50 * time.Millisecond,
		minRemaining: 250 * time.Millisecond,
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Generate implements ports.Gateway.
func (r *Retry) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	ctx, cancel := bound(ctx, req.Timeout)
	defer cancel()

	baseTemp := req.Temperature
	var lastErr error
	for attempt := 0; attempt <= r.retries; attempt++ {
		if attempt > 0 {
			if !r.roomFor(ctx) {
				break
			}
			select {
			case <-time.After(r.backoff):
			case <-ctx.Done():
				return "", classify(ctx, "retry", ctx.Err())
			}
			req.Temperature = math.Min(baseTemp+float64(attempt)*r.tempStep, 2)
			r.logger.Debug("Retrying generation", "attempt", attempt, "temperature", req.Temperature, "err", lastErr)
		}
		if dl, ok := ctx.Deadline(); ok {
			req.Timeout = time.Until(dl)
		}

		text, err := r.next.Generate(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if errors.Is(err, domain.ErrGatewayTimeout) || ctx.Err() != nil {
			return "", classify(ctx, "retry", err)
		}
	}
	return "", lastErr
}

func (r *Retry) roomFor(ctx context.Context) bool {
	dl, ok := ctx.Deadline()
	if !ok {
		return true
	}
	return time.Until(dl) >= r.backoff+r.minRemaining
}

// Failover sends a request to secondary when primary is unavailable.
type Failover struct {
	primary, secondary ports.Gateway
	logger             *slog.Logger
}

// NewFailover creates a Failover gateway.
func NewFailover(primary, secondary ports.Gateway, logger *slog.Logger) *Failover {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Failover{primary: primary, secondary: secondary, logger: logger}
}

// Generate implements ports.Gateway.
func (f *Failover) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	ctx, cancel := bound(ctx, req.Timeout)
	defer cancel()

	text, err := f.primary.Generate(ctx, req)
	if err == nil || !errors.Is(err, domain.ErrGatewayUnavailable) {
		return text, err
	}
	if ctx.Err() != nil {
		return "", classify(ctx, "failover", ctx.Err())
	}

	f.logger.Debug("Primary gateway unavailable, using secondary", "err", err)
	if dl, ok := ctx.Deadline(); ok {
		req.Timeout = time.Until(dl)
	}
	return f.secondary.Generate(ctx, req)
}
