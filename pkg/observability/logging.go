package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/wayfarer/pkg/domain"
)

// LoggingHooks logs lifecycle events. Phases and responders log at debug,
// completed turns at info and routing anomalies at error.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnPhase: func(ctx context.Context, e *domain.PhaseEvent) {
			logger.DebugContext(ctx, "phase", "turn_id", e.TurnID, "from", e.From, "to", e.To)
		},
		OnResponderDone: func(ctx context.Context, e *domain.ResponderEvent) {
			logger.DebugContext(ctx, "responder_done",
				"turn_id", e.TurnID,
				"responder_id", e.ResponderID,
				"kind", e.Kind,
				"error_kind", e.ErrorKind,
				"latency_ms", e.Latency.Milliseconds(),
				"abandoned", e.Abandoned,
			)
		},
		OnTurnComplete: func(ctx context.Context, e *domain.TurnEvent) {
			logger.InfoContext(ctx, "turn_complete",
				"turn_id", e.TurnID,
				"session_key", e.SessionKey,
				"profile", e.Profile,
				"selected", e.Selected,
				"contributors", e.Contributors,
				"latency_ms", e.Latency.Milliseconds(),
				"used_fallback", e.UsedFallback,
			)
		},
		OnRoutingAnomaly: func(ctx context.Context, e *domain.AnomalyEvent) {
			logger.ErrorContext(ctx, "routing_anomaly", "turn_id", e.TurnID, "default_id", e.DefaultID)
		},
	}
}
