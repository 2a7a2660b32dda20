package domain

import (
	"context"
	"time"
)

// PhaseEvent is emitted on every state machine transition of a turn.
type PhaseEvent struct {
	TurnID     string    `json:"turn_id"`
	SessionKey string    `json:"session_key,omitempty"`
	From       Phase     `json:"from"`
	To         Phase     `json:"to"`
	Timestamp  time.Time `json:"timestamp"`
}

// ResponderEvent is emitted once per selected responder, when its outcome is recorded.
type ResponderEvent struct {
	TurnID      string        `json:"turn_id"`
	ResponderID string        `json:"responder_id"`
	Kind        OutcomeKind   `json:"kind"`
	ErrorKind   ErrorKind     `json:"error_kind,omitempty"`
	Latency     time.Duration `json:"latency"`
	Abandoned   bool          `json:"abandoned,omitempty"`
}

// TurnEvent is emitted when a turn returns to its caller.
type TurnEvent struct {
	TurnID       string        `json:"turn_id"`
	SessionKey   string        `json:"session_key,omitempty"`
	Profile      string        `json:"profile"`
	Selected     []string      `json:"selected"`
	Contributors []string      `json:"contributors"`
	Latency      time.Duration `json:"latency"`
	UsedFallback bool          `json:"used_fallback"`
}

// AnomalyEvent is emitted when routing yielded no runnable responder and the
// default was forced in its place.
type AnomalyEvent struct {
	TurnID    string `json:"turn_id"`
	Utterance string `json:"utterance"`
	DefaultID string `json:"default_id"`
}

// CacheEvent reports a routing cache lookup.
type CacheEvent struct {
	Hit bool `json:"hit"`
}

// LifecycleHooks defines callbacks for engine observability.
// Every field is optional.
type LifecycleHooks struct {
	OnPhase          func(context.Context, *PhaseEvent)
	OnResponderDone  func(context.Context, *ResponderEvent)
	OnTurnComplete   func(context.Context, *TurnEvent)
	OnRoutingAnomaly func(context.Context, *AnomalyEvent)
	OnCacheLookup    func(context.Context, *CacheEvent)
}

// ComposeHooks fans every event out to each of the given hook sets, in order.
func ComposeHooks(sets ...LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnPhase: func(ctx context.Context, e *PhaseEvent) {
			for _, h := range sets {
				if h.OnPhase != nil {
					h.OnPhase(ctx, e)
				}
			}
		},
		OnResponderDone: func(ctx context.Context, e *ResponderEvent) {
			for _, h := range sets {
				if h.OnResponderDone != nil {
					h.OnResponderDone(ctx, e)
				}
			}
		},
		OnTurnComplete: func(ctx context.Context, e *TurnEvent) {
			for _, h := range sets {
				if h.OnTurnComplete != nil {
					h.OnTurnComplete(ctx, e)
				}
			}
		},
		OnRoutingAnomaly: func(ctx context.Context, e *AnomalyEvent) {
			for _, h := range sets {
				if h.OnRoutingAnomaly != nil {
					h.OnRoutingAnomaly(ctx, e)
				}
			}
		},
		OnCacheLookup: func(ctx context.Context, e *CacheEvent) {
			for _, h := range sets {
				if h.OnCacheLookup != nil {
					h.OnCacheLookup(ctx, e)
				}
			}
		},
	}
}
