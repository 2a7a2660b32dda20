package observability

import (
	"context"
	"net/http"
	"strconv"

	"github.com/aretw0/wayfarer/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	gatherer prometheus.Gatherer

	Turns             *prometheus.CounterVec
	TurnDuration      *prometheus.HistogramVec
	ResponderOutcomes *prometheus.CounterVec
	ResponderDuration *prometheus.HistogramVec
	CacheLookups      *prometheus.CounterVec
	RoutingAnomalies  prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg uses a fresh registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		gatherer: reg,
		Turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wayfarer_turns_total",
				Help: "Total number of completed turns",
			},
			[]string{"profile", "fallback"},
		),
		TurnDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wayfarer_turn_duration_seconds",
				Help:    "Wall time of a turn, from start to reply",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"profile"},
		),
		ResponderOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wayfarer_responder_outcomes_total",
				Help: "Responder outcomes by kind",
			},
			[]string{"responder_id", "kind"},
		),
		ResponderDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wayfarer_responder_duration_seconds",
				Help:    "Time a responder took to produce its outcome",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"responder_id"},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wayfarer_routing_cache_lookups_total",
				Help: "Routing cache lookups by result",
			},
			[]string{"result"},
		),
		RoutingAnomalies: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "wayfarer_routing_anomalies_total",
				Help: "Turns where routing produced no runnable responder",
			},
		),
	}
	reg.MustRegister(m.Turns, m.TurnDuration, m.ResponderOutcomes, m.ResponderDuration, m.CacheLookups, m.RoutingAnomalies)
	return m
}

// Hooks returns lifecycle hooks that record into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnResponderDone: func(_ context.Context, e *domain.ResponderEvent) {
			m.ResponderOutcomes.WithLabelValues(e.ResponderID, string(e.Kind)).Inc()
			m.ResponderDuration.WithLabelValues(e.ResponderID).Observe(e.Latency.Seconds())
		},
		OnTurnComplete: func(_ context.Context, e *domain.TurnEvent) {
			m.Turns.WithLabelValues(e.Profile, strconv.FormatBool(e.UsedFallback)).Inc()
			m.TurnDuration.WithLabelValues(e.Profile).Observe(e.Latency.Seconds())
		},
		OnRoutingAnomaly: func(context.Context, *domain.AnomalyEvent) {
			m.RoutingAnomalies.Inc()
		},
		OnCacheLookup: func(_ context.Context, e *domain.CacheEvent) {
			result := "miss"
			if e.Hit {
				result = "hit"
			}
			m.CacheLookups.WithLabelValues(result).Inc()
		},
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
