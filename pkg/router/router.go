package router

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/aretw0/wayfarer/internal/logging"
	"github.com/aretw0/wayfarer/pkg/domain"
)

// Config holds the scoring constants. They are tunable; the defaults are empirical.
type Config struct {
	ExactWeight     float64 `json:"exact_weight" mapstructure:"exact_weight"`
	PartialWeight   float64 `json:"partial_weight" mapstructure:"partial_weight"`
	PatternWeight   float64 `json:"pattern_weight" mapstructure:"pattern_weight"`
	ContinuityBonus float64 `json:"continuity_bonus" mapstructure:"continuity_bonus"`

	// MinRelevance is the floor below which the default responder is forced.
	MinRelevance float64 `json:"min_relevance" mapstructure:"min_relevance"`
}

// DefaultConfig returns the standard scoring constants.
func DefaultConfig() Config {
	return Config{
		ExactWeight:     3.0,
		PartialWeight:   1.5,
		PatternWeight:   2.0,
		ContinuityBonus: 0.5,
		MinRelevance:    1.0,
	}
}

func (c Config) validate() error {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"exact_weight", c.ExactWeight},
		{"partial_weight", c.PartialWeight},
		{"pattern_weight", c.PatternWeight},
		{"continuity_bonus", c.ContinuityBonus},
		{"min_relevance", c.MinRelevance},
	} {
		if f.value < 0 {
			return fmt.Errorf("router: %s must not be negative, got %v", f.name, f.value)
		}
	}
	return nil
}

// Refiner adds a secondary relevance signal for a responder that already matched.
// It must be pure: the same inputs always give the same value.
type Refiner func(id, utterance string, prior *domain.SessionSnapshot) float64

// Request carries the inputs of one routing decision.
type Request struct {
	Utterance   string
	Prior       *domain.SessionSnapshot
	Limit       int
	ExpandHints bool
}

// Explanation breaks a score down for diagnostics.
type Explanation struct {
	ID       string   `json:"id"`
	Score    float64  `json:"score"`
	Exact    []string `json:"exact,omitempty"`
	Partial  []string `json:"partial,omitempty"`
	Patterns []string `json:"patterns,omitempty"`
	Priority float64  `json:"priority,omitempty"`
	Carry    float64  `json:"continuity,omitempty"`
	Refined  float64  `json:"refined,omitempty"`
}

// Matched reports whether any keyword or pattern hit.
func (e Explanation) Matched() bool {
	return len(e.Exact)+len(e.Partial)+len(e.Patterns) > 0
}

type candidate struct {
	desc     domain.CapabilityDescriptor
	keywords []string
	patterns []*regexp.Regexp
}

// Router scores registered responders against an utterance.
// Route is a pure function of its inputs; the optional cache only shortcuts it.
type Router struct {
	candidates []candidate
	byID       map[string]int
	defaultID  string
	cfg        Config
	cache      *Cache
	refiner    Refiner
	observe    func(hit bool)
	logger     *slog.Logger
}

// Option configures the Router.
type Option func(*Router)

// WithConfig replaces the scoring constants.
func WithConfig(cfg Config) Option {
	return func(r *Router) {
		r.cfg = cfg
	}
}

// WithCache fronts the router with a decision cache.
func WithCache(c *Cache) Option {
	return func(r *Router) {
		r.cache = c
	}
}

// WithRefiner enables responder-level relevance refinement.
// Decisions that depend on a refiner are never cached, since a refiner may read
// parts of the prior context the cache key does not cover.
func WithRefiner(fn Refiner) Option {
	return func(r *Router) {
		r.refiner = fn
	}
}

// WithCacheObserver is called with the outcome of every cache lookup.
func WithCacheObserver(fn func(hit bool)) Option {
	return func(r *Router) {
		r.observe = fn
	}
}

// WithLogger configures a logger for the Router.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

// New builds a router over descriptors. defaultID must be one of them.
func New(descriptors []domain.CapabilityDescriptor, defaultID string, opts ...Option) (*Router, error) {
	r := &Router{
		byID:      make(map[string]int, len(descriptors)),
		defaultID: defaultID,
		cfg:       DefaultConfig(),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.cfg.validate(); err != nil {
		return nil, err
	}

	for _, d := range descriptors {
		c := candidate{desc: d}
		for _, kw := range d.Keywords {
			if n := Normalize(kw); n != "" {
				c.keywords = append(c.keywords, n)
			}
		}
		for _, p := range d.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("router: responder %q pattern %q: %w", d.ID, p, err)
			}
			c.patterns = append(c.patterns, re)
		}
		r.byID[d.ID] = len(r.candidates)
		r.candidates = append(r.candidates, c)
	}

	if _, ok := r.byID[defaultID]; !ok {
		return nil, fmt.Errorf("router: default responder %q: %w", defaultID, domain.ErrCapabilityNotFound)
	}
	return r, nil
}

// DefaultID returns the responder forced by the relevance floor.
func (r *Router) DefaultID() string {
	return r.defaultID
}

// Route maps an utterance and prior context to an ordered selection.
func (r *Router) Route(req Request) domain.RoutingDecision {
	limit := req.Limit
	if limit < 1 {
		limit = 1
	}
	normalized := Normalize(req.Utterance)

	useCache := r.cache != nil && r.refiner == nil
	var key string
	if useCache {
		var active []string
		if req.Prior != nil {
			active = req.Prior.ActiveResponderIDs
		}
		key = cacheKey(normalized, active, limit, req.ExpandHints)
		if d, ok := r.cache.get(key); ok {
			r.notify(true)
			d.Cached = true
			return d
		}
		r.notify(false)
	}

	d := r.decide(normalized, req.Utterance, req.Prior, limit, req.ExpandHints)
	r.logger.Debug("Routing decided", "selected", d.IDs(), "forced", d.Forced)
	if useCache {
		r.cache.add(key, d)
	}
	return d
}

func (r *Router) notify(hit bool) {
	if r.observe != nil {
		r.observe(hit)
	}
}

func (r *Router) decide(normalized, utterance string, prior *domain.SessionSnapshot, limit int, expand bool) domain.RoutingDecision {
	explanations := r.explain(normalized, utterance, prior)

	var scored []domain.ScoredResponder
	defaultScore := 0.0
	for _, e := range explanations {
		if e.ID == r.defaultID {
			defaultScore = e.Score
		}
		if e.Matched() {
			scored = append(scored, domain.ScoredResponder{ID: e.ID, Score: e.Score})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ID < scored[j].ID
	})

	if len(scored) == 0 || scored[0].Score < r.cfg.MinRelevance {
		return domain.RoutingDecision{
			Entries: []domain.ScoredResponder{{ID: r.defaultID, Score: defaultScore}},
			Forced:  true,
		}
	}

	if len(scored) > limit {
		scored = scored[:limit]
	}
	if expand {
		scored = r.expandHints(scored, limit)
	}
	return domain.RoutingDecision{Entries: scored}
}

// expandHints fills free slots with downstream hints of the selected
// responders, walking the selection in order. Hinted entries score zero.
func (r *Router) expandHints(selected []domain.ScoredResponder, limit int) []domain.ScoredResponder {
	taken := make(map[string]bool, limit)
	for _, s := range selected {
		taken[s.ID] = true
	}
	for i := 0; i < len(selected) && len(selected) < limit; i++ {
		c := r.candidates[r.byID[selected[i].ID]]
		for _, hint := range c.desc.DownstreamHint {
			if len(selected) >= limit {
				break
			}
			if _, known := r.byID[hint]; !known || taken[hint] {
				continue
			}
			taken[hint] = true
			selected = append(selected, domain.ScoredResponder{ID: hint, Score: 0})
		}
	}
	return selected
}

// Explain scores every responder in catalogue order without selecting any.
func (r *Router) Explain(utterance string, prior *domain.SessionSnapshot) []Explanation {
	return r.explain(Normalize(utterance), utterance, prior)
}

func (r *Router) explain(normalized, utterance string, prior *domain.SessionSnapshot) []Explanation {
	tokens := make(map[string]bool)
	for _, t := range Tokens(normalized) {
		tokens[t] = true
	}
	padded := " " + normalized + " "

	out := make([]Explanation, 0, len(r.candidates))
	for _, c := range r.candidates {
		e := Explanation{ID: c.desc.ID}
		if normalized != "" {
			for _, kw := range c.keywords {
				switch {
				case isExact(kw, tokens, padded):
					e.Exact = append(e.Exact, kw)
				case strings.Contains(normalized, kw):
					e.Partial = append(e.Partial, kw)
				}
			}
			for _, re := range c.patterns {
				if re.MatchString(normalized) {
					e.Patterns = append(e.Patterns, re.String())
				}
			}
		}

		e.Score = float64(len(e.Exact))*r.cfg.ExactWeight +
			float64(len(e.Partial))*r.cfg.PartialWeight +
			float64(len(e.Patterns))*r.cfg.PatternWeight

		// Bonuses only lift responders the utterance actually touched.
		if e.Matched() {
			if c.desc.HighPriority {
				e.Priority = c.desc.PriorityWeight
			}
			if prior.IsActive(c.desc.ID) {
				e.Carry = r.cfg.ContinuityBonus
			}
			if r.refiner != nil {
				e.Refined = r.refiner(c.desc.ID, utterance, prior)
			}
			e.Score += e.Priority + e.Carry + e.Refined
		}
		out = append(out, e)
	}
	return out
}

// isExact matches single-word keywords against the token set and phrases
// against whole-token boundaries.
func isExact(kw string, tokens map[string]bool, padded string) bool {
	if !strings.Contains(kw, " ") {
		return tokens[kw]
	}
	return strings.Contains(padded, " "+kw+" ")
}
