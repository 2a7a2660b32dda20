package wayfarer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/aretw0/wayfarer/internal/logging"
	"github.com/aretw0/wayfarer/internal/runtime"
	"github.com/aretw0/wayfarer/pkg/adapters/memory"
	"github.com/aretw0/wayfarer/pkg/domain"
	"github.com/aretw0/wayfarer/pkg/gateway"
	"github.com/aretw0/wayfarer/pkg/ports"
	"github.com/aretw0/wayfarer/pkg/registry"
	"github.com/aretw0/wayfarer/pkg/responder"
	"github.com/aretw0/wayfarer/pkg/router"
	"github.com/aretw0/wayfarer/pkg/session"
	"github.com/aretw0/wayfarer/pkg/synth"
)

// ErrNilEngine is returned by methods called on a nil *Engine.
var ErrNilEngine = errors.New("wayfarer: nil engine")

// Engine is the high-level entry point for the Wayfarer library.
// It owns the capability registry, the router and the turn orchestrator.
// An Engine is safe for concurrent use.
type Engine struct {
	registry   *registry.Registry
	router     *router.Router
	cache      *router.Cache
	responders map[string]responder.Responder
	sessions   *session.Manager
	orch       *runtime.Orchestrator
	profiles   map[string]domain.SLAProfile
	logger     *slog.Logger

	source      ports.CapabilitySource
	gateway     ports.Gateway
	store       ports.SessionStore
	locker      ports.DistributedLocker
	lockTTL     time.Duration
	routerCfg   router.Config
	cacheSize   int
	refine      bool
	hooks       domain.LifecycleHooks
	serialize   bool
	maxParallel int
	synthOpts   []synth.Option
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithCapabilitySource replaces the embedded travel catalogue.
func WithCapabilitySource(src ports.CapabilitySource) Option {
	return func(e *Engine) {
		e.source = src
	}
}

// WithGateway sets the text generation backend (default: a local Ollama).
func WithGateway(gw ports.Gateway) Option {
	return func(e *Engine) {
		e.gateway = gw
	}
}

// WithStore sets the session store (default: in-memory).
func WithStore(store ports.SessionStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLocker enables distributed session locks, held for at most ttl.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(e *Engine) {
		e.locker = locker
		e.lockTTL = ttl
	}
}

// WithProfiles adds or overrides SLA profiles by name.
func WithProfiles(profiles ...domain.SLAProfile) Option {
	return func(e *Engine) {
		for _, p := range profiles {
			e.profiles[p.Name] = p
		}
	}
}

// WithRouterConfig overrides the scoring constants.
func WithRouterConfig(cfg router.Config) Option {
	return func(e *Engine) {
		e.routerCfg = cfg
	}
}

// WithCacheSize sets the routing cache capacity. A negative size disables the cache.
func WithCacheSize(n int) Option {
	return func(e *Engine) {
		e.cacheSize = n
	}
}

// WithRefinement lets matched responders adjust their score with their own
// relevance cues. Routing is not cached while refinement is on.
func WithRefinement() Option {
	return func(e *Engine) {
		e.refine = true
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithSerializedSessions holds the session lock for the whole turn.
func WithSerializedSessions() Option {
	return func(e *Engine) {
		e.serialize = true
	}
}

// WithMaxParallel bounds how many responders of one turn run at once.
func WithMaxParallel(n int) Option {
	return func(e *Engine) {
		e.maxParallel = n
	}
}

// WithSynthOptions tunes reply composition.
func WithSynthOptions(opts ...synth.Option) Option {
	return func(e *Engine) {
		e.synthOpts = append(e.synthOpts, opts...)
	}
}

// New loads and validates the capability catalogue and wires the turn pipeline.
// It fails only with a *domain.ConfigError or an invalid option.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		profiles:  domain.DefaultProfiles(),
		routerCfg: router.DefaultConfig(),
		lockTTL:   session.DefaultLockTTL,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.source == nil {
		e.source = registry.DefaultSource()
	}
	if e.gateway == nil {
		e.gateway = gateway.NewOllama()
	}
	if e.store == nil {
		e.store = memory.NewStore()
	}
	for name, p := range e.profiles {
		if p.Name != name {
			return nil, fmt.Errorf("sla profile registered as %q is named %q", name, p.Name)
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}

	reg, err := registry.Load(context.Background(), e.source)
	if err != nil {
		return nil, err
	}
	e.registry = reg

	e.responders, err = responder.Build(reg.All())
	if err != nil {
		return nil, err
	}

	routerOpts := []router.Option{
		router.WithConfig(e.routerCfg),
		router.WithLogger(e.logger),
	}
	if e.cacheSize >= 0 {
		e.cache, err = router.NewCache(e.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create routing cache: %w", err)
		}
		routerOpts = append(routerOpts, router.WithCache(e.cache))
	}
	if e.hooks.OnCacheLookup != nil {
		routerOpts = append(routerOpts, router.WithCacheObserver(func(hit bool) {
			e.hooks.OnCacheLookup(context.Background(), &domain.CacheEvent{Hit: hit})
		}))
	}
	if e.refine {
		routerOpts = append(routerOpts, router.WithRefiner(func(id, utterance string, prior *domain.SessionSnapshot) float64 {
			if r, ok := e.responders[id]; ok {
				return r.Relevance(utterance, prior)
			}
			return 0
		}))
	}
	e.router, err = router.New(reg.All(), reg.Default().ID, routerOpts...)
	if err != nil {
		return nil, err
	}

	sessionOpts := []session.Option{session.WithLogger(e.logger), session.WithLockTTL(e.lockTTL)}
	if e.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(e.locker))
	}
	e.sessions = session.NewManager(e.store, sessionOpts...)

	labels := make(map[string]string, reg.Len())
	for _, d := range reg.All() {
		labels[d.ID] = d.Label()
	}
	synthOpts := append([]synth.Option{synth.WithLabels(labels)}, e.synthOpts...)

	orchOpts := []runtime.Option{
		runtime.WithLogger(e.logger),
		runtime.WithLifecycleHooks(e.hooks),
		runtime.WithSynthesizer(synth.New(synthOpts...)),
		runtime.WithMaxParallel(e.maxParallel),
	}
	if e.serialize {
		orchOpts = append(orchOpts, runtime.WithSerializedSessions())
	}
	e.orch = runtime.NewOrchestrator(e.router, e.responders, e.gateway, e.sessions, orchOpts...)

	e.logger.Debug("Engine ready", "source", reg.Source(), "responders", reg.IDs(), "default_id", reg.Default().ID)
	return e, nil
}

// Profile resolves an SLA profile by name. An empty name selects "interactive".
func (e *Engine) Profile(name string) (domain.SLAProfile, error) {
	if e == nil {
		return domain.SLAProfile{}, ErrNilEngine
	}
	if name == "" {
		name = domain.ProfileInteractive
	}
	p, ok := e.profiles[name]
	if !ok {
		return domain.SLAProfile{}, fmt.Errorf("%w: %q", domain.ErrUnknownProfile, name)
	}
	return p, nil
}

// Profiles returns the configured SLA profiles ordered by budget.
func (e *Engine) Profiles() []domain.SLAProfile {
	out := make([]domain.SLAProfile, 0, len(e.profiles))
	for _, p := range e.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Budget != out[j].Budget {
			return out[i].Budget < out[j].Budget
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// RunTurn answers one utterance within the profile's latency budget.
//
// It returns an error only when the turn cannot start (nil engine, unknown
// profile). Faults during the turn degrade the reply instead: the result is
// always populated and its reply is never empty.
func (e *Engine) RunTurn(ctx context.Context, utterance, sessionKey, profile string) (*domain.TurnResult, error) {
	p, err := e.Profile(profile)
	if err != nil {
		return nil, err
	}
	return e.orch.Run(ctx, runtime.TurnRequest{
		Utterance:  utterance,
		SessionKey: sessionKey,
		Profile:    p,
	}), nil
}

// Route is a dry run of the routing step: no responder runs and nothing is persisted.
func (e *Engine) Route(ctx context.Context, utterance, sessionKey, profile string) (domain.RoutingDecision, error) {
	p, err := e.Profile(profile)
	if err != nil {
		return domain.RoutingDecision{}, err
	}

	prior := domain.NewSessionSnapshot()
	if sessionKey != "" && !p.SkipSessionRead {
		snap, err := e.sessions.Get(ctx, sessionKey)
		if err != nil {
			e.logger.Warn("Session read failed, routing without context", "session_key", sessionKey, "err", err)
		} else {
			prior = snap
		}
	}

	return e.router.Route(router.Request{
		Utterance:   utterance,
		Prior:       prior,
		Limit:       p.Limit,
		ExpandHints: p.ExpandHints,
	}), nil
}

// Explain returns the score breakdown of every responder for utterance.
func (e *Engine) Explain(ctx context.Context, utterance, sessionKey string) ([]router.Explanation, error) {
	if e == nil {
		return nil, ErrNilEngine
	}
	prior := domain.NewSessionSnapshot()
	if sessionKey != "" {
		if snap, err := e.sessions.Get(ctx, sessionKey); err == nil {
			prior = snap
		}
	}
	return e.router.Explain(utterance, prior), nil
}

// Capabilities returns the registered responders in catalogue order.
func (e *Engine) Capabilities() []domain.CapabilityDescriptor {
	return e.registry.All()
}

// Session returns the stored context of a session.
// Returns domain.ErrSessionNotFound for unknown keys.
func (e *Engine) Session(ctx context.Context, key string) (*domain.SessionSnapshot, error) {
	if e == nil {
		return nil, ErrNilEngine
	}
	return e.store.Get(ctx, key)
}

// ResetSession forgets a session.
func (e *Engine) ResetSession(ctx context.Context, key string) error {
	if e == nil {
		return ErrNilEngine
	}
	return e.sessions.Delete(ctx, key)
}

// ListSessions returns the keys of live sessions.
func (e *Engine) ListSessions(ctx context.Context) ([]string, error) {
	if e == nil {
		return nil, ErrNilEngine
	}
	return e.sessions.List(ctx)
}

// Close releases the session store if it holds resources.
func (e *Engine) Close() error {
	if e == nil {
		return nil
	}
	if c, ok := e.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
