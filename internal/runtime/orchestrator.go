package runtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/wayfarer/internal/logging"
	"github.com/aretw0/wayfarer/pkg/domain"
	"github.com/aretw0/wayfarer/pkg/ports"
	"github.com/aretw0/wayfarer/pkg/responder"
	"github.com/aretw0/wayfarer/pkg/router"
	"github.com/aretw0/wayfarer/pkg/session"
	"github.com/aretw0/wayfarer/pkg/synth"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

const (
	// DefaultPersistGrace bounds the session write that follows a turn.
	DefaultPersistGrace = 250 * time.Millisecond

	recentContextTurns = 5
	recentContextChars = 100
)

// TurnRequest is the input of one turn.
type TurnRequest struct {
	Utterance  string
	SessionKey string
	Profile    domain.SLAProfile
}

// Orchestrator drives a turn through routing, concurrent execution and synthesis.
// It is safe for concurrent use; every turn owns its TurnState exclusively.
type Orchestrator struct {
	router     *router.Router
	responders map[string]responder.Responder
	gateway    ports.Gateway
	sessions   *session.Manager
	synth      *synth.Synthesizer

	hooks        domain.LifecycleHooks
	logger       *slog.Logger
	maxParallel  int64
	serialize    bool
	persistGrace time.Duration
	newID        func() string
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(o *Orchestrator) {
		o.hooks = hooks
	}
}

// WithLogger configures a logger for the Orchestrator.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithSynthesizer replaces the default synthesizer.
func WithSynthesizer(s *synth.Synthesizer) Option {
	return func(o *Orchestrator) {
		o.synth = s
	}
}

// WithMaxParallel bounds how many responders of one turn run at once.
// Zero or less means every selected responder runs at once.
func WithMaxParallel(n int) Option {
	return func(o *Orchestrator) {
		o.maxParallel = int64(n)
	}
}

// WithSerializedSessions holds the session lock for the whole turn, so two
// turns on the same key never interleave. A turn that cannot get the lock
// before its deadline runs without prior context and is not persisted.
func WithSerializedSessions() Option {
	return func(o *Orchestrator) {
		o.serialize = true
	}
}

// WithPersistGrace bounds the session write after synthesis.
func WithPersistGrace(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.persistGrace = d
	}
}

// WithIDGenerator replaces the turn id generator.
func WithIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) {
		o.newID = fn
	}
}

// NewOrchestrator wires a turn pipeline. sessions may be nil for stateless turns.
func NewOrchestrator(rt *router.Router, responders map[string]responder.Responder, gw ports.Gateway, sessions *session.Manager, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		router:       rt,
		responders:   responders,
		gateway:      gw,
		sessions:     sessions,
		synth:        synth.New(),
		logger:       logging.NewNop(),
		persistGrace: DefaultPersistGrace,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type completion struct {
	id      string
	outcome domain.Outcome
	latency time.Duration
}

// Run executes one turn. It always returns a populated result: store, gateway
// and responder faults degrade the reply instead of failing the turn.
func (o *Orchestrator) Run(ctx context.Context, req TurnRequest) *domain.TurnResult {
	start := time.Now()
	state := domain.NewTurnState(o.newID(), req.SessionKey, req.Utterance, req.Profile, start)
	logger := o.logger.With("turn_id", state.ID, "session_key", req.SessionKey, "profile", req.Profile.Name)

	turnCtx, cancel := context.WithDeadline(ctx, state.Deadline)
	defer cancel()

	persist := o.sessions != nil && req.SessionKey != ""
	if persist && o.serialize {
		unlock, err := o.sessions.Lock(turnCtx, req.SessionKey)
		if err != nil {
			logger.Warn("Session busy, running turn without context", "err", err)
			persist = false
		} else {
			defer unlock()
		}
	}

	// Idle -> Routing
	o.transition(ctx, state, domain.PhaseRouting)
	prior := o.loadPrior(turnCtx, req, persist, logger)
	state.PriorContext = prior

	decision := o.route(ctx, state, prior, logger)
	if err := state.Select(decision.IDs()); err != nil {
		logger.Error("Selecting responders failed", "err", err)
	}

	// Routing -> Executing
	o.transition(ctx, state, domain.PhaseExecuting)
	o.execute(turnCtx, state, prior, logger)

	if state.AnySucceeded() {
		o.transition(ctx, state, domain.PhaseSynthesizing)
	}
	res := o.synth.Synthesize(state.Selected, state.Results, prior.AccumulatedProfile)
	o.transition(ctx, state, domain.PhaseCompleted)

	if persist {
		o.persist(ctx, state, res, logger)
	}

	result := &domain.TurnResult{
		TurnID:                   state.ID,
		Reply:                    res.Reply,
		ContributingResponderIDs: res.Contributors,
		LatencyMs:                time.Since(start).Milliseconds(),
		UsedFallback:             res.UsedFallback,
		Profile:                  req.Profile.Name,
		Routing:                  decision,
		Outcomes:                 make([]domain.OutcomeSummary, 0, len(state.Selected)),
	}
	for _, id := range state.Selected {
		result.Outcomes = append(result.Outcomes, domain.Summarize(id, state.Results[id]))
	}

	if o.hooks.OnTurnComplete != nil {
		o.hooks.OnTurnComplete(ctx, &domain.TurnEvent{
			TurnID:       state.ID,
			SessionKey:   req.SessionKey,
			Profile:      req.Profile.Name,
			Selected:     state.Selected,
			Contributors: res.Contributors,
			Latency:      time.Since(start),
			UsedFallback: res.UsedFallback,
		})
	}
	logger.Debug("Turn completed", "latency_ms", result.LatencyMs, "contributors", res.Contributors, "used_fallback", res.UsedFallback)
	return result
}

func (o *Orchestrator) loadPrior(ctx context.Context, req TurnRequest, persist bool, logger *slog.Logger) *domain.SessionSnapshot {
	if !persist || req.Profile.SkipSessionRead {
		return domain.NewSessionSnapshot()
	}
	snap, err := o.sessions.Get(ctx, req.SessionKey)
	if err != nil {
		logger.Warn("Session read failed, continuing without context", "err", err)
		return domain.NewSessionSnapshot()
	}
	return snap
}

// route asks the router for a selection and forces the default responder if
// the decision is unusable.
func (o *Orchestrator) route(ctx context.Context, state *domain.TurnState, prior *domain.SessionSnapshot, logger *slog.Logger) domain.RoutingDecision {
	decision := o.router.Route(router.Request{
		Utterance:   state.Utterance,
		Prior:       prior,
		Limit:       state.Profile.Limit,
		ExpandHints: state.Profile.ExpandHints,
	})

	runnable := decision.Entries[:0:0]
	for _, e := range decision.Entries {
		if _, ok := o.responders[e.ID]; ok {
			runnable = append(runnable, e)
		}
	}
	if len(runnable) > 0 {
		decision.Entries = runnable
		return decision
	}

	defaultID := o.router.DefaultID()
	logger.Error("Routing produced no runnable responder, forcing default",
		"err", domain.ErrRoutingAnomaly, "selected", decision.IDs(), "default_id", defaultID)
	if o.hooks.OnRoutingAnomaly != nil {
		o.hooks.OnRoutingAnomaly(ctx, &domain.AnomalyEvent{TurnID: state.ID, Utterance: state.Utterance, DefaultID: defaultID})
	}
	return domain.RoutingDecision{Entries: []domain.ScoredResponder{{ID: defaultID}}, Forced: true}
}

// execute fans the selection out and collects outcomes until all are in or
// the turn deadline passes. Stragglers are abandoned, not awaited.
func (o *Orchestrator) execute(ctx context.Context, state *domain.TurnState, prior *domain.SessionSnapshot, logger *slog.Logger) {
	tc := responder.TurnContext{
		TurnID:           state.ID,
		Utterance:        state.Utterance,
		Profile:          state.Profile.Name,
		Temperature:      state.Profile.Temperature,
		MaxTokens:        state.Profile.MaxTokens,
		Selected:         append([]string(nil), state.Selected...),
		PriorProfile:     domain.MergeProfile(nil, prior.AccumulatedProfile),
		RecentUtterances: recent(prior),
	}

	width := o.maxParallel
	if width <= 0 || width > int64(len(state.Selected)) {
		width = int64(len(state.Selected))
	}
	sem := semaphore.NewWeighted(width)
	done := make(chan completion, len(state.Selected))

	for _, id := range state.Selected {
		r, ok := o.responders[id]
		if !ok {
			done <- completion{id: id, outcome: domain.Failed{ErrorKind: domain.ErrorInternal, Detail: "responder not registered"}}
			continue
		}
		go func(id string, r responder.Responder) {
			if err := sem.Acquire(ctx, 1); err != nil {
				// The deadline passed while queued; the collector records the timeout.
				return
			}
			defer sem.Release(1)
			began := time.Now()
			out := r.Process(ctx, tc, o.gateway, state.Deadline)
			done <- completion{id: id, outcome: out, latency: time.Since(began)}
		}(id, r)
	}

	timer := time.NewTimer(state.Remaining(time.Now()))
	defer timer.Stop()

collect:
	for len(state.Pending()) > 0 {
		select {
		case c := <-done:
			if state.Record(c.id, c.outcome) {
				o.responderDone(ctx, state.ID, c, false)
			}
		case <-timer.C:
			break collect
		case <-ctx.Done():
			break collect
		}
	}

	for _, id := range state.Pending() {
		out := domain.TimedOut{AfterMs: state.Profile.Budget.Milliseconds()}
		if r, ok := o.responders[id]; ok {
			out.Fallback = r.Fallback(state.Utterance)
		}
		state.Record(id, out)
		logger.Warn("Responder abandoned at deadline", "responder_id", id)
		o.responderDone(ctx, state.ID, completion{id: id, outcome: out, latency: state.Profile.Budget}, true)
	}
}

func (o *Orchestrator) responderDone(ctx context.Context, turnID string, c completion, abandoned bool) {
	if o.hooks.OnResponderDone == nil {
		return
	}
	ev := &domain.ResponderEvent{
		TurnID:      turnID,
		ResponderID: c.id,
		Kind:        c.outcome.Kind(),
		Latency:     c.latency,
		Abandoned:   abandoned,
	}
	if f, ok := c.outcome.(domain.Failed); ok {
		ev.ErrorKind = f.ErrorKind
	}
	o.hooks.OnResponderDone(ctx, ev)
}

// persist merges the turn into the session. It runs detached from the caller's
// cancellation, bounded by the grace period or the leftover budget.
func (o *Orchestrator) persist(ctx context.Context, state *domain.TurnState, res synth.Result, logger *slog.Logger) {
	grace := o.persistGrace
	if left := state.Remaining(time.Now()); left > grace {
		grace = left
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), grace)
	defer cancel()

	patch := domain.SessionPatch{
		ActiveResponderIDs: append([]string{}, state.Selected...),
		Profile:            res.ProfileUpdate,
		Turn: &domain.TurnRecord{
			TurnID:     state.ID,
			Utterance:  state.Utterance,
			Responders: res.Contributors,
			At:         state.StartTime,
		},
	}
	if _, err := o.sessions.Merge(writeCtx, state.SessionKey, patch); err != nil {
		logger.Warn("Session write failed, turn not persisted", "err", err)
	}
}

func (o *Orchestrator) transition(ctx context.Context, state *domain.TurnState, next domain.Phase) {
	from := state.Phase
	if err := state.Transition(next); err != nil {
		o.logger.Error("Phase transition rejected", "turn_id", state.ID, "err", err)
		return
	}
	if o.hooks.OnPhase != nil {
		o.hooks.OnPhase(ctx, &domain.PhaseEvent{
			TurnID:     state.ID,
			SessionKey: state.SessionKey,
			From:       from,
			To:         next,
			Timestamp:  time.Now(),
		})
	}
}

// recent returns the last utterances of the session, each cut to a short preview.
func recent(prior *domain.SessionSnapshot) []string {
	utterances := prior.RecentUtterances(recentContextTurns)
	for i, u := range utterances {
		if r := []rune(u); len(r) > recentContextChars {
			utterances[i] = string(r[:recentContextChars]) + "…"
		}
	}
	return utterances
}
