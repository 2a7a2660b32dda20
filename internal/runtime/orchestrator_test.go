package runtime_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/wayfarer/internal/runtime"
	"github.com/aretw0/wayfarer/pkg/adapters/memory"
	"github.com/aretw0/wayfarer/pkg/domain"
	"github.com/aretw0/wayfarer/pkg/ports"
	"github.com/aretw0/wayfarer/pkg/registry"
	"github.com/aretw0/wayfarer/pkg/responder"
	"github.com/aretw0/wayfarer/pkg/router"
	"github.com/aretw0/wayfarer/pkg/session"
	"github.com/aretw0/wayfarer/pkg/synth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// System prompt fragments that identify each built-in responder.
var promptMarkers = map[string]string{
	responder.TripAnalyzerID:  "travel planning specialist",
	responder.MoodDetectorID:  "empathetic travel companion",
	responder.CommsCoachID:    "communication coach",
	responder.BehaviorGuideID: "decision coach",
	responder.CalmPracticeID:  "calm, grounding presence",
	responder.SummarySynthID:  "synthesize travel conversations",
}

// fakeGateway answers "generated by <id>" after a per-responder delay.
type fakeGateway struct {
	delays    map[string]time.Duration
	delay     time.Duration
	err       error
	ignoreCtx bool

	mu          sync.Mutex
	calls       int
	inflight    int
	maxInflight int
	prompts     []string
}

func (g *fakeGateway) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	id := "unknown"
	for rid, marker := range promptMarkers {
		if strings.Contains(req.SystemPrompt, marker) {
			id = rid
		}
	}

	g.mu.Lock()
	g.calls++
	g.inflight++
	if g.inflight > g.maxInflight {
		g.maxInflight = g.inflight
	}
	g.prompts = append(g.prompts, req.Prompt)
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		g.inflight--
		g.mu.Unlock()
	}()

	delay := g.delay
	if d, ok := g.delays[id]; ok {
		delay = d
	}
	if delay > 0 {
		if g.ignoreCtx {
			time.Sleep(delay)
		} else {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", fmt.Errorf("fake: %w", domain.ErrGatewayTimeout)
			}
		}
	}
	if g.err != nil {
		return "", g.err
	}
	return "generated by " + id, nil
}

func (g *fakeGateway) stats() (calls, maxInflight int, prompts []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls, g.maxInflight, append([]string(nil), g.prompts...)
}

type brokenStore struct{}

var errDown = errors.New("store down")

func (brokenStore) Get(context.Context, string) (*domain.SessionSnapshot, error) { return nil, errDown }
func (brokenStore) Merge(context.Context, string, domain.SessionPatch) (*domain.SessionSnapshot, error) {
	return nil, errDown
}
func (brokenStore) Delete(context.Context, string) error   { return errDown }
func (brokenStore) List(context.Context) ([]string, error) { return nil, errDown }

type pipeline struct {
	orch       *runtime.Orchestrator
	responders map[string]responder.Responder
}

func newPipeline(t *testing.T, gw ports.Gateway, sessions *session.Manager, opts ...runtime.Option) pipeline {
	t.Helper()
	reg, err := registry.Load(context.Background(), registry.DefaultSource())
	require.NoError(t, err)
	rt, err := router.New(reg.All(), reg.Default().ID)
	require.NoError(t, err)
	rs, err := responder.Build(reg.All())
	require.NoError(t, err)
	return pipeline{
		orch:       runtime.NewOrchestrator(rt, rs, gw, sessions, opts...),
		responders: rs,
	}
}

func profile(name string, budget time.Duration) domain.SLAProfile {
	p := domain.DefaultProfiles()[name]
	if budget > 0 {
		p.Budget = budget
	}
	return p
}

func TestRun_RestoresSelectionOrder(t *testing.T) {
	// calm_practice is selected first but finishes last.
	gw := &fakeGateway{delays: map[string]time.Duration{
		responder.CalmPracticeID: 120 * time.Millisecond,
		responder.MoodDetectorID: 5 * time.Millisecond,
	}}
	p := newPipeline(t, gw, nil)

	res := p.orch.Run(context.Background(), runtime.TurnRequest{
		Utterance: "I'm anxious about flying",
		Profile:   profile(domain.ProfileInteractive, 2*time.Second),
	})

	assert.Equal(t, []string{responder.CalmPracticeID, responder.MoodDetectorID}, res.Routing.IDs())
	assert.Equal(t, []string{responder.CalmPracticeID, responder.MoodDetectorID}, res.ContributingResponderIDs)
	calm := strings.Index(res.Reply, "generated by calm_practice")
	mood := strings.Index(res.Reply, "generated by mood_detector")
	require.True(t, calm >= 0 && mood >= 0, res.Reply)
	assert.Less(t, calm, mood)
	assert.False(t, res.UsedFallback)
	assert.NotEmpty(t, res.TurnID)
	assert.Equal(t, domain.ProfileInteractive, res.Profile)
}

func TestRun_DeadlineRespected(t *testing.T) {
	// The gateway ignores cancellation and would take far longer than the budget.
	gw := &fakeGateway{delay: 3 * time.Second, ignoreCtx: true}
	p := newPipeline(t, gw, nil)
	budget := 150 * time.Millisecond

	start := time.Now()
	res := p.orch.Run(context.Background(), runtime.TurnRequest{
		Utterance: "I'm anxious about flying",
		Profile:   profile(domain.ProfileInteractive, budget),
	})
	elapsed := time.Since(start)

	assert.Less(t, elapsed, budget+300*time.Millisecond)
	assert.True(t, res.UsedFallback)
	assert.Equal(t, p.responders[responder.CalmPracticeID].Fallback("I'm anxious about flying"), res.Reply)
	assert.Equal(t, []string{responder.CalmPracticeID}, res.ContributingResponderIDs)
	for _, o := range res.Outcomes {
		assert.Equal(t, domain.OutcomeTimedOut, o.Kind)
		assert.Equal(t, budget.Milliseconds(), o.LatencyMs)
	}
}

func TestRun_GatewayAlwaysTimesOut(t *testing.T) {
	gw := &fakeGateway{err: fmt.Errorf("fake: %w", domain.ErrGatewayTimeout)}

	var phases []domain.Phase
	var mu sync.Mutex
	hooks := domain.LifecycleHooks{
		OnPhase: func(_ context.Context, e *domain.PhaseEvent) {
			mu.Lock()
			phases = append(phases, e.To)
			mu.Unlock()
		},
	}
	p := newPipeline(t, gw, nil, runtime.WithLifecycleHooks(hooks))

	for _, utterance := range []string{"plan a trip to Tokyo", "I'm anxious about flying", "what now?"} {
		mu.Lock()
		phases = nil
		mu.Unlock()

		res := p.orch.Run(context.Background(), runtime.TurnRequest{
			Utterance: utterance,
			Profile:   profile(domain.ProfileInteractive, time.Second),
		})

		assert.NotEmpty(t, res.Reply, utterance)
		assert.True(t, res.UsedFallback, utterance)
		for _, o := range res.Outcomes {
			assert.Equal(t, domain.OutcomeTimedOut, o.Kind)
		}
		mu.Lock()
		assert.Equal(t, []domain.Phase{domain.PhaseRouting, domain.PhaseExecuting, domain.PhaseCompleted}, phases,
			"synthesis is skipped as a phase when nothing succeeded")
		mu.Unlock()
	}
}

func TestRun_EmptyUtterance(t *testing.T) {
	gw := &fakeGateway{}
	p := newPipeline(t, gw, nil)

	for _, name := range []string{domain.ProfileFast, domain.ProfileInteractive, domain.ProfileDeep} {
		res := p.orch.Run(context.Background(), runtime.TurnRequest{Profile: profile(name, 0)})

		assert.Equal(t, []string{responder.TripAnalyzerID}, res.Routing.IDs(), name)
		assert.True(t, res.Routing.Forced)
		assert.Equal(t, p.responders[responder.TripAnalyzerID].Fallback(""), res.Reply)
		assert.True(t, res.UsedFallback)
	}
	calls, _, _ := gw.stats()
	assert.Zero(t, calls)
}

func TestRun_StoreFailuresAreRecovered(t *testing.T) {
	p := newPipeline(t, &fakeGateway{}, session.NewManager(brokenStore{}))

	res := p.orch.Run(context.Background(), runtime.TurnRequest{
		Utterance:  "how do I ask the hotel staff?",
		SessionKey: "broken",
		Profile:    profile(domain.ProfileInteractive, time.Second),
	})

	assert.Equal(t, "generated by comms_coach", res.Reply)
	assert.False(t, res.UsedFallback)
}

func TestRun_PersistsAndCarriesContext(t *testing.T) {
	store := memory.NewStore()
	gw := &fakeGateway{}
	p := newPipeline(t, gw, session.NewManager(store))
	ctx := context.Background()

	first := p.orch.Run(ctx, runtime.TurnRequest{
		Utterance:  "I'm nervous about my trip to Tokyo",
		SessionKey: "traveler-1",
		Profile:    profile(domain.ProfileInteractive, time.Second),
	})
	require.Equal(t, []string{responder.TripAnalyzerID, responder.CalmPracticeID, responder.MoodDetectorID}, first.Routing.IDs())

	snap, err := store.Get(ctx, "traveler-1")
	require.NoError(t, err)
	assert.Equal(t, first.Routing.IDs(), snap.ActiveResponderIDs)
	assert.Equal(t, 1, snap.TurnCount)
	assert.Equal(t, []any{"tokyo"}, snap.AccumulatedProfile["destinations_of_interest"])
	assert.Equal(t, map[string]any{
		"stress_indicators": []any{"nervous"},
		"confidence_level":  "low",
	}, snap.AccumulatedProfile["behavioral_notes"])

	second := p.orch.Run(ctx, runtime.TurnRequest{
		Utterance:  "what about the budget?",
		SessionKey: "traveler-1",
		Profile:    profile(domain.ProfileInteractive, time.Second),
	})
	require.Equal(t, responder.TripAnalyzerID, second.Routing.Entries[0].ID)
	assert.Equal(t, 3.5, second.Routing.Entries[0].Score, "continuity bonus from the previous turn")

	_, _, prompts := gw.stats()
	last := prompts[len(prompts)-1]
	assert.Contains(t, last, "I'm nervous about my trip to Tokyo")
	assert.Contains(t, last, "destinations_of_interest: tokyo")

	snap, err = store.Get(ctx, "traveler-1")
	require.NoError(t, err)
	assert.Equal(t, 2, snap.TurnCount)
	assert.Equal(t, true, snap.AccumulatedProfile["budget_focus"])
	assert.Equal(t, []any{"tokyo"}, snap.AccumulatedProfile["destinations_of_interest"], "earlier facts survive")
}

func TestRun_SerializedSessions(t *testing.T) {
	store := memory.NewStore()
	gw := &fakeGateway{delay: 20 * time.Millisecond}
	p := newPipeline(t, gw, session.NewManager(store), runtime.WithSerializedSessions())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.orch.Run(context.Background(), runtime.TurnRequest{
				Utterance:  "plan a trip",
				SessionKey: "shared",
				Profile:    profile(domain.ProfileFast, 2*time.Second),
			})
		}()
	}
	wg.Wait()

	_, maxInflight, _ := gw.stats()
	assert.Equal(t, 1, maxInflight, "turns on one session never overlap")

	snap, err := store.Get(context.Background(), "shared")
	require.NoError(t, err)
	assert.Equal(t, 4, snap.TurnCount)
}

func TestRun_MaxParallel(t *testing.T) {
	gw := &fakeGateway{delay: 10 * time.Millisecond}
	p := newPipeline(t, gw, nil, runtime.WithMaxParallel(1))

	res := p.orch.Run(context.Background(), runtime.TurnRequest{
		Utterance: "I'm anxious about flying",
		Profile:   profile(domain.ProfileDeep, 5*time.Second),
	})

	calls, maxInflight, _ := gw.stats()
	assert.Len(t, res.Routing.IDs(), 5)
	assert.Equal(t, 5, calls)
	assert.Equal(t, 1, maxInflight)
	assert.False(t, res.UsedFallback)
}

func TestRun_Hooks(t *testing.T) {
	var mu sync.Mutex
	var done []string
	var turns []*domain.TurnEvent
	hooks := domain.LifecycleHooks{
		OnResponderDone: func(_ context.Context, e *domain.ResponderEvent) {
			mu.Lock()
			done = append(done, e.ResponderID)
			mu.Unlock()
		},
		OnTurnComplete: func(_ context.Context, e *domain.TurnEvent) {
			mu.Lock()
			turns = append(turns, e)
			mu.Unlock()
		},
	}
	p := newPipeline(t, &fakeGateway{}, nil, runtime.WithLifecycleHooks(hooks), runtime.WithIDGenerator(func() string { return "turn-42" }))

	res := p.orch.Run(context.Background(), runtime.TurnRequest{
		Utterance: "I'm anxious about flying",
		Profile:   profile(domain.ProfileInteractive, time.Second),
	})

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, res.Routing.IDs(), done)
	require.Len(t, turns, 1)
	assert.Equal(t, "turn-42", turns[0].TurnID)
	assert.Equal(t, "turn-42", res.TurnID)
	assert.Equal(t, res.ContributingResponderIDs, turns[0].Contributors)
}

func TestRun_RoutingAnomalyForcesDefault(t *testing.T) {
	reg, err := registry.Load(context.Background(), registry.DefaultSource())
	require.NoError(t, err)
	rt, err := router.New(reg.All(), reg.Default().ID)
	require.NoError(t, err)
	all, err := responder.Build(reg.All())
	require.NoError(t, err)

	// Only the default responder is runnable.
	only := map[string]responder.Responder{responder.TripAnalyzerID: all[responder.TripAnalyzerID]}
	var anomalies int
	hooks := domain.LifecycleHooks{
		OnRoutingAnomaly: func(context.Context, *domain.AnomalyEvent) { anomalies++ },
	}
	orch := runtime.NewOrchestrator(rt, only, &fakeGateway{}, nil,
		runtime.WithLifecycleHooks(hooks), runtime.WithSynthesizer(synth.New()))

	res := orch.Run(context.Background(), runtime.TurnRequest{
		Utterance: "I'm anxious about flying",
		Profile:   profile(domain.ProfileInteractive, time.Second),
	})

	assert.Equal(t, 1, anomalies)
	assert.Equal(t, []string{responder.TripAnalyzerID}, res.Routing.IDs())
	assert.True(t, res.Routing.Forced)
	assert.Equal(t, "generated by trip_analyzer", res.Reply)
}
