package responder_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/wayfarer/pkg/domain"
	"github.com/aretw0/wayfarer/pkg/ports"
	"github.com/aretw0/wayfarer/pkg/registry"
	"github.com/aretw0/wayfarer/pkg/responder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedGateway returns a fixed reply or error, optionally after a delay.
type scriptedGateway struct {
	text  string
	err   error
	delay time.Duration
	panic bool

	mu    sync.Mutex
	calls int
	last  ports.GenerateRequest
}

func (g *scriptedGateway) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	g.mu.Lock()
	g.calls++
	g.last = req
	g.mu.Unlock()

	if g.panic {
		panic("boom")
	}
	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return "", fmt.Errorf("generate: %w", ctx.Err())
		}
	}
	return g.text, g.err
}

func (g *scriptedGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func builtins(t *testing.T) map[string]responder.Responder {
	t.Helper()
	reg, err := registry.Load(context.Background(), registry.DefaultSource())
	require.NoError(t, err)
	all, err := responder.Build(reg.All())
	require.NoError(t, err)
	return all
}

func turn(utterance string) responder.TurnContext {
	return responder.TurnContext{
		TurnID:      "turn-1",
		Utterance:   utterance,
		Profile:     domain.ProfileInteractive,
		Temperature: 0.7,
		MaxTokens:   400,
	}
}

func TestBuild_DefaultCatalogue(t *testing.T) {
	all := builtins(t)
	require.Len(t, all, 6)

	assert.IsType(t, &responder.TripAnalyzer{}, all[responder.TripAnalyzerID])
	assert.IsType(t, &responder.MoodDetector{}, all[responder.MoodDetectorID])
	assert.IsType(t, &responder.CommsCoach{}, all[responder.CommsCoachID])
	assert.IsType(t, &responder.BehaviorGuide{}, all[responder.BehaviorGuideID])
	assert.IsType(t, &responder.CalmPractice{}, all[responder.CalmPracticeID])
	assert.IsType(t, &responder.SummarySynth{}, all[responder.SummarySynthID])

	for id, r := range all {
		assert.Equal(t, id, r.ID())
		assert.Equal(t, id, r.Descriptor().ID)
	}
}

func TestBuild_ByRole(t *testing.T) {
	all, err := responder.Build([]domain.CapabilityDescriptor{
		{ID: "packing_helper", Role: "planning", Keywords: []string{"pack"}},
	})
	require.NoError(t, err)
	assert.IsType(t, &responder.TripAnalyzer{}, all["packing_helper"])
}

func TestBuild_UnknownVariant(t *testing.T) {
	_, err := responder.Build([]domain.CapabilityDescriptor{
		{ID: "weather_bot", Role: "forecasting", Keywords: []string{"rain"}},
	})

	var cfgErr *domain.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "weather_bot", cfgErr.ID)
	assert.Equal(t, 0, cfgErr.Index)
}

func TestProcess_Success(t *testing.T) {
	mood := builtins(t)[responder.MoodDetectorID]
	gw := &scriptedGateway{text: "  Mood Detector: It is completely normal to feel nervous before a long flight.  "}

	tc := turn("I'm nervous about my flight to Tokyo")
	tc.Selected = []string{responder.CalmPracticeID, responder.MoodDetectorID}
	tc.RecentUtterances = []string{"I want to visit Japan"}
	tc.PriorProfile = map[string]any{"travel_pace": "relaxed"}

	deadline := time.Now().Add(2 * time.Second)
	out := mood.Process(context.Background(), tc, gw, deadline)

	s, ok := out.(domain.Success)
	require.True(t, ok, "got %#v", out)
	assert.Equal(t, "It is completely normal to feel nervous before a long flight.", s.Text)
	assert.False(t, s.Canned)
	assert.Equal(t, map[string]any{
		"behavioral_notes": map[string]any{
			"stress_indicators": []any{"nervous"},
			"confidence_level":  "low",
		},
	}, s.StructuredData)

	req := gw.last
	assert.Equal(t, 0.7, req.Temperature)
	assert.Equal(t, 400, req.MaxTokens)
	assert.NotEmpty(t, req.SystemPrompt)
	assert.Contains(t, req.Prompt, "I'm nervous about my flight to Tokyo")
	assert.Contains(t, req.Prompt, "I want to visit Japan")
	assert.Contains(t, req.Prompt, "travel_pace: relaxed")
	assert.Contains(t, req.Prompt, responder.CalmPracticeID)
	assert.Positive(t, req.Timeout)
	assert.LessOrEqual(t, req.Timeout, 2*time.Second)
}

func TestProcess_GatewayFailures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind domain.OutcomeKind
		wantErr  domain.ErrorKind
	}{
		{"Timeout", fmt.Errorf("ollama: %w", domain.ErrGatewayTimeout), domain.OutcomeTimedOut, ""},
		{"Unavailable", fmt.Errorf("ollama: %w", domain.ErrGatewayUnavailable), domain.OutcomeFailed, domain.ErrorUnavailable},
		{"Invalid Response", fmt.Errorf("ollama: %w", domain.ErrInvalidResponse), domain.OutcomeFailed, domain.ErrorInvalidResponse},
		{"Unclassified", errors.New("connection reset"), domain.OutcomeFailed, domain.ErrorUnavailable},
	}

	mood := builtins(t)[responder.MoodDetectorID]
	utterance := "I'm anxious about flying"

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &scriptedGateway{err: tt.err}
			out := mood.Process(context.Background(), turn(utterance), gw, time.Now().Add(time.Second))

			assert.Equal(t, tt.wantKind, out.Kind())
			assert.Equal(t, mood.Fallback(utterance), out.FallbackText())
			assert.Contains(t, out.FallbackText(), "Your feelings are normal", "fallback follows the utterance intent")
			if f, ok := out.(domain.Failed); ok {
				assert.Equal(t, tt.wantErr, f.ErrorKind)
			}
		})
	}
}

func TestProcess_EmptyGeneration(t *testing.T) {
	calm := builtins(t)[responder.CalmPracticeID]
	out := calm.Process(context.Background(), turn("help me relax"), &scriptedGateway{text: " \n "}, time.Now().Add(time.Second))

	f, ok := out.(domain.Failed)
	require.True(t, ok)
	assert.Equal(t, domain.ErrorInvalidResponse, f.ErrorKind)
	assert.NotEmpty(t, f.Fallback)
}

func TestProcess_DeadlinePassed(t *testing.T) {
	trip := builtins(t)[responder.TripAnalyzerID]
	gw := &scriptedGateway{text: "never used"}

	out := trip.Process(context.Background(), turn("plan my trip"), gw, time.Now().Add(-time.Millisecond))

	assert.Equal(t, domain.OutcomeTimedOut, out.Kind())
	assert.NotEmpty(t, out.FallbackText())
	assert.Equal(t, 0, gw.Calls(), "no gateway call once the deadline has passed")
}

func TestProcess_SlowGatewayStopsAtDeadline(t *testing.T) {
	trip := builtins(t)[responder.TripAnalyzerID]
	gw := &scriptedGateway{text: "late", delay: 5 * time.Second}

	start := time.Now()
	out := trip.Process(context.Background(), turn("plan my trip"), gw, start.Add(50*time.Millisecond))

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, domain.OutcomeTimedOut, out.Kind())
}

func TestProcess_EmptyUtterance(t *testing.T) {
	trip := builtins(t)[responder.TripAnalyzerID]
	gw := &scriptedGateway{text: "never used"}

	out := trip.Process(context.Background(), turn(""), gw, time.Now().Add(time.Second))

	s, ok := out.(domain.Success)
	require.True(t, ok)
	assert.True(t, s.Canned)
	assert.Equal(t, trip.Fallback(""), s.Text)
	assert.Equal(t, 0, gw.Calls())
}

func TestProcess_PanicBecomesInternalError(t *testing.T) {
	comms := builtins(t)[responder.CommsCoachID]

	out := comms.Process(context.Background(), turn("how do I ask the hotel staff"), &scriptedGateway{panic: true}, time.Now().Add(time.Second))

	f, ok := out.(domain.Failed)
	require.True(t, ok)
	assert.Equal(t, domain.ErrorInternal, f.ErrorKind)
	assert.Contains(t, f.Fallback, "hotel staff")
}

func TestProcess_NilGateway(t *testing.T) {
	behavior := builtins(t)[responder.BehaviorGuideID]

	out := behavior.Process(context.Background(), turn("I can't decide"), nil, time.Now().Add(time.Second))

	assert.Equal(t, domain.OutcomeFailed, out.Kind())
	assert.NotEmpty(t, out.FallbackText())
}

func TestProcess_LongOutputIsCapped(t *testing.T) {
	summary := builtins(t)[responder.SummarySynthID]
	long := strings.Repeat("itinerary ", 400)

	out := summary.Process(context.Background(), turn("give me a summary"), &scriptedGateway{text: long}, time.Now().Add(time.Second))

	s, ok := out.(domain.Success)
	require.True(t, ok)
	assert.LessOrEqual(t, len([]rune(s.Text)), responder.MaxOutputChars+1)
	assert.True(t, strings.HasSuffix(s.Text, "itinerary…"), "cut at a word boundary")
}

func TestFallback_ByIntent(t *testing.T) {
	all := builtins(t)
	trip := all[responder.TripAnalyzerID]

	assert.Contains(t, trip.Fallback("Two weeks in Tokyo?"), "Tokyo trip analysis")
	assert.Contains(t, trip.Fallback("how much money do I need"), "budgeting")
	assert.Contains(t, trip.Fallback("somewhere warm"), "Trip planning")

	for id, r := range all {
		assert.NotEmpty(t, r.Fallback(""), id)
		assert.NotEmpty(t, r.Fallback("qwerty"), id)
	}
}

func TestRelevance_Cues(t *testing.T) {
	all := builtins(t)

	assert.Equal(t, 1.0, all[responder.CalmPracticeID].Relevance("I'm so stressed", nil))
	assert.Equal(t, 0.0, all[responder.CalmPracticeID].Relevance("book a hotel", nil))
	assert.Equal(t, 1.0, all[responder.BehaviorGuideID].Relevance("I can't choose", nil))
}

func TestInsights(t *testing.T) {
	tests := []struct {
		id        string
		utterance string
		selected  []string
		want      map[string]any
	}{
		{
			id:        responder.TripAnalyzerID,
			utterance: "A relaxed week in Kyoto and Osaka on a budget",
			want: map[string]any{
				"destinations_of_interest": []any{"kyoto", "osaka"},
				"travel_pace":              "relaxed",
				"budget_focus":             true,
			},
		},
		{
			id:        responder.MoodDetectorID,
			utterance: "I'm so excited!",
			want:      map[string]any{"behavioral_notes": map[string]any{"confidence_level": "high"}},
		},
		{
			id:        responder.CommsCoachID,
			utterance: "How do I ask the hotel staff for a taxi?",
			want:      map[string]any{"communication_needs": []any{"hotel_staff", "asking_for_help", "transport"}},
		},
		{
			id:        responder.BehaviorGuideID,
			utterance: "We can't agree where to go",
			want:      map[string]any{"decision_style": "collaborative"},
		},
		{
			id:        responder.CalmPracticeID,
			utterance: "I need to breathe",
			want:      map[string]any{"behavioral_notes": map[string]any{"calming_preference": "breathing"}},
		},
		{
			id:        responder.SummarySynthID,
			utterance: "summarize",
			selected:  []string{responder.SummarySynthID, responder.TripAnalyzerID},
			want:      map[string]any{"last_summary_topics": []any{responder.TripAnalyzerID}},
		},
	}

	all := builtins(t)
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			tc := turn(tt.utterance)
			tc.Selected = tt.selected
			out := all[tt.id].Process(context.Background(), tc, &scriptedGateway{text: "ok"}, time.Now().Add(time.Second))

			s, ok := out.(domain.Success)
			require.True(t, ok)
			assert.Equal(t, tt.want, s.StructuredData)
		})
	}
}
