package synth_test

import (
	"strings"
	"testing"

	"github.com/aretw0/wayfarer/pkg/domain"
	"github.com/aretw0/wayfarer/pkg/synth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var labels = map[string]string{
	"a": "Alpha",
	"b": "Bravo",
	"c": "Charlie",
}

func TestSynthesize_SingleSuccess(t *testing.T) {
	s := synth.New(synth.WithLabels(labels))

	res := s.Synthesize([]string{"a"}, map[string]domain.Outcome{
		"a": domain.Success{Text: "only answer", ContributedLatencyMs: 42},
	}, nil)

	assert.Equal(t, "only answer", res.Reply, "a single success is returned as-is")
	assert.Equal(t, []string{"a"}, res.Contributors)
	assert.Equal(t, int64(42), res.AggregateLatencyMs)
	assert.False(t, res.UsedFallback)
}

func TestSynthesize_RestoresSelectionOrder(t *testing.T) {
	s := synth.New(synth.WithLabels(labels))

	// Map iteration order is random; the reply must follow the selection.
	results := map[string]domain.Outcome{
		"c": domain.Success{Text: "third", ContributedLatencyMs: 1},
		"a": domain.Success{Text: "first", ContributedLatencyMs: 2},
		"b": domain.Success{Text: "second", ContributedLatencyMs: 3},
	}
	for i := 0; i < 10; i++ {
		res := s.Synthesize([]string{"a", "b", "c"}, results, nil)

		assert.Equal(t, "**Alpha**\n\nfirst"+synth.DefaultSeparator+"**Bravo**\n\nsecond"+synth.DefaultSeparator+"**Charlie**\n\nthird", res.Reply)
		assert.Equal(t, []string{"a", "b", "c"}, res.Contributors)
		assert.Equal(t, int64(6), res.AggregateLatencyMs)
	}
}

func TestSynthesize_AllTimedOut(t *testing.T) {
	s := synth.New()

	res := s.Synthesize([]string{"a", "b"}, map[string]domain.Outcome{
		"a": domain.TimedOut{AfterMs: 10000, Fallback: "canned a"},
		"b": domain.TimedOut{AfterMs: 10000, Fallback: "canned b"},
	}, nil)

	assert.Equal(t, "canned a", res.Reply, "first fallback by selection order")
	assert.Equal(t, []string{"a"}, res.Contributors)
	assert.True(t, res.UsedFallback)
	assert.Zero(t, res.AggregateLatencyMs)
}

func TestSynthesize_NeverEmpty(t *testing.T) {
	s := synth.New()

	tests := map[string]map[string]domain.Outcome{
		"no results":       {},
		"empty fallbacks":  {"a": domain.TimedOut{}, "b": domain.Failed{ErrorKind: domain.ErrorInternal}},
		"first is missing": {"b": domain.Failed{Fallback: "from b"}},
	}
	for name, results := range tests {
		t.Run(name, func(t *testing.T) {
			res := s.Synthesize([]string{"a", "b"}, results, nil)
			assert.NotEmpty(t, res.Reply)
			assert.True(t, res.UsedFallback)
		})
	}

	res := s.Synthesize([]string{"a", "b"}, tests["first is missing"], nil)
	assert.Equal(t, "from b", res.Reply)
}

func TestSynthesize_MixedOutcomes(t *testing.T) {
	s := synth.New(synth.WithLabels(labels))

	res := s.Synthesize([]string{"a", "b", "c"}, map[string]domain.Outcome{
		"a": domain.TimedOut{AfterMs: 100, Fallback: "canned"},
		"b": domain.Success{Text: "real", ContributedLatencyMs: 7},
		"c": domain.Failed{ErrorKind: domain.ErrorUnavailable, Fallback: "canned c"},
	}, nil)

	assert.Equal(t, "real", res.Reply)
	assert.Equal(t, []string{"b"}, res.Contributors)
	assert.True(t, res.UsedFallback)
}

func TestSynthesize_CannedSuccessCountsAsFallback(t *testing.T) {
	res := synth.New().Synthesize([]string{"a"}, map[string]domain.Outcome{
		"a": domain.Success{Text: "general help", Canned: true},
	}, nil)

	assert.Equal(t, "general help", res.Reply)
	assert.True(t, res.UsedFallback)
}

func TestSynthesize_Ceiling(t *testing.T) {
	s := synth.New(synth.WithLabels(labels), synth.WithMaxChars(100), synth.WithSeparator("\n"))
	long := strings.Repeat("x", 60)

	res := s.Synthesize([]string{"a", "b", "c"}, map[string]domain.Outcome{
		"a": domain.Success{Text: long},
		"b": domain.Success{Text: "short"},
		"c": domain.Success{Text: long},
	}, nil)

	assert.Equal(t, []string{"a", "b"}, res.Contributors, "the last segment is dropped whole")
	assert.Equal(t, "**Alpha**\n\n"+long+"\n**Bravo**\n\nshort", res.Reply)
	assert.LessOrEqual(t, len(res.Reply), 100)

	// The first segment survives even when it alone exceeds the ceiling.
	res = synth.New(synth.WithMaxChars(10)).Synthesize([]string{"a", "b"}, map[string]domain.Outcome{
		"a": domain.Success{Text: long},
		"b": domain.Success{Text: long},
	}, nil)
	assert.Equal(t, []string{"a"}, res.Contributors)
	assert.Contains(t, res.Reply, long)
}

func TestSynthesize_ProfileMerge(t *testing.T) {
	prior := map[string]any{"a": 1, "b": 2}

	res := synth.New().Synthesize([]string{"x", "y"}, map[string]domain.Outcome{
		"x": domain.Success{Text: "one", StructuredData: map[string]any{"b": nil, "c": 3}},
		"y": domain.Success{Text: "two", StructuredData: map[string]any{"tags": []any{"tokyo"}}},
	}, prior)

	assert.Equal(t, map[string]any{"a": 1, "b": 2, "c": 3, "tags": []any{"tokyo"}}, res.Profile)
	assert.Equal(t, map[string]any{"c": 3, "tags": []any{"tokyo"}}, res.ProfileUpdate)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, prior, "prior is not mutated")
}

func TestSynthesize_IgnoresStructuredDataOfFailures(t *testing.T) {
	res := synth.New().Synthesize([]string{"x"}, map[string]domain.Outcome{
		"x": domain.TimedOut{Fallback: "fb"},
	}, map[string]any{"keep": true})

	require.NotNil(t, res.Profile)
	assert.Equal(t, map[string]any{"keep": true}, res.Profile)
	assert.Empty(t, res.ProfileUpdate)
}
