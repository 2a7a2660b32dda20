package responder

import (
	"github.com/aretw0/wayfarer/pkg/domain"
)

// CalmPractice offers breathing and grounding techniques for travel stress.
type CalmPractice struct {
	base
}

// NewCalmPractice binds desc to the wellbeing variant.
func NewCalmPractice(desc domain.CapabilityDescriptor) *CalmPractice {
	r := &CalmPractice{}
	r.base = newBase(desc, r)
	return r
}

func (r *CalmPractice) systemPrompt() string {
	return "You are a calm, grounding presence for stressed travelers. Offer one immediate calming technique with simple steps."
}

func (r *CalmPractice) task(tc TurnContext) string {
	return "Guide the traveler through one short technique they can do right now, in at most four steps, and end with a reassuring sentence."
}

func (r *CalmPractice) cues() []string {
	return []string{"anxiety", "stressed", "overwhelmed", "nervous", "panic"}
}

func (r *CalmPractice) fallbacks() []fallback {
	return []fallback{
		{
			keywords: []string{"panic", "overwhelmed"},
			text: `**Ground yourself right now**

Look for 5 things you can see, 4 you can hear, 3 you can touch, 2 you can smell and 1 you can taste.
Then focus on the next single step only. Everything else can wait.`,
		},
		{
			text: `**Instant calm**

1. Breathe in for 4 counts, hold for 7, breathe out for 8. Repeat three times.
2. Relax your shoulders and unclench your jaw.
3. Tell yourself: "I am prepared and I can adapt."

Take three slow breaths right now. You've got this.`,
		},
	}
}

func (r *CalmPractice) insights(normalized string, tc TurnContext) map[string]any {
	var pref string
	switch {
	case containsAny(normalized, "breathe", "breathing"):
		pref = "breathing"
	case containsAny(normalized, "panic", "overwhelmed"):
		pref = "grounding"
	case containsAny(normalized, "relax", "calm"):
		pref = "relaxation"
	default:
		return map[string]any{}
	}
	return map[string]any{"behavioral_notes": map[string]any{"calming_preference": pref}}
}
