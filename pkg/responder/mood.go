package responder

import (
	"github.com/aretw0/wayfarer/pkg/domain"
)

var stressWords = []string{"nervous", "anxious", "worried", "stressed", "scared", "afraid", "overwhelmed", "panic"}

// MoodDetector reads how the traveler feels about the trip.
type MoodDetector struct {
	base
}

// NewMoodDetector binds desc to the mood variant.
func NewMoodDetector(desc domain.CapabilityDescriptor) *MoodDetector {
	r := &MoodDetector{}
	r.base = newBase(desc, r)
	return r
}

func (r *MoodDetector) systemPrompt() string {
	return "You are an empathetic travel companion who notices how travelers feel. Acknowledge the emotion, normalize it and offer one supportive perspective."
}

func (r *MoodDetector) task(tc TurnContext) string {
	return "Name the emotion you hear, reassure the traveler in two or three sentences and suggest one small thing that would help them feel more prepared."
}

func (r *MoodDetector) cues() []string {
	return []string{"feeling", "excited", "worried", "mood"}
}

func (r *MoodDetector) fallbacks() []fallback {
	return []fallback{
		{
			keywords: []string{"nervous", "anxious", "worried", "scared", "afraid"},
			text: `**Your feelings are normal**

Most people feel some travel anxiety before a big trip; it shows you care about it going well.

- Turn nerves into preparation: documents, bookings and a packing list.
- Breathe in for four counts, hold for four, out for six.
- Remember that millions of people travel safely every day.

You are more prepared than you think.`,
		},
		{
			text: `**Travel brings a mix of emotions**

Excitement, anticipation and a little nervousness usually arrive together. Let them.
Keep a short journal on the road, celebrate small wins and stay open to the unexpected moments. They make the best stories.`,
		},
	}
}

func (r *MoodDetector) insights(normalized string, tc TurnContext) map[string]any {
	notes := map[string]any{}
	stress := matching(normalized, stressWords...)
	if len(stress) > 0 {
		notes["stress_indicators"] = toAny(stress)
		notes["confidence_level"] = "low"
	} else if containsAny(normalized, "excited", "confident", "ready", "cant wait") {
		notes["confidence_level"] = "high"
	}
	if len(notes) == 0 {
		return map[string]any{}
	}
	return map[string]any{"behavioral_notes": notes}
}
