package responder

import (
	"github.com/aretw0/wayfarer/pkg/domain"
)

// communicationNeeds maps utterance cues to profile tags, in reporting order.
var communicationNeeds = []struct {
	cues []string
	need string
}{
	{[]string{"hotel", "staff", "reception", "check in"}, "hotel_staff"},
	{[]string{"restaurant", "menu", "order", "allergic", "food"}, "dining"},
	{[]string{"language", "speak", "translate", "phrase", "say"}, "language_barrier"},
	{[]string{"ask", "help"}, "asking_for_help"},
	{[]string{"taxi", "train", "bus", "airport", "directions"}, "transport"},
}

// CommsCoach helps the traveler say things abroad.
type CommsCoach struct {
	base
}

// NewCommsCoach binds desc to the communication variant.
func NewCommsCoach(desc domain.CapabilityDescriptor) *CommsCoach {
	r := &CommsCoach{}
	r.base = newBase(desc, r)
	return r
}

func (r *CommsCoach) systemPrompt() string {
	return "You are a travel communication coach. Give two or three practical phrases and brief etiquette tips the traveler can use right away."
}

func (r *CommsCoach) task(tc TurnContext) string {
	return "Suggest the exact phrases to use in this situation, with a polite opener and one tip on tone."
}

func (r *CommsCoach) cues() []string {
	return []string{"communicate", "talk", "ask", "language", "phrase"}
}

func (r *CommsCoach) fallbacks() []fallback {
	return []fallback{
		{
			keywords: []string{"hotel", "staff", "reception"},
			text: `**Talking to hotel staff**

- Check-in: "I have a reservation under [name]."
- Problems: "Could you please help me with...?"
- Requests: "If an upgrade is available, we would be grateful."
- Leaving: "Could you call a taxi for me?"

A smile and a thank-you in the local language go a long way.`,
		},
		{
			text: `**Essential travel phrases**

Learn these in the local language: "hello", "thank you", "excuse me, do you speak English?", "can you help me?", "where is...?" and "how much?".
Point at written phrases or use a translation app when words fail, and be patient. Most people want to help a friendly traveler.`,
		},
	}
}

func (r *CommsCoach) insights(normalized string, tc TurnContext) map[string]any {
	var needs []string
	for _, n := range communicationNeeds {
		if containsAny(normalized, n.cues...) {
			needs = append(needs, n.need)
		}
	}
	if len(needs) == 0 {
		return map[string]any{}
	}
	return map[string]any{"communication_needs": toAny(needs)}
}
