package responder

import (
	"github.com/aretw0/wayfarer/pkg/domain"
)

// knownDestinations are recorded in the profile when the traveler names them.
var knownDestinations = []string{
	"tokyo", "kyoto", "osaka", "japan", "seoul", "bangkok", "bali", "singapore",
	"paris", "london", "rome", "barcelona", "lisbon", "amsterdam", "berlin",
	"new york", "mexico", "peru", "iceland", "sydney",
}

// TripAnalyzer plans destinations, budgets and itineraries. It is the general
// responder of the built-in catalogue.
type TripAnalyzer struct {
	base
}

// NewTripAnalyzer binds desc to the trip analysis variant.
func NewTripAnalyzer(desc domain.CapabilityDescriptor) *TripAnalyzer {
	r := &TripAnalyzer{}
	r.base = newBase(desc, r)
	return r
}

func (r *TripAnalyzer) systemPrompt() string {
	return "You are a travel planning specialist. Analyze the traveler's plans and give concise, actionable advice about destinations, timing, budget and logistics."
}

func (r *TripAnalyzer) task(tc TurnContext) string {
	return "Give a short trip analysis: the key planning steps, a realistic budget note and one practical tip."
}

func (r *TripAnalyzer) cues() []string {
	return []string{"plan", "trip", "destination", "budget"}
}

func (r *TripAnalyzer) fallbacks() []fallback {
	return []fallback{
		{
			keywords: []string{"tokyo", "japan"},
			text: `**Tokyo trip analysis**

- Best time: spring (March to May) for cherry blossoms, or autumn (September to November) for mild weather.
- Budget: mid-range travelers should plan around $150-200 a day including lodging.
- Getting around: buy a JR Pass before you arrive; stay near Shinjuku or Shibuya for easy connections.
- Carry some cash, many smaller places do not take cards.`,
		},
		{
			keywords: []string{"budget", "money", "cost", "cheap", "afford"},
			text: `**Smart travel budgeting**

- Lodging 30-40% of the daily budget, food 25-30%, activities 20-25%, transport 10-15%.
- Keep a 5-10% buffer for surprises.
- Book flights six to eight weeks ahead and travel in shoulder season for better prices.`,
		},
		{
			text: `**Trip planning in five steps**

1. Decide what you want from the trip.
2. Set a realistic budget.
3. Pick dates with weather and seasons in mind.
4. Research the destination's customs and highlights.
5. Book flights and lodging first, activities later.

Aim for roughly 70% planned and 30% spontaneous.`,
		},
	}
}

func (r *TripAnalyzer) insights(normalized string, tc TurnContext) map[string]any {
	out := map[string]any{}
	if dest := matching(normalized, knownDestinations...); len(dest) > 0 {
		out["destinations_of_interest"] = toAny(dest)
	}
	switch {
	case hasToken(normalized, "relaxed", "relaxing", "slow", "leisurely", "chill"):
		out["travel_pace"] = "relaxed"
	case hasToken(normalized, "packed", "busy", "everything", "maximize", "fast"):
		out["travel_pace"] = "packed"
	}
	if hasToken(normalized, "budget", "cheap", "money", "cost", "afford", "expensive", "price") {
		out["budget_focus"] = true
	}
	return out
}
