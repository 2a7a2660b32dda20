package responder

import (
	"github.com/aretw0/wayfarer/pkg/domain"
)

// SummarySynth pulls the conversation together into an overview.
type SummarySynth struct {
	base
}

// NewSummarySynth binds desc to the synthesis variant.
func NewSummarySynth(desc domain.CapabilityDescriptor) *SummarySynth {
	r := &SummarySynth{}
	r.base = newBase(desc, r)
	return r
}

func (r *SummarySynth) systemPrompt() string {
	return "You synthesize travel conversations. Summarize what the traveler wants and what has been covered, then name the single most useful next action."
}

func (r *SummarySynth) task(tc TurnContext) string {
	if len(tc.RecentUtterances) == 0 {
		return "Summarize the request in two sentences and propose one next action."
	}
	return "Summarize the conversation so far in a few bullet points and propose one next action."
}

func (r *SummarySynth) cues() []string {
	return []string{"summary", "overview", "synthesize"}
}

func (r *SummarySynth) fallbacks() []fallback {
	return []fallback{
		{
			text: `**Where your plan stands**

- This week: settle destination and dates, set the budget, book transport and flexible lodging.
- Two to four weeks out: book key activities, sort documents and insurance.
- Final week: confirm bookings, pack and download offline maps and translation.

Next action: pick one item from this week's list and finish it today.`,
		},
	}
}

// insights records which specialists the summary drew on.
func (r *SummarySynth) insights(normalized string, tc TurnContext) map[string]any {
	var topics []string
	for _, id := range tc.Selected {
		if id != r.desc.ID {
			topics = append(topics, id)
		}
	}
	if len(topics) == 0 {
		return map[string]any{}
	}
	return map[string]any{"last_summary_topics": toAny(topics)}
}
