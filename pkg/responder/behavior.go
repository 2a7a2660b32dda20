package responder

import (
	"github.com/aretw0/wayfarer/pkg/domain"
)

// BehaviorGuide turns indecision into concrete next steps.
type BehaviorGuide struct {
	base
}

// NewBehaviorGuide binds desc to the decision support variant.
func NewBehaviorGuide(desc domain.CapabilityDescriptor) *BehaviorGuide {
	r := &BehaviorGuide{}
	r.base = newBase(desc, r)
	return r
}

func (r *BehaviorGuide) systemPrompt() string {
	return "You are a travel decision coach. Help the traveler choose by clarifying priorities and proposing clear next steps."
}

func (r *BehaviorGuide) task(tc TurnContext) string {
	return "Lay out the decision in one sentence, then give up to three numbered next steps the traveler can take today."
}

func (r *BehaviorGuide) cues() []string {
	return []string{"decide", "choose", "stuck", "options"}
}

func (r *BehaviorGuide) fallbacks() []fallback {
	return []fallback{
		{
			text: `**Making the call**

1. Name what matters most: budget, comfort, experiences or adventure.
2. Give each option a score from 1 to 10 on those priorities.
3. Set a deadline for the decision and commit.
4. Keep a backup plan, then move on.

A good decision made today beats a perfect one next week.`,
		},
	}
}

func (r *BehaviorGuide) insights(normalized string, tc TurnContext) map[string]any {
	switch {
	case hasToken(normalized, "we", "us", "our", "together", "partner", "family", "friends"):
		return map[string]any{"decision_style": "collaborative"}
	case containsAny(normalized, "should", "help", "stuck", "which", "what now"):
		return map[string]any{"decision_style": "guidance_seeking"}
	}
	return map[string]any{}
}
