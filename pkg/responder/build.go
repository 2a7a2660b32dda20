package responder

import (
	"fmt"

	"github.com/aretw0/wayfarer/pkg/domain"
)

type constructor func(domain.CapabilityDescriptor) Responder

// Catalogue ids of the built-in responders.
const (
	TripAnalyzerID  = "trip_analyzer"
	MoodDetectorID  = "mood_detector"
	CommsCoachID    = "comms_coach"
	BehaviorGuideID = "behavior_guide"
	CalmPracticeID  = "calm_practice"
	SummarySynthID  = "summary_synth"
)

var byID = map[string]constructor{
	TripAnalyzerID:  func(d domain.CapabilityDescriptor) Responder { return NewTripAnalyzer(d) },
	MoodDetectorID:  func(d domain.CapabilityDescriptor) Responder { return NewMoodDetector(d) },
	CommsCoachID:    func(d domain.CapabilityDescriptor) Responder { return NewCommsCoach(d) },
	BehaviorGuideID: func(d domain.CapabilityDescriptor) Responder { return NewBehaviorGuide(d) },
	CalmPracticeID:  func(d domain.CapabilityDescriptor) Responder { return NewCalmPractice(d) },
	SummarySynthID:  func(d domain.CapabilityDescriptor) Responder { return NewSummarySynth(d) },
}

// Roles let custom catalogues reuse a variant under a different id.
var byRole = map[string]constructor{
	"planning":         byID[TripAnalyzerID],
	"emotional_state":  byID[MoodDetectorID],
	"communication":    byID[CommsCoachID],
	"decision_support": byID[BehaviorGuideID],
	"wellbeing":        byID[CalmPracticeID],
	"synthesis":        byID[SummarySynthID],
}

// Roles returns the roles a descriptor may declare to select a variant.
func Roles() []string {
	return []string{"planning", "emotional_state", "communication", "decision_support", "wellbeing", "synthesis"}
}

// Build binds every descriptor to its variant. A descriptor whose id and role
// are both unknown is a configuration error.
func Build(descriptors []domain.CapabilityDescriptor) (map[string]Responder, error) {
	out := make(map[string]Responder, len(descriptors))
	for i, d := range descriptors {
		ctor, ok := byID[d.ID]
		if !ok {
			ctor, ok = byRole[d.Role]
		}
		if !ok {
			return nil, &domain.ConfigError{
				Source: "responders",
				Index:  i,
				ID:     d.ID,
				Reason: fmt.Sprintf("no responder implementation for id or role %q", d.Role),
			}
		}
		out[d.ID] = ctor(d)
	}
	return out, nil
}
