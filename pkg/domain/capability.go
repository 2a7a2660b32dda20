package domain

// CapabilityDescriptor is the static description of one responder.
// Descriptors are loaded once and never mutated afterwards.
type CapabilityDescriptor struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	Role        string `json:"role,omitempty" yaml:"role,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Keywords are lowercase trigger words or short phrases.
	Keywords []string `json:"keywords" yaml:"keywords"`

	// Patterns are regular expressions matched against the normalized utterance.
	Patterns []string `json:"patterns,omitempty" yaml:"patterns,omitempty"`

	// PriorityWeight must lie in [0, 10]. It is only added to the score
	// when HighPriority is set.
	PriorityWeight float64 `json:"priority_weight" yaml:"priority_weight"`
	HighPriority   bool    `json:"high_priority,omitempty" yaml:"high_priority,omitempty"`

	// DownstreamHint lists responders whose output commonly follows this one.
	DownstreamHint []string `json:"downstream_hint,omitempty" yaml:"downstream_hint,omitempty"`

	// Default marks the general-purpose responder used when nothing scores.
	Default bool `json:"default,omitempty" yaml:"default,omitempty"`
}

// Label returns the display name used to attribute a reply segment.
func (c CapabilityDescriptor) Label() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}
