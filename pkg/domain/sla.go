package domain

import (
	"fmt"
	"time"
)

// Standard SLA profile names.
const (
	ProfileFast        = "fast"
	ProfileInteractive = "interactive"
	ProfileDeep        = "deep"
)

// SLAProfile is a named latency budget. Budget is measured from the turn's
// start time and bounds every responder deadline of that turn.
type SLAProfile struct {
	Name        string        `json:"name" mapstructure:"name"`
	Limit       int           `json:"limit" mapstructure:"limit"`
	Budget      time.Duration `json:"budget" mapstructure:"budget"`
	Temperature float64       `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int           `json:"max_tokens" mapstructure:"max_tokens"`

	// ExpandHints fills free slots under Limit with downstream hints.
	ExpandHints bool `json:"expand_hints,omitempty" mapstructure:"expand_hints"`

	// SkipSessionRead routes without loading prior context.
	SkipSessionRead bool `json:"skip_session_read,omitempty" mapstructure:"skip_session_read"`
}

// Validate checks that the profile can drive a turn.
func (p SLAProfile) Validate() error {
	switch {
	case p.Name == "":
		return fmt.Errorf("sla profile: name is required")
	case p.Limit < 1:
		return fmt.Errorf("sla profile %q: limit must be at least 1, got %d", p.Name, p.Limit)
	case p.Budget <= 0:
		return fmt.Errorf("sla profile %q: budget must be positive, got %s", p.Name, p.Budget)
	case p.Temperature < 0 || p.Temperature > 2:
		return fmt.Errorf("sla profile %q: temperature %.2f outside [0, 2]", p.Name, p.Temperature)
	case p.MaxTokens < 1:
		return fmt.Errorf("sla profile %q: max_tokens must be positive", p.Name)
	}
	return nil
}

// DefaultProfiles returns the built-in profiles keyed by name.
func DefaultProfiles() map[string]SLAProfile {
	return map[string]SLAProfile{
		ProfileFast: {
			Name:            ProfileFast,
			Limit:           1,
			Budget:          3 * time.Second,
			Temperature:     0.3,
			MaxTokens:       200,
			SkipSessionRead: true,
		},
		ProfileInteractive: {
			Name:        ProfileInteractive,
			Limit:       3,
			Budget:      10 * time.Second,
			Temperature: 0.7,
			MaxTokens:   400,
		},
		ProfileDeep: {
			Name:        ProfileDeep,
			Limit:       6,
			Budget:      30 * time.Second,
			Temperature: 0.8,
			MaxTokens:   800,
			ExpandHints: true,
		},
	}
}
