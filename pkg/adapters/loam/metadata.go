package loam

import (
	"github.com/aretw0/wayfarer/pkg/registry"
)

// CapabilityMetadata is the frontmatter of one capability document.
// The markdown body, when present, becomes the description.
type CapabilityMetadata struct {
	ID             string   `json:"id" mapstructure:"id"`
	Name           string   `json:"name" mapstructure:"name"`
	Role           string   `json:"role" mapstructure:"role"`
	Description    string   `json:"description" mapstructure:"description"`
	Keywords       []string `json:"keywords" mapstructure:"keywords"`
	Patterns       []string `json:"patterns" mapstructure:"patterns"`
	PriorityWeight float64  `json:"priority_weight" mapstructure:"priority_weight"`
	HighPriority   bool     `json:"high_priority" mapstructure:"high_priority"`
	DownstreamHint []string `json:"downstream_hint" mapstructure:"downstream_hint"`
	Default        bool     `json:"default" mapstructure:"default"`

	// Order sorts documents; ties fall back to the document id.
	Order int `json:"order" mapstructure:"order"`
}

func (m CapabilityMetadata) record(id, body string) registry.Record {
	desc := m.Description
	if desc == "" {
		desc = body
	}
	return registry.Record{
		ID:             id,
		Name:           m.Name,
		Role:           m.Role,
		Description:    desc,
		Keywords:       m.Keywords,
		Patterns:       m.Patterns,
		PriorityWeight: m.PriorityWeight,
		HighPriority:   m.HighPriority,
		DownstreamHint: m.DownstreamHint,
		Default:        m.Default,
	}
}
