// Package graph renders the capability catalogue as a Mermaid flowchart.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/wayfarer/pkg/domain"
)

// Overlay contains routing data to visualize on the graph.
type Overlay struct {
	// Selected maps the responders picked for a turn to their score.
	Selected map[string]float64
	// Active lists the responders that ran on the session's previous turn.
	Active []string
}

// OverlayFrom builds an overlay from a routing decision and a session snapshot.
func OverlayFrom(d domain.RoutingDecision, prior *domain.SessionSnapshot) *Overlay {
	o := &Overlay{Selected: make(map[string]float64, len(d.Entries))}
	for _, e := range d.Entries {
		o.Selected[e.ID] = e.Score
	}
	if prior != nil {
		o.Active = append(o.Active, prior.ActiveResponderIDs...)
	}
	return o
}

// GenerateMermaid produces a Mermaid flowchart from the catalogue.
// It applies semantic styling:
// - Default responder: ((Circle))
// - High priority: [[Subroutine]]
// - Others: [Rectangle]
// Downstream hints become dotted edges. Overlay styles mark selected and
// previously active responders.
func GenerateMermaid(caps []domain.CapabilityDescriptor, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	known := make(map[string]bool, len(caps))
	for _, c := range caps {
		known[c.ID] = true
	}

	for _, c := range caps {
		safeID := sanitizeMermaidID(c.ID)

		opener, closer := "[", "]"
		switch {
		case c.Default:
			opener, closer = "((", "))"
		case c.HighPriority:
			opener, closer = "[[", "]]"
		}

		label := strings.ReplaceAll(c.Label(), "\"", "'")
		if overlay != nil {
			if score, ok := overlay.Selected[c.ID]; ok {
				label = fmt.Sprintf("%s <br/> %.2f", label, score)
			}
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, label, closer))

		for _, hint := range c.DownstreamHint {
			if !known[hint] {
				continue
			}
			sb.WriteString(fmt.Sprintf("    %s -. hint .-> %s\n", safeID, sanitizeMermaidID(hint)))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef active fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef selected fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.Active {
			if !known[id] || seen[id] || hasKey(overlay.Selected, id) {
				continue
			}
			seen[id] = true
			sb.WriteString(fmt.Sprintf("    class %s active;\n", sanitizeMermaidID(id)))
		}

		selected := make([]string, 0, len(overlay.Selected))
		for id := range overlay.Selected {
			if known[id] {
				selected = append(selected, id)
			}
		}
		sort.Strings(selected)
		for _, id := range selected {
			sb.WriteString(fmt.Sprintf("    class %s selected;\n", sanitizeMermaidID(id)))
		}
	}

	return sb.String()
}

func hasKey(m map[string]float64, k string) bool {
	_, ok := m[k]
	return ok
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
