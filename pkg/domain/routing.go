package domain

// ScoredResponder is one entry of a RoutingDecision.
type ScoredResponder struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// RoutingDecision is the ordered selection for a single turn,
// sorted by descending score and truncated to the turn's limit.
type RoutingDecision struct {
	Entries []ScoredResponder `json:"entries"`

	// Forced is set when the relevance floor replaced the selection with the default responder.
	Forced bool `json:"forced,omitempty"`

	// Cached is set when the decision was served from the routing cache.
	Cached bool `json:"cached,omitempty"`
}

// IDs returns the selected responder ids in selection order.
func (d RoutingDecision) IDs() []string {
	ids := make([]string, len(d.Entries))
	for i, e := range d.Entries {
		ids[i] = e.ID
	}
	return ids
}

// Empty reports whether no responder was selected.
func (d RoutingDecision) Empty() bool {
	return len(d.Entries) == 0
}

// Clone returns a copy that shares no backing array with d.
func (d RoutingDecision) Clone() RoutingDecision {
	out := d
	out.Entries = append([]ScoredResponder(nil), d.Entries...)
	return out
}
