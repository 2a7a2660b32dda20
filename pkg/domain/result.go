package domain

// TurnResult is what a caller gets back from one turn. It is always populated,
// even when every responder timed out.
type TurnResult struct {
	TurnID                   string           `json:"turn_id"`
	Reply                    string           `json:"reply"`
	ContributingResponderIDs []string         `json:"contributing_responder_ids"`
	LatencyMs                int64            `json:"latency_ms"`
	UsedFallback             bool             `json:"used_fallback"`
	Profile                  string           `json:"profile"`
	Routing                  RoutingDecision  `json:"routing"`
	Outcomes                 []OutcomeSummary `json:"outcomes"`
}
