package domain

// OutcomeKind names the variant of an Outcome.
type OutcomeKind string

const (
	OutcomeSuccess  OutcomeKind = "success"
	OutcomeTimedOut OutcomeKind = "timed_out"
	OutcomeFailed   OutcomeKind = "failed"
)

// ErrorKind classifies a Failed outcome.
type ErrorKind string

const (
	ErrorInternal        ErrorKind = "internal_error"
	ErrorUnavailable     ErrorKind = "unavailable"
	ErrorInvalidResponse ErrorKind = "invalid_response"
)

// Outcome is the result of one responder for one turn.
// The set of implementations is closed: Success, TimedOut and Failed.
type Outcome interface {
	Kind() OutcomeKind

	// FallbackText is the canned reply associated with the outcome, if any.
	FallbackText() string

	isOutcome()
}

// Success carries generated (or, when Canned is set, pre-written) text.
type Success struct {
	Text                 string         `json:"text"`
	StructuredData       map[string]any `json:"structured_data,omitempty"`
	ContributedLatencyMs int64          `json:"contributed_latency_ms"`

	// Canned is set when Text came from the fallback table rather than the gateway.
	Canned bool `json:"canned,omitempty"`
}

func (Success) Kind() OutcomeKind { return OutcomeSuccess }

func (s Success) FallbackText() string {
	if s.Canned {
		return s.Text
	}
	return ""
}

func (Success) isOutcome() {}

// TimedOut records a responder that did not finish before its deadline.
type TimedOut struct {
	AfterMs  int64  `json:"after_ms"`
	Fallback string `json:"fallback,omitempty"`
}

func (TimedOut) Kind() OutcomeKind      { return OutcomeTimedOut }
func (t TimedOut) FallbackText() string { return t.Fallback }
func (TimedOut) isOutcome()             {}

// Failed records a responder that gave up for a reason other than time.
type Failed struct {
	ErrorKind ErrorKind `json:"error_kind"`
	Detail    string    `json:"detail,omitempty"`
	Fallback  string    `json:"fallback,omitempty"`
}

func (Failed) Kind() OutcomeKind      { return OutcomeFailed }
func (f Failed) FallbackText() string { return f.Fallback }
func (Failed) isOutcome()             {}

// Generated reports whether o is a Success whose text came from the gateway.
func Generated(o Outcome) bool {
	s, ok := o.(Success)
	return ok && !s.Canned
}

// OutcomeSummary is the transport-friendly view of an Outcome.
type OutcomeSummary struct {
	ResponderID string      `json:"responder_id"`
	Kind        OutcomeKind `json:"kind"`
	LatencyMs   int64       `json:"latency_ms"`
	ErrorKind   ErrorKind   `json:"error_kind,omitempty"`
	Canned      bool        `json:"canned,omitempty"`
}

// Summarize flattens an Outcome for reporting.
func Summarize(id string, o Outcome) OutcomeSummary {
	sum := OutcomeSummary{ResponderID: id}
	switch v := o.(type) {
	case Success:
		sum.Kind = OutcomeSuccess
		sum.LatencyMs = v.ContributedLatencyMs
		sum.Canned = v.Canned
	case TimedOut:
		sum.Kind = OutcomeTimedOut
		sum.LatencyMs = v.AfterMs
	case Failed:
		sum.Kind = OutcomeFailed
		sum.ErrorKind = v.ErrorKind
	}
	return sum
}
