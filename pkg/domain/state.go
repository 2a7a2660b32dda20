package domain

import (
	"fmt"
	"time"
)

// Phase is the position of a turn in the orchestrator state machine.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseRouting      Phase = "routing"
	PhaseExecuting    Phase = "executing"
	PhaseSynthesizing Phase = "synthesizing"
	PhaseCompleted    Phase = "completed"
)

// Executing may jump straight to Completed when no responder succeeded.
var phaseTransitions = map[Phase][]Phase{
	PhaseIdle:         {PhaseRouting},
	PhaseRouting:      {PhaseExecuting},
	PhaseExecuting:    {PhaseSynthesizing, PhaseCompleted},
	PhaseSynthesizing: {PhaseCompleted},
}

// CanTransition reports whether a turn in phase p may move to next.
func (p Phase) CanTransition(next Phase) bool {
	for _, allowed := range phaseTransitions[p] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TurnState is owned by exactly one in-flight turn and discarded when it returns.
type TurnState struct {
	ID         string
	SessionKey string
	Utterance  string
	Profile    SLAProfile

	// PriorContext is loaded at turn start and read-only afterwards.
	PriorContext *SessionSnapshot

	// Selected is fixed once routing completes.
	Selected []string

	// Results holds at most one outcome per selected responder.
	Results map[string]Outcome

	StartTime time.Time
	Deadline  time.Time
	Phase     Phase
	Path      []Phase
}

// NewTurnState starts a turn in the Idle phase.
func NewTurnState(id, sessionKey, utterance string, profile SLAProfile, start time.Time) *TurnState {
	return &TurnState{
		ID:           id,
		SessionKey:   sessionKey,
		Utterance:    utterance,
		Profile:      profile,
		PriorContext: NewSessionSnapshot(),
		Results:      make(map[string]Outcome),
		StartTime:    start,
		Deadline:     start.Add(profile.Budget),
		Phase:        PhaseIdle,
		Path:         []Phase{PhaseIdle},
	}
}

// Transition moves the turn to next, rejecting moves the state machine does not allow.
func (s *TurnState) Transition(next Phase) error {
	if !s.Phase.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Phase, next)
	}
	s.Phase = next
	s.Path = append(s.Path, next)
	return nil
}

// Select fixes the routing selection. It can only be called once.
func (s *TurnState) Select(ids []string) error {
	if s.Selected != nil {
		return fmt.Errorf("turn %s: selection already fixed", s.ID)
	}
	s.Selected = append([]string{}, ids...)
	return nil
}

// Record stores the outcome for id. The first outcome wins; outcomes for
// responders that were not selected are rejected.
func (s *TurnState) Record(id string, o Outcome) bool {
	if _, done := s.Results[id]; done {
		return false
	}
	if !s.isSelected(id) {
		return false
	}
	s.Results[id] = o
	return true
}

// Pending returns the selected responders that have no outcome yet, in selection order.
func (s *TurnState) Pending() []string {
	var pending []string
	for _, id := range s.Selected {
		if _, ok := s.Results[id]; !ok {
			pending = append(pending, id)
		}
	}
	return pending
}

// Remaining returns the budget left at now, never negative.
func (s *TurnState) Remaining(now time.Time) time.Duration {
	if left := s.Deadline.Sub(now); left > 0 {
		return left
	}
	return 0
}

// AnySucceeded reports whether at least one recorded outcome is a Success.
func (s *TurnState) AnySucceeded() bool {
	for _, o := range s.Results {
		if o.Kind() == OutcomeSuccess {
			return true
		}
	}
	return false
}

func (s *TurnState) isSelected(id string) bool {
	for _, sel := range s.Selected {
		if sel == id {
			return true
		}
	}
	return false
}
