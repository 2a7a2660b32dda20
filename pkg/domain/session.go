package domain

import (
	"fmt"
	"time"
)

const (
	// MaxRecentTurns bounds SessionSnapshot.RecentTurns.
	MaxRecentTurns = 10

	// MaxProfileListItems bounds every list value in an accumulated profile.
	MaxProfileListItems = 10
)

// TurnRecord is the trace a completed turn leaves in its session.
type TurnRecord struct {
	TurnID     string    `json:"turn_id,omitempty"`
	Utterance  string    `json:"utterance"`
	Responders []string  `json:"responders,omitempty"`
	At         time.Time `json:"at"`
}

// SessionSnapshot is what a session remembers between turns.
type SessionSnapshot struct {
	// ActiveResponderIDs are the responders selected on the previous turn.
	ActiveResponderIDs []string `json:"active_responder_ids"`

	// AccumulatedProfile evolves slowly and is only ever merged field by field.
	AccumulatedProfile map[string]any `json:"accumulated_profile"`

	TurnCount   int          `json:"turn_count"`
	LastTurnAt  time.Time    `json:"last_turn_at,omitempty"`
	RecentTurns []TurnRecord `json:"recent_turns,omitempty"`
}

// SessionPatch is the partial snapshot written at the end of a turn.
type SessionPatch struct {
	// ActiveResponderIDs replaces the previous set when non-nil.
	ActiveResponderIDs []string `json:"active_responder_ids,omitempty"`

	// Profile is merged into AccumulatedProfile with MergeProfile.
	Profile map[string]any `json:"profile,omitempty"`

	// Turn, when set, is appended to RecentTurns and bumps TurnCount.
	Turn *TurnRecord `json:"turn,omitempty"`
}

// NewSessionSnapshot returns the empty context used for new or unreadable sessions.
func NewSessionSnapshot() *SessionSnapshot {
	return &SessionSnapshot{
		ActiveResponderIDs: []string{},
		AccumulatedProfile: map[string]any{},
	}
}

// IsActive reports whether id ran on the previous turn.
func (s *SessionSnapshot) IsActive(id string) bool {
	if s == nil {
		return false
	}
	for _, a := range s.ActiveResponderIDs {
		if a == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so a turn can read the snapshot without racing the store.
func (s *SessionSnapshot) Clone() *SessionSnapshot {
	if s == nil {
		return NewSessionSnapshot()
	}
	out := &SessionSnapshot{
		ActiveResponderIDs: append([]string{}, s.ActiveResponderIDs...),
		AccumulatedProfile: MergeProfile(nil, s.AccumulatedProfile),
		TurnCount:          s.TurnCount,
		LastTurnAt:         s.LastTurnAt,
	}
	for _, t := range s.RecentTurns {
		t.Responders = append([]string(nil), t.Responders...)
		out.RecentTurns = append(out.RecentTurns, t)
	}
	return out
}

// Apply merges a patch into the snapshot in place.
func (s *SessionSnapshot) Apply(p SessionPatch) {
	if s.AccumulatedProfile == nil {
		s.AccumulatedProfile = map[string]any{}
	}
	if p.ActiveResponderIDs != nil {
		s.ActiveResponderIDs = append([]string{}, p.ActiveResponderIDs...)
	}
	if len(p.Profile) > 0 {
		s.AccumulatedProfile = MergeProfile(s.AccumulatedProfile, p.Profile)
	}
	if p.Turn != nil {
		s.TurnCount++
		if p.Turn.At.After(s.LastTurnAt) {
			s.LastTurnAt = p.Turn.At
		}
		s.RecentTurns = append(s.RecentTurns, *p.Turn)
		if n := len(s.RecentTurns); n > MaxRecentTurns {
			s.RecentTurns = append([]TurnRecord(nil), s.RecentTurns[n-MaxRecentTurns:]...)
		}
	}
}

// RecentUtterances returns up to n of the latest user utterances, oldest first.
func (s *SessionSnapshot) RecentUtterances(n int) []string {
	if s == nil || n <= 0 {
		return nil
	}
	turns := s.RecentTurns
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]string, 0, len(turns))
	for _, t := range turns {
		out = append(out, t.Utterance)
	}
	return out
}

// MergeProfile returns base updated with update, leaving both inputs untouched.
//
// Non-nil values overwrite, nil values never erase. Nested maps merge
// recursively. Lists are unioned without duplicates in first-seen order and
// capped at MaxProfileListItems; once full, new entries are ignored.
func MergeProfile(base, update map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(update))
	for k, v := range base {
		out[k] = copyValue(v)
	}
	for k, v := range update {
		if v == nil {
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			prev, _ := out[k].(map[string]any)
			out[k] = MergeProfile(prev, nested)
			continue
		}
		if list, ok := asList(v); ok {
			prev, _ := asList(out[k])
			out[k] = unionList(prev, list)
			continue
		}
		out[k] = v
	}
	return out
}

func copyValue(v any) any {
	if m, ok := v.(map[string]any); ok {
		return MergeProfile(nil, m)
	}
	if l, ok := asList(v); ok {
		return append([]any(nil), l...)
	}
	return v
}

func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

func unionList(prev, next []any) []any {
	seen := make(map[string]bool, len(prev)+len(next))
	out := make([]any, 0, len(prev)+len(next))
	for _, group := range [][]any{prev, next} {
		for _, item := range group {
			if item == nil {
				continue
			}
			key := fmt.Sprintf("%T:%v", item, item)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, item)
		}
	}
	if len(out) > MaxProfileListItems {
		out = out[:MaxProfileListItems]
	}
	return out
}
