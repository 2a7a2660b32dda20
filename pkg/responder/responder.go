// Package responder implements the specialists that answer one aspect of a turn.
//
// The set of responders is closed: each catalogue entry is bound, by id or by
// role, to one of the variants in this package. All variants share the same
// processing shape (prompt, bounded gateway call, fallback, post-processing)
// and differ only in prompt content, fallback tables and the profile insights
// they extract.
package responder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/wayfarer/pkg/domain"
	"github.com/aretw0/wayfarer/pkg/ports"
	"github.com/aretw0/wayfarer/pkg/router"
)

// TurnContext is the read-only view of a turn shared by every selected responder.
type TurnContext struct {
	TurnID      string
	Utterance   string
	Profile     string
	Temperature float64
	MaxTokens   int

	// Selected is the routing selection of this turn, in order.
	Selected []string

	// PriorProfile is the accumulated profile loaded before routing.
	PriorProfile map[string]any

	// RecentUtterances are earlier utterances of the session, oldest first.
	RecentUtterances []string
}

// Responder is the contract of one specialist.
type Responder interface {
	ID() string
	Descriptor() domain.CapabilityDescriptor

	// Relevance is an optional refinement of keyword scoring. It is pure and
	// only consulted for responders whose keywords already matched.
	Relevance(utterance string, prior *domain.SessionSnapshot) float64

	// Process produces the responder's outcome for one turn. deadline is
	// absolute; Process never calls the gateway once it has passed and
	// never panics.
	Process(ctx context.Context, tc TurnContext, gw ports.Gateway, deadline time.Time) domain.Outcome

	// Fallback returns the canned reply for the utterance's coarse intent.
	Fallback(utterance string) string
}

const (
	// MaxOutputChars caps one responder's post-processed text.
	MaxOutputChars = 1500

	// cueBonus is the refinement added when an utterance carries a variant's cue words.
	cueBonus = 1.0
)

// fallback is a canned reply selected when any of its keywords occurs in the
// normalized utterance. An entry without keywords is the general reply.
type fallback struct {
	keywords []string
	text     string
}

// variant carries the parts that differ between responders.
type variant interface {
	systemPrompt() string
	task(tc TurnContext) string
	fallbacks() []fallback
	cues() []string
	insights(normalized string, tc TurnContext) map[string]any
}

// base implements Responder on top of a variant.
type base struct {
	desc domain.CapabilityDescriptor
	v    variant
	now  func() time.Time
}

func newBase(desc domain.CapabilityDescriptor, v variant) base {
	return base{desc: desc, v: v, now: time.Now}
}

func (b *base) ID() string {
	return b.desc.ID
}

func (b *base) Descriptor() domain.CapabilityDescriptor {
	return b.desc
}

func (b *base) Relevance(utterance string, _ *domain.SessionSnapshot) float64 {
	if containsAny(router.Normalize(utterance), b.v.cues()...) {
		return cueBonus
	}
	return 0
}

func (b *base) Fallback(utterance string) string {
	normalized := router.Normalize(utterance)
	table := b.v.fallbacks()
	for _, f := range table {
		if len(f.keywords) > 0 && containsAny(normalized, f.keywords...) {
			return f.text
		}
	}
	for _, f := range table {
		if len(f.keywords) == 0 {
			return f.text
		}
	}
	return fmt.Sprintf("%s is here to help with your trip. Tell me a little more about what you need.", b.desc.Label())
}

func (b *base) Process(ctx context.Context, tc TurnContext, gw ports.Gateway, deadline time.Time) (out domain.Outcome) {
	start := b.now()
	defer func() {
		if r := recover(); r != nil {
			out = domain.Failed{
				ErrorKind: domain.ErrorInternal,
				Detail:    fmt.Sprintf("panic: %v", r),
				Fallback:  b.safeFallback(tc.Utterance),
			}
		}
	}()

	if strings.TrimSpace(tc.Utterance) == "" {
		return domain.Success{Text: b.Fallback(""), Canned: true}
	}

	fb := b.Fallback(tc.Utterance)
	remaining := deadline.Sub(start)
	if remaining <= 0 {
		return domain.TimedOut{AfterMs: 0, Fallback: fb}
	}
	if gw == nil {
		return domain.Failed{ErrorKind: domain.ErrorUnavailable, Detail: "no gateway configured", Fallback: fb}
	}

	req := ports.GenerateRequest{
		Prompt:       b.prompt(tc),
		SystemPrompt: b.v.systemPrompt(),
		MaxTokens:    tc.MaxTokens,
		Temperature:  tc.Temperature,
		Timeout:      remaining,
	}

	callCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	text, err := gw.Generate(callCtx, req)
	elapsed := b.now().Sub(start)
	if err != nil {
		return classify(err, elapsed, fb)
	}

	text = postProcess(text, b.desc.Label())
	if text == "" {
		return domain.Failed{ErrorKind: domain.ErrorInvalidResponse, Detail: "empty response", Fallback: fb}
	}

	return domain.Success{
		Text:                 text,
		StructuredData:       b.v.insights(router.Normalize(tc.Utterance), tc),
		ContributedLatencyMs: elapsed.Milliseconds(),
	}
}

// safeFallback is used from the panic handler, where the fallback table
// itself may be the cause.
func (b *base) safeFallback(utterance string) (text string) {
	defer func() {
		if recover() != nil {
			text = fmt.Sprintf("%s could not answer this time. Please try again.", b.desc.Label())
		}
	}()
	return b.Fallback(utterance)
}

func classify(err error, elapsed time.Duration, fb string) domain.Outcome {
	switch {
	case errors.Is(err, domain.ErrGatewayTimeout), errors.Is(err, context.DeadlineExceeded):
		return domain.TimedOut{AfterMs: elapsed.Milliseconds(), Fallback: fb}
	case errors.Is(err, domain.ErrInvalidResponse):
		return domain.Failed{ErrorKind: domain.ErrorInvalidResponse, Detail: err.Error(), Fallback: fb}
	default:
		return domain.Failed{ErrorKind: domain.ErrorUnavailable, Detail: err.Error(), Fallback: fb}
	}
}

// prompt embeds the utterance, the session context and the variant's task.
func (b *base) prompt(tc TurnContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Traveler: %q\n", tc.Utterance)

	if len(tc.RecentUtterances) > 0 {
		sb.WriteString("\nEarlier in this conversation:\n")
		for _, u := range tc.RecentUtterances {
			fmt.Fprintf(&sb, "- %s\n", u)
		}
	}

	if facts := describeProfile(tc.PriorProfile); facts != "" {
		fmt.Fprintf(&sb, "\nWhat we know about the traveler: %s\n", facts)
	}

	var peers []string
	for _, id := range tc.Selected {
		if id != b.desc.ID {
			peers = append(peers, id)
		}
	}
	if len(peers) > 0 {
		fmt.Fprintf(&sb, "\nOther specialists answering this turn: %s. Stay within your own focus.\n", strings.Join(peers, ", "))
	}

	sb.WriteString("\n")
	sb.WriteString(b.v.task(tc))
	return sb.String()
}

// describeProfile flattens a profile into sorted "key: value" pairs.
func describeProfile(profile map[string]any) string {
	if len(profile) == 0 {
		return ""
	}
	keys := make([]string, 0, len(profile))
	for k := range profile {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		switch v := profile[k].(type) {
		case map[string]any:
			if nested := describeProfile(v); nested != "" {
				parts = append(parts, nested)
			}
		case []any:
			items := make([]string, 0, len(v))
			for _, item := range v {
				items = append(items, fmt.Sprint(item))
			}
			parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(items, ", ")))
		default:
			parts = append(parts, fmt.Sprintf("%s: %v", k, v))
		}
	}
	return strings.Join(parts, "; ")
}

// postProcess trims the text, drops a leading "Name:" echo and caps the length
// at a word boundary.
func postProcess(text, label string) string {
	text = strings.TrimSpace(text)
	for _, prefix := range []string{label + ":", "**" + label + ":**", "**" + label + "**:"} {
		if len(text) >= len(prefix) && strings.EqualFold(text[:len(prefix)], prefix) {
			text = strings.TrimSpace(text[len(prefix):])
			break
		}
	}
	return truncate(text, MaxOutputChars)
}

func truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	cut := string(runes[:max])
	if i := strings.LastIndexAny(cut, " \n\t"); i > max/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " \n\t.,;:") + "…"
}

// containsAny reports whether any needle occurs in the normalized haystack.
func containsAny(normalized string, needles ...string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(normalized, n) {
			return true
		}
	}
	return false
}

// matching returns the needles found in normalized, in needle order.
func matching(normalized string, needles ...string) []string {
	var out []string
	for _, n := range needles {
		if strings.Contains(normalized, n) {
			out = append(out, n)
		}
	}
	return out
}

// hasToken reports whether any word occurs as a whole token.
func hasToken(normalized string, words ...string) bool {
	tokens := router.Tokens(normalized)
	for _, w := range words {
		for _, t := range tokens {
			if t == w {
				return true
			}
		}
	}
	return false
}

func toAny(items []string) []any {
	out := make([]any, len(items))
	for i, s := range items {
		out[i] = s
	}
	return out
}
