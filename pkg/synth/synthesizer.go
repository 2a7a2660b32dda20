// Package synth merges the outcomes of one turn into a single reply.
package synth

import (
	"fmt"

	"github.com/aretw0/wayfarer/pkg/domain"
)

const (
	// DefaultMaxChars is the combined reply ceiling.
	DefaultMaxChars = 6000

	// DefaultSeparator sits between attributed segments.
	DefaultSeparator = "\n\n---\n\n"

	// LastResort is returned when no outcome carries any text at all.
	LastResort = "I'm here to help with your trip. Could you tell me a bit more about what you need?"
)

// Result is the synthesized reply of one turn.
type Result struct {
	Reply string

	// Contributors are the responders whose text appears in Reply, in selection order.
	Contributors []string

	// AggregateLatencyMs sums the latency of every successful outcome.
	AggregateLatencyMs int64

	// UsedFallback is set when any selected responder did not produce generated text.
	UsedFallback bool

	// ProfileUpdate is the structured data of all successes, merged in selection order.
	ProfileUpdate map[string]any

	// Profile is the prior profile with ProfileUpdate merged in.
	Profile map[string]any
}

// Synthesizer is stateless and safe for concurrent use.
type Synthesizer struct {
	maxChars  int
	separator string
	labels    map[string]string
}

// Option configures the Synthesizer.
type Option func(*Synthesizer)

// WithMaxChars sets the combined reply ceiling.
func WithMaxChars(n int) Option {
	return func(s *Synthesizer) {
		if n > 0 {
			s.maxChars = n
		}
	}
}

// WithSeparator sets the text placed between segments.
func WithSeparator(sep string) Option {
	return func(s *Synthesizer) {
		s.separator = sep
	}
}

// WithLabels sets the attribution label per responder id.
// Ids without a label are attributed by id.
func WithLabels(labels map[string]string) Option {
	return func(s *Synthesizer) {
		s.labels = labels
	}
}

// New creates a Synthesizer.
func New(opts ...Option) *Synthesizer {
	s := &Synthesizer{
		maxChars:  DefaultMaxChars,
		separator: DefaultSeparator,
		labels:    map[string]string{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize merges results in selection order. It never returns an empty reply.
// Missing entries in results count as timed out without a fallback.
func (s *Synthesizer) Synthesize(selection []string, results map[string]domain.Outcome, prior map[string]any) Result {
	var (
		res       Result
		successes []string
		update    = map[string]any{}
	)

	for _, id := range selection {
		o := results[id]
		if !domain.Generated(o) {
			res.UsedFallback = true
		}
		success, ok := o.(domain.Success)
		if !ok || success.Text == "" {
			continue
		}
		successes = append(successes, id)
		res.AggregateLatencyMs += success.ContributedLatencyMs
		if len(success.StructuredData) > 0 {
			update = domain.MergeProfile(update, success.StructuredData)
		}
	}

	res.ProfileUpdate = update
	res.Profile = domain.MergeProfile(prior, update)

	switch len(successes) {
	case 0:
		res.Reply, res.Contributors = s.fallback(selection, results)
	case 1:
		res.Reply = results[successes[0]].(domain.Success).Text
		res.Contributors = successes
	default:
		res.Reply, res.Contributors = s.concat(successes, results)
	}
	return res
}

// fallback picks the first canned text in selection order.
func (s *Synthesizer) fallback(selection []string, results map[string]domain.Outcome) (string, []string) {
	for _, id := range selection {
		o := results[id]
		if o == nil {
			continue
		}
		if text := o.FallbackText(); text != "" {
			return text, []string{id}
		}
	}
	return LastResort, []string{}
}

// concat joins labelled segments, dropping whole segments from the end until
// the reply fits. The first segment is always kept.
func (s *Synthesizer) concat(ids []string, results map[string]domain.Outcome) (string, []string) {
	var (
		reply        []rune
		contributors []string
	)
	sep := []rune(s.separator)
	for i, id := range ids {
		segment := []rune(s.segment(id, results[id].(domain.Success).Text))
		if i == 0 {
			reply = segment
			contributors = append(contributors, id)
			continue
		}
		if len(reply)+len(sep)+len(segment) > s.maxChars {
			break
		}
		reply = append(append(reply, sep...), segment...)
		contributors = append(contributors, id)
	}
	return string(reply), contributors
}

func (s *Synthesizer) segment(id, text string) string {
	return fmt.Sprintf("**%s**\n\n%s", s.label(id), text)
}

func (s *Synthesizer) label(id string) string {
	if l, ok := s.labels[id]; ok && l != "" {
		return l
	}
	return id
}
