package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/wayfarer/pkg/domain"
	"github.com/aretw0/wayfarer/pkg/ports"
)

// Mask replaces every redacted value.
const Mask = "***"

// DefaultTextPatterns catch international phone numbers, e-mail addresses
// and long digit runs such as card numbers. Order matters.
var DefaultTextPatterns = []string{
	`\+\d[\d ()-]{7,}\d`,
	`[\w.+-]+@[\w-]+\.[\w.-]+`,
	`\b\d(?:[ -]?\d){8,}\b`,
}

type piiMiddleware struct {
	next ports.SessionStore
	keys []*regexp.Regexp
	text []*regexp.Regexp
}

// NewPIIMiddleware masks profile values whose key matches keyPatterns and
// every match of textPatterns inside stored utterances. Nothing is unmasked
// on read.
func NewPIIMiddleware(keyPatterns, textPatterns []string) (Middleware, error) {
	keys, err := compile(keyPatterns)
	if err != nil {
		return nil, err
	}
	text, err := compile(textPatterns)
	if err != nil {
		return nil, err
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &piiMiddleware{next: next, keys: keys, text: text}
	}, nil
}

func compile(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pii pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func (m *piiMiddleware) Get(ctx context.Context, key string) (*domain.SessionSnapshot, error) {
	return m.next.Get(ctx, key)
}

func (m *piiMiddleware) Merge(ctx context.Context, key string, patch domain.SessionPatch) (*domain.SessionSnapshot, error) {
	// Copy before masking; the caller still owns the patch.
	if len(patch.Profile) > 0 {
		profile := domain.MergeProfile(nil, patch.Profile)
		m.maskMap(profile)
		patch.Profile = profile
	}
	if patch.Turn != nil {
		turn := *patch.Turn
		turn.Utterance = m.Redact(turn.Utterance)
		patch.Turn = &turn
	}
	return m.next.Merge(ctx, key, patch)
}

func (m *piiMiddleware) Delete(ctx context.Context, key string) error {
	return m.next.Delete(ctx, key)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *piiMiddleware) Close() error {
	return closeNext(m.next)
}

// Redact masks every text pattern match in s.
func (m *piiMiddleware) Redact(s string) string {
	for _, re := range m.text {
		s = re.ReplaceAllString(s, Mask)
	}
	return s
}

func (m *piiMiddleware) maskMap(profile map[string]any) {
	for k, v := range profile {
		if m.sensitive(k) {
			profile[k] = Mask
			continue
		}
		switch val := v.(type) {
		case map[string]any:
			m.maskMap(val)
		case string:
			profile[k] = m.Redact(val)
		}
	}
}

func (m *piiMiddleware) sensitive(key string) bool {
	for _, re := range m.keys {
		if re.MatchString(key) {
			return true
		}
	}
	return false
}
