package registry

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/aretw0/wayfarer/pkg/domain"
	"github.com/aretw0/wayfarer/pkg/ports"
)

// Registry is the validated capability catalogue.
// It is read-only after construction and safe to share between turns without locking.
type Registry struct {
	source      string
	descriptors []domain.CapabilityDescriptor
	index       map[string]int
	defaultID   string
}

// Load reads a capability source once and validates it.
// Every problem is reported as *domain.ConfigError.
func Load(ctx context.Context, src ports.CapabilitySource) (*Registry, error) {
	descriptors, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	return New(src.Name(), descriptors)
}

// New validates descriptors and builds a registry from them.
// Keywords are lowercased, trimmed and deduplicated; order is otherwise kept.
func New(source string, descriptors []domain.CapabilityDescriptor) (*Registry, error) {
	if len(descriptors) == 0 {
		return nil, &domain.ConfigError{Source: source, Index: -1, Reason: "catalogue is empty"}
	}

	r := &Registry{
		source:      source,
		descriptors: make([]domain.CapabilityDescriptor, 0, len(descriptors)),
		index:       make(map[string]int, len(descriptors)),
	}

	for i, d := range descriptors {
		d, err := normalize(source, i, d)
		if err != nil {
			return nil, err
		}
		if _, dup := r.index[d.ID]; dup {
			return nil, &domain.ConfigError{Source: source, Index: i, ID: d.ID, Reason: "duplicate id"}
		}
		if d.Default {
			if r.defaultID != "" {
				return nil, &domain.ConfigError{
					Source: source, Index: i, ID: d.ID,
					Reason: fmt.Sprintf("second default responder (already %q)", r.defaultID),
				}
			}
			r.defaultID = d.ID
		}
		r.index[d.ID] = len(r.descriptors)
		r.descriptors = append(r.descriptors, d)
	}

	if r.defaultID == "" {
		return nil, &domain.ConfigError{Source: source, Index: -1, Reason: "no default responder"}
	}

	for i, d := range r.descriptors {
		for _, hint := range d.DownstreamHint {
			if hint == d.ID {
				return nil, &domain.ConfigError{Source: source, Index: i, ID: d.ID, Reason: "downstream hint points to itself"}
			}
			if _, ok := r.index[hint]; !ok {
				return nil, &domain.ConfigError{
					Source: source, Index: i, ID: d.ID,
					Reason: fmt.Sprintf("downstream hint %q is not registered", hint),
				}
			}
		}
	}

	return r, nil
}

func normalize(source string, i int, d domain.CapabilityDescriptor) (domain.CapabilityDescriptor, error) {
	d.ID = strings.TrimSpace(d.ID)
	if d.ID == "" {
		return d, &domain.ConfigError{Source: source, Index: i, Reason: "missing id"}
	}

	d.Keywords = dedupe(d.Keywords, strings.ToLower)
	if len(d.Keywords) == 0 {
		return d, &domain.ConfigError{Source: source, Index: i, ID: d.ID, Reason: "empty keyword set"}
	}

	if math.IsNaN(d.PriorityWeight) || d.PriorityWeight < 0 || d.PriorityWeight > 10 {
		return d, &domain.ConfigError{
			Source: source, Index: i, ID: d.ID,
			Reason: fmt.Sprintf("priority_weight %v outside [0, 10]", d.PriorityWeight),
		}
	}

	d.Patterns = dedupe(d.Patterns, nil)
	for _, p := range d.Patterns {
		if _, err := regexp.Compile(p); err != nil {
			return d, &domain.ConfigError{Source: source, Index: i, ID: d.ID, Reason: "invalid pattern", Err: err}
		}
	}

	d.DownstreamHint = dedupe(d.DownstreamHint, nil)
	return d, nil
}

func dedupe(in []string, transform func(string) string) []string {
	var out []string
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if transform != nil {
			s = transform(s)
		}
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// Source names where the catalogue came from.
func (r *Registry) Source() string {
	return r.source
}

// All returns the descriptors in catalogue order.
func (r *Registry) All() []domain.CapabilityDescriptor {
	out := make([]domain.CapabilityDescriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

// IDs returns the registered ids in catalogue order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.descriptors))
	for i, d := range r.descriptors {
		ids[i] = d.ID
	}
	return ids
}

// ByID looks up a descriptor.
func (r *Registry) ByID(id string) (domain.CapabilityDescriptor, error) {
	i, ok := r.index[id]
	if !ok {
		return domain.CapabilityDescriptor{}, fmt.Errorf("%w: %s", domain.ErrCapabilityNotFound, id)
	}
	return r.descriptors[i], nil
}

// Default returns the general-purpose responder.
func (r *Registry) Default() domain.CapabilityDescriptor {
	return r.descriptors[r.index[r.defaultID]]
}

// Len returns the number of registered responders.
func (r *Registry) Len() int {
	return len(r.descriptors)
}
