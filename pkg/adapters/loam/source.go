// Package loam reads a capability catalogue from a directory of markdown,
// YAML or JSON documents managed by Loam. Each document describes one responder.
package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/wayfarer/pkg/domain"
)

// Source adapts a Loam repository to ports.CapabilitySource.
type Source struct {
	Repo *loam.TypedRepository[CapabilityMetadata]
	name string
}

// New wraps an existing typed repository.
func New(repo *loam.TypedRepository[CapabilityMetadata], name string) *Source {
	return &Source{Repo: repo, name: name}
}

// Open initializes a read-only repository rooted at dir.
func Open(dir string) (*Source, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	repo, err := loam.Init(absPath, loam.WithReadOnly(true))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[CapabilityMetadata](repo), absPath), nil
}

// Name implements ports.CapabilitySource.
func (s *Source) Name() string {
	if s.name == "" {
		return "loam"
	}
	return s.name
}

type entry struct {
	path  string
	order int
	rec   domain.CapabilityDescriptor
}

// Load implements ports.CapabilitySource.
func (s *Source) Load(ctx context.Context) ([]domain.CapabilityDescriptor, error) {
	docs, err := s.Repo.List(ctx)
	if err != nil {
		return nil, &domain.ConfigError{Source: s.Name(), Index: -1, Reason: "loam list failed", Err: err}
	}

	entries := make([]entry, 0, len(docs))
	seen := make(map[string]string, len(docs))
	for _, doc := range docs {
		id := doc.Data.ID
		if id == "" {
			id = trimExtension(doc.ID)
		}
		if prev, ok := seen[id]; ok {
			return nil, &domain.ConfigError{
				Source: s.Name(), Index: -1, ID: id,
				Reason: fmt.Sprintf("defined in both %q and %q", prev, doc.ID),
			}
		}
		seen[id] = doc.ID
		rec := doc.Data.record(id, strings.TrimSpace(doc.Content))
		entries = append(entries, entry{path: doc.ID, order: doc.Data.Order, rec: rec.Descriptor()})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].order != entries[j].order {
			return entries[i].order < entries[j].order
		}
		return entries[i].path < entries[j].path
	})

	out := make([]domain.CapabilityDescriptor, len(entries))
	for i, e := range entries {
		out[i] = e.rec
	}
	return out, nil
}

func trimExtension(id string) string {
	return filepath.ToSlash(strings.TrimSuffix(id, filepath.Ext(id)))
}
