package registry

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"github.com/aretw0/wayfarer/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

//go:embed catalogue.yaml
var defaultCatalogue []byte

// Record is the on-disk shape of one capability entry.
type Record struct {
	ID             string   `json:"id" yaml:"id" mapstructure:"id"`
	Name           string   `json:"name" yaml:"name" mapstructure:"name"`
	Role           string   `json:"role" yaml:"role" mapstructure:"role"`
	Description    string   `json:"description" yaml:"description" mapstructure:"description"`
	Keywords       []string `json:"keywords" yaml:"keywords" mapstructure:"keywords"`
	Patterns       []string `json:"patterns" yaml:"patterns" mapstructure:"patterns"`
	PriorityWeight float64  `json:"priority_weight" yaml:"priority_weight" mapstructure:"priority_weight"`
	HighPriority   bool     `json:"high_priority" yaml:"high_priority" mapstructure:"high_priority"`
	DownstreamHint []string `json:"downstream_hint" yaml:"downstream_hint" mapstructure:"downstream_hint"`
	Default        bool     `json:"default" yaml:"default" mapstructure:"default"`
}

// Descriptor converts the record into its domain form.
func (r Record) Descriptor() domain.CapabilityDescriptor {
	return domain.CapabilityDescriptor{
		ID:             r.ID,
		Name:           r.Name,
		Role:           r.Role,
		Description:    r.Description,
		Keywords:       r.Keywords,
		Patterns:       r.Patterns,
		PriorityWeight: r.PriorityWeight,
		HighPriority:   r.HighPriority,
		DownstreamHint: r.DownstreamHint,
		Default:        r.Default,
	}
}

// DecodeRecord decodes one raw mapping. Unknown keys are rejected so typos surface at startup.
func DecodeRecord(source string, index int, raw map[string]any) (domain.CapabilityDescriptor, error) {
	var rec Record
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &rec,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return domain.CapabilityDescriptor{}, fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		id, _ := raw["id"].(string)
		return domain.CapabilityDescriptor{}, &domain.ConfigError{
			Source: source, Index: index, ID: id, Reason: "malformed record", Err: err,
		}
	}
	return rec.Descriptor(), nil
}

// Parse reads a YAML or JSON catalogue: either a list of records or a
// mapping with a "responders" list.
func Parse(source string, data []byte) ([]domain.CapabilityDescriptor, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &domain.ConfigError{Source: source, Index: -1, Reason: "unreadable catalogue", Err: err}
	}

	var items []any
	switch v := raw.(type) {
	case nil:
	case []any:
		items = v
	case map[string]any:
		list, ok := v["responders"].([]any)
		if !ok {
			return nil, &domain.ConfigError{Source: source, Index: -1, Reason: `expected a "responders" list`}
		}
		items = list
	default:
		return nil, &domain.ConfigError{Source: source, Index: -1, Reason: fmt.Sprintf("unexpected top-level %T", raw)}
	}

	descriptors := make([]domain.CapabilityDescriptor, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, &domain.ConfigError{Source: source, Index: i, Reason: "record is not a mapping"}
		}
		d, err := DecodeRecord(source, i, m)
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, d)
	}
	return descriptors, nil
}

// FileSource loads a catalogue file.
type FileSource struct {
	Path string
}

// NewFileSource creates a source for a YAML or JSON file.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Name() string { return s.Path }

func (s *FileSource) Load(ctx context.Context) ([]domain.CapabilityDescriptor, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, &domain.ConfigError{Source: s.Path, Index: -1, Reason: "cannot read catalogue", Err: err}
	}
	return Parse(s.Path, data)
}

// BytesSource loads a catalogue held in memory.
type BytesSource struct {
	Label string
	Data  []byte
}

func (s *BytesSource) Name() string { return s.Label }

func (s *BytesSource) Load(ctx context.Context) ([]domain.CapabilityDescriptor, error) {
	return Parse(s.Label, s.Data)
}

// DefaultSource returns the built-in travel catalogue.
func DefaultSource() *BytesSource {
	return &BytesSource{Label: "embedded", Data: defaultCatalogue}
}

// StaticSource serves descriptors built in code.
type StaticSource []domain.CapabilityDescriptor

func (s StaticSource) Name() string { return "static" }

func (s StaticSource) Load(ctx context.Context) ([]domain.CapabilityDescriptor, error) {
	return append([]domain.CapabilityDescriptor(nil), s...), nil
}
