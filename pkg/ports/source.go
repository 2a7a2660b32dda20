package ports

import (
	"context"

	"github.com/aretw0/wayfarer/pkg/domain"
)

// CapabilitySource produces the capability catalogue.
// It is read once at startup; validation is the registry's job.
type CapabilitySource interface {
	// Name identifies the source in configuration errors.
	Name() string

	// Load returns the raw descriptors. Decoding problems are reported as *domain.ConfigError.
	Load(ctx context.Context) ([]domain.CapabilityDescriptor, error)
}
