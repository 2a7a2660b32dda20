package ports

import (
	"context"

	"github.com/aretw0/wayfarer/pkg/domain"
)

// SessionStore persists session context between turns.
// Writes are merges: a store never replaces a snapshot wholesale.
type SessionStore interface {
	// Get retrieves the snapshot for a session key.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Get(ctx context.Context, key string) (*domain.SessionSnapshot, error)

	// Merge applies the patch to the stored snapshot, creating it if needed,
	// and returns the merged result.
	Merge(ctx context.Context, key string, patch domain.SessionPatch) (*domain.SessionSnapshot, error)

	// Delete removes the snapshot for a session key.
	Delete(ctx context.Context, key string) error

	// List returns the keys of live sessions.
	List(ctx context.Context) ([]string, error)
}
