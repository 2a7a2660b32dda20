package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/aretw0/wayfarer/internal/logging"
	"github.com/aretw0/wayfarer/pkg/domain"
	"github.com/aretw0/wayfarer/pkg/ports"
)

// DefaultLockTTL bounds how long a crashed holder can keep a distributed session lock.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds a one-slot semaphore and the reference count.
// A channel is used instead of a mutex so waiting honours context deadlines.
type lockEntry struct {
	sem  chan struct{}
	refs int
}

// Manager mediates access to the session store.
// Reads never fail a turn: missing or unreadable sessions become empty snapshots.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store ports.SessionStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new Session Manager with the given persistence store.
func NewManager(store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller must call release(key) once done with the entry.
func (m *Manager) acquire(key string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		entry = &lockEntry{sem: make(chan struct{}, 1)}
		m.locks[key] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, key)
	}
}

// Get returns the session snapshot, or an empty one for unknown sessions.
// Store failures are returned as *domain.StoreError.
func (m *Manager) Get(ctx context.Context, key string) (*domain.SessionSnapshot, error) {
	snap, err := m.store.Get(ctx, key)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return domain.NewSessionSnapshot(), nil
	}
	if err != nil {
		return nil, &domain.StoreError{Op: "get", Key: key, Err: err}
	}
	return snap, nil
}

// Merge applies a patch to the stored session.
func (m *Manager) Merge(ctx context.Context, key string, patch domain.SessionPatch) (*domain.SessionSnapshot, error) {
	snap, err := m.store.Merge(ctx, key, patch)
	if err != nil {
		return nil, &domain.StoreError{Op: "merge", Key: key, Err: err}
	}
	return snap, nil
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, key string) error {
	if err := m.store.Delete(ctx, key); err != nil {
		return &domain.StoreError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	keys, err := m.store.List(ctx)
	if err != nil {
		return nil, &domain.StoreError{Op: "list", Err: err}
	}
	return keys, nil
}

// Store returns the underlying session store.
func (m *Manager) Store() ports.SessionStore {
	return m.store
}

// Lock holds the session exclusively until the returned release func is called.
// Waiting stops when ctx is done.
func (m *Manager) Lock(ctx context.Context, key string) (func(), error) {
	entry := m.acquire(key)
	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		m.release(key)
		return nil, fmt.Errorf("session %q busy: %w", key, ctx.Err())
	}

	local := func() {
		<-entry.sem
		m.release(key)
	}

	if m.locker == nil {
		return local, nil
	}

	unlock, err := m.locker.Lock(ctx, key, m.lockTTL)
	if err != nil {
		local()
		return nil, fmt.Errorf("failed to acquire distributed lock: %w", err)
	}
	return func() {
		// Release with a fresh context: the caller's may already be done.
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := unlock(releaseCtx); err != nil {
			m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
				"session_key", key,
				"err", err,
			)
		}
		local()
	}, nil
}

// WithLock executes fn while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	unlock, err := m.Lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()
	return fn(ctx)
}
