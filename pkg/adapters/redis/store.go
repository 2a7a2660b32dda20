package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/wayfarer/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the store and the locker.
const DefaultPrefix = "wayfarer:session:"

// maxMergeAttempts bounds optimistic-lock retries when merges on one key collide.
const maxMergeAttempts = 8

// Store implements ports.SessionStore using Redis.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration for sessions. Every merge refreshes it.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for sessions.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
		ttl:    0, // No expiration by default
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// Client exposes the underlying client so a Locker can share it.
func (s *Store) Client() *backend.Client {
	return s.client
}

// Prefix returns the key prefix in use.
func (s *Store) Prefix() string {
	return s.prefix
}

func (s *Store) key(sessionKey string) string {
	return s.prefix + sessionKey
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Get retrieves the snapshot from Redis.
func (s *Store) Get(ctx context.Context, key string) (*domain.SessionSnapshot, error) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	return decode(val)
}

// Merge reads, patches and writes the snapshot inside a WATCH/MULTI transaction.
// A concurrent writer on the same key makes the transaction fail, and it is retried
// against the fresh value, so no merged field is ever lost.
func (s *Store) Merge(ctx context.Context, key string, patch domain.SessionPatch) (*domain.SessionSnapshot, error) {
	redisKey := s.key(key)

	var merged *domain.SessionSnapshot
	txf := func(tx *backend.Tx) error {
		snap := domain.NewSessionSnapshot()
		val, err := tx.Get(ctx, redisKey).Result()
		switch {
		case err == backend.Nil:
		case err != nil:
			return fmt.Errorf("failed to get from redis: %w", err)
		default:
			if snap, err = decode(val); err != nil {
				return err
			}
		}

		snap.Apply(patch)
		data, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
			// Use 0 for no expiration if ttl is not set.
			pipe.Set(ctx, redisKey, data, s.ttl)
			pipe.ZAdd(ctx, s.indexKey(), backend.Z{
				Score:  s.expiryScore(),
				Member: key,
			})
			return nil
		})
		if err == nil {
			merged = snap
		}
		return err
	}

	for attempt := 0; attempt < maxMergeAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, redisKey)
		if err == nil {
			return merged, nil
		}
		if errors.Is(err, backend.TxFailedErr) {
			continue
		}
		return nil, fmt.Errorf("failed to merge into redis: %w", err)
	}
	return nil, fmt.Errorf("failed to merge into redis: %d conflicting attempts on %q", maxMergeAttempts, key)
}

// expiryScore is Now + TTL. Sessions without TTL get a far-future score.
func (s *Store) expiryScore() float64 {
	if s.ttl == 0 {
		return 4102444800 // 2100-01-01
	}
	return float64(time.Now().Add(s.ttl).Unix())
}

// Delete removes the session and its index entry.
func (s *Store) Delete(ctx context.Context, key string) error {
	pipe := s.client.Pipeline()

	pipe.Del(ctx, s.key(key))
	pipe.ZRem(ctx, s.indexKey(), key)

	_, err := pipe.Exec(ctx)
	return err
}

// List returns live sessions, pruning expired index entries first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())

	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired sessions: %w", err)
	}

	sessions, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	return sessions, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

func decode(val string) (*domain.SessionSnapshot, error) {
	var snap domain.SessionSnapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	if snap.AccumulatedProfile == nil {
		snap.AccumulatedProfile = map[string]any{}
	}
	if snap.ActiveResponderIDs == nil {
		snap.ActiveResponderIDs = []string{}
	}
	return &snap, nil
}
