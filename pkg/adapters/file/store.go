// Package file stores sessions as JSON documents in a local directory.
// It suits single-process CLI use; concurrent processes need the Redis store.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/wayfarer/pkg/domain"
)

const ext = ".json"

// Store implements ports.SessionStore using the local filesystem.
type Store struct {
	BasePath string

	mu sync.Mutex // serializes read-modify-write in Merge
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".wayfarer/sessions".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".wayfarer", "sessions")
	}
	return &Store{BasePath: basePath}
}

// path escapes the key so it can never leave BasePath.
func (s *Store) path(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("session key cannot be empty")
	}
	return filepath.Join(s.BasePath, url.PathEscape(key)+ext), nil
}

// Get retrieves the snapshot from its JSON file.
func (s *Store) Get(ctx context.Context, key string) (*domain.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(key)
}

func (s *Store) read(key string) (*domain.SessionSnapshot, error) {
	filePath, err := s.path(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	snap := domain.NewSessionSnapshot()
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if snap.AccumulatedProfile == nil {
		snap.AccumulatedProfile = map[string]any{}
	}
	return snap, nil
}

// Merge applies the patch to the stored snapshot and rewrites the file atomically.
func (s *Store) Merge(ctx context.Context, key string, patch domain.SessionPatch) (*domain.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.read(key)
	switch {
	case err == domain.ErrSessionNotFound:
		snap = domain.NewSessionSnapshot()
	case err != nil:
		return nil, err
	}
	snap.Apply(patch)

	if err := s.write(key, snap); err != nil {
		return nil, err
	}
	return snap.Clone(), nil
}

// write persists the snapshot atomically.
// It writes to a temporary file first, syncs via fsync, and then renames it to the destination.
func (s *Store) write(key string, snap *domain.SessionSnapshot) error {
	destPath, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.BasePath, 0o755); err != nil {
		return fmt.Errorf("failed to ensure session directory: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	// Same directory, so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(s.BasePath, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // no-op once renamed
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Cannot rename an open file on Windows.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// On Windows, os.Rename fails if dest exists.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing session file for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file to session file: %w", err)
	}
	return nil
}

// Delete removes the session file.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	filePath, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session file: %w", err)
	}
	return nil
}

// List returns the session keys in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	keys := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ext) {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, ext))
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}
