package session

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/aretw0/wayfarer/pkg/adapters/memory"
	"github.com/aretw0/wayfarer/pkg/domain"
)

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(memory.NewStore())
	ctx := context.Background()
	count := 10000

	for i := 0; i < count; i++ {
		sid := fmt.Sprintf("session-%d", i)
		_ = mgr.WithLock(ctx, sid, func(ctx context.Context) error {
			_, err := mgr.Merge(ctx, sid, domain.SessionPatch{ActiveResponderIDs: []string{"trip_analyzer"}})
			return err
		})
		_ = mgr.Delete(ctx, sid)
	}

	// Every released key must leave the map.
	if lockCount := len(mgr.locks); lockCount != 0 {
		t.Errorf("Memory Leak Detected: %d locks remaining in memory after release", lockCount)
	}
}

func TestManager_LockContention(t *testing.T) {
	mgr := NewManager(memory.NewStore())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = mgr.WithLock(ctx, "shared", func(context.Context) error { return nil })
		}()
	}
	wg.Wait()

	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	if len(mgr.locks) != 0 {
		t.Errorf("expected no lock entries after contention, got %d", len(mgr.locks))
	}
}
