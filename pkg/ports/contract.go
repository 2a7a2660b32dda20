package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/wayfarer/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore
// implementation honours the merge-not-overwrite contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	key := "contract-" + time.Now().Format("20060102150405.000000000")

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.Get(ctx, "missing-"+key)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Merge Creates", func(t *testing.T) {
		k := key + "-create"
		defer func() { _ = store.Delete(ctx, k) }()

		merged, err := store.Merge(ctx, k, domain.SessionPatch{
			ActiveResponderIDs: []string{"trip_analyzer"},
			Profile:            map[string]any{"travel_pace": "relaxed"},
			Turn:               &domain.TurnRecord{Utterance: "plan a trip", At: time.Now().UTC()},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, merged.TurnCount)

		loaded, err := store.Get(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, []string{"trip_analyzer"}, loaded.ActiveResponderIDs)
		assert.Equal(t, "relaxed", loaded.AccumulatedProfile["travel_pace"])
		require.Len(t, loaded.RecentTurns, 1)
		assert.Equal(t, "plan a trip", loaded.RecentTurns[0].Utterance)
	})

	t.Run("Merge Never Erases", func(t *testing.T) {
		k := key + "-merge"
		defer func() { _ = store.Delete(ctx, k) }()

		_, err := store.Merge(ctx, k, domain.SessionPatch{Profile: map[string]any{"a": 1, "b": 2}})
		require.NoError(t, err)
		_, err = store.Merge(ctx, k, domain.SessionPatch{Profile: map[string]any{"b": nil, "c": 3}})
		require.NoError(t, err)

		loaded, err := store.Get(ctx, k)
		require.NoError(t, err)
		// Persistence may turn integers into float64; compare loosely.
		assert.EqualValues(t, 1, loaded.AccumulatedProfile["a"])
		assert.EqualValues(t, 2, loaded.AccumulatedProfile["b"])
		assert.EqualValues(t, 3, loaded.AccumulatedProfile["c"])
	})

	t.Run("Returned Snapshot Is Detached", func(t *testing.T) {
		k := key + "-detached"
		defer func() { _ = store.Delete(ctx, k) }()

		_, err := store.Merge(ctx, k, domain.SessionPatch{Profile: map[string]any{"x": "original"}})
		require.NoError(t, err)

		loaded, err := store.Get(ctx, k)
		require.NoError(t, err)
		loaded.AccumulatedProfile["x"] = "mutated"

		again, err := store.Get(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, "original", again.AccumulatedProfile["x"])
	})

	t.Run("Delete", func(t *testing.T) {
		k := key + "-delete"
		_, err := store.Merge(ctx, k, domain.SessionPatch{Profile: map[string]any{"x": 1}})
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, k))

		_, err = store.Get(ctx, k)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Get after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		k1, k2 := key+"-1", key+"-2"
		_, _ = store.Merge(ctx, k1, domain.SessionPatch{ActiveResponderIDs: []string{"a"}})
		_, _ = store.Merge(ctx, k2, domain.SessionPatch{ActiveResponderIDs: []string{"b"}})
		defer func() {
			_ = store.Delete(ctx, k1)
			_ = store.Delete(ctx, k2)
		}()

		keys, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, keys, k1)
		assert.Contains(t, keys, k2)
	})
}
