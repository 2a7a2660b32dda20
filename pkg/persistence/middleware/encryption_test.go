package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/wayfarer/pkg/adapters/memory"
	"github.com/aretw0/wayfarer/pkg/domain"
	"github.com/aretw0/wayfarer/pkg/persistence/middleware"
	"github.com/aretw0/wayfarer/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func turn(utterance string) domain.SessionPatch {
	return domain.SessionPatch{
		ActiveResponderIDs: []string{"trip_analyzer"},
		Turn:               &domain.TurnRecord{Utterance: utterance, At: time.Now()},
	}
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)
	store := mw(underlying)
	ctx := context.Background()

	merged, err := store.Merge(ctx, "s", turn("my passport is in the safe"))
	require.NoError(t, err)
	assert.Equal(t, "my passport is in the safe", merged.RecentTurns[0].Utterance)

	raw, err := underlying.Get(ctx, "s")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw.RecentTurns[0].Utterance, "enc:v1:"))
	assert.NotContains(t, raw.RecentTurns[0].Utterance, "passport")
	assert.Equal(t, []string{"trip_analyzer"}, raw.ActiveResponderIDs)

	got, err := store.Get(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []string{"my passport is in the safe"}, got.RecentUtterances(5))
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey, newKey := generateKey(t), generateKey(t)
	ctx := context.Background()

	oldMW, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})
	require.NoError(t, err)
	_, err = oldMW(underlying).Merge(ctx, "s", turn("first"))
	require.NoError(t, err)

	rotated, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})
	require.NoError(t, err)
	merged, err := rotated(underlying).Merge(ctx, "s", turn("second"))
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, merged.RecentUtterances(5))

	wrong, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)
	_, err = wrong(underlying).Get(ctx, "s")
	assert.ErrorContains(t, err, "decrypt")
}

func TestEncryptionMiddleware_PlaintextPassesThrough(t *testing.T) {
	underlying := memory.NewStore()
	ctx := context.Background()
	_, err := underlying.Merge(ctx, "s", turn("written before encryption"))
	require.NoError(t, err)

	mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)
	got, err := mw(underlying).Get(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []string{"written before encryption"}, got.RecentUtterances(5))
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short")})
	assert.Error(t, err)
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)
	ports.RunSessionStoreContract(t, mw(memory.NewStore()))
}
