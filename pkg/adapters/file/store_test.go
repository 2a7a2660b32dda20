package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/wayfarer/pkg/adapters/file"
	"github.com/aretw0/wayfarer/pkg/domain"
	"github.com/aretw0/wayfarer/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Contract(t *testing.T) {
	ports.RunSessionStoreContract(t, file.New(t.TempDir()))
}

func TestFileStore_KeysStayInsideBasePath(t *testing.T) {
	dir := t.TempDir()
	store := file.New(filepath.Join(dir, "sessions"))
	ctx := context.Background()

	_, err := store.Merge(ctx, "../escape", domain.SessionPatch{ActiveResponderIDs: []string{"a"}})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "escape.json"))
	assert.True(t, os.IsNotExist(err))

	keys, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"../escape"}, keys)
}

func TestFileStore_EmptyKey(t *testing.T) {
	_, err := file.New(t.TempDir()).Get(context.Background(), "")
	assert.Error(t, err)
}

func TestFileStore_ListMissingDir(t *testing.T) {
	keys, err := file.New(filepath.Join(t.TempDir(), "nope")).List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
}
