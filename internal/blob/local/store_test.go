package local

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchpulse/feedgate/internal/blob"
)

func TestPutAndGetRoundTrip(t *testing.T) {
	t.Parallel()

	store, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	ctx := context.Background()
	uri, err := store.Put(ctx, "oddsfeed/processed.json", "application/json", []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Contains(t, uri, "file://")

	data, err := store.Get(ctx, "oddsfeed/processed.json")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), data)
}

func TestGetMissingReturnsErrNotExist(t *testing.T) {
	t.Parallel()

	store, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "nope/raw.json")
	require.ErrorIs(t, err, blob.ErrNotExist)
}

func TestPutOverwritesExisting(t *testing.T) {
	t.Parallel()

	store, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = store.Put(ctx, "s/raw.json", "application/json", []byte("old"))
	require.NoError(t, err)
	_, err = store.Put(ctx, "s/raw.json", "application/json", []byte("new"))
	require.NoError(t, err)

	data, err := store.Get(ctx, "s/raw.json")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), data)
}

func TestRejectsPathTraversal(t *testing.T) {
	t.Parallel()

	store, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "../escape.json", "", []byte("x"))
	require.Error(t, err)
}

func TestNewRequiresBaseDir(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.Error(t, err)
}
