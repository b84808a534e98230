package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/storefront/pkg/storage"
)

func TestParsePaths(t *testing.T) {
	col, id, parent, err := parseDoc("businesses/b1/menu/c1")
	require.NoError(t, err)
	assert.Equal(t, "menu", col)
	assert.Equal(t, "c1", id)
	assert.Equal(t, "businesses/b1", parent)

	col, id, parent, err = parseDoc("businesses/b1")
	require.NoError(t, err)
	assert.Equal(t, "businesses", col)
	assert.Equal(t, "b1", id)
	assert.Equal(t, "", parent)

	_, _, _, err = parseDoc("businesses/b1/menu")
	assert.Error(t, err)
	_, _, _, err = parseDoc("businesses//menu/c1")
	assert.Error(t, err)

	col, parent, err = parseCollection("businesses/b1/menu/c1/items")
	require.NoError(t, err)
	assert.Equal(t, "items", col)
	assert.Equal(t, "businesses/b1/menu/c1", parent)

	_, _, err = parseCollection("businesses/b1")
	assert.Error(t, err)
}

func TestMemoryStoreListOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "businesses/b1/menu/c", map[string]any{"sortOrder": 3}))
	require.NoError(t, s.Set(ctx, "businesses/b1/menu/a", map[string]any{"sortOrder": 1}))
	require.NoError(t, s.Set(ctx, "businesses/b1/menu/x", map[string]any{}))
	require.NoError(t, s.Set(ctx, "businesses/b1/menu/b", map[string]any{"sortOrder": 2.0}))
	require.NoError(t, s.Set(ctx, "businesses/b1/menu/a/items/i1", map[string]any{"name": "Pie"}))
	require.NoError(t, s.Set(ctx, "businesses/b2/menu/z", map[string]any{"sortOrder": 0}))

	docs, err := s.List(ctx, "businesses/b1/menu", "sortOrder")
	require.NoError(t, err)

	var ids []string
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"a", "b", "c", "x"}, ids)

	_, err = s.Get(ctx, "businesses/b1/menu/nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDiskBlobs(t *testing.T) {
	ctx := context.Background()
	disk := storage.NewLocalDisk(t.TempDir(), "http://cdn.local")
	require.NoError(t, disk.Put(ctx, "menu/a.jpg", []byte("x")))

	b := NewDiskBlobs(disk, nil, 0, "fp")

	url, err := b.URL(ctx, "menu/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "http://cdn.local/menu/a.jpg", url)

	_, err = b.URL(ctx, "menu/missing.jpg")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, b.Close(ctx))
}
