package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddDimensionMismatch(t *testing.T) {
	ix := New()
	require.NoError(t, ix.Add(0, "a", []float32{1, 0, 0}))

	err := ix.Add(1, "b", []float32{1, 0})
	assert.Error(t, err)

	err = ix.Add(2, "c", nil)
	assert.Error(t, err)
}

func TestSearchOrdering(t *testing.T) {
	ix := New()
	require.NoError(t, ix.Add(0, "about cats", []float32{1, 0, 0}))
	require.NoError(t, ix.Add(1, "about dogs", []float32{0, 1, 0}))
	require.NoError(t, ix.Add(2, "about birds", []float32{0.9, 0.1, 0}))

	hits, err := ix.Search([]float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, 0, hits[0].Ordinal)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Equal(t, 2, hits[1].Ordinal)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestSearchScoresAreCosine(t *testing.T) {
	ix := New()
	// same direction, different magnitude: normalization makes them equal
	require.NoError(t, ix.Add(0, "a", []float32{2, 0}))
	require.NoError(t, ix.Add(1, "b", []float32{10, 0}))

	hits, err := ix.Search([]float32{5, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.InDelta(t, 1.0, hits[1].Score, 1e-6)
	// ties broken by ordinal
	assert.Equal(t, 0, hits[0].Ordinal)
}

func TestSearchKLargerThanIndex(t *testing.T) {
	ix := New()
	require.NoError(t, ix.Add(0, "a", []float32{1, 0}))

	hits, err := ix.Search([]float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	hits, err = ix.Search([]float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Nil(t, hits)
}

func TestSearchDimensionMismatch(t *testing.T) {
	ix := New()
	require.NoError(t, ix.Add(0, "a", []float32{1, 0, 0}))

	_, err := ix.Search([]float32{1, 0}, 1)
	assert.Error(t, err)
}

func TestSearchEmptyIndex(t *testing.T) {
	hits, err := New().Search([]float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Nil(t, hits)
}

type stubLoader struct {
	indexes map[string]*Index
	calls   int
}

func (l *stubLoader) LoadIndex(_ context.Context, videoID string) (*Index, error) {
	l.calls++
	return l.indexes[videoID], nil
}

func TestRegistryLazyLoad(t *testing.T) {
	persisted := New()
	require.NoError(t, persisted.Add(0, "a", []float32{1, 0}))

	loader := &stubLoader{indexes: map[string]*Index{"vid-1": persisted}}
	reg := NewRegistry(loader)

	ctx := context.Background()
	ix, err := reg.Get(ctx, "vid-1")
	require.NoError(t, err)
	assert.Equal(t, 1, ix.Len())
	assert.Equal(t, 1, loader.calls)

	// second get is served from memory
	_, err = reg.Get(ctx, "vid-1")
	require.NoError(t, err)
	assert.Equal(t, 1, loader.calls)

	_, err = reg.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotIndexed)
}

func TestRegistryPutAndDrop(t *testing.T) {
	reg := NewRegistry(nil)

	_, err := reg.Get(context.Background(), "vid-1")
	assert.ErrorIs(t, err, ErrNotIndexed)

	ix := New()
	require.NoError(t, ix.Add(0, "a", []float32{1}))
	reg.Put("vid-1", ix)
	assert.Equal(t, 1, reg.Len())

	got, err := reg.Get(context.Background(), "vid-1")
	require.NoError(t, err)
	assert.Same(t, ix, got)

	reg.Drop("vid-1")
	assert.Equal(t, 0, reg.Len())
}
