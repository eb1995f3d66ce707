package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/pinpoint-search/pinpoint/internal/errors"
)

func TestFlatIndexRoundTrip(t *testing.T) {
	// Given: a single indexed vector
	idx, err := NewFlatIndex(4)
	require.NoError(t, err)
	defer idx.Close()

	vec := []float32{0.1, 0.7, 0.2, 0.4}
	require.NoError(t, idx.Upsert("doc:0000", vec))

	// When: searching with the same vector
	hits, err := idx.Search(context.Background(), vec, 1)
	require.NoError(t, err)

	// Then: the chunk comes back with similarity ~1.0
	require.Len(t, hits, 1)
	assert.Equal(t, "doc:0000", hits[0].ID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
}

func TestFlatIndexDimensionMismatchLeavesIndexUnchanged(t *testing.T) {
	idx, err := NewFlatIndex(4)
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Upsert("a", []float32{1, 0, 0, 0}))

	err = idx.Upsert("b", []float32{1, 0, 0})
	require.Error(t, err)
	assert.True(t, perrors.IsDimensionMismatch(err))

	var dm *perrors.DimensionMismatchError
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 4, dm.Expected)
	assert.Equal(t, 3, dm.Got)

	assert.Equal(t, 1, idx.Len())
}

func TestFlatIndexSearchRejectsWrongDimensions(t *testing.T) {
	idx, err := NewFlatIndex(4)
	require.NoError(t, err)
	defer idx.Close()

	_, err = idx.Search(context.Background(), []float32{1, 0}, 5)
	require.Error(t, err)
	assert.True(t, perrors.IsDimensionMismatch(err))
}

func TestFlatIndexOrderingAndTies(t *testing.T) {
	idx, err := NewFlatIndex(2)
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Upsert("far", []float32{0, 1}))
	// Two identical vectors tie and must come back in ascending ID order.
	require.NoError(t, idx.Upsert("tie-b", []float32{1, 0}))
	require.NoError(t, idx.Upsert("tie-a", []float32{1, 0}))

	hits, err := idx.Search(context.Background(), []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "tie-a", hits[0].ID)
	assert.Equal(t, "tie-b", hits[1].ID)
	assert.Equal(t, "far", hits[2].ID)
}

func TestFlatIndexUpsertReplaces(t *testing.T) {
	idx, err := NewFlatIndex(2)
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Upsert("a", []float32{1, 0}))
	require.NoError(t, idx.Upsert("a", []float32{0, 1}))
	assert.Equal(t, 1, idx.Len())

	hits, err := idx.Search(context.Background(), []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
}

func TestFlatIndexRemove(t *testing.T) {
	idx, err := NewFlatIndex(2)
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Upsert("a", []float32{1, 0}))
	idx.Remove("a")
	idx.Remove("a") // absent, no-op
	assert.Equal(t, 0, idx.Len())
}

func TestFlatIndexTruncatesToK(t *testing.T) {
	idx, err := NewFlatIndex(2)
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Upsert("a", []float32{1, 0}))
	require.NoError(t, idx.Upsert("b", []float32{0.9, 0.1}))
	require.NoError(t, idx.Upsert("c", []float32{0, 1}))

	hits, err := idx.Search(context.Background(), []float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}
