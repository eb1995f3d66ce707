package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	// Given: populated in-memory indexes
	vector, err := NewFlatIndex(4)
	require.NoError(t, err)
	lexical := NewMemoryLexicalIndex(DefaultBM25Params())

	require.NoError(t, vector.Upsert("a", []float32{1, 0, 0, 0}))
	require.NoError(t, vector.Upsert("b", []float32{0, 1, 0, 0}))
	require.NoError(t, lexical.Upsert("a", Tokenize("alpha content")))
	require.NoError(t, lexical.Upsert("b", Tokenize("beta content")))

	path := filepath.Join(t.TempDir(), "index.gob")

	// When: capturing, saving, loading, and restoring into fresh indexes
	require.NoError(t, SaveSnapshot(path, Capture(vector, lexical)))

	loaded, err := LoadSnapshot(path)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	vector2, err := NewFlatIndex(4)
	require.NoError(t, err)
	lexical2 := NewMemoryLexicalIndex(DefaultBM25Params())
	require.NoError(t, Restore(loaded, vector2, lexical2))

	// Then: the restored indexes answer like the originals
	assert.Equal(t, 2, vector2.Len())
	assert.Equal(t, 2, lexical2.Len())

	hits, err := vector2.Search(context.Background(), []float32{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ID)

	lexHits, err := lexical2.Search(context.Background(), []string{"beta"}, 1)
	require.NoError(t, err)
	require.Len(t, lexHits, 1)
	assert.Equal(t, "b", lexHits[0].ID)
}

func TestLoadSnapshotMissingFile(t *testing.T) {
	snap, err := LoadSnapshot(filepath.Join(t.TempDir(), "absent.gob"))
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestRestoreRejectsDimensionChange(t *testing.T) {
	vector, err := NewFlatIndex(4)
	require.NoError(t, err)
	require.NoError(t, vector.Upsert("a", []float32{1, 0, 0, 0}))
	lexical := NewMemoryLexicalIndex(DefaultBM25Params())

	snap := Capture(vector, lexical)

	smaller, err := NewFlatIndex(3)
	require.NoError(t, err)
	assert.Error(t, Restore(snap, smaller, NewMemoryLexicalIndex(DefaultBM25Params())))
}

func TestRestoreNilSnapshot(t *testing.T) {
	vector, err := NewFlatIndex(4)
	require.NoError(t, err)
	assert.NoError(t, Restore(nil, vector, NewMemoryLexicalIndex(DefaultBM25Params())))
}
