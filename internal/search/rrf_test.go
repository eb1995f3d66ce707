package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRRFFuserRanksByReciprocalRank(t *testing.T) {
	// B appears high in both lists; A and C top one list each.
	vec := vectorHits("A", 0.95, "B", 0.90, "C", 0.10)
	lex := lexicalHits("B", 8.0, "C", 6.0, "D", 1.0)

	results := RRFFuser{}.Fuse(vec, lex, Weights{Vector: 1, Lexical: 1}, 10)
	require.Len(t, results, 4)

	// rank contributions: B = 1/62 + 1/61, A = 1/61, C = 1/63 + 1/62.
	assert.Equal(t, "B", results[0].ChunkID)
	assert.Equal(t, "C", results[1].ChunkID)
	assert.Equal(t, "A", results[2].ChunkID)
	assert.Equal(t, "D", results[3].ChunkID)
}

func TestRRFFuserScoreScaleInsensitive(t *testing.T) {
	// Same ranks, wildly different score scales: identical fused scores.
	small := lexicalHits("A", 0.002, "B", 0.001)
	large := lexicalHits("A", 2000.0, "B", 1000.0)

	a := RRFFuser{}.Fuse(nil, small, Weights{Vector: 0, Lexical: 1}, 10)
	b := RRFFuser{}.Fuse(nil, large, Weights{Vector: 0, Lexical: 1}, 10)

	require.Len(t, a, 2)
	require.Len(t, b, 2)
	assert.Equal(t, a[0].FusedScore, b[0].FusedScore)
	assert.Equal(t, a[1].FusedScore, b[1].FusedScore)
}

func TestRRFFuserCustomConstant(t *testing.T) {
	vec := vectorHits("A", 0.9)
	results := RRFFuser{C: 1}.Fuse(vec, nil, Weights{Vector: 1, Lexical: 0}, 10)
	require.Len(t, results, 1)
	assert.InDelta(t, 0.5, results[0].FusedScore, 1e-9)
}

func TestRRFFuserTieBreaksAscendingID(t *testing.T) {
	vec := vectorHits("beta", 0.9)
	lex := lexicalHits("alpha", 5.0)

	results := RRFFuser{}.Fuse(vec, lex, Weights{Vector: 1, Lexical: 1}, 10)
	require.Len(t, results, 2)
	assert.Equal(t, "alpha", results[0].ChunkID)
	assert.Equal(t, "beta", results[1].ChunkID)
}

func TestRRFFuserTruncatesToK(t *testing.T) {
	vec := vectorHits("A", 0.9, "B", 0.8, "C", 0.7)
	results := RRFFuser{}.Fuse(vec, nil, Weights{Vector: 1, Lexical: 0}, 1)
	assert.Len(t, results, 1)
}
