package search

import (
	"sort"

	"github.com/pinpoint-search/pinpoint/internal/store"
)

// Fuser merges the two ranked sub-search result lists into one.
type Fuser interface {
	// Fuse returns at most k results ordered by descending fused score,
	// ties broken by ascending chunk ID.
	Fuse(vector []store.VectorHit, lexical []store.LexicalHit, weights Weights, k int) []Result
}

// WeightedFuser fuses by weighted combination of per-list min-max
// normalized scores. Each list is scaled to [0,1] independently; a chunk
// missing from one list contributes 0 for that side. A single-entry list
// (or one where all scores are equal) normalizes to 1.0.
type WeightedFuser struct{}

// Verify interface implementation
var _ Fuser = WeightedFuser{}

// Fuse implements Fuser.
func (WeightedFuser) Fuse(vector []store.VectorHit, lexical []store.LexicalHit, weights Weights, k int) []Result {
	vectorNorm := make(map[string]float64, len(vector))
	{
		scores := make([]float64, len(vector))
		for i, hit := range vector {
			scores[i] = hit.Similarity
		}
		norm := minMaxScale(scores)
		for i, hit := range vector {
			vectorNorm[hit.ID] = norm[i]
		}
	}

	lexicalNorm := make(map[string]float64, len(lexical))
	{
		scores := make([]float64, len(lexical))
		for i, hit := range lexical {
			scores[i] = hit.Score
		}
		norm := minMaxScale(scores)
		for i, hit := range lexical {
			lexicalNorm[hit.ID] = norm[i]
		}
	}

	combined := make(map[string]*Result, len(vectorNorm)+len(lexicalNorm))
	for id, score := range vectorNorm {
		combined[id] = &Result{ChunkID: id, VectorScore: score}
	}
	for id, score := range lexicalNorm {
		r, ok := combined[id]
		if !ok {
			r = &Result{ChunkID: id}
			combined[id] = r
		}
		r.LexicalScore = score
	}

	results := make([]Result, 0, len(combined))
	for _, r := range combined {
		r.FusedScore = weights.Vector*r.VectorScore + weights.Lexical*r.LexicalScore
		results = append(results, *r)
	}
	sortResults(results)
	if len(results) > k {
		results = results[:k]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}

// minMaxScale maps scores to [0,1] over the list's own range. An empty
// list returns nil; a constant list maps everything to 1.0.
func minMaxScale(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}
	lo, hi := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	out := make([]float64, len(scores))
	if hi == lo {
		for i := range out {
			out[i] = 1.0
		}
		return out
	}
	span := hi - lo
	for i, s := range scores {
		out[i] = (s - lo) / span
	}
	return out
}

// sortResults orders by descending fused score, ties by ascending chunk ID.
func sortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].FusedScore != results[j].FusedScore {
			return results[i].FusedScore > results[j].FusedScore
		}
		return results[i].ChunkID < results[j].ChunkID
	})
}
