package search

import (
	"github.com/pinpoint-search/pinpoint/internal/store"
)

// DefaultRRFConstant dampens the influence of top ranks in reciprocal
// rank fusion. 60 is the value from the original RRF paper.
const DefaultRRFConstant = 60.0

// RRFFuser fuses by weighted reciprocal rank: each list contributes
// weight/(c+rank) per chunk, which makes fusion insensitive to the score
// scales of the two retrieval modes. Selectable as an alternative to
// WeightedFuser via configuration.
type RRFFuser struct {
	// C is the rank damping constant. Zero takes DefaultRRFConstant.
	C float64
}

// Verify interface implementation
var _ Fuser = RRFFuser{}

// Fuse implements Fuser.
func (f RRFFuser) Fuse(vector []store.VectorHit, lexical []store.LexicalHit, weights Weights, k int) []Result {
	c := f.C
	if c == 0 {
		c = DefaultRRFConstant
	}

	combined := make(map[string]*Result, len(vector)+len(lexical))
	for rank, hit := range vector {
		r, ok := combined[hit.ID]
		if !ok {
			r = &Result{ChunkID: hit.ID}
			combined[hit.ID] = r
		}
		r.VectorScore = hit.Similarity
		r.FusedScore += weights.Vector / (c + float64(rank+1))
	}
	for rank, hit := range lexical {
		r, ok := combined[hit.ID]
		if !ok {
			r = &Result{ChunkID: hit.ID}
			combined[hit.ID] = r
		}
		r.LexicalScore = hit.Score
		r.FusedScore += weights.Lexical / (c + float64(rank+1))
	}

	results := make([]Result, 0, len(combined))
	for _, r := range combined {
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
