package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryLexicalIndex is an in-memory inverted index with BM25 ranking.
//
// Postings are grouped by token; each token maps chunk IDs to the term
// frequency within that chunk. Upserting a chunk removes its old postings
// first, so a chunk ID always has exactly one current frequency per token.
type MemoryLexicalIndex struct {
	mu     sync.RWMutex
	params BM25Params

	postings  map[string]map[string]int // token -> chunk ID -> term frequency
	docTokens map[string]map[string]int // chunk ID -> its token frequencies
	docLen    map[string]int            // chunk ID -> token count
	totalLen  int

	closed bool
}

// NewMemoryLexicalIndex creates an empty lexical index.
func NewMemoryLexicalIndex(params BM25Params) *MemoryLexicalIndex {
	if params.K1 == 0 {
		params.K1 = DefaultBM25Params().K1
	}
	if params.B == 0 {
		params.B = DefaultBM25Params().B
	}
	return &MemoryLexicalIndex{
		params:    params,
		postings:  make(map[string]map[string]int),
		docTokens: make(map[string]map[string]int),
		docLen:    make(map[string]int),
	}
}

// Upsert replaces the postings for a chunk with the given frequencies.
func (m *MemoryLexicalIndex) Upsert(id string, tokens map[string]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("index is closed")
	}

	m.removeLocked(id)

	stored := make(map[string]int, len(tokens))
	length := 0
	for token, tf := range tokens {
		if token == "" || tf <= 0 {
			continue
		}
		stored[token] = tf
		length += tf

		chunks, ok := m.postings[token]
		if !ok {
			chunks = make(map[string]int)
			m.postings[token] = chunks
		}
		chunks[id] = tf
	}

	m.docTokens[id] = stored
	m.docLen[id] = length
	m.totalLen += length
	return nil
}

// Remove deletes all postings for a chunk. No-op when absent.
func (m *MemoryLexicalIndex) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(id)
}

func (m *MemoryLexicalIndex) removeLocked(id string) {
	tokens, ok := m.docTokens[id]
	if !ok {
		return
	}
	for token := range tokens {
		if chunks, ok := m.postings[token]; ok {
			delete(chunks, id)
			if len(chunks) == 0 {
				delete(m.postings, token)
			}
		}
	}
	m.totalLen -= m.docLen[id]
	delete(m.docLen, id)
	delete(m.docTokens, id)
}

// Search scores chunks that share at least one token with the query using
// BM25. Per query token: idf = ln(1 + (N-df+0.5)/(df+0.5)), multiplied by
// the saturated term frequency tf*(k1+1)/(tf + k1*(1-b+b*len/avgLen)).
func (m *MemoryLexicalIndex) Search(ctx context.Context, queryTokens []string, k int) ([]LexicalHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, fmt.Errorf("index is closed")
	}

	n := len(m.docLen)
	if n == 0 || len(queryTokens) == 0 {
		return []LexicalHit{}, nil
	}
	avgLen := float64(m.totalLen) / float64(n)
	if avgLen == 0 {
		avgLen = 1
	}

	scores := make(map[string]float64)
	seen := make(map[string]struct{}, len(queryTokens))
	for _, token := range queryTokens {
		// Duplicate query tokens contribute once.
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}

		chunks, ok := m.postings[token]
		if !ok {
			continue
		}
		df := float64(len(chunks))
		idf := math.Log(1 + (float64(n)-df+0.5)/(df+0.5))

		for id, tf := range chunks {
			norm := 1 - m.params.B + m.params.B*float64(m.docLen[id])/avgLen
			sat := float64(tf) * (m.params.K1 + 1) / (float64(tf) + m.params.K1*norm)
			scores[id] += idf * sat
		}
	}

	hits := make([]LexicalHit, 0, len(scores))
	for id, score := range scores {
		hits = append(hits, LexicalHit{ID: id, Score: score})
	}
	sortLexicalHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Len returns the number of indexed chunks.
func (m *MemoryLexicalIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docLen)
}

// TermCount returns the number of distinct tokens in the index.
func (m *MemoryLexicalIndex) TermCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.postings)
}

// Dump exports per-chunk token frequencies for snapshotting.
func (m *MemoryLexicalIndex) Dump() map[string]map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]map[string]int, len(m.docTokens))
	for id, tokens := range m.docTokens {
		cp := make(map[string]int, len(tokens))
		for token, tf := range tokens {
			cp[token] = tf
		}
		out[id] = cp
	}
	return out
}

// Close releases resources.
func (m *MemoryLexicalIndex) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.postings = nil
	m.docTokens = nil
	m.docLen = nil
	return nil
}

// Verify interface implementation
var _ LexicalIndex = (*MemoryLexicalIndex)(nil)

// sortLexicalHits orders hits by descending score, ties by ascending ID.
func sortLexicalHits(hits []LexicalHit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
}
