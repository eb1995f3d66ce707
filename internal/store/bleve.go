package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/whitespace"
	"github.com/blevesearch/bleve/v2/mapping"
)

// tokenAnalyzerName is the analyzer used for pre-tokenized content.
// Tokens arrive already normalized, so the analyzer only splits on
// whitespace and lowercases defensively.
const tokenAnalyzerName = "pretokenized"

// BleveLexicalIndex is a LexicalIndex backed by a Bleve index with BM25
// scoring. It exists as the scale backend: Bleve persists to disk and
// handles corpora that outgrow the in-memory postings index.
type BleveLexicalIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	closed bool
}

// bleveChunk is the indexed document shape.
type bleveChunk struct {
	Content string `json:"content"`
}

// NewBleveLexicalIndex creates a Bleve-backed lexical index. An empty path
// creates an in-memory index.
func NewBleveLexicalIndex(path string) (*BleveLexicalIndex, error) {
	indexMapping, err := tokenIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("create index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open bleve index: %w", err)
	}

	return &BleveLexicalIndex{index: idx}, nil
}

// tokenIndexMapping builds a mapping whose default analyzer treats content
// as pre-tokenized whitespace-separated lexemes.
func tokenIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()
	err := indexMapping.AddCustomAnalyzer(tokenAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     whitespace.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, err
	}
	indexMapping.DefaultAnalyzer = tokenAnalyzerName
	return indexMapping, nil
}

// Upsert replaces the postings for a chunk. The frequency map is expanded
// back into pseudo-content (each token repeated tf times, sorted for
// determinism) because Bleve derives frequencies from the token stream.
func (b *BleveLexicalIndex) Upsert(id string, tokens map[string]int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("index is closed")
	}

	ordered := make([]string, 0, len(tokens))
	for token := range tokens {
		ordered = append(ordered, token)
	}
	sort.Strings(ordered)

	var sb strings.Builder
	for _, token := range ordered {
		for i := 0; i < tokens[token]; i++ {
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(token)
		}
	}

	if err := b.index.Index(id, bleveChunk{Content: sb.String()}); err != nil {
		return fmt.Errorf("index chunk %s: %w", id, err)
	}
	return nil
}

// Remove deletes the chunk from the index. No-op when absent.
func (b *BleveLexicalIndex) Remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	_ = b.index.Delete(id)
}

// Search runs a match query over the query tokens.
func (b *BleveLexicalIndex) Search(ctx context.Context, queryTokens []string, k int) ([]LexicalHit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if len(queryTokens) == 0 {
		return []LexicalHit{}, nil
	}

	matchQuery := bleve.NewMatchQuery(strings.Join(queryTokens, " "))
	matchQuery.SetField("content")
	matchQuery.Analyzer = tokenAnalyzerName

	req := bleve.NewSearchRequest(matchQuery)
	req.Size = k

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}

	hits := make([]LexicalHit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		hits = append(hits, LexicalHit{ID: hit.ID, Score: hit.Score})
	}
	// Bleve's internal tie order is not specified; re-sort for the
	// deterministic contract.
	sortLexicalHits(hits)
	return hits, nil
}

// Len returns the number of indexed chunks.
func (b *BleveLexicalIndex) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0
	}
	count, _ := b.index.DocCount()
	return int(count)
}

// Close closes the underlying Bleve index.
func (b *BleveLexicalIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}

// Verify interface implementation
var _ LexicalIndex = (*BleveLexicalIndex)(nil)
