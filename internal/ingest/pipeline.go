// Package ingest drives the document ingestion pipeline: chunk, embed,
// upsert into both indexes, persist, then invalidate the query cache.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"

	"github.com/pinpoint-search/pinpoint/internal/cache"
	"github.com/pinpoint-search/pinpoint/internal/chunk"
	"github.com/pinpoint-search/pinpoint/internal/docstore"
	"github.com/pinpoint-search/pinpoint/internal/embed"
	perrors "github.com/pinpoint-search/pinpoint/internal/errors"
	"github.com/pinpoint-search/pinpoint/internal/store"
)

// DefaultWorkers sizes the embedding worker pool.
const DefaultWorkers = 8

// IngestResult reports a successful single-document ingestion.
type IngestResult struct {
	ChunksCreated int
	Revision      int64
}

// DeleteResult reports a document deletion.
type DeleteResult struct {
	ChunksRemoved int
}

// Document is one batch ingestion input.
type Document struct {
	ID   string
	Text string
}

// BatchItem is one document's outcome within a batch.
type BatchItem struct {
	DocID  string
	Result IngestResult
	Err    error
}

// Pipeline ingests and deletes documents. Embedding runs on a shared
// worker pool; index upserts are idempotent and keyed by chunk ID, so
// out-of-order completion across chunks is harmless.
type Pipeline struct {
	chunker  *chunk.Chunker
	embedder embed.Embedder
	vector   store.VectorIndex
	lexical  store.LexicalIndex
	docs     *docstore.Store
	version  *cache.Version
	pool     *ants.Pool
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// New creates an ingestion pipeline with a worker pool of the given size
// (0 takes DefaultWorkers).
func New(chunker *chunk.Chunker, embedder embed.Embedder, vector store.VectorIndex, lexical store.LexicalIndex, docs *docstore.Store, version *cache.Version, workers int, opts ...Option) (*Pipeline, error) {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create ingest worker pool: %w", err)
	}
	p := &Pipeline{
		chunker:  chunker,
		embedder: embedder,
		vector:   vector,
		lexical:  lexical,
		docs:     docs,
		version:  version,
		pool:     pool,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Ingest chunks, embeds, and indexes a single document, replacing any
// prior chunks under the same document ID. The corpus version is bumped
// only after the whole mutation has committed, so a query that still sees
// the old version can at worst miss the cache, never read ahead of it.
func (p *Pipeline) Ingest(ctx context.Context, docID, text string) (IngestResult, error) {
	if docID == "" {
		return IngestResult{}, &perrors.ChunkingError{DocID: docID, Err: fmt.Errorf("empty document id")}
	}

	chunks := p.chunker.Split(text)
	if len(chunks) == 0 {
		return IngestResult{}, &perrors.ChunkingError{DocID: docID, Err: fmt.Errorf("document produced no chunks")}
	}

	vectors, err := p.embedChunks(ctx, docID, chunks)
	if err != nil {
		return IngestResult{}, err
	}

	oldIDs, err := p.docs.ChunkIDs(ctx, docID)
	if err != nil {
		return IngestResult{}, fmt.Errorf("lookup prior chunks of %s: %w", docID, err)
	}

	newIDs := make(map[string]struct{}, len(chunks))
	for i, c := range chunks {
		id := chunk.ID(docID, c.Seq)
		newIDs[id] = struct{}{}
		if err := p.vector.Upsert(id, vectors[i]); err != nil {
			return IngestResult{}, &perrors.EmbeddingError{DocID: docID, Err: err}
		}
		if err := p.lexical.Upsert(id, store.Tokenize(c.Text)); err != nil {
			return IngestResult{}, fmt.Errorf("lexical upsert for %s: %w", id, err)
		}
	}

	// A shorter re-ingestion leaves stale trailing chunks behind; clear
	// the ones not overwritten.
	for _, id := range oldIDs {
		if _, kept := newIDs[id]; !kept {
			p.vector.Remove(id)
			p.lexical.Remove(id)
		}
	}

	revision, err := p.docs.SaveDocument(ctx, docID, chunks)
	if err != nil {
		return IngestResult{}, fmt.Errorf("persist document %s: %w", docID, err)
	}

	p.version.Bump()

	p.logger.Info("document ingested",
		"doc_id", docID,
		"chunks", len(chunks),
		"revision", revision)
	return IngestResult{ChunksCreated: len(chunks), Revision: revision}, nil
}

// embedChunks embeds all chunk texts on the worker pool. Any failure
// aborts the document before any index is touched.
func (p *Pipeline) embedChunks(ctx context.Context, docID string, chunks []chunk.Chunk) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))
	errs := make([]error, len(chunks))

	var wg sync.WaitGroup
	for i := range chunks {
		i := i
		wg.Add(1)
		task := func() {
			defer wg.Done()
			vectors[i], errs[i] = p.embedder.Embed(ctx, chunks[i].Text)
		}
		if err := p.pool.Submit(task); err != nil {
			wg.Done()
			errs[i] = err
		}
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, &perrors.EmbeddingError{
				DocID: docID,
				Err:   fmt.Errorf("chunk %d: %w", i, err),
			}
		}
	}
	return vectors, nil
}

// IngestBatch ingests several documents with bounded concurrency. Every
// document gets an outcome; one document's failure never aborts the rest.
func (p *Pipeline) IngestBatch(ctx context.Context, documents []Document) []BatchItem {
	items := make([]BatchItem, len(documents))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(DefaultWorkers)
	for i, d := range documents {
		i, d := i, d
		g.Go(func() error {
			result, err := p.Ingest(gctx, d.ID, d.Text)
			items[i] = BatchItem{DocID: d.ID, Result: result, Err: err}
			if err != nil {
				p.logger.Warn("document ingestion failed", "doc_id", d.ID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return items
}

// Delete removes a document's chunks from both indexes and the document
// store. Idempotent: a second call reports zero removed and no error.
func (p *Pipeline) Delete(ctx context.Context, docID string) (DeleteResult, error) {
	ids, err := p.docs.DeleteDocument(ctx, docID)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("delete document %s: %w", docID, err)
	}
	for _, id := range ids {
		p.vector.Remove(id)
		p.lexical.Remove(id)
	}
	if len(ids) > 0 {
		p.version.Bump()
		p.logger.Info("document deleted", "doc_id", docID, "chunks", len(ids))
	}
	return DeleteResult{ChunksRemoved: len(ids)}, nil
}

// Close releases the worker pool.
func (p *Pipeline) Close() error {
	p.pool.Release()
	return nil
}
