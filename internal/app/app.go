// Package app wires the configuration, stores, pipeline, and search
// engine into one runnable unit shared by the CLI commands.
package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/pinpoint-search/pinpoint/internal/cache"
	"github.com/pinpoint-search/pinpoint/internal/chunk"
	"github.com/pinpoint-search/pinpoint/internal/config"
	"github.com/pinpoint-search/pinpoint/internal/docstore"
	"github.com/pinpoint-search/pinpoint/internal/embed"
	"github.com/pinpoint-search/pinpoint/internal/ingest"
	"github.com/pinpoint-search/pinpoint/internal/logging"
	"github.com/pinpoint-search/pinpoint/internal/search"
	"github.com/pinpoint-search/pinpoint/internal/store"
)

// File names inside the data directory.
const (
	lockFile     = "pinpoint.lock"
	databaseFile = "pinpoint.db"
	snapshotFile = "index.gob"
	bleveDir     = "bleve"
)

// App owns every long-lived component for one process.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Docs     *docstore.Store
	Vector   store.VectorIndex
	Lexical  store.LexicalIndex
	Embedder embed.Embedder
	Pipeline *ingest.Pipeline
	Engine   *search.Engine
	Version  *cache.Version

	lock       *flock.Flock
	logCleanup func()
}

// Open builds the full component graph. The data directory is guarded by
// a file lock so two CLI invocations cannot corrupt the snapshots.
func Open(cfg *config.Config) (*App, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	lock := flock.New(filepath.Join(cfg.DataDir, lockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire data directory lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("data directory %s is in use by another pinpoint process", cfg.DataDir)
	}

	a := &App{Config: cfg, Version: &cache.Version{}, lock: lock}
	if err := a.build(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build() error {
	cfg := a.Config

	logCfg := logging.DefaultConfig(cfg.DataDir)
	logCfg.Level = cfg.Logging.Level
	if cfg.Logging.File != "" {
		logCfg.FilePath = cfg.Logging.File
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	a.Logger = logger
	a.logCleanup = cleanup

	a.Docs, err = docstore.Open(filepath.Join(cfg.DataDir, databaseFile))
	if err != nil {
		return err
	}

	static := embed.NewStaticEmbedder(cfg.Embeddings.Dimensions)
	cached := embed.NewCachedEmbedder(static, cfg.Embeddings.CacheSize)
	a.Embedder = embed.NewRetryEmbedder(cached, embed.DefaultRetryConfig())

	a.Vector, err = store.NewVectorIndex(store.VectorOptions{
		Backend:    cfg.Index.VectorBackend,
		Dimensions: cfg.Embeddings.Dimensions,
		HNSW: store.HNSWConfig{
			M:        cfg.Index.HNSWM,
			EfSearch: cfg.Index.HNSWEfSearch,
		},
	})
	if err != nil {
		return err
	}

	lexicalPath := ""
	if cfg.Index.LexicalBackend == store.LexicalBackendBleve {
		lexicalPath = filepath.Join(cfg.DataDir, bleveDir)
	}
	a.Lexical, err = store.NewLexicalIndex(store.LexicalOptions{
		Backend: cfg.Index.LexicalBackend,
		Params:  store.BM25Params{K1: cfg.Index.BM25K1, B: cfg.Index.BM25B},
		Path:    lexicalPath,
	})
	if err != nil {
		return err
	}

	snap, err := store.LoadSnapshot(filepath.Join(cfg.DataDir, snapshotFile))
	if err != nil {
		a.Logger.Warn("index snapshot unreadable, starting empty", "error", err)
	} else if err := store.Restore(snap, a.Vector, a.Lexical); err != nil {
		return fmt.Errorf("restore index snapshot: %w", err)
	}

	queryCache, err := cache.NewQueryCache[search.Response](
		cfg.Search.CacheSize,
		time.Duration(cfg.Search.CacheTTLSecs)*time.Second,
		a.Version,
	)
	if err != nil {
		return err
	}

	var fuser search.Fuser = search.WeightedFuser{}
	if cfg.Search.Fusion == config.FusionRRF {
		fuser = search.RRFFuser{C: cfg.Search.RRFConstant}
	}
	a.Engine = search.NewEngine(a.Embedder, a.Vector, a.Lexical, a.Version,
		search.WithFuser(fuser),
		search.WithCache(queryCache),
		search.WithResolver(a.Docs),
		search.WithLogger(a.Logger),
	)

	chunker, err := chunk.New(chunk.Config{
		MaxSize: cfg.Chunking.MaxSize,
		Overlap: cfg.Chunking.Overlap,
	})
	if err != nil {
		return err
	}
	a.Pipeline, err = ingest.New(chunker, a.Embedder, a.Vector, a.Lexical,
		a.Docs, a.Version, cfg.Ingest.Workers, ingest.WithLogger(a.Logger))
	if err != nil {
		return err
	}
	return nil
}

// SearchParams derives search parameters from the configuration.
func (a *App) SearchParams() search.Params {
	cfg := a.Config.Search
	return search.Params{
		K: cfg.K,
		Weights: search.Weights{
			Vector:  cfg.VectorWeight,
			Lexical: cfg.LexicalWeight,
		},
		TTL:     time.Duration(cfg.CacheTTLSecs) * time.Second,
		Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond,
	}
}

// Close snapshots the in-memory indexes and releases every resource.
// Safe on a partially built App.
func (a *App) Close() error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if a.Vector != nil && a.Lexical != nil {
		snap := store.Capture(a.Vector, a.Lexical)
		if len(snap.Vectors) > 0 || len(snap.Postings) > 0 {
			record(store.SaveSnapshot(filepath.Join(a.Config.DataDir, snapshotFile), snap))
		}
	}

	if a.Pipeline != nil {
		record(a.Pipeline.Close())
	}
	if a.Embedder != nil {
		record(a.Embedder.Close())
	}
	if a.Vector != nil {
		record(a.Vector.Close())
	}
	if a.Lexical != nil {
		record(a.Lexical.Close())
	}
	if a.Docs != nil {
		record(a.Docs.Close())
	}
	if a.lock != nil {
		record(a.lock.Unlock())
	}
	if a.logCleanup != nil {
		a.logCleanup()
	}
	return firstErr
}
