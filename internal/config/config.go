// Package config loads and validates the pinpoint configuration.
//
// Precedence, lowest to highest: built-in defaults, the YAML config file,
// PINPOINT_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	perrors "github.com/pinpoint-search/pinpoint/internal/errors"
)

// DefaultFileName is the config file looked up in the data directory.
const DefaultFileName = "pinpoint.yaml"

// Config is the complete pinpoint configuration.
type Config struct {
	// DataDir holds the document store, index snapshots, and logs.
	DataDir string `yaml:"data_dir"`

	Chunking   ChunkingConfig   `yaml:"chunking"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Index      IndexConfig      `yaml:"index"`
	Search     SearchConfig     `yaml:"search"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ChunkingConfig controls passage splitting.
type ChunkingConfig struct {
	// MaxSize is the maximum chunk size in bytes.
	MaxSize int `yaml:"max_size"`
	// Overlap is the byte overlap between consecutive chunks.
	Overlap int `yaml:"overlap"`
}

// EmbeddingsConfig controls the embedder.
type EmbeddingsConfig struct {
	Dimensions int `yaml:"dimensions"`
	CacheSize  int `yaml:"cache_size"`
}

// IndexConfig selects and tunes the index backends.
type IndexConfig struct {
	// VectorBackend is "flat" or "hnsw".
	VectorBackend string `yaml:"vector_backend"`
	// LexicalBackend is "memory" or "bleve".
	LexicalBackend string `yaml:"lexical_backend"`

	BM25K1 float64 `yaml:"bm25_k1"`
	BM25B  float64 `yaml:"bm25_b"`

	HNSWM        int `yaml:"hnsw_m"`
	HNSWEfSearch int `yaml:"hnsw_ef_search"`
}

// SearchConfig controls query execution defaults.
type SearchConfig struct {
	K             int     `yaml:"k"`
	VectorWeight  float64 `yaml:"vector_weight"`
	LexicalWeight float64 `yaml:"lexical_weight"`

	// Fusion selects the fusion scheme: "weighted" (min-max normalized
	// weighted sum) or "rrf" (reciprocal rank fusion).
	Fusion      string  `yaml:"fusion"`
	RRFConstant float64 `yaml:"rrf_constant"`

	TimeoutMS    int `yaml:"timeout_ms"`
	CacheTTLSecs int `yaml:"cache_ttl_seconds"`
	CacheSize    int `yaml:"cache_size"`
}

// IngestConfig controls the ingestion pipeline.
type IngestConfig struct {
	Workers int `yaml:"workers"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	// File overrides the log file path. Empty keeps the default under
	// the data directory.
	File string `yaml:"file"`
}

// Fusion scheme names.
const (
	FusionWeighted = "weighted"
	FusionRRF      = "rrf"
)

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		DataDir: defaultDataDir(),
		Chunking: ChunkingConfig{
			MaxSize: 1000,
			Overlap: 200,
		},
		Embeddings: EmbeddingsConfig{
			Dimensions: 256,
			CacheSize:  2048,
		},
		Index: IndexConfig{
			VectorBackend:  "flat",
			LexicalBackend: "memory",
			BM25K1:         1.2,
			BM25B:          0.75,
			HNSWM:          16,
			HNSWEfSearch:   40,
		},
		Search: SearchConfig{
			K:             10,
			VectorWeight:  0.5,
			LexicalWeight: 0.5,
			Fusion:        FusionWeighted,
			RRFConstant:   60,
			TimeoutMS:     2000,
			CacheTTLSecs:  60,
			CacheSize:     512,
		},
		Ingest: IngestConfig{
			Workers: 8,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".pinpoint")
	}
	return filepath.Join(home, ".pinpoint")
}

// Load reads configuration from path (empty means the default location in
// the data directory; a missing file is not an error), applies environment
// overrides, and validates.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = filepath.Join(cfg.DataDir, DefaultFileName)
	}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults apply.
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies PINPOINT_* environment variable overrides.
// Unparseable values are ignored in favor of the configured value.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PINPOINT_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("PINPOINT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PINPOINT_VECTOR_BACKEND"); v != "" {
		c.Index.VectorBackend = v
	}
	if v := os.Getenv("PINPOINT_LEXICAL_BACKEND"); v != "" {
		c.Index.LexicalBackend = v
	}
	if v := os.Getenv("PINPOINT_FUSION"); v != "" {
		c.Search.Fusion = v
	}
	if v := os.Getenv("PINPOINT_VECTOR_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.VectorWeight = f
		}
	}
	if v := os.Getenv("PINPOINT_LEXICAL_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.LexicalWeight = f
		}
	}
	if v := os.Getenv("PINPOINT_SEARCH_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.TimeoutMS = n
		}
	}
	if v := os.Getenv("PINPOINT_INGEST_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Ingest.Workers = n
		}
	}
}

// Validate rejects configurations the core cannot run with.
func (c *Config) Validate() error {
	if c.Chunking.MaxSize <= 0 {
		return perrors.InvalidConfig("chunking.max_size must be positive, got %d", c.Chunking.MaxSize)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.MaxSize {
		return perrors.InvalidConfig("chunking.overlap must be in [0, max_size), got %d", c.Chunking.Overlap)
	}
	if c.Embeddings.Dimensions <= 0 {
		return perrors.InvalidConfig("embeddings.dimensions must be positive, got %d", c.Embeddings.Dimensions)
	}
	switch c.Index.VectorBackend {
	case "flat", "hnsw":
	default:
		return perrors.InvalidConfig("index.vector_backend must be flat or hnsw, got %q", c.Index.VectorBackend)
	}
	switch c.Index.LexicalBackend {
	case "memory", "bleve":
	default:
		return perrors.InvalidConfig("index.lexical_backend must be memory or bleve, got %q", c.Index.LexicalBackend)
	}
	switch c.Search.Fusion {
	case FusionWeighted, FusionRRF:
	default:
		return perrors.InvalidConfig("search.fusion must be %s or %s, got %q", FusionWeighted, FusionRRF, c.Search.Fusion)
	}
	if c.Search.K <= 0 {
		return perrors.InvalidConfig("search.k must be positive, got %d", c.Search.K)
	}
	if c.Search.VectorWeight < 0 || c.Search.LexicalWeight < 0 {
		return perrors.InvalidConfig("search weights must be non-negative, got vector=%g lexical=%g",
			c.Search.VectorWeight, c.Search.LexicalWeight)
	}
	if c.Search.VectorWeight == 0 && c.Search.LexicalWeight == 0 {
		return perrors.InvalidConfig("at least one search weight must be positive")
	}
	if c.Search.TimeoutMS <= 0 {
		return perrors.InvalidConfig("search.timeout_ms must be positive, got %d", c.Search.TimeoutMS)
	}
	return nil
}

// Save writes the configuration as YAML to path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
