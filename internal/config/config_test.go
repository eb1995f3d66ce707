package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/pinpoint-search/pinpoint/internal/errors"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Search, cfg.Search)
	assert.Equal(t, Default().Chunking, cfg.Chunking)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pinpoint.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
search:
  k: 25
  fusion: rrf
  vector_weight: 0.7
  lexical_weight: 0.3
index:
  vector_backend: hnsw
  lexical_backend: bleve
chunking:
  max_size: 500
  overlap: 50
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Search.K)
	assert.Equal(t, FusionRRF, cfg.Search.Fusion)
	assert.Equal(t, 0.7, cfg.Search.VectorWeight)
	assert.Equal(t, "hnsw", cfg.Index.VectorBackend)
	assert.Equal(t, "bleve", cfg.Index.LexicalBackend)
	assert.Equal(t, 500, cfg.Chunking.MaxSize)

	// Untouched sections keep their defaults.
	assert.Equal(t, Default().Search.TimeoutMS, cfg.Search.TimeoutMS)
	assert.Equal(t, Default().Embeddings, cfg.Embeddings)
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pinpoint.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search:\n  fusion: weighted\n"), 0o644))

	t.Setenv("PINPOINT_FUSION", "rrf")
	t.Setenv("PINPOINT_DATA_DIR", "/tmp/pinpoint-test")
	t.Setenv("PINPOINT_VECTOR_WEIGHT", "0.9")
	t.Setenv("PINPOINT_SEARCH_TIMEOUT_MS", "750")
	t.Setenv("PINPOINT_INGEST_WORKERS", "3")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, FusionRRF, cfg.Search.Fusion)
	assert.Equal(t, "/tmp/pinpoint-test", cfg.DataDir)
	assert.Equal(t, 0.9, cfg.Search.VectorWeight)
	assert.Equal(t, 750, cfg.Search.TimeoutMS)
	assert.Equal(t, 3, cfg.Ingest.Workers)
}

func TestUnparseableEnvValueIsIgnored(t *testing.T) {
	t.Setenv("PINPOINT_SEARCH_TIMEOUT_MS", "soon")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Search.TimeoutMS, cfg.Search.TimeoutMS)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero chunk size", func(c *Config) { c.Chunking.MaxSize = 0 }},
		{"overlap at max size", func(c *Config) { c.Chunking.Overlap = c.Chunking.MaxSize }},
		{"zero dimensions", func(c *Config) { c.Embeddings.Dimensions = 0 }},
		{"unknown vector backend", func(c *Config) { c.Index.VectorBackend = "annoy" }},
		{"unknown lexical backend", func(c *Config) { c.Index.LexicalBackend = "lucene" }},
		{"unknown fusion scheme", func(c *Config) { c.Search.Fusion = "borda" }},
		{"non-positive k", func(c *Config) { c.Search.K = 0 }},
		{"negative weight", func(c *Config) { c.Search.VectorWeight = -1 }},
		{"both weights zero", func(c *Config) {
			c.Search.VectorWeight = 0
			c.Search.LexicalWeight = 0
		}},
		{"zero timeout", func(c *Config) { c.Search.TimeoutMS = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, perrors.ErrInvalidConfig)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pinpoint.yaml")

	cfg := Default()
	cfg.Search.K = 42
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 42, loaded.Search.K)
}
