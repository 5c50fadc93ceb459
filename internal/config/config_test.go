package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "intfloat/multilingual-e5-large", cfg.EmbeddingModel)
	assert.Equal(t, 1024, cfg.EmbeddingDimensions)
	assert.Equal(t, 1800, cfg.MaxChunkChars)
	assert.Equal(t, 200, cfg.ChunkOverlapChars)
	assert.Equal(t, 2.0, cfg.FilenameWeight)
	assert.Equal(t, 1.0, cfg.ContentWeight)
	assert.Equal(t, 50, cfg.DefaultLimit)
	assert.Equal(t, 200, cfg.MaxLimit)
	assert.Equal(t, 60.0, cfg.RRFK)
	assert.Equal(t, "hybrid", cfg.DefaultMode)
	assert.Equal(t, 2, cfg.HybridFetchFactor)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PAGESEARCH_DB_PATH", "/tmp/custom.db")
	t.Setenv("PAGESEARCH_DEFAULT_MODE", "lexical")
	t.Setenv("PAGESEARCH_RRF_K", "30.5")
	t.Setenv("PAGESEARCH_MAX_LIMIT", "500")

	cfg := Load()
	assert.Equal(t, "/tmp/custom.db", cfg.DBPath)
	assert.Equal(t, "lexical", cfg.DefaultMode)
	assert.Equal(t, 30.5, cfg.RRFK)
	assert.Equal(t, 500, cfg.MaxLimit)
}

func TestMalformedNumbersFallBack(t *testing.T) {
	t.Setenv("PAGESEARCH_MAX_LIMIT", "not-a-number")
	t.Setenv("PAGESEARCH_RRF_K", "sixty")

	cfg := Load()
	assert.Equal(t, 200, cfg.MaxLimit)
	assert.Equal(t, 60.0, cfg.RRFK)
}
