package config

import (
	"os"
	"strconv"
)

// Config holds every tunable the engine consumes. Values come from
// environment variables with sensible fallbacks; there is no config file.
type Config struct {
	DBPath   string
	LogLevel string

	// Embedding API (OpenAI-compatible endpoint)
	EmbeddingEndpoint   string
	EmbeddingAPIKey     string
	EmbeddingModel      string
	EmbeddingDimensions int
	EmbeddingBatchSize  int

	// Chunking
	MaxChunkChars     int
	ChunkOverlapChars int

	// Lexical search
	FilenameWeight float64 // bm25() multiplier for the filename column
	ContentWeight  float64 // bm25() multiplier for the content column
	SnippetLength  int     // Target snippet length in characters
	DefaultLimit   int
	MaxLimit       int

	// Hybrid fusion
	RRFK              float64
	DefaultMode       string
	LexicalWeight     float64
	SemanticWeight    float64
	HybridFetchFactor int // Each side over-fetches limit*factor candidates
}

// Load reads configuration from the environment.
func Load() Config {
	return Config{
		DBPath:   envStr("PAGESEARCH_DB_PATH", ""),
		LogLevel: envStr("PAGESEARCH_LOG_LEVEL", "info"),

		EmbeddingEndpoint:   envStr("PAGESEARCH_EMBEDDING_ENDPOINT", "http://localhost:8080/v1"),
		EmbeddingAPIKey:     envStr("PAGESEARCH_EMBEDDING_API_KEY", ""),
		EmbeddingModel:      envStr("PAGESEARCH_EMBEDDING_MODEL", "intfloat/multilingual-e5-large"),
		EmbeddingDimensions: envInt("PAGESEARCH_EMBEDDING_DIMENSIONS", 1024),
		EmbeddingBatchSize:  envInt("PAGESEARCH_EMBEDDING_BATCH_SIZE", 32),

		MaxChunkChars:     envInt("PAGESEARCH_MAX_CHUNK_CHARS", 1800),
		ChunkOverlapChars: envInt("PAGESEARCH_CHUNK_OVERLAP_CHARS", 200),

		FilenameWeight: envFloat("PAGESEARCH_BM25_FILENAME_WEIGHT", 2.0),
		ContentWeight:  envFloat("PAGESEARCH_BM25_CONTENT_WEIGHT", 1.0),
		SnippetLength:  envInt("PAGESEARCH_SNIPPET_LENGTH", 300),
		DefaultLimit:   envInt("PAGESEARCH_DEFAULT_LIMIT", 50),
		MaxLimit:       envInt("PAGESEARCH_MAX_LIMIT", 200),

		RRFK:              envFloat("PAGESEARCH_RRF_K", 60),
		DefaultMode:       envStr("PAGESEARCH_DEFAULT_MODE", "hybrid"),
		LexicalWeight:     envFloat("PAGESEARCH_LEXICAL_WEIGHT", 1.0),
		SemanticWeight:    envFloat("PAGESEARCH_SEMANTIC_WEIGHT", 1.0),
		HybridFetchFactor: envInt("PAGESEARCH_HYBRID_FETCH_FACTOR", 2),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
