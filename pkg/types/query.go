package types

import (
	"fmt"
	"strings"
)

// SearchMode selects the retrieval strategy for a query.
type SearchMode string

const (
	ModeLexical  SearchMode = "lexical"  // BM25 full-text ranking only
	ModeSemantic SearchMode = "semantic" // Vector similarity only
	ModeHybrid   SearchMode = "hybrid"   // Both, fused with RRF
)

// ParseMode converts a string to a SearchMode, returning an error for
// unrecognized values.
func ParseMode(s string) (SearchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lexical", "keyword", "bm25":
		return ModeLexical, nil
	case "semantic", "vector":
		return ModeSemantic, nil
	case "hybrid":
		return ModeHybrid, nil
	default:
		return "", fmt.Errorf("invalid search mode %q (valid: lexical, semantic, hybrid)", s)
	}
}

// SearchQuery carries one search request through the engine.
type SearchQuery struct {
	Text   string
	Mode   SearchMode
	Limit  int
	Offset int

	// RRF weights for hybrid mode. Zero values fall back to the configured
	// defaults.
	LexicalWeight  float64
	SemanticWeight float64

	// Advanced enables operator-aware query parsing (OR/AND/NOT, quoted
	// phrases, prefix wildcards).
	Advanced bool
}
