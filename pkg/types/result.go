package types

import (
	"math"
	"time"
)

// Provenance records which retrieval method produced a fused result.
type Provenance string

const (
	ProvenanceLexical  Provenance = "lexical"
	ProvenanceSemantic Provenance = "semantic"
	ProvenanceBoth     Provenance = "both"
)

// LexicalResult is a single BM25-ranked hit.
type LexicalResult struct {
	DocumentID   int64
	Filepath     string
	Filename     string
	PageNum      int
	RelativePath string
	Snippet      string // Excerpt with highlighted match markers
	Score        float64
}

// DisplayScore converts the internal rank score to a display-friendly value.
// SQLite FTS5 bm25() returns negative scores where more negative means a
// better match; callers always see higher-is-better.
func (r *LexicalResult) DisplayScore() float64 {
	return math.Abs(r.Score)
}

// SemanticResult is a single vector-similarity hit resolved to its parent
// document.
type SemanticResult struct {
	ChunkID      string
	DocumentID   int64
	Filepath     string
	Filename     string
	PageNum      int
	RelativePath string
	Snippet      string
	Similarity   float64 // 1/(1+distance), in (0, 1]
}

// FusedResult is the unified result produced by the hybrid engine. Rank
// fields are 1-based; zero means the result did not appear on that side.
type FusedResult struct {
	DocumentID   int64
	Filepath     string
	Filename     string
	PageNum      int
	RelativePath string
	Snippet      string
	Score        float64
	Provenance   Provenance
	LexicalRank  int
	SemanticRank int
	Similarity   float64 // Set when the semantic side contributed
}

// SearchStats describes one search execution: counts, a timing breakdown,
// and any per-branch errors collected during hybrid degradation.
type SearchStats struct {
	Query        string
	Mode         SearchMode
	TotalResults int

	ExecutionTime time.Duration
	LexicalTime   time.Duration
	SemanticTime  time.Duration
	EmbeddingTime time.Duration

	LexicalResults  int
	SemanticResults int
	OverlapCount    int

	// Pagination context for lexical searches.
	Page       int
	TotalPages int

	// Errors from sub-engines that failed while the other side kept going.
	Errors []string
}
