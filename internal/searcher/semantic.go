package searcher

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/tmcfarland/pagesearch/internal/storage"
	"github.com/tmcfarland/pagesearch/pkg/types"
)

// Embedder is the query-embedding dependency of the semantic engine.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// SemanticEngine runs vector nearest-neighbor search over chunk
// embeddings and resolves hits back to their parent pages.
type SemanticEngine struct {
	store         storage.Storage
	embedder      Embedder
	minSimilarity float64
	snippetLength int
	defaultLimit  int
	maxLimit      int

	mu       sync.RWMutex
	docCache map[int64]*types.Document
}

// SemanticOption configures a SemanticEngine.
type SemanticOption func(*SemanticEngine)

// WithMinSimilarity drops hits whose similarity falls below the threshold.
func WithMinSimilarity(min float64) SemanticOption {
	return func(e *SemanticEngine) { e.minSimilarity = min }
}

// WithSemanticSnippetLength sets the target snippet size in characters.
func WithSemanticSnippetLength(chars int) SemanticOption {
	return func(e *SemanticEngine) {
		if chars > 0 {
			e.snippetLength = chars
		}
	}
}

// NewSemanticEngine creates a semantic search engine.
func NewSemanticEngine(store storage.Storage, emb Embedder, defaultLimit, maxLimit int, opts ...SemanticOption) *SemanticEngine {
	if defaultLimit <= 0 {
		defaultLimit = 50
	}
	if maxLimit < defaultLimit {
		maxLimit = defaultLimit
	}
	e := &SemanticEngine{
		store:         store,
		embedder:      emb,
		snippetLength: 300,
		defaultLimit:  defaultLimit,
		maxLimit:      maxLimit,
		docCache:      make(map[int64]*types.Document),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *SemanticEngine) clampLimit(limit int) int {
	if limit <= 0 {
		return e.defaultLimit
	}
	if limit > e.maxLimit {
		return e.maxLimit
	}
	return limit
}

// Search embeds the query and returns the nearest chunks resolved to their
// pages, best first. Similarity is 1/(1+distance), in (0, 1].
func (e *SemanticEngine) Search(ctx context.Context, q types.SearchQuery) ([]types.SemanticResult, *types.SearchStats, error) {
	start := time.Now()
	limit := e.clampLimit(q.Limit)

	stats := &types.SearchStats{
		Query: q.Text,
		Mode:  types.ModeSemantic,
	}

	embedStart := time.Now()
	vec, err := e.embedder.EmbedQuery(ctx, q.Text)
	if err != nil {
		return nil, nil, types.NewSearchError(q.Text, err)
	}
	stats.EmbeddingTime = time.Since(embedStart)

	hits, err := e.store.SearchSimilar(ctx, vec, limit)
	if err != nil {
		return nil, nil, types.NewSearchError(q.Text, err)
	}

	results := make([]types.SemanticResult, 0, len(hits))
	for _, hit := range hits {
		similarity := 1.0 / (1.0 + hit.Distance)
		if e.minSimilarity > 0 && similarity < e.minSimilarity {
			continue
		}

		doc, err := e.document(ctx, hit.DocumentID)
		if err != nil {
			// The chunk's document vanished under us; skip rather than
			// fail the whole search.
			continue
		}

		results = append(results, types.SemanticResult{
			ChunkID:      hit.ChunkID,
			DocumentID:   hit.DocumentID,
			Filepath:     doc.Filepath,
			Filename:     doc.Filename,
			PageNum:      hit.PageNum,
			RelativePath: doc.RelativePath,
			Snippet:      makeSnippet(hit.Content, e.snippetLength),
			Similarity:   similarity,
		})
	}

	stats.TotalResults = len(results)
	stats.SemanticResults = len(results)
	stats.SemanticTime = time.Since(start) - stats.EmbeddingTime
	stats.ExecutionTime = time.Since(start)
	return results, stats, nil
}

// document resolves a document id through the metadata cache.
func (e *SemanticEngine) document(ctx context.Context, id int64) (*types.Document, error) {
	e.mu.RLock()
	doc, ok := e.docCache[id]
	e.mu.RUnlock()
	if ok {
		return doc, nil
	}

	doc, err := e.store.GetDocumentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.docCache[id] = doc
	e.mu.Unlock()
	return doc, nil
}

// ClearCache drops cached document metadata. Call after re-indexing.
func (e *SemanticEngine) ClearCache() {
	e.mu.Lock()
	e.docCache = make(map[int64]*types.Document)
	e.mu.Unlock()
}

// makeSnippet truncates chunk content to roughly maxChars, backing up to
// the last whitespace in the trailing 30% so words stay whole.
func makeSnippet(content string, maxChars int) string {
	content = strings.TrimSpace(content)
	if len(content) <= maxChars {
		return content
	}

	cut := maxChars
	floor := maxChars - maxChars*30/100
	for i := cut; i > floor; i-- {
		if unicode.IsSpace(rune(content[i-1])) {
			cut = i - 1
			break
		}
	}
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return strings.TrimSpace(content[:cut]) + "..."
}
