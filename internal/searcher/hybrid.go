package searcher

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tmcfarland/pagesearch/pkg/types"
)

// DefaultRRFK is the standard reciprocal rank fusion constant. The value
// 60 keeps single top ranks from dominating the fused order.
const DefaultRRFK = 60.0

// Config carries the fusion tunables of the hybrid engine.
type Config struct {
	RRFK           float64
	FetchFactor    int // Each side over-fetches limit*FetchFactor candidates
	DefaultLimit   int
	MaxLimit       int
	LexicalWeight  float64
	SemanticWeight float64
}

func (c *Config) applyDefaults() {
	if c.RRFK <= 0 {
		c.RRFK = DefaultRRFK
	}
	if c.FetchFactor <= 0 {
		c.FetchFactor = 2
	}
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = 50
	}
	if c.MaxLimit < c.DefaultLimit {
		c.MaxLimit = c.DefaultLimit
	}
	if c.LexicalWeight <= 0 {
		c.LexicalWeight = 1.0
	}
	if c.SemanticWeight <= 0 {
		c.SemanticWeight = 1.0
	}
}

// Engine dispatches searches to the lexical and semantic engines and fuses
// hybrid results with reciprocal rank fusion.
type Engine struct {
	lexical  *LexicalEngine
	semantic *SemanticEngine
	cfg      Config
	cache    *QueryCache
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithQueryCache attaches a result cache consulted before searching.
func WithQueryCache(cache *QueryCache) EngineOption {
	return func(e *Engine) { e.cache = cache }
}

// NewEngine creates the hybrid search engine.
func NewEngine(lexical *LexicalEngine, semantic *SemanticEngine, cfg Config, opts ...EngineOption) *Engine {
	cfg.applyDefaults()
	e := &Engine{lexical: lexical, semantic: semantic, cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ClearCache drops cached query results and document metadata. Call after
// any indexing operation.
func (e *Engine) ClearCache() {
	if e.cache != nil {
		e.cache.Clear()
	}
	e.semantic.ClearCache()
}

// Search runs a query in its requested mode and returns unified results.
func (e *Engine) Search(ctx context.Context, q types.SearchQuery) ([]types.FusedResult, *types.SearchStats, error) {
	if q.Mode == "" {
		q.Mode = types.ModeHybrid
	}
	if q.LexicalWeight <= 0 {
		q.LexicalWeight = e.cfg.LexicalWeight
	}
	if q.SemanticWeight <= 0 {
		q.SemanticWeight = e.cfg.SemanticWeight
	}

	if e.cache != nil {
		if results, stats, ok := e.cache.Get(q); ok {
			return results, stats, nil
		}
	}

	var (
		results []types.FusedResult
		stats   *types.SearchStats
		err     error
	)
	switch q.Mode {
	case types.ModeLexical:
		results, stats, err = e.searchLexical(ctx, q)
	case types.ModeSemantic:
		results, stats, err = e.searchSemantic(ctx, q)
	case types.ModeHybrid:
		results, stats, err = e.searchHybrid(ctx, q)
	default:
		return nil, nil, fmt.Errorf("unknown search mode %q", q.Mode)
	}
	if err != nil {
		return nil, nil, err
	}

	if e.cache != nil {
		e.cache.Set(q, results, stats)
	}
	return results, stats, nil
}

func (e *Engine) searchLexical(ctx context.Context, q types.SearchQuery) ([]types.FusedResult, *types.SearchStats, error) {
	hits, stats, err := e.lexical.Search(ctx, q)
	if err != nil {
		return nil, nil, err
	}
	return convertLexical(hits), stats, nil
}

func (e *Engine) searchSemantic(ctx context.Context, q types.SearchQuery) ([]types.FusedResult, *types.SearchStats, error) {
	hits, stats, err := e.semantic.Search(ctx, q)
	if err != nil {
		return nil, nil, err
	}
	return convertSemantic(hits), stats, nil
}

// searchHybrid runs both sides concurrently over an over-fetched candidate
// window and fuses the outcomes. A failing side is recorded in the stats
// and the other side's results stand alone; only both sides failing yields
// an empty result set.
func (e *Engine) searchHybrid(ctx context.Context, q types.SearchQuery) ([]types.FusedResult, *types.SearchStats, error) {
	start := time.Now()
	limit := q.Limit
	if limit <= 0 {
		limit = e.cfg.DefaultLimit
	}
	if limit > e.cfg.MaxLimit {
		limit = e.cfg.MaxLimit
	}

	sub := q
	sub.Limit = limit * e.cfg.FetchFactor
	sub.Offset = 0

	var (
		lexHits  []types.LexicalResult
		lexStats *types.SearchStats
		lexErr   error
		semHits  []types.SemanticResult
		semStats *types.SearchStats
		semErr   error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lexHits, lexStats, lexErr = e.lexical.Search(gctx, sub)
		return nil
	})
	g.Go(func() error {
		semHits, semStats, semErr = e.semantic.Search(gctx, sub)
		return nil
	})
	_ = g.Wait()

	stats := &types.SearchStats{
		Query: q.Text,
		Mode:  types.ModeHybrid,
	}
	if lexStats != nil {
		stats.LexicalTime = lexStats.LexicalTime
	}
	if semStats != nil {
		stats.SemanticTime = semStats.SemanticTime
		stats.EmbeddingTime = semStats.EmbeddingTime
	}
	if lexErr != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("lexical: %v", lexErr))
		lexHits = nil
	}
	if semErr != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("semantic: %v", semErr))
		semHits = nil
	}

	// Fusion math only applies when both sides contributed; a lone side's
	// results pass through directly with their native scores.
	var fused []types.FusedResult
	switch {
	case len(lexHits) > 0 && len(semHits) == 0:
		fused = convertLexical(lexHits)
	case len(semHits) > 0 && len(lexHits) == 0:
		fused = convertSemantic(semHits)
	default:
		fused = applyRRF(lexHits, semHits, q.LexicalWeight, q.SemanticWeight, e.cfg.RRFK)
	}
	if len(fused) > limit {
		fused = fused[:limit]
	}

	stats.LexicalResults = len(lexHits)
	stats.SemanticResults = len(semHits)
	stats.TotalResults = len(fused)
	for _, r := range fused {
		if r.Provenance == types.ProvenanceBoth {
			stats.OverlapCount++
		}
	}
	stats.ExecutionTime = time.Since(start)
	return fused, stats, nil
}

// fusionKey identifies a page across both result lists.
func fusionKey(filepath string, pageNum int) string {
	return fmt.Sprintf("%s:%d", filepath, pageNum)
}

// applyRRF merges ranked lists with weighted reciprocal rank fusion:
// each appearance contributes weight * 1/(k + rank). Pages found by both
// sides accumulate both contributions. Ties keep lexical-first insertion
// order, so repeated queries return identical orderings.
func applyRRF(lexical []types.LexicalResult, semantic []types.SemanticResult, lexWeight, semWeight, k float64) []types.FusedResult {
	merged := make(map[string]*types.FusedResult)
	var order []string

	for i, r := range lexical {
		rank := i + 1
		key := fusionKey(r.Filepath, r.PageNum)
		merged[key] = &types.FusedResult{
			DocumentID:   r.DocumentID,
			Filepath:     r.Filepath,
			Filename:     r.Filename,
			PageNum:      r.PageNum,
			RelativePath: r.RelativePath,
			Snippet:      r.Snippet,
			Score:        lexWeight / (k + float64(rank)),
			Provenance:   types.ProvenanceLexical,
			LexicalRank:  rank,
		}
		order = append(order, key)
	}

	for i, r := range semantic {
		rank := i + 1
		key := fusionKey(r.Filepath, r.PageNum)
		if existing, ok := merged[key]; ok {
			existing.Score += semWeight / (k + float64(rank))
			existing.Provenance = types.ProvenanceBoth
			existing.SemanticRank = rank
			if r.Similarity > existing.Similarity {
				existing.Similarity = r.Similarity
			}
			continue
		}
		merged[key] = &types.FusedResult{
			DocumentID:   r.DocumentID,
			Filepath:     r.Filepath,
			Filename:     r.Filename,
			PageNum:      r.PageNum,
			RelativePath: r.RelativePath,
			Snippet:      r.Snippet,
			Score:        semWeight / (k + float64(rank)),
			Provenance:   types.ProvenanceSemantic,
			SemanticRank: rank,
			Similarity:   r.Similarity,
		}
		order = append(order, key)
	}

	out := make([]types.FusedResult, 0, len(order))
	for _, key := range order {
		out = append(out, *merged[key])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// convertLexical maps pure lexical hits onto the unified result type,
// keeping the BM25 rank order and exposing the display score.
func convertLexical(hits []types.LexicalResult) []types.FusedResult {
	out := make([]types.FusedResult, 0, len(hits))
	for i, r := range hits {
		out = append(out, types.FusedResult{
			DocumentID:   r.DocumentID,
			Filepath:     r.Filepath,
			Filename:     r.Filename,
			PageNum:      r.PageNum,
			RelativePath: r.RelativePath,
			Snippet:      r.Snippet,
			Score:        r.DisplayScore(),
			Provenance:   types.ProvenanceLexical,
			LexicalRank:  i + 1,
		})
	}
	return out
}

// convertSemantic maps pure semantic hits onto the unified result type.
func convertSemantic(hits []types.SemanticResult) []types.FusedResult {
	out := make([]types.FusedResult, 0, len(hits))
	for i, r := range hits {
		out = append(out, types.FusedResult{
			DocumentID:   r.DocumentID,
			Filepath:     r.Filepath,
			Filename:     r.Filename,
			PageNum:      r.PageNum,
			RelativePath: r.RelativePath,
			Snippet:      r.Snippet,
			Score:        r.Similarity,
			Provenance:   types.ProvenanceSemantic,
			SemanticRank: i + 1,
			Similarity:   r.Similarity,
		})
	}
	return out
}
