package searcher

import (
	"context"
	"time"

	"github.com/tmcfarland/pagesearch/internal/queryparser"
	"github.com/tmcfarland/pagesearch/internal/storage"
	"github.com/tmcfarland/pagesearch/pkg/types"
)

// LexicalEngine runs BM25-ranked full-text search over indexed pages.
type LexicalEngine struct {
	store        storage.Storage
	parser       *queryparser.Parser
	defaultLimit int
	maxLimit     int
}

// NewLexicalEngine creates a lexical search engine.
func NewLexicalEngine(store storage.Storage, defaultLimit, maxLimit int) *LexicalEngine {
	if defaultLimit <= 0 {
		defaultLimit = 50
	}
	if maxLimit < defaultLimit {
		maxLimit = defaultLimit
	}
	return &LexicalEngine{
		store:        store,
		parser:       queryparser.New(),
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

func (e *LexicalEngine) clampLimit(limit int) int {
	if limit <= 0 {
		return e.defaultLimit
	}
	if limit > e.maxLimit {
		return e.maxLimit
	}
	return limit
}

// Search parses the query per its Advanced flag and runs it against the
// FTS index. A query that sanitizes to nothing returns empty results, not
// an error.
func (e *LexicalEngine) Search(ctx context.Context, q types.SearchQuery) ([]types.LexicalResult, *types.SearchStats, error) {
	start := time.Now()
	limit := e.clampLimit(q.Limit)
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	stats := &types.SearchStats{
		Query: q.Text,
		Mode:  types.ModeLexical,
		Page:  offset/limit + 1,
	}

	var match string
	if q.Advanced {
		match = e.parser.ParseAdvanced(q.Text)
	} else {
		match = e.parser.ParseBasic(q.Text)
	}
	if match == "" {
		stats.ExecutionTime = time.Since(start)
		return []types.LexicalResult{}, stats, nil
	}

	results, err := e.store.SearchPages(ctx, match, limit, offset)
	if err != nil {
		return nil, nil, types.NewSearchError(q.Text, err)
	}

	total, err := e.store.CountMatches(ctx, match)
	if err != nil {
		return nil, nil, types.NewSearchError(q.Text, err)
	}

	stats.TotalResults = total
	stats.LexicalResults = len(results)
	stats.TotalPages = (total + limit - 1) / limit
	stats.LexicalTime = time.Since(start)
	stats.ExecutionTime = stats.LexicalTime
	return results, stats, nil
}
