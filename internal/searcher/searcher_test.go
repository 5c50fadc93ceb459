package searcher

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmcfarland/pagesearch/internal/storage"
	"github.com/tmcfarland/pagesearch/pkg/types"
)

type stubEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (s *stubEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.vec, nil
}

// failingStore overrides the search entry points to simulate a broken
// backend; everything else panics if reached.
type failingStore struct {
	storage.Storage
}

func (f *failingStore) SearchPages(context.Context, string, int, int) ([]types.LexicalResult, error) {
	return nil, errors.New("fts index corrupt")
}

func (f *failingStore) SearchSimilar(context.Context, []float32, int) ([]storage.VectorHit, error) {
	return nil, errors.New("vector table missing")
}

// newTestIndex seeds a store where the aviation manual's first page is both
// a lexical match for "aviation" and the nearest vector to {1, 0}.
func newTestIndex(t *testing.T, opts ...storage.StoreOption) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	docs := []*types.Document{
		{Filepath: "/docs/aviation.pdf", Filename: "aviation.pdf", PageNum: 1,
			Content: "Aviation pre-flight procedures and fuel checks."},
		{Filepath: "/docs/aviation.pdf", Filename: "aviation.pdf", PageNum: 2,
			Content: "Aviation radio phraseology for controlled airspace."},
		{Filepath: "/docs/maritime.pdf", Filename: "maritime.pdf", PageNum: 1,
			Content: "Maritime distress signaling and flare usage."},
	}
	for _, doc := range docs {
		require.NoError(t, store.UpsertDocument(ctx, doc))
	}

	chunks := []types.Chunk{
		{ChunkID: "av1", DocumentID: docs[0].ID, PageNum: 1, Position: 0,
			Content: "Aviation pre-flight procedures and fuel checks.", CharCount: 47},
		{ChunkID: "av2", DocumentID: docs[1].ID, PageNum: 2, Position: 0,
			Content: "Aviation radio phraseology for controlled airspace.", CharCount: 51},
		{ChunkID: "mar1", DocumentID: docs[2].ID, PageNum: 1, Position: 0,
			Content: "Maritime distress signaling and flare usage.", CharCount: 44},
	}
	vectors := [][]float32{
		{1, 0},      // closest to the query vector
		{0, 1},      // orthogonal
		{0.8, 0.2},  // second closest
	}
	require.NoError(t, store.UpsertChunks(ctx, chunks, vectors, "test-model"))
	return store
}

func newTestEngine(t *testing.T, store storage.Storage, emb Embedder, opts ...EngineOption) *Engine {
	t.Helper()
	lexical := NewLexicalEngine(store, 50, 200)
	semantic := NewSemanticEngine(store, emb, 50, 200)
	return NewEngine(lexical, semantic, Config{}, opts...)
}

func TestApplyRRFOverlapOutranksSingleSide(t *testing.T) {
	lexical := []types.LexicalResult{
		{DocumentID: 1, Filepath: "/a.pdf", PageNum: 1, Score: -9},
		{DocumentID: 2, Filepath: "/b.pdf", PageNum: 1, Score: -8},
	}
	semantic := []types.SemanticResult{
		{ChunkID: "c1", DocumentID: 3, Filepath: "/c.pdf", PageNum: 1, Similarity: 0.99},
		{ChunkID: "a1", DocumentID: 1, Filepath: "/a.pdf", PageNum: 1, Similarity: 0.95},
	}

	fused := applyRRF(lexical, semantic, 1.0, 1.0, DefaultRRFK)
	require.Len(t, fused, 3)

	// /a.pdf page 1 appears on both sides; two contributions beat any
	// single top rank at k=60.
	assert.Equal(t, "/a.pdf", fused[0].Filepath)
	assert.Equal(t, types.ProvenanceBoth, fused[0].Provenance)
	assert.Equal(t, 1, fused[0].LexicalRank)
	assert.Equal(t, 2, fused[0].SemanticRank)
	assert.InDelta(t, 1.0/61.0+1.0/62.0, fused[0].Score, 1e-12)
	assert.Equal(t, 0.95, fused[0].Similarity)

	for _, r := range fused[1:] {
		assert.NotEqual(t, types.ProvenanceBoth, r.Provenance)
		assert.Less(t, r.Score, fused[0].Score)
	}
}

func TestApplyRRFTieBreakIsStable(t *testing.T) {
	// Two pages each appearing only at the same rank on opposite sides
	// fuse to identical scores; the lexical-side page must stay first on
	// every run.
	lexical := []types.LexicalResult{
		{DocumentID: 1, Filepath: "/lex.pdf", PageNum: 1},
	}
	semantic := []types.SemanticResult{
		{ChunkID: "s1", DocumentID: 2, Filepath: "/sem.pdf", PageNum: 1, Similarity: 0.9},
	}

	for i := 0; i < 20; i++ {
		fused := applyRRF(lexical, semantic, 1.0, 1.0, DefaultRRFK)
		require.Len(t, fused, 2)
		assert.Equal(t, fused[0].Score, fused[1].Score)
		assert.Equal(t, "/lex.pdf", fused[0].Filepath)
	}
}

func TestApplyRRFWeights(t *testing.T) {
	lexical := []types.LexicalResult{{DocumentID: 1, Filepath: "/lex.pdf", PageNum: 1}}
	semantic := []types.SemanticResult{{ChunkID: "s1", DocumentID: 2, Filepath: "/sem.pdf", PageNum: 1}}

	fused := applyRRF(lexical, semantic, 0.5, 2.0, DefaultRRFK)
	require.Len(t, fused, 2)
	assert.Equal(t, "/sem.pdf", fused[0].Filepath, "semantic weight dominates")
	assert.InDelta(t, 2.0/61.0, fused[0].Score, 1e-12)
	assert.InDelta(t, 0.5/61.0, fused[1].Score, 1e-12)
}

func TestHybridSearchAgreementWins(t *testing.T) {
	store := newTestIndex(t)
	emb := &stubEmbedder{vec: []float32{1, 0}}
	engine := newTestEngine(t, store, emb)

	results, stats, err := engine.Search(context.Background(), types.SearchQuery{
		Text: "aviation", Mode: types.ModeHybrid, Limit: 10,
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	// Aviation page 1 is lexical rank 1 or 2 and semantic rank 1; it must
	// fuse to the top with both-provenance.
	assert.Equal(t, "/docs/aviation.pdf", results[0].Filepath)
	assert.Equal(t, 1, results[0].PageNum)
	assert.Equal(t, types.ProvenanceBoth, results[0].Provenance)
	assert.Positive(t, results[0].Similarity)

	// Both aviation pages surface on both sides (the semantic list holds
	// every chunk at this corpus size).
	assert.Equal(t, 2, stats.OverlapCount)
	assert.Empty(t, stats.Errors)
	assert.Positive(t, stats.LexicalResults)
	assert.Positive(t, stats.SemanticResults)
}

func TestHybridSearchDeterministic(t *testing.T) {
	store := newTestIndex(t)
	emb := &stubEmbedder{vec: []float32{1, 0}}
	engine := newTestEngine(t, store, emb)

	q := types.SearchQuery{Text: "aviation", Mode: types.ModeHybrid, Limit: 10}
	first, _, err := engine.Search(context.Background(), q)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, _, err := engine.Search(context.Background(), q)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestHybridLexicalOnlyWhenVectorsUnavailable(t *testing.T) {
	store := newTestIndex(t, storage.WithVectorSearchDisabled())
	emb := &stubEmbedder{vec: []float32{1, 0}}
	engine := newTestEngine(t, store, emb)

	results, stats, err := engine.Search(context.Background(), types.SearchQuery{
		Text: "aviation", Mode: types.ModeHybrid, Limit: 10,
	})
	require.NoError(t, err, "degraded vector search fails soft")
	require.Len(t, results, 2, "lexical side stands alone")

	for _, r := range results {
		assert.Equal(t, types.ProvenanceLexical, r.Provenance)
	}
	assert.Empty(t, stats.Errors)
	assert.Zero(t, stats.SemanticResults)
}

func TestHybridSurvivesEmbeddingFailure(t *testing.T) {
	store := newTestIndex(t)
	emb := &stubEmbedder{err: errors.New("model server down")}
	engine := newTestEngine(t, store, emb)

	results, stats, err := engine.Search(context.Background(), types.SearchQuery{
		Text: "maritime", Mode: types.ModeHybrid, Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "/docs/maritime.pdf", results[0].Filepath)
	require.Len(t, stats.Errors, 1)
	assert.Contains(t, stats.Errors[0], "semantic")
}

func TestHybridBothSidesFailing(t *testing.T) {
	store := &failingStore{}
	lexical := NewLexicalEngine(store, 50, 200)
	semantic := NewSemanticEngine(store, &stubEmbedder{vec: []float32{1, 0}}, 50, 200)
	engine := NewEngine(lexical, semantic, Config{})

	results, stats, err := engine.Search(context.Background(), types.SearchQuery{
		Text: "anything", Mode: types.ModeHybrid, Limit: 10,
	})
	require.NoError(t, err, "total degradation is still not a search error")
	assert.Empty(t, results)
	assert.Len(t, stats.Errors, 2)
}

func TestLexicalModeScoresPositive(t *testing.T) {
	store := newTestIndex(t)
	engine := newTestEngine(t, store, &stubEmbedder{vec: []float32{1, 0}})

	results, stats, err := engine.Search(context.Background(), types.SearchQuery{
		Text: "aviation", Mode: types.ModeLexical, Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, types.ModeLexical, stats.Mode)
	for i, r := range results {
		assert.Positive(t, r.Score, "display scores are positive")
		assert.Equal(t, types.ProvenanceLexical, r.Provenance)
		assert.Equal(t, i+1, r.LexicalRank)
	}
}

func TestSemanticModeRanksByDistance(t *testing.T) {
	store := newTestIndex(t)
	engine := newTestEngine(t, store, &stubEmbedder{vec: []float32{1, 0}})

	results, _, err := engine.Search(context.Background(), types.SearchQuery{
		Text: "how do I prepare for takeoff", Mode: types.ModeSemantic, Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "/docs/aviation.pdf", results[0].Filepath)
	assert.Equal(t, 1, results[0].PageNum)
	assert.Equal(t, "/docs/maritime.pdf", results[1].Filepath)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-6, "identical vector gives similarity 1")
	assert.Greater(t, results[0].Similarity, results[1].Similarity)
}

func TestSemanticMinSimilarityFilter(t *testing.T) {
	store := newTestIndex(t)
	emb := &stubEmbedder{vec: []float32{1, 0}}
	semantic := NewSemanticEngine(store, emb, 50, 200, WithMinSimilarity(0.6))

	results, _, err := semantic.Search(context.Background(), types.SearchQuery{
		Text: "query", Limit: 10,
	})
	require.NoError(t, err)
	// The orthogonal vector (distance 1, similarity 0.5) drops out.
	require.Len(t, results, 2)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Similarity, 0.6)
	}
}

func TestLexicalPaginationStats(t *testing.T) {
	store := newTestIndex(t)
	lexical := NewLexicalEngine(store, 50, 200)

	results, stats, err := lexical.Search(context.Background(), types.SearchQuery{
		Text: "aviation", Limit: 1, Offset: 1,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 2, stats.TotalResults)
	assert.Equal(t, 2, stats.Page)
	assert.Equal(t, 2, stats.TotalPages)
}

func TestLexicalEmptyQueryIsNotAnError(t *testing.T) {
	store := newTestIndex(t)
	lexical := NewLexicalEngine(store, 50, 200)

	results, _, err := lexical.Search(context.Background(), types.SearchQuery{Text: "***"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEngineUsesQueryCache(t *testing.T) {
	store := newTestIndex(t)
	emb := &stubEmbedder{vec: []float32{1, 0}}
	engine := newTestEngine(t, store, emb,
		WithQueryCache(NewQueryCache(16, time.Minute)))

	q := types.SearchQuery{Text: "aviation", Mode: types.ModeHybrid, Limit: 10}
	first, _, err := engine.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 1, emb.calls)

	second, _, err := engine.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 1, emb.calls, "second search is served from cache")
	assert.Equal(t, first, second)

	engine.ClearCache()
	_, _, err = engine.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 2, emb.calls, "cleared cache forces a fresh search")
}

func TestQueryCacheExpiry(t *testing.T) {
	cache := NewQueryCache(16, 10*time.Millisecond)
	q := types.SearchQuery{Text: "ttl", Mode: types.ModeHybrid}

	cache.Set(q, []types.FusedResult{{Filepath: "/a.pdf"}}, &types.SearchStats{})
	_, _, ok := cache.Get(q)
	assert.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, _, ok = cache.Get(q)
	assert.False(t, ok, "expired entries miss")
}

func TestQueryCacheKeyCoversWeights(t *testing.T) {
	cache := NewQueryCache(16, time.Minute)
	a := types.SearchQuery{Text: "same", Mode: types.ModeHybrid, LexicalWeight: 1, SemanticWeight: 1}
	b := a
	b.SemanticWeight = 2

	cache.Set(a, []types.FusedResult{{Filepath: "/a.pdf"}}, nil)
	_, _, ok := cache.Get(b)
	assert.False(t, ok, "different weights are different cache keys")
}

func TestMakeSnippet(t *testing.T) {
	assert.Equal(t, "short text", makeSnippet("short text", 100))

	long := "alpha beta gamma delta epsilon zeta eta theta"
	got := makeSnippet(long, 20)
	assert.LessOrEqual(t, len(got), 24)
	assert.True(t, len(got) > 0)
	assert.Contains(t, got, "...")
	assert.NotContains(t, got, "gamma delta", "cut lands on a word boundary")
}

func TestUnknownModeRejected(t *testing.T) {
	store := newTestIndex(t)
	engine := newTestEngine(t, store, &stubEmbedder{vec: []float32{1, 0}})

	_, _, err := engine.Search(context.Background(), types.SearchQuery{
		Text: "x", Mode: types.SearchMode("fuzzy"),
	})
	assert.Error(t, err)
}
