package indexer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmcfarland/pagesearch/internal/storage"
	"github.com/tmcfarland/pagesearch/pkg/types"
)

type stubEmbedder struct {
	mu    sync.Mutex
	calls int
}

func (s *stubEmbedder) Model() string { return "test-model" }

func (s *stubEmbedder) EmbedPassages(_ context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func newTestIndexer(t *testing.T, opts ...Option) (*Indexer, *storage.SQLiteStorage) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(store, &stubEmbedder{}, opts...), store
}

func TestIndexFileStoresPagesAndChunks(t *testing.T) {
	idx, store := newTestIndexer(t)
	ctx := context.Background()

	pages := []types.Page{
		{Num: 1, Text: "First page about turbines."},
		{Num: 2, Text: "Second page about bearings."},
	}
	stats, err := idx.IndexFile(ctx, "/docs/machines.pdf", pages)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.PagesIndexed)
	assert.Equal(t, 2, stats.ChunksCreated)
	assert.Empty(t, stats.ErrorMessages)

	istats, err := store.GetIndexStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, istats.Documents)
	assert.Equal(t, 2, istats.Chunks)
	assert.Equal(t, 2, istats.Embeddings)

	doc, err := store.GetDocument(ctx, "/docs/machines.pdf", 1)
	require.NoError(t, err)
	assert.Equal(t, "machines.pdf", doc.Filename)
	assert.NotEmpty(t, doc.ContentHash)
}

func TestIndexFileSkipsBlankPages(t *testing.T) {
	idx, _ := newTestIndexer(t)

	stats, err := idx.IndexFile(context.Background(), "/docs/sparse.pdf", []types.Page{
		{Num: 1, Text: "content"},
		{Num: 2, Text: "   \n  "},
		{Num: 3, Text: "more content"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.PagesIndexed)
	assert.Equal(t, 1, stats.PagesSkipped)
}

func TestReindexIsIdempotent(t *testing.T) {
	idx, store := newTestIndexer(t)
	ctx := context.Background()

	pages := []types.Page{{Num: 1, Text: strings.Repeat("A reusable sentence. ", 200)}}

	first, err := idx.IndexFile(ctx, "/docs/big.pdf", pages)
	require.NoError(t, err)
	require.Greater(t, first.ChunksCreated, 1, "long page splits into several chunks")

	second, err := idx.IndexFile(ctx, "/docs/big.pdf", pages)
	require.NoError(t, err)
	assert.Equal(t, first.ChunksCreated, second.ChunksCreated)

	count, err := store.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ChunksCreated, count, "re-index upserts, never duplicates")

	docs, err := store.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, docs)
}

func TestIndexDocumentReturnsChunkCount(t *testing.T) {
	idx, store := newTestIndexer(t)
	ctx := context.Background()

	doc := &types.Document{Filepath: "/docs/one.pdf", Filename: "one.pdf", PageNum: 1, Content: "seed"}
	require.NoError(t, store.UpsertDocument(ctx, doc))

	n, err := idx.IndexDocument(ctx, doc.ID, []types.Page{{Num: 1, Text: "short page"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = idx.IndexDocument(ctx, doc.ID, []types.Page{{Num: 1, Text: "   "}})
	require.NoError(t, err)
	assert.Zero(t, n, "blank input clears the document's chunks")

	count, err := store.CountChunks(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRemoveFile(t *testing.T) {
	idx, store := newTestIndexer(t)
	ctx := context.Background()

	_, err := idx.IndexFile(ctx, "/docs/gone.pdf", []types.Page{
		{Num: 1, Text: "page one"},
		{Num: 2, Text: "page two"},
	})
	require.NoError(t, err)

	removed, err := idx.RemoveFile(ctx, "/docs/gone.pdf")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	stats, err := store.GetIndexStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Documents)
	assert.Zero(t, stats.Chunks)
	assert.Zero(t, stats.Embeddings)
}

func TestIndexLockRejectsConcurrentRun(t *testing.T) {
	idx, _ := newTestIndexer(t)

	require.True(t, idx.lock.TryAcquire())
	defer idx.lock.Release()

	_, err := idx.IndexFile(context.Background(), "/docs/busy.pdf", []types.Page{
		{Num: 1, Text: "content"},
	})
	assert.ErrorIs(t, err, ErrIndexingInProgress)
}

func TestWithRootPathStoresRelative(t *testing.T) {
	idx, store := newTestIndexer(t, WithRootPath("/docs"))
	ctx := context.Background()

	_, err := idx.IndexFile(ctx, "/docs/manuals/pump.pdf", []types.Page{{Num: 1, Text: "x"}})
	require.NoError(t, err)

	doc, err := store.GetDocument(ctx, "/docs/manuals/pump.pdf", 1)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("manuals", "pump.pdf"), doc.RelativePath)
}

func TestIndexPathReadsTextFiles(t *testing.T) {
	idx, store := newTestIndexer(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "report.txt")
	require.NoError(t, os.WriteFile(path, []byte("page one text\fpage two text"), 0o644))

	stats, err := idx.IndexPath(ctx, TextFileSource{}, path)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.PagesIndexed)

	doc, err := store.GetDocument(ctx, path, 2)
	require.NoError(t, err)
	assert.Equal(t, "page two text", doc.Content)
}

func TestIndexPathMissingFile(t *testing.T) {
	idx, _ := newTestIndexer(t)

	_, err := idx.IndexPath(context.Background(), TextFileSource{}, "/nope/missing.txt")
	assert.Error(t, err)
}

func TestSplitPages(t *testing.T) {
	pages := SplitPages("first\fsecond\f\ffourth")
	require.Len(t, pages, 4)
	assert.Equal(t, 1, pages[0].Num)
	assert.Equal(t, "first", pages[0].Text)
	assert.Equal(t, "", pages[2].Text, "empty pages keep their number")
	assert.Equal(t, 4, pages[3].Num)

	single := SplitPages("no breaks here")
	require.Len(t, single, 1)
	assert.Equal(t, 1, single[0].Num)
}
