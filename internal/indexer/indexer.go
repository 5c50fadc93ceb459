package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/tmcfarland/pagesearch/internal/chunker"
	"github.com/tmcfarland/pagesearch/internal/storage"
	"github.com/tmcfarland/pagesearch/pkg/types"
)

// ErrIndexingInProgress is returned when a file-level index run is already
// holding the lock.
var ErrIndexingInProgress = errors.New("indexing already in progress")

// Embedder is the passage-embedding dependency of the indexer.
type Embedder interface {
	EmbedPassages(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// Indexer coordinates the write path: page text -> chunks -> embeddings ->
// storage.
type Indexer struct {
	store    storage.Storage
	chunker  *chunker.Chunker
	embedder Embedder
	rootPath string
	lock     IndexLock
}

// Statistics summarizes one file-level indexing run.
type Statistics struct {
	PagesIndexed  int
	PagesSkipped  int
	ChunksCreated int
	Duration      time.Duration
	ErrorMessages []string
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithRootPath stores page paths relative to root alongside the absolute
// filepath.
func WithRootPath(root string) Option {
	return func(idx *Indexer) { idx.rootPath = root }
}

// WithChunker overrides the default chunker.
func WithChunker(c *chunker.Chunker) Option {
	return func(idx *Indexer) { idx.chunker = c }
}

// New creates an Indexer.
func New(store storage.Storage, emb Embedder, opts ...Option) *Indexer {
	idx := &Indexer{
		store:    store,
		chunker:  chunker.New(chunker.DefaultMaxChars, chunker.DefaultOverlapChars),
		embedder: emb,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// IndexDocument replaces the chunks and vectors stored under documentID
// with those derived from pages. Re-running with identical input produces
// identical chunk ids and the same stored count. Returns the number of
// chunks indexed.
func (idx *Indexer) IndexDocument(ctx context.Context, documentID int64, pages []types.Page) (int, error) {
	if _, err := idx.store.DeleteChunksByDocument(ctx, documentID); err != nil {
		return 0, fmt.Errorf("failed to clear chunks for document %d: %w", documentID, err)
	}

	chunks := idx.chunker.ChunkDocument(pages, documentID)
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	vectors, err := idx.embedder.EmbedPassages(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed document %d: %w", documentID, err)
	}

	if err := idx.store.UpsertChunks(ctx, chunks, vectors, idx.embedder.Model()); err != nil {
		return 0, fmt.Errorf("failed to store chunks for document %d: %w", documentID, err)
	}
	return len(chunks), nil
}

// IndexFile indexes every page of a file: each page becomes a document row
// and its chunks are embedded and stored under that row. Re-indexing an
// unchanged file is an idempotent upsert. Only one file-level run may be
// active at a time.
func (idx *Indexer) IndexFile(ctx context.Context, path string, pages []types.Page) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer idx.lock.Release()

	start := time.Now()
	stats := &Statistics{}
	filename := filepath.Base(path)
	relative := idx.relativePath(path)

	for _, page := range pages {
		text := strings.TrimSpace(page.Text)
		if text == "" {
			stats.PagesSkipped++
			continue
		}

		doc := &types.Document{
			Filepath:     path,
			Filename:     filename,
			PageNum:      page.Num,
			Content:      text,
			RelativePath: relative,
			ContentHash:  hashContent(text),
		}
		if err := idx.store.UpsertDocument(ctx, doc); err != nil {
			stats.ErrorMessages = append(stats.ErrorMessages,
				fmt.Sprintf("page %d: %v", page.Num, err))
			continue
		}

		indexed, err := idx.IndexDocument(ctx, doc.ID, []types.Page{{Num: page.Num, Text: text}})
		if err != nil {
			stats.ErrorMessages = append(stats.ErrorMessages,
				fmt.Sprintf("page %d: %v", page.Num, err))
			continue
		}

		stats.PagesIndexed++
		stats.ChunksCreated += indexed
	}

	stats.Duration = time.Since(start)
	slog.Info("indexed file",
		"path", path,
		"pages", stats.PagesIndexed,
		"skipped", stats.PagesSkipped,
		"chunks", stats.ChunksCreated,
		"errors", len(stats.ErrorMessages),
		"duration", stats.Duration.Round(time.Millisecond),
	)
	return stats, nil
}

// RemoveFile deletes every page of a file along with its chunks and
// vectors. Returns the number of pages removed.
func (idx *Indexer) RemoveFile(ctx context.Context, path string) (int, error) {
	deleted, err := idx.store.DeleteDocumentsByFilepath(ctx, path)
	if err != nil {
		return 0, err
	}
	slog.Info("removed file from index", "path", path, "pages", deleted)
	return deleted, nil
}

// Stats returns index-wide statistics.
func (idx *Indexer) Stats(ctx context.Context) (*storage.IndexStats, error) {
	return idx.store.GetIndexStats(ctx)
}

func (idx *Indexer) relativePath(path string) string {
	if idx.rootPath == "" {
		return ""
	}
	rel, err := filepath.Rel(idx.rootPath, path)
	if err != nil {
		return ""
	}
	return rel
}

func hashContent(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// SplitPages divides raw text into pages on form-feed characters, the
// page-break convention of plain-text extractions. Page numbers are
// 1-based and empty pages are kept (the indexer skips them later) so
// numbering matches the source.
func SplitPages(text string) []types.Page {
	parts := strings.Split(text, "\f")
	pages := make([]types.Page, len(parts))
	for i, part := range parts {
		pages[i] = types.Page{Num: i + 1, Text: part}
	}
	return pages
}
