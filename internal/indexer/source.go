package indexer

import (
	"context"
	"fmt"
	"os"

	"github.com/tmcfarland/pagesearch/pkg/types"
)

// PageSource yields the per-page text of a file. Text extraction lives
// outside this package; implementations adapt whatever format they read
// into (pageNum, text) pairs.
type PageSource interface {
	Pages(ctx context.Context, path string) ([]types.Page, error)
}

// TextFileSource reads plain-text files from disk, treating form feeds as
// page breaks.
type TextFileSource struct{}

func (TextFileSource) Pages(_ context.Context, path string) ([]types.Page, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return SplitPages(string(raw)), nil
}

// IndexPath pulls pages from source and indexes them under path.
func (idx *Indexer) IndexPath(ctx context.Context, source PageSource, path string) (*Statistics, error) {
	pages, err := source.Pages(ctx, path)
	if err != nil {
		return nil, err
	}
	return idx.IndexFile(ctx, path, pages)
}
