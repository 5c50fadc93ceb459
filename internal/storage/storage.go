package storage

import (
	"context"

	"github.com/tmcfarland/pagesearch/pkg/types"
)

// Storage defines the interface for persisting and querying indexed pages,
// chunks, and embeddings.
type Storage interface {
	// Document operations
	UpsertDocument(ctx context.Context, doc *types.Document) error
	GetDocument(ctx context.Context, filepath string, pageNum int) (*types.Document, error)
	GetDocumentByID(ctx context.Context, id int64) (*types.Document, error)
	ListPages(ctx context.Context, filepath string) ([]*types.Document, error)
	DeleteDocumentsByFilepath(ctx context.Context, filepath string) (int, error)
	CountDocuments(ctx context.Context) (int, error)

	// Lexical search (FTS5 BM25)
	SearchPages(ctx context.Context, match string, limit, offset int) ([]types.LexicalResult, error)
	CountMatches(ctx context.Context, match string) (int, error)

	// Chunk and embedding operations
	UpsertChunks(ctx context.Context, chunks []types.Chunk, vectors [][]float32, model string) error
	GetChunk(ctx context.Context, chunkID string) (*types.Chunk, error)
	DeleteChunksByDocument(ctx context.Context, documentID int64) (int, error)
	CountChunks(ctx context.Context) (int, error)

	// Semantic search
	SearchSimilar(ctx context.Context, vector []float32, limit int) ([]VectorHit, error)
	VectorSearchAvailable() bool

	// Status operations
	GetIndexStats(ctx context.Context) (*IndexStats, error)

	// Database operations
	Close() error
}

// VectorHit is a raw nearest-neighbor match before document resolution.
// Distance is cosine distance: 0 is identical, lower is closer.
type VectorHit struct {
	ChunkID    string
	DocumentID int64
	PageNum    int
	Position   int
	Content    string
	Distance   float64
}

// IndexStats contains statistics about the index contents.
type IndexStats struct {
	Files      int // Distinct source files
	Documents  int // Indexed pages
	Chunks     int
	Embeddings int
	DBSizeMB   float64
}
