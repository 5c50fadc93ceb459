package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmcfarland/pagesearch/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB

	filenameWeight float64
	contentWeight  float64
	snippetTokens  int
	vectorsEnabled bool
}

// StoreOption configures a SQLiteStorage.
type StoreOption func(*SQLiteStorage)

// WithBM25Weights sets the per-column bm25() weights for lexical ranking.
func WithBM25Weights(filename, content float64) StoreOption {
	return func(s *SQLiteStorage) {
		if filename > 0 {
			s.filenameWeight = filename
		}
		if content > 0 {
			s.contentWeight = content
		}
	}
}

// WithSnippetLength sets the target snippet length in characters.
func WithSnippetLength(chars int) StoreOption {
	return func(s *SQLiteStorage) {
		if chars > 0 {
			s.snippetTokens = snippetTokensFor(chars)
		}
	}
}

// WithVectorSearchDisabled forces the degraded lexical-only mode.
func WithVectorSearchDisabled() StoreOption {
	return func(s *SQLiteStorage) { s.vectorsEnabled = false }
}

// snippetTokensFor converts a target snippet length in characters to the FTS5
// snippet token count, which is capped at 64 by SQLite.
func snippetTokensFor(chars int) int {
	tokens := chars / 6
	if tokens < 8 {
		tokens = 8
	}
	if tokens > 64 {
		tokens = 64
	}
	return tokens
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance and applies any
// pending migrations.
func NewSQLiteStorage(dbPath string, opts ...StoreOption) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	s := &SQLiteStorage{
		db:             db,
		filenameWeight: 2.0,
		contentWeight:  1.0,
		snippetTokens:  snippetTokensFor(300),
		vectorsEnabled: true,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.vectorsEnabled && VectorExtensionAvailable {
		if err := probeVectorExtension(db); err != nil {
			slog.Warn("vector extension unavailable, semantic search disabled", "error", err)
			s.vectorsEnabled = false
		}
	}

	return s, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// VectorSearchAvailable reports whether nearest-neighbor search can run.
func (s *SQLiteStorage) VectorSearchAvailable() bool {
	return s.vectorsEnabled
}

// Document operations

// UpsertDocument inserts a page or replaces its content if the
// (filepath, page_num) pair already exists. The document's ID is set on
// return.
func (s *SQLiteStorage) UpsertDocument(ctx context.Context, doc *types.Document) error {
	query := `
		INSERT INTO documents (filepath, filename, page_num, content, relative_path, content_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(filepath, page_num) DO UPDATE SET
			filename = excluded.filename,
			content = excluded.content,
			relative_path = excluded.relative_path,
			content_hash = excluded.content_hash,
			updated_at = excluded.updated_at
		RETURNING id
	`
	now := time.Now()
	err := s.db.QueryRowContext(ctx, query,
		doc.Filepath, doc.Filename, doc.PageNum, doc.Content,
		doc.RelativePath, doc.ContentHash, now, now).Scan(&doc.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

const documentColumns = "id, filepath, filename, page_num, content, relative_path, content_hash"

func scanDocument(row interface{ Scan(...interface{}) error }) (*types.Document, error) {
	var doc types.Document
	var relativePath, contentHash sql.NullString
	err := row.Scan(&doc.ID, &doc.Filepath, &doc.Filename, &doc.PageNum,
		&doc.Content, &relativePath, &contentHash)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	doc.RelativePath = relativePath.String
	doc.ContentHash = contentHash.String
	return &doc, nil
}

// GetDocument returns the page at (filepath, pageNum).
func (s *SQLiteStorage) GetDocument(ctx context.Context, filepath string, pageNum int) (*types.Document, error) {
	query := "SELECT " + documentColumns + " FROM documents WHERE filepath = ? AND page_num = ?"
	return scanDocument(s.db.QueryRowContext(ctx, query, filepath, pageNum))
}

// GetDocumentByID returns the page with the given rowid.
func (s *SQLiteStorage) GetDocumentByID(ctx context.Context, id int64) (*types.Document, error) {
	query := "SELECT " + documentColumns + " FROM documents WHERE id = ?"
	return scanDocument(s.db.QueryRowContext(ctx, query, id))
}

// ListPages returns every indexed page of a file in page order.
func (s *SQLiteStorage) ListPages(ctx context.Context, filepath string) ([]*types.Document, error) {
	query := "SELECT " + documentColumns + " FROM documents WHERE filepath = ? ORDER BY page_num"
	rows, err := s.db.QueryContext(ctx, query, filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []*types.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// DeleteDocumentsByFilepath removes every page of a file. Chunks and
// embeddings go with them through cascading deletes. Returns the number of
// pages removed.
func (s *SQLiteStorage) DeleteDocumentsByFilepath(ctx context.Context, filepath string) (int, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE filepath = ?", filepath)
	if err != nil {
		return 0, fmt.Errorf("failed to delete documents: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// CountDocuments returns the number of indexed pages.
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&n)
	return n, err
}

// Chunk operations

// UpsertChunks stores chunks and their embedding vectors in one
// transaction. vectors[i] belongs to chunks[i]; re-inserting an existing
// chunk_id replaces both rows.
func (s *SQLiteStorage) UpsertChunks(ctx context.Context, chunks []types.Chunk, vectors [][]float32, model string) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	chunkStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (chunk_id, document_id, page_num, position, content, char_count)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			document_id = excluded.document_id,
			page_num = excluded.page_num,
			position = excluded.position,
			content = excluded.content,
			char_count = excluded.char_count
	`)
	if err != nil {
		return err
	}
	defer func() { _ = chunkStmt.Close() }()

	embStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO embeddings (chunk_id, vector, dimension, model)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			model = excluded.model
	`)
	if err != nil {
		return err
	}
	defer func() { _ = embStmt.Close() }()

	for i, chunk := range chunks {
		if _, err := chunkStmt.ExecContext(ctx,
			chunk.ChunkID, chunk.DocumentID, chunk.PageNum,
			chunk.Position, chunk.Content, chunk.CharCount); err != nil {
			return fmt.Errorf("failed to upsert chunk %s: %w", chunk.ChunkID, err)
		}
		// In degraded mode the vector write is skipped; chunk metadata
		// still persists so a later re-index can fill vectors in.
		if !s.vectorsEnabled {
			continue
		}
		if _, err := embStmt.ExecContext(ctx,
			chunk.ChunkID, serializeVector(vectors[i]), len(vectors[i]), model); err != nil {
			return fmt.Errorf("failed to upsert embedding %s: %w", chunk.ChunkID, err)
		}
	}

	return tx.Commit()
}

// GetChunk returns the chunk with the given id.
func (s *SQLiteStorage) GetChunk(ctx context.Context, chunkID string) (*types.Chunk, error) {
	query := `
		SELECT chunk_id, document_id, page_num, position, content, char_count
		FROM chunks WHERE chunk_id = ?
	`
	var chunk types.Chunk
	err := s.db.QueryRowContext(ctx, query, chunkID).Scan(
		&chunk.ChunkID, &chunk.DocumentID, &chunk.PageNum,
		&chunk.Position, &chunk.Content, &chunk.CharCount)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &chunk, nil
}

// DeleteChunksByDocument removes a document's chunks and, via cascade,
// their embeddings. Returns the number of chunks removed.
func (s *SQLiteStorage) DeleteChunksByDocument(ctx context.Context, documentID int64) (int, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// CountChunks returns the number of stored chunks.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n)
	return n, err
}

// GetIndexStats gathers index-wide statistics.
func (s *SQLiteStorage) GetIndexStats(ctx context.Context) (*IndexStats, error) {
	stats := &IndexStats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(DISTINCT filepath) FROM documents", &stats.Files},
		{"SELECT COUNT(*) FROM documents", &stats.Documents},
		{"SELECT COUNT(*) FROM chunks", &stats.Chunks},
		{"SELECT COUNT(*) FROM embeddings", &stats.Embeddings},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.sql).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("failed to gather index stats: %w", err)
		}
	}

	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err == nil {
			stats.DBSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
		}
	}

	return stats, nil
}
