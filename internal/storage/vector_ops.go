package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// SearchSimilar returns the limit nearest chunks to the query vector by
// cosine distance, closest first. With the sqlite-vec extension the
// distance is computed inside SQLite; otherwise every embedding is scanned
// and scored in Go.
func (s *SQLiteStorage) SearchSimilar(ctx context.Context, vector []float32, limit int) ([]VectorHit, error) {
	if !s.vectorsEnabled {
		// Fail soft: lexical-only operation stays fully functional.
		return []VectorHit{}, nil
	}
	if limit <= 0 {
		return []VectorHit{}, nil
	}

	if VectorExtensionAvailable {
		return s.searchSimilarOptimized(ctx, vector, limit)
	}
	return s.searchSimilarFallback(ctx, vector, limit)
}

// probeVectorExtension verifies the sqlite-vec extension actually loaded.
func probeVectorExtension(db *sql.DB) error {
	var version string
	if err := db.QueryRow("SELECT vec_version()").Scan(&version); err != nil {
		return fmt.Errorf("vec_version probe failed: %w", err)
	}
	return nil
}

// searchSimilarOptimized computes cosine distance at the database layer
// via sqlite-vec and lets SQL do the ordering and limiting.
func (s *SQLiteStorage) searchSimilarOptimized(ctx context.Context, vector []float32, limit int) ([]VectorHit, error) {
	query := `
		SELECT
			c.chunk_id, c.document_id, c.page_num, c.position, c.content,
			vec_distance_cosine(e.vector, ?) AS distance
		FROM chunks c
		INNER JOIN embeddings e ON c.chunk_id = e.chunk_id
		ORDER BY distance
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, serializeVector(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]VectorHit, 0, limit)
	for rows.Next() {
		var hit VectorHit
		if err := rows.Scan(&hit.ChunkID, &hit.DocumentID, &hit.PageNum,
			&hit.Position, &hit.Content, &hit.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, hit)
	}
	return results, rows.Err()
}

// searchSimilarFallback scans every embedding and ranks by cosine distance
// computed in Go. Embeddings with a different dimension than the query are
// skipped rather than erroring, so a model change degrades gracefully
// until re-indexing.
func (s *SQLiteStorage) searchSimilarFallback(ctx context.Context, vector []float32, limit int) ([]VectorHit, error) {
	query := `
		SELECT c.chunk_id, c.document_id, c.page_num, c.position, c.content, e.vector
		FROM chunks c
		INNER JOIN embeddings e ON c.chunk_id = e.chunk_id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var candidates []VectorHit
	for rows.Next() {
		var hit VectorHit
		var blob []byte
		if err := rows.Scan(&hit.ChunkID, &hit.DocumentID, &hit.PageNum,
			&hit.Position, &hit.Content, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}

		stored := deserializeVector(blob)
		if len(stored) != len(vector) {
			continue // Dimension mismatch, skip
		}

		hit.Distance = 1.0 - cosineSimilarity(vector, stored)
		candidates = append(candidates, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Distance < candidates[j].Distance
	})

	if limit > len(candidates) {
		limit = len(candidates)
	}
	return candidates[:limit], nil
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// SerializeVector is an exported helper for testing
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is an exported helper for testing
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineSimilarity is an exported helper for testing
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}
