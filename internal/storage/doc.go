// Package storage persists indexed pages, chunks, and embedding vectors in
// a single SQLite database and serves both retrieval paths over them.
//
// # Schema
//
// The documents table holds one row per (filepath, page_num) pair with an
// external-content FTS5 index over filename and content, kept in sync by
// triggers. Chunks are keyed by a content-derived text id and cascade from
// their document; embeddings cascade from their chunk. Schema changes ship
// as semver-versioned migrations applied on open.
//
// # Search paths
//
// Lexical search is an FTS5 MATCH ranked by bm25() with per-column weights
// (filename boosted over content). Semantic search is cosine nearest
// neighbor: with the sqlite_vec build tag the distance runs inside SQLite
// through the sqlite-vec extension; the pure Go build scans embeddings and
// scores them in Go. When the extension fails to load at runtime the store
// drops to lexical-only mode instead of failing open.
package storage
