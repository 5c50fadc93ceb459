// Package types defines the shared data model for the search engine:
// documents, chunks, queries, the three result variants, and execution
// statistics.
//
// A Document is one page of a source file; the pair (Filepath, PageNum)
// identifies it uniquely and is the key used when lexical and semantic
// result sets are merged. A Chunk is a bounded sub-page unit sized for the
// embedding model, identified by a deterministic digest so re-indexing the
// same content always produces the same id.
package types
