// Package indexer drives the write path of the index: page text is
// chunked, the chunks embedded as passages, and the results stored under
// the page's document row in one replace-then-upsert pass. Chunk ids are
// content-derived, so re-indexing unchanged input writes the same rows it
// wrote before. File-level runs are serialized by a non-blocking lock;
// searches are never blocked by indexing.
package indexer
