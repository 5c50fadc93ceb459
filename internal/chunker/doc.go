// Package chunker divides page text into bounded, overlapping units sized
// for the embedding model.
//
// # Chunking Strategy
//
// A page at or under the size ceiling becomes one chunk. Longer pages are
// windowed: each window ends at the best boundary found in the trailing
// search region (paragraph break > sentence end > whitespace), and the next
// window starts overlapChars before the previous end so context carries
// across the seam. A progress guard ensures the window always advances even
// when the overlap would pin it in place.
//
// # Identity
//
// Chunk ids are deterministic digests of (documentID, pageNum, position,
// content prefix); see types.NewChunkID. Re-chunking identical input always
// reproduces the same ids, which makes re-indexing an idempotent upsert.
package chunker
