// Package searcher implements the three retrieval modes: lexical BM25
// search, semantic nearest-neighbor search, and their hybrid fusion.
//
// # Fusion
//
// Hybrid mode over-fetches candidates from both sides concurrently, then
// merges them with weighted reciprocal rank fusion keyed on the page
// identity (filepath, page number). Each appearance contributes
// weight * 1/(k + rank); a page found by both retrievers accumulates both
// contributions, which is what pushes agreed-upon results to the top.
// Ties break by insertion order (lexical list first), making result order
// fully deterministic.
//
// # Degradation
//
// A hybrid search survives the failure of either side: the error is
// recorded in the search stats and the surviving side's ranking is
// returned on its own. Both sides failing produces an empty result set
// with both errors recorded, not a failed search.
package searcher
