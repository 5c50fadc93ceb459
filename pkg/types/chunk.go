package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// chunkIDContentPrefix is how many leading content bytes participate in the
// chunk id digest. Enough to distinguish re-flowed text at the same position
// without hashing the whole chunk.
const chunkIDContentPrefix = 100

// Chunk is a bounded sub-page text unit prepared for embedding.
// Its id is a deterministic digest of (document, page, position, content
// prefix), so indexing identical input twice yields identical ids and vector
// writes become idempotent upserts.
type Chunk struct {
	ChunkID    string
	DocumentID int64
	PageNum    int
	Position   int // 0-based position within the page, strictly increasing
	Content    string
	CharCount  int
}

// NewChunkID computes the deterministic identifier for a chunk.
// The digest is SHA-256 truncated to 16 hex characters (64 bits), which is
// collision-safe at any realistic corpus size.
func NewChunkID(documentID int64, pageNum, position int, content string) string {
	prefix := content
	if len(prefix) > chunkIDContentPrefix {
		prefix = prefix[:chunkIDContentPrefix]
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%d:%d:%s", documentID, pageNum, position, prefix)))
	return hex.EncodeToString(sum[:])[:16]
}

// Validate checks chunk field invariants before storage.
func (c *Chunk) Validate() error {
	if c.ChunkID == "" {
		return ErrInvalidChunkID
	}
	if c.Content == "" {
		return ErrEmptyContent
	}
	if c.Position < 0 {
		return ErrInvalidPosition
	}
	return nil
}
