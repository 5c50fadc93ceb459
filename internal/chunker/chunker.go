package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tmcfarland/pagesearch/pkg/types"
)

const (
	// DefaultMaxChars is the default chunk size ceiling in characters,
	// sized so a chunk plus its embedding prefix stays inside the model's
	// token limit for typical prose.
	DefaultMaxChars = 1800

	// DefaultOverlapChars is the default overlap between adjacent chunks,
	// preserving context continuity across chunk boundaries.
	DefaultOverlapChars = 200

	// splitSearchWindow is how far back from a chunk's hard limit the
	// split-point search looks for a clean boundary.
	splitSearchWindow = 300
)

var (
	paragraphPattern = regexp.MustCompile(`\n\s*\n`)
	sentencePattern  = regexp.MustCompile(`[.!?]\s+`)
	spacePattern     = regexp.MustCompile(`\s+`)
)

// Chunker splits page text into embeddable units with overlap.
// Split points prefer paragraph breaks, then sentence ends, then any
// whitespace, falling back to a hard cut when the text has none.
type Chunker struct {
	maxChars     int
	overlapChars int
}

// New creates a Chunker. Non-positive arguments fall back to defaults, and
// an overlap at or above the chunk size is clamped to a quarter of it.
func New(maxChars, overlapChars int) *Chunker {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if overlapChars < 0 {
		overlapChars = DefaultOverlapChars
	}
	if overlapChars >= maxChars {
		overlapChars = maxChars / 4
	}
	return &Chunker{maxChars: maxChars, overlapChars: overlapChars}
}

// ChunkPage splits one page of text into chunks. Text at or under the size
// ceiling yields a single chunk at position 0. Longer text is windowed with
// overlap; positions increase strictly from 0 and no chunk is empty.
func (c *Chunker) ChunkPage(text string, documentID int64, pageNum int) []types.Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if len(text) <= c.maxChars {
		return []types.Chunk{c.newChunk(documentID, pageNum, 0, text)}
	}

	var chunks []types.Chunk
	position := 0
	start := 0

	for start < len(text) {
		end := start + c.maxChars
		if end >= len(text) {
			end = len(text)
		} else {
			end = findSplitPoint(text, start, end)
		}

		if content := strings.TrimSpace(text[start:end]); content != "" {
			chunks = append(chunks, c.newChunk(documentID, pageNum, position, content))
			position++
		}

		// The final window consumed the rest of the text; stepping back
		// for overlap here would re-emit the tail.
		if end == len(text) {
			break
		}

		// Progress guard: overlap never moves the window backwards or
		// holds it in place. Advance to a rune boundary so the next chunk
		// never starts mid-character.
		next := end - c.overlapChars
		if next <= start {
			next = start + 1
		}
		for next < len(text) && !utf8.RuneStart(text[next]) {
			next++
		}
		start = next
	}

	return chunks
}

// ChunkDocument chunks every page of a document, skipping pages that are
// empty after trimming. Per-page chunk order is preserved.
func (c *Chunker) ChunkDocument(pages []types.Page, documentID int64) []types.Chunk {
	var all []types.Chunk
	for _, page := range pages {
		all = append(all, c.ChunkPage(page.Text, documentID, page.Num)...)
	}
	return all
}

func (c *Chunker) newChunk(documentID int64, pageNum, position int, content string) types.Chunk {
	return types.Chunk{
		ChunkID:    types.NewChunkID(documentID, pageNum, position, content),
		DocumentID: documentID,
		PageNum:    pageNum,
		Position:   position,
		Content:    content,
		CharCount:  len(content),
	}
}

// findSplitPoint returns the best position to end a chunk at or before end.
// It searches the trailing window for, in priority order, a paragraph break,
// a sentence terminator, or any whitespace; with none found it returns end,
// backed off to a rune boundary so multibyte characters are never cut.
func findSplitPoint(text string, start, end int) int {
	searchStart := end - splitSearchWindow
	if searchStart < start {
		searchStart = start
	}
	region := text[searchStart:end]

	if loc := lastMatch(paragraphPattern, region); loc != nil {
		return searchStart + loc[1]
	}
	if loc := lastMatch(sentencePattern, region); loc != nil {
		return searchStart + loc[1]
	}
	if loc := lastMatch(spacePattern, region); loc != nil {
		return searchStart + loc[0]
	}

	for end > start && !utf8.RuneStart(text[end]) {
		end--
	}
	return end
}

// lastMatch returns the index pair of the final match of re in s, or nil.
func lastMatch(re *regexp.Regexp, s string) []int {
	locs := re.FindAllStringIndex(s, -1)
	if len(locs) == 0 {
		return nil
	}
	return locs[len(locs)-1]
}
