package types

// Document represents a single page of an indexed source file.
// One row exists per (Filepath, PageNum) pair; re-indexing a file deletes
// and reinserts its pages rather than mutating them in place.
type Document struct {
	ID           int64
	Filepath     string // Absolute path to the source file
	Filename     string
	PageNum      int    // 1-based page number
	Content      string // Full extracted page text
	RelativePath string // Path relative to the document root
	ContentHash  string // Hex digest of the page content
}

// Page is one (pageNumber, text) pair produced by a text-extraction
// collaborator. Extraction itself happens outside this module.
type Page struct {
	Num  int
	Text string
}
