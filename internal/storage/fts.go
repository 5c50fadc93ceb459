package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmcfarland/pagesearch/pkg/types"
)

// Snippet markers surround matched terms in returned excerpts.
const (
	SnippetMarkStart = ">>>"
	SnippetMarkEnd   = "<<<"
	snippetEllipsis  = "..."
)

// SearchPages runs an FTS5 MATCH query over indexed pages and returns hits
// ranked by bm25(), best first. The match string must already be valid FTS5
// syntax; query parsing happens upstream. Scores keep FTS5's native sign
// (negative, more negative is better).
func (s *SQLiteStorage) SearchPages(ctx context.Context, match string, limit, offset int) ([]types.LexicalResult, error) {
	if strings.TrimSpace(match) == "" {
		return []types.LexicalResult{}, nil
	}
	if limit <= 0 {
		return []types.LexicalResult{}, nil
	}
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
		SELECT
			d.id, d.filepath, d.filename, d.page_num, d.relative_path,
			snippet(documents_fts, 1, ?, ?, ?, %d) AS snip,
			bm25(documents_fts, %f, %f) AS score
		FROM documents_fts
		JOIN documents d ON d.id = documents_fts.rowid
		WHERE documents_fts MATCH ?
		ORDER BY score
		LIMIT ? OFFSET ?
	`, s.snippetTokens, s.filenameWeight, s.contentWeight)

	rows, err := s.db.QueryContext(ctx, query,
		SnippetMarkStart, SnippetMarkEnd, snippetEllipsis, match, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to execute FTS search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]types.LexicalResult, 0, limit)
	for rows.Next() {
		var r types.LexicalResult
		var relativePath *string
		if err := rows.Scan(&r.DocumentID, &r.Filepath, &r.Filename,
			&r.PageNum, &relativePath, &r.Snippet, &r.Score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if relativePath != nil {
			r.RelativePath = *relativePath
		}
		results = append(results, r)
	}

	return results, rows.Err()
}

// CountMatches returns the total number of pages matching the FTS5 query,
// used for pagination totals.
func (s *SQLiteStorage) CountMatches(ctx context.Context, match string) (int, error) {
	if strings.TrimSpace(match) == "" {
		return 0, nil
	}

	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents_fts WHERE documents_fts MATCH ?", match).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count matches: %w", err)
	}
	return n, nil
}
