package types

import (
	"errors"
	"fmt"
)

// Domain errors for type validation
var (
	ErrInvalidChunkID  = errors.New("invalid chunk ID")
	ErrEmptyContent    = errors.New("content cannot be empty")
	ErrInvalidPosition = errors.New("chunk position must be >= 0")
)

// SearchError wraps a query execution failure together with the offending
// query text.
type SearchError struct {
	Query string
	Err   error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("search failed for query %q: %v", e.Query, e.Err)
}

func (e *SearchError) Unwrap() error {
	return e.Err
}

// NewSearchError wraps err with the query that triggered it.
func NewSearchError(query string, err error) *SearchError {
	return &SearchError{Query: query, Err: err}
}
