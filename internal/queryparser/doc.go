// Package queryparser sanitizes user queries for SQLite FTS5.
//
// Two dialects are supported. Basic mode strips every character with special
// meaning in the FTS5 grammar and rejoins the remaining terms for implicit
// AND matching. Advanced mode preserves boolean operators (OR, AND, NOT),
// quoted phrases, and prefix wildcards (term*) while sanitizing bare terms.
//
// Parsing never returns an error: unusable input degrades to an empty
// string, which callers treat as "no results" rather than a failure.
package queryparser
