package queryparser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// specialChars are the characters with special meaning in the FTS5 query
// grammar. Basic parsing strips them all; advanced parsing strips them from
// bare terms while preserving operator syntax.
const specialChars = `"'*-+():^`

var (
	phrasePattern   = regexp.MustCompile(`"[^"]*"`)
	operatorPattern = regexp.MustCompile(`(?i)\b(OR|AND|NOT)\b`)
)

// Parser sanitizes user input into valid FTS5 MATCH expressions.
// It never fails: malformed input degrades to the cleanest sanitized form
// possible, which may be the empty string.
type Parser struct{}

// New creates a Parser.
func New() *Parser {
	return &Parser{}
}

// ParseBasic removes all FTS5 special characters and rejoins the remaining
// terms with single spaces for implicit AND matching.
func (p *Parser) ParseBasic(query string) string {
	if strings.TrimSpace(query) == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(query))
	for _, r := range query {
		if strings.ContainsRune(specialChars, r) {
			b.WriteRune(' ')
		} else {
			b.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// ParseAdvanced sanitizes a query while preserving FTS5 operator syntax:
// OR/AND/NOT (case-insensitive, upper-cased on output), quoted phrases kept
// verbatim, and prefix wildcards (term*). Everything else is sanitized as in
// basic mode.
func (p *Parser) ParseAdvanced(query string) string {
	if strings.TrimSpace(query) == "" {
		return ""
	}

	// Pull quoted phrases out first so their internal characters survive
	// sanitization, then splice them back in by placeholder.
	var phrases []string
	protected := phrasePattern.ReplaceAllStringFunc(query, func(match string) string {
		placeholder := fmt.Sprintf("__PHRASE_%d__", len(phrases))
		phrases = append(phrases, match)
		return placeholder
	})

	tokens := strings.Fields(protected)
	out := make([]string, 0, len(tokens))

	for _, token := range tokens {
		upper := strings.ToUpper(token)

		switch {
		case upper == "OR" || upper == "AND" || upper == "NOT":
			out = append(out, upper)

		case strings.HasPrefix(token, "__PHRASE_") && strings.HasSuffix(token, "__"):
			idx, err := strconv.Atoi(token[len("__PHRASE_") : len(token)-2])
			if err == nil && idx >= 0 && idx < len(phrases) {
				out = append(out, phrases[idx])
			}

		case strings.HasSuffix(token, "*"):
			if prefix := cleanTerm(strings.TrimSuffix(token, "*")); prefix != "" {
				out = append(out, prefix+"*")
			}

		default:
			if clean := cleanTerm(token); clean != "" {
				out = append(out, clean)
			}
		}
	}

	return strings.Join(out, " ")
}

// ExtractTerms returns the lower-cased, deduplicated individual terms of a
// query with operators, quotes, and wildcards stripped. Used for keyword
// highlighting regardless of search mode. Terms keep first-occurrence order.
func (p *Parser) ExtractTerms(query string) []string {
	cleaned := operatorPattern.ReplaceAllString(query, " ")
	cleaned = strings.ReplaceAll(cleaned, `"`, " ")
	cleaned = strings.ReplaceAll(cleaned, "*", "")

	seen := make(map[string]struct{})
	var terms []string
	for _, field := range strings.Fields(cleaned) {
		term := strings.ToLower(field)
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}

	return terms
}

// cleanTerm strips special characters from a single term.
func cleanTerm(term string) string {
	var b strings.Builder
	b.Grow(len(term))
	for _, r := range term {
		if !strings.ContainsRune(specialChars, r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
