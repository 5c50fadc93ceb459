package embedder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"
)

const (
	// maxSplitDepth bounds the recursive halving of oversized inputs:
	// depth 4 allows up to a 16-way split of the original text.
	maxSplitDepth = 4

	// truncateFallbackChars is the size an input is cut to when even the
	// deepest split still overflows the context window.
	truncateFallbackChars = 500

	// midSplitRange caps how far from the midpoint the boundary search
	// may wander.
	midSplitRange = 200
)

// embedWithSplit embeds one text, recursively halving it when the model
// rejects it as too long. The halves are embedded independently (each with
// the full retry contract) and combined by element-wise averaging. Past the
// depth ceiling the text is truncated and embedded directly as a last
// resort.
func (s *Service) embedWithSplit(ctx context.Context, text string, depth int) ([]float32, error) {
	if depth > maxSplitDepth {
		slog.Warn("max split depth exceeded, truncating", "chars", len(text))
		text = truncateText(text, truncateFallbackChars)
	}

	vec, err := s.embedSingle(ctx, text)
	if err == nil {
		return vec, nil
	}
	if !errors.Is(err, ErrContextWindow) {
		return nil, err
	}

	if depth >= maxSplitDepth {
		slog.Warn("truncating text after max splits", "chars", truncateFallbackChars)
		return s.embedSingle(ctx, truncateText(text, truncateFallbackChars))
	}

	first, second := splitInHalf(text)
	slog.Debug("splitting oversized text",
		"depth", depth, "chars", len(text), "first", len(first), "second", len(second))

	v1, err := s.embedWithSplit(ctx, first, depth+1)
	if err != nil {
		return nil, err
	}
	v2, err := s.embedWithSplit(ctx, second, depth+1)
	if err != nil {
		return nil, err
	}

	return averageVectors(v1, v2)
}

// embedSingle performs one retried single-text call. Context-window errors
// pass through to the caller for split handling.
func (s *Service) embedSingle(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	_, err := s.policy.Do(ctx, "embed", func() error {
		v, callErr := s.provider.Embed(ctx, []string{text})
		if callErr != nil {
			return callErr
		}
		if len(v) != 1 {
			return fmt.Errorf("expected 1 embedding, got %d", len(v))
		}
		vec = v[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}

// splitInHalf divides text at the cleanest boundary near its midpoint.
func splitInHalf(text string) (string, string) {
	point := findMidSplitPoint(text, len(text)/2)
	return strings.TrimSpace(text[:point]), strings.TrimSpace(text[point:])
}

// findMidSplitPoint searches a window centered on mid for, in priority
// order: a paragraph break, a sentence end, a newline, a space. With no
// boundary found it falls back to the midpoint itself, adjusted off any
// multibyte rune.
func findMidSplitPoint(text string, mid int) int {
	searchRange := mid / 2
	if searchRange > midSplitRange {
		searchRange = midSplitRange
	}
	searchStart := mid - searchRange
	if searchStart < 0 {
		searchStart = 0
	}
	searchEnd := mid + searchRange
	if searchEnd > len(text) {
		searchEnd = len(text)
	}
	region := text[searchStart:searchEnd]

	if pos := strings.LastIndex(region, "\n\n"); pos != -1 {
		return searchStart + pos + 2
	}

	for _, sep := range []string{". ", "! ", "? ", ".\n", "!\n", "?\n"} {
		if pos := strings.LastIndex(region, sep); pos != -1 {
			return searchStart + pos + len(sep)
		}
	}

	if pos := strings.LastIndex(region, "\n"); pos != -1 {
		return searchStart + pos + 1
	}
	if pos := strings.LastIndex(region, " "); pos != -1 {
		return searchStart + pos + 1
	}

	for mid > 0 && mid < len(text) && !utf8.RuneStart(text[mid]) {
		mid--
	}
	return mid
}

// averageVectors returns the element-wise arithmetic mean of two vectors.
func averageVectors(a, b []float32) ([]float32, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("vector dimension mismatch: %d vs %d", len(a), len(b))
	}
	out := make([]float32, len(a))
	for i := range a {
		out[i] = (a[i] + b[i]) / 2
	}
	return out, nil
}

// truncateText cuts text to at most n bytes without splitting a rune.
func truncateText(text string, n int) string {
	if len(text) <= n {
		return text
	}
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	return text[:n]
}
