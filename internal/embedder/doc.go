// Package embedder turns text into dense vectors through an
// OpenAI-compatible embeddings endpoint.
//
// # Resilience
//
// The service assumes the model server is flaky: it may restart, swap
// models, or sit behind a cold GPU for minutes. Server-side (5xx) and
// transport failures are therefore retried without an attempt limit,
// with a linearly growing delay capped at a ceiling, until the call
// succeeds or the caller's context is cancelled. Client errors (4xx)
// surface immediately.
//
// # Oversized inputs
//
// A context-window rejection is handled by recursively halving the text
// at the cleanest nearby boundary, embedding the halves independently,
// and averaging the resulting vectors element-wise. The recursion is
// depth-bounded; past the bound the text is truncated outright.
//
// # Prefixes
//
// E5-family models require asymmetric prefixes: stored passages are
// embedded as "passage: ..." and search queries as "query: ...". The
// service applies these automatically; callers pass raw text.
package embedder
