package embedder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Common errors
var (
	ErrEmptyText  = errors.New("text cannot be empty")
	ErrNoEndpoint = errors.New("embedding endpoint not configured")

	// ErrContextWindow reports that an input exceeded the model's token
	// limit. The service reacts by splitting the input, so this error only
	// reaches callers when splitting and truncation both fail.
	ErrContextWindow = errors.New("context window exceeded")
)

// APIError is a non-2xx response from the embedding endpoint.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("embedding api error %d: %s", e.StatusCode, e.Message)
}

// IsTransient reports whether err is worth retrying: server-side failures
// (5xx) and transport errors are transient; context-window overflows and
// other client errors are not.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrContextWindow) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	// Anything else from the HTTP layer is a transport failure.
	return true
}

// E5-family models expect a role prefix on every input.
const (
	PassagePrefix = "passage: "
	QueryPrefix   = "query: "
)

// Provider performs one raw embedding API call with no retry or splitting.
type Provider interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Model returns the model identifier sent with each request.
	Model() string

	// Dimension returns the vector dimension this provider produces.
	Dimension() int
}

// Service wraps a Provider with batching, prefixing, unbounded transient
// retry, and recursive splitting of oversized inputs.
type Service struct {
	provider  Provider
	policy    RetryPolicy
	batchSize int
	cache     *Cache
}

// Option configures a Service.
type Option func(*Service)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(s *Service) { s.policy = policy }
}

// WithBatchSize sets how many texts go into one API call.
func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithCache attaches an embedding cache consulted before query API calls.
func WithCache(cache *Cache) Option {
	return func(s *Service) { s.cache = cache }
}

// NewService creates an embedding service on top of provider.
func NewService(provider Provider, opts ...Option) *Service {
	s := &Service{
		provider:  provider,
		policy:    DefaultRetryPolicy(),
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dimension returns the vector dimension of the underlying provider.
func (s *Service) Dimension() int {
	return s.provider.Dimension()
}

// Model returns the model identifier of the underlying provider.
func (s *Service) Model() string {
	return s.provider.Model()
}

// EmbedPassages embeds document passages in configured batch sizes.
// Each text is prefixed with the passage marker; the result order matches
// the input order.
func (s *Service) EmbedPassages(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	prefixed := make([]string, len(texts))
	for i, t := range texts {
		prefixed[i] = PassagePrefix + t
	}

	out := make([][]float32, 0, len(texts))
	batches := (len(prefixed) + s.batchSize - 1) / s.batchSize

	for start := 0; start < len(prefixed); start += s.batchSize {
		end := start + s.batchSize
		if end > len(prefixed) {
			end = len(prefixed)
		}

		vecs, err := s.embedBatch(ctx, prefixed[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)

		if batches > 1 {
			slog.Debug("embedded batch", "batch", start/s.batchSize+1, "batches", batches)
		}
	}

	return out, nil
}

// EmbedQuery embeds a single search query with the query marker.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	prefixed := QueryPrefix + text
	key := hashText(prefixed)
	if s.cache != nil {
		if vec, ok := s.cache.Get(key); ok {
			return vec, nil
		}
	}

	vecs, err := s.embedBatch(ctx, []string{prefixed})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(vecs))
	}

	if s.cache != nil {
		s.cache.Set(key, vecs[0])
	}
	return vecs[0], nil
}

// embedBatch performs one retried batch call. A context-window overflow
// means at least one member of the batch is oversized; the batch is then
// re-embedded item by item so only the offending texts get split.
func (s *Service) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vecs [][]float32
	_, err := s.policy.Do(ctx, "embed_batch", func() error {
		v, callErr := s.provider.Embed(ctx, texts)
		if callErr != nil {
			return callErr
		}
		if len(v) != len(texts) {
			return fmt.Errorf("expected %d embeddings, got %d", len(texts), len(v))
		}
		vecs = v
		return nil
	})

	if errors.Is(err, ErrContextWindow) {
		slog.Warn("context window exceeded, splitting batch items", "texts", len(texts))
		return s.embedEach(ctx, texts)
	}
	if err != nil {
		return nil, err
	}
	return vecs, nil
}

// embedEach embeds texts one at a time, splitting any that overflow the
// model's context window.
func (s *Service) embedEach(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := s.embedWithSplit(ctx, text, 0)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}
