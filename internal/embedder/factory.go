package embedder

import (
	"github.com/tmcfarland/pagesearch/internal/config"
)

// NewFromConfig builds the embedding service from configuration.
func NewFromConfig(cfg config.Config) (*Service, error) {
	provider, err := NewOpenAIProvider(
		cfg.EmbeddingEndpoint,
		cfg.EmbeddingAPIKey,
		cfg.EmbeddingModel,
		cfg.EmbeddingDimensions,
	)
	if err != nil {
		return nil, err
	}

	return NewService(provider,
		WithBatchSize(cfg.EmbeddingBatchSize),
		WithCache(NewCache(DefaultCacheSize)),
	), nil
}
