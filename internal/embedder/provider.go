package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultBatchSize is how many texts the service sends per API call
	// when no batch size is configured.
	DefaultBatchSize = 32

	// defaultHTTPTimeout bounds one round trip; slow model servers under
	// load can take most of it on a full batch.
	defaultHTTPTimeout = 120 * time.Second

	// maxErrorBody caps how much of an error response is read back.
	maxErrorBody = 4096
)

// contextWindowMarkers are substrings that identify a token-limit rejection
// in a 400 response body. Servers word this differently.
var contextWindowMarkers = []string{
	"ContextWindowExceeded",
	"context window",
	"maximum context length",
}

// OpenAIProvider calls an OpenAI-compatible embeddings endpoint
// (POST {endpoint}/embeddings with {"model": ..., "input": [...]}).
// It works against llama.cpp, vLLM, text-embeddings-inference, and the
// OpenAI API itself.
type OpenAIProvider struct {
	endpoint   string
	apiKey     string
	model      string
	dimension  int
	httpClient *http.Client
}

// NewOpenAIProvider creates a provider for the given base endpoint, e.g.
// "http://localhost:8080/v1". The API key may be empty for local servers.
func NewOpenAIProvider(endpoint, apiKey, model string, dimension int) (*OpenAIProvider, error) {
	if endpoint == "" {
		return nil, ErrNoEndpoint
	}
	if model == "" {
		return nil, fmt.Errorf("embedding model not configured")
	}
	return &OpenAIProvider{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		model:      model,
		dimension:  dimension,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}, nil
}

// Model returns the configured model identifier.
func (p *OpenAIProvider) Model() string { return p.model }

// Dimension returns the configured vector dimension.
func (p *OpenAIProvider) Dimension() int { return p.dimension }

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed performs one API call. Transport failures come back as plain
// errors, non-2xx responses as *APIError, and token-limit rejections as
// ErrContextWindow.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embeddingRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if resp.StatusCode == http.StatusBadRequest && isContextWindowBody(string(msg)) {
			return nil, fmt.Errorf("%w: %s", ErrContextWindow, strings.TrimSpace(string(msg)))
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(parsed.Data))
	}

	// The API is allowed to return entries out of order; the index field
	// is authoritative.
	out := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func isContextWindowBody(body string) bool {
	lower := strings.ToLower(body)
	for _, marker := range contextWindowMarkers {
		if strings.Contains(lower, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}
