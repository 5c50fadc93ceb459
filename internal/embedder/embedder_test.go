package embedder

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider returns deterministic vectors and can be told to fail.
type fakeProvider struct {
	mu        sync.Mutex
	calls     int
	transient int // transient failures to return before succeeding
	permanent error
	maxChars  int // inputs longer than this overflow the context window
	inputs    [][]string
}

func (f *fakeProvider) Model() string   { return "fake-model" }
func (f *fakeProvider) Dimension() int  { return 2 }
func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	recorded := make([]string, len(texts))
	copy(recorded, texts)
	f.inputs = append(f.inputs, recorded)

	if f.permanent != nil {
		return nil, f.permanent
	}
	if f.transient > 0 {
		f.transient--
		return nil, &APIError{StatusCode: 503, Message: "service unavailable"}
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if f.maxChars > 0 && len(t) > f.maxChars {
			return nil, fmt.Errorf("%w: input too long", ErrContextWindow)
		}
		// Vector encodes the input length so averaging is observable.
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func fastRetry() RetryPolicy {
	return RetryPolicy{BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"server error", &APIError{StatusCode: 500}, true},
		{"bad gateway", &APIError{StatusCode: 502}, true},
		{"bad request", &APIError{StatusCode: 400}, false},
		{"unauthorized", &APIError{StatusCode: 401}, false},
		{"context window", fmt.Errorf("%w: too long", ErrContextWindow), false},
		{"transport", fmt.Errorf("connection refused"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestRetryPolicyDelayGrowth(t *testing.T) {
	p := DefaultRetryPolicy()

	assert.Equal(t, 60*time.Second, p.delay(1))
	assert.Equal(t, 90*time.Second, p.delay(2))
	assert.Equal(t, 120*time.Second, p.delay(3))
	// Delay is capped at MaxDelay from the 9th retry on.
	assert.Equal(t, 5*time.Minute, p.delay(9))
	assert.Equal(t, 5*time.Minute, p.delay(100))
}

func TestRetryPolicyCountsRetries(t *testing.T) {
	// Two transient failures then success: the recorded count is the
	// number of retries, not the number of calls.
	provider := &fakeProvider{transient: 2}
	svc := NewService(provider, WithRetryPolicy(fastRetry()))

	vec, err := svc.EmbedQuery(context.Background(), "hello")
	require.NoError(t, err)
	require.NotNil(t, vec)
	assert.Equal(t, 3, provider.callCount())

	policy := fastRetry()
	attempts := 0
	retries, err := policy.Do(context.Background(), "test", func() error {
		attempts++
		if attempts < 3 {
			return &APIError{StatusCode: 503}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, retries)
}

func TestRetryPolicyPermanentErrorNoRetry(t *testing.T) {
	provider := &fakeProvider{permanent: &APIError{StatusCode: 401, Message: "bad key"}}
	svc := NewService(provider, WithRetryPolicy(fastRetry()))

	_, err := svc.EmbedQuery(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, 1, provider.callCount())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.StatusCode)
}

func TestRetryPolicyContextCancellation(t *testing.T) {
	policy := RetryPolicy{BaseDelay: time.Hour, MaxDelay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := policy.Do(ctx, "test", func() error {
			return &APIError{StatusCode: 503}
		})
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("retry loop did not stop on cancellation")
	}
}

func TestEmbedQueryAddsPrefix(t *testing.T) {
	provider := &fakeProvider{}
	svc := NewService(provider, WithRetryPolicy(fastRetry()))

	_, err := svc.EmbedQuery(context.Background(), "safety procedures")
	require.NoError(t, err)
	require.Len(t, provider.inputs, 1)
	assert.Equal(t, "query: safety procedures", provider.inputs[0][0])
}

func TestEmbedQueryRejectsEmpty(t *testing.T) {
	svc := NewService(&fakeProvider{}, WithRetryPolicy(fastRetry()))

	_, err := svc.EmbedQuery(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestEmbedQueryCaching(t *testing.T) {
	provider := &fakeProvider{}
	svc := NewService(provider, WithRetryPolicy(fastRetry()), WithCache(NewCache(10)))

	v1, err := svc.EmbedQuery(context.Background(), "cached question")
	require.NoError(t, err)
	v2, err := svc.EmbedQuery(context.Background(), "cached question")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, provider.callCount())

	// The cached copy must not alias the returned slice.
	v1[0] = -999
	v3, err := svc.EmbedQuery(context.Background(), "cached question")
	require.NoError(t, err)
	assert.NotEqual(t, float32(-999), v3[0])
}

func TestEmbedPassagesBatchingAndOrder(t *testing.T) {
	provider := &fakeProvider{}
	svc := NewService(provider, WithRetryPolicy(fastRetry()), WithBatchSize(2))

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vecs, err := svc.EmbedPassages(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, 5)

	// 5 texts at batch size 2 means 3 calls.
	assert.Equal(t, 3, provider.callCount())

	prefix := len(PassagePrefix)
	for i, text := range texts {
		assert.Equal(t, float32(prefix+len(text)), vecs[i][0], "vector %d out of order", i)
	}
	for _, batch := range provider.inputs {
		for _, input := range batch {
			assert.True(t, strings.HasPrefix(input, PassagePrefix))
		}
	}
}

func TestEmbedPassagesEmpty(t *testing.T) {
	svc := NewService(&fakeProvider{}, WithRetryPolicy(fastRetry()))

	vecs, err := svc.EmbedPassages(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestEmbedSplitsOversizedText(t *testing.T) {
	provider := &fakeProvider{maxChars: 120}
	svc := NewService(provider, WithRetryPolicy(fastRetry()))

	long := strings.Repeat("First sentence here. ", 10) // ~210 chars
	vecs, err := svc.EmbedPassages(context.Background(), []string{long})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	require.Len(t, vecs[0], 2)

	// Both halves embed to [len, 1]; the average keeps the second
	// component at exactly 1 and the first near half the total length.
	assert.Equal(t, float32(1), vecs[0][1])
	assert.Greater(t, vecs[0][0], float32(0))
	assert.Less(t, vecs[0][0], float32(len(long)))
}

func TestEmbedSplitTruncatesAtMaxDepth(t *testing.T) {
	// Even a 16-way split cannot get under 10 chars, forcing the
	// truncation fallback.
	provider := &fakeProvider{maxChars: 10}
	svc := NewService(provider, WithRetryPolicy(fastRetry()))

	long := strings.Repeat("x", 4000)
	_, err := svc.embedWithSplit(context.Background(), long, 0)
	// The truncated fallback is still over maxChars, so the final error
	// is a context-window overflow rather than a hang.
	require.ErrorIs(t, err, ErrContextWindow)
}

func TestSplitInHalfPrefersBoundaries(t *testing.T) {
	text := strings.Repeat("a", 100) + ". " + strings.Repeat("b", 100)
	first, second := splitInHalf(text)

	assert.True(t, strings.HasSuffix(first, "."))
	assert.False(t, strings.Contains(second, "a"))
	assert.Equal(t, strings.Repeat("b", 100), second)
}

func TestSplitInHalfParagraphWins(t *testing.T) {
	text := strings.Repeat("a", 90) + ". " + strings.Repeat("b", 5) + "\n\n" + strings.Repeat("c", 100)
	_, second := splitInHalf(text)

	assert.Equal(t, strings.Repeat("c", 100), second)
}

func TestAverageVectors(t *testing.T) {
	got, err := averageVectors([]float32{1, 2, 3}, []float32{3, 4, 5})
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 3, 4}, got)

	_, err = averageVectors([]float32{1}, []float32{1, 2})
	assert.Error(t, err)
}

func TestTruncateTextRuneSafe(t *testing.T) {
	// "héllo" has a two-byte rune at index 1; cutting at byte 2 would
	// split it.
	got := truncateText("héllo", 2)
	assert.Equal(t, "h", got)
	assert.Equal(t, "héllo", truncateText("héllo", 100))
}

func TestOpenAIProviderEmbed(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		// Out-of-order data entries must be reassembled by index.
		fmt.Fprint(w, `{"data":[{"embedding":[0.5,0.5],"index":1},{"embedding":[1,0],"index":0}]}`)
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider(srv.URL+"/v1", "secret", "test-model", 2)
	require.NoError(t, err)

	vecs, err := p.Embed(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{1, 0}, vecs[0])
	assert.Equal(t, []float32{0.5, 0.5}, vecs[1])
	assert.Equal(t, "Bearer secret", gotAuth)
}

func TestOpenAIProviderErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCtx   bool
		wantCode  int
	}{
		{"context window", 400, `{"error":{"code":"ContextWindowExceeded"}}`, true, 0},
		{"context window wording", 400, "this model's maximum context length is 512 tokens", true, 0},
		{"plain bad request", 400, "malformed input", false, 400},
		{"server error", 500, "internal", false, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			p, err := NewOpenAIProvider(srv.URL, "", "test-model", 2)
			require.NoError(t, err)

			_, err = p.Embed(context.Background(), []string{"text"})
			require.Error(t, err)
			if tt.wantCtx {
				assert.ErrorIs(t, err, ErrContextWindow)
			} else {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, tt.wantCode, apiErr.StatusCode)
			}
		})
	}
}

func TestNewOpenAIProviderValidation(t *testing.T) {
	_, err := NewOpenAIProvider("", "", "model", 2)
	assert.ErrorIs(t, err, ErrNoEndpoint)

	_, err = NewOpenAIProvider("http://localhost:8080/v1", "", "", 2)
	assert.Error(t, err)
}
