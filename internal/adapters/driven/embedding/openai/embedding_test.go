package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/quarry-cli/internal/core/domain"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *EmbeddingService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	s, err := NewEmbeddingService(Config{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		Dimensions: 3,
	})
	require.NoError(t, err)
	return s
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := NewEmbeddingService(Config{})
	assert.Error(t, err)
}

func TestEmbedSendsAuthAndModel(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultModel, req.Model)
		assert.Equal(t, 3, req.Dimensions)

		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"embedding": []float64{0.5, 0.5, 0}, "index": 0},
			},
		})
	})

	v, err := s.Embed(context.Background(), "hello", domain.EmbedDoc)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5, 0}, v)
}

func TestEmbedAPIErrorIsUnavailable(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "invalid key", "type": "auth"},
		})
	})

	_, err := s.Embed(context.Background(), "hello", domain.EmbedDoc)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.Contains(t, err.Error(), "invalid key")
}

func TestEmbedCachesByText(t *testing.T) {
	calls := 0
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"embedding": []float64{1, 0, 0}, "index": 0},
			},
		})
	})

	_, err := s.Embed(context.Background(), "hello", domain.EmbedDoc)
	require.NoError(t, err)
	// Category does not affect the cache key; one model serves both.
	_, err = s.Embed(context.Background(), "hello", domain.EmbedCode)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRerankScoreUsesCosine(t *testing.T) {
	vectors := map[string][]float64{
		"q": {1, 0, 0},
		"a": {0, 1, 0},
	}
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Input, 1)
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"embedding": vectors[req.Input[0]], "index": 0},
			},
		})
	})

	score, err := s.RerankScore(context.Background(), "q", "a")
	require.NoError(t, err)
	assert.InDelta(t, 0.0, score, 1e-6)
}
