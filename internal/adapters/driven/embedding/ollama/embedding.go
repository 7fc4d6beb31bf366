// Package ollama provides an embedding service adapter using Ollama.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/custodia-labs/quarry-cli/internal/core/domain"
	"github.com/custodia-labs/quarry-cli/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultDocModel   = "nomic-embed-text"
	DefaultCodeModel  = "nomic-embed-text"
	DefaultTimeout    = 30 * time.Second
	DefaultDimensions = 768 // nomic-embed-text default
)

// Config holds configuration for the Ollama embedding service.
type Config struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// DocModel embeds documentation text (default: nomic-embed-text).
	DocModel string

	// CodeModel embeds code chunks. Defaults to DocModel.
	CodeModel string

	// RerankModel scores query/candidate pairs. Defaults to DocModel.
	RerankModel string

	// Timeout is the request timeout (default: 30s).
	Timeout time.Duration

	// Dimensions is the embedding vector size (model-dependent).
	Dimensions int
}

// EmbeddingService generates embeddings using Ollama. Embeddings are
// cached by model and input text until ClearCache is called.
type EmbeddingService struct {
	client      *http.Client
	baseURL     string
	docModel    string
	codeModel   string
	rerankModel string
	dimensions  int

	mu    sync.Mutex
	cache map[string][]float32
}

// embedRequest is the Ollama API request format.
type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// embedResponse is the Ollama API response format.
type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// NewEmbeddingService creates a new Ollama embedding service.
func NewEmbeddingService(cfg Config) *EmbeddingService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.DocModel == "" {
		cfg.DocModel = DefaultDocModel
	}
	if cfg.CodeModel == "" {
		cfg.CodeModel = cfg.DocModel
	}
	if cfg.RerankModel == "" {
		cfg.RerankModel = cfg.DocModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}

	return &EmbeddingService{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:     cfg.BaseURL,
		docModel:    cfg.DocModel,
		codeModel:   cfg.CodeModel,
		rerankModel: cfg.RerankModel,
		dimensions:  cfg.Dimensions,
		cache:       make(map[string][]float32),
	}
}

// Embed generates a vector embedding for the given text, routed to the
// doc or code model depending on the category.
func (s *EmbeddingService) Embed(ctx context.Context, text string, category domain.EmbedCategory) ([]float32, error) {
	model := s.docModel
	if category == domain.EmbedCode {
		model = s.codeModel
	}
	return s.embedWithModel(ctx, model, text)
}

// RerankScore scores how well a candidate answers a query using cosine
// similarity under the rerank model.
func (s *EmbeddingService) RerankScore(ctx context.Context, query, candidate string) (float64, error) {
	qv, err := s.embedWithModel(ctx, s.rerankModel, query)
	if err != nil {
		return 0, err
	}
	cv, err := s.embedWithModel(ctx, s.rerankModel, candidate)
	if err != nil {
		return 0, err
	}
	return cosineSimilarity(qv, cv), nil
}

func (s *EmbeddingService) embedWithModel(ctx context.Context, model, text string) ([]float32, error) {
	cacheKey := model + "\x00" + text
	s.mu.Lock()
	cached, ok := s.cache[cacheKey]
	s.mu.Unlock()
	if ok {
		return cached, nil
	}

	reqBody := embedRequest{
		Model:  model,
		Prompt: text,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		s.baseURL+"/api/embeddings",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: ollama status %d: failed to read response", domain.ErrEmbeddingUnavailable, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: ollama status %d: %s", domain.ErrEmbeddingUnavailable, resp.StatusCode, string(body))
	}

	var embedResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	// Convert float64 to float32
	embedding := make([]float32, len(embedResp.Embedding))
	for i, v := range embedResp.Embedding {
		embedding[i] = float32(v)
	}

	s.mu.Lock()
	s.cache[cacheKey] = embedding
	s.mu.Unlock()

	return embedding, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the primary embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.docModel
}

// ClearCache discards all cached embeddings.
func (s *EmbeddingService) ClearCache() {
	s.mu.Lock()
	s.cache = make(map[string][]float32)
	s.mu.Unlock()
}

// Ping validates the service is reachable by checking the /api/tags endpoint.
// This is a lightweight check that validates connectivity without running inference.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("ollama: failed to create ping request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("ollama: API returned status %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return fmt.Errorf("ollama: API returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
