package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/custodia-labs/quarry-cli/internal/core/domain"
	"github.com/custodia-labs/quarry-cli/internal/core/ports/driven"
	"github.com/custodia-labs/quarry-cli/internal/logger"
)

// Reranker re-scores search results against the query using the embedding
// service's rerank model. Scoring failures never fail a search: the results
// fall back to their vector-score order, truncated to topK.
type Reranker struct {
	embedder driven.EmbeddingService
}

// NewReranker creates a reranker backed by the embedding service.
func NewReranker(embedder driven.EmbeddingService) *Reranker {
	return &Reranker{embedder: embedder}
}

// Rerank re-orders results by relevance to the query and truncates to topK.
// When there are topK or fewer results already, the input is returned as is.
func (r *Reranker) Rerank(ctx context.Context, query string, results []domain.SearchResult, topK int) ([]domain.SearchResult, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("rerank: %w", domain.ErrInvalidInput)
	}
	if len(results) <= topK {
		logger.Debug("rerank skipped: %d results <= top_k %d", len(results), topK)
		return results, nil
	}

	scored := make([]domain.SearchResult, len(results))
	copy(scored, results)

	for i := range scored {
		score, err := r.embedder.RerankScore(ctx, query, scored[i].Content)
		if err != nil {
			logger.Warn("rerank scoring failed, falling back to vector scores: %v", err)
			return fallbackByVectorScore(results, topK), nil
		}
		scored[i].Score = score
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	logger.Debug("rerank complete: %d results returned", topK)
	return scored[:topK], nil
}

// BatchRerank reranks several result sets against the same query.
func (r *Reranker) BatchRerank(ctx context.Context, query string, resultSets [][]domain.SearchResult, topK int) ([][]domain.SearchResult, error) {
	if len(resultSets) == 0 {
		return nil, fmt.Errorf("batch rerank: %w", domain.ErrInvalidInput)
	}
	out := make([][]domain.SearchResult, 0, len(resultSets))
	for _, results := range resultSets {
		if len(results) == 0 {
			out = append(out, nil)
			continue
		}
		reranked, err := r.Rerank(ctx, query, results, topK)
		if err != nil {
			return nil, err
		}
		out = append(out, reranked)
	}
	return out, nil
}

// ClearCache drops the embedding service's model handles.
func (r *Reranker) ClearCache() {
	r.embedder.ClearCache()
	logger.Info("reranker model cache cleared")
}

// fallbackByVectorScore is the deterministic degradation path: original
// vector scores, descending, truncated.
func fallbackByVectorScore(results []domain.SearchResult, topK int) []domain.SearchResult {
	out := make([]domain.SearchResult, len(results))
	copy(out, results)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out
}
