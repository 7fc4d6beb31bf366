package services

import (
	"context"
	"strings"

	"github.com/custodia-labs/quarry-cli/internal/core/domain"
	"github.com/custodia-labs/quarry-cli/internal/core/ports/driving"
	"github.com/custodia-labs/quarry-cli/internal/logger"
)

const maxCitations = 5

// AskConfig tunes the question-answering pipeline.
type AskConfig struct {
	// SearchTopK is the initial retrieval width.
	SearchTopK int

	// RerankTopK is the result count after reranking; it also acts as
	// the threshold below which reranking is skipped.
	RerankTopK int

	// MaxResults caps the chunks fed to synthesis fallback.
	MaxResults int
}

// DefaultAskConfig returns the standard pipeline tuning.
func DefaultAskConfig() AskConfig {
	return AskConfig{SearchTopK: 20, RerankTopK: 10, MaxResults: 10}
}

// AskPipeline wires the analyzer, hybrid store, reranker and synthesizer
// into the question-answering flow. Each stage degrades rather than fails:
// a rerank error keeps the unreranked order, a synthesis error falls back
// to concatenation, and the worst-case answer is "nothing found", never an
// unhandled error.
type AskPipeline struct {
	store       driving.StoreService
	analyzer    *QueryAnalyzer
	reranker    *Reranker
	synthesizer *AnswerSynthesizer
	cfg         AskConfig
}

var _ driving.AskService = (*AskPipeline)(nil)

// NewAskPipeline assembles the pipeline.
func NewAskPipeline(store driving.StoreService, analyzer *QueryAnalyzer, reranker *Reranker, synthesizer *AnswerSynthesizer, cfg AskConfig) *AskPipeline {
	if cfg.SearchTopK <= 0 {
		cfg.SearchTopK = 20
	}
	if cfg.RerankTopK <= 0 {
		cfg.RerankTopK = 10
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10
	}
	return &AskPipeline{
		store:       store,
		analyzer:    analyzer,
		reranker:    reranker,
		synthesizer: synthesizer,
		cfg:         cfg,
	}
}

// Analyze classifies the query without retrieving anything.
func (p *AskPipeline) Analyze(query string) (*domain.QueryAnalysis, error) {
	return p.analyzer.Analyze(query)
}

// Ask answers a question from the indexed corpus.
func (p *AskPipeline) Ask(ctx context.Context, query string, topK int) (*domain.Answer, error) {
	analysis, err := p.analyzer.Analyze(query)
	if err != nil {
		return nil, err
	}
	logger.Info("query intent: %s (confidence: %.2f)", analysis.Intent, analysis.Confidence)

	if topK <= 0 {
		topK = p.cfg.SearchTopK
	}
	opts := domain.SearchOptions{
		TopK:     topK,
		Expand:   analysis.NeedsExpansion,
		Category: categoryForAnalysis(analysis),
	}
	results, err := p.store.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	answer := &domain.Answer{Intent: analysis.Intent, Confidence: analysis.Confidence}
	if len(results) == 0 {
		answer.Text = "I couldn't find relevant information to answer: '" + query + "'. Please try rephrasing your question."
		return answer, nil
	}

	if analysis.NeedsReranking && len(results) > p.cfg.RerankTopK {
		reranked, err := p.reranker.Rerank(ctx, query, results, p.cfg.RerankTopK)
		if err != nil {
			logger.Warn("reranking failed, using initial results: %v", err)
		} else {
			results = reranked
		}
	}

	text, err := p.synthesizer.Synthesize(results, analysis.Intent)
	if err != nil {
		logger.Warn("synthesis failed, using concatenation: %v", err)
		text = concatChunks(results, p.cfg.MaxResults)
	}

	answer.Text = text
	answer.Sources = results
	answer.Citations = citations(results, maxCitations)
	return answer, nil
}

// citations collects up to limit deduplicated source references, one per
// distinct file, in result order.
func citations(results []domain.SearchResult, limit int) []domain.Citation {
	var out []domain.Citation
	seen := make(map[string]bool)
	for _, r := range results {
		if len(out) == limit {
			break
		}
		path := domain.NormalizePath(r.FilePath)
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true
		out = append(out, domain.Citation{FilePath: path, Line: r.LineNumber})
	}
	return out
}

func concatChunks(results []domain.SearchResult, limit int) string {
	if len(results) > limit {
		results = results[:limit]
	}
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, r.Content)
	}
	return strings.Join(parts, "\n\n")
}

// categoryForAnalysis picks the embedding route from the analyzer's
// content-type hints.
func categoryForAnalysis(a *domain.QueryAnalysis) domain.EmbedCategory {
	if len(a.ContentTypes) > 0 && a.ContentTypes[0] == "code" {
		return domain.EmbedCode
	}
	return domain.EmbedDoc
}
