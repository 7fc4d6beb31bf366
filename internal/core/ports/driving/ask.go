package driving

import (
	"context"

	"github.com/custodia-labs/quarry-cli/internal/core/domain"
)

// AskService runs the full question-answering pipeline: analyze the query,
// retrieve (with section expansion when the intent calls for it), rerank,
// synthesize an answer and attach citations.
type AskService interface {
	// Ask answers a natural-language question from the indexed corpus.
	// Degradations along the pipeline (rerank failure, synthesis failure)
	// produce a usable answer rather than an error.
	Ask(ctx context.Context, query string, topK int) (*domain.Answer, error)

	// Analyze classifies the query without retrieving anything.
	Analyze(query string) (*domain.QueryAnalysis, error)
}
