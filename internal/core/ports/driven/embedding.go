package driven

import (
	"context"

	"github.com/custodia-labs/quarry-cli/internal/core/domain"
)

// EmbeddingService generates vector embeddings and relevance scores.
//
// Implementations hold their model handles lazily: the first call
// initialises the model once, concurrent callers share the handle, and
// ClearCache drops it so the next call re-initialises.
//
// Implementations may include:
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Ollama (nomic-embed-text, all-minilm)
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text, routed to
	// the model for the category.
	Embed(ctx context.Context, text string, category domain.EmbedCategory) ([]float32, error)

	// RerankScore scores how relevant a candidate text is to a query.
	// Higher is more relevant.
	RerankScore(ctx context.Context, query, candidate string) (float64, error)

	// Dimensions returns the embedding vector size (e.g., 384, 768, 1536).
	// This must match the point-store collection configuration.
	Dimensions() int

	// ModelName returns the name of the documentation embedding model.
	ModelName() string

	// ClearCache drops lazily-initialised model handles so that the next
	// call re-initialises them.
	ClearCache()

	// Close releases resources.
	Close() error
}
