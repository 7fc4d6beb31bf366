package driving

import (
	"context"

	"github.com/custodia-labs/quarry-cli/internal/core/domain"
)

// StoreService exposes the hybrid point store to external actors: search,
// point CRUD and the soft-delete lifecycle.
type StoreService interface {
	// Search embeds the query and performs hybrid search across both
	// backends. Soft-deleted points never appear in results.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)

	// SearchVector performs hybrid search with a caller-supplied vector.
	SearchVector(ctx context.Context, vector []float32, opts domain.SearchOptions) ([]domain.SearchResult, error)

	// Add stores a new point. When vector is nil the content is embedded.
	// Returns the deterministic point id.
	Add(ctx context.Context, content string, metadata map[string]any, vector []float32) (int64, error)

	// Get retrieves a point by id from the first backend that has it.
	Get(ctx context.Context, id int64, withVector bool) (*domain.Point, error)

	// Update modifies a point's content, metadata and/or vector. A
	// metadata-only update preserves the stored vector and clears any
	// soft-delete mark.
	Update(ctx context.Context, id int64, content string, metadata map[string]any, vector []float32) error

	// Delete soft-deletes a point by default; permanent removes it.
	Delete(ctx context.Context, id int64, permanent bool) error

	// SearchByMetadata scans points matching a metadata filter, without
	// a query vector. Limit and offset page the scan.
	SearchByMetadata(ctx context.Context, filter *domain.Filter, limit int, offset int64) ([]domain.Point, int64, error)

	// CleanupDeletedFiles soft-deletes every live point whose file path
	// is not in existingPaths. An empty backend name targets all
	// backends; dryRun reports without writing.
	CleanupDeletedFiles(ctx context.Context, existingPaths []string, backend string, dryRun bool) (*domain.CleanupResult, error)

	// RecoverDeleted clears the soft-delete mark, for one file or for
	// the whole store when filePath is empty. Idempotent.
	RecoverDeleted(ctx context.Context, filePath string) (int, error)

	// PurgeDeleted permanently removes soft-deleted points, for one file
	// or all. Refuses to run unless confirm is true.
	PurgeDeleted(ctx context.Context, filePath string, confirm bool) (int, error)

	// DeleteAll drops every point from every backend. Refuses to run
	// unless confirm is true.
	DeleteAll(ctx context.Context, confirm bool) error

	// Stats reports per-backend point counts and availability.
	Stats(ctx context.Context) (*domain.StoreStats, error)
}
