package driven

import (
	"context"

	"github.com/custodia-labs/quarry-cli/internal/core/domain"
)

// PointBackend provides vector point storage and nearest-neighbour search.
// Two instances back the hybrid store: a remote primary and an optional
// embedded secondary.
//
// Implementations must return domain.ErrFilterUnsupported when they reject
// a filter on an unindexed field, so callers can fall back to in-process
// filtering, and wrap connectivity failures in domain.ErrBackendUnavailable.
type PointBackend interface {
	// Name returns the backend's logical name ("cloud" or "local").
	Name() string

	// Upsert inserts or replaces points by id.
	Upsert(ctx context.Context, points []domain.Point) error

	// Retrieve fetches points by id. Missing ids are silently omitted.
	// Vectors are included only when withVectors is true.
	Retrieve(ctx context.Context, ids []int64, withVectors bool) ([]domain.Point, error)

	// Query runs nearest-neighbour search for the vector, optionally
	// constrained by a metadata filter.
	Query(ctx context.Context, vector []float32, limit int, filter *domain.Filter) ([]domain.ScoredPoint, error)

	// Scroll pages through points matching a filter without a query
	// vector. Offset is a point id to resume after; 0 starts from the
	// beginning. The second return value is the offset for the next page,
	// or 0 when exhausted.
	Scroll(ctx context.Context, filter *domain.Filter, limit int, offset int64) ([]domain.Point, int64, error)

	// SetPayload merges payload keys into the points with the given ids,
	// leaving vectors and other keys untouched.
	SetPayload(ctx context.Context, ids []int64, payload map[string]any) error

	// Delete permanently removes points by id.
	Delete(ctx context.Context, ids []int64) error

	// Count returns the number of points matching the filter
	// (all points when filter is nil).
	Count(ctx context.Context, filter *domain.Filter) (int, error)

	// Close releases resources.
	Close() error
}
