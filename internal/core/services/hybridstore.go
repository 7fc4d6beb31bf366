package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/custodia-labs/quarry-cli/internal/core/domain"
	"github.com/custodia-labs/quarry-cli/internal/core/ports/driven"
	"github.com/custodia-labs/quarry-cli/internal/core/ports/driving"
	"github.com/custodia-labs/quarry-cli/internal/logger"
)

// Hard caps and defaults for store operations. Oversized requests are
// clamped, not rejected.
const (
	DefaultTopK       = 5
	MaxTopK           = 100
	DefaultScanLimit  = 10
	MaxScanLimit      = 1000
	CleanupBatchSize  = 1000
	sectionScrollCap  = 1000
	sectionYieldFloor = 10
	scrollPageSize    = 1000
)

// HybridStoreConfig tunes the hybrid store.
type HybridStoreConfig struct {
	// TopK is the default result count for searches.
	TopK int

	// RerankTopK is the final result count after section expansion.
	RerankTopK int

	// BM25Weight and VectorWeight are reserved scoring parameters. They
	// are validated (must sum to ~1.0) but only the vector path scores
	// today; a keyword blend can be added without changing the API.
	BM25Weight   float64
	VectorWeight float64
}

// DefaultHybridStoreConfig returns the standard tuning.
func DefaultHybridStoreConfig() HybridStoreConfig {
	return HybridStoreConfig{
		TopK:         DefaultTopK,
		RerankTopK:   10,
		BM25Weight:   0.3,
		VectorWeight: 0.7,
	}
}

// HybridStore presents one logical point store backed by a primary and an
// optional secondary backend. Reads over-fetch from the primary, fall to
// the secondary when the primary comes up short, merge with at most one
// copy per (file_path, line_start) key and never surface soft-deleted
// points. Writes go to both backends; the secondary is best effort.
type HybridStore struct {
	primary   driven.PointBackend
	secondary driven.PointBackend
	embedder  driven.EmbeddingService
	cfg       HybridStoreConfig
}

var _ driving.StoreService = (*HybridStore)(nil)

// NewHybridStore creates the hybrid store. secondary may be nil, in which
// case hybrid reads serve from the primary alone and secondary writes are
// no-ops.
func NewHybridStore(primary driven.PointBackend, secondary driven.PointBackend, embedder driven.EmbeddingService, cfg HybridStoreConfig) (*HybridStore, error) {
	if primary == nil {
		return nil, fmt.Errorf("new hybrid store: primary backend is required: %w", domain.ErrInvalidInput)
	}
	if embedder == nil {
		return nil, fmt.Errorf("new hybrid store: embedding service is required: %w", domain.ErrInvalidInput)
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.RerankTopK <= 0 {
		cfg.RerankTopK = 10
	}
	if math.Abs(cfg.BM25Weight+cfg.VectorWeight-1.0) > 0.01 {
		return nil, fmt.Errorf("new hybrid store: scoring weights must sum to 1.0, got %.2f: %w",
			cfg.BM25Weight+cfg.VectorWeight, domain.ErrInvalidInput)
	}
	return &HybridStore{primary: primary, secondary: secondary, embedder: embedder, cfg: cfg}, nil
}

// Search embeds the query and runs hybrid retrieval.
func (s *HybridStore) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.NewValidationError("query cannot be empty", nil)
	}
	category := opts.Category
	if category == "" {
		category = domain.EmbedDoc
	}
	vector, err := s.embedder.Embed(ctx, query, category)
	if err != nil {
		return nil, domain.NewBackendUnavailableError("embedding", err)
	}
	if opts.Expand {
		return s.searchWithExpansion(ctx, vector, opts)
	}
	return s.SearchVector(ctx, vector, opts)
}

// SearchVector runs hybrid retrieval with a caller-supplied vector.
//
// The primary is over-fetched at 2x top_k to absorb soft-delete filtering
// losses; the secondary is consulted only when the primary yield falls
// short. Soft-delete filtering happens here rather than in the
// nearest-neighbour query so neither backend needs a boolean payload index.
func (s *HybridStore) SearchVector(ctx context.Context, vector []float32, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	if err := s.ValidateVector(vector); err != nil {
		return nil, err
	}
	topK := clampTopK(opts.TopK, s.cfg.TopK)

	var results []domain.SearchResult
	seen := make(map[domain.ChunkKey]bool)

	primaryHits, err := s.primary.Query(ctx, vector, topK*2, opts.Filter)
	if err != nil {
		if s.secondary != nil {
			logger.Warn("%s search failed: %v, using %s only", s.primary.Name(), err, s.secondary.Name())
		} else {
			logger.Warn("%s search failed: %v, no fallback backend configured", s.primary.Name(), err)
		}
	}
	for _, sp := range primaryHits {
		r := sp.Result(s.primary.Name())
		if !seen[r.Key()] {
			seen[r.Key()] = true
			results = append(results, r)
		}
	}

	if len(results) < topK && s.secondary != nil {
		secondaryHits, err := s.secondary.Query(ctx, vector, topK*2, opts.Filter)
		if err != nil {
			logger.Error("%s search failed: %v", s.secondary.Name(), err)
		}
		for _, sp := range secondaryHits {
			r := sp.Result(s.secondary.Name())
			if !seen[r.Key()] {
				seen[r.Key()] = true
				results = append(results, r)
			}
		}
	}

	live := results[:0]
	for _, r := range results {
		if !r.Deleted() {
			live = append(live, r)
		}
	}
	sort.SliceStable(live, func(i, j int) bool { return live[i].Score > live[j].Score })
	if len(live) > topK {
		live = live[:topK]
	}
	return live, nil
}

// searchWithExpansion widens each hit to the complete document section it
// belongs to, so enumerations and tables come back whole even when only a
// fragment scored highly.
func (s *HybridStore) searchWithExpansion(ctx context.Context, vector []float32, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	initial, err := s.SearchVector(ctx, vector, opts)
	if err != nil {
		return nil, err
	}
	if len(initial) == 0 {
		return nil, nil
	}

	type sectionKey struct {
		filePath string
		section  string
	}
	groups := make(map[sectionKey][]domain.SearchResult)
	var order []sectionKey
	for _, r := range initial {
		k := sectionKey{filePath: r.FilePath, section: r.Section()}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}

	var expanded []domain.SearchResult
	seen := make(map[domain.ChunkKey]bool)
	for _, k := range order {
		chunks, err := s.sectionChunks(ctx, k.filePath, k.section)
		if err != nil {
			logger.Warn("failed to expand section %q in %s: %v", k.section, k.filePath, err)
			// Keep the unexpanded members rather than dropping the group.
			chunks = groups[k]
		}
		for _, c := range chunks {
			if !seen[c.Key()] {
				seen[c.Key()] = true
				expanded = append(expanded, c)
			}
		}
	}

	sort.SliceStable(expanded, func(i, j int) bool { return expanded[i].Score > expanded[j].Score })
	if len(expanded) > s.cfg.RerankTopK {
		expanded = expanded[:s.cfg.RerankTopK]
	}
	return expanded, nil
}

// sectionChunks fetches every live chunk of one (file, section) pair via
// exact-filter scans. The secondary is consulted only when the primary's
// yield is suspiciously low.
func (s *HybridStore) sectionChunks(ctx context.Context, filePath, section string) ([]domain.SearchResult, error) {
	filter := &domain.Filter{Must: []domain.Condition{
		{Key: domain.KeyFilePath, Match: filePath},
		{Key: domain.KeySection, Match: section},
	}}

	var chunks []domain.SearchResult
	seen := make(map[domain.ChunkKey]bool)

	points, err := s.scanBackend(ctx, s.primary, filter, sectionScrollCap)
	if err != nil {
		logger.Warn("%s section scan failed for %s:%s: %v", s.primary.Name(), filePath, section, err)
		if s.secondary == nil {
			return nil, err
		}
	}
	for _, p := range points {
		if p.Deleted() {
			continue
		}
		r := domain.ScoredPoint{Point: p}.Result(s.primary.Name())
		if !seen[r.Key()] {
			seen[r.Key()] = true
			chunks = append(chunks, r)
		}
	}

	if len(chunks) < sectionYieldFloor && s.secondary != nil {
		points, err := s.scanBackend(ctx, s.secondary, filter, sectionScrollCap)
		if err != nil {
			logger.Warn("%s section scan failed for %s:%s: %v", s.secondary.Name(), filePath, section, err)
		}
		for _, p := range points {
			if p.Deleted() {
				continue
			}
			r := domain.ScoredPoint{Point: p}.Result(s.secondary.Name())
			if !seen[r.Key()] {
				seen[r.Key()] = true
				chunks = append(chunks, r)
			}
		}
	}
	logger.Debug("retrieved %d chunks from section %q in %s", len(chunks), section, filePath)
	return chunks, nil
}

// scanBackend scrolls up to limit points matching the filter. When the
// backend rejects the filter as unindexed, the scan repeats unfiltered and
// the filter is evaluated in process.
func (s *HybridStore) scanBackend(ctx context.Context, b driven.PointBackend, filter *domain.Filter, limit int) ([]domain.Point, error) {
	points, _, err := s.scanBackendPage(ctx, b, filter, limit, 0)
	return points, err
}

func (s *HybridStore) scanBackendPage(ctx context.Context, b driven.PointBackend, filter *domain.Filter, limit int, offset int64) ([]domain.Point, int64, error) {
	points, next, err := b.Scroll(ctx, filter, limit, offset)
	if err == nil {
		return points, next, nil
	}
	if !isFilterUnsupported(err) || filter.Empty() {
		return nil, 0, err
	}

	logger.Debug("%s rejected filter, re-filtering in process", b.Name())
	var out []domain.Point
	for {
		page, n, err := b.Scroll(ctx, nil, scrollPageSize, offset)
		if err != nil {
			return nil, 0, err
		}
		for _, p := range page {
			if filter.Matches(p.Payload) {
				out = append(out, p)
				if len(out) == limit {
					return out, n, nil
				}
			}
		}
		if n == 0 {
			return out, 0, nil
		}
		offset = n
	}
}

// Add stores a new point. When vector is nil the content is embedded,
// routed by the metadata's content_type.
func (s *HybridStore) Add(ctx context.Context, content string, metadata map[string]any, vector []float32) (int64, error) {
	if content == "" {
		return 0, domain.NewValidationError("content cannot be empty", nil)
	}
	payload := make(map[string]any, len(metadata)+2)
	for k, v := range metadata {
		payload[k] = v
	}
	payload[domain.KeyContent] = content
	payload[domain.KeyIsDeleted] = false

	chunk := domain.ChunkFromPayload(payload)
	id := chunk.ID()

	if vector != nil {
		if err := s.ValidateVector(vector); err != nil {
			return 0, err
		}
	} else {
		var err error
		vector, err = s.embedder.Embed(ctx, content, embedCategoryFor(chunk))
		if err != nil {
			return 0, domain.NewBackendUnavailableError("embedding", err)
		}
	}

	point := domain.Point{ID: id, Vector: vector, Payload: payload}
	if err := s.primary.Upsert(ctx, []domain.Point{point}); err != nil {
		return 0, domain.NewBackendUnavailableError(s.primary.Name(), err)
	}
	s.secondaryUpsert(ctx, []domain.Point{point})
	return id, nil
}

// Get retrieves a point by id, falling back to the secondary when the
// primary misses or is down. Soft-deleted points are returned with their
// flag visible.
func (s *HybridStore) Get(ctx context.Context, id int64, withVector bool) (*domain.Point, error) {
	points, err := s.primary.Retrieve(ctx, []int64{id}, withVector)
	if err != nil {
		logger.Warn("%s retrieve failed: %v", s.primary.Name(), err)
	}
	if len(points) > 0 {
		return &points[0], nil
	}
	if s.secondary != nil {
		points, err = s.secondary.Retrieve(ctx, []int64{id}, withVector)
		if err != nil {
			logger.Warn("%s retrieve failed: %v", s.secondary.Name(), err)
		}
		if len(points) > 0 {
			return &points[0], nil
		}
	}
	return nil, domain.NewPointNotFoundError(id)
}

// Update modifies a point in place. A metadata-only update keeps the
// stored vector; any update clears the soft-delete mark.
func (s *HybridStore) Update(ctx context.Context, id int64, content string, metadata map[string]any, vector []float32) error {
	if content == "" && len(metadata) == 0 && vector == nil {
		return domain.NewValidationError("nothing to update", nil)
	}
	existing, err := s.Get(ctx, id, true)
	if err != nil {
		return err
	}

	payload := make(map[string]any, len(existing.Payload)+len(metadata))
	for k, v := range existing.Payload {
		payload[k] = v
	}
	for k, v := range metadata {
		payload[k] = v
	}
	if content != "" {
		payload[domain.KeyContent] = content
	}
	payload[domain.KeyIsDeleted] = false

	switch {
	case vector != nil:
		if err := s.ValidateVector(vector); err != nil {
			return err
		}
	case content != "":
		chunk := domain.ChunkFromPayload(payload)
		vector, err = s.embedder.Embed(ctx, content, embedCategoryFor(chunk))
		if err != nil {
			return domain.NewBackendUnavailableError("embedding", err)
		}
	default:
		// Metadata-only update: keep the existing vector.
		vector = existing.Vector
	}

	point := domain.Point{ID: id, Vector: vector, Payload: payload}
	if err := s.primary.Upsert(ctx, []domain.Point{point}); err != nil {
		return domain.NewBackendUnavailableError(s.primary.Name(), err)
	}
	s.secondaryUpsert(ctx, []domain.Point{point})
	return nil
}

// Delete soft-deletes by default. Permanent removal is physical and
// irreversible.
func (s *HybridStore) Delete(ctx context.Context, id int64, permanent bool) error {
	if _, err := s.Get(ctx, id, false); err != nil {
		return err
	}
	if permanent {
		if err := s.primary.Delete(ctx, []int64{id}); err != nil {
			return domain.NewBackendUnavailableError(s.primary.Name(), err)
		}
		if s.secondary != nil {
			if err := s.secondary.Delete(ctx, []int64{id}); err != nil {
				logger.Warn("%s delete failed for %d: %v", s.secondary.Name(), id, err)
			}
		}
		return nil
	}
	mark := map[string]any{domain.KeyIsDeleted: true}
	if err := s.primary.SetPayload(ctx, []int64{id}, mark); err != nil {
		return domain.NewBackendUnavailableError(s.primary.Name(), err)
	}
	if s.secondary != nil {
		if err := s.secondary.SetPayload(ctx, []int64{id}, mark); err != nil {
			logger.Warn("%s soft delete failed for %d: %v", s.secondary.Name(), id, err)
		}
	}
	return nil
}

// SearchByMetadata scans points matching a filter without a query vector.
// Limit is clamped to MaxScanLimit.
func (s *HybridStore) SearchByMetadata(ctx context.Context, filter *domain.Filter, limit int, offset int64) ([]domain.Point, int64, error) {
	if limit <= 0 {
		limit = DefaultScanLimit
	}
	if limit > MaxScanLimit {
		logger.Debug("scan limit %d clamped to %d", limit, MaxScanLimit)
		limit = MaxScanLimit
	}
	points, next, err := s.scanBackendPage(ctx, s.primary, filter, limit, offset)
	if err != nil {
		logger.Warn("%s metadata scan failed: %v", s.primary.Name(), err)
		if s.secondary == nil {
			return nil, 0, domain.NewBackendUnavailableError(s.primary.Name(), err)
		}
		points, next, err = s.scanBackendPage(ctx, s.secondary, filter, limit, offset)
		if err != nil {
			return nil, 0, domain.NewBackendUnavailableError(s.secondary.Name(), err)
		}
	}
	return points, next, nil
}

// CleanupDeletedFiles soft-deletes every live point whose file path no
// longer exists. Marking is batched; a failed batch falls back to
// per-point retries so one bad id cannot sink the rest.
func (s *HybridStore) CleanupDeletedFiles(ctx context.Context, existingPaths []string, backend string, dryRun bool) (*domain.CleanupResult, error) {
	backends, err := s.backendsByName(backend)
	if err != nil {
		return nil, err
	}

	existing := make(map[string]bool, len(existingPaths))
	for _, p := range existingPaths {
		existing[domain.NormalizePath(p)] = true
	}

	result := &domain.CleanupResult{DryRun: dryRun}
	orphanPaths := make(map[string]bool)

	for _, b := range backends {
		var orphanIDs []int64
		err := s.forEachPoint(ctx, b, nil, func(p domain.Point) {
			if p.Deleted() {
				return
			}
			result.Scanned++
			path, _ := p.Payload[domain.KeyFilePath].(string)
			if path == "" {
				return
			}
			normalized := domain.NormalizePath(path)
			if !existing[normalized] {
				orphanIDs = append(orphanIDs, p.ID)
				orphanPaths[normalized] = true
			}
		})
		if err != nil {
			logger.Error("cleanup scan failed for %s: %v", b.Name(), err)
			continue
		}
		if len(orphanIDs) == 0 {
			continue
		}
		if dryRun {
			logger.Info("dry-run: %d chunks would be marked as deleted (%s)", len(orphanIDs), b.Name())
			result.Marked += len(orphanIDs)
			continue
		}
		marked, failed := s.markDeleted(ctx, b, orphanIDs)
		result.Marked += marked
		result.Failed += failed
		logger.Info("marked %d chunks as deleted (%s)", marked, b.Name())
	}

	for p := range orphanPaths {
		result.Orphans = append(result.Orphans, p)
	}
	sort.Strings(result.Orphans)
	return result, nil
}

// markDeleted flags ids in fixed-size batches, retrying each point of a
// failed batch individually.
func (s *HybridStore) markDeleted(ctx context.Context, b driven.PointBackend, ids []int64) (marked, failed int) {
	mark := map[string]any{domain.KeyIsDeleted: true}
	for start := 0; start < len(ids); start += CleanupBatchSize {
		end := start + CleanupBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]
		err := b.SetPayload(ctx, batch, mark)
		if err == nil {
			marked += len(batch)
			continue
		}
		logger.Warn("failed to mark batch of %d as deleted on %s: %v", len(batch), b.Name(), err)
		for _, id := range batch {
			if err := b.SetPayload(ctx, []int64{id}, mark); err != nil {
				logger.Warn("failed to mark point %d as deleted: %v", id, err)
				failed++
			} else {
				marked++
			}
		}
	}
	return marked, failed
}

// RecoverDeleted clears soft-delete marks, optionally scoped to one file.
// Recovering an already-live point is a no-op.
func (s *HybridStore) RecoverDeleted(ctx context.Context, filePath string) (int, error) {
	filter := deletedFilter(filePath)
	recovered := make(map[int64]bool)
	unmark := map[string]any{domain.KeyIsDeleted: false}

	for _, b := range s.allBackends() {
		var ids []int64
		err := s.forEachPointFiltered(ctx, b, filter, func(p domain.Point) {
			ids = append(ids, p.ID)
		})
		if err != nil {
			logger.Warn("recover scan failed for %s: %v", b.Name(), err)
			continue
		}
		for start := 0; start < len(ids); start += CleanupBatchSize {
			end := start + CleanupBatchSize
			if end > len(ids) {
				end = len(ids)
			}
			if err := b.SetPayload(ctx, ids[start:end], unmark); err != nil {
				logger.Warn("recover batch failed on %s: %v", b.Name(), err)
				continue
			}
			for _, id := range ids[start:end] {
				recovered[id] = true
			}
		}
	}
	return len(recovered), nil
}

// PurgeDeleted physically removes soft-deleted points. Refuses to run
// without confirm.
func (s *HybridStore) PurgeDeleted(ctx context.Context, filePath string, confirm bool) (int, error) {
	if !confirm {
		return 0, domain.NewValidationError("permanent delete requires confirmation", map[string]any{
			"confirm": false,
		})
	}
	filter := deletedFilter(filePath)
	purged := make(map[int64]bool)

	for _, b := range s.allBackends() {
		var ids []int64
		err := s.forEachPointFiltered(ctx, b, filter, func(p domain.Point) {
			ids = append(ids, p.ID)
		})
		if err != nil {
			logger.Warn("purge scan failed for %s: %v", b.Name(), err)
			continue
		}
		for start := 0; start < len(ids); start += CleanupBatchSize {
			end := start + CleanupBatchSize
			if end > len(ids) {
				end = len(ids)
			}
			if err := b.Delete(ctx, ids[start:end]); err != nil {
				logger.Warn("purge batch failed on %s: %v", b.Name(), err)
				continue
			}
			for _, id := range ids[start:end] {
				purged[id] = true
			}
		}
	}
	return len(purged), nil
}

// DeleteAll drops every point from every backend. Refuses to run without
// confirm.
func (s *HybridStore) DeleteAll(ctx context.Context, confirm bool) error {
	if !confirm {
		return domain.NewValidationError("delete all requires confirmation", map[string]any{
			"confirm": false,
		})
	}
	for _, b := range s.allBackends() {
		var ids []int64
		err := s.forEachPoint(ctx, b, nil, func(p domain.Point) {
			ids = append(ids, p.ID)
		})
		if err != nil {
			return domain.NewBackendUnavailableError(b.Name(), err)
		}
		for start := 0; start < len(ids); start += CleanupBatchSize {
			end := start + CleanupBatchSize
			if end > len(ids) {
				end = len(ids)
			}
			if err := b.Delete(ctx, ids[start:end]); err != nil {
				return domain.NewBackendUnavailableError(b.Name(), err)
			}
		}
		logger.Info("deleted %d points from %s", len(ids), b.Name())
	}
	return nil
}

// Stats reports per-backend counts and availability.
func (s *HybridStore) Stats(ctx context.Context) (*domain.StoreStats, error) {
	stats := &domain.StoreStats{
		Dimensions: s.embedder.Dimensions(),
		Model:      s.embedder.ModelName(),
	}
	deleted := &domain.Filter{Must: []domain.Condition{{Key: domain.KeyIsDeleted, Match: true}}}
	for _, b := range s.allBackends() {
		bs := domain.BackendStats{Name: b.Name()}
		total, err := b.Count(ctx, nil)
		if err != nil {
			logger.Warn("failed to get %s stats: %v", b.Name(), err)
			stats.Backends = append(stats.Backends, bs)
			continue
		}
		bs.Available = true
		bs.Points = total
		if n, err := b.Count(ctx, deleted); err == nil {
			bs.Deleted = n
		}
		stats.Backends = append(stats.Backends, bs)
	}
	return stats, nil
}

// ValidateVector rejects wrong-width and non-finite vectors before any
// network call.
func (s *HybridStore) ValidateVector(vector []float32) error {
	want := s.embedder.Dimensions()
	if len(vector) != want {
		return domain.NewDimensionMismatchError(want, len(vector))
	}
	for i, v := range vector {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return domain.NewValidationError("vector contains non-finite element", map[string]any{
				"index": i,
			})
		}
	}
	return nil
}

// Primary returns the primary backend.
func (s *HybridStore) Primary() driven.PointBackend { return s.primary }

// Secondary returns the secondary backend, or nil when disabled.
func (s *HybridStore) Secondary() driven.PointBackend { return s.secondary }

// secondaryUpsert mirrors a write to the secondary, best effort.
func (s *HybridStore) secondaryUpsert(ctx context.Context, points []domain.Point) {
	if s.secondary == nil {
		return
	}
	if err := s.secondary.Upsert(ctx, points); err != nil {
		logger.Warn("%s upsert failed: %v", s.secondary.Name(), err)
	}
}

func (s *HybridStore) allBackends() []driven.PointBackend {
	if s.secondary == nil {
		return []driven.PointBackend{s.primary}
	}
	return []driven.PointBackend{s.primary, s.secondary}
}

// backendsByName resolves a backend selector: "" targets all backends.
func (s *HybridStore) backendsByName(name string) ([]driven.PointBackend, error) {
	switch name {
	case "":
		return s.allBackends(), nil
	case s.primary.Name():
		return []driven.PointBackend{s.primary}, nil
	case domain.BackendSecondary:
		if s.secondary == nil {
			return nil, fmt.Errorf("backend %q: %w", name, domain.ErrSecondaryDisabled)
		}
		return []driven.PointBackend{s.secondary}, nil
	default:
		return nil, domain.NewValidationError(fmt.Sprintf("unknown backend %q", name), map[string]any{
			"backend": name,
		})
	}
}

// forEachPoint pages through every point of a backend.
func (s *HybridStore) forEachPoint(ctx context.Context, b driven.PointBackend, filter *domain.Filter, fn func(domain.Point)) error {
	var offset int64
	for {
		points, next, err := b.Scroll(ctx, filter, scrollPageSize, offset)
		if err != nil {
			return err
		}
		for _, p := range points {
			fn(p)
		}
		if next == 0 {
			return nil
		}
		offset = next
	}
}

// forEachPointFiltered is forEachPoint with the in-process fallback for
// backends that reject the filter.
func (s *HybridStore) forEachPointFiltered(ctx context.Context, b driven.PointBackend, filter *domain.Filter, fn func(domain.Point)) error {
	err := s.forEachPoint(ctx, b, filter, fn)
	if err == nil || !isFilterUnsupported(err) || filter.Empty() {
		return err
	}
	logger.Debug("%s rejected filter, re-filtering in process", b.Name())
	return s.forEachPoint(ctx, b, nil, func(p domain.Point) {
		if filter.Matches(p.Payload) {
			fn(p)
		}
	})
}

// isFilterUnsupported detects a backend refusing to filter on an unindexed
// field, either via the sentinel or via the backend's raw message.
func isFilterUnsupported(err error) bool {
	if errors.Is(err, domain.ErrFilterUnsupported) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "Index required")
}

func deletedFilter(filePath string) *domain.Filter {
	f := &domain.Filter{Must: []domain.Condition{{Key: domain.KeyIsDeleted, Match: true}}}
	if filePath != "" {
		f.Must = append(f.Must, domain.Condition{Key: domain.KeyFilePath, Match: domain.NormalizePath(filePath)})
	}
	return f
}

func clampTopK(topK, def int) int {
	if topK <= 0 {
		return def
	}
	if topK > MaxTopK {
		logger.Debug("top_k %d clamped to %d", topK, MaxTopK)
		return MaxTopK
	}
	return topK
}

func embedCategoryFor(c domain.Chunk) domain.EmbedCategory {
	if c.ContentType == domain.ContentTypeCode {
		return domain.EmbedCode
	}
	return domain.EmbedDoc
}
