package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/google/uuid"

	"github.com/custodia-labs/quarry-cli/internal/core/domain"
	"github.com/custodia-labs/quarry-cli/internal/core/ports/driven"
	"github.com/custodia-labs/quarry-cli/internal/core/ports/driving"
	"github.com/custodia-labs/quarry-cli/internal/logger"
)

// Indexer keeps the point store in sync with the corpus on disk. Each
// file's chunk list is diffed against the points already stored for that
// file, so re-indexing unchanged content writes nothing, and the diff is
// computed independently per backend.
type Indexer struct {
	store    *HybridStore
	corpus   driven.CorpusScanner
	embedder driven.EmbeddingService
}

var _ driving.IndexService = (*Indexer)(nil)

// NewIndexer creates an indexer over the hybrid store's backends.
func NewIndexer(store *HybridStore, corpus driven.CorpusScanner, embedder driven.EmbeddingService) *Indexer {
	return &Indexer{store: store, corpus: corpus, embedder: embedder}
}

// IndexFile chunks one file and applies the diff to every backend.
func (ix *Indexer) IndexFile(ctx context.Context, root, path string) (*domain.IndexFileResult, error) {
	chunks, err := ix.corpus.Chunk(ctx, root, path)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", path, err)
	}
	return ix.indexChunks(ctx, path, chunks)
}

// indexChunks applies a file's current chunk list to both backends.
func (ix *Indexer) indexChunks(ctx context.Context, path string, chunks []domain.Chunk) (*domain.IndexFileResult, error) {
	result := &domain.IndexFileResult{FilePath: domain.NormalizePath(path)}
	logger.Info("processing file: %s (%d chunks)", path, len(chunks))

	var firstErr error
	for _, b := range ix.store.allBackends() {
		r, err := ix.indexBackend(ctx, b, path, chunks)
		if err != nil {
			logger.Error("indexing failed for %s on %s: %v", path, b.Name(), err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		// Report the primary's counts; the secondary diff is independent
		// and may differ when the backends have drifted.
		if b == ix.store.primary {
			result.Added = r.Added
			result.Updated = r.Updated
			result.Skipped = r.Skipped
			result.Deleted = r.Deleted
			result.Failed = r.Failed
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return result, nil
}

// indexBackend computes and applies the add/update/skip/delete diff for
// one file against one backend. Upserts and deletes are each one batched
// call; an upsert force-clears the soft-delete mark so content that
// reappears is resurrected.
func (ix *Indexer) indexBackend(ctx context.Context, b driven.PointBackend, path string, chunks []domain.Chunk) (*domain.IndexFileResult, error) {
	normalized := domain.NormalizePath(path)
	result := &domain.IndexFileResult{FilePath: normalized}

	existing, err := ix.existingChunks(ctx, b, normalized)
	if err != nil {
		return nil, fmt.Errorf("fetch existing chunks: %w", err)
	}
	logger.Debug("found %d existing chunks for %s on %s", len(existing), path, b.Name())

	type pendingUpsert struct {
		chunk domain.Chunk
		added bool
	}

	newKeys := make(map[domain.ChunkKey]bool, len(chunks))
	var toUpsert []pendingUpsert
	for _, c := range chunks {
		c.FilePath = normalized
		key := c.Key()
		newKeys[key] = true

		prev, ok := existing[key]
		switch {
		case !ok:
			toUpsert = append(toUpsert, pendingUpsert{chunk: c, added: true})
			result.Added++
		case prev.Content != c.Content:
			toUpsert = append(toUpsert, pendingUpsert{chunk: c})
			result.Updated++
		default:
			result.Skipped++
		}
	}

	var toDelete []int64
	for key, prev := range existing {
		if !newKeys[key] {
			toDelete = append(toDelete, prev.ID)
		}
	}
	result.Deleted = len(toDelete)

	points := make([]domain.Point, 0, len(toUpsert))
	for _, pu := range toUpsert {
		c := pu.chunk
		c.IsDeleted = false
		vector, err := ix.embedder.Embed(ctx, c.Content, embedCategoryFor(c))
		if err != nil {
			logger.Error("failed to embed chunk at line %d of %s: %v", c.LineStart, path, err)
			// The chunk was never written; back its count out of the
			// tally and record the failure instead.
			if pu.added {
				result.Added--
			} else {
				result.Updated--
			}
			result.Failed++
			continue
		}
		points = append(points, domain.Point{ID: c.ID(), Vector: vector, Payload: c.Payload()})
	}

	if len(points) > 0 {
		if err := b.Upsert(ctx, points); err != nil {
			return nil, fmt.Errorf("upsert %d points: %w", len(points), err)
		}
	}
	if len(toDelete) > 0 {
		if err := b.Delete(ctx, toDelete); err != nil {
			return nil, fmt.Errorf("delete %d points: %w", len(toDelete), err)
		}
	}

	if result.Added+result.Updated+result.Deleted > 0 {
		logger.Info("%s (%s): %d added, %d updated, %d deleted", path, b.Name(),
			result.Added, result.Updated, result.Deleted)
	} else {
		logger.Info("%s (%s): no changes detected", path, b.Name())
	}
	return result, nil
}

// existingChunk is the stored state the diff compares against.
type existingChunk struct {
	ID      int64
	Content string
}

// existingChunks fetches the points currently stored for one file, keyed
// for the diff.
func (ix *Indexer) existingChunks(ctx context.Context, b driven.PointBackend, normalizedPath string) (map[domain.ChunkKey]existingChunk, error) {
	filter := &domain.Filter{Must: []domain.Condition{
		{Key: domain.KeyFilePath, Match: normalizedPath},
	}}
	out := make(map[domain.ChunkKey]existingChunk)
	err := ix.store.forEachPointFiltered(ctx, b, filter, func(p domain.Point) {
		c := p.Chunk()
		// Stored paths may predate separator normalization.
		if domain.NormalizePath(c.FilePath) != normalizedPath {
			return
		}
		out[domain.ChunkKey{FilePath: normalizedPath, LineStart: c.LineStart}] = existingChunk{
			ID:      p.ID,
			Content: c.Content,
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// IndexCorpus walks the corpus, indexes every file and soft-deletes points
// for files that vanished. One file's failure never aborts the job.
func (ix *Indexer) IndexCorpus(ctx context.Context, root string) (*domain.IndexCorpusResult, error) {
	jobID := uuid.NewString()
	logger.Section(fmt.Sprintf("Indexing corpus %s (job %s)", root, jobID))

	paths, err := ix.corpus.Scan(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("scan corpus %s: %w", root, err)
	}

	result := &domain.IndexCorpusResult{JobID: jobID}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		fileResult, err := ix.IndexFile(ctx, root, path)
		if err != nil {
			logger.Error("skipping %s: %v", path, err)
			result.Failed++
			continue
		}
		result.Files++
		result.Added += fileResult.Added
		result.Updated += fileResult.Updated
		result.Skipped += fileResult.Skipped
		result.Deleted += fileResult.Deleted
	}

	cleanup, err := ix.store.CleanupDeletedFiles(ctx, paths, "", false)
	if err != nil {
		logger.Warn("orphan cleanup failed: %v", err)
	} else {
		result.CleanedUp = cleanup.Marked
	}

	logger.Info("job %s: %d files indexed, %d failed, %d added, %d updated, %d skipped, %d deleted, %d cleaned up",
		jobID, result.Files, result.Failed, result.Added, result.Updated, result.Skipped,
		result.Deleted, result.CleanedUp)
	return result, nil
}

// Watch re-indexes files as they change until the context is cancelled.
// A change event for a file that no longer exists soft-deletes its points.
func (ix *Indexer) Watch(ctx context.Context, root string) error {
	logger.Info("watching %s for changes", root)
	return ix.corpus.Watch(ctx, root, func(path string) {
		if _, err := ix.IndexFile(ctx, root, path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				ix.softDeleteFile(ctx, path)
				return
			}
			logger.Error("re-index of %s failed: %v", path, err)
		}
	})
}

// softDeleteFile marks every point of one removed file as deleted.
func (ix *Indexer) softDeleteFile(ctx context.Context, path string) {
	normalized := domain.NormalizePath(path)
	filter := &domain.Filter{Must: []domain.Condition{
		{Key: domain.KeyFilePath, Match: normalized},
	}}
	for _, b := range ix.store.allBackends() {
		var ids []int64
		err := ix.store.forEachPointFiltered(ctx, b, filter, func(p domain.Point) {
			if !p.Deleted() {
				ids = append(ids, p.ID)
			}
		})
		if err != nil {
			logger.Warn("scan for removed file %s failed on %s: %v", path, b.Name(), err)
			continue
		}
		if len(ids) == 0 {
			continue
		}
		marked, _ := ix.store.markDeleted(ctx, b, ids)
		logger.Info("soft-deleted %d chunks of removed file %s (%s)", marked, path, b.Name())
	}
}
