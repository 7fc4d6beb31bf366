package driving

import (
	"context"

	"github.com/custodia-labs/quarry-cli/internal/core/domain"
)

// IndexService keeps the point store in sync with a corpus of files on
// disk using diff-driven incremental indexing.
type IndexService interface {
	// IndexFile chunks one file (path relative to root) and applies the
	// add/update/skip/delete diff against the stored points for that file.
	IndexFile(ctx context.Context, root, path string) (*domain.IndexFileResult, error)

	// IndexCorpus walks a directory tree, indexes every supported file
	// and soft-deletes points for files that no longer exist. Per-file
	// failures are counted, not fatal.
	IndexCorpus(ctx context.Context, root string) (*domain.IndexCorpusResult, error)

	// Watch blocks, re-indexing files as they change under root, until
	// the context is cancelled.
	Watch(ctx context.Context, root string) error
}
