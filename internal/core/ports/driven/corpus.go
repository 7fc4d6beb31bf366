package driven

import (
	"context"

	"github.com/custodia-labs/quarry-cli/internal/core/domain"
)

// CorpusScanner enumerates and chunks the files of a corpus on disk.
// Paths returned and accepted are relative to root, with forward slashes.
type CorpusScanner interface {
	// Scan lists every supported file under root.
	Scan(ctx context.Context, root string) ([]string, error)

	// Chunk reads one file and splits it into chunks carrying the
	// corpus-relative path, line ranges and section metadata.
	Chunk(ctx context.Context, root, path string) ([]domain.Chunk, error)

	// Watch invokes onChange with a corpus-relative path whenever a
	// supported file under root is created, modified or removed. Blocks
	// until the context is cancelled.
	Watch(ctx context.Context, root string, onChange func(path string)) error
}
