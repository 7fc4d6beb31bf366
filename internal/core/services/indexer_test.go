package services

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/quarry-cli/internal/core/domain"
	"github.com/custodia-labs/quarry-cli/internal/core/ports/driven"
)

// mockCorpus serves canned chunk lists per path.
type mockCorpus struct {
	files    map[string][]domain.Chunk
	chunkErr map[string]error
}

var _ driven.CorpusScanner = (*mockCorpus)(nil)

func (m *mockCorpus) Scan(ctx context.Context, root string) ([]string, error) {
	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func (m *mockCorpus) Chunk(ctx context.Context, root, path string) ([]domain.Chunk, error) {
	if err := m.chunkErr[path]; err != nil {
		return nil, err
	}
	return m.files[path], nil
}

func (m *mockCorpus) Watch(ctx context.Context, root string, onChange func(string)) error {
	<-ctx.Done()
	return ctx.Err()
}

func chunkAt(path string, line int, content string) domain.Chunk {
	return domain.Chunk{Content: content, FilePath: path, LineStart: line, LineEnd: line + 1}
}

func newTestIndexer(t *testing.T, corpus *mockCorpus, primary, secondary *mockBackend) *Indexer {
	t.Helper()
	store := newTestStore(t, primary, secondary)
	return NewIndexer(store, corpus, newMockEmbedder(testDims))
}

func TestIndexFile_IdempotentReindex(t *testing.T) {
	corpus := &mockCorpus{files: map[string][]domain.Chunk{
		"doc.md": {
			chunkAt("doc.md", 1, "alpha"),
			chunkAt("doc.md", 5, "beta"),
		},
	}}
	primary := newMockBackend(domain.BackendPrimary)
	ix := newTestIndexer(t, corpus, primary, nil)

	first, err := ix.IndexFile(context.Background(), ".", "doc.md")
	require.NoError(t, err)
	assert.Equal(t, 2, first.Added)
	assert.Equal(t, 1, primary.upserts)

	second, err := ix.IndexFile(context.Background(), ".", "doc.md")
	require.NoError(t, err)
	assert.Equal(t, 0, second.Added)
	assert.Equal(t, 0, second.Updated)
	assert.Equal(t, 0, second.Deleted)
	assert.Equal(t, 2, second.Skipped)
	// No write at all on the second run.
	assert.Equal(t, 1, primary.upserts)
	assert.Equal(t, 0, primary.deletes)
}

func TestIndexFile_EmbedFailureNotCountedAsWrite(t *testing.T) {
	corpus := &mockCorpus{files: map[string][]domain.Chunk{
		"doc.md": {
			chunkAt("doc.md", 1, "alpha"),
			chunkAt("doc.md", 5, "beta"),
			chunkAt("doc.md", 9, "gamma"),
		},
	}}
	primary := newMockBackend(domain.BackendPrimary)
	store := newTestStore(t, primary, nil)
	embedder := newMockEmbedder(testDims)
	embedder.failTexts = map[string]bool{"beta": true}
	ix := NewIndexer(store, corpus, embedder)

	result, err := ix.IndexFile(context.Background(), ".", "doc.md")
	require.NoError(t, err)

	// The failed chunk is reported as failed, not as a write.
	assert.Equal(t, 2, result.Added)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 0, result.Updated)

	// Only the two embedded chunks reached the backend.
	n, err := primary.Count(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestIndexFile_DiffCorrectness(t *testing.T) {
	corpus := &mockCorpus{files: map[string][]domain.Chunk{
		"doc.md": {
			chunkAt("doc.md", 1, "A"),
			chunkAt("doc.md", 5, "B"),
			chunkAt("doc.md", 9, "C"),
		},
	}}
	primary := newMockBackend(domain.BackendPrimary)
	ix := newTestIndexer(t, corpus, primary, nil)

	_, err := ix.IndexFile(context.Background(), ".", "doc.md")
	require.NoError(t, err)

	idA := domain.PointID("doc.md", 1)
	idC := domain.PointID("doc.md", 9)
	vecA := primary.points[idA].Vector

	// B changes content, C disappears, D is new.
	corpus.files["doc.md"] = []domain.Chunk{
		chunkAt("doc.md", 1, "A"),
		chunkAt("doc.md", 5, "B-changed"),
		chunkAt("doc.md", 13, "D"),
	}
	result, err := ix.IndexFile(context.Background(), ".", "doc.md")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Added)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Deleted)

	_, gone := primary.points[idC]
	assert.False(t, gone)
	assert.Equal(t, "B-changed", primary.points[domain.PointID("doc.md", 5)].Payload[domain.KeyContent])
	assert.Contains(t, primary.points, domain.PointID("doc.md", 13))
	// A was never rewritten.
	assert.Equal(t, vecA, primary.points[idA].Vector)
}

func TestIndexFile_UpdateResurrectsSoftDeleted(t *testing.T) {
	primary := newMockBackend(domain.BackendPrimary)
	tombstoned := mkPoint("doc.md", 1, "old content", true)
	primary.put(tombstoned)

	corpus := &mockCorpus{files: map[string][]domain.Chunk{
		"doc.md": {chunkAt("doc.md", 1, "new content")},
	}}
	ix := newTestIndexer(t, corpus, primary, nil)

	result, err := ix.IndexFile(context.Background(), ".", "doc.md")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)

	p := primary.points[tombstoned.ID]
	assert.False(t, p.Deleted())
}

func TestIndexFile_PerBackendIndependentDiff(t *testing.T) {
	primary := newMockBackend(domain.BackendPrimary)
	secondary := newMockBackend(domain.BackendSecondary)
	// The secondary already has the chunk; the primary does not.
	secondary.put(mkPoint("doc.md", 1, "alpha", false))

	corpus := &mockCorpus{files: map[string][]domain.Chunk{
		"doc.md": {chunkAt("doc.md", 1, "alpha")},
	}}
	ix := newTestIndexer(t, corpus, primary, secondary)

	result, err := ix.IndexFile(context.Background(), ".", "doc.md")
	require.NoError(t, err)

	// Primary adds, secondary skips: no cross-backend coupling.
	assert.Equal(t, 1, result.Added)
	assert.Equal(t, 1, primary.upserts)
	assert.Equal(t, 0, secondary.upserts)
}

func TestIndexFile_ScopedToOneFile(t *testing.T) {
	primary := newMockBackend(domain.BackendPrimary)
	other := mkPoint("other.md", 1, "untouched", false)
	primary.put(other)

	corpus := &mockCorpus{files: map[string][]domain.Chunk{
		"doc.md": {chunkAt("doc.md", 1, "alpha")},
	}}
	ix := newTestIndexer(t, corpus, primary, nil)

	_, err := ix.IndexFile(context.Background(), ".", "doc.md")
	require.NoError(t, err)

	assert.Contains(t, primary.points, other.ID)
	assert.Equal(t, 0, primary.deletes)
}

func TestIndexCorpus_PartialFailureTolerant(t *testing.T) {
	corpus := &mockCorpus{
		files: map[string][]domain.Chunk{
			"good.md": {chunkAt("good.md", 1, "fine")},
			"bad.md":  nil,
		},
		chunkErr: map[string]error{"bad.md": assert.AnError},
	}
	primary := newMockBackend(domain.BackendPrimary)
	ix := newTestIndexer(t, corpus, primary, nil)

	result, err := ix.IndexCorpus(context.Background(), ".")
	require.NoError(t, err)

	assert.NotEmpty(t, result.JobID)
	assert.Equal(t, 1, result.Files)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Added)
}

func TestIndexCorpus_CleansUpVanishedFiles(t *testing.T) {
	primary := newMockBackend(domain.BackendPrimary)
	orphan := mkPoint("removed.md", 1, "stale", false)
	primary.put(orphan)

	corpus := &mockCorpus{files: map[string][]domain.Chunk{
		"doc.md": {chunkAt("doc.md", 1, "alpha")},
	}}
	ix := newTestIndexer(t, corpus, primary, nil)

	result, err := ix.IndexCorpus(context.Background(), ".")
	require.NoError(t, err)
	assert.Equal(t, 1, result.CleanedUp)

	p := primary.points[orphan.ID]
	assert.True(t, p.Deleted())
}
