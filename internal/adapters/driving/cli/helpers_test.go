package cli

import (
	"context"

	"github.com/custodia-labs/quarry-cli/internal/core/domain"
)

// setupTestServices swaps the package service vars for mocks so commands
// run without touching real backends. The returned cleanup restores them.
func setupTestServices() func() {
	oldStore := storeService
	oldAsk := askService
	oldIndex := indexService

	storeService = &cliMockStore{}
	askService = &cliMockAsk{}
	indexService = &cliMockIndex{}

	return func() {
		storeService = oldStore
		askService = oldAsk
		indexService = oldIndex
	}
}

type cliMockStore struct{}

func (m *cliMockStore) Search(context.Context, string, domain.SearchOptions) ([]domain.SearchResult, error) {
	return []domain.SearchResult{
		{
			Content:    "Sessions expire after 24 hours.",
			FilePath:   "docs/auth.md",
			LineNumber: 12,
			Score:      0.91,
			Backend:    domain.BackendPrimary,
		},
	}, nil
}

func (m *cliMockStore) SearchVector(context.Context, []float32, domain.SearchOptions) ([]domain.SearchResult, error) {
	return nil, nil
}

func (m *cliMockStore) Add(context.Context, string, map[string]any, []float32) (int64, error) {
	return 42, nil
}

func (m *cliMockStore) Get(context.Context, int64, bool) (*domain.Point, error) {
	return &domain.Point{ID: 42}, nil
}

func (m *cliMockStore) Update(context.Context, int64, string, map[string]any, []float32) error {
	return nil
}

func (m *cliMockStore) Delete(context.Context, int64, bool) error { return nil }

func (m *cliMockStore) SearchByMetadata(context.Context, *domain.Filter, int, int64) ([]domain.Point, int64, error) {
	return nil, 0, nil
}

func (m *cliMockStore) CleanupDeletedFiles(_ context.Context, _ []string, _ string, dryRun bool) (*domain.CleanupResult, error) {
	return &domain.CleanupResult{
		Scanned: 10,
		Marked:  2,
		DryRun:  dryRun,
		Orphans: []string{"docs/gone.md"},
	}, nil
}

func (m *cliMockStore) RecoverDeleted(context.Context, string) (int, error) { return 3, nil }

func (m *cliMockStore) PurgeDeleted(_ context.Context, _ string, confirm bool) (int, error) {
	if !confirm {
		return 0, domain.ErrInvalidInput
	}
	return 5, nil
}

func (m *cliMockStore) DeleteAll(context.Context, bool) error { return nil }

func (m *cliMockStore) Stats(context.Context) (*domain.StoreStats, error) {
	return &domain.StoreStats{
		Backends: []domain.BackendStats{
			{Name: domain.BackendPrimary, Points: 120, Deleted: 4, Available: true},
		},
		Dimensions: 768,
		Model:      "nomic-embed-text",
	}, nil
}

type cliMockAsk struct{}

func (m *cliMockAsk) Ask(context.Context, string, int) (*domain.Answer, error) {
	return &domain.Answer{
		Text:       "Sessions expire after 24 hours.",
		Intent:     "factual",
		Confidence: 0.8,
		Citations: []domain.Citation{
			{FilePath: "docs/auth.md", Line: 12},
		},
	}, nil
}

func (m *cliMockAsk) Analyze(string) (*domain.QueryAnalysis, error) {
	return &domain.QueryAnalysis{Intent: "factual", Confidence: 0.8}, nil
}

type cliMockIndex struct{}

func (m *cliMockIndex) IndexFile(_ context.Context, _, path string) (*domain.IndexFileResult, error) {
	return &domain.IndexFileResult{FilePath: path, Added: 2, Skipped: 1}, nil
}

func (m *cliMockIndex) IndexCorpus(context.Context, string) (*domain.IndexCorpusResult, error) {
	return &domain.IndexCorpusResult{Files: 3, Added: 6, Skipped: 2}, nil
}

func (m *cliMockIndex) Watch(ctx context.Context, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}
