package mcp

import (
	"context"

	"github.com/custodia-labs/quarry-cli/internal/core/domain"
)

// mockStoreService is a mock implementation of driving.StoreService.
type mockStoreService struct {
	results     []domain.SearchResult
	point       *domain.Point
	points      []domain.Point
	nextOffset  int64
	addedID     int64
	cleanup     *domain.CleanupResult
	recovered   int
	purged      int
	stats       *domain.StoreStats
	err         error
	lastOpts    domain.SearchOptions
	lastDryRun  bool
	lastConfirm bool
	lastPerm    bool
}

func (m *mockStoreService) Search(_ context.Context, _ string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	m.lastOpts = opts
	return m.results, m.err
}

func (m *mockStoreService) SearchVector(_ context.Context, _ []float32, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	m.lastOpts = opts
	return m.results, m.err
}

func (m *mockStoreService) Add(_ context.Context, _ string, _ map[string]any, _ []float32) (int64, error) {
	return m.addedID, m.err
}

func (m *mockStoreService) Get(_ context.Context, _ int64, _ bool) (*domain.Point, error) {
	return m.point, m.err
}

func (m *mockStoreService) Update(_ context.Context, _ int64, _ string, _ map[string]any, _ []float32) error {
	return m.err
}

func (m *mockStoreService) Delete(_ context.Context, _ int64, permanent bool) error {
	m.lastPerm = permanent
	return m.err
}

func (m *mockStoreService) SearchByMetadata(_ context.Context, _ *domain.Filter, _ int, _ int64) ([]domain.Point, int64, error) {
	return m.points, m.nextOffset, m.err
}

func (m *mockStoreService) CleanupDeletedFiles(_ context.Context, _ []string, _ string, dryRun bool) (*domain.CleanupResult, error) {
	m.lastDryRun = dryRun
	return m.cleanup, m.err
}

func (m *mockStoreService) RecoverDeleted(_ context.Context, _ string) (int, error) {
	return m.recovered, m.err
}

func (m *mockStoreService) PurgeDeleted(_ context.Context, _ string, confirm bool) (int, error) {
	m.lastConfirm = confirm
	return m.purged, m.err
}

func (m *mockStoreService) DeleteAll(_ context.Context, confirm bool) error {
	m.lastConfirm = confirm
	return m.err
}

func (m *mockStoreService) Stats(_ context.Context) (*domain.StoreStats, error) {
	return m.stats, m.err
}

// mockAskService is a mock implementation of driving.AskService.
type mockAskService struct {
	answer   *domain.Answer
	analysis *domain.QueryAnalysis
	err      error
}

func (m *mockAskService) Ask(_ context.Context, _ string, _ int) (*domain.Answer, error) {
	return m.answer, m.err
}

func (m *mockAskService) Analyze(_ string) (*domain.QueryAnalysis, error) {
	return m.analysis, m.err
}

// mockIndexService is a mock implementation of driving.IndexService.
type mockIndexService struct {
	fileResult   *domain.IndexFileResult
	corpusResult *domain.IndexCorpusResult
	err          error
}

func (m *mockIndexService) IndexFile(_ context.Context, _, _ string) (*domain.IndexFileResult, error) {
	return m.fileResult, m.err
}

func (m *mockIndexService) IndexCorpus(_ context.Context, _ string) (*domain.IndexCorpusResult, error) {
	return m.corpusResult, m.err
}

func (m *mockIndexService) Watch(_ context.Context, _ string) error {
	return m.err
}
