package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/quarry-cli/internal/core/domain"
	"github.com/custodia-labs/quarry-cli/internal/core/ports/driving"
)

// mockStoreService records the search options it was handed and serves
// canned results.
type mockStoreService struct {
	driving.StoreService

	results  []domain.SearchResult
	lastOpts domain.SearchOptions
}

func (m *mockStoreService) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	m.lastOpts = opts
	return m.results, nil
}

func newTestPipeline(store *mockStoreService, embedder *mockEmbedder) *AskPipeline {
	return NewAskPipeline(store, NewQueryAnalyzer(), NewReranker(embedder), NewAnswerSynthesizer(), DefaultAskConfig())
}

func TestAsk_ExpansionFollowsIntent(t *testing.T) {
	store := &mockStoreService{results: []domain.SearchResult{
		{Content: "1. Auth flow", FilePath: "flows.md", LineNumber: 1, Score: 0.9},
	}}
	p := newTestPipeline(store, newMockEmbedder(testDims))

	answer, err := p.Ask(context.Background(), "list all flows", 0)
	require.NoError(t, err)

	assert.True(t, store.lastOpts.Expand)
	assert.Equal(t, domain.IntentEnumeration, answer.Intent)
	assert.Equal(t, "1. Auth flow", answer.Text)

	_, err = p.Ask(context.Background(), "default batch size", 0)
	require.NoError(t, err)
	assert.False(t, store.lastOpts.Expand)
}

func TestAsk_CodeSearchRoutesCodeEmbedding(t *testing.T) {
	store := &mockStoreService{results: []domain.SearchResult{
		{Content: "func Retry() {}", FilePath: "retry.go", LineNumber: 10, Score: 0.8},
	}}
	p := newTestPipeline(store, newMockEmbedder(testDims))

	_, err := p.Ask(context.Background(), "show me the code for retries", 0)
	require.NoError(t, err)
	assert.Equal(t, domain.EmbedCode, store.lastOpts.Category)
}

func TestAsk_NoResults(t *testing.T) {
	store := &mockStoreService{}
	p := newTestPipeline(store, newMockEmbedder(testDims))

	answer, err := p.Ask(context.Background(), "explain the frobnicator", 0)
	require.NoError(t, err)

	assert.Contains(t, answer.Text, "couldn't find relevant information")
	assert.Empty(t, answer.Citations)
}

func TestAsk_RerankFailureIsIgnored(t *testing.T) {
	var results []domain.SearchResult
	for i := 0; i < 15; i++ {
		results = append(results, domain.SearchResult{
			Content:    "chunk",
			FilePath:   "doc.md",
			LineNumber: i + 1,
			Score:      float64(15-i) / 15,
		})
	}
	store := &mockStoreService{results: results}
	embedder := newMockEmbedder(testDims)
	embedder.failRerank = true
	p := newTestPipeline(store, embedder)

	answer, err := p.Ask(context.Background(), "default batch size", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, answer.Text)
}

func TestAsk_CitationsDeduplicated(t *testing.T) {
	store := &mockStoreService{results: []domain.SearchResult{
		{Content: "a", FilePath: "one.md", LineNumber: 1, Score: 0.9},
		{Content: "b", FilePath: "one.md", LineNumber: 8, Score: 0.8},
		{Content: "c", FilePath: `two\deep.md`, LineNumber: 3, Score: 0.7},
	}}
	p := newTestPipeline(store, newMockEmbedder(testDims))

	answer, err := p.Ask(context.Background(), "default batch size", 0)
	require.NoError(t, err)

	require.Len(t, answer.Citations, 2)
	assert.Equal(t, "one.md", answer.Citations[0].FilePath)
	assert.Equal(t, 1, answer.Citations[0].Line)
	assert.Equal(t, "two/deep.md", answer.Citations[1].FilePath)
	assert.Equal(t, "two/deep.md (line 3)", answer.Citations[1].String())
}

func TestAsk_EmptyQuery(t *testing.T) {
	p := newTestPipeline(&mockStoreService{}, newMockEmbedder(testDims))
	_, err := p.Ask(context.Background(), "  ", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCitations_Limit(t *testing.T) {
	var results []domain.SearchResult
	for i := 0; i < 8; i++ {
		results = append(results, domain.SearchResult{
			FilePath:   string(rune('a'+i)) + ".md",
			LineNumber: 1,
		})
	}
	out := citations(results, maxCitations)
	assert.Len(t, out, maxCitations)
}
