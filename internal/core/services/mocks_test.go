package services

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/custodia-labs/quarry-cli/internal/core/domain"
	"github.com/custodia-labs/quarry-cli/internal/core/ports/driven"
)

// mockBackend is an in-memory PointBackend with switchable failure modes.
type mockBackend struct {
	mu     sync.Mutex
	name   string
	points map[int64]domain.Point

	// queryResults, when set, is returned from Query verbatim.
	queryResults []domain.ScoredPoint

	failQuery      bool
	failScroll     bool
	failSetPayload bool
	rejectFilter   bool

	// failSetPayloadIDs makes SetPayload fail whenever the batch contains
	// one of these ids, and also on the individual retry for them.
	failSetPayloadIDs map[int64]bool

	upserts    int
	deletes    int
	setPayload int
	queryLimit int
}

var _ driven.PointBackend = (*mockBackend)(nil)

func newMockBackend(name string) *mockBackend {
	return &mockBackend{name: name, points: make(map[int64]domain.Point)}
}

func (m *mockBackend) put(p domain.Point) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points[p.ID] = p
}

func (m *mockBackend) Name() string { return m.name }

func (m *mockBackend) Upsert(ctx context.Context, points []domain.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	for _, p := range points {
		m.points[p.ID] = p
	}
	return nil
}

func (m *mockBackend) Retrieve(ctx context.Context, ids []int64, withVectors bool) ([]domain.Point, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Point
	for _, id := range ids {
		if p, ok := m.points[id]; ok {
			if !withVectors {
				p.Vector = nil
			}
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockBackend) Query(ctx context.Context, vector []float32, limit int, filter *domain.Filter) ([]domain.ScoredPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryLimit = limit
	if m.failQuery {
		return nil, domain.ErrBackendUnavailable
	}
	out := m.queryResults
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockBackend) Scroll(ctx context.Context, filter *domain.Filter, limit int, offset int64) ([]domain.Point, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failScroll {
		return nil, 0, domain.ErrBackendUnavailable
	}
	if m.rejectFilter && !filter.Empty() {
		return nil, 0, domain.ErrFilterUnsupported
	}
	ids := make([]int64, 0, len(m.points))
	for id := range m.points {
		if id > offset {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []domain.Point
	var last int64
	for _, id := range ids {
		p := m.points[id]
		if !filter.Matches(p.Payload) {
			continue
		}
		out = append(out, p)
		last = id
		if len(out) == limit {
			break
		}
	}
	if len(out) < limit {
		last = 0
	}
	return out, last, nil
}

func (m *mockBackend) SetPayload(ctx context.Context, ids []int64, payload map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSetPayload {
		return domain.ErrBackendUnavailable
	}
	for _, id := range ids {
		if m.failSetPayloadIDs[id] {
			return errors.New("point rejected")
		}
	}
	m.setPayload++
	for _, id := range ids {
		p, ok := m.points[id]
		if !ok {
			continue
		}
		merged := make(map[string]any, len(p.Payload)+len(payload))
		for k, v := range p.Payload {
			merged[k] = v
		}
		for k, v := range payload {
			merged[k] = v
		}
		p.Payload = merged
		m.points[id] = p
	}
	return nil
}

func (m *mockBackend) Delete(ctx context.Context, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	for _, id := range ids {
		delete(m.points, id)
	}
	return nil
}

func (m *mockBackend) Count(ctx context.Context, filter *domain.Filter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.points {
		if filter.Matches(p.Payload) {
			n++
		}
	}
	return n, nil
}

func (m *mockBackend) Close() error { return nil }

// mockEmbedder is a deterministic EmbeddingService for tests.
type mockEmbedder struct {
	dims       int
	failEmbed  bool
	failRerank bool

	// failTexts fails Embed for specific inputs only.
	failTexts map[string]bool

	// rerankScores maps candidate text to a fixed score.
	rerankScores map[string]float64

	cacheCleared bool
}

var _ driven.EmbeddingService = (*mockEmbedder)(nil)

func newMockEmbedder(dims int) *mockEmbedder {
	return &mockEmbedder{dims: dims}
}

func (m *mockEmbedder) Embed(ctx context.Context, text string, category domain.EmbedCategory) ([]float32, error) {
	if m.failEmbed || m.failTexts[text] {
		return nil, domain.ErrEmbeddingUnavailable
	}
	v := make([]float32, m.dims)
	for i := range v {
		v[i] = float32(len(text)%7) / 7
	}
	return v, nil
}

func (m *mockEmbedder) RerankScore(ctx context.Context, query, candidate string) (float64, error) {
	if m.failRerank {
		return 0, domain.ErrEmbeddingUnavailable
	}
	if s, ok := m.rerankScores[candidate]; ok {
		return s, nil
	}
	return 0.1, nil
}

func (m *mockEmbedder) Dimensions() int    { return m.dims }
func (m *mockEmbedder) ModelName() string  { return "mock-embedder" }
func (m *mockEmbedder) ClearCache()        { m.cacheCleared = true }
func (m *mockEmbedder) Close() error       { return nil }
