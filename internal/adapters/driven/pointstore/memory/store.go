// Package memory provides an in-process point backend. It backs tests and
// quick local experiments; nothing is persisted.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/quarry-cli/internal/core/domain"
)

// Backend stores points in a map guarded by a mutex. It implements the
// same contract as the durable backends, including in-process filter
// evaluation, so it can stand in for either of them.
type Backend struct {
	mu     sync.RWMutex
	name   string
	points map[int64]domain.Point
}

// New returns an empty backend reporting the given logical name.
func New(name string) *Backend {
	return &Backend{
		name:   name,
		points: make(map[int64]domain.Point),
	}
}

func (b *Backend) Name() string {
	return b.name
}

func (b *Backend) Upsert(_ context.Context, points []domain.Point) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range points {
		b.points[p.ID] = clonePoint(p)
	}
	return nil
}

func (b *Backend) Retrieve(_ context.Context, ids []int64, withVectors bool) ([]domain.Point, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]domain.Point, 0, len(ids))
	for _, id := range ids {
		p, ok := b.points[id]
		if !ok {
			continue
		}
		c := clonePoint(p)
		if !withVectors {
			c.Vector = nil
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (b *Backend) Query(_ context.Context, vector []float32, limit int, filter *domain.Filter) ([]domain.ScoredPoint, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	scored := make([]domain.ScoredPoint, 0, len(b.points))
	for _, p := range b.points {
		if filter != nil && !filter.Matches(p.Payload) {
			continue
		}
		c := clonePoint(p)
		scored = append(scored, domain.ScoredPoint{
			Point: c,
			Score: cosineSimilarity(vector, p.Vector),
		})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func (b *Backend) Scroll(_ context.Context, filter *domain.Filter, limit int, offset int64) ([]domain.Point, int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := make([]int64, 0, len(b.points))
	for id := range b.points {
		if id > offset {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]domain.Point, 0, limit)
	var next int64
	for _, id := range ids {
		p := b.points[id]
		if filter == nil || filter.Matches(p.Payload) {
			out = append(out, clonePoint(p))
		}
		if limit > 0 && len(out) == limit {
			if id != ids[len(ids)-1] {
				next = id
			}
			break
		}
	}
	return out, next, nil
}

func (b *Backend) SetPayload(_ context.Context, ids []int64, payload map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, id := range ids {
		p, ok := b.points[id]
		if !ok {
			continue
		}
		if p.Payload == nil {
			p.Payload = make(map[string]any, len(payload))
		}
		for k, v := range payload {
			p.Payload[k] = v
		}
		b.points[id] = p
	}
	return nil
}

func (b *Backend) Delete(_ context.Context, ids []int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range ids {
		delete(b.points, id)
	}
	return nil
}

func (b *Backend) Count(_ context.Context, filter *domain.Filter) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if filter == nil {
		return len(b.points), nil
	}
	n := 0
	for _, p := range b.points {
		if filter.Matches(p.Payload) {
			n++
		}
	}
	return n, nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.points = make(map[int64]domain.Point)
	return nil
}

func clonePoint(p domain.Point) domain.Point {
	c := domain.Point{ID: p.ID}
	if p.Vector != nil {
		c.Vector = make([]float32, len(p.Vector))
		copy(c.Vector, p.Vector)
	}
	if p.Payload != nil {
		c.Payload = make(map[string]any, len(p.Payload))
		for k, v := range p.Payload {
			c.Payload[k] = v
		}
	}
	return c
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
