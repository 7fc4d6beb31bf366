// Package qdrant implements the PointBackend port as a minimal REST client
// to a Qdrant instance. It assumes cosine distance and creates the
// collection if missing.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/quarry-cli/internal/core/domain"
	"github.com/custodia-labs/quarry-cli/internal/core/ports/driven"
	"github.com/custodia-labs/quarry-cli/internal/logger"
)

// Config configures the remote backend.
type Config struct {
	// URL is the base URL of the Qdrant instance, e.g. "http://localhost:6333".
	URL string

	// APIKey is sent in the api-key header when set.
	APIKey string

	// Collection is the logical collection name.
	Collection string

	// Name is the backend's logical name as seen by the hybrid store.
	// Defaults to "cloud".
	Name string

	// Timeout bounds each HTTP request. Defaults to 15s.
	Timeout time.Duration

	// RateLimit throttles outgoing requests.
	RateLimit RateLimitConfig
}

// Backend is a remote Qdrant collection.
type Backend struct {
	url        string
	apiKey     string
	collection string
	name       string
	client     *http.Client
	limiter    *RateLimiter
}

var _ driven.PointBackend = (*Backend)(nil)

// New creates the backend and ensures the collection exists with the given
// vector width.
func New(cfg Config, dimensions int) (*Backend, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant: URL is required: %w", domain.ErrInvalidInput)
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant: collection is required: %w", domain.ErrInvalidInput)
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("qdrant: invalid dimension %d: %w", dimensions, domain.ErrInvalidInput)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	name := cfg.Name
	if name == "" {
		name = domain.BackendPrimary
	}
	b := &Backend{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		name:       name,
		client:     &http.Client{Timeout: timeout},
		limiter:    NewRateLimiter(cfg.RateLimit),
	}
	if err := b.ensureCollection(context.Background(), dimensions); err != nil {
		return nil, fmt.Errorf("qdrant: ensure collection %s: %w", cfg.Collection, err)
	}
	return b, nil
}

// Name returns the backend's logical name.
func (b *Backend) Name() string { return b.name }

// ensureCollection creates the collection if missing. Qdrant returns 200
// when it already exists with the same schema.
func (b *Backend) ensureCollection(ctx context.Context, dimensions int) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimensions,
			"distance": "Cosine",
		},
	}
	return b.do(ctx, http.MethodPut, "/collections/"+b.collection, body, nil)
}

// Upsert inserts or replaces points by id.
func (b *Backend) Upsert(ctx context.Context, points []domain.Point) error {
	if len(points) == 0 {
		return nil
	}
	raw := make([]map[string]any, len(points))
	for i, p := range points {
		raw[i] = map[string]any{
			"id":      p.ID,
			"vector":  p.Vector,
			"payload": p.Payload,
		}
	}
	body := map[string]any{"points": raw}
	return b.do(ctx, http.MethodPut, "/collections/"+b.collection+"/points?wait=true", body, nil)
}

// Retrieve fetches points by id.
func (b *Backend) Retrieve(ctx context.Context, ids []int64, withVectors bool) ([]domain.Point, error) {
	body := map[string]any{
		"ids":          ids,
		"with_payload": true,
		"with_vector":  withVectors,
	}
	var resp struct {
		Result []rawPoint `json:"result"`
	}
	if err := b.do(ctx, http.MethodPost, "/collections/"+b.collection+"/points", body, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Point, 0, len(resp.Result))
	for _, r := range resp.Result {
		out = append(out, r.point())
	}
	return out, nil
}

// Query runs nearest-neighbour search.
func (b *Backend) Query(ctx context.Context, vector []float32, limit int, filter *domain.Filter) ([]domain.ScoredPoint, error) {
	body := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if f := encodeFilter(filter); f != nil {
		body["filter"] = f
	}
	var resp struct {
		Result []rawScoredPoint `json:"result"`
	}
	if err := b.do(ctx, http.MethodPost, "/collections/"+b.collection+"/points/search", body, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.ScoredPoint, 0, len(resp.Result))
	for _, r := range resp.Result {
		out = append(out, domain.ScoredPoint{Point: r.point(), Score: r.Score})
	}
	return out, nil
}

// Scroll pages through points matching a filter.
func (b *Backend) Scroll(ctx context.Context, filter *domain.Filter, limit int, offset int64) ([]domain.Point, int64, error) {
	body := map[string]any{
		"limit":        limit,
		"with_payload": true,
	}
	if f := encodeFilter(filter); f != nil {
		body["filter"] = f
	}
	if offset != 0 {
		body["offset"] = offset
	}
	var resp struct {
		Result struct {
			Points         []rawPoint      `json:"points"`
			NextPageOffset json.RawMessage `json:"next_page_offset"`
		} `json:"result"`
	}
	if err := b.do(ctx, http.MethodPost, "/collections/"+b.collection+"/points/scroll", body, &resp); err != nil {
		return nil, 0, err
	}
	out := make([]domain.Point, 0, len(resp.Result.Points))
	for _, r := range resp.Result.Points {
		out = append(out, r.point())
	}
	var next int64
	if len(resp.Result.NextPageOffset) > 0 && string(resp.Result.NextPageOffset) != "null" {
		if err := json.Unmarshal(resp.Result.NextPageOffset, &next); err != nil {
			next = 0
		}
	}
	return out, next, nil
}

// SetPayload merges payload keys into the given points.
func (b *Backend) SetPayload(ctx context.Context, ids []int64, payload map[string]any) error {
	body := map[string]any{
		"payload": payload,
		"points":  ids,
	}
	return b.do(ctx, http.MethodPost, "/collections/"+b.collection+"/points/payload?wait=true", body, nil)
}

// Delete permanently removes points by id.
func (b *Backend) Delete(ctx context.Context, ids []int64) error {
	body := map[string]any{"points": ids}
	return b.do(ctx, http.MethodPost, "/collections/"+b.collection+"/points/delete?wait=true", body, nil)
}

// Count returns the number of points matching the filter.
func (b *Backend) Count(ctx context.Context, filter *domain.Filter) (int, error) {
	body := map[string]any{"exact": true}
	if f := encodeFilter(filter); f != nil {
		body["filter"] = f
	}
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := b.do(ctx, http.MethodPost, "/collections/"+b.collection+"/points/count", body, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

// Close releases resources.
func (b *Backend) Close() error {
	b.client.CloseIdleConnections()
	return nil
}

type rawPoint struct {
	ID      json.Number    `json:"id"`
	Vector  []float32      `json:"vector,omitempty"`
	Payload map[string]any `json:"payload"`
}

func (r rawPoint) point() domain.Point {
	id, _ := strconv.ParseInt(r.ID.String(), 10, 64)
	return domain.Point{ID: id, Vector: r.Vector, Payload: r.Payload}
}

type rawScoredPoint struct {
	rawPoint
	Score float64 `json:"score"`
}

// encodeFilter translates the domain filter into Qdrant's filter JSON.
func encodeFilter(f *domain.Filter) map[string]any {
	if f.Empty() {
		return nil
	}
	out := make(map[string]any)
	if len(f.Must) > 0 {
		out["must"] = encodeConditions(f.Must)
	}
	if len(f.Should) > 0 {
		out["should"] = encodeConditions(f.Should)
	}
	if len(f.MustNot) > 0 {
		out["must_not"] = encodeConditions(f.MustNot)
	}
	return out
}

func encodeConditions(conds []domain.Condition) []map[string]any {
	out := make([]map[string]any, len(conds))
	for i, c := range conds {
		out[i] = map[string]any{
			"key":   c.Key,
			"match": map[string]any{"value": c.Match},
		}
	}
	return out
}

// do sends one rate-limited request and decodes the response. Connectivity
// failures map to ErrBackendUnavailable; a filter rejected for lack of a
// payload index maps to ErrFilterUnsupported so callers can filter in
// process.
func (b *Backend) do(ctx context.Context, method, path string, body, out any) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, b.url+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("api-key", b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", domain.ErrBackendUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		b.limiter.RecordRateLimitError(retryAfter)
		logger.Warn("qdrant rate limited, backing off %ds", retryAfter)
		return fmt.Errorf("%w: %s %s: rate limited", domain.ErrBackendUnavailable, method, path)
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if strings.Contains(string(msg), "Index required") {
			return fmt.Errorf("%w: %s", domain.ErrFilterUnsupported, string(msg))
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: %s %s: %s", domain.ErrBackendUnavailable, method, path, resp.Status)
		}
		return fmt.Errorf("qdrant %s %s failed: %s: %s", method, path, resp.Status, string(msg))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
