package domain

// Point is a stored vector point: a deterministic 63-bit id, an embedding
// and a flat payload. Points are the unit both backends store and the unit
// the CRUD tools expose.
type Point struct {
	ID      int64
	Vector  []float32
	Payload map[string]any
}

// Chunk rebuilds the typed chunk view of the point's payload.
func (p Point) Chunk() Chunk {
	return ChunkFromPayload(p.Payload)
}

// Deleted reports whether the point is soft-deleted.
func (p Point) Deleted() bool {
	return asBool(p.Payload[KeyIsDeleted])
}

// ScoredPoint is a point returned from a similarity query together with
// its score.
type ScoredPoint struct {
	Point
	Score float64
}

// Result converts the scored point into a search result attributed to the
// given backend.
func (sp ScoredPoint) Result(backend string) SearchResult {
	c := sp.Chunk()
	return SearchResult{
		Content:    c.Content,
		FilePath:   c.FilePath,
		LineNumber: c.LineStart,
		Score:      sp.Score,
		Backend:    backend,
		Metadata:   sp.Payload,
	}
}
