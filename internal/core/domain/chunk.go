package domain

import "strings"

// ContentType classifies the shape of a chunk's content.
type ContentType string

// Content types recognised by the chunkers and the query analyzer.
const (
	ContentTypeText  ContentType = "text"
	ContentTypeList  ContentType = "list"
	ContentTypeTable ContentType = "table"
	ContentTypeCode  ContentType = "code"
)

// Backend names for the two point-store instances.
// The primary ("cloud") backend is authoritative; the secondary ("local")
// backend is a best-effort fallback that may be disabled entirely.
const (
	BackendPrimary   = "cloud"
	BackendSecondary = "local"
)

// Payload keys shared between chunks and stored points.
const (
	KeyContent     = "content"
	KeyFilePath    = "file_path"
	KeyLineStart   = "line_start"
	KeyLineEnd     = "line_end"
	KeySection     = "section"
	KeyContentType = "content_type"
	KeyDocType     = "doc_type"
	KeyCodeType    = "code_type"
	KeyLanguage    = "language"
	KeyIsDeleted   = "is_deleted"
)

// Chunk is a contiguous slice of a corpus file together with the metadata
// needed to embed, store and retrieve it. Chunks are produced by the corpus
// chunkers and mutated only through diff-driven indexing or the soft/hard
// delete lifecycle.
type Chunk struct {
	// Content is the raw text of the slice.
	Content string

	// FilePath is the corpus-relative path of the source file.
	// Forward slashes; see NormalizePath.
	FilePath string

	// LineStart and LineEnd are 1-based line bounds within the file.
	LineStart int
	LineEnd   int

	// Section is the enclosing document section (e.g. a markdown heading).
	Section string

	// ContentType classifies the chunk (text, list, table, code).
	ContentType ContentType

	// DocType and CodeType further qualify documentation and code chunks.
	DocType  string
	CodeType string

	// Language is the programming or natural language of the content.
	Language string

	// IsDeleted marks a soft-deleted chunk. Soft-deleted chunks stay
	// physically present but are excluded from every search result.
	IsDeleted bool

	// Extra carries open-ended metadata that the core logic does not
	// interpret. Typed fields above always win on key collisions.
	Extra map[string]any
}

// ChunkKey identifies a chunk within the logical store. Two backends holding
// the same key hold copies of the same chunk; merge keeps at most one.
type ChunkKey struct {
	FilePath  string
	LineStart int
}

// Key returns the merge/dedup key for the chunk.
func (c Chunk) Key() ChunkKey {
	return ChunkKey{FilePath: NormalizePath(c.FilePath), LineStart: c.LineStart}
}

// ID returns the deterministic point id for the chunk: file-anchored when a
// path is known, content-derived otherwise.
func (c Chunk) ID() int64 {
	if c.FilePath != "" {
		return PointID(c.FilePath, c.LineStart)
	}
	return ContentPointID(c.Content)
}

// Payload flattens the chunk into a point payload. Extra keys are merged
// first so the typed fields cannot be shadowed.
func (c Chunk) Payload() map[string]any {
	p := make(map[string]any, len(c.Extra)+10)
	for k, v := range c.Extra {
		p[k] = v
	}
	p[KeyContent] = c.Content
	p[KeyFilePath] = c.FilePath
	p[KeyLineStart] = c.LineStart
	p[KeyLineEnd] = c.LineEnd
	if c.Section != "" {
		p[KeySection] = c.Section
	}
	if c.ContentType != "" {
		p[KeyContentType] = string(c.ContentType)
	}
	if c.DocType != "" {
		p[KeyDocType] = c.DocType
	}
	if c.CodeType != "" {
		p[KeyCodeType] = c.CodeType
	}
	if c.Language != "" {
		p[KeyLanguage] = c.Language
	}
	p[KeyIsDeleted] = c.IsDeleted
	return p
}

// ChunkFromPayload rebuilds a chunk from a stored point payload.
// Unknown keys land in Extra.
func ChunkFromPayload(p map[string]any) Chunk {
	c := Chunk{Extra: make(map[string]any)}
	for k, v := range p {
		switch k {
		case KeyContent:
			c.Content, _ = v.(string)
		case KeyFilePath:
			c.FilePath, _ = v.(string)
		case KeyLineStart:
			c.LineStart = asInt(v)
		case KeyLineEnd:
			c.LineEnd = asInt(v)
		case KeySection:
			c.Section, _ = v.(string)
		case KeyContentType:
			if s, ok := v.(string); ok {
				c.ContentType = ContentType(s)
			}
		case KeyDocType:
			c.DocType, _ = v.(string)
		case KeyCodeType:
			c.CodeType, _ = v.(string)
		case KeyLanguage:
			c.Language, _ = v.(string)
		case KeyIsDeleted:
			c.IsDeleted = asBool(v)
		default:
			c.Extra[k] = v
		}
	}
	return c
}

// SearchResult is a single scored retrieval hit. It is derived, read-only
// state produced per query; Metadata is the full point payload.
type SearchResult struct {
	// Content is the chunk text.
	Content string

	// FilePath is the corpus-relative path of the source file.
	FilePath string

	// LineNumber is the first line of the matched chunk.
	LineNumber int

	// Score is the similarity score from the backend (or the reranker).
	Score float64

	// Backend names the point-store instance that produced the hit
	// ("cloud" or "local").
	Backend string

	// Metadata is the complete point payload.
	Metadata map[string]any
}

// Key returns the merge/dedup key for the result.
func (r SearchResult) Key() ChunkKey {
	return ChunkKey{FilePath: NormalizePath(r.FilePath), LineStart: r.LineNumber}
}

// Deleted reports whether the underlying point is soft-deleted.
func (r SearchResult) Deleted() bool {
	return asBool(r.Metadata[KeyIsDeleted])
}

// Section returns the section tag from the payload, or "" when absent.
func (r SearchResult) Section() string {
	s, _ := r.Metadata[KeySection].(string)
	return s
}

// NormalizePath normalises path separators for cross-platform comparison.
func NormalizePath(path string) string {
	return strings.ReplaceAll(path, `\`, "/")
}

// asInt coerces the numeric types a JSON round-trip can produce.
func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case float32:
		return int(n)
	}
	return 0
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}
