package mcp

import (
	"context"
	"math"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/quarry-cli/internal/core/domain"
)

// Metadata annotates every tool response with timing and the operation
// name.
type Metadata struct {
	TimingMS  float64 `json:"timing_ms"`
	Operation string  `json:"operation"`
}

// Response is the uniform tool response envelope. Failures are reported
// inside the envelope; a raw error never crosses the tool boundary.
type Response[T any] struct {
	Success  bool        `json:"success"`
	Data     T           `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Errors   []ToolError `json:"errors,omitempty"`
}

func newMetadata(operation string, start time.Time) Metadata {
	elapsed := float64(time.Since(start).Microseconds()) / 1000
	return Metadata{
		TimingMS:  math.Round(elapsed*100) / 100,
		Operation: operation,
	}
}

func succeed[T any](operation string, start time.Time, data T) Response[T] {
	return Response[T]{
		Success:  true,
		Data:     data,
		Metadata: newMetadata(operation, start),
	}
}

func fail[T any](operation string, start time.Time, err error) Response[T] {
	return Response[T]{
		Metadata: newMetadata(operation, start),
		Errors:   []ToolError{formatError(err)},
	}
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a natural-language question from the indexed corpus, with citations",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Hybrid semantic search across the indexed corpus",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "add_vector",
		Description: "Store new content with embeddings and metadata",
	}, s.handleAddVector)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_vector",
		Description: "Retrieve a stored vector entry by ID",
	}, s.handleGetVector)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "update_vector",
		Description: "Update content and/or metadata of an existing vector entry",
	}, s.handleUpdateVector)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_vector",
		Description: "Delete a stored vector entry (soft delete by default)",
	}, s.handleDeleteVector)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_similar",
		Description: "Semantic similarity search with an optional metadata filter",
	}, s.handleSearchSimilar)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_by_metadata",
		Description: "Retrieve entries matching a metadata filter, paged",
	}, s.handleSearchByMetadata)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "cleanup_deleted_files",
		Description: "Soft-delete entries whose source files no longer exist (dry run by default)",
	}, s.handleCleanup)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "recover_deleted",
		Description: "Clear soft-delete marks, for one file or the whole store",
	}, s.handleRecover)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "permanent_delete",
		Description: "Permanently remove soft-deleted entries (requires confirm)",
	}, s.handlePurge)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_all",
		Description: "Drop every entry from every backend (requires confirm)",
	}, s.handleDeleteAll)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "stats",
		Description: "Report per-backend point counts and availability",
	}, s.handleStats)

	if s.ports.Index != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "index",
			Description: "Index a corpus directory, or a single file within it",
		}, s.handleIndex)
	}

	if s.ports.ClearCache != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "clear_cache",
			Description: "Drop all cached embeddings",
		}, s.handleClearCache)
	}
}

// ---- ask ----

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Query string `json:"query" jsonschema:"the question to answer"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"maximum results to retrieve before synthesis"`
}

// AskData is the payload of an ask response.
type AskData struct {
	Answer     string   `json:"answer"`
	Intent     string   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Citations  []string `json:"citations,omitempty"`
}

func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, Response[AskData], error) {
	start := time.Now()

	answer, err := s.ports.Ask.Ask(ctx, input.Query, input.TopK)
	if err != nil {
		return nil, fail[AskData]("ask", start, err), nil
	}

	citations := make([]string, 0, len(answer.Citations))
	for _, c := range answer.Citations {
		citations = append(citations, c.String())
	}

	return nil, succeed("ask", start, AskData{
		Answer:     answer.Text,
		Intent:     string(answer.Intent),
		Confidence: answer.Confidence,
		Citations:  citations,
	}), nil
}

// ---- search ----

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query  string         `json:"query" jsonschema:"the search query"`
	TopK   int            `json:"top_k,omitempty" jsonschema:"maximum number of results (default 5)"`
	Filter map[string]any `json:"filter,omitempty" jsonschema:"metadata filter with must/should/must_not conditions"`
	Expand bool           `json:"expand,omitempty" jsonschema:"expand hits to their full document sections"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	VectorID   string  `json:"vector_id,omitempty"`
	Content    string  `json:"content"`
	FilePath   string  `json:"file_path"`
	LineNumber int     `json:"line_number"`
	Score      float64 `json:"score"`
	Backend    string  `json:"backend"`
}

// SearchData is the payload of a search response.
type SearchData struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, Response[SearchData], error) {
	start := time.Now()

	opts := domain.SearchOptions{TopK: input.TopK, Expand: input.Expand}
	if len(input.Filter) > 0 {
		filter, err := domain.ParseFilter(input.Filter)
		if err != nil {
			return nil, fail[SearchData]("search", start, err), nil
		}
		opts.Filter = filter
	}

	results, err := s.ports.Store.Search(ctx, input.Query, opts)
	if err != nil {
		return nil, fail[SearchData]("search", start, err), nil
	}

	return nil, succeed("search", start, searchData(results)), nil
}

func searchData(results []domain.SearchResult) SearchData {
	out := SearchData{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}
	for i, r := range results {
		out.Results[i] = SearchResultOutput{
			VectorID:   domain.FormatPointID(domain.PointID(r.FilePath, r.LineNumber)),
			Content:    r.Content,
			FilePath:   r.FilePath,
			LineNumber: r.LineNumber,
			Score:      r.Score,
			Backend:    r.Backend,
		}
	}
	return out
}

// ---- vector CRUD ----

// AddVectorInput is the input schema for the add_vector tool.
type AddVectorInput struct {
	Content  string         `json:"content" jsonschema:"the text to store and embed"`
	Metadata map[string]any `json:"metadata,omitempty" jsonschema:"payload fields stored with the entry"`
	Vector   []float64      `json:"vector,omitempty" jsonschema:"precomputed embedding; omitted content is embedded server-side"`
}

// AddVectorData is the payload of an add_vector response.
type AddVectorData struct {
	VectorID string `json:"vector_id"`
}

func (s *Server) handleAddVector(ctx context.Context, _ *mcp.CallToolRequest, input AddVectorInput) (*mcp.CallToolResult, Response[AddVectorData], error) {
	start := time.Now()

	id, err := s.ports.Store.Add(ctx, input.Content, input.Metadata, toFloat32(input.Vector))
	if err != nil {
		return nil, fail[AddVectorData]("add_vector", start, err), nil
	}

	return nil, succeed("add_vector", start, AddVectorData{
		VectorID: domain.FormatPointID(id),
	}), nil
}

// GetVectorInput is the input schema for the get_vector tool.
type GetVectorInput struct {
	VectorID      string `json:"vector_id" jsonschema:"the entry id as a decimal string"`
	IncludeVector bool   `json:"include_vector,omitempty" jsonschema:"include the embedding in the response"`
}

// GetVectorData is the payload of a get_vector response.
type GetVectorData struct {
	VectorID  string         `json:"vector_id"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata"`
	Vector    []float64      `json:"vector,omitempty"`
	IsDeleted bool           `json:"is_deleted"`
}

func (s *Server) handleGetVector(ctx context.Context, _ *mcp.CallToolRequest, input GetVectorInput) (*mcp.CallToolResult, Response[GetVectorData], error) {
	start := time.Now()

	id, err := domain.ParsePointID(input.VectorID)
	if err != nil {
		return nil, fail[GetVectorData]("get_vector", start, err), nil
	}

	point, err := s.ports.Store.Get(ctx, id, input.IncludeVector)
	if err != nil {
		return nil, fail[GetVectorData]("get_vector", start, err), nil
	}

	chunk := point.Chunk()
	data := GetVectorData{
		VectorID:  domain.FormatPointID(point.ID),
		Content:   chunk.Content,
		Metadata:  point.Payload,
		IsDeleted: point.Deleted(),
	}
	if input.IncludeVector {
		data.Vector = toFloat64(point.Vector)
	}

	return nil, succeed("get_vector", start, data), nil
}

// UpdateVectorInput is the input schema for the update_vector tool.
type UpdateVectorInput struct {
	VectorID string         `json:"vector_id" jsonschema:"the entry id as a decimal string"`
	Content  string         `json:"content,omitempty" jsonschema:"replacement text, re-embedded when set"`
	Metadata map[string]any `json:"metadata,omitempty" jsonschema:"payload fields to merge"`
	Vector   []float64      `json:"vector,omitempty" jsonschema:"replacement embedding"`
}

// UpdateVectorData is the payload of an update_vector response.
type UpdateVectorData struct {
	VectorID string `json:"vector_id"`
	Updated  bool   `json:"updated"`
}

func (s *Server) handleUpdateVector(ctx context.Context, _ *mcp.CallToolRequest, input UpdateVectorInput) (*mcp.CallToolResult, Response[UpdateVectorData], error) {
	start := time.Now()

	id, err := domain.ParsePointID(input.VectorID)
	if err != nil {
		return nil, fail[UpdateVectorData]("update_vector", start, err), nil
	}

	if err := s.ports.Store.Update(ctx, id, input.Content, input.Metadata, toFloat32(input.Vector)); err != nil {
		return nil, fail[UpdateVectorData]("update_vector", start, err), nil
	}

	return nil, succeed("update_vector", start, UpdateVectorData{
		VectorID: input.VectorID,
		Updated:  true,
	}), nil
}

// DeleteVectorInput is the input schema for the delete_vector tool.
type DeleteVectorInput struct {
	VectorID   string `json:"vector_id" jsonschema:"the entry id as a decimal string"`
	SoftDelete bool   `json:"soft_delete,omitempty" jsonschema:"mark as deleted instead of removing physically"`
}

// DeleteVectorData is the payload of a delete_vector response.
type DeleteVectorData struct {
	VectorID  string `json:"vector_id"`
	Permanent bool   `json:"permanent"`
}

func (s *Server) handleDeleteVector(ctx context.Context, _ *mcp.CallToolRequest, input DeleteVectorInput) (*mcp.CallToolResult, Response[DeleteVectorData], error) {
	start := time.Now()

	id, err := domain.ParsePointID(input.VectorID)
	if err != nil {
		return nil, fail[DeleteVectorData]("delete_vector", start, err), nil
	}

	permanent := !input.SoftDelete
	if err := s.ports.Store.Delete(ctx, id, permanent); err != nil {
		return nil, fail[DeleteVectorData]("delete_vector", start, err), nil
	}

	return nil, succeed("delete_vector", start, DeleteVectorData{
		VectorID:  input.VectorID,
		Permanent: permanent,
	}), nil
}

// ---- similarity and metadata search ----

// SearchSimilarInput is the input schema for the search_similar tool.
type SearchSimilarInput struct {
	Query  string         `json:"query,omitempty" jsonschema:"text to embed and search with"`
	Vector []float64      `json:"vector,omitempty" jsonschema:"precomputed query embedding"`
	TopK   int            `json:"top_k,omitempty" jsonschema:"maximum number of results (default 5)"`
	Filter map[string]any `json:"filter,omitempty" jsonschema:"metadata filter with must/should/must_not conditions"`
}

func (s *Server) handleSearchSimilar(ctx context.Context, _ *mcp.CallToolRequest, input SearchSimilarInput) (*mcp.CallToolResult, Response[SearchData], error) {
	start := time.Now()

	opts := domain.SearchOptions{TopK: input.TopK}
	if len(input.Filter) > 0 {
		filter, err := domain.ParseFilter(input.Filter)
		if err != nil {
			return nil, fail[SearchData]("search_similar", start, err), nil
		}
		opts.Filter = filter
	}

	var results []domain.SearchResult
	var err error
	if len(input.Vector) > 0 {
		results, err = s.ports.Store.SearchVector(ctx, toFloat32(input.Vector), opts)
	} else {
		results, err = s.ports.Store.Search(ctx, input.Query, opts)
	}
	if err != nil {
		return nil, fail[SearchData]("search_similar", start, err), nil
	}

	return nil, succeed("search_similar", start, searchData(results)), nil
}

// SearchByMetadataInput is the input schema for the search_by_metadata tool.
type SearchByMetadataInput struct {
	Filter map[string]any `json:"filter" jsonschema:"metadata filter with must/should/must_not conditions"`
	Limit  int            `json:"limit,omitempty" jsonschema:"maximum entries per page (default 10)"`
	Offset string         `json:"offset,omitempty" jsonschema:"resume token from a previous page"`
}

// MetadataEntry is one scanned point in a search_by_metadata response.
type MetadataEntry struct {
	VectorID  string         `json:"vector_id"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata"`
	IsDeleted bool           `json:"is_deleted"`
}

// SearchByMetadataData is the payload of a search_by_metadata response.
type SearchByMetadataData struct {
	Entries    []MetadataEntry `json:"entries"`
	Count      int             `json:"count"`
	NextOffset string          `json:"next_offset,omitempty"`
}

func (s *Server) handleSearchByMetadata(ctx context.Context, _ *mcp.CallToolRequest, input SearchByMetadataInput) (*mcp.CallToolResult, Response[SearchByMetadataData], error) {
	start := time.Now()

	filter, err := domain.ParseFilter(input.Filter)
	if err != nil {
		return nil, fail[SearchByMetadataData]("search_by_metadata", start, err), nil
	}

	var offset int64
	if input.Offset != "" {
		offset, err = domain.ParsePointID(input.Offset)
		if err != nil {
			return nil, fail[SearchByMetadataData]("search_by_metadata", start, err), nil
		}
	}

	points, next, err := s.ports.Store.SearchByMetadata(ctx, filter, input.Limit, offset)
	if err != nil {
		return nil, fail[SearchByMetadataData]("search_by_metadata", start, err), nil
	}

	data := SearchByMetadataData{
		Entries: make([]MetadataEntry, len(points)),
		Count:   len(points),
	}
	for i, p := range points {
		data.Entries[i] = MetadataEntry{
			VectorID:  domain.FormatPointID(p.ID),
			Content:   p.Chunk().Content,
			Metadata:  p.Payload,
			IsDeleted: p.Deleted(),
		}
	}
	if next != 0 {
		data.NextOffset = domain.FormatPointID(next)
	}

	return nil, succeed("search_by_metadata", start, data), nil
}

// ---- delete lifecycle ----

// CleanupInput is the input schema for the cleanup_deleted_files tool.
type CleanupInput struct {
	ExistingPaths []string `json:"existing_paths" jsonschema:"corpus-relative paths of the files that still exist"`
	Backend       string   `json:"backend,omitempty" jsonschema:"restrict to one backend (cloud or local); empty means all"`
	Commit        bool     `json:"commit,omitempty" jsonschema:"apply the soft-delete marks; defaults to a dry run"`
}

// CleanupData is the payload of a cleanup_deleted_files response.
type CleanupData struct {
	Scanned int      `json:"scanned"`
	Marked  int      `json:"marked"`
	Failed  int      `json:"failed"`
	DryRun  bool     `json:"dry_run"`
	Orphans []string `json:"orphans,omitempty"`
}

func (s *Server) handleCleanup(ctx context.Context, _ *mcp.CallToolRequest, input CleanupInput) (*mcp.CallToolResult, Response[CleanupData], error) {
	start := time.Now()

	result, err := s.ports.Store.CleanupDeletedFiles(ctx, input.ExistingPaths, input.Backend, !input.Commit)
	if err != nil {
		return nil, fail[CleanupData]("cleanup_deleted_files", start, err), nil
	}

	return nil, succeed("cleanup_deleted_files", start, CleanupData{
		Scanned: result.Scanned,
		Marked:  result.Marked,
		Failed:  result.Failed,
		DryRun:  result.DryRun,
		Orphans: result.Orphans,
	}), nil
}

// RecoverInput is the input schema for the recover_deleted tool.
type RecoverInput struct {
	FilePath string `json:"file_path,omitempty" jsonschema:"restrict recovery to one file; empty recovers everything"`
}

// RecoverData is the payload of a recover_deleted response.
type RecoverData struct {
	Recovered int `json:"recovered"`
}

func (s *Server) handleRecover(ctx context.Context, _ *mcp.CallToolRequest, input RecoverInput) (*mcp.CallToolResult, Response[RecoverData], error) {
	start := time.Now()

	count, err := s.ports.Store.RecoverDeleted(ctx, input.FilePath)
	if err != nil {
		return nil, fail[RecoverData]("recover_deleted", start, err), nil
	}

	return nil, succeed("recover_deleted", start, RecoverData{Recovered: count}), nil
}

// PurgeInput is the input schema for the permanent_delete tool.
type PurgeInput struct {
	FilePath string `json:"file_path,omitempty" jsonschema:"restrict the purge to one file; empty purges everything flagged"`
	Confirm  bool   `json:"confirm" jsonschema:"must be true; permanent deletion is irreversible"`
}

// PurgeData is the payload of a permanent_delete response.
type PurgeData struct {
	Purged int `json:"purged"`
}

func (s *Server) handlePurge(ctx context.Context, _ *mcp.CallToolRequest, input PurgeInput) (*mcp.CallToolResult, Response[PurgeData], error) {
	start := time.Now()

	count, err := s.ports.Store.PurgeDeleted(ctx, input.FilePath, input.Confirm)
	if err != nil {
		return nil, fail[PurgeData]("permanent_delete", start, err), nil
	}

	return nil, succeed("permanent_delete", start, PurgeData{Purged: count}), nil
}

// DeleteAllInput is the input schema for the delete_all tool.
type DeleteAllInput struct {
	Confirm bool `json:"confirm" jsonschema:"must be true; dropping the store is irreversible"`
}

// DeleteAllData is the payload of a delete_all response.
type DeleteAllData struct {
	Deleted bool `json:"deleted"`
}

func (s *Server) handleDeleteAll(ctx context.Context, _ *mcp.CallToolRequest, input DeleteAllInput) (*mcp.CallToolResult, Response[DeleteAllData], error) {
	start := time.Now()

	if err := s.ports.Store.DeleteAll(ctx, input.Confirm); err != nil {
		return nil, fail[DeleteAllData]("delete_all", start, err), nil
	}

	return nil, succeed("delete_all", start, DeleteAllData{Deleted: true}), nil
}

// ---- stats, index, cache ----

// StatsInput is the input schema for the stats tool.
type StatsInput struct{}

// BackendStatsOutput reports one backend's state.
type BackendStatsOutput struct {
	Name      string `json:"name"`
	Points    int    `json:"points"`
	Deleted   int    `json:"deleted"`
	Available bool   `json:"available"`
}

// StatsData is the payload of a stats response.
type StatsData struct {
	Backends   []BackendStatsOutput `json:"backends"`
	Dimensions int                  `json:"dimensions"`
	Model      string               `json:"model"`
}

func (s *Server) handleStats(ctx context.Context, _ *mcp.CallToolRequest, _ StatsInput) (*mcp.CallToolResult, Response[StatsData], error) {
	start := time.Now()

	stats, err := s.ports.Store.Stats(ctx)
	if err != nil {
		return nil, fail[StatsData]("stats", start, err), nil
	}

	data := StatsData{
		Backends:   make([]BackendStatsOutput, len(stats.Backends)),
		Dimensions: stats.Dimensions,
		Model:      stats.Model,
	}
	for i, b := range stats.Backends {
		data.Backends[i] = BackendStatsOutput{
			Name:      b.Name,
			Points:    b.Points,
			Deleted:   b.Deleted,
			Available: b.Available,
		}
	}

	return nil, succeed("stats", start, data), nil
}

// IndexInput is the input schema for the index tool.
type IndexInput struct {
	Root string `json:"root" jsonschema:"the corpus root directory"`
	Path string `json:"path,omitempty" jsonschema:"a single corpus-relative file to index; empty indexes the whole corpus"`
}

// IndexData is the payload of an index response.
type IndexData struct {
	JobID     string `json:"job_id,omitempty"`
	Files     int    `json:"files"`
	Failed    int    `json:"failed"`
	Added     int    `json:"added"`
	Updated   int    `json:"updated"`
	Skipped   int    `json:"skipped"`
	Deleted   int    `json:"deleted"`
	CleanedUp int    `json:"cleaned_up,omitempty"`
}

func (s *Server) handleIndex(ctx context.Context, _ *mcp.CallToolRequest, input IndexInput) (*mcp.CallToolResult, Response[IndexData], error) {
	start := time.Now()

	if input.Path != "" {
		result, err := s.ports.Index.IndexFile(ctx, input.Root, input.Path)
		if err != nil {
			return nil, fail[IndexData]("index", start, err), nil
		}
		return nil, succeed("index", start, IndexData{
			Files:   1,
			Failed:  result.Failed,
			Added:   result.Added,
			Updated: result.Updated,
			Skipped: result.Skipped,
			Deleted: result.Deleted,
		}), nil
	}

	result, err := s.ports.Index.IndexCorpus(ctx, input.Root)
	if err != nil {
		return nil, fail[IndexData]("index", start, err), nil
	}
	return nil, succeed("index", start, IndexData{
		JobID:     result.JobID,
		Files:     result.Files,
		Failed:    result.Failed,
		Added:     result.Added,
		Updated:   result.Updated,
		Skipped:   result.Skipped,
		Deleted:   result.Deleted,
		CleanedUp: result.CleanedUp,
	}), nil
}

// ClearCacheInput is the input schema for the clear_cache tool.
type ClearCacheInput struct{}

// ClearCacheData is the payload of a clear_cache response.
type ClearCacheData struct {
	Cleared bool `json:"cleared"`
}

func (s *Server) handleClearCache(_ context.Context, _ *mcp.CallToolRequest, _ ClearCacheInput) (*mcp.CallToolResult, Response[ClearCacheData], error) {
	start := time.Now()
	s.ports.ClearCache()
	return nil, succeed("clear_cache", start, ClearCacheData{Cleared: true}), nil
}

func toFloat32(v []float64) []float32 {
	if len(v) == 0 {
		return nil
	}
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

func toFloat64(v []float32) []float64 {
	if len(v) == 0 {
		return nil
	}
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
