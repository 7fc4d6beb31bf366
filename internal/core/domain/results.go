package domain

import "fmt"

// EmbedCategory selects which embedding model handles a text. Documentation
// and code embed better with different models, so the embedding service
// routes by category.
type EmbedCategory string

// Embedding categories.
const (
	EmbedDoc  EmbedCategory = "doc"
	EmbedCode EmbedCategory = "code"
)

// SearchOptions controls a retrieval request.
type SearchOptions struct {
	// TopK is the number of results to return. Zero means the configured
	// default; values above the hard cap are clamped.
	TopK int

	// Filter optionally constrains results by metadata.
	Filter *Filter

	// Category routes the query embedding. Defaults to EmbedDoc.
	Category EmbedCategory

	// Expand enables section expansion: hits pull in their sibling
	// chunks from the same document section.
	Expand bool
}

// BackendStats describes one point-store backend.
type BackendStats struct {
	Name      string `json:"name"`
	Points    int    `json:"points"`
	Deleted   int    `json:"deleted"`
	Available bool   `json:"available"`
}

// StoreStats is the aggregate health/size snapshot of the hybrid store.
type StoreStats struct {
	Backends   []BackendStats `json:"backends"`
	Dimensions int            `json:"dimensions"`
	Model      string         `json:"model"`
}

// CleanupResult summarises a soft-delete cleanup pass.
type CleanupResult struct {
	// Scanned is the number of live points examined.
	Scanned int `json:"scanned"`

	// Marked is the number of points marked deleted (or that would be,
	// in a dry run).
	Marked int `json:"marked"`

	// Failed is the number of points that could not be marked.
	Failed int `json:"failed"`

	// DryRun reports whether any writes were actually performed.
	DryRun bool `json:"dry_run"`

	// Orphans lists the file paths whose points were marked.
	Orphans []string `json:"orphans,omitempty"`
}

// IndexFileResult summarises the incremental diff applied for one file.
type IndexFileResult struct {
	FilePath string `json:"file_path"`
	Added    int    `json:"added"`
	Updated  int    `json:"updated"`
	Skipped  int    `json:"skipped"`
	Deleted  int    `json:"deleted"`

	// Failed counts chunks that could not be written (embedding
	// failures). They are excluded from Added/Updated.
	Failed int `json:"failed"`
}

// Add accumulates another file's counts into the receiver.
func (r *IndexFileResult) Add(other IndexFileResult) {
	r.Added += other.Added
	r.Updated += other.Updated
	r.Skipped += other.Skipped
	r.Deleted += other.Deleted
	r.Failed += other.Failed
}

// IndexCorpusResult summarises a full corpus indexing job.
type IndexCorpusResult struct {
	// JobID identifies the indexing run in logs.
	JobID string `json:"job_id"`

	// Files is the number of files processed; Failed counts files that
	// errored and were skipped without aborting the job.
	Files  int `json:"files"`
	Failed int `json:"failed"`

	Added   int `json:"added"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Deleted int `json:"deleted"`

	// CleanedUp is the number of orphaned points soft-deleted after the
	// walk (files that vanished from the corpus).
	CleanedUp int `json:"cleaned_up"`
}

// Citation points a reader at the source of an answer.
type Citation struct {
	FilePath string `json:"file_path"`
	Line     int    `json:"line"`
}

// String renders the citation in "path (line N)" form.
func (c Citation) String() string {
	return fmt.Sprintf("%s (line %d)", c.FilePath, c.Line)
}

// Answer is the result of the full question-answering pipeline.
type Answer struct {
	// Text is the synthesized answer.
	Text string `json:"text"`

	// Intent and Confidence echo the query analysis that shaped the
	// pipeline.
	Intent     QueryIntent `json:"intent"`
	Confidence float64     `json:"confidence"`

	// Citations lists up to five deduplicated sources.
	Citations []Citation `json:"citations"`

	// Sources are the retrieval hits the answer was built from.
	Sources []SearchResult `json:"-"`
}
