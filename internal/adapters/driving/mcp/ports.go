package mcp

import (
	"github.com/custodia-labs/quarry-cli/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Store provides hybrid search, point CRUD and the delete lifecycle.
	Store driving.StoreService

	// Ask provides the question-answering pipeline.
	Ask driving.AskService

	// Index provides corpus indexing. Optional; the index tool is only
	// registered when present.
	Index driving.IndexService

	// ClearCache drops cached embeddings. Optional.
	ClearCache func()
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Store == nil {
		return ErrMissingStoreService
	}
	if p.Ask == nil {
		return ErrMissingAskService
	}
	return nil
}
