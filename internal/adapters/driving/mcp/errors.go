// Package mcp provides an MCP (Model Context Protocol) server adapter for
// quarry. It exposes retrieval, indexing and point CRUD operations as tools
// an AI assistant can call.
package mcp

import (
	"errors"

	"github.com/custodia-labs/quarry-cli/internal/core/domain"
)

// ErrMissingStoreService is returned when the store service is not provided.
var ErrMissingStoreService = errors.New("mcp: store service is required")

// ErrMissingAskService is returned when the ask service is not provided.
var ErrMissingAskService = errors.New("mcp: ask service is required")

// errorSuggestions maps error codes to remediation hints attached to tool
// responses when the underlying error carries none of its own.
var errorSuggestions = map[string][]string{
	domain.CodeValidation: {
		"Check that all required fields are provided",
		"Verify field types match expected format",
	},
	domain.CodeDimensionMismatch: {
		"Ensure the vector matches the embedding model's dimension",
		"Check embedding model configuration",
	},
	domain.CodePointNotFound: {
		"Verify the vector ID exists in the store",
		"Check if the vector was deleted",
		"Use search_similar or search_by_metadata to find vector IDs",
		"Vector IDs are returned as strings to avoid precision loss; preserve the string form",
	},
	domain.CodeBatchLimitExceeded: {
		"Reduce the request size",
		"Split the operation into smaller batches",
	},
	domain.CodeBackendUnavailable: {
		"Verify the backend is reachable",
		"Check the backend URL and credentials in the configuration",
	},
	domain.CodeSynthesisFailed: {
		"Retry the question",
		"Use the search tool to inspect the raw chunks",
	},
	domain.CodeRerankFailed: {
		"Results fall back to vector-score ordering",
		"Check that the embedding service is reachable",
	},
	domain.CodeUnknown: {
		"Check logs for more details",
		"Verify input parameters",
	},
}

// ToolError is the structured error carried in a tool response envelope.
type ToolError struct {
	Code        string         `json:"code"`
	Message     string         `json:"message"`
	Details     map[string]any `json:"details,omitempty"`
	Suggestions []string       `json:"suggestions,omitempty"`
}

// formatError converts any error into a ToolError. Raw errors never cross
// the tool boundary; everything is coerced to a coded envelope error.
func formatError(err error) ToolError {
	se := domain.AsStoreError(err)
	suggestions := se.Suggestions
	if len(suggestions) == 0 {
		suggestions = errorSuggestions[se.Code]
	}
	return ToolError{
		Code:        se.Code,
		Message:     se.Message,
		Details:     se.Details,
		Suggestions: suggestions,
	}
}
