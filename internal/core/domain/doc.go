// Package domain defines the core business entities for Quarry.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Chunk: A contiguous slice of a corpus file with its embedding metadata
//   - SearchResult: A scored retrieval hit derived from a stored point
//   - QueryAnalysis: The classified intent of a free-text query
//   - Filter: A metadata filter expression evaluable in-process or by a backend
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
