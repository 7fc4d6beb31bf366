// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - PointBackend: Vector point storage and nearest-neighbour search.
//     The primary ("cloud") backend is always required.
//   - EmbeddingService: Generates vector embeddings and rerank scores.
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - A secondary ("local") PointBackend. Without it, hybrid reads serve
//     from the primary alone and secondary writes become no-ops.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
