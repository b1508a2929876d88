// Package index defines the abstraction for vector indexes that rank stored
// embeddings against a query vector. The contract is exact top-k: whatever
// internal structure an implementation uses, its ranking must match an
// exhaustive cosine scan. The scan subpackage provides that baseline.
package index
