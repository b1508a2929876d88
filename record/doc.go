// Package record defines the stored unit of the embedding store and the
// derived query result. It includes:
//   - Record model and SearchResult
//   - Ordered string-keyed Metadata with JSON round-trip
//   - Predicate: the fixed schema for predicate-based deletion
//   - Embedding BLOB encoding and structural validation
package record
