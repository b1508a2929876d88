package record

import (
	"time"
)

// Record represents a single stored chunk: its text, provenance and the
// embedding produced for it by an external model. The engine treats Text,
// SourceRef and Metadata as opaque; only ID and Embedding participate in
// storage keys and similarity ranking.
type Record struct {
	// ID is the unique identifier of the record and the primary key of the
	// collection. It is immutable once assigned and must be non-empty.
	ID string

	// Text holds the content the embedding was computed from. It may be empty
	// unless the collection was opened in strict-text mode.
	Text string

	// SourceRef is an opaque origin locator (file path, URL, ...). The engine
	// never interprets it except as a deletion-predicate target.
	SourceRef string

	// Metadata carries caller-defined scalar attributes in insertion order.
	// A nil Metadata is equivalent to an empty one.
	Metadata *Metadata

	// Embedding is the vector representation of Text. Its length must equal
	// the collection dimension.
	Embedding []float32

	// EmbeddingModel tags which external model produced Embedding. Stored for
	// provenance only.
	EmbeddingModel string

	// CreatedAt is assigned by the engine at insertion time and is
	// monotonically non-decreasing with insertion order within one engine
	// instance.
	CreatedAt time.Time
}

// Clone returns a deep copy of the record. The copy shares no mutable state
// with the original, so callers can hold results across later mutations.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	if r.Embedding != nil {
		out.Embedding = append([]float32(nil), r.Embedding...)
	}
	out.Metadata = r.Metadata.Clone()
	return &out
}

// SearchResult is the derived, per-query result unit. It copies the
// descriptive fields of the matching record and adds the query-time score
// and rank; it owns no persistent state.
type SearchResult struct {
	ID        string
	Text      string
	SourceRef string
	Metadata  *Metadata

	// Score is the similarity of the record to the query in [0,1], higher is
	// more similar. Raw cosine similarity clamped at zero.
	Score float64

	// Rank is the 1-based position within a single query's result list.
	Rank int
}
