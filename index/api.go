package index

import (
	"errors"

	"github.com/viant/embedstore/record"
)

// ErrInvalidTopK is returned when a query asks for a non-positive number of
// results.
var ErrInvalidTopK = errors.New("index: top-k must be positive")

// Entry is the (id, vector) pair an index ranks. Vectors are owned by the
// caller; implementations copy what they retain.
type Entry struct {
	ID     string
	Vector []float32
}

// Match is a ranked query hit: higher score means more similar. Scores are
// cosine similarity clamped to [0,1]; entries with identical scores are
// ordered by ascending id so rankings are reproducible.
type Match struct {
	ID    string
	Score float64
}

// Index defines a vector index maintained alongside the record table. It is
// derived state: it can always be rebuilt from the stored records, so it is
// not persisted on its own.
//
// Implementations are not required to be safe for concurrent use; the engine
// serializes access.
type Index interface {
	// Rebuild replaces the index contents with the given entries.
	Rebuild(entries []Entry) error

	// Upsert inserts the vector under id, replacing any previous vector.
	Upsert(id string, vector []float32) error

	// Remove drops id from the index. Removing an absent id is a no-op.
	Remove(id string)

	// Len returns the number of indexed vectors.
	Len() int

	// Query returns up to k matches ordered best-first. k must be positive;
	// fewer than k indexed vectors yield all of them. The query vector must
	// have the index dimension.
	Query(query []float32, k int) ([]Match, error)
}

// ErrDimensionMismatch aliases the record-level error so index consumers can
// match on a single type.
type ErrDimensionMismatch = record.ErrDimensionMismatch
