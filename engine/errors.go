package engine

import (
	"errors"
	"fmt"

	"github.com/viant/embedstore/record"
	"github.com/viant/embedstore/store"
)

var (
	// ErrNotOpen is returned when an operation is attempted on a closed
	// engine. This is a caller programming error and is never retried
	// internally.
	ErrNotOpen = errors.New("engine: not open")

	// ErrInvalidArgument is returned for malformed call arguments, e.g. a
	// non-positive top-k.
	ErrInvalidArgument = errors.New("engine: invalid argument")

	// ErrNoEmbedder is returned by SearchByText when no embedder was
	// configured at open time.
	ErrNoEmbedder = errors.New("engine: no embedder configured")

	// ErrStorage wraps underlying I/O failures: disk full, permissions,
	// corruption detected on open. The engine surfaces these directly and
	// never retries; retry policy belongs to the caller.
	ErrStorage = errors.New("engine: storage failure")
)

// translate maps lower-layer errors onto the engine taxonomy. Validation
// errors and policy rejections pass through untouched so callers can match
// them with errors.Is/As; anything else coming out of the store is an I/O
// failure and gets the ErrStorage mark.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var dim *record.ErrDimensionMismatch
	switch {
	case errors.As(err, &dim),
		errors.Is(err, record.ErrInvalidIdentifier),
		errors.Is(err, record.ErrInvalidEmbeddingValue),
		errors.Is(err, record.ErrEmptyText),
		errors.Is(err, store.ErrDuplicateID):
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}
