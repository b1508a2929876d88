package record

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidIdentifier is returned when a record carries an empty id.
	ErrInvalidIdentifier = errors.New("record: empty identifier")

	// ErrInvalidEmbeddingValue is returned when an embedding contains a NaN
	// or infinite element.
	ErrInvalidEmbeddingValue = errors.New("record: embedding contains non-finite value")

	// ErrEmptyText is returned for records with empty text when the
	// collection enforces strict-text mode.
	ErrEmptyText = errors.New("record: empty text")
)

// ErrDimensionMismatch indicates that an embedding (or query vector) does
// not match the collection's fixed dimension.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("record: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ValidatePolicy selects the optional validation rules fixed at collection
// creation time.
type ValidatePolicy struct {
	// RejectEmptyText makes empty-text records invalid. By default empty
	// text is allowed: some chunks are legitimately metadata-only.
	RejectEmptyText bool
}

// Validate checks the structural integrity of a candidate record against the
// collection dimension. It is pure, has no side effects, and is applied
// identically for single-record and batch insertion.
//
// Rules, in check order:
//   - len(Embedding) != dimension -> *ErrDimensionMismatch
//   - any non-finite embedding element -> ErrInvalidEmbeddingValue
//   - empty ID -> ErrInvalidIdentifier
//   - empty Text, only with policy.RejectEmptyText -> ErrEmptyText
func Validate(r *Record, dimension int, policy ValidatePolicy) error {
	if r == nil {
		return errors.New("record: nil record")
	}
	if len(r.Embedding) != dimension {
		return &ErrDimensionMismatch{Expected: dimension, Actual: len(r.Embedding)}
	}
	for _, v := range r.Embedding {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return ErrInvalidEmbeddingValue
		}
	}
	if r.ID == "" {
		return ErrInvalidIdentifier
	}
	if policy.RejectEmptyText && r.Text == "" {
		return ErrEmptyText
	}
	return nil
}

// ValidateQuery checks a query vector against the collection dimension. It
// applies the same dimension and finiteness rules as Validate without the
// identifier and text policies.
func ValidateQuery(query []float32, dimension int) error {
	if len(query) != dimension {
		return &ErrDimensionMismatch{Expected: dimension, Actual: len(query)}
	}
	for _, v := range query {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return ErrInvalidEmbeddingValue
		}
	}
	return nil
}
