package engine

import (
	"context"
	"fmt"

	"github.com/viant/embedstore/record"
	"github.com/viant/embedstore/store"
)

// Rejection reports one record a batch refused, with the id as the caller
// supplied it (possibly empty) and the validation error.
type Rejection struct {
	ID  string
	Err error
}

// BatchResult summarizes a batch insertion: how many records were durably
// written and which were rejected. Rejections keep batch order.
type BatchResult struct {
	Inserted int
	Rejected []Rejection
}

// AddBatch validates and inserts many records with partial-success
// semantics: a validation failure on one record never blocks the others,
// matching bulk ingestion of harvested corpora where isolated bad records
// must not abort the whole batch. All accepted records share a single
// storage transaction, so the batch costs one flush instead of N.
//
// Validation runs exactly as in Add. Under ConflictReject, records whose id
// already exists (in the collection or earlier in the same batch) are
// rejected with store.ErrDuplicateID; under the default upsert policy the
// last occurrence of an id wins. Storage failures, unlike validation
// failures, fail the whole call and nothing from the batch is written.
func (e *Engine) AddBatch(ctx context.Context, recs []*record.Record) (BatchResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return BatchResult{}, ErrNotOpen
	}

	var (
		result   BatchResult
		accepted []*record.Record
		inBatch  = make(map[string]bool, len(recs))
	)
	for _, r := range recs {
		reject, fatal := e.validateForBatch(ctx, r, inBatch)
		if fatal != nil {
			return BatchResult{}, fatal
		}
		if reject != nil {
			var id string
			if r != nil {
				id = r.ID
			}
			result.Rejected = append(result.Rejected, Rejection{ID: id, Err: reject})
			continue
		}
		stored := r.Clone()
		stored.CreatedAt = e.stamp()
		accepted = append(accepted, stored)
		inBatch[stored.ID] = true
	}

	if err := e.col.PutAll(ctx, accepted); err != nil {
		e.logger.ErrorContext(ctx, "batch insert failed", "size", len(recs), "error", err)
		return BatchResult{}, translate(err)
	}
	for _, r := range accepted {
		if err := e.idx.Upsert(r.ID, r.Embedding); err != nil {
			return BatchResult{}, translate(err)
		}
	}
	result.Inserted = len(accepted)

	if len(result.Rejected) > 0 {
		e.logger.WarnContext(ctx, "batch insert completed with rejections",
			"total", len(recs),
			"inserted", result.Inserted,
			"rejected", len(result.Rejected),
		)
	} else {
		e.logger.InfoContext(ctx, "batch insert completed", "count", result.Inserted)
	}
	return result, nil
}

// validateForBatch applies the standard record validation plus the
// duplicate-id policy against both the collection and earlier batch
// entries. The first return isolates the record from the batch; the second
// is a storage failure that aborts the whole call. Callers hold the write
// lock.
func (e *Engine) validateForBatch(ctx context.Context, r *record.Record, inBatch map[string]bool) (reject, fatal error) {
	if err := record.Validate(r, e.dimension, e.policy); err != nil {
		return err, nil
	}
	if e.col.Conflict() != ConflictReject {
		return nil, nil
	}
	if inBatch[r.ID] {
		return fmt.Errorf("%w: %s", store.ErrDuplicateID, r.ID), nil
	}
	_, exists, err := e.col.Get(ctx, r.ID)
	if err != nil {
		return nil, translate(err)
	}
	if exists {
		return fmt.Errorf("%w: %s", store.ErrDuplicateID, r.ID), nil
	}
	return nil, nil
}
