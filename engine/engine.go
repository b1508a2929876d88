package engine

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/viant/embedstore/index"
	"github.com/viant/embedstore/index/scan"
	"github.com/viant/embedstore/record"
	"github.com/viant/embedstore/store"
)

// Engine is the public facade over one durable collection. It moves between
// two states: Open (returned by Open) and Closed (after Close). Every
// operation on a closed engine fails with ErrNotOpen.
type Engine struct {
	mu        sync.RWMutex
	col       *store.Collection
	idx       index.Index
	logger    *slog.Logger
	embedder  EmbedFunc
	policy    record.ValidatePolicy
	dimension int
	lastTS    int64
	closed    bool
}

// Open opens or creates the collection rooted at path with the given fixed
// embedding dimension and returns an Open engine. Reconnecting to an
// existing collection with a different dimension fails with
// *record.ErrDimensionMismatch; a corrupted collection fails with an
// ErrStorage-wrapped store.ErrCorrupted rather than discarding data. The
// similarity index is rebuilt from the record table before Open returns.
func Open(ctx context.Context, path string, dimension int, opts ...Option) (*Engine, error) {
	o := options{
		logger:   slog.New(slog.DiscardHandler),
		conflict: ConflictUpsert,
	}
	for _, opt := range opts {
		opt(&o)
	}

	col, err := store.Open(ctx, path, dimension, store.Options{Conflict: o.conflict})
	if err != nil {
		return nil, translate(err)
	}

	e := &Engine{
		col:       col,
		idx:       scan.New(dimension),
		logger:    o.logger,
		embedder:  o.embedder,
		policy:    record.ValidatePolicy{RejectEmptyText: o.rejectEmptyText},
		dimension: dimension,
	}
	if err := e.rebuildIndex(ctx); err != nil {
		_ = col.Close()
		return nil, err
	}
	e.logger.InfoContext(ctx, "collection opened",
		"path", path,
		"dimension", dimension,
		"records", e.idx.Len(),
	)
	return e, nil
}

// rebuildIndex reloads the scan index from the record table.
func (e *Engine) rebuildIndex(ctx context.Context) error {
	recs, err := e.col.All(ctx)
	if err != nil {
		return translate(err)
	}
	entries := make([]index.Entry, len(recs))
	for i, r := range recs {
		entries[i] = index.Entry{ID: r.ID, Vector: r.Embedding}
	}
	if err := e.idx.Rebuild(entries); err != nil {
		return translate(err)
	}
	return nil
}

// Dimension returns the fixed embedding dimension of the collection.
func (e *Engine) Dimension() int { return e.dimension }

// Close flushes pending writes and releases the collection. It is
// idempotent; operations after Close fail with ErrNotOpen.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if err := e.col.Close(); err != nil {
		return translate(err)
	}
	e.logger.Info("collection closed")
	return nil
}

// Add validates and durably stores a single record, applying the configured
// conflict policy. The engine assigns CreatedAt; the caller's value is
// ignored. On return the record is either fully durable or not present.
func (e *Engine) Add(ctx context.Context, r *record.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrNotOpen
	}
	var id string
	if r != nil {
		id = r.ID
	}
	err := e.add(ctx, r)
	if err != nil {
		e.logger.ErrorContext(ctx, "add failed", "id", id, "error", err)
		return err
	}
	e.logger.DebugContext(ctx, "record added", "id", id)
	return nil
}

// add runs validation and the store+index write. Callers hold the write
// lock.
func (e *Engine) add(ctx context.Context, r *record.Record) error {
	if err := record.Validate(r, e.dimension, e.policy); err != nil {
		return err
	}
	stored := r.Clone()
	stored.CreatedAt = e.stamp()
	if err := e.col.Put(ctx, stored); err != nil {
		return translate(err)
	}
	return translate(e.idx.Upsert(stored.ID, stored.Embedding))
}

// stamp issues the next CreatedAt: wall-clock time clamped forward so
// timestamps never decrease within one engine instance. Monotonic clock
// readings are stripped so stored and reloaded times compare equal.
func (e *Engine) stamp() time.Time {
	now := time.Now().UnixNano()
	if now < e.lastTS {
		now = e.lastTS
	}
	e.lastTS = now
	return time.Unix(0, now)
}

// Get returns the record stored under id, or found=false when absent.
func (e *Engine) Get(ctx context.Context, id string) (*record.Record, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, false, ErrNotOpen
	}
	r, found, err := e.col.Get(ctx, id)
	if err != nil {
		return nil, false, translate(err)
	}
	return r, found, nil
}

// SearchByVector returns the topK most similar records to the query vector,
// best-first, scores in [0,1], ties broken by ascending id. A collection
// with fewer than topK live records yields all of them; topK <= 0 fails
// with ErrInvalidArgument; a query of the wrong length fails with
// *record.ErrDimensionMismatch.
func (e *Engine) SearchByVector(ctx context.Context, query []float32, topK int) ([]record.SearchResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top-k %d", ErrInvalidArgument, topK)
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrNotOpen
	}

	matches, err := e.idx.Query(query, topK)
	if err != nil {
		e.logger.ErrorContext(ctx, "search failed", "k", topK, "error", err)
		return nil, translate(err)
	}
	results := make([]record.SearchResult, 0, len(matches))
	for i, m := range matches {
		r, found, err := e.col.Get(ctx, m.ID)
		if err != nil {
			return nil, translate(err)
		}
		if !found {
			// Index and store mutate under the same lock; a miss here means
			// derived state diverged from the table.
			return nil, fmt.Errorf("%w: indexed id %s missing from store", ErrStorage, m.ID)
		}
		results = append(results, record.SearchResult{
			ID:        r.ID,
			Text:      r.Text,
			SourceRef: r.SourceRef,
			Metadata:  r.Metadata,
			Score:     m.Score,
			Rank:      i + 1,
		})
	}
	e.logger.DebugContext(ctx, "search completed", "k", topK, "results", len(results))
	return results, nil
}

// SearchByText embeds the query text through the configured EmbedFunc and
// delegates to SearchByVector. The embedder runs outside the engine lock;
// an embedder returning a vector of the wrong length fails with
// *record.ErrDimensionMismatch.
func (e *Engine) SearchByText(ctx context.Context, text string, topK int) ([]record.SearchResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top-k %d", ErrInvalidArgument, topK)
	}
	e.mu.RLock()
	embed := e.embedder
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, ErrNotOpen
	}
	if embed == nil {
		return nil, ErrNoEmbedder
	}
	query, err := embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("engine: embed query: %w", err)
	}
	return e.SearchByVector(ctx, query, topK)
}

// Remove deletes the record stored under id and reports whether one
// existed. Removing an absent id is idempotent and not an error.
func (e *Engine) Remove(ctx context.Context, id string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false, ErrNotOpen
	}
	removed, err := e.col.Remove(ctx, id)
	if err != nil {
		return false, translate(err)
	}
	if removed {
		e.idx.Remove(id)
	}
	e.logger.DebugContext(ctx, "record removed", "id", id, "existed", removed)
	return removed, nil
}

// RemoveWhere deletes every record matching the predicate and returns the
// exact count removed. A predicate matching nothing removes nothing and is
// not an error.
func (e *Engine) RemoveWhere(ctx context.Context, pred record.Predicate) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, ErrNotOpen
	}
	ids, err := e.col.RemoveWhere(ctx, pred)
	if err != nil {
		return 0, translate(err)
	}
	for _, id := range ids {
		e.idx.Remove(id)
	}
	if len(ids) > 0 {
		e.logger.InfoContext(ctx, "records removed by predicate", "count", len(ids))
	}
	return len(ids), nil
}

// Size returns the count of live records.
func (e *Engine) Size(ctx context.Context) (int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return 0, ErrNotOpen
	}
	n, err := e.col.Count(ctx)
	if err != nil {
		return 0, translate(err)
	}
	return n, nil
}

// All returns a lazy iterator over the records ordered by id. The sequence
// is a snapshot taken at iteration start: records are materialized under
// the read lock when iteration begins, then yielded without holding it, so
// concurrent mutations do not affect an iteration in progress.
func (e *Engine) All(ctx context.Context) iter.Seq2[*record.Record, error] {
	return func(yield func(*record.Record, error) bool) {
		e.mu.RLock()
		if e.closed {
			e.mu.RUnlock()
			yield(nil, ErrNotOpen)
			return
		}
		recs, err := e.col.All(ctx)
		e.mu.RUnlock()
		if err != nil {
			yield(nil, translate(err))
			return
		}
		for _, r := range recs {
			if !yield(r, nil) {
				return
			}
		}
	}
}
