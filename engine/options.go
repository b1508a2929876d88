package engine

import (
	"context"
	"log/slog"

	"github.com/viant/embedstore/store"
)

// EmbedFunc converts free-form text into an embedding of the collection
// dimension. Implementations call whatever external model produced the
// stored vectors; the engine itself never tokenizes or embeds text.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// ConflictPolicy re-exports the store-level duplicate-id policy so callers
// configure the facade without importing the store package.
type ConflictPolicy = store.ConflictPolicy

const (
	// ConflictUpsert replaces an existing record wholesale (default).
	ConflictUpsert = store.ConflictUpsert
	// ConflictReject fails on an existing id with store.ErrDuplicateID.
	ConflictReject = store.ConflictReject
)

type options struct {
	logger          *slog.Logger
	embedder        EmbedFunc
	rejectEmptyText bool
	conflict        ConflictPolicy
}

// Option configures Open behavior.
type Option func(*options)

// WithLogger sets the structured logger. The default discards all output.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithEmbedder wires the external query-text embedder used by SearchByText.
func WithEmbedder(embed EmbedFunc) Option {
	return func(o *options) {
		o.embedder = embed
	}
}

// WithRejectEmptyText makes empty-text records fail validation. By default
// empty text is allowed, since some chunks are legitimately metadata-only.
func WithRejectEmptyText() Option {
	return func(o *options) {
		o.rejectEmptyText = true
	}
}

// WithConflictPolicy selects upsert-or-reject behavior for duplicate ids.
func WithConflictPolicy(policy ConflictPolicy) Option {
	return func(o *options) {
		o.conflict = policy
	}
}
