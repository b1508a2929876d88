package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredicateMatches(t *testing.T) {
	r := &Record{
		ID:        "a",
		SourceRef: "https://blocked.example/page/1",
		Metadata:  NewMetadata("lang", "en", "page", 3),
	}

	t.Run("zero predicate never matches", func(t *testing.T) {
		assert.True(t, Predicate{}.IsZero())
		assert.False(t, Predicate{}.Matches(r))
	})

	t.Run("source substring", func(t *testing.T) {
		assert.True(t, Predicate{SourceContains: "blocked.example"}.Matches(r))
		assert.False(t, Predicate{SourceContains: "allowed.example"}.Matches(r))
	})

	t.Run("metadata equality", func(t *testing.T) {
		assert.True(t, Predicate{MetaEquals: map[string]any{"lang": "en"}}.Matches(r))
		assert.False(t, Predicate{MetaEquals: map[string]any{"lang": "de"}}.Matches(r))
		assert.False(t, Predicate{MetaEquals: map[string]any{"missing": "x"}}.Matches(r))
	})

	t.Run("metadata values normalize before comparing", func(t *testing.T) {
		// Stored as int 3 (normalized to int64), matched with plain int.
		assert.True(t, Predicate{MetaEquals: map[string]any{"page": 3}}.Matches(r))
	})

	t.Run("clauses are conjunctive", func(t *testing.T) {
		both := Predicate{
			SourceContains: "blocked.example",
			MetaEquals:     map[string]any{"lang": "en"},
		}
		assert.True(t, both.Matches(r))
		both.MetaEquals["lang"] = "de"
		assert.False(t, both.Matches(r))
	})

	t.Run("nil record", func(t *testing.T) {
		assert.False(t, Predicate{SourceContains: "x"}.Matches(nil))
	})
}
