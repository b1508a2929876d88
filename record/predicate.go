package record

import "strings"

// Predicate is the fixed filter schema used for predicate-based deletion.
// All present clauses must match (logical AND). The zero predicate matches
// nothing, so an accidentally empty filter cannot wipe a collection.
type Predicate struct {
	// SourceContains matches records whose SourceRef contains the given
	// substring. Empty disables the clause.
	SourceContains string

	// MetaEquals matches records whose metadata holds every listed key with
	// an equal value. Values are normalized the same way Metadata.Set
	// normalizes them. Empty disables the clause.
	MetaEquals map[string]any
}

// IsZero reports whether no clause is set.
func (p Predicate) IsZero() bool {
	return p.SourceContains == "" && len(p.MetaEquals) == 0
}

// Matches evaluates the predicate against a record. A zero predicate never
// matches.
func (p Predicate) Matches(r *Record) bool {
	if r == nil || p.IsZero() {
		return false
	}
	if p.SourceContains != "" && !strings.Contains(r.SourceRef, p.SourceContains) {
		return false
	}
	for key, want := range p.MetaEquals {
		got, ok := r.Metadata.Get(key)
		if !ok || got != normalizeScalar(want) {
			return false
		}
	}
	return true
}
