package db

import "errors"

// Version fields bumped together on the mutation meta key. Equal values
// mean every applied mutation carried both its row writes and its
// registry deltas.
const (
	RowVersionField   = "row_version"
	FacetVersionField = "facet_version"
)

// FacetDelta adjusts one member of a facet registry sorted set.
type FacetDelta struct {
	Key    string
	Member string
	Delta  float64
}

// Mutation is an atomic batch applied in a single MULTI/EXEC transaction:
// row deletes, then row hash writes, then facet registry adjustments,
// and a synchronized version bump on the generation metadata hash.
// Deletes apply before Sets, so listing a key in both replaces the hash
// instead of merging into it. Rows and their registry counts always
// move together; readers never observe one without the other.
type Mutation struct {
	Sets       []HashSetItem
	Deletes    []string
	FacetIncrs []FacetDelta
	// TrimKeys lists registries to purge zero-count members from after
	// the decrements land.
	TrimKeys []string
	// MetaKey is the generation metadata hash receiving equal HINCRBY
	// bumps of the row and facet version counters.
	MetaKey string
}

// Validate checks that the mutation is well-formed.
func (m *Mutation) Validate() error {
	if m.MetaKey == "" {
		return errors.New("mutation meta key is required")
	}
	if len(m.Sets) == 0 && len(m.Deletes) == 0 && len(m.FacetIncrs) == 0 {
		return errors.New("mutation has no effect")
	}
	return nil
}

// IsEmpty reports whether the mutation carries no writes.
func (m *Mutation) IsEmpty() bool {
	return len(m.Sets) == 0 && len(m.Deletes) == 0 && len(m.FacetIncrs) == 0 && len(m.TrimKeys) == 0
}
