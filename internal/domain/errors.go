package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals a duplicate resource.
	ErrAlreadyExists = errors.New("already exists")
	// ErrEntityNotFound signals a missing entity.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrConfig signals a request referencing fields outside the declared
	// schema, or an invalid declaration itself.
	ErrConfig = errors.New("configuration error")
	// ErrInvalidGeometry signals a malformed or out-of-range geometry literal.
	ErrInvalidGeometry = errors.New("invalid geometry")
	// ErrFacetJoinOverflow signals that the facet join candidate set exceeds
	// the engine clause bound. Narrow the filter or switch the document model.
	ErrFacetJoinOverflow = errors.New("facet join overflow")
	// ErrStaleFacets signals a row/facet version divergence. Row and facet
	// registry writes share one transaction, so this indicates a mutation-path
	// defect, not a recoverable query fault.
	ErrStaleFacets = errors.New("stale facet registry")

	// ErrModelMismatch signals that the persisted document model differs from
	// the configured one. Switching models requires a rebuild.
	ErrModelMismatch = errors.New("document model mismatch")
	// ErrRebuildInProgress signals a concurrent rebuild.
	ErrRebuildInProgress = errors.New("rebuild already in progress")
)

// ModelMismatchError wraps ErrModelMismatch with both model names.
type ModelMismatchError struct {
	Persisted string
	Requested string
}

func (e *ModelMismatchError) Error() string {
	return fmt.Sprintf("%s: index built with %q, configuration requests %q",
		ErrModelMismatch.Error(), e.Persisted, e.Requested)
}

func (e *ModelMismatchError) Unwrap() error { return ErrModelMismatch }

// NewModelMismatch creates a model mismatch error.
func NewModelMismatch(persisted, requested string) error {
	return &ModelMismatchError{Persisted: persisted, Requested: requested}
}

// FacetJoinOverflowError wraps ErrFacetJoinOverflow with sizes.
type FacetJoinOverflowError struct {
	Candidates int
	Limit      int
}

func (e *FacetJoinOverflowError) Error() string {
	return fmt.Sprintf("%s: %d candidate entities exceed the %d clause bound",
		ErrFacetJoinOverflow.Error(), e.Candidates, e.Limit)
}

func (e *FacetJoinOverflowError) Unwrap() error { return ErrFacetJoinOverflow }

// NewFacetJoinOverflow creates a facet join overflow error.
func NewFacetJoinOverflow(candidates, limit int) error {
	return &FacetJoinOverflowError{Candidates: candidates, Limit: limit}
}

// StaleFacetsError wraps ErrStaleFacets with the diverged versions.
type StaleFacetsError struct {
	RowVersion   int64
	FacetVersion int64
}

func (e *StaleFacetsError) Error() string {
	return fmt.Sprintf("%s: row version %d, facet version %d",
		ErrStaleFacets.Error(), e.RowVersion, e.FacetVersion)
}

func (e *StaleFacetsError) Unwrap() error { return ErrStaleFacets }

// NewStaleFacets creates a stale facets error.
func NewStaleFacets(rowVersion, facetVersion int64) error {
	return &StaleFacetsError{RowVersion: rowVersion, FacetVersion: facetVersion}
}
