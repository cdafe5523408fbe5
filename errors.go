package facetdex

import "github.com/kailas-cloud/facetdex/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound          = domain.ErrNotFound
	ErrAlreadyExists     = domain.ErrAlreadyExists
	ErrEntityNotFound    = domain.ErrEntityNotFound
	ErrConfig            = domain.ErrConfig
	ErrInvalidGeometry   = domain.ErrInvalidGeometry
	ErrFacetJoinOverflow = domain.ErrFacetJoinOverflow
	ErrStaleFacets       = domain.ErrStaleFacets
	ErrModelMismatch     = domain.ErrModelMismatch
	ErrRebuildInProgress = domain.ErrRebuildInProgress
)
