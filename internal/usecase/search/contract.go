package search

import (
	"context"

	domcat "github.com/kailas-cloud/facetdex/internal/domain/catalog"
	"github.com/kailas-cloud/facetdex/internal/domain/geometry"
	"github.com/kailas-cloud/facetdex/internal/domain/search/geofilter"
	"github.com/kailas-cloud/facetdex/internal/domain/search/result"
	"github.com/kailas-cloud/facetdex/internal/usecase/catalog"
)

// Repository defines the storage contract for search operations.
type Repository interface {
	// SearchEntities runs the composite text+geo query against an
	// entity-layout generation. Returns ranked hits and the total match
	// count before the limit.
	SearchEntities(
		ctx context.Context, gen domcat.Generation,
		text string, geo geofilter.Filter, offset, limit int,
	) ([]result.Hit, int64, error)

	// CountFacet aggregates one facet field over the composite query on
	// an entity-layout generation.
	CountFacet(
		ctx context.Context, gen domcat.Generation,
		text string, geo geofilter.Filter, field string, max int,
	) ([]result.FacetValue, error)

	// CorrelateRows resolves the distinct entities satisfying the
	// composite query on a fact-layout generation.
	CorrelateRows(
		ctx context.Context, gen domcat.Generation,
		text string, geo geofilter.Filter, fetchLimit int,
	) (result.Correlation, error)

	// JoinFacetCounts counts distinct entities per facet value across
	// the given entities' fact rows.
	JoinFacetCounts(
		ctx context.Context, gen domcat.Generation, ids, fields []string,
	) (map[string][]result.FacetValue, error)

	// RegistryValues reads a field's pre-aggregated counts from its
	// facet registry.
	RegistryValues(
		ctx context.Context, gen domcat.Generation, field string,
	) ([]result.FacetValue, error)

	// FetchCoordinates resolves stored point coordinates for a page of
	// fact-layout hits.
	FetchCoordinates(
		ctx context.Context, gen domcat.Generation, ids []string,
	) (map[string]geometry.Coord, error)
}

// Snapshots provides the active catalog snapshot, pinning one
// generation for every phase of a request.
type Snapshots interface {
	Acquire() (*catalog.Snapshot, error)
}
