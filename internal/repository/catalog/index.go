package catalog

import (
	"fmt"

	"github.com/kailas-cloud/facetdex/internal/db"
	domcat "github.com/kailas-cloud/facetdex/internal/domain/catalog"
	"github.com/kailas-cloud/facetdex/internal/domain/model"
)

// buildIndex creates the FT index definition for a generation's layout.
//
// Fact rows carry four fixed columns. Entity rows index each searchable
// field as TEXT under its own name and each facetable field a second
// time as a TAG under a facet alias, so one hash attribute can serve
// both relevance scoring and group counting. Facet TAGs use a control
// character separator that accepted values cannot contain, keeping
// multi-value attributes intact. A schema with a geometry field adds a
// GEO point attribute for radius queries and a GEOSHAPE for polygon
// containment.
func buildIndex(gen domcat.Generation) (*db.IndexDefinition, error) {
	b := db.NewIndex(indexName(gen.ID())).Prefix(rowPrefix(gen.ID()))

	switch gen.Model() {
	case model.Fact:
		b.Tag(model.AttrEntityID).
			Tag(model.AttrField).
			Text(model.AttrText).
			TagWithOpts(model.AttrFacet, model.FacetSeparator, true)
	case model.Entity:
		b.Tag(model.AttrEntityID)
		for _, f := range gen.Schema().Fields() {
			if f.Geometry() {
				continue
			}
			if f.Searchable() {
				b.Text(f.Name())
			}
			if f.Facetable() {
				b.TagWithOpts(f.Name(), model.FacetSeparator, true).Alias(model.FacetAttr(f.Name()))
			}
		}
	default:
		return nil, fmt.Errorf("unknown document model: %q", gen.Model())
	}

	if _, ok := gen.Schema().GeometryField(); ok {
		b.Geo(model.AttrGeo).GeoShape(model.AttrGeoShape, db.CoordSpherical)
	}

	return b.Build()
}
