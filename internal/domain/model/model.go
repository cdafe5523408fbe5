package model

// Model is the physical row layout of a built index.
type Model string

// Document model constants.
const (
	// Fact stores one row per (entity, field, value). Legacy default;
	// combined predicates require an entity-id correlation pass.
	Fact Model = "fact"
	// Entity stores one row per entity carrying all of its fields,
	// enabling single-pass text+geo+facet evaluation.
	Entity Model = "entity"
)

// Default is the layout used when none is configured.
const Default = Fact

// Index attribute names shared by both layouts. The "__" prefix is
// rejected for user-defined field names, so internal attributes can
// never collide with schema fields.
const (
	AttrEntityID = "entity_id"
	AttrField    = "field"
	AttrText     = "text"
	AttrFacet    = "facet"
	AttrGeo      = "__g"
	AttrGeoShape = "__g_shape"
	AttrGeoLat   = "__g_lat"
	AttrGeoLon   = "__g_lon"
)

// FacetSeparator joins multi-value facet attributes inside a single
// hash field. A control character cannot appear in accepted values, so
// TAG tokenization never splits a stored value in two.
const FacetSeparator = "\x1f"

// FacetAttr returns the index alias under which a facetable field is
// indexed as a TAG in the entity layout.
func FacetAttr(field string) string { return "__facet_" + field }

// IsValid checks if the model is one of the supported values.
func (m Model) IsValid() bool {
	return m == Fact || m == Entity
}

// String returns the model name.
func (m Model) String() string { return string(m) }
