package facetdex

// Model selects the physical row layout of the index.
type Model string

// Document model constants.
const (
	// ModelFact stores one row per (entity, field, value).
	ModelFact Model = "fact"
	// ModelEntity stores one row per entity, enabling single-pass
	// text+geo+facet evaluation.
	ModelEntity Model = "entity"
)

// OverflowPolicy decides what happens when a fact-layout facet join
// collects more candidate entities than the engine clause bound.
type OverflowPolicy string

// Overflow policy constants.
const (
	// OverflowFail rejects the request with ErrFacetJoinOverflow.
	OverflowFail OverflowPolicy = "fail"
	// OverflowPartial caps the candidates to the top-ranked entities
	// and marks the facet counts as partial.
	OverflowPartial OverflowPolicy = "partial"
)

// FieldSpec declares one schema field. Roles are independent flags; a
// geometry field carries no other role and Stored applies to geometry
// fields only (coordinate retrieval in search hits).
type FieldSpec struct {
	Name       string
	Searchable bool
	Facetable  bool
	Geometry   bool
	Stored     bool
}

// SearchField declares a text-searchable field.
func SearchField(name string) FieldSpec {
	return FieldSpec{Name: name, Searchable: true}
}

// FacetField declares a facet-countable field.
func FacetField(name string) FieldSpec {
	return FieldSpec{Name: name, Facetable: true}
}

// GeometryField declares a geometry field with stored coordinates.
func GeometryField(name string) FieldSpec {
	return FieldSpec{Name: name, Geometry: true, Stored: true}
}

// Entity is an untyped entity for the low-level API. Attribute values
// are string lists; a geometry attribute holds a single WKT literal.
type Entity struct {
	ID         string
	Attributes map[string][]string
}

// Coordinate is a WGS84 point, (lon, lat) ordered like WKT.
type Coordinate struct {
	Lon float64
	Lat float64
}

// SearchHit is a single search result.
type SearchHit struct {
	ID    string
	Score float64
	Coord *Coordinate // nil unless the geometry field is stored
}

// FacetCount is one attribute value with its entity count.
type FacetCount struct {
	Value string
	Count int64
}

// SearchResponse carries hits and facet distributions for one query.
type SearchResponse struct {
	Hits      []SearchHit
	TotalHits int64
	Facets    map[string][]FacetCount
	Partial   bool
}

// BatchResult is the outcome of one item in a batch operation.
type BatchResult struct {
	ID  string
	OK  bool
	Err error
}

// FieldInfo describes one field of the active schema.
type FieldInfo struct {
	Name       string
	Searchable bool
	Facetable  bool
	Geometry   bool
	Stored     bool
}

// SchemaInfo describes the active catalog generation.
type SchemaInfo struct {
	Generation string
	Model      Model
	Fields     []FieldInfo
}

// GenerationInfo identifies a built index generation.
type GenerationInfo struct {
	ID    string
	Model Model
}

// IntegrityReport describes the consistency of the active generation.
// When rows and facet registries diverged, InSync is false and the
// accompanying error wraps ErrStaleFacets.
type IntegrityReport struct {
	Generation   string
	Model        Model
	RowVersion   int64
	FacetVersion int64
	InSync       bool
	Rows         int64
	Registries   map[string]int64
}
