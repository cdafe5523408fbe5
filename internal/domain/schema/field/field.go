package field

import (
	"fmt"
	"regexp"
	"strings"
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

var reservedFieldNames = map[string]bool{
	"entity_id": true, "field": true, "score": true, "id": true,
}

// Field is an immutable value object describing one declared entity field.
// Roles are independent flags: a field may be searchable (text relevance),
// facetable (value counting), or geometry-typed (spatial filtering). Stored
// controls coordinate retrieval for geometry fields.
type Field struct {
	name       string
	searchable bool
	facetable  bool
	geometry   bool
	stored     bool
}

// New validates and creates a Field.
// Name must match ^[a-zA-Z0-9_-]+$, max 64 chars, not reserved, and the
// field must carry at least one role. A geometry field carries no other
// role: its value is a WKT literal, not text or an enumerable tag.
func New(name string, searchable, facetable, geometry, stored bool) (Field, error) {
	if name == "" {
		return Field{}, fmt.Errorf("field name is required")
	}
	if len(name) > 64 {
		return Field{}, fmt.Errorf("field name %q too long (max 64)", name)
	}
	if !nameRegex.MatchString(name) {
		return Field{}, fmt.Errorf("field name %q must be alphanumeric with underscores and hyphens", name)
	}
	if reservedFieldNames[name] {
		return Field{}, fmt.Errorf("field name %q is reserved", name)
	}
	if strings.HasPrefix(name, "__") {
		return Field{}, fmt.Errorf("field name %q uses the reserved __ prefix", name)
	}
	if !searchable && !facetable && !geometry {
		return Field{}, fmt.Errorf("field %q has no role (searchable, facetable or geometry)", name)
	}
	if geometry && (searchable || facetable) {
		return Field{}, fmt.Errorf("geometry field %q cannot also be searchable or facetable", name)
	}
	if stored && !geometry {
		return Field{}, fmt.Errorf("stored applies only to geometry fields, got %q", name)
	}
	return Field{name: name, searchable: searchable, facetable: facetable, geometry: geometry, stored: stored}, nil
}

// Reconstruct creates a Field without validation (storage hydration).
func Reconstruct(name string, searchable, facetable, geometry, stored bool) Field {
	return Field{name: name, searchable: searchable, facetable: facetable, geometry: geometry, stored: stored}
}

// Name returns the field name.
func (f Field) Name() string { return f.name }

// Searchable reports whether the field participates in text relevance.
func (f Field) Searchable() bool { return f.searchable }

// Facetable reports whether the field is eligible for facet counting.
func (f Field) Facetable() bool { return f.facetable }

// Geometry reports whether the field holds a WKT geometry.
func (f Field) Geometry() bool { return f.geometry }

// Stored reports whether point coordinates are stored for retrieval.
func (f Field) Stored() bool { return f.stored }
