package schema

import (
	"fmt"

	"github.com/kailas-cloud/facetdex/internal/domain"
	"github.com/kailas-cloud/facetdex/internal/domain/schema/field"
)

// Schema is the declared entity field set (immutable value object).
// It is owned by configuration and consumed read-only here; requests are
// validated against it before any query executes.
type Schema struct {
	fields []field.Field
}

func validateFields(fields []field.Field) error {
	if len(fields) == 0 {
		return fmt.Errorf("at least one field is required")
	}
	if len(fields) > 64 {
		return fmt.Errorf("too many fields (max 64)")
	}
	seen := make(map[string]bool, len(fields))
	geometries := 0
	searchable := 0
	for _, f := range fields {
		if seen[f.Name()] {
			return fmt.Errorf("duplicate field name: %s", f.Name())
		}
		seen[f.Name()] = true
		if f.Geometry() {
			geometries++
		}
		if f.Searchable() {
			searchable++
		}
	}
	if geometries > 1 {
		return fmt.Errorf("at most one geometry field is allowed, got %d", geometries)
	}
	if searchable == 0 {
		return fmt.Errorf("at least one searchable field is required")
	}
	return nil
}

// New validates and creates a Schema.
// Fields: unique names, max 64, at least one searchable, at most one geometry.
func New(fields []field.Field) (Schema, error) {
	if err := validateFields(fields); err != nil {
		return Schema{}, fmt.Errorf("%w: %v", domain.ErrConfig, err)
	}
	return Schema{fields: fields}, nil
}

// Reconstruct creates a Schema without validation (storage hydration).
func Reconstruct(fields []field.Field) Schema {
	return Schema{fields: fields}
}

// Fields returns the declared field definitions in order.
func (s Schema) Fields() []field.Field { return s.fields }

// FieldByName looks up a field by name.
func (s Schema) FieldByName(name string) (field.Field, bool) {
	for _, f := range s.fields {
		if f.Name() == name {
			return f, true
		}
	}
	return field.Field{}, false
}

// GeometryField returns the declared geometry field, if any.
func (s Schema) GeometryField() (field.Field, bool) {
	for _, f := range s.fields {
		if f.Geometry() {
			return f, true
		}
	}
	return field.Field{}, false
}

// SearchFields returns the fields participating in text relevance.
func (s Schema) SearchFields() []field.Field {
	out := make([]field.Field, 0, len(s.fields))
	for _, f := range s.fields {
		if f.Searchable() {
			out = append(out, f)
		}
	}
	return out
}

// FacetFields returns the fields eligible for facet counting.
func (s Schema) FacetFields() []field.Field {
	out := make([]field.Field, 0, len(s.fields))
	for _, f := range s.fields {
		if f.Facetable() {
			out = append(out, f)
		}
	}
	return out
}

// ValidateFacetFields rejects requests naming undeclared or non-facetable
// fields. Rejection happens before execution.
func (s Schema) ValidateFacetFields(names []string) error {
	for _, name := range names {
		f, ok := s.FieldByName(name)
		if !ok {
			return fmt.Errorf("%w: facet field %q is not declared", domain.ErrConfig, name)
		}
		if !f.Facetable() {
			return fmt.Errorf("%w: field %q is not facetable", domain.ErrConfig, name)
		}
	}
	return nil
}

// ResolveGeometryField resolves the geometry field for a spatial clause.
// An empty name selects the schema's declared geometry field.
func (s Schema) ResolveGeometryField(name string) (field.Field, error) {
	if name == "" {
		f, ok := s.GeometryField()
		if !ok {
			return field.Field{}, fmt.Errorf("%w: no geometry field declared", domain.ErrConfig)
		}
		return f, nil
	}
	f, ok := s.FieldByName(name)
	if !ok {
		return field.Field{}, fmt.Errorf("%w: geometry field %q is not declared", domain.ErrConfig, name)
	}
	if !f.Geometry() {
		return field.Field{}, fmt.Errorf("%w: field %q is not geometry-typed", domain.ErrConfig, name)
	}
	return f, nil
}
