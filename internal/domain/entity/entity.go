package entity

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kailas-cloud/facetdex/internal/domain/model"
)

var (
	idRegex     = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	reservedIDs = map[string]bool{"search": true, "batch": true}
)

// MaxValueSize is the maximum size of a single attribute value in bytes.
const MaxValueSize = 65536 // 64KB

// Entity is the indexed entity aggregate (immutable value object).
// Attributes map field names to ordered value lists; multi-valued
// attributes keep their ingest order.
type Entity struct {
	id    string
	attrs map[string][]string
}

// New validates and creates an Entity.
// ID: ^[a-zA-Z0-9_-]+$, 1-256 chars, not reserved.
// Attributes: at least one, each with at least one non-empty value.
// Attribute names are checked against the catalog schema in the service layer.
func New(id string, attrs map[string][]string) (Entity, error) {
	if id == "" {
		return Entity{}, fmt.Errorf("entity ID is required")
	}
	if len(id) > 256 {
		return Entity{}, fmt.Errorf("entity ID too long (max 256)")
	}
	if !idRegex.MatchString(id) {
		return Entity{}, fmt.Errorf("entity ID must be alphanumeric with underscores and hyphens")
	}
	if reservedIDs[id] {
		return Entity{}, fmt.Errorf("entity ID %q is reserved", id)
	}
	if len(attrs) == 0 {
		return Entity{}, fmt.Errorf("at least one attribute is required")
	}
	for name, values := range attrs {
		if len(values) == 0 {
			return Entity{}, fmt.Errorf("attribute %q has no values", name)
		}
		for _, v := range values {
			if v == "" {
				return Entity{}, fmt.Errorf("attribute %q has an empty value", name)
			}
			if len(v) > MaxValueSize {
				return Entity{}, fmt.Errorf("attribute %q value too large (max %d bytes)", name, MaxValueSize)
			}
			if strings.Contains(v, model.FacetSeparator) {
				return Entity{}, fmt.Errorf("attribute %q value contains a control character", name)
			}
		}
	}

	return Entity{id: id, attrs: cloneAttrs(attrs)}, nil
}

// Reconstruct creates an Entity without validation (storage hydration).
func Reconstruct(id string, attrs map[string][]string) Entity {
	return Entity{id: id, attrs: attrs}
}

// ID returns the entity identifier.
func (e *Entity) ID() string { return e.id }

// Attrs returns the attribute map.
func (e *Entity) Attrs() map[string][]string { return e.attrs }

// Values returns the value list for the named attribute.
func (e *Entity) Values(name string) []string { return e.attrs[name] }

func cloneAttrs(m map[string][]string) map[string][]string {
	c := make(map[string][]string, len(m))
	for k, v := range m {
		vals := make([]string, len(v))
		copy(vals, v)
		c[k] = vals
	}
	return c
}
