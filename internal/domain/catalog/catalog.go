package catalog

import (
	"fmt"
	"regexp"
	"time"

	"github.com/kailas-cloud/facetdex/internal/domain"
	"github.com/kailas-cloud/facetdex/internal/domain/model"
	"github.com/kailas-cloud/facetdex/internal/domain/schema"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Generation is one built incarnation of the index (immutable value
// object). Every build gets a fresh generation id; the catalog pointer
// names the generation serving reads, and retired generations are
// dropped wholesale by key prefix.
type Generation struct {
	id        string
	docModel  model.Model
	sch       schema.Schema
	createdAt int64
}

// New validates and creates a Generation stamped with the current time.
// ID: ^[a-zA-Z0-9_-]+$, 1-64 chars. Model must be a supported layout.
func New(id string, m model.Model, sch schema.Schema) (Generation, error) {
	if id == "" {
		return Generation{}, fmt.Errorf("%w: generation id is required", domain.ErrConfig)
	}
	if len(id) > 64 {
		return Generation{}, fmt.Errorf("%w: generation id too long (max 64)", domain.ErrConfig)
	}
	if !idRegex.MatchString(id) {
		return Generation{}, fmt.Errorf("%w: generation id must be alphanumeric with underscores and hyphens", domain.ErrConfig)
	}
	if !m.IsValid() {
		return Generation{}, fmt.Errorf("%w: invalid document model: %q", domain.ErrConfig, m)
	}
	if len(sch.Fields()) == 0 {
		return Generation{}, fmt.Errorf("%w: generation requires a schema", domain.ErrConfig)
	}

	return Generation{
		id:        id,
		docModel:  m,
		sch:       sch,
		createdAt: time.Now().UnixMilli(),
	}, nil
}

// Reconstruct creates a Generation without validation (storage hydration).
func Reconstruct(id string, m model.Model, sch schema.Schema, createdAt int64) Generation {
	if m == "" {
		m = model.Default
	}
	return Generation{id: id, docModel: m, sch: sch, createdAt: createdAt}
}

// ID returns the generation identifier.
func (g Generation) ID() string { return g.id }

// Model returns the document layout this generation was built with.
func (g Generation) Model() model.Model { return g.docModel }

// Schema returns the field schema this generation was built with.
func (g Generation) Schema() schema.Schema { return g.sch }

// CreatedAt returns the build timestamp (unix millis).
func (g Generation) CreatedAt() int64 { return g.createdAt }

// Versions carries the mutation counters persisted alongside a
// generation. Row and facet counters advance together inside one
// transaction, so a gap between them indicates drift.
type Versions struct {
	Row   int64
	Facet int64
}

// InSync reports whether row and facet state advanced in lockstep.
func (v Versions) InSync() bool { return v.Row == v.Facet }
