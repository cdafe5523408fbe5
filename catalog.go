package facetdex

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/facetdex/internal/domain/model"
	cataloguc "github.com/kailas-cloud/facetdex/internal/usecase/catalog"
)

// CatalogService manages the index catalog: schema inspection,
// rebuilds and integrity checks.
type CatalogService struct {
	svc catalogUseCase
	obs *observer
}

// Schema returns the active generation's schema.
func (s *CatalogService) Schema() (_ SchemaInfo, err error) {
	start := time.Now()
	defer func() { s.obs.observe("catalog.schema", start, err) }()

	snap, err := s.svc.Acquire()
	if err != nil {
		return SchemaInfo{}, fmt.Errorf("schema: %w", err)
	}
	defer snap.Release()

	fields := make([]FieldInfo, len(snap.Schema().Fields()))
	for i, f := range snap.Schema().Fields() {
		fields[i] = FieldInfo{
			Name:       f.Name(),
			Searchable: f.Searchable(),
			Facetable:  f.Facetable(),
			Geometry:   f.Geometry(),
			Stored:     f.Stored(),
		}
	}
	return SchemaInfo{
		Generation: snap.Generation().ID(),
		Model:      Model(snap.Model()),
		Fields:     fields,
	}, nil
}

// Rebuild builds a fresh generation under the target model, copies all
// entities into it and atomically swaps it in. Readers never observe a
// half-built index.
func (s *CatalogService) Rebuild(ctx context.Context, target Model) (_ GenerationInfo, err error) {
	start := time.Now()
	defer func() { s.obs.observe("catalog.rebuild", start, err) }()

	gen, err := s.svc.Rebuild(ctx, model.Model(target))
	if err != nil {
		return GenerationInfo{}, fmt.Errorf("rebuild: %w", err)
	}
	return GenerationInfo{ID: gen.ID(), Model: Model(gen.Model())}, nil
}

// Integrity verifies that row and facet registry writes advanced in
// lockstep. On drift the populated report is returned together with an
// error wrapping ErrStaleFacets.
func (s *CatalogService) Integrity(ctx context.Context) (_ IntegrityReport, err error) {
	start := time.Now()
	defer func() { s.obs.observe("catalog.integrity", start, err) }()

	report, err := s.svc.Integrity(ctx)
	pub := fromInternalReport(report)
	if err != nil {
		return pub, fmt.Errorf("integrity: %w", err)
	}
	return pub, nil
}

func fromInternalReport(r cataloguc.Report) IntegrityReport {
	return IntegrityReport{
		Generation:   r.Generation,
		Model:        Model(r.Model),
		RowVersion:   r.RowVersion,
		FacetVersion: r.FacetVersion,
		InSync:       r.InSync,
		Rows:         r.Rows,
		Registries:   r.Registries,
	}
}
