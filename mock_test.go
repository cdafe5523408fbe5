package facetdex

import (
	"context"
	"testing"

	dombatch "github.com/kailas-cloud/facetdex/internal/domain/batch"
	domcat "github.com/kailas-cloud/facetdex/internal/domain/catalog"
	doment "github.com/kailas-cloud/facetdex/internal/domain/entity"
	"github.com/kailas-cloud/facetdex/internal/domain/model"
	"github.com/kailas-cloud/facetdex/internal/domain/schema"
	"github.com/kailas-cloud/facetdex/internal/domain/schema/field"
	"github.com/kailas-cloud/facetdex/internal/domain/search/request"
	"github.com/kailas-cloud/facetdex/internal/domain/search/result"
	cataloguc "github.com/kailas-cloud/facetdex/internal/usecase/catalog"
	healthuc "github.com/kailas-cloud/facetdex/internal/usecase/health"
)

// --- entityUseCase mock ---

type mockEntityUC struct {
	upsertFn func(ctx context.Context, e doment.Entity) (bool, error)
	getFn    func(ctx context.Context, id string) (doment.Entity, error)
	deleteFn func(ctx context.Context, id string) error
}

func (m *mockEntityUC) Upsert(ctx context.Context, e doment.Entity) (bool, error) {
	return m.upsertFn(ctx, e)
}

func (m *mockEntityUC) Get(ctx context.Context, id string) (doment.Entity, error) {
	return m.getFn(ctx, id)
}

func (m *mockEntityUC) Delete(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

// --- batchUseCase mock ---

type mockBatchUC struct {
	upsertFn func(ctx context.Context, items []doment.Entity) []dombatch.Result
	deleteFn func(ctx context.Context, ids []string) []dombatch.Result
}

func (m *mockBatchUC) Upsert(ctx context.Context, items []doment.Entity) []dombatch.Result {
	return m.upsertFn(ctx, items)
}

func (m *mockBatchUC) Delete(ctx context.Context, ids []string) []dombatch.Result {
	return m.deleteFn(ctx, ids)
}

// --- searchUseCase mock ---

type mockSearchUC struct {
	searchFn func(ctx context.Context, req *request.Request) (result.Result, error)
}

func (m *mockSearchUC) Search(ctx context.Context, req *request.Request) (result.Result, error) {
	return m.searchFn(ctx, req)
}

// --- catalogUseCase mock ---

type mockCatalogUC struct {
	acquireFn   func() (*cataloguc.Snapshot, error)
	rebuildFn   func(ctx context.Context, target model.Model) (domcat.Generation, error)
	integrityFn func(ctx context.Context) (cataloguc.Report, error)
}

func (m *mockCatalogUC) Acquire() (*cataloguc.Snapshot, error) {
	return m.acquireFn()
}

func (m *mockCatalogUC) Rebuild(ctx context.Context, target model.Model) (domcat.Generation, error) {
	return m.rebuildFn(ctx, target)
}

func (m *mockCatalogUC) Integrity(ctx context.Context) (cataloguc.Report, error) {
	return m.integrityFn(ctx)
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	checkFn func(ctx context.Context) healthuc.Report
}

func (m *mockHealthUC) Check(ctx context.Context) healthuc.Report {
	return m.checkFn(ctx)
}

// --- helpers ---

func testClient(
	entitySvc entityUseCase,
	batchSvc batchUseCase,
	searchSvc searchUseCase,
	catalogSvc catalogUseCase,
) *Client {
	return &Client{
		entitySvc:  entitySvc,
		batchSvc:   batchSvc,
		searchSvc:  searchSvc,
		catalogSvc: catalogSvc,
	}
}

// testSchema builds a places-like schema: searchable name, facetable
// category and city, stored geometry location.
func testSchema(t *testing.T) schema.Schema {
	t.Helper()
	specs := []struct {
		name                                   string
		searchable, facetable, geometry, stored bool
	}{
		{"name", true, false, false, false},
		{"category", false, true, false, false},
		{"city", true, true, false, false},
		{"location", false, false, true, true},
	}
	fields := make([]field.Field, len(specs))
	for i, s := range specs {
		f, err := field.New(s.name, s.searchable, s.facetable, s.geometry, s.stored)
		if err != nil {
			t.Fatalf("field %q: %v", s.name, err)
		}
		fields[i] = f
	}
	sch, err := schema.New(fields)
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	return sch
}

func testSnapshot(t *testing.T, genID string, m model.Model) *cataloguc.Snapshot {
	t.Helper()
	gen, err := domcat.New(genID, m, testSchema(t))
	if err != nil {
		t.Fatalf("generation: %v", err)
	}
	return cataloguc.NewSnapshot(gen, nil)
}
