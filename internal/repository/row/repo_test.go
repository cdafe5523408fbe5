package row

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"

	"github.com/kailas-cloud/facetdex/internal/db"
	"github.com/kailas-cloud/facetdex/internal/domain"
	"github.com/kailas-cloud/facetdex/internal/domain/entity"
	"github.com/kailas-cloud/facetdex/internal/domain/model"
)

// --- Upsert ---

func TestUpsert_Create_EntityLayout(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()
	gen := testGeneration(t, model.Entity)

	ms.hgetAllFn = func(_ context.Context, key string) (map[string]string, error) {
		if key != "facetdex:gen-1:row:e1" {
			t.Errorf("unexpected key: %s", key)
		}
		return map[string]string{}, nil
	}

	var applied *db.Mutation
	ms.applyMutationFn = func(_ context.Context, m *db.Mutation) error {
		applied = m
		return nil
	}

	created, err := repo.Upsert(ctx, gen, testEntity(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Error("expected created=true for a new entity")
	}

	if len(applied.Sets) != 1 {
		t.Fatalf("expected 1 row, got %d", len(applied.Sets))
	}
	row := applied.Sets[0]
	if row.Key != "facetdex:gen-1:row:e1" {
		t.Errorf("unexpected row key: %s", row.Key)
	}
	if row.Fields["entity_id"] != "e1" {
		t.Errorf("entity_id = %q", row.Fields["entity_id"])
	}
	if row.Fields["title"] != "golang concurrency" {
		t.Errorf("title = %q", row.Fields["title"])
	}
	if row.Fields["category"] != "technology\x1fscience" {
		t.Errorf("category = %q", row.Fields["category"])
	}
	if row.Fields["__g"] != "2.2945,48.8584" {
		t.Errorf("__g = %q", row.Fields["__g"])
	}
	if row.Fields["__g_shape"] != "POINT (2.2945 48.8584)" {
		t.Errorf("__g_shape = %q", row.Fields["__g_shape"])
	}
	if row.Fields["__g_lat"] != "48.8584" || row.Fields["__g_lon"] != "2.2945" {
		t.Errorf("stored coordinates = %q, %q", row.Fields["__g_lat"], row.Fields["__g_lon"])
	}

	if len(applied.Deletes) != 0 {
		t.Errorf("unexpected deletes: %v", applied.Deletes)
	}
	wantIncrs := []db.FacetDelta{
		{Key: "facetdex:gen-1:facet:category", Member: "science", Delta: 1},
		{Key: "facetdex:gen-1:facet:category", Member: "technology", Delta: 1},
	}
	if !reflect.DeepEqual(applied.FacetIncrs, wantIncrs) {
		t.Errorf("facet incrs = %+v", applied.FacetIncrs)
	}
	if len(applied.TrimKeys) != 0 {
		t.Errorf("unexpected trim keys: %v", applied.TrimKeys)
	}
	if applied.MetaKey != "facetdex:gen-1:meta" {
		t.Errorf("meta key = %s", applied.MetaKey)
	}
}

func TestUpsert_Update_EntityLayout(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()
	gen := testGeneration(t, model.Entity)

	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
		return map[string]string{
			"entity_id": "e1",
			"title":     "old title",
			"category":  "science\x1fcooking",
		}, nil
	}

	var applied *db.Mutation
	ms.applyMutationFn = func(_ context.Context, m *db.Mutation) error {
		applied = m
		return nil
	}

	created, err := repo.Upsert(ctx, gen, testEntity(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("expected created=false for an existing entity")
	}

	// The old row is replaced: deleted and rewritten in one transaction
	if !reflect.DeepEqual(applied.Deletes, []string{"facetdex:gen-1:row:e1"}) {
		t.Errorf("deletes = %v", applied.Deletes)
	}
	wantIncrs := []db.FacetDelta{
		{Key: "facetdex:gen-1:facet:category", Member: "technology", Delta: 1},
		{Key: "facetdex:gen-1:facet:category", Member: "cooking", Delta: -1},
	}
	if !reflect.DeepEqual(applied.FacetIncrs, wantIncrs) {
		t.Errorf("facet incrs = %+v", applied.FacetIncrs)
	}
	if !reflect.DeepEqual(applied.TrimKeys, []string{"facetdex:gen-1:facet:category"}) {
		t.Errorf("trim keys = %v", applied.TrimKeys)
	}
}

func TestUpsert_Create_FactLayout(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()
	gen := testGeneration(t, model.Fact)

	ms.searchFn = func(_ context.Context, q *db.Query) (*db.SearchResult, error) {
		if q.IndexName != "facetdex:gen-1:idx" {
			t.Errorf("unexpected index: %s", q.IndexName)
		}
		want := []db.TagClause{{Field: "entity_id", Values: []string{"e1"}}}
		if !reflect.DeepEqual(q.Tags, want) {
			t.Errorf("tags = %+v", q.Tags)
		}
		return &db.SearchResult{}, nil
	}

	var applied *db.Mutation
	ms.applyMutationFn = func(_ context.Context, m *db.Mutation) error {
		applied = m
		return nil
	}

	created, err := repo.Upsert(ctx, gen, testEntity(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Error("expected created=true")
	}

	keys := make([]string, len(applied.Sets))
	for i, item := range applied.Sets {
		keys[i] = item.Key
	}
	wantKeys := []string{
		"facetdex:gen-1:row:e1:title:0",
		"facetdex:gen-1:row:e1:category:0",
		"facetdex:gen-1:row:e1:category:1",
		"facetdex:gen-1:row:e1:location:0",
	}
	if !reflect.DeepEqual(keys, wantKeys) {
		t.Errorf("row keys = %v", keys)
	}

	title := applied.Sets[0].Fields
	if title["field"] != "title" || title["text"] != "golang concurrency" {
		t.Errorf("title row = %+v", title)
	}
	if _, ok := title["facet"]; ok {
		t.Error("searchable-only row must not carry a facet column")
	}

	cat := applied.Sets[1].Fields
	if cat["field"] != "category" || cat["facet"] != "technology" {
		t.Errorf("category row = %+v", cat)
	}
	if _, ok := cat["text"]; ok {
		t.Error("facetable-only row must not carry a text column")
	}

	loc := applied.Sets[3].Fields
	if loc["__g"] != "2.2945,48.8584" || loc["__g_shape"] != "POINT (2.2945 48.8584)" {
		t.Errorf("location row = %+v", loc)
	}
}

func TestUpsert_Update_FactLayout(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()
	gen := testGeneration(t, model.Fact)

	ms.searchFn = func(_ context.Context, _ *db.Query) (*db.SearchResult, error) {
		return &db.SearchResult{
			Total: 2,
			Entries: []db.SearchEntry{
				{Key: "facetdex:gen-1:row:e1:title:0", Fields: map[string]string{"field": "title", "text": "old"}},
				{Key: "facetdex:gen-1:row:e1:category:0", Fields: map[string]string{"field": "category", "facet": "cooking"}},
			},
		}, nil
	}

	var applied *db.Mutation
	ms.applyMutationFn = func(_ context.Context, m *db.Mutation) error {
		applied = m
		return nil
	}

	created, err := repo.Upsert(ctx, gen, testEntity(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("expected created=false")
	}

	wantDeletes := []string{"facetdex:gen-1:row:e1:title:0", "facetdex:gen-1:row:e1:category:0"}
	if !reflect.DeepEqual(applied.Deletes, wantDeletes) {
		t.Errorf("deletes = %v", applied.Deletes)
	}
	wantIncrs := []db.FacetDelta{
		{Key: "facetdex:gen-1:facet:category", Member: "science", Delta: 1},
		{Key: "facetdex:gen-1:facet:category", Member: "technology", Delta: 1},
		{Key: "facetdex:gen-1:facet:category", Member: "cooking", Delta: -1},
	}
	if !reflect.DeepEqual(applied.FacetIncrs, wantIncrs) {
		t.Errorf("facet incrs = %+v", applied.FacetIncrs)
	}
}

func TestUpsert_UnknownField(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	ms.applyMutationFn = func(_ context.Context, _ *db.Mutation) error {
		t.Error("mutation must not be applied for an unknown field")
		return nil
	}

	e := entity.Reconstruct("e1", map[string][]string{"color": {"red"}})
	_, err := repo.Upsert(ctx, testGeneration(t, model.Entity), e)
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestUpsert_InvalidGeometry(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	e := entity.Reconstruct("e1", map[string][]string{
		"title":    {"x"},
		"location": {"LINESTRING (0 0, 1 1)"},
	})
	_, err := repo.Upsert(ctx, testGeneration(t, model.Entity), e)
	if !errors.Is(err, domain.ErrInvalidGeometry) {
		t.Fatalf("expected ErrInvalidGeometry, got %v", err)
	}
}

func TestUpsert_TooManyRows(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	ms.searchFn = func(_ context.Context, _ *db.Query) (*db.SearchResult, error) {
		return &db.SearchResult{Total: 5000}, nil
	}

	_, err := repo.Upsert(ctx, testGeneration(t, model.Fact), testEntity(t))
	if err == nil {
		t.Fatal("expected error when row count exceeds the fetch limit")
	}
}

// --- Get ---

func TestGet_EntityLayout(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	ms.hgetAllFn = func(_ context.Context, key string) (map[string]string, error) {
		if key != "facetdex:gen-1:row:e1" {
			t.Errorf("unexpected key: %s", key)
		}
		return map[string]string{
			"entity_id": "e1",
			"title":     "golang concurrency",
			"category":  "technology\x1fscience",
			"__g":       "2.2945,48.8584",
			"__g_shape": "POINT (2.2945 48.8584)",
		}, nil
	}

	e, err := repo.Get(ctx, testGeneration(t, model.Entity), "e1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.ID() != "e1" {
		t.Errorf("ID() = %q", e.ID())
	}
	if got := e.Values("category"); !reflect.DeepEqual(got, []string{"technology", "science"}) {
		t.Errorf("category = %v", got)
	}
	if got := e.Values("location"); !reflect.DeepEqual(got, []string{"POINT (2.2945 48.8584)"}) {
		t.Errorf("location = %v", got)
	}
}

func TestGet_FactLayout_RestoresValueOrder(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	// Hits come back in arbitrary order; ordinals restore ingest order
	ms.searchFn = func(_ context.Context, _ *db.Query) (*db.SearchResult, error) {
		return &db.SearchResult{
			Total: 3,
			Entries: []db.SearchEntry{
				{Key: "facetdex:gen-1:row:e1:category:1", Fields: map[string]string{"field": "category", "facet": "science"}},
				{Key: "facetdex:gen-1:row:e1:title:0", Fields: map[string]string{"field": "title", "text": "golang"}},
				{Key: "facetdex:gen-1:row:e1:category:0", Fields: map[string]string{"field": "category", "facet": "technology"}},
			},
		}, nil
	}

	e, err := repo.Get(ctx, testGeneration(t, model.Fact), "e1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := e.Values("category"); !reflect.DeepEqual(got, []string{"technology", "science"}) {
		t.Errorf("category = %v", got)
	}
	if got := e.Values("title"); !reflect.DeepEqual(got, []string{"golang"}) {
		t.Errorf("title = %v", got)
	}
}

func TestGet_NotFound_EntityLayout(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
		return map[string]string{}, nil
	}

	_, err := repo.Get(ctx, testGeneration(t, model.Entity), "nonexistent")
	if !errors.Is(err, domain.ErrEntityNotFound) {
		t.Fatalf("expected ErrEntityNotFound, got %v", err)
	}
}

func TestGet_NotFound_FactLayout(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	ms.searchFn = func(_ context.Context, _ *db.Query) (*db.SearchResult, error) {
		return &db.SearchResult{}, nil
	}

	_, err := repo.Get(ctx, testGeneration(t, model.Fact), "nonexistent")
	if !errors.Is(err, domain.ErrEntityNotFound) {
		t.Fatalf("expected ErrEntityNotFound, got %v", err)
	}
}

// --- Delete ---

func TestDelete_HappyPath(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
		return map[string]string{
			"entity_id": "e1",
			"title":     "x",
			"category":  "technology",
		}, nil
	}

	var applied *db.Mutation
	ms.applyMutationFn = func(_ context.Context, m *db.Mutation) error {
		applied = m
		return nil
	}

	if err := repo.Delete(ctx, testGeneration(t, model.Entity), "e1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(applied.Deletes, []string{"facetdex:gen-1:row:e1"}) {
		t.Errorf("deletes = %v", applied.Deletes)
	}
	if len(applied.Sets) != 0 {
		t.Errorf("unexpected sets: %+v", applied.Sets)
	}
	wantIncrs := []db.FacetDelta{
		{Key: "facetdex:gen-1:facet:category", Member: "technology", Delta: -1},
	}
	if !reflect.DeepEqual(applied.FacetIncrs, wantIncrs) {
		t.Errorf("facet incrs = %+v", applied.FacetIncrs)
	}
	if !reflect.DeepEqual(applied.TrimKeys, []string{"facetdex:gen-1:facet:category"}) {
		t.Errorf("trim keys = %v", applied.TrimKeys)
	}
}

func TestDelete_NotFound(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
		return map[string]string{}, nil
	}
	ms.applyMutationFn = func(_ context.Context, _ *db.Mutation) error {
		t.Error("mutation must not be applied for a missing entity")
		return nil
	}

	err := repo.Delete(ctx, testGeneration(t, model.Entity), "nonexistent")
	if !errors.Is(err, domain.ErrEntityNotFound) {
		t.Fatalf("expected ErrEntityNotFound, got %v", err)
	}
}

// --- Seed ---

func TestSeed_HappyPath(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()
	gen := testGeneration(t, model.Entity)

	var rows []db.HashSetItem
	ms.hsetMultiFn = func(_ context.Context, items []db.HashSetItem) error {
		rows = append(rows, items...)
		return nil
	}

	registries := make(map[string][]db.ZEntry)
	ms.zaddMultiFn = func(_ context.Context, key string, entries []db.ZEntry) error {
		registries[key] = entries
		return nil
	}

	var versions map[string]string
	ms.hsetFn = func(_ context.Context, key string, fields map[string]string) error {
		if key != "facetdex:gen-1:meta" {
			t.Errorf("unexpected meta key: %s", key)
		}
		versions = fields
		return nil
	}

	entities := []entity.Entity{
		entity.Reconstruct("e1", map[string][]string{"title": {"a"}, "category": {"technology"}}),
		entity.Reconstruct("e2", map[string][]string{"title": {"b"}, "category": {"technology", "science"}}),
	}
	if err := repo.Seed(ctx, gen, entities); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	got := registries["facetdex:gen-1:facet:category"]
	sort.Slice(got, func(i, j int) bool { return got[i].Member < got[j].Member })
	want := []db.ZEntry{{Member: "science", Score: 1}, {Member: "technology", Score: 2}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("registry entries = %+v", got)
	}

	if versions["row_version"] != "2" || versions["facet_version"] != "2" {
		t.Errorf("versions = %v", versions)
	}
}

func TestSeed_MaterializeError(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	ms.hsetMultiFn = func(_ context.Context, _ []db.HashSetItem) error {
		t.Error("rows must not be written when materialization fails")
		return nil
	}

	entities := []entity.Entity{
		entity.Reconstruct("e1", map[string][]string{"color": {"red"}}),
	}
	if err := repo.Seed(ctx, testGeneration(t, model.Entity), entities); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

// --- ListIDs ---

func TestListIDs_DistinctSorted(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	ms.scanFn = func(_ context.Context, pattern string) ([]string, error) {
		if pattern != "facetdex:gen-1:row:*" {
			t.Errorf("unexpected scan pattern %q", pattern)
		}
		return []string{
			"facetdex:gen-1:row:e2:title:0",
			"facetdex:gen-1:row:e2:category:1",
			"facetdex:gen-1:row:e1",
			"facetdex:gen-1:row:e3:location:0",
		}, nil
	}

	ids, err := repo.ListIDs(ctx, testGeneration(t, model.Fact))
	if err != nil {
		t.Fatalf("ListIDs: %v", err)
	}
	if want := []string{"e1", "e2", "e3"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("ids = %v, want %v", ids, want)
	}
}

func TestListIDs_ScanError(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	ms.scanFn = func(_ context.Context, _ string) ([]string, error) {
		return nil, errors.New("boom")
	}

	if _, err := repo.ListIDs(ctx, testGeneration(t, model.Fact)); err == nil {
		t.Fatal("expected error")
	}
}
