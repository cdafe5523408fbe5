package row

import (
	"reflect"
	"testing"

	"github.com/kailas-cloud/facetdex/internal/db"
	domcat "github.com/kailas-cloud/facetdex/internal/domain/catalog"
	"github.com/kailas-cloud/facetdex/internal/domain/entity"
	"github.com/kailas-cloud/facetdex/internal/domain/model"
	"github.com/kailas-cloud/facetdex/internal/domain/schema"
	"github.com/kailas-cloud/facetdex/internal/domain/schema/field"
)

// --- materializeRows ---

func TestMaterializeRows_EntityLayout_SkipsAbsentFields(t *testing.T) {
	gen := testGeneration(t, model.Entity)
	e := entity.Reconstruct("e2", map[string][]string{"title": {"short"}})

	items, err := materializeRows(gen, e)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 row, got %d", len(items))
	}
	want := map[string]string{"entity_id": "e2", "title": "short"}
	if !reflect.DeepEqual(items[0].Fields, want) {
		t.Errorf("fields = %+v", items[0].Fields)
	}
}

func TestMaterializeRows_FactLayout_DualRoleField(t *testing.T) {
	sch := schema.Reconstruct([]field.Field{
		field.Reconstruct("body", true, true, false, false),
	})
	gen := domcat.Reconstruct("gen-1", model.Fact, sch, 1700000000000)
	e := entity.Reconstruct("e1", map[string][]string{"body": {"apple pie"}})

	items, err := materializeRows(gen, e)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 row, got %d", len(items))
	}
	f := items[0].Fields
	if f["text"] != "apple pie" || f["facet"] != "apple pie" {
		t.Errorf("dual-role row must carry both columns, got %+v", f)
	}
}

func TestMaterializeRows_FactLayout_Ordinals(t *testing.T) {
	gen := testGeneration(t, model.Fact)
	e := entity.Reconstruct("e1", map[string][]string{
		"category": {"a", "b", "c"},
	})

	items, err := materializeRows(gen, e)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	keys := make([]string, len(items))
	for i, item := range items {
		keys[i] = item.Key
	}
	want := []string{
		"facetdex:gen-1:row:e1:category:0",
		"facetdex:gen-1:row:e1:category:1",
		"facetdex:gen-1:row:e1:category:2",
	}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("keys = %v", keys)
	}
	wantVals := []string{"a", "b", "c"}
	for i, item := range items {
		if got := item.Fields["facet"]; got != wantVals[i] {
			t.Errorf("row %d facet = %q", i, got)
		}
	}
}

func TestMaterializeRows_UnknownField(t *testing.T) {
	gen := testGeneration(t, model.Fact)
	e := entity.Reconstruct("e1", map[string][]string{"color": {"red"}})

	if _, err := materializeRows(gen, e); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

// --- geoFields ---

func TestGeoFields_PointStored(t *testing.T) {
	f := field.Reconstruct("location", false, false, true, true)

	got, err := geoFields(f, []string{"POINT (2.2945 48.8584)"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]string{
		"__g":       "2.2945,48.8584",
		"__g_shape": "POINT (2.2945 48.8584)",
		"__g_lat":   "48.8584",
		"__g_lon":   "2.2945",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("geo fields = %+v", got)
	}
}

func TestGeoFields_PointNotStored(t *testing.T) {
	f := field.Reconstruct("location", false, false, true, false)

	got, err := geoFields(f, []string{"POINT (2.2945 48.8584)"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := got["__g_lat"]; ok {
		t.Error("coordinates must not be stored without the stored flag")
	}
	if got["__g"] != "2.2945,48.8584" {
		t.Errorf("__g = %q", got["__g"])
	}
}

func TestGeoFields_Polygon(t *testing.T) {
	f := field.Reconstruct("area", false, false, true, false)

	got, err := geoFields(f, []string{"POLYGON ((0 0, 4 0, 4 4, 0 4, 0 0))"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Polygons have no center, so no GEO member
	if _, ok := got["__g"]; ok {
		t.Error("polygon must not produce a GEO member")
	}
	if got["__g_shape"] != "POLYGON ((0 0, 4 0, 4 4, 0 4, 0 0))" {
		t.Errorf("__g_shape = %q", got["__g_shape"])
	}
}

func TestGeoFields_MultipleValues(t *testing.T) {
	f := field.Reconstruct("location", false, false, true, false)

	_, err := geoFields(f, []string{"POINT (1 1)", "POINT (2 2)"})
	if err == nil {
		t.Fatal("expected error for multi-valued geometry")
	}
}

// --- attrsFromFactRows ---

func TestAttrsFromFactRows_LenientOnBrokenRows(t *testing.T) {
	entries := []db.SearchEntry{
		{Key: "facetdex:gen-1:row:e1:title:0", Fields: map[string]string{"field": "title", "text": "ok"}},
		{Key: "facetdex:gen-1:row:e1:junk", Fields: map[string]string{"field": "junk"}},
		{Key: "facetdex:gen-1:row:e1:empty:0", Fields: map[string]string{"field": "empty"}},
	}

	attrs, keys := attrsFromFactRows(entries)

	// Broken rows keep their keys so a delete still clears them
	if len(keys) != 3 {
		t.Errorf("expected all 3 keys, got %v", keys)
	}
	if !reflect.DeepEqual(attrs, map[string][]string{"title": {"ok"}}) {
		t.Errorf("attrs = %+v", attrs)
	}
}

func TestAttrsFromFactRows_GeometryFromShape(t *testing.T) {
	entries := []db.SearchEntry{
		{Key: "facetdex:gen-1:row:e1:location:0", Fields: map[string]string{
			"field":     "location",
			"__g_shape": "POINT (2.2945 48.8584)",
		}},
	}

	attrs, _ := attrsFromFactRows(entries)
	if !reflect.DeepEqual(attrs["location"], []string{"POINT (2.2945 48.8584)"}) {
		t.Errorf("location = %v", attrs["location"])
	}
}

// --- rowOrdinal ---

func TestRowOrdinal(t *testing.T) {
	ord, err := rowOrdinal("facetdex:gen-1:row:e1:category:7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ord != 7 {
		t.Errorf("ordinal = %d", ord)
	}

	if _, err := rowOrdinal("no-colons"); err == nil {
		t.Error("expected error for a key without ordinal")
	}
	if _, err := rowOrdinal("facetdex:gen-1:row:e1:category:x"); err == nil {
		t.Error("expected error for a non-numeric ordinal")
	}
}

// --- facetDeltas ---

func TestFacetDeltas_NoChange(t *testing.T) {
	gen := testGeneration(t, model.Entity)
	attrs := map[string][]string{"category": {"technology"}}

	incrs, trims := facetDeltas(gen, attrs, attrs)
	if len(incrs) != 0 {
		t.Errorf("unexpected incrs: %+v", incrs)
	}
	if len(trims) != 0 {
		t.Errorf("unexpected trims: %v", trims)
	}
}

func TestFacetDeltas_DuplicateValuesCountOnce(t *testing.T) {
	gen := testGeneration(t, model.Entity)
	attrs := map[string][]string{"category": {"technology", "technology"}}

	incrs, _ := facetDeltas(gen, nil, attrs)
	want := []db.FacetDelta{
		{Key: "facetdex:gen-1:facet:category", Member: "technology", Delta: 1},
	}
	if !reflect.DeepEqual(incrs, want) {
		t.Errorf("incrs = %+v", incrs)
	}
}

func TestFacetDeltas_IgnoresNonFacetableFields(t *testing.T) {
	gen := testGeneration(t, model.Entity)
	attrs := map[string][]string{"title": {"some text"}}

	incrs, trims := facetDeltas(gen, nil, attrs)
	if len(incrs) != 0 || len(trims) != 0 {
		t.Errorf("searchable-only field must not touch registries: %+v %v", incrs, trims)
	}
}
