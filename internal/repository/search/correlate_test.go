package search

import (
	"context"
	"reflect"
	"testing"

	"github.com/kailas-cloud/facetdex/internal/db"
	"github.com/kailas-cloud/facetdex/internal/domain/model"
)

func factRow(id string, score float64) db.SearchEntry {
	return db.SearchEntry{
		Key:    "facetdex:gen-1:row:" + id + ":title:0",
		Score:  score,
		Fields: map[string]string{"entity_id": id},
	}
}

func geoRow(id string) db.SearchEntry {
	return db.SearchEntry{
		Key: "facetdex:gen-1:row:" + id + ":location:0",
		Fields: map[string]string{
			"entity_id": id,
			"__g_shape": "POINT (2.2945 48.8584)",
		},
	}
}

func TestCorrelateRows_ComposesQuery(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()
	gen := testGeneration(t, model.Fact)

	ms.searchFn = func(_ context.Context, q *db.Query) (*db.SearchResult, error) {
		if q.IndexName != "facetdex:gen-1:idx" {
			t.Errorf("index = %s", q.IndexName)
		}
		if !q.Disjunctive {
			t.Error("fact layout clauses must join disjunctively")
		}
		if !reflect.DeepEqual(q.TextFields, []string{"text"}) {
			t.Errorf("text fields = %v", q.TextFields)
		}
		if q.Limit != 10000 {
			t.Errorf("limit = %d", q.Limit)
		}
		want := []string{"entity_id", "__g_shape"}
		if !reflect.DeepEqual(q.ReturnFields, want) {
			t.Errorf("return fields = %v", q.ReturnFields)
		}
		return &db.SearchResult{}, nil
	}

	geo := mustRadius(t, 2.2945, 48.8584, 1000)
	if _, err := repo.CorrelateRows(ctx, gen, "coffee", geo, 10000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCorrelate_Intersection(t *testing.T) {
	sr := &db.SearchResult{
		Total: 4,
		Entries: []db.SearchEntry{
			factRow("e1", 2.0), // text and geo: qualifies
			geoRow("e1"),
			factRow("e2", 3.0), // text only: dropped
			geoRow("e3"), // geo only: dropped
		},
	}

	c := correlate(sr, true, true)
	if c.Len() != 1 {
		t.Fatalf("ids = %v", c.IDs())
	}
	hit := c.Hits(0, 1)[0]
	if hit.ID() != "e1" || hit.Score() != 2.0 {
		t.Errorf("entity = %s %f", hit.ID(), hit.Score())
	}
}

func TestCorrelate_TextOnly(t *testing.T) {
	sr := &db.SearchResult{
		Total: 2,
		Entries: []db.SearchEntry{
			factRow("e1", 2.0),
			factRow("e2", 3.0),
		},
	}

	c := correlate(sr, true, false)
	if !reflect.DeepEqual(c.IDs(), []string{"e2", "e1"}) {
		t.Errorf("ids = %v", c.IDs())
	}
}

func TestCorrelate_GeoOnly(t *testing.T) {
	sr := &db.SearchResult{
		Total: 2,
		Entries: []db.SearchEntry{
			geoRow("e2"),
			geoRow("e1"),
		},
	}

	c := correlate(sr, false, true)
	// scores are all 0, so rank order falls back to id ascending
	if !reflect.DeepEqual(c.IDs(), []string{"e1", "e2"}) {
		t.Errorf("ids = %v", c.IDs())
	}
	if got := c.Hits(0, 1)[0].Score(); got != 0 {
		t.Errorf("score = %f", got)
	}
}

func TestCorrelate_OpenMatchAll(t *testing.T) {
	sr := &db.SearchResult{
		Total: 3,
		Entries: []db.SearchEntry{
			factRow("e1", 0),
			geoRow("e2"),
			factRow("e3", 0),
		},
	}

	c := correlate(sr, false, false)
	if !reflect.DeepEqual(c.IDs(), []string{"e1", "e2", "e3"}) {
		t.Errorf("ids = %v", c.IDs())
	}
}

func TestCorrelate_BestScorePerEntity(t *testing.T) {
	sr := &db.SearchResult{
		Total: 3,
		Entries: []db.SearchEntry{
			factRow("e1", 1.0),
			{
				Key:    "facetdex:gen-1:row:e1:body:0",
				Score:  4.0,
				Fields: map[string]string{"entity_id": "e1"},
			},
			factRow("e2", 2.0),
		},
	}

	c := correlate(sr, true, false)
	hit := c.Hits(0, 1)[0]
	if hit.ID() != "e1" || hit.Score() != 4.0 {
		t.Errorf("entity[0] = %s %f", hit.ID(), hit.Score())
	}
}

func TestCorrelate_Saturated(t *testing.T) {
	sr := &db.SearchResult{
		Total:   50000,
		Entries: []db.SearchEntry{factRow("e1", 1.0)},
	}

	c := correlate(sr, true, false)
	if !c.Saturated() {
		t.Error("a fetch below the match total must report saturation")
	}
	if c.Rows() != 1 {
		t.Errorf("rows = %d", c.Rows())
	}
}

func TestCorrelate_RowWithoutEntityID(t *testing.T) {
	sr := &db.SearchResult{
		Total: 2,
		Entries: []db.SearchEntry{
			factRow("e1", 1.0),
			{Key: "facetdex:gen-1:row:broken", Fields: map[string]string{}},
		},
	}

	c := correlate(sr, true, false)
	if !reflect.DeepEqual(c.IDs(), []string{"e1"}) {
		t.Errorf("ids = %v", c.IDs())
	}
}
