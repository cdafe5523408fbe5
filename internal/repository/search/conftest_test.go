package search

import (
	"context"
	"testing"

	"github.com/kailas-cloud/facetdex/internal/db"
	domcat "github.com/kailas-cloud/facetdex/internal/domain/catalog"
	"github.com/kailas-cloud/facetdex/internal/domain/model"
	"github.com/kailas-cloud/facetdex/internal/domain/schema"
	"github.com/kailas-cloud/facetdex/internal/domain/schema/field"
	"github.com/kailas-cloud/facetdex/internal/domain/search/geofilter"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	searchFn         func(ctx context.Context, q *db.Query) (*db.SearchResult, error)
	aggregateCountFn func(ctx context.Context, q *db.AggregateQuery) ([]db.GroupCount, error)
	zrangeFn         func(ctx context.Context, key string, start, stop int64, rev bool) ([]db.ZEntry, error)
}

func (m *mockStore) Search(ctx context.Context, q *db.Query) (*db.SearchResult, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) AggregateCount(ctx context.Context, q *db.AggregateQuery) ([]db.GroupCount, error) {
	if m.aggregateCountFn != nil {
		return m.aggregateCountFn(ctx, q)
	}
	return nil, nil
}

func (m *mockStore) ZRangeWithScores(ctx context.Context, key string, start, stop int64, rev bool) ([]db.ZEntry, error) {
	if m.zrangeFn != nil {
		return m.zrangeFn(ctx, key, start, stop, rev)
	}
	return nil, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	repo := New(ms)
	return repo, ms
}

func testSchema(t *testing.T) schema.Schema {
	t.Helper()
	return schema.Reconstruct([]field.Field{
		field.Reconstruct("title", true, false, false, false),
		field.Reconstruct("body", true, false, false, false),
		field.Reconstruct("category", false, true, false, false),
		field.Reconstruct("location", false, false, true, true),
	})
}

func testGeneration(t *testing.T, m model.Model) domcat.Generation {
	t.Helper()
	return domcat.Reconstruct("gen-1", m, testSchema(t), 1700000000000)
}

func mustRadius(t *testing.T, lon, lat, meters float64) geofilter.Filter {
	t.Helper()
	f, err := geofilter.NewRadius(lon, lat, meters)
	if err != nil {
		t.Fatalf("NewRadius: %v", err)
	}
	return f
}
