package row

import (
	"context"
	"testing"

	"github.com/kailas-cloud/facetdex/internal/db"
	domcat "github.com/kailas-cloud/facetdex/internal/domain/catalog"
	"github.com/kailas-cloud/facetdex/internal/domain/entity"
	"github.com/kailas-cloud/facetdex/internal/domain/model"
	"github.com/kailas-cloud/facetdex/internal/domain/schema"
	"github.com/kailas-cloud/facetdex/internal/domain/schema/field"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetFn          func(ctx context.Context, key string, fields map[string]string) error
	hsetMultiFn     func(ctx context.Context, items []db.HashSetItem) error
	hgetAllFn       func(ctx context.Context, key string) (map[string]string, error)
	searchFn        func(ctx context.Context, q *db.Query) (*db.SearchResult, error)
	scanFn          func(ctx context.Context, pattern string) ([]string, error)
	zaddMultiFn     func(ctx context.Context, key string, entries []db.ZEntry) error
	applyMutationFn func(ctx context.Context, m *db.Mutation) error
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.hsetMultiFn != nil {
		return m.hsetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) Search(ctx context.Context, q *db.Query) (*db.SearchResult, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, pattern)
	}
	return nil, nil
}

func (m *mockStore) ZAddMulti(ctx context.Context, key string, entries []db.ZEntry) error {
	if m.zaddMultiFn != nil {
		return m.zaddMultiFn(ctx, key, entries)
	}
	return nil
}

func (m *mockStore) ApplyMutation(ctx context.Context, mut *db.Mutation) error {
	if m.applyMutationFn != nil {
		return m.applyMutationFn(ctx, mut)
	}
	return nil
}

func newTestRepo(_ *testing.T) (*Repo, *mockStore) {
	ms := &mockStore{}
	return New(ms), ms
}

func testSchema(t *testing.T) schema.Schema {
	t.Helper()
	return schema.Reconstruct([]field.Field{
		field.Reconstruct("title", true, false, false, false),
		field.Reconstruct("category", false, true, false, false),
		field.Reconstruct("location", false, false, true, true),
	})
}

func testGeneration(t *testing.T, m model.Model) domcat.Generation {
	t.Helper()
	return domcat.Reconstruct("gen-1", m, testSchema(t), 1700000000000)
}

func testEntity(t *testing.T) entity.Entity {
	t.Helper()
	return entity.Reconstruct("e1", map[string][]string{
		"title":    {"golang concurrency"},
		"category": {"technology", "science"},
		"location": {"POINT (2.2945 48.8584)"},
	})
}
