package row

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kailas-cloud/facetdex/internal/db"
	"github.com/kailas-cloud/facetdex/internal/domain"
	domcat "github.com/kailas-cloud/facetdex/internal/domain/catalog"
	"github.com/kailas-cloud/facetdex/internal/domain/entity"
	"github.com/kailas-cloud/facetdex/internal/domain/model"
)

// maxEntityRows caps how many fact rows one entity may occupy. An
// entity whose attributes exceed it cannot be reconstructed or diffed
// reliably and is rejected.
const maxEntityRows = 1024

// seedBatchSize is the pipelined HSET batch size during bulk loads.
const seedBatchSize = 512

// store is the consumer interface for row persistence (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Search(ctx context.Context, q *db.Query) (*db.SearchResult, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	ZAddMulti(ctx context.Context, key string, entries []db.ZEntry) error
	ApplyMutation(ctx context.Context, m *db.Mutation) error
}

// Repo implements usecase/entity.Repository. Every write goes through a
// single MULTI/EXEC mutation carrying the row changes together with the
// facet registry deltas they imply.
type Repo struct {
	store store
}

// New creates a row repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Upsert writes an entity's rows for the generation's layout, replacing
// any previous rows, and adjusts the facet registries by the value
// diff. Returns true if the entity did not exist before.
func (r *Repo) Upsert(ctx context.Context, gen domcat.Generation, e entity.Entity) (bool, error) {
	oldAttrs, oldKeys, err := r.loadRows(ctx, gen, e.ID())
	if err != nil {
		return false, err
	}

	items, err := materializeRows(gen, e)
	if err != nil {
		return false, err
	}

	incrs, trims := facetDeltas(gen, oldAttrs, e.Attrs())
	mut := &db.Mutation{
		Sets:       items,
		Deletes:    oldKeys,
		FacetIncrs: incrs,
		TrimKeys:   trims,
		MetaKey:    metaKey(gen.ID()),
	}
	if err := r.store.ApplyMutation(ctx, mut); err != nil {
		return false, fmt.Errorf("apply upsert %s: %w", e.ID(), err)
	}

	return len(oldKeys) == 0, nil
}

// Get reconstructs an entity from its stored rows.
func (r *Repo) Get(ctx context.Context, gen domcat.Generation, id string) (entity.Entity, error) {
	attrs, keys, err := r.loadRows(ctx, gen, id)
	if err != nil {
		return entity.Entity{}, err
	}
	if len(keys) == 0 {
		return entity.Entity{}, domain.ErrEntityNotFound
	}
	return entity.Reconstruct(id, attrs), nil
}

// Delete removes an entity's rows and decrements its facet values.
func (r *Repo) Delete(ctx context.Context, gen domcat.Generation, id string) error {
	oldAttrs, oldKeys, err := r.loadRows(ctx, gen, id)
	if err != nil {
		return err
	}
	if len(oldKeys) == 0 {
		return domain.ErrEntityNotFound
	}

	incrs, trims := facetDeltas(gen, oldAttrs, nil)
	mut := &db.Mutation{
		Deletes:    oldKeys,
		FacetIncrs: incrs,
		TrimKeys:   trims,
		MetaKey:    metaKey(gen.ID()),
	}
	if err := r.store.ApplyMutation(ctx, mut); err != nil {
		return fmt.Errorf("apply delete %s: %w", id, err)
	}
	return nil
}

// Seed bulk-loads entities into a fresh generation: pipelined row
// writes, facet registries seeded with absolute counts, and the version
// counters set as if each entity had been applied as one mutation. The
// generation must not be serving reads yet; unlike Upsert, the writes
// are not transactional.
func (r *Repo) Seed(ctx context.Context, gen domcat.Generation, entities []entity.Entity) error {
	counts := make(map[string]map[string]int64)

	batch := make([]db.HashSetItem, 0, seedBatchSize)
	for _, e := range entities {
		items, err := materializeRows(gen, e)
		if err != nil {
			return fmt.Errorf("materialize %s: %w", e.ID(), err)
		}
		batch = append(batch, items...)
		if len(batch) >= seedBatchSize {
			if err := r.store.HSetMulti(ctx, batch); err != nil {
				return fmt.Errorf("seed rows: %w", err)
			}
			batch = batch[:0]
		}

		for field, values := range facetValues(gen, e.Attrs()) {
			if counts[field] == nil {
				counts[field] = make(map[string]int64)
			}
			for v := range values {
				counts[field][v]++
			}
		}
	}
	if len(batch) > 0 {
		if err := r.store.HSetMulti(ctx, batch); err != nil {
			return fmt.Errorf("seed rows: %w", err)
		}
	}

	for field, values := range counts {
		entries := make([]db.ZEntry, 0, len(values))
		for v, n := range values {
			entries = append(entries, db.ZEntry{Member: v, Score: float64(n)})
		}
		if err := r.store.ZAddMulti(ctx, registryKey(gen.ID(), field), entries); err != nil {
			return fmt.Errorf("seed facet registry %s: %w", field, err)
		}
	}

	n := fmt.Sprintf("%d", len(entities))
	versions := map[string]string{db.RowVersionField: n, db.FacetVersionField: n}
	if err := r.store.HSet(ctx, metaKey(gen.ID()), versions); err != nil {
		return fmt.Errorf("seed versions: %w", err)
	}
	return nil
}

// ListIDs enumerates the distinct entity ids of a generation by
// scanning its row keyspace. Ids come back sorted; both layouts encode
// the id as the first key segment after the row prefix.
func (r *Repo) ListIDs(ctx context.Context, gen domcat.Generation) ([]string, error) {
	prefix := rowPrefix(gen.ID())
	keys, err := r.store.Scan(ctx, prefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan rows %s: %w", gen.ID(), err)
	}

	seen := make(map[string]bool, len(keys))
	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		rest := strings.TrimPrefix(key, prefix)
		if i := strings.IndexByte(rest, ':'); i >= 0 {
			rest = rest[:i]
		}
		if rest == "" || seen[rest] {
			continue
		}
		seen[rest] = true
		ids = append(ids, rest)
	}
	sort.Strings(ids)
	return ids, nil
}

// loadRows reads an entity's current rows: the attribute map and the
// row keys occupied. Both are empty when the entity does not exist.
func (r *Repo) loadRows(ctx context.Context, gen domcat.Generation, id string) (map[string][]string, []string, error) {
	if gen.Model() == model.Entity {
		key := entityRowKey(gen.ID(), id)
		m, err := r.store.HGetAll(ctx, key)
		if err != nil {
			return nil, nil, fmt.Errorf("hgetall row %s: %w", id, err)
		}
		if len(m) == 0 {
			return nil, nil, nil
		}
		return attrsFromEntityHash(gen, m), []string{key}, nil
	}

	res, err := r.store.Search(ctx, &db.Query{
		IndexName:    indexName(gen.ID()),
		Tags:         []db.TagClause{{Field: model.AttrEntityID, Values: []string{id}}},
		Limit:        maxEntityRows,
		ReturnFields: factReturnFields(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("search rows %s: %w", id, err)
	}
	if res.Total > int64(len(res.Entries)) {
		return nil, nil, fmt.Errorf("entity %s occupies %d rows, limit %d", id, res.Total, maxEntityRows)
	}

	attrs, keys := attrsFromFactRows(res.Entries)
	return attrs, keys, nil
}

// Redis key patterns: facetdex:{gen}:row:{id} (entity layout),
// facetdex:{gen}:row:{id}:{field}:{ordinal} (fact layout),
// facetdex:{gen}:facet:{field}, facetdex:{gen}:meta

func rowPrefix(gen string) string {
	return fmt.Sprintf("%s%s:row:", domain.KeyPrefix, gen)
}

func entityRowKey(gen, id string) string {
	return rowPrefix(gen) + id
}

func factRowKey(gen, id, field string, ordinal int) string {
	return fmt.Sprintf("%s%s:row:%s:%s:%d", domain.KeyPrefix, gen, id, field, ordinal)
}

func registryKey(gen, field string) string {
	return fmt.Sprintf("%s%s:facet:%s", domain.KeyPrefix, gen, field)
}

func metaKey(gen string) string {
	return fmt.Sprintf("%s%s:meta", domain.KeyPrefix, gen)
}

func indexName(gen string) string {
	return fmt.Sprintf("%s%s:idx", domain.KeyPrefix, gen)
}
