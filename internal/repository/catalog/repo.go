package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/facetdex/internal/db"
	"github.com/kailas-cloud/facetdex/internal/domain"
	domcat "github.com/kailas-cloud/facetdex/internal/domain/catalog"
)

// store is the consumer interface for catalog management (ISP).
//
//nolint:interfacebloat // catalog repo needs kv + hash + index management operations
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	DelMulti(ctx context.Context, keys []string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	Count(ctx context.Context, q *db.Query) (int64, error)
	ZCard(ctx context.Context, key string) (int64, error)
}

// Repo implements usecase/catalog.Repository.
type Repo struct {
	store store
}

// New creates a catalog repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Current returns the generation id serving reads.
func (r *Repo) Current(ctx context.Context) (string, error) {
	v, err := r.store.Get(ctx, currentKey)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("get current generation: %w", err)
	}
	return string(v), nil
}

// SetCurrent repoints reads at the given generation.
func (r *Repo) SetCurrent(ctx context.Context, id string) error {
	if err := r.store.Set(ctx, currentKey, []byte(id)); err != nil {
		return fmt.Errorf("set current generation: %w", err)
	}
	return nil
}

// Create stores a generation: HSET metadata then FT.CREATE index.
// On FT.CREATE failure, rolls back the HSET via DEL.
func (r *Repo) Create(ctx context.Context, gen domcat.Generation) error {
	id := gen.ID()

	metaKey := metaKey(id)
	exists, err := r.store.Exists(ctx, metaKey)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return domain.ErrAlreadyExists
	}

	// Prepare index definition and hash data before writes
	indexDef, err := buildIndex(gen)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	hashData, err := generationToHash(gen)
	if err != nil {
		return err
	}

	// Step 1: HSET metadata
	if err := r.store.HSet(ctx, metaKey, hashData); err != nil {
		return fmt.Errorf("hset generation %s: %w", id, err)
	}

	// FT.CREATE — rollback HSET on error
	if err := r.store.CreateIndex(ctx, indexDef); err != nil {
		cleanupErr := r.store.Del(ctx, metaKey)
		return errors.Join(err, cleanupErr)
	}

	return nil
}

// Get retrieves a generation by id.
func (r *Repo) Get(ctx context.Context, id string) (domcat.Generation, error) {
	m, err := r.store.HGetAll(ctx, metaKey(id))
	if err != nil {
		return domcat.Generation{}, fmt.Errorf("hgetall generation %s: %w", id, err)
	}
	if len(m) == 0 {
		return domcat.Generation{}, domain.ErrNotFound
	}

	return generationFromHash(m)
}

// Drop removes a retired generation wholesale: FT.DROPINDEX, then every
// key under the generation prefix (metadata, rows, facet registries).
// A missing index is tolerated so a partially created generation can
// still be cleaned up.
func (r *Repo) Drop(ctx context.Context, id string) error {
	if err := r.store.DropIndex(ctx, indexName(id)); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index for generation %s: %w", id, err)
	}

	keys, err := r.store.Scan(ctx, generationPattern(id))
	if err != nil {
		return fmt.Errorf("scan generation %s: %w", id, err)
	}
	if len(keys) == 0 {
		return nil
	}

	if err := r.store.DelMulti(ctx, keys); err != nil {
		return fmt.Errorf("del generation %s: %w", id, err)
	}
	return nil
}

// Versions returns the mutation counters of a generation. A generation
// that exists but has never been written to reports zero counters.
func (r *Repo) Versions(ctx context.Context, id string) (domcat.Versions, error) {
	m, err := r.store.HGetAll(ctx, metaKey(id))
	if err != nil {
		return domcat.Versions{}, fmt.Errorf("hgetall generation %s: %w", id, err)
	}
	if len(m) == 0 {
		return domcat.Versions{}, domain.ErrNotFound
	}
	return versionsFromHash(m), nil
}

// RowCount returns the number of rows the generation's index covers.
func (r *Repo) RowCount(ctx context.Context, id string) (int64, error) {
	n, err := r.store.Count(ctx, &db.Query{IndexName: indexName(id)})
	if err != nil {
		return 0, fmt.Errorf("count rows for generation %s: %w", id, err)
	}
	return n, nil
}

// RegistrySize returns the number of distinct values in a field's
// facet registry.
func (r *Repo) RegistrySize(ctx context.Context, id, field string) (int64, error) {
	n, err := r.store.ZCard(ctx, registryKey(id, field))
	if err != nil {
		return 0, fmt.Errorf("zcard facet registry %s/%s: %w", id, field, err)
	}
	return n, nil
}

// IndexExists reports whether the generation's FT index is present.
func (r *Repo) IndexExists(ctx context.Context, id string) (bool, error) {
	return r.store.IndexExists(ctx, indexName(id))
}

// Redis key patterns: facetdex:catalog:current, facetdex:{gen}:meta,
// facetdex:{gen}:idx, facetdex:{gen}:row:{id}, facetdex:{gen}:facet:{field}

const currentKey = domain.KeyPrefix + "catalog:current"

func metaKey(id string) string {
	return fmt.Sprintf("%s%s:meta", domain.KeyPrefix, id)
}

func indexName(id string) string {
	return fmt.Sprintf("%s%s:idx", domain.KeyPrefix, id)
}

func rowPrefix(id string) string {
	return fmt.Sprintf("%s%s:row:", domain.KeyPrefix, id)
}

func registryKey(id, field string) string {
	return fmt.Sprintf("%s%s:facet:%s", domain.KeyPrefix, id, field)
}

func generationPattern(id string) string {
	return fmt.Sprintf("%s%s:*", domain.KeyPrefix, id)
}
