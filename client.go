package facetdex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/facetdex/internal/db"
	dbRedis "github.com/kailas-cloud/facetdex/internal/db/redis"
	dombatch "github.com/kailas-cloud/facetdex/internal/domain/batch"
	domcat "github.com/kailas-cloud/facetdex/internal/domain/catalog"
	doment "github.com/kailas-cloud/facetdex/internal/domain/entity"
	"github.com/kailas-cloud/facetdex/internal/domain/model"
	"github.com/kailas-cloud/facetdex/internal/domain/schema"
	"github.com/kailas-cloud/facetdex/internal/domain/schema/field"
	"github.com/kailas-cloud/facetdex/internal/domain/search/overflow"
	"github.com/kailas-cloud/facetdex/internal/domain/search/request"
	"github.com/kailas-cloud/facetdex/internal/domain/search/result"
	catalogrepo "github.com/kailas-cloud/facetdex/internal/repository/catalog"
	rowrepo "github.com/kailas-cloud/facetdex/internal/repository/row"
	searchrepo "github.com/kailas-cloud/facetdex/internal/repository/search"
	batchuc "github.com/kailas-cloud/facetdex/internal/usecase/batch"
	cataloguc "github.com/kailas-cloud/facetdex/internal/usecase/catalog"
	entityuc "github.com/kailas-cloud/facetdex/internal/usecase/entity"
	healthuc "github.com/kailas-cloud/facetdex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/facetdex/internal/usecase/search"
)

const defaultReadinessTimeout = 10 * time.Second

// Внутренние интерфейсы для подмены в тестах.
type entityUseCase interface {
	Upsert(ctx context.Context, e doment.Entity) (bool, error)
	Get(ctx context.Context, id string) (doment.Entity, error)
	Delete(ctx context.Context, id string) error
}

type batchUseCase interface {
	Upsert(ctx context.Context, items []doment.Entity) []dombatch.Result
	Delete(ctx context.Context, ids []string) []dombatch.Result
}

type searchUseCase interface {
	Search(ctx context.Context, req *request.Request) (result.Result, error)
}

type catalogUseCase interface {
	Acquire() (*cataloguc.Snapshot, error)
	Rebuild(ctx context.Context, target model.Model) (domcat.Generation, error)
	Integrity(ctx context.Context) (cataloguc.Report, error)
}

// Client is the facetdex SDK entry point.
type Client struct {
	store      db.Store
	entitySvc  entityUseCase
	batchSvc   batchUseCase
	searchSvc  searchUseCase
	catalogSvc catalogUseCase
	healthSvc  healthUseCase
	obs        *observer
}

// New creates a facetdex Client, connects to the database and opens
// the catalog (bootstrapping the first generation on a fresh index).
// The provided context covers the readiness check and the bootstrap.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{docModel: Model(model.Default)}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.schemaErr != nil {
		return nil, cfg.schemaErr
	}
	if len(cfg.addrs) == 0 {
		return nil, errors.New("facetdex: database address required (use WithRedis)")
	}
	sch, err := buildSchema(cfg.fields)
	if err != nil {
		return nil, err
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("facetdex: create redis store: %w", err)
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("facetdex: database not ready: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		store.Close()
		return nil, err
	}

	c, err := wireClient(ctx, store, sch, cfg, obs)
	if err != nil {
		store.Close()
		return nil, err
	}
	return c, nil
}

func buildSchema(specs []FieldSpec) (schema.Schema, error) {
	if len(specs) == 0 {
		return schema.Schema{}, errors.New("facetdex: schema required (use WithSchema or WithSchemaOf)")
	}
	fields := make([]field.Field, len(specs))
	for i, fs := range specs {
		var err error
		fields[i], err = field.New(fs.Name, fs.Searchable, fs.Facetable, fs.Geometry, fs.Stored)
		if err != nil {
			return schema.Schema{}, fmt.Errorf("facetdex: field %q: %w", fs.Name, err)
		}
	}
	sch, err := schema.New(fields)
	if err != nil {
		return schema.Schema{}, fmt.Errorf("facetdex: schema: %w", err)
	}
	return sch, nil
}

func wireClient(
	ctx context.Context, store db.Store, sch schema.Schema,
	cfg *clientConfig, obs *observer,
) (*Client, error) {
	catalogRepo := catalogrepo.New(store)
	rowRepo := rowrepo.New(store)
	searchRepo := searchrepo.New(store)

	// Rebuild log lines belong to the server; the SDK reports through
	// its own observer.
	catalogSvc := cataloguc.New(catalogRepo, rowRepo, model.Model(cfg.docModel), sch, zap.NewNop())
	if err := catalogSvc.EnsureOpen(ctx); err != nil {
		return nil, fmt.Errorf("facetdex: open catalog: %w", err)
	}

	searchSvc := searchuc.New(searchRepo, catalogSvc)
	if cfg.maxCorrelationRows > 0 || cfg.maxJoinIDs > 0 {
		searchSvc = searchSvc.WithJoinLimits(cfg.maxCorrelationRows, cfg.maxJoinIDs)
	}
	if cfg.overflowPolicy != "" {
		searchSvc = searchSvc.WithOverflowPolicy(overflow.Policy(cfg.overflowPolicy))
	}

	batchSvc := batchuc.New(rowRepo, rowRepo, catalogSvc)
	if cfg.maxBatchSize > 0 {
		batchSvc = batchSvc.WithMaxBatchSize(cfg.maxBatchSize)
	}

	return &Client{
		store:      store,
		entitySvc:  entityuc.New(rowRepo, catalogSvc),
		batchSvc:   batchSvc,
		searchSvc:  searchSvc,
		catalogSvc: catalogSvc,
		healthSvc:  healthuc.New(store, catalogChecker{catalog: catalogSvc}),
		obs:        obs,
	}, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Entities returns the entity service.
func (c *Client) Entities() *EntityService {
	return &EntityService{
		entities: c.entitySvc,
		batch:    c.batchSvc,
		obs:      c.obs,
	}
}

// Search returns the search service.
func (c *Client) Search() *SearchService {
	return &SearchService{svc: c.searchSvc, obs: c.obs}
}

// Catalog returns the catalog service.
func (c *Client) Catalog() *CatalogService {
	return &CatalogService{svc: c.catalogSvc, obs: c.obs}
}

// catalogChecker adapts the catalog service to the health check
// contract: the catalog is healthy when a snapshot can be pinned.
type catalogChecker struct {
	catalog *cataloguc.Service
}

func (c catalogChecker) Check(_ context.Context) error {
	snap, err := c.catalog.Acquire()
	if err != nil {
		return fmt.Errorf("catalog health check: %w", err)
	}
	snap.Release()
	return nil
}
