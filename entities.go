package facetdex

import (
	"context"
	"fmt"
	"time"

	dombatch "github.com/kailas-cloud/facetdex/internal/domain/batch"
	doment "github.com/kailas-cloud/facetdex/internal/domain/entity"
)

// EntityService manages entities in the active generation.
type EntityService struct {
	entities entityUseCase
	batch    batchUseCase
	obs      *observer
}

// Upsert creates or updates an entity. Returns true if created.
func (s *EntityService) Upsert(ctx context.Context, e Entity) (_ bool, err error) {
	start := time.Now()
	defer func() { s.obs.observe("entity.upsert", start, err) }()

	ent, err := toInternalEntity(e)
	if err != nil {
		return false, fmt.Errorf("upsert: %w", err)
	}
	created, err := s.entities.Upsert(ctx, ent)
	if err != nil {
		return false, fmt.Errorf("upsert: %w", err)
	}
	return created, nil
}

// Get retrieves an entity by ID.
func (s *EntityService) Get(ctx context.Context, id string) (_ Entity, err error) {
	start := time.Now()
	defer func() { s.obs.observe("entity.get", start, err) }()

	ent, err := s.entities.Get(ctx, id)
	if err != nil {
		return Entity{}, fmt.Errorf("get entity: %w", err)
	}
	return fromInternalEntity(ent), nil
}

// Delete removes an entity by ID.
func (s *EntityService) Delete(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("entity.delete", start, err) }()

	if err = s.entities.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete entity: %w", err)
	}
	return nil
}

// BatchUpsert creates or updates entities in batch.
func (s *EntityService) BatchUpsert(ctx context.Context, entities []Entity) (_ []BatchResult, err error) {
	start := time.Now()
	defer func() { s.obs.observe("entity.batch_upsert", start, err) }()

	items := make([]doment.Entity, len(entities))
	for i, e := range entities {
		items[i], err = toInternalEntity(e)
		if err != nil {
			return nil, fmt.Errorf("entity %d: %w", i, err)
		}
	}
	results := s.batch.Upsert(ctx, items)
	return fromBatchResults(results), nil
}

// BatchDelete removes entities by IDs.
func (s *EntityService) BatchDelete(ctx context.Context, ids []string) []BatchResult {
	start := time.Now()
	defer func() { s.obs.observe("entity.batch_delete", start, nil) }()

	results := s.batch.Delete(ctx, ids)
	return fromBatchResults(results)
}

func toInternalEntity(e Entity) (doment.Entity, error) {
	ent, err := doment.New(e.ID, e.Attributes)
	if err != nil {
		return doment.Entity{}, fmt.Errorf("validate entity: %w", err)
	}
	return ent, nil
}

func fromInternalEntity(e doment.Entity) Entity {
	return Entity{ID: e.ID(), Attributes: e.Attrs()}
}

func fromBatchResults(results []dombatch.Result) []BatchResult {
	out := make([]BatchResult, len(results))
	for i, r := range results {
		out[i] = BatchResult{
			ID:  r.ID(),
			OK:  r.Status() == dombatch.StatusOK,
			Err: r.Err(),
		}
	}
	return out
}
