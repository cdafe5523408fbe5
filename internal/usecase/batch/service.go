package batch

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/facetdex/internal/domain"
	dombatch "github.com/kailas-cloud/facetdex/internal/domain/batch"
	doment "github.com/kailas-cloud/facetdex/internal/domain/entity"
	"github.com/kailas-cloud/facetdex/internal/domain/geometry"
	"github.com/kailas-cloud/facetdex/internal/domain/schema"
)

// MaxBatchSize is the maximum number of items per batch request.
const MaxBatchSize = 100

// Service handles batch entity operations with per-item error
// reporting. One snapshot covers a whole batch, so every item lands in
// the same generation.
type Service struct {
	upsert       EntityUpserter
	del          EntityDeleter
	snaps        Snapshots
	maxBatchSize int
}

// New creates a batch service.
func New(upsert EntityUpserter, del EntityDeleter, snaps Snapshots) *Service {
	return &Service{
		upsert:       upsert,
		del:          del,
		snaps:        snaps,
		maxBatchSize: MaxBatchSize,
	}
}

// WithMaxBatchSize configures the maximum batch size.
func (s *Service) WithMaxBatchSize(size int) *Service {
	if size > 0 {
		s.maxBatchSize = size
	}
	return s
}

// Upsert creates or updates entities in batch.
func (s *Service) Upsert(ctx context.Context, items []doment.Entity) []dombatch.Result {
	results := make([]dombatch.Result, len(items))

	if len(items) > s.maxBatchSize {
		for i, item := range items {
			results[i] = dombatch.NewError(
				item.ID(),
				fmt.Errorf("batch size exceeds %d: %w", s.maxBatchSize, domain.ErrConfig),
			)
		}
		return results
	}

	snap, err := s.snaps.Acquire()
	if err != nil {
		for i, item := range items {
			results[i] = dombatch.NewError(item.ID(), err)
		}
		return results
	}
	defer snap.Release()

	for i := range items {
		if err := validateItemAttrs(items[i], snap.Schema()); err != nil {
			results[i] = dombatch.NewError(items[i].ID(), err)
			continue
		}
		if _, err := s.upsert.Upsert(ctx, snap.Generation(), items[i]); err != nil {
			results[i] = dombatch.NewError(items[i].ID(), fmt.Errorf("upsert: %w", err))
			continue
		}
		results[i] = dombatch.NewOK(items[i].ID())
	}

	return results
}

// Delete removes entities by ID in batch.
func (s *Service) Delete(ctx context.Context, ids []string) []dombatch.Result {
	results := make([]dombatch.Result, len(ids))

	if len(ids) > s.maxBatchSize {
		for i, id := range ids {
			results[i] = dombatch.NewError(
				id,
				fmt.Errorf("batch size exceeds %d: %w", s.maxBatchSize, domain.ErrConfig),
			)
		}
		return results
	}

	snap, err := s.snaps.Acquire()
	if err != nil {
		for i, id := range ids {
			results[i] = dombatch.NewError(id, err)
		}
		return results
	}
	defer snap.Release()

	for i, id := range ids {
		if err := s.del.Delete(ctx, snap.Generation(), id); err != nil {
			results[i] = dombatch.NewError(id, fmt.Errorf("delete: %w", err))
			continue
		}
		results[i] = dombatch.NewOK(id)
	}

	return results
}

func validateItemAttrs(e doment.Entity, sch schema.Schema) error {
	for name, values := range e.Attrs() {
		f, ok := sch.FieldByName(name)
		if !ok {
			return fmt.Errorf("%w: field %q is not declared", domain.ErrConfig, name)
		}
		if !f.Geometry() {
			continue
		}
		if len(values) != 1 {
			return fmt.Errorf("%w: geometry field %q accepts a single value, got %d",
				domain.ErrConfig, name, len(values))
		}
		if _, err := geometry.Parse(values[0]); err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
	}
	return nil
}
