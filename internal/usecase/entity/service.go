package entity

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/facetdex/internal/domain"
	doment "github.com/kailas-cloud/facetdex/internal/domain/entity"
	"github.com/kailas-cloud/facetdex/internal/domain/geometry"
	"github.com/kailas-cloud/facetdex/internal/domain/schema"
)

// Service handles entity CRUD against the active generation. Every
// operation pins one snapshot so it reads and writes a single
// generation even across a concurrent rebuild swap.
type Service struct {
	repo  Repository
	snaps Snapshots
}

// New creates an entity service.
func New(repo Repository, snaps Snapshots) *Service {
	return &Service{repo: repo, snaps: snaps}
}

// Upsert validates the entity against the declared schema and writes
// its rows. Returns true if the entity was created, false if updated.
// Concurrent upserts of the same entity are last-write-wins.
func (s *Service) Upsert(ctx context.Context, e doment.Entity) (bool, error) {
	snap, err := s.snaps.Acquire()
	if err != nil {
		return false, err
	}
	defer snap.Release()

	if err := validateAttrs(e, snap.Schema()); err != nil {
		return false, err
	}

	created, err := s.repo.Upsert(ctx, snap.Generation(), e)
	if err != nil {
		return false, fmt.Errorf("upsert entity: %w", err)
	}
	return created, nil
}

// Get reconstructs an entity from its stored rows.
func (s *Service) Get(ctx context.Context, id string) (doment.Entity, error) {
	snap, err := s.snaps.Acquire()
	if err != nil {
		return doment.Entity{}, err
	}
	defer snap.Release()

	ent, err := s.repo.Get(ctx, snap.Generation(), id)
	if err != nil {
		return doment.Entity{}, fmt.Errorf("get entity: %w", err)
	}
	return ent, nil
}

// Delete removes an entity's rows and rolls its facet counts back.
func (s *Service) Delete(ctx context.Context, id string) error {
	snap, err := s.snaps.Acquire()
	if err != nil {
		return err
	}
	defer snap.Release()

	if err := s.repo.Delete(ctx, snap.Generation(), id); err != nil {
		return fmt.Errorf("delete entity: %w", err)
	}
	return nil
}

// validateAttrs rejects attributes outside the declared schema before
// any row is written. Geometry values must parse, and a geometry field
// carries exactly one value.
func validateAttrs(e doment.Entity, sch schema.Schema) error {
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
