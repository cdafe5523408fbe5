package entity

import (
	"context"

	domcat "github.com/kailas-cloud/facetdex/internal/domain/catalog"
	doment "github.com/kailas-cloud/facetdex/internal/domain/entity"
	"github.com/kailas-cloud/facetdex/internal/usecase/catalog"
)

// Repository defines the row-store contract for entities.
type Repository interface {
	Upsert(ctx context.Context, gen domcat.Generation, e doment.Entity) (created bool, err error)
	Get(ctx context.Context, gen domcat.Generation, id string) (doment.Entity, error)
	Delete(ctx context.Context, gen domcat.Generation, id string) error
}

// Snapshots hands out pinned catalog snapshots.
type Snapshots interface {
	Acquire() (*catalog.Snapshot, error)
}
