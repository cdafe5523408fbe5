package batch

import (
	"context"

	domcat "github.com/kailas-cloud/facetdex/internal/domain/catalog"
	doment "github.com/kailas-cloud/facetdex/internal/domain/entity"
	"github.com/kailas-cloud/facetdex/internal/usecase/catalog"
)

// EntityUpserter creates or updates one entity's rows.
type EntityUpserter interface {
	Upsert(ctx context.Context, gen domcat.Generation, e doment.Entity) (created bool, err error)
}

// EntityDeleter removes one entity's rows.
type EntityDeleter interface {
	Delete(ctx context.Context, gen domcat.Generation, id string) error
}

// Snapshots hands out pinned catalog snapshots.
type Snapshots interface {
	Acquire() (*catalog.Snapshot, error)
}
