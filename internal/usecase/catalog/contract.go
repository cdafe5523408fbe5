package catalog

import (
	"context"

	domcat "github.com/kailas-cloud/facetdex/internal/domain/catalog"
	"github.com/kailas-cloud/facetdex/internal/domain/entity"
)

// Repository defines the storage contract for generation metadata and
// the catalog pointer.
type Repository interface {
	Current(ctx context.Context) (string, error)
	SetCurrent(ctx context.Context, id string) error
	Create(ctx context.Context, gen domcat.Generation) error
	Get(ctx context.Context, id string) (domcat.Generation, error)
	Drop(ctx context.Context, id string) error
	Versions(ctx context.Context, id string) (domcat.Versions, error)
	RowCount(ctx context.Context, id string) (int64, error)
	RegistrySize(ctx context.Context, id, field string) (int64, error)
}

// RowRepository defines the row-store operations a rebuild needs to
// copy one generation into another.
type RowRepository interface {
	ListIDs(ctx context.Context, gen domcat.Generation) ([]string, error)
	Get(ctx context.Context, gen domcat.Generation, id string) (entity.Entity, error)
	Seed(ctx context.Context, gen domcat.Generation, entities []entity.Entity) error
}
