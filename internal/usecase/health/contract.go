package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// CatalogChecker checks that an index generation is open and queryable.
type CatalogChecker interface {
	Check(ctx context.Context) error
}
