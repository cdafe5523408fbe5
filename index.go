package facetdex

import (
	"context"
	"fmt"
)

// TypedIndex is a generic, schema-first view over a facetdex Client.
// The mapping is inferred from T's struct tags at construction time
// and validated against the active catalog schema.
type TypedIndex[T any] struct {
	client *Client
	meta   *schemaMeta
}

// NewIndex creates a typed index handle. T must be a struct with
// facetdex tags mapping a subset of the catalog schema.
func NewIndex[T any](client *Client) (*TypedIndex[T], error) {
	meta, err := parseSchema[T]()
	if err != nil {
		return nil, fmt.Errorf("new index: %w", err)
	}

	snap, err := client.catalogSvc.Acquire()
	if err != nil {
		return nil, fmt.Errorf("new index: %w", err)
	}
	defer snap.Release()

	if err := meta.validateAgainst(snap.Schema()); err != nil {
		return nil, fmt.Errorf("new index: %w", err)
	}
	return &TypedIndex[T]{client: client, meta: meta}, nil
}

// Upsert creates or updates a single item. Returns true if created.
func (idx *TypedIndex[T]) Upsert(ctx context.Context, item T) (bool, error) {
	e, err := idx.meta.toEntity(item)
	if err != nil {
		return false, fmt.Errorf("upsert: %w", err)
	}
	return idx.client.Entities().Upsert(ctx, e)
}

// UpsertBatch creates or updates items in batch.
func (idx *TypedIndex[T]) UpsertBatch(ctx context.Context, items []T) ([]BatchResult, error) {
	entities := make([]Entity, len(items))
	for i, item := range items {
		var err error
		entities[i], err = idx.meta.toEntity(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}
	return idx.client.Entities().BatchUpsert(ctx, entities)
}

// Get retrieves a typed item by ID.
func (idx *TypedIndex[T]) Get(ctx context.Context, id string) (T, error) {
	e, err := idx.client.Entities().Get(ctx, id)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("get: %w", err)
	}
	item, ok := idx.meta.fromEntity(e).(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("get: type assertion failed")
	}
	return item, nil
}

// Delete removes an item by ID.
func (idx *TypedIndex[T]) Delete(ctx context.Context, id string) error {
	return idx.client.Entities().Delete(ctx, id)
}

// Search returns a fluent search builder for this index.
func (idx *TypedIndex[T]) Search() *SearchBuilder[T] {
	return &SearchBuilder[T]{idx: idx}
}
