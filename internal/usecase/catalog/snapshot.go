package catalog

import (
	"sync/atomic"

	domcat "github.com/kailas-cloud/facetdex/internal/domain/catalog"
	"github.com/kailas-cloud/facetdex/internal/domain/model"
	"github.com/kailas-cloud/facetdex/internal/domain/schema"
)

// Snapshot pins one generation for the duration of a request, so every
// phase of the request reads the same index even across a concurrent
// swap. The registry holds one reference for as long as the snapshot is
// current; when the last reference is released after retirement, the
// cleanup hook drops the generation.
type Snapshot struct {
	gen     domcat.Generation
	refs    atomic.Int64
	cleanup func()
}

// NewSnapshot wraps a generation in a snapshot holding one reference.
// cleanup may be nil for snapshots outside a registry.
func NewSnapshot(gen domcat.Generation, cleanup func()) *Snapshot {
	s := &Snapshot{gen: gen, cleanup: cleanup}
	s.refs.Store(1)
	return s
}

// Generation returns the pinned generation.
func (s *Snapshot) Generation() domcat.Generation { return s.gen }

// Model returns the document layout of the pinned generation.
func (s *Snapshot) Model() model.Model { return s.gen.Model() }

// Schema returns the field schema of the pinned generation.
func (s *Snapshot) Schema() schema.Schema { return s.gen.Schema() }

// Release drops one reference. The last release after retirement runs
// the cleanup hook.
func (s *Snapshot) Release() {
	if s.refs.Add(-1) == 0 && s.cleanup != nil {
		s.cleanup()
	}
}

// tryAcquire increments the refcount unless it already drained to zero.
// A drained snapshot is retired and must not be resurrected.
func (s *Snapshot) tryAcquire() bool {
	for {
		n := s.refs.Load()
		if n <= 0 {
			return false
		}
		if s.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Registry publishes the active snapshot. Readers acquire and release
// without locks.
type Registry struct {
	current atomic.Pointer[Snapshot]
}

// NewRegistry creates an empty snapshot registry.
func NewRegistry() *Registry { return &Registry{} }

// Acquire returns the active snapshot with its refcount incremented, or
// nil when none is installed. Callers must Release when done.
func (r *Registry) Acquire() *Snapshot {
	for {
		s := r.current.Load()
		if s == nil {
			return nil
		}
		if s.tryAcquire() {
			return s
		}
		// drained by a concurrent swap, reload
	}
}

// Swap installs next as the active snapshot and releases the registry's
// reference on the predecessor. The predecessor keeps serving requests
// that already acquired it; its cleanup runs when the last one releases.
func (r *Registry) Swap(next *Snapshot) {
	if prev := r.current.Swap(next); prev != nil {
		prev.Release()
	}
}
