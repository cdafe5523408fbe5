package catalog

import (
	"sync"
	"sync/atomic"
	"testing"

	domcat "github.com/kailas-cloud/facetdex/internal/domain/catalog"
	"github.com/kailas-cloud/facetdex/internal/domain/model"
)

func testGen(t *testing.T, id string) domcat.Generation {
	t.Helper()
	return domcat.Reconstruct(id, model.Fact, testSchema(t), 1700000000000)
}

func TestRegistry_AcquireEmpty(t *testing.T) {
	reg := NewRegistry()
	if snap := reg.Acquire(); snap != nil {
		t.Errorf("empty registry returned %v", snap)
	}
}

func TestSnapshot_Accessors(t *testing.T) {
	snap := NewSnapshot(testGen(t, "gen-a"), nil)
	if snap.Generation().ID() != "gen-a" {
		t.Errorf("Generation().ID() = %q", snap.Generation().ID())
	}
	if snap.Model() != model.Fact {
		t.Errorf("Model() = %q", snap.Model())
	}
	if len(snap.Schema().Fields()) != 2 {
		t.Errorf("Schema().Fields() = %d fields", len(snap.Schema().Fields()))
	}
}

func TestRegistry_SwapRetiresPredecessor(t *testing.T) {
	var cleanups atomic.Int32
	reg := NewRegistry()
	reg.Swap(NewSnapshot(testGen(t, "gen-a"), func() { cleanups.Add(1) }))

	held := reg.Acquire()
	if held == nil {
		t.Fatal("Acquire returned nil")
	}

	reg.Swap(NewSnapshot(testGen(t, "gen-b"), nil))
	if cleanups.Load() != 0 {
		t.Fatal("cleanup ran while a reference was still held")
	}

	next := reg.Acquire()
	if next.Generation().ID() != "gen-b" {
		t.Errorf("Acquire after swap = %q, want gen-b", next.Generation().ID())
	}
	next.Release()

	held.Release()
	if cleanups.Load() != 1 {
		t.Errorf("cleanup ran %d times, want 1", cleanups.Load())
	}
}

func TestRegistry_SwapWithoutReadersCleansImmediately(t *testing.T) {
	var cleanups atomic.Int32
	reg := NewRegistry()
	reg.Swap(NewSnapshot(testGen(t, "gen-a"), func() { cleanups.Add(1) }))
	reg.Swap(NewSnapshot(testGen(t, "gen-b"), nil))

	if cleanups.Load() != 1 {
		t.Errorf("cleanup ran %d times, want 1", cleanups.Load())
	}
}

func TestRegistry_ConcurrentAcquireDuringSwaps(t *testing.T) {
	var cleanups atomic.Int32
	reg := NewRegistry()
	reg.Swap(NewSnapshot(testGen(t, "gen-0"), func() { cleanups.Add(1) }))

	const readers = 8
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := reg.Acquire()
				if snap == nil {
					t.Error("Acquire returned nil with a snapshot installed")
					return
				}
				_ = snap.Generation().ID()
				snap.Release()
			}
		}()
	}

	const swaps = 50
	for i := 0; i < swaps; i++ {
		reg.Swap(NewSnapshot(testGen(t, "gen-next"), func() { cleanups.Add(1) }))
	}
	close(stop)
	wg.Wait()

	// final snapshot is still current, every predecessor must have
	// retired exactly once
	final := reg.Acquire()
	final.Release()
	if cleanups.Load() != swaps {
		t.Errorf("cleanups = %d, want %d", cleanups.Load(), swaps)
	}
}
