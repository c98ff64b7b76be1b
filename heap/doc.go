// Package heap provides the instrumented allocator used by every part of the
// runtime that allocates on behalf of a script.
//
// An Arena counts allocation events over its whole lifetime:
//
//	arena := heap.New()
//	buf := arena.Allocate(nil, 0, 64)   // allocations=1 total=64
//	buf = arena.Allocate(buf, 64, 128)  // allocations=2 reallocations=1 total=192
//	buf = arena.Allocate(buf, 128, 16)  // shrink is a no-op
//	arena.Allocate(buf, 128, 0)         // frees=1
//
// The counters are totals, not live balances: freeing a block never decrements
// the allocation counter.
//
// Failure injection is available for testing out-of-memory paths:
//
//	arena := heap.New(heap.WithFailAfter(3))
package heap
