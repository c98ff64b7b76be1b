package heap

import (
	"fmt"
	"sync/atomic"

	picklehost "github.com/wippyai/pickle-host"
)

// Stats is a snapshot of an arena's lifetime counters.
type Stats struct {
	Allocations   uint64
	Frees         uint64
	Reallocations uint64
	Total         uint64
}

func (s Stats) String() string {
	return fmt.Sprintf("allocations=%d frees=%d reallocations=%d total=%d",
		s.Allocations, s.Frees, s.Reallocations, s.Total)
}

// Arena is an instrumented allocator. The zero value is ready to use.
type Arena struct {
	allocs   atomic.Uint64
	frees    atomic.Uint64
	reallocs atomic.Uint64
	total    atomic.Uint64

	// growths counts growth requests for WithFailAfter; the failOn-th
	// and later fail. Zero disables the injection.
	growths atomic.Int64
	failOn  int64
	limit   int
}

var _ picklehost.Allocator = (*Arena)(nil)

// Option configures an Arena.
type Option func(*Arena)

// WithFailAfter makes every growth after the first n successful ones fail.
// A negative n disables the injection.
func WithFailAfter(n int) Option {
	return func(a *Arena) {
		if n < 0 {
			a.failOn = 0
			return
		}
		a.failOn = int64(n) + 1
	}
}

// WithLimit makes any single growth request above limit bytes fail.
// Zero means unlimited.
func WithLimit(limit int) Option {
	return func(a *Arena) {
		a.limit = limit
	}
}

// New creates an arena.
func New(opts ...Option) *Arena {
	a := &Arena{}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Allocate implements picklehost.Allocator.
func (a *Arena) Allocate(block []byte, oldSize, newSize int) []byte {
	if newSize <= 0 {
		if block != nil {
			a.frees.Add(1)
		}
		return nil
	}
	if newSize <= oldSize {
		return block
	}
	if !a.admit(newSize) {
		return nil
	}

	grown := make([]byte, newSize)
	if block != nil {
		n := oldSize
		if n > len(block) {
			n = len(block)
		}
		copy(grown, block[:n])
		a.reallocs.Add(1)
	}
	a.allocs.Add(1)
	a.total.Add(uint64(newSize))
	return grown
}

func (a *Arena) admit(size int) bool {
	if a.limit > 0 && size > a.limit {
		return false
	}
	if a.failOn > 0 && a.growths.Add(1) >= a.failOn {
		return false
	}
	return true
}

// Stats returns a snapshot of the lifetime counters.
func (a *Arena) Stats() Stats {
	return Stats{
		Allocations:   a.allocs.Load(),
		Frees:         a.frees.Load(),
		Reallocations: a.reallocs.Load(),
		Total:         a.total.Load(),
	}
}

// Dup copies s into a block obtained from alloc.
// It returns false when the allocation fails.
func Dup(alloc picklehost.Allocator, s string) ([]byte, bool) {
	b := alloc.Allocate(nil, 0, len(s)+1)
	if b == nil {
		return nil, false
	}
	copy(b, s)
	return b[:len(s)], true
}

// Release returns a block obtained from alloc.
func Release(alloc picklehost.Allocator, b []byte) {
	if b == nil {
		return
	}
	alloc.Allocate(b[:cap(b)], cap(b), 0)
}
