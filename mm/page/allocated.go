package page

import (
	"errors"
	"fmt"
	"runtime"
)

// AllocatedPages is the owned, non-cloneable right to use a range of
// virtual pages, the page-allocator analogue of frame.AllocatedFrames.
type AllocatedPages struct {
	owner    *Allocator
	chunk    Chunk
	released bool
}

// Empty returns a placeholder AllocatedPages owning nothing.
func Empty() *AllocatedPages {
	return &AllocatedPages{chunk: EmptyChunk(), released: true}
}

func (a *AllocatedPages) Range() Range     { return a.chunk.pages }
func (a *AllocatedPages) Type() RegionType { return a.chunk.typ }
func (a *AllocatedPages) Len() uint64      { return a.chunk.pages.Len() }

func newAllocated(owner *Allocator, c Chunk) *AllocatedPages {
	ap := &AllocatedPages{owner: owner, chunk: c}
	runtime.SetFinalizer(ap, func(a *AllocatedPages) {
		if !a.released && !a.chunk.Empty() {
			a.owner.reclaim(a.chunk)
		}
	})
	return ap
}

// Release returns the pages to the allocator's free list. Idempotent.
func (a *AllocatedPages) Release() {
	if a.released || a.chunk.Empty() {
		a.released = true
		return
	}
	a.owner.reclaim(a.chunk)
	a.released = true
	runtime.SetFinalizer(a, nil)
}

// Split divides a into two AllocatedPages at page `at`, consuming a.
func Split(a *AllocatedPages, at Number) (before, after *AllocatedPages, err error) {
	b, c, ok := a.chunk.Split(at)
	if !ok {
		return nil, nil, fmt.Errorf("split at %#x: %w", at.Addr(), errInvalidSplit)
	}
	a.released = true
	runtime.SetFinalizer(a, nil)
	return newAllocated(a.owner, b), newAllocated(a.owner, c), nil
}

// Merge combines two adjacent AllocatedPages into one, consuming both.
func Merge(a, b *AllocatedPages) (*AllocatedPages, bool) {
	m, can := a.chunk.Merge(b.chunk)
	if !can {
		return nil, false
	}
	a.released = true
	b.released = true
	runtime.SetFinalizer(a, nil)
	runtime.SetFinalizer(b, nil)
	return newAllocated(a.owner, m), true
}

func (a *AllocatedPages) String() string {
	return fmt.Sprintf("AllocatedPages(%s, %s)", a.chunk.typ, a.chunk.pages)
}

var errInvalidSplit = errors.New("split point not within chunk")
