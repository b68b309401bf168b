package frame

import (
	"fmt"

	"gokernel/kernelerr"
	"gokernel/sync"
)

// Region describes one entry of the bootloader-supplied memory map: a
// physically contiguous span tagged with its kind.
type Region struct {
	Range Range
	Type  RegionType
}

// Allocator owns a partition of physical memory and hands out exact
// chunks of frames as owned AllocatedFrames values. It holds two sorted,
// non-overlapping chunk lists — one for Free, one for Reserved — each
// guarded by its own interrupt-safe lock, per spec.md §5's "one lock per
// list, taken IRQ-safe" rule.
type Allocator struct {
	free     sync.MutexIrqSafe[*sortedList]
	reserved sync.MutexIrqSafe[*sortedList]
}

// New constructs an Allocator and seeds it with the free and reserved
// regions from the boot-time memory map. Called exactly once, mirroring
// the teacher's Physmem_t initialization from the bootloader's E820-style
// map in mem/mem.go.
func New(freeRegions, reservedRegions []Region) (*Allocator, error) {
	a := &Allocator{
		free:     sync.NewMutexIrqSafe(newSortedList()),
		reserved: sync.NewMutexIrqSafe(newSortedList()),
	}
	for _, r := range reservedRegions {
		if err := a.reserved.WithLock(func(l *sortedList) error {
			return l.insert(newChunk(Reserved, r.Range))
		}); err != nil {
			return nil, fmt.Errorf("seeding reserved region %s: %w", r.Range, err)
		}
	}
	// A bootloader-reported "usable" region may fully contain one or more
	// reserved sub-regions (e.g. the kernel image, boot info, or loaded
	// modules living inside a larger usable span). Those reserved bytes
	// must not also be considered free, so carve them out before
	// inserting into the free list.
	reservedRanges := make([]Range, len(reservedRegions))
	for i, r := range reservedRegions {
		reservedRanges[i] = r.Range
	}
	for _, r := range freeRegions {
		for _, piece := range subtract(r.Range, reservedRanges) {
			if err := a.free.WithLock(func(l *sortedList) error {
				return l.insert(newChunk(Free, piece))
			}); err != nil {
				return nil, fmt.Errorf("seeding free region %s: %w", piece, err)
			}
		}
	}
	return a, nil
}

// subtract removes every range in cuts from r, returning the remaining
// pieces of r in ascending order. cuts need not be sorted or
// non-overlapping with each other.
func subtract(r Range, cuts []Range) []Range {
	pieces := []Range{r}
	for _, cut := range cuts {
		var next []Range
		for _, p := range pieces {
			if !p.Overlaps(cut) {
				next = append(next, p)
				continue
			}
			if p.Start < cut.Start {
				next = append(next, Range{Start: p.Start, End: cut.Start - 1})
			}
			if p.End > cut.End {
				next = append(next, Range{Start: cut.End + 1, End: p.End})
			}
		}
		pieces = next
	}
	return pieces
}

// MarkHeapReady lifts the fixed-capacity restriction on both lists,
// mirroring the array-to-tree promotion in Theseus's StaticArrayRBTree.
func (a *Allocator) MarkHeapReady() {
	a.free.WithLock(func(l *sortedList) error { l.promote(); return nil })
	a.reserved.WithLock(func(l *sortedList) error { l.promote(); return nil })
}

// AllocateFrames returns an owned chunk of exactly n contiguous Free
// frames, using first-fit.
func (a *Allocator) AllocateFrames(n uint64) (*AllocatedFrames, error) {
	if n == 0 {
		return newAllocated(a, EmptyChunk()), nil
	}
	var result *AllocatedFrames
	err := a.free.WithLock(func(l *sortedList) error {
		idx := l.findFirstFit(n)
		if idx < 0 {
			return kernelerr.ErrOutOfMemory
		}
		chosen := l.removeAt(idx)
		want := Range{Start: chosen.frames.Start, End: chosen.frames.Start + Number(n) - 1}
		before, rest, _ := chosen.Split(want.Start)
		taken, after, _ := rest.Split(want.End + 1)
		if !before.Empty() {
			l.insert(before)
		}
		if !after.Empty() {
			l.insert(after)
		}
		result = newAllocated(a, taken)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("allocate %d frames: %w", n, err)
	}
	return result, nil
}

// AllocateFramesByBytes rounds size up to frame granularity and allocates
// that many frames.
func (a *Allocator) AllocateFramesByBytes(size uint64) (*AllocatedFrames, error) {
	n := (size + Size - 1) / Size
	return a.AllocateFrames(n)
}

// AllocateFramesAt returns an owned chunk of exactly n frames starting at
// the given physical address. The requested range must lie entirely
// within one Free chunk unless allowReserved is true, in which case it
// must lie entirely within one Reserved chunk instead.
func (a *Allocator) AllocateFramesAt(paddr uintptr, n uint64, allowReserved bool) (*AllocatedFrames, error) {
	want := RangeOf(FromAddr(paddr), n)
	if n == 0 {
		return newAllocated(a, EmptyChunk()), nil
	}

	// Reject if the request overlaps the "wrong" region type at all:
	// a Free-intended request that touches Reserved, or vice versa.
	var crossesErr error
	if allowReserved {
		a.free.WithLock(func(l *sortedList) error {
			if l.anyOverlap(want) {
				crossesErr = kernelerr.ErrWrongRegionType
			}
			return nil
		})
	} else {
		a.reserved.WithLock(func(l *sortedList) error {
			if l.anyOverlap(want) {
				crossesErr = kernelerr.ErrWrongRegionType
			}
			return nil
		})
	}
	if crossesErr != nil {
		return nil, fmt.Errorf("allocate %s at %#x: %w", want, paddr, crossesErr)
	}

	list := &a.free
	if allowReserved {
		list = &a.reserved
	}

	var result *AllocatedFrames
	err := list.WithLock(func(l *sortedList) error {
		idx := l.findContaining(want)
		if idx < 0 {
			if l.anyOverlap(want) {
				return kernelerr.ErrAlreadyAllocated
			}
			return kernelerr.ErrInvalidAddress
		}
		chosen := l.removeAt(idx)
		before, rest, _ := chosen.Split(want.Start)
		taken, after, _ := rest.Split(want.End + 1)
		if !before.Empty() {
			l.insert(before)
		}
		if !after.Empty() {
			l.insert(after)
		}
		result = newAllocated(a, taken)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("allocate %s at %#x: %w", want, paddr, err)
	}
	return result, nil
}

// AllocateFramesByBytesAt is the byte-granularity variant of
// AllocateFramesAt.
func (a *Allocator) AllocateFramesByBytesAt(paddr uintptr, size uint64, allowReserved bool) (*AllocatedFrames, error) {
	n := (size + Size - 1) / Size
	return a.AllocateFramesAt(paddr, n, allowReserved)
}

// reclaim returns a chunk to the appropriate free list without merging;
// coalescing is deferred, matching spec.md §4.A.
func (a *Allocator) reclaim(c Chunk) {
	if c.Empty() {
		return
	}
	list := &a.free
	if c.typ == Reserved {
		list = &a.reserved
	}
	list.WithLock(func(l *sortedList) error {
		if err := l.insert(c); err != nil {
			// Should not happen once heapReady, and pre-heap the fixed
			// array was sized to the frames we handed out ourselves.
			panic(fmt.Sprintf("frame allocator: could not reclaim %s: %v", c.frames, err))
		}
		return nil
	})
}

// Coalesce merges adjacent same-type chunks in both free lists. Callers
// invoke this explicitly (e.g. on OutOfMemory) rather than relying on it
// happening automatically on every deallocation.
func (a *Allocator) Coalesce() {
	a.free.WithLock(func(l *sortedList) error { l.coalesce(); return nil })
	a.reserved.WithLock(func(l *sortedList) error { l.coalesce(); return nil })
}

// FreeRanges returns a snapshot of the current Free list, for
// diagnostics and tests. The returned slice is not live.
func (a *Allocator) FreeRanges() []Range {
	var out []Range
	a.free.WithLock(func(l *sortedList) error { out = l.snapshot(); return nil })
	return out
}

// ReservedRanges returns a snapshot of the current Reserved list.
func (a *Allocator) ReservedRanges() []Range {
	var out []Range
	a.reserved.WithLock(func(l *sortedList) error { out = l.snapshot(); return nil })
	return out
}
