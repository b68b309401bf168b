package page

import (
	"fmt"

	"gokernel/kernelerr"
	"gokernel/sync"
)

// Region describes one span of the virtual address space to seed the
// allocator with (e.g. the kernel's reserved identity-mapped region,
// versus the remainder available for general mappings).
type Region struct {
	Range Range
	Type  RegionType
}

// Allocator hands out exclusively-owned virtual page ranges. It never
// touches page tables; joining an AllocatedPages with an
// frame.AllocatedFrames into a real mapping is mm/paging's job.
type Allocator struct {
	free     sync.MutexIrqSafe[*sortedList]
	reserved sync.MutexIrqSafe[*sortedList]
}

// New seeds the allocator the same way frame.New does: reserved regions
// are recorded as-is, and reserved spans are carved out of the free
// regions before they are inserted into the free list.
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

// MarkHeapReady lifts the fixed-capacity restriction on both lists.
func (a *Allocator) MarkHeapReady() {
	a.free.WithLock(func(l *sortedList) error { l.promote(); return nil })
	a.reserved.WithLock(func(l *sortedList) error { l.promote(); return nil })
}

// AllocatePages returns an owned chunk of exactly n contiguous Free
// pages.
func (a *Allocator) AllocatePages(n uint64) (*AllocatedPages, error) {
	if n == 0 {
		return newAllocated(a, EmptyChunk()), nil
	}
	var result *AllocatedPages
	err := a.free.WithLock(func(l *sortedList) error {
		idx := l.findFirstFit(n)
		if idx < 0 {
			return kernelerr.ErrOutOfMemory
		}
		chosen := l.removeAt(idx)
		want := Range{Start: chosen.pages.Start, End: chosen.pages.Start + Number(n) - 1}
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
		return nil, fmt.Errorf("allocate %d pages: %w", n, err)
	}
	return result, nil
}

// AllocatePagesByBytes rounds size up to page granularity.
func (a *Allocator) AllocatePagesByBytes(size uint64) (*AllocatedPages, error) {
	n := (size + Size - 1) / Size
	return a.AllocatePages(n)
}

// AllocatePagesAt returns an owned chunk of exactly n pages starting at
// the given virtual address, which must be canonical.
func (a *Allocator) AllocatePagesAt(vaddr uintptr, n uint64) (*AllocatedPages, error) {
	if !Canonical(vaddr) {
		return nil, fmt.Errorf("allocate %d pages at %#x: %w", n, vaddr, kernelerr.ErrInvalidAddress)
	}
	want := RangeOf(FromAddr(vaddr), n)
	if n == 0 {
		return newAllocated(a, EmptyChunk()), nil
	}

	var crossesErr error
	a.reserved.WithLock(func(l *sortedList) error {
		if l.anyOverlap(want) {
			crossesErr = kernelerr.ErrWrongRegionType
		}
		return nil
	})
	if crossesErr != nil {
		return nil, fmt.Errorf("allocate %s at %#x: %w", want, vaddr, crossesErr)
	}

	var result *AllocatedPages
	err := a.free.WithLock(func(l *sortedList) error {
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
		return nil, fmt.Errorf("allocate %s at %#x: %w", want, vaddr, err)
	}
	return result, nil
}

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
			panic(fmt.Sprintf("page allocator: could not reclaim %s: %v", c.pages, err))
		}
		return nil
	})
}

// Coalesce merges adjacent same-type chunks in both free lists.
func (a *Allocator) Coalesce() {
	a.free.WithLock(func(l *sortedList) error { l.coalesce(); return nil })
	a.reserved.WithLock(func(l *sortedList) error { l.coalesce(); return nil })
}

// FreeRanges returns a snapshot of the current Free list.
func (a *Allocator) FreeRanges() []Range {
	var out []Range
	a.free.WithLock(func(l *sortedList) error { out = l.snapshot(); return nil })
	return out
}
