package heap

import (
	"fmt"

	"gokernel/kernelerr"
	"gokernel/sync"
)

// Heap is one per-CPU heap: an array of scAllocators, one per size
// class, guarded by a single IRQ-safe lock. It never talks to mm/page or
// mm/paging directly — refilling with a fresh or stolen object page is
// MultipleHeaps's job, mirroring the separation between Theseus's
// IrqSafeHeap (this type) and MultipleHeaps (the zone allocator).
type Heap struct {
	id      int
	classes sync.MutexIrqSafe[*heapState]
}

type heapState struct {
	sc [NumSizeClasses]*scAllocator
}

func newHeap(id int) *Heap {
	st := &heapState{}
	for i := range st.sc {
		st.sc[i] = newSCAllocator(i)
	}
	return &Heap{id: id, classes: sync.NewMutexIrqSafe(st)}
}

// alloc tries to satisfy size from the given class's existing buckets.
// Returns false if the class has no space and needs a refill.
func (h *Heap) alloc(class int) (*Block, bool) {
	var blk *Block
	var ok bool
	h.classes.WithLock(func(st *heapState) error {
		blk, ok = st.sc[class].alloc()
		return nil
	})
	return blk, ok
}

func (h *Heap) dealloc(blk *Block) {
	h.classes.WithLock(func(st *heapState) error {
		st.sc[blk.page.class].dealloc(blk)
		return nil
	})
}

// refill adds a new page (freshly mapped or stolen from another heap) to
// class's empty bucket.
func (h *Heap) refill(class int, p *objectPage) {
	h.classes.WithLock(func(st *heapState) error {
		st.sc[class].refill(p)
		return nil
	})
}

// classOccupancy reports, for each size class, the number of empty,
// partial, and full object pages currently owned by this heap.
func (h *Heap) classOccupancy() [NumSizeClasses]ClassOccupancy {
	var out [NumSizeClasses]ClassOccupancy
	h.classes.WithLock(func(st *heapState) error {
		for i, sc := range st.sc {
			out[i] = ClassOccupancy{
				Empty:   len(sc.empty),
				Partial: len(sc.partial),
				Full:    len(sc.full),
			}
		}
		return nil
	})
	return out
}

// emptyPages reports the total number of fully-empty object pages across
// all size classes, used by the cross-heap rebalancer to pick a donor.
func (h *Heap) emptyPages() int {
	total := 0
	h.classes.WithLock(func(st *heapState) error {
		for _, sc := range st.sc {
			total += sc.emptyPageCount()
		}
		return nil
	})
	return total
}

// takeEmptyPage steals one empty page (from any class with a spare) and
// hands it to the caller with its ownership cleared, ready to be
// reassigned to a different heap and/or size class.
func (h *Heap) takeEmptyPage() (*objectPage, bool) {
	var stolen *objectPage
	var ok bool
	h.classes.WithLock(func(st *heapState) error {
		for _, sc := range st.sc {
			if p, got := sc.takeEmptyPage(); got {
				stolen, ok = p, true
				return nil
			}
		}
		return nil
	})
	return stolen, ok
}

func classSizeOrErr(size int) (int, error) {
	class, ok := classFor(size)
	if !ok {
		return 0, fmt.Errorf("heap: size %d: %w", size, kernelerr.ErrInvalidLayout)
	}
	return class, nil
}
