// Package heap implements the two-layer per-CPU heap spec.md §4.E
// describes: a zone allocator per CPU routing requests to one of several
// size-classed slab allocators (SCAllocator), with allocations above the
// largest class served directly from mm/paging as a passthrough mapping.
//
// Grounded on Theseus's multiple_heaps crate
// (original_source/kernel/multiple_heaps/src/lib.rs) for the overall
// zone/SCAllocator/cross-CPU-rebalancing design, and on the teacher's
// Physmem_t per-CPU free lists (biscuit/src/mem/mem.go) for the
// per-bucket locking and accounting idiom.
package heap

import "fmt"

// ObjectPageSize is the size of one slab page, matching Theseus's
// ObjectPage8k.
const ObjectPageSize = 8192

// trailerSize is extra room added to a large allocation's size before it
// is rounded up to whole pages, sized after multiple_heaps's "size_mp"
// trailer. Nothing is stored in it: the MappedPages that owns a large
// allocation's memory is kept in its Block, not inline in the allocation.
const trailerSize = 88

// MaxAllocSize is the largest request routed through a size class; larger
// requests are satisfied directly from mm/paging.
const MaxAllocSize = ObjectPageSize - trailerSize

// sizeClasses lists the eleven power-of-two slab classes, from the
// smallest useful allocation up to one full object page. An object page
// holds no in-page header or bitmap (its free list is kept outside the
// page), so the largest class uses the whole page.
var sizeClasses = [...]int{8, 16, 32, 64, 128, 256, 512, 1024, 2048, 4096, ObjectPageSize}

// NumSizeClasses is the number of slab size classes.
const NumSizeClasses = len(sizeClasses)

// classFor returns the smallest size class that can satisfy a request of
// size bytes.
func classFor(size int) (int, bool) {
	for i, c := range sizeClasses {
		if size <= c {
			return i, true
		}
	}
	return 0, false
}

func (h *Heap) String() string {
	return fmt.Sprintf("Heap(id=%d)", h.id)
}
