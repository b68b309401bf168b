package heap

import (
	"fmt"
	"sync/atomic"

	"gokernel/kernelerr"
	"gokernel/mm/page"
	"gokernel/mm/paging"
)

// ReturnThreshold is the number of empty pages a heap must exceed, across
// all its size classes, before the rebalancer is willing to steal
// one of them for a different heap — matching
// multiple_heaps::RETURN_THRESHOLD (MAX_SIZE_CLASSES * 2).
const ReturnThreshold = NumSizeClasses * 2

// CPUHint resolves "which CPU is the caller running on", used to route
// an allocation to that CPU's heap. It stands in for the teacher's
// runtime.CPUHint() (biscuit/src/mem/mem.go's percpu free lists) and
// Theseus's CpuId::new().get_feature_info() local-APIC-id lookup; a
// hosted test environment has neither, so the default just round-robins.
// Callers that care about real CPU affinity should replace this.
var CPUHint = func() func() int {
	var next uint64
	return func() int { return int(atomic.AddUint64(&next, 1) - 1) }
}()

// MultipleHeaps is the zone allocator of spec.md §4.E: one Heap per CPU,
// routing each request either to a size class within the calling CPU's
// heap, or — for requests above MaxAllocSize — directly to mm/paging as
// a passthrough mapping with the MappedPages stored alongside the
// returned Block so Dealloc can drop it.
//
// Grounded on Theseus's MultipleHeaps
// (original_source/kernel/multiple_heaps/src/lib.rs).
type MultipleHeaps struct {
	heaps  []*Heap
	pages  *page.Allocator
	mapper *paging.Mapper

	largeAllocCount uint64
	largeAllocBytes uint64

	// classPageBudget caps the number of object pages a single class may
	// hold across all heaps combined; zero/absent means unbounded. Set
	// from gokernel/bootcfg's heap_class_budget.<class> command-line
	// tokens via SetClassPageBudget.
	classPageBudget [NumSizeClasses]int
	classPageCount  [NumSizeClasses]uint64
}

// New constructs a MultipleHeaps with n per-CPU heaps. pages and mapper
// back both small-object page refills and large-object passthrough
// mappings.
func New(n int, pages *page.Allocator, mapper *paging.Mapper) *MultipleHeaps {
	heaps := make([]*Heap, n)
	for i := range heaps {
		heaps[i] = newHeap(i)
	}
	return &MultipleHeaps{heaps: heaps, pages: pages, mapper: mapper}
}

// SetClassPageBudget caps how many object pages class may hold across
// all per-CPU heaps combined; a zero or missing entry in budget leaves
// that class unbounded. Grounded on bootcfg.Config.HeapClassPageBudget,
// which a kernel command line populates per size-class index.
func (m *MultipleHeaps) SetClassPageBudget(budget map[int]int) {
	for class, pages := range budget {
		if class < 0 || class >= NumSizeClasses {
			continue
		}
		m.classPageBudget[class] = pages
	}
}

// Alloc returns a Block of at least size bytes.
func (m *MultipleHeaps) Alloc(size int) (*Block, error) {
	if size <= 0 {
		return nil, fmt.Errorf("heap: alloc size %d: %w", size, kernelerr.ErrInvalidLayout)
	}
	if size > MaxAllocSize {
		return m.allocLarge(size)
	}

	class, err := classSizeOrErr(size)
	if err != nil {
		return nil, err
	}
	heapID := CPUHint() % len(m.heaps)
	h := m.heaps[heapID]

	if blk, ok := h.alloc(class); ok {
		return blk, nil
	}

	if p, ok := m.stealEmptyPage(); ok {
		oldClass := p.class
		p.clearMetadata(heapID, class)
		m.moveClassPageCount(oldClass, class)
		h.refill(class, p)
		if blk, ok := h.alloc(class); ok {
			return blk, nil
		}
	}

	if err := m.reserveClassPageBudget(class); err != nil {
		return nil, err
	}
	p, err := m.mapFreshPage(heapID, class)
	if err != nil {
		atomic.AddUint64(&m.classPageCount[class], ^uint64(0))
		return nil, fmt.Errorf("heap: refilling class %d on heap %d: %w", class, heapID, err)
	}
	h.refill(class, p)
	blk, ok := h.alloc(class)
	if !ok {
		return nil, fmt.Errorf("heap: class %d on heap %d: %w", class, heapID, kernelerr.ErrOutOfMemory)
	}
	return blk, nil
}

// Dealloc returns blk to the allocator it came from.
func (m *MultipleHeaps) Dealloc(blk *Block) {
	if blk.large {
		atomic.AddUint64(&m.largeAllocCount, ^uint64(0))
		atomic.AddUint64(&m.largeAllocBytes, ^uint64(len(blk.data)-1))
		blk.mapping.Unmap()
		return
	}
	m.heaps[blk.page.heapID].dealloc(blk)
}

func (m *MultipleHeaps) allocLarge(size int) (*Block, error) {
	n := (uint64(size) + trailerSize + page.Size - 1) / page.Size
	pages, err := m.pages.AllocatePages(n)
	if err != nil {
		return nil, fmt.Errorf("heap: large alloc %d bytes: %w", size, err)
	}
	mp, err := m.mapper.MapAllocatedPages(pages, paging.Writable)
	if err != nil {
		pages.Release()
		return nil, fmt.Errorf("heap: large alloc %d bytes: %w", size, err)
	}
	atomic.AddUint64(&m.largeAllocCount, 1)
	atomic.AddUint64(&m.largeAllocBytes, uint64(size))
	return &Block{data: mp.Bytes()[:size], large: true, mapping: mp}, nil
}

// reserveClassPageBudget counts a not-yet-mapped page against class's
// budget, failing with kernelerr.ErrOutOfMemory if that would exceed the
// limit gokernel/bootcfg parsed from heap_class_budget.<class>. A class
// with no configured budget (the zero value) is unbounded.
func (m *MultipleHeaps) reserveClassPageBudget(class int) error {
	budget := m.classPageBudget[class]
	if budget <= 0 {
		atomic.AddUint64(&m.classPageCount[class], 1)
		return nil
	}
	if atomic.AddUint64(&m.classPageCount[class], 1) > uint64(budget) {
		atomic.AddUint64(&m.classPageCount[class], ^uint64(0))
		return fmt.Errorf("heap: class %d at page budget %d: %w", class, budget, kernelerr.ErrOutOfMemory)
	}
	return nil
}

// moveClassPageCount reflects a stolen page's reassignment from oldClass
// to newClass in the per-class page counters, so a later budget check
// against newClass sees the page it now holds.
func (m *MultipleHeaps) moveClassPageCount(oldClass, newClass int) {
	if oldClass == newClass {
		return
	}
	atomic.AddUint64(&m.classPageCount[oldClass], ^uint64(0))
	atomic.AddUint64(&m.classPageCount[newClass], 1)
}

func (m *MultipleHeaps) mapFreshPage(heapID, class int) (*objectPage, error) {
	pages, err := m.pages.AllocatePagesByBytes(ObjectPageSize)
	if err != nil {
		return nil, err
	}
	mp, err := m.mapper.MapAllocatedPages(pages, paging.Writable)
	if err != nil {
		pages.Release()
		return nil, err
	}
	return newObjectPage(heapID, class, mp), nil
}

// stealEmptyPage finds the heap with the most empty object pages and, if
// it is above ReturnThreshold, removes and returns one of them for
// reassignment to a different heap/class.
func (m *MultipleHeaps) stealEmptyPage() (*objectPage, bool) {
	donor, max := 0, m.heaps[0].emptyPages()
	for i := 1; i < len(m.heaps); i++ {
		if c := m.heaps[i].emptyPages(); c > max {
			donor, max = i, c
		}
	}
	if max <= ReturnThreshold {
		return nil, false
	}
	return m.heaps[donor].takeEmptyPage()
}

// Stats reports point-in-time accounting, grounded on the counters
// applications/heap_eval/src/shbench.rs gathers around its allocation
// benchmark loop.
type Stats struct {
	Heaps             int
	EmptyPagesPerHeap []int
	LargeAllocations  uint64
	LargeAllocBytes   uint64
}

// ClassOccupancy is a point-in-time page count for one size class within
// one heap, for gokernel/diag/profile's heap occupancy sampling.
type ClassOccupancy struct {
	Empty, Partial, Full int
}

// Occupancy reports classOccupancy for every heap, indexed [heapID][class].
func (m *MultipleHeaps) Occupancy() [][NumSizeClasses]ClassOccupancy {
	out := make([][NumSizeClasses]ClassOccupancy, len(m.heaps))
	for i, h := range m.heaps {
		out[i] = h.classOccupancy()
	}
	return out
}

func (m *MultipleHeaps) Stats() Stats {
	empty := make([]int, len(m.heaps))
	for i, h := range m.heaps {
		empty[i] = h.emptyPages()
	}
	return Stats{
		Heaps:             len(m.heaps),
		EmptyPagesPerHeap: empty,
		LargeAllocations:  atomic.LoadUint64(&m.largeAllocCount),
		LargeAllocBytes:   atomic.LoadUint64(&m.largeAllocBytes),
	}
}
