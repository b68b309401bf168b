package heap

import "gokernel/mm/paging"

// objectPage is one ObjectPageSize-byte slab holding fixed-size objects of
// a single size class. Its header fields mirror spec.md §4.E's
// object-page metadata: the owning heap id, intrusive bucket links, a
// record of free slots, and the size class. The free-slot bitmap spec.md
// describes as living in the page itself is represented here as a stack
// of free slot indices rather than literal in-page bits — this module
// already simulates physical backing one layer down in mm/paging, so
// there is no raw pointer for dealloc to mask; the owning page is instead
// tracked directly on the returned Block.
type objectPage struct {
	heapID   int
	class    int
	objSize  int
	capacity int
	freeList []int
	mapping  *paging.MappedPages
	backing  []byte

	next, prev *objectPage
}

func newObjectPage(heapID, class int, mapping *paging.MappedPages) *objectPage {
	objSize := sizeClasses[class]
	capacity := ObjectPageSize / objSize
	freeList := make([]int, capacity)
	for i := range freeList {
		freeList[i] = capacity - 1 - i
	}
	return &objectPage{
		heapID:   heapID,
		class:    class,
		objSize:  objSize,
		capacity: capacity,
		freeList: freeList,
		mapping:  mapping,
		backing:  mapping.Bytes(),
	}
}

func (p *objectPage) empty() bool { return len(p.freeList) == p.capacity }
func (p *objectPage) full() bool  { return len(p.freeList) == 0 }

// clearMetadata resets ownership when a page is handed to a different
// heap by the cross-zone rebalancer, matching
// ObjectPage8k::clear_metadata in the teacher's Rust source.
func (p *objectPage) clearMetadata(newHeapID, newClass int) {
	p.heapID = newHeapID
	p.class = newClass
	p.objSize = sizeClasses[newClass]
	p.capacity = ObjectPageSize / p.objSize
	p.freeList = make([]int, p.capacity)
	for i := range p.freeList {
		p.freeList[i] = p.capacity - 1 - i
	}
}

func (p *objectPage) alloc() (*Block, bool) {
	if len(p.freeList) == 0 {
		return nil, false
	}
	idx := p.freeList[len(p.freeList)-1]
	p.freeList = p.freeList[:len(p.freeList)-1]
	start := idx * p.objSize
	return &Block{
		page: p,
		slot: idx,
		data: p.backing[start : start+p.objSize : start+p.objSize],
	}, true
}

func (p *objectPage) release(slot int) {
	p.freeList = append(p.freeList, slot)
}

// unmap tears down the underlying mapping. Nothing in this package calls
// it: there is no heap teardown path, and rebalancing keeps pages mapped
// and simply reassigns them.
func (p *objectPage) unmap() {
	p.mapping.Unmap()
}
