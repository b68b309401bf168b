package heap

// scAllocator is the per-size-class slab allocator within one Heap. It
// owns three buckets of object pages — empty, partial, full — exactly as
// spec.md §4.E describes, moving a page between buckets as its
// occupancy crosses the empty/full boundary.
type scAllocator struct {
	class   int
	empty   []*objectPage
	partial []*objectPage
	full    []*objectPage
}

func newSCAllocator(class int) *scAllocator {
	return &scAllocator{class: class}
}

// alloc pops a block from the partial bucket if one exists, else from
// the empty bucket, promoting the chosen page's bucket afterward.
// Returns false if neither bucket has a page.
func (s *scAllocator) alloc() (*Block, bool) {
	if p, ok := popBack(&s.partial); ok {
		blk, ok := p.alloc()
		if !ok {
			panic("heap: partial-bucket page unexpectedly full")
		}
		if p.full() {
			s.full = append(s.full, p)
		} else {
			s.partial = append(s.partial, p)
		}
		return blk, true
	}
	if p, ok := popBack(&s.empty); ok {
		blk, ok := p.alloc()
		if !ok {
			panic("heap: empty-bucket page unexpectedly full")
		}
		if p.full() {
			s.full = append(s.full, p)
		} else {
			s.partial = append(s.partial, p)
		}
		return blk, true
	}
	return nil, false
}

// dealloc returns a block's slot to its page and moves the page to the
// bucket matching its new occupancy.
func (s *scAllocator) dealloc(blk *Block) {
	p := blk.page
	wasFull := p.full()
	p.release(blk.slot)
	switch {
	case wasFull:
		removePage(&s.full, p)
		if p.empty() {
			s.empty = append(s.empty, p)
		} else {
			s.partial = append(s.partial, p)
		}
	case p.empty():
		removePage(&s.partial, p)
		s.empty = append(s.empty, p)
	}
}

// refill adds a freshly built or reclaimed page to the empty bucket.
func (s *scAllocator) refill(p *objectPage) {
	s.empty = append(s.empty, p)
}

// emptyPageCount reports how many object pages in this class currently
// have every slot free.
func (s *scAllocator) emptyPageCount() int { return len(s.empty) }

// takeEmptyPage removes and returns one page from the empty bucket, for
// the cross-heap rebalancer to steal.
func (s *scAllocator) takeEmptyPage() (*objectPage, bool) {
	return popBack(&s.empty)
}

func popBack(list *[]*objectPage) (*objectPage, bool) {
	n := len(*list)
	if n == 0 {
		return nil, false
	}
	p := (*list)[n-1]
	*list = (*list)[:n-1]
	return p, true
}

func removePage(list *[]*objectPage, p *objectPage) {
	for i, q := range *list {
		if q == p {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return
		}
	}
}
