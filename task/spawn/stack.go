package spawn

import (
	"fmt"

	"gokernel/mm/page"
	"gokernel/mm/paging"
	"gokernel/task"
)

// DefaultStackSize matches the teacher's fixed per-task kernel stack
// size; bootcfg can override it via the "deferred_stack" command-line token.
const DefaultStackSize = 16 * 1024

// kernelStack is the concrete task.Stack built on top of an
// mm/paging.MappedPages: the owned kernel stack a spawned task runs on.
// It stays alive until Release is called (after join, or after the
// scheduler reclaims a detached exited task), never merely on Exit.
type kernelStack struct {
	mp *paging.MappedPages
}

func (s *kernelStack) Bytes() []byte { return s.mp.Bytes() }
func (s *kernelStack) Release()      { s.mp.Unmap() }

var _ task.Stack = (*kernelStack)(nil)

// StackAllocator carves kernel stacks out of the virtual page allocator
// and page-table mapper, per spec.md §4.I step 1 ("allocate a kernel
// stack").
type StackAllocator struct {
	pages     *page.Allocator
	mapper    *paging.Mapper
	sizeBytes int
}

// NewStackAllocator builds a StackAllocator that hands out sizeBytes
// (rounded up to page granularity) kernel stacks.
func NewStackAllocator(pages *page.Allocator, mapper *paging.Mapper, sizeBytes int) *StackAllocator {
	if sizeBytes <= 0 {
		sizeBytes = DefaultStackSize
	}
	return &StackAllocator{pages: pages, mapper: mapper, sizeBytes: sizeBytes}
}

// Allocate maps a fresh read/write, no-execute kernel stack.
func (a *StackAllocator) Allocate() (task.Stack, error) {
	pages, err := a.pages.AllocatePagesByBytes(uint64(a.sizeBytes))
	if err != nil {
		return nil, fmt.Errorf("allocate kernel stack: %w", err)
	}
	mp, err := a.mapper.MapAllocatedPages(pages, paging.Writable|paging.NoExecute)
	if err != nil {
		pages.Release()
		return nil, fmt.Errorf("map kernel stack: %w", err)
	}
	return &kernelStack{mp: mp}, nil
}

// Zeroed rebuilds a fresh, zero-filled stack for a restarting task.
// Theseus allows either allocating fresh or reusing and zeroing the
// existing stack; mapping fresh is simpler here. The caller releases the
// old stack's MappedPages once the new stack has been mapped.
func (a *StackAllocator) Zeroed() (task.Stack, error) {
	return a.Allocate()
}
