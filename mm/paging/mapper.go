package paging

import (
	"fmt"
	"sync"

	"gokernel/cpu"
	"gokernel/kernelerr"
	"gokernel/mm/frame"
	"gokernel/mm/page"
)

// Mapper installs and removes page-table entries for one address space.
// It holds the one lock per address space that spec.md §5 requires:
// exclusive on every mutation. The root table is exposed only through
// this type, per spec.md §4.C.
type Mapper struct {
	mu     sync.Mutex
	root   *table
	frames *frame.Allocator
}

// NewMapper constructs a Mapper over a fresh, empty root table. frames is
// used by MapAllocatedPages to satisfy frame allocation internally.
func NewMapper(frames *frame.Allocator) *Mapper {
	return &Mapper{root: &table{}, frames: frames}
}

// MapAllocatedPagesTo installs pages -> frames with the given flags and
// returns an exclusive MappedPages: it owns frames, so dropping the
// result deallocates them.
func (m *Mapper) MapAllocatedPagesTo(pages *page.AllocatedPages, frames *frame.AllocatedFrames, flags Flags) (*MappedPages, error) {
	if pages.Len() != frames.Len() {
		return nil, fmt.Errorf("map %s to %s: %w", pages.Range(), frames.Range(), kernelerr.ErrInvalidRange)
	}
	if err := m.install(pages.Range(), frames.Range(), flags|Present); err != nil {
		return nil, err
	}
	backing := make([]byte, pages.Len()*Size)
	registerBacking(frames.Range().Start, backing)
	mp := &MappedPages{
		mapper:  m,
		pages:   pages,
		frames:  frames.Range(),
		owned:   frames,
		flags:   flags | Present,
		backing: backing,
	}
	newMappedPagesFinalizerGuard(mp)
	return mp, nil
}

// MapAllocatedPages allocates the backing frames internally and installs
// an exclusive mapping, per spec.md §4.C.
func (m *Mapper) MapAllocatedPages(pages *page.AllocatedPages, flags Flags) (*MappedPages, error) {
	frames, err := m.frames.AllocateFrames(pages.Len())
	if err != nil {
		return nil, fmt.Errorf("map %d pages: %w", pages.Len(), err)
	}
	mp, err := m.MapAllocatedPagesTo(pages, frames, flags)
	if err != nil {
		frames.Release()
		return nil, err
	}
	return mp, nil
}

// MapFramesToNonExclusive installs pages -> frames as a shared mapping:
// the frames are not owned by the result, so dropping it unmaps but does
// not deallocate. Used for device memory, identity mappings present at
// boot, or additional aliases of already-owned frames.
func (m *Mapper) MapFramesToNonExclusive(pages *page.AllocatedPages, frames frame.Range, flags Flags) (*MappedPages, error) {
	if pages.Len() != frames.Len() {
		return nil, fmt.Errorf("map %s to %s: %w", pages.Range(), frames, kernelerr.ErrInvalidRange)
	}
	if err := m.install(pages.Range(), frames, flags|Present); err != nil {
		return nil, err
	}
	backing, ok := lookupBacking(frames.Start, int(frames.Len())*Size)
	if !ok {
		// No prior exclusive mapping registered this span (e.g. boot-time
		// identity mapping of device memory); synthesize a zero-filled
		// span and register it so future aliases observe the same bytes.
		backing = make([]byte, frames.Len()*Size)
		registerBacking(frames.Start, backing)
	}
	mp := &MappedPages{
		mapper:  m,
		pages:   pages,
		frames:  frames,
		flags:   flags | Present,
		backing: backing,
	}
	newMappedPagesFinalizerGuard(mp)
	return mp, nil
}

func (m *Mapper) install(pages page.Range, frames frame.Range, flags Flags) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := pages.Len()
	for i := uint64(0); i < n; i++ {
		pn := pages.Start + page.Number(i)
		fn := frames.Start + frame.Number(i)
		e, err := m.root.walkCreate(pn)
		if err != nil {
			return fmt.Errorf("install %#x: %w", pn.Addr(), err)
		}
		if e.present {
			return fmt.Errorf("install %#x: %w", pn.Addr(), kernelerr.ErrAlreadyAllocated)
		}
		e.present = true
		e.flags = flags
		e.leaf = fn
	}
	return nil
}

// remap updates the flags of every PTE within r, requiring all of them to
// already be present.
func (m *Mapper) remap(r page.Range, flags Flags) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := r.Len()
	for i := uint64(0); i < n; i++ {
		pn := r.Start + page.Number(i)
		e, present, err := m.root.walk(pn)
		if err != nil {
			return err
		}
		if !present {
			return fmt.Errorf("remap %#x: %w", pn.Addr(), kernelerr.ErrInvalidMapping)
		}
		e.flags = flags
	}
	return nil
}

// unmap clears every PTE within r and invalidates the TLB, locally and
// (if a shootdown callback is installed) across other CPUs.
func (m *Mapper) unmap(r page.Range) error {
	m.mu.Lock()
	n := r.Len()
	for i := uint64(0); i < n; i++ {
		pn := r.Start + page.Number(i)
		e, present, err := m.root.walk(pn)
		if err != nil {
			m.mu.Unlock()
			return err
		}
		if !present {
			continue
		}
		*e = entry{}
	}
	m.mu.Unlock()

	for i := uint64(0); i < n; i++ {
		cpu.FlushTLBEntry((r.Start + page.Number(i)).Addr())
	}
	notifyShootdown(r)
	return nil
}

// translate reports the frame currently backing a virtual page, if any.
func (m *Mapper) translate(pn page.Number) (frame.Number, Flags, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, present, err := m.root.walk(pn)
	if err != nil || !present {
		return 0, 0, false
	}
	return e.leaf, e.flags, true
}
