package paging

import (
	"fmt"
	"runtime"

	"gokernel/kernelerr"
	"gokernel/mm/frame"
	"gokernel/mm/page"
)

// Size is the page size in bytes, used for this package's page/byte
// conversions.
const Size = page.Size

// MappedPages is a typed, lifetime-bound handle to a mapped virtual
// region. Unmapping happens when the handle is explicitly released (Go
// has no destructors to hook a scope exit); a finalizer backstops leaked
// handles the same way frame.AllocatedFrames does.
//
// Grounded on Theseus's MappedPages (original_source/kernel/nano_core/src/memory/paging/mapper.rs,
// kernel/memory/src/paging/mapper_spillful.rs).
type MappedPages struct {
	mapper   *Mapper
	pages    *page.AllocatedPages
	frames   frame.Range
	owned    *frame.AllocatedFrames // non-nil iff this mapping is exclusive
	flags    Flags
	backing  []byte
	unmapped bool
}

// Pages reports the virtual page range.
func (mp *MappedPages) Pages() page.Range { return mp.pages.Range() }

// Frames reports the backing physical frame range.
func (mp *MappedPages) Frames() frame.Range { return mp.frames }

// Flags reports the currently installed permission flags.
func (mp *MappedPages) Flags() Flags { return mp.flags }

// Exclusive reports whether this mapping owns its backing frames.
func (mp *MappedPages) Exclusive() bool { return mp.owned != nil }

// SizeInBytes reports the mapped region's length in bytes.
func (mp *MappedPages) SizeInBytes() uintptr { return uintptr(mp.pages.Len()) * Size }

// Bytes exposes the mapped region's simulated backing store directly, for
// callers (such as mm/heap) that need to carve it into smaller
// allocations rather than go through the typed AsType/AsSlice views.
func (mp *MappedPages) Bytes() []byte { return mp.backing }

func newMappedPagesFinalizerGuard(mp *MappedPages) {
	runtime.SetFinalizer(mp, func(mp *MappedPages) {
		if !mp.unmapped {
			mp.Unmap()
		}
	})
}

// Remap updates the flags recorded on mp and every page-table entry in
// its range to match.
func (mp *MappedPages) Remap(newFlags Flags) error {
	if mp.unmapped {
		return fmt.Errorf("remap: %w", kernelerr.ErrInvalidMapping)
	}
	if err := mp.mapper.remap(mp.pages.Range(), newFlags|Present); err != nil {
		return fmt.Errorf("remap %s: %w", mp.pages.Range(), err)
	}
	mp.flags = newFlags | Present
	return nil
}

// Unmap zeroes every PTE in the range, flushes the TLB, and — if this
// mapping is exclusive — deallocates the frames back to the frame
// allocator. It is idempotent. After Unmap, mp and its derived views must
// not be used.
func (mp *MappedPages) Unmap() {
	if mp.unmapped {
		return
	}
	if err := mp.mapper.unmap(mp.pages.Range()); err != nil {
		panic(fmt.Sprintf("paging: unmap %s: %v", mp.pages.Range(), err))
	}
	mp.unmapped = true
	if mp.owned != nil {
		releaseBacking(mp.frames.Start)
		mp.owned.Release()
	}
	mp.pages.Release()
	runtime.SetFinalizer(mp, nil)
}

// Merge combines two adjacent MappedPages into one, provided their flags
// match and their ownership modes are compatible (both exclusive or both
// shared). Consumes both inputs.
func Merge(a, b *MappedPages) (*MappedPages, error) {
	if a.flags != b.flags {
		return nil, fmt.Errorf("merge: %w", kernelerr.ErrInvalidMapping)
	}
	if a.Exclusive() != b.Exclusive() {
		return nil, fmt.Errorf("merge: %w", kernelerr.ErrInvalidMapping)
	}
	pages, ok := page.Merge(a.pages, b.pages)
	if !ok {
		return nil, fmt.Errorf("merge %s and %s: %w", a.pages.Range(), b.pages.Range(), kernelerr.ErrInvalidRange)
	}
	merged := &MappedPages{
		mapper: a.mapper,
		pages:  pages,
		frames: frame.Range{Start: a.frames.Start, End: b.frames.End},
		flags:  a.flags,
	}
	if a.Exclusive() {
		owned, ok := frame.Merge(a.owned, b.owned)
		if !ok {
			pages.Release()
			return nil, fmt.Errorf("merge: frame ranges not adjacent: %w", kernelerr.ErrInvalidRange)
		}
		merged.owned = owned
	}
	backing := append(append([]byte{}, a.backing...), b.backing...)
	registerBacking(merged.frames.Start, backing)
	merged.backing = backing
	a.unmapped, b.unmapped = true, true
	runtime.SetFinalizer(a, nil)
	runtime.SetFinalizer(b, nil)
	newMappedPagesFinalizerGuard(merged)
	return merged, nil
}

// Split divides mp into two MappedPages at the page boundary `at`,
// consuming mp. Both halves preserve mp's flags and ownership mode.
func Split(mp *MappedPages, at page.Number) (before, after *MappedPages, err error) {
	beforePages, afterPages, err := page.Split(mp.pages, at)
	if err != nil {
		return nil, nil, err
	}
	offset := uint64(at - mp.pages.Range().Start)
	beforeFrames := frame.Range{Start: mp.frames.Start, End: mp.frames.Start + frame.Number(offset) - 1}
	afterFrames := frame.Range{Start: mp.frames.Start + frame.Number(offset), End: mp.frames.End}

	before = &MappedPages{mapper: mp.mapper, pages: beforePages, frames: beforeFrames, flags: mp.flags}
	after = &MappedPages{mapper: mp.mapper, pages: afterPages, frames: afterFrames, flags: mp.flags}

	boundary := offset * Size
	beforeBacking := mp.backing[:boundary]
	afterBacking := mp.backing[boundary:]
	before.backing = beforeBacking
	after.backing = afterBacking
	if !beforeFrames.Empty() {
		registerBacking(beforeFrames.Start, beforeBacking)
	}
	if !afterFrames.Empty() {
		registerBacking(afterFrames.Start, afterBacking)
	}

	if mp.Exclusive() {
		ownedBefore, ownedAfter, err := frame.Split(mp.owned, mp.owned.Range().Start+frame.Number(offset))
		if err != nil {
			return nil, nil, err
		}
		before.owned = ownedBefore
		after.owned = ownedAfter
	}
	mp.unmapped = true
	runtime.SetFinalizer(mp, nil)
	newMappedPagesFinalizerGuard(before)
	newMappedPagesFinalizerGuard(after)
	return before, after, nil
}
