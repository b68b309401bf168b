package paging

import (
	"errors"
	"testing"

	"gokernel/kernelerr"
	"gokernel/mm/frame"
	"gokernel/mm/page"
)

func newTestMapper(t *testing.T) (*Mapper, *page.Allocator) {
	t.Helper()
	frames, err := frame.New([]frame.Region{
		{Range: frame.Range{Start: 0x100, End: 0x1ff}, Type: frame.Free},
	}, nil)
	if err != nil {
		t.Fatalf("frame.New: %v", err)
	}
	pages, err := page.New([]page.Region{
		{Range: page.Range{Start: 0x1000, End: 0x10ff}, Type: page.Free},
	}, nil)
	if err != nil {
		t.Fatalf("page.New: %v", err)
	}
	return NewMapper(frames), pages
}

// TestScenarioS2 encodes spec.md §8's S2 end-to-end scenario: map two
// pages RW, write a byte, remap RO, confirm mutable access now fails
// while the written byte is still readable, then confirm Unmap releases
// both the virtual range and the backing frames.
func TestScenarioS2(t *testing.T) {
	mapper, pages := newTestMapper(t)

	ap, err := pages.AllocatePages(2)
	if err != nil {
		t.Fatalf("AllocatePages: %v", err)
	}
	mp, err := mapper.MapAllocatedPages(ap, Writable)
	if err != nil {
		t.Fatalf("MapAllocatedPages: %v", err)
	}

	b, err := AsTypeMut[U8](mp, 0)
	if err != nil {
		t.Fatalf("AsTypeMut: %v", err)
	}
	*b = 0x5A

	if err := mp.Remap(0); err != nil {
		t.Fatalf("Remap: %v", err)
	}

	if _, err := AsSliceMut[U8](mp, 0, 1); !errors.Is(err, kernelerr.ErrNotMutable) {
		t.Fatalf("AsSliceMut after remap RO: got %v, want ErrNotMutable", err)
	}

	view, err := AsSlice[U8](mp, 0, 1)
	if err != nil {
		t.Fatalf("AsSlice: %v", err)
	}
	if view[0] != 0x5A {
		t.Fatalf("read back byte = %#x, want 0x5a", view[0])
	}

	frameRange := mp.Frames()
	mp.Unmap()

	if _, present, _ := mapper.root.walk(ap.Range().Start); present {
		t.Fatalf("page table entry still present after Unmap")
	}

	// The frames must have been returned to the free list.
	reclaimed, err := mapper.frames.AllocateFramesAt(frameRange.Start.Addr(), frameRange.Len(), false)
	if err != nil {
		t.Fatalf("frames were not returned to free list: %v", err)
	}
	reclaimed.Release()
}

// TestMappedPagesDropInvariant covers spec.md §8.3: once Unmap has run,
// the mapping must not be usable again and Unmap itself must be a no-op
// on a second call.
func TestMappedPagesDropInvariant(t *testing.T) {
	mapper, pages := newTestMapper(t)
	ap, err := pages.AllocatePages(1)
	if err != nil {
		t.Fatalf("AllocatePages: %v", err)
	}
	mp, err := mapper.MapAllocatedPages(ap, Writable)
	if err != nil {
		t.Fatalf("MapAllocatedPages: %v", err)
	}

	mp.Unmap()
	mp.Unmap() // must not panic or double-release

	if err := mp.Remap(Writable); !errors.Is(err, kernelerr.ErrInvalidMapping) {
		t.Fatalf("Remap after Unmap: got %v, want ErrInvalidMapping", err)
	}
	if _, err := AsType[U8](mp, 0); !errors.Is(err, kernelerr.ErrInvalidMapping) {
		t.Fatalf("AsType after Unmap: got %v, want ErrInvalidMapping", err)
	}
}

// TestTypedViewBounds covers spec.md §8.4: reinterpreting a mapped
// region as T must reject offsets that are unaligned or that would run
// the view past the end of the mapping.
func TestTypedViewBounds(t *testing.T) {
	mapper, pages := newTestMapper(t)
	ap, err := pages.AllocatePages(1)
	if err != nil {
		t.Fatalf("AllocatePages: %v", err)
	}
	mp, err := mapper.MapAllocatedPages(ap, Writable)
	if err != nil {
		t.Fatalf("MapAllocatedPages: %v", err)
	}
	defer mp.Unmap()

	if _, err := AsType[U32](mp, 1); !errors.Is(err, kernelerr.ErrMisaligned) {
		t.Fatalf("AsType at unaligned offset: got %v, want ErrMisaligned", err)
	}

	last := mp.SizeInBytes() - 4
	if _, err := AsType[U32](mp, last); err != nil {
		t.Fatalf("AsType at last valid u32 offset: %v", err)
	}
	if _, err := AsType[U32](mp, last+4); !errors.Is(err, kernelerr.ErrOutOfBounds) {
		t.Fatalf("AsType past end: got %v, want ErrOutOfBounds", err)
	}

	if _, err := AsSlice[U8](mp, 0, int(mp.SizeInBytes())+1); !errors.Is(err, kernelerr.ErrOutOfBounds) {
		t.Fatalf("AsSlice overrunning region: got %v, want ErrOutOfBounds", err)
	}
}

func TestRemapRequiresExistingMapping(t *testing.T) {
	mapper, pages := newTestMapper(t)
	ap, err := pages.AllocatePages(1)
	if err != nil {
		t.Fatalf("AllocatePages: %v", err)
	}
	mp, err := mapper.MapAllocatedPages(ap, Writable)
	if err != nil {
		t.Fatalf("MapAllocatedPages: %v", err)
	}
	defer mp.Unmap()

	if err := mp.mapper.remap(page.Range{Start: ap.Range().Start + 50, End: ap.Range().Start + 50}, Writable); !errors.Is(err, kernelerr.ErrInvalidMapping) {
		t.Fatalf("remap of unmapped page: got %v, want ErrInvalidMapping", err)
	}
}

func TestBorrowMappedRejectsImmutableWrite(t *testing.T) {
	mapper, pages := newTestMapper(t)
	ap, err := pages.AllocatePages(1)
	if err != nil {
		t.Fatalf("AllocatePages: %v", err)
	}
	mp, err := mapper.MapAllocatedPages(ap, 0)
	if err != nil {
		t.Fatalf("MapAllocatedPages: %v", err)
	}
	defer mp.Unmap()

	if _, err := BorrowMapped[U64](mp, 0, Mutable); !errors.Is(err, kernelerr.ErrNotMutable) {
		t.Fatalf("BorrowMapped(Mutable) on read-only mapping: got %v, want ErrNotMutable", err)
	}

	b, err := BorrowMapped[U64](mp, 0, Immutable)
	if err != nil {
		t.Fatalf("BorrowMapped(Immutable): %v", err)
	}
	if *b.Deref() != 0 {
		t.Fatalf("fresh mapping not zero-filled")
	}
	b.Release()
}
