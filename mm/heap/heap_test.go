package heap

import (
	"testing"

	"gokernel/mm/frame"
	"gokernel/mm/page"
	"gokernel/mm/paging"
)

func newTestMultipleHeaps(t *testing.T, nHeaps int) *MultipleHeaps {
	t.Helper()
	frames, err := frame.New([]frame.Region{
		{Range: frame.Range{Start: 0x1000, End: 0x1fff}, Type: frame.Free},
	}, nil)
	if err != nil {
		t.Fatalf("frame.New: %v", err)
	}
	pages, err := page.New([]page.Region{
		{Range: page.Range{Start: 0x10000, End: 0x10fff}, Type: page.Free},
	}, nil)
	if err != nil {
		t.Fatalf("page.New: %v", err)
	}
	mapper := paging.NewMapper(frames)
	return New(nHeaps, pages, mapper)
}

func TestAllocSmallRoundTrip(t *testing.T) {
	mh := newTestMultipleHeaps(t, 2)
	blk, err := mh.Alloc(24)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if len(blk.Bytes()) < 24 {
		t.Fatalf("Bytes() len = %d, want >= 24", len(blk.Bytes()))
	}
	if blk.Large() {
		t.Fatalf("24-byte allocation unexpectedly large")
	}
	blk.Bytes()[0] = 0x42
	mh.Dealloc(blk)
}

func TestAllocLargePassthrough(t *testing.T) {
	mh := newTestMultipleHeaps(t, 1)
	size := MaxAllocSize + 1
	blk, err := mh.Alloc(size)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if !blk.Large() {
		t.Fatalf("allocation above MaxAllocSize not marked large")
	}
	if len(blk.Bytes()) != size {
		t.Fatalf("Bytes() len = %d, want %d", len(blk.Bytes()), size)
	}
	stats := mh.Stats()
	if stats.LargeAllocations != 1 || stats.LargeAllocBytes != uint64(size) {
		t.Fatalf("Stats() = %+v, want 1 large alloc of %d bytes", stats, size)
	}
	mh.Dealloc(blk)
	stats = mh.Stats()
	if stats.LargeAllocations != 0 {
		t.Fatalf("Stats() after dealloc = %+v, want 0 large allocs", stats)
	}
}

func TestManySmallAllocationsFillMultiplePages(t *testing.T) {
	mh := newTestMultipleHeaps(t, 1)
	var blocks []*Block
	// Smallest class holds ObjectPageSize/8 objects per page; force at
	// least two object pages to be mapped.
	n := (ObjectPageSize/8)*2 + 1
	for i := 0; i < n; i++ {
		blk, err := mh.Alloc(8)
		if err != nil {
			t.Fatalf("Alloc #%d: %v", i, err)
		}
		blocks = append(blocks, blk)
	}
	for _, blk := range blocks {
		mh.Dealloc(blk)
	}
	stats := mh.Stats()
	if stats.EmptyPagesPerHeap[0] < 2 {
		t.Fatalf("after freeing everything, empty pages = %d, want >= 2", stats.EmptyPagesPerHeap[0])
	}
}

func TestCrossHeapRebalancing(t *testing.T) {
	mh := newTestMultipleHeaps(t, 2)

	// Drive heap 0 well past ReturnThreshold worth of empty pages by
	// allocating then freeing enough 8-byte objects to populate many
	// pages, all landing on heap 0 via a fixed CPUHint.
	prev := CPUHint
	defer func() { CPUHint = prev }()
	CPUHint = func() int { return 0 }

	perPage := ObjectPageSize / 8
	total := perPage * (ReturnThreshold + 2)
	blocks := make([]*Block, 0, total)
	for i := 0; i < total; i++ {
		blk, err := mh.Alloc(8)
		if err != nil {
			t.Fatalf("Alloc #%d: %v", i, err)
		}
		blocks = append(blocks, blk)
	}
	for _, blk := range blocks {
		mh.Dealloc(blk)
	}

	before := mh.Stats().EmptyPagesPerHeap[0]
	if before <= ReturnThreshold {
		t.Fatalf("heap 0 empty pages = %d, want > %d to exercise rebalancing", before, ReturnThreshold)
	}

	// Now route an allocation to heap 1; it has no pages of its own, so
	// it must steal one of heap 0's empty pages rather than mapping a
	// fresh region from the OS.
	CPUHint = func() int { return 1 }
	blk, err := mh.Alloc(8)
	if err != nil {
		t.Fatalf("Alloc on heap 1: %v", err)
	}
	if blk.page.heapID != 1 {
		t.Fatalf("block allocated from heap %d, want 1", blk.page.heapID)
	}

	after := mh.Stats().EmptyPagesPerHeap[0]
	if after >= before {
		t.Fatalf("heap 0 empty pages = %d after heap 1's alloc, want < %d (a page should have been stolen)", after, before)
	}
	mh.Dealloc(blk)
}
