package frame

import (
	"errors"
	"testing"

	"gokernel/kernelerr"
)

func newTestAllocator(t *testing.T) *Allocator {
	t.Helper()
	a, err := New(
		[]Region{{Range: RangeOf(FromAddr(0x100000), 0x100000/Size)}},
		[]Region{{Range: Range{Start: FromAddr(0x180000), End: FromAddr(0x190000) - 1}}},
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

// S1 from spec.md §8.
func TestScenarioS1(t *testing.T) {
	a := newTestAllocator(t)

	_, err := a.AllocateFramesAt(0x170000, 32, false)
	if !errors.Is(err, kernelerr.ErrWrongRegionType) {
		t.Fatalf("expected WrongRegionType, got %v", err)
	}

	af, err := a.AllocateFramesAt(0x170000, 16, false)
	if err != nil {
		t.Fatalf("AllocateFramesAt: %v", err)
	}
	want := RangeOf(FromAddr(0x170000), 16)
	if af.Range() != want {
		t.Fatalf("got range %s want %s", af.Range(), want)
	}

	free := a.FreeRanges()
	if len(free) != 2 {
		t.Fatalf("expected 2 free ranges, got %d: %v", len(free), free)
	}
	if free[0] != (Range{Start: FromAddr(0x100000), End: FromAddr(0x170000) - 1}) {
		t.Fatalf("unexpected first free range: %s", free[0])
	}
	if free[1] != (Range{Start: FromAddr(0x190000), End: FromAddr(0x200000) - 1}) {
		t.Fatalf("unexpected second free range: %s", free[1])
	}
	af.Release()
}

func TestNoOverlap(t *testing.T) {
	a := newTestAllocator(t)
	var held []*AllocatedFrames
	for i := 0; i < 10; i++ {
		af, err := a.AllocateFrames(4)
		if err != nil {
			t.Fatalf("allocate %d: %v", i, err)
		}
		for _, other := range held {
			if af.Range().Overlaps(other.Range()) {
				t.Fatalf("overlap between %s and %s", af.Range(), other.Range())
			}
		}
		held = append(held, af)
	}
	for _, af := range held {
		af.Release()
	}
}

func TestSplitMergeRoundTrip(t *testing.T) {
	a := newTestAllocator(t)
	af, err := a.AllocateFrames(8)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	orig := af.Range()
	mid := orig.Start + 4

	before, after, err := Split(af, mid)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	merged, ok := Merge(before, after)
	if !ok {
		t.Fatalf("merge after split failed")
	}
	if merged.Range() != orig {
		t.Fatalf("round trip mismatch: got %s want %s", merged.Range(), orig)
	}
	merged.Release()
}

func TestDoubleAllocationImpossible(t *testing.T) {
	a := newTestAllocator(t)
	af1, err := a.AllocateFrames(16)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	// The exact same range must not be allocatable again while af1 is held.
	_, err = a.AllocateFramesAt(af1.Range().Start.Addr(), af1.Range().Len(), false)
	if !errors.Is(err, kernelerr.ErrAlreadyAllocated) && !errors.Is(err, kernelerr.ErrInvalidAddress) {
		t.Fatalf("expected allocation of already-held range to fail, got %v", err)
	}
	af1.Release()

	af2, err := a.AllocateFramesAt(af1.Range().Start.Addr(), af1.Range().Len(), false)
	if err != nil {
		t.Fatalf("re-allocate after release: %v", err)
	}
	af2.Release()
}

func TestReleaseReturnsFramesToFreeList(t *testing.T) {
	a := newTestAllocator(t)
	before := a.FreeRanges()
	totalBefore := uint64(0)
	for _, r := range before {
		totalBefore += r.Len()
	}

	af, err := a.AllocateFrames(32)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	af.Release()
	a.Coalesce()

	after := a.FreeRanges()
	totalAfter := uint64(0)
	for _, r := range after {
		totalAfter += r.Len()
	}
	if totalAfter != totalBefore {
		t.Fatalf("expected free total %d after release+coalesce, got %d", totalBefore, totalAfter)
	}
}

func TestOutOfMemory(t *testing.T) {
	a := newTestAllocator(t)
	_, err := a.AllocateFrames(1 << 30)
	if !errors.Is(err, kernelerr.ErrOutOfMemory) {
		t.Fatalf("expected OutOfMemory, got %v", err)
	}
}

func TestEmptyAllocationIsNoOp(t *testing.T) {
	af := Empty()
	if af.Len() != 0 {
		t.Fatalf("expected empty allocation to have zero length")
	}
	af.Release()
	af.Release()
}
