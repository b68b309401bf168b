package profile

import (
	"bytes"
	"testing"

	"gokernel/mm/frame"
	"gokernel/mm/heap"
	"gokernel/mm/page"
	"gokernel/mm/paging"
	"gokernel/sched"
	"gokernel/task"
)

func newTestHeaps(t *testing.T, n int) *heap.MultipleHeaps {
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
	return heap.New(n, pages, mapper)
}

func TestSchedulerSnapshotReportsDispatchCounts(t *testing.T) {
	rr := sched.NewRoundRobin()
	idle := task.New(0, "idle")
	rq := sched.NewRunqueue(0, rr, idle)

	a := task.New(1, "a")
	a.MarkRunnable()
	rr.Add(a)

	for i := 0; i < 3; i++ {
		rq.Schedule()
	}

	p := SchedulerSnapshot([]*sched.Runqueue{rq})
	if len(p.Sample) != 1 {
		t.Fatalf("len(Sample) = %d, want 1", len(p.Sample))
	}
	if got := p.Sample[0].Value[0]; got != int64(rq.DispatchCount()) {
		t.Fatalf("sampled dispatch count = %d, want %d", got, rq.DispatchCount())
	}
	if err := p.CheckValid(); err != nil {
		t.Fatalf("CheckValid: %v", err)
	}
}

func TestHeapSnapshotCoversEveryHeapAndClass(t *testing.T) {
	mh := newTestHeaps(t, 2)
	blk, err := mh.Alloc(24)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	defer mh.Dealloc(blk)

	p := HeapSnapshot(mh)
	if len(p.Sample) != 2*heap.NumSizeClasses {
		t.Fatalf("len(Sample) = %d, want %d", len(p.Sample), 2*heap.NumSizeClasses)
	}
	if err := p.CheckValid(); err != nil {
		t.Fatalf("CheckValid: %v", err)
	}
}

func TestWriteProducesNonEmptyGzippedOutput(t *testing.T) {
	mh := newTestHeaps(t, 1)
	p := HeapSnapshot(mh)

	var buf bytes.Buffer
	if err := Write(p, &buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatalf("Write produced no output")
	}
}
