package interrupt

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"gokernel/kernelerr"
	"gokernel/mm/frame"
	"gokernel/mm/page"
	"gokernel/mm/paging"
	"gokernel/sched"
	"gokernel/task"
	"gokernel/task/spawn"
)

func newTestRegistry(t *testing.T) (*Registry, *sched.Runqueue) {
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
	stacks := spawn.NewStackAllocator(pages, mapper, spawn.DefaultStackSize)
	list := spawn.NewList()

	rr := sched.NewRoundRobin()
	idle := task.New(0, "idle")
	rq := sched.NewRunqueue(0, rr, idle)

	return NewRegistry(list, stacks, rr), rq
}

func TestRegisterInterruptHandlerRunsDeferredWork(t *testing.T) {
	reg, rq := newTestRegistry(t)

	var iterations atomic.Int32
	ran := make(chan struct{}, 16)
	deferred := func(arg any) {
		iterations.Add(1)
		ran <- struct{}{}
	}

	var binding *Binding
	handler := func() {
		if binding != nil {
			binding.Unblock(rq)
		}
	}

	b, err := reg.RegisterInterruptHandler(1, handler, deferred, nil, "test-device")
	if err != nil {
		t.Fatalf("RegisterInterruptHandler: %v", err)
	}
	binding = b

	if got, want := b.Deferred.State(), task.Blocked; got != want {
		t.Fatalf("deferred task state = %s, want %s", got, want)
	}

	for i := 0; i < 3; i++ {
		reg.Dispatch(1)
		select {
		case <-ran:
		case <-time.After(2 * time.Second):
			t.Fatalf("dispatch #%d: deferred work never ran, total so far %d", i+1, iterations.Load())
		}
	}
	if iterations.Load() != 3 {
		t.Fatalf("iterations = %d, want 3", iterations.Load())
	}
}

func TestRegisterInterruptHandlerRejectsConflict(t *testing.T) {
	reg, _ := newTestRegistry(t)
	noop := func() {}
	if _, err := reg.RegisterInterruptHandler(5, noop, func(any) {}, nil, "first"); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	_, err := reg.RegisterInterruptHandler(5, noop, func(any) {}, nil, "second")
	if !errors.Is(err, kernelerr.ErrIrqInUse) {
		t.Fatalf("second registration error = %v, want ErrIrqInUse", err)
	}
}

func TestRegisterInterruptRejectsConflict(t *testing.T) {
	reg, _ := newTestRegistry(t)
	if err := reg.RegisterInterrupt(9, 0xdead); err != nil {
		t.Fatalf("first RegisterInterrupt: %v", err)
	}
	err := reg.RegisterInterrupt(9, 0xbeef)
	if !errors.Is(err, kernelerr.ErrIrqInUse) {
		t.Fatalf("second RegisterInterrupt error = %v, want ErrIrqInUse", err)
	}
}

func TestDispatchWithoutHandlerIsNoop(t *testing.T) {
	reg, _ := newTestRegistry(t)
	reg.Dispatch(42) // must not panic
}
