package spawn

import (
	"fmt"
	"testing"
	"time"

	"gokernel/mm/frame"
	"gokernel/mm/page"
	"gokernel/mm/paging"
	"gokernel/sched"
	"gokernel/task"
)

type fakeEnqueuer struct {
	added []*task.Task
}

func (f *fakeEnqueuer) Add(t *task.Task) { f.added = append(f.added, t) }

func newTestEnv(t *testing.T) (*List, *StackAllocator) {
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
	return NewList(), NewStackAllocator(pages, mapper, DefaultStackSize)
}

func awaitExit(t *testing.T, tk *task.Task) task.ExitReason {
	t.Helper()
	select {
	case <-exitedSignal(tk):
		return tk.Join()
	case <-time.After(2 * time.Second):
		t.Fatalf("task %s never exited", tk.Name())
		return task.ExitReason{}
	}
}

// exitedSignal adapts Task.Join (which blocks) into something selectable
// alongside a timeout, without requiring Join to accept a context.
func exitedSignal(tk *task.Task) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		tk.Join()
		close(ch)
	}()
	return ch
}

func TestSpawnRunsToCompletion(t *testing.T) {
	list, stacks := newTestEnv(t)
	rq := &fakeEnqueuer{}

	b := NewTaskBuilder("worker", func(arg any) int32 {
		return arg.(int32) * 2
	}, int32(21))

	tk, err := Spawn(b, list, stacks, rq)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if len(rq.added) != 1 || rq.added[0] != tk {
		t.Fatalf("task not added to runqueue on spawn")
	}
	if got, want := tk.State(), task.Runnable; got != want {
		t.Fatalf("state = %s, want %s", got, want)
	}

	reason := awaitExit(t, tk)
	if reason.Kind != task.ExitCompleted || reason.Value != 42 {
		t.Fatalf("exit reason = %s, want Completed(42)", reason)
	}
	if _, ok := list.Get(tk.ID()); !ok {
		t.Fatalf("task missing from list before reap")
	}
	list.ReapExited()
	if _, ok := list.Get(tk.ID()); ok {
		t.Fatalf("task still present after ReapExited")
	}
}

func TestSpawnBlockInitiallyDoesNotEnqueue(t *testing.T) {
	list, stacks := newTestEnv(t)
	rq := &fakeEnqueuer{}

	release := make(chan struct{})
	b := NewTaskBuilder("deferred", func(arg any) int32 {
		<-release
		return 0
	}, nil).BlockInitially()

	tk, err := Spawn(b, list, stacks, rq)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if len(rq.added) != 0 {
		t.Fatalf("BlockInitially task was enqueued: %v", rq.added)
	}
	if got, want := tk.State(), task.Blocked; got != want {
		t.Fatalf("state = %s, want %s", got, want)
	}
	close(release)
	awaitExit(t, tk)
}

func TestSpawnPanicKillsNonRestartable(t *testing.T) {
	list, stacks := newTestEnv(t)
	rq := &fakeEnqueuer{}

	b := NewTaskBuilder("doomed", func(arg any) int32 {
		panic("boom")
	}, nil)
	tk, err := Spawn(b, list, stacks, rq)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	reason := awaitExit(t, tk)
	if reason.Kind != task.ExitKilled || reason.Kill.Kind != task.KillPanic {
		t.Fatalf("exit reason = %s, want Killed(Panic)", reason)
	}
}

func TestSpawnRestartableRetriesAfterPanic(t *testing.T) {
	list, stacks := newTestEnv(t)
	rq := &fakeEnqueuer{}

	var attempts int
	restarts := make(chan struct{}, 8)
	entry := func(arg any) int32 {
		attempts++
		if attempts < 3 {
			panic(fmt.Sprintf("attempt %d failed", attempts))
		}
		return int32(attempts)
	}

	b := NewTaskBuilder("flaky", entry, nil).Restartable(func() {
		restarts <- struct{}{}
	})
	tk, err := Spawn(b, list, stacks, rq)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	reason := awaitExit(t, tk)
	if reason.Kind != task.ExitCompleted || reason.Value != 3 {
		t.Fatalf("exit reason = %s, want Completed(3)", reason)
	}
	if len(restarts) != 2 {
		t.Fatalf("saw %d restarts, want 2", len(restarts))
	}
}

func TestSpawnWiresIntoRealPolicy(t *testing.T) {
	list, stacks := newTestEnv(t)
	rr := sched.NewRoundRobin()
	idle := task.New(0, "idle")

	b := NewTaskBuilder("a", func(arg any) int32 { return 7 }, nil)
	tk, err := Spawn(b, list, stacks, rr)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	rq := sched.NewRunqueue(0, rr, idle)
	dispatched := rq.Schedule()
	if dispatched != tk {
		t.Fatalf("Schedule() = %v, want spawned task", dispatched)
	}
	awaitExit(t, tk)
}
