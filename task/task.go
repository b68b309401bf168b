package task

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Stack is a task's owned kernel stack. It stays alive until the task
// object is dropped (after join, or after the scheduler notices an
// exited detached task), never merely on Exit. Concrete stacks are built
// by gokernel/task/spawn, typically backed by an mm/paging.MappedPages.
type Stack interface {
	Bytes() []byte
	Release()
}

// RestartInfo holds a restartable task's cloned entry point and
// argument, used to rebuild the initial context after an unwind reaches
// the task's base frame (spec.md §4.I). OnRestart, if set, is invoked
// once per restart before the cloned entry point runs again; tests use
// it to count how many times a task has been restarted.
type RestartInfo struct {
	Entry     func(arg any) int32
	Arg       any
	OnRestart func()
}

// Task is the unit the scheduler dispatches. Field layout follows
// spec.md §3's Task data model.
type Task struct {
	id   ID
	name string

	state      atomic.Int32 // RunState
	onRunQueue atomic.Bool

	exitOnce   sync.Once
	exitReason ExitReason
	exitTaken  atomic.Bool
	exitedCh   chan struct{}

	savedContext uintptr // opaque saved stack pointer; task/context's concern
	stack        Stack

	pinnedCPU    int
	hasPinnedCPU bool

	envMu sync.Mutex
	cwd   string
	env   map[string]string

	panicHandler func(PanicInfo)
	restart      *RestartInfo
}

// New constructs a task in Initing state. Spawning code (gokernel/task/spawn)
// is responsible for building the saved context and stack before
// transitioning it to Runnable.
func New(id ID, name string) *Task {
	t := &Task{
		id:      id,
		name:    name,
		cwd:     "/",
		env:     make(map[string]string),
		exitedCh: make(chan struct{}),
	}
	t.state.Store(int32(Initing))
	return t
}

func (t *Task) ID() ID      { return t.id }
func (t *Task) Name() string { return t.name }

func (t *Task) State() RunState { return RunState(t.state.Load()) }

// SetStack and GetStack are used by spawn to attach the owned kernel stack
// built during step 1 of the spawn sequence.
func (t *Task) SetStack(s Stack)  { t.stack = s }
func (t *Task) GetStack() Stack   { return t.stack }

func (t *Task) SavedContext() uintptr     { return t.savedContext }
func (t *Task) SetSavedContext(sp uintptr) { t.savedContext = sp }

func (t *Task) PinToCPU(cpu int) { t.pinnedCPU, t.hasPinnedCPU = cpu, true }
func (t *Task) PinnedCPU() (int, bool) { return t.pinnedCPU, t.hasPinnedCPU }

func (t *Task) SetPanicHandler(h func(PanicInfo)) { t.panicHandler = h }
func (t *Task) PanicHandler() func(PanicInfo)     { return t.panicHandler }

func (t *Task) SetRestartInfo(r *RestartInfo) { t.restart = r }
func (t *Task) RestartInfo() *RestartInfo     { return t.restart }
func (t *Task) Restartable() bool             { return t.restart != nil }

// MarkRunnable performs the one-time Initing -> Runnable transition the
// spawner makes after building the initial context.
func (t *Task) MarkRunnable() bool {
	return t.state.CompareAndSwap(int32(Initing), int32(Runnable))
}

// InitBlocked performs the one-time Initing -> Blocked transition used
// when a TaskBuilder requests the task start blocked (spec.md §4.I step
// 4), e.g. a deferred-interrupt task that waits to be unblocked by its
// handler.
func (t *Task) InitBlocked() bool {
	return t.state.CompareAndSwap(int32(Initing), int32(Blocked))
}

// Block transitions Runnable -> Blocked. Returns false if the task was
// not Runnable (e.g. it already exited).
func (t *Task) Block() bool {
	return t.state.CompareAndSwap(int32(Runnable), int32(Blocked))
}

// Unblock transitions Blocked -> Runnable. It does not touch the
// run-queue membership flag; callers that also manage a runqueue (see
// gokernel/sched) use TryEnqueue to decide whether to physically
// re-insert the task, which is what makes a concurrent unblock of an
// already-on-queue task a no-op (spec.md §8.6).
func (t *Task) Unblock() bool {
	return t.state.CompareAndSwap(int32(Blocked), int32(Runnable))
}

// TryEnqueue atomically transitions the on-run-queue flag false->true,
// returning whether this caller is the one that must physically insert
// the task into a runqueue.
func (t *Task) TryEnqueue() bool { return t.onRunQueue.CompareAndSwap(false, true) }

// MarkDequeued clears the on-run-queue flag; callers do this exactly
// when the task is physically removed from a runqueue's data structure.
func (t *Task) MarkDequeued() { t.onRunQueue.Store(false) }

// OnRunQueue reports the current on-run-queue flag.
func (t *Task) OnRunQueue() bool { return t.onRunQueue.Load() }

// Exit performs the single legal *->Exited transition, recording the
// exit reason and waking any joiner. Returns false if the task had
// already exited.
func (t *Task) Exit(reason ExitReason) bool {
	ok := false
	t.exitOnce.Do(func() {
		t.state.Store(int32(Exited))
		t.exitReason = reason
		close(t.exitedCh)
		ok = true
	})
	return ok
}

// Join blocks until the task has exited, then returns its exit reason.
// Join may be called more than once; unlike TakeExitValue it does not
// consume anything.
func (t *Task) Join() ExitReason {
	<-t.exitedCh
	return t.exitReason
}

// Exited reports whether Join would return immediately.
func (t *Task) Exited() bool {
	select {
	case <-t.exitedCh:
		return true
	default:
		return false
	}
}

// TakeExitValue is the one-shot consuming read spec.md §4.F calls for:
// the first caller after Exit gets ok=true; every subsequent caller
// (including ones racing the first) gets ok=false.
func (t *Task) TakeExitValue() (ExitReason, bool) {
	if !t.Exited() {
		return ExitReason{}, false
	}
	if !t.exitTaken.CompareAndSwap(false, true) {
		return ExitReason{}, false
	}
	return t.exitReason, true
}

func (t *Task) Getcwd() string {
	t.envMu.Lock()
	defer t.envMu.Unlock()
	return t.cwd
}

func (t *Task) Chdir(path string) {
	t.envMu.Lock()
	defer t.envMu.Unlock()
	t.cwd = path
}

func (t *Task) Getenv(key string) (string, bool) {
	t.envMu.Lock()
	defer t.envMu.Unlock()
	v, ok := t.env[key]
	return v, ok
}

func (t *Task) Setenv(key, value string) {
	t.envMu.Lock()
	defer t.envMu.Unlock()
	t.env[key] = value
}

func (t *Task) Unsetenv(key string) {
	t.envMu.Lock()
	defer t.envMu.Unlock()
	delete(t.env, key)
}

func (t *Task) String() string {
	return fmt.Sprintf("Task(id=%d, name=%q, state=%s)", t.id, t.name, t.State())
}
