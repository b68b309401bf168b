// Package task implements the task object of spec.md §4.F: the unit the
// scheduler dispatches, carrying run-state, exit reason, owned stack, and
// per-task environment. It does not know about runqueues or scheduling
// policies (gokernel/sched) or how control actually transfers between
// tasks (gokernel/task/context); those build on top of this package.
//
// Grounded on Theseus's task crate (original_source/kernel/task/src/lib.rs)
// for the run-state machine and exit-reason shape, and on the teacher's
// proc.go for the id/cwd/env/file-descriptor-table idiom
// (biscuit/src/proc, reachable from main.go's Proc_t).
package task

import "fmt"

// ID uniquely identifies a task for the lifetime of the kernel.
type ID uint64

// RunState is the sole source of truth for scheduling eligibility.
// Legal transitions: Initing -> Runnable (once, by the spawner),
// Runnable <-> Blocked (by Block/Unblock), * -> Exited (terminal, once).
type RunState int32

const (
	Initing RunState = iota
	Runnable
	Blocked
	Exited
)

func (s RunState) String() string {
	switch s {
	case Initing:
		return "Initing"
	case Runnable:
		return "Runnable"
	case Blocked:
		return "Blocked"
	case Exited:
		return "Exited"
	default:
		return "RunState(?)"
	}
}

// KillKind tags why a task was killed.
type KillKind int

const (
	// KillPanic means the task's entry point panicked; Info describes it.
	KillPanic KillKind = iota
	// KillRequested means something external asked the task to die
	// (e.g. kill(reason)). Restart is always suppressed for this kind,
	// per spec.md §9 Open Question 2.
	KillRequested
	// KillException means an unrecoverable CPU exception (e.g. a page
	// fault outside a recoverable region) was converted to a kill.
	KillException
)

func (k KillKind) String() string {
	switch k {
	case KillPanic:
		return "Panic"
	case KillRequested:
		return "Requested"
	case KillException:
		return "Exception"
	default:
		return "KillKind(?)"
	}
}

// PanicInfo is the owned record built at the panic entry point. It is
// owned by the task (not borrowed from the panicking stack), per
// spec.md §9's "store the panic info owned by the task" design note.
type PanicInfo struct {
	Message string
	File    string
	Line    int
}

func (p PanicInfo) String() string {
	if p.File == "" {
		return p.Message
	}
	return fmt.Sprintf("%s at %s:%d", p.Message, p.File, p.Line)
}

// KillReason is the payload of a Killed exit reason.
type KillReason struct {
	Kind      KillKind
	Panic     PanicInfo // valid iff Kind == KillPanic
	Exception uint      // valid iff Kind == KillException
}

// ExitKind tags whether a task ran to completion or was killed.
type ExitKind int

const (
	ExitCompleted ExitKind = iota
	ExitKilled
)

// ExitReason is recorded exactly once, when a task's run-state becomes
// Exited.
type ExitReason struct {
	Kind  ExitKind
	Value int32      // valid iff Kind == ExitCompleted
	Kill  KillReason // valid iff Kind == ExitKilled
}

func CompletedWith(value int32) ExitReason {
	return ExitReason{Kind: ExitCompleted, Value: value}
}

func KilledBy(reason KillReason) ExitReason {
	return ExitReason{Kind: ExitKilled, Kill: reason}
}

func (e ExitReason) String() string {
	switch e.Kind {
	case ExitCompleted:
		return fmt.Sprintf("Completed(%d)", e.Value)
	case ExitKilled:
		return fmt.Sprintf("Killed(%s)", e.Kill.Kind)
	default:
		return "ExitReason(?)"
	}
}
