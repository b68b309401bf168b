// Package spawn builds and bootstraps tasks (spec.md §4.I): the
// TaskBuilder, the kernel-stack allocation and initial-context setup
// steps of spawn(), the bootstrap trampoline that invokes a task's entry
// point, and restartable-task support.
//
// Grounded on the teacher's process-creation conventions (fluent builder,
// TASKLIST keyed by id) and on Theseus's spawn crate semantics as
// described in spec.md §4.I, since original_source/ carries no concrete
// spawn crate to transliterate directly.
package spawn

import (
	"fmt"

	"gokernel/task"
)

// EntryFunc is a task's entry point: takes an opaque argument, returns
// the value recorded as the task's Completed exit reason.
type EntryFunc func(arg any) int32

// Enqueuer is the subset of sched.Policy that Spawn needs to place a
// newly Runnable task onto a runqueue. sched.RoundRobin and
// sched.PriorityEpoch both satisfy it.
type Enqueuer interface {
	Add(t *task.Task)
}

// TaskBuilder captures spec.md §4.I's six fields: entry function,
// argument, name, optional pin-to-CPU, "block initially" flag,
// "restartable" flag.
type TaskBuilder struct {
	name           string
	entry          EntryFunc
	arg            any
	pinnedCPU      int
	hasPinnedCPU   bool
	blockInitially bool
	restartable    bool
	onRestart      func()
}

// NewTaskBuilder starts a builder for a task named name whose entry
// point is invoked with arg on first dispatch.
func NewTaskBuilder(name string, entry EntryFunc, arg any) *TaskBuilder {
	return &TaskBuilder{name: name, entry: entry, arg: arg}
}

// PinToCPU requests the spawned task be pinned to a specific CPU.
func (b *TaskBuilder) PinToCPU(cpu int) *TaskBuilder {
	b.pinnedCPU, b.hasPinnedCPU = cpu, true
	return b
}

// BlockInitially requests the task start Blocked instead of Runnable, as
// spec.md §4.J's deferred-interrupt tasks do.
func (b *TaskBuilder) BlockInitially() *TaskBuilder {
	b.blockInitially = true
	return b
}

// Restartable marks the task as restartable (spec.md §4.I's restartable
// variant): on panic or unrecoverable exception, the task restarts from
// its original entry point and argument instead of exiting, unless the
// kill reason is Requested. onRestart, if non-nil, is called once per
// restart, before the re-invoked entry point runs; tests use it to count
// restarts (spec.md §8 S6).
func (b *TaskBuilder) Restartable(onRestart func()) *TaskBuilder {
	b.restartable = true
	b.onRestart = onRestart
	return b
}

// Spawn performs spec.md §4.I's spawn() sequence: allocate a kernel
// stack, build the task object, place it in list keyed by id, push it
// onto rq in Runnable (or leave it Blocked, un-enqueued, if requested),
// and start the bootstrap trampoline that will invoke the entry point.
func Spawn(b *TaskBuilder, list *List, stacks *StackAllocator, rq Enqueuer) (*task.Task, error) {
	stack, err := stacks.Allocate()
	if err != nil {
		return nil, fmt.Errorf("spawn %q: %w", b.name, err)
	}

	id := list.allocateID()
	t := task.New(id, b.name)
	t.SetStack(stack)
	if b.hasPinnedCPU {
		t.PinToCPU(b.pinnedCPU)
	}
	if b.restartable {
		t.SetRestartInfo(&task.RestartInfo{Entry: b.entry, Arg: b.arg, OnRestart: b.onRestart})
	}

	list.insert(t)

	if b.blockInitially {
		t.InitBlocked()
	} else {
		t.MarkRunnable()
		rq.Add(t)
	}

	go runTrampoline(t, stacks, b.entry, b.arg)
	return t, nil
}
